package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/goalnews/internal/collector"
	"github.com/LJTian/goalnews/internal/logger"
	"github.com/LJTian/goalnews/internal/processor"
)

// Collector 一次采集
type Collector interface {
	Collect(ctx context.Context) ([]collector.NewsItem, *collector.RunReport)
}

// Rewriter 填充译文与分类
type Rewriter interface {
	Rewrite(ctx context.Context, items []collector.NewsItem) processor.Stats
}

// SnapshotWriter 写出最终集合
type SnapshotWriter interface {
	Write(ctx context.Context, items []collector.NewsItem) error
}

// Report 一次完整运行的结果
type Report struct {
	StartedAt time.Time
	Duration  time.Duration
	Items     int
	Sources   *collector.RunReport
	Rewrite   processor.Stats
}

// AllSourcesFailed 所有来源都失败（可能是系统性故障）
func (r *Report) AllSourcesFailed() bool {
	return r.Sources != nil && r.Sources.AllSourcesFailed()
}

// Pipeline 采集 -> 改写标题 -> 写快照，顺序执行
type Pipeline struct {
	collector Collector
	rewriter  Rewriter
	writer    SnapshotWriter
	now       func() time.Time
}

func New(c Collector, r Rewriter, w SnapshotWriter) *Pipeline {
	return &Pipeline{collector: c, rewriter: r, writer: w, now: time.Now}
}

// Run 只有快照写入失败才返回错误，单个来源或条目的失败都在 Report 里
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	log := logger.Component("pipeline")
	report := &Report{StartedAt: p.now()}

	items, sources := p.collector.Collect(ctx)
	report.Sources = sources
	report.Items = len(items)
	log.Info().
		Int("items", len(items)).
		Int("feed_items", sources.Count(collector.SourceKindFeed)).
		Int("social_items", sources.Count(collector.SourceKindSocial)).
		Int("sources_ok", sources.Succeeded()).
		Int("sources_failed", len(sources.Failed())).
		Msg("collection finished")

	if p.rewriter != nil && len(items) > 0 {
		report.Rewrite = p.rewriter.Rewrite(ctx, items)
	}

	// 写盘不受运行超时影响，已经拿到的结果尽量落地
	if err := p.writer.Write(context.WithoutCancel(ctx), items); err != nil {
		report.Duration = p.now().Sub(report.StartedAt)
		return report, fmt.Errorf("pipeline: %w", err)
	}
	report.Duration = p.now().Sub(report.StartedAt)

	for _, f := range sources.Failed() {
		log.Warn().Err(f.Err).Str("kind", f.Kind).Str("source", f.Name).Msg("source contributed no items")
	}
	log.Info().
		Int("items", report.Items).
		Int("transfers", report.Rewrite.Transfers).
		Dur("duration", report.Duration).
		Bool("all_sources_failed", report.AllSourcesFailed()).
		Msg("pipeline run done")
	return report, nil
}
