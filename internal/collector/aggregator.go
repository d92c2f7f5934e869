package collector

import (
	"context"
	"strings"
	"time"

	"github.com/LJTian/goalnews/internal/logger"
)

const (
	DefaultPostsPerAuthor = 5
	DefaultAuthorDelay    = time.Second
)

const (
	SourceKindFeed   = "feed"
	SourceKindSocial = "social"
)

// FeedReader 单个订阅源的读取能力
type FeedReader interface {
	Normalize(ctx context.Context, src FeedSource) ([]NewsItem, error)
}

// PostFetcher 单个作者的帖子获取能力
type PostFetcher interface {
	Fetch(ctx context.Context, handle string, count int) ([]NewsItem, error)
}

// AggregatorConfig 固定的来源登记表与过滤设置
type AggregatorConfig struct {
	Feeds          []FeedSource
	Authors        []Author
	FilterKeywords []string
	FilterEnabled  bool
	PostsPerAuthor int
	AuthorDelay    time.Duration
}

// SourceResult 单个来源一次采集的结果
type SourceResult struct {
	Kind  string
	Name  string
	Count int
	Err   error
}

// RunReport 一次采集中每个来源的结果
type RunReport struct {
	Sources []SourceResult
}

func (r *RunReport) Succeeded() int {
	n := 0
	for _, s := range r.Sources {
		if s.Err == nil {
			n++
		}
	}
	return n
}

func (r *RunReport) Failed() []SourceResult {
	var failed []SourceResult
	for _, s := range r.Sources {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

// AllSourcesFailed 至少有一个来源且全部失败
func (r *RunReport) AllSourcesFailed() bool {
	return len(r.Sources) > 0 && r.Succeeded() == 0
}

// Count 按类型统计条目数
func (r *RunReport) Count(kind string) int {
	n := 0
	for _, s := range r.Sources {
		if s.Kind == kind {
			n += s.Count
		}
	}
	return n
}

// Aggregator 顺序抓取所有来源，合并后按时间倒序
type Aggregator struct {
	cfg    AggregatorConfig
	feeds  FeedReader
	social PostFetcher
	sleep  func(context.Context, time.Duration) error
}

func NewAggregator(cfg AggregatorConfig, feeds FeedReader, social PostFetcher) *Aggregator {
	if cfg.PostsPerAuthor <= 0 {
		cfg.PostsPerAuthor = DefaultPostsPerAuthor
	}
	return &Aggregator{cfg: cfg, feeds: feeds, social: social, sleep: SleepContext}
}

// SetSleep 替换作者之间的等待函数，测试用
func (a *Aggregator) SetSleep(sleep func(context.Context, time.Duration) error) {
	a.sleep = sleep
}

// Collect 永远返回一个集合（可能为空）；单个来源的失败只记录在报告里
func (a *Aggregator) Collect(ctx context.Context) ([]NewsItem, *RunReport) {
	log := logger.Component("aggregator")
	report := &RunReport{}
	var all []NewsItem

	if a.feeds != nil {
		for _, src := range a.cfg.Feeds {
			if ctx.Err() != nil {
				break
			}
			items, err := a.feeds.Normalize(ctx, src)
			if err != nil {
				log.Warn().Err(err).Str("source", src.Name).Msg("feed failed")
				report.Sources = append(report.Sources, SourceResult{Kind: SourceKindFeed, Name: src.Name, Err: err})
				continue
			}
			if a.cfg.FilterEnabled {
				items = FilterByKeywords(items, a.cfg.FilterKeywords)
			}
			log.Info().Str("source", src.Name).Int("items", len(items)).Msg("feed fetched")
			report.Sources = append(report.Sources, SourceResult{Kind: SourceKindFeed, Name: src.Name, Count: len(items)})
			all = append(all, items...)
		}
	}

	if a.social != nil {
		for i, author := range uniqueAuthors(a.cfg.Authors) {
			if i > 0 && a.cfg.AuthorDelay > 0 {
				if err := a.sleep(ctx, a.cfg.AuthorDelay); err != nil {
					break
				}
			}
			if ctx.Err() != nil {
				break
			}
			items, err := a.social.Fetch(ctx, author.Handle, a.cfg.PostsPerAuthor)
			if err != nil {
				log.Warn().Err(err).Str("handle", author.Handle).Str("author", author.Name).Msg("social fetch failed")
				report.Sources = append(report.Sources, SourceResult{Kind: SourceKindSocial, Name: author.Handle, Err: err})
				continue
			}
			report.Sources = append(report.Sources, SourceResult{Kind: SourceKindSocial, Name: author.Handle, Count: len(items)})
			all = append(all, items...)
		}
	}

	if all == nil {
		all = []NewsItem{}
	}
	SortByPublished(all)
	return all, report
}

// FilterByKeywords 只保留标题命中关键词的条目
func FilterByKeywords(items []NewsItem, keywords []string) []NewsItem {
	kept := make([]NewsItem, 0, len(items))
	for _, it := range items {
		if MatchesAnyKeyword(it.Title, keywords) {
			kept = append(kept, it)
		}
	}
	return kept
}

func uniqueAuthors(authors []Author) []Author {
	seen := make(map[string]bool, len(authors))
	out := make([]Author, 0, len(authors))
	for _, a := range authors {
		key := strings.ToLower(strings.TrimSpace(a.Handle))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

// SleepContext 可被 ctx 打断的等待
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
