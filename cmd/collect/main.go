package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LJTian/goalnews/internal/config"
	"github.com/LJTian/goalnews/internal/logger"
	"github.com/LJTian/goalnews/internal/pipeline"
)

var errAllSourcesFailed = errors.New("every feed and author failed")

var (
	topicOnly bool
	strict    bool
	output    string
)

// 一个仅执行一次采集任务的命令行入口：适合手动触发或交给外部定时器
func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "collect",
		Short:         "Fetch football news from feeds and journalists, translate titles, write the JSON snapshot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCollect,
	}

	cmd.Flags().BoolVar(&topicOnly, "arsenal", false, "keep only feed items whose title mentions the club keywords")
	cmd.Flags().BoolVar(&topicOnly, "topic-only", false, "alias of --arsenal")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit with status 1 when every source failed")
	cmd.Flags().StringVarP(&output, "output", "o", "", "snapshot path (overrides OUTPUT_PATH)")

	return cmd
}

func runCollect(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return err
	}
	if err := logger.Init(cfg.LogConfig()); err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
	}
	log := logger.Get()
	if output != "" {
		cfg.OutputPath = output
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	p, cleanup, err := pipeline.NewFromConfig(ctx, cfg, pipeline.Options{TopicOnly: topicOnly})
	if err != nil {
		log.Error().Err(err).Msg("init pipeline failed")
		return err
	}
	defer cleanup()

	report, err := p.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("collect failed")
		return err
	}
	if report.AllSourcesFailed() {
		log.Warn().Msg("every source failed this run")
	}
	return exitError(report, strict)
}

// exitError 只有 --strict 且所有来源都失败时才让进程以非零状态退出
func exitError(report *pipeline.Report, strict bool) error {
	if strict && report.AllSourcesFailed() {
		return errAllSourcesFailed
	}
	return nil
}
