package pipeline

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/LJTian/goalnews/internal/collector"
	"github.com/LJTian/goalnews/internal/config"
	"github.com/LJTian/goalnews/internal/logger"
	"github.com/LJTian/goalnews/internal/processor"
	"github.com/LJTian/goalnews/internal/snapshot"
	"github.com/LJTian/goalnews/internal/translate"
)

// Options 运行时开关，命令行参数可以覆盖配置
type Options struct {
	TopicOnly bool
}

// NewFromConfig 按配置组装完整流水线；返回的 cleanup 用于释放浏览器进程与 Redis 连接
func NewFromConfig(ctx context.Context, cfg *config.Config, opts Options) (*Pipeline, func(), error) {
	log := logger.Get()
	reg := cfg.Registry

	// 抓取类（无需凭证）优先，RapidAPI 兜底；USE_RAPIDAPI=true 时跳过抓取类
	browser := collector.NewBrowserProvider(cfg.BrowserProfileURL, cfg.BrowserEnabled && !cfg.UseRapidAPI)
	cleanup := browser.Close
	social := collector.NewFallbackFetcher(
		collector.NewNitterProvider(cfg.NitterBaseURL, cfg.UseRapidAPI),
		browser,
		collector.NewRapidAPIProvider(cfg.RapidAPIKey, cfg.RapidAPIMode),
	)
	agg := collector.NewAggregator(collector.AggregatorConfig{
		Feeds:          reg.Feeds,
		Authors:        reg.Authors,
		FilterKeywords: reg.ClubKeywords,
		FilterEnabled:  cfg.FilterArsenal || opts.TopicOnly,
		PostsPerAuthor: collector.DefaultPostsPerAuthor,
		AuthorDelay:    collector.DefaultAuthorDelay,
	}, collector.NewFeedNormalizer(nil), social)

	free := translate.NewFreeTranslator(cfg.TranslatorType, translate.FreeOptions{
		LibreURL:    cfg.LibreTranslateURL,
		LibreAPIKey: cfg.LibreTranslateKey,
		DeepLAPIKey: cfg.DeepLAPIKey,
	})
	var premium translate.Completer
	if cfg.OpenAIAPIKey != "" {
		premium = translate.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	}

	ropts := processor.DefaultOptions()
	ropts.TransferKeywords = reg.TransferKeywords
	ropts.Markers = reg.Markers
	ropts.ExcitingWords = reg.ExcitingWords
	ropts.ForceFree = cfg.UseFreeTranslator
	rewriter := processor.NewRewriter(free, premium, ropts)

	if cfg.RedisAddr != "" {
		rdb, err := translate.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
		if err != nil {
			// 缓存只是加速，连不上就不用
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, translation cache disabled")
		} else {
			rewriter.SetCache(translate.NewRedisCache(rdb, cfg.TranslationCacheTTL))
			cleanup = closeAll(cleanup, closeRedis(rdb))
		}
	}

	var mirrors []snapshot.Mirror
	if cfg.S3.Enabled() {
		m, err := snapshot.NewS3Mirror(ctx, snapshot.S3Config(cfg.S3))
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		mirrors = append(mirrors, m)
	}
	writer := snapshot.NewWriter(cfg.OutputPath, cfg.PublicDir, mirrors...)

	log.Info().
		Str("rewrite_backend", rewriter.Backend()).
		Str("free_translator", free.Name()).
		Bool("topic_only", cfg.FilterArsenal || opts.TopicOnly).
		Int("feeds", len(reg.Feeds)).
		Int("authors", len(reg.Authors)).
		Msg("pipeline configured")

	return New(agg, rewriter, writer), cleanup, nil
}

func closeAll(fns ...func()) func() {
	return func() {
		for _, fn := range fns {
			fn()
		}
	}
}

func closeRedis(rdb *redis.Client) func() {
	return func() {
		if err := rdb.Close(); err != nil {
			logger.Get().Warn().Err(err).Msg("close redis")
		}
	}
}
