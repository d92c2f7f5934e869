package processor

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/LJTian/goalnews/internal/collector"
	"github.com/LJTian/goalnews/internal/logger"
	"github.com/LJTian/goalnews/internal/translate"
)

const (
	BackendFree    = "free"
	BackendPremium = "premium"
)

const (
	systemPrompt = "你是一个专业的足球新闻翻译专家，擅长将英文足球新闻翻译成流畅的中文。"

	transferPrompt = `请将以下足球转会新闻标题翻译成中文，并使用 Fabrizio Romano 的激动人心的风格。

Fabrizio Romano 的风格特点：
- 使用"Here we go!"、"重磅！"、"官宣！"等激动人心的表达
- 使用感叹号和emoji（如✅、🚨、💥等）
- 语气兴奋、直接、有冲击力
- 突出转会的重大性和确定性

原标题：%s

请只返回翻译后的中文标题，不要添加其他解释。`

	neutralPrompt = `请将以下足球新闻标题准确翻译成中文，保持原意和语气。

原标题：%s

请只返回翻译后的中文标题，不要添加其他解释。`
)

// Options 改写器的固定参数
type Options struct {
	TransferKeywords []string
	// Markers 转会新闻译文前可能加的前缀
	Markers []string
	// ExcitingWords 译文已含其中任意一个时不再加前缀
	ExcitingWords []string
	ForceFree     bool

	FreeDelay    time.Duration
	PremiumDelay time.Duration
	MaxAttempts  int
	RetryWait    time.Duration
}

func DefaultOptions() Options {
	return Options{
		TransferKeywords: []string{
			"transfer", "sign", "signing", "deal", "move", "join", "leave",
			"departure", "arrival", "agreement", "contract", "loan", "permanent",
			"here we go", "medical", "completed", "announced", "confirmed",
		},
		Markers:       []string{"🚨", "💥", "✅"},
		ExcitingWords: []string{"🚨", "重磅", "官宣"},
		FreeDelay:     300 * time.Millisecond,
		PremiumDelay:  500 * time.Millisecond,
		MaxAttempts:   3,
		RetryWait:     time.Second,
	}
}

// Stats 一次改写的统计
type Stats struct {
	Backend    string
	Total      int
	Translated int
	Failed     int
	Transfers  int
	CacheHits  int
}

// Rewriter 为每条新闻填充 title_translated 与 is_transfer_topic
type Rewriter struct {
	free    translate.Translator
	premium translate.Completer
	cache   translate.Cache
	opts    Options

	sleep func(context.Context, time.Duration) error
	pick  func(n int) int
}

// NewRewriter premium 为 nil 时只会使用免费后端
func NewRewriter(free translate.Translator, premium translate.Completer, opts Options) *Rewriter {
	def := DefaultOptions()
	if len(opts.TransferKeywords) == 0 {
		opts.TransferKeywords = def.TransferKeywords
	}
	if len(opts.Markers) == 0 {
		opts.Markers = def.Markers
	}
	if len(opts.ExcitingWords) == 0 {
		opts.ExcitingWords = def.ExcitingWords
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	return &Rewriter{
		free:    free,
		premium: premium,
		opts:    opts,
		sleep:   collector.SleepContext,
		pick:    rand.Intn,
	}
}

func (r *Rewriter) SetCache(c translate.Cache) {
	r.cache = c
}

// Backend 本次运行使用的后端，每次运行只决定一次
func (r *Rewriter) Backend() string {
	if r.premium == nil || r.opts.ForceFree {
		return BackendFree
	}
	return BackendPremium
}

// IsTransferTopic 标题（忽略大小写）包含任一转会关键词
func IsTransferTopic(title string, keywords []string) bool {
	return collector.MatchesAnyKeyword(title, keywords)
}

// Rewrite 单条失败只会让该条退回原标题，不会中断整批
func (r *Rewriter) Rewrite(ctx context.Context, items []collector.NewsItem) Stats {
	log := logger.Component("rewriter")
	backend := r.Backend()
	stats := Stats{Backend: backend, Total: len(items)}

	if backend == BackendFree && r.free == nil {
		log.Warn().Msg("no free translator configured, keeping original titles")
	}

	for i := range items {
		it := &items[i]
		it.TitleTranslated = it.Title
		it.IsTransferTopic = IsTransferTopic(it.Title, r.opts.TransferKeywords)
		if it.IsTransferTopic {
			stats.Transfers++
		}
		if ctx.Err() != nil {
			stats.Failed++
			continue
		}

		var (
			out       string
			requested bool
			err       error
		)
		if cached, ok := r.lookup(ctx, backend, it.Title); ok {
			out = cached
			stats.CacheHits++
		} else {
			out, requested, err = r.translate(ctx, backend, it.Title, it.IsTransferTopic)
			if err == nil && requested {
				r.store(ctx, backend, it.Title, out)
			}
		}

		switch {
		case err != nil:
			stats.Failed++
			log.Warn().Err(err).Str("backend", backend).Str("title", it.Title).Msg("title rewrite failed, keeping original")
		case out != "":
			if backend == BackendFree {
				out = r.embellish(it.Title, out, it.IsTransferTopic)
			}
			it.TitleTranslated = out
			if out != it.Title {
				stats.Translated++
			}
		}

		if requested && i < len(items)-1 {
			if err := r.sleep(ctx, r.delay(backend)); err != nil {
				log.Warn().Err(err).Msg("rewrite interrupted")
			}
		}
	}

	log.Info().
		Str("backend", backend).
		Int("total", stats.Total).
		Int("translated", stats.Translated).
		Int("failed", stats.Failed).
		Int("transfers", stats.Transfers).
		Int("cache_hits", stats.CacheHits).
		Msg("titles rewritten")
	return stats
}

// translate 返回译文以及是否真的发出了请求
func (r *Rewriter) translate(ctx context.Context, backend, title string, transfer bool) (string, bool, error) {
	if backend == BackendPremium {
		out, err := r.premium.Complete(ctx, premiumRequest(title, transfer))
		return out, true, err
	}
	if r.free == nil || translate.IsMostlyChinese(title) {
		return "", false, nil
	}

	var lastErr error
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		out, err := r.free.Translate(ctx, title)
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out), true, nil
		}
		if err == nil {
			err = translate.ErrEmptyTranslation
		}
		lastErr = err
		if attempt < r.opts.MaxAttempts {
			if serr := r.sleep(ctx, r.opts.RetryWait); serr != nil {
				return "", true, serr
			}
		}
	}
	return "", true, fmt.Errorf("%s after %d attempts: %w", r.free.Name(), r.opts.MaxAttempts, lastErr)
}

func premiumRequest(title string, transfer bool) translate.CompletionRequest {
	if transfer {
		return translate.CompletionRequest{
			System:      systemPrompt,
			User:        fmt.Sprintf(transferPrompt, title),
			Temperature: 0.7,
			MaxTokens:   200,
		}
	}
	return translate.CompletionRequest{
		System:      systemPrompt,
		User:        fmt.Sprintf(neutralPrompt, title),
		Temperature: 0.3,
		MaxTokens:   200,
	}
}

// embellish 转会新闻的译文没有激动字眼时加一个前缀；没翻译成功的不加
func (r *Rewriter) embellish(title, translated string, transfer bool) string {
	if !transfer || translated == title || len(r.opts.Markers) == 0 {
		return translated
	}
	for _, w := range r.opts.ExcitingWords {
		if strings.Contains(translated, w) {
			return translated
		}
	}
	return r.opts.Markers[r.pick(len(r.opts.Markers))] + " " + translated
}

func (r *Rewriter) delay(backend string) time.Duration {
	if backend == BackendPremium {
		return r.opts.PremiumDelay
	}
	return r.opts.FreeDelay
}

func (r *Rewriter) lookup(ctx context.Context, backend, title string) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	out, ok, err := r.cache.Get(ctx, r.cacheNamespace(backend), title)
	if err != nil {
		logger.Get().Warn().Err(err).Msg("translation cache read failed")
		return "", false
	}
	return out, ok
}

func (r *Rewriter) store(ctx context.Context, backend, title, translated string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, r.cacheNamespace(backend), title, translated); err != nil {
		logger.Get().Warn().Err(err).Msg("translation cache write failed")
	}
}

func (r *Rewriter) cacheNamespace(backend string) string {
	if backend == BackendFree && r.free != nil {
		return backend + ":" + r.free.Name()
	}
	return backend
}
