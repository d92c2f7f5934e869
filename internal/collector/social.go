package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/LJTian/goalnews/internal/logger"
)

// Author 需要跟踪的记者账号
type Author struct {
	Name   string
	Handle string
}

// SocialProvider 一个社交媒体帖子来源
type SocialProvider interface {
	Name() string
	// Available 报告当前环境下能否使用（例如未配置密钥时为 false）
	Available() bool
	FetchPosts(ctx context.Context, handle string, count int) ([]NewsItem, error)
}

// FallbackFetcher 按优先级依次尝试各个 provider，第一个拿到非空结果的胜出
type FallbackFetcher struct {
	providers []SocialProvider
}

func NewFallbackFetcher(providers ...SocialProvider) *FallbackFetcher {
	list := make([]SocialProvider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			list = append(list, p)
		}
	}
	return &FallbackFetcher{providers: list}
}

// Fetch 返回最多 count 条帖子；全部失败时返回空结果和汇总后的错误
func (f *FallbackFetcher) Fetch(ctx context.Context, handle string, count int) ([]NewsItem, error) {
	log := logger.Get()
	var errs []error
	tried := 0

	for _, p := range f.providers {
		if !p.Available() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tried++

		items, err := p.FetchPosts(ctx, handle, count)
		if err == nil && len(items) == 0 {
			err = ErrEmptyResult
		}
		if err != nil {
			log.Warn().Err(err).Str("provider", p.Name()).Str("handle", handle).Msg("social provider failed, trying next")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}

		if len(items) > count {
			items = items[:count]
		}
		log.Debug().Str("provider", p.Name()).Str("handle", handle).Int("items", len(items)).Msg("social provider succeeded")
		return items, nil
	}

	if tried == 0 {
		return nil, ErrProviderUnavailable
	}
	return nil, errors.Join(errs...)
}

func socialSource(handle string) string {
	return "Twitter - " + handle
}
