package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/LJTian/goalnews/internal/logger"
)

const (
	RapidAPIModeAuto = "auto"

	rapidAPITimeout  = 15 * time.Second
	socialTitleLimit = 200
	twitterStatusURL = "https://twitter.com/%s/status/%s"
)

// RapidAPIBackend 一种 RapidAPI 上的推特接口配置
// Params 中的 {handle}、{count} 会在请求时替换
type RapidAPIBackend struct {
	ID       string
	Name     string
	URL      string
	Host     string
	Params   map[string]string
	ItemsKey string
}

// DefaultRapidAPIBackends 按 auto 模式尝试的顺序排列
func DefaultRapidAPIBackends() []RapidAPIBackend {
	return []RapidAPIBackend{
		{
			ID:       "api45",
			Name:     "Twitter API45",
			URL:      "https://twitter-api45.p.rapidapi.com/timeline.php",
			Host:     "twitter-api45.p.rapidapi.com",
			Params:   map[string]string{"screenname": "{handle}", "count": "{count}"},
			ItemsKey: "timeline",
		},
		{
			ID:       "scraper",
			Name:     "Twitter Scraper API",
			URL:      "https://twitter-scraper-api.p.rapidapi.com/user",
			Host:     "twitter-scraper-api.p.rapidapi.com",
			Params:   map[string]string{"username": "{handle}", "count": "{count}"},
			ItemsKey: "tweets",
		},
	}
}

// RapidAPIProvider 需要 API key 的备用来源
type RapidAPIProvider struct {
	client   *resty.Client
	apiKey   string
	mode     string
	backends []RapidAPIBackend
	timeout  time.Duration
	now      func() time.Time
}

type RapidAPIOption func(*RapidAPIProvider)

func WithRapidAPIBackends(backends ...RapidAPIBackend) RapidAPIOption {
	return func(p *RapidAPIProvider) { p.backends = backends }
}

func WithRapidAPIClient(client *resty.Client) RapidAPIOption {
	return func(p *RapidAPIProvider) { p.client = client }
}

// WithClock 测试用，固定缺失时间字段时的“当前时间”
func WithClock(now func() time.Time) RapidAPIOption {
	return func(p *RapidAPIProvider) { p.now = now }
}

func NewRapidAPIProvider(apiKey, mode string, opts ...RapidAPIOption) *RapidAPIProvider {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = RapidAPIModeAuto
	}
	p := &RapidAPIProvider{
		apiKey:   strings.TrimSpace(apiKey),
		mode:     mode,
		backends: DefaultRapidAPIBackends(),
		timeout:  rapidAPITimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = resty.New()
	}
	return p
}

func (p *RapidAPIProvider) Name() string {
	return "rapidapi"
}

func (p *RapidAPIProvider) Available() bool {
	return p.apiKey != ""
}

// FetchPosts auto 模式下依次尝试每个 backend，第一个返回 200 且列表非空的胜出；
// 指定模式下只用对应的 backend
func (p *RapidAPIProvider) FetchPosts(ctx context.Context, handle string, count int) ([]NewsItem, error) {
	log := logger.Get()

	if p.mode != RapidAPIModeAuto {
		backend, ok := p.backend(p.mode)
		if !ok {
			return nil, fmt.Errorf("rapidapi: unknown mode %q: %w", p.mode, ErrProviderUnavailable)
		}
		items, err := p.fetchBackend(ctx, backend, handle, count)
		if err != nil {
			log.Error().Err(err).Str("backend", backend.ID).Str("handle", handle).Msg("rapidapi backend failed")
			return nil, err
		}
		return items, nil
	}

	var errs []error
	for _, backend := range p.backends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, err := p.fetchBackend(ctx, backend, handle, count)
		if err != nil {
			log.Warn().Err(err).Str("backend", backend.ID).Str("handle", handle).Msg("rapidapi backend failed, trying next")
			errs = append(errs, err)
			continue
		}
		log.Info().Str("backend", backend.ID).Str("handle", handle).Int("items", len(items)).Msg("rapidapi backend succeeded")
		return items, nil
	}
	if len(errs) == 0 {
		return nil, ErrProviderUnavailable
	}
	return nil, errors.Join(errs...)
}

func (p *RapidAPIProvider) backend(id string) (RapidAPIBackend, bool) {
	for _, b := range p.backends {
		if b.ID == id {
			return b, true
		}
	}
	return RapidAPIBackend{}, false
}

func (p *RapidAPIProvider) fetchBackend(ctx context.Context, backend RapidAPIBackend, handle string, count int) ([]NewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := make(map[string]string, len(backend.Params))
	for k, v := range backend.Params {
		v = strings.ReplaceAll(v, "{handle}", handle)
		v = strings.ReplaceAll(v, "{count}", strconv.Itoa(count))
		params[k] = v
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("X-RapidAPI-Key", p.apiKey).
		SetHeader("X-RapidAPI-Host", backend.Host).
		SetQueryParams(params).
		Get(backend.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: request: %w", backend.ID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s: %w %d", backend.ID, ErrUnexpectedStatus, resp.StatusCode())
	}

	raw, err := decodePosts(resp.Body(), backend.ItemsKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", backend.ID, err)
	}

	items := make([]NewsItem, 0, len(raw))
	for _, post := range raw {
		if len(items) >= count {
			break
		}
		items = append(items, normalizePost(post, handle, p.now))
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s: %w", backend.ID, ErrEmptyResult)
	}
	return items, nil
}

// decodePosts 取出 body[key] 下的帖子数组；数字保留为 json.Number
func decodePosts(body []byte, key string) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var envelope map[string]any
	if err := dec.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	list, ok := envelope[key].([]any)
	if !ok {
		return nil, nil
	}
	posts := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			posts = append(posts, m)
		}
	}
	return posts, nil
}

func normalizePost(post map[string]any, handle string, now func() time.Time) NewsItem {
	text := firstString(post, "text", "full_text", "content")
	id := firstString(post, "id", "id_str", "tweet_id")

	link := firstString(post, "url")
	if link == "" && id != "" {
		link = fmt.Sprintf(twitterStatusURL, handle, id)
	}

	created := firstString(post, "created_at", "date")
	published := RawTime(created)
	if created == "" {
		published = ParsedTime(now())
	}

	return NewsItem{
		Source:       socialSource(handle),
		Title:        truncateRunes(text, socialTitleLimit),
		Link:         link,
		PublishedAt:  published,
		PublishedRaw: created,
		SocialStats: &SocialStats{
			PostID:      id,
			RepostCount: firstInt(post, "retweet_count", "retweets"),
			LikeCount:   firstInt(post, "favorite_count", "like_count", "likes"),
		},
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func firstInt(m map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := m[k].(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return int(n)
			}
			if f, err := v.Float64(); err == nil {
				return int(f)
			}
		case string:
			if n := parseInt(v); n > 0 {
				return n
			}
		}
	}
	return 0
}
