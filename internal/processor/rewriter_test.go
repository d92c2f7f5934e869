package processor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/goalnews/internal/collector"
	"github.com/LJTian/goalnews/internal/translate"
)

type stubTranslator struct {
	// 每次调用依次返回，用完后重复最后一个
	results []result
	calls   int
}

type result struct {
	out string
	err error
}

func (s *stubTranslator) Name() string { return "stub" }

func (s *stubTranslator) Translate(_ context.Context, text string) (string, error) {
	r := s.results[min(s.calls, len(s.results)-1)]
	s.calls++
	return r.out, r.err
}

type stubCompleter struct {
	reqs []translate.CompletionRequest
	out  string
	err  error
}

func (s *stubCompleter) Complete(_ context.Context, req translate.CompletionRequest) (string, error) {
	s.reqs = append(s.reqs, req)
	return s.out, s.err
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestRewriter(free translate.Translator, premium translate.Completer, opts Options) (*Rewriter, *sleepRecorder) {
	r := NewRewriter(free, premium, opts)
	rec := &sleepRecorder{}
	r.sleep = rec.sleep
	r.pick = func(int) int { return 0 }
	return r, rec
}

func TestIsTransferTopic(t *testing.T) {
	kw := DefaultOptions().TransferKeywords
	assert.True(t, IsTransferTopic("Club confirms signing of player on loan", kw))
	assert.False(t, IsTransferTopic("Match ends 2-2 in thriller", kw))
	assert.True(t, IsTransferTopic("HERE WE GO for Rice", kw))
}

func TestBackendSelection(t *testing.T) {
	free := &stubTranslator{}
	assert.Equal(t, BackendFree, NewRewriter(free, nil, Options{}).Backend())
	assert.Equal(t, BackendPremium, NewRewriter(free, &stubCompleter{}, Options{}).Backend())
	assert.Equal(t, BackendFree, NewRewriter(free, &stubCompleter{}, Options{ForceFree: true}).Backend())
}

func TestFreeRewriteEmbellishesTransfersAndDelaysBetweenItems(t *testing.T) {
	free := &stubTranslator{results: []result{{out: "阿森纳签下前锋"}}}
	opts := DefaultOptions()
	r, rec := newTestRewriter(free, nil, opts)

	items := []collector.NewsItem{
		{Title: "Arsenal sign striker"},
		{Title: "Match ends 2-2 in thriller"},
	}
	stats := r.Rewrite(context.Background(), items)

	assert.Equal(t, "🚨 阿森纳签下前锋", items[0].TitleTranslated)
	assert.True(t, items[0].IsTransferTopic)
	assert.Equal(t, "阿森纳签下前锋", items[1].TitleTranslated)
	assert.False(t, items[1].IsTransferTopic)

	assert.Equal(t, []time.Duration{opts.FreeDelay}, rec.delays)
	assert.Equal(t, 2, stats.Translated)
	assert.Equal(t, 1, stats.Transfers)
}

func TestFreeRewriteSkipsEmbellishWhenAlreadyExciting(t *testing.T) {
	free := &stubTranslator{results: []result{{out: "官宣：阿森纳签下前锋"}}}
	r, _ := newTestRewriter(free, nil, DefaultOptions())

	items := []collector.NewsItem{{Title: "Arsenal sign striker"}}
	r.Rewrite(context.Background(), items)
	assert.Equal(t, "官宣：阿森纳签下前锋", items[0].TitleTranslated)
}

func TestFreeRewriteRetriesThenDegrades(t *testing.T) {
	free := &stubTranslator{results: []result{{err: errors.New("timeout")}}}
	opts := DefaultOptions()
	r, rec := newTestRewriter(free, nil, opts)

	items := []collector.NewsItem{{Title: "Arsenal sign striker"}}
	stats := r.Rewrite(context.Background(), items)

	assert.Equal(t, 3, free.calls)
	assert.Equal(t, []time.Duration{opts.RetryWait, opts.RetryWait}, rec.delays)
	assert.Equal(t, "Arsenal sign striker", items[0].TitleTranslated, "degrades to the original title")
	assert.True(t, items[0].IsTransferTopic)
	assert.Equal(t, 1, stats.Failed)
}

func TestFreeRewriteRecoversOnSecondAttempt(t *testing.T) {
	free := &stubTranslator{results: []result{{out: "  "}, {out: "平局"}}}
	r, _ := newTestRewriter(free, nil, DefaultOptions())

	items := []collector.NewsItem{{Title: "Draw"}}
	r.Rewrite(context.Background(), items)
	assert.Equal(t, 2, free.calls)
	assert.Equal(t, "平局", items[0].TitleTranslated)
}

func TestFreeRewriteLeavesChineseTitles(t *testing.T) {
	free := &stubTranslator{results: []result{{out: "x"}}}
	r, rec := newTestRewriter(free, nil, DefaultOptions())

	items := []collector.NewsItem{{Title: "阿森纳官宣签约"}, {Title: "曼城夺冠"}}
	r.Rewrite(context.Background(), items)
	assert.Equal(t, 0, free.calls)
	assert.Empty(t, rec.delays)
	assert.Equal(t, "阿森纳官宣签约", items[0].TitleTranslated)
}

func TestPremiumRewritePromptsByClassification(t *testing.T) {
	premium := &stubCompleter{out: "重磅！阿森纳签下前锋"}
	opts := DefaultOptions()
	r, rec := newTestRewriter(&stubTranslator{}, premium, opts)

	items := []collector.NewsItem{
		{Title: "Arsenal sign striker"},
		{Title: "Match ends 2-2 in thriller"},
	}
	r.Rewrite(context.Background(), items)

	require.Len(t, premium.reqs, 2)
	assert.InDelta(t, 0.7, premium.reqs[0].Temperature, 1e-9)
	assert.Contains(t, premium.reqs[0].User, "Fabrizio Romano")
	assert.InDelta(t, 0.3, premium.reqs[1].Temperature, 1e-9)
	assert.NotContains(t, premium.reqs[1].User, "Fabrizio Romano")
	assert.Equal(t, systemPrompt, premium.reqs[1].System)
	assert.Equal(t, 200, premium.reqs[1].MaxTokens)

	// 高级后端不加前缀
	assert.Equal(t, "重磅！阿森纳签下前锋", items[0].TitleTranslated)
	assert.Equal(t, []time.Duration{opts.PremiumDelay}, rec.delays)
}

func TestPremiumFailureKeepsClassification(t *testing.T) {
	premium := &stubCompleter{err: errors.New("rate limited")}
	r, _ := newTestRewriter(nil, premium, DefaultOptions())

	items := []collector.NewsItem{{Title: "Club confirms signing of player on loan"}}
	stats := r.Rewrite(context.Background(), items)

	assert.Equal(t, items[0].Title, items[0].TitleTranslated)
	assert.True(t, items[0].IsTransferTopic)
	assert.Equal(t, 1, stats.Failed)
}

func TestRewriteUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	free := &stubTranslator{results: []result{{out: "切尔西获胜"}}}
	r, _ := newTestRewriter(free, nil, DefaultOptions())
	r.SetCache(translate.NewRedisCache(rdb, time.Hour))

	first := []collector.NewsItem{{Title: "Chelsea win"}}
	r.Rewrite(context.Background(), first)
	second := []collector.NewsItem{{Title: "Chelsea win"}}
	stats := r.Rewrite(context.Background(), second)

	assert.Equal(t, 1, free.calls)
	assert.Equal(t, 1, stats.CacheHits)
	assert.Equal(t, "切尔西获胜", second[0].TitleTranslated)
}

func TestRewriteIgnoresUnreachableCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	mr.Close()

	free := &stubTranslator{results: []result{{out: "切尔西获胜"}}}
	r, _ := newTestRewriter(free, nil, DefaultOptions())
	r.SetCache(translate.NewRedisCache(rdb, time.Hour))

	items := []collector.NewsItem{{Title: "Chelsea win"}}
	stats := r.Rewrite(context.Background(), items)

	// 缓存只影响是否重复请求，不影响结果
	assert.Equal(t, 1, free.calls)
	assert.Equal(t, 0, stats.CacheHits)
	require.Len(t, items, 1)
	assert.Equal(t, "切尔西获胜", items[0].TitleTranslated)
}

func TestRewriteNeverLeavesTranslatedEmpty(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, _ := newTestRewriter(&stubTranslator{results: []result{{out: "x"}}}, nil, DefaultOptions())
	items := []collector.NewsItem{{Title: "a"}, {Title: strings.Repeat("b", 10)}}
	r.Rewrite(ctx, items)
	for _, it := range items {
		assert.Equal(t, it.Title, it.TitleTranslated)
	}
}
