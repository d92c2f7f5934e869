package collector

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeeds map[string][]NewsItem

func (s stubFeeds) Normalize(_ context.Context, src FeedSource) ([]NewsItem, error) {
	items, ok := s[src.URL]
	if !ok {
		return nil, errors.New("unreachable")
	}
	return items, nil
}

type stubPosts struct {
	byHandle map[string][]NewsItem
	handles  []string
}

func (s *stubPosts) Fetch(_ context.Context, handle string, count int) ([]NewsItem, error) {
	s.handles = append(s.handles, handle)
	items, ok := s.byHandle[handle]
	if !ok {
		return nil, ErrEmptyResult
	}
	if len(items) > count {
		items = items[:count]
	}
	return items, nil
}

func at(hour int) Timestamp {
	return ParsedTime(time.Date(2026, 10, 18, hour, 0, 0, 0, time.UTC))
}

func TestAggregatorMergesFiltersAndSorts(t *testing.T) {
	feeds := stubFeeds{
		"bbc": {
			{Source: "BBC", Title: "Arsenal sign new striker", PublishedAt: at(9)},
			{Source: "BBC", Title: "City win trophy", PublishedAt: at(11)},
		},
	}
	posts := &stubPosts{byHandle: map[string][]NewsItem{
		"romano": {{Source: "Twitter - romano", Title: "Here we go, Arsenal!", PublishedAt: at(10), SocialStats: &SocialStats{}}},
	}}

	var delays []time.Duration
	agg := NewAggregator(AggregatorConfig{
		Feeds:          []FeedSource{{Name: "BBC", URL: "bbc"}, {Name: "Down", URL: "down"}},
		Authors:        []Author{{Name: "Romano", Handle: "romano"}, {Name: "Dup", Handle: "Romano"}, {Name: "Gone", Handle: "gone"}},
		FilterKeywords: []string{"arsenal"},
		FilterEnabled:  true,
		AuthorDelay:    time.Second,
	}, feeds, posts)
	agg.SetSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})

	items, report := agg.Collect(context.Background())
	require.Len(t, items, 2)
	assert.Equal(t, "Here we go, Arsenal!", items[0].Title)
	assert.Equal(t, "Arsenal sign new striker", items[1].Title)

	// 重复 handle 只抓一次，作者之间才等待
	assert.Equal(t, []string{"romano", "gone"}, posts.handles)
	assert.Equal(t, []time.Duration{time.Second}, delays)

	assert.Len(t, report.Sources, 4)
	assert.Len(t, report.Failed(), 2)
	assert.Equal(t, 1, report.Count(SourceKindFeed))
	assert.Equal(t, 1, report.Count(SourceKindSocial))
	assert.False(t, report.AllSourcesFailed())
}

func TestAggregatorEmptyWhenEverythingFails(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{
		Feeds:   []FeedSource{{Name: "a", URL: "a"}},
		Authors: []Author{{Handle: "x"}},
	}, stubFeeds{}, &stubPosts{})
	agg.SetSleep(func(context.Context, time.Duration) error { return nil })

	items, report := agg.Collect(context.Background())
	require.NotNil(t, items)
	assert.Empty(t, items)
	assert.True(t, report.AllSourcesFailed())

	data, err := json.Marshal(items)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
