package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nitterPage = `<html><body><div class="timeline">
  <div class="timeline-item">
    <a class="tweet-link" href="/David_Ornstein/status/1#m"></a>
    <div class="pinned"><span>Pinned Tweet</span></div>
    <div class="tweet-content">pinned post</div>
  </div>
  <div class="timeline-item">
    <a class="tweet-link" href="/David_Ornstein/status/42#m"></a>
    <span class="tweet-date"><a href="/David_Ornstein/status/42#m" title="Oct 18, 2026 · 9:15 AM UTC">3h</a></span>
    <div class="tweet-content">Arsenal agree deal for defender</div>
    <div class="tweet-stats">
      <span class="tweet-stat"><div class="icon-container"><span class="icon-retweet"></span> 1,024</div></span>
      <span class="tweet-stat"><div class="icon-container"><span class="icon-heart"></span> 8,500</div></span>
    </div>
  </div>
  <div class="timeline-item">
    <a class="tweet-link" href="/David_Ornstein/status/43#m"></a>
    <div class="tweet-content">second post</div>
  </div>
</div></body></html>`

func TestNitterProviderParsesTimeline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/David_Ornstein" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(nitterPage))
	}))
	defer srv.Close()

	p := NewNitterProvider(srv.URL, false)
	require.True(t, p.Available())

	items, err := p.FetchPosts(context.Background(), "David_Ornstein", 1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	it := items[0]
	assert.Equal(t, "Twitter - David_Ornstein", it.Source)
	assert.Equal(t, "Arsenal agree deal for defender", it.Title)
	assert.Equal(t, "https://twitter.com/David_Ornstein/status/42", it.Link)
	assert.Equal(t, "Oct 18, 2026 · 9:15 AM UTC", it.PublishedRaw)
	assert.Equal(t, "42", it.PostID)
	assert.Equal(t, 1024, it.RepostCount)
	assert.Equal(t, 8500, it.LikeCount)

	_, err = p.FetchPosts(context.Background(), "nobody", 5)
	assert.Error(t, err)
}

func TestNitterProviderAvailability(t *testing.T) {
	assert.False(t, NewNitterProvider("", false).Available())
	assert.False(t, NewNitterProvider("https://nitter.net", true).Available())
}

func TestStatusIDAndParseInt(t *testing.T) {
	assert.Equal(t, "42", statusID("/user/status/42#m"))
	assert.Equal(t, "", statusID("/user"))
	assert.Equal(t, 1234, parseInt(" 1,234 "))
	assert.Equal(t, 0, parseInt(""))
}

func TestNitterProviderRespectsCancelledContext(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte(nitterPage))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := NewNitterProvider(srv.URL, false).FetchPosts(ctx, "David_Ornstein", 5)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, items)
	assert.Equal(t, 0, hits)
}
