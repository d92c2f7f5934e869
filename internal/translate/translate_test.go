package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMostlyChinese(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"阿森纳官宣签约", true},
		{"Arsenal 官宣", true},
		{"Arsenal sign new striker", false},
		{"   ", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsMostlyChinese(c.in), c.in)
	}
}

func TestGoogleTranslatorParsesSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gtx", r.URL.Query().Get("client"))
		assert.Equal(t, "zh-CN", r.URL.Query().Get("tl"))
		_, _ = w.Write([]byte(`[[["阿森纳","Arsenal",null],["签下前锋"," sign striker",null]],null,"en"]`))
	}))
	defer srv.Close()

	g := &GoogleTranslator{client: resty.New(), baseURL: srv.URL}
	out, err := g.Translate(context.Background(), "Arsenal sign striker")
	require.NoError(t, err)
	assert.Equal(t, "阿森纳签下前锋", out)
}

func TestChainFallsBackToMyMemory(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer google.Close()
	mymemory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en|zh", r.URL.Query().Get("langpair"))
		_, _ = w.Write([]byte(`{"responseData":{"translatedText":"切尔西获胜"}}`))
	}))
	defer mymemory.Close()

	tr := NewFreeTranslator("google", FreeOptions{Client: resty.New(), GoogleURL: google.URL, MyMemoryURL: mymemory.URL})
	assert.Equal(t, "google+mymemory", tr.Name())

	out, err := tr.Translate(context.Background(), "Chelsea win")
	require.NoError(t, err)
	assert.Equal(t, "切尔西获胜", out)
}

func TestChainReportsAllFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewFreeTranslator("", FreeOptions{Client: resty.New(), GoogleURL: srv.URL, MyMemoryURL: srv.URL})
	_, err := tr.Translate(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestNewFreeTranslatorSelection(t *testing.T) {
	assert.Equal(t, "mymemory", NewFreeTranslator("mymemory", FreeOptions{}).Name())
	assert.Equal(t, "google+mymemory", NewFreeTranslator("deepl", FreeOptions{}).Name())
	assert.Equal(t, "deepl+google", NewFreeTranslator("deepl", FreeOptions{DeepLAPIKey: "k"}).Name())
	assert.Equal(t, "google+mymemory", NewFreeTranslator("libre", FreeOptions{}).Name())
	assert.Equal(t, "libre", NewFreeTranslator("LIBRE", FreeOptions{LibreURL: "http://libre"}).Name())
}

func TestLibreTranslator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "zh", body["target"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"translatedText":" 利物浦 "}`))
	}))
	defer srv.Close()

	tr := NewFreeTranslator("libre", FreeOptions{Client: resty.New(), LibreURL: srv.URL + "/"})
	out, err := tr.Translate(context.Background(), "Liverpool")
	require.NoError(t, err)
	assert.Equal(t, "利物浦", out)
}

func TestOpenAIClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultOpenAIModel, req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.InDelta(t, 0.3, req.Temperature, 1e-9)
		assert.Equal(t, 200, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" 平局收场 "}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL+"/v1", "")
	out, err := c.Complete(context.Background(), CompletionRequest{System: "s", User: "u", Temperature: 0.3, MaxTokens: 200})
	require.NoError(t, err)
	assert.Equal(t, "平局收场", out)
}

func TestOpenAIClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("bad", srv.URL, "gpt-4o-mini").Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadStatus)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := NewRedisCache(rdb, time.Hour)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "google", "Arsenal win")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "google", "Arsenal win", "阿森纳获胜"))
	got, ok, err := c.Get(ctx, "google", "Arsenal win")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "阿森纳获胜", got)

	// 不同后端互不影响
	_, ok, err = c.Get(ctx, "openai", "Arsenal win")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "google", "Arsenal win")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFreeTranslatorDefaultClientIsBounded(t *testing.T) {
	for _, kind := range []string{"google", "mymemory", "deepl"} {
		tr := NewFreeTranslator(kind, FreeOptions{DeepLAPIKey: "k"})
		var clients []*resty.Client
		switch v := tr.(type) {
		case Chain:
			for _, b := range v {
				switch b := b.(type) {
				case *GoogleTranslator:
					clients = append(clients, b.client)
				case *MyMemoryTranslator:
					clients = append(clients, b.client)
				case *DeepLTranslator:
					clients = append(clients, b.client)
				}
			}
		case *MyMemoryTranslator:
			clients = append(clients, v.client)
		}
		require.NotEmpty(t, clients, kind)
		for _, c := range clients {
			assert.Equal(t, clientTimeout, c.GetClient().Timeout, kind)
		}
	}
}

func TestFreeTranslatorGivesUpOnHungBackend(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tr := NewFreeTranslator("google", FreeOptions{
		Client:      newClient().SetTimeout(100 * time.Millisecond),
		GoogleURL:   srv.URL,
		MyMemoryURL: srv.URL,
	})

	start := time.Now()
	_, err := tr.Translate(context.Background(), "Arsenal win")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
