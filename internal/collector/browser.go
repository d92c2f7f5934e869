package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/LJTian/goalnews/internal/logger"
)

const (
	browserTimeout        = 30 * time.Second
	defaultProfileURLTmpl = "https://x.com/%s"
)

// BrowserProvider 用 headless Chrome 渲染个人主页后提取帖子，不需要凭证
type BrowserProvider struct {
	profileURL string
	enabled    bool
	timeout    time.Duration

	once          sync.Once
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

// NewBrowserProvider profileURL 是带一个 %s（handle）的地址模板，空则用 x.com
func NewBrowserProvider(profileURL string, enabled bool) *BrowserProvider {
	if profileURL == "" || !strings.Contains(profileURL, "%s") {
		profileURL = defaultProfileURLTmpl
	}
	return &BrowserProvider{profileURL: profileURL, enabled: enabled, timeout: browserTimeout}
}

func (b *BrowserProvider) Name() string {
	return "browser"
}

func (b *BrowserProvider) Available() bool {
	return b.enabled
}

// init 整个进程复用一个 headless 实例
func (b *BrowserProvider) init() {
	b.once.Do(func() {
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), chromedp.DefaultExecAllocatorOptions[:]...)
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
		b.browserCtx, b.cancelAlloc, b.cancelBrowser = browserCtx, cancelAlloc, cancelBrowser
	})
}

// Close 释放浏览器进程
func (b *BrowserProvider) Close() {
	if b.cancelBrowser != nil {
		b.cancelBrowser()
		b.cancelAlloc()
	}
}

func (b *BrowserProvider) FetchPosts(ctx context.Context, handle string, count int) ([]NewsItem, error) {
	b.init()

	// 每个请求一个独立标签页，超时与调用方的 ctx 取较早者
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var raw string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(fmt.Sprintf(b.profileURL, handle)),
		chromedp.WaitVisible(`article`, chromedp.ByQuery),
		chromedp.Evaluate(extractPostsJS(count), &raw),
	)
	if err != nil {
		return nil, fmt.Errorf("browser: %w", err)
	}

	items, err := parseBrowserPosts(raw, handle, count)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("browser: %w", ErrEmptyResult)
	}
	logger.Get().Debug().Str("handle", handle).Int("items", len(items)).Msg("browser timeline rendered")
	return items, nil
}

type browserPost struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
	Pinned    bool   `json:"pinned"`
}

// parseBrowserPosts 解析页面脚本返回的 JSON，置顶帖跳过
func parseBrowserPosts(raw, handle string, count int) ([]NewsItem, error) {
	var posts []browserPost
	if err := json.Unmarshal([]byte(raw), &posts); err != nil {
		return nil, fmt.Errorf("browser: decode posts: %w", err)
	}
	items := make([]NewsItem, 0, count)
	for _, p := range posts {
		if len(items) >= count {
			break
		}
		text := strings.TrimSpace(p.Text)
		if p.Pinned || text == "" {
			continue
		}
		link := p.URL
		if link == "" && p.ID != "" {
			link = fmt.Sprintf(twitterStatusURL, handle, p.ID)
		}
		items = append(items, NewsItem{
			Source:       socialSource(handle),
			Title:        truncateRunes(text, socialTitleLimit),
			Link:         link,
			PublishedAt:  RawTime(p.CreatedAt),
			PublishedRaw: p.CreatedAt,
			SocialStats:  &SocialStats{PostID: p.ID},
		})
	}
	return items, nil
}

// extractPostsJS 在页面中提取帖子，返回 JSON 字符串
func extractPostsJS(limit int) string {
	return fmt.Sprintf(`(function () {
  var out = [];
  var articles = document.querySelectorAll("article");
  for (var i = 0; i < articles.length && out.length < %d + 2; i++) {
    var a = articles[i];
    var textEl = a.querySelector("[data-testid='tweetText']") || a.querySelector(".tweet-content");
    var timeEl = a.querySelector("time");
    var linkEl = timeEl ? timeEl.closest("a") : null;
    var href = linkEl ? linkEl.href : "";
    var m = href.match(/status\/(\d+)/);
    out.push({
      id: m ? m[1] : "",
      text: textEl ? textEl.innerText : "",
      url: href.split("?")[0],
      created_at: timeEl ? (timeEl.getAttribute("datetime") || "") : "",
      pinned: !!a.querySelector("[data-testid='socialContext']") && /pinned|置顶/i.test(a.querySelector("[data-testid='socialContext']").innerText)
    });
  }
  return JSON.stringify(out);
})();`, limit)
}
