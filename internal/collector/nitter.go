package collector

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/LJTian/goalnews/internal/logger"
)

const (
	nitterTimeout   = 15 * time.Second
	nitterUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// NitterProvider 抓取 Nitter 实例上的时间线页面，不需要任何凭证
type NitterProvider struct {
	baseURL  string
	disabled bool
	timeout  time.Duration
}

// NewNitterProvider baseURL 为空时不可用；disabled 对应 USE_RAPIDAPI=true
func NewNitterProvider(baseURL string, disabled bool) *NitterProvider {
	return &NitterProvider{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		disabled: disabled,
		timeout:  nitterTimeout,
	}
}

func (n *NitterProvider) Name() string {
	return "nitter"
}

func (n *NitterProvider) Available() bool {
	return !n.disabled && n.baseURL != ""
}

func (n *NitterProvider) FetchPosts(ctx context.Context, handle string, count int) ([]NewsItem, error) {
	base, err := url.Parse(n.baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("nitter: invalid base url %q: %w", n.baseURL, ErrProviderUnavailable)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(base.Hostname()),
		colly.UserAgent(nitterUserAgent),
	)
	c.SetRequestTimeout(n.timeout)

	var (
		items     []NewsItem
		statusErr error
	)
	c.OnResponse(func(r *colly.Response) {
		logger.Get().Debug().Str("handle", handle).Int("bytes", len(r.Body)).Msg("nitter timeline fetched")
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			statusErr = fmt.Errorf("nitter: %w %d", ErrUnexpectedStatus, r.StatusCode)
		}
	})
	c.OnHTML("div.timeline", func(e *colly.HTMLElement) {
		items = parseNitterTimeline(e.DOM, handle, count)
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.Visit(n.baseURL + "/" + url.PathEscape(handle)); err != nil {
		if statusErr != nil {
			return nil, statusErr
		}
		return nil, fmt.Errorf("nitter: visit: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("nitter: %w", ErrEmptyResult)
	}
	return items, nil
}

// parseNitterTimeline 置顶推文不算“最近”，跳过
func parseNitterTimeline(timeline *goquery.Selection, handle string, count int) []NewsItem {
	var items []NewsItem
	timeline.Find("div.timeline-item").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(items) >= count {
			return false
		}
		if s.Find(".pinned").Length() > 0 {
			return true
		}
		text := strings.TrimSpace(s.Find(".tweet-content").First().Text())
		if text == "" {
			return true
		}

		href, _ := s.Find("a.tweet-link").First().Attr("href")
		id := statusID(href)
		link := ""
		if id != "" {
			link = fmt.Sprintf(twitterStatusURL, handle, id)
		}
		date, _ := s.Find("span.tweet-date a").First().Attr("title")

		stats := &SocialStats{PostID: id}
		s.Find(".tweet-stat").Each(func(_ int, stat *goquery.Selection) {
			value := parseInt(stat.Text())
			switch {
			case stat.Find(".icon-retweet").Length() > 0:
				stats.RepostCount = value
			case stat.Find(".icon-heart").Length() > 0:
				stats.LikeCount = value
			}
		})

		items = append(items, NewsItem{
			Source:       socialSource(handle),
			Title:        truncateRunes(text, socialTitleLimit),
			Link:         link,
			PublishedAt:  RawTime(date),
			PublishedRaw: date,
			SocialStats:  stats,
		})
		return true
	})
	return items
}

// statusID 从 /user/status/123#m 中取出 123
func statusID(href string) string {
	if i := strings.IndexAny(href, "#?"); i >= 0 {
		href = href[:i]
	}
	dir, id := path.Split(strings.TrimRight(href, "/"))
	if !strings.HasSuffix(dir, "/status/") {
		return ""
	}
	return id
}

// parseInt 解析 "1,234" 这类带分隔符的计数，失败返回 0
func parseInt(s string) int {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	end := 0
	for ; end < len(s); end++ {
		if s[end] < '0' || s[end] > '9' {
			break
		}
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
