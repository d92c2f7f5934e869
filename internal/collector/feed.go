package collector

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
)

const (
	feedClientTimeout = 20 * time.Second
	untitled          = "无标题"
)

// pubDate 的 RFC-822 写法：数字时区与时区缩写，日期可能是一位数
var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// FeedSource 一个 RSS/Atom 源
type FeedSource struct {
	Name string
	URL  string
}

// FeedNormalizer 下载并解析一个订阅源，转换成统一的 NewsItem
type FeedNormalizer struct {
	client *resty.Client
}

func NewFeedNormalizer(client *resty.Client) *FeedNormalizer {
	if client == nil {
		client = resty.New().
			SetTimeout(feedClientTimeout).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second).
			SetHeader("User-Agent", "GoalNewsBot/1.0")
	}
	return &FeedNormalizer{client: client}
}

// Normalize 抓取单个源；任何错误都只影响这一个源
func (n *FeedNormalizer) Normalize(ctx context.Context, src FeedSource) ([]NewsItem, error) {
	resp, err := n.client.R().SetContext(ctx).Get(src.URL)
	if err != nil {
		return nil, fmt.Errorf("feed %s: fetch: %w", src.Name, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("feed %s: %w %d", src.Name, ErrUnexpectedStatus, resp.StatusCode())
	}
	return ParseFeed(resp.Body(), src.Name)
}

// ParseFeed 解析订阅源内容；同样的输入总是得到同样的输出
func ParseFeed(body []byte, label string) ([]NewsItem, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("feed %s: parse: %w", label, err)
	}
	items := make([]NewsItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}
		items = append(items, normalizeEntry(entry, label))
	}
	return items, nil
}

func normalizeEntry(entry *gofeed.Item, label string) NewsItem {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		title = untitled
	}
	return NewsItem{
		Source:       label,
		Title:        title,
		Link:         strings.TrimSpace(entry.Link),
		PublishedAt:  entryTimestamp(entry),
		PublishedRaw: entry.Published,
	}
}

// entryTimestamp 优先用解析好的时间，其次尝试 RFC-822 格式，最后保留原始字符串
func entryTimestamp(entry *gofeed.Item) Timestamp {
	if entry.PublishedParsed != nil {
		return ParsedTime(*entry.PublishedParsed)
	}
	raw := strings.TrimSpace(entry.Published)
	for _, layout := range feedDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return ParsedTime(t)
		}
	}
	return RawTime(entry.Published)
}
