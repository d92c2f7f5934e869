package collector

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Timestamp 是发布时间的二选一表示：解析成功的时间，或无法解析时保留的原始字符串
type Timestamp struct {
	t      time.Time
	raw    string
	parsed bool
}

// ParsedTime 构造已解析的时间
func ParsedTime(t time.Time) Timestamp {
	return Timestamp{t: t.UTC(), parsed: true}
}

// RawTime 构造原样保留的时间字符串
func RawTime(s string) Timestamp {
	return Timestamp{raw: s}
}

func (ts Timestamp) IsParsed() bool {
	return ts.parsed
}

// Time 仅在已解析时返回 true
func (ts Timestamp) Time() (time.Time, bool) {
	return ts.t, ts.parsed
}

// String 返回落盘用的规范形式：已解析的时间统一为 RFC3339（UTC）
func (ts Timestamp) String() string {
	if ts.parsed {
		return ts.t.Format(time.RFC3339)
	}
	return ts.raw
}

// Compare 两边都已解析时按时间比较，否则按规范字符串做字典序比较
func (ts Timestamp) Compare(other Timestamp) int {
	if ts.parsed && other.parsed {
		return ts.t.Compare(other.t)
	}
	return strings.Compare(ts.String(), other.String())
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*ts = ParsedTime(t)
		return nil
	}
	*ts = RawTime(s)
	return nil
}

// SocialStats 只有社交媒体来源的条目才带
type SocialStats struct {
	PostID      string `json:"post_id"`
	RepostCount int    `json:"repost_count"`
	LikeCount   int    `json:"like_count"`
}

// NewsItem 统一采集后的基础结构，RSS 与社交媒体共用
type NewsItem struct {
	Source          string    `json:"source"`
	Title           string    `json:"title"`
	TitleTranslated string    `json:"title_translated"`
	Link            string    `json:"link"`
	PublishedAt     Timestamp `json:"published_at"`
	PublishedRaw    string    `json:"published_raw"`
	IsTransferTopic bool      `json:"is_transfer_topic"`

	*SocialStats
}

// IsSocial 是否来自社交媒体
func (n NewsItem) IsSocial() bool {
	return n.SocialStats != nil
}

// SortByPublished 按发布时间倒序稳定排序，时间相同时保持原有顺序
func SortByPublished(items []NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.Compare(items[j].PublishedAt) > 0
	})
}

// MatchesAnyKeyword 标题（忽略大小写）包含任意一个关键词即命中
func MatchesAnyKeyword(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// truncateRunes 按 rune 截断，避免切坏多字节字符
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
