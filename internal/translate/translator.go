package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-resty/resty/v2"
)

const (
	maxTextLen    = 500
	clientTimeout = 20 * time.Second
)

var (
	// ErrEmptyTranslation 后端返回了 200 但没有译文
	ErrEmptyTranslation = errors.New("empty translation")
	ErrBadStatus        = errors.New("unexpected status")
)

// Translator 英文 -> 中文的免费翻译后端
type Translator interface {
	Name() string
	Translate(ctx context.Context, text string) (string, error)
}

// Chain 依次尝试多个后端，第一个成功的返回
type Chain []Translator

func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, t := range c {
		names = append(names, t.Name())
	}
	return strings.Join(names, "+")
}

func (c Chain) Translate(ctx context.Context, text string) (string, error) {
	var errs []error
	for _, t := range c {
		out, err := t.Translate(ctx, text)
		if err == nil {
			return out, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
	}
	if len(errs) == 0 {
		return "", ErrEmptyTranslation
	}
	return "", errors.Join(errs...)
}

// FreeOptions 免费翻译后端的可选配置，零值即用公开地址
type FreeOptions struct {
	Client      *resty.Client
	GoogleURL   string
	MyMemoryURL string
	LibreURL    string
	LibreAPIKey string
	DeepLURL    string
	DeepLAPIKey string
}

// NewFreeTranslator 按 TRANSLATOR_TYPE 组装后端；未知类型或 deepl 缺 key 时都退回 google
func NewFreeTranslator(kind string, opts FreeOptions) Translator {
	if opts.Client == nil {
		opts.Client = newClient()
	}
	google := Chain{
		&GoogleTranslator{client: opts.Client, baseURL: opts.GoogleURL},
		&MyMemoryTranslator{client: opts.Client, baseURL: opts.MyMemoryURL},
	}

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "mymemory":
		return &MyMemoryTranslator{client: opts.Client, baseURL: opts.MyMemoryURL}
	case "libre":
		if opts.LibreURL == "" {
			return google
		}
		return &LibreTranslator{client: opts.Client, baseURL: opts.LibreURL, apiKey: opts.LibreAPIKey}
	case "deepl":
		if opts.DeepLAPIKey == "" {
			return google
		}
		return Chain{&DeepLTranslator{client: opts.Client, baseURL: opts.DeepLURL, apiKey: opts.DeepLAPIKey}, google[0]}
	default:
		return google
	}
}

func newClient() *resty.Client {
	return resty.New().
		SetTimeout(clientTimeout).
		SetHeader("User-Agent", "Mozilla/5.0")
}

// prepare 去掉首尾空白，并限制长度
func prepare(text string) string {
	text = strings.TrimSpace(text)
	if rs := []rune(text); len(rs) > maxTextLen {
		text = string(rs[:maxTextLen])
	}
	return text
}

// IsMostlyChinese 已经是中文的标题无需翻译
func IsMostlyChinese(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	var cjk, total int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isCJK(r) {
			cjk++
		}
	}
	if total == 0 {
		return true
	}
	return cjk >= 1 && (cjk*4 >= total || cjk >= 2)
}

func isCJK(r rune) bool {
	if r >= 0x4e00 && r <= 0x9fff {
		return true
	}
	if r >= 0x3400 && r <= 0x4dbf {
		return true
	}
	if r >= 0x3000 && r <= 0x303f {
		return true
	}
	return false
}

func sourceLang(s string) string {
	for _, r := range s {
		if r >= 0x3040 && r <= 0x309f || r >= 0x30a0 && r <= 0x30ff {
			return "ja"
		}
	}
	return "en"
}
