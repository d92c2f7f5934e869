package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	defaultGoogleURL   = "https://translate.googleapis.com/translate_a/single"
	defaultMyMemoryURL = "https://api.mymemory.translated.net/get"
	defaultDeepLURL    = "https://api-free.deepl.com/v2/translate"
)

// GoogleTranslator 使用 Google Translate 公开接口（client=gtx，无需密钥）
type GoogleTranslator struct {
	client  *resty.Client
	baseURL string
}

func (g *GoogleTranslator) Name() string { return "google" }

func (g *GoogleTranslator) Translate(ctx context.Context, text string) (string, error) {
	text = prepare(text)
	if text == "" {
		return "", ErrEmptyTranslation
	}
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client": "gtx",
			"sl":     "auto",
			"tl":     "zh-CN",
			"dt":     "t",
			"q":      text,
		}).
		Get(orDefault(g.baseURL, defaultGoogleURL))
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w %d", ErrBadStatus, resp.StatusCode())
	}

	// 响应格式: [[["翻译文本","原文",...],...],...]
	var raw []any
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(raw) == 0 {
		return "", ErrEmptyTranslation
	}
	outer, ok := raw[0].([]any)
	if !ok {
		return "", ErrEmptyTranslation
	}
	var result strings.Builder
	for _, seg := range outer {
		pair, ok := seg.([]any)
		if !ok || len(pair) < 1 {
			continue
		}
		if s, ok := pair[0].(string); ok {
			result.WriteString(s)
		}
	}
	return nonEmpty(result.String())
}

type MyMemoryTranslator struct {
	client  *resty.Client
	baseURL string
}

func (m *MyMemoryTranslator) Name() string { return "mymemory" }

func (m *MyMemoryTranslator) Translate(ctx context.Context, text string) (string, error) {
	text = prepare(text)
	if text == "" {
		return "", ErrEmptyTranslation
	}
	var out struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
	}
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"langpair": sourceLang(text) + "|zh",
			"q":        text,
		}).
		SetResult(&out).
		ForceContentType("application/json").
		Get(orDefault(m.baseURL, defaultMyMemoryURL))
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w %d", ErrBadStatus, resp.StatusCode())
	}
	return nonEmpty(out.ResponseData.TranslatedText)
}

// LibreTranslator 自建或公共的 LibreTranslate 实例
type LibreTranslator struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

func (l *LibreTranslator) Name() string { return "libre" }

func (l *LibreTranslator) Translate(ctx context.Context, text string) (string, error) {
	text = prepare(text)
	if text == "" {
		return "", ErrEmptyTranslation
	}
	body := map[string]string{
		"q":      text,
		"source": "en",
		"target": "zh",
		"format": "text",
	}
	if l.apiKey != "" {
		body["api_key"] = l.apiKey
	}
	var out struct {
		TranslatedText string `json:"translatedText"`
	}
	resp, err := l.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post(strings.TrimRight(l.baseURL, "/") + "/translate")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w %d", ErrBadStatus, resp.StatusCode())
	}
	return nonEmpty(out.TranslatedText)
}

// DeepLTranslator DeepL API（免费版地址），需要 DEEPL_API_KEY
type DeepLTranslator struct {
	client  *resty.Client
	baseURL string
	apiKey  string
}

func (d *DeepLTranslator) Name() string { return "deepl" }

func (d *DeepLTranslator) Translate(ctx context.Context, text string) (string, error) {
	text = prepare(text)
	if text == "" {
		return "", ErrEmptyTranslation
	}
	var out struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "DeepL-Auth-Key "+d.apiKey).
		SetFormData(map[string]string{
			"text":        text,
			"source_lang": "EN",
			"target_lang": "ZH",
		}).
		SetResult(&out).
		Post(orDefault(d.baseURL, defaultDeepLURL))
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w %d", ErrBadStatus, resp.StatusCode())
	}
	if len(out.Translations) == 0 {
		return "", ErrEmptyTranslation
	}
	return nonEmpty(out.Translations[0].Text)
}

func nonEmpty(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyTranslation
	}
	return s, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
