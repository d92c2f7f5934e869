package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/LJTian/goalnews/internal/logger"
)

type Config struct {
	AppPort       string
	BasicAuthUser string
	BasicAuthPass string
	WebRoot       string
	CronSecret    string

	// 高级改写后端（OpenAI 兼容接口）
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// 免费翻译
	UseFreeTranslator   bool
	TranslatorType      string
	LibreTranslateURL   string
	LibreTranslateKey   string
	DeepLAPIKey         string
	RedisAddr           string
	RedisPassword       string
	TranslationCacheTTL time.Duration

	// 社交媒体
	RapidAPIKey   string
	UseRapidAPI   bool
	RapidAPIMode  string
	NitterBaseURL string
	// 浏览器渲染抓取，需要本机有 Chrome
	BrowserEnabled    bool
	BrowserProfileURL string

	FilterArsenal bool
	SourcesFile   string
	Registry      Registry

	OutputPath string
	PublicDir  string
	S3         S3Config

	CronSpec   string
	RunTimeout time.Duration

	LogLevel  string
	LogOutput string
	LogPretty bool
}

type S3Config struct {
	Bucket    string
	Key       string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// PremiumEnabled 配置了 key 且没有强制使用免费翻译
func (c *Config) PremiumEnabled() bool {
	return c.OpenAIAPIKey != "" && !c.UseFreeTranslator
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "9000")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("TRANSLATOR_TYPE", "google")
	v.SetDefault("TRANSLATION_CACHE_TTL", "168h")
	v.SetDefault("RAPIDAPI_MODE", "auto")
	v.SetDefault("OUTPUT_PATH", "football_news_translated.json")
	v.SetDefault("PUBLIC_DIR", "public")
	v.SetDefault("S3_REGION", "auto")
	v.SetDefault("S3_KEY", "news.json")
	v.SetDefault("CRON_SPEC", "*/30 * * * *")
	v.SetDefault("RUN_TIMEOUT", "10m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_OUTPUT", "stdout")
}

// Load 优先级：环境变量 > .env 文件 > 默认值；SOURCES_FILE 可覆盖来源登记表
func Load() (*Config, error) {
	// .env 不存在是正常情况
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:       v.GetString("APP_PORT"),
		BasicAuthUser: v.GetString("APP_BASIC_USER"),
		BasicAuthPass: v.GetString("APP_BASIC_PASS"),
		WebRoot:       v.GetString("WEB_ROOT"),
		CronSecret:    v.GetString("CRON_SECRET"),

		OpenAIAPIKey:  strings.TrimSpace(v.GetString("OPENAI_API_KEY")),
		OpenAIBaseURL: v.GetString("OPENAI_BASE_URL"),
		OpenAIModel:   v.GetString("OPENAI_MODEL"),

		UseFreeTranslator:   v.GetBool("USE_FREE_TRANSLATOR"),
		TranslatorType:      strings.ToLower(v.GetString("TRANSLATOR_TYPE")),
		LibreTranslateURL:   v.GetString("LIBRETRANSLATE_URL"),
		LibreTranslateKey:   v.GetString("LIBRETRANSLATE_API_KEY"),
		DeepLAPIKey:         v.GetString("DEEPL_API_KEY"),
		RedisAddr:           v.GetString("REDIS_ADDR"),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		TranslationCacheTTL: v.GetDuration("TRANSLATION_CACHE_TTL"),

		RapidAPIKey:   strings.TrimSpace(v.GetString("RAPIDAPI_KEY")),
		UseRapidAPI:   v.GetBool("USE_RAPIDAPI"),
		RapidAPIMode:  strings.ToLower(v.GetString("RAPIDAPI_MODE")),
		NitterBaseURL: v.GetString("NITTER_BASE_URL"),

		BrowserEnabled:    v.GetBool("BROWSER_ENABLED"),
		BrowserProfileURL: v.GetString("BROWSER_PROFILE_URL"),

		FilterArsenal: v.GetBool("FILTER_ARSENAL"),
		SourcesFile:   v.GetString("SOURCES_FILE"),

		OutputPath: v.GetString("OUTPUT_PATH"),
		PublicDir:  v.GetString("PUBLIC_DIR"),
		S3: S3Config{
			Bucket:    v.GetString("S3_BUCKET"),
			Key:       v.GetString("S3_KEY"),
			Endpoint:  v.GetString("S3_ENDPOINT"),
			Region:    v.GetString("S3_REGION"),
			AccessKey: v.GetString("S3_ACCESS_KEY"),
			SecretKey: v.GetString("S3_SECRET_KEY"),
		},

		CronSpec:   v.GetString("CRON_SPEC"),
		RunTimeout: v.GetDuration("RUN_TIMEOUT"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogOutput: v.GetString("LOG_OUTPUT"),
		LogPretty: v.GetBool("LOG_PRETTY"),
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}

	reg, err := LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	cfg.Registry = reg
	return cfg, nil
}

// LogConfig 转成 logger 的配置
func (c *Config) LogConfig() logger.Config {
	return logger.Config{Level: c.LogLevel, Output: c.LogOutput, Pretty: c.LogPretty}
}
