package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/goalnews/internal/collector"
	"github.com/LJTian/goalnews/internal/logger"
	"github.com/LJTian/goalnews/internal/pipeline"
	"github.com/LJTian/goalnews/internal/scheduler"
	"github.com/LJTian/goalnews/internal/snapshot"
)

// Trigger 手动触发一轮采集
type Trigger interface {
	Trigger() error
	Running() bool
	LastReport() *pipeline.Report
}

type Server struct {
	snapshotPath string
	trigger      Trigger
	cronSecret   string
	now          func() time.Time
}

// NewServer cronSecret 为空时不注册手动触发接口
func NewServer(snapshotPath string, trigger Trigger, cronSecret string) *Server {
	return &Server{
		snapshotPath: snapshotPath,
		trigger:      trigger,
		cronSecret:   cronSecret,
		now:          time.Now,
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news", s.listNews)
		if s.trigger != nil && s.cronSecret != "" {
			v1.GET("/cron/fetch-news", s.fetchNews)
			v1.POST("/cron/fetch-news", s.fetchNews)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if s.trigger != nil {
		resp["running"] = s.trigger.Running()
		if last := s.trigger.LastReport(); last != nil {
			resp["last_run"] = gin.H{
				"started_at":         last.StartedAt.UTC().Format(time.RFC3339),
				"items":              last.Items,
				"all_sources_failed": last.AllSourcesFailed(),
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listNews(c *gin.Context) {
	items, err := snapshot.Load(s.snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		items = s.placeholderItems()
	} else if err != nil {
		logger.Get().Error().Err(err).Str("path", s.snapshotPath).Msg("load snapshot failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load news"})
		return
	}

	filter := strings.ToLower(c.DefaultQuery("filter", "all"))
	query := strings.ToLower(strings.TrimSpace(c.Query("q")))

	out := make([]collector.NewsItem, 0, len(items))
	for _, it := range items {
		if matchFilter(it, filter) && matchQuery(it, query) {
			out = append(out, it)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) fetchNews(c *gin.Context) {
	want := "Bearer " + s.cronSecret
	if subtle.ConstantTimeCompare([]byte(c.GetHeader("Authorization")), []byte(want)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if err := s.trigger.Trigger(); err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "news fetch started"})
}

// placeholderItems 还没有快照时返回的示例数据
func (s *Server) placeholderItems() []collector.NewsItem {
	now := collector.ParsedTime(s.now())
	return []collector.NewsItem{
		{
			Source:          "GoalNews",
			Title:           "Welcome to GoalNews",
			TitleTranslated: "欢迎使用 GoalNews",
			PublishedAt:     now,
		},
		{
			Source:          "GoalNews",
			Title:           "News data will be updated automatically",
			TitleTranslated: "新闻数据将自动更新",
			PublishedAt:     now,
		},
	}
}

func matchFilter(it collector.NewsItem, filter string) bool {
	switch filter {
	case "transfer":
		return it.IsTransferTopic
	case "twitter":
		return it.IsSocial()
	case "rss":
		return !it.IsSocial()
	default:
		return true
	}
}

func matchQuery(it collector.NewsItem, q string) bool {
	if q == "" {
		return true
	}
	for _, field := range []string{it.Title, it.TitleTranslated, it.Source} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
