package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LJTian/goalnews/internal/logger"
	"github.com/LJTian/goalnews/internal/pipeline"
)

// ErrRunInProgress 上一轮还没结束
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// Runner 一次完整的采集流水线
type Runner interface {
	Run(ctx context.Context) (*pipeline.Report, error)
}

type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	timeout time.Duration

	running atomic.Bool
	wg      sync.WaitGroup

	mu   sync.RWMutex
	last *pipeline.Report
}

func New(spec string, runner Runner, timeout time.Duration) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:    c,
		runner:  runner,
		timeout: timeout,
	}

	_, err := c.AddFunc(spec, func() {
		if err := s.RunOnce(); errors.Is(err, ErrRunInProgress) {
			logger.Get().Warn().Msg("skip scheduled run, previous run still in progress")
		}
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Start 启动定时任务，并立即在后台跑一轮
func (s *Scheduler) Start() {
	s.cron.Start()
	if err := s.Trigger(); errors.Is(err, ErrRunInProgress) {
		logger.Get().Warn().Msg("skip startup run, previous run still in progress")
	}
}

// Stop 停止定时任务并等待正在进行的一轮结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// Trigger 在后台启动一轮；已有一轮在跑时返回 ErrRunInProgress
func (s *Scheduler) Trigger() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.run()
	}()
	return nil
}

// RunOnce 同步执行一轮，供定时任务和命令行使用
func (s *Scheduler) RunOnce() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer s.running.Store(false)
	return s.run()
}

func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// LastReport 最近一次完成的运行结果，尚未运行过时为 nil
func (s *Scheduler) LastReport() *pipeline.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Scheduler) run() error {
	log := logger.Component("scheduler")
	log.Info().Dur("timeout", s.timeout).Msg("start collect job...")

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err := s.runner.Run(ctx)
	if report != nil {
		s.mu.Lock()
		s.last = report
		s.mu.Unlock()
	}
	if err != nil {
		log.Error().Err(err).Msg("collect job failed")
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Warn().Msg("collect job hit the run timeout, snapshot may be partial")
	}
	log.Info().Int("items", report.Items).Msg("collect job done")
	return nil
}
