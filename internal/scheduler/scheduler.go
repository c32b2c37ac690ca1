package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job 一次定时任务，返回处理条数
type Job func(ctx context.Context) (int, error)

type Scheduler struct {
	cron    *cron.Cron
	name    string
	job     Job
	timeout time.Duration
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	first  *time.Timer
}

// Option 调度器可选参数
type Option func(*Scheduler)

// WithTimeout 单次执行的超时时间，0 表示不限
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

func New(spec, name string, job Job, log zerolog.Logger, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		name: name,
		job:  job,
		log:  log.With().Str("component", "scheduler").Str("job", name).Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	// 上一轮没跑完时跳过本轮
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}
	s.cron = c
	return s, nil
}

// Start 启动定时任务，startupDelay > 0 时额外延迟执行一次首轮
func (s *Scheduler) Start(startupDelay time.Duration) {
	s.cron.Start()
	if startupDelay <= 0 {
		return
	}
	// 延迟执行首轮，避免和服务刚启动时的请求争抢资源
	s.mu.Lock()
	s.first = time.AfterFunc(startupDelay, s.runOnce)
	s.mu.Unlock()
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.first != nil {
		s.first.Stop()
	}
	s.mu.Unlock()
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	if s.ctx.Err() != nil {
		return
	}
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.log.Info().Msg("job started")
	n, err := s.job(ctx)
	if err != nil {
		s.log.Error().Err(err).Int("processed", n).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	s.log.Info().Int("processed", n).Dur("took", time.Since(start)).Msg("job done")
}
