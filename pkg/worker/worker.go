// Package worker is the background executor behind the client:
// a bounded task queue drained by a fixed pool, plus cron-scheduled
// periodical tasks (e.g. transport flush).
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/stleox/caphub/pkg/config"
	"golang.org/x/sync/errgroup"
)

// ErrQueueFull 表示任务队列已满，提交被拒绝。
var ErrQueueFull = errors.New("caphub: worker queue is full")

// Manager 满足 config.Executor。
type Manager struct {
	queue chan func()

	grp    *errgroup.Group
	grpCtx context.Context
	cancel context.CancelFunc

	cron *cron.Cron

	inflight atomic.Int32

	mu     sync.Mutex
	closed bool
}

func NewManager(queueSize, numWorkers int) *Manager {
	if queueSize <= 0 {
		queueSize = config.DefaultQueueSize
	}
	if numWorkers <= 0 {
		numWorkers = config.DefaultNumWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	grp, grpCtx := errgroup.WithContext(ctx)

	m := &Manager{
		queue:  make(chan func(), queueSize),
		grp:    grp,
		grpCtx: grpCtx,
		cancel: cancel,
		cron:   cron.New(),
	}

	for i := 0; i < numWorkers; i++ {
		grp.Go(m.drain)
	}
	m.cron.Start()
	return m
}

func (m *Manager) drain() error {
	for {
		select {
		case task, ok := <-m.queue:
			if !ok {
				return nil
			}
			m.run(task)
		case <-m.grpCtx.Done():
			// 收尾：排空剩余任务
			for {
				select {
				case task, ok := <-m.queue:
					if !ok {
						return nil
					}
					m.run(task)
				default:
					return nil
				}
			}
		}
	}
}

func (m *Manager) run(task func()) {
	m.inflight.Add(1)
	defer m.inflight.Add(-1)
	task()
}

// Submit 非阻塞入队，队列满或已关闭时拒绝。
func (m *Manager) Submit(task func()) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrQueueFull
	}
	m.mu.Unlock()

	select {
	case m.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Schedule 注册 cron 周期任务，spec 形如 "@every 30s"。
func (m *Manager) Schedule(spec string, task func()) error {
	_, err := m.cron.AddFunc(spec, task)
	if err != nil {
		logrus.WithError(err).Warn("Caphub couldn't add periodical task")
	}
	return err
}

// Pending 返回排队中的任务数，测试用。
func (m *Manager) Pending() int {
	return len(m.queue)
}

// Flush 轮询等待队列与在途任务清空，最多 timeout。
func (m *Manager) Flush(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(m.queue) == 0 && m.inflight.Load() == 0 {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

// Close 最多等待 timeout 让在途任务收尾，随后直接返回。
// 幂等，重复调用无效。
func (m *Manager) Close(timeout time.Duration) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cron.Stop()
	m.cancel()

	done := make(chan struct{})
	go func() {
		_ = m.grp.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		logrus.Warnf("Caphub couldn't drain worker queue within %s", timeout)
	}
}
