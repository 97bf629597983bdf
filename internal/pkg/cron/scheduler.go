package cron

import (
	"log"
	"sync"
	"time"
)

// Scheduler 延迟一次性任务。同名任务在等待期间只保留一个，
// 多个修复任务相继结束时只触发一次整体刷新。
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
	}
}

// After 在 d 之后执行 fn；同名任务已在等待时返回 false
func (s *Scheduler) After(name string, d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}
	if _, ok := s.timers[name]; ok {
		return false
	}

	var timer *time.Timer
	s.wg.Add(1)
	timer = time.AfterFunc(d, func() {
		defer s.wg.Done()

		s.mu.Lock()
		cur, ok := s.timers[name]
		if !ok || cur != timer {
			s.mu.Unlock()
			return
		}
		delete(s.timers, name)
		s.mu.Unlock()

		fn()
	})
	s.timers[name] = timer
	return true
}

// Pending 同名任务是否在等待
func (s *Scheduler) Pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[name]
	return ok
}

// Cancel 取消等待中的同名任务
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[name]
	if !ok {
		return false
	}
	delete(s.timers, name)
	if timer.Stop() {
		s.wg.Done()
	}
	return true
}

// CancelAll 取消所有等待中的任务，调度器仍可继续使用
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for name, timer := range s.timers {
		delete(s.timers, name)
		if timer.Stop() {
			s.wg.Done()
		}
		n++
	}
	return n
}

// Stop 取消所有任务并拒绝新任务，等待正在执行的任务结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	if n := s.CancelAll(); n > 0 {
		log.Printf("Scheduler stopped, %d pending task(s) cancelled", n)
	}
	s.wg.Wait()
}
