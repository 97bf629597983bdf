package cron

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_After(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var calls int32
	ok := s.After("refresh", 20*time.Millisecond, func() {
		atomic.AddInt32(&calls, 1)
	})
	assert.True(t, ok)
	assert.True(t, s.Pending("refresh"))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, s.Pending("refresh"))
}

func TestScheduler_CoalescesSameName(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var calls int32
	fn := func() { atomic.AddInt32(&calls, 1) }

	assert.True(t, s.After("refresh", 30*time.Millisecond, fn))
	assert.False(t, s.After("refresh", 30*time.Millisecond, fn))
	assert.True(t, s.After("other", 30*time.Millisecond, fn))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, time.Second, 5*time.Millisecond)

	// 执行完成后可以再次调度
	assert.True(t, s.After("refresh", time.Millisecond, fn))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_Cancel(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var calls int32
	s.After("refresh", 30*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	assert.True(t, s.Cancel("refresh"))
	assert.False(t, s.Cancel("refresh"))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestScheduler_CancelAllKeepsSchedulerUsable(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var calls int32
	fn := func() { atomic.AddInt32(&calls, 1) }
	s.After("a", 30*time.Millisecond, fn)
	s.After("b", 30*time.Millisecond, fn)

	assert.Equal(t, 2, s.CancelAll())

	assert.True(t, s.After("c", time.Millisecond, fn))
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_StopRejectsNewTasks(t *testing.T) {
	s := NewScheduler()

	var calls int32
	s.After("refresh", 20*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })
	s.Stop()

	assert.False(t, s.After("refresh", time.Millisecond, func() { atomic.AddInt32(&calls, 1) }))
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
