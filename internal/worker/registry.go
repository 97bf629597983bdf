package worker

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

// Kind 被轮询实体的类型
type Kind string

const (
	KindAnalysis Kind = "analysis"
	KindFixJob   Kind = "fixjob"
)

// Key (kind, id)，同一个 key 最多只有一个活动任务
type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string {
	return string(k.Kind) + ":" + k.ID
}

// Task 在独立 goroutine 中运行，ctx 在 Stop/StopAll 时取消
type Task func(ctx context.Context, h *Handle)

// Handle 一个活动轮询任务
type Handle struct {
	Key        Key
	CreatedAt  time.Time
	Generation uint64

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	registry *Registry
}

// Live 任务仍然注册且未被取消。写入 Store 之前必须检查，
// 避免已停止的任务把迟到的响应写回去。
func (h *Handle) Live() bool {
	return h.ctx.Err() == nil && h.registry.isCurrent(h)
}

// Apply 任务仍然有效时执行 fn 并返回 true。检查和 fn 之间不会插入 Stop：
// Stop 返回之后该任务不会再写入。fn 里不能调用 Registry 的方法。
func (h *Handle) Apply(fn func()) bool {
	r := h.registry
	r.applyMu.RLock()
	defer r.applyMu.RUnlock()
	if !h.Live() {
		return false
	}
	fn()
	return true
}

// Release 任务主动注销（终态或失败），可重复调用
func (h *Handle) Release() {
	h.registry.release(h)
}

// Done 任务 goroutine 退出后关闭
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Registry 活动轮询任务的集合
type Registry struct {
	mu         sync.Mutex
	handles    map[Key]*Handle
	generation uint64
	wg         sync.WaitGroup

	// applyMu 读锁由 Apply 持有，移除任务时持写锁
	applyMu sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[Key]*Handle),
	}
}

// Start 幂等：key 已有任务时直接返回 false，不会创建第二个
func (r *Registry) Start(key Key, task Task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[key]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.generation++
	h := &Handle{
		Key:        key,
		CreatedAt:  time.Now(),
		Generation: r.generation,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		registry:   r,
	}
	r.handles[key] = h

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(h.done)
		defer h.Release()
		task(ctx, h)
	}()

	return true
}

// Stop 取消并移除任务，不存在时无操作
func (r *Registry) Stop(key Key) bool {
	r.applyMu.Lock()
	r.mu.Lock()
	h, ok := r.handles[key]
	if ok {
		delete(r.handles, key)
	}
	r.mu.Unlock()
	r.applyMu.Unlock()

	if ok {
		h.cancel()
	}
	return ok
}

// StopAll 取消所有任务，离开视图时调用
func (r *Registry) StopAll() int {
	r.applyMu.Lock()
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[Key]*Handle)
	r.mu.Unlock()
	r.applyMu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	if len(handles) > 0 {
		log.Printf("Poller registry: stopped %d task(s)", len(handles))
	}
	return len(handles)
}

// Wait 等待所有任务 goroutine 退出
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Active key 是否有活动任务
func (r *Registry) Active(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[key]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Keys 返回排序后的活动 key
func (r *Registry) Keys() []Key {
	r.mu.Lock()
	keys := make([]Key, 0, len(r.handles))
	for k := range r.handles {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

func (r *Registry) isCurrent(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.handles[h.Key]
	return ok && cur == h
}

// release 只移除自己，key 已被新任务占用时不动
func (r *Registry) release(h *Handle) {
	r.applyMu.Lock()
	r.mu.Lock()
	if cur, ok := r.handles[h.Key]; ok && cur == h {
		delete(r.handles, h.Key)
	}
	r.mu.Unlock()
	r.applyMu.Unlock()
	h.cancel()
}
