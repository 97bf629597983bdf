package store

import (
	"sync"
	"time"

	"github.com/qs3c/devpulse_tracker/internal/model"
)

type ChangeType string

const (
	ChangeReplaceAll  ChangeType = "replace_all"
	ChangePlaceholder ChangeType = "placeholder"
	ChangePatch       ChangeType = "patch"
	ChangeReplace     ChangeType = "replace"
	ChangeFixJob      ChangeType = "fix_job"
)

// Change 一次写入产生的变更事件，Record 是写入后的副本
type Change struct {
	Type       ChangeType
	AnalysisID string
	JobID      string
	Record     *model.Analysis
	Count      int // ChangeReplaceAll 时的记录数
	At         time.Time
}

// Listener 在写锁之外按写入顺序被调用，不能在回调里写 Store
type Listener func(Change)

// Store 分析记录的规范读模型。
// 新提交插在头部，列表拉取整体替换；每次写入对单条记录是原子的，
// 同一 id 的写入按调用顺序生效。
type Store struct {
	mu      sync.RWMutex
	records []*model.Analysis

	notifyMu  sync.Mutex
	lmu       sync.RWMutex
	listeners map[int]Listener
	nextID    int

	now func() time.Time
}

func New() *Store {
	return &Store{
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
}

// Subscribe 注册变更监听，返回取消函数
func (s *Store) Subscribe(l Listener) func() {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

// write 串行化写入和通知，保证监听者看到的顺序与写入顺序一致
func (s *Store) write(fn func() *Change) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	change := fn()
	s.mu.Unlock()

	if change == nil {
		return false
	}
	change.At = s.now()

	s.lmu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.lmu.RUnlock()

	for _, l := range listeners {
		l(*change)
	}
	return true
}

func (s *Store) indexOf(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func snapshot(r *model.Analysis) *model.Analysis {
	c := r.Clone()
	return &c
}

// ReplaceAll 列表拉取结果整体替换
func (s *Store) ReplaceAll(records []model.Analysis) {
	s.write(func() *Change {
		next := make([]*model.Analysis, 0, len(records))
		for i := range records {
			r := records[i].Clone()
			r.Provisional = false
			next = append(next, &r)
		}
		s.records = next
		return &Change{Type: ChangeReplaceAll, Count: len(next)}
	})
}

// UpsertPlaceholder 在头部插入占位记录；记录已存在时保留服务端数据，返回 false
func (s *Store) UpsertPlaceholder(record model.Analysis) bool {
	return s.write(func() *Change {
		if s.indexOf(record.ID) >= 0 {
			return nil
		}
		r := record.Clone()
		r.Provisional = true
		s.records = append([]*model.Analysis{&r}, s.records...)
		return &Change{Type: ChangePlaceholder, AnalysisID: r.ID, Record: snapshot(&r)}
	})
}

// Patch 浅合并部分字段；记录不存在（可能已被整体刷新替换）时静默忽略
func (s *Store) Patch(id string, patch model.AnalysisPatch) bool {
	return s.write(func() *Change {
		i := s.indexOf(id)
		if i < 0 {
			return nil
		}
		r := s.records[i]
		patch.Apply(r)
		r.Provisional = false
		return &Change{Type: ChangePatch, AnalysisID: id, Record: snapshot(r)}
	})
}

// Replace 用权威快照替换整条记录。
// 快照不带修复任务列表时沿用已有列表。
func (s *Store) Replace(id string, full model.Analysis) bool {
	return s.write(func() *Change {
		i := s.indexOf(id)
		if i < 0 {
			return nil
		}
		r := full.Clone()
		r.ID = id
		r.Provisional = false
		if r.Fixes == nil && s.records[i].Fixes != nil {
			prev := s.records[i].Clone()
			r.Fixes = prev.Fixes
			r.RecomputeFixFlags()
		}
		s.records[i] = &r
		return &Change{Type: ChangeReplace, AnalysisID: id, Record: snapshot(&r)}
	})
}

// PatchFixJob 合并到嵌套的修复任务；任务不存在时追加
func (s *Store) PatchFixJob(analysisID, jobID string, patch model.FixJobPatch) bool {
	return s.write(func() *Change {
		i := s.indexOf(analysisID)
		if i < 0 {
			return nil
		}
		r := s.records[i]
		j := r.FindFix(jobID)
		if j < 0 {
			r.Fixes = append(r.Fixes, model.FixJob{
				JobID:      jobID,
				AnalysisID: analysisID,
				CreatedAt:  s.now(),
			})
			j = len(r.Fixes) - 1
		}
		patch.Apply(&r.Fixes[j])
		r.Fixes[j].Provisional = false
		if patch.IsTerminal() && r.Fixes[j].CompletedAt == nil {
			t := s.now()
			r.Fixes[j].CompletedAt = &t
		}
		r.RecomputeFixFlags()
		return &Change{Type: ChangeFixJob, AnalysisID: analysisID, JobID: jobID, Record: snapshot(r)}
	})
}

// AppendFixJobPlaceholder 触发修复后插入占位任务
func (s *Store) AppendFixJobPlaceholder(analysisID string, job model.FixJob) bool {
	return s.write(func() *Change {
		i := s.indexOf(analysisID)
		if i < 0 {
			return nil
		}
		r := s.records[i]
		if r.FindFix(job.JobID) >= 0 {
			return nil
		}
		j := job.Clone()
		j.AnalysisID = analysisID
		j.Provisional = true
		r.Fixes = append(r.Fixes, j)
		r.RecomputeFixFlags()
		return &Change{Type: ChangeFixJob, AnalysisID: analysisID, JobID: j.JobID, Record: snapshot(r)}
	})
}

// Get 返回记录副本
func (s *Store) Get(id string) (model.Analysis, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Analysis{}, false
	}
	return s.records[i].Clone(), true
}

// FixJob 返回嵌套修复任务副本
func (s *Store) FixJob(analysisID, jobID string) (model.FixJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(analysisID)
	if i < 0 {
		return model.FixJob{}, false
	}
	j := s.records[i].FindFix(jobID)
	if j < 0 {
		return model.FixJob{}, false
	}
	return s.records[i].Fixes[j].Clone(), true
}

// List 按顺序返回所有记录的副本
func (s *Store) List() []model.Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Analysis, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
