// Package session 保存用户对广告的备注与元数据覆盖，支持 JSON/快照包往返。
//
// 每个会话独立拥有一个 State；导入先整体校验到暂存区，任何错误都不改变当前状态。
// 合并规则：导入中出现的备注整体替换；覆盖按字段替换；从不删除。
package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"admatch/pkg/contract"
)

// LinkField 作为覆盖字段名时替换记录的 Link。
const LinkField = "Link"

// Entry 为单个广告码的会话数据。
type Entry struct {
	Notes    string
	Override map[string]string
}

func (e Entry) clone() Entry {
	out := Entry{Notes: e.Notes}
	if len(e.Override) > 0 {
		out.Override = make(map[string]string, len(e.Override))
		for k, v := range e.Override {
			out.Override[k] = v
		}
	}
	return out
}

// State 为并发安全的会话状态。
type State struct {
	mu      sync.RWMutex
	entries map[contract.AdCode]Entry
}

// NewState 创建空状态。
func NewState() *State {
	return &State{entries: make(map[contract.AdCode]Entry)}
}

// SetNote 设置备注（空串也会保留条目）。
func (s *State) SetNote(code contract.AdCode, text string) error {
	if _, err := contract.ParseCode(string(code)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[code]
	e.Notes = text
	s.entries[code] = e
	return nil
}

// SetOverride 设置单个字段的覆盖值。
func (s *State) SetOverride(code contract.AdCode, field, value string) error {
	if _, err := contract.ParseCode(string(code)); err != nil {
		return err
	}
	field = strings.TrimSpace(field)
	if field == "" {
		return fmt.Errorf("%w: empty override field", contract.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[code]
	if e.Override == nil {
		e.Override = make(map[string]string)
	}
	e.Override[field] = value
	s.entries[code] = e
	return nil
}

// ClearOverride 删除单个字段覆盖；不存在时无操作。
func (s *State) ClearOverride(code contract.AdCode, field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[code]
	if !ok {
		return
	}
	delete(e.Override, field)
	s.entries[code] = e
}

// Entry 返回某个码的条目副本。
func (s *State) Entry(code contract.AdCode) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[code]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Codes 返回所有码（升序）。
func (s *State) Codes() []contract.AdCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]contract.AdCode, 0, len(s.entries))
	for c := range s.entries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len 返回条目数。
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot 深拷贝全部条目。
func (s *State) Snapshot() map[contract.AdCode]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[contract.AdCode]Entry, len(s.entries))
	for c, e := range s.entries {
		out[c] = e.clone()
	}
	return out
}

// Apply 返回应用了覆盖的记录副本与备注；LinkField 覆盖链接。
func (s *State) Apply(rec contract.AdRecord) (contract.AdRecord, string) {
	out := rec.Clone()
	s.mu.RLock()
	e, ok := s.entries[rec.Code]
	s.mu.RUnlock()
	if !ok {
		return out, ""
	}
	for f, v := range e.Override {
		if f == LinkField {
			out.Link = v
			continue
		}
		if out.Fields == nil {
			out.Fields = make(map[string]string)
		}
		out.Fields[f] = v
	}
	return out, e.Notes
}

// staged 为导入暂存：notes 为 nil 表示导入中未出现备注。
type staged struct {
	notes    *string
	override map[string]string
}

// merge 将暂存区合入状态（调用方已完成全部校验）。
func (s *State) merge(in map[contract.AdCode]*staged) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, st := range in {
		e := s.entries[code]
		if st.notes != nil {
			e.Notes = *st.notes
		}
		if len(st.override) > 0 {
			if e.Override == nil {
				e.Override = make(map[string]string, len(st.override))
			}
			for f, v := range st.override {
				e.Override[f] = v
			}
		}
		s.entries[code] = e
	}
}
