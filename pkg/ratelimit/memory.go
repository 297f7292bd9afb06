package ratelimit

import (
	"context"
	"sync"
)

// Memory はプロセス内のmapでカウンタを保持するStore。
// 単一インスタンス構成向け。
type Memory struct {
	mu     sync.Mutex
	counts map[string]uint64
}

// NewMemory は空のMemoryストアを生成する。
func NewMemory() *Memory {
	return &Memory{counts: make(map[string]uint64)}
}

// Increment はキーのカウンタを加算する。
func (m *Memory) Increment(_ context.Context, key string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counts[key]++
	return m.counts[key], nil
}

// ResetAll は既存エントリを削除せずに0へ戻す。
func (m *Memory) ResetAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.counts {
		m.counts[key] = 0
	}
	return nil
}

// Count はキーの現在値を返す。存在しない場合は0。
func (m *Memory) Count(key string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.counts[key]
}

// Close は何もしない。
func (m *Memory) Close() error {
	return nil
}
