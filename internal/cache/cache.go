// Package cache keeps derived ledger views, such as monthly reports, in
// memory between requests.
package cache

import (
	"fmt"
	"sync"
	"time"

	"presupuesto/internal/core"
	applog "presupuesto/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// ReportCache memoizes monthly reports per ledger version. A mutation bumps
// the version, so stale reports are never served and simply age out.
type ReportCache struct {
	lru *LRUCache[core.MonthOverview]
}

func NewReportCache(maxSize int, ttl time.Duration) *ReportCache {
	return &ReportCache{lru: NewLRUCache[core.MonthOverview](maxSize, ttl)}
}

// ReportKey identifies the report of year/month computed at version.
func ReportKey(year, month int, version uint64) string {
	return fmt.Sprintf("%04d-%02d@%d", year, month, version)
}

// GetOrCompute returns the cached report or computes and stores it.
// The boolean reports a cache hit.
func (c *ReportCache) GetOrCompute(year, month int, version uint64, compute func() core.MonthOverview) (core.MonthOverview, bool) {
	key := ReportKey(year, month, version)
	if ov, ok := c.lru.Get(key); ok {
		return ov, true
	}
	ov := compute()
	c.lru.Set(key, ov)
	return ov, false
}

func (c *ReportCache) CleanExpired() int { return c.lru.CleanExpired() }

func (c *ReportCache) Stats() Stats { return c.lru.Stats() }

// Manager handles cache lifecycle and cleanup
type Manager struct {
	mu          sync.Mutex
	caches      []Cleaner
	logger      *applog.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

func NewManager(logger *applog.Logger) *Manager {
	if logger == nil {
		logger = applog.Default(applog.ComponentCache)
	}
	return &Manager{
		logger:      logger.WithComponent(applog.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, cache)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanNow(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "count", n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// CleanNow runs one cleanup pass and returns how many entries were removed.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop gracefully stops the cleanup routine
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return
	}
	select {
	case <-m.stopCleanup:
	default:
		close(m.stopCleanup)
	}
	<-m.cleanupDone
}
