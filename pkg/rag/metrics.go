// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rag

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// atomicMax raises v to at least candidate.
func atomicMax(v *atomic.Int64, candidate int64) {
	for {
		current := v.Load()
		if candidate <= current || v.CompareAndSwap(current, candidate) {
			return
		}
	}
}

// atomicMin lowers v to at most candidate.
func atomicMin(v *atomic.Int64, candidate int64) {
	for {
		current := v.Load()
		if candidate >= current || v.CompareAndSwap(current, candidate) {
			return
		}
	}
}

// IndexMetrics counts one document store's indexing work and search
// latencies. Counters are atomic so indexing workers record without
// contending; the mutex guards only the start/end timestamps.
type IndexMetrics struct {
	storeName string

	totalDocs   atomic.Int64
	indexedDocs atomic.Int64
	skippedDocs atomic.Int64
	errorDocs   atomic.Int64

	searchCount       atomic.Int64
	searchLatencySum  atomic.Int64 // nanoseconds
	searchLatencyMax  atomic.Int64
	lastSearchLatency atomic.Int64

	mu        sync.RWMutex
	startTime time.Time
	endTime   time.Time
}

// NewIndexMetrics creates a metrics tracker for one store.
func NewIndexMetrics(storeName string) *IndexMetrics {
	return &IndexMetrics{storeName: storeName}
}

// Reset zeroes everything, for a full re-index.
func (m *IndexMetrics) Reset() {
	m.mu.Lock()
	m.startTime = time.Time{}
	m.endTime = time.Time{}
	m.mu.Unlock()

	m.totalDocs.Store(0)
	m.indexedDocs.Store(0)
	m.skippedDocs.Store(0)
	m.errorDocs.Store(0)
	m.searchCount.Store(0)
	m.searchLatencySum.Store(0)
	m.searchLatencyMax.Store(0)
	m.lastSearchLatency.Store(0)
}

// SetStartTime marks when indexing began.
func (m *IndexMetrics) SetStartTime(t time.Time) {
	m.mu.Lock()
	m.startTime = t
	m.mu.Unlock()
}

// SetEndTime marks when indexing finished.
func (m *IndexMetrics) SetEndTime(t time.Time) {
	m.mu.Lock()
	m.endTime = t
	m.mu.Unlock()
}

// IncrementTotal counts one discovered document.
func (m *IndexMetrics) IncrementTotal() {
	m.totalDocs.Add(1)
}

// IncrementIndexed counts one indexed document.
func (m *IndexMetrics) IncrementIndexed() {
	m.indexedDocs.Add(1)
}

// IncrementSkipped counts one skipped document.
func (m *IndexMetrics) IncrementSkipped() {
	m.skippedDocs.Add(1)
}

// IncrementErrors counts one failed document.
func (m *IndexMetrics) IncrementErrors() {
	m.errorDocs.Add(1)
}

// RecordSearch counts one search with its latency.
func (m *IndexMetrics) RecordSearch(latency time.Duration) {
	latencyNs := latency.Nanoseconds()
	m.searchCount.Add(1)
	m.searchLatencySum.Add(latencyNs)
	m.lastSearchLatency.Store(latencyNs)
	atomicMax(&m.searchLatencyMax, latencyNs)
}

// Snapshot copies all metrics at a point in time. Throughput is
// computed against the end time, or now while indexing still runs.
func (m *IndexMetrics) Snapshot() IndexMetricsSnapshot {
	m.mu.RLock()
	startTime, endTime := m.startTime, m.endTime
	m.mu.RUnlock()

	indexed := m.indexedDocs.Load()
	searchCount := m.searchCount.Load()

	var docsPerSec float64
	if !startTime.IsZero() {
		end := endTime
		if end.IsZero() {
			end = time.Now()
		}
		if elapsed := end.Sub(startTime).Seconds(); elapsed > 0 {
			docsPerSec = float64(indexed) / elapsed
		}
	}

	var avgSearchLatency time.Duration
	if searchCount > 0 {
		avgSearchLatency = time.Duration(m.searchLatencySum.Load() / searchCount)
	}

	return IndexMetricsSnapshot{
		StoreName:         m.storeName,
		TotalDocs:         m.totalDocs.Load(),
		IndexedDocs:       indexed,
		SkippedDocs:       m.skippedDocs.Load(),
		ErrorDocs:         m.errorDocs.Load(),
		DocsPerSecond:     docsPerSec,
		StartTime:         startTime,
		EndTime:           endTime,
		SearchCount:       searchCount,
		AvgSearchLatency:  avgSearchLatency,
		MaxSearchLatency:  time.Duration(m.searchLatencyMax.Load()),
		LastSearchLatency: time.Duration(m.lastSearchLatency.Load()),
	}
}

// IndexMetricsSnapshot is a point-in-time copy of index metrics.
type IndexMetricsSnapshot struct {
	StoreName         string        `json:"store_name"`
	TotalDocs         int64         `json:"total_docs"`
	IndexedDocs       int64         `json:"indexed_docs"`
	SkippedDocs       int64         `json:"skipped_docs"`
	ErrorDocs         int64         `json:"error_docs"`
	DocsPerSecond     float64       `json:"docs_per_second"`
	StartTime         time.Time     `json:"start_time,omitempty"`
	EndTime           time.Time     `json:"end_time,omitempty"`
	SearchCount       int64         `json:"search_count"`
	AvgSearchLatency  time.Duration `json:"avg_search_latency_ns"`
	MaxSearchLatency  time.Duration `json:"max_search_latency_ns"`
	LastSearchLatency time.Duration `json:"last_search_latency_ns"`
}

// SearchMetrics counts a search engine's queries, hit rate, latency
// envelope and which enhancements callers actually use.
type SearchMetrics struct {
	engineName string

	totalSearches  atomic.Int64
	successfulHits atomic.Int64
	emptyResults   atomic.Int64

	latencySum atomic.Int64 // nanoseconds
	latencyMax atomic.Int64
	latencyMin atomic.Int64

	hydeEnabled       atomic.Int64
	rerankEnabled     atomic.Int64
	multiQueryEnabled atomic.Int64
}

// NewSearchMetrics creates a metrics tracker for one engine.
func NewSearchMetrics(engineName string) *SearchMetrics {
	m := &SearchMetrics{engineName: engineName}
	m.latencyMin.Store(math.MaxInt64)
	return m
}

// RecordSearch counts one search, its latency, whether it hit, and the
// enhancements its options enabled.
func (m *SearchMetrics) RecordSearch(latency time.Duration, resultCount int, opts *SearchOptions) {
	latencyNs := latency.Nanoseconds()

	m.totalSearches.Add(1)
	m.latencySum.Add(latencyNs)
	atomicMax(&m.latencyMax, latencyNs)
	atomicMin(&m.latencyMin, latencyNs)

	if resultCount > 0 {
		m.successfulHits.Add(1)
	} else {
		m.emptyResults.Add(1)
	}

	if opts != nil {
		if opts.EnableHyDE {
			m.hydeEnabled.Add(1)
		}
		if opts.EnableRerank {
			m.rerankEnabled.Add(1)
		}
		if opts.EnableMultiQuery {
			m.multiQueryEnabled.Add(1)
		}
	}
}

// Snapshot copies all search metrics at a point in time.
func (m *SearchMetrics) Snapshot() SearchMetricsSnapshot {
	total := m.totalSearches.Load()

	var avgLatency time.Duration
	if total > 0 {
		avgLatency = time.Duration(m.latencySum.Load() / total)
	}

	// Before any search the min sentinel reads as zero.
	latencyMin := m.latencyMin.Load()
	if latencyMin == math.MaxInt64 {
		latencyMin = 0
	}

	return SearchMetricsSnapshot{
		EngineName:      m.engineName,
		TotalSearches:   total,
		SuccessfulHits:  m.successfulHits.Load(),
		EmptyResults:    m.emptyResults.Load(),
		AvgLatency:      avgLatency,
		MaxLatency:      time.Duration(m.latencyMax.Load()),
		MinLatency:      time.Duration(latencyMin),
		HyDEUsage:       m.hydeEnabled.Load(),
		RerankUsage:     m.rerankEnabled.Load(),
		MultiQueryUsage: m.multiQueryEnabled.Load(),
	}
}

// SearchMetricsSnapshot is a point-in-time copy of search metrics.
type SearchMetricsSnapshot struct {
	EngineName      string        `json:"engine_name"`
	TotalSearches   int64         `json:"total_searches"`
	SuccessfulHits  int64         `json:"successful_hits"`
	EmptyResults    int64         `json:"empty_results"`
	AvgLatency      time.Duration `json:"avg_latency_ns"`
	MaxLatency      time.Duration `json:"max_latency_ns"`
	MinLatency      time.Duration `json:"min_latency_ns"`
	HyDEUsage       int64         `json:"hyde_usage"`
	RerankUsage     int64         `json:"rerank_usage"`
	MultiQueryUsage int64         `json:"multi_query_usage"`
}
