// Package cache holds the in-process caches used during a resolution burst.
package cache

// Stats reports cache performance counters
type Stats struct {
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}
