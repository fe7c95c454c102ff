// Package dedupe provides envelope deduplication using a time-based cache
// to prevent processing duplicate messages within a configurable window.
package dedupe
