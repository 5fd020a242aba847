// Package store keeps the SQLite ledger of file imports.
package store

import "time"

// Import is one resolved picker request.
type Import struct {
	ID           string
	RequestToken int
	ContentRef   string
	DisplayName  string
	FallbackName bool
	Path         string
	Size         int64
	Digest       []byte
	Outcome      string
	Error        string
	CreatedAt    time.Time
}

// Stats summarizes the ledger.
type Stats struct {
	Total         int64
	ByOutcome     map[string]int64
	ImportedBytes int64
	Last          time.Time
}
