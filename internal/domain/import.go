package domain

import "encoding/json"

// ImportItem is one structured record produced by a source reader.
type ImportItem struct {
	ID    string
	Value json.RawMessage
}

// ImportError describes why a single item of a batch was not stored.
type ImportError struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// ImportResult aggregates the outcome of one import batch.
type ImportResult struct {
	BatchID  string        `json:"batch_id"`
	Total    int           `json:"total"`
	Imported int           `json:"imported"`
	Updated  int           `json:"updated"`
	Errors   []ImportError `json:"errors"`
}
