// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ListSource names an external sanctions list.
type ListSource string

const (
	ListOFAC ListSource = "OFAC"
	ListUN   ListSource = "UN"
)

// ListSnapshot records one fetch of an external list.
type ListSnapshot struct {
	Source      ListSource `json:"source" yaml:"source"`
	URL         string     `json:"url" yaml:"url"`
	FetchedAt   time.Time  `json:"fetched_at" yaml:"fetched_at"`
	GeneratedAt time.Time  `json:"generated_at,omitzero" yaml:"generated_at,omitempty"`
	RecordCount int        `json:"record_count" yaml:"record_count"`
}

// Summary describes a consolidated record set.
type Summary struct {
	TotalRecords      int            `json:"total_records" yaml:"total_records"`
	FilesProcessed    int            `json:"files_processed" yaml:"files_processed"`
	DuplicatesRemoved int            `json:"duplicates_removed" yaml:"duplicates_removed"`
	DataSources       int            `json:"data_sources" yaml:"data_sources"`
	RecordsBySource   map[string]int `json:"records_by_source" yaml:"records_by_source"`
	ByWatchlist       map[string]int `json:"by_watchlist" yaml:"by_watchlist"`
	ByType            map[string]int `json:"by_type" yaml:"by_type"`
}

// FileFailure records why one input file was dropped from a batch.
type FileFailure struct {
	FileName string `json:"file_name" yaml:"file_name"`
	Stage    string `json:"stage" yaml:"stage"`
	Error    string `json:"error" yaml:"error"`
}

// BatchRun is a persisted batch processing run.
type BatchRun struct {
	ID         string        `json:"id" yaml:"id"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Summary    Summary       `json:"summary" yaml:"summary"`
	Failures   []FileFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Match is a screening hit of a subject record against a listed record.
type Match struct {
	Subject      Record  `json:"subject" yaml:"subject"`
	Listed       Record  `json:"listed" yaml:"listed"`
	Score        float64 `json:"score" yaml:"score"`
	MatchedOn    string  `json:"matched_on" yaml:"matched_on"`
	CountryMatch bool    `json:"country_match" yaml:"country_match"`
}
