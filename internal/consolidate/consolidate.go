// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package consolidate merges record sets from PDFs and the OFAC and UN lists
// into one standardized, de-duplicated table.
package consolidate

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-set/v2"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// SourceKind identifies where a record set came from.
type SourceKind string

const (
	KindPDF  SourceKind = "pdf"
	KindOFAC SourceKind = "ofac"
	KindUN   SourceKind = "un"
)

// Source is one input record set. Name is the uploaded file name for PDFs
// and OFAC_API or UN_API for the lists.
type Source struct {
	Kind    SourceKind
	Name    string
	Records []types.Record
}

// PDFSource builds a Source for records extracted from a PDF file.
func PDFSource(fileName string, records []types.Record) Source {
	return Source{Kind: KindPDF, Name: fileName, Records: records}
}

// OFACSource builds a Source for OFAC delta records.
func OFACSource(records []types.Record) Source {
	return Source{Kind: KindOFAC, Name: types.SourceOFAC, Records: records}
}

// UNSource builds a Source for UN consolidated list records.
func UNSource(records []types.Record) Source {
	return Source{Kind: KindUN, Name: types.SourceUN, Records: records}
}

// CountryNormalizer maps free-text country values to a canonical name.
type CountryNormalizer interface {
	CanonicalName(country string) string
}

// Options tunes Consolidate.
type Options struct {
	// Countries normalizes COUNTRY values when set.
	Countries CountryNormalizer

	// FilesProcessed overrides the count of PDF sources in the summary, for
	// callers that also count files which produced no records.
	FilesProcessed int
}

// Result is the consolidated table and its summary.
type Result struct {
	Records []types.Record
	Summary types.Summary
}

// Consolidate concatenates sources in order, stamps Source_File, assigns and
// standardizes watchlists, standardizes DOB_DJ, normalizes countries, drops
// records whose Name was already seen, and sorts by Name.
func Consolidate(sources []Source, opts Options) Result {
	summary := types.Summary{
		RecordsBySource: map[string]int{},
		ByWatchlist:     map[string]int{},
		ByType:          map[string]int{},
	}

	var all []types.Record
	pdfs := 0
	for _, src := range sources {
		if src.Kind == KindPDF {
			pdfs++
		}
		for _, r := range src.Records {
			if strings.TrimSpace(r.Name) == "" {
				continue
			}
			r.Name = strings.TrimSpace(r.Name)
			r.SourceFile = src.Name
			r.Watchlist = StandardizeWatchlist(WatchlistForSource(src, r.Watchlist))
			r.DOBDJ = StandardizeDOB(r.DOBDJ)
			if opts.Countries != nil && r.Country != "" {
				r.Country = opts.Countries.CanonicalName(r.Country)
			}
			all = append(all, r)
		}
	}

	seen := set.New[string](len(all))
	kept := make([]types.Record, 0, len(all))
	for _, r := range all {
		if seen.Insert(r.Name) {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Name < kept[j].Name })

	sourcesSeen := set.New[string](len(sources))
	for _, r := range kept {
		sourcesSeen.Insert(r.SourceFile)
		summary.RecordsBySource[r.SourceFile]++
		summary.ByWatchlist[r.Watchlist]++
		t := string(r.Type)
		if t == "" {
			t = types.WatchlistUnknown
		}
		summary.ByType[t]++
	}

	summary.TotalRecords = len(kept)
	summary.DuplicatesRemoved = len(all) - len(kept)
	summary.DataSources = sourcesSeen.Size()
	summary.FilesProcessed = pdfs
	if opts.FilesProcessed > 0 {
		summary.FilesProcessed = opts.FilesProcessed
	}

	return Result{Records: kept, Summary: summary}
}

// CountTypes returns the number of individuals and entities in records.
func CountTypes(records []types.Record) (individuals, entities int) {
	for _, r := range records {
		switch r.Type {
		case types.TypeIndividual:
			individuals++
		case types.TypeEntity:
			entities++
		}
	}
	return individuals, entities
}
