// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package screening cross-references extracted records against the OFAC
// and UN lists with fuzzy name matching.
package screening

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// DefaultThreshold is used when the configured threshold is not positive.
const DefaultThreshold = 0.88

// Screener matches subject records against listed records.
type Screener struct {
	threshold float64
	countries *Countries
	cache     *expirable.LRU[string, []types.Match]
	metric    *metrics.JaroWinkler
}

// New creates a Screener from cfg. countries may be nil.
func New(cfg types.ScreeningConfig, c *Countries) *Screener {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 4096
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	if c == nil {
		c = NewCountries()
	}
	return &Screener{
		threshold: threshold,
		countries: c,
		cache:     expirable.NewLRU[string, []types.Match](size, nil, ttl),
		metric:    metrics.NewJaroWinkler(),
	}
}

// Threshold returns the minimum score that counts as a match.
func (s *Screener) Threshold() float64 { return s.threshold }

// Similarity returns the Jaro-Winkler similarity of two normalized names.
func (s *Screener) Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return strutil.Similarity(a, b, s.metric)
}

type candidate struct {
	record types.Record
	names  []string // normalized; index 0 is the primary name
	alpha2 string
}

func (s *Screener) prepare(r types.Record) candidate {
	c := candidate{record: r, alpha2: s.countryCode(r)}
	if n := NormalizeName(r.Name); n != "" {
		c.names = append(c.names, n)
	}
	for _, a := range r.AliasList() {
		if n := NormalizeName(a); n != "" {
			c.names = append(c.names, n)
		}
	}
	return c
}

func (s *Screener) countryCode(r types.Record) string {
	country := r.Country
	if country == "" {
		country = r.Nationality
	}
	if country == "" {
		return ""
	}
	code, ok := s.countries.Lookup(country)
	if !ok {
		return ""
	}
	return code.Alpha2()
}

// Screen returns every (subject, listed) pair scoring at or above the
// threshold, sorted by score descending. listKey identifies the listed set
// (for example the snapshot times); results are cached per subject and key.
func (s *Screener) Screen(subjects, listed []types.Record, listKey string) []types.Match {
	var prepared []candidate
	var matches []types.Match

	for _, subj := range subjects {
		key := cacheKey(subj, listKey)
		if cached, ok := s.cache.Get(key); ok {
			matches = append(matches, cached...)
			continue
		}
		if prepared == nil {
			prepared = make([]candidate, 0, len(listed))
			for _, l := range listed {
				prepared = append(prepared, s.prepare(l))
			}
		}
		found := s.screenOne(s.prepare(subj), prepared)
		s.cache.Add(key, found)
		matches = append(matches, found...)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

func (s *Screener) screenOne(subj candidate, listed []candidate) []types.Match {
	var out []types.Match
	for _, l := range listed {
		best, on := 0.0, ""
		for i, sn := range subj.names {
			for j, ln := range l.names {
				score := s.Similarity(sn, ln)
				if score > best {
					best = score
					on = "alias"
					if i == 0 && j == 0 {
						on = "name"
					}
				}
			}
		}
		if best < s.threshold {
			continue
		}
		out = append(out, types.Match{
			Subject:      subj.record,
			Listed:       l.record,
			Score:        best,
			MatchedOn:    on,
			CountryMatch: subj.alpha2 != "" && subj.alpha2 == l.alpha2,
		})
	}
	return out
}

func cacheKey(r types.Record, listKey string) string {
	h := sha256.New()
	for _, v := range r.Values() {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	h.Write([]byte(listKey))
	return fmt.Sprintf("%x", h.Sum(nil))
}
