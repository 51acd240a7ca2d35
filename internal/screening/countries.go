// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package screening

import (
	"strings"
	"sync"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/biter777/countries"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// CountryMatchThreshold is the minimum Jaro-Winkler similarity for a
	// fuzzy country name match.
	CountryMatchThreshold = 0.85
	countryCacheSize      = 1000
	countryCacheTTL       = time.Hour
)

type countryNameEntry struct {
	lowerName string
	country   countries.CountryCode
}

var (
	countryNames     []countryNameEntry
	countryNamesOnce sync.Once
)

func getCountryNames() []countryNameEntry {
	countryNamesOnce.Do(func() {
		all := countries.All()
		countryNames = make([]countryNameEntry, 0, len(all))
		for _, c := range all {
			if c == countries.Unknown {
				continue
			}
			countryNames = append(countryNames, countryNameEntry{
				lowerName: strings.ToLower(c.Info().Name),
				country:   c,
			})
		}
	})
	return countryNames
}

// Countries resolves free-text country values to ISO 3166-1 codes. Fuzzy
// lookups are cached.
type Countries struct {
	cache *expirable.LRU[string, countries.CountryCode]
}

// NewCountries creates a resolver with its own cache.
func NewCountries() *Countries {
	return &Countries{
		cache: expirable.NewLRU[string, countries.CountryCode](countryCacheSize, nil, countryCacheTTL),
	}
}

// Lookup returns the country identified by input: an exact English name,
// Alpha-2, or Alpha-3 code, or else the closest fuzzy name match.
func (c *Countries) Lookup(input string) (countries.CountryCode, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return countries.Unknown, false
	}
	if code := countries.ByName(input); code != countries.Unknown {
		return code, true
	}

	if cached, ok := c.cache.Get(input); ok {
		return cached, cached != countries.Unknown
	}
	code := fuzzyMatchCountry(input)
	c.cache.Add(input, code)
	return code, code != countries.Unknown
}

// ToAlpha2 returns the Alpha-2 code for input, or input unchanged when it
// cannot be identified.
func (c *Countries) ToAlpha2(input string) string {
	if code, ok := c.Lookup(input); ok {
		return code.Alpha2()
	}
	return strings.TrimSpace(input)
}

// CanonicalName returns the standard English name for input, or input
// unchanged when it cannot be identified.
func (c *Countries) CanonicalName(input string) string {
	if code, ok := c.Lookup(input); ok {
		return code.Info().Name
	}
	return strings.TrimSpace(input)
}

// fuzzyMatchCountry compares input against every country name with
// Jaro-Winkler and returns the best match above the threshold.
func fuzzyMatchCountry(input string) countries.CountryCode {
	inputLower := strings.ToLower(input)
	metric := metrics.NewJaroWinkler()

	best := countries.Unknown
	highest := 0.0
	for _, entry := range getCountryNames() {
		score := strutil.Similarity(inputLower, entry.lowerName, metric)
		if score > highest {
			highest = score
			best = entry.country
		}
	}
	if highest >= CountryMatchThreshold {
		return best
	}
	return countries.Unknown
}
