// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package un downloads the UN Security Council consolidated sanctions list
// and maps recent listings to canonical records.
package un

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/sanctions-engine/internal/httputil"
	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// cacheFile is where the last downloaded list is kept under dataDir/lists/.
const cacheFile = "un-consolidated.xml"

// ReferenceNumberType labels ID_1 on UN records.
const ReferenceNumberType = "UN Reference Number"

// Client locates and downloads the consolidated list XML.
type Client struct {
	cfg     types.UNConfig
	http    *http.Client
	dataDir string
	now     func() time.Time
}

// NewClient creates a client for cfg. When dataDir is non-empty the raw XML
// of each successful fetch is cached under dataDir/lists/.
func NewClient(cfg types.UNConfig, dataDir string) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if cfg.PageURL == "" {
		cfg.PageURL = types.DefaultUNPageURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = types.BrowserUserAgent
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 1
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		dataDir: dataDir,
		now:     time.Now,
	}
}

// CachePath returns where the raw list XML is cached.
func CachePath(dataDir string) string {
	return filepath.Join(dataDir, "lists", cacheFile)
}

// FindXMLLink fetches the list page and returns the absolute XML URL.
func (c *Client) FindXMLLink(ctx context.Context) (string, error) {
	page, err := httputil.Get(ctx, c.http, c.cfg.PageURL, c.cfg.UserAgent, "text/html", c.cfg.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("fetching UN list page: %w", err)
	}
	return FindXMLLink(bytes.NewReader(page), c.cfg.PageURL)
}

// Fetch downloads the consolidated list XML and returns it with its URL.
func (c *Client) Fetch(ctx context.Context) ([]byte, string, error) {
	link, err := c.FindXMLLink(ctx)
	if err != nil {
		return nil, "", err
	}
	body, err := httputil.Get(ctx, c.http, link, c.cfg.UserAgent, "application/xml", c.cfg.MaxRetries)
	if err != nil {
		return nil, "", fmt.Errorf("downloading UN list: %w", err)
	}
	if c.dataDir != "" {
		if err := httputil.WriteFileAtomic(CachePath(c.dataDir), body); err != nil {
			return nil, "", fmt.Errorf("caching UN list: %w", err)
		}
	}
	return body, link, nil
}

// FetchRecords downloads the list and returns the records listed within the
// configured lookback window.
func (c *Client) FetchRecords(ctx context.Context) ([]types.Record, types.ListSnapshot, error) {
	body, link, err := c.Fetch(ctx)
	if err != nil {
		return nil, types.ListSnapshot{}, err
	}
	result, err := Parse(bytes.NewReader(body), c.cfg.LookbackDays, c.now())
	if err != nil {
		return nil, types.ListSnapshot{}, err
	}
	return result.Records, types.ListSnapshot{
		Source:      types.ListUN,
		URL:         link,
		FetchedAt:   c.now().UTC(),
		GeneratedAt: result.Generated,
		RecordCount: len(result.Records),
	}, nil
}

// Result is a parsed list: its generation time and the recent records.
type Result struct {
	Generated time.Time
	Records   []types.Record
}

type consolidatedList struct {
	DateGenerated string       `xml:"dateGenerated,attr"`
	Individuals   []individual `xml:"INDIVIDUALS>INDIVIDUAL"`
	Entities      []entity     `xml:"ENTITIES>ENTITY"`
}

type valueList struct {
	Values []string `xml:"VALUE"`
}

type alias struct {
	Name    string `xml:"ALIAS_NAME"`
	Quality string `xml:"QUALITY"`
}

type dateOfBirth struct {
	Date string `xml:"DATE"`
	Year string `xml:"YEAR"`
	Note string `xml:"NOTE"`
}

type placeOfBirth struct {
	City    string `xml:"CITY"`
	State   string `xml:"STATE_PROVINCE"`
	Country string `xml:"COUNTRY"`
}

type addressElem struct {
	Street  string `xml:"STREET"`
	City    string `xml:"CITY"`
	State   string `xml:"STATE_PROVINCE"`
	Country string `xml:"COUNTRY"`
	Note    string `xml:"NOTE"`
}

type individual struct {
	FirstName       string         `xml:"FIRST_NAME"`
	SecondName      string         `xml:"SECOND_NAME"`
	ThirdName       string         `xml:"THIRD_NAME"`
	FourthName      string         `xml:"FOURTH_NAME"`
	ReferenceNumber string         `xml:"REFERENCE_NUMBER"`
	ListedOn        string         `xml:"LISTED_ON"`
	Gender          string         `xml:"GENDER"`
	Comments        string         `xml:"COMMENTS1"`
	Designations    []valueList    `xml:"DESIGNATION"`
	Nationalities   []valueList    `xml:"NATIONALITY"`
	Aliases         []alias        `xml:"INDIVIDUAL_ALIAS"`
	DatesOfBirth    []dateOfBirth  `xml:"INDIVIDUAL_DATE_OF_BIRTH"`
	PlacesOfBirth   []placeOfBirth `xml:"INDIVIDUAL_PLACE_OF_BIRTH"`
	Addresses       []addressElem  `xml:"INDIVIDUAL_ADDRESS"`
}

type entity struct {
	FirstName       string        `xml:"FIRST_NAME"`
	ReferenceNumber string        `xml:"REFERENCE_NUMBER"`
	ListedOn        string        `xml:"LISTED_ON"`
	Comments        string        `xml:"COMMENTS1"`
	Aliases         []alias       `xml:"ENTITY_ALIAS"`
	Addresses       []addressElem `xml:"ENTITY_ADDRESS"`
}

// Parse reads the consolidated list and keeps individuals and entities whose
// LISTED_ON date falls within lookbackDays before the list's generation date,
// inclusive. A list without dateGenerated is treated as generated at now.
func Parse(r io.Reader, lookbackDays int, now time.Time) (*Result, error) {
	var list consolidatedList
	if err := xml.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("parsing UN XML: %w", err)
	}

	generated := now.UTC()
	if list.DateGenerated != "" {
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(list.DateGenerated))
		if err != nil {
			return nil, fmt.Errorf("parsing dateGenerated %q: %w", list.DateGenerated, err)
		}
		generated = t.UTC()
	}
	if lookbackDays < 0 {
		lookbackDays = 0
	}

	last := truncateDay(generated)
	first := last.AddDate(0, 0, -lookbackDays)
	inWindow := func(listedOn string) bool {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(listedOn))
		if err != nil {
			return false
		}
		return !d.Before(first) && !d.After(last)
	}

	result := &Result{Generated: generated}
	for _, ind := range list.Individuals {
		if inWindow(ind.ListedOn) {
			result.Records = append(result.Records, ind.record())
		}
	}
	for _, ent := range list.Entities {
		if inWindow(ent.ListedOn) {
			result.Records = append(result.Records, ent.record())
		}
	}
	return result, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (ind individual) record() types.Record {
	var dobs []string
	for _, d := range ind.DatesOfBirth {
		switch {
		case strings.TrimSpace(d.Date) != "":
			dobs = append(dobs, strings.TrimSpace(d.Date))
		case strings.TrimSpace(d.Year) != "":
			dobs = append(dobs, strings.TrimSpace(d.Year))
		case strings.TrimSpace(d.Note) != "":
			dobs = append(dobs, strings.TrimSpace(d.Note))
		}
	}

	var pobs []string
	for _, p := range ind.PlacesOfBirth {
		if s := joinNonEmpty(", ", p.City, p.State, p.Country); s != "" {
			pobs = append(pobs, s)
		}
	}

	nationalities := values(ind.Nationalities)
	addresses, addrCountry := formatAddresses(ind.Addresses, true)

	rec := types.Record{
		Name:          joinNonEmpty(" ", ind.FirstName, ind.SecondName, ind.ThirdName, ind.FourthName),
		Aliases:       strings.Join(formatAliases(ind.Aliases), "; "),
		Type:          types.TypeIndividual,
		DateOfBirth:   strings.Join(dobs, "; "),
		PlaceOfBirth:  strings.Join(pobs, "; "),
		Gender:        strings.TrimSpace(ind.Gender),
		Nationality:   strings.Join(nationalities, "; "),
		ID1:           strings.TrimSpace(ind.ReferenceNumber),
		DateOfListing: formatListed(ind.ListedOn),
		Watchlist:     types.WatchlistUN,
		SourceFile:    types.SourceUN,
	}
	if rec.ID1 != "" {
		rec.IDType1 = ReferenceNumberType
	}
	switch {
	case len(nationalities) > 0:
		rec.Country = nationalities[0]
	case addrCountry != "":
		rec.Country = addrCountry
	}
	if len(ind.DatesOfBirth) > 0 {
		rec.DOBDJ, rec.DOBYear = splitDOB(ind.DatesOfBirth[0])
	}
	rec.OtherInfo = joinNonEmpty("; ",
		strings.Join(values(ind.Designations), "; "),
		strings.Join(addresses, "; "),
		strings.TrimSpace(ind.Comments))
	return rec
}

func (ent entity) record() types.Record {
	addresses, addrCountry := formatAddresses(ent.Addresses, false)
	rec := types.Record{
		Name:          strings.TrimSpace(ent.FirstName),
		Aliases:       strings.Join(formatAliases(ent.Aliases), "; "),
		Type:          types.TypeEntity,
		Country:       addrCountry,
		ID1:           strings.TrimSpace(ent.ReferenceNumber),
		DateOfListing: formatListed(ent.ListedOn),
		Watchlist:     types.WatchlistUN,
		SourceFile:    types.SourceUN,
	}
	if rec.ID1 != "" {
		rec.IDType1 = ReferenceNumberType
	}
	rec.OtherInfo = joinNonEmpty("; ", strings.Join(addresses, "; "), strings.TrimSpace(ent.Comments))
	return rec
}

func formatAliases(aliases []alias) []string {
	var out []string
	for _, a := range aliases {
		n := strings.TrimSpace(a.Name)
		if n == "" {
			continue
		}
		if q := strings.TrimSpace(a.Quality); q != "" {
			n = fmt.Sprintf("%s (%s)", n, q)
		}
		out = append(out, n)
	}
	return out
}

// formatAddresses renders addresses and returns the first address country.
// Individual addresses carry their note in parentheses.
func formatAddresses(addrs []addressElem, withNote bool) ([]string, string) {
	var out []string
	country := ""
	for _, a := range addrs {
		if country == "" {
			country = strings.TrimSpace(a.Country)
		}
		s := joinNonEmpty(", ", a.Street, a.City, a.State, a.Country)
		if s == "" {
			continue
		}
		if note := strings.TrimSpace(a.Note); withNote && note != "" {
			s += " (" + note + ")"
		}
		out = append(out, s)
	}
	return out, country
}

func values(lists []valueList) []string {
	var out []string
	for _, l := range lists {
		for _, v := range l.Values {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func formatListed(listedOn string) string {
	listedOn = strings.TrimSpace(listedOn)
	if t, err := time.Parse("2006-01-02", listedOn); err == nil {
		return t.Format("02/01/2006")
	}
	return listedOn
}

// splitDOB returns the dd/mm/yyyy form and year of a birth date entry.
func splitDOB(d dateOfBirth) (dj, year string) {
	if date := strings.TrimSpace(d.Date); date != "" {
		if t, err := time.Parse("2006-01-02", date); err == nil {
			return t.Format("02/01/2006"), t.Format("2006")
		}
	}
	if y := strings.TrimSpace(d.Year); len(y) == 4 {
		return "", y
	}
	return "", ""
}
