// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package un

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

func openFixture(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Open("testdata/consolidated.xml")
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestParse(t *testing.T) {
	result, err := Parse(openFixture(t), 1, time.Now())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 7, 30, 23, 0, 5, 333000000, time.UTC), result.Generated)
	require.Len(t, result.Records, 3)

	kim := result.Records[0]
	assert.Equal(t, "KIM SONG IL", kim.Name)
	assert.Equal(t, types.TypeIndividual, kim.Type)
	assert.Equal(t, "Kim Song-il (Good); Song Il Kim", kim.Aliases)
	assert.Equal(t, "Male", kim.Gender)
	assert.Equal(t, "Democratic People's Republic of Korea", kim.Nationality)
	assert.Equal(t, "Democratic People's Republic of Korea", kim.Country)
	assert.Equal(t, "1975-03-12", kim.DateOfBirth)
	assert.Equal(t, "12/03/1975", kim.DOBDJ)
	assert.Equal(t, "1975", kim.DOBYear)
	assert.Equal(t, "Hamhung, Democratic People's Republic of Korea", kim.PlaceOfBirth)
	assert.Equal(t, "KPi.099", kim.ID1)
	assert.Equal(t, ReferenceNumberType, kim.IDType1)
	assert.Equal(t, "30/07/2025", kim.DateOfListing)
	assert.Equal(t, types.WatchlistUN, kim.Watchlist)
	assert.Equal(t, types.SourceUN, kim.SourceFile)
	assert.Equal(t,
		"Representative; Banker; Kumsong Street, Pyongyang, Democratic People's Republic of Korea (previous); Operates as a procurement agent.",
		kim.OtherInfo)

	abdul := result.Records[1]
	assert.Equal(t, "ABDUL RAHMAN", abdul.Name)
	assert.Equal(t, "Afghanistan", abdul.Country, "address country when no nationality")
	assert.Equal(t, "1968", abdul.DateOfBirth)
	assert.Empty(t, abdul.DOBDJ)
	assert.Equal(t, "1968", abdul.DOBYear)
	assert.Equal(t, "29/07/2025", abdul.DateOfListing)

	green := result.Records[2]
	assert.Equal(t, "GREEN PINE ASSOCIATED CORPORATION", green.Name)
	assert.Equal(t, types.TypeEntity, green.Type)
	assert.Equal(t, "Chongsong Yonhap (a.k.a.)", green.Aliases)
	assert.Equal(t, "Democratic People's Republic of Korea", green.Country)
	assert.Equal(t, "KPe.031", green.ID1)
	assert.Equal(t, "Nungrado, Pyongyang, Democratic People's Republic of Korea; Front company.", green.OtherInfo)
}

func TestParse_LookbackWindow(t *testing.T) {
	result, err := Parse(openFixture(t), 2, time.Now())
	require.NoError(t, err)
	names := make([]string, 0, len(result.Records))
	for _, r := range result.Records {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "OLD FRONT LTD")
	assert.NotContains(t, names, "OLD LISTING")
	assert.NotContains(t, names, "BAD DATE")

	result, err = Parse(openFixture(t), 0, time.Now())
	require.NoError(t, err)
	assert.Len(t, result.Records, 2, "only entries listed on the generation date")
}

func TestParse_NoDateGenerated(t *testing.T) {
	xml := `<CONSOLIDATED_LIST><INDIVIDUALS><INDIVIDUAL>
<FIRST_NAME>TODAY</FIRST_NAME><LISTED_ON>2024-02-10</LISTED_ON>
</INDIVIDUAL></INDIVIDUALS></CONSOLIDATED_LIST>`
	now := time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC)
	result, err := Parse(strings.NewReader(xml), 1, now)
	require.NoError(t, err)
	assert.Equal(t, now, result.Generated)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "TODAY", result.Records[0].Name)
	assert.Empty(t, result.Records[0].IDType1, "no reference number, no id type")
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse(strings.NewReader("<CONSOLIDATED_LIST"), 1, time.Now())
	assert.Error(t, err)

	_, err = Parse(strings.NewReader(`<CONSOLIDATED_LIST dateGenerated="yesterday"/>`), 1, time.Now())
	assert.ErrorContains(t, err, "dateGenerated")
}

func TestFindXMLLink(t *testing.T) {
	const page = "https://main.un.org/securitycouncil/en/content/un-sc-consolidated-list"
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "href pattern",
			html: `<p><a href="/files/list.pdf">PDF</a> <a href="https://scsanctions.un.org/resources/xml/en/consolidated.xml">XML</a></p>`,
			want: "https://scsanctions.un.org/resources/xml/en/consolidated.xml",
		},
		{
			name: "relative href resolved",
			html: `<a href="/sanctions/list.XML">here</a>`,
			want: "https://main.un.org/sanctions/list.XML",
		},
		{
			name: "text pattern fallback",
			html: `<a href="download?id=7"><span>Download</span> XML</a>`,
			want: "https://main.un.org/securitycouncil/en/content/download?id=7",
		},
		{
			name: "href pattern wins over earlier text match",
			html: `<a href="/x">XML format</a><a href="/y/consolidated.xml">list</a>`,
			want: "https://main.un.org/y/consolidated.xml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindXMLLink(strings.NewReader(tt.html), page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindXMLLink_NotFound(t *testing.T) {
	_, err := FindXMLLink(strings.NewReader(`<a href="/about">About</a><a>no href</a>`), "https://example.org/")
	assert.ErrorIs(t, err, types.ErrXMLLinkNotFound)
}

func TestClient_FetchRecords(t *testing.T) {
	fixture, err := os.ReadFile("testdata/consolidated.xml")
	require.NoError(t, err)

	defer gock.Off()
	gock.New("https://un.example.org").
		Get("/list").
		MatchHeader("User-Agent", "Mozilla").
		Reply(200).
		BodyString(`<html><body><a href="/data/consolidated.xml">Consolidated list (XML)</a></body></html>`)
	gock.New("https://un.example.org").
		Get("/data/consolidated.xml").
		Reply(200).
		Body(strings.NewReader(string(fixture)))

	dataDir := t.TempDir()
	c := NewClient(types.UNConfig{PageURL: "https://un.example.org/list"}, dataDir)
	c.now = func() time.Time { return time.Date(2025, 7, 31, 8, 0, 0, 0, time.UTC) }

	records, snap, err := c.FetchRecords(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, types.ListUN, snap.Source)
	assert.Equal(t, "https://un.example.org/data/consolidated.xml", snap.URL)
	assert.Equal(t, 2025, snap.GeneratedAt.Year())
	assert.Equal(t, 3, snap.RecordCount)
	assert.True(t, gock.IsDone())

	cached, err := os.ReadFile(CachePath(dataDir))
	require.NoError(t, err)
	assert.Equal(t, fixture, cached)
}

func TestClient_PageError(t *testing.T) {
	defer gock.Off()
	gock.New("https://un.example.org").
		Get("/list").
		Reply(http.StatusForbidden)

	c := NewClient(types.UNConfig{PageURL: "https://un.example.org/list"}, "")
	_, _, err := c.Fetch(context.Background())
	assert.ErrorContains(t, err, "HTTP 403")
}

func TestClient_NoLink(t *testing.T) {
	defer gock.Off()
	gock.New("https://un.example.org").
		Get("/list").
		Reply(200).
		BodyString(`<html><a href="/about">About</a></html>`)

	c := NewClient(types.UNConfig{PageURL: "https://un.example.org/list"}, "")
	_, _, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, types.ErrXMLLinkNotFound)
}
