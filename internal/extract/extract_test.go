package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

const sampleCSV = `Name,Aliases,Type,Date of Birth,Place of Birth,Gender,Nationality,COUNTRY,ID_1,ID_Type1,ID_2,ID_Type2,Date of listing,Watchlist,Other info,DOB_DJ,DOB_YEAR
IVANOV Petr,Pyotr Ivanov,Individual,12.03.1971,Moscow,Male,Russian,Russia,1234567,Passport,None,None,2025-05-20,2025/1578,"Director, LLC Alfa",12 Mar 1971,1971
LLC Alfa,None,Entity,None,None,None,None,Russia,7701234567,INN,None,None,2025-05-20,2025/1578,None,None,None
`

// --- mock backend ---

type mockAIBackend struct {
	answer string
	err    error // forced error
	calls  int   // counts calls for retry verification
	got    string
}

func (m *mockAIBackend) Extract(_ context.Context, markdown []byte) (string, error) {
	m.calls++
	m.got = string(markdown)
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

// failNTimesBackend fails the first N calls, then succeeds.
type failNTimesBackend struct {
	failures  int
	callCount int
	answer    string
}

func (f *failNTimesBackend) Extract(_ context.Context, _ []byte) (string, error) {
	f.callCount++
	if f.callCount <= f.failures {
		return "", fmt.Errorf("transient error (call %d)", f.callCount)
	}
	return f.answer, nil
}

func TestMain(m *testing.M) {
	// Override backoff to avoid real sleeps in retry tests.
	backoffBase = time.Millisecond
	os.Exit(m.Run())
}

func testConfig(dataDir string) types.ExtractionConfig {
	return types.ExtractionConfig{
		AIConfig: types.AIConfig{
			Model:      "test-model",
			MaxRetries: 3,
		},
		DataDir: dataDir,
	}
}

func writeMarkdown(t *testing.T, dataDir, id, sourceFile, body string) string {
	t.Helper()
	mdDir := filepath.Join(dataDir, markdownDir)
	if err := os.MkdirAll(mdDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := body
	if sourceFile != "" {
		content = fmt.Sprintf("---\ndocument_id: %q\nsource_file: %q\n---\n\n%s", id, sourceFile, body)
	}
	path := filepath.Join(mdDir, id+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// --- CleanCSV ---

func TestCleanCSV(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"csv fence", "```csv\nName,Type\nA,Entity\n```", "Name,Type\nA,Entity"},
		{"bare fence", "```\nName,Type\n```\n", "Name,Type"},
		{"no fence", "  Name,Type\nA,Entity  \n", "Name,Type\nA,Entity"},
		{"fence with trailing spaces", "```csv  \nName\n```   ", "Name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCSV(tt.in); got != tt.want {
				t.Errorf("CleanCSV(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// --- ParseRecords ---

func TestParseRecords(t *testing.T) {
	records, warnings, err := ParseRecords(sampleCSV)
	if err != nil {
		t.Fatalf("ParseRecords: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	r := records[0]
	if r.Name != "IVANOV Petr" || r.Type != types.TypeIndividual {
		t.Errorf("record 0 = %+v", r)
	}
	if r.OtherInfo != "Director, LLC Alfa" {
		t.Errorf("OtherInfo = %q, want quoted field intact", r.OtherInfo)
	}
	if r.ID2 != "" {
		t.Errorf("ID2 = %q, want None normalized to empty", r.ID2)
	}
	if r.Watchlist != "2025/1578" {
		t.Errorf("Watchlist = %q", r.Watchlist)
	}
	if records[1].Aliases != "" || records[1].ID1 != "7701234567" {
		t.Errorf("record 1 = %+v", records[1])
	}
}

func TestParseRecords_ByHeaderName(t *testing.T) {
	text := "type, NAME ,country\nVessel,SEA STAR,nan\n"
	records, warnings, err := ParseRecords(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Name != "SEA STAR" || records[0].Type != types.TypeVessel || records[0].Country != "" {
		t.Errorf("record = %+v", records[0])
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "3 columns") {
		t.Errorf("warnings = %v, want column count warning", warnings)
	}
}

func TestParseRecords_Warnings(t *testing.T) {
	text := strings.Join(types.Columns, ",") + "\n" +
		",,Entity,,,,,,,,,,,,,,\n" +
		"ACME,,Company,,,,,,,,,,,,,,\n"
	records, warnings, err := ParseRecords(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Name != "ACME" {
		t.Fatalf("records = %+v", records)
	}
	joined := strings.Join(warnings, "\n")
	if !strings.Contains(joined, "empty Name") {
		t.Errorf("warnings %q should mention dropped row", joined)
	}
	if !strings.Contains(joined, `unknown Type "Company"`) {
		t.Errorf("warnings %q should mention unknown type", joined)
	}
}

func TestParseRecords_NoHeader(t *testing.T) {
	text := "IVANOV Petr,,Individual\nLLC Alfa,,Entity\n"
	records, warnings, err := ParseRecords(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Name != "IVANOV Petr" || records[1].Type != types.TypeEntity {
		t.Errorf("records = %+v", records)
	}
	if len(warnings) == 0 || !strings.Contains(warnings[0], "positionally") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestParseRecords_ProseBeforeHeader(t *testing.T) {
	header := strings.Join(types.Columns, ",")
	text := "Here are the sanctioned parties found in the regulation:\n\n" +
		header + "\n" +
		"IVANOV Petr,,Individual,,,,,,,,,,,,,,\n" +
		header + "\n" +
		"LLC Alfa,,Entity,,,,,,,,,,,,,,\n"
	records, warnings, err := ParseRecords(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %+v, want 2", records)
	}
	for _, r := range records {
		if r.Name == "Name" || strings.HasPrefix(r.Name, "Here are") {
			t.Errorf("non-data line parsed as record: %+v", r)
		}
	}
	if records[0].Name != "IVANOV Petr" || records[1].Type != types.TypeEntity {
		t.Errorf("records = %+v", records)
	}
	joined := strings.Join(warnings, "\n")
	if !strings.Contains(joined, "skipped 1 lines before the header") {
		t.Errorf("warnings %q should mention skipped prose", joined)
	}
	if !strings.Contains(joined, "repeated header") {
		t.Errorf("warnings %q should mention repeated header", joined)
	}
}

func TestParseRecords_SparseHeader(t *testing.T) {
	text := "NAME ,,TYPE\nIVANOV Petr,,Individual\n"
	records, _, err := ParseRecords(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Name != "IVANOV Petr" {
		t.Errorf("records = %+v", records)
	}
}

func TestParseRecords_Empty(t *testing.T) {
	_, _, err := ParseRecords("  \n")
	if err != types.ErrEmptyExtraction {
		t.Errorf("err = %v, want ErrEmptyExtraction", err)
	}
}

// --- prompt ---

func TestRenderPrompt(t *testing.T) {
	prompt, err := renderPrompt()
	if err != nil {
		t.Fatal(err)
	}
	for _, col := range types.Columns {
		if !strings.Contains(prompt, col+":") {
			t.Errorf("prompt missing field %q", col)
		}
	}
	if !strings.Contains(prompt, `"None"`) {
		t.Error("prompt should ask for None placeholders")
	}
	if !strings.Contains(prompt, "2025/1578") {
		t.Error("prompt should carry the watchlist code example")
	}
}

// --- callWithRetry ---

func TestCallWithRetry(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		maxRetries int
		wantErr    bool
	}{
		{"succeeds first try", 0, 3, false},
		{"succeeds after 2 failures", 2, 3, false},
		{"fails after exhausting retries", 4, 3, true},
		{"succeeds on last retry", 3, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &failNTimesBackend{failures: tt.failures, answer: sampleCSV}

			_, err := callWithRetry(context.Background(), backend, []byte("doc"), tt.maxRetries)

			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			wantCalls := tt.failures + 1
			if wantCalls > tt.maxRetries+1 {
				wantCalls = tt.maxRetries + 1
			}
			if backend.callCount != wantCalls {
				t.Errorf("calls = %d, want %d", backend.callCount, wantCalls)
			}
		})
	}
}

// --- ExtractFile ---

func TestExtractFile(t *testing.T) {
	dataDir := t.TempDir()
	mdPath := writeMarkdown(t, dataDir, "eu-2025-abc", "202501578.pdf", "# Annex\n\n| Name |\n")

	backend := &mockAIBackend{answer: "```csv\n" + sampleCSV + "```"}
	result, err := ExtractFile(context.Background(), backend, "eu-2025-abc", mdPath, testConfig(dataDir))
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}

	if strings.Contains(backend.got, "document_id") {
		t.Error("frontmatter should be stripped before sending")
	}
	if result.SourceFile != "202501578.pdf" {
		t.Errorf("SourceFile = %q", result.SourceFile)
	}
	if result.Model != "test-model" {
		t.Errorf("Model = %q", result.Model)
	}
	if len(result.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(result.Records))
	}
	for _, r := range result.Records {
		if r.SourceFile != "202501578.pdf" {
			t.Errorf("record %q SourceFile = %q", r.Name, r.SourceFile)
		}
	}
}

func TestExtractFile_BackendFailure(t *testing.T) {
	dataDir := t.TempDir()
	mdPath := writeMarkdown(t, dataDir, "doc", "", "content")

	backend := &mockAIBackend{err: fmt.Errorf("quota exceeded")}
	cfg := testConfig(dataDir)
	cfg.MaxRetries = 1
	_, err := ExtractFile(context.Background(), backend, "doc", mdPath, cfg)
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v, want backend error", err)
	}
	if backend.calls != 2 {
		t.Errorf("calls = %d, want 2", backend.calls)
	}
}

func TestExtractDocument(t *testing.T) {
	dataDir := t.TempDir()
	mdPath := writeMarkdown(t, dataDir, "list-1", "", "content")
	doc := &types.Document{ID: "list-1", FileName: "list.pdf", MarkdownPath: mdPath}

	result, err := ExtractDocument(context.Background(), &mockAIBackend{answer: sampleCSV}, doc, testConfig(dataDir))
	if err != nil {
		t.Fatal(err)
	}
	if doc.ExtractionStatus != types.ExtractionDone || doc.RecordCount != 2 {
		t.Errorf("doc = %+v", doc)
	}
	if result.Records[0].SourceFile != "list.pdf" {
		t.Errorf("SourceFile = %q, want file name fallback", result.Records[0].SourceFile)
	}

	loaded, err := LoadResults(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || len(loaded[0].Records) != 2 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestExtractDocument_NotConverted(t *testing.T) {
	doc := &types.Document{ID: "x"}
	if _, err := ExtractDocument(context.Background(), &mockAIBackend{}, doc, testConfig(t.TempDir())); err == nil {
		t.Error("expected error for unconverted document")
	}
}

// --- ExtractAll ---

func TestExtractAll(t *testing.T) {
	dataDir := t.TempDir()
	writeMarkdown(t, dataDir, "a", "a.pdf", "doc a")
	writeMarkdown(t, dataDir, "b", "b.pdf", "doc b")

	var buf strings.Builder
	summary, err := ExtractAll(context.Background(), &mockAIBackend{answer: sampleCSV}, testConfig(dataDir), &buf)
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if summary.Extracted != 2 || summary.Records != 4 {
		t.Errorf("summary = %+v", summary)
	}
	if !strings.Contains(buf.String(), "extracted a (2 records)") {
		t.Errorf("output = %q", buf.String())
	}
	if _, err := os.Stat(ResultPath(dataDir, "a")); err != nil {
		t.Errorf("missing result: %v", err)
	}
}

func TestExtractAllSkipsUnchanged(t *testing.T) {
	dataDir := t.TempDir()
	mdPath := writeMarkdown(t, dataDir, "paper1", "", "content")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(mdPath, past, past); err != nil {
		t.Fatal(err)
	}
	if err := WriteResult(ResultPath(dataDir, "paper1"), &types.ExtractionResult{DocumentID: "paper1"}); err != nil {
		t.Fatal(err)
	}

	backend := &mockAIBackend{answer: sampleCSV}
	var buf strings.Builder
	summary, err := ExtractAll(context.Background(), backend, testConfig(dataDir), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || backend.calls != 0 {
		t.Errorf("summary = %+v, calls = %d", summary, backend.calls)
	}
}

func TestExtractAllReextractsChanged(t *testing.T) {
	dataDir := t.TempDir()
	outPath := ResultPath(dataDir, "list1")
	if err := WriteResult(outPath, &types.ExtractionResult{
		DocumentID: "list1",
		Records:    []types.Record{{Name: "OLD"}},
	}); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(outPath, past, past); err != nil {
		t.Fatal(err)
	}
	writeMarkdown(t, dataDir, "list1", "", "updated")

	var buf strings.Builder
	summary, err := ExtractAll(context.Background(), &mockAIBackend{answer: sampleCSV}, testConfig(dataDir), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Extracted != 1 {
		t.Errorf("Extracted = %d, want 1", summary.Extracted)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	var result types.ExtractionResult
	if err := yaml.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Records) != 2 || result.Records[0].Name != "IVANOV Petr" {
		t.Errorf("records = %+v", result.Records)
	}
}

func TestExtractAllRecordsFailures(t *testing.T) {
	dataDir := t.TempDir()
	writeMarkdown(t, dataDir, "bad", "", "content")

	cfg := testConfig(dataDir)
	cfg.MaxRetries = 1
	var buf strings.Builder
	summary, err := ExtractAll(context.Background(), &mockAIBackend{err: fmt.Errorf("boom")}, cfg, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if !summary.HasFailures() || summary.Total() != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if !strings.Contains(buf.String(), "failed  bad:") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestExtractAllMissingDir(t *testing.T) {
	_, err := ExtractAll(context.Background(), &mockAIBackend{}, testConfig(t.TempDir()), &strings.Builder{})
	if err == nil {
		t.Error("expected error for missing markdown directory")
	}
}
