// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"google.golang.org/genai"

	"github.com/pdiddy/sanctions-engine/pkg/types"
)

// extractionPromptTmpl is sent after the Markdown document. It instructs the
// model to answer with CSV in the canonical column layout.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`You are a sanctions data processing expert. Extract every listed party from the attached Markdown sanctions document and convert it to CSV with the following fields:

Required CSV structure:
{{range .Fields}}{{.Name}}: {{.Description}}
{{end}}
Processing rules:
- Clean names so they contain only Latin characters
- Determine Type from context (company = Entity, ship = Vessel, etc.)
- Infer COUNTRY from the address or context
- Extract identification numbers from the text (IMO, INN, Registration Number, etc.)
- Use the value "None" for any field without information

The first line must be the header: {{.Header}}
Answer with EXACTLY the CSV content, no explanations.
`))

type promptField struct {
	Name        string
	Description string
}

var promptFields = []promptField{
	{"Name", "Full name (Latin characters, drop unnecessary legal prefixes)"},
	{"Aliases", "Other names or aliases (separated by semicolons when there are several)"},
	{"Type", "Individual/Entity/Vessel/Port/Airport/Airplane"},
	{"Date of Birth", "dd.mm.yyyy or dd/mm/yyyy (individuals only)"},
	{"Place of Birth", "Place of birth (individuals only)"},
	{"Gender", "Male/Female/Unknown (individuals only)"},
	{"Nationality", "Nationality"},
	{"COUNTRY", "Country (from the address, nationality, or context)"},
	{"ID_1", "Primary identifier (IMO, Registration Number, INN, Passport, etc.)"},
	{"ID_Type1", "Type of ID_1"},
	{"ID_2", "Secondary identifier (if any)"},
	{"ID_Type2", "Type of ID_2"},
	{"Date of listing", "Listing date (yyyy-mm-dd or dd/mm/yyyy)"},
	{"Watchlist", `The REGULATION or DECISION code at the top of the document (for example "2025/1578")`},
	{"Other info", "Additional information (address, reasons, notes)"},
	{"DOB_DJ", "Year or date of birth (formatted as 20 Jun 2023 or 2023)"},
	{"DOB_YEAR", "Year of birth (yyyy)"},
}

// renderPrompt executes the extraction prompt template.
func renderPrompt() (string, error) {
	var buf bytes.Buffer
	data := struct {
		Fields []promptField
		Header string
	}{
		Fields: promptFields,
		Header: strings.Join(types.Columns, ","),
	}
	if err := extractionPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// contentGenerator is the subset of the genai Models service used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBackend sends whole Markdown documents to the Gemini API and returns
// the raw CSV answer.
type GeminiBackend struct {
	models contentGenerator
	model  string
}

// NewGeminiBackend creates a Gemini client for cfg. A missing API key
// returns types.ErrGeminiNotConfigured.
func NewGeminiBackend(ctx context.Context, cfg types.AIConfig) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, types.ErrGeminiNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = types.DefaultGeminiModel
	}
	return &GeminiBackend{models: client.Models, model: model}, nil
}

// Model returns the model identifier requests are sent to.
func (g *GeminiBackend) Model() string { return g.model }

// Extract sends markdown as an inline text/markdown part followed by the
// extraction prompt, with a dynamic thinking budget.
func (g *GeminiBackend) Extract(ctx context.Context, markdown []byte) (string, error) {
	prompt, err := renderPrompt()
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(markdown, "text/markdown"),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](-1)},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("calling Gemini API: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("Gemini API returned empty content")
	}
	return text, nil
}
