/*
Package ai provides functionality to interact with the Gemini AI API and
summarise retrieved bulletins for the run report.
*/
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"github.com/shanehull/annfetch/internal/types"
)

// Inline request data is capped by the API; larger files are not sent.
const maxInlineBytes = 20 << 20

type Analysis struct {
	Headline        string   `json:"headline"`
	Summary         []string `json:"summary"`
	KeyDates        []string `json:"key_dates"`
	RequiredActions []string `json:"required_actions"`
}

type Summarizer struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

func NewSummarizer(ctx context.Context, apiKey, modelName string, logger *slog.Logger) (*Summarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("gemini model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Summarizer{client: client, model: modelName, log: logger}, nil
}

// Summarize sends the PDF at path inline and returns the structured digest.
func (s *Summarizer) Summarize(ctx context.Context, path string) (*types.Summary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxInlineBytes {
		return nil, fmt.Errorf("%s is %d bytes, over the inline limit", filepath.Base(path), info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: buildUserPrompt(filepath.Base(path))},
			{InlineData: &genai.Blob{MIMEType: "application/pdf", Data: data}},
		},
	}}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    getResponseSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	s.log.DebugContext(ctx, "summarised document", "path", path, "model", s.model)
	return parseSummary(resp.Text())
}

func parseSummary(respText string) (*types.Summary, error) {
	respText = strings.TrimSpace(respText)
	respText = strings.TrimPrefix(respText, "```json")
	respText = strings.TrimSuffix(strings.TrimPrefix(respText, "```"), "```")

	var analysis Analysis
	if err := json.Unmarshal([]byte(respText), &analysis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gemini JSON response: %w. Raw text: %s", err, respText)
	}
	return &types.Summary{
		Headline:        analysis.Headline,
		Bullets:         analysis.Summary,
		KeyDates:        analysis.KeyDates,
		RequiredActions: analysis.RequiredActions,
	}, nil
}

func getResponseSchema() *genai.Schema {
	list := func(desc string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: desc,
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"headline": {
				Type:        genai.TypeString,
				Description: "One sentence stating what the bulletin changes.",
			},
			"summary":          list("A list of 3-5 concise bullet points summarizing the document."),
			"key_dates":        list("Publication, effective and deadline dates, each with what happens on that date."),
			"required_actions": list("Concrete actions the reader's organisation must take, with the responsible party."),
		},
		Required: []string{"headline", "summary", "key_dates", "required_actions"},
	}
}
