package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/inboxagents/mail-gateway/internal/core"
	"github.com/inboxagents/mail-gateway/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Scorer is an implementation of the ContentScorer interface using Google Gemini
type Scorer struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	promptFormat  string
}

// scoreResponse represents the structured response from the model
type scoreResponse struct {
	Suspicious  bool     `json:"suspicious"`
	Score       float64  `json:"score"`
	Patterns    []string `json:"patterns"`
	Explanation string   `json:"explanation"`
}

// NewScorer creates a new Gemini content scorer
func NewScorer(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Scorer, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &Scorer{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `You are an email security scanner. Analyze the following email for suspicious content: urgency manipulation, financial-transfer requests, or credential-harvesting phrasing.
Respond with a JSON object containing:
- suspicious: boolean (true if the email should be held for review)
- score: number between 0 and 1 (higher means more suspicious)
- patterns: array of strings naming the suspicious patterns you found
- explanation: string (brief explanation of your assessment)

Email:
From: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`,
	}, nil
}

// Close closes the Gemini client
func (s *Scorer) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ScoreContent analyzes an email for suspicious content
func (s *Scorer) ScoreContent(ctx context.Context, email *core.EmailData) (*core.ContentScore, error) {
	body := s.textProcessor.Process(email.Body, s.maxBodySize)
	prompt := fmt.Sprintf(s.promptFormat, email.From, email.Subject, body)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	parsed, err := parseScoreResponse(responseText)
	if err != nil {
		return nil, err
	}

	return &core.ContentScore{
		Suspicious:  parsed.Suspicious,
		Score:       parsed.Score,
		Patterns:    parsed.Patterns,
		Explanation: parsed.Explanation,
		ModelUsed:   s.modelName,
	}, nil
}

// parseScoreResponse decodes the model output, tolerating JSON wrapped in
// surrounding prose.
func parseScoreResponse(responseText string) (*scoreResponse, error) {
	var parsed scoreResponse
	if err := json.Unmarshal([]byte(responseText), &parsed); err == nil {
		return &parsed, nil
	}

	jsonStart := strings.Index(responseText, "{")
	jsonEnd := strings.LastIndex(responseText, "}")
	if jsonStart < 0 || jsonEnd < jsonStart {
		return nil, fmt.Errorf("failed to extract JSON from scorer response")
	}
	if err := json.Unmarshal([]byte(responseText[jsonStart:jsonEnd+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse scorer response as JSON: %w", err)
	}
	return &parsed, nil
}
