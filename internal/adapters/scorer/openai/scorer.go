package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/inboxagents/mail-gateway/internal/core"
	"github.com/inboxagents/mail-gateway/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Scorer is an implementation of the ContentScorer interface using OpenAI
type Scorer struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
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

// NewScorer creates a new OpenAI content scorer
func NewScorer(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Scorer {
	return &Scorer{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat:  scorePromptFormat,
	}
}

const scorePromptFormat = `You are an email security scanner. Analyze the following email for suspicious content: urgency manipulation, financial-transfer requests, or credential-harvesting phrasing.
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

Respond only with the JSON object and nothing else.`

// ScoreContent analyzes an email for suspicious content
func (s *Scorer) ScoreContent(ctx context.Context, email *core.EmailData) (*core.ContentScore, error) {
	body := s.textProcessor.Process(email.Body, s.maxBodySize)
	prompt := fmt.Sprintf(s.promptFormat, email.From, email.Subject, body)

	req := openai.ChatCompletionRequest{
		Model: s.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an email security scanner. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		TopP:        s.topP,
	}
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: "json"}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	parsed, err := parseScoreResponse(resp.Choices[0].Message.Content)
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
