package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/inboxagents/mail-gateway/internal/core"
	"github.com/inboxagents/mail-gateway/internal/utils"
	"go.uber.org/zap"
)

// Scorer is an implementation of the ContentScorer interface using Amazon Bedrock
type Scorer struct {
	client        *bedrockruntime.Client
	modelID       string
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

// NewScorer creates a new Bedrock content scorer
func NewScorer(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *Scorer {
	return &Scorer{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
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
	}
}

// ScoreContent analyzes an email for suspicious content
func (s *Scorer) ScoreContent(ctx context.Context, email *core.EmailData) (*core.ContentScore, error) {
	body := s.textProcessor.Process(email.Body, s.maxBodySize)
	prompt := fmt.Sprintf(s.promptFormat, email.From, email.Subject, body)

	var payload []byte
	var err error

	if s.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": s.maxTokens,
			"temperature":          s.temperature,
			"top_p":                s.topP,
		})
	} else if s.isAmazonTitanModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": s.maxTokens,
				"temperature":   s.temperature,
				"topP":          s.topP,
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  s.maxTokens,
			"temperature": s.temperature,
			"top_p":       s.topP,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &s.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := s.extractResponseText(resp.Body)
	if err != nil {
		return nil, err
	}

	parsed, err := parseScoreResponse(responseText)
	if err != nil {
		return nil, err
	}

	return &core.ContentScore{
		Suspicious:  parsed.Suspicious,
		Score:       parsed.Score,
		Patterns:    parsed.Patterns,
		Explanation: parsed.Explanation,
		ModelUsed:   s.modelID,
	}, nil
}

// extractResponseText unwraps the model-family-specific response envelope.
func (s *Scorer) extractResponseText(body []byte) (string, error) {
	if s.isAnthropicModel() {
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}

	if s.isAmazonTitanModel() {
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
	}
	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	}
	return string(body), nil
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

// isAnthropicModel checks if the model is an Anthropic Claude model
func (s *Scorer) isAnthropicModel() bool {
	return strings.HasPrefix(s.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (s *Scorer) isAmazonTitanModel() bool {
	return strings.HasPrefix(s.modelID, "amazon.titan")
}
