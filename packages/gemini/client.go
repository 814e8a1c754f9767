// Package gemini
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"quoteminer/packages/domain"
	"quoteminer/packages/metrics"
	"quoteminer/packages/retry"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	classifyMaxOutputTokens = 256
	scoreMaxOutputTokens    = 1024

	finishReasonMaxTokens = "MAX_TOKENS"
)

const classifySystemPrompt = `You are given the title of a wiki page. Decide whether the title denotes a single human being (a real or historical person), as opposed to an object, a place, a concept, a work, or any other non-person subject. If it denotes a person, also return the canonical English rendering of their full name.`

const scoreSystemPrompt = `You are given a line in the form author: "text". Rate from 0 to 100 how valuable and genuine the text is as a quotation by that author. Reward well-known, well-attributed quotations. Penalize excessive length. Score 0 if the text is not actually an utterance by the stated author, or if it is bibliographic, reference or citation material rather than a quote. If the text mixes the original with translations or variants, keep a single clean rendering in one language and return it as clean_quote, with annotations removed.`

// Client talks to the Gemini generateContent REST API with deterministic
// sampling and schema-constrained JSON responses. Every call goes through
// the shared retry policy; a syntactically successful response without the
// expected payload counts as a retryable failure.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	retrier    *retry.Retrier
	cache      *AuthorCache
}

func NewClient(apiKey, model string, timeout time.Duration, retrier *retry.Retrier, cache *AuthorCache) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		retrier:    retrier,
		cache:      cache,
	}
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	TopK             int     `json:"topK"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema,omitempty"`
}

type schema struct {
	Type       string             `json:"type"`
	Properties map[string]*schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ClassificationResult is the schema-constrained response of the name
// classification call.
type ClassificationResult struct {
	IsHuman     bool   `json:"is_human"`
	EnglishName string `json:"english_name"`
}

type scoreResult struct {
	Score      int    `json:"score"`
	CleanQuote string `json:"clean_quote"`
}

var classifySchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"is_human":     {Type: "BOOLEAN"},
		"english_name": {Type: "STRING"},
	},
	Required: []string{"is_human"},
}

var scoreSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"score":       {Type: "INTEGER"},
		"clean_quote": {Type: "STRING"},
	},
	Required: []string{"score"},
}

// Classify asks the model whether candidateName denotes a human. It returns
// the canonical English name and true for a person, or ("", false) for
// anything else. Results are served from the Redis cache when available.
func (c *Client) Classify(ctx context.Context, candidateName string) (string, bool, error) {
	if c.cache != nil {
		if res, ok := c.cache.Get(ctx, candidateName); ok {
			return res.EnglishName, res.IsHuman && res.EnglishName != "", nil
		}
	}

	var result ClassificationResult
	err := c.retrier.Do(ctx, "classify", func() error {
		text, _, err := c.generate(ctx, classifySystemPrompt, candidateName, classifySchema, classifyMaxOutputTokens)
		if err != nil {
			metrics.GeminiRequests.WithLabelValues("classify", "error").Inc()
			return err
		}
		if err := json.Unmarshal([]byte(text), &result); err != nil {
			metrics.GeminiRequests.WithLabelValues("classify", "malformed").Inc()
			return fmt.Errorf("malformed classification payload %q: %w", text, err)
		}
		metrics.GeminiRequests.WithLabelValues("classify", "ok").Inc()
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: classify %q: %v", domain.ErrClassification, candidateName, err)
	}

	if !result.IsHuman {
		result.EnglishName = ""
	}
	if c.cache != nil {
		c.cache.Put(ctx, candidateName, result)
	}
	return result.EnglishName, result.IsHuman && result.EnglishName != "", nil
}

// Score rates one quote candidate against its claimed author. A response
// truncated at the output token ceiling is folded into a score of 0: the
// model is known to run out of budget on over-length inputs, and those are
// rejects, not transient faults.
func (c *Client) Score(ctx context.Context, authorName, candidateText string) (domain.ParsedQuote, error) {
	prompt := fmt.Sprintf("%s: %q", authorName, candidateText)

	var parsed domain.ParsedQuote
	err := c.retrier.Do(ctx, "score", func() error {
		text, finishReason, err := c.generate(ctx, scoreSystemPrompt, prompt, scoreSchema, scoreMaxOutputTokens)
		if err != nil {
			metrics.GeminiRequests.WithLabelValues("score", "error").Inc()
			return err
		}
		if finishReason == finishReasonMaxTokens {
			metrics.GeminiRequests.WithLabelValues("score", "truncated").Inc()
			parsed = domain.ParsedQuote{Score: 0}
			return nil
		}
		var result scoreResult
		if err := json.Unmarshal([]byte(text), &result); err != nil {
			metrics.GeminiRequests.WithLabelValues("score", "malformed").Inc()
			return fmt.Errorf("malformed score payload %q: %w", text, err)
		}
		if result.Score < 0 || result.Score > 100 {
			metrics.GeminiRequests.WithLabelValues("score", "malformed").Inc()
			return fmt.Errorf("score %d outside 0..100", result.Score)
		}
		metrics.GeminiRequests.WithLabelValues("score", "ok").Inc()
		parsed = domain.ParsedQuote{Score: result.Score, CleanQuote: result.CleanQuote}
		return nil
	})
	if err != nil {
		return domain.ParsedQuote{}, fmt.Errorf("%w: score for %q: %v", domain.ErrClassification, authorName, err)
	}
	return parsed, nil
}

// generate performs one generateContent round trip and returns the text of
// the first candidate plus its finish reason. An HTTP-successful response
// with no usable text is indistinguishable from a transient fault and is
// reported as an error so the retrier can take another attempt.
func (c *Client) generate(ctx context.Context, system, user string, respSchema *schema, maxTokens int) (string, string, error) {
	reqBody, err := json.Marshal(generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: system}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: user}}}},
		GenerationConfig: generationConfig{
			Temperature:      0,
			TopP:             0,
			TopK:             1,
			MaxOutputTokens:  maxTokens,
			ResponseMIMEType: "application/json",
			ResponseSchema:   respSchema,
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", "", fmt.Errorf("failed to create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", "", fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody bytes.Buffer
		io.Copy(&errBody, resp.Body)
		return "", "", fmt.Errorf("api returned non-200 status: %d - %s", resp.StatusCode, errBody.String())
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", "", fmt.Errorf("failed to decode api response: %w", err)
	}
	if payload.Error != nil {
		return "", "", fmt.Errorf("api error %d: %s", payload.Error.Code, payload.Error.Message)
	}
	if len(payload.Candidates) == 0 {
		return "", "", fmt.Errorf("api response has no candidates")
	}

	candidate := payload.Candidates[0]
	var text string
	for _, p := range candidate.Content.Parts {
		text += p.Text
	}
	if text == "" && candidate.FinishReason != finishReasonMaxTokens {
		return "", "", fmt.Errorf("api response has empty text payload")
	}
	return text, candidate.FinishReason, nil
}
