package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quoteminer/packages/domain"
	"quoteminer/packages/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instantRetrier() *retry.Retrier {
	r := retry.New(3)
	r.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return r
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", "test-model", 5*time.Second, instantRetrier(), nil)
	c.baseURL = srv.URL
	return c
}

func modelResponse(t *testing.T, w http.ResponseWriter, payload any, finishReason string) {
	t.Helper()
	text, err := json.Marshal(payload)
	require.NoError(t, err)
	resp := map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"parts": []map[string]any{{"text": string(text)}}},
			"finishReason": finishReason,
		}},
	}
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestClassify(t *testing.T) {
	tests := map[string]struct {
		payload  ClassificationResult
		wantName string
		wantHit  bool
	}{
		"human title": {
			payload:  ClassificationResult{IsHuman: true, EnglishName: "Albert Einstein"},
			wantName: "Albert Einstein",
			wantHit:  true,
		},
		"non-human title": {
			payload:  ClassificationResult{IsHuman: false},
			wantName: "",
			wantHit:  false,
		},
		"human without a name is unusable": {
			payload:  ClassificationResult{IsHuman: true, EnglishName: ""},
			wantName: "",
			wantHit:  false,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var gotRequest generateRequest
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
				assert.Contains(t, r.URL.Path, "test-model:generateContent")
				require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
				modelResponse(t, w, tc.payload, "STOP")
			})

			gotName, isHuman, err := c.Classify(context.Background(), "Einstein")
			require.NoError(t, err)
			assert.Equal(t, tc.wantName, gotName)
			assert.Equal(t, tc.wantHit, isHuman)

			assert.Zero(t, gotRequest.GenerationConfig.Temperature, "classification must be deterministic-leaning")
			assert.Equal(t, "application/json", gotRequest.GenerationConfig.ResponseMIMEType)
			require.NotNil(t, gotRequest.GenerationConfig.ResponseSchema)
		})
	}
}

func TestClassifyRetriesOnEmptyPayload(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			// HTTP success, but no usable text: same class as a network fault.
			fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":""}]},"finishReason":"STOP"}]}`)
			return
		}
		modelResponse(t, w, ClassificationResult{IsHuman: true, EnglishName: "Marcus Aurelius"}, "STOP")
	})

	name, isHuman, err := c.Classify(context.Background(), "Марк Аврелий")
	require.NoError(t, err)
	assert.True(t, isHuman)
	assert.Equal(t, "Marcus Aurelius", name)
	assert.Equal(t, 3, calls)
}

func TestClassifyExhaustsRetries(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, _, err := c.Classify(context.Background(), "Einstein")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrClassification)
	assert.Equal(t, 3, calls)
}

func TestScore(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		modelResponse(t, w, map[string]any{"score": 87, "clean_quote": "Imagination is more important than knowledge."}, "STOP")
	})

	parsed, err := c.Score(context.Background(), "Albert Einstein", "Imagination is more important than knowledge. <small>1929</small>")
	require.NoError(t, err)
	assert.Equal(t, 87, parsed.Score)
	assert.Equal(t, "Imagination is more important than knowledge.", parsed.CleanQuote)
}

func TestScoreTruncatedResponseIsRejectNotRetry(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[]},"finishReason":"MAX_TOKENS"}]}`)
	})

	parsed, err := c.Score(context.Background(), "Someone", "an enormous candidate")
	require.NoError(t, err)
	assert.Equal(t, domain.ParsedQuote{Score: 0}, parsed)
	assert.Equal(t, 1, calls, "a truncated response folds into score 0 without retrying")
}

func TestScoreRejectsOutOfRangeScore(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		modelResponse(t, w, map[string]any{"score": 140, "clean_quote": "x"}, "STOP")
	})

	_, err := c.Score(context.Background(), "Someone", "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrClassification)
	assert.Equal(t, 3, calls, "schema-violating payloads are retried like transient faults")
}

func TestScoreMalformedJSONIsRetried(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"not json"}]},"finishReason":"STOP"}]}`)
			return
		}
		modelResponse(t, w, map[string]any{"score": 60, "clean_quote": "ok"}, "STOP")
	})

	parsed, err := c.Score(context.Background(), "Someone", "text")
	require.NoError(t, err)
	assert.Equal(t, 60, parsed.Score)
	assert.Equal(t, 2, calls)
}
