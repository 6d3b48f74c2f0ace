// internal/intent/classifier.go

// Package intent turns natural-language questions into routable analytics
// requests: an external classification call produces a structured intent,
// the router merges it with the previous turn's filters, and a narration
// call renders computed metrics back into prose.
package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"intelliquery/internal/common/config"
	"intelliquery/internal/common/errors"
	"intelliquery/internal/common/logger"
	"intelliquery/internal/models"
)

// Classifier calls the external intent classification API.
type Classifier struct {
	cfg    config.GenAIConfig
	client *http.Client
	logger logger.Logger
}

func NewClassifier(cfg config.GenAIConfig, log logger.Logger) *Classifier {
	return &Classifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
		},
		logger: log.WithFields(map[string]interface{}{"component": "classifier"}),
	}
}

type classifyRequest struct {
	Model           string         `json:"model"`
	Query           string         `json:"query"`
	PreviousFilters models.Filters `json:"previous_filters,omitempty"`
}

// Classify sends the question to the classification API and returns the
// validated intent. The previous turn's filters ride along as context so the
// model can resolve references like "and for last quarter?".
func (c *Classifier) Classify(ctx context.Context, question string, previous models.Filters) (*models.Intent, error) {
	body, err := json.Marshal(classifyRequest{
		Model:           c.cfg.Model,
		Query:           question,
		PreviousFilters: previous,
	})
	if err != nil {
		return nil, errors.NewIntentParsingFailedError(err)
	}

	raw, err := c.post(ctx, "/api/ai/parse-intent", body)
	if err != nil {
		return nil, err
	}

	parsed, err := parseIntent(raw)
	if err != nil {
		return nil, err
	}

	c.logger.Info("intent classified", map[string]interface{}{
		"kind":          parsed.Kind,
		"clarification": parsed.ClarificationNeeded,
	})
	return parsed, nil
}

// post issues the API call with exponential backoff. A context deadline is
// reported as a timeout rather than retried into the void.
func (c *Classifier) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, errors.NewIntentAPITimeoutError()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, errors.NewIntentParsingFailedError(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.client.Do(req)
		if ctx.Err() != nil {
			return nil, errors.NewIntentAPITimeoutError()
		}
		if err != nil {
			lastErr = err
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
			continue
		}
		return data, nil
	}

	return nil, errors.NewIntentParsingFailedError(lastErr)
}
