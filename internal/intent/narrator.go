// internal/intent/narrator.go
package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"intelliquery/internal/common/config"
	"intelliquery/internal/common/errors"
	"intelliquery/internal/common/logger"
	"intelliquery/internal/models"
)

// Narrator calls the external narration API to render metrics as prose.
// Narration is best-effort: callers fall back to unnarrated metrics when it
// fails, so every error here is advisory.
type Narrator struct {
	cfg    config.GenAIConfig
	client *http.Client
	logger logger.Logger
}

func NewNarrator(cfg config.GenAIConfig, log logger.Logger) *Narrator {
	return &Narrator{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
		},
		logger: log.WithFields(map[string]interface{}{"component": "narrator"}),
	}
}

type narrateRequest struct {
	Model         string                `json:"model"`
	Question      string                `json:"question"`
	IntentKind    models.IntentKind     `json:"intent_kind"`
	Metrics       interface{}           `json:"metrics"`
	QualityIssues []models.QualityIssue `json:"quality_issues"`
}

// Narrate asks for a prose summary of the computed metrics. Quality issues
// ride along so the narration can caveat incomplete data.
func (n *Narrator) Narrate(ctx context.Context, question string, kind models.IntentKind, metrics interface{}, issues []models.QualityIssue) (string, error) {
	body, err := json.Marshal(narrateRequest{
		Model:         n.cfg.Model,
		Question:      question,
		IntentKind:    kind,
		Metrics:       metrics,
		QualityIssues: issues,
	})
	if err != nil {
		return "", errors.NewLLMSynthesisFailedError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.BaseURL+"/api/ai/generate", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewLLMSynthesisFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
	}

	resp, err := n.client.Do(req)
	if ctx.Err() != nil {
		return "", errors.NewLLMTimeoutError()
	}
	if err != nil {
		return "", errors.NewLLMSynthesisFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewLLMSynthesisFailedError(fmt.Errorf("status %d", resp.StatusCode))
	}

	var apiResponse struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", errors.NewLLMSynthesisFailedError(err)
	}
	if strings.TrimSpace(apiResponse.Text) == "" {
		return "", errors.NewLLMSynthesisFailedError(fmt.Errorf("empty narration"))
	}

	n.logger.Info("narration generated", map[string]interface{}{
		"chars": len(apiResponse.Text),
	})
	return apiResponse.Text, nil
}
