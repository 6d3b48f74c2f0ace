// internal/common/monday/client.go
package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"intelliquery/internal/common/errors"
	"intelliquery/internal/common/logger"
	"intelliquery/internal/common/metrics"
	"intelliquery/internal/models"
)

const apiVersion = "2024-01"

// Client handles all board service interactions over GraphQL.
type Client struct {
	apiKey     string
	baseURL    string
	pageLimit  int
	httpClient *http.Client
	logger     logger.Logger
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

const itemsQuery = `
query ($boardId: [ID!], $limit: Int!) {
    boards(ids: $boardId) {
        items_page(limit: $limit) {
            cursor
            items {
                id
                name
                column_values {
                    id
                    text
                    value
                    type
                }
            }
        }
    }
}`

func NewClient(baseURL, apiKey string, pageLimit int, timeout time.Duration, log logger.Logger) *Client {
	if pageLimit <= 0 {
		pageLimit = 500
	}
	return &Client{
		apiKey:    apiKey,
		baseURL:   baseURL,
		pageLimit: pageLimit,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.WithFields(map[string]interface{}{"component": "monday"}),
	}
}

// FetchBoardItems fetches all items from one board with their column values.
// The returned records are raw: normalization is the caller's concern.
func (c *Client) FetchBoardItems(ctx context.Context, boardID string) ([]models.RawItem, error) {
	start := time.Now()
	c.logger.Info("fetching board items", map[string]interface{}{"boardId": boardID})

	data, err := c.execute(ctx, itemsQuery, map[string]interface{}{
		"boardId": []string{boardID},
		"limit":   c.pageLimit,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewBoardAPITimeoutError(boardID)
		}
		return nil, errors.NewBoardFetchFailedError(boardID, err)
	}

	var payload struct {
		Boards []struct {
			ItemsPage struct {
				Cursor string           `json:"cursor"`
				Items  []models.RawItem `json:"items"`
			} `json:"items_page"`
		} `json:"boards"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.NewBoardFetchFailedError(boardID, fmt.Errorf("decode response: %w", err))
	}

	if len(payload.Boards) == 0 {
		return nil, errors.NewBoardFetchFailedError(boardID, fmt.Errorf("no board found with ID %s", boardID))
	}

	items := payload.Boards[0].ItemsPage.Items
	metrics.BoardFetchDuration.WithLabelValues(boardID).Observe(time.Since(start).Seconds())
	c.logger.Info("fetched board items", map[string]interface{}{
		"boardId": boardID,
		"count":   len(items),
	})
	return items, nil
}

// TestConnection verifies API credentials by asking for the current user.
func (c *Client) TestConnection(ctx context.Context) error {
	data, err := c.execute(ctx, `query { me { id name } }`, nil)
	if err != nil {
		return errors.NewBoardFetchFailedError("me", err)
	}

	var payload struct {
		Me struct {
			Name string `json:"name"`
		} `json:"me"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Me.Name == "" {
		return errors.NewBoardFetchFailedError("me", fmt.Errorf("unexpected response"))
	}

	c.logger.Info("connected to board service", map[string]interface{}{"user": payload.Me.Name})
	return nil
}

// execute runs a GraphQL query and returns the raw "data" payload.
func (c *Client) execute(ctx context.Context, query string, variables map[string]interface{}) (json.RawMessage, error) {
	reqBody, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("API-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("board service returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("graphql errors: %s", strings.Join(msgs, ", "))
	}

	return envelope.Data, nil
}
