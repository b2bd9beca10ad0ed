package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/lijunhao/projfin/internal/apperr"
)

// ERPClient pulls period revenue figures from the external ERP feed:
// an HTTP GET with a period query parameter and bearer-token auth.
type ERPClient struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *zap.Logger
}

// NewERPClient creates an ERP feed client. Returns nil when no endpoint is
// configured so callers can treat the feed as absent.
func NewERPClient(endpoint, token string, timeout time.Duration, logger *zap.Logger) *ERPClient {
	if endpoint == "" {
		return nil
	}
	return &ERPClient{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// FetchRevenue retrieves the revenue rows for one period. The feed returns
// either a bare array or an {items: [...]} wrapper.
func (c *ERPClient) FetchRevenue(ctx context.Context, jobPeriod string) ([]RevenueRow, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, apperr.Validation("invalid ERP endpoint: %s", err)
	}
	q := u.Query()
	q.Set("period", jobPeriod)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apperr.From(err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("ERP pull failed", zap.String("period", jobPeriod), zap.Error(err))
		return nil, apperr.From(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.From(fmt.Errorf("ERP pull failed: status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.From(err)
	}

	var rows []RevenueRow
	if err := json.Unmarshal(body, &rows); err == nil {
		return rows, nil
	}
	wrapped := struct {
		Items []RevenueRow `json:"items"`
	}{}
	if err := json.Unmarshal(body, &wrapped); err != nil || wrapped.Items == nil {
		return nil, apperr.Validation("ERP payload must be an array or {items: [...]}")
	}
	return wrapped.Items, nil
}
