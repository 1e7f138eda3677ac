package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "estate-sync/errors"
	"estate-sync/models"
	"estate-sync/utils"
)

const maxBodyBytes = 32 << 20

// Client triggers the scraping workflow and decodes the batch it returns.
type Client struct {
	url    string
	http   *http.Client
	retry  *utils.RetryConfig
	logger *utils.Logger
}

// New creates a Client for the workflow at url. A zero timeout means no
// client-side deadline.
func New(url string, timeout time.Duration, maxRetries int, logger *utils.Logger) *Client {
	return &Client{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// Fetch POSTs to the webhook and returns the raw listings in its response.
// Transport errors and 5xx responses are retried; any other failure is
// returned as a SourceError straight away.
func (c *Client) Fetch(ctx context.Context) ([]*models.RawListing, error) {
	c.logger.Info("[webhook] Triggering scraper at %s", c.url)
	start := time.Now()

	var (
		body  []byte
		final error
	)
	err := c.retry.Do(ctx, "webhook trigger", func() error {
		b, status, err := c.post(ctx)
		switch {
		case err != nil:
			return apperrors.NewSourceError(c.url, 0, err)
		case status >= 500:
			return apperrors.NewSourceError(c.url, status, apperrors.New(snippet(b)))
		case status >= 300:
			final = apperrors.NewSourceError(c.url, status, apperrors.New(snippet(b)))
			return nil
		}
		body = b
		return nil
	})
	if err != nil {
		var se *apperrors.SourceError
		if !apperrors.As(err, &se) {
			return nil, apperrors.NewSourceError(c.url, 0, err)
		}
		return nil, err
	}
	if final != nil {
		return nil, final
	}

	raw, err := DecodeBatch(bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewSourceError(c.url, http.StatusOK, err)
	}
	if len(raw) == 0 {
		c.logger.Warn("[webhook] Response carried no listings: %s", snippet(body))
	}
	c.logger.Info("[webhook] Received %d listings in %v", len(raw), time.Since(start).Round(time.Millisecond))
	return raw, nil
}

func (c *Client) post(ctx context.Context) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return b, resp.StatusCode, nil
}

func snippet(b []byte) string {
	const max = 200
	s := string(bytes.TrimSpace(b))
	if s == "" {
		return "empty response"
	}
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
