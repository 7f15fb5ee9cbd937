package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/resilience"
)

func (c *Client) call(ctx context.Context, operation, method, url string, payload any, out any) error {
	do := func(ctx context.Context) error {
		return c.doJSON(ctx, operation, method, url, payload, out)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, do, classifyQdrantError)
	} else {
		err = do(ctx)
	}
	return resilience.WrapTemporary(operation, err, classifyQdrantError)
}

func (c *Client) doJSON(ctx context.Context, operation, method, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewStatusError("qdrant", operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

// classifyQdrantError treats 409 on collection create as success-adjacent,
// so it never trips the breaker.
func classifyQdrantError(err error) resilience.ErrorClassification {
	if isConflict(err) {
		return resilience.ErrorClassification{}
	}
	return resilience.ClassifyHTTPError(err)
}

func isConflict(err error) bool {
	var statusErr *resilience.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict
}
