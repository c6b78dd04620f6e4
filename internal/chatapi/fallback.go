// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// =============================================================================
// NON-STREAMING FALLBACK
// =============================================================================

// Complete performs the non-streaming chat request. Used when the
// streaming transport has failed. Any failure wraps ErrFallback.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (*Completion, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFallback, err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFallback, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %w", ErrFallback,
			&APIError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(msg))})
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", ErrFallback, err)
	}

	var completion Completion
	if err := json.Unmarshal(data, &completion); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrFallback, err)
	}
	return &completion, nil
}
