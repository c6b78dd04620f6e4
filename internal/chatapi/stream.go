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

// dataPrefix marks an event line in the stream.
var dataPrefix = []byte("data:")

// =============================================================================
// STREAMING CHAT
// =============================================================================

// Stream performs a streaming chat request. The callback receives
// decoded events strictly in arrival order. Returns nil when the
// stream ends normally (a done event or clean EOF); any failure of the
// transport itself wraps ErrTransport so the caller can fall back.
func (c *Client) Stream(ctx context.Context, req ChatRequest, fn EventCallback) error {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %w", ErrTransport,
			&APIError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(msg))})
	}
	return c.readStream(ctx, resp.Body, fn)
}

// readStream decodes the event stream until done, EOF, or failure.
func (c *Client) readStream(ctx context.Context, body io.Reader, fn EventCallback) error {
	var decoder LineDecoder
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			for _, line := range decoder.Push(buf[:n]) {
				done := c.handleLine(line, fn)
				if done {
					return nil
				}
			}
		}
		if err == io.EOF {
			// A final unterminated line is still an event.
			if rest := decoder.Rest(); len(rest) > 0 {
				c.handleLine(rest, fn)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: read: %w", ErrTransport, err)
		}
	}
}

// handleLine decodes one stream line and dispatches the event.
// Returns true when the stream signalled completion. Malformed lines
// are logged and skipped; a single bad line never aborts the stream.
func (c *Client) handleLine(line []byte, fn EventCallback) bool {
	if len(line) == 0 {
		return false
	}
	if !bytes.HasPrefix(line, dataPrefix) {
		// Ignore non-data fields (comments, id:, retry:).
		return false
	}
	data := bytes.TrimSpace(line[len(dataPrefix):])
	if len(data) == 0 {
		return false
	}

	ev, err := parseEvent(data)
	if err != nil {
		c.logger.Printf("chatapi: skipping malformed stream line: %v", err)
		return false
	}

	fn(ev)
	return ev.Type == EventDone
}
