// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatapi

import "bytes"

// =============================================================================
// INCREMENTAL LINE DECODER
// =============================================================================

// LineDecoder splits an incrementally delivered byte stream into
// newline-terminated lines. The trailing (possibly partial) line of
// each push is retained and resolved by the next push, so callers can
// feed chunks split at arbitrary byte boundaries.
//
// The decoder is independent of any reader primitive; the stream loop
// feeds it raw read buffers.
type LineDecoder struct {
	pending []byte
}

// Push appends a chunk and returns all complete lines it resolved,
// without their line terminators. Trailing carriage returns are
// stripped so CRLF streams decode identically to LF streams.
func (d *LineDecoder) Push(chunk []byte) [][]byte {
	d.pending = append(d.pending, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			return lines
		}
		line := bytes.TrimRight(d.pending[:i], "\r")
		// Copy out: pending is reused across pushes.
		lines = append(lines, append([]byte(nil), line...))
		d.pending = d.pending[i+1:]
	}
}

// Rest returns the unresolved partial line, if any. Used at end of
// stream, where a final unterminated line is still meaningful.
func (d *LineDecoder) Rest() []byte {
	if len(d.pending) == 0 {
		return nil
	}
	return bytes.TrimRight(d.pending, "\r")
}

// Reset discards any buffered partial line.
func (d *LineDecoder) Reset() {
	d.pending = nil
}
