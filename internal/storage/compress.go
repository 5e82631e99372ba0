// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package storage

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// maybeCompress gzips payloads above threshold. Returns the original bytes
// when the payload is small or compression would not shrink it, so the
// compressed flag always matches the stored encoding.
func maybeCompress(payload []byte, threshold int) ([]byte, bool, error) {
	if threshold <= 0 || len(payload) <= threshold {
		return payload, false, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, false, fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, false, fmt.Errorf("gzip close: %w", err)
	}

	if buf.Len() >= len(payload) {
		return payload, false, nil
	}
	return buf.Bytes(), true, nil
}

// decompress reverses maybeCompress for records stored with the compressed
// flag set.
func decompress(payload []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return out, nil
}
