// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package whitelist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/trackerwl/internal/testtorrent"
)

func TestSniffCandidate(t *testing.T) {
	t.Parallel()

	metainfo, _, err := testtorrent.Encode(testtorrent.Spec{Name: "fixture", Length: 10})
	require.NoError(t, err)

	tests := []struct {
		name     string
		data     []byte
		accepted bool
	}{
		{name: "metainfo file", data: metainfo, accepted: true},
		{name: "bare announce token", data: []byte("d8:announce"), accepted: false},
		{name: "bare announce-list token", data: []byte("d13:announce-list"), accepted: false},
		{name: "token then newline", data: []byte("d8:announce\nmore data"), accepted: false},
		{name: "token then NUL", data: []byte("d8:announce\x00padding"), accepted: false},
		{name: "token with trailing bytes", data: []byte("d8:announce3:abc"), accepted: true},
		{name: "truncated token", data: []byte("d8:announc"), accepted: true},
		{name: "plain text", data: []byte("hello world"), accepted: true},
		{name: "empty file", data: nil, accepted: true},
	}

	dir := t.TempDir()
	for i, tt := range tests {
		path := filepath.Join(dir, string(rune('a'+i))+".torrent")
		testtorrent.WriteRaw(t, path, tt.data)

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			accepted, err := sniffCandidate(path)
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, accepted)
		})
	}
}

func TestSniffCandidate_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := sniffCandidate(filepath.Join(dir, "missing.torrent"))
	require.ErrorIs(t, err, errOpenCandidate)

	// Opening a directory succeeds on unix, reading it does not.
	_, err = sniffCandidate(dir)
	require.Error(t, err)
}
