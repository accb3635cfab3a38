// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package whitelist

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// sniffPrefixLen is how many leading bytes are read from a candidate. It must
// cover the longest reject token or that token could never match.
//
// hefur reads at most 16 bytes, so a file holding exactly "d13:announce-list"
// was accepted there and is rejected here. Heads of 16 bytes or fewer behave
// the same in both.
const sniffPrefixLen = len("d13:announce-list")

// rejectTokens are bencoded dictionary lead tokens. A candidate whose leading
// line is exactly one of these is rejected.
var rejectTokens = [][]byte{
	[]byte("d8:announce"),
	[]byte("d13:announce-list"),
}

var (
	errOpenCandidate = errors.New("could not open file")
	errReadCandidate = errors.New("could not read file")
)

// sniffCandidate reads the head of path and reports whether the file is
// accepted as a torrent candidate.
//
// The head is at most sniffPrefixLen bytes, ends before the first newline and
// is cut at the first NUL byte. The file is rejected when that head equals
// one of rejectTokens; anything else is accepted. A real metainfo file such as
// "d8:announce35:http://..." therefore passes, while a file holding nothing
// but a bare token does not.
func sniffCandidate(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("%w: %w", errOpenCandidate, err)
	}
	defer f.Close()

	buf := make([]byte, sniffPrefixLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, fmt.Errorf("%w: %w", errReadCandidate, err)
	}

	head := leadingLine(buf[:n])
	for _, token := range rejectTokens {
		if bytes.Equal(head, token) {
			return false, nil
		}
	}
	return true, nil
}

func leadingLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return b
}
