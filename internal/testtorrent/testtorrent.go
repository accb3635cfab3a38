// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package testtorrent writes small bencoded metainfo fixtures for tests.
package testtorrent

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/zeebo/bencode"
)

const pieceLength = 16384

// Spec describes a single-file fixture torrent.
type Spec struct {
	Name     string
	Length   int64
	Announce string
}

// Encode returns the metainfo bytes for spec and its hex info-hash.
func Encode(spec Spec) ([]byte, string, error) {
	if spec.Length <= 0 {
		spec.Length = 1
	}
	if spec.Announce == "" {
		spec.Announce = "http://tracker.example/announce"
	}

	pieces := (spec.Length + pieceLength - 1) / pieceLength
	info := map[string]any{
		"name":         spec.Name,
		"length":       spec.Length,
		"piece length": int64(pieceLength),
		"pieces":       string(make([]byte, 20*pieces)),
	}

	infoBytes, err := bencode.EncodeBytes(info)
	if err != nil {
		return nil, "", err
	}
	sum := sha1.Sum(infoBytes)

	data, err := bencode.EncodeBytes(map[string]any{
		"announce": spec.Announce,
		"info":     info,
	})
	if err != nil {
		return nil, "", err
	}

	return data, hex.EncodeToString(sum[:]), nil
}

// Write encodes spec into path, creating parent directories, and returns the
// info-hash the parser is expected to derive.
func Write(t testing.TB, path string, spec Spec) string {
	t.Helper()

	data, hash, err := Encode(spec)
	if err != nil {
		t.Fatalf("encode fixture torrent %s: %v", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write fixture torrent %s: %v", path, err)
	}
	return hash
}

// WriteRaw writes arbitrary bytes to path, creating parent directories.
func WriteRaw(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
