// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torrentdb holds the tracker's in-memory torrent database and the
// metainfo parser that turns a .torrent file into a record.
package torrentdb

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/anacrolix/torrent/metainfo"
)

// ErrNoName is returned for metainfo files whose info dictionary has no name.
var ErrNoName = errors.New("torrent has no name")

// Torrent is a registered torrent. Records are treated as immutable once added
// to the database; re-registering a file replaces the record.
type Torrent struct {
	Key      string    `json:"key" yaml:"key"` // lowercase hex info-hash
	Name     string    `json:"name" yaml:"name"`
	Path     string    `json:"path" yaml:"path"`
	Length   int64     `json:"length" yaml:"length"`
	Files    int       `json:"files" yaml:"files"`
	Announce string    `json:"announce,omitempty" yaml:"announce,omitempty"`
	AddedAt  time.Time `json:"addedAt" yaml:"addedAt"`
}

// ParseFile loads the metainfo at path and builds a record keyed by its info-hash.
func ParseFile(path string) (*Torrent, error) {
	mi, err := metainfo.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load metainfo %s: %w", path, err)
	}

	info, err := mi.UnmarshalInfo()
	if err != nil {
		return nil, fmt.Errorf("unmarshal info %s: %w", path, err)
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrNoName)
	}

	files := len(info.Files)
	if files == 0 {
		files = 1
	}

	return &Torrent{
		Key:      mi.HashInfoBytes().HexString(),
		Name:     name,
		Path:     filepath.Clean(path),
		Length:   info.TotalLength(),
		Files:    files,
		Announce: firstAnnounce(mi),
		AddedAt:  time.Now(),
	}, nil
}

func firstAnnounce(mi *metainfo.MetaInfo) string {
	if mi.Announce != "" {
		return mi.Announce
	}
	for _, tier := range mi.AnnounceList {
		for _, url := range tier {
			if url != "" {
				return url
			}
		}
	}
	return ""
}
