// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// tomlKeyLine matches an active or commented-out top-level "key = value" line.
func tomlKeyLine(key string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^#?\s*` + regexp.QuoteMeta(key) + `\s*=.*$`)
}

// setTOMLKey replaces the first assignment of key, commented or not, with
// key = value. An active array value may span several lines and is replaced
// up to its closing bracket. Keys that are not present are inserted before
// the first table header so they stay top-level.
func setTOMLKey(content, key, value string) string {
	line := key + " = " + value

	re := tomlKeyLine(key)
	if loc := re.FindStringIndex(content); loc != nil {
		end := loc[1]
		assignment := content[loc[0]:loc[1]]
		if !strings.HasPrefix(assignment, "#") {
			_, rhs, _ := strings.Cut(assignment, "=")
			if trimmed := strings.TrimLeft(rhs, " \t"); strings.HasPrefix(trimmed, "[") {
				if closeAt := tomlArrayEnd(content, loc[1]-len(trimmed)); closeAt > 0 {
					end = closeAt
				}
			}
		}
		return content[:loc[0]] + line + content[end:]
	}

	if idx := firstTableHeader(content); idx >= 0 {
		return content[:idx] + line + "\n\n" + content[idx:]
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + line + "\n"
}

// tomlArrayEnd returns the offset just past the bracket that closes the array
// opened at content[open], skipping strings and comments. It returns -1 when
// the array is never closed.
func tomlArrayEnd(content string, open int) int {
	depth := 0
	for i := open; i < len(content); i++ {
		switch content[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		case '#':
			nl := strings.IndexByte(content[i:], '\n')
			if nl < 0 {
				return -1
			}
			i += nl
		case '"':
			for i++; i < len(content) && content[i] != '"'; i++ {
				if content[i] == '\\' {
					i++
				}
			}
		case '\'':
			if end := strings.IndexByte(content[i+1:], '\''); end >= 0 {
				i += end + 1
			} else {
				return -1
			}
		}
	}
	return -1
}

func firstTableHeader(content string) int {
	offset := 0
	for _, l := range strings.SplitAfter(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(l), "[") {
			return offset
		}
		offset += len(l)
	}
	return -1
}

func formatTOMLStringArray(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func updateWhitelistRootsInTOML(content string, roots []string) string {
	return setTOMLKey(content, "whitelistRoots", formatTOMLStringArray(roots))
}

// verifyWhitelistRoots parses rewritten config content and checks that it
// holds exactly roots, so a bad edit never replaces a working file.
func verifyWhitelistRoots(content string, roots []string) error {
	var parsed struct {
		WhitelistRoots []string `toml:"whitelistRoots"`
	}
	if err := toml.Unmarshal([]byte(content), &parsed); err != nil {
		return fmt.Errorf("rewritten config is not valid TOML: %w", err)
	}
	if !slices.Equal(parsed.WhitelistRoots, roots) {
		return fmt.Errorf("rewritten config holds whitelistRoots %q, want %q", parsed.WhitelistRoots, roots)
	}
	return nil
}

// PersistWhitelistRoots rewrites whitelistRoots in the loaded config file.
// Comments and unrelated keys are kept. A running server picks the change up
// through Watch.
func (c *AppConfig) PersistWhitelistRoots(roots []string) error {
	path := c.ConfigFileUsed()
	if path == "" {
		return errors.New("no config file in use")
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	updated := updateWhitelistRootsInTOML(string(content), roots)
	if err := verifyWhitelistRoots(updated, roots); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(updated), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace config file: %w", err)
	}

	c.mu.Lock()
	c.Config.WhitelistRoots = append([]string(nil), roots...)
	c.mu.Unlock()

	return nil
}
