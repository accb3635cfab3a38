// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// RedactedStr replaces secret values in logs and CLI output.
const RedactedStr = "<redacted>"

// SplitBasicAuthUsers splits a "user:pass,user2:pass2" list into its
// entries. A segment without a colon continues the previous entry, so the
// commas inside an argon2id hash ("m=65536,t=3,p=2") stay with their password.
func SplitBasicAuthUsers(users string) []string {
	entries := make([]string, 0)
	for _, segment := range strings.Split(users, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		if len(entries) > 0 && !strings.Contains(segment, ":") {
			entries[len(entries)-1] += "," + segment
			continue
		}
		entries = append(entries, segment)
	}
	return entries
}

// RedactBasicAuthUsers keeps the usernames of a "user:pass,user2:pass2" list
// and redacts every password.
func RedactBasicAuthUsers(users string) string {
	if strings.TrimSpace(users) == "" {
		return ""
	}

	entries := SplitBasicAuthUsers(users)
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		user, _, ok := strings.Cut(entry, ":")
		if !ok {
			out = append(out, RedactedStr)
			continue
		}
		out = append(out, user+":"+RedactedStr)
	}

	return strings.Join(out, ",")
}
