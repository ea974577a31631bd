// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil provides shell command line utilities.
package shutil

import (
	"errors"
	"fmt"
	"strings"
)

var errUnterminated = errors.New("unterminated quote or escape")

// Split splits cmdline into words the way a POSIX shell does for simple
// words: whitespace separates words, and single quotes, double quotes and
// backslash escape characters. Shell metacharacters are rejected.
func Split(cmdline string) ([]string, error) {
	var args []string
	var sb strings.Builder
	inword := false
	var quote rune
	escaped := false
	for _, ch := range cmdline {
		switch {
		case escaped:
			sb.WriteRune(ch)
			escaped = false
		case quote == '\'':
			if ch == '\'' {
				quote = 0
				continue
			}
			sb.WriteRune(ch)
		case quote == '"':
			switch ch {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				sb.WriteRune(ch)
			}
		case ch == ' ' || ch == '\t' || ch == '\n':
			if inword {
				args = append(args, sb.String())
				sb.Reset()
				inword = false
			}
		case ch == '\\':
			inword = true
			escaped = true
		case ch == '\'' || ch == '"':
			inword = true
			quote = ch
		case strings.ContainsRune(";&|<>$`#(){}*?", ch):
			return nil, fmt.Errorf("failed to split %q: shell metachar %c", cmdline, ch)
		default:
			inword = true
			sb.WriteRune(ch)
		}
	}
	if escaped || quote != 0 {
		return nil, fmt.Errorf("failed to split %q: %w", cmdline, errUnterminated)
	}
	if inword {
		args = append(args, sb.String())
	}
	return args, nil
}

// Quote quotes arg for a POSIX shell if needed.
func Quote(arg string) string {
	if arg == "" {
		return "''"
	}
	safe := true
	for _, ch := range arg {
		if !isSafe(ch) {
			safe = false
			break
		}
	}
	if safe {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

func isSafe(ch rune) bool {
	switch {
	case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9':
		return true
	}
	return strings.ContainsRune("-_./+=:,@%", ch)
}

// Join joins args to a single command line, quoting each arg as needed.
func Join(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		quoted = append(quoted, Quote(arg))
	}
	return strings.Join(quoted, " ")
}
