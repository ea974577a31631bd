// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package shutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplit(t *testing.T) {
	for _, tc := range []struct {
		cmdline string
		want    []string
		wantErr bool
	}{
		{
			cmdline: "-O2 -Wall  -std=c++17",
			want:    []string{"-O2", "-Wall", "-std=c++17"},
		},
		{
			cmdline: `-DNAME="hello world" -DQ='a"b' -I\ dir`,
			want:    []string{"-DNAME=hello world", `-DQ=a"b`, "-I dir"},
		},
		{
			cmdline: `-DEMPTY="" ''`,
			want:    []string{"-DEMPTY=", ""},
		},
		{
			cmdline: "\t",
		},
		{
			cmdline: "-O2; rm -rf /",
			wantErr: true,
		},
		{
			cmdline: `-DX="unterminated`,
			wantErr: true,
		},
		{
			cmdline: `-DX=\`,
			wantErr: true,
		},
	} {
		got, err := Split(tc.cmdline)
		if (err != nil) != tc.wantErr {
			t.Errorf("Split(%q)=%q, %v; want err=%t", tc.cmdline, got, err, tc.wantErr)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("Split(%q) diff -want +got:\n%s", tc.cmdline, diff)
		}
	}
}

func TestJoin(t *testing.T) {
	args := []string{"g++", "-o", "out/main", "-DNAME=hello world", "it's", ""}
	got := Join(args)
	want := `g++ -o out/main '-DNAME=hello world' 'it'\''s' ''`
	if got != want {
		t.Errorf("Join(%q)=%q; want %q", args, got, want)
	}
	// Split is the inverse of Join for these args.
	back, err := Split(`g++ -o out/main '-DNAME=hello world' ''`)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"g++", "-o", "out/main", "-DNAME=hello world", ""}, back); diff != "" {
		t.Errorf("Split(Join(args)) diff -want +got:\n%s", diff)
	}
}
