// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSaveGraph(t *testing.T) {
	ctx := context.Background()
	dir := setupFiles(t, map[string]string{
		"main.cc": "#include \"lib/a.h\"\n#include \"b.h\"\n",
		"lib/a.h": "#include \"../b.h\"\n",
		"b.h":     "",
	})
	x := NewIndex()
	_, err := x.Add(ctx, filepath.Join(dir, "main.cc"))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]string{
		"main.cc": {"b.h", "lib/a.h"},
		"lib/a.h": {"b.h"},
	}
	for _, tc := range []struct {
		name       string
		compressed bool
	}{
		{name: "out/deps.csv"},
		{name: "out/deps.csv.zst", compressed: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := filepath.Join(dir, filepath.FromSlash(tc.name))
			err := SaveGraph(x, fname, dir)
			if err != nil {
				t.Fatalf("SaveGraph(x, %q)=%v; want nil", fname, err)
			}
			f, err := os.Open(fname)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			got, err := ReadGraph(f, tc.compressed)
			if err != nil {
				t.Fatalf("ReadGraph=_, %v; want nil error", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("graph diff -want +got:\n%s", diff)
			}
		})
	}
}

func TestWriteGraphMap(t *testing.T) {
	ctx := context.Background()
	dir := setupFiles(t, map[string]string{
		"main.cc": "#include \"lib/a.h\"\n#include \"b.h\"\n",
		"lib/a.h": "#include \"../b.h\"\n",
		"b.h":     "",
	})
	x := NewIndex()
	_, err := x.Add(ctx, filepath.Join(dir, "main.cc"))
	if err != nil {
		t.Fatal(err)
	}
	var want bytes.Buffer
	err = WriteGraphTo(x, &want, false, dir)
	if err != nil {
		t.Fatal(err)
	}

	zfname := filepath.Join(dir, "deps.csv.zst")
	err = SaveGraph(x, zfname, dir)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(zfname)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	graph, err := ReadGraph(f, true)
	if err != nil {
		t.Fatalf("ReadGraph=_, %v; want nil error", err)
	}
	fname := filepath.Join(dir, "out", "deps.csv")
	err = SaveGraphMap(graph, fname)
	if err != nil {
		t.Fatalf("SaveGraphMap(graph, %q)=%v; want nil", fname, err)
	}
	got, err := os.ReadFile(fname)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want.String(), string(got)); diff != "" {
		t.Errorf("SaveGraphMap diff -want +got:\n%s", diff)
	}

	_, err = ReadGraph(strings.NewReader("main.cc\n"), false)
	if err == nil {
		t.Errorf("ReadGraph(malformed)=_, nil; want error")
	}
}
