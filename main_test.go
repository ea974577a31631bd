// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func setupProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		fname := filepath.Join(dir, filepath.FromSlash(name))
		err := os.MkdirAll(filepath.Dir(fname), 0755)
		if err != nil {
			t.Fatal(err)
		}
		err = os.WriteFile(fname, []byte(content), 0644)
		if err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

var testProject = map[string]string{
	"mkgen.star": `
source_code(glob("*.cc", exclude=["main.cc"]))
main_code("app", "main.cc")
`,
	"main.cc": `#include "a.h"
int main() { return a(); }
`,
	"a.h": `int a();
int b();
`,
	"a.cc": `#include "a.h"
int a() { return 0; }
`,
	"lib/b.cc": `#include "../a.h"
int b() { return 1; }
`,
}

func TestMkgenMainDryRun(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := setupProject(t, testProject)
	exitCode := mkgenMain([]string{"gen", "-C", dir, "-mode", "all", "-n"})
	if exitCode != 0 {
		t.Fatalf("mkgenMain(gen -n)=%d; want 0", exitCode)
	}
	if _, err := os.Stat(filepath.Join(dir, "Makefile")); err == nil {
		t.Errorf("Makefile is written in dry run")
	}
}

func TestMkgenMainBadMode(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := setupProject(t, testProject)
	exitCode := mkgenMain([]string{"gen", "-C", dir, "-mode", "fast"})
	if exitCode == 0 {
		t.Errorf("mkgenMain(gen -mode fast)=0; want non-zero")
	}
}

func TestMkgenMainAnalyze(t *testing.T) {
	if _, err := exec.LookPath("g++"); err != nil {
		t.Skipf("no g++: %v", err)
	}
	t.Chdir(t.TempDir())
	dir := setupProject(t, testProject)
	exitCode := mkgenMain([]string{"gen", "-C", dir, "-mode", "analyze", "-compile", "-log", "trial.log"})
	if exitCode != 0 {
		t.Fatalf("mkgenMain(gen -mode analyze -compile)=%d; want 0", exitCode)
	}
	buf, err := os.ReadFile(filepath.Join(dir, "Makefile"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "app: \\\n  main.o \\\n  a.o\n"; !strings.Contains(string(buf), want) {
		t.Errorf("Makefile doesn't link only a.o; want %q in\n%s", want, buf)
	}
	if _, err := os.Stat(filepath.Join(dir, "lib", "Makefile")); err != nil {
		t.Errorf("lib/Makefile is not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "trial.log")); err != nil {
		t.Errorf("trial log is not written: %v", err)
	}
}

func TestMkgenMainDigraph(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := setupProject(t, testProject)
	out := t.TempDir()
	zfname := filepath.Join(out, "deps.csv.zst")
	exitCode := mkgenMain([]string{"digraph", "-C", dir, "-o", zfname})
	if exitCode != 0 {
		t.Fatalf("mkgenMain(digraph -o %s)=%d; want 0", zfname, exitCode)
	}
	fname := filepath.Join(out, "deps.csv")
	exitCode = mkgenMain([]string{"digraph", "-i", zfname, "-o", fname})
	if exitCode != 0 {
		t.Fatalf("mkgenMain(digraph -i %s)=%d; want 0", zfname, exitCode)
	}
	buf, err := os.ReadFile(fname)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(buf), "a.cc,a.h\nmain.cc,a.h\nlib/b.cc,a.h\n"; got != want {
		t.Errorf("digraph -i %s=%q; want %q", zfname, got, want)
	}
}
