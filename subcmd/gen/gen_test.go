// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gen

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/mkgen/scandeps"
)

func TestReportBroken(t *testing.T) {
	ctx := context.Background()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{
		"main.cc": "#include \"ok.h\"\n#include \"lib/missing.h\"\n",
		"ok.h":    "",
	} {
		err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
		if err != nil {
			t.Fatal(err)
		}
	}
	x := scandeps.NewIndex()
	_, err = x.Add(ctx, filepath.Join(dir, "main.cc"))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
	})
	reportBroken(x, dir)
	got := buf.String()
	if !strings.Contains(got, `1 included files can't be scanned: ["lib/missing.h"]`) {
		t.Errorf("reportBroken logged %q; want summary of lib/missing.h", got)
	}

	buf.Reset()
	ok := scandeps.NewIndex()
	_, err = ok.Add(ctx, filepath.Join(dir, "ok.h"))
	if err != nil {
		t.Fatal(err)
	}
	reportBroken(ok, dir)
	if buf.Len() != 0 {
		t.Errorf("reportBroken logged %q; want nothing", buf.String())
	}
}
