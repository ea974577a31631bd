// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package makefile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/mkgen/build"
	"go.chromium.org/infra/build/mkgen/toolchain"
)

func testResult() build.Result {
	return build.Result{
		Programs: []build.Program{
			{
				Unit: build.Unit{
					Source:         "/p/main.cc",
					Object:         "/p/main.o",
					Headers:        []string{"/p/lib/a.h"},
					DirectLibs:     []string{"cmath"},
					TransitiveLibs: []string{"cmath"},
				},
				ProgramPath: "/p/main",
				LinkObjects: []string{"/p/main.o", "/p/lib/a.o"},
				Libraries:   []string{"cmath"},
			},
		},
		Units: []build.Unit{
			{
				Source:         "/p/lib/a.cc",
				Object:         "/p/lib/a.o",
				Headers:        []string{"/p/lib/a.h"},
				DirectLibs:     []string{"vector"},
				TransitiveLibs: []string{"vector"},
			},
		},
	}
}

func testToolchain() *toolchain.Options {
	tc := toolchain.New("g++")
	tc.AddCompileFlags("-O2", "-DNAME=a b")
	tc.AddLibrary([]string{"m"}, []string{"cmath"})
	return tc
}

func lines(s ...string) string {
	return strings.Join(s, "\n") + "\n"
}

func TestGenerate(t *testing.T) {
	makefiles := Generate("/p", testToolchain(), testResult())
	if len(makefiles) != 2 {
		t.Fatalf("Generate returns %d makefiles; want 2", len(makefiles))
	}
	root, lib := makefiles[0], makefiles[1]
	if root.Dir != "/p" || lib.Dir != "/p/lib" {
		t.Errorf("dirs=%q, %q; want /p, /p/lib", root.Dir, lib.Dir)
	}

	wantRoot := lines(
		"PROGRAMS = \\",
		"  main",
		"",
		"OBJECTS = \\",
		"  main.o",
		"",
		"SUBDIRS = \\",
		"  lib",
		"",
		".PHONY: all",
		"all: $(SUBDIRS) $(OBJECTS) $(PROGRAMS)",
		"$(SUBDIRS): MAKE_SUBDIR",
		"\t$(MAKE) all -C $@",
		"MAKE_SUBDIR:",
		"",
		".PHONY: clean",
		"clean:",
		"\trm -f $(OBJECTS) $(PROGRAMS); \\",
		"\tfor subdir in $(SUBDIRS); do \\",
		"\t    $(MAKE) clean -C $$subdir; \\",
		"\tdone",
		"",
		"main: \\",
		"  main.o \\",
		"  lib/a.o",
		"\tg++ -o $@ $^ -lm",
		"",
		"main.o: main.cc",
		"\tg++ -o $@ main.cc -c -O2 '-DNAME=a b'",
		"",
		"main.o: \\",
		"  lib/a.h",
		"",
	)
	if diff := cmp.Diff(wantRoot, string(root.Bytes())); diff != "" {
		t.Errorf("root Makefile diff -want +got:\n%s", diff)
	}

	wantLib := lines(
		"OBJECTS = \\",
		"  a.o",
		"",
		".PHONY: all",
		"all: $(OBJECTS)",
		"",
		".PHONY: clean",
		"clean:",
		"\trm -f $(OBJECTS)",
		"",
		"a.o: a.cc",
		"\tg++ -o $@ a.cc -c -O2 '-DNAME=a b'",
		"",
		"a.o: \\",
		"  a.h",
		"",
	)
	if diff := cmp.Diff(wantLib, string(lib.Bytes())); diff != "" {
		t.Errorf("lib Makefile diff -want +got:\n%s", diff)
	}
}

func TestGenerateRootWithoutUnits(t *testing.T) {
	r := build.Result{
		Units: []build.Unit{
			{Source: "/p/src/b.cc", Object: "/p/src/b.o"},
			{Source: "/p/src/a.cc", Object: "/p/src/a.o"},
		},
	}
	makefiles := Generate("/p", toolchain.New(""), r)
	if len(makefiles) != 2 {
		t.Fatalf("Generate returns %d makefiles; want 2", len(makefiles))
	}
	want := lines(
		"SUBDIRS = \\",
		"  src",
		"",
		".PHONY: all",
		"all: $(SUBDIRS)",
		"$(SUBDIRS): MAKE_SUBDIR",
		"\t$(MAKE) all -C $@",
		"MAKE_SUBDIR:",
		"",
		".PHONY: clean",
		"clean:",
		"\tfor subdir in $(SUBDIRS); do \\",
		"\t    $(MAKE) clean -C $$subdir; \\",
		"\tdone",
		"",
	)
	if diff := cmp.Diff(want, string(makefiles[0].Bytes())); diff != "" {
		t.Errorf("root Makefile diff -want +got:\n%s", diff)
	}
	var sources []string
	for _, u := range makefiles[1].Units {
		sources = append(sources, u.Source)
	}
	if diff := cmp.Diff([]string{"/p/src/a.cc", "/p/src/b.cc"}, sources); diff != "" {
		t.Errorf("units of src diff -want +got:\n%s", diff)
	}
}

// parseRule parses a make rule in b and returns its target and
// prerequisites.
func parseRule(b []byte) (string, []string) {
	i := bytes.IndexByte(b, ':')
	if i < 0 {
		return "", nil
	}
	target, _ := nextToken(b[:i])
	var prereqs []string
	var token string
	for s := b[i+1:]; len(s) > 0; {
		token, s = nextToken(s)
		if token != "" {
			prereqs = append(prereqs, token)
		}
	}
	return target, prereqs
}

func nextToken(s []byte) (string, []byte) {
	var sb strings.Builder
skipSpaces:
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == '\n' {
			i++
			continue
		}
		switch s[i] {
		case ' ', '\t', '\n':
			continue
		default:
			s = s[i:]
			break skipSpaces
		}
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case ' ':
				sb.WriteByte(s[i])
			case '\n':
				return sb.String(), s[i+1:]
			default:
				sb.WriteByte('\\')
				sb.WriteByte(s[i])
			}
			continue
		}
		switch s[i] {
		case ' ', '\t', '\n':
			return sb.String(), s[i+1:]
		}
		sb.WriteByte(s[i])
	}
	return sb.String(), nil
}

func TestHeaderRule(t *testing.T) {
	m := &Makefile{Dir: "/p"}
	var buf bytes.Buffer
	m.writeHeaders(&buf, build.Unit{
		Source:  "/p/main.cc",
		Object:  "/p/out dir/main.o",
		Headers: []string{"/p/z.h", "/p/my dir/x.h", "/p/a.h", "/q/c$.h"},
	})
	target, prereqs := parseRule(buf.Bytes())
	if target != "out dir/main.o" {
		t.Errorf("target=%q; want %q", target, "out dir/main.o")
	}
	want := []string{"a.h", "z.h", "../q/c$$.h", "my dir/x.h"}
	if diff := cmp.Diff(want, prereqs); diff != "" {
		t.Errorf("prerequisites diff -want +got:\n%s\n%s", diff, buf.String())
	}

	buf.Reset()
	m.writeHeaders(&buf, build.Unit{Source: "/p/a.cc", Object: "/p/a.o"})
	if buf.Len() != 0 {
		t.Errorf("writeHeaders without headers=%q; want empty", buf.String())
	}
}

func TestCommandLine(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want string
	}{
		{
			args: []string{"g++", "-o", "$@", "$^", "-lm"},
			want: "g++ -o $@ $^ -lm",
		},
		{
			args: []string{"cc", "-DHOME=$HOME", "-Imy dir"},
			want: "cc '-DHOME=$$HOME' '-Imy dir'",
		},
	} {
		got := commandLine(tc.args)
		if got != tc.want {
			t.Errorf("commandLine(%q)=%q; want %q", tc.args, got, tc.want)
		}
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	r := build.Result{
		Units: []build.Unit{
			{Source: filepath.Join(dir, "lib", "a.cc"), Object: filepath.Join(dir, "lib", "a.o")},
		},
	}
	makefiles := Generate(dir, toolchain.New(""), r)
	err := WriteAll(makefiles)
	if err != nil {
		t.Fatalf("WriteAll=%v; want nil", err)
	}
	for _, m := range makefiles {
		got, err := os.ReadFile(m.Path())
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, m.Bytes()) {
			t.Errorf("%s=%q; want %q", m.Path(), got, m.Bytes())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, Name)); err != nil {
		t.Errorf("root Makefile is not written: %v", err)
	}
}
