// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// mkgen generates Makefiles of C/C++ projects.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/mkgen/subcmd/digraph"
	"go.chromium.org/infra/build/mkgen/subcmd/gen"
	"go.chromium.org/infra/build/mkgen/subcmd/help"
	"go.chromium.org/infra/build/mkgen/subcmd/version"
)

const mkgenVersion = "v0.1.0"

func getApplication() *cli.Application {
	return &cli.Application{
		Name:  "mkgen",
		Title: "Makefile generator for C/C++ projects",
		Context: func(ctx context.Context) context.Context {
			ctx, cancel := context.WithCancel(ctx)
			signals.HandleInterrupt(func() {
				log.Warnf("interrupted")
				cancel()
			})
			return ctx
		},
		Commands: []*subcommands.Command{
			gen.Cmd(),
			digraph.Cmd(),

			help.Cmd(),
			version.Cmd(mkgenVersion),
		},
	}
}

func main() {
	os.Exit(mkgenMain(os.Args[1:]))
}

func mkgenMain(args []string) int {
	log.SetReportTimestamp(true)

	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Fatalf("panic: %v\n%s", r, buf)
		}
	}()

	buildinfo, ok := debug.ReadBuildInfo()
	if ok {
		log.Debugf("main module: %s %s", moduleInfo(&buildinfo.Main), vcsInfo(buildinfo))
	}
	return subcommands.Run(getApplication(), args)
}

func moduleInfo(m *debug.Module) string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("path:%s version:%s sum:%s replace:%s", m.Path, m.Version, m.Sum, moduleInfo(m.Replace))
}

func vcsInfo(buildinfo *debug.BuildInfo) string {
	m := make(map[string]string)
	for _, bs := range buildinfo.Settings {
		if strings.HasPrefix(bs.Key, "vcs.") {
			m[bs.Key] = bs.Value
		}
	}
	return fmt.Sprintf("vcs[revision=%s time=%s modified=%s]", m["vcs.revision"], m["vcs.time"], m["vcs.modified"])
}
