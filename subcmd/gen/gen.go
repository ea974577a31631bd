// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package gen provides gen subcommand.
package gen

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/cpuid/v2"
	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/mkgen/build"
	"go.chromium.org/infra/build/mkgen/buildconfig"
	"go.chromium.org/infra/build/mkgen/execute/localexec"
	"go.chromium.org/infra/build/mkgen/linkobj"
	"go.chromium.org/infra/build/mkgen/makefile"
	"go.chromium.org/infra/build/mkgen/scandeps"
	"go.chromium.org/infra/build/mkgen/toolsupport/pathutil"
)

const usage = `generate Makefiles

 $ mkgen gen [-C <dir>] [-f mkgen.star] [-mode <mode>]

reads project description (mkgen.star) in <dir>, scans #include of
source codes, decides translation units to link into each program,
and writes Makefile in each source directory.

<mode> is one of
  all:          link all source codes.
  search:       link source codes that share local headers with the
                main code, transitively.
  analyze:      same as search, then drop source codes that are not
                needed by trial links.
  full-analyze: repeat analyze until nothing is dropped.

Trial links require object files. Use -compile to compile missing or
stale object files before analysis.
`

// Cmd returns the Command for the `gen` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "gen [-C <dir>] [-f mkgen.star] [-mode <mode>]",
		ShortDesc: "generate Makefiles",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	dir          string
	fname        string
	mode         string
	logFile      string
	jobs         int
	trialTimeout time.Duration
	compile      bool
	dryRun       bool
	verify       bool
	verbose      bool
	logLevel     string
}

func (c *run) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "project root directory to find project description")
	c.Flags.StringVar(&c.fname, "f", buildconfig.DefaultFilename, "project description filename (relative to -C)")
	c.Flags.StringVar(&c.mode, "mode", "", "link object mode (all, search, analyze or full-analyze). overrides link_object_mode")
	c.Flags.StringVar(&c.logFile, "log", "", "trial link log filename (relative to -C). overrides link_object_log")
	c.Flags.IntVar(&c.jobs, "j", 1, "number of programs to analyze in parallel")
	c.Flags.DurationVar(&c.trialTimeout, "trial_timeout", 2*time.Minute, "timeout of each trial link")
	c.Flags.BoolVar(&c.compile, "compile", false, "compile missing or stale objects before analysis")
	c.Flags.BoolVar(&c.dryRun, "n", false, "dry run. analyze but don't write Makefiles")
	c.Flags.BoolVar(&c.verify, "verify", false, "verify link objects by trial link in all and search mode")
	c.Flags.BoolVar(&c.verbose, "v", false, "verbose log")
	c.Flags.StringVar(&c.logLevel, "log_level", "info", "log level (debug, info, warn, error)")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, args)
	if err != nil {
		var cerr *buildconfig.ConfigError
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
		case errors.As(err, &cerr):
			fmt.Fprintf(os.Stderr, "Error: %v\n%s", err, cerr.Backtrace())
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (c *run) run(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("position arguments not expected: %w", flag.ErrHelp)
	}
	level, err := log.ParseLevel(c.logLevel)
	if err != nil {
		return fmt.Errorf("bad -log_level: %w", flag.ErrHelp)
	}
	if c.verbose {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	if c.jobs < 1 {
		return fmt.Errorf("-j must be positive: %w", flag.ErrHelp)
	}

	started := time.Now()
	forkSema := localexec.ForkSemaphore()
	log.Infof("cpu: %s logical=%d physical=%d vendor=%s fork=%d", cpuid.CPU.BrandName, cpuid.CPU.LogicalCores, cpuid.CPU.PhysicalCores, cpuid.CPU.VendorString, forkSema.Capacity())
	defer func() {
		log.Infof("processes: %s", forkSema)
	}()

	err = os.Chdir(c.dir)
	if err != nil {
		return err
	}
	cfg, err := buildconfig.Load(ctx, c.fname)
	if err != nil {
		return err
	}
	if c.mode != "" {
		cfg.Mode, err = linkobj.ParseMode(c.mode)
		if err != nil {
			return fmt.Errorf("%w: %w", err, flag.ErrHelp)
		}
	}
	if c.logFile != "" {
		cfg.LogFile, err = filepath.Abs(c.logFile)
		if err != nil {
			return err
		}
	}
	project := cfg.Project

	x := scandeps.NewIndex()
	units, err := project.Scan(ctx, x)
	if err != nil {
		return err
	}
	reportBroken(x, project.Root)
	if cfg.GraphFile != "" {
		err = scandeps.SaveGraph(x, cfg.GraphFile, project.Root)
		if err != nil {
			return fmt.Errorf("failed to save include graph: %w", err)
		}
	}

	if c.compile {
		n, err := project.Compile(ctx, units, nil, c.jobs)
		if err != nil {
			return err
		}
		log.Infof("compiled %d units", n)
	}

	var trialLog *build.TrialLog
	if cfg.LogFile != "" {
		trialLog, err = build.OpenTrialLog(cfg.LogFile)
		if err != nil {
			return err
		}
		defer func() {
			cerr := trialLog.Close()
			if cerr != nil {
				log.Warnf("failed to close %s: %v", cfg.LogFile, cerr)
			}
		}()
	}
	outDir, err := os.MkdirTemp("", "mkgen-trial")
	if err != nil {
		return err
	}
	defer os.RemoveAll(outDir)

	analyzer := &linkobj.Analyzer{
		Graph: x,
		Linker: &build.TrialLinker{
			Project: project,
			Units:   units,
			OutDir:  outDir,
			Timeout: c.trialTimeout,
			Log:     trialLog,
		},
		Mode:   cfg.Mode,
		Jobs:   c.jobs,
		Verify: c.verify,
	}
	results, err := analyzer.Analyze(ctx, units.EntrySources(), units.Sources)
	if err != nil {
		return err
	}
	r, err := project.Result(units, results)
	if err != nil {
		return err
	}
	for _, p := range r.Programs {
		log.Infof("%s: link %d objects, libraries=%q", p.ProgramPath, len(p.LinkObjects), p.Libraries)
	}

	makefiles := makefile.Generate(project.Root, project.Toolchain, r)
	if c.dryRun {
		for _, m := range makefiles {
			fmt.Printf("%s\n", m.Path())
		}
		log.Infof("dry run: %d Makefiles in %s", len(makefiles), time.Since(started).Round(time.Millisecond))
		return nil
	}
	err = makefile.WriteAll(makefiles)
	if err != nil {
		return err
	}
	log.Infof("wrote %d Makefiles in %s", len(makefiles), time.Since(started).Round(time.Millisecond))
	return nil
}

// reportBroken logs included files that couldn't be scanned.
// They add no edges to the include graph.
func reportBroken(x *scandeps.Index, root string) {
	broken := x.Broken()
	if len(broken) == 0 {
		return
	}
	files := make([]string, 0, len(broken))
	for f := range broken {
		files = append(files, pathutil.Rel(root, f))
	}
	pathutil.Sort(files)
	log.Warnf("%d included files can't be scanned: %q", len(files), files)
}
