// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package digraph is digraph subcommand to show include graph of a project.
package digraph

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/mkgen/buildconfig"
	"go.chromium.org/infra/build/mkgen/scandeps"
)

const usage = `show include graph

 $ mkgen digraph -C <dir> [-o <output>]
 $ mkgen digraph -i <input> [-o <output>]

prints include graph of source codes in the project description.
Each line is "<file>,<header>" and means <file> includes <header>
with #include "...". Paths are relative to <dir>.

With -i, it reads a graph saved by save_dependence_graph or -o
instead of scanning the project.

If <input> or <output> ends with ".zst", it is compressed with zstd.
`

// Cmd returns the Command for the `digraph` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "digraph [-C <dir> | -i <input>] [-o <output>]",
		ShortDesc: "show include graph",
		LongDesc:  usage,
		Advanced:  true,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	dir    string
	fname  string
	input  string
	output string
}

func (c *run) init() {
	c.Flags.StringVar(&c.dir, "C", ".", "project root directory to find project description")
	c.Flags.StringVar(&c.fname, "f", buildconfig.DefaultFilename, "project description filename (relative to -C)")
	c.Flags.StringVar(&c.input, "i", "", "saved include graph to read instead of scanning the project")
	c.Flags.StringVar(&c.output, "o", "", "output filename. stdout if empty")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, args)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
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
	// resolve output before chdir.
	output := c.output
	if output != "" && output != "-" {
		var err error
		output, err = filepath.Abs(output)
		if err != nil {
			return err
		}
	}
	if c.input != "" {
		return convert(c.input, output)
	}
	err := os.Chdir(c.dir)
	if err != nil {
		return err
	}
	cfg, err := buildconfig.Load(ctx, c.fname)
	if err != nil {
		return err
	}
	x := scandeps.NewIndex()
	_, err = cfg.Project.Scan(ctx, x)
	if err != nil {
		return err
	}
	if output == "" || output == "-" {
		return scandeps.WriteGraphTo(x, os.Stdout, false, cfg.Project.Root)
	}
	return scandeps.SaveGraph(x, output, cfg.Project.Root)
}

// convert reads a saved graph from input and writes it to output.
func convert(input, output string) error {
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()
	graph, err := scandeps.ReadGraph(f, strings.HasSuffix(input, ".zst"))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}
	if output == "" || output == "-" {
		return scandeps.WriteGraphMap(graph, os.Stdout, false)
	}
	return scandeps.SaveGraphMap(graph, output)
}
