// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"

	"go.chromium.org/infra/build/mkgen/toolsupport/pathutil"
)

// SaveGraph writes the include graph of x to fname, with paths relative
// to base. fname with ".zst" suffix is compressed with zstd.
func SaveGraph(x *Index, fname, base string) error {
	return saveGraph(fname, func(w io.Writer, compress bool) error {
		return WriteGraphTo(x, w, compress, base)
	})
}

// SaveGraphMap writes graph to fname as SaveGraph does.
func SaveGraphMap(graph map[string][]string, fname string) error {
	return saveGraph(fname, func(w io.Writer, compress bool) error {
		return WriteGraphMap(graph, w, compress)
	})
}

func saveGraph(fname string, write func(io.Writer, bool) error) (err error) {
	err = os.MkdirAll(filepath.Dir(fname), 0755)
	if err != nil {
		return err
	}
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
	}()
	err = write(f, strings.HasSuffix(fname, ".zst"))
	if err != nil {
		return err
	}
	log.Infof("save include graph to %s", fname)
	return nil
}

// WriteGraphTo writes the include graph of x to w, compressed with zstd
// if compress is set.
func WriteGraphTo(x *Index, w io.Writer, compress bool, base string) error {
	return writeCompressed(w, compress, func(w io.Writer) error {
		return x.WriteGraph(w, base)
	})
}

// WriteGraphMap writes graph returned by ReadGraph to w in the same
// format as WriteGraphTo. Files are sorted, and headers of a file keep
// their order.
func WriteGraphMap(graph map[string][]string, w io.Writer, compress bool) error {
	files := make([]string, 0, len(graph))
	for f := range graph {
		files = append(files, f)
	}
	pathutil.Sort(files)
	return writeCompressed(w, compress, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		for _, f := range files {
			for _, h := range graph[f] {
				fmt.Fprintf(bw, "%s,%s\n", f, h)
			}
		}
		return bw.Flush()
	})
}

func writeCompressed(w io.Writer, compress bool, write func(io.Writer) error) error {
	if !compress {
		return write(w)
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	err = write(zw)
	return errors.Join(err, zw.Close())
}

// ReadGraph reads an include graph written by WriteGraphTo.
// It returns file -> headers in the order written.
func ReadGraph(r io.Reader, compressed bool) (map[string][]string, error) {
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	graph := make(map[string][]string)
	for _, line := range strings.Split(string(buf), "\n") {
		if line == "" {
			continue
		}
		file, header, ok := strings.Cut(line, ",")
		if !ok {
			return nil, errors.New("malformed graph line: " + line)
		}
		graph[file] = append(graph[file], header)
	}
	return graph, nil
}
