// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package deptree provides a rooted dependency tree of files.
//
// A tree grows only through its targets: paths referenced as a child of
// some node but not yet nodes themselves. Removing a node removes its
// whole subtree. Nodes are kept in a map keyed by path, and targets are
// derived from it rather than stored.
package deptree

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"go.chromium.org/infra/build/mkgen/toolsupport/pathutil"
)

// StructuralError is an error for an illegal tree operation.
// It means an internal invariant is broken.
type StructuralError struct {
	Op     string
	Path   string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("deptree: %s %s: %s", e.Op, e.Path, e.Reason)
}

// Node is a node of the tree.
type Node struct {
	Path string

	// Children are paths in insertion order.
	Children []string
}

// NodeDepth is a node path with its depth from the root.
type NodeDepth struct {
	Depth int
	Path  string
}

// Tree is a rooted dependency tree.
type Tree struct {
	root    string
	exclude map[string]bool
	nodes   map[string]*Node
}

// New creates a tree with root and its children.
// Paths in exclude never become children.
func New(root string, children []string, exclude ...string) *Tree {
	t := &Tree{
		root:    root,
		exclude: make(map[string]bool, len(exclude)),
		nodes:   make(map[string]*Node),
	}
	for _, p := range exclude {
		t.exclude[p] = true
	}
	// adding root to an empty tree never fails.
	_ = t.Add(root, children)
	return t
}

// Root returns the root path.
func (t *Tree) Root() string {
	return t.root
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Has reports whether path is a node.
func (t *Tree) Has(path string) bool {
	_, ok := t.nodes[path]
	return ok
}

// Node returns the node of path.
func (t *Tree) Node(path string) (Node, bool) {
	n, ok := t.nodes[path]
	if !ok {
		return Node{}, false
	}
	return Node{Path: n.Path, Children: slices.Clone(n.Children)}, true
}

// Add adds node with children.
// node must be the root of an empty tree, or a current target.
// Children that are node itself, already in CodeList or excluded are
// dropped, so a path is referenced by at most one parent.
func (t *Tree) Add(node string, children []string) error {
	switch {
	case len(t.nodes) == 0 && node == t.root:
	case t.isTarget(node):
	default:
		return &StructuralError{Op: "add", Path: node, Reason: "not a target of the tree"}
	}
	code := t.codeSet()
	n := &Node{Path: node}
	for _, c := range children {
		if c == node || code[c] || t.exclude[c] {
			continue
		}
		code[c] = true
		n.Children = append(n.Children, c)
	}
	t.nodes[node] = n
	return nil
}

// Remove removes node and every node reachable from it.
func (t *Tree) Remove(node string) error {
	if _, ok := t.nodes[node]; !ok {
		return &StructuralError{Op: "remove", Path: node, Reason: "no such node"}
	}
	stack := []string{node}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := t.nodes[p]
		if !ok {
			continue
		}
		delete(t.nodes, p)
		stack = append(stack, n.Children...)
	}
	return nil
}

// IsClosed reports whether every referenced child is a node.
func (t *Tree) IsClosed() bool {
	return len(t.TargetList()) == 0
}

// NodeList returns sorted paths of nodes.
func (t *Tree) NodeList() []string {
	nodes := make([]string, 0, len(t.nodes))
	for p := range t.nodes {
		nodes = append(nodes, p)
	}
	pathutil.Sort(nodes)
	return nodes
}

// ChildList returns sorted paths referenced as a child of any node.
func (t *Tree) ChildList() []string {
	var children []string
	for _, n := range t.nodes {
		children = append(children, n.Children...)
	}
	return pathutil.Sorted(children)
}

// CodeList returns sorted union of NodeList and ChildList.
func (t *Tree) CodeList() []string {
	return pathutil.Sorted(append(t.NodeList(), t.ChildList()...))
}

// TargetList returns sorted children that are not nodes yet.
func (t *Tree) TargetList() []string {
	var targets []string
	for _, c := range t.ChildList() {
		if _, ok := t.nodes[c]; !ok {
			targets = append(targets, c)
		}
	}
	return targets
}

func (t *Tree) isTarget(path string) bool {
	if _, ok := t.nodes[path]; ok {
		return false
	}
	for _, n := range t.nodes {
		if slices.Contains(n.Children, path) {
			return true
		}
	}
	return false
}

func (t *Tree) codeSet() map[string]bool {
	m := make(map[string]bool)
	for p, n := range t.nodes {
		m[p] = true
		for _, c := range n.Children {
			m[c] = true
		}
	}
	return m
}

// DepthOrder returns nodes with depth from the root, sorted by depth and
// then by path. Every node must be reachable from the root.
func (t *Tree) DepthOrder() ([]NodeDepth, error) {
	if len(t.nodes) == 0 {
		return nil, nil
	}
	if _, ok := t.nodes[t.root]; !ok {
		return nil, &StructuralError{Op: "depth", Path: t.root, Reason: "root is not a node"}
	}
	var result []NodeDepth
	visited := make(map[string]bool)
	var visit func(p string, depth int)
	visit = func(p string, depth int) {
		n, ok := t.nodes[p]
		if !ok || visited[p] {
			return
		}
		visited[p] = true
		result = append(result, NodeDepth{Depth: depth, Path: p})
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	visit(t.root, 0)
	if len(visited) != len(t.nodes) {
		for _, p := range t.NodeList() {
			if !visited[p] {
				return nil, &StructuralError{Op: "depth", Path: p, Reason: "node is not reachable from root"}
			}
		}
	}
	slices.SortFunc(result, func(a, b NodeDepth) int {
		if c := cmp.Compare(a.Depth, b.Depth); c != 0 {
			return c
		}
		return pathutil.Compare(a.Path, b.Path)
	})
	return result, nil
}

// Copy returns an independent deep copy of the tree.
func (t *Tree) Copy() *Tree {
	c := &Tree{
		root:    t.root,
		exclude: make(map[string]bool, len(t.exclude)),
		nodes:   make(map[string]*Node, len(t.nodes)),
	}
	for p := range t.exclude {
		c.exclude[p] = true
	}
	for p, n := range t.nodes {
		c.nodes[p] = &Node{Path: n.Path, Children: slices.Clone(n.Children)}
	}
	return c
}

// String returns an indented dump of the tree in depth-first order.
func (t *Tree) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tree(%s)\n", t.root)
	visited := make(map[string]bool)
	var visit func(p string, depth int)
	visit = func(p string, depth int) {
		n, ok := t.nodes[p]
		if !ok || visited[p] {
			return
		}
		visited[p] = true
		fmt.Fprintf(&sb, "%s%s\n", strings.Repeat("  ", depth), p)
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	visit(t.root, 0)
	return sb.String()
}
