// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scandeps provides a forged C/C++ include scanner and an index
// of the files it discovered.
//
// It only checks the following forms of #include
//
//	#include "foo.h"
//	#include <foo.h>
//
// A quoted include is resolved relative to the directory of the file
// that contains it, unless it is absolute. Symlinks are followed before
// "..", as the compiler does. An angle-bracket include is kept as the literal name
// and treated as a library header.
//
// It doesn't process `#if`, `#ifdef`, macros, comments nor multiline
// directives. A directive inside a block comment or a string literal is
// still recognized.
package scandeps
