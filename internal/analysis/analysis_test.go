package analysis

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSample = `package main

import (
	"fmt"
	"os"
)

// Greeter says hello.
type Greeter struct {
	name string
}

/* block
comment */
func (g Greeter) Hello() string {
	if g.name == "" && true {
		return "hi"
	}
	return fmt.Sprintf("hi %s", g.name) // trailing
}

func main() {
	for i := 0; i < 2; i++ {
		fmt.Println(Greeter{name: os.Args[0]}.Hello())
	}
}
`

const pySample = `import os
from sys import argv

class A:
    """Doc
    string"""
    def run(self):
        # comment
        if os and argv:
            return 1
`

func TestAnalyzeGo(t *testing.T) {
	res := Analyze("cmd/main.go", []byte(goSample))
	assert.Equal(t, "Go", res.Language)
	assert.False(t, res.Binary)
	require.NotNil(t, res.Lines)
	assert.Equal(t, Lines{Total: 26, Blank: 4, Comment: 3, Code: 19}, *res.Lines)
	assert.Equal(t, Counts{Functions: 2, Classes: 1, Imports: 2, Comments: 3, Branches: 3}, *res.Counts)
	assert.InDelta(t, 9.26, res.Complexity, 0.001)
	assert.Equal(t, LevelLow, res.ComplexityLevel)
}

func TestAnalyzePython(t *testing.T) {
	res := Analyze("app.py", []byte(pySample))
	assert.Equal(t, "Python", res.Language)
	assert.Equal(t, Lines{Total: 10, Blank: 1, Comment: 3, Code: 6}, *res.Lines)
	assert.Equal(t, 1, res.Counts.Functions)
	assert.Equal(t, 1, res.Counts.Classes)
	assert.Equal(t, 2, res.Counts.Imports)
	assert.Equal(t, 2, res.Counts.Comments)
	assert.Equal(t, 1, res.Counts.Branches)
	assert.InDelta(t, 6.24, res.Complexity, 0.001)
}

func TestAnalyzeEmpty(t *testing.T) {
	res := Analyze("empty.go", nil)
	assert.Equal(t, 0, res.Lines.Total)
	assert.Equal(t, 0.0, res.Complexity)
	assert.Equal(t, LevelLow, res.ComplexityLevel)
}

func TestLevelThresholds(t *testing.T) {
	assert.Equal(t, LevelLow, Level(9.99))
	assert.Equal(t, LevelModerate, Level(10))
	assert.Equal(t, LevelModerate, Level(24.9))
	assert.Equal(t, LevelHigh, Level(25))
	assert.Equal(t, LevelHigh, Level(49.99))
	assert.Equal(t, LevelVeryHigh, Level(50))
}

func TestComplexityFormula(t *testing.T) {
	score := Complexity(100, &Counts{Functions: 4, Classes: 2, Imports: 6, Branches: 10})
	// 4 + 6 + 6 + 3 + 5
	assert.Equal(t, 24.0, score)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "TypeScript", DetectLanguage("src/App.tsx"))
	assert.Equal(t, "Dockerfile", DetectLanguage("deploy/Dockerfile"))
	assert.Equal(t, "Lua", DetectLanguage("init.lua"))
	assert.Equal(t, "Unknown", DetectLanguage("data.zzqq"))
}

func TestBinaryDetection(t *testing.T) {
	res := Analyze("blob.bin", []byte{0x7f, 'E', 'L', 'F', 0, 1, 2})
	assert.True(t, res.Binary)
	assert.Nil(t, res.Lines)
	assert.Equal(t, "7 B", res.SizeHuman)
}

func TestImageAnalysisAndThumbnail(t *testing.T) {
	img := imaging.New(300, 150, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))

	res := Analyze("photo.png", buf.Bytes())
	require.NotNil(t, res.Image)
	assert.Equal(t, 300, res.Image.Width)
	assert.Equal(t, 150, res.Image.Height)
	assert.Equal(t, "png", res.Image.Format)

	thumb, err := Thumbnail(buf.Bytes())
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Width)
	assert.Equal(t, 128, cfg.Height)
}

func TestExcerptAndToMap(t *testing.T) {
	assert.Equal(t, "héllo", Excerpt([]byte("héllo"), 100))
	// "é" is two bytes, so a 2 byte cut falls back to "h"
	assert.Equal(t, "h", Excerpt([]byte("héllo"), 2))
	assert.Equal(t, "", Excerpt([]byte{'a', 0}, 10))

	m := Analyze("a.go", []byte("package a\n")).ToMap()
	assert.Equal(t, "Go", m["language"])
	assert.Contains(t, m, "lines")
}

func TestAnalyzeFamilies(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		src      string
		language string
		lines    Lines
		counts   Counts
	}{
		{
			name:     "javascript",
			filename: "app.js",
			src: `import fs from "fs";
const path = require("path");

// Loader reads files.
class Loader {
  load(name) {
    if (!name || name === "") {
      return null;
    }
    return fs.readFileSync(path.join(".", name)); /* inline */
  }
}

const log = (msg) => console.log("see http://a.b // not comment");
function main() {
  for (const f of ["a", "b"]) log(f);
}
`,
			language: "JavaScript",
			lines:    Lines{Total: 17, Blank: 2, Comment: 1, Code: 14},
			counts:   Counts{Functions: 2, Classes: 1, Imports: 2, Comments: 2, Branches: 3},
		},
		{
			name:     "jvm",
			filename: "Main.java",
			src: `package app;

import java.util.List;
import java.util.Map;

/**
 * Entry point.
 */
public class Main {
    private static int count(List<String> xs) {
        int n = 0;
        for (String x : xs) {
            if (x != null && !x.isEmpty()) n++; // non-empty
        }
        return n;
    }

    public static void main(String[] args) {
        System.out.println("// not a comment");
    }
}

interface Named {}
`,
			language: "Java",
			lines:    Lines{Total: 23, Blank: 4, Comment: 3, Code: 16},
			counts:   Counts{Functions: 2, Classes: 2, Imports: 2, Comments: 2, Branches: 3},
		},
		{
			name:     "c",
			filename: "util.c",
			src: `#include <stdio.h>
#include "util.h"

/* Point holds a coordinate. */
struct point {
    int x, y;
};

int add(int a, int b)
{
    return a + b; // sum
}

static void print_all(const int *xs, int n) {
    for (int i = 0; i < n; i++) {
        if (xs[i] > 0 || n == 1) printf("%d /* no */\n", xs[i]);
    }
}
`,
			language: "C",
			lines:    Lines{Total: 18, Blank: 3, Comment: 1, Code: 14},
			counts:   Counts{Functions: 2, Classes: 1, Imports: 2, Comments: 2, Branches: 3},
		},
		{
			name:     "ruby",
			filename: "worker.rb",
			src: `require "json"
require_relative "lib/queue"

=begin
Worker drains the queue.
=end
module Jobs
  class Worker
    def run(items)
      items.each do |i|
        puts "# not a comment" if i
      end
    end

    def stop # halt
      @stopped = true unless @stopped
    end
  end
end
`,
			language: "Ruby",
			lines:    Lines{Total: 19, Blank: 2, Comment: 3, Code: 14},
			counts:   Counts{Functions: 2, Classes: 2, Imports: 2, Comments: 2, Branches: 1},
		},
		{
			name:     "php",
			filename: "index.php",
			src: `<?php
use App\Http\Request;
require_once "vendor/autoload.php";

# legacy config
interface Handler {}

class Controller implements Handler {
    public function index($req) {
        if ($req && $req->ok) {
            return array_map(fn($x) => $x * 2, [1, 2]); // doubled
        }
        echo "#1 // still a string";
    }
}
`,
			language: "PHP",
			lines:    Lines{Total: 15, Blank: 2, Comment: 1, Code: 12},
			counts:   Counts{Functions: 2, Classes: 2, Imports: 2, Comments: 2, Branches: 2},
		},
		{
			name:     "rust",
			filename: "lib.rs",
			src: `use std::collections::HashMap;
pub use crate::error::Error;

/// Cache of values.
pub struct Cache {
    items: HashMap<String, u32>,
}

impl Cache {
    pub fn get(&self, key: &str) -> Option<u32> {
        if key.is_empty() {
            return None;
        }
        self.items.get(key).copied() // lookup
    }
}

fn main() {
    let s = "http://x.y // nope";
    println!("{}", s);
}
`,
			language: "Rust",
			lines:    Lines{Total: 21, Blank: 3, Comment: 1, Code: 17},
			counts:   Counts{Functions: 2, Classes: 2, Imports: 2, Comments: 2, Branches: 1},
		},
		{
			name:     "generic",
			filename: "deploy.sh",
			src: `#!/bin/sh
# deploy script
source ./env.sh

function deploy() {
  if [ -z "$1" ]; then
    echo "usage: deploy # name"
    exit 1
  fi
  for host in a b; do scp app "$host": ; done # copy
}

deploy "$@"
`,
			language: "Shell",
			lines:    Lines{Total: 13, Blank: 2, Comment: 2, Code: 9},
			counts:   Counts{Functions: 1, Classes: 0, Imports: 0, Comments: 3, Branches: 2},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Analyze(tc.filename, []byte(tc.src))
			assert.Equal(t, tc.language, res.Language)
			require.NotNil(t, res.Lines)
			assert.Equal(t, tc.lines, *res.Lines)
			assert.Equal(t, tc.counts, *res.Counts)
			assert.Equal(t, Complexity(tc.lines.Code, &tc.counts), res.Complexity)
		})
	}
}

func TestTrailingCommentMarkersInsideStrings(t *testing.T) {
	res := Analyze("link.js", []byte(`const url = "see http://a.b // not comment";`+"\n"))
	assert.Equal(t, 0, res.Counts.Comments)
	assert.Equal(t, 1, res.Lines.Code)

	res = Analyze("link.js", []byte(`const s = 'it\'s // quoted'; // real`+"\n"))
	assert.Equal(t, 1, res.Counts.Comments)

	res = Analyze("cfg.py", []byte(`x = "#fff"  # colour`+"\n"+`y = "a # b"`+"\n"))
	assert.Equal(t, 1, res.Counts.Comments)
}
