// Package analysis computes heuristic metrics for source files: language,
// line counts, regex counts of functions, classes, imports and comments, and
// a complexity score.
package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	// sniffBytes is how much of a file is inspected for NUL bytes.
	sniffBytes = 8 << 10

	LevelLow      = "low"
	LevelModerate = "moderate"
	LevelHigh     = "high"
	LevelVeryHigh = "very high"
)

type Lines struct {
	Total   int `json:"total"`
	Blank   int `json:"blank"`
	Comment int `json:"comment"`
	Code    int `json:"code"`
}

type Counts struct {
	Functions int `json:"functions"`
	Classes   int `json:"classes"`
	Imports   int `json:"imports"`
	Comments  int `json:"comments"`
	Branches  int `json:"branches"`
}

type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

type Result struct {
	Filename        string     `json:"filename"`
	Language        string     `json:"language"`
	Size            int64      `json:"size"`
	SizeHuman       string     `json:"sizeHuman"`
	Binary          bool       `json:"binary"`
	Lines           *Lines     `json:"lines,omitempty"`
	Counts          *Counts    `json:"counts,omitempty"`
	Complexity      float64    `json:"complexity"`
	ComplexityLevel string     `json:"complexityLevel,omitempty"`
	Image           *ImageInfo `json:"image,omitempty"`
}

// IsBinary reports a NUL byte within the first 8 KiB.
func IsBinary(content []byte) bool {
	head := content
	if len(head) > sniffBytes {
		head = head[:sniffBytes]
	}
	return bytes.IndexByte(head, 0) >= 0
}

// Analyze never fails: unknown languages fall back to generic rules and
// binary content only gets size and, for images, dimensions.
func Analyze(filename string, content []byte) *Result {
	lang := detectLanguage(filename)
	res := &Result{
		Filename:  filename,
		Language:  lang.name,
		Size:      int64(len(content)),
		SizeHuman: humanize.Bytes(uint64(len(content))),
	}

	if IsBinary(content) || looksLikeImage(filename) {
		if info, err := ImageDimensions(content); err == nil {
			res.Binary = true
			res.Image = info
			res.Language = "Image"
			return res
		}
	}
	if IsBinary(content) {
		res.Binary = true
		return res
	}

	r := familyRules[lang.family]
	lines, code, comments := classifyLines(string(content), r)
	counts := &Counts{
		Functions: len(r.functions.FindAllStringIndex(code, -1)),
		Classes:   len(r.classes.FindAllStringIndex(code, -1)),
		Imports:   r.countImports(code),
		Comments:  comments,
		Branches:  len(branchRegex.FindAllStringIndex(code, -1)),
	}
	res.Lines = lines
	res.Counts = counts
	res.Complexity = Complexity(lines.Code, counts)
	res.ComplexityLevel = Level(res.Complexity)
	return res
}

// Complexity = code/25 + functions*1.5 + classes*3 + imports*0.5 + branches*0.5,
// rounded to two decimals.
func Complexity(codeLines int, c *Counts) float64 {
	score := float64(codeLines)/25 +
		float64(c.Functions)*1.5 +
		float64(c.Classes)*3 +
		float64(c.Imports)*0.5 +
		float64(c.Branches)*0.5
	return math.Round(score*100) / 100
}

func Level(score float64) string {
	switch {
	case score < 10:
		return LevelLow
	case score < 25:
		return LevelModerate
	case score < 50:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}

// classifyLines splits text into blank, comment and code lines. It returns
// the code lines joined back together and the number of comments seen (line
// comments plus block openings).
func classifyLines(text string, r rules) (*Lines, string, int) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	lines := &Lines{}
	if text == "" {
		return lines, "", 0
	}

	var code strings.Builder
	comments := 0
	inBlock := false
	for _, line := range strings.Split(text, "\n") {
		lines.Total++
		t := strings.TrimSpace(line)
		switch {
		case t == "":
			lines.Blank++
			continue
		case inBlock:
			lines.Comment++
			if strings.Contains(t, r.blockClose) {
				inBlock = false
			}
			continue
		case hasAnyPrefix(t, r.lineComments):
			lines.Comment++
			comments++
			continue
		case r.blockOpen != "" && strings.HasPrefix(t, r.blockOpen):
			lines.Comment++
			comments++
			inBlock = !strings.Contains(t[len(r.blockOpen):], r.blockClose)
			continue
		}

		lines.Code++
		code.WriteString(line)
		code.WriteByte('\n')

		// trailing comments on a code line; markers inside string literals don't count
		if r.blockOpen != "" {
			open := " " + r.blockOpen
			if i := indexOutsideQuotes(t, func(rest string) bool { return strings.HasPrefix(rest, open) }); i >= 0 {
				comments++
				inBlock = !strings.Contains(t[i+len(open):], r.blockClose)
				continue
			}
		}
		for _, p := range r.lineComments {
			marker := " " + p
			if indexOutsideQuotes(t, func(rest string) bool {
				return rest == marker || strings.HasPrefix(rest, marker+" ")
			}) >= 0 {
				comments++
				break
			}
		}
	}
	return lines, code.String(), comments
}

// indexOutsideQuotes returns the first byte offset where match holds on the
// rest of s, skipping offsets inside double, single or backtick quoted
// literals. Escapes are honoured; literals spanning lines are not tracked.
func indexOutsideQuotes(s string, match func(rest string) bool) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && quote != '`' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case match(s[i:]):
			return i
		}
	}
	return -1
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// ToMap flattens a result for storage in a JSON column.
func (r *Result) ToMap() map[string]interface{} {
	out := map[string]interface{}{}
	raw, err := json.Marshal(r)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

// Excerpt returns up to max bytes of text content, cut on a rune boundary.
// Binary content yields "".
func Excerpt(content []byte, max int) string {
	if IsBinary(content) {
		return ""
	}
	if len(content) <= max {
		return string(content)
	}
	cut := content[:max]
	for len(cut) > 0 && !isRuneStart(content[len(cut)]) {
		cut = cut[:len(cut)-1]
	}
	return string(cut)
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
