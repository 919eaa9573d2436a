package analysis

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

type family string

const (
	familyGo      family = "go"
	familyPython  family = "python"
	familyJS      family = "js"
	familyJVM     family = "jvm"
	familyC       family = "c"
	familyRuby    family = "ruby"
	familyPHP     family = "php"
	familyRust    family = "rust"
	familyGeneric family = "generic"
)

type language struct {
	name   string
	family family
}

var byExtension = map[string]language{
	".go":    {"Go", familyGo},
	".py":    {"Python", familyPython},
	".pyw":   {"Python", familyPython},
	".js":    {"JavaScript", familyJS},
	".mjs":   {"JavaScript", familyJS},
	".cjs":   {"JavaScript", familyJS},
	".jsx":   {"JavaScript", familyJS},
	".ts":    {"TypeScript", familyJS},
	".tsx":   {"TypeScript", familyJS},
	".java":  {"Java", familyJVM},
	".kt":    {"Kotlin", familyJVM},
	".kts":   {"Kotlin", familyJVM},
	".cs":    {"C#", familyJVM},
	".scala": {"Scala", familyJVM},
	".c":     {"C", familyC},
	".h":     {"C", familyC},
	".cc":    {"C++", familyC},
	".cpp":   {"C++", familyC},
	".cxx":   {"C++", familyC},
	".hpp":   {"C++", familyC},
	".rb":    {"Ruby", familyRuby},
	".php":   {"PHP", familyPHP},
	".rs":    {"Rust", familyRust},
	".sh":    {"Shell", familyGeneric},
	".sql":   {"SQL", familyGeneric},
	".md":    {"Markdown", familyGeneric},
	".yaml":  {"YAML", familyGeneric},
	".yml":   {"YAML", familyGeneric},
	".json":  {"JSON", familyGeneric},
	".html":  {"HTML", familyGeneric},
	".css":   {"CSS", familyGeneric},
	".txt":   {"Text", familyGeneric},
}

// chroma lexer names that map onto a known family.
var chromaFamilies = map[string]family{
	"go":          familyGo,
	"python":      familyPython,
	"python 2":    familyPython,
	"javascript":  familyJS,
	"typescript":  familyJS,
	"java":        familyJVM,
	"kotlin":      familyJVM,
	"c#":          familyJVM,
	"scala":       familyJVM,
	"groovy":      familyJVM,
	"c":           familyC,
	"c++":         familyC,
	"objective-c": familyC,
	"ruby":        familyRuby,
	"php":         familyPHP,
	"rust":        familyRust,
}

var specialNames = map[string]language{
	"makefile":   {"Makefile", familyGeneric},
	"dockerfile": {"Dockerfile", familyGeneric},
	"gemfile":    {"Ruby", familyRuby},
	"rakefile":   {"Ruby", familyRuby},
}

// detectLanguage uses the extension table first, then chroma's filename
// matching.
func detectLanguage(filename string) language {
	base := filepath.Base(filename)
	if l, ok := specialNames[strings.ToLower(base)]; ok {
		return l
	}
	if l, ok := byExtension[strings.ToLower(filepath.Ext(base))]; ok {
		return l
	}
	if lexer := lexers.Match(base); lexer != nil {
		name := lexer.Config().Name
		fam, ok := chromaFamilies[strings.ToLower(name)]
		if !ok {
			fam = familyGeneric
		}
		return language{name: name, family: fam}
	}
	return language{name: "Unknown", family: familyGeneric}
}

// DetectLanguage returns the display name of the language for filename.
func DetectLanguage(filename string) string {
	return detectLanguage(filename).name
}
