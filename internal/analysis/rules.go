package analysis

import "regexp"

type rules struct {
	lineComments []string
	blockOpen    string
	blockClose   string
	functions    *regexp.Regexp
	classes      *regexp.Regexp
	imports      *regexp.Regexp
	// importBlocks captures grouped imports; each quoted path inside counts.
	importBlocks *regexp.Regexp
}

var quotedPath = regexp.MustCompile(`"[^"\n]+"`)

func (r rules) countImports(code string) int {
	n := len(r.imports.FindAllStringIndex(code, -1))
	if r.importBlocks != nil {
		for _, m := range r.importBlocks.FindAllStringSubmatch(code, -1) {
			n += len(quotedPath.FindAllStringIndex(m[1], -1))
		}
	}
	return n
}

var branchRegex = regexp.MustCompile(`\b(?:if|for|while|case|catch)\b|&&|\|\|`)

var familyRules = map[family]rules{
	familyGo: {
		lineComments: []string{"//"},
		blockOpen:    "/*",
		blockClose:   "*/",
		functions:    regexp.MustCompile(`(?m)^\s*func\b`),
		classes:      regexp.MustCompile(`(?m)^\s*type\s+\w+(?:\[[^\]]*\])?\s+(?:struct|interface)\b`),
		imports:      regexp.MustCompile(`(?m)^\s*import\s+(?:[\w.]+\s+)?"[^"]+"`),
		importBlocks: regexp.MustCompile(`(?s)\bimport\s*\((.*?)\)`),
	},
	familyPython: {
		lineComments: []string{"#"},
		blockOpen:    `"""`,
		blockClose:   `"""`,
		functions:    regexp.MustCompile(`(?m)^\s*(?:async\s+)?def\s+\w+`),
		classes:      regexp.MustCompile(`(?m)^\s*class\s+\w+`),
		imports:      regexp.MustCompile(`(?m)^\s*(?:import|from)\s+[\w.]+`),
	},
	familyJS: {
		lineComments: []string{"//"},
		blockOpen:    "/*",
		blockClose:   "*/",
		functions:    regexp.MustCompile(`\bfunction\b|=>`),
		classes:      regexp.MustCompile(`\b(?:class|interface)\s+\w+`),
		imports:      regexp.MustCompile(`(?m)^\s*import\b|\brequire\(`),
	},
	familyJVM: {
		lineComments: []string{"//"},
		blockOpen:    "/*",
		blockClose:   "*/",
		functions:    regexp.MustCompile(`(?m)^\s*(?:(?:public|private|protected|internal|static|final|override|abstract|synchronized|async|virtual|suspend|open)\s+)+[\w<>\[\],.?]+\s+\w+\s*\(|\bfun\s+\w+`),
		classes:      regexp.MustCompile(`\b(?:class|interface|enum|record|object)\s+\w+`),
		imports:      regexp.MustCompile(`(?m)^\s*(?:import|using)\s+[\w.]+`),
	},
	familyC: {
		lineComments: []string{"//"},
		blockOpen:    "/*",
		blockClose:   "*/",
		functions:    regexp.MustCompile(`(?m)^[\w*&:<>\s]*?\w[\w*&:<>]*\s+\**[\w:~]+\s*\([^;{]*\)\s*(?:const\s*)?\{?\s*$`),
		classes:      regexp.MustCompile(`\b(?:class|struct)\s+\w+\s*(?::[^{;]*)?\{`),
		imports:      regexp.MustCompile(`(?m)^\s*#\s*include\b`),
	},
	familyRuby: {
		lineComments: []string{"#"},
		blockOpen:    "=begin",
		blockClose:   "=end",
		functions:    regexp.MustCompile(`(?m)^\s*def\s+`),
		classes:      regexp.MustCompile(`(?m)^\s*(?:class|module)\s+[A-Z]`),
		imports:      regexp.MustCompile(`(?m)^\s*(?:require|require_relative|load)\b`),
	},
	familyPHP: {
		lineComments: []string{"//", "#"},
		blockOpen:    "/*",
		blockClose:   "*/",
		functions:    regexp.MustCompile(`\bfunction\s+\w+|\bfn\s*\(`),
		classes:      regexp.MustCompile(`\b(?:class|interface|trait)\s+\w+`),
		imports:      regexp.MustCompile(`(?m)^\s*(?:use|require|require_once|include|include_once)\b`),
	},
	familyRust: {
		lineComments: []string{"//"},
		blockOpen:    "/*",
		blockClose:   "*/",
		functions:    regexp.MustCompile(`\bfn\s+\w+`),
		classes:      regexp.MustCompile(`(?m)^\s*(?:pub(?:\([^)]*\))?\s+)?(?:struct|enum|trait|impl)\b`),
		imports:      regexp.MustCompile(`(?m)^\s*(?:pub\s+)?(?:use|extern\s+crate)\s`),
	},
	familyGeneric: {
		lineComments: []string{"//", "#"},
		blockOpen:    "/*",
		blockClose:   "*/",
		functions:    regexp.MustCompile(`\bfunc(?:tion)?\b|\bdef\s+\w+`),
		classes:      regexp.MustCompile(`\bclass\s+\w+`),
		imports:      regexp.MustCompile(`(?m)^\s*(?:import|include|require|using)\b`),
	},
}
