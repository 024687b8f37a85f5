package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "assembly"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists what a layer of a bounded-context service may import.
// Allowed entries are relative to the service root.
type layerRule struct {
	allowed   []string
	forbidden map[string]string
}

var layerRules = map[string]layerRule{
	"domain": {
		allowed: []string{"domain"},
		forbidden: map[string]string{
			"/adapters/":              "domain must not import adapters",
			modulePath + "/internal/": "domain must not import runtime infrastructure",
		},
	},
	"ports": {
		allowed: []string{"domain"},
	},
	"application": {
		allowed: []string{"application", "domain", "ports"},
		forbidden: map[string]string{
			"/adapters/":              "application must not import adapters",
			modulePath + "/internal/": "application must not import runtime infrastructure",
		},
	},
	"transport": {
		allowed: []string{"transport"},
	},
}

func main() {
	root := "contexts"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	violations := collectViolations(root)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Import < violations[j].Import
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, relErr := filepath.Rel(filepath.Dir(root), path)
		if relErr != nil {
			return nil
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		// contexts/<context>/<service>/<layer>/...
		if len(parts) < 4 || parts[0] != "contexts" {
			return nil
		}
		servicePrefix := strings.Join([]string{modulePath, "contexts", parts[1], parts[2]}, "/")
		violations = append(violations, validateFile(path, filepath.ToSlash(rel), parts[3], servicePrefix)...)
		return nil
	})
	return violations
}

func validateFile(path string, normalizedPath string, layer string, servicePrefix string) []violation {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: normalizedPath, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		report := func(rule string) {
			violations = append(violations, violation{
				File:   normalizedPath,
				Line:   fset.Position(imp.Pos()).Line,
				Import: importPath,
				Rule:   rule,
			})
		}

		if strings.HasPrefix(importPath, modulePath+"/contexts/") && !hasPrefix(importPath, servicePrefix) {
			report("cross-module imports are forbidden")
		}

		rule, ok := layerRules[layer]
		if !ok {
			continue
		}
		for _, fragment := range sortedKeys(rule.forbidden) {
			if strings.Contains(importPath, fragment) {
				report(rule.forbidden[fragment])
			}
		}
		if !isStdlib(importPath) && !allowedBy(importPath, servicePrefix, rule.allowed) {
			report(layer + " import is outside explicit allowlist")
		}
	}
	return violations
}

func allowedBy(importPath string, servicePrefix string, layers []string) bool {
	for _, layer := range layers {
		if hasPrefix(importPath, servicePrefix+"/"+layer) {
			return true
		}
	}
	return false
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isModuleImport(importPath string) bool {
	return hasPrefix(importPath, modulePath)
}

func isStdlib(importPath string) bool {
	if isModuleImport(importPath) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
