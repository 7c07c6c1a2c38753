package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// codeShape is the required form of a minted code string: lowercase dotted
// snake, at least two segments ("catalog.table_not_found").
var codeShape = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)+$`)

// codeInfo records one errors.MustNewCode declaration and everywhere it is
// referenced outside the declaring line.
type codeInfo struct {
	Name   string
	Code   string
	File   string
	Line   int
	UsedIn []string
}

type violation struct {
	File    string
	Line    int
	Message string
}

// checker walks a source tree and collects the error-code discipline state:
// declared codes, their references, malformed code strings, and ad-hoc error
// construction inside packages that are expected to mint codes.
type checker struct {
	fset         *token.FileSet
	codes        map[string]*codeInfo
	shapeErrs    []violation
	forbidden    []violation
	excludePaths []string
	verbose      bool
}

func newChecker(verbose bool) *checker {
	return &checker{
		fset:    token.NewFileSet(),
		codes:   make(map[string]*codeInfo),
		verbose: verbose,
	}
}

func (c *checker) debugf(format string, args ...interface{}) {
	if c.verbose {
		fmt.Printf(format, args...)
	}
}

func (c *checker) excluded(path string) bool {
	for _, p := range c.excludePaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

// CheckDirectory runs both passes over every Go file under dir. Declarations
// and usages can live in any order on disk, so the walk happens twice: once
// to collect minted codes, once to find references to them.
func (c *checker) CheckDirectory(dir string, excludePaths []string) error {
	c.excludePaths = excludePaths

	files, err := c.goFiles(dir)
	if err != nil {
		return err
	}

	parsed := make(map[string]*ast.File, len(files))
	for _, path := range files {
		file, err := parser.ParseFile(c.fset, path, nil, parser.ParseComments)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		parsed[path] = file
		c.collectDeclarations(file, path)
	}
	for path, file := range parsed {
		c.collectUsage(file, path)
	}
	return nil
}

func (c *checker) goFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if c.excluded(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// collectDeclarations records every `X = errors.MustNewCode("...")` and
// checks the minted string's shape.
func (c *checker) collectDeclarations(file *ast.File, path string) {
	ast.Inspect(file, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, name := range spec.Names {
			if len(spec.Values) <= i {
				continue
			}
			lit := mintedCode(spec.Values[i])
			if lit == "" {
				continue
			}
			pos := c.fset.Position(name.Pos())
			c.debugf("found code %s = %q at %s:%d\n", name.Name, lit, path, pos.Line)
			c.codes[name.Name] = &codeInfo{
				Name: name.Name,
				Code: lit,
				File: path,
				Line: pos.Line,
			}
			if !codeShape.MatchString(lit) {
				c.shapeErrs = append(c.shapeErrs, violation{
					File:    path,
					Line:    pos.Line,
					Message: fmt.Sprintf("code %q is not lowercase dotted snake_case", lit),
				})
			}
		}
		return true
	})
}

// mintedCode returns the string literal argument of an errors.MustNewCode
// call, or "" when the expression is anything else.
func mintedCode(expr ast.Expr) string {
	call, ok := expr.(*ast.CallExpr)
	if !ok || len(call.Args) != 1 {
		return ""
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	var funName string
	if ok {
		ident, isIdent := sel.X.(*ast.Ident)
		if !isIdent || ident.Name != "errors" {
			return ""
		}
		funName = sel.Sel.Name
	} else if ident, isIdent := call.Fun.(*ast.Ident); isIdent {
		// pkg/errors mints its own common codes without a qualifier.
		funName = ident.Name
	} else {
		return ""
	}
	if funName != "MustNewCode" {
		return ""
	}
	lit, ok := call.Args[0].(*ast.BasicLit)
	if !ok {
		return ""
	}
	return strings.Trim(lit.Value, `"`)
}

// collectUsage marks a code used when its identifier appears anywhere other
// than its declaration line.
func (c *checker) collectUsage(file *ast.File, path string) {
	ast.Inspect(file, func(n ast.Node) bool {
		ident, ok := n.(*ast.Ident)
		if !ok {
			return true
		}
		info, exists := c.codes[ident.Name]
		if !exists {
			return true
		}
		pos := c.fset.Position(ident.Pos())
		if path == info.File && pos.Line == info.Line {
			return true
		}
		info.UsedIn = append(info.UsedIn, fmt.Sprintf("%s:%d", path, pos.Line))
		return true
	})
}

// CheckForbiddenPatterns flags ad-hoc error construction in files that are
// expected to use minted codes. Test files are skipped: fixtures build
// errors however they like.
func (c *checker) CheckForbiddenPatterns(dir string, excludePaths, patterns []string) error {
	c.excludePaths = excludePaths

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("bad forbidden pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	files, err := c.goFiles(dir)
	if err != nil {
		return err
	}
	for _, path := range files {
		if strings.HasSuffix(path, "_test.go") {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for i, line := range strings.Split(string(data), "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "//") {
				continue
			}
			for _, re := range compiled {
				if re.MatchString(line) {
					c.forbidden = append(c.forbidden, violation{
						File:    path,
						Line:    i + 1,
						Message: fmt.Sprintf("forbidden pattern %s", re.String()),
					})
				}
			}
		}
	}
	return nil
}

// Report renders the findings. The bool is true when every declared code is
// referenced somewhere.
func (c *checker) Report() (bool, []string) {
	names := make([]string, 0, len(c.codes))
	for name := range c.codes {
		names = append(names, name)
	}
	sort.Strings(names)

	allUsed := true
	var lines []string
	for _, name := range names {
		info := c.codes[name]
		if len(info.UsedIn) == 0 {
			allUsed = false
			lines = append(lines, fmt.Sprintf("❌ UNUSED %s (%s) declared at %s:%d",
				info.Name, info.Code, info.File, info.Line))
		} else {
			lines = append(lines, fmt.Sprintf("✅ %s (%s) used %d time(s)",
				info.Name, info.Code, len(info.UsedIn)))
		}
	}
	for _, v := range c.shapeErrs {
		lines = append(lines, fmt.Sprintf("❌ SHAPE %s:%d: %s", v.File, v.Line, v.Message))
	}
	return allUsed && len(c.shapeErrs) == 0, lines
}

// ForbiddenReport renders the forbidden-pattern findings. The bool is true
// when none were found.
func (c *checker) ForbiddenReport() (bool, []string) {
	var lines []string
	for _, v := range c.forbidden {
		lines = append(lines, fmt.Sprintf("❌ %s:%d: %s", v.File, v.Line, v.Message))
	}
	return len(c.forbidden) == 0, lines
}
