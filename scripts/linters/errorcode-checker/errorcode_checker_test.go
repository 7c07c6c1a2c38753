package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestUsageTracking(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"errors.go": `package sample

import "github.com/gear6io/lattice/pkg/errors"

var (
	ErrFirst  = errors.MustNewCode("sample.first")
	ErrSecond = errors.MustNewCode("sample.second")
	ErrOrphan = errors.MustNewCode("sample.orphan")
)
`,
		"usage.go": `package sample

func fail() error {
	return errors.New(ErrFirst, "first failed", nil)
}

func failAgain() error {
	return errors.New(ErrSecond, "second failed", nil)
}
`,
	})

	c := newChecker(false)
	require.NoError(t, c.CheckDirectory(dir, nil))

	allUsed, report := c.Report()
	assert.False(t, allUsed)
	assert.Len(t, report, 3)

	require.Contains(t, c.codes, "ErrFirst")
	assert.NotEmpty(t, c.codes["ErrFirst"].UsedIn)
	assert.NotEmpty(t, c.codes["ErrSecond"].UsedIn)
	assert.Empty(t, c.codes["ErrOrphan"].UsedIn)
	assert.Equal(t, "sample.orphan", c.codes["ErrOrphan"].Code)
}

func TestCodeShape(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"errors.go": `package sample

import "github.com/gear6io/lattice/pkg/errors"

var (
	ErrGood = errors.MustNewCode("sample.snake_case_ok")
	ErrBad  = errors.MustNewCode("SampleCamelCase")
)
`,
		"usage.go": `package sample

func use() { _ = ErrGood; _ = ErrBad }
`,
	})

	c := newChecker(false)
	require.NoError(t, c.CheckDirectory(dir, nil))

	ok, report := c.Report()
	assert.False(t, ok)

	var shapeFlagged bool
	for _, line := range report {
		if strings.Contains(line, "SHAPE") && strings.Contains(line, "SampleCamelCase") {
			shapeFlagged = true
		}
	}
	assert.True(t, shapeFlagged)
}

func TestForbiddenPatterns(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"bad.go": `package sample

import (
	"errors"
	"fmt"
)

func oops() error {
	return fmt.Errorf("ad hoc: %d", 7)
}

func worse() error {
	return errors.New("stringly")
}
`,
		"bad_test.go": `package sample

import "fmt"

func fixture() error {
	return fmt.Errorf("tests may do this")
}
`,
	})

	c := newChecker(false)
	require.NoError(t, c.CheckForbiddenPatterns(dir, nil,
		[]string{`fmt\.Errorf\(`, `errors\.New\("`}))

	ok, lines := c.ForbiddenReport()
	assert.False(t, ok)
	// The _test.go file is exempt, so only the two hits in bad.go remain.
	assert.Len(t, lines, 2)
}

func TestMintedCodeIgnoresOtherCalls(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"other.go": `package sample

import "errors"

var errPlain = errors.New("not a code")

var answer = compute(42)

func compute(n int) int { return n }
`,
	})

	c := newChecker(false)
	require.NoError(t, c.CheckDirectory(dir, nil))
	assert.Empty(t, c.codes)
}

func TestExcludePaths(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"errors.go": `package sample

import "github.com/gear6io/lattice/pkg/errors"

var ErrKept = errors.MustNewCode("sample.kept")
`,
		"skipme/errors.go": `package skipme

import "github.com/gear6io/lattice/pkg/errors"

var ErrSkipped = errors.MustNewCode("skipme.skipped")
`,
	})

	c := newChecker(false)
	require.NoError(t, c.CheckDirectory(dir, []string{"skipme"}))

	assert.Contains(t, c.codes, "ErrKept")
	assert.NotContains(t, c.codes, "ErrSkipped")
}

func TestConfigDefaultsAndOverride(t *testing.T) {
	config, err := loadConfig("")
	require.NoError(t, err)
	assert.True(t, config.CheckForbidden)
	assert.False(t, config.ExitOnUnused)
	assert.Contains(t, config.ExcludePaths, "cli/")

	path := filepath.Join(t.TempDir(), "checker.yml")
	require.NoError(t, os.WriteFile(path, []byte("exit_on_unused: true\nverbose: true\n"), 0o644))

	config, err = loadConfig(path)
	require.NoError(t, err)
	assert.True(t, config.ExitOnUnused)
	assert.True(t, config.Verbose)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
