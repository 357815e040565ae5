package mocha

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeMocha is a shell script standing in for mocha(1). It records its arguments and working
// directory, then prints canned output.
type fakeMocha struct {
	dir  string
	path string
}

func requireShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake mocha executables are shell scripts")
	}
}

func newFakeMocha(t *testing.T, dir, output string, exitCode int) fakeMocha {
	return newFakeMochaScript(t, dir, output, "exit "+strconv.Itoa(exitCode))
}

func newFakeMochaScript(t *testing.T, dir, output, tail string) fakeMocha {
	requireShell(t)
	f := fakeMocha{dir: dir, path: filepath.Join(dir, "mocha")}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "output.tap"), []byte(output), 0644))
	script := strings.Join([]string{
		"#!/bin/sh",
		`printf '%s\n' "$@" > "` + filepath.Join(dir, "args") + `"`,
		`pwd > "` + filepath.Join(dir, "cwd") + `"`,
		`cat "` + filepath.Join(dir, "output.tap") + `"`,
		tail,
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(f.path, []byte(script), 0755)) //nolint:gosec
	return f
}

// args returns the arguments of the last run, or nil if it never ran.
func (f fakeMocha) args(t *testing.T) []string {
	data, err := os.ReadFile(filepath.Join(f.dir, "args"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func (f fakeMocha) ran() bool {
	_, err := os.Stat(filepath.Join(f.dir, "args"))
	return err == nil
}

func (f fakeMocha) cwd(t *testing.T) string {
	data, err := os.ReadFile(filepath.Join(f.dir, "cwd"))
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

