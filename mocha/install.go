package mocha

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	th "github.com/launchdarkly/go-test-helpers/v2"
)

// ErrNPMNotFound is returned when npm cannot be run.
var ErrNPMNotFound = errors.New("npm(1) not found. Please install Node.js")

// Installer installs Node.js packages with npm.
type Installer struct {
	// NPM is the npm command; empty means "npm" from the PATH.
	NPM string

	Loggers ldlog.Loggers

	// Output receives npm's standard output and standard error. Nil discards them.
	Output io.Writer
}

// Install runs "npm install" for packages in dir, creating dir/node_modules first so that npm
// installs there rather than in some parent directory that has one.
func (i Installer) Install(dir string, packages ...string) error {
	if err := os.MkdirAll(filepath.Join(dir, "node_modules"), 0755); err != nil { //nolint:gosec
		return err
	}
	npm := i.NPM
	if npm == "" {
		npm = "npm"
	}
	args := append([]string{"install"}, packages...)
	i.Loggers.Infof("cd %s", dir)
	i.Loggers.Infof("%s %s", npm, strings.Join(args, " "))

	cmd := exec.Command(npm, args...) //nolint:gosec
	cmd.Dir = dir
	cmd.Stdout = i.Output
	cmd.Stderr = i.Output
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return ErrNPMNotFound
		}
		return fmt.Errorf("npm install failed: %w", err)
	}
	return nil
}

// EnsureInstalled does nothing if executable exists; otherwise it installs packages in dir.
func (i Installer) EnsureInstalled(executable, dir string, packages ...string) error {
	if th.FilePathExists(executable) {
		return nil
	}
	i.Loggers.Warnf("Mocha not found (%s), fetching from npm", executable)
	return i.Install(dir, packages...)
}
