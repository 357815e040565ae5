package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ejones/mocha-test-harness/framework/testhost"
	"github.com/ejones/mocha-test-harness/mocha"
)

// discoverTests offers every file and directory under the requested locations to the plugin,
// which picks out the ones it was configured for.
func discoverTests(t *testhost.T, plugin *mocha.Plugin, locations []string) {
	if len(locations) == 0 {
		locations = []string{"."}
	}
	for _, location := range locations {
		root, err := mocha.NormalizeLocation(location)
		if err == nil {
			_, err = os.Stat(root)
		}
		if err != nil {
			t.Run(location, func(t *testhost.T) {
				t.Errorf("cannot read test location %s: %s", location, err)
			})
			continue
		}
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if len(plugin.Dispatcher().Outstanding()) == 0 {
				return filepath.SkipAll
			}
			if err != nil {
				return nil //nolint:nilerr
			}
			if d.IsDir() && path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			plugin.LoadTests(t, path)
			return nil
		})
	}
}

func skipDir(name string) bool {
	return name == "node_modules" || strings.HasPrefix(name, ".")
}
