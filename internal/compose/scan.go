// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/dsns/internal/platform/fs"
	"github.com/samber/lo"
)

// Scan lists the app directories under root that hold a base or an override
// file, sorted by name. Hidden directories and directories that resolve
// outside root are skipped.
func Scan(root string) ([]App, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	apps := make([]App, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		app, ok := inspect(root, e.Name())
		if ok {
			apps = append(apps, app)
		}
	}
	// ReadDir already returns entries sorted by file name.
	return apps, nil
}

// inspect builds the App for one directory entry of root.
func inspect(root, name string) (App, bool) {
	dir, err := fs.ConfineRelPath(root, name)
	if err != nil {
		return App{}, false
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return App{}, false
	}

	app := App{
		Name:         name,
		Dir:          dir,
		BasePath:     filepath.Join(dir, BaseFile),
		OverridePath: filepath.Join(dir, OverrideFile),
	}
	app.HasBase = fs.IsRegularFile(app.BasePath) == nil
	app.HasOverride = fs.IsRegularFile(app.OverridePath) == nil
	app.CanApply = app.HasBase && app.HasOverride
	return app, app.HasBase || app.HasOverride
}

// Lookup returns the app called name.
func Lookup(root, name string) (App, error) {
	if name == "" || strings.ContainsRune(name, filepath.Separator) || strings.HasPrefix(name, ".") {
		return App{}, fmt.Errorf("%w: %q", ErrAppNotFound, name)
	}
	app, ok := inspect(root, name)
	if !ok {
		return App{}, fmt.Errorf("%w: %q", ErrAppNotFound, name)
	}
	return app, nil
}

// Applicable filters apps down to the ones that can be merged.
func Applicable(apps []App) []App {
	return lo.Filter(apps, func(a App, _ int) bool { return a.CanApply })
}
