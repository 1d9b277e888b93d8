// Package search trawls a survey directory (local filesystem or an
// object store such as S3) for the files an acquisition run's "search"
// keyword (package control) operates on: survey images and their
// sidecar JSON configuration files, using TileDB's VFS abstraction so
// the same code works against either storage backend without a
// filesystem-specific branch.
package search

import (
	"path/filepath"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// trawl recursively lists uri, collecting files whose basename matches
// pattern.
func trawl(vfs *tiledb.VFS, pattern string, uri string, items []string) ([]string, error) {
	dirs, files, err := vfs.List(uri)
	if err != nil {
		return items, err
	}

	for _, file := range files {
		match, err := filepath.Match(pattern, filepath.Base(file))
		if err != nil {
			return items, err
		}
		if match {
			items = append(items, file)
		}
	}

	for _, dir := range dirs {
		items, err = trawl(vfs, pattern, dir, items)
		if err != nil {
			return items, err
		}
	}

	return items, nil
}

func newVFS(configURI string) (*tiledb.Context, *tiledb.VFS, error) {
	var (
		cfg *tiledb.Config
		err error
	)
	if configURI == "" {
		cfg, err = tiledb.NewConfig()
	} else {
		cfg, err = tiledb.LoadConfig(configURI)
	}
	if err != nil {
		return nil, nil, err
	}
	defer cfg.Free()

	ctx, err := tiledb.NewContext(cfg)
	if err != nil {
		return nil, nil, err
	}

	vfs, err := tiledb.NewVFS(ctx, cfg)
	if err != nil {
		ctx.Free()
		return nil, nil, err
	}
	return ctx, vfs, nil
}

// FindSurveyImages recursively searches uri for survey image files
// (".tif" extension; ".tiff" is not matched), the "search" control keyword's default
// target.
func FindSurveyImages(uri, configURI string) ([]string, error) {
	return findPattern(uri, configURI, "*.tif")
}

// FindConfigs recursively searches uri for the JSON configuration
// sidecars package config loads.
func FindConfigs(uri, configURI string) ([]string, error) {
	return findPattern(uri, configURI, "*.json")
}

func findPattern(uri, configURI, pattern string) ([]string, error) {
	ctx, vfs, err := newVFS(configURI)
	if err != nil {
		return nil, err
	}
	defer ctx.Free()
	defer vfs.Free()

	return trawl(vfs, pattern, uri, make([]string, 0))
}
