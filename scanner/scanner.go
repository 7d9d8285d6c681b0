// Package scanner rebuilds location groups from an organized
// Photos/{Year}/{Place} tree.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"family-atlas/media"
	"family-atlas/metadata"
	"family-atlas/model"
)

// NonessentialDir holds rejected images and is never scanned.
const NonessentialDir = "NONESSENTIAL"

// Scan walks root/{year}/{place} and returns one group per place folder
// holding at least one scannable image. Groups come out sorted by year then
// place, photos by path, so repeated scans of an unchanged tree are equal.
// A missing root yields no groups.
func Scan(root string) ([]model.LocationGroup, error) {
	years, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	var groups []model.LocationGroup
	for _, year := range years {
		if !year.IsDir() || year.Name() == NonessentialDir {
			continue
		}
		yearDir := filepath.Join(root, year.Name())
		places, err := os.ReadDir(yearDir)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", yearDir, err)
		}
		for _, place := range places {
			if !place.IsDir() {
				continue
			}
			placeDir := filepath.Join(yearDir, place.Name())
			files, err := collectImages(placeDir)
			if err != nil {
				return nil, err
			}
			if len(files) == 0 {
				continue
			}

			g := model.NewLocationGroup(year.Name(), place.Name(), placeDir, coordsOf(files[0]))
			for _, f := range files {
				g.Photos = append(g.Photos, model.NewPhoto(filepath.Base(f), f))
			}
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// collectImages returns every scannable image below dir in lexical order.
func collectImages(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && media.IsScannable(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

// coordsOf reads the GPS position of path, defaulting to (0, 0).
func coordsOf(path string) model.Coordinates {
	tags, ok := metadata.Read(path)
	if !ok {
		return model.Coordinates{}
	}
	lat, lon, ok := metadata.ExtractGPS(tags)
	if !ok {
		return model.Coordinates{}
	}
	return model.Coordinates{Lat: lat, Lon: lon}
}

// ListFolder lists the scannable images directly inside dir.
func ListFolder(dir string) ([]model.Photo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var photos []model.Photo
	for _, e := range entries {
		if e.IsDir() || !media.IsScannable(e.Name()) {
			continue
		}
		photos = append(photos, model.NewPhoto(e.Name(), filepath.Join(dir, e.Name())))
	}
	return photos, nil
}

// Subfolders returns the names of the folders directly inside dir, sorted.
func Subfolders(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
