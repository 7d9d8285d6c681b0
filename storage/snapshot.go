package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"family-atlas/model"
)

const SnapshotVersion = "1.0.0"

var ErrNoSnapshot = errors.New("no snapshot saved")

// savedAtLayouts are tried in order when reading saved_at. Files written by
// older tools carry no zone offset and are read as local time.
var savedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is the snapshot's saved_at. It is informational only, so a
// value in no known layout loads as the zero time instead of failing.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range savedAtLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// LocationRecord is the on-disk form of a model.LocationGroup.
type LocationRecord struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Lat        float64       `json:"lat"`
	Lng        float64       `json:"lng"`
	Year       string        `json:"year"`
	FolderPath string        `json:"folder_path,omitempty"`
	Photos     []model.Photo `json:"photos"`
	PhotoCount int           `json:"photo_count"`
}

// Snapshot is the saved state of an organized library.
type Snapshot struct {
	Version        string                    `json:"version"`
	SavedAt        Timestamp                 `json:"saved_at"`
	BasePath       string                    `json:"base_path"`
	Locations      map[string]LocationRecord `json:"locations"`
	TotalLocations int                       `json:"total_locations"`
	TotalPhotos    int                       `json:"total_photos"`
}

func ToRecord(g model.LocationGroup) LocationRecord {
	photos := g.Photos
	if photos == nil {
		photos = []model.Photo{}
	}
	return LocationRecord{
		ID:         g.ID,
		Name:       g.Name,
		Lat:        g.Coords.Lat,
		Lng:        g.Coords.Lon,
		Year:       g.Year,
		FolderPath: g.FolderPath,
		Photos:     photos,
		PhotoCount: len(photos),
	}
}

func FromRecord(r LocationRecord) model.LocationGroup {
	return model.LocationGroup{
		ID:         r.ID,
		Name:       r.Name,
		Coords:     model.Coordinates{Lat: r.Lat, Lon: r.Lng},
		Year:       r.Year,
		FolderPath: r.FolderPath,
		Photos:     append([]model.Photo(nil), r.Photos...),
	}
}

// NewSnapshot captures groups with their totals.
func NewSnapshot(basePath string, groups []model.LocationGroup) Snapshot {
	s := Snapshot{
		Version:   SnapshotVersion,
		SavedAt:   Timestamp{time.Now()},
		BasePath:  basePath,
		Locations: make(map[string]LocationRecord, len(groups)),
	}
	for _, g := range groups {
		s.Locations[g.ID] = ToRecord(g)
	}
	s.TotalLocations = len(s.Locations)
	for _, r := range s.Locations {
		s.TotalPhotos += len(r.Photos)
	}
	return s
}

// Groups returns the snapshot's locations sorted by id.
func (s *Snapshot) Groups() []model.LocationGroup {
	groups := make([]model.LocationGroup, 0, len(s.Locations))
	for id, r := range s.Locations {
		if r.ID == "" {
			r.ID = id
		}
		groups = append(groups, FromRecord(r))
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}

type SnapshotStore interface {
	Save(s Snapshot) error
	Load() (*Snapshot, error)
}

// FileSnapshotStore keeps the snapshot as indented JSON at Path and the
// previous generation at Path + ".backup".
type FileSnapshotStore struct {
	Path string
}

func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{Path: path}
}

func (f *FileSnapshotStore) BackupPath() string {
	return f.Path + ".backup"
}

func (f *FileSnapshotStore) Save(s Snapshot) error {
	if s.Version == "" {
		s.Version = SnapshotVersion
	}
	if s.SavedAt.IsZero() {
		s.SavedAt = Timestamp{time.Now()}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot folder: %w", err)
	}
	if _, err := os.Stat(f.Path); err == nil {
		if err := os.Rename(f.Path, f.BackupPath()); err != nil {
			return fmt.Errorf("failed to back up snapshot: %w", err)
		}
	}

	tempFile := f.Path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tempFile, f.Path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to update snapshot: %w", err)
	}
	return nil
}

func (f *FileSnapshotStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if s.Locations == nil {
		s.Locations = map[string]LocationRecord{}
	}
	return &s, nil
}
