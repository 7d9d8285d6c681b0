// Package organizer keeps the in-memory library of location groups in sync
// with the folders on disk and the saved snapshot.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"family-atlas/model"
	"family-atlas/pipeline"
	"family-atlas/scanner"
	"family-atlas/storage"
	"family-atlas/worker"
)

var (
	ErrLocationNotFound = errors.New("location not found")
	ErrPhotoNotFound    = errors.New("photo not found")
	ErrInvalidName      = errors.New("invalid folder name")
)

// Submitter queues pipeline runs.
type Submitter interface {
	Submit(ctx context.Context, source, base string, mode pipeline.Mode) (*worker.Job, error)
}

// Organizer is the front end every command goes through. Each change to
// the library is saved to the snapshot store right away.
type Organizer struct {
	BasePath  string
	Worker    Submitter
	Storage   storage.PhotoStorage
	Snapshots storage.SnapshotStore
	Log       *zap.Logger

	mu        sync.Mutex
	locations map[string]model.LocationGroup
}

func New(basePath string, w Submitter, store storage.PhotoStorage, snapshots storage.SnapshotStore, log *zap.Logger) *Organizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Organizer{
		BasePath:  basePath,
		Worker:    w,
		Storage:   store,
		Snapshots: snapshots,
		Log:       log,
		locations: make(map[string]model.LocationGroup),
	}
}

// Process runs the pipeline over source on the background worker, forwards
// its progress to onProgress and replaces the library with the result.
func (o *Organizer) Process(ctx context.Context, source string, mode pipeline.Mode, onProgress func(pipeline.Progress)) ([]model.LocationGroup, error) {
	job, err := o.Worker.Submit(ctx, source, o.BasePath, mode)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", source, err)
	}
	for p := range job.Progress() {
		if onProgress != nil {
			onProgress(p)
		}
	}
	res := <-job.Done()
	if res.Err != nil {
		return nil, res.Err
	}

	o.mu.Lock()
	o.locations = make(map[string]model.LocationGroup, len(res.Groups))
	for _, g := range res.Groups {
		o.locations[g.ID] = g
	}
	o.mu.Unlock()

	o.Log.Info("library updated",
		zap.String("job_id", res.JobID),
		zap.Int("locations", len(res.Groups)),
	)
	if err := o.Save(); err != nil {
		return res.Groups, err
	}
	return o.Locations(), nil
}

// Locations returns a copy of the library sorted by id.
func (o *Organizer) Locations() []model.LocationGroup {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sortedLocked()
}

func (o *Organizer) sortedLocked() []model.LocationGroup {
	groups := make([]model.LocationGroup, 0, len(o.locations))
	for _, g := range o.locations {
		g.Photos = append([]model.Photo(nil), g.Photos...)
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}

func (o *Organizer) Location(id string) (model.LocationGroup, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	g, ok := o.locations[id]
	return g, ok
}

// DeletePhoto removes a photo file and its record.
func (o *Organizer) DeletePhoto(locationID, photoID string) error {
	o.mu.Lock()
	g, photo, err := o.findLocked(locationID, photoID)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	if err := o.Storage.Remove(photo.URL); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.mu.Unlock()
		return err
	}
	o.dropPhotoLocked(g, photo.ID)
	o.mu.Unlock()

	o.Log.Info("photo deleted",
		zap.String("location", locationID),
		zap.String("photo", photoID),
	)
	return o.Save()
}

// MoveToNonessential moves a photo into Photos/NONESSENTIAL and drops its
// record. It returns the photo's new path.
func (o *Organizer) MoveToNonessential(locationID, photoID string) (string, error) {
	o.mu.Lock()
	g, photo, err := o.findLocked(locationID, photoID)
	if err != nil {
		o.mu.Unlock()
		return "", err
	}
	dest := filepath.Join(o.BasePath, pipeline.PhotosDir, scanner.NonessentialDir)
	newPath, err := o.Storage.Relocate(filepath.Base(photo.URL), filepath.Dir(photo.URL), dest)
	if err != nil {
		o.mu.Unlock()
		return "", err
	}
	o.dropPhotoLocked(g, photo.ID)
	o.mu.Unlock()

	o.Log.Info("photo moved to nonessential",
		zap.String("location", locationID),
		zap.String("photo", photoID),
		zap.String("path", newPath),
	)
	return newPath, o.Save()
}

func (o *Organizer) findLocked(locationID, photoID string) (model.LocationGroup, model.Photo, error) {
	g, ok := o.locations[locationID]
	if !ok {
		return g, model.Photo{}, fmt.Errorf("%w: %s", ErrLocationNotFound, locationID)
	}
	i := g.Photo(photoID)
	if i < 0 {
		return g, model.Photo{}, fmt.Errorf("%w: %s in %s", ErrPhotoNotFound, photoID, locationID)
	}
	return g, g.Photos[i], nil
}

// dropPhotoLocked removes the record and discards the group, folder
// included, once its last photo is gone.
func (o *Organizer) dropPhotoLocked(g model.LocationGroup, photoID string) {
	g.Photos = append([]model.Photo(nil), g.Photos...)
	g.RemovePhoto(photoID)
	if !g.Empty() {
		o.locations[g.ID] = g
		return
	}
	delete(o.locations, g.ID)
	if g.FolderPath == "" {
		return
	}
	if err := os.Remove(g.FolderPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		o.Log.Warn("could not remove location folder",
			zap.String("folder", g.FolderPath),
			zap.Error(err),
		)
	}
}

// RenameLocation changes the display name of a location.
func (o *Organizer) RenameLocation(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	o.mu.Lock()
	g, ok := o.locations[id]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLocationNotFound, id)
	}
	g.Name = name
	o.locations[id] = g
	o.mu.Unlock()
	return o.Save()
}

// CreateSubfolder makes a folder inside a location and returns its path.
func (o *Organizer) CreateSubfolder(id, name string) (string, error) {
	folder, err := o.folder(id)
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	dir := filepath.Join(folder, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create subfolder %s: %w", dir, err)
	}
	return dir, nil
}

func (o *Organizer) Subfolders(id string) ([]string, error) {
	folder, err := o.folder(id)
	if err != nil {
		return nil, err
	}
	return scanner.Subfolders(folder)
}

// FolderPhotos lists the photos of a location's folder, or of one of its
// subfolders when sub is not empty.
func (o *Organizer) FolderPhotos(id, sub string) ([]model.Photo, error) {
	folder, err := o.folder(id)
	if err != nil {
		return nil, err
	}
	if sub != "" {
		if strings.ContainsAny(sub, `/\`) || sub == "." || sub == ".." {
			return nil, fmt.Errorf("%w: %q", ErrInvalidName, sub)
		}
		folder = filepath.Join(folder, sub)
	}
	return scanner.ListFolder(folder)
}

func (o *Organizer) folder(id string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	g, ok := o.locations[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrLocationNotFound, id)
	}
	return g.FolderPath, nil
}

// Save writes the library to the snapshot store, if one is configured.
func (o *Organizer) Save() error {
	if o.Snapshots == nil {
		return nil
	}
	snap := storage.NewSnapshot(o.BasePath, o.Locations())
	if err := o.Snapshots.Save(snap); err != nil {
		o.Log.Error("save failed", zap.Error(err))
		return err
	}
	o.Log.Info("progress saved",
		zap.Int("locations", snap.TotalLocations),
		zap.Int("photos", snap.TotalPhotos),
	)
	return nil
}

// Load replaces the library with the saved snapshot.
func (o *Organizer) Load() error {
	if o.Snapshots == nil {
		return storage.ErrNoSnapshot
	}
	snap, err := o.Snapshots.Load()
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.locations = make(map[string]model.LocationGroup, len(snap.Locations))
	for _, g := range snap.Groups() {
		o.locations[g.ID] = g
	}
	if o.BasePath == "" {
		o.BasePath = snap.BasePath
	}
	o.mu.Unlock()

	o.Log.Info("snapshot loaded",
		zap.String("version", snap.Version),
		zap.Time("saved_at", snap.SavedAt.Time),
		zap.Int("locations", snap.TotalLocations),
		zap.Int("photos", snap.TotalPhotos),
	)
	return nil
}
