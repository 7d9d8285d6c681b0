package organizer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"family-atlas/exiftest"
	"family-atlas/importance"
	"family-atlas/model"
	"family-atlas/pipeline"
	"family-atlas/storage"
	"family-atlas/worker"
)

type staticResolver string

func (s staticResolver) Resolve(ctx context.Context, lat, lon float64) string {
	return string(s)
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

// newLibrary builds an organizer over a base folder holding
// Photos/2021/Home/{a,b}.jpg and Photos/2019/Jeju/c.jpg.
func newLibrary(t *testing.T) (*Organizer, string) {
	t.Helper()
	base := t.TempDir()
	photos := filepath.Join(base, pipeline.PhotosDir)
	touch(t, filepath.Join(photos, "2021", "Home", "a.jpg"))
	touch(t, filepath.Join(photos, "2021", "Home", "b.jpg"))
	touch(t, filepath.Join(photos, "2019", "Jeju", "c.jpg"))

	log := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	p := pipeline.New(importance.NewFilter(log), staticResolver("Nowhere"), storage.NewLocalPhotoStorage(log), log)
	w := worker.New(p, 1, log)
	w.Start(ctx)

	snapshots := storage.NewFileSnapshotStore(filepath.Join(base, "atlas.json"))
	o := New(base, w, storage.NewLocalPhotoStorage(log), snapshots, log)
	if _, err := o.Process(ctx, "", pipeline.ModeScanOnly, nil); err != nil {
		t.Fatalf("Process: %v", err)
	}
	return o, base
}

func TestProcessScanOnly(t *testing.T) {
	o, base := newLibrary(t)

	groups := o.Locations()
	if len(groups) != 2 || groups[0].ID != "2019_Jeju" || groups[1].ID != "2021_Home" {
		t.Fatalf("unexpected locations %+v", groups)
	}

	snap, err := o.Snapshots.Load()
	if err != nil {
		t.Fatalf("snapshot not saved: %v", err)
	}
	if snap.TotalLocations != 2 || snap.TotalPhotos != 3 || snap.BasePath != base {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestProcessFull(t *testing.T) {
	base := t.TempDir()
	source := t.TempDir()
	exiftest.WriteJPEG(t, filepath.Join(source, "trip.jpg"), exiftest.Sharp(128, 128, 5), exiftest.Options{
		DateTimeOriginal: "2023:09:01 08:00:00",
		GPS:              &exiftest.GPS{Lat: 35.1, Lon: 129.0},
	})

	log := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := pipeline.New(importance.NewFilter(log), staticResolver("Busan"), storage.NewLocalPhotoStorage(log), log)
	w := worker.New(p, 1, log)
	w.Start(ctx)
	o := New(base, w, storage.NewLocalPhotoStorage(log), nil, log)

	var last pipeline.Progress
	groups, err := o.Process(ctx, source, pipeline.ModeFull, func(pr pipeline.Progress) { last = pr })
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != "2023_Busan" {
		t.Fatalf("unexpected groups %+v", groups)
	}
	if last.Percent != 100 || last.State != pipeline.StateComplete {
		t.Errorf("last progress = %+v", last)
	}
}

func TestDeletePhoto(t *testing.T) {
	o, base := newLibrary(t)
	home := filepath.Join(base, pipeline.PhotosDir, "2021", "Home")

	if err := o.DeletePhoto("2021_Home", "a.jpg"); err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "a.jpg")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file not removed: %v", err)
	}
	g, ok := o.Location("2021_Home")
	if !ok || len(g.Photos) != 1 || g.Photos[0].ID != "b.jpg" {
		t.Fatalf("unexpected group after delete %+v", g)
	}

	if err := o.DeletePhoto("2021_Home", "b.jpg"); err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}
	if _, ok := o.Location("2021_Home"); ok {
		t.Error("empty group must be dropped")
	}
	if _, err := os.Stat(home); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("empty location folder must be removed: %v", err)
	}

	snap, err := o.Snapshots.Load()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := snap.Locations["2021_Home"]; ok || snap.TotalPhotos != 1 {
		t.Errorf("snapshot not updated: %+v", snap)
	}
}

func TestDeletePhotoNotFound(t *testing.T) {
	o, _ := newLibrary(t)
	if err := o.DeletePhoto("1999_Nowhere", "a.jpg"); !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("expected ErrLocationNotFound, got %v", err)
	}
	if err := o.DeletePhoto("2021_Home", "zzz.jpg"); !errors.Is(err, ErrPhotoNotFound) {
		t.Errorf("expected ErrPhotoNotFound, got %v", err)
	}
}

func TestMoveToNonessential(t *testing.T) {
	o, base := newLibrary(t)
	nonessential := filepath.Join(base, pipeline.PhotosDir, "NONESSENTIAL")
	touch(t, filepath.Join(nonessential, "c.jpg"))

	newPath, err := o.MoveToNonessential("2019_Jeju", "c.jpg")
	if err != nil {
		t.Fatalf("MoveToNonessential: %v", err)
	}
	if filepath.Dir(newPath) != nonessential || filepath.Base(newPath) == "c.jpg" {
		t.Errorf("expected a collision-suffixed name in %s, got %s", nonessential, newPath)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Errorf("moved file missing: %v", err)
	}
	if _, ok := o.Location("2019_Jeju"); ok {
		t.Error("group should be dropped with its last photo")
	}
}

func TestRenameLocation(t *testing.T) {
	o, _ := newLibrary(t)
	if err := o.RenameLocation("2019_Jeju", "  Jeju Island  "); err != nil {
		t.Fatalf("RenameLocation: %v", err)
	}
	g, _ := o.Location("2019_Jeju")
	if g.Name != "Jeju Island" {
		t.Errorf("name = %q", g.Name)
	}
	if err := o.RenameLocation("2019_Jeju", "   "); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
	if err := o.RenameLocation("nope", "x"); !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("expected ErrLocationNotFound, got %v", err)
	}
}

func TestSubfolders(t *testing.T) {
	o, base := newLibrary(t)

	dir, err := o.CreateSubfolder("2021_Home", "Birthday")
	if err != nil {
		t.Fatalf("CreateSubfolder: %v", err)
	}
	if dir != filepath.Join(base, pipeline.PhotosDir, "2021", "Home", "Birthday") {
		t.Errorf("dir = %s", dir)
	}
	touch(t, filepath.Join(dir, "cake.jpg"))

	for _, bad := range []string{"", "..", "a/b"} {
		if _, err := o.CreateSubfolder("2021_Home", bad); !errors.Is(err, ErrInvalidName) {
			t.Errorf("CreateSubfolder(%q): expected ErrInvalidName, got %v", bad, err)
		}
	}

	subs, err := o.Subfolders("2021_Home")
	if err != nil || len(subs) != 1 || subs[0] != "Birthday" {
		t.Fatalf("Subfolders() = %v, %v", subs, err)
	}

	top, err := o.FolderPhotos("2021_Home", "")
	if err != nil || len(top) != 2 {
		t.Fatalf("FolderPhotos(top) = %+v, %v", top, err)
	}
	sub, err := o.FolderPhotos("2021_Home", "Birthday")
	if err != nil || len(sub) != 1 || sub[0] != model.NewPhoto("cake.jpg", filepath.Join(dir, "cake.jpg")) {
		t.Fatalf("FolderPhotos(sub) = %+v, %v", sub, err)
	}
}

func TestLoad(t *testing.T) {
	o, base := newLibrary(t)
	if err := o.RenameLocation("2019_Jeju", "Jeju Island"); err != nil {
		t.Fatal(err)
	}

	log := zaptest.NewLogger(t)
	fresh := New("", nil, storage.NewLocalPhotoStorage(log), o.Snapshots, log)
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fresh.BasePath != base {
		t.Errorf("base path = %q, want %q", fresh.BasePath, base)
	}
	groups := fresh.Locations()
	if len(groups) != 2 || groups[0].Name != "Jeju Island" {
		t.Errorf("unexpected groups %+v", groups)
	}

	empty := New(base, nil, nil, storage.NewFileSnapshotStore(filepath.Join(t.TempDir(), "none.json")), log)
	if err := empty.Load(); !errors.Is(err, storage.ErrNoSnapshot) {
		t.Errorf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestProcessQueueFull(t *testing.T) {
	log := zaptest.NewLogger(t)
	// Never started: the first job occupies the only queue slot.
	w := worker.New(nil, 1, log)
	if _, err := w.Submit(context.Background(), "x", "y", pipeline.ModeFull); err != nil {
		t.Fatal(err)
	}
	o := New(t.TempDir(), w, nil, nil, log)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := o.Process(ctx, "src", pipeline.ModeFull, nil); !errors.Is(err, worker.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestProcessAfterWorkerStopped(t *testing.T) {
	log := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	w := worker.New(nil, 1, log)
	w.Start(ctx)
	cancel()

	o := New(t.TempDir(), w, nil, nil, log)
	done := make(chan error, 1)
	go func() {
		_, err := o.Process(context.Background(), "src", pipeline.ModeFull, nil)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, worker.ErrStopped) {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Process hung on a stopped worker")
	}
}
