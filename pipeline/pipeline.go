// Package pipeline sorts a folder of camera files into the
// Photos/{Year}/{Place} library layout.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"family-atlas/geo"
	"family-atlas/media"
	"family-atlas/metadata"
	"family-atlas/model"
	"family-atlas/scanner"
	"family-atlas/storage"
)

const (
	// PhotosDir is the library root below the base folder.
	PhotosDir = "Photos"
	// VideosLabel is the place folder videos are filed under.
	VideosLabel = "Videos"
)

type Mode string

const (
	ModeFull     Mode = "full"
	ModeScanOnly Mode = "scan_only"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeScanOnly:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeFull, ModeScanOnly)
}

type State int

const (
	StateIdle State = iota
	StateFiltering
	StateCategorizing
	StateScanning
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFiltering:
		return "filtering"
	case StateCategorizing:
		return "categorizing"
	case StateScanning:
		return "scanning"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Progress is reported at each phase boundary. Percent never decreases
// within a run.
type Progress struct {
	Percent int
	Message string
	State   State
}

var (
	ErrUnsupportedFile = errors.New("unsupported file")
	ErrPanic           = errors.New("panic during run")
)

// Error aborts a run. Path names the file or folder being handled when
// the run failed.
type Error struct {
	Phase State
	Path  string
	Err   error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type ImportanceFilter interface {
	IsImportant(path string) bool
}

type PlaceResolver interface {
	Resolve(ctx context.Context, lat, lon float64) string
}

// Pipeline runs the filter, categorize and scan phases over one source
// folder. A Pipeline is not meant to run concurrently with itself.
type Pipeline struct {
	Filter   ImportanceFilter
	Resolver PlaceResolver
	Storage  storage.PhotoStorage
	Log      *zap.Logger

	// FileTime returns the creation time used to date videos.
	FileTime func(path string) (time.Time, error)

	// Strict aborts a full run before anything moves when the source
	// holds files that are neither images nor videos.
	Strict bool
}

func New(filter ImportanceFilter, resolver PlaceResolver, store storage.PhotoStorage, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		Filter:   filter,
		Resolver: resolver,
		Storage:  store,
		Log:      log,
		FileTime: CreationTime,
	}
}

// Run organizes source into base/Photos (full mode) and returns the
// resulting location groups. On failure the groups are empty and the
// error is a *Error; files already moved stay where they are.
func (p *Pipeline) Run(ctx context.Context, source, base string, mode Mode, notify func(Progress)) ([]model.LocationGroup, error) {
	r := &run{
		Pipeline: p,
		ctx:      ctx,
		notify:   notify,
		source:   source,
		good:     filepath.Join(base, PhotosDir),
	}
	r.bad = filepath.Join(r.good, scanner.NonessentialDir)

	var steps []phase
	switch mode {
	case ModeFull:
		steps = []phase{
			{StateFiltering, 10, "Filtering images...", (*run).filter},
			{StateCategorizing, 30, "Categorizing by date and location...", (*run).categorize},
			{StateScanning, 80, "Scanning organized photos...", (*run).scan},
		}
	case ModeScanOnly:
		r.good = scanRoot(base)
		steps = []phase{
			{StateScanning, 80, "Scanning organized photos...", (*run).scan},
		}
	default:
		return nil, &Error{Phase: StateIdle, Err: fmt.Errorf("unknown mode %q", mode)}
	}

	for _, ph := range steps {
		r.phase = ph.state
		r.current = ""
		r.report(ph.percent, ph.message)
		if err := logged(p.Log, recovered(p.Log, ph.fn))(r); err != nil {
			r.fail(err)
			return nil, err
		}
	}
	r.phase = StateComplete
	r.report(100, fmt.Sprintf("Done: %d locations", len(r.groups)))
	return r.groups, nil
}

// scanRoot picks base/Photos, or base itself when it already is the
// library root.
func scanRoot(base string) string {
	good := filepath.Join(base, PhotosDir)
	if _, err := os.Stat(good); errors.Is(err, os.ErrNotExist) && filepath.Base(filepath.Clean(base)) == PhotosDir {
		return base
	}
	return good
}

type phase struct {
	state   State
	percent int
	message string
	fn      step
}

// run is the state of a single Run call.
type run struct {
	*Pipeline
	ctx     context.Context
	notify  func(Progress)
	source  string
	good    string
	bad     string
	percent int
	phase   State
	current string
	groups  []model.LocationGroup
}

func (r *run) report(percent int, message string) {
	if percent > r.percent {
		r.percent = percent
	}
	if r.notify != nil {
		r.notify(Progress{Percent: r.percent, Message: message, State: r.phase})
	}
}

func (r *run) fail(err error) {
	if r.notify != nil {
		r.notify(Progress{Percent: r.percent, Message: err.Error(), State: StateFailed})
	}
}

func (r *run) errorf(path string, err error) error {
	return &Error{Phase: r.phase, Path: path, Err: err}
}

// checkpoint returns the cancellation error, if any, naming path.
func (r *run) checkpoint(path string) error {
	r.current = path
	if err := r.ctx.Err(); err != nil {
		return r.errorf(path, err)
	}
	return nil
}

func (r *run) relocate(path, destDir string) error {
	if _, err := r.Storage.Relocate(filepath.Base(path), filepath.Dir(path), destDir); err != nil {
		return r.errorf(path, err)
	}
	return nil
}

// filter splits the top level of the source into the good and bad roots.
func (r *run) filter() error {
	entries, err := os.ReadDir(r.source)
	if err != nil {
		return r.errorf(r.source, err)
	}
	if r.Strict {
		var errs error
		for _, e := range entries {
			if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if media.Classify(e.Name()) == model.KindOther {
				errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Join(r.source, e.Name())))
			}
		}
		if errs != nil {
			return r.errorf(r.source, errs)
		}
	}

	for _, dir := range []string{r.good, r.bad} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return r.errorf(dir, err)
		}
	}

	var kept, rejected int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(r.source, e.Name())
		if err := r.checkpoint(path); err != nil {
			return err
		}
		switch media.Classify(path) {
		case model.KindVideo:
			if err := r.relocate(path, r.good); err != nil {
				return err
			}
			kept++
		case model.KindImage:
			dest := r.bad
			if r.Filter.IsImportant(path) {
				dest = r.good
				kept++
			} else {
				rejected++
			}
			if err := r.relocate(path, dest); err != nil {
				return err
			}
		}
	}
	r.Log.Info("filtered source",
		zap.String("source", r.source),
		zap.Int("kept", kept),
		zap.Int("nonessential", rejected),
	)
	return nil
}

// categorize files the top level of the good root into year/place folders.
// Images without GPS stay where they are.
func (r *run) categorize() error {
	entries, err := os.ReadDir(r.good)
	if err != nil {
		return r.errorf(r.good, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(r.good, e.Name())
		if err := r.checkpoint(path); err != nil {
			return err
		}

		var year, label string
		switch media.Classify(path) {
		case model.KindVideo:
			year, label = r.videoYear(path), VideosLabel
		case model.KindImage:
			if !media.IsScannable(path) {
				continue
			}
			tags, ok := metadata.Read(path)
			if !ok {
				continue
			}
			lat, lon, ok := metadata.ExtractGPS(tags)
			if !ok {
				continue
			}
			year = safeYear(metadata.YearOrNoDate(tags))
			label = geo.Sanitize(r.Resolver.Resolve(r.ctx, lat, lon))
		default:
			continue
		}

		dest, err := r.Storage.EnsureFolder(r.good, year, label)
		if err != nil {
			return r.errorf(path, err)
		}
		if err := r.relocate(path, dest); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) scan() error {
	groups, err := scanner.Scan(r.good)
	if err != nil {
		return r.errorf(r.good, err)
	}
	r.groups = groups
	return nil
}

func (r *run) videoYear(path string) string {
	if r.FileTime == nil {
		return metadata.NoDate
	}
	t, err := r.FileTime(path)
	if err != nil || t.IsZero() {
		return metadata.NoDate
	}
	return fmt.Sprintf("%04d", t.Year())
}

// safeYear keeps anything but a four digit year out of the folder name.
func safeYear(year string) string {
	year = strings.TrimSpace(year)
	if len(year) != 4 || strings.Trim(year, "0123456789") != "" {
		return metadata.NoDate
	}
	return year
}
