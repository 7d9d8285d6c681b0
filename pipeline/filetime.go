package pipeline

import (
	"time"

	"github.com/djherbis/times"
)

// CreationTime returns the birth time of path where the filesystem records
// one, otherwise its modification time.
func CreationTime(path string) (time.Time, error) {
	ts, err := times.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	if ts.HasBirthTime() {
		return ts.BirthTime(), nil
	}
	return ts.ModTime(), nil
}
