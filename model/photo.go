package model

import (
	"fmt"
	"strings"
)

// Kind is the coarse media type of a file.
type Kind int

const (
	KindOther Kind = iota
	KindImage
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "other"
	}
}

// Coordinates is a WGS84 point in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lng"`
}

// MediaFile is a file in flight through the pipeline. It is rebuilt from disk
// on every run.
type MediaFile struct {
	Path   string
	Kind   Kind
	Year   string
	Coords *Coordinates
	Place  string
}

type Photo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Hint string `json:"hint,omitempty"`
}

// NewPhoto builds the Photo record for a file on disk. The file name is the
// identity within a location folder.
func NewPhoto(name, path string) Photo {
	return Photo{ID: name, Name: name, URL: path}
}

type LocationGroup struct {
	ID         string
	Name       string
	Coords     Coordinates
	Year       string
	FolderPath string
	Photos     []Photo
}

// LocationID returns the group identity for a year and place folder.
func LocationID(year, place string) string {
	return strings.ReplaceAll(year+"_"+place, " ", "_")
}

// NewLocationGroup creates an empty group for a {year}/{place} folder.
func NewLocationGroup(year, place, folder string, coords Coordinates) LocationGroup {
	return LocationGroup{
		ID:         LocationID(year, place),
		Name:       fmt.Sprintf("%s (%s)", place, year),
		Coords:     coords,
		Year:       year,
		FolderPath: folder,
	}
}

// Photo returns the index of the photo with the given id, or -1.
func (g *LocationGroup) Photo(id string) int {
	for i := range g.Photos {
		if g.Photos[i].ID == id {
			return i
		}
	}
	return -1
}

// RemovePhoto drops the photo record with the given id and reports whether
// it was present.
func (g *LocationGroup) RemovePhoto(id string) bool {
	i := g.Photo(id)
	if i < 0 {
		return false
	}
	g.Photos = append(g.Photos[:i], g.Photos[i+1:]...)
	return true
}

// Empty reports whether the group has lost its last photo and must be
// discarded together with its folder.
func (g *LocationGroup) Empty() bool {
	return len(g.Photos) == 0
}
