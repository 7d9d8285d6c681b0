// Package metadata reads the capture date and GPS position embedded in
// image EXIF data.
package metadata

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// NoDate is the year label for images without a usable capture date.
const NoDate = "0000_NoDate"

var ErrZeroDenominator = errors.New("rational with zero denominator")

// DMSComponent is one of the degree, minute or second parts of a GPS
// coordinate. EXIF stores them either as rationals or as plain reals.
type DMSComponent interface {
	Value() (float64, error)
}

// Ratio is a rational DMS component.
type Ratio struct {
	Num, Den int64
}

func (r Ratio) Value() (float64, error) {
	if r.Den == 0 {
		return 0, ErrZeroDenominator
	}
	return float64(r.Num) / float64(r.Den), nil
}

// Real is a DMS component already expressed as a number.
type Real float64

func (r Real) Value() (float64, error) {
	return float64(r), nil
}

type GPSInfo struct {
	Latitude     []DMSComponent
	LatitudeRef  string
	Longitude    []DMSComponent
	LongitudeRef string
}

// Tags is the subset of EXIF the pipeline cares about.
type Tags struct {
	DateTimeOriginal string
	DateTime         string
	GPS              *GPSInfo
}

// Read opens path and decodes its EXIF block. It returns false when the
// file cannot be opened or carries no EXIF data.
func Read(path string) (*Tags, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, false
	}
	return fromExif(x), true
}

func fromExif(x *exif.Exif) *Tags {
	tags := &Tags{
		DateTimeOriginal: stringTag(x, exif.DateTimeOriginal),
		DateTime:         stringTag(x, exif.DateTime),
	}

	lat, latErr := x.Get(exif.GPSLatitude)
	lon, lonErr := x.Get(exif.GPSLongitude)
	if latErr != nil && lonErr != nil {
		return tags
	}
	gps := &GPSInfo{
		LatitudeRef:  stringTag(x, exif.GPSLatitudeRef),
		LongitudeRef: stringTag(x, exif.GPSLongitudeRef),
	}
	if latErr == nil {
		gps.Latitude = components(lat)
	}
	if lonErr == nil {
		gps.Longitude = components(lon)
	}
	tags.GPS = gps
	return tags
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.Trim(s, "\x00 ")
}

func components(tag *tiff.Tag) []DMSComponent {
	out := make([]DMSComponent, 0, tag.Count)
	for i := 0; i < int(tag.Count); i++ {
		switch tag.Format() {
		case tiff.RatVal:
			num, den, err := tag.Rat2(i)
			if err != nil {
				return out
			}
			out = append(out, Ratio{Num: num, Den: den})
		case tiff.IntVal:
			v, err := tag.Int64(i)
			if err != nil {
				return out
			}
			out = append(out, Real(v))
		case tiff.FloatVal:
			v, err := tag.Float(i)
			if err != nil {
				return out
			}
			out = append(out, Real(v))
		default:
			return out
		}
	}
	return out
}

// ExtractYear returns the year of DateTimeOriginal, falling back to
// DateTime. A value counts only when it starts with four ASCII digits, so
// the blank "    :  :     :  :  " placeholder is skipped. ok is false when
// neither is usable.
func ExtractYear(tags *Tags) (string, bool) {
	if tags == nil {
		return "", false
	}
	for _, v := range []string{tags.DateTimeOriginal, tags.DateTime} {
		v = strings.TrimSpace(v)
		if isYear(v) {
			return v[:4], true
		}
	}
	return "", false
}

func isYear(v string) bool {
	if len(v) < 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return true
}

// YearOrNoDate returns the capture year of tags, or NoDate.
func YearOrNoDate(tags *Tags) string {
	if year, ok := ExtractYear(tags); ok {
		return year
	}
	return NoDate
}

// ExtractGPS converts the GPS block of tags to signed decimal degrees.
// Presence of the block decides, not the value: a block of zeros yields
// (0, 0, true). ok is false when the block, either triple or either
// hemisphere reference is missing or malformed.
func ExtractGPS(tags *Tags) (lat, lon float64, ok bool) {
	if tags == nil || tags.GPS == nil {
		return 0, 0, false
	}
	g := tags.GPS
	if g.LatitudeRef == "" || g.LongitudeRef == "" {
		return 0, 0, false
	}
	lat, err := ConvertDMS(g.Latitude, g.LatitudeRef, "N")
	if err != nil {
		return 0, 0, false
	}
	lon, err = ConvertDMS(g.Longitude, g.LongitudeRef, "E")
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// ConvertDMS turns degree, minute, second components into decimal degrees,
// negated unless ref equals positiveRef.
func ConvertDMS(parts []DMSComponent, ref, positiveRef string) (float64, error) {
	if len(parts) != 3 {
		return 0, fmt.Errorf("want 3 DMS components, got %d", len(parts))
	}
	var v [3]float64
	for i, p := range parts {
		f, err := p.Value()
		if err != nil {
			return 0, fmt.Errorf("DMS component %d: %w", i, err)
		}
		v[i] = f
	}
	deg := v[0] + v[1]/60 + v[2]/3600
	if !strings.EqualFold(strings.Trim(ref, "\x00 "), positiveRef) {
		deg = -deg
	}
	return deg, nil
}
