// Package importance separates photos worth keeping from blurry shots,
// screenshots and photographed documents using cheap image statistics.
package importance

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	// webp is not registered by imaging.
	_ "golang.org/x/image/webp"
)

const (
	// BlurThreshold is the minimum Laplacian variance of a sharp photo.
	BlurThreshold = 100.0

	// ThumbnailSize is the side of the grid used to count colors.
	ThumbnailSize = 100

	// UniqueColorThreshold is the minimum number of distinct colors on the
	// thumbnail grid; flat screenshots and graphics fall below it.
	UniqueColorThreshold = 2000

	// SaturationThreshold and EdgeDensityThreshold together flag text
	// documents and receipts: grey and full of edges.
	SaturationThreshold  = 30.0
	EdgeDensityThreshold = 0.10

	// CannyLow and CannyHigh are the hysteresis thresholds of the edge detector.
	CannyLow  = 50.0
	CannyHigh = 150.0
)

// Scores holds the statistics the filter decides on.
type Scores struct {
	Blur           float64
	UniqueColors   int
	MeanSaturation float64
	EdgeDensity    float64
}

func (s Scores) Blurry() bool {
	return s.Blur < BlurThreshold
}

func (s Scores) Screenshot() bool {
	return s.UniqueColors < UniqueColorThreshold
}

func (s Scores) Document() bool {
	return s.MeanSaturation < SaturationThreshold && s.EdgeDensity > EdgeDensityThreshold
}

// Important is true only when no heuristic fires.
func (s Scores) Important() bool {
	return !s.Blurry() && !s.Screenshot() && !s.Document()
}

// Reason names the first heuristic that rejected the image, or "".
func (s Scores) Reason() string {
	switch {
	case s.Blurry():
		return "blurry"
	case s.Screenshot():
		return "screenshot"
	case s.Document():
		return "document"
	default:
		return ""
	}
}

type Filter struct {
	Log *zap.Logger
}

func NewFilter(log *zap.Logger) *Filter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Filter{Log: log}
}

// IsImportant reports whether the image at path is worth keeping. Files that
// cannot be decoded as images are never important.
func (f *Filter) IsImportant(path string) bool {
	scores, err := f.Assess(path)
	if err != nil {
		f.Log.Debug("image not decodable, treating as nonessential",
			zap.String("path", path),
			zap.Error(err),
		)
		return false
	}
	important := scores.Important()
	f.Log.Debug("assessed image",
		zap.String("path", path),
		zap.Float64("blur", scores.Blur),
		zap.Int("unique_colors", scores.UniqueColors),
		zap.Float64("saturation", scores.MeanSaturation),
		zap.Float64("edge_density", scores.EdgeDensity),
		zap.Bool("important", important),
		zap.String("reason", scores.Reason()),
	)
	return important
}

// Assess decodes the image at path and computes its scores.
func (f *Filter) Assess(path string) (Scores, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return Scores{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return Score(img), nil
}

// Score computes the filter statistics for a decoded image.
func Score(img image.Image) Scores {
	rgb := imaging.Clone(img)
	gray := newGrayPlane(imaging.Grayscale(rgb))

	edges := cannyEdges(gray, CannyLow, CannyHigh)
	return Scores{
		Blur:           laplacianVariance(gray),
		UniqueColors:   uniqueColors(imaging.Resize(rgb, ThumbnailSize, ThumbnailSize, imaging.NearestNeighbor)),
		MeanSaturation: meanSaturation(rgb),
		EdgeDensity:    edgeDensity(edges),
	}
}
