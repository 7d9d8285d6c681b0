package importance

import (
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"go.uber.org/zap/zaptest"
)

func noiseImage(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

func flatImage(w, h int, c color.NRGBA) *image.NRGBA {
	return imaging.New(w, h, c)
}

func TestScoresDecision(t *testing.T) {
	tests := []struct {
		name      string
		scores    Scores
		important bool
		reason    string
	}{
		{
			name:      "sharp colorful photo",
			scores:    Scores{Blur: 850, UniqueColors: 7400, MeanSaturation: 90, EdgeDensity: 0.05},
			important: true,
		},
		{
			name:   "blurry",
			scores: Scores{Blur: 99.9, UniqueColors: 7400, MeanSaturation: 90, EdgeDensity: 0.05},
			reason: "blurry",
		},
		{
			name:   "screenshot",
			scores: Scores{Blur: 850, UniqueColors: 1999, MeanSaturation: 90, EdgeDensity: 0.05},
			reason: "screenshot",
		},
		{
			name:   "receipt",
			scores: Scores{Blur: 850, UniqueColors: 5000, MeanSaturation: 12, EdgeDensity: 0.2},
			reason: "document",
		},
		{
			name:      "grey but few edges",
			scores:    Scores{Blur: 850, UniqueColors: 5000, MeanSaturation: 12, EdgeDensity: 0.05},
			important: true,
		},
		{
			name:      "edgy but colorful",
			scores:    Scores{Blur: 850, UniqueColors: 5000, MeanSaturation: 60, EdgeDensity: 0.3},
			important: true,
		},
		{
			name:      "exactly at thresholds",
			scores:    Scores{Blur: BlurThreshold, UniqueColors: UniqueColorThreshold, MeanSaturation: SaturationThreshold, EdgeDensity: EdgeDensityThreshold},
			important: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.scores.Important(); got != tt.important {
				t.Errorf("Important() = %v, want %v", got, tt.important)
			}
			if got := tt.scores.Reason(); got != tt.reason {
				t.Errorf("Reason() = %q, want %q", got, tt.reason)
			}
		})
	}
}

func TestScoreNoiseIsImportant(t *testing.T) {
	s := Score(noiseImage(128, 128, 1))
	if !s.Important() {
		t.Fatalf("expected noise image to be important, got %+v", s)
	}
}

func TestScoreFlatIsBlurry(t *testing.T) {
	s := Score(flatImage(64, 64, color.NRGBA{R: 120, G: 140, B: 160, A: 255}))
	if s.Blur != 0 {
		t.Errorf("expected zero blur score for a flat image, got %f", s.Blur)
	}
	if s.EdgeDensity != 0 {
		t.Errorf("expected no edges in a flat image, got %f", s.EdgeDensity)
	}
	if !s.Blurry() || s.Important() {
		t.Fatalf("expected flat image to be rejected as blurry, got %+v", s)
	}
}

func TestScoreCheckerboardIsScreenshot(t *testing.T) {
	palette := []color.NRGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
		{R: 255, G: 255, A: 255},
	}
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.SetNRGBA(x, y, palette[(x/2+y/2)%len(palette)])
		}
	}
	s := Score(img)
	if s.UniqueColors != len(palette) {
		t.Errorf("expected %d unique colors, got %d", len(palette), s.UniqueColors)
	}
	if !s.Screenshot() || s.Important() {
		t.Fatalf("expected checkerboard to be rejected as screenshot, got %+v", s)
	}
}

func TestScoreTextPageIsDocument(t *testing.T) {
	img := flatImage(120, 120, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	for y := 2; y < 118; y += 4 {
		for x := 0; x < 120; x++ {
			img.SetNRGBA(x, y, color.NRGBA{A: 255})
		}
	}
	s := Score(img)
	if s.MeanSaturation != 0 {
		t.Errorf("expected zero saturation for black and white page, got %f", s.MeanSaturation)
	}
	if s.EdgeDensity <= EdgeDensityThreshold {
		t.Errorf("expected dense edges, got %f", s.EdgeDensity)
	}
	if !s.Document() {
		t.Fatalf("expected page to be flagged as document, got %+v", s)
	}
}

func TestIsImportant(t *testing.T) {
	dir := t.TempDir()
	f := NewFilter(zaptest.NewLogger(t))

	sharp := filepath.Join(dir, "sharp.png")
	if err := imaging.Save(noiseImage(128, 128, 7), sharp); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !f.IsImportant(sharp) {
		t.Errorf("expected %s to be important", sharp)
	}

	flat := filepath.Join(dir, "flat.jpg")
	if err := imaging.Save(flatImage(64, 64, color.NRGBA{R: 90, G: 90, B: 90, A: 255}), flat); err != nil {
		t.Fatalf("save: %v", err)
	}
	if f.IsImportant(flat) {
		t.Errorf("expected %s to be nonessential", flat)
	}

	broken := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(broken, []byte("not an image"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f.IsImportant(broken) {
		t.Errorf("expected undecodable file to be nonessential")
	}
	if f.IsImportant(filepath.Join(dir, "missing.jpg")) {
		t.Errorf("expected missing file to be nonessential")
	}
}

func TestReflect101(t *testing.T) {
	tests := []struct {
		i, n, want int
	}{
		{-1, 5, 1},
		{-2, 5, 2},
		{0, 5, 0},
		{4, 5, 4},
		{5, 5, 3},
		{6, 5, 2},
		{-1, 1, 0},
		{3, 1, 0},
	}
	for _, tt := range tests {
		if got := reflect101(tt.i, tt.n); got != tt.want {
			t.Errorf("reflect101(%d, %d) = %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}
