package importance

import (
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// grayPlane is a single-channel float image.
type grayPlane struct {
	w, h int
	pix  []float64
}

func newGrayPlane(img *image.NRGBA) *grayPlane {
	b := img.Bounds()
	g := &grayPlane{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < g.h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < g.w; x++ {
			// imaging.Grayscale writes the luma into all three channels.
			g.pix[y*g.w+x] = float64(row[x*4])
		}
	}
	return g
}

// at reads a pixel, mirroring coordinates outside the image without
// repeating the edge pixel (reflect-101).
func (g *grayPlane) at(x, y int) float64 {
	return g.pix[reflect101(y, g.h)*g.w+reflect101(x, g.w)]
}

// clamped reads a pixel, replicating the edge pixel outside the image.
func (g *grayPlane) clamped(x, y int) float64 {
	return g.pix[clamp(y, g.h)*g.w+clamp(x, g.w)]
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// laplacianVariance is the variance of the 4-neighbour Laplacian response.
func laplacianVariance(g *grayPlane) float64 {
	n := float64(g.w * g.h)
	if n == 0 {
		return 0
	}
	var sum, sumSq float64
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			v := g.at(x, y-1) + g.at(x, y+1) + g.at(x-1, y) + g.at(x+1, y) - 4*g.at(x, y)
			sum += v
			sumSq += v * v
		}
	}
	mean := sum / n
	return math.Max(sumSq/n-mean*mean, 0)
}

// uniqueColors counts distinct RGB triples, ignoring alpha.
func uniqueColors(img *image.NRGBA) int {
	b := img.Bounds()
	seen := make(map[uint32]struct{}, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4 : x*4+3]
			seen[uint32(p[0])<<16|uint32(p[1])<<8|uint32(p[2])] = struct{}{}
		}
	}
	return len(seen)
}

// meanSaturation is the average HSV saturation on a 0..255 scale.
func meanSaturation(img *image.NRGBA) float64 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	var sum float64
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4 : x*4+3]
			c := colorful.Color{R: float64(p[0]) / 255, G: float64(p[1]) / 255, B: float64(p[2]) / 255}
			_, s, _ := c.Hsv()
			sum += s * 255
		}
	}
	return sum / float64(n)
}

const (
	tan22 = 0.41421356237309503
	tan67 = 2.414213562373095
)

// cannyEdges runs a Canny detector (3x3 Sobel, L1 magnitude, non-maximum
// suppression, hysteresis) and returns the edge mask.
func cannyEdges(g *grayPlane, low, high float64) []bool {
	w, h := g.w, g.h
	dx := make([]float64, w*h)
	dy := make([]float64, w*h)
	mag := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := g.clamped(x+1, y-1) + 2*g.clamped(x+1, y) + g.clamped(x+1, y+1) -
				g.clamped(x-1, y-1) - 2*g.clamped(x-1, y) - g.clamped(x-1, y+1)
			gy := g.clamped(x-1, y+1) + 2*g.clamped(x, y+1) + g.clamped(x+1, y+1) -
				g.clamped(x-1, y-1) - 2*g.clamped(x, y-1) - g.clamped(x+1, y-1)
			i := y*w + x
			dx[i], dy[i] = gx, gy
			mag[i] = math.Abs(gx) + math.Abs(gy)
		}
	}

	magAt := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	edges := make([]bool, w*h)
	candidate := make([]bool, w*h)
	var stack []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			ax, ay := math.Abs(dx[i]), math.Abs(dy[i])
			var peak bool
			switch {
			case ay < ax*tan22:
				peak = m > magAt(x-1, y) && m >= magAt(x+1, y)
			case ay > ax*tan67:
				peak = m > magAt(x, y-1) && m >= magAt(x, y+1)
			default:
				s := 1
				if (dx[i] < 0) != (dy[i] < 0) {
					s = -1
				}
				peak = m > magAt(x-s, y-1) && m > magAt(x+s, y+1)
			}
			if !peak {
				continue
			}
			candidate[i] = true
			if m > high {
				edges[i] = true
				stack = append(stack, i)
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for ny := y - 1; ny <= y+1; ny++ {
			for nx := x - 1; nx <= x+1; nx++ {
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if candidate[j] && !edges[j] {
					edges[j] = true
					stack = append(stack, j)
				}
			}
		}
	}
	return edges
}

func edgeDensity(edges []bool) float64 {
	if len(edges) == 0 {
		return 0
	}
	count := 0
	for _, e := range edges {
		if e {
			count++
		}
	}
	return float64(count) / float64(len(edges))
}
