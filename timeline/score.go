package timeline

import (
	"image"
	"math"
	"os"

	_ "image/jpeg"
	_ "image/png"
)

// Info-density scoring. Each metric normalizes to 0..1; the final score is a
// weighted blend that heavily favors frames carrying text.

const (
	weightText          = 0.40
	weightConcentration = 0.25
	weightEdge          = 0.20
	weightLuminance     = 0.15

	textStrips = 30
)

type grayImage struct {
	pix  []float64
	w, h int
}

// ScoreImage computes the info-density score for an image file. Unreadable
// or undecodable images score 0.
func ScoreImage(path string) float64 {
	g, err := loadGray(path)
	if err != nil {
		return 0.0
	}
	edges := findEdges(g)

	variance := luminanceVariance(g)
	edgeDensity := edgeDensity(edges)
	concentration := contentConcentration(edges)
	textLikelihood := textLikelihood(edges)

	score := weightText*textLikelihood +
		weightConcentration*concentration +
		weightEdge*edgeDensity +
		weightLuminance*variance
	return round4(score)
}

func loadGray(path string) (*grayImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	g := &grayImage{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, gr, bl, _ := img.At(x, y).RGBA()
			// ITU-R 601-2 luma, matching 8-bit grayscale conversion.
			l := (r>>8)*19595 + (gr>>8)*38470 + (bl>>8)*7471 + 0x8000
			g.pix[i] = float64(l >> 16)
			i++
		}
	}
	return g, nil
}

// findEdges applies the 3x3 Laplacian edge kernel (8 center, -1 neighbors),
// clamped to 0..255. Border pixels keep their source values, matching how
// convolution filters leave a one-pixel frame untouched.
func findEdges(g *grayImage) *grayImage {
	out := &grayImage{w: g.w, h: g.h, pix: make([]float64, len(g.pix))}
	copy(out.pix, g.pix)

	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			i := y*g.w + x
			v := 8*g.pix[i] -
				g.pix[i-g.w-1] - g.pix[i-g.w] - g.pix[i-g.w+1] -
				g.pix[i-1] - g.pix[i+1] -
				g.pix[i+g.w-1] - g.pix[i+g.w] - g.pix[i+g.w+1]
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			out.pix[i] = v
		}
	}
	return out
}

func meanOf(pix []float64) float64 {
	if len(pix) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range pix {
		sum += p
	}
	return sum / float64(len(pix))
}

func varianceOf(pix []float64, mean float64) float64 {
	if len(pix) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range pix {
		d := p - mean
		sum += d * d
	}
	return sum / float64(len(pix))
}

// luminanceVariance normalizes pixel variance against a practical ceiling
// of 10000 (a half-black/half-white frame reaches ~16256).
func luminanceVariance(g *grayImage) float64 {
	if len(g.pix) == 0 {
		return 0.0
	}
	v := varianceOf(g.pix, meanOf(g.pix))
	return math.Min(v/10000.0, 1.0)
}

// edgeDensity normalizes the mean edge intensity against a ceiling of 100;
// typical frames sit well below the 255 maximum.
func edgeDensity(edges *grayImage) float64 {
	if len(edges.pix) == 0 {
		return 0.0
	}
	return math.Min(meanOf(edges.pix)/100.0, 1.0)
}

// contentConcentration measures whether edge complexity clusters (slides,
// diagrams) or spreads uniformly (talking head on a busy background) using
// the coefficient of variation across a 3x3 grid of edge densities.
func contentConcentration(edges *grayImage) float64 {
	gridW := edges.w / 3
	gridH := edges.h / 3

	var densities []float64
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			left := col * gridW
			top := row * gridH
			right := left + gridW
			if col == 2 {
				right = edges.w
			}
			bottom := top + gridH
			if row == 2 {
				bottom = edges.h
			}

			var sum float64
			n := 0
			for y := top; y < bottom; y++ {
				for x := left; x < right; x++ {
					sum += edges.pix[y*edges.w+x]
					n++
				}
			}
			if n > 0 {
				densities = append(densities, sum/float64(n))
			}
		}
	}

	if len(densities) < 2 {
		return 0.5
	}
	mean := meanOf(densities)
	if mean < 0.01 {
		// Essentially blank frame; stay neutral.
		return 0.5
	}
	cv := math.Sqrt(varianceOf(densities, mean)) / mean
	cv = math.Min(cv, 2.0)
	return round4(math.Min(cv/0.8, 1.0))
}

// textLikelihood detects the horizontal banding text produces: distinct
// peaks of edge density across horizontal strips.
func textLikelihood(edges *grayImage) float64 {
	if edges.h < textStrips*2 {
		return 0.5
	}
	stripH := edges.h / textStrips

	densities := make([]float64, 0, textStrips)
	for i := 0; i < textStrips; i++ {
		top := i * stripH
		bottom := top + stripH
		if i == textStrips-1 {
			bottom = edges.h
		}

		var sum float64
		n := 0
		for y := top; y < bottom; y++ {
			for x := 0; x < edges.w; x++ {
				sum += edges.pix[y*edges.w+x]
				n++
			}
		}
		if n > 0 {
			densities = append(densities, sum/float64(n))
		} else {
			densities = append(densities, 0)
		}
	}

	mean := meanOf(densities)
	if mean < 2.0 {
		return 0.0
	}

	peaks, strongPeaks := 0, 0
	for _, d := range densities {
		if d > mean*1.5 {
			peaks++
		}
		if d > mean*2.0 {
			strongPeaks++
		}
	}
	cv := math.Sqrt(varianceOf(densities, mean)) / mean

	peakScore := math.Min(float64(peaks)/10.0, 1.0)
	cvScore := math.Min(cv/0.8, 1.0)
	strongScore := math.Min(float64(strongPeaks)/5.0, 1.0)

	return round4(0.3*peakScore + 0.4*cvScore + 0.3*strongScore)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
