package imaging

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"

	"golang.org/x/image/draw"
	"image"

	"github.com/hyperjump/kakunin/pkg/utils"
)

// PHash is a 64-bit DCT-based perceptual hash. The image is reduced to a
// 32x32 grayscale raster, transformed with a DCT-II, and the 8x8
// low-frequency block is thresholded against its median: bit i is set when
// coefficient i (row-major) is above the median. Comparison is Hamming
// distance; identical normalized images always yield identical hashes.
type PHash uint64

// hashBits is the fixed bit length of PHash; it fixes the similarity scale.
const hashBits = 64

const dctSize = 32

// String returns the hash as 16 hex digits.
func (h PHash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// ParsePHash parses the hex form produced by String.
func ParsePHash(s string) (PHash, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse phash %q: %w", s, err)
	}
	return PHash(v), nil
}

// PerceptualHash computes the 64-bit DCT hash of a normalized image.
func PerceptualHash(n *NormalizedImage) PHash {
	gray := grayMatrix(n.Pixels, dctSize)
	freq := dct2d(gray)

	// Low-frequency 8x8 block, row-major.
	coeffs := make([]float64, 0, hashBits)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			coeffs = append(coeffs, freq[y][x])
		}
	}

	median := utils.Median(coeffs)
	var h uint64
	for i, v := range coeffs {
		if v > median {
			h |= 1 << (hashBits - 1 - i)
		}
	}
	return PHash(h)
}

// HammingDistance returns the number of differing bits between two hashes.
func HammingDistance(a, b PHash) int {
	return bits.OnesCount64(uint64(a) ^ uint64(b))
}

// HashSimilarity maps Hamming distance to [0,1]: distance 0 is 1.0 and the
// maximum distance is 0.0. Symmetric and reflexive.
func HashSimilarity(a, b PHash) float64 {
	return 1.0 - float64(HammingDistance(a, b))/float64(hashBits)
}

// grayMatrix downsamples img to size x size and converts to luminance.
func grayMatrix(img *image.RGBA, size int) [][]float64 {
	small := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	m := make([][]float64, size)
	for y := 0; y < size; y++ {
		m[y] = make([]float64, size)
		for x := 0; x < size; x++ {
			i := small.PixOffset(x, y)
			r := float64(small.Pix[i])
			g := float64(small.Pix[i+1])
			b := float64(small.Pix[i+2])
			// ITU-R BT.601 luma.
			m[y][x] = 0.299*r + 0.587*g + 0.114*b
		}
	}
	return m
}

// dct2d applies a DCT-II over the square input matrix.
func dct2d(in [][]float64) [][]float64 {
	n := len(in)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	// Precompute the cosine basis once per call; n is small (32).
	cosTable := make([][]float64, n)
	for u := 0; u < n; u++ {
		cosTable[u] = make([]float64, n)
		for i := 0; i < n; i++ {
			cosTable[u][i] = math.Cos(math.Pi * float64(u) * (2*float64(i) + 1) / (2 * float64(n)))
		}
	}
	scale := func(u int) float64 {
		if u == 0 {
			return 1 / math.Sqrt2
		}
		return 1
	}
	for u := 0; u < n; u++ {
		for v := 0; v < n; v++ {
			var sum float64
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					sum += in[i][j] * cosTable[u][i] * cosTable[v][j]
				}
			}
			out[u][v] = sum * 2 * scale(u) * scale(v) / float64(n)
		}
	}
	return out
}
