package imaging

import "image"

// Chunk is a sub-region of a normalized image. Coordinates are relative to
// the normalized grid, so two images with equal normalized dimensions produce
// chunks with identical geometry that compare index-for-index. Chunks share
// the parent's pixel buffer and never outlive it.
type Chunk struct {
	Index  int
	Row    int
	Col    int
	Rect   image.Rectangle
	Pixels image.Image
}

// Chunker partitions a normalized image into a fixed, non-overlapping grid.
type Chunker struct {
	rows int
	cols int
}

// NewChunker creates a chunker with the given grid shape. Values below 1 are
// raised to 1.
func NewChunker(rows, cols int) *Chunker {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return &Chunker{rows: rows, cols: cols}
}

// Chunk divides n into rows x cols chunks in deterministic row-major order.
// The union of chunk rectangles covers the image exactly once: edge chunks
// absorb any remainder pixels rather than padding.
func (c *Chunker) Chunk(n *NormalizedImage) []Chunk {
	baseW := n.Width / c.cols
	baseH := n.Height / c.rows

	chunks := make([]Chunk, 0, c.rows*c.cols)
	for row := 0; row < c.rows; row++ {
		y0 := row * baseH
		y1 := y0 + baseH
		if row == c.rows-1 {
			y1 = n.Height
		}
		for col := 0; col < c.cols; col++ {
			x0 := col * baseW
			x1 := x0 + baseW
			if col == c.cols-1 {
				x1 = n.Width
			}
			rect := image.Rect(x0, y0, x1, y1)
			chunks = append(chunks, Chunk{
				Index:  row*c.cols + col,
				Row:    row,
				Col:    col,
				Rect:   rect,
				Pixels: n.Pixels.SubImage(rect),
			})
		}
	}
	return chunks
}
