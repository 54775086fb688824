package treemap

import (
	"math"

	"sendermap/internal/model"
)

// Cell is a grouped entry positioned on a character grid.
type Cell struct {
	Entry      model.GroupedEntry
	X, Y, W, H int
}

type rect struct{ x, y, w, h float64 }

// Layout places entries on a width x height character grid using the
// squarified treemap algorithm, so that each cell's area is proportional
// to its Value. Entries should be sorted by Value descending, as Group
// returns them. Entries too small to cover a character are omitted.
func Layout(entries []model.GroupedEntry, width, height int) []Cell {
	if width <= 0 || height <= 0 || len(entries) == 0 {
		return nil
	}

	// Terminal cells are roughly twice as tall as they are wide; lay out in
	// square units and halve the vertical axis afterwards.
	bounds := rect{w: float64(width), h: float64(height) * 2}

	total := 0.0
	for _, e := range entries {
		total += float64(max(1, e.Value))
	}
	scale := bounds.w * bounds.h / total
	areas := make([]float64, len(entries))
	for i, e := range entries {
		areas[i] = float64(max(1, e.Value)) * scale
	}

	rects := squarify(areas, bounds)
	cells := make([]Cell, 0, len(rects))
	for i, r := range rects {
		x0 := clamp(int(math.Round(r.x)), width)
		x1 := clamp(int(math.Round(r.x+r.w)), width)
		y0 := clamp(int(math.Round(r.y/2)), height)
		y1 := clamp(int(math.Round((r.y+r.h)/2)), height)
		if x1 <= x0 || y1 <= y0 {
			continue
		}
		cells = append(cells, Cell{Entry: entries[i], X: x0, Y: y0, W: x1 - x0, H: y1 - y0})
	}
	return cells
}

func clamp(v, hi int) int {
	return max(0, min(v, hi))
}

func squarify(areas []float64, r rect) []rect {
	out := make([]rect, 0, len(areas))
	for i := 0; i < len(areas); {
		side := math.Min(r.w, r.h)
		j := i + 1
		for j < len(areas) && worst(areas[i:j+1], side) <= worst(areas[i:j], side) {
			j++
		}
		out, r = layoutRow(out, areas[i:j], r)
		i = j
	}
	return out
}

// worst is the largest aspect ratio in row when laid along side.
func worst(row []float64, side float64) float64 {
	sum, lo, hi := 0.0, math.Inf(1), 0.0
	for _, a := range row {
		sum += a
		lo = math.Min(lo, a)
		hi = math.Max(hi, a)
	}
	if sum <= 0 || side <= 0 || lo <= 0 {
		return math.Inf(1)
	}
	s2, w2 := sum*sum, side*side
	return math.Max(w2*hi/s2, s2/(w2*lo))
}

// layoutRow places row along the shorter side of r and returns the space
// left over.
func layoutRow(out []rect, row []float64, r rect) ([]rect, rect) {
	sum := 0.0
	for _, a := range row {
		sum += a
	}
	if r.w >= r.h {
		colW := 0.0
		if r.h > 0 {
			colW = sum / r.h
		}
		y := r.y
		for _, a := range row {
			h := 0.0
			if colW > 0 {
				h = a / colW
			}
			out = append(out, rect{x: r.x, y: y, w: colW, h: h})
			y += h
		}
		return out, rect{x: r.x + colW, y: r.y, w: r.w - colW, h: r.h}
	}

	rowH := 0.0
	if r.w > 0 {
		rowH = sum / r.w
	}
	x := r.x
	for _, a := range row {
		w := 0.0
		if rowH > 0 {
			w = a / rowH
		}
		out = append(out, rect{x: x, y: r.y, w: w, h: rowH})
		x += w
	}
	return out, rect{x: r.x, y: r.y + rowH, w: r.w, h: r.h - rowH}
}
