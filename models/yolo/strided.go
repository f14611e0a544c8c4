package yolo

import (
	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models/model"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// level is one stride of a strided head together with where it starts in the output.
type level struct {
	stride model.Stride
	grid   int
	offset int
}

// levels lays the configured strides out back to back in configuration order.
func (d *Decoder) levels() []level {
	out := make([]level, len(d.cfg.Strides))
	offset := 0
	for i, s := range d.cfg.Strides {
		out[i] = level{
			stride: s,
			grid:   d.cfg.InputSize / s.Size,
			offset: offset,
		}
		offset += d.levelLen(s)
	}
	return out
}

func (d *Decoder) levelLen(s model.Stride) int {
	grid := d.cfg.InputSize / s.Size
	return grid * grid * len(s.Anchors) * d.cfg.RowSize()
}

// slotOffset returns the start of the row for anchor a in cell i of lvl.
//
//	anchor-major: offset + (a*cells + i) * row
//	cell-major:   offset + (i*anchors + a) * row
func (d *Decoder) slotOffset(lvl level, a, i int) int {
	cells := lvl.grid * lvl.grid
	var index int
	if d.cfg.Order == model.OrderCellMajor {
		index = i*len(lvl.stride.Anchors) + a
	} else {
		index = a*cells + i
	}
	return lvl.offset + index*d.cfg.RowSize()
}

// decodeStrided decodes every level, concurrently when Workers > 1. Results are always
// concatenated in level order so the output does not depend on scheduling.
func (d *Decoder) decodeStrided(output []float32) ([]postprocess.Result, skips) {
	levels := d.levels()
	perLevel := make([][]postprocess.Result, len(levels))
	perSkips := make([]skips, len(levels))

	if d.cfg.Workers > 1 && len(levels) > 1 {
		var g errgroup.Group
		g.SetLimit(d.cfg.Workers)
		for k := range levels {
			k := k
			g.Go(func() error {
				perLevel[k], perSkips[k] = d.decodeLevel(output, levels[k])
				return nil
			})
		}
		// decodeLevel cannot fail; the group only bounds the number of levels in flight.
		g.Wait()
	} else {
		for k := range levels {
			perLevel[k], perSkips[k] = d.decodeLevel(output, levels[k])
		}
	}

	n := 0
	for _, r := range perLevel {
		n += len(r)
	}
	results := make([]postprocess.Result, 0, n)
	var skipped skips
	for k := range levels {
		results = append(results, perLevel[k]...)
		skipped.merge(perSkips[k])
	}
	return results, skipped
}

// decodeLevel emits the candidates of one stride level, anchor by anchor, and within an
// anchor, cell by cell in row-major order.
func (d *Decoder) decodeLevel(output []float32, lvl level) ([]postprocess.Result, skips) {
	size := d.cfg.RowSize()
	cells := lvl.grid * lvl.grid
	stride := float32(lvl.stride.Size)

	var skipped skips
	var results []postprocess.Result

	for a, anchor := range lvl.stride.Anchors {
		for i := 0; i < cells; i++ {
			row, err := slot(output, d.slotOffset(lvl, a, i), size)
			if err != nil {
				skipped.add(err)
				continue
			}

			class, score, ok := d.score(row)
			if !ok {
				continue
			}

			col := float32(i % lvl.grid)
			line := float32(i / lvl.grid)
			cx := (d.xy(row[0])*2 - 0.5 + col) * stride
			cy := (d.xy(row[1])*2 - 0.5 + line) * stride
			w := math32.Exp(row[2]) * anchor.W
			h := math32.Exp(row[3]) * anchor.H

			box := images.FromCenter(cx, cy, w, h)
			if !box.Finite() {
				continue
			}

			results = append(results, postprocess.Result{
				Box:   box,
				Score: score,
				Class: class,
			})
		}
	}
	return results, skipped
}
