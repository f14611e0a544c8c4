package benchmark

import (
	"math/rand"

	"github.com/nvr-ai/go-yolo/models/model"
)

const (
	hotLogit  = 4
	coldLogit = -10
)

// slotCount returns the number of prediction slots in an output. Dense outputs have
// rows slots; strided outputs hold every anchor of every grid cell.
func slotCount(cfg model.Config, rows int) int {
	if cfg.Layout != model.LayoutStrided {
		return rows
	}
	n := 0
	for _, s := range cfg.Strides {
		g := cfg.InputSize / s.Size
		n += g * g * len(s.Anchors)
	}
	return n
}

// SyntheticOutput builds a raw output for cfg with exactly hot slots above the
// confidence threshold. Hot dense rows are grouped in small clusters of overlapping
// boxes so that suppression has work to do.
//
// Arguments:
//   - cfg: The model configuration.
//   - rows: The number of dense rows, ignored for strided outputs.
//   - hot: The number of confident slots.
//   - rng: The random source.
//
// Returns:
//   - []float32: The flattened output.
func SyntheticOutput(cfg model.Config, rows, hot int, rng *rand.Rand) []float32 {
	size := cfg.RowSize()
	slots := slotCount(cfg, rows)
	out := make([]float32, slots*size)

	for i := 0; i < slots; i++ {
		row := out[i*size : (i+1)*size]
		fillBox(cfg, row, rng.Float32()*float32(cfg.InputSize), rng.Float32()*float32(cfg.InputSize), rng)
		row[4] = coldLogit
		for j := range row[5:] {
			row[5+j] = coldLogit
		}
	}

	clusters := hot/4 + 1
	centers := make([][2]float32, clusters)
	for i := range centers {
		centers[i] = [2]float32{rng.Float32() * float32(cfg.InputSize), rng.Float32() * float32(cfg.InputSize)}
	}

	for i, slot := range rng.Perm(slots)[:hot] {
		row := out[slot*size : (slot+1)*size]
		c := centers[i%clusters]
		fillBox(cfg, row, c[0]+rng.Float32()*8-4, c[1]+rng.Float32()*8-4, rng)
		row[4] = hotLogit
		row[5+rng.Intn(cfg.NumClasses)] = hotLogit
	}
	return out
}

// fillBox writes plausible box fields: absolute centre/size for dense rows, grid
// offsets and log-scale sizes for strided slots.
func fillBox(cfg model.Config, row []float32, cx, cy float32, rng *rand.Rand) {
	if cfg.Layout == model.LayoutStrided {
		row[0] = rng.Float32()
		row[1] = rng.Float32()
		row[2] = rng.Float32()*2 - 1
		row[3] = rng.Float32()*2 - 1
		return
	}
	row[0] = cx
	row[1] = cy
	row[2] = 16 + rng.Float32()*112
	row[3] = 16 + rng.Float32()*112
}
