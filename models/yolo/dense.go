package yolo

import (
	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// decodeDense reads [N, 5+C] rows whose box fields are already centre/size values in
// network-input pixels. A trailing partial row counts as an out of bounds slot.
func (d *Decoder) decodeDense(output []float32) ([]postprocess.Result, skips) {
	size := d.cfg.RowSize()
	rows := (len(output) + size - 1) / size

	var skipped skips
	results := make([]postprocess.Result, 0, 16)

	for i := 0; i < rows; i++ {
		row, err := slot(output, i*size, size)
		if err != nil {
			skipped.add(err)
			continue
		}

		class, score, ok := d.score(row)
		if !ok {
			continue
		}

		box := images.FromCenter(row[0], row[1], row[2], row[3])
		if !box.Finite() {
			continue
		}

		results = append(results, postprocess.Result{
			Box:   box,
			Score: score,
			Class: class,
		})
	}
	return results, skipped
}
