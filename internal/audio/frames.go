// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// SaveFrame writes img as dir/frame-NNNNNN.png and returns the path.
func SaveFrame(dir string, seq uint64, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create frame dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("frame-%06d.png", seq))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create frame file: %w", err)
	}
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}
