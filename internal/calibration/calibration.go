// Package calibration describes chessboard targets and persists camera
// intrinsics computed from them.
package calibration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNotEnoughViews is returned when too few images show the full board
var ErrNotEnoughViews = errors.New("not enough usable calibration views")

// MinViews is the smallest number of detected boards accepted for a solve
const MinViews = 3

// Board is a chessboard target described by its inner corners
type Board struct {
	Cols       int     `yaml:"cols"`
	Rows       int     `yaml:"rows"`
	SquareSize float64 `yaml:"square_size"`
}

// Point3 is a board corner in board coordinates
type Point3 struct {
	X, Y, Z float64
}

// Validate checks the board dimensions
func (b Board) Validate() error {
	if b.Cols < 2 || b.Rows < 2 {
		return fmt.Errorf("board needs at least 2x2 inner corners, got %dx%d", b.Cols, b.Rows)
	}
	if b.SquareSize <= 0 {
		return fmt.Errorf("square size must be positive, got %g", b.SquareSize)
	}
	return nil
}

// Corners returns the number of inner corners
func (b Board) Corners() int {
	return b.Cols * b.Rows
}

// ObjectPoints returns the inner corners on the z=0 plane, row by row, in
// the same order the corner detector reports them.
func (b Board) ObjectPoints() []Point3 {
	pts := make([]Point3, 0, b.Corners())
	for r := 0; r < b.Rows; r++ {
		for c := 0; c < b.Cols; c++ {
			pts = append(pts, Point3{
				X: float64(c) * b.SquareSize,
				Y: float64(r) * b.SquareSize,
			})
		}
	}
	return pts
}

// Result holds the intrinsics of one camera
type Result struct {
	ImageWidth   int           `yaml:"image_width"`
	ImageHeight  int           `yaml:"image_height"`
	Board        Board         `yaml:"board"`
	CameraMatrix [3][3]float64 `yaml:"camera_matrix"`
	Distortion   []float64     `yaml:"distortion"`
	RMS          float64       `yaml:"rms"`
	Views        int           `yaml:"views"`
	Rejected     []string      `yaml:"rejected,omitempty"`
	CreatedAt    time.Time     `yaml:"created_at"`
}

// Focal returns fx, fy in pixels
func (r *Result) Focal() (fx, fy float64) {
	return r.CameraMatrix[0][0], r.CameraMatrix[1][1]
}

// Center returns the principal point cx, cy in pixels
func (r *Result) Center() (cx, cy float64) {
	return r.CameraMatrix[0][2], r.CameraMatrix[1][2]
}

// Save writes the result as YAML, creating parent directories
func (r *Result) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create calibration directory: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal calibration: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Load reads a result written by Save
func Load(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Result
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse calibration %s: %w", path, err)
	}
	return &r, nil
}

var imageExts = []string{".jpg", ".jpeg", ".png", ".bmp"}

// FindImages lists the calibration images in dir, sorted by name
func FindImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(imageExts, strings.ToLower(filepath.Ext(e.Name()))) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}
