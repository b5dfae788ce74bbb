package commands

import (
	"fmt"

	"github.com/bryanchriswhite/CamLink/internal/calibration"
	"github.com/bryanchriswhite/CamLink/internal/calibration/cvcalib"
	"github.com/bryanchriswhite/CamLink/internal/logger"
	"github.com/spf13/cobra"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate DIR",
	Short: "Compute camera intrinsics from chessboard images",
	Long: `Detect a chessboard in every image in DIR and solve for the camera
matrix and distortion coefficients. The result is written as YAML.

The board is described by its inner corners, e.g. a classic 10x7 squares
board has 9x6 inner corners.`,
	Example: `  # Calibrate with the board from the config file
  camlink calibrate ./shots

  # 7x5 inner corners, 30mm squares, custom output
  camlink calibrate ./shots --cols 7 --rows 5 --square 0.03 -o cam0.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)

	f := calibrateCmd.Flags()
	f.Int("cols", 0, "inner corners per row")
	f.Int("rows", 0, "inner corners per column")
	f.Float64("square", 0, "square size (any unit, e.g. meters)")
	f.StringP("output", "o", "", "result file (relative paths resolve against the config directory)")

	bindFlag(f, "cols", "calibration.cols")
	bindFlag(f, "rows", "calibration.rows")
	bindFlag(f, "square", "calibration.square_size")
	bindFlag(f, "output", "calibration.output")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg := configMgr.Get().Calibration
	board := calibration.Board{
		Cols:       cfg.Cols,
		Rows:       cfg.Rows,
		SquareSize: cfg.SquareSize,
	}

	paths, err := calibration.FindImages(args[0])
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images found in %s", args[0])
	}

	logger.WithComponent("calibrate").Info().
		Int("images", len(paths)).
		Int("cols", board.Cols).
		Int("rows", board.Rows).
		Msg("Starting calibration")

	result, err := cvcalib.Calibrate(paths, board)
	if err != nil {
		return err
	}

	out := configMgr.ResolvePath(cfg.Output)
	if err := result.Save(out); err != nil {
		return fmt.Errorf("failed to save calibration: %w", err)
	}

	fx, fy := result.Focal()
	cx, cy := result.Center()
	fmt.Printf("✅ Calibrated from %d of %d images (RMS %.4f px)\n", result.Views, len(paths), result.RMS)
	fmt.Printf("   fx=%.2f fy=%.2f cx=%.2f cy=%.2f\n", fx, fy, cx, cy)
	fmt.Printf("   distortion: %v\n", result.Distortion)
	fmt.Printf("   saved to %s\n", out)
	return nil
}
