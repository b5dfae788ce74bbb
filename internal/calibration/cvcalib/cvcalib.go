// Package cvcalib runs chessboard camera calibration with OpenCV.
package cvcalib

import (
	"fmt"
	"image"
	"time"

	"github.com/bryanchriswhite/CamLink/internal/calibration"
	"github.com/bryanchriswhite/CamLink/internal/logger"
	"gocv.io/x/gocv"
)

// Calibrate detects the board in each image and solves for the intrinsics.
// Images where the board is not found are listed in Result.Rejected.
func Calibrate(paths []string, board calibration.Board) (*calibration.Result, error) {
	log := logger.WithComponent("calibrate")

	if err := board.Validate(); err != nil {
		return nil, err
	}

	objPoints := gocv.NewPoints3fVector()
	defer objPoints.Close()
	imgPoints := gocv.NewPoints2fVector()
	defer imgPoints.Close()

	object := make([]gocv.Point3f, 0, board.Corners())
	for _, p := range board.ObjectPoints() {
		object = append(object, gocv.Point3f{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)})
	}

	patternSize := image.Pt(board.Cols, board.Rows)
	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, 30, 0.001)

	var size image.Point
	var rejected []string
	for _, path := range paths {
		corners, imgSize, ok, err := detect(path, patternSize, criteria)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Debug().Str("image", path).Msg("Board not found")
			rejected = append(rejected, path)
			continue
		}
		if size == (image.Point{}) {
			size = imgSize
		} else if imgSize != size {
			corners.Close()
			return nil, fmt.Errorf("%s is %dx%d, expected %dx%d", path, imgSize.X, imgSize.Y, size.X, size.Y)
		}

		obj := gocv.NewPoint3fVectorFromPoints(object)
		objPoints.Append(obj)
		obj.Close()

		img := gocv.NewPoint2fVectorFromMat(corners)
		imgPoints.Append(img)
		img.Close()
		corners.Close()

		log.Debug().Str("image", path).Msg("Board found")
	}

	views := imgPoints.Size()
	if views < calibration.MinViews {
		return nil, fmt.Errorf("%w: %d of %d images, need %d", calibration.ErrNotEnoughViews, views, len(paths), calibration.MinViews)
	}

	cameraMatrix := gocv.NewMat()
	defer cameraMatrix.Close()
	distCoeffs := gocv.NewMat()
	defer distCoeffs.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	rms := gocv.CalibrateCamera(objPoints, imgPoints, size, &cameraMatrix, &distCoeffs, &rvecs, &tvecs, gocv.CalibFlag(0))

	result := &calibration.Result{
		ImageWidth:  size.X,
		ImageHeight: size.Y,
		Board:       board,
		RMS:         rms,
		Views:       views,
		Rejected:    rejected,
		CreatedAt:   time.Now().UTC(),
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			result.CameraMatrix[r][c] = cameraMatrix.GetDoubleAt(r, c)
		}
	}
	for i := 0; i < distCoeffs.Total(); i++ {
		result.Distortion = append(result.Distortion, distCoeffs.GetDoubleAt(0, i))
	}

	log.Info().
		Int("views", views).
		Int("rejected", len(rejected)).
		Float64("rms", rms).
		Msg("Calibration complete")

	return result, nil
}

// detect returns refined corners for one image. The caller closes corners
// when ok is true.
func detect(path string, patternSize image.Point, criteria gocv.TermCriteria) (corners gocv.Mat, size image.Point, ok bool, err error) {
	gray := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer gray.Close()
	if gray.Empty() {
		return gocv.Mat{}, size, false, fmt.Errorf("failed to read image %s", path)
	}
	size = image.Pt(gray.Cols(), gray.Rows())

	corners = gocv.NewMat()
	flags := gocv.CalibCBAdaptiveThresh | gocv.CalibCBNormalizeImage
	if !gocv.FindChessboardCorners(gray, patternSize, &corners, flags) {
		corners.Close()
		return gocv.Mat{}, size, false, nil
	}

	gocv.CornerSubPix(gray, &corners, image.Pt(11, 11), image.Pt(-1, -1), criteria)
	return corners, size, true, nil
}
