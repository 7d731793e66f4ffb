package vision

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"github.com/yeti47/cryospy/client/motion-client/common"
	"github.com/yeti47/cryospy/client/motion-client/models"
)

var contourColor = color.RGBA{G: 255}

// OverlayWriter saves frames with their region outlines as JPEG files in
// <outputDir>/contours.
type OverlayWriter struct {
	dir string
}

func NewOverlayWriter(outputDir string) *OverlayWriter {
	return &OverlayWriter{dir: filepath.Join(outputDir, "contours")}
}

func (w *OverlayWriter) WriteSnapshot(frame models.Frame, regions []models.Region) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	img, err := MatFromFrame(frame)
	if err != nil {
		img.Close()
		return "", err
	}
	defer img.Close()

	outlines := make([][]image.Point, 0, len(regions))
	for _, region := range regions {
		if len(region.Contour) > 0 {
			outlines = append(outlines, region.Contour)
		}
	}
	if len(outlines) > 0 {
		contours := gocv.NewPointsVectorFromPoints(outlines)
		err := gocv.DrawContours(&img, contours, -1, contourColor, 2)
		contours.Close()
		if err != nil {
			return "", fmt.Errorf("failed to draw contours: %w", err)
		}
	}

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	path := filepath.Join(w.dir, common.ClipFileName("contour", ts, ".jpg"))
	if ok := gocv.IMWrite(path, img); !ok {
		return "", fmt.Errorf("failed to write snapshot %s", path)
	}
	return path, nil
}
