package vision

import (
	"gocv.io/x/gocv"

	"github.com/yeti47/cryospy/client/motion-client/models"
)

// ContourFinder finds the external contours of a mask.
type ContourFinder struct{}

func NewContourFinder() *ContourFinder {
	return &ContourFinder{}
}

func (f *ContourFinder) FindRegions(mask models.ForegroundMask) ([]models.Region, error) {
	mat, err := MatFromMask(mask)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	contours := gocv.FindContours(mat, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	regions := make([]models.Region, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		regions = append(regions, models.Region{
			Area:    gocv.ContourArea(contour),
			Bounds:  gocv.BoundingRect(contour),
			Contour: contour.ToPoints(),
		})
	}
	return regions, nil
}
