package motiondetection

import (
	"errors"
	"fmt"

	"github.com/yeti47/cryospy/client/motion-client/models"
)

// ErrRegionsFailed is returned when contours cannot be computed from a mask.
var ErrRegionsFailed = errors.New("region search failed")

// ContourFinder finds the connected foreground regions of a mask.
type ContourFinder interface {
	FindRegions(mask models.ForegroundMask) ([]models.Region, error)
}

type RegionFilter struct {
	finder ContourFinder
}

func NewRegionFilter(finder ContourFinder) *RegionFilter {
	return &RegionFilter{finder: finder}
}

// HasLargeRegion reports whether any region of mask has an area strictly
// greater than minArea. The scan stops at the first such region.
func (f *RegionFilter) HasLargeRegion(mask models.ForegroundMask, minArea float64) (bool, error) {
	regions, err := f.Regions(mask)
	if err != nil {
		return false, err
	}

	for _, region := range regions {
		if region.Area > minArea {
			return true, nil
		}
	}
	return false, nil
}

// Regions returns every region of mask, e.g. for drawing overlays.
func (f *RegionFilter) Regions(mask models.ForegroundMask) ([]models.Region, error) {
	regions, err := f.finder.FindRegions(mask)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegionsFailed, err)
	}
	return regions, nil
}
