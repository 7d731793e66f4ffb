package motiondetection

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectionWindow_RatioMatchesTail(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, capacity := range []int{1, 3, 10, 32} {
		w := NewDetectionWindow(capacity)
		var seen []bool

		for i := 0; i < 200; i++ {
			hit := rng.Intn(3) == 0
			w.Push(hit)
			seen = append(seen, hit)

			n := min(len(seen), capacity)
			hits := 0
			for _, h := range seen[len(seen)-n:] {
				if h {
					hits++
				}
			}

			require.Equal(t, n, w.Len())
			require.InDelta(t, float64(hits)/float64(n), w.Ratio(), 1e-12)
			require.GreaterOrEqual(t, w.Ratio(), 0.0)
			require.LessOrEqual(t, w.Ratio(), 1.0)
		}
	}
}

func TestDetectionWindow_SingleHitIsFullRatio(t *testing.T) {
	w := NewDetectionWindow(10)
	assert.Equal(t, 0.0, w.Ratio())

	w.Push(true)
	assert.Equal(t, 1.0, w.Ratio())
}

func TestDetectionWindow_EvictsOldest(t *testing.T) {
	w := NewDetectionWindow(3)
	for _, hit := range []bool{true, false, false, true} {
		w.Push(hit)
	}

	if diff := cmp.Diff([]bool{false, false, true}, w.Entries()); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, w.Hits())
	assert.Equal(t, 3, w.Cap())
}

func TestNewDetectionWindow_MinimumCapacity(t *testing.T) {
	assert.Equal(t, 1, NewDetectionWindow(0).Cap())
}
