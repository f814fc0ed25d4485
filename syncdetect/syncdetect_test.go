package syncdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingRange_S5(t *testing.T) {
	missing := MissingRange(1000, 1020, 5)
	assert.Equal(t, []int64{1005, 1010, 1015}, missing)

	needed, lo, hi := NeedsPatch(missing)
	assert.True(t, needed)
	assert.Equal(t, int64(1005), lo)
	assert.Equal(t, int64(1015), hi)
}

func TestMissingRange_EmptyOrSingleNeedsNoPatch(t *testing.T) {
	needed, _, _ := NeedsPatch(MissingRange(1000, 1006, 5))
	assert.False(t, needed)

	needed, _, _ = NeedsPatch(nil)
	assert.False(t, needed)
}

func TestMissingRange_AdjacentHasNoGap(t *testing.T) {
	assert.Empty(t, MissingRange(1000, 1005, 5))
}
