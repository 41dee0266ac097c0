package tileid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHilbertRoundTripKnownValues(t *testing.T) {
	assert.Equal(t, uint32(0), Hilbert.ID(Coord{0, 0, 0}))
	assert.Equal(t, uint32(1), Hilbert.ID(Coord{1, 0, 0}))
	assert.Equal(t, uint32(2), Hilbert.ID(Coord{1, 0, 1}))
	assert.Equal(t, uint32(3), Hilbert.ID(Coord{1, 1, 1}))
	assert.Equal(t, uint32(4), Hilbert.ID(Coord{1, 1, 0}))
	assert.Equal(t, uint32(5), Hilbert.ID(Coord{2, 0, 0}))
}

func TestHilbertRoundTripAllZoomsUpTo10(t *testing.T) {
	for z := uint8(0); z < 10; z++ {
		dim := uint32(1) << z
		for x := uint32(0); x < dim; x++ {
			for y := uint32(0); y < dim; y++ {
				c := Coord{Z: z, X: x, Y: y}
				id := Hilbert.ID(c)
				got := Hilbert.Coord(id)
				assert.Equal(t, c, got)
			}
		}
	}
}

func TestTMSRoundTripAllZoomsUpTo10(t *testing.T) {
	for z := uint8(0); z < 10; z++ {
		dim := uint32(1) << z
		for x := uint32(0); x < dim; x++ {
			for y := uint32(0); y < dim; y++ {
				c := Coord{Z: z, X: x, Y: y}
				id := TMS.ID(c)
				got := TMS.Coord(id)
				assert.Equal(t, c, got)
			}
		}
	}
}

func TestTMSMonotoneWithinLevel(t *testing.T) {
	// within a zoom level, increasing x then y-flipped should increase the id
	a := TMS.ID(Coord{5, 0, 31})
	b := TMS.ID(Coord{5, 0, 30})
	assert.Less(t, a, b) // y_flipped(31)=0 < y_flipped(30)=1
}

func TestMonotoneAcrossZoomLevels(t *testing.T) {
	for _, order := range []Order{TMS, Hilbert} {
		low := order.ID(Coord{3, 7, 7})
		high := order.ID(Coord{4, 0, 0})
		assert.Less(t, low, high, order.Name())
	}
}

func TestByName(t *testing.T) {
	o, err := ByName("hilbert")
	assert.NoError(t, err)
	assert.Equal(t, "hilbert", o.Name())

	o, err = ByName("tms")
	assert.NoError(t, err)
	assert.Equal(t, "tms", o.Name())

	_, err = ByName("bogus")
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.True(t, Coord{0, 0, 0}.Valid())
	assert.True(t, Coord{3, 7, 7}.Valid())
	assert.False(t, Coord{3, 8, 0}.Valid())
	assert.False(t, Coord{MaxZoom + 1, 0, 0}.Valid())
}
