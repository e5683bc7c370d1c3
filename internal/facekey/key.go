// Package facekey builds canonical, order-independent identifiers for mesh faces.
package facekey

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/ungerik/go3d/float64/vec3"

	"github.com/kozaktomas/face-collapse/internal/constants"
)

// Key identifies a face by its quantized, sorted vertex positions.
// Two faces built from the same positions in any cyclic order or winding
// produce the same Key. The zero value is the key of an empty face.
type Key string

// Build computes the canonical key of a face whose positions are already
// expressed in a shared coordinate space (world space).
// The input slice is not modified.
func Build(positions []vec3.T) Key {
	sorted := SortPositions(positions)

	var b strings.Builder
	buf := make([]byte, 0, 24)
	for i := range sorted {
		if i > 0 {
			b.WriteByte(';')
		}
		q := Quantize(sorted[i])
		for axis, c := range q {
			if axis > 0 {
				b.WriteByte(',')
			}
			buf = strconv.AppendInt(buf[:0], c, 10)
			b.Write(buf)
		}
	}
	return Key(b.String())
}

// Components returns the integer tuple the key was built from, three
// integers per vertex in sorted order.
func (k Key) Components() []int64 {
	if k == "" {
		return nil
	}
	var out []int64
	for _, vertex := range strings.Split(string(k), ";") {
		for _, s := range strings.Split(vertex, ",") {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil
			}
			out = append(out, n)
		}
	}
	return out
}

// VertexCount returns the number of vertices encoded in the key.
func (k Key) VertexCount() int {
	if k == "" {
		return 0
	}
	return strings.Count(string(k), ";") + 1
}

// orderValue is the scalar used to sort face vertices.
// It is not a true lexicographic order and can mis-order pathological
// coordinate combinations; ties are broken in SortPositions.
func orderValue(v vec3.T) float64 {
	return v[0]*constants.OrderWeightX + v[1]*constants.OrderWeightY + v[2]
}

// SortPositions returns a sorted copy of positions, ascending by orderValue.
// Equal order values fall back to comparing x, then y, then z.
func SortPositions(positions []vec3.T) []vec3.T {
	sorted := slices.Clone(positions)
	slices.SortStableFunc(sorted, func(a, b vec3.T) int {
		fa, fb := orderValue(a), orderValue(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		for axis := range 3 {
			switch {
			case a[axis] < b[axis]:
				return -1
			case a[axis] > b[axis]:
				return 1
			}
		}
		return 0
	})
	return sorted
}

// Quantize converts each axis of v to an integer: the coordinate is rounded
// to KeyDecimals decimal digits, scaled by KeyScale and truncated toward zero.
func Quantize(v vec3.T) [3]int64 {
	return [3]int64{
		quantizeAxis(v[0]),
		quantizeAxis(v[1]),
		quantizeAxis(v[2]),
	}
}

var roundFactor = math.Pow10(constants.KeyDecimals)

func quantizeAxis(c float64) int64 {
	rounded := math.Round(c*roundFactor) / roundFactor
	return int64(rounded * constants.KeyScale)
}
