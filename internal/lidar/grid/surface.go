package grid

import (
	"errors"
	"math"
)

// NoData marks cells without a value in finished rasters.
const NoData float32 = -9999

// ErrShapeMismatch is returned when two surfaces do not share a Definition.
var ErrShapeMismatch = errors.New("surfaces do not share a grid definition")

// Surface is a row-major Rows x Cols grid of float32 values.
type Surface struct {
	Def  Definition
	Data []float32
}

// NewSurface returns a surface with every cell set to fill.
func NewSurface(def Definition, fill float32) *Surface {
	data := make([]float32, def.Len())
	if fill != 0 {
		for i := range data {
			data[i] = fill
		}
	}
	return &Surface{Def: def, Data: data}
}

// Unresolved returns a surface with every cell NaN.
func Unresolved(def Definition) *Surface {
	return NewSurface(def, float32(math.NaN()))
}

// At returns the value at (row, col).
func (s *Surface) At(row, col int) float32 {
	return s.Data[s.Def.Index(row, col)]
}

// Set stores v at (row, col).
func (s *Surface) Set(row, col int, v float32) {
	s.Data[s.Def.Index(row, col)] = v
}

// SameShape reports whether o shares this surface's Definition.
func (s *Surface) SameShape(o *Surface) bool {
	return s != nil && o != nil && s.Def == o.Def && len(s.Data) == len(o.Data)
}

// Clone returns a deep copy.
func (s *Surface) Clone() *Surface {
	data := make([]float32, len(s.Data))
	copy(data, s.Data)
	return &Surface{Def: s.Def, Data: data}
}

// Count returns the number of cells holding a value, i.e. neither NaN nor NoData.
func (s *Surface) Count() int {
	n := 0
	for _, v := range s.Data {
		if IsValue(v) {
			n++
		}
	}
	return n
}

// IsValue reports whether v is a real value rather than NaN or NoData.
func IsValue(v float32) bool {
	return v == v && v != NoData
}

// IsNaN reports whether v is the unresolved marker.
func IsNaN(v float32) bool {
	return v != v
}
