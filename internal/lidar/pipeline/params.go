package pipeline

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidParams is returned when analysis parameters are out of range.
var ErrInvalidParams = errors.New("invalid analysis parameters")

// Kind selects the output product.
type Kind int

const (
	KindUnknown Kind = iota
	KindCHM
	KindCover
)

func (k Kind) String() string {
	switch k {
	case KindCHM:
		return "canopy_height_model"
	case KindCover:
		return "canopy_cover"
	default:
		return "unknown"
	}
}

// Unit is the unit of the output values.
func (k Kind) Unit() string {
	if k == KindCover {
		return "%"
	}
	return "m"
}

// Title is the human-readable product name.
func (k Kind) Title() string {
	switch k {
	case KindCHM:
		return "Canopy Height Model"
	case KindCover:
		return "Canopy Cover"
	default:
		return "Unknown product"
	}
}

// ParseKind accepts the product names and their short forms chm and cover.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chm", "canopy_height_model":
		return KindCHM, nil
	case "cover", "canopy_cover":
		return KindCover, nil
	default:
		return KindUnknown, fmt.Errorf("%w: unknown product %q (want chm or cover)", ErrInvalidParams, s)
	}
}

// MarshalText encodes k by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a name accepted by ParseKind.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Range is an inclusive parameter range with its default.
type Range struct {
	Min, Max, Default float64
}

// Contains reports whether v lies within r.
func (r Range) Contains(v float64) bool {
	return !math.IsNaN(v) && v >= r.Min && v <= r.Max
}

// Parameter ranges per product.
var (
	CHMResolution   = Range{Min: 0.5, Max: 30, Default: 1}
	CoverResolution = Range{Min: 1, Max: 30, Default: 10}
	HeightThreshold = Range{Min: 0.5, Max: 10, Default: 2}
)

// Params configures one analysis. HeightThreshold applies to cover only.
type Params struct {
	Kind            Kind    `json:"kind"`
	Resolution      float64 `json:"resolution"`
	HeightThreshold float64 `json:"height_threshold,omitempty"`
}

// DefaultParams returns the defaults for kind.
func DefaultParams(kind Kind) Params {
	switch kind {
	case KindCover:
		return Params{Kind: kind, Resolution: CoverResolution.Default, HeightThreshold: HeightThreshold.Default}
	default:
		return Params{Kind: kind, Resolution: CHMResolution.Default}
	}
}

// Validate checks p against the ranges of its kind.
func (p Params) Validate() error {
	switch p.Kind {
	case KindCHM:
		if !CHMResolution.Contains(p.Resolution) {
			return fmt.Errorf("%w: CHM resolution %g outside [%g, %g]", ErrInvalidParams, p.Resolution, CHMResolution.Min, CHMResolution.Max)
		}
	case KindCover:
		if !CoverResolution.Contains(p.Resolution) {
			return fmt.Errorf("%w: cover resolution %g outside [%g, %g]", ErrInvalidParams, p.Resolution, CoverResolution.Min, CoverResolution.Max)
		}
		if !HeightThreshold.Contains(p.HeightThreshold) {
			return fmt.Errorf("%w: height threshold %g outside [%g, %g]", ErrInvalidParams, p.HeightThreshold, HeightThreshold.Min, HeightThreshold.Max)
		}
	default:
		return fmt.Errorf("%w: no product selected", ErrInvalidParams)
	}
	return nil
}
