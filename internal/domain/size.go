package domain

import (
	"fmt"
	"strings"
)

// Size is the physical size class shared by slots and parcels.
type Size string

const (
	SizeSmall  Size = "SMALL"
	SizeMedium Size = "MEDIUM"
	SizeLarge  Size = "LARGE"
	SizeXLarge Size = "XLARGE"
)

// Sizes lists every size class from smallest to largest.
var Sizes = []Size{SizeSmall, SizeMedium, SizeLarge, SizeXLarge}

// Rank orders sizes from smallest (0) to largest. Unknown sizes rank -1.
func (s Size) Rank() int {
	for i, v := range Sizes {
		if v == s {
			return i
		}
	}
	return -1
}

func (s Size) Valid() bool { return s.Rank() >= 0 }

// ParseSize accepts any casing and surrounding whitespace.
func ParseSize(raw string) (Size, error) {
	s := Size(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("parse size %q: %w", raw, ErrInvalidArgument)
	}
	return s, nil
}

// Fitting returns the sizes a parcel of size s may be placed in, exact match first.
// Larger sizes are only included when allowLarger is set.
func (s Size) Fitting(allowLarger bool) []Size {
	r := s.Rank()
	if r < 0 {
		return nil
	}
	if !allowLarger {
		return []Size{s}
	}
	out := make([]Size, 0, len(Sizes)-r)
	out = append(out, Sizes[r:]...)
	return out
}

// Physical inner dimensions of a slot in millimetres.
type Dimensions struct {
	WidthMM  int
	HeightMM int
	DepthMM  int
}
