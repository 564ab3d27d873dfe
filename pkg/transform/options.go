package transform

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrConflictingRotation is returned when both rotation and rotation_degrees are set.
	ErrConflictingRotation = errors.New("rotation and rotation_degrees are mutually exclusive")
	// ErrConflictingSquare is returned when both square_long and square_short
	// are present, whatever their values.
	ErrConflictingSquare = errors.New("square_long and square_short are mutually exclusive")
)

// Options is the user-facing form of the transformation settings, as read
// from configuration files. Use Config to validate it.
type Options struct {
	// Shift of the center as a fraction of the rect's own width/height,
	// applied along the rect's rotated axes.
	ShiftX float64 `yaml:"shift_x" json:"shift_x"`
	ShiftY float64 `yaml:"shift_y" json:"shift_y"`

	// Rotation delta; at most one may be set.
	Rotation        *float64 `yaml:"rotation,omitempty" json:"rotation,omitempty"`
	RotationDegrees *float64 `yaml:"rotation_degrees,omitempty" json:"rotation_degrees,omitempty"`

	// Square policy applied before scaling. At most one may be present,
	// even as false; the present one applies only when true.
	SquareLong  *bool `yaml:"square_long,omitempty" json:"square_long,omitempty"`
	SquareShort *bool `yaml:"square_short,omitempty" json:"square_short,omitempty"`

	ScaleX float64 `yaml:"scale_x" json:"scale_x"`
	ScaleY float64 `yaml:"scale_y" json:"scale_y"`
}

// DefaultOptions returns the identity transform.
func DefaultOptions() Options {
	return Options{ScaleX: 1, ScaleY: 1}
}

// Config validates the options and returns their compiled form.
func (o Options) Config() (Config, error) {
	if o.Rotation != nil && o.RotationDegrees != nil {
		return Config{}, fmt.Errorf("invalid transform options: %w", ErrConflictingRotation)
	}
	if o.SquareLong != nil && o.SquareShort != nil {
		return Config{}, fmt.Errorf("invalid transform options: %w", ErrConflictingSquare)
	}

	cfg := Config{
		ShiftX: o.ShiftX,
		ShiftY: o.ShiftY,
		ScaleX: o.ScaleX,
		ScaleY: o.ScaleY,
	}
	switch {
	case o.Rotation != nil:
		cfg.Rotation = Radians(*o.Rotation)
	case o.RotationDegrees != nil:
		cfg.Rotation = Degrees(*o.RotationDegrees)
	}
	switch {
	case o.SquareLong != nil && *o.SquareLong:
		cfg.Square = SquareLong
	case o.SquareShort != nil && *o.SquareShort:
		cfg.Square = SquareShort
	}
	return cfg, nil
}

// Config is the validated transformation. Its zero value shifts nothing,
// keeps rotation and collapses the size to zero; start from Identity.
type Config struct {
	ShiftX   float64
	ShiftY   float64
	Rotation Rotation
	Square   Square
	ScaleX   float64
	ScaleY   float64
}

// Identity returns a Config that leaves every rect unchanged.
func Identity() Config {
	return Config{ScaleX: 1, ScaleY: 1}
}

type rotationUnit uint8

const (
	rotationNone rotationUnit = iota
	rotationRadians
	rotationDegrees
)

// Rotation is an optional rotation delta expressed in radians or degrees.
// The zero value means no rotation change.
type Rotation struct {
	unit  rotationUnit
	value float64
}

// NoRotation leaves the rect's rotation untouched.
func NoRotation() Rotation { return Rotation{} }

// Radians adds v radians to the rect's rotation.
func Radians(v float64) Rotation { return Rotation{unit: rotationRadians, value: v} }

// Degrees adds v degrees to the rect's rotation.
func Degrees(v float64) Rotation { return Rotation{unit: rotationDegrees, value: v} }

// Delta returns the rotation change in radians and whether one is set.
func (r Rotation) Delta() (float64, bool) {
	switch r.unit {
	case rotationRadians:
		return r.value, true
	case rotationDegrees:
		return math.Pi * r.value / 180, true
	default:
		return 0, false
	}
}

func (r Rotation) String() string {
	switch r.unit {
	case rotationRadians:
		return fmt.Sprintf("%grad", r.value)
	case rotationDegrees:
		return fmt.Sprintf("%gdeg", r.value)
	default:
		return "none"
	}
}

// Square selects how width and height are equalized before scaling.
type Square uint8

const (
	SquareNone Square = iota
	// SquareLong sets both sides to the longer one.
	SquareLong
	// SquareShort sets both sides to the shorter one.
	SquareShort
)

func (s Square) String() string {
	switch s {
	case SquareLong:
		return "long"
	case SquareShort:
		return "short"
	default:
		return "none"
	}
}
