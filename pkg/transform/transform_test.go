package transform

import (
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/rect-transformer/pkg/types"
)

const tolerance = 1e-9

func float(v float64) *float64 { return &v }

func flag(v bool) *bool { return &v }

func mustTransformer(t *testing.T, opts Options) *Transformer {
	t.Helper()
	tr, err := NewFromOptions(opts)
	require.NoError(t, err)
	return tr
}

func TestAbsoluteShiftAndScale(t *testing.T) {
	opts := DefaultOptions()
	opts.ShiftX = 1
	opts.ScaleX = 2
	opts.ScaleY = 2
	tr := mustTransformer(t, opts)

	out := tr.Absolute(types.Rect{Width: 10, Height: 20})

	assert.Equal(t, types.Rect{XCenter: 10, YCenter: 0, Width: 20, Height: 40, Rotation: 0}, out)
}

func TestAbsoluteRotationDegrees(t *testing.T) {
	opts := DefaultOptions()
	opts.RotationDegrees = float(90)
	tr := mustTransformer(t, opts)

	out := tr.Absolute(types.Rect{Width: 10, Height: 10})

	assert.InDelta(t, math.Pi/2, out.Rotation, tolerance)
	assert.Zero(t, out.XCenter)
	assert.Zero(t, out.YCenter)
	assert.Equal(t, 10.0, out.Width)
	assert.Equal(t, 10.0, out.Height)
}

func TestAbsoluteRotationRadiansWraps(t *testing.T) {
	opts := DefaultOptions()
	opts.Rotation = float(math.Pi)
	tr := mustTransformer(t, opts)

	out := tr.Absolute(types.Rect{Width: 1, Height: 1, Rotation: math.Pi / 2})

	assert.InDelta(t, -math.Pi/2, out.Rotation, tolerance)
}

func TestAbsoluteKeepsRotationWithoutDelta(t *testing.T) {
	tr := New(Identity())

	// Outside the wrap range on purpose: without a delta the input is not rewritten.
	out := tr.Absolute(types.Rect{Width: 4, Height: 2, Rotation: 5})

	assert.Equal(t, 5.0, out.Rotation)
}

func TestAbsoluteShiftFollowsRotation(t *testing.T) {
	opts := DefaultOptions()
	opts.ShiftX = 0.5
	opts.ShiftY = 0.25
	tr := mustTransformer(t, opts)

	out := tr.Absolute(types.Rect{XCenter: 100, YCenter: 100, Width: 40, Height: 20, Rotation: math.Pi / 2})

	// Local (20, 5) rotated a quarter turn is (-5, 20).
	assert.InDelta(t, 95.0, out.XCenter, tolerance)
	assert.InDelta(t, 120.0, out.YCenter, tolerance)
	assert.InDelta(t, math.Pi/2, out.Rotation, tolerance)
}

func TestAbsoluteSquare(t *testing.T) {
	tests := []struct {
		name   string
		long   *bool
		short  *bool
		scaleX float64
		scaleY float64
		wantW  float64
		wantH  float64
	}{
		{name: "none", scaleX: 1, scaleY: 1, wantW: 10, wantH: 30},
		{name: "long", long: flag(true), scaleX: 1, scaleY: 1, wantW: 30, wantH: 30},
		{name: "short", short: flag(true), scaleX: 1, scaleY: 1, wantW: 10, wantH: 10},
		{name: "long off", long: flag(false), scaleX: 1, scaleY: 1, wantW: 10, wantH: 30},
		{name: "short off", short: flag(false), scaleX: 1, scaleY: 1, wantW: 10, wantH: 30},
		{name: "long then scale", long: flag(true), scaleX: 2, scaleY: 0.5, wantW: 60, wantH: 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{SquareLong: tt.long, SquareShort: tt.short, ScaleX: tt.scaleX, ScaleY: tt.scaleY}
			tr := mustTransformer(t, opts)

			out := tr.Absolute(types.Rect{Width: 10, Height: 30, ID: 42})

			assert.Equal(t, tt.wantW, out.Width)
			assert.Equal(t, tt.wantH, out.Height)
			assert.Equal(t, int64(42), out.ID)
		})
	}
}

func TestNormalizedSquareLong(t *testing.T) {
	opts := DefaultOptions()
	opts.SquareLong = flag(true)
	tr := mustTransformer(t, opts)

	out := tr.Normalized(
		types.NormalizedRect{XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 0.1},
		types.ImageSize{Width: 100, Height: 50},
	)

	// 20x5 px squared to 20x20 px on a 100x50 image.
	assert.InDelta(t, 0.2, out.Width, tolerance)
	assert.InDelta(t, 0.4, out.Height, tolerance)
	assert.Equal(t, 0.5, out.XCenter)
	assert.Equal(t, 0.5, out.YCenter)
}

func TestNormalizedSquareShort(t *testing.T) {
	opts := DefaultOptions()
	opts.SquareShort = flag(true)
	tr := mustTransformer(t, opts)

	out := tr.Normalized(
		types.NormalizedRect{Width: 0.2, Height: 0.1},
		types.ImageSize{Width: 100, Height: 50},
	)

	assert.InDelta(t, 0.05, out.Width, tolerance)
	assert.InDelta(t, 0.1, out.Height, tolerance)
}

func TestNormalizedShiftUnderRotationUsesPixels(t *testing.T) {
	opts := DefaultOptions()
	opts.ShiftX = 1
	opts.Rotation = float(math.Pi / 2)
	tr := mustTransformer(t, opts)

	// 20x20 px on a 200x100 image.
	out := tr.Normalized(
		types.NormalizedRect{XCenter: 0.5, YCenter: 0.5, Width: 0.1, Height: 0.2},
		types.ImageSize{Width: 200, Height: 100},
	)

	// A 20 px shift along the rotated x axis moves the center 20 px down.
	assert.InDelta(t, 0.5, out.XCenter, tolerance)
	assert.InDelta(t, 0.7, out.YCenter, tolerance)
}

func TestNormalizedShiftUnrotated(t *testing.T) {
	opts := DefaultOptions()
	opts.ShiftX = -0.5
	opts.ShiftY = 0.5
	tr := mustTransformer(t, opts)

	out := tr.Normalized(
		types.NormalizedRect{XCenter: 0.5, YCenter: 0.5, Width: 0.2, Height: 0.4},
		types.ImageSize{Width: 640, Height: 480},
	)

	assert.InDelta(t, 0.4, out.XCenter, tolerance)
	assert.InDelta(t, 0.7, out.YCenter, tolerance)
}

func TestNormalizedMatchesAbsoluteInPixels(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 200; i++ {
		opts := Options{
			ShiftX:      rng.Float64()*2 - 1,
			ShiftY:      rng.Float64()*2 - 1,
			ScaleX:      0.5 + rng.Float64()*2,
			ScaleY:      0.5 + rng.Float64()*2,
		}
		switch i % 3 {
		case 1:
			opts.SquareLong = flag(true)
		case 2:
			opts.SquareShort = flag(true)
		}
		if i%2 == 0 {
			opts.RotationDegrees = float(rng.Float64()*720 - 360)
		}
		tr := mustTransformer(t, opts)

		size := types.ImageSize{Width: 1 + rng.IntN(1920), Height: 1 + rng.IntN(1080)}
		in := types.NormalizedRect{
			XCenter:  rng.Float64(),
			YCenter:  rng.Float64(),
			Width:    rng.Float64(),
			Height:   rng.Float64(),
			Rotation: rng.Float64()*2*math.Pi - math.Pi,
		}

		got := tr.Normalized(in, size).ToPixels(size)
		want := tr.Absolute(in.ToPixels(size))

		assert.InDelta(t, want.XCenter, got.XCenter, 1e-6)
		assert.InDelta(t, want.YCenter, got.YCenter, 1e-6)
		assert.InDelta(t, want.Width, got.Width, 1e-6)
		assert.InDelta(t, want.Height, got.Height, 1e-6)
		assert.InDelta(t, want.Rotation, got.Rotation, tolerance)
	}
}

func TestZeroShiftKeepsCenter(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	opts := DefaultOptions()
	opts.SquareLong = flag(true)
	opts.ScaleX = 3
	tr := mustTransformer(t, opts)

	for i := 0; i < 100; i++ {
		in := types.Rect{
			XCenter: rng.Float64() * 1000,
			YCenter: rng.Float64() * 1000,
			Width:   rng.Float64() * 100,
			Height:  rng.Float64() * 100,
		}

		out := tr.Absolute(in)

		assert.Equal(t, in.XCenter, out.XCenter)
		assert.Equal(t, in.YCenter, out.YCenter)
	}
}

func TestRotationAlwaysWrapped(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < 500; i++ {
		delta := rng.Float64()*40 - 20
		in := rng.Float64()*40 - 20
		tr := New(Config{Rotation: Radians(delta), ScaleX: 1, ScaleY: 1})

		out := tr.Absolute(types.Rect{Width: 1, Height: 1, Rotation: in})

		assert.InDelta(t, NormalizeRadians(in+delta), out.Rotation, tolerance)
		assert.GreaterOrEqual(t, out.Rotation, -math.Pi)
		assert.Less(t, out.Rotation, math.Pi)
	}
}

func TestAspectRatioKeptWithoutSquare(t *testing.T) {
	tr := New(Identity())

	out := tr.Normalized(types.NormalizedRect{Width: 0.3, Height: 0.6}, types.ImageSize{Width: 300, Height: 200})

	assert.InDelta(t, 0.5, out.Width/out.Height, tolerance)
}

func TestNormalizeRadians(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 0, want: 0},
		{in: math.Pi / 4, want: math.Pi / 4},
		{in: 3 * math.Pi / 2, want: -math.Pi / 2},
		{in: -3 * math.Pi / 2, want: math.Pi / 2},
		{in: 5 * math.Pi, want: -math.Pi},
		{in: math.Pi, want: -math.Pi},
		{in: -math.Pi, want: -math.Pi},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeRadians(tt.in), tolerance, "NormalizeRadians(%v)", tt.in)
	}
}

func TestNaNPropagates(t *testing.T) {
	opts := DefaultOptions()
	opts.ShiftX = 1
	tr := mustTransformer(t, opts)

	out := tr.Absolute(types.Rect{Width: math.NaN(), Height: 1})

	assert.True(t, math.IsNaN(out.XCenter))
	assert.True(t, math.IsNaN(out.Width))
}

func TestOptionsConfig(t *testing.T) {
	t.Run("conflicting rotation", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Rotation = float(1)
		opts.RotationDegrees = float(45)

		_, err := opts.Config()

		require.ErrorIs(t, err, ErrConflictingRotation)
	})

	t.Run("conflicting square", func(t *testing.T) {
		for _, long := range []bool{true, false} {
			for _, short := range []bool{true, false} {
				opts := DefaultOptions()
				opts.SquareLong = flag(long)
				opts.SquareShort = flag(short)

				_, err := NewFromOptions(opts)

				require.ErrorIs(t, err, ErrConflictingSquare, "square_long=%v square_short=%v", long, short)
			}
		}
	})

	t.Run("compiled", func(t *testing.T) {
		opts := DefaultOptions()
		opts.RotationDegrees = float(180)
		opts.SquareShort = flag(true)

		cfg, err := opts.Config()
		require.NoError(t, err)

		delta, ok := cfg.Rotation.Delta()
		assert.True(t, ok)
		assert.InDelta(t, math.Pi, delta, tolerance)
		assert.Equal(t, SquareShort, cfg.Square)
		assert.Equal(t, "180deg", cfg.Rotation.String())
		assert.Equal(t, "short", cfg.Square.String())
	})

	t.Run("defaults", func(t *testing.T) {
		cfg, err := DefaultOptions().Config()
		require.NoError(t, err)

		_, ok := cfg.Rotation.Delta()
		assert.False(t, ok)
		assert.Equal(t, Identity(), cfg)
	})
}

func TestTransformerConcurrentUse(t *testing.T) {
	opts := DefaultOptions()
	opts.ShiftY = -0.5
	opts.ScaleX = 2.6
	opts.ScaleY = 2.6
	opts.SquareLong = flag(true)
	tr := mustTransformer(t, opts)

	in := types.NormalizedRect{XCenter: 0.4, YCenter: 0.6, Width: 0.1, Height: 0.2, Rotation: 0.3}
	size := types.ImageSize{Width: 640, Height: 480}
	want := tr.Normalized(in, size)

	var wg sync.WaitGroup
	results := make([]types.NormalizedRect, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = tr.Normalized(in, size)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
