package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("character codes minus 33", func(t *testing.T) {
		m := Decode("!\"#", 3, 1)
		assert.Equal(t, []float64{0, 1, 2}, m.Values)
	})

	t.Run("leading padding is zero", func(t *testing.T) {
		m := Decode("  %\n#", 4, 2)
		assert.Equal(t, []float64{
			0, 0, 4, 0,
			2, 0, 0, 0,
		}, m.Values)
	})

	t.Run("interior whitespace is zero", func(t *testing.T) {
		m := Decode("# \t#", 4, 1)
		assert.Equal(t, []float64{2, 0, 0, 2}, m.Values)
	})

	t.Run("characters beyond width are ignored", func(t *testing.T) {
		m := Decode("#####", 3, 1)
		assert.Equal(t, []float64{2, 2, 2}, m.Values)
	})

	t.Run("rows beyond height are ignored", func(t *testing.T) {
		m := Decode("#\n#\n#", 1, 2)
		assert.Equal(t, []float64{2, 2}, m.Values)
	})

	t.Run("missing rows stay zero", func(t *testing.T) {
		m := Decode("#", 2, 3)
		assert.Equal(t, []float64{2, 0, 0, 0, 0, 0}, m.Values)
	})

	t.Run("trailing whitespace trimmed", func(t *testing.T) {
		m := Decode("#\n\n\n   \n", 1, 2)
		assert.Equal(t, []float64{2, 0}, m.Values)
	})

	t.Run("carriage returns are whitespace", func(t *testing.T) {
		m := Decode("#\r\n$", 2, 2)
		assert.Equal(t, []float64{2, 0, 3, 0}, m.Values)
	})

	t.Run("blank row", func(t *testing.T) {
		m := Decode("   \n#", 2, 2)
		assert.Equal(t, []float64{0, 0, 2, 0}, m.Values)
	})

	t.Run("degenerate dimensions", func(t *testing.T) {
		m := Decode("###", 0, 5)
		assert.Empty(t, m.Values)
		assert.Zero(t, m.Width)
	})
}

func TestMatrix_At(t *testing.T) {
	m := Decode("!\"\n#$", 2, 2)
	assert.Equal(t, 0.0, m.At(0, 0))
	assert.Equal(t, 1.0, m.At(1, 0))
	assert.Equal(t, 2.0, m.At(0, 1))
	assert.Equal(t, 3.0, m.At(1, 1))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	const width, height = 7, 5
	values := make([]float64, width*height)
	for i := range values {
		// Mix clear cells with the full intensity range.
		if i%4 == 0 {
			continue
		}
		values[i] = float64((i * 13) % 94)
	}
	want := Matrix{Width: width, Height: height, Values: values}

	encoded := Encode(want)
	got := Decode(encoded, width, height)

	require.Equal(t, want.Width, got.Width)
	require.Equal(t, want.Height, got.Height)
	assert.Equal(t, want.Values, got.Values)
}

func TestEncode_TrimsTrailingSpaces(t *testing.T) {
	m := Matrix{Width: 3, Height: 2, Values: []float64{0, 2, 0, 0, 0, 0}}
	assert.Equal(t, " #\n", Encode(m))
}
