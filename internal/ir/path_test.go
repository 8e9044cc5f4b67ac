package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		input string
		want  Path
	}{
		{"x", Path{{Name: "x"}}},
		{"x.y", Path{{Name: "x"}, {Name: "y"}}},
		{"x.y[2].z", Path{{Name: "x"}, {Name: "y", Index: []int{2}}, {Name: "z"}}},
		{"grid[1][3]", Path{{Name: "grid", Index: []int{1, 3}}}},
		{"_id_4.value", Path{{Name: "_id_4"}, {Name: "value"}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePath(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestParsePathErrors(t *testing.T) {
	for _, input := range []string{"", "x.", ".x", "x[", "x[0]", "x[a]", "x[1]y", "[1]", "1x"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParsePath(input)
			assert.Error(t, err)
		})
	}
}

func TestParseRef(t *testing.T) {
	p, err := ParseRef("$seq.values[2]")
	require.NoError(t, err)
	assert.Equal(t, Path{{Name: "seq"}, {Name: "values", Index: []int{2}}}, p)

	_, err = ParseRef("seq")
	assert.Error(t, err)
}

func TestPathStringIndexRemainder(t *testing.T) {
	p := Path{{Index: []int{2}}, {Name: "value"}}
	assert.Equal(t, "[2].value", p.String())
	assert.False(t, p.Empty())
	assert.True(t, Path{}.Empty())
}
