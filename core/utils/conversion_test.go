package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToBool(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{1, true},
		{int64(0), false},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{" on ", true},
		{"1", true},
		{"0", false},
		{"off", false},
		{"", false},
		{[]byte("yes"), true},
		{3.5, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ToBool(tt.in), "ToBool(%#v)", tt.in)
	}
}

func TestToInt(t *testing.T) {
	assert.Equal(t, 42, ToInt("42"))
	assert.Equal(t, 7, ToInt(int64(7)))
	assert.Equal(t, 3, ToInt(3.9))
	assert.Equal(t, 0, ToInt("nope"))
	assert.Equal(t, 12, ToInt([]byte("12")))
}
