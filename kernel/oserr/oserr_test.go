package oserr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorStrings(t *testing.T) {
	cases := map[Error]string{
		InvalidArgument: "invalid argument",
		NotAligned:      "not aligned",
		NotOwner:        "not owner",
		Busy:            "busy",
		Timeout:         "timeout",
		WouldBlock:      "would block",
		OutOfMemory:     "out of memory",
		NotStarted:      "not started",
		Error(200):      "unknown",
	}
	for code, want := range cases {
		assert.Equal(t, want, code.Error())
	}
}

func TestErrorsIsThroughWrap(t *testing.T) {
	err := fmt.Errorf("pool rx: %w", OutOfMemory)
	assert.True(t, errors.Is(err, OutOfMemory))
	assert.False(t, errors.Is(err, Timeout))
}
