package tokencount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount_EmptyIsZero(t *testing.T) {
	assert.Equal(t, 0, Get().Count(""))
}

func TestCount_NonEmptyIsPositive(t *testing.T) {
	est := Get()

	assert.Greater(t, est.Count("hello"), 0)
	assert.Greater(t, est.Count("The quick brown fox jumps over the lazy dog."), 0)
}

func TestCount_MonotonicInLength(t *testing.T) {
	est := Get()

	short := est.Count("one sentence.")
	long := est.Count("one sentence. and then a considerably longer continuation with many more words in it.")
	assert.Greater(t, long, short)
}

func TestGet_ReturnsSharedInstance(t *testing.T) {
	assert.Same(t, Get(), Get())
}
