package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUUID(t *testing.T) {
	a, b := GenerateUUID(), GenerateUUID()
	assert.True(t, IsUUID(a))
	assert.NotEqual(t, a, b)
	assert.False(t, IsUUID("not-a-uuid"))
}
