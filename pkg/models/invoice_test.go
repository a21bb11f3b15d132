package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTempID(t *testing.T) {
	id := TempID()
	assert.True(t, IsTempID(id))
	assert.Regexp(t, `^tmp-\d+$`, id)

	assert.False(t, IsTempID("3f2a9c71-0d4e"))
	assert.False(t, IsTempID(""))
}
