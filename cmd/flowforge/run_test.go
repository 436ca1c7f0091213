package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowforge/flowforge/engine/core"
)

func TestExitForStatus(t *testing.T) {
	assert.NoError(t, exitForStatus(core.StatusSuccess))

	err := exitForStatus(core.StatusCancel)
	assert.Equal(t, exitCancel, exitCodeOf(err))

	err = exitForStatus(core.StatusFailed)
	assert.Equal(t, exitFailed, exitCodeOf(err))
}

func TestExitCodeOf_DefaultsToGenericError(t *testing.T) {
	assert.Equal(t, exitError, exitCodeOf(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
