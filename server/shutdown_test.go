package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeShutdowner struct {
	err error
}

func (f fakeShutdowner) Shutdown(context.Context) error {
	return f.err
}

func TestShutdownReleasesAfterDrain(t *testing.T) {
	released := false
	err := Shutdown(context.Background(), fakeShutdowner{}, func() { released = true })
	assert.NoError(t, err)
	assert.True(t, released)
}

func TestShutdownKeepsSessionsOnTimeout(t *testing.T) {
	released := false
	err := Shutdown(context.Background(), fakeShutdowner{err: context.DeadlineExceeded}, func() { released = true })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, released)
}

func TestShutdownReleasesOnOtherErrors(t *testing.T) {
	released := false
	err := Shutdown(context.Background(), fakeShutdowner{err: errors.New("listener closed")}, func() { released = true })
	assert.Error(t, err)
	assert.True(t, released)
}
