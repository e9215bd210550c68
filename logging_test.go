package easyloop

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogger_SpawnFailureLogged(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(&buf),
			stumpy.WithTimeField(""),
		),
	).Logger())
	defer SetLogger(nil)

	_, err := Run(context.Background(), func() (*Promise, error) {
		h, err := Handle()
		if err != nil {
			return nil, err
		}
		p, _, reject := h.NewPromise()
		if err := h.Spawn(p); err != nil {
			return nil, err
		}
		reject(errors.New("background task exploded"))
		return h.Timeout(10 * time.Millisecond)
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "spawned task failed")
	assert.Contains(t, out, "background task exploded")
	assert.Contains(t, out, `"loop"`)
}

func TestSetLogger_NilIsNoOp(t *testing.T) {
	SetLogger(nil)
	require.Nil(t, getLogger())

	// Paths that log must tolerate the nil logger.
	_, err := Run(context.Background(), func() (*Promise, error) {
		h, err := Handle()
		if err != nil {
			return nil, err
		}
		p, _, reject := h.NewPromise()
		if err := h.Spawn(p); err != nil {
			return nil, err
		}
		reject("unlogged failure")
		return h.Timeout(5 * time.Millisecond)
	})
	require.NoError(t, err)
}

func TestSetLogger_TaskPanicLogged(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(&buf),
			stumpy.WithTimeField(""),
		),
	).Logger())
	defer SetLogger(nil)

	_, err := Run(context.Background(), func() (*Promise, error) {
		h, err := Handle()
		if err != nil {
			return nil, err
		}
		if err := h.Submit(func() {
			panic("task gone wrong")
		}); err != nil {
			return nil, err
		}
		return h.Timeout(10 * time.Millisecond)
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "task panicked")
	assert.Contains(t, buf.String(), "task gone wrong")
}
