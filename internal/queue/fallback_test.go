package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackBufferAppendAndDrain(t *testing.T) {
	t.Parallel()

	b := NewFallbackBuffer()
	now := time.Unix(1700000000, 0)
	b.Append(FallbackItem{Payload: []byte("a"), UpdatedAt: now})
	b.Append(FallbackItem{Payload: []byte("b"), UpdatedAt: now.Add(time.Second)})
	require.Equal(t, 2, b.Len())

	var drained [][]byte
	err := b.Drain(func(item FallbackItem) error {
		drained = append(drained, item.Payload)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, drained)
}

func TestFallbackBufferDrainStopsOnFailureAndPreservesOrder(t *testing.T) {
	t.Parallel()

	b := NewFallbackBuffer()
	b.Append(FallbackItem{Payload: []byte("a")})
	b.Append(FallbackItem{Payload: []byte("b")})
	b.Append(FallbackItem{Payload: []byte("c")})

	boom := errors.New("enqueue failed")
	var attempted [][]byte
	err := b.Drain(func(item FallbackItem) error {
		attempted = append(attempted, item.Payload)
		if string(item.Payload) == "b" {
			return boom
		}
		return nil
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, attempted)

	// b and c remain, with the failed item re-inserted at the front.
	require.Equal(t, 2, b.Len())

	var remaining [][]byte
	err = b.Drain(func(item FallbackItem) error {
		remaining = append(remaining, item.Payload)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("b"), []byte("c")}, remaining)
}

func TestFallbackBufferPushFront(t *testing.T) {
	t.Parallel()

	b := NewFallbackBuffer()
	b.Append(FallbackItem{Payload: []byte("second")})
	b.PushFront(FallbackItem{Payload: []byte("first")})

	var order [][]byte
	_ = b.Drain(func(item FallbackItem) error {
		order = append(order, item.Payload)
		return nil
	})
	assert.Equal(t, [][]byte{[]byte("first"), []byte("second")}, order)
}
