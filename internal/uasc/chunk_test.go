package uasc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReassemblerSingleFinalChunk(t *testing.T) {
	r := NewReassembler(0, 0)
	out, err := r.Feed(1, 100, ChunkFinal, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), out)
}

func TestReassemblerMultiChunkConcatenatesInOrder(t *testing.T) {
	r := NewReassembler(0, 0)
	out, err := r.Feed(1, 100, ChunkContinuation, []byte("hel"))
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = r.Feed(1, 100, ChunkContinuation, []byte("lo "))
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = r.Feed(1, 100, ChunkFinal, []byte("world"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), out)
}

// Receipt of an A (abort) chunk discards the partial assembly.
func TestReassemblerAbortDiscardsPartial(t *testing.T) {
	r := NewReassembler(0, 0)
	_, err := r.Feed(1, 100, ChunkContinuation, []byte("partial"))
	require.NoError(t, err)

	out, err := r.Feed(1, 100, ChunkAbort, nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	// A fresh Final for the same key starts clean rather than resuming
	// the aborted partial.
	out, err = r.Feed(1, 100, ChunkFinal, []byte("fresh"))
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), out)
}

// Chunk count and total assembled size are capped; exceeding
// either fails the channel with BadTcpMessageTooLarge."
func TestReassemblerExceedingMaxChunkCountFails(t *testing.T) {
	r := NewReassembler(2, 0)
	_, err := r.Feed(1, 1, ChunkContinuation, []byte("a"))
	require.NoError(t, err)
	_, err = r.Feed(1, 1, ChunkContinuation, []byte("b"))
	require.NoError(t, err)
	_, err = r.Feed(1, 1, ChunkFinal, []byte("c"))
	require.Error(t, err)
}

func TestReassemblerExceedingMaxMessageSizeFails(t *testing.T) {
	r := NewReassembler(0, 4)
	_, err := r.Feed(1, 1, ChunkFinal, []byte("too long"))
	require.Error(t, err)
}

// Different request ids on the same channel reassemble independently.
func TestReassemblerKeysByChannelAndRequestId(t *testing.T) {
	r := NewReassembler(0, 0)
	_, err := r.Feed(1, 1, ChunkContinuation, []byte("first-"))
	require.NoError(t, err)
	_, err = r.Feed(1, 2, ChunkContinuation, []byte("second-"))
	require.NoError(t, err)

	out1, err := r.Feed(1, 1, ChunkFinal, []byte("req1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("first-req1"), out1)

	out2, err := r.Feed(1, 2, ChunkFinal, []byte("req2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("second-req2"), out2)
}

func TestDiscardChannelDropsOnlyThatChannel(t *testing.T) {
	r := NewReassembler(0, 0)
	_, _ = r.Feed(1, 1, ChunkContinuation, []byte("a"))
	_, _ = r.Feed(2, 1, ChunkContinuation, []byte("b"))

	r.DiscardChannel(1)

	out, err := r.Feed(1, 1, ChunkFinal, []byte("c"))
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), out)

	out, err = r.Feed(2, 1, ChunkFinal, []byte("d"))
	require.NoError(t, err)
	assert.Equal(t, []byte("bd"), out)
}
