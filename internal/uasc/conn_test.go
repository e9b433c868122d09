package uasc

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ironspan/opcuad/internal/ua"
)

// readOutboundChunks drains everything c wrote to the peer side of a
// net.Pipe, returning each chunk's type and decrypted body in arrival
// order (the writer uses policy None, so bodies arrive in the clear).
func readOutboundChunks(t *testing.T, peer net.Conn, done <-chan error) []struct {
	Chunk ChunkType
	Body  []byte
} {
	t.Helper()
	var chunks []struct {
		Chunk ChunkType
		Body  []byte
	}
	for {
		fh, err := ReadFrameHeader(peer)
		if err != nil {
			t.Fatalf("reading frame header: %v", err)
		}
		payload := make([]byte, int(fh.MessageSize)-FrameHeaderSize)
		if _, err := io.ReadFull(peer, payload); err != nil {
			t.Fatalf("reading frame payload: %v", err)
		}
		// channel id (4) + symmetric security header (4) + sequence (8).
		require.GreaterOrEqual(t, len(payload), 16)
		chunks = append(chunks, struct {
			Chunk ChunkType
			Body  []byte
		}{fh.Chunk, payload[16:]})
		if fh.Chunk == ChunkFinal {
			break
		}
	}
	require.NoError(t, <-done)
	return chunks
}

func TestWriteMessageSingleChunk(t *testing.T) {
	us, them := net.Pipe()
	defer us.Close()
	defer them.Close()
	c := NewConn(us, zap.NewNop(), ServerIdentity{})

	body := []byte("small response")
	done := make(chan error, 1)
	go func() { done <- c.WriteMessage(MsgSecureMessage, 42, body) }()

	chunks := readOutboundChunks(t, them, done)
	require.Len(t, chunks, 1)
	assert.Equal(t, ChunkFinal, chunks[0].Chunk)
	assert.Equal(t, body, chunks[0].Body)
}

func TestWriteMessageSplitsLargeBodies(t *testing.T) {
	us, them := net.Pipe()
	defer us.Close()
	defer them.Close()
	c := NewConn(us, zap.NewNop(), ServerIdentity{})
	c.limits.SendBufferSize = 256

	body := bytes.Repeat([]byte{0xAB}, 1000)
	done := make(chan error, 1)
	go func() { done <- c.WriteMessage(MsgSecureMessage, 42, body) }()

	chunks := readOutboundChunks(t, them, done)
	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks[:len(chunks)-1] {
		assert.Equal(t, ChunkContinuation, ch.Chunk, "chunk %d", i)
	}
	assert.Equal(t, ChunkFinal, chunks[len(chunks)-1].Chunk)

	var reassembled []byte
	for _, ch := range chunks {
		reassembled = append(reassembled, ch.Body...)
	}
	assert.Equal(t, body, reassembled)
}

func TestWriteMessageSequenceNumbersIncrease(t *testing.T) {
	us, them := net.Pipe()
	defer us.Close()
	defer them.Close()
	c := NewConn(us, zap.NewNop(), ServerIdentity{})
	c.limits.SendBufferSize = 256

	body := bytes.Repeat([]byte{0x01}, 600)
	done := make(chan error, 1)
	go func() { done <- c.WriteMessage(MsgSecureMessage, 9, body) }()

	var seqs []uint32
	for {
		fh, err := ReadFrameHeader(them)
		require.NoError(t, err)
		payload := make([]byte, int(fh.MessageSize)-FrameHeaderSize)
		_, err = io.ReadFull(them, payload)
		require.NoError(t, err)
		seqs = append(seqs, binary.LittleEndian.Uint32(payload[8:12]))
		assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(payload[12:16]))
		if fh.Chunk == ChunkFinal {
			break
		}
	}
	require.NoError(t, <-done)
	require.Greater(t, len(seqs), 1)
	for i := 1; i < len(seqs); i++ {
		assert.Equal(t, seqs[i-1]+1, seqs[i])
	}
}

func TestWriteMessageRejectsBodiesExceedingChunkBudget(t *testing.T) {
	us, them := net.Pipe()
	defer us.Close()
	defer them.Close()
	c := NewConn(us, zap.NewNop(), ServerIdentity{})
	c.limits.SendBufferSize = 256
	c.limits.MaxChunkCount = 2

	body := bytes.Repeat([]byte{0x02}, 10_000)
	err := c.WriteMessage(MsgSecureMessage, 1, body)
	require.Error(t, err)
	svcErr, ok := err.(*ua.ServiceError)
	require.True(t, ok)
	assert.Equal(t, ua.BadResponseTooLarge, svcErr.Code)
}
