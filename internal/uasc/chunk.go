package uasc

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ironspan/opcuad/internal/ua"
)

// SequenceHeader carries the per-message request id and a channel-wide
// monotonic sequence number, present on every OPN/MSG/CLO chunk
// (OPC UA Part 6).
type SequenceHeader struct {
	SequenceNumber uint32
	RequestId      uint32
}

func (h SequenceHeader) encode() []byte {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[0:4], h.SequenceNumber)
	binary.LittleEndian.PutUint32(b[4:8], h.RequestId)
	return b[:]
}

func decodeSequenceHeader(b []byte) (SequenceHeader, error) {
	if len(b) < 8 {
		return SequenceHeader{}, fmt.Errorf("uasc: sequence header truncated")
	}
	return SequenceHeader{
		SequenceNumber: binary.LittleEndian.Uint32(b[0:4]),
		RequestId:      binary.LittleEndian.Uint32(b[4:8]),
	}, nil
}

// AsymmetricSecurityHeader precedes an OPN chunk's body (OPC UA Part 6).
type AsymmetricSecurityHeader struct {
	SecurityPolicyURI      string
	SenderCertificate      []byte
	ReceiverCertThumbprint []byte
}

func (h AsymmetricSecurityHeader) encode() []byte {
	buf := &growBuffer{}
	e := ua.NewEncoder(buf)
	e.WriteString(h.SecurityPolicyURI, h.SecurityPolicyURI == "")
	e.WriteByteString(h.SenderCertificate)
	e.WriteByteString(h.ReceiverCertThumbprint)
	return buf.data
}

func decodeAsymmetricSecurityHeader(d *ua.Decoder) (AsymmetricSecurityHeader, error) {
	var h AsymmetricSecurityHeader
	var err error
	if h.SecurityPolicyURI, _, err = d.ReadString(); err != nil {
		return h, err
	}
	if h.SenderCertificate, err = d.ReadByteString(); err != nil {
		return h, err
	}
	if h.ReceiverCertThumbprint, err = d.ReadByteString(); err != nil {
		return h, err
	}
	return h, nil
}

// SymmetricSecurityHeader precedes a MSG/CLO chunk's body: a single
// token id naming which key epoch secured it (OPC UA Part 6).
type SymmetricSecurityHeader struct {
	TokenId uint32
}

func (h SymmetricSecurityHeader) encode() []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], h.TokenId)
	return b[:]
}

func decodeSymmetricSecurityHeader(b []byte) (SymmetricSecurityHeader, error) {
	if len(b) < 4 {
		return SymmetricSecurityHeader{}, fmt.Errorf("uasc: symmetric security header truncated")
	}
	return SymmetricSecurityHeader{TokenId: binary.LittleEndian.Uint32(b[:4])}, nil
}

// reassemblyKey identifies one in-flight multi-chunk message.
type reassemblyKey struct {
	ChannelId uint32
	RequestId uint32
}

// Reassembler accumulates chunk bodies sharing a (channel_id, request_id)
// until a Final chunk arrives, or discards them on Abort (OPC UA Part 6).
// Chunk count and total size are capped; exceeding either is reported as
// ua.BadTcpMessageTooLarge.
type Reassembler struct {
	mu             sync.Mutex
	pending        map[reassemblyKey]*partialMessage
	maxChunkCount  int
	maxMessageSize int
}

type partialMessage struct {
	chunks    [][]byte
	totalSize int
}

func NewReassembler(maxChunkCount, maxMessageSize int) *Reassembler {
	return &Reassembler{
		pending:        make(map[reassemblyKey]*partialMessage),
		maxChunkCount:  maxChunkCount,
		maxMessageSize: maxMessageSize,
	}
}

// Feed adds one chunk's decrypted, verified body. On a Final chunk it
// returns the concatenated message and clears the partial state; on a
// Continuation chunk it returns (nil, nil); on Abort it discards the
// partial assembly and returns (nil, nil).
func (r *Reassembler) Feed(channelId, requestId uint32, chunkType ChunkType, body []byte) ([]byte, error) {
	key := reassemblyKey{channelId, requestId}

	r.mu.Lock()
	defer r.mu.Unlock()

	if chunkType == ChunkAbort {
		delete(r.pending, key)
		return nil, nil
	}

	pm, ok := r.pending[key]
	if !ok {
		pm = &partialMessage{}
		r.pending[key] = pm
	}
	pm.chunks = append(pm.chunks, body)
	pm.totalSize += len(body)

	if r.maxChunkCount > 0 && len(pm.chunks) > r.maxChunkCount {
		delete(r.pending, key)
		return nil, ua.BadTcpMessageTooLarge.AsError()
	}
	if r.maxMessageSize > 0 && pm.totalSize > r.maxMessageSize {
		delete(r.pending, key)
		return nil, ua.BadTcpMessageTooLarge.AsError()
	}

	if chunkType != ChunkFinal {
		return nil, nil
	}

	delete(r.pending, key)
	if len(pm.chunks) == 1 {
		return pm.chunks[0], nil
	}
	full := make([]byte, 0, pm.totalSize)
	for _, c := range pm.chunks {
		full = append(full, c...)
	}
	return full, nil
}

// DiscardChannel drops all partial assemblies for a closed channel.
func (r *Reassembler) DiscardChannel(channelId uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.pending {
		if k.ChannelId == channelId {
			delete(r.pending, k)
		}
	}
}
