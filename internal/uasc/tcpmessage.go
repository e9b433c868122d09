// Package uasc implements the OPC UA TCP transport and Secure Channel
// layer (OPC UA Part 6): the 8-byte frame
// header, Hello/Acknowledge negotiation, chunk reassembly, and the
// channel state machine that issues and renews security tokens.
package uasc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ironspan/opcuad/internal/ua"
)

// MessageType is the 3-byte ASCII tag at the start of every TCP frame
// (OPC UA Part 6).
type MessageType [3]byte

var (
	MsgHello         = MessageType{'H', 'E', 'L'}
	MsgAcknowledge   = MessageType{'A', 'C', 'K'}
	MsgError         = MessageType{'E', 'R', 'R'}
	MsgSecureMessage = MessageType{'M', 'S', 'G'}
	MsgOpenChannel   = MessageType{'O', 'P', 'N'}
	MsgCloseChannel  = MessageType{'C', 'L', 'O'}
)

// ChunkType is the 1-byte chunk indicator following MessageType
// (OPC UA Part 6).
type ChunkType byte

const (
	ChunkFinal        ChunkType = 'F'
	ChunkContinuation ChunkType = 'C'
	ChunkAbort        ChunkType = 'A'
)

// FrameHeaderSize is the fixed 8-byte prefix of every OPC UA TCP message
// (OPC UA Part 6). 3-byte type, 1-byte chunk indicator, 4-byte total size.
const FrameHeaderSize = 8

// FrameHeader is the common prefix every chunk carries.
type FrameHeader struct {
	Type        MessageType
	Chunk       ChunkType
	MessageSize uint32
}

func ReadFrameHeader(r io.Reader) (FrameHeader, error) {
	var buf [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return FrameHeader{}, err
	}
	h := FrameHeader{
		Type:        MessageType{buf[0], buf[1], buf[2]},
		Chunk:       ChunkType(buf[3]),
		MessageSize: binary.LittleEndian.Uint32(buf[4:8]),
	}
	return h, nil
}

func WriteFrameHeader(w io.Writer, h FrameHeader) error {
	var buf [FrameHeaderSize]byte
	buf[0], buf[1], buf[2] = h.Type[0], h.Type[1], h.Type[2]
	buf[3] = byte(h.Chunk)
	binary.LittleEndian.PutUint32(buf[4:8], h.MessageSize)
	_, err := w.Write(buf[:])
	return err
}

// HelloMessage is the client's opening negotiation of buffer sizes and
// protocol version (OPC UA Part 6).
type HelloMessage struct {
	ProtocolVersion   uint32
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
	EndpointURL       string
}

func DecodeHello(body []byte) (HelloMessage, error) {
	d := ua.NewDecoder(byteReaderOf(body))
	var h HelloMessage
	var err error
	if h.ProtocolVersion, err = d.ReadUint32(); err != nil {
		return h, err
	}
	if h.ReceiveBufferSize, err = d.ReadUint32(); err != nil {
		return h, err
	}
	if h.SendBufferSize, err = d.ReadUint32(); err != nil {
		return h, err
	}
	if h.MaxMessageSize, err = d.ReadUint32(); err != nil {
		return h, err
	}
	if h.MaxChunkCount, err = d.ReadUint32(); err != nil {
		return h, err
	}
	if h.EndpointURL, _, err = d.ReadString(); err != nil {
		return h, err
	}
	return h, nil
}

func (h HelloMessage) Encode() []byte {
	buf := &growBuffer{}
	e := ua.NewEncoder(buf)
	e.WriteUint32(h.ProtocolVersion)
	e.WriteUint32(h.ReceiveBufferSize)
	e.WriteUint32(h.SendBufferSize)
	e.WriteUint32(h.MaxMessageSize)
	e.WriteUint32(h.MaxChunkCount)
	e.WriteString(h.EndpointURL, h.EndpointURL == "")
	return buf.data
}

// AcknowledgeMessage is the server's reply to Hello, confirming the
// negotiated (possibly revised-down) buffer limits (OPC UA Part 6).
type AcknowledgeMessage struct {
	ProtocolVersion   uint32
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

func (a AcknowledgeMessage) Encode() []byte {
	buf := &growBuffer{}
	e := ua.NewEncoder(buf)
	e.WriteUint32(a.ProtocolVersion)
	e.WriteUint32(a.ReceiveBufferSize)
	e.WriteUint32(a.SendBufferSize)
	e.WriteUint32(a.MaxMessageSize)
	e.WriteUint32(a.MaxChunkCount)
	return buf.data
}

func DecodeAcknowledge(body []byte) (AcknowledgeMessage, error) {
	d := ua.NewDecoder(byteReaderOf(body))
	var a AcknowledgeMessage
	var err error
	if a.ProtocolVersion, err = d.ReadUint32(); err != nil {
		return a, err
	}
	if a.ReceiveBufferSize, err = d.ReadUint32(); err != nil {
		return a, err
	}
	if a.SendBufferSize, err = d.ReadUint32(); err != nil {
		return a, err
	}
	if a.MaxMessageSize, err = d.ReadUint32(); err != nil {
		return a, err
	}
	if a.MaxChunkCount, err = d.ReadUint32(); err != nil {
		return a, err
	}
	return a, nil
}

// ErrorMessage is sent in place of ACK when Hello is rejected, or to
// abandon a connection after a channel-fatal failure (OPC UA Part 6).
type ErrorMessage struct {
	Error  ua.StatusCode
	Reason string
}

func (m ErrorMessage) Encode() []byte {
	buf := &growBuffer{}
	e := ua.NewEncoder(buf)
	e.WriteUint32(uint32(m.Error))
	e.WriteString(m.Reason, m.Reason == "")
	return buf.data
}

func DecodeError(body []byte) (ErrorMessage, error) {
	d := ua.NewDecoder(byteReaderOf(body))
	var m ErrorMessage
	code, err := d.ReadUint32()
	if err != nil {
		return m, err
	}
	m.Error = ua.StatusCode(code)
	if m.Reason, _, err = d.ReadString(); err != nil {
		return m, err
	}
	return m, nil
}

// WriteSimpleMessage frames a Hello/Acknowledge/Error body (none of
// which ever chunk) with FrameHeaderSize + body length, type F.
func WriteSimpleMessage(w io.Writer, typ MessageType, body []byte) error {
	h := FrameHeader{Type: typ, Chunk: ChunkFinal, MessageSize: uint32(FrameHeaderSize + len(body))}
	if err := WriteFrameHeader(w, h); err != nil {
		return fmt.Errorf("uasc: writing frame header: %w", err)
	}
	_, err := w.Write(body)
	return err
}

type growBuffer struct{ data []byte }

func (b *growBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

type sliceReader struct {
	data []byte
	pos  int
}

func byteReaderOf(b []byte) io.Reader { return &sliceReader{data: b} }

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
