package uasc

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/ironspan/opcuad/internal/secpolicy"
	"github.com/ironspan/opcuad/internal/ua"
)

// Limits bounds a connection's chunking behaviour (max_message_size,
// max_chunk_count and the negotiated buffer sizes).
type Limits struct {
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

// DefaultLimits is a conservative default (the
// config package's Default() picks the same MaxMessageSize/MaxChunkCount).
var DefaultLimits = Limits{
	ReceiveBufferSize: 64 * 1024,
	SendBufferSize:    64 * 1024,
	MaxMessageSize:    4 * 1024 * 1024,
	MaxChunkCount:     512,
}

// ServerIdentity is the server's certificate and private key, used to
// sign/decrypt asymmetric (OPN) chunk bodies (OPC UA Part 6). A zero-value
// ServerIdentity is valid for endpoints whose only SecurityPolicy is None.
type ServerIdentity struct {
	Certificate []byte
	PrivateKey  *rsa.PrivateKey
}

// Conn wraps one accepted TCP connection with OPC UA TCP framing: Hello/
// Acknowledge negotiation, chunk reassembly, and per-channel sign/encrypt
// (OPC UA Part 6). It does not itself accept connections — the TCP
// accept loop lives in internal/server.
type Conn struct {
	raw      net.Conn
	logger   *zap.Logger
	limits   Limits
	channel  *SecureChannel
	reasm    *Reassembler
	identity ServerIdentity

	remotePublicKey  *rsa.PublicKey
	pendingPolicyURI string
	outSequence      uint32
}

// PendingSecurityPolicyURI returns the SecurityPolicyURI carried on the
// most recently read OPN chunk's asymmetric security header, the policy
// internal/server resolves and hands to SecureChannel.Open/Renew.
func (c *Conn) PendingSecurityPolicyURI() string { return c.pendingPolicyURI }

func NewConn(raw net.Conn, logger *zap.Logger, identity ServerIdentity) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	ch := NewSecureChannel(logger)
	return &Conn{
		raw:      raw,
		logger:   logger,
		limits:   DefaultLimits,
		channel:  ch,
		reasm:    NewReassembler(int(DefaultLimits.MaxChunkCount), int(DefaultLimits.MaxMessageSize)),
		identity: identity,
	}
}

func (c *Conn) Channel() *SecureChannel { return c.channel }

// NegotiateHello performs the Hello/Acknowledge exchange that must
// precede any secure channel traffic (OPC UA Part 6). A server may reject
// with ERR; this implementation always accepts, revising limits down to
// its own configured maximums the way a real server clamps an
// over-ambitious client offer.
func (c *Conn) NegotiateHello() error {
	fh, err := ReadFrameHeader(c.raw)
	if err != nil {
		return fmt.Errorf("uasc: reading HEL frame: %w", err)
	}
	if fh.Type != MsgHello {
		c.sendError(ua.BadTcpMessageTypeInvalid, "expected HEL")
		return fmt.Errorf("uasc: expected HEL, got %s", fh.Type)
	}
	body := make([]byte, int(fh.MessageSize)-FrameHeaderSize)
	if _, err := io.ReadFull(c.raw, body); err != nil {
		return fmt.Errorf("uasc: reading HEL body: %w", err)
	}
	hello, err := DecodeHello(body)
	if err != nil {
		c.sendError(ua.BadDecodingError, "malformed HEL")
		return err
	}

	c.channel.HandleHello(hello.ProtocolVersion)

	ack := AcknowledgeMessage{
		ProtocolVersion:   hello.ProtocolVersion,
		ReceiveBufferSize: c.limits.ReceiveBufferSize,
		SendBufferSize:    c.limits.SendBufferSize,
		MaxMessageSize:    c.limits.MaxMessageSize,
		MaxChunkCount:     c.limits.MaxChunkCount,
	}
	return WriteSimpleMessage(c.raw, MsgAcknowledge, ack.Encode())
}

func (c *Conn) sendError(code ua.StatusCode, reason string) {
	msg := ErrorMessage{Error: code, Reason: reason}
	_ = WriteSimpleMessage(c.raw, MsgError, msg.Encode())
}

// InboundMessage is one fully reassembled, decrypted service message
// ready for C1 decoding and C5 dispatch. MSG/CLO chunks have their HMAC
// signature checked before decryption; OPN chunks are decrypted only,
// and no asymmetric signature on them is checked.
type InboundMessage struct {
	Type      MessageType
	ChannelId uint32
	RequestId uint32
	Body      []byte
}

// ReadMessage reads chunks until a full message is reassembled,
// unwrapping the asymmetric or symmetric security envelope as
// appropriate (OPC UA Part 6). Returns io.EOF when the peer closes cleanly.
func (c *Conn) ReadMessage() (InboundMessage, error) {
	for {
		fh, err := ReadFrameHeader(c.raw)
		if err != nil {
			return InboundMessage{}, err
		}
		if fh.MessageSize < FrameHeaderSize {
			return InboundMessage{}, ua.BadTcpMessageTypeInvalid.AsError()
		}
		payload := make([]byte, int(fh.MessageSize)-FrameHeaderSize)
		if _, err := io.ReadFull(c.raw, payload); err != nil {
			return InboundMessage{}, err
		}

		switch fh.Type {
		case MsgOpenChannel:
			body, channelId, requestId, err := c.unwrapAsymmetric(payload)
			if err != nil {
				return InboundMessage{}, err
			}
			reassembled, err := c.reasm.Feed(channelId, requestId, fh.Chunk, body)
			if err != nil {
				return InboundMessage{}, err
			}
			if reassembled == nil {
				continue
			}
			return InboundMessage{Type: fh.Type, ChannelId: channelId, RequestId: requestId, Body: reassembled}, nil

		case MsgSecureMessage, MsgCloseChannel:
			body, channelId, requestId, err := c.unwrapSymmetric(payload)
			if err != nil {
				return InboundMessage{}, err
			}
			reassembled, err := c.reasm.Feed(channelId, requestId, fh.Chunk, body)
			if err != nil {
				return InboundMessage{}, err
			}
			if reassembled == nil {
				continue
			}
			return InboundMessage{Type: fh.Type, ChannelId: channelId, RequestId: requestId, Body: reassembled}, nil

		default:
			return InboundMessage{}, ua.BadTcpMessageTypeInvalid.AsError()
		}
	}
}

func (c *Conn) unwrapAsymmetric(payload []byte) (body []byte, channelId, requestId uint32, err error) {
	d := ua.NewDecoder(byteReaderOf(payload))
	cid, err := d.ReadUint32()
	if err != nil {
		return nil, 0, 0, err
	}
	hdr, err := decodeAsymmetricSecurityHeader(d)
	if err != nil {
		return nil, 0, 0, err
	}
	policy, ok := secpolicy.Lookup(secpolicy.URI(hdr.SecurityPolicyURI))
	if !ok {
		return nil, 0, 0, ua.BadSecurityPolicyRejected.AsError()
	}
	c.pendingPolicyURI = hdr.SecurityPolicyURI
	if len(hdr.SenderCertificate) > 0 {
		if cert, perr := x509.ParseCertificate(hdr.SenderCertificate); perr == nil {
			if pub, ok := cert.PublicKey.(*rsa.PublicKey); ok {
				c.remotePublicKey = pub
			}
		}
	}

	rest := payload[d.Len():]
	seqBytes := rest
	if len(seqBytes) < 8 {
		return nil, 0, 0, fmt.Errorf("uasc: OPN chunk too short")
	}
	seq, err := decodeSequenceHeader(seqBytes[:8])
	if err != nil {
		return nil, 0, 0, err
	}
	cipherBody := seqBytes[8:]

	var plain []byte
	if policy.IsNone() || c.identity.PrivateKey == nil {
		plain = cipherBody
	} else {
		plain, err = secpolicy.DecryptAsymmetric(policy, c.identity.PrivateKey, cipherBody)
		if err != nil {
			return nil, 0, 0, ua.BadSecurityChecksFailed.AsError()
		}
	}
	return plain, cid, seq.RequestId, nil
}

func (c *Conn) unwrapSymmetric(payload []byte) (body []byte, channelId, requestId uint32, err error) {
	if len(payload) < 4+4+8 {
		return nil, 0, 0, fmt.Errorf("uasc: MSG/CLO chunk too short")
	}
	d := ua.NewDecoder(byteReaderOf(payload))
	cid, err := d.ReadUint32()
	if err != nil {
		return nil, 0, 0, err
	}
	symHdr, err := decodeSymmetricSecurityHeader(payload[4:8])
	if err != nil {
		return nil, 0, 0, err
	}
	rest := payload[8:]

	keys, ok := c.channel.KeysForToken(symHdr.TokenId)
	body = rest
	if ok && !c.channel.Policy.IsNone() {
		sigLen := c.channel.Policy.DerivationHash().Size()
		if len(rest) < sigLen {
			return nil, 0, 0, ua.BadSecurityChecksFailed.AsError()
		}
		signed, sig := rest[:len(rest)-sigLen], rest[len(rest)-sigLen:]
		if !secpolicy.Verify(c.channel.Policy, keys.Client.SigningKey, signed, sig) {
			return nil, 0, 0, ua.BadSecurityChecksFailed.AsError()
		}
		decrypted, derr := secpolicy.Decrypt(c.channel.Policy, keys.Client.EncryptingKey, keys.Client.IV, signed)
		if derr != nil {
			return nil, 0, 0, ua.BadSecurityChecksFailed.AsError()
		}
		body = decrypted
	}
	if len(body) < 8 {
		return nil, 0, 0, fmt.Errorf("uasc: chunk body shorter than sequence header")
	}
	seq, err := decodeSequenceHeader(body[:8])
	if err != nil {
		return nil, 0, 0, err
	}
	return body[8:], cid, seq.RequestId, nil
}

// symmetricChunkOverhead reserves room in each outbound chunk for the
// frame header, channel id, symmetric security header, sequence header,
// and the worst-case CBC padding plus signature the policy may append.
const symmetricChunkOverhead = FrameHeaderSize + 4 + 4 + 8 + 64

// maxChunkBody is how much service-message payload fits in one MSG/CLO
// chunk under the negotiated send buffer size.
func (c *Conn) maxChunkBody() int {
	limit := int(c.limits.SendBufferSize) - symmetricChunkOverhead
	if limit < 1 {
		limit = 1
	}
	return limit
}

// WriteMessage encodes one complete (type, requestId, body), splitting
// MSG/CLO payloads larger than the negotiated send buffer into
// Continuation chunks capped at MaxChunkCount. OPN responses are always
// small enough for a single chunk and fail closed with
// BadResponseTooLarge rather than silently exceeding the limit, since
// asymmetric block encryption would make multi-chunk OPN sizing depend on
// the peer's key size.
func (c *Conn) WriteMessage(typ MessageType, requestId uint32, body []byte) error {
	if typ == MsgOpenChannel {
		seq := SequenceHeader{SequenceNumber: c.nextSequenceNumber(), RequestId: requestId}
		framed := c.wrapAsymmetric(append(seq.encode(), body...))
		if uint32(FrameHeaderSize+len(framed)) > c.limits.MaxMessageSize {
			return ua.BadResponseTooLarge.AsError()
		}
		return c.writeChunk(typ, ChunkFinal, framed)
	}

	limit := c.maxChunkBody()
	chunks := (len(body) + limit - 1) / limit
	if chunks == 0 {
		chunks = 1
	}
	if c.limits.MaxChunkCount > 0 && uint32(chunks) > c.limits.MaxChunkCount {
		return ua.BadResponseTooLarge.AsError()
	}

	for i := 0; i < chunks; i++ {
		part := body[i*limit : min((i+1)*limit, len(body))]
		seq := SequenceHeader{SequenceNumber: c.nextSequenceNumber(), RequestId: requestId}
		framed := c.wrapSymmetric(append(seq.encode(), part...))
		chunkType := ChunkContinuation
		if i == chunks-1 {
			chunkType = ChunkFinal
		}
		if err := c.writeChunk(typ, chunkType, framed); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) writeChunk(typ MessageType, chunkType ChunkType, framed []byte) error {
	h := FrameHeader{Type: typ, Chunk: chunkType, MessageSize: uint32(FrameHeaderSize + len(framed))}
	if err := WriteFrameHeader(c.raw, h); err != nil {
		return err
	}
	_, err := c.raw.Write(framed)
	return err
}

// nextSequenceNumber is the channel-wide monotonic outbound chunk
// counter every SequenceHeader carries.
func (c *Conn) nextSequenceNumber() uint32 {
	c.outSequence++
	return c.outSequence
}

func (c *Conn) wrapAsymmetric(inner []byte) []byte {
	hdr := AsymmetricSecurityHeader{
		SecurityPolicyURI: string(c.channel.Policy.URI),
		SenderCertificate: c.identity.Certificate,
	}
	out := &growBuffer{}
	e := ua.NewEncoder(out)
	e.WriteUint32(c.channel.ChannelId)
	out.data = append(out.data, hdr.encode()...)

	body := inner
	if !c.channel.Policy.IsNone() && c.remotePublicKey != nil {
		if enc, err := secpolicy.EncryptAsymmetric(c.channel.Policy, c.remotePublicKey, inner); err == nil {
			body = enc
		}
	}
	out.data = append(out.data, body...)
	return out.data
}

func (c *Conn) wrapSymmetric(inner []byte) []byte {
	tok, keys, ok := c.channel.CurrentToken()
	out := &growBuffer{}
	e := ua.NewEncoder(out)
	e.WriteUint32(c.channel.ChannelId)
	symHdr := SymmetricSecurityHeader{TokenId: tok.TokenId}
	out.data = append(out.data, symHdr.encode()...)

	body := inner
	if ok && !c.channel.Policy.IsNone() {
		if enc, err := secpolicy.Encrypt(c.channel.Policy, keys.Server.EncryptingKey, keys.Server.IV, inner); err == nil {
			body = enc
			if sig := secpolicy.Sign(c.channel.Policy, keys.Server.SigningKey, body); sig != nil {
				body = append(body, sig...)
			}
		}
	}
	out.data = append(out.data, body...)
	return out.data
}

// Close tears down the underlying socket. Session/channel cleanup is the
// caller's responsibility (OPC UA Part 6 CloseSecureChannel).
func (c *Conn) Close() error {
	c.reasm.DiscardChannel(c.channel.ChannelId)
	return c.raw.Close()
}
