// Package server wires the engines the other internal packages provide
// into one running OPC UA TCP server: it owns the long-lived
// address space, session table, subscription manager and dispatcher, and
// drives the per-connection Hello/OpenSecureChannel/service loop. The
// TCP accept loop itself is kept deliberately thin: it only turns a
// net.Listener into per-connection calls against internal/uasc.Conn.
package server

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ironspan/opcuad/internal/addressspace"
	"github.com/ironspan/opcuad/internal/config"
	"github.com/ironspan/opcuad/internal/dispatch"
	"github.com/ironspan/opcuad/internal/metrics"
	"github.com/ironspan/opcuad/internal/resilience"
	"github.com/ironspan/opcuad/internal/secpolicy"
	"github.com/ironspan/opcuad/internal/session"
	"github.com/ironspan/opcuad/internal/subscription"
	"github.com/ironspan/opcuad/internal/telemetry"
	"github.com/ironspan/opcuad/internal/ua"
	"github.com/ironspan/opcuad/internal/uasc"
)

// reaperInterval is how often the session manager's reaper scans for
// timed-out sessions.
const reaperInterval = 10 * time.Second

// Server owns every long-lived engine and hands out a fresh per-connection
// pipeline for each accepted socket. One Server instance is the whole
// running application.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	identity uasc.ServerIdentity

	as         *addressspace.AddressSpace
	sessions   *session.Manager
	subs       *subscription.Manager
	breakers   *resilience.Registry
	metrics    *metrics.ServerMetrics
	tracer     *telemetry.Tracer
	dispatcher *dispatch.Dispatcher

	reaperStop chan struct{}
	wg         sync.WaitGroup
}

// New builds every engine from cfg and wires them into a Dispatcher:
// one function building every subsystem up front rather than lazy init.
func New(cfg *config.Config, identity uasc.ServerIdentity, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	as := addressspace.New(logger)
	sessions := session.NewManager(cfg, logger)
	subs := subscription.NewManager(cfg, logger)
	breakers := resilience.NewRegistry(resilience.Config{
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		MinRequests: 5,
		FailureRate: 0.5,
	}, logger)
	m := metrics.NewServerMetrics()
	breakers.SetCounters(m.CircuitBreakerTrips, m.CircuitBreakerResets)
	tracer := telemetry.New(nil)

	endpoints, err := buildEndpoints(cfg, identity.Certificate)
	if err != nil {
		return nil, fmt.Errorf("server: building endpoints: %w", err)
	}
	appDesc := ua.ApplicationDescription{
		ApplicationURI:  cfg.ApplicationURI,
		ProductURI:      cfg.ProductURI,
		ApplicationName: ua.NewLocalizedText("en", cfg.ApplicationName),
		ApplicationType: ua.ApplicationServer,
		DiscoveryURLs:   []string{fmt.Sprintf("opc.tcp://%s:%d", cfg.TCPHost, cfg.TCPPort)},
	}

	d := dispatch.NewDispatcher(cfg, as, sessions, subs, breakers, m, tracer, logger, endpoints, appDesc, identity.Certificate)

	return &Server{
		cfg:        cfg,
		logger:     logger,
		identity:   identity,
		as:         as,
		sessions:   sessions,
		subs:       subs,
		breakers:   breakers,
		metrics:    m,
		tracer:     tracer,
		dispatcher: d,
		reaperStop: make(chan struct{}),
	}, nil
}

// AddressSpace exposes the server's node graph so callers (tests, or a
// process-level bootstrap script) can populate user-defined Variables/
// Objects/Methods before Serve starts accepting connections.
func (s *Server) AddressSpace() *addressspace.AddressSpace { return s.as }

// RegisterMethod binds a Call-service callback, see dispatch.MethodCallback.
func (s *Server) RegisterMethod(objectId, methodId ua.NodeId, fn dispatch.MethodCallback) {
	s.dispatcher.RegisterMethod(objectId, methodId, fn)
}

// Metrics exposes the Prometheus collector set for the caller to register
// against its own registry (or the default one via m.Register(nil)).
func (s *Server) Metrics() *metrics.ServerMetrics { return s.metrics }

// buildEndpoints turns cfg.Endpoints into the wire EndpointDescription
// list GetEndpoints and CreateSession hand back, resolving each
// entry's SecurityPolicyURI against internal/secpolicy to reject a
// misconfigured policy at startup rather than per-connection.
func buildEndpoints(cfg *config.Config, serverCert []byte) ([]ua.EndpointDescription, error) {
	url := fmt.Sprintf("opc.tcp://%s:%d", cfg.TCPHost, cfg.TCPPort)
	userPolicies := userTokenPolicies(cfg)

	var out []ua.EndpointDescription
	for _, ep := range cfg.Endpoints {
		if _, ok := secpolicy.Lookup(secpolicy.URI(ep.SecurityPolicyURI)); !ok {
			return nil, fmt.Errorf("server: endpoint security policy %q is not a supported suite", ep.SecurityPolicyURI)
		}
		mode, err := securityModeOf(ep.SecurityMode)
		if err != nil {
			return nil, err
		}
		out = append(out, ua.EndpointDescription{
			EndpointURL:         url,
			ServerCertificate:   serverCert,
			SecurityMode:        mode,
			SecurityPolicyURI:   ep.SecurityPolicyURI,
			UserIdentityTokens:  userPolicies,
			TransportProfileURI: ep.TransportProfileURI,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("server: config declares no endpoints")
	}
	return out, nil
}

func securityModeOf(m config.SecurityMode) (ua.MessageSecurityMode, error) {
	switch m {
	case config.ModeNone:
		return ua.SecurityModeNone, nil
	case config.ModeSign:
		return ua.SecurityModeSign, nil
	case config.ModeSignAndEncrypt:
		return ua.SecurityModeSignAndEncrypt, nil
	default:
		return ua.SecurityModeInvalid, fmt.Errorf("server: unknown security mode %q", m)
	}
}

func userTokenPolicies(cfg *config.Config) []ua.UserTokenPolicy {
	var out []ua.UserTokenPolicy
	for _, t := range cfg.UserTokens {
		switch t.Policy {
		case config.TokenAnonymous:
			out = append(out, ua.UserTokenPolicy{PolicyId: t.ID, TokenType: ua.UserTokenAnonymous})
		case config.TokenUserName:
			out = append(out, ua.UserTokenPolicy{PolicyId: t.ID, TokenType: ua.UserTokenUserName})
		case config.TokenX509:
			out = append(out, ua.UserTokenPolicy{PolicyId: t.ID, TokenType: ua.UserTokenCertificate})
		}
	}
	return out
}

// LoadIdentity reads a PEM certificate and PKCS#1/PKCS#8 private key from
// disk (server_certificate_path,
// server_private_key_path). The PKI trust store itself (trusted/rejected
// directories) is managed out of band; this just loads the
// server's own credential, not peer trust decisions.
func LoadIdentity(certPath, keyPath string) (uasc.ServerIdentity, error) {
	if certPath == "" || keyPath == "" {
		return uasc.ServerIdentity{}, nil
	}
	certDER, err := os.ReadFile(certPath)
	if err != nil {
		return uasc.ServerIdentity{}, fmt.Errorf("server: reading certificate: %w", err)
	}
	keyDER, err := os.ReadFile(keyPath)
	if err != nil {
		return uasc.ServerIdentity{}, fmt.Errorf("server: reading private key: %w", err)
	}
	key, err := parsePrivateKey(keyDER)
	if err != nil {
		return uasc.ServerIdentity{}, fmt.Errorf("server: parsing private key: %w", err)
	}
	return uasc.ServerIdentity{Certificate: certDER, PrivateKey: key}, nil
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return rsaKey, nil
}

// Serve accepts connections from ln until ctx is cancelled or Accept
// fails, handling each on its own goroutine. It also starts the session
// reaper and stops it on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	reaped := s.sessions.RunReaper(reaperInterval, s.reaperStop)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for sess := range reaped {
			s.subs.DeleteSubscriptions(sess.SubscriptionSnapshot(), sess)
		}
	}()

	go func() {
		<-ctx.Done()
		close(s.reaperStop)
		_ = ln.Close()
	}()

	for {
		raw, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return fmt.Errorf("server: accept: %w", err)
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, raw)
		}()
	}
}

// Shutdown waits for in-flight connection handlers and the reaper's
// subscription-cleanup goroutine to finish. It does not stop the reaper
// itself: that happens only when the ctx passed to Serve is cancelled,
// so Shutdown returns only after that cancellation.
func (s *Server) Shutdown() {
	s.wg.Wait()
}

// slot is one outstanding request's eventual encoded response, used to
// preserve request-id emission order on a channel even when handlers
// complete out of order, while still letting independent requests
// (notably a parked Publish) compute concurrently with requests that
// arrived after them.
type slot struct {
	typ       uasc.MessageType
	requestId uint32
	done      chan []byte
}

// handleConn drives one accepted connection end to end: Hello/Acknowledge,
// then a read loop that fans each reassembled message out to its handler
// while a single writer goroutine drains completions in arrival order.
func (s *Server) handleConn(ctx context.Context, raw net.Conn) {
	defer raw.Close()

	logger := s.logger.With(zap.String("remote", raw.RemoteAddr().String()))
	conn := uasc.NewConn(raw, logger, s.identity)

	if err := conn.NegotiateHello(); err != nil {
		logger.Warn("hello negotiation failed", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.ChannelsOpen.Inc()
		defer s.metrics.ChannelsOpen.Dec()
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make(chan *slot, 64)
	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		for sl := range slots {
			body, ok := <-sl.done
			if !ok {
				continue
			}
			if err := conn.WriteMessage(sl.typ, sl.requestId, body); err != nil {
				logger.Warn("write failed, closing connection", zap.Error(err))
				cancel()
			}
		}
	}()
	defer func() {
		close(slots)
		writerWg.Wait()
		s.teardownChannel(conn, logger)
	}()

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			if err != io.EOF {
				logger.Debug("read failed, closing connection", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case uasc.MsgOpenChannel:
			s.handleOpenChannel(conn, msg, slots, logger)
		case uasc.MsgCloseChannel:
			s.handleCloseChannel(conn, msg, slots, logger)
			return
		case uasc.MsgSecureMessage:
			s.dispatchAsync(connCtx, conn, msg, slots)
		default:
			logger.Warn("unexpected message type on open connection", zap.String("type", string(msg.Type[:])))
			return
		}
	}
}

// teardownChannel implements the session half of CloseSecureChannel and
// of channel-failure handling: destroying a channel, for whatever
// reason, terminates every session bound to it.
func (s *Server) teardownChannel(conn *uasc.Conn, logger *zap.Logger) {
	channelId := conn.Channel().ChannelId
	if channelId == 0 {
		return
	}
	for _, sess := range s.sessions.CloseSessionsForChannel(channelId) {
		results := s.subs.DeleteSubscriptions(sess.SubscriptionSnapshot(), sess)
		for _, r := range results {
			if r != ua.Good {
				logger.Warn("subscription cleanup on channel teardown failed", zap.String("result", r.String()))
			}
		}
	}
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(s.sessions.Count()))
		s.metrics.SubscriptionsActive.Set(float64(s.subs.Count()))
	}
}

// dispatchAsync runs one MSG body through the dispatcher on its own
// goroutine, registering a slot so the writer emits it in arrival order
// regardless of how long the handler takes (a parked Publish may
// outlive many later, faster requests).
func (s *Server) dispatchAsync(ctx context.Context, conn *uasc.Conn, msg uasc.InboundMessage, slots chan<- *slot) {
	sl := &slot{typ: uasc.MsgSecureMessage, requestId: msg.RequestId, done: make(chan []byte, 1)}
	slots <- sl
	go func() {
		sl.done <- s.dispatcher.Dispatch(ctx, conn.Channel().ChannelId, msg.Body)
	}()
}

// handleOpenChannel implements OPC UA Part 4's channel-level OpenSecureChannel
// handling: Issue allocates a fresh channel id and token; Renew rotates
// the token on an already-open channel. Both run synchronously on the
// read loop (no worker handoff needed — neither ever blocks).
func (s *Server) handleOpenChannel(conn *uasc.Conn, msg uasc.InboundMessage, slots chan<- *slot, logger *zap.Logger) {
	sl := &slot{typ: uasc.MsgOpenChannel, requestId: msg.RequestId, done: make(chan []byte, 1)}
	slots <- sl

	body, err := ua.StripServiceEnvelope(msg.Body)
	if err != nil {
		sl.done <- ua.EncodeServiceEnvelope(ua.IdServiceFault, encodeFault(ua.RequestHeader{}, ua.BadDecodingError))
		return
	}
	req, err := ua.DecodeOpenSecureChannelRequest(ua.NewDecoder(bytes.NewReader(body)))
	if err != nil {
		sl.done <- ua.EncodeServiceEnvelope(ua.IdServiceFault, encodeFault(ua.RequestHeader{}, ua.BadDecodingError))
		return
	}

	lifetime := time.Duration(req.RequestedLifetimeMillis) * time.Millisecond
	var (
		token   ua.ChannelSecurityToken
		nonce   []byte
		openErr error
	)
	switch req.RequestType {
	case ua.SecurityTokenIssue:
		policy, ok := secpolicy.Lookup(secpolicy.URI(conn.PendingSecurityPolicyURI()))
		if !ok {
			openErr = ua.BadSecurityPolicyRejected.AsError()
			break
		}
		token, nonce, openErr = conn.Channel().Open(req.ClientProtocolVersion, policy, req.SecurityMode, req.ClientNonce, nil, lifetime)
	case ua.SecurityTokenRenew:
		token, nonce, openErr = conn.Channel().Renew(req.ClientNonce, lifetime)
	default:
		openErr = ua.BadSecurityModeRejected.AsError()
	}

	if openErr != nil {
		code := codeOf(openErr)
		logger.Warn("OpenSecureChannel rejected", zap.String("result", code.String()))
		sl.done <- ua.EncodeServiceEnvelope(ua.IdServiceFault, encodeFault(req.RequestHeader, code))
		return
	}

	resp := ua.OpenSecureChannelResponse{
		ResponseHeader:        ua.NewResponseHeader(req.RequestHeader, ua.Good),
		ServerProtocolVersion: req.ClientProtocolVersion,
		SecurityToken:         token,
		ServerNonce:           nonce,
	}
	sl.done <- ua.EncodeServiceEnvelope(ua.IdOpenSecureChannelResponse, encodeResp(resp))
}

// handleCloseChannel implements OPC UA Part 4 CloseSecureChannel: no response
// body beyond an empty ResponseHeader is required, and the caller
// (handleConn) tears down the socket right after.
func (s *Server) handleCloseChannel(conn *uasc.Conn, msg uasc.InboundMessage, slots chan<- *slot, logger *zap.Logger) {
	var req ua.CloseSecureChannelRequest
	if body, err := ua.StripServiceEnvelope(msg.Body); err == nil {
		req, _ = ua.DecodeCloseSecureChannelRequest(ua.NewDecoder(bytes.NewReader(body)))
	}
	conn.Channel().Close()
	resp := ua.CloseSecureChannelResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.Good)}

	sl := &slot{typ: uasc.MsgCloseChannel, requestId: msg.RequestId, done: make(chan []byte, 1)}
	slots <- sl
	sl.done <- ua.EncodeServiceEnvelope(ua.IdCloseSecureChannelResponse, encodeResp(resp))
	logger.Info("secure channel closed by client")
}

func codeOf(err error) ua.StatusCode {
	if se, ok := err.(*ua.ServiceError); ok {
		return se.Code
	}
	return ua.BadUnexpectedError
}

type encodable interface{ Encode(e *ua.Encoder) }

func encodeResp(r encodable) []byte {
	buf := &bytes.Buffer{}
	e := ua.NewEncoder(buf)
	r.Encode(e)
	return buf.Bytes()
}

func encodeFault(req ua.RequestHeader, code ua.StatusCode) []byte {
	return encodeResp(ua.NewServiceFault(req, code))
}
