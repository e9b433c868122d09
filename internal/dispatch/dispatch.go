// Package dispatch implements the Service Dispatcher (OPC UA Part 4):
// it peels the wire-format service envelope off an inbound MSG body,
// decodes the matching request, routes it to the service area that owns
// it, and re-wraps the response (or a ServiceFault) in its own envelope,
// so every inbound request produces exactly one outbound message.
package dispatch

import (
	"bytes"
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ironspan/opcuad/internal/addressspace"
	"github.com/ironspan/opcuad/internal/config"
	"github.com/ironspan/opcuad/internal/metrics"
	"github.com/ironspan/opcuad/internal/resilience"
	"github.com/ironspan/opcuad/internal/session"
	"github.com/ironspan/opcuad/internal/subscription"
	"github.com/ironspan/opcuad/internal/telemetry"
	"github.com/ironspan/opcuad/internal/ua"
)

// encodable is satisfied by every generated Response/ServiceFault type's
// exported Encode method (internal/ua/*_messages.go, internal/ua/header.go).
type encodable interface {
	Encode(e *ua.Encoder)
}

// methodKey identifies one registered Method callback by its owning
// Object and Method NodeIds (the pair a CallMethodRequest names).
type methodKey struct {
	object string
	method string
}

// Dispatcher owns every engine a service handler can call into. One
// Dispatcher is shared by every connection the server accepts; all of
// its dependencies are already safe for concurrent use.
type Dispatcher struct {
	cfg      *config.Config
	as       *addressspace.AddressSpace
	sessions *session.Manager
	subs     *subscription.Manager
	breakers *resilience.Registry
	metrics  *metrics.ServerMetrics
	tracer   *telemetry.Tracer
	logger   *zap.Logger

	endpoints         []ua.EndpointDescription
	appDesc           ua.ApplicationDescription
	serverCertificate []byte

	methodsMu sync.RWMutex
	methods   map[methodKey]MethodCallback
}

// NewDispatcher wires a Dispatcher against the engines internal/server
// constructs at startup. endpoints/appDesc are precomputed once from cfg
// and the loaded server certificate, since building them needs PKI
// material the dispatcher itself has no business touching.
func NewDispatcher(
	cfg *config.Config,
	as *addressspace.AddressSpace,
	sessions *session.Manager,
	subs *subscription.Manager,
	breakers *resilience.Registry,
	m *metrics.ServerMetrics,
	tracer *telemetry.Tracer,
	logger *zap.Logger,
	endpoints []ua.EndpointDescription,
	appDesc ua.ApplicationDescription,
	serverCertificate []byte,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:               cfg,
		as:                as,
		sessions:          sessions,
		subs:              subs,
		breakers:          breakers,
		metrics:           m,
		tracer:            tracer,
		logger:            logger,
		endpoints:         endpoints,
		appDesc:           appDesc,
		serverCertificate: serverCertificate,
		methods:           make(map[methodKey]MethodCallback),
	}
}

func encodeBody(r encodable) []byte {
	buf := &bytes.Buffer{}
	e := ua.NewEncoder(buf)
	r.Encode(e)
	return buf.Bytes()
}

// envelope wraps an already-built response in its type id, the shape
// every MSG body this server sends carries (OPC UA Part 4).
func envelope(typeId ua.ServiceTypeId, r encodable) []byte {
	return ua.EncodeServiceEnvelope(typeId, encodeBody(r))
}

// fault builds a ServiceFault envelope for a failed request, echoing its
// RequestHandle and bumping the per-service fault counter.
func (d *Dispatcher) fault(service string, req ua.RequestHeader, result ua.StatusCode) []byte {
	if d.metrics != nil {
		d.metrics.ServiceFaultsTotal.WithLabelValues(service).Inc()
	}
	d.logger.Warn("service fault", zap.String("service", service), zap.String("result", result.String()))
	return envelope(ua.IdServiceFault, ua.NewServiceFault(req, result))
}

// syncGauges refreshes the session/subscription population gauges after
// any create/close/delete, cheaper than scattering Inc/Dec pairs across
// every success and teardown path.
func (d *Dispatcher) syncGauges() {
	if d.metrics == nil {
		return
	}
	d.metrics.SessionsActive.Set(float64(d.sessions.Count()))
	d.metrics.SubscriptionsActive.Set(float64(d.subs.Count()))
}

// resolveSession looks up the session naming itself via hdr's
// AuthenticationToken and confirms it is still bound to the channel the
// request arrived on, per OPC UA Part 4's "a session is only usable from the
// secure channel it was (re)activated against."
func (d *Dispatcher) resolveSession(hdr ua.RequestHeader, channelId uint32) (*session.Session, ua.StatusCode) {
	s, ok := d.sessions.Lookup(hdr.AuthenticationToken)
	if !ok {
		return nil, ua.BadSessionIdInvalid
	}
	if !s.Activated {
		return nil, ua.BadSessionNotActivated
	}
	if s.ChannelId != channelId {
		return nil, ua.BadSecureChannelIdInvalid
	}
	s.Touch()
	return s, ua.Good
}

// Dispatch decodes one MSG body, routes it, and returns the fully
// enveloped response ready for uasc.Conn.WriteMessage. It never returns
// an error: a request that fails to decode or fails its handler becomes
// a ServiceFault, so every request gets exactly one response.
func (d *Dispatcher) Dispatch(ctx context.Context, channelId uint32, body []byte) []byte {
	typeId, err := ua.PeekServiceTypeId(body)
	if err != nil {
		return d.fault("Unknown", ua.RequestHeader{}, ua.BadDecodingError)
	}
	rest, err := ua.StripServiceEnvelope(body)
	if err != nil {
		return d.fault("Unknown", ua.RequestHeader{}, ua.BadDecodingError)
	}
	dec := ua.NewDecoder(bytes.NewReader(rest))

	switch typeId {
	case ua.IdGetEndpointsRequest:
		return d.handleGetEndpoints(dec)
	case ua.IdFindServersRequest:
		return d.handleFindServers(dec)

	case ua.IdCreateSessionRequest:
		return d.handleCreateSession(dec, channelId)
	case ua.IdActivateSessionRequest:
		return d.handleActivateSession(rest, channelId)
	case ua.IdCloseSessionRequest:
		return d.handleCloseSession(dec)

	case ua.IdBrowseRequest:
		_, span := d.tracer.StartSpan(ctx, "Browse")
		defer span.End()
		return d.handleBrowse(dec, channelId)
	case ua.IdBrowseNextRequest:
		return d.handleBrowseNext(dec, channelId)
	case ua.IdTranslateBrowsePathsToNodeIdsRequest:
		return d.handleTranslateBrowsePaths(dec, channelId)
	case ua.IdRegisterNodesRequest:
		return d.handleRegisterNodes(dec, channelId)
	case ua.IdUnregisterNodesRequest:
		return d.handleUnregisterNodes(dec, channelId)

	case ua.IdReadRequest:
		return d.handleRead(dec, channelId)
	case ua.IdWriteRequest:
		return d.handleWrite(dec, channelId)

	case ua.IdCallRequest:
		return d.handleCall(ctx, dec, channelId)

	case ua.IdCreateSubscriptionRequest:
		return d.handleCreateSubscription(dec, channelId)
	case ua.IdModifySubscriptionRequest:
		return d.handleModifySubscription(dec, channelId)
	case ua.IdSetPublishingModeRequest:
		return d.handleSetPublishingMode(dec, channelId)
	case ua.IdDeleteSubscriptionsRequest:
		return d.handleDeleteSubscriptions(dec, channelId)
	case ua.IdTransferSubscriptionsRequest:
		return d.handleTransferSubscriptions(dec, channelId)
	case ua.IdPublishRequest:
		ctx, span := d.tracer.StartSpan(ctx, "Publish")
		defer span.End()
		return d.handlePublish(ctx, dec, channelId)
	case ua.IdRepublishRequest:
		return d.handleRepublish(dec, channelId)

	case ua.IdCreateMonitoredItemsRequest:
		return d.handleCreateMonitoredItems(dec, channelId)
	case ua.IdModifyMonitoredItemsRequest:
		return d.handleModifyMonitoredItems(dec, channelId)
	case ua.IdSetMonitoringModeRequest:
		return d.handleSetMonitoringMode(dec, channelId)
	case ua.IdDeleteMonitoredItemsRequest:
		return d.handleDeleteMonitoredItems(dec, channelId)
	case ua.IdSetTriggeringRequest:
		return d.handleSetTriggering(dec, channelId)

	default:
		return d.fault("Unknown", ua.RequestHeader{}, ua.BadServiceUnsupported)
	}
}
