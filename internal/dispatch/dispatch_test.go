package dispatch

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ironspan/opcuad/internal/addressspace"
	"github.com/ironspan/opcuad/internal/config"
	"github.com/ironspan/opcuad/internal/resilience"
	"github.com/ironspan/opcuad/internal/session"
	"github.com/ironspan/opcuad/internal/subscription"
	"github.com/ironspan/opcuad/internal/telemetry"
	"github.com/ironspan/opcuad/internal/ua"
)

const testChannelId uint32 = 7

func newTestDispatcher(t *testing.T) (*Dispatcher, *addressspace.AddressSpace) {
	t.Helper()
	cfg := config.Default()
	cfg.MinPublishingIntervalMS = 20
	cfg.MinSamplingIntervalMS = 1
	logger := zap.NewNop()
	as := addressspace.New(logger)
	sessions := session.NewManager(cfg, logger)
	subs := subscription.NewManager(cfg, logger)
	breakers := resilience.NewRegistry(resilience.Config{}, logger)
	tracer := telemetry.New(nil)
	d := NewDispatcher(cfg, as, sessions, subs, breakers, nil, tracer, logger,
		nil, ua.ApplicationDescription{ApplicationURI: cfg.ApplicationURI}, nil)
	return d, as
}

type requestEncoder interface {
	Encode(e *ua.Encoder)
}

func wireRequest(id ua.ServiceTypeId, r requestEncoder) []byte {
	buf := &bytes.Buffer{}
	r.Encode(ua.NewEncoder(buf))
	return ua.EncodeServiceEnvelope(id, buf.Bytes())
}

// respDecoder asserts the response envelope carries want and returns a
// decoder positioned at its ResponseHeader.
func respDecoder(t *testing.T, body []byte, want ua.ServiceTypeId) *ua.Decoder {
	t.Helper()
	got, err := ua.PeekServiceTypeId(body)
	require.NoError(t, err)
	if got == ua.IdServiceFault && want != ua.IdServiceFault {
		rest, err := ua.StripServiceEnvelope(body)
		require.NoError(t, err)
		fault, err := ua.DecodeServiceFault(ua.NewDecoder(bytes.NewReader(rest)))
		require.NoError(t, err)
		t.Fatalf("unexpected ServiceFault: %s", fault.ResponseHeader.ServiceResult)
	}
	require.Equal(t, want, got)
	rest, err := ua.StripServiceEnvelope(body)
	require.NoError(t, err)
	return ua.NewDecoder(bytes.NewReader(rest))
}

func faultResult(t *testing.T, body []byte) ua.StatusCode {
	t.Helper()
	dec := respDecoder(t, body, ua.IdServiceFault)
	fault, err := ua.DecodeServiceFault(dec)
	require.NoError(t, err)
	return fault.ResponseHeader.ServiceResult
}

func header(token ua.NodeId) ua.RequestHeader {
	return ua.RequestHeader{AuthenticationToken: token, Timestamp: ua.Now(), RequestHandle: 42}
}

// openSession drives CreateSession + ActivateSession(anonymous) and
// returns the authentication token every later request carries.
func openSession(t *testing.T, d *Dispatcher) ua.NodeId {
	t.Helper()
	ctx := context.Background()

	create := ua.CreateSessionRequest{
		RequestHeader:           ua.RequestHeader{Timestamp: ua.Now(), RequestHandle: 1},
		SessionName:             "test-session",
		RequestedSessionTimeout: 60_000,
	}
	body := d.Dispatch(ctx, testChannelId, wireRequest(ua.IdCreateSessionRequest, create))
	resp, err := ua.DecodeCreateSessionResponse(respDecoder(t, body, ua.IdCreateSessionResponse))
	require.NoError(t, err)
	require.True(t, resp.ResponseHeader.ServiceResult.IsGood())
	require.False(t, resp.AuthenticationToken.IsNull())

	activate := ua.ActivateSessionRequest{
		RequestHeader:     header(resp.AuthenticationToken),
		UserIdentityToken: ua.UserIdentityToken{PolicyId: "anonymous", Token: ua.UserTokenAnonymous},
	}
	body = d.Dispatch(ctx, testChannelId, wireRequest(ua.IdActivateSessionRequest, activate))
	actResp, err := ua.DecodeActivateSessionResponse(respDecoder(t, body, ua.IdActivateSessionResponse))
	require.NoError(t, err)
	require.True(t, actResp.ResponseHeader.ServiceResult.IsGood())

	return resp.AuthenticationToken
}

func browseNames(results []ua.BrowseResult) []string {
	var names []string
	for _, r := range results {
		for _, ref := range r.References {
			names = append(names, ref.BrowseName.Name)
		}
	}
	return names
}

func TestSessionLifecycleAndBrowseRoot(t *testing.T) {
	d, _ := newTestDispatcher(t)
	token := openSession(t, d)
	ctx := context.Background()

	browse := ua.BrowseRequest{
		RequestHeader: header(token),
		NodesToBrowse: []ua.BrowseDescription{{
			NodeId:          addressspace.RootFolder,
			Direction:       ua.BrowseForward,
			IncludeSubtypes: true,
			ResultMask:      0x3F,
		}},
	}
	body := d.Dispatch(ctx, testChannelId, wireRequest(ua.IdBrowseRequest, browse))
	resp, err := ua.DecodeBrowseResponse(respDecoder(t, body, ua.IdBrowseResponse))
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, ua.Good, resp.Results[0].StatusCode)
	names := browseNames(resp.Results)
	assert.Contains(t, names, "Objects")
	assert.Contains(t, names, "Types")
	assert.Contains(t, names, "Views")

	closeReq := ua.CloseSessionRequest{RequestHeader: header(token), DeleteSubscriptions: true}
	body = d.Dispatch(ctx, testChannelId, wireRequest(ua.IdCloseSessionRequest, closeReq))
	closeResp, err := ua.DecodeCloseSessionResponse(respDecoder(t, body, ua.IdCloseSessionResponse))
	require.NoError(t, err)
	assert.True(t, closeResp.ResponseHeader.ServiceResult.IsGood())

	// The token is dead after CloseSession.
	body = d.Dispatch(ctx, testChannelId, wireRequest(ua.IdBrowseRequest, browse))
	assert.Equal(t, ua.BadSessionIdInvalid, faultResult(t, body))
}

func TestBrowseRequiresActivation(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	create := ua.CreateSessionRequest{RequestHeader: ua.RequestHeader{Timestamp: ua.Now(), RequestHandle: 1}}
	body := d.Dispatch(ctx, testChannelId, wireRequest(ua.IdCreateSessionRequest, create))
	resp, err := ua.DecodeCreateSessionResponse(respDecoder(t, body, ua.IdCreateSessionResponse))
	require.NoError(t, err)

	browse := ua.BrowseRequest{
		RequestHeader: header(resp.AuthenticationToken),
		NodesToBrowse: []ua.BrowseDescription{{NodeId: addressspace.RootFolder, Direction: ua.BrowseForward}},
	}
	body = d.Dispatch(ctx, testChannelId, wireRequest(ua.IdBrowseRequest, browse))
	assert.Equal(t, ua.BadSessionNotActivated, faultResult(t, body))
}

func TestSessionIsBoundToItsChannel(t *testing.T) {
	d, _ := newTestDispatcher(t)
	token := openSession(t, d)

	browse := ua.BrowseRequest{
		RequestHeader: header(token),
		NodesToBrowse: []ua.BrowseDescription{{NodeId: addressspace.RootFolder, Direction: ua.BrowseForward}},
	}
	body := d.Dispatch(context.Background(), testChannelId+1, wireRequest(ua.IdBrowseRequest, browse))
	assert.Equal(t, ua.BadSecureChannelIdInvalid, faultResult(t, body))
}

func TestBrowseUnknownNodeAndResultMaskZero(t *testing.T) {
	d, _ := newTestDispatcher(t)
	token := openSession(t, d)

	browse := ua.BrowseRequest{
		RequestHeader: header(token),
		NodesToBrowse: []ua.BrowseDescription{
			{NodeId: ua.NewNumericNodeId(1, 999999), Direction: ua.BrowseForward},
			{NodeId: addressspace.RootFolder, Direction: ua.BrowseForward, ResultMask: 0},
		},
	}
	body := d.Dispatch(context.Background(), testChannelId, wireRequest(ua.IdBrowseRequest, browse))
	resp, err := ua.DecodeBrowseResponse(respDecoder(t, body, ua.IdBrowseResponse))
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	assert.Equal(t, ua.BadNodeIdUnknown, resp.Results[0].StatusCode)

	assert.Equal(t, ua.Good, resp.Results[1].StatusCode)
	require.NotEmpty(t, resp.Results[1].References)
	for _, ref := range resp.Results[1].References {
		assert.True(t, ref.ReferenceTypeId.IsNull())
		assert.True(t, ref.IsForward)
		assert.Empty(t, ref.BrowseName.Name)
		assert.Empty(t, ref.DisplayName.Text)
		assert.Equal(t, ua.NodeClassUnspecified, ref.NodeClass)
		assert.False(t, ref.NodeId.IsNull())
	}
}

func TestBrowsePagingAndContinuationPoints(t *testing.T) {
	d, as := newTestDispatcher(t)
	token := openSession(t, d)
	ctx := context.Background()

	parent := &addressspace.Node{
		NodeId:      ua.NewStringNodeId(1, "Plant"),
		BrowseName:  ua.NewQualifiedName(1, "Plant"),
		DisplayName: ua.NewLocalizedText("en", "Plant"),
	}
	require.NoError(t, as.AddObject(parent, addressspace.ObjectsFolder, addressspace.OrganizesRefType))
	const total = 5
	for i := 0; i < total; i++ {
		child := &addressspace.Node{
			NodeId:      ua.NewNumericNodeId(1, 1000+uint32(i)),
			BrowseName:  ua.NewQualifiedName(1, "Line"),
			DisplayName: ua.NewLocalizedText("en", "Line"),
		}
		require.NoError(t, as.AddObject(child, parent.NodeId, addressspace.OrganizesRefType))
	}

	browse := ua.BrowseRequest{
		RequestHeader:                 header(token),
		RequestedMaxReferencesPerNode: 2,
		NodesToBrowse: []ua.BrowseDescription{{
			NodeId: parent.NodeId, Direction: ua.BrowseForward, ResultMask: 0x3F,
		}},
	}
	body := d.Dispatch(ctx, testChannelId, wireRequest(ua.IdBrowseRequest, browse))
	resp, err := ua.DecodeBrowseResponse(respDecoder(t, body, ua.IdBrowseResponse))
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Len(t, resp.Results[0].References, 2)
	require.NotEmpty(t, resp.Results[0].ContinuationPoint)
	cp := resp.Results[0].ContinuationPoint

	next := ua.BrowseNextRequest{RequestHeader: header(token), ContinuationPoints: [][]byte{cp}}
	body = d.Dispatch(ctx, testChannelId, wireRequest(ua.IdBrowseNextRequest, next))
	nextResp, err := ua.DecodeBrowseNextResponse(respDecoder(t, body, ua.IdBrowseNextResponse))
	require.NoError(t, err)
	require.Len(t, nextResp.Results, 1)
	assert.Equal(t, ua.Good, nextResp.Results[0].StatusCode)
	assert.Len(t, nextResp.Results[0].References, total-2)
	assert.Empty(t, nextResp.Results[0].ContinuationPoint)

	// The point was consumed by the first BrowseNext.
	body = d.Dispatch(ctx, testChannelId, wireRequest(ua.IdBrowseNextRequest, next))
	nextResp, err = ua.DecodeBrowseNextResponse(respDecoder(t, body, ua.IdBrowseNextResponse))
	require.NoError(t, err)
	assert.Equal(t, ua.BadContinuationPointInvalid, nextResp.Results[0].StatusCode)
}

func TestBrowseNextReleaseDiscardsPoint(t *testing.T) {
	d, as := newTestDispatcher(t)
	token := openSession(t, d)
	ctx := context.Background()

	parent := &addressspace.Node{
		NodeId:      ua.NewStringNodeId(1, "Rack"),
		BrowseName:  ua.NewQualifiedName(1, "Rack"),
		DisplayName: ua.NewLocalizedText("en", "Rack"),
	}
	require.NoError(t, as.AddObject(parent, addressspace.ObjectsFolder, addressspace.OrganizesRefType))
	for i := 0; i < 3; i++ {
		child := &addressspace.Node{
			NodeId:      ua.NewNumericNodeId(1, 2000+uint32(i)),
			BrowseName:  ua.NewQualifiedName(1, "Slot"),
			DisplayName: ua.NewLocalizedText("en", "Slot"),
		}
		require.NoError(t, as.AddObject(child, parent.NodeId, addressspace.OrganizesRefType))
	}

	browse := ua.BrowseRequest{
		RequestHeader:                 header(token),
		RequestedMaxReferencesPerNode: 1,
		NodesToBrowse:                 []ua.BrowseDescription{{NodeId: parent.NodeId, Direction: ua.BrowseForward}},
	}
	body := d.Dispatch(ctx, testChannelId, wireRequest(ua.IdBrowseRequest, browse))
	resp, err := ua.DecodeBrowseResponse(respDecoder(t, body, ua.IdBrowseResponse))
	require.NoError(t, err)
	cp := resp.Results[0].ContinuationPoint
	require.NotEmpty(t, cp)

	release := ua.BrowseNextRequest{
		RequestHeader:             header(token),
		ReleaseContinuationPoints: true,
		ContinuationPoints:        [][]byte{cp},
	}
	body = d.Dispatch(ctx, testChannelId, wireRequest(ua.IdBrowseNextRequest, release))
	relResp, err := ua.DecodeBrowseNextResponse(respDecoder(t, body, ua.IdBrowseNextResponse))
	require.NoError(t, err)
	assert.Equal(t, ua.Good, relResp.Results[0].StatusCode)
	assert.Empty(t, relResp.Results[0].References)

	// Released means gone.
	resume := ua.BrowseNextRequest{RequestHeader: header(token), ContinuationPoints: [][]byte{cp}}
	body = d.Dispatch(ctx, testChannelId, wireRequest(ua.IdBrowseNextRequest, resume))
	resResp, err := ua.DecodeBrowseNextResponse(respDecoder(t, body, ua.IdBrowseNextResponse))
	require.NoError(t, err)
	assert.Equal(t, ua.BadContinuationPointInvalid, resResp.Results[0].StatusCode)
}

func TestReadCurrentTime(t *testing.T) {
	d, _ := newTestDispatcher(t)
	token := openSession(t, d)

	read := ua.ReadRequest{
		RequestHeader:      header(token),
		TimestampsToReturn: ua.TimestampsBoth,
		NodesToRead: []ua.ReadValueId{{
			NodeId:      addressspace.CurrentTimeNodeId,
			AttributeId: ua.AttributeValue,
		}},
	}
	body := d.Dispatch(context.Background(), testChannelId, wireRequest(ua.IdReadRequest, read))
	resp, err := ua.DecodeReadResponse(respDecoder(t, body, ua.IdReadResponse))
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	dv := resp.Results[0]
	require.True(t, dv.HasValue)
	require.Equal(t, ua.TypeDateTime, dv.Value.Type)
	reported, ok := dv.Value.Value.(ua.DateTime)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), reported.Time(), 2*time.Second)
}

func TestWriteThenReadBack(t *testing.T) {
	d, as := newTestDispatcher(t)
	token := openSession(t, d)
	ctx := context.Background()

	v := &addressspace.Node{
		NodeId:      ua.NewStringNodeId(1, "Setpoint"),
		BrowseName:  ua.NewQualifiedName(1, "Setpoint"),
		DisplayName: ua.NewLocalizedText("en", "Setpoint"),
		Value:       ua.NewDataValue(ua.NewVariant(int32(10))),
		AccessLevel: 0x03,
	}
	require.NoError(t, as.AddVariable(v, addressspace.ObjectsFolder, addressspace.OrganizesRefType))

	write := ua.WriteRequest{
		RequestHeader: header(token),
		NodesToWrite: []ua.WriteValue{{
			NodeId:      v.NodeId,
			AttributeId: ua.AttributeValue,
			Value:       ua.NewDataValue(ua.NewVariant(int32(55))),
		}},
	}
	body := d.Dispatch(ctx, testChannelId, wireRequest(ua.IdWriteRequest, write))
	wResp, err := ua.DecodeWriteResponse(respDecoder(t, body, ua.IdWriteResponse))
	require.NoError(t, err)
	require.Equal(t, []ua.StatusCode{ua.Good}, wResp.Results)

	read := ua.ReadRequest{
		RequestHeader:      header(token),
		TimestampsToReturn: ua.TimestampsNeither,
		NodesToRead:        []ua.ReadValueId{{NodeId: v.NodeId, AttributeId: ua.AttributeValue}},
	}
	body = d.Dispatch(ctx, testChannelId, wireRequest(ua.IdReadRequest, read))
	rResp, err := ua.DecodeReadResponse(respDecoder(t, body, ua.IdReadResponse))
	require.NoError(t, err)
	require.Len(t, rResp.Results, 1)
	assert.Equal(t, int32(55), rResp.Results[0].Value.Value)
	assert.False(t, rResp.Results[0].HasServerTimestamp)
}

func TestGarbageBodyYieldsServiceFault(t *testing.T) {
	d, _ := newTestDispatcher(t)
	body := d.Dispatch(context.Background(), testChannelId, []byte{0xFF, 0xFF})
	code := faultResult(t, body)
	assert.True(t, code.IsBad())
}

// publishAsync dispatches one Publish on its own goroutine, since the
// handler parks until a subscription tick services it.
func publishAsync(d *Dispatcher, token ua.NodeId, acks []ua.SubscriptionAcknowledgement) <-chan []byte {
	out := make(chan []byte, 1)
	go func() {
		req := ua.PublishRequest{RequestHeader: header(token), SubscriptionAcknowledgements: acks}
		out <- d.Dispatch(context.Background(), testChannelId, wireRequest(ua.IdPublishRequest, req))
	}()
	return out
}

func waitPublish(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case body := <-ch:
		return body
	case <-time.After(5 * time.Second):
		t.Fatal("Publish was never serviced")
		return nil
	}
}

func createSubscription(t *testing.T, d *Dispatcher, token ua.NodeId) uint32 {
	t.Helper()
	req := ua.CreateSubscriptionRequest{
		RequestHeader:               header(token),
		RequestedPublishingInterval: 20,
		RequestedLifetimeCount:      600,
		RequestedMaxKeepAliveCount:  3,
		PublishingEnabled:           true,
	}
	body := d.Dispatch(context.Background(), testChannelId, wireRequest(ua.IdCreateSubscriptionRequest, req))
	resp, err := ua.DecodeCreateSubscriptionResponse(respDecoder(t, body, ua.IdCreateSubscriptionResponse))
	require.NoError(t, err)
	require.NotZero(t, resp.SubscriptionId)
	require.GreaterOrEqual(t, resp.RevisedPublishingInterval, float64(20))
	return resp.SubscriptionId
}

func TestPublishKeepAliveWithoutDataChanges(t *testing.T) {
	d, _ := newTestDispatcher(t)
	token := openSession(t, d)
	subId := createSubscription(t, d, token)

	start := time.Now()
	body := waitPublish(t, publishAsync(d, token, nil))
	resp, err := ua.DecodePublishResponse(respDecoder(t, body, ua.IdPublishResponse))
	require.NoError(t, err)

	assert.Equal(t, subId, resp.SubscriptionId)
	assert.Empty(t, resp.NotificationMessage.NotificationData, "keep-alive carries no notifications")
	// Three empty publishing intervals of 20ms must elapse first.
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestMonitoredItemDataChangeReachesPublish(t *testing.T) {
	d, as := newTestDispatcher(t)
	token := openSession(t, d)
	subId := createSubscription(t, d, token)

	v := &addressspace.Node{
		NodeId:      ua.NewStringNodeId(1, "Temperature"),
		BrowseName:  ua.NewQualifiedName(1, "Temperature"),
		DisplayName: ua.NewLocalizedText("en", "Temperature"),
		Value:       ua.NewDataValue(ua.NewVariant(float64(21.5))),
		AccessLevel: 0x03,
	}
	require.NoError(t, as.AddVariable(v, addressspace.ObjectsFolder, addressspace.OrganizesRefType))

	const clientHandle = 99
	create := ua.CreateMonitoredItemsRequest{
		RequestHeader:  header(token),
		SubscriptionId: subId,
		ItemsToCreate: []ua.MonitoredItemCreateRequest{{
			ItemToMonitor:  ua.ReadValueId{NodeId: v.NodeId, AttributeId: ua.AttributeValue},
			MonitoringMode: ua.MonitoringReporting,
			RequestedParameters: ua.MonitoringParameters{
				ClientHandle: clientHandle, QueueSize: 10, DiscardOldest: true,
			},
		}},
	}
	body := d.Dispatch(context.Background(), testChannelId, wireRequest(ua.IdCreateMonitoredItemsRequest, create))
	cmResp, err := ua.DecodeCreateMonitoredItemsResponse(respDecoder(t, body, ua.IdCreateMonitoredItemsResponse))
	require.NoError(t, err)
	require.Len(t, cmResp.Results, 1)
	require.Equal(t, ua.Good, cmResp.Results[0].StatusCode)

	// The first sample always reports: consume it.
	body = waitPublish(t, publishAsync(d, token, nil))
	first, err := ua.DecodePublishResponse(respDecoder(t, body, ua.IdPublishResponse))
	require.NoError(t, err)
	require.NotEmpty(t, first.NotificationMessage.NotificationData)

	// Mutate the variable; the next Publish must carry the new value
	// under the supplied client handle.
	require.Equal(t, ua.Good, as.WriteAttribute(v.NodeId, ua.AttributeValue,
		ua.NewDataValue(ua.NewVariant(float64(99.25)))))

	body = waitPublish(t, publishAsync(d, token, nil))
	second, err := ua.DecodePublishResponse(respDecoder(t, body, ua.IdPublishResponse))
	require.NoError(t, err)
	require.NotEmpty(t, second.NotificationMessage.NotificationData)

	dcn, err := ua.DecodeDataChangeNotification(second.NotificationMessage.NotificationData[0])
	require.NoError(t, err)
	require.NotEmpty(t, dcn.MonitoredItems)
	assert.Equal(t, uint32(clientHandle), dcn.MonitoredItems[0].ClientHandle)
	assert.Equal(t, float64(99.25), dcn.MonitoredItems[0].Value.Value.Value)
	assert.Greater(t, second.NotificationMessage.SequenceNumber, first.NotificationMessage.SequenceNumber)
}

func TestRepublishReturnsCachedNotification(t *testing.T) {
	d, as := newTestDispatcher(t)
	token := openSession(t, d)
	subId := createSubscription(t, d, token)
	ctx := context.Background()

	v := &addressspace.Node{
		NodeId:      ua.NewStringNodeId(1, "Pressure"),
		BrowseName:  ua.NewQualifiedName(1, "Pressure"),
		DisplayName: ua.NewLocalizedText("en", "Pressure"),
		Value:       ua.NewDataValue(ua.NewVariant(int64(1))),
		AccessLevel: 0x03,
	}
	require.NoError(t, as.AddVariable(v, addressspace.ObjectsFolder, addressspace.OrganizesRefType))

	create := ua.CreateMonitoredItemsRequest{
		RequestHeader:  header(token),
		SubscriptionId: subId,
		ItemsToCreate: []ua.MonitoredItemCreateRequest{{
			ItemToMonitor:       ua.ReadValueId{NodeId: v.NodeId, AttributeId: ua.AttributeValue},
			MonitoringMode:      ua.MonitoringReporting,
			RequestedParameters: ua.MonitoringParameters{ClientHandle: 1, QueueSize: 4, DiscardOldest: true},
		}},
	}
	body := d.Dispatch(ctx, testChannelId, wireRequest(ua.IdCreateMonitoredItemsRequest, create))
	_, err := ua.DecodeCreateMonitoredItemsResponse(respDecoder(t, body, ua.IdCreateMonitoredItemsResponse))
	require.NoError(t, err)

	body = waitPublish(t, publishAsync(d, token, nil))
	pub, err := ua.DecodePublishResponse(respDecoder(t, body, ua.IdPublishResponse))
	require.NoError(t, err)
	seq := pub.NotificationMessage.SequenceNumber

	rep := ua.RepublishRequest{RequestHeader: header(token), SubscriptionId: subId, RetransmitSequenceNumber: seq}
	body = d.Dispatch(ctx, testChannelId, wireRequest(ua.IdRepublishRequest, rep))
	repResp, err := ua.DecodeRepublishResponse(respDecoder(t, body, ua.IdRepublishResponse))
	require.NoError(t, err)
	assert.Equal(t, seq, repResp.NotificationMessage.SequenceNumber)

	rep.RetransmitSequenceNumber = seq + 1000
	body = d.Dispatch(ctx, testChannelId, wireRequest(ua.IdRepublishRequest, rep))
	assert.Equal(t, ua.BadMessageNotAvailable, faultResult(t, body))
}

func TestPublishWithoutSubscriptionFaults(t *testing.T) {
	d, _ := newTestDispatcher(t)
	token := openSession(t, d)

	req := ua.PublishRequest{RequestHeader: header(token)}
	body := d.Dispatch(context.Background(), testChannelId, wireRequest(ua.IdPublishRequest, req))
	assert.Equal(t, ua.BadNoSubscription, faultResult(t, body))
}

func TestCallRegisteredMethod(t *testing.T) {
	d, as := newTestDispatcher(t)
	token := openSession(t, d)

	obj := &addressspace.Node{
		NodeId:      ua.NewStringNodeId(1, "Motor"),
		BrowseName:  ua.NewQualifiedName(1, "Motor"),
		DisplayName: ua.NewLocalizedText("en", "Motor"),
	}
	require.NoError(t, as.AddObject(obj, addressspace.ObjectsFolder, addressspace.OrganizesRefType))
	method := &addressspace.Node{
		NodeId:      ua.NewStringNodeId(1, "Motor.Start"),
		BrowseName:  ua.NewQualifiedName(1, "Start"),
		DisplayName: ua.NewLocalizedText("en", "Start"),
		Executable:  true,
	}
	require.NoError(t, as.AddMethod(method, obj.NodeId, addressspace.HasComponentRefType))

	d.RegisterMethod(obj.NodeId, method.NodeId, func(ctx context.Context, objectId, methodId ua.NodeId, args []ua.Variant) ([]ua.Variant, ua.StatusCode) {
		return []ua.Variant{ua.NewVariant("started")}, ua.Good
	})

	call := ua.CallRequest{
		RequestHeader: header(token),
		MethodsToCall: []ua.CallMethodRequest{{ObjectId: obj.NodeId, MethodId: method.NodeId}},
	}
	body := d.Dispatch(context.Background(), testChannelId, wireRequest(ua.IdCallRequest, call))
	dec := respDecoder(t, body, ua.IdCallResponse)
	hdr, err := ua.DecodeResponseHeader(dec)
	require.NoError(t, err)
	assert.True(t, hdr.ServiceResult.IsGood())
}
