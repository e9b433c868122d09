package dispatch

import (
	"context"

	"github.com/ironspan/opcuad/internal/ua"
)

// MethodCallback implements one Method node's behavior behind the Call
// service. A callback returning a non-Good StatusCode short-circuits
// that CallMethodRequest's outputs.
type MethodCallback func(ctx context.Context, objectId, methodId ua.NodeId, args []ua.Variant) ([]ua.Variant, ua.StatusCode)

// RegisterMethod binds fn to the (objectId, methodId) pair internal/server
// wires at startup, mirroring how addressspace.AddMethod installs the
// Method node itself — the node and its callback are registered
// separately since only the dispatcher, not the address space, knows how
// to run Go code.
func (d *Dispatcher) RegisterMethod(objectId, methodId ua.NodeId, fn MethodCallback) {
	d.methodsMu.Lock()
	defer d.methodsMu.Unlock()
	d.methods[methodKey{object: objectId.String(), method: methodId.String()}] = fn
}

func (d *Dispatcher) lookupMethod(objectId, methodId ua.NodeId) (MethodCallback, bool) {
	d.methodsMu.RLock()
	defer d.methodsMu.RUnlock()
	fn, ok := d.methods[methodKey{object: objectId.String(), method: methodId.String()}]
	return fn, ok
}

// handleCall implements OPC UA Part 4 Call. Each method invocation runs
// through the resilience registry keyed by its own NodeId pair, so one
// wedged callback trips its own breaker instead of stalling the
// dispatcher (internal/resilience/circuitbreaker.go).
func (d *Dispatcher) handleCall(ctx context.Context, dec *ua.Decoder, channelId uint32) []byte {
	req, err := ua.DecodeCallRequest(dec)
	if err != nil {
		return d.fault("Call", ua.RequestHeader{}, ua.BadDecodingError)
	}
	if _, code := d.resolveSession(req.RequestHeader, channelId); code != ua.Good {
		return d.fault("Call", req.RequestHeader, code)
	}
	if len(req.MethodsToCall) == 0 {
		return d.fault("Call", req.RequestHeader, ua.BadNothingToDo)
	}

	results := make([]ua.CallMethodResult, len(req.MethodsToCall))
	for i, mc := range req.MethodsToCall {
		results[i] = d.callOne(ctx, mc)
	}
	resp := ua.CallResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.Good), Results: results}
	return envelope(ua.IdCallResponse, resp)
}

func (d *Dispatcher) callOne(ctx context.Context, mc ua.CallMethodRequest) ua.CallMethodResult {
	if _, ok := d.as.FindNode(mc.ObjectId); !ok {
		return ua.CallMethodResult{StatusCode: ua.BadNodeIdUnknown}
	}
	fn, ok := d.lookupMethod(mc.ObjectId, mc.MethodId)
	if !ok {
		return ua.CallMethodResult{StatusCode: ua.BadMethodInvalid}
	}

	key := mc.ObjectId.String() + "/" + mc.MethodId.String()
	out, err := d.breakers.Call(key, func() (interface{}, error) {
		outputs, code := fn(ctx, mc.ObjectId, mc.MethodId, mc.InputArguments)
		if code != ua.Good {
			return nil, code.AsError()
		}
		return outputs, nil
	})
	if err != nil {
		if svcErr, ok := err.(*ua.ServiceError); ok {
			return ua.CallMethodResult{StatusCode: svcErr.Code}
		}
		return ua.CallMethodResult{StatusCode: ua.BadUnexpectedError}
	}
	outputs, _ := out.([]ua.Variant)
	return ua.CallMethodResult{StatusCode: ua.Good, OutputArguments: outputs}
}
