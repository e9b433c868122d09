package dispatch

import (
	"time"

	"github.com/ironspan/opcuad/internal/addressspace"
	"github.com/ironspan/opcuad/internal/session"
	"github.com/ironspan/opcuad/internal/ua"
)

// continuationPointTTL bounds how long an unclaimed Browse continuation
// point survives, per OPC UA Part 4. BrowseNext prunes against it on every
// call rather than running a separate sweep goroutine.
const continuationPointTTL = 10 * time.Minute

// handleBrowse implements OPC UA Part 4 Browse: this server has no View
// nodes, so any non-null View.ViewId fails outright.
func (d *Dispatcher) handleBrowse(dec *ua.Decoder, channelId uint32) []byte {
	req, err := ua.DecodeBrowseRequest(dec)
	if err != nil {
		return d.fault("Browse", ua.RequestHeader{}, ua.BadDecodingError)
	}
	s, code := d.resolveSession(req.RequestHeader, channelId)
	if code != ua.Good {
		return d.fault("Browse", req.RequestHeader, code)
	}
	if !req.View.ViewId.IsNull() {
		return d.fault("Browse", req.RequestHeader, ua.BadViewIdUnknown)
	}
	if len(req.NodesToBrowse) == 0 {
		return d.fault("Browse", req.RequestHeader, ua.BadNothingToDo)
	}

	results := make([]ua.BrowseResult, len(req.NodesToBrowse))
	for i, nb := range req.NodesToBrowse {
		results[i] = d.browseOne(s, nb, req.RequestedMaxReferencesPerNode)
	}
	resp := ua.BrowseResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.Good), Results: results}
	return envelope(ua.IdBrowseResponse, resp)
}

func (d *Dispatcher) browseOne(s *session.Session, nb ua.BrowseDescription, maxRefs uint32) ua.BrowseResult {
	if _, ok := d.as.FindNode(nb.NodeId); !ok {
		return ua.BrowseResult{StatusCode: ua.BadNodeIdUnknown}
	}

	var typeFilter *ua.NodeId
	if !nb.ReferenceTypeId.IsNull() {
		typeFilter = &nb.ReferenceTypeId
	}
	refs, _ := d.as.FindReferencesByDirection(nb.NodeId, nb.Direction, typeFilter, nb.IncludeSubtypes)

	descs := make([]ua.ReferenceDescription, 0, len(refs))
	for _, r := range refs {
		target, ok := d.as.FindNode(r.TargetId)
		if !ok {
			continue
		}
		if nb.NodeClassMask != 0 && uint32(target.NodeClass)&nb.NodeClassMask == 0 {
			continue
		}
		descs = append(descs, d.describeReference(r, target, nb.ResultMask))
	}
	return d.pageReferences(s, descs, maxRefs)
}

// describeReference builds one ReferenceDescription carrying only the
// fields ResultMask selects; unselected fields stay null, so a mask of 0
// yields just the target NodeId. IsForward has no null form on the wire
// and defaults to true when unselected.
func (d *Dispatcher) describeReference(r addressspace.Reference, target *addressspace.Node, mask uint32) ua.ReferenceDescription {
	rd := ua.ReferenceDescription{NodeId: ua.NewExpandedNodeId(target.NodeId), IsForward: true}
	if mask&ua.ResultMaskIsForward != 0 {
		rd.IsForward = !r.IsInverse
	}
	if mask&ua.ResultMaskReferenceType != 0 {
		rd.ReferenceTypeId = r.ReferenceTypeId
	}
	if mask&ua.ResultMaskNodeClass != 0 {
		rd.NodeClass = target.NodeClass
	}
	if mask&ua.ResultMaskBrowseName != 0 {
		rd.BrowseName = target.BrowseName
	}
	if mask&ua.ResultMaskDisplayName != 0 {
		rd.DisplayName = target.DisplayName
	}
	if mask&ua.ResultMaskTypeDefinition != 0 {
		if td, ok := d.typeDefinitionOf(target.NodeId); ok {
			rd.TypeDefinition = ua.NewExpandedNodeId(td)
		}
	}
	return rd
}

func (d *Dispatcher) typeDefinitionOf(nodeId ua.NodeId) (ua.NodeId, bool) {
	refs := d.as.FindReferencesFrom(nodeId, &addressspace.HasTypeDefinitionRefType, false)
	if len(refs) == 0 {
		return ua.NodeId{}, false
	}
	return refs[0].TargetId, true
}

// pageReferences applies RequestedMaxReferencesPerNode, stashing the
// remainder behind a fresh session continuation point when it doesn't all
// fit (OPC UA Part 4).
func (d *Dispatcher) pageReferences(s *session.Session, descs []ua.ReferenceDescription, maxRefs uint32) ua.BrowseResult {
	if maxRefs == 0 || uint32(len(descs)) <= maxRefs {
		return ua.BrowseResult{StatusCode: ua.Good, References: descs}
	}
	cp, err := s.NewContinuationPoint(d.as.Version(), maxRefs, int(maxRefs), descs)
	if err != nil {
		return ua.BrowseResult{StatusCode: ua.BadNoContinuationPoints}
	}
	return ua.BrowseResult{StatusCode: ua.Good, ContinuationPoint: cp.Id, References: descs[:maxRefs]}
}

// handleBrowseNext implements OPC UA Part 4 BrowseNext: resume or release
// a previously issued continuation point.
func (d *Dispatcher) handleBrowseNext(dec *ua.Decoder, channelId uint32) []byte {
	req, err := ua.DecodeBrowseNextRequest(dec)
	if err != nil {
		return d.fault("BrowseNext", ua.RequestHeader{}, ua.BadDecodingError)
	}
	s, code := d.resolveSession(req.RequestHeader, channelId)
	if code != ua.Good {
		return d.fault("BrowseNext", req.RequestHeader, code)
	}
	if len(req.ContinuationPoints) == 0 {
		return d.fault("BrowseNext", req.RequestHeader, ua.BadNothingToDo)
	}
	s.PruneContinuationPoints(continuationPointTTL)

	results := make([]ua.BrowseResult, len(req.ContinuationPoints))
	for i, id := range req.ContinuationPoints {
		if req.ReleaseContinuationPoints {
			s.ReleaseContinuationPoint(id)
			results[i] = ua.BrowseResult{StatusCode: ua.Good}
			continue
		}
		cp, ok := s.ContinuationPointByID(id)
		if !ok || cp.AddressSpaceVersion != d.as.Version() {
			s.ReleaseContinuationPoint(id)
			results[i] = ua.BrowseResult{StatusCode: ua.BadContinuationPointInvalid}
			continue
		}
		s.ReleaseContinuationPoint(id)
		remaining := cp.CachedReferences[cp.StartingIndex:]
		results[i] = ua.BrowseResult{StatusCode: ua.Good, References: remaining}
	}
	resp := ua.BrowseNextResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.Good), Results: results}
	return envelope(ua.IdBrowseNextResponse, resp)
}

// handleTranslateBrowsePaths implements OPC UA Part 4
// TranslateBrowsePathsToNodeIds.
func (d *Dispatcher) handleTranslateBrowsePaths(dec *ua.Decoder, channelId uint32) []byte {
	req, err := ua.DecodeTranslateBrowsePathsToNodeIdsRequest(dec)
	if err != nil {
		return d.fault("TranslateBrowsePathsToNodeIds", ua.RequestHeader{}, ua.BadDecodingError)
	}
	if _, code := d.resolveSession(req.RequestHeader, channelId); code != ua.Good {
		return d.fault("TranslateBrowsePathsToNodeIds", req.RequestHeader, code)
	}
	if len(req.BrowsePaths) == 0 {
		return d.fault("TranslateBrowsePathsToNodeIds", req.RequestHeader, ua.BadNothingToDo)
	}

	results := make([]ua.BrowsePathResult, len(req.BrowsePaths))
	for i, bp := range req.BrowsePaths {
		ids, err := d.as.FindNodesRelativePath(bp.StartingNode, bp.RelativePath)
		if err != nil {
			results[i] = ua.BrowsePathResult{StatusCode: ua.BadNoMatch}
			continue
		}
		targets := make([]ua.BrowsePathTarget, len(ids))
		for j, id := range ids {
			targets[j] = ua.BrowsePathTarget{TargetId: ua.NewExpandedNodeId(id), RemainingPathIndex: 0xFFFFFFFF}
		}
		results[i] = ua.BrowsePathResult{StatusCode: ua.Good, Targets: targets}
	}
	resp := ua.TranslateBrowsePathsToNodeIdsResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.Good), Results: results}
	return envelope(ua.IdTranslateBrowsePathsToNodeIdsResponse, resp)
}

// handleRegisterNodes/handleUnregisterNodes implement the identity
// pass-through described in internal/ua/view_messages.go's
// RegisterNodesRequest doc: this server never issues opaque handles in
// place of NodeIds, so RegisterNodes just echoes its input back and
// UnregisterNodes is a no-op.
func (d *Dispatcher) handleRegisterNodes(dec *ua.Decoder, channelId uint32) []byte {
	req, err := ua.DecodeRegisterNodesRequest(dec)
	if err != nil {
		return d.fault("RegisterNodes", ua.RequestHeader{}, ua.BadDecodingError)
	}
	if _, code := d.resolveSession(req.RequestHeader, channelId); code != ua.Good {
		return d.fault("RegisterNodes", req.RequestHeader, code)
	}
	resp := ua.RegisterNodesResponse{
		ResponseHeader:    ua.NewResponseHeader(req.RequestHeader, ua.Good),
		RegisteredNodeIds: req.NodesToRegister,
	}
	return envelope(ua.IdRegisterNodesResponse, resp)
}

func (d *Dispatcher) handleUnregisterNodes(dec *ua.Decoder, channelId uint32) []byte {
	req, err := ua.DecodeUnregisterNodesRequest(dec)
	if err != nil {
		return d.fault("UnregisterNodes", ua.RequestHeader{}, ua.BadDecodingError)
	}
	if _, code := d.resolveSession(req.RequestHeader, channelId); code != ua.Good {
		return d.fault("UnregisterNodes", req.RequestHeader, code)
	}
	resp := ua.UnregisterNodesResponse{ResponseHeader: ua.NewResponseHeader(req.RequestHeader, ua.Good)}
	return envelope(ua.IdUnregisterNodesResponse, resp)
}
