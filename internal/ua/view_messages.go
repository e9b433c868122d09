package ua

// BrowseDirection selects which side of a reference a Browse call walks,
// per OPC UA Part 4's find_references_by_direction.
type BrowseDirection int32

const (
	BrowseForward BrowseDirection = iota
	BrowseInverse
	BrowseBoth
)

// NodeClass mirrors the node_class bit positions used by node_class_mask
// filtering (OPC UA Part 4); it doubles as the wire NodeClass enum.
type NodeClass uint32

const (
	NodeClassUnspecified   NodeClass = 0
	NodeClassObject        NodeClass = 1 << 0
	NodeClassVariable      NodeClass = 1 << 1
	NodeClassMethod        NodeClass = 1 << 2
	NodeClassObjectType    NodeClass = 1 << 3
	NodeClassVariableType  NodeClass = 1 << 4
	NodeClassReferenceType NodeClass = 1 << 5
	NodeClassDataType      NodeClass = 1 << 6
	NodeClassView          NodeClass = 1 << 7
)

// ResultMask bits select which optional ReferenceDescription fields a
// Browse response populates (OPC UA Part 4).
const (
	ResultMaskReferenceType  uint32 = 1 << 0
	ResultMaskIsForward      uint32 = 1 << 1
	ResultMaskNodeClass      uint32 = 1 << 2
	ResultMaskBrowseName     uint32 = 1 << 3
	ResultMaskDisplayName    uint32 = 1 << 4
	ResultMaskTypeDefinition uint32 = 1 << 5
)

// ViewDescription selects a View node to browse within; this server
// rejects any non-null ViewId with BadViewIdUnknown (OPC UA Part 4).
type ViewDescription struct {
	ViewId      NodeId
	Timestamp   DateTime
	ViewVersion uint32
}

func (v ViewDescription) byteLen() int { return v.ViewId.byteLen() + 8 + 4 }
func (v ViewDescription) encode(e *Encoder) {
	v.ViewId.encode(e)
	e.WriteDateTime(v.Timestamp)
	e.WriteUint32(v.ViewVersion)
}
func decodeViewDescription(d *Decoder) (ViewDescription, error) {
	var v ViewDescription
	var err error
	if v.ViewId, err = decodeNodeId(d); err != nil {
		return v, err
	}
	if v.Timestamp, err = d.ReadDateTime(); err != nil {
		return v, err
	}
	if v.ViewVersion, err = d.ReadUint32(); err != nil {
		return v, err
	}
	return v, nil
}

// BrowseDescription is one node to browse from, per OPC UA Part 4.
type BrowseDescription struct {
	NodeId          NodeId
	Direction       BrowseDirection
	ReferenceTypeId NodeId
	IncludeSubtypes bool
	NodeClassMask   uint32
	ResultMask      uint32
}

func (b BrowseDescription) byteLen() int {
	return b.NodeId.byteLen() + 4 + b.ReferenceTypeId.byteLen() + 1 + 4 + 4
}
func (b BrowseDescription) encode(e *Encoder) {
	b.NodeId.encode(e)
	e.WriteInt32(int32(b.Direction))
	b.ReferenceTypeId.encode(e)
	e.WriteBoolean(b.IncludeSubtypes)
	e.WriteUint32(b.NodeClassMask)
	e.WriteUint32(b.ResultMask)
}
func decodeBrowseDescription(d *Decoder) (BrowseDescription, error) {
	var b BrowseDescription
	var err error
	if b.NodeId, err = decodeNodeId(d); err != nil {
		return b, err
	}
	dir, err := d.ReadInt32()
	if err != nil {
		return b, err
	}
	b.Direction = BrowseDirection(dir)
	if b.ReferenceTypeId, err = decodeNodeId(d); err != nil {
		return b, err
	}
	if b.IncludeSubtypes, err = d.ReadBoolean(); err != nil {
		return b, err
	}
	if b.NodeClassMask, err = d.ReadUint32(); err != nil {
		return b, err
	}
	if b.ResultMask, err = d.ReadUint32(); err != nil {
		return b, err
	}
	return b, nil
}

// ReferenceDescription is one browsed edge, with fields omitted per
// result_mask (OPC UA Part 4: zero values stand in for "null" here).
type ReferenceDescription struct {
	ReferenceTypeId NodeId
	IsForward       bool
	NodeId          ExpandedNodeId
	BrowseName      QualifiedName
	DisplayName     LocalizedText
	NodeClass       NodeClass
	TypeDefinition  ExpandedNodeId
}

func (r ReferenceDescription) byteLen() int {
	return r.ReferenceTypeId.byteLen() + 1 + r.NodeId.byteLen() + r.BrowseName.byteLen() +
		r.DisplayName.byteLen() + 4 + r.TypeDefinition.byteLen()
}
func (r ReferenceDescription) encode(e *Encoder) {
	r.ReferenceTypeId.encode(e)
	e.WriteBoolean(r.IsForward)
	r.NodeId.encode(e)
	r.BrowseName.encode(e)
	r.DisplayName.encode(e)
	e.WriteUint32(uint32(r.NodeClass))
	r.TypeDefinition.encode(e)
}
func decodeReferenceDescription(d *Decoder) (ReferenceDescription, error) {
	var r ReferenceDescription
	var err error
	if r.ReferenceTypeId, err = decodeNodeId(d); err != nil {
		return r, err
	}
	if r.IsForward, err = d.ReadBoolean(); err != nil {
		return r, err
	}
	if r.NodeId, err = decodeExpandedNodeId(d); err != nil {
		return r, err
	}
	if r.BrowseName, err = decodeQualifiedName(d); err != nil {
		return r, err
	}
	if r.DisplayName, err = decodeLocalizedText(d); err != nil {
		return r, err
	}
	nc, err := d.ReadUint32()
	if err != nil {
		return r, err
	}
	r.NodeClass = NodeClass(nc)
	if r.TypeDefinition, err = decodeExpandedNodeId(d); err != nil {
		return r, err
	}
	return r, nil
}

// BrowseResult is one BrowseDescription's outcome: a StatusCode, the
// ReferenceDescriptions that fit under max_references_per_node, and a
// ContinuationPoint when more remain (OPC UA Part 4).
type BrowseResult struct {
	StatusCode        StatusCode
	ContinuationPoint []byte
	References        []ReferenceDescription
}

func (r BrowseResult) byteLen() int {
	return 4 + 4 + len(r.ContinuationPoint) + ArrayByteLen(r.References)
}
func (r BrowseResult) encode(e *Encoder) {
	r.StatusCode.encode(e)
	e.WriteByteString(r.ContinuationPoint)
	WriteArray(e, r.References)
}
func decodeBrowseResult(d *Decoder) (BrowseResult, error) {
	var r BrowseResult
	var err error
	if r.StatusCode, err = decodeStatusCode(d); err != nil {
		return r, err
	}
	if r.ContinuationPoint, err = d.ReadByteString(); err != nil {
		return r, err
	}
	if r.References, err = ReadArray(d, decodeReferenceDescription); err != nil {
		return r, err
	}
	return r, nil
}

type BrowseRequest struct {
	RequestHeader                 RequestHeader
	View                          ViewDescription
	RequestedMaxReferencesPerNode uint32
	NodesToBrowse                 []BrowseDescription
}

func DecodeBrowseRequest(d *Decoder) (BrowseRequest, error) {
	var r BrowseRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.View, err = decodeViewDescription(d); err != nil {
		return r, err
	}
	if r.RequestedMaxReferencesPerNode, err = d.ReadUint32(); err != nil {
		return r, err
	}
	if r.NodesToBrowse, err = ReadArray(d, decodeBrowseDescription); err != nil {
		return r, err
	}
	return r, nil
}

type BrowseResponse struct {
	ResponseHeader ResponseHeader
	Results        []BrowseResult
}

func (r BrowseResponse) ByteLen() int { return r.ResponseHeader.byteLen() + ArrayByteLen(r.Results) }
func (r BrowseResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	WriteArray(e, r.Results)
}

type BrowseNextRequest struct {
	RequestHeader             RequestHeader
	ReleaseContinuationPoints bool
	ContinuationPoints        [][]byte
}

func DecodeBrowseNextRequest(d *Decoder) (BrowseNextRequest, error) {
	var r BrowseNextRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.ReleaseContinuationPoints, err = d.ReadBoolean(); err != nil {
		return r, err
	}
	n, err := d.ArrayLen()
	if err != nil {
		return r, err
	}
	if n >= 0 {
		r.ContinuationPoints = make([][]byte, n)
		for i := range r.ContinuationPoints {
			if r.ContinuationPoints[i], err = d.ReadByteString(); err != nil {
				return r, err
			}
		}
	}
	return r, nil
}

type BrowseNextResponse struct {
	ResponseHeader ResponseHeader
	Results        []BrowseResult
}

func (r BrowseNextResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + ArrayByteLen(r.Results)
}
func (r BrowseNextResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	WriteArray(e, r.Results)
}

// RelativePathElement is one hop of a RelativePath: a reference type to
// follow, direction, and the target browse name to match (OPC UA Part 4).
type RelativePathElement struct {
	ReferenceTypeId NodeId
	IsInverse       bool
	IncludeSubtypes bool
	TargetName      QualifiedName
}

func (e2 RelativePathElement) byteLen() int {
	return e2.ReferenceTypeId.byteLen() + 1 + 1 + e2.TargetName.byteLen()
}
func (e2 RelativePathElement) encode(e *Encoder) {
	e2.ReferenceTypeId.encode(e)
	e.WriteBoolean(e2.IsInverse)
	e.WriteBoolean(e2.IncludeSubtypes)
	e2.TargetName.encode(e)
}
func decodeRelativePathElement(d *Decoder) (RelativePathElement, error) {
	var r RelativePathElement
	var err error
	if r.ReferenceTypeId, err = decodeNodeId(d); err != nil {
		return r, err
	}
	if r.IsInverse, err = d.ReadBoolean(); err != nil {
		return r, err
	}
	if r.IncludeSubtypes, err = d.ReadBoolean(); err != nil {
		return r, err
	}
	if r.TargetName, err = decodeQualifiedName(d); err != nil {
		return r, err
	}
	return r, nil
}

// RelativePath is the sequence of elements find_nodes_relative_path walks
// (OPC UA Part 4).
type RelativePath struct {
	Elements []RelativePathElement
}

func (p RelativePath) byteLen() int      { return ArrayByteLen(p.Elements) }
func (p RelativePath) encode(e *Encoder) { WriteArray(e, p.Elements) }
func decodeRelativePath(d *Decoder) (RelativePath, error) {
	els, err := ReadArray(d, decodeRelativePathElement)
	return RelativePath{Elements: els}, err
}

// BrowsePath pairs a starting node with the RelativePath to resolve
// (TranslateBrowsePathsToNodeIds, OPC UA Part 4).
type BrowsePath struct {
	StartingNode NodeId
	RelativePath RelativePath
}

func (p BrowsePath) byteLen() int { return p.StartingNode.byteLen() + p.RelativePath.byteLen() }
func (p BrowsePath) encode(e *Encoder) {
	p.StartingNode.encode(e)
	p.RelativePath.encode(e)
}
func decodeBrowsePath(d *Decoder) (BrowsePath, error) {
	var p BrowsePath
	var err error
	if p.StartingNode, err = decodeNodeId(d); err != nil {
		return p, err
	}
	if p.RelativePath, err = decodeRelativePath(d); err != nil {
		return p, err
	}
	return p, nil
}

// BrowsePathTarget is one resolved target of a BrowsePath, with
// RemainingPathIndex set when the path continues into another server
// (unused here: always 0xFFFFFFFF, meaning "fully resolved locally").
type BrowsePathTarget struct {
	TargetId           ExpandedNodeId
	RemainingPathIndex uint32
}

func (t BrowsePathTarget) byteLen() int { return t.TargetId.byteLen() + 4 }
func (t BrowsePathTarget) encode(e *Encoder) {
	t.TargetId.encode(e)
	e.WriteUint32(t.RemainingPathIndex)
}

// BrowsePathResult is one BrowsePath's outcome.
type BrowsePathResult struct {
	StatusCode StatusCode
	Targets    []BrowsePathTarget
}

func (r BrowsePathResult) byteLen() int { return 4 + ArrayByteLen(r.Targets) }
func (r BrowsePathResult) encode(e *Encoder) {
	r.StatusCode.encode(e)
	WriteArray(e, r.Targets)
}

type TranslateBrowsePathsToNodeIdsRequest struct {
	RequestHeader RequestHeader
	BrowsePaths   []BrowsePath
}

func DecodeTranslateBrowsePathsToNodeIdsRequest(d *Decoder) (TranslateBrowsePathsToNodeIdsRequest, error) {
	var r TranslateBrowsePathsToNodeIdsRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.BrowsePaths, err = ReadArray(d, decodeBrowsePath); err != nil {
		return r, err
	}
	return r, nil
}

type TranslateBrowsePathsToNodeIdsResponse struct {
	ResponseHeader ResponseHeader
	Results        []BrowsePathResult
}

func (r TranslateBrowsePathsToNodeIdsResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + ArrayByteLen(r.Results)
}
func (r TranslateBrowsePathsToNodeIdsResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	WriteArray(e, r.Results)
}

// RegisterNodesRequest/Response implement a pass-through identity
// mapping: this server does not hand out optimized repeat-access
// handles, so registering returns the input NodeIds unchanged and
// unregistering is a no-op.
type RegisterNodesRequest struct {
	RequestHeader   RequestHeader
	NodesToRegister []NodeId
}

func DecodeRegisterNodesRequest(d *Decoder) (RegisterNodesRequest, error) {
	var r RegisterNodesRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.NodesToRegister, err = ReadArray(d, decodeNodeId); err != nil {
		return r, err
	}
	return r, nil
}

type RegisterNodesResponse struct {
	ResponseHeader    ResponseHeader
	RegisteredNodeIds []NodeId
}

func (r RegisterNodesResponse) ByteLen() int {
	return r.ResponseHeader.byteLen() + ArrayByteLen(r.RegisteredNodeIds)
}
func (r RegisterNodesResponse) Encode(e *Encoder) {
	r.ResponseHeader.encode(e)
	WriteArray(e, r.RegisteredNodeIds)
}

type UnregisterNodesRequest struct {
	RequestHeader     RequestHeader
	NodesToUnregister []NodeId
}

func DecodeUnregisterNodesRequest(d *Decoder) (UnregisterNodesRequest, error) {
	var r UnregisterNodesRequest
	var err error
	if r.RequestHeader, err = decodeRequestHeader(d); err != nil {
		return r, err
	}
	if r.NodesToUnregister, err = ReadArray(d, decodeNodeId); err != nil {
		return r, err
	}
	return r, nil
}

type UnregisterNodesResponse struct {
	ResponseHeader ResponseHeader
}

func (r UnregisterNodesResponse) ByteLen() int      { return r.ResponseHeader.byteLen() }
func (r UnregisterNodesResponse) Encode(e *Encoder) { r.ResponseHeader.encode(e) }
