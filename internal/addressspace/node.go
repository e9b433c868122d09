// Package addressspace holds the in-memory node graph a server exposes:
// lookup by NodeId, forward/inverse reference traversal, relative-path
// resolution, and the bootstrap of the standard Root/Objects/Types/Views
// hierarchy (OPC UA Part 3).
package addressspace

import (
	"github.com/ironspan/opcuad/internal/ua"
)

// Node is one address-space entity. OPC UA Part 3 models eight distinct
// node classes, each with its own attribute set; Go has no sum-type sugar
// for that, so this is one struct carrying every class's attributes with
// NodeClass as the discriminant, the same flattening the codec's Variant
// uses for its tagged union (see internal/ua/variant.go).
type Node struct {
	NodeId        ua.NodeId
	NodeClass     ua.NodeClass
	BrowseName    ua.QualifiedName
	DisplayName   ua.LocalizedText
	Description   ua.LocalizedText
	WriteMask     uint32
	UserWriteMask uint32

	// Variable / VariableType only.
	Value                   ua.DataValue
	DataType                ua.NodeId
	ValueRank               int32
	ArrayDimensions         []uint32
	AccessLevel             byte
	UserAccessLevel         byte
	MinimumSamplingInterval float64
	Historizing             bool

	// Method only.
	Executable     bool
	UserExecutable bool

	// ReferenceType only: the name of the reference read in the inverse
	// direction (unused beyond bootstrap, kept for completeness).
	InverseName ua.LocalizedText
}

// Reference is one directed edge as stored per OPC UA Part 3: the address
// space keeps forward references on the source and a parallel inverse
// index on the target, both represented with this same struct shape
// (IsInverse distinguishes which index a Reference came from when
// returned by FindReferencesByDirection).
type Reference struct {
	ReferenceTypeId ua.NodeId
	TargetId        ua.NodeId
	IsInverse       bool
}

func objectNode(ns uint16, numeric uint32, browseName string, displayName string) *Node {
	id := ua.NewNumericNodeId(ns, numeric)
	return &Node{
		NodeId:      id,
		NodeClass:   ua.NodeClassObject,
		BrowseName:  ua.NewQualifiedName(ns, browseName),
		DisplayName: ua.NewLocalizedText("en", displayName),
	}
}

func referenceTypeNode(numeric uint32, browseName, inverseName string) *Node {
	id := ua.NewNumericNodeId(0, numeric)
	n := &Node{
		NodeId:      id,
		NodeClass:   ua.NodeClassReferenceType,
		BrowseName:  ua.NewQualifiedName(0, browseName),
		DisplayName: ua.NewLocalizedText("en", browseName),
	}
	if inverseName != "" {
		n.InverseName = ua.NewLocalizedText("en", inverseName)
	}
	return n
}
