package addressspace

import "github.com/ironspan/opcuad/internal/ua"

// Well-known namespace-0 NodeIds this server's bootstrap hierarchy needs,
// numbered per the OPC UA Part 3/5 standard information model (OPC UA Part 3
// bootstrap requirement: Browse(Root)
// must surface Objects/Types/Views).
var (
	RootFolder    = ua.NewNumericNodeId(0, 84)
	ObjectsFolder = ua.NewNumericNodeId(0, 85)
	TypesFolder   = ua.NewNumericNodeId(0, 86)
	ViewsFolder   = ua.NewNumericNodeId(0, 87)

	ReferencesRefType             = ua.NewNumericNodeId(0, 31)
	HierarchicalReferencesRefType = ua.NewNumericNodeId(0, 33)
	NonHierarchicalRefType        = ua.NewNumericNodeId(0, 32)
	HasChildRefType               = ua.NewNumericNodeId(0, 34)
	OrganizesRefType              = ua.NewNumericNodeId(0, 35)
	HasTypeDefinitionRefType      = ua.NewNumericNodeId(0, 40)
	HasSubtypeRefType             = ua.NewNumericNodeId(0, 45)
	AggregatesRefType             = ua.NewNumericNodeId(0, 44)
	HasComponentRefType           = ua.NewNumericNodeId(0, 47)
	HasPropertyRefType            = ua.NewNumericNodeId(0, 46)

	FolderTypeId = ua.NewNumericNodeId(0, 61)

	// CurrentTimeNodeId is the standard Server/ServerStatus/CurrentTime
	// variable (Read must return a value within ±2s
	// of wall clock). This server exposes it directly under Objects
	// rather than modelling the full Server object, since nothing else
	// in this server needs ServerStatus's other fields.
	CurrentTimeNodeId = ua.NewNumericNodeId(0, 2258)

	BaseDataVariableTypeId = ua.NewNumericNodeId(0, 63)
)
