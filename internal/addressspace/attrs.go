package addressspace

import "github.com/ironspan/opcuad/internal/ua"

// ReadAttribute implements the node half of the Attribute service
// (OPC UA Part 4 Read) and the sampling half of monitored-item ticks
// (OPC UA Part 4): resolve one (node_id, attribute_id) pair to a DataValue,
// stamping the server timestamp the way a fresh read always does.
func (as *AddressSpace) ReadAttribute(nodeId ua.NodeId, attr ua.AttributeId) ua.DataValue {
	n, ok := as.FindNode(nodeId)
	if !ok {
		return ua.DataValue{HasStatus: true, Status: ua.BadNodeIdUnknown}
	}

	as.mu.RLock()
	defer as.mu.RUnlock()

	var v ua.Variant
	switch attr {
	case ua.AttributeNodeId:
		v = ua.NewVariant(n.NodeId)
	case ua.AttributeNodeClass:
		v = ua.NewVariant(int32(n.NodeClass))
	case ua.AttributeBrowseName:
		v = ua.NewVariant(n.BrowseName)
	case ua.AttributeDisplayName:
		v = ua.NewVariant(n.DisplayName)
	case ua.AttributeDescription:
		v = ua.NewVariant(n.Description)
	case ua.AttributeWriteMask:
		v = ua.NewVariant(n.WriteMask)
	case ua.AttributeUserWriteMask:
		v = ua.NewVariant(n.UserWriteMask)
	case ua.AttributeValue:
		if n.NodeClass != ua.NodeClassVariable && n.NodeClass != ua.NodeClassVariableType {
			return ua.DataValue{HasStatus: true, Status: ua.BadAttributeIdInvalid}
		}
		dv := n.Value
		if nodeId.Equal(CurrentTimeNodeId) {
			dv = ua.NewDataValue(ua.NewVariant(ua.Now()))
		}
		dv.HasServerTimestamp = true
		dv.ServerTimestamp = ua.Now()
		return dv
	case ua.AttributeDataType:
		v = ua.NewVariant(n.DataType)
	case ua.AttributeValueRank:
		v = ua.NewVariant(n.ValueRank)
	case ua.AttributeArrayDimensions:
		dims := make([]interface{}, len(n.ArrayDimensions))
		for i, d := range n.ArrayDimensions {
			dims[i] = d
		}
		v = ua.Variant{Type: ua.TypeUInt32, IsArray: true, Array: dims}
	case ua.AttributeAccessLevel:
		v = ua.NewVariant(n.AccessLevel)
	case ua.AttributeUserAccessLevel:
		v = ua.NewVariant(n.UserAccessLevel)
	case ua.AttributeMinimumSamplingInterval:
		v = ua.NewVariant(n.MinimumSamplingInterval)
	case ua.AttributeHistorizing:
		v = ua.NewVariant(n.Historizing)
	case ua.AttributeExecutable:
		if n.NodeClass != ua.NodeClassMethod {
			return ua.DataValue{HasStatus: true, Status: ua.BadAttributeIdInvalid}
		}
		v = ua.NewVariant(n.Executable)
	case ua.AttributeUserExecutable:
		if n.NodeClass != ua.NodeClassMethod {
			return ua.DataValue{HasStatus: true, Status: ua.BadAttributeIdInvalid}
		}
		v = ua.NewVariant(n.UserExecutable)
	default:
		return ua.DataValue{HasStatus: true, Status: ua.BadAttributeIdInvalid}
	}

	dv := ua.NewDataValue(v)
	dv.HasServerTimestamp = true
	dv.ServerTimestamp = ua.Now()
	return dv
}

// WriteAttribute implements OPC UA Part 4 Write. Only AttributeValue is
// writable on a Variable in this server; every other attribute is
// read-only metadata set at node-construction time, matching the access
// level model OPC UA Part 3 describes for Variable nodes.
func (as *AddressSpace) WriteAttribute(nodeId ua.NodeId, attr ua.AttributeId, value ua.DataValue) ua.StatusCode {
	as.mu.Lock()
	n, ok := as.nodes[nodeId.Key().(string)]
	if !ok {
		as.mu.Unlock()
		return ua.BadNodeIdUnknown
	}
	if attr != ua.AttributeValue {
		as.mu.Unlock()
		return ua.BadNotWritable
	}
	if n.NodeClass != ua.NodeClassVariable {
		as.mu.Unlock()
		return ua.BadNotWritable
	}
	const accessLevelCurrentWrite = 0x02
	if n.AccessLevel&accessLevelCurrentWrite == 0 {
		as.mu.Unlock()
		return ua.BadNotWritable
	}
	n.Value = value
	as.mu.Unlock()
	as.bumpVersion()
	return ua.Good
}
