package addressspace

import "github.com/ironspan/opcuad/internal/ua"

// AddObject implements OPC UA Part 3's add_object: insert a new Object node
// and link it to parent under referenceType (typically Organizes or
// HasComponent).
func (as *AddressSpace) AddObject(node *Node, parent ua.NodeId, referenceType ua.NodeId) error {
	node.NodeClass = ua.NodeClassObject
	if err := as.AddNode(node); err != nil {
		return err
	}
	return as.AddReference(parent, node.NodeId, referenceType)
}

// AddVariable implements OPC UA Part 3's add_variable.
func (as *AddressSpace) AddVariable(node *Node, parent ua.NodeId, referenceType ua.NodeId) error {
	node.NodeClass = ua.NodeClassVariable
	if err := as.AddNode(node); err != nil {
		return err
	}
	return as.AddReference(parent, node.NodeId, referenceType)
}

// AddMethod implements OPC UA Part 3's add_method.
func (as *AddressSpace) AddMethod(node *Node, parent ua.NodeId, referenceType ua.NodeId) error {
	node.NodeClass = ua.NodeClassMethod
	if err := as.AddNode(node); err != nil {
		return err
	}
	return as.AddReference(parent, node.NodeId, referenceType)
}
