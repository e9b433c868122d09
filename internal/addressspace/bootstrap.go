package addressspace

import "github.com/ironspan/opcuad/internal/ua"

// bootstrap populates the minimal standard information model every
// client expects: Browse(Root) must surface at least Objects, Types and
// Views, reachable via Organizes, and reference-type filtering with
// include_subtypes must see a real HasSubtype hierarchy. Numbering and
// hierarchy shape follow the OPC UA Part 3/5 ReferenceType tree (References
// at the root, splitting into Hierarchical/NonHierarchical, further into
// HasChild/Organizes and Aggregates/HasComponent/HasProperty). There is
// no NodeSet2.xml import pipeline here; the hierarchy is reproduced by
// hand from the standard.
func bootstrap(as *AddressSpace) {
	mustAdd := func(n *Node) {
		if err := as.AddNode(n); err != nil {
			panic(err)
		}
	}
	mustRef := func(source, target, refType ua.NodeId) {
		if err := as.AddReference(source, target, refType); err != nil {
			panic(err)
		}
	}

	mustAdd(referenceTypeNode(31, "References", ""))
	mustAdd(referenceTypeNode(33, "HierarchicalReferences", ""))
	mustAdd(referenceTypeNode(32, "NonHierarchicalReferences", ""))
	mustAdd(referenceTypeNode(34, "HasChild", ""))
	mustAdd(referenceTypeNode(35, "Organizes", "OrganizedBy"))
	mustAdd(referenceTypeNode(40, "HasTypeDefinition", "TypeDefinitionOf"))
	mustAdd(referenceTypeNode(44, "Aggregates", ""))
	mustAdd(referenceTypeNode(45, "HasSubtype", "HasSupertype"))
	mustAdd(referenceTypeNode(47, "HasComponent", "ComponentOf"))
	mustAdd(referenceTypeNode(46, "HasProperty", "PropertyOf"))

	mustRef(ReferencesRefType, HierarchicalReferencesRefType, HasSubtypeRefType)
	mustRef(ReferencesRefType, NonHierarchicalRefType, HasSubtypeRefType)
	mustRef(HierarchicalReferencesRefType, HasChildRefType, HasSubtypeRefType)
	mustRef(HierarchicalReferencesRefType, OrganizesRefType, HasSubtypeRefType)
	mustRef(NonHierarchicalRefType, HasTypeDefinitionRefType, HasSubtypeRefType)
	mustRef(HasChildRefType, AggregatesRefType, HasSubtypeRefType)
	mustRef(AggregatesRefType, HasComponentRefType, HasSubtypeRefType)
	mustRef(AggregatesRefType, HasPropertyRefType, HasSubtypeRefType)

	folderType := &Node{
		NodeId:      FolderTypeId,
		NodeClass:   ua.NodeClassObjectType,
		BrowseName:  ua.NewQualifiedName(0, "FolderType"),
		DisplayName: ua.NewLocalizedText("en", "FolderType"),
	}
	mustAdd(folderType)

	root := objectNode(0, 84, "Root", "Root")
	objects := objectNode(0, 85, "Objects", "Objects")
	types := objectNode(0, 86, "Types", "Types")
	views := objectNode(0, 87, "Views", "Views")
	mustAdd(root)
	mustAdd(objects)
	mustAdd(types)
	mustAdd(views)

	mustRef(RootFolder, ObjectsFolder, OrganizesRefType)
	mustRef(RootFolder, TypesFolder, OrganizesRefType)
	mustRef(RootFolder, ViewsFolder, OrganizesRefType)

	mustRef(ObjectsFolder, FolderTypeId, HasTypeDefinitionRefType)
	mustRef(TypesFolder, FolderTypeId, HasTypeDefinitionRefType)
	mustRef(ViewsFolder, FolderTypeId, HasTypeDefinitionRefType)
	mustRef(RootFolder, FolderTypeId, HasTypeDefinitionRefType)

	baseDataVariableType := &Node{
		NodeId:      BaseDataVariableTypeId,
		NodeClass:   ua.NodeClassVariableType,
		BrowseName:  ua.NewQualifiedName(0, "BaseDataVariableType"),
		DisplayName: ua.NewLocalizedText("en", "BaseDataVariableType"),
	}
	mustAdd(baseDataVariableType)

	currentTime := &Node{
		NodeId:          CurrentTimeNodeId,
		NodeClass:       ua.NodeClassVariable,
		BrowseName:      ua.NewQualifiedName(0, "CurrentTime"),
		DisplayName:     ua.NewLocalizedText("en", "CurrentTime"),
		Value:           ua.NewDataValue(ua.NewVariant(ua.Now())),
		DataType:        ua.NewNumericNodeId(0, 13),
		ValueRank:       -1,
		AccessLevel:     0x01,
		UserAccessLevel: 0x01,
	}
	mustAdd(currentTime)
	mustRef(ObjectsFolder, CurrentTimeNodeId, HasComponentRefType)
	mustRef(CurrentTimeNodeId, BaseDataVariableTypeId, HasTypeDefinitionRefType)
}
