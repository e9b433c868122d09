package addressspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironspan/opcuad/internal/ua"
)

func TestBootstrapBrowseRoot(t *testing.T) {
	as := New(nil)

	refs, _ := as.FindReferencesByDirection(RootFolder, ua.BrowseForward, nil, false)
	var names []string
	for _, r := range refs {
		n, ok := as.FindNode(r.TargetId)
		require.True(t, ok)
		names = append(names, n.BrowseName.Name)
	}
	assert.Contains(t, names, "Objects")
	assert.Contains(t, names, "Types")
	assert.Contains(t, names, "Views")
}

func TestAddNodeRejectsDuplicateId(t *testing.T) {
	as := New(nil)
	n := objectNode(1, 1000, "Widget", "Widget")
	require.NoError(t, as.AddNode(n))
	err := as.AddNode(objectNode(1, 1000, "Other", "Other"))
	assert.Error(t, err)
}

func TestFindReferencesByDirectionOrdersForwardThenInverse(t *testing.T) {
	as := New(nil)
	parent := objectNode(1, 2000, "Parent", "Parent")
	child := objectNode(1, 2001, "Child", "Child")
	require.NoError(t, as.AddNode(parent))
	require.NoError(t, as.AddNode(child))
	require.NoError(t, as.AddReference(parent.NodeId, child.NodeId, OrganizesRefType))

	refs, inverseStart := as.FindReferencesByDirection(child.NodeId, ua.BrowseBoth, nil, false)
	require.Len(t, refs, 1)
	assert.Equal(t, 0, inverseStart)
	assert.True(t, refs[0].IsInverse)
	assert.True(t, refs[0].TargetId.Equal(parent.NodeId))
}

func TestIncludeSubtypesMatchesHasComponentUnderAggregates(t *testing.T) {
	as := New(nil)
	parent := objectNode(1, 3000, "Parent", "Parent")
	child := objectNode(1, 3001, "Child", "Child")
	require.NoError(t, as.AddNode(parent))
	require.NoError(t, as.AddNode(child))
	require.NoError(t, as.AddReference(parent.NodeId, child.NodeId, HasComponentRefType))

	filter := AggregatesRefType
	refs := as.FindReferencesFrom(parent.NodeId, &filter, true)
	require.Len(t, refs, 1)
	assert.True(t, refs[0].ReferenceTypeId.Equal(HasComponentRefType))

	refsNoSubtypes := as.FindReferencesFrom(parent.NodeId, &filter, false)
	assert.Empty(t, refsNoSubtypes)
}

func TestFindNodesRelativePathWalksOrganizes(t *testing.T) {
	as := New(nil)
	path := ua.RelativePath{Elements: []ua.RelativePathElement{
		{ReferenceTypeId: OrganizesRefType, TargetName: ua.NewQualifiedName(0, "Objects")},
	}}
	targets, err := as.FindNodesRelativePath(RootFolder, path)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.True(t, targets[0].Equal(ObjectsFolder))
}

func TestFindNodesRelativePathDeadEndReturnsBadNoMatch(t *testing.T) {
	as := New(nil)
	path := ua.RelativePath{Elements: []ua.RelativePathElement{
		{ReferenceTypeId: OrganizesRefType, TargetName: ua.NewQualifiedName(0, "DoesNotExist")},
	}}
	_, err := as.FindNodesRelativePath(RootFolder, path)
	require.Error(t, err)
	svcErr, ok := err.(*ua.ServiceError)
	require.True(t, ok)
	assert.Equal(t, ua.BadNoMatch, svcErr.Code)
}

func TestVersionBumpsOnMutation(t *testing.T) {
	as := New(nil)
	before := as.Version()
	require.NoError(t, as.AddNode(objectNode(1, 4000, "X", "X")))
	assert.Greater(t, as.Version(), before)
}

func TestRemoveNodeDropsReferences(t *testing.T) {
	as := New(nil)
	parent := objectNode(1, 5000, "Parent", "Parent")
	child := objectNode(1, 5001, "Child", "Child")
	require.NoError(t, as.AddNode(parent))
	require.NoError(t, as.AddNode(child))
	require.NoError(t, as.AddReference(parent.NodeId, child.NodeId, OrganizesRefType))

	as.RemoveNode(child.NodeId)
	_, ok := as.FindNode(child.NodeId)
	assert.False(t, ok)

	refs, _ := as.FindReferencesByDirection(parent.NodeId, ua.BrowseForward, nil, false)
	assert.Empty(t, refs)
}
