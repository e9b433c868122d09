package addressspace

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ironspan/opcuad/internal/ua"
)

// AddressSpace is the in-memory directed labelled multigraph of OPC UA Part 3:
// node lookup by NodeId is a map access (O(1) expected); references are
// kept per source node with a parallel inverse index per target node, the
// whole guarded by a read-dominant sync.RWMutex. Writes bump a version
// stamp; readers hold the read lock for the whole of a Browse or Read.
type AddressSpace struct {
	mu sync.RWMutex

	nodes       map[string]*Node
	forwardRefs map[string][]Reference
	inverseRefs map[string][]Reference

	subtypeCache map[string]map[string]bool

	lastModified uint64
	logger       *zap.Logger
}

func New(logger *zap.Logger) *AddressSpace {
	if logger == nil {
		logger = zap.NewNop()
	}
	as := &AddressSpace{
		nodes:        make(map[string]*Node),
		forwardRefs:  make(map[string][]Reference),
		inverseRefs:  make(map[string][]Reference),
		subtypeCache: make(map[string]map[string]bool),
		logger:       logger,
	}
	bootstrap(as)
	return as
}

// Version returns the current mutation stamp; continuation points cache
// this to detect address-space changes underneath a paged Browse
// (OPC UA Part 4).
func (as *AddressSpace) Version() uint64 { return atomic.LoadUint64(&as.lastModified) }

func (as *AddressSpace) bumpVersion() { atomic.AddUint64(&as.lastModified, 1) }

// FindNode implements OPC UA Part 3's find_node.
func (as *AddressSpace) FindNode(id ua.NodeId) (*Node, bool) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	n, ok := as.nodes[id.Key().(string)]
	return n, ok
}

// AddNode inserts a new node, rejecting a NodeId already present
// (OPC UA Part 3: "A node_id is unique within the address space").
func (as *AddressSpace) AddNode(n *Node) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	key := n.NodeId.Key().(string)
	if _, exists := as.nodes[key]; exists {
		return fmt.Errorf("addressspace: node %s already exists", n.NodeId)
	}
	as.nodes[key] = n
	as.bumpVersion()
	return nil
}

// RemoveNode drops a node and every reference naming it as source or
// target. Per OPC UA Part 3's monitored-item invariant, a removed node does not
// retroactively invalidate anything holding its NodeId — callers keep
// reporting BadNodeIdUnknown against it going forward via FindNode.
func (as *AddressSpace) RemoveNode(id ua.NodeId) {
	as.mu.Lock()
	defer as.mu.Unlock()
	key := id.Key().(string)
	delete(as.nodes, key)
	delete(as.forwardRefs, key)
	delete(as.inverseRefs, key)
	dropTarget := func(m map[string][]Reference) {
		for k, refs := range m {
			kept := make([]Reference, 0, len(refs))
			for _, r := range refs {
				if !r.TargetId.Equal(id) {
					kept = append(kept, r)
				}
			}
			m[k] = kept
		}
	}
	dropTarget(as.forwardRefs)
	dropTarget(as.inverseRefs)
	as.bumpVersion()
}

// AddReference links source->target under referenceTypeId, recording the
// forward edge on source and the inverse edge on target (OPC UA Part 3).
func (as *AddressSpace) AddReference(sourceId, targetId, referenceTypeId ua.NodeId) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	srcKey := sourceId.Key().(string)
	dstKey := targetId.Key().(string)
	if _, ok := as.nodes[srcKey]; !ok {
		return fmt.Errorf("addressspace: source node %s not found", sourceId)
	}
	if _, ok := as.nodes[dstKey]; !ok {
		return fmt.Errorf("addressspace: target node %s not found", targetId)
	}
	if referenceTypeId.Equal(ua.NullNodeId) {
		return fmt.Errorf("addressspace: reference type must not be null")
	}

	as.forwardRefs[srcKey] = append(as.forwardRefs[srcKey], Reference{
		ReferenceTypeId: referenceTypeId,
		TargetId:        targetId,
		IsInverse:       false,
	})
	as.inverseRefs[dstKey] = append(as.inverseRefs[dstKey], Reference{
		ReferenceTypeId: referenceTypeId,
		TargetId:        sourceId,
		IsInverse:       true,
	})

	if referenceTypeId.Equal(HasSubtypeRefType) {
		as.subtypeCache = make(map[string]map[string]bool)
	}
	as.bumpVersion()
	return nil
}

// FindReferencesFrom implements OPC UA Part 3's find_references_from: every
// forward reference from node_id, optionally filtered to one reference
// type (and its subtypes).
func (as *AddressSpace) FindReferencesFrom(nodeId ua.NodeId, typeFilter *ua.NodeId, includeSubtypes bool) []Reference {
	as.mu.RLock()
	defer as.mu.RUnlock()
	refs := as.forwardRefs[nodeId.Key().(string)]
	return as.filterByType(refs, typeFilter, includeSubtypes)
}

// FindReferencesByDirection implements OPC UA Part 3's
// find_references_by_direction: forward references first, then inverse,
// with inverseStartIndex marking the boundary.
func (as *AddressSpace) FindReferencesByDirection(nodeId ua.NodeId, dir ua.BrowseDirection, typeFilter *ua.NodeId, includeSubtypes bool) (refs []Reference, inverseStartIndex int) {
	as.mu.RLock()
	defer as.mu.RUnlock()

	key := nodeId.Key().(string)
	var forward, inverse []Reference
	if dir == ua.BrowseForward || dir == ua.BrowseBoth {
		forward = as.filterByType(as.forwardRefs[key], typeFilter, includeSubtypes)
	}
	if dir == ua.BrowseInverse || dir == ua.BrowseBoth {
		inverse = as.filterByType(as.inverseRefs[key], typeFilter, includeSubtypes)
	}

	refs = make([]Reference, 0, len(forward)+len(inverse))
	refs = append(refs, forward...)
	inverseStartIndex = len(refs)
	refs = append(refs, inverse...)
	return refs, inverseStartIndex
}

func (as *AddressSpace) filterByType(refs []Reference, typeFilter *ua.NodeId, includeSubtypes bool) []Reference {
	if typeFilter == nil || typeFilter.IsNull() {
		out := make([]Reference, len(refs))
		copy(out, refs)
		return out
	}
	out := make([]Reference, 0, len(refs))
	for _, r := range refs {
		if r.ReferenceTypeId.Equal(*typeFilter) {
			out = append(out, r)
			continue
		}
		if includeSubtypes && as.isSubtypeOfLocked(r.ReferenceTypeId, *typeFilter) {
			out = append(out, r)
		}
	}
	return out
}

// isSubtypeOfLocked reports whether candidate is a (possibly transitive)
// HasSubtype descendant of root, per OPC UA Part 3's subtype-closure caching
// requirement. Caller must hold at least as.mu.RLock.
func (as *AddressSpace) isSubtypeOfLocked(candidate, root ua.NodeId) bool {
	rootKey := root.Key().(string)
	closure, ok := as.subtypeCache[rootKey]
	if !ok {
		closure = as.computeSubtypeClosure(root)
		as.subtypeCache[rootKey] = closure
	}
	return closure[candidate.Key().(string)]
}

// computeSubtypeClosure walks forward HasSubtype edges from root and
// returns every reachable type's key (OPC UA Part 3: "implementations
// maintain a cached subtype set per reference type, invalidated on
// type-hierarchy mutation" — invalidation here is the blunt
// whole-cache-clear in AddReference above).
func (as *AddressSpace) computeSubtypeClosure(root ua.NodeId) map[string]bool {
	closure := make(map[string]bool)
	queue := []ua.NodeId{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ref := range as.forwardRefs[cur.Key().(string)] {
			if !ref.ReferenceTypeId.Equal(HasSubtypeRefType) {
				continue
			}
			key := ref.TargetId.Key().(string)
			if closure[key] {
				continue
			}
			closure[key] = true
			queue = append(queue, ref.TargetId)
		}
	}
	return closure
}

// FindNodesRelativePath implements OPC UA Part 3's find_nodes_relative_path:
// walk elements[] hop by hop, matching references by
// (reference_type_id, include_subtypes, is_inverse) and the target node's
// browse name, producing all targets at the final step.
func (as *AddressSpace) FindNodesRelativePath(start ua.NodeId, path ua.RelativePath) ([]ua.NodeId, error) {
	current := []ua.NodeId{start}
	for _, elem := range path.Elements {
		var next []ua.NodeId
		for _, nodeId := range current {
			dir := ua.BrowseForward
			if elem.IsInverse {
				dir = ua.BrowseInverse
			}
			refType := elem.ReferenceTypeId
			refs, _ := as.FindReferencesByDirection(nodeId, dir, &refType, elem.IncludeSubtypes)
			for _, ref := range refs {
				target, ok := as.FindNode(ref.TargetId)
				if !ok {
					continue
				}
				if target.BrowseName == elem.TargetName {
					next = append(next, ref.TargetId)
				}
			}
		}
		if len(next) == 0 {
			return nil, ua.BadNoMatch.AsError()
		}
		current = next
	}
	return current, nil
}
