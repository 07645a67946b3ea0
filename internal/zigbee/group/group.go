// Package group implements the Zigbee group table (§4.4): a map from
// 16-bit group id to the set of local endpoint ids that belong to it.
// It is shared between NWK, which consults it for multicast forwarding
// decisions, and APS, which owns membership and consults it for
// groupcast indication fan-out (§5: both run on the same event-loop
// thread, so no lock is needed).
package group

import "errors"

// MaxGroups bounds the number of distinct group ids a node may belong
// to (§3).
const MaxGroups = 256

// ErrTableFull names the condition under which Add reports false: the
// node already belongs to MaxGroups distinct groups and the requested
// group id is a new one. Add itself returns a bool, not this error.
var ErrTableFull = errors.New("group: table full")

// Table is a node's group membership table.
type Table struct {
	members map[uint16]map[uint8]struct{}
}

// New creates an empty group table.
func New() *Table {
	return &Table{members: make(map[uint16]map[uint8]struct{})}
}

// Add records that endpoint belongs to groupID, returning false only
// when the table is already at MaxGroups and groupID is not among
// them (§4.4).
func (t *Table) Add(groupID uint16, endpoint uint8) bool {
	set, exists := t.members[groupID]
	if !exists {
		if len(t.members) >= MaxGroups {
			return false
		}
		set = make(map[uint8]struct{})
		t.members[groupID] = set
	}
	set[endpoint] = struct{}{}
	return true
}

// Remove drops endpoint's membership in groupID. Removing the last
// endpoint deletes the group id entry entirely (§4.4).
func (t *Table) Remove(groupID uint16, endpoint uint8) bool {
	set, ok := t.members[groupID]
	if !ok {
		return false
	}
	if _, ok := set[endpoint]; !ok {
		return false
	}
	delete(set, endpoint)
	if len(set) == 0 {
		delete(t.members, groupID)
	}
	return true
}

// RemoveAllMemberships drops endpoint from every group it belongs to,
// returning true if it was a member of at least one.
func (t *Table) RemoveAllMemberships(endpoint uint8) bool {
	removed := false
	for groupID, set := range t.members {
		if _, ok := set[endpoint]; ok {
			delete(set, endpoint)
			removed = true
			if len(set) == 0 {
				delete(t.members, groupID)
			}
		}
	}
	return removed
}

// IsGroupMember reports whether this node has any endpoint belonging
// to groupID.
func (t *Table) IsGroupMember(groupID uint16) bool {
	_, ok := t.members[groupID]
	return ok
}

// LookupEndpoints returns every local endpoint that belongs to
// groupID.
func (t *Table) LookupEndpoints(groupID uint16) []uint8 {
	set, ok := t.members[groupID]
	if !ok {
		return nil
	}
	out := make([]uint8, 0, len(set))
	for ep := range set {
		out = append(out, ep)
	}
	return out
}

// Len returns the number of distinct group ids currently held.
func (t *Table) Len() int { return len(t.members) }
