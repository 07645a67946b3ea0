package aps

import "github.com/nugget/zigbeesim/internal/zigbee/binding"

// GroupConfirmParams is the result of APSME-ADD-GROUP,
// APSME-REMOVE-GROUP, or APSME-REMOVE-ALL-GROUPS.request.
type GroupConfirmParams struct {
	Status   ConfirmStatus
	GroupID  uint16
	Endpoint uint8
}

// AddGroup implements APSME-ADD-GROUP.request (§4.6). Asynchronous,
// like every APSME/NLME primitive: the result reaches the registered
// confirm callback, not a return value.
func (s *Stack) AddGroup(groupID uint16, endpoint uint8) {
	s.nwk.ScheduleNow(func() {
		status := TableFull
		if s.groups.Add(groupID, endpoint) {
			status = Success
		}
		s.groupConfirm(GroupConfirmParams{Status: status, GroupID: groupID, Endpoint: endpoint})
	})
}

// RemoveGroup implements APSME-REMOVE-GROUP.request (§4.6).
func (s *Stack) RemoveGroup(groupID uint16, endpoint uint8) {
	s.nwk.ScheduleNow(func() {
		status := InvalidGroup
		if s.groups.Remove(groupID, endpoint) {
			status = Success
		}
		s.groupConfirm(GroupConfirmParams{Status: status, GroupID: groupID, Endpoint: endpoint})
	})
}

// RemoveAllGroups implements APSME-REMOVE-ALL-GROUPS.request (§4.6).
func (s *Stack) RemoveAllGroups(endpoint uint8) {
	s.nwk.ScheduleNow(func() {
		if endpoint < 1 {
			s.groupConfirm(GroupConfirmParams{Status: InvalidParameter, Endpoint: endpoint})
			return
		}
		status := InvalidParameter
		if s.groups.RemoveAllMemberships(endpoint) {
			status = Success
		}
		s.groupConfirm(GroupConfirmParams{Status: status, Endpoint: endpoint})
	})
}

func (s *Stack) groupConfirm(c GroupConfirmParams) {
	if s.groupConfirmCb != nil {
		s.groupConfirmCb(c)
	}
}

func validEndpoints(srcEndpoint, dstEndpoint uint8) bool {
	return srcEndpoint >= 1 && srcEndpoint <= 254 && dstEndpoint >= 1
}

// BindConfirmParams is the result of APSME-BIND.request or
// APSME-UNBIND.request.
type BindConfirmParams struct {
	Status ConfirmStatus
}

// Bind implements APSME-BIND.request (§4.6, §4.7). Asynchronous: the
// result reaches the registered confirm callback.
func (s *Stack) Bind(src binding.Source, dst binding.Destination) {
	s.nwk.ScheduleNow(func() {
		if !validEndpoints(src.Endpoint, endpointOf(dst)) {
			s.bindConfirm(BindConfirmParams{Status: IllegalRequest})
			return
		}
		switch s.bindings.Bind(src, dst) {
		case binding.Bound:
			s.bindConfirm(BindConfirmParams{Status: Success})
		case binding.EntryExists:
			s.bindConfirm(BindConfirmParams{Status: InvalidBinding})
		default:
			s.bindConfirm(BindConfirmParams{Status: TableFull})
		}
	})
}

// Unbind implements APSME-UNBIND.request (§4.6, §4.7).
func (s *Stack) Unbind(src binding.Source, dst binding.Destination) {
	s.nwk.ScheduleNow(func() {
		if !validEndpoints(src.Endpoint, endpointOf(dst)) {
			s.bindConfirm(BindConfirmParams{Status: IllegalRequest})
			return
		}
		switch s.bindings.Unbind(src, dst) {
		case binding.Unbound:
			s.bindConfirm(BindConfirmParams{Status: Success})
		default:
			s.bindConfirm(BindConfirmParams{Status: InvalidBinding})
		}
	})
}

func (s *Stack) bindConfirm(c BindConfirmParams) {
	if s.bindConfirmCb != nil {
		s.bindConfirmCb(c)
	}
}

// endpointOf returns the endpoint validated against the dst-endpoint
// >= 1 rule (§4.6): a GROUP destination has no endpoint of its own to
// validate, so it always passes.
func endpointOf(dst binding.Destination) uint8 {
	if dst.Mode == binding.Group {
		return 1
	}
	return dst.Endpoint
}
