package nwk

import (
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
	"github.com/nugget/zigbeesim/internal/zigbee/tables"
)

// NetworkFormationParams is the parameter set of
// NLME-NETWORK-FORMATION.request (§4.5), coordinator-only.
type NetworkFormationParams struct {
	ChannelList []int
	PanID       nwkaddr.PanID
	BeaconOrder int
}

// NetworkFormationConfirmParams is the result of network formation.
type NetworkFormationConfirmParams struct {
	Status ConfirmStatus
	PanID  nwkaddr.PanID
}

// NetworkFormation implements NLME-NETWORK-FORMATION.request: a
// coordinator picks a PAN id, assigns itself address 0x0000, and
// records its own ext-PAN-id as the network's (§4.5). Channel
// scanning/selection is not modeled beyond recording the requested
// channel list; MAC/PHY channel access is out of scope (§1). Posts
// the work on the kernel and reports the result to the registered
// confirm callback, like every other NLME/NLDE primitive (§4.5
// "Primitives (request/confirm/indication) ... all are asynchronous").
func (s *Stack) NetworkFormation(params NetworkFormationParams) {
	s.sim.ScheduleNow(func() {
		if s.deviceType != nwkaddr.Coordinator {
			s.networkFormationConfirm(NetworkFormationConfirmParams{Status: NotPermitted})
			return
		}
		s.selfAddr = 0x0000
		s.extPanID = nwkaddr.ExtPanID(s.selfExtAddr)
		s.panID = params.PanID
		s.panIDs.Update(s.extPanID, s.panID)
		s.mac.SetShortAddress(s.selfAddr)
		s.networkFormationConfirm(NetworkFormationConfirmParams{Status: Success, PanID: s.panID})
	})
}

func (s *Stack) networkFormationConfirm(c NetworkFormationConfirmParams) {
	if s.networkFormationCb != nil {
		s.networkFormationCb(c)
	}
}

// NetworkDiscoveryResult describes one network found by an active
// scan (§4.5 "NLME-NETWORK-DISCOVERY").
type NetworkDiscoveryResult struct {
	ExtPanID       nwkaddr.ExtPanID
	PanID          nwkaddr.PanID
	LogicalChannel int
	StackProfile   int
	BeaconOrder    int
	PermitJoining  bool
}

// NetworkDiscovery returns the networks this node already knows about
// via its neighbor table's potential-parent entries, standing in for
// an active MAC beacon scan the simulator does not model at the
// radio level (§1 excludes MAC/PHY).
func (s *Stack) NetworkDiscovery() []NetworkDiscoveryResult {
	var out []NetworkDiscoveryResult
	for _, n := range s.neighbor.Entries() {
		if !n.PotentialParent {
			continue
		}
		pan, _ := s.panIDs.Lookup(n.ExtPanID)
		out = append(out, NetworkDiscoveryResult{
			ExtPanID:       n.ExtPanID,
			PanID:          pan,
			LogicalChannel: n.LogicalChannel,
			BeaconOrder:    n.BeaconOrder,
			PermitJoining:  true,
		})
	}
	return out
}

// JoinConfirmParams is the result of NLME-JOIN.request.
type JoinConfirmParams struct {
	Status   ConfirmStatus
	NwkAddr  nwkaddr.Addr
	ExtPanID nwkaddr.ExtPanID
}

// Join implements NLME-JOIN.request (association form, §4.5): select
// the best parent from the neighbor table, record the parent
// relationship, and adopt the allocated address. Asynchronous, like
// NetworkFormation: the result reaches the caller through the
// registered confirm callback, not a return value.
func (s *Stack) Join(extPanID nwkaddr.ExtPanID, allocated nwkaddr.Addr) {
	s.sim.ScheduleNow(func() {
		parent, ok := s.neighbor.LookupBestParent(extPanID)
		if !ok {
			s.joinConfirm(JoinConfirmParams{Status: NotPermitted})
			return
		}

		s.selfAddr = allocated
		s.extPanID = extPanID
		s.mac.SetShortAddress(allocated)

		parent.Relationship = tables.RelParent
		s.neighbor.AddOrUpdate(parent)

		pan, _ := s.panIDs.Lookup(extPanID)
		s.panID = pan

		s.joinConfirm(JoinConfirmParams{Status: Success, NwkAddr: allocated, ExtPanID: extPanID})
	})
}

func (s *Stack) joinConfirm(c JoinConfirmParams) {
	if s.joinCb != nil {
		s.joinCb(c)
	}
}

// DirectJoinConfirmParams is the result of NLME-DIRECT-JOIN.request.
type DirectJoinConfirmParams struct {
	Status ConfirmStatus
}

// DirectJoin implements NLME-DIRECT-JOIN.request (§4.5): a router or
// coordinator pre-registers a joiner by ext-addr, allocating it a
// short address and stashing an UNAUTH_CHILD neighbor entry.
// Asynchronous: the result reaches the registered confirm callback.
func (s *Stack) DirectJoin(childExt nwkaddr.ExtAddr, allocated nwkaddr.Addr) {
	s.sim.ScheduleNow(func() {
		if s.deviceType == nwkaddr.EndDevice {
			s.directJoinConfirm(DirectJoinConfirmParams{Status: NotPermitted})
			return
		}
		s.neighbor.AddOrUpdate(tables.NeighborEntry{
			ExtAddr:      childExt,
			NwkAddr:      allocated,
			Relationship: tables.RelUnauthChild,
			ExtPanID:     s.extPanID,
		})
		s.directJoinConfirm(DirectJoinConfirmParams{Status: Success})
	})
}

func (s *Stack) directJoinConfirm(c DirectJoinConfirmParams) {
	if s.directJoinCb != nil {
		s.directJoinCb(c)
	}
}

// StartRouterConfirmParams is the result of NLME-START-ROUTER.request.
type StartRouterConfirmParams struct {
	Status ConfirmStatus
}

// StartRouter implements NLME-START-ROUTER.request (§4.5): flips this
// node into router mode so future NLME-DIRECT-JOIN/association calls
// are accepted. Asynchronous: the result reaches the registered
// confirm callback.
func (s *Stack) StartRouter() {
	s.sim.ScheduleNow(func() {
		s.deviceType = nwkaddr.Router
		s.startRouterConfirm(StartRouterConfirmParams{Status: Success})
	})
}

func (s *Stack) startRouterConfirm(c StartRouterConfirmParams) {
	if s.startRouterCb != nil {
		s.startRouterCb(c)
	}
}
