package mac

import (
	"github.com/nugget/zigbeesim/internal/simcore"
	"github.com/nugget/zigbeesim/internal/simtime"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
)

// Medium is a shared broadcast channel connecting a set of Fake MACs:
// every frame a member sends reaches every other member whose radio
// range includes it. Channel/propagation/loss modeling is out of
// scope (§1) — a Medium is an idealized always-in-range link, which
// is all the NWK/APS layers above it need to exercise mesh forwarding.
// Delivery is still posted through the kernel (zero-delay Schedule),
// never a direct call, so it participates in the same event ordering
// as everything else (§5).
type Medium struct {
	sim     *simcore.Simulator
	members []*Fake
}

// NewMedium creates an empty shared channel driven by sim.
func NewMedium(sim *simcore.Simulator) *Medium {
	return &Medium{sim: sim}
}

// Join connects f to the medium.
func (m *Medium) Join(f *Fake) {
	f.medium = m
	m.members = append(m.members, f)
}

// Fake is an in-memory Mac used by tests and example topologies.
type Fake struct {
	extAddr nwkaddr.ExtAddr
	addr    nwkaddr.Addr
	medium  *Medium

	onData    func(DataIndication)
	onConfirm func(DataConfirm)

	// DefaultLQI is reported on every indication this fake delivers.
	DefaultLQI uint8

	// Neighbors restricts which members of the medium this fake's
	// transmissions reach, modeling radio range within the otherwise
	// idealized channel. A nil set means unrestricted (every member
	// in range), matching the prior full-mesh behavior.
	Neighbors map[nwkaddr.Addr]struct{}
}

// SetNeighbors restricts f's radio range to exactly the given set of
// short addresses. Pass nil to return to unrestricted (full-mesh)
// reachability.
func (f *Fake) SetNeighbors(addrs ...nwkaddr.Addr) {
	if addrs == nil {
		f.Neighbors = nil
		return
	}
	set := make(map[nwkaddr.Addr]struct{}, len(addrs))
	for _, a := range addrs {
		set[a] = struct{}{}
	}
	f.Neighbors = set
}

func (f *Fake) reaches(peer *Fake) bool {
	if f.Neighbors == nil {
		return true
	}
	_, ok := f.Neighbors[peer.addr]
	return ok
}

// NewFake creates a Fake MAC not yet attached to a Medium.
func NewFake() *Fake {
	return &Fake{DefaultLQI: 255}
}

func (f *Fake) SetExtendedAddress(addr nwkaddr.ExtAddr)           { f.extAddr = addr }
func (f *Fake) SetShortAddress(addr nwkaddr.Addr)                 { f.addr = addr }
func (f *Fake) SetDataIndicationCallback(cb func(DataIndication)) { f.onData = cb }
func (f *Fake) SetDataConfirmCallback(cb func(DataConfirm))       { f.onConfirm = cb }

// ShortAddress returns the address last set by SetShortAddress.
func (f *Fake) ShortAddress() nwkaddr.Addr { return f.addr }

func (f *Fake) McpsDataRequest(params DataRequestParams, nsdu []byte) {
	if f.medium != nil && f.medium.sim != nil {
		for _, peer := range f.medium.members {
			if peer == f || peer.onData == nil {
				continue
			}
			if !f.reaches(peer) {
				continue
			}
			if !params.DstAddr.IsBroadcast() && peer.addr != params.DstAddr {
				continue
			}
			cp := make([]byte, len(nsdu))
			copy(cp, nsdu)
			ind := DataIndication{SrcAddr: f.addr, DstAddr: params.DstAddr, Lqi: peer.DefaultLQI, Nsdu: cp}
			deliver := peer.onData
			f.medium.sim.Schedule(simtime.Zero, func() { deliver(ind) })
		}
	}
	if f.onConfirm != nil {
		confirm := f.onConfirm
		status := DataSuccess
		handle := params.MsduHandle
		if f.medium != nil && f.medium.sim != nil {
			f.medium.sim.Schedule(simtime.Zero, func() { confirm(DataConfirm{MsduHandle: handle, Status: status}) })
		} else {
			confirm(DataConfirm{MsduHandle: handle, Status: status})
		}
	}
}
