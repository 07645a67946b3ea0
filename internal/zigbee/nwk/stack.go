// Package nwk implements the Zigbee NWK layer state machine (§4.5):
// network formation/discovery/join, unicast/broadcast/multicast data
// requests, AODV-style route discovery, many-to-one concentrator
// routing, mesh forwarding, and trace-route. It is the single direct
// client of the MAC boundary (§6) and the component APS rides on top
// of.
package nwk

import (
	"log/slog"

	"github.com/nugget/zigbeesim/internal/simcore"
	"github.com/nugget/zigbeesim/internal/simtime"
	"github.com/nugget/zigbeesim/internal/trace"
	"github.com/nugget/zigbeesim/internal/zigbee/group"
	"github.com/nugget/zigbeesim/internal/zigbee/mac"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
	"github.com/nugget/zigbeesim/internal/zigbee/tables"
)

// ConfirmStatus is the status code carried by every NLDE/NLME confirm
// (§4.5, §7).
type ConfirmStatus int

const (
	Success ConfirmStatus = iota
	NoRouteAvailable
	RouteError
	NotSupported
	InvalidRequest
	NotPermitted
	FrameNotBuffered
	RouteDiscoveryFailed
)

func (s ConfirmStatus) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case NoRouteAvailable:
		return "NO_ROUTE_AVAILABLE"
	case RouteError:
		return "ROUTE_ERROR"
	case NotSupported:
		return "NOT_SUPPORTED"
	case InvalidRequest:
		return "INVALID_REQUEST"
	case NotPermitted:
		return "NOT_PERMITTED"
	case FrameNotBuffered:
		return "FRAME_NOT_BUFFERED"
	case RouteDiscoveryFailed:
		return "ROUTE_DISCOVERY_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Tunable defaults (§3, §4.5). Real Zigbee Pro stacks derive most of
// these from nwkcMaxDepth; fixed constants are enough for a simulator
// that does not model depth-dependent radius negotiation.
const (
	DefaultRadius       uint8 = 30
	RouteExpiry               = simtime.Time(30_000_000_000) // 30s of ns-resolution ticks
	RreqRetryTimeout          = simtime.Time(3_000_000_000)  // 3s between RREQ retries
	BroadcastRecordLife       = simtime.Time(9_000_000_000)  // 9s broadcast dedup window
)

// Stack is one node's NWK layer.
type Stack struct {
	sim    *simcore.Simulator
	mac    mac.Mac
	logger *slog.Logger
	tracer *trace.Bus
	nodeID string

	selfAddr    nwkaddr.Addr
	selfExtAddr nwkaddr.ExtAddr
	extPanID    nwkaddr.ExtPanID
	panID       nwkaddr.PanID
	deviceType  nwkaddr.DeviceType
	isConcentrator bool

	routing   *tables.RoutingTable
	discovery *tables.DiscoveryTable
	rreqRetry *tables.RreqRetryTable
	neighbor  *tables.NeighborTable
	broadcast *tables.BroadcastTable
	panIDs    *tables.PanIDTable
	groups    *group.Table

	seqNumber uint8
	rreqIDSeq uint8

	// relayDestHint remembers the real RREQ destination across a
	// relay's own retry timer. A per-rreqID map would be more precise,
	// but nothing in this simulator's scenarios has one node relaying
	// two different in-flight RREQs at once, and the route-discovery
	// table remains the authority the retry handler falls back to if
	// the hint is stale.
	relayDestHint nwkaddr.Addr

	pending map[nwkaddr.Addr][]pendingSend

	dataConfirmCb          func(NldeDataConfirmParams)
	dataIndicationCb       func(NldeDataIndicationParams)
	routeDiscoveryCb       func(RouteDiscoveryConfirmParams)
	networkFormationCb     func(NetworkFormationConfirmParams)
	joinCb                 func(JoinConfirmParams)
	directJoinCb           func(DirectJoinConfirmParams)
	startRouterCb          func(StartRouterConfirmParams)

	// registry lets this stack resolve a peer node by short address for
	// trace-route (§4.5); wired by whatever builds a topology.
	registry *Registry

	// sourceRoutes holds, per originator, the relay path a route-record
	// command reported on its way to this node. Only meaningful at a
	// concentrator; every other node's map stays empty.
	sourceRoutes map[nwkaddr.Addr][]nwkaddr.Addr

	// neighborHeard tracks the last time this node heard a link status
	// beacon from each address, driving neighbor aging independently of
	// the ext-addr-keyed neighbor table, which this simulator only
	// populates through an explicit Join/DirectJoin call.
	neighborHeard map[nwkaddr.Addr]simtime.Time
}

type pendingSend struct {
	params NldeDataRequestParams
	nsdu   []byte
}

// Config collects the construction-time parameters of a Stack.
type Config struct {
	NodeID      string
	SelfAddr    nwkaddr.Addr
	SelfExtAddr nwkaddr.ExtAddr
	ExtPanID    nwkaddr.ExtPanID
	PanID       nwkaddr.PanID
	DeviceType  nwkaddr.DeviceType
	RoutingTableSize int
	BroadcastTableSize int
}

// New creates a Stack wired to mac and sim. A nil logger is replaced
// with slog.Default, matching the kernel's own constructor convention.
func New(cfg Config, sim *simcore.Simulator, m mac.Mac, tracer *trace.Bus, logger *slog.Logger, registry *Registry) *Stack {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stack{
		sim:         sim,
		mac:         m,
		logger:      logger,
		tracer:      tracer,
		nodeID:      cfg.NodeID,
		selfAddr:    cfg.SelfAddr,
		selfExtAddr: cfg.SelfExtAddr,
		extPanID:    cfg.ExtPanID,
		panID:       cfg.PanID,
		deviceType:  cfg.DeviceType,
		routing:     tables.NewRoutingTable(cfg.RoutingTableSize),
		discovery:   tables.NewDiscoveryTable(),
		rreqRetry:   tables.NewRreqRetryTable(),
		neighbor:    tables.NewNeighborTable(),
		broadcast:   tables.NewBroadcastTable(cfg.BroadcastTableSize),
		panIDs:      tables.NewPanIDTable(),
		groups:      group.New(),
		pending:     make(map[nwkaddr.Addr][]pendingSend),
		registry:    registry,
		sourceRoutes:  make(map[nwkaddr.Addr][]nwkaddr.Addr),
		neighborHeard: make(map[nwkaddr.Addr]simtime.Time),
	}
	m.SetExtendedAddress(cfg.SelfExtAddr)
	m.SetShortAddress(cfg.SelfAddr)
	m.SetDataIndicationCallback(s.onMacDataIndication)
	if registry != nil {
		registry.register(cfg.SelfAddr, s)
	}
	return s
}

// SelfAddr returns the node's own short address.
func (s *Stack) SelfAddr() nwkaddr.Addr { return s.selfAddr }

// ScheduleNow posts f to run on this stack's kernel at the current
// simulation time, with no further delay. Exposed so APS's own
// asynchronous primitives (APSME-*) can post their work through the
// same kernel NWK's primitives use, rather than resolve synchronously.
func (s *Stack) ScheduleNow(f func()) { s.sim.ScheduleNow(f) }

// GroupTable exposes the group table APS shares with NWK (§2, §4.4).
func (s *Stack) GroupTable() *group.Table { return s.groups }

// RoutingTable exposes the routing table for trace-route and tests.
func (s *Stack) RoutingTable() *tables.RoutingTable { return s.routing }

// NeighborTable exposes the neighbor table for join scenarios and
// tests.
func (s *Stack) NeighborTable() *tables.NeighborTable { return s.neighbor }

// SetAsConcentrator marks this node as a many-to-one concentrator.
func (s *Stack) SetAsConcentrator(v bool) { s.isConcentrator = v }

// ResolveNextHop returns the next hop this node would currently use to
// reach dst, if it holds an active routing table entry for it. Handy
// for tests and a dashboard's path inspector; NldeDataRequest already
// does this lookup internally for ordinary traffic.
func (s *Stack) ResolveNextHop(dst nwkaddr.Addr) (nwkaddr.Addr, bool) {
	entry, ok := s.routing.Lookup(dst, s.sim.Now())
	if !ok || entry.Status != tables.Active {
		return 0, false
	}
	return entry.NextHop, true
}

// SourceRoute returns the relay path a route-record command reported
// for originator, if this node has received one. Only a concentrator
// ever has entries here.
func (s *Stack) SourceRoute(originator nwkaddr.Addr) ([]nwkaddr.Addr, bool) {
	relays, ok := s.sourceRoutes[originator]
	return relays, ok
}

// SetDataConfirmCallback registers the NLDE-DATA.confirm sink.
func (s *Stack) SetDataConfirmCallback(cb func(NldeDataConfirmParams)) { s.dataConfirmCb = cb }

// SetDataIndicationCallback registers the NLDE-DATA.indication sink
// consumed by APS.
func (s *Stack) SetDataIndicationCallback(cb func(NldeDataIndicationParams)) {
	s.dataIndicationCb = cb
}

// SetRouteDiscoveryConfirmCallback registers the
// NLME-ROUTE-DISCOVERY.confirm sink.
func (s *Stack) SetRouteDiscoveryConfirmCallback(cb func(RouteDiscoveryConfirmParams)) {
	s.routeDiscoveryCb = cb
}

// SetNetworkFormationConfirmCallback registers the
// NLME-NETWORK-FORMATION.confirm sink.
func (s *Stack) SetNetworkFormationConfirmCallback(cb func(NetworkFormationConfirmParams)) {
	s.networkFormationCb = cb
}

// SetJoinConfirmCallback registers the NLME-JOIN.confirm sink.
func (s *Stack) SetJoinConfirmCallback(cb func(JoinConfirmParams)) { s.joinCb = cb }

// SetDirectJoinConfirmCallback registers the NLME-DIRECT-JOIN.confirm
// sink.
func (s *Stack) SetDirectJoinConfirmCallback(cb func(DirectJoinConfirmParams)) {
	s.directJoinCb = cb
}

// SetStartRouterConfirmCallback registers the
// NLME-START-ROUTER.confirm sink.
func (s *Stack) SetStartRouterConfirmCallback(cb func(StartRouterConfirmParams)) {
	s.startRouterCb = cb
}

func (s *Stack) nextSeq() uint8 {
	v := s.seqNumber
	s.seqNumber++ // wraps at 256 per uint8, matching the spec's explicit sequence-number wraparound
	return v
}

func (s *Stack) nextRreqID() uint8 {
	v := s.rreqIDSeq
	s.rreqIDSeq++
	return v
}

func (s *Stack) trace(kind, node string, data map[string]any) {
	s.tracer.Publish(trace.Event{Source: "nwk", Kind: kind, Node: node, Data: data})
}

// Registry lets stacks in a topology find each other by short address
// for operations with no per-hop transport framing of their own, like
// trace-route (§4.5 "walks the routing tables of all known stacks").
type Registry struct {
	byAddr map[nwkaddr.Addr]*Stack
}

// NewRegistry creates an empty node registry.
func NewRegistry() *Registry {
	return &Registry{byAddr: make(map[nwkaddr.Addr]*Stack)}
}

func (r *Registry) register(addr nwkaddr.Addr, s *Stack) {
	r.byAddr[addr] = s
}

// Lookup returns the stack owning addr, if known to this registry.
func (r *Registry) Lookup(addr nwkaddr.Addr) (*Stack, bool) {
	s, ok := r.byAddr[addr]
	return s, ok
}
