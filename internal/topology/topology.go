// Package topology builds a running simulation (kernel, shared medium,
// and one NWK+APS stack per node) from a config.Scenario, the way a
// scenario YAML file turns into an in-memory network (§8 "end-to-end
// scenarios").
package topology

import (
	"fmt"
	"log/slog"

	"github.com/nugget/zigbeesim/internal/config"
	"github.com/nugget/zigbeesim/internal/simcore"
	"github.com/nugget/zigbeesim/internal/simtime"
	"github.com/nugget/zigbeesim/internal/trace"
	"github.com/nugget/zigbeesim/internal/zigbee/aps"
	"github.com/nugget/zigbeesim/internal/zigbee/mac"
	"github.com/nugget/zigbeesim/internal/zigbee/nwk"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
)

// Node is one built node: its id from the scenario, and the NWK/APS
// stacks and fake MAC wired underneath it.
type Node struct {
	ID   string
	Fake *mac.Fake
	Nwk  *nwk.Stack
	Aps  *aps.Stack
}

// Network is a fully wired topology ready to run.
type Network struct {
	Sim      *simcore.Simulator
	Medium   *mac.Medium
	Registry *nwk.Registry
	Tracer   *trace.Bus
	Nodes    []*Node

	byID map[string]*Node
}

// Lookup returns the node with the given scenario id.
func (n *Network) Lookup(id string) (*Node, bool) {
	node, ok := n.byID[id]
	return node, ok
}

// Build constructs a Network from sc: sets the clock resolution,
// creates the kernel and shared medium, and instantiates one NWK+APS
// stack per node, wiring radio-range restrictions and group bindings.
// logger may be nil, in which case slog.Default is used.
func Build(sc *config.Scenario, logger *slog.Logger) (*Network, error) {
	unit, err := config.ResolutionUnit(sc.TimeResolution)
	if err != nil {
		return nil, err
	}
	simtime.SetResolution(unit)

	if logger == nil {
		logger = slog.Default()
	}

	sim := simcore.New(logger)
	medium := mac.NewMedium(sim)
	registry := nwk.NewRegistry()
	tracer := trace.New()

	net := &Network{
		Sim:      sim,
		Medium:   medium,
		Registry: registry,
		Tracer:   tracer,
		byID:     make(map[string]*Node, len(sc.Nodes)),
	}

	for _, nc := range sc.Nodes {
		devType, err := config.ParseDeviceType(nc.DeviceType)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", nc.ID, err)
		}

		f := mac.NewFake()
		medium.Join(f)

		nwkStack := nwk.New(nwk.Config{
			NodeID:      nc.ID,
			SelfAddr:    nwkaddr.Addr(nc.ShortAddr),
			SelfExtAddr: nwkaddr.ExtAddr(nc.ExtAddr),
			PanID:       nwkaddr.PanID(sc.PanID),
			DeviceType:  devType,
		}, sim, f, tracer, logger, registry)

		if nc.Concentrator {
			nwkStack.SetAsConcentrator(true)
		}

		// End devices sleep most of the time and never relay, so they
		// have nothing to gain from the periodic link status beacon;
		// routers and the coordinator run it to age out dead neighbors.
		if devType != nwkaddr.EndDevice {
			nwkStack.Start()
		}

		apsStack := aps.New(nwkStack, nwkaddr.ExtAddr(nc.ExtAddr), logger)
		nodeID := nc.ID
		apsStack.SetGroupConfirmCallback(func(c aps.GroupConfirmParams) {
			if c.Status != aps.Success {
				logger.Error("group binding rejected", "node", nodeID, "group_id", c.GroupID, "endpoint", c.Endpoint, "status", c.Status)
			}
		})
		for _, g := range nc.Groups {
			apsStack.AddGroup(g.GroupID, g.Endpoint)
		}

		node := &Node{ID: nc.ID, Fake: f, Nwk: nwkStack, Aps: apsStack}
		net.Nodes = append(net.Nodes, node)
		net.byID[nc.ID] = node
	}

	// Radio-range restrictions reference sibling nodes by id, so they're
	// wired in a second pass once every Fake exists.
	for i, nc := range sc.Nodes {
		if len(nc.Neighbors) == 0 {
			continue
		}
		addrs := make([]nwkaddr.Addr, 0, len(nc.Neighbors))
		for _, nbID := range nc.Neighbors {
			nb, ok := net.byID[nbID]
			if !ok {
				return nil, fmt.Errorf("node %q: neighbor %q not found", nc.ID, nbID)
			}
			addrs = append(addrs, nb.Nwk.SelfAddr())
		}
		net.Nodes[i].Fake.SetNeighbors(addrs...)
	}

	return net, nil
}
