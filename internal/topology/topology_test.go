package topology

import (
	"testing"

	"github.com/nugget/zigbeesim/internal/config"
	"github.com/nugget/zigbeesim/internal/simtime"
	"github.com/nugget/zigbeesim/internal/zigbee/nwk"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkwire"
)

func chainScenario() *config.Scenario {
	sc := &config.Scenario{
		StopTimeSec: 20,
		Nodes: []config.NodeConfig{
			{ID: "ZC", ShortAddr: 0x0000, DeviceType: "coordinator", Concentrator: true},
			{ID: "ZR1", ShortAddr: 0x1111, DeviceType: "router", Neighbors: []string{"ZC"}},
			{ID: "DEV1", ShortAddr: 0x2222, DeviceType: "end_device", Neighbors: []string{"ZR1"},
				Groups: []config.GroupBinding{{GroupID: 0x0123, Endpoint: 3}}},
		},
	}
	sc.TimeResolution = "ns"
	return sc
}

func TestBuild_WiresReachableChain(t *testing.T) {
	sc := chainScenario()

	net, err := Build(sc, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(net.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(net.Nodes))
	}

	zc, ok := net.Lookup("ZC")
	if !ok {
		t.Fatal("ZC not found in built network")
	}
	dev1, ok := net.Lookup("DEV1")
	if !ok {
		t.Fatal("DEV1 not found in built network")
	}

	var indications int
	dev1.Nwk.SetDataIndicationCallback(func(nwk.NldeDataIndicationParams) { indications++ })

	zc.Nwk.NldeDataRequest(nwk.NldeDataRequestParams{
		DestinationMode: nwk.UcstBcst,
		Destination:     dev1.Nwk.SelfAddr(),
		DiscoverRoute:   nwkwire.DiscoverEnable,
		Nsdu:            []byte("hello"),
	})

	net.Sim.StopAt(simtime.Time(10_000_000_000))
	net.Sim.Run()

	if indications != 1 {
		t.Errorf("got %d indications at DEV1, want 1", indications)
	}
}

func TestBuild_RadioRangeBlocksNonNeighbors(t *testing.T) {
	sc := chainScenario()

	net, err := Build(sc, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	zc, _ := net.Lookup("ZC")
	dev1, _ := net.Lookup("DEV1")

	if zc.Fake.Neighbors == nil {
		t.Fatal("ZC has no neighbor restriction, want unreachable-to-DEV1 directly")
	}
	if _, reachable := zc.Fake.Neighbors[dev1.Nwk.SelfAddr()]; reachable {
		t.Error("ZC should not directly reach DEV1 (two hops away)")
	}
}

func TestBuild_UnknownNeighborErrors(t *testing.T) {
	sc := &config.Scenario{
		StopTimeSec: 10,
		Nodes: []config.NodeConfig{
			{ID: "ZC", ShortAddr: 0, DeviceType: "coordinator", Neighbors: []string{"GHOST"}},
		},
	}
	sc.TimeResolution = "ns"

	if _, err := Build(sc, nil); err == nil {
		t.Fatal("expected Build to error on an unknown neighbor id")
	}
}

func TestBuild_BadTimeResolutionErrors(t *testing.T) {
	sc := &config.Scenario{TimeResolution: "fortnights"}
	if _, err := Build(sc, nil); err == nil {
		t.Fatal("expected Build to error on an unknown time_resolution")
	}
}
