// Package config loads a simulation scenario description from YAML:
// the clock resolution, channel list, PAN id, the node topology, and
// the time to stop the run at.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nugget/zigbeesim/internal/simtime"
	"github.com/nugget/zigbeesim/internal/zigbee/nwkaddr"
)

// searchPathsFunc is overridden in tests so FindConfig doesn't pick up
// real scenario files sitting on a developer's machine.
var searchPathsFunc = DefaultSearchPaths

// DefaultSearchPaths returns the scenario file search order. An
// explicit path (from the -config/run argument) is checked first.
// Then: ./scenario.yaml, ~/.config/zigsim/scenario.yaml,
// /config/scenario.yaml, /etc/zigsim/scenario.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"scenario.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "zigsim", "scenario.yaml"))
	}

	paths = append(paths, "/config/scenario.yaml") // Container convention
	paths = append(paths, "/etc/zigsim/scenario.yaml")
	return paths
}

// FindConfig locates a scenario file. If explicit is non-empty, it
// must exist. Otherwise, searches DefaultSearchPaths and returns the
// first that exists. Returns the path found, or an error if nothing
// was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("scenario file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range searchPathsFunc() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no scenario file found (searched: %v)", searchPathsFunc())
}

// Scenario holds everything needed to build and run one simulation.
type Scenario struct {
	Name           string       `yaml:"name"`
	TimeResolution string       `yaml:"time_resolution"`
	PanID          uint16       `yaml:"pan_id"`
	ChannelList    []int        `yaml:"channel_list"`
	StopTimeSec    float64      `yaml:"stop_time_sec"`
	LogLevel       string       `yaml:"log_level"`
	Nodes          []NodeConfig `yaml:"nodes"`
}

// NodeConfig describes one node in the topology.
type NodeConfig struct {
	ID           string         `yaml:"id"`
	ShortAddr    uint16         `yaml:"short_addr"`
	ExtAddr      uint64         `yaml:"ext_addr"`
	DeviceType   string         `yaml:"device_type"` // coordinator, router, end_device
	Concentrator bool           `yaml:"concentrator"`
	Neighbors    []string       `yaml:"neighbors"` // node ids in radio range; empty means full mesh
	Groups       []GroupBinding `yaml:"groups"`
}

// GroupBinding binds one of a node's endpoints into a multicast group.
type GroupBinding struct {
	GroupID  uint16 `yaml:"group_id"`
	Endpoint uint8  `yaml:"endpoint"`
}

// Load reads a scenario from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates the
// result. After Load returns successfully, every field is usable
// without additional nil/zero checks.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g. ${ZIGSIM_PAN_ID}). Convenience
	// for CI/container runs; putting values directly in the file works
	// just as well.
	expanded := os.ExpandEnv(string(data))

	sc := &Scenario{}
	if err := yaml.Unmarshal([]byte(expanded), sc); err != nil {
		return nil, err
	}

	sc.applyDefaults()
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario validation: %w", err)
	}

	return sc, nil
}

// applyDefaults fills zero-value fields with sensible defaults. Called
// automatically by Load.
func (sc *Scenario) applyDefaults() {
	if sc.TimeResolution == "" {
		sc.TimeResolution = "ns"
	}
	if sc.PanID == 0 {
		sc.PanID = 0x1A62
	}
	if len(sc.ChannelList) == 0 {
		sc.ChannelList = []int{11}
	}
	if sc.StopTimeSec == 0 {
		sc.StopTimeSec = 60
	}
	for i := range sc.Nodes {
		if sc.Nodes[i].DeviceType == "" {
			sc.Nodes[i].DeviceType = "router"
		}
	}
}

// Validate checks that the scenario is internally consistent. It runs
// after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (sc *Scenario) Validate() error {
	if _, err := ResolutionUnit(sc.TimeResolution); err != nil {
		return err
	}
	if sc.StopTimeSec <= 0 {
		return fmt.Errorf("stop_time_sec %v must be positive", sc.StopTimeSec)
	}
	if sc.LogLevel != "" {
		if _, err := ParseLogLevel(sc.LogLevel); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(sc.Nodes))
	seenAddr := make(map[uint16]string, len(sc.Nodes))
	coordinators := 0
	for _, n := range sc.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node missing id")
		}
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		seen[n.ID] = true

		if other, ok := seenAddr[n.ShortAddr]; ok {
			return fmt.Errorf("node %q and %q share short_addr 0x%04X", n.ID, other, n.ShortAddr)
		}
		seenAddr[n.ShortAddr] = n.ID

		dt, err := ParseDeviceType(n.DeviceType)
		if err != nil {
			return fmt.Errorf("node %q: %w", n.ID, err)
		}
		if dt == nwkaddr.Coordinator {
			coordinators++
		}
		if n.Concentrator && dt == nwkaddr.EndDevice {
			return fmt.Errorf("node %q: an end device cannot be a many-to-one concentrator", n.ID)
		}
	}
	for _, n := range sc.Nodes {
		for _, nb := range n.Neighbors {
			if !seen[nb] {
				return fmt.Errorf("node %q: neighbor %q is not a node in this scenario", n.ID, nb)
			}
		}
	}
	if len(sc.Nodes) > 0 && coordinators != 1 {
		return fmt.Errorf("scenario must have exactly one coordinator, found %d", coordinators)
	}

	return nil
}

// ResolutionUnit parses a scenario's time_resolution string into a
// simtime.Unit. Supported values: fs, ps, ns, us, ms, s.
func ResolutionUnit(s string) (simtime.Unit, error) {
	switch s {
	case "fs":
		return simtime.Femtosecond, nil
	case "ps":
		return simtime.Picosecond, nil
	case "", "ns":
		return simtime.Nanosecond, nil
	case "us":
		return simtime.Microsecond, nil
	case "ms":
		return simtime.Millisecond, nil
	case "s":
		return simtime.Second, nil
	default:
		return 0, fmt.Errorf("unknown time_resolution %q (valid: fs, ps, ns, us, ms, s)", s)
	}
}

// ParseDeviceType converts a scenario's device_type string to the
// nwkaddr.DeviceType a topology builder assigns to the node.
func ParseDeviceType(s string) (nwkaddr.DeviceType, error) {
	switch s {
	case "coordinator":
		return nwkaddr.Coordinator, nil
	case "", "router":
		return nwkaddr.Router, nil
	case "end_device":
		return nwkaddr.EndDevice, nil
	default:
		return 0, fmt.Errorf("unknown device_type %q (valid: coordinator, router, end_device)", s)
	}
}

// StopTime converts StopTimeSec to a tick count in the scenario's
// configured resolution.
func (sc *Scenario) StopTime() int64 {
	unit, _ := ResolutionUnit(sc.TimeResolution)
	perSecond := map[simtime.Unit]int64{
		simtime.Femtosecond: 1_000_000_000_000_000,
		simtime.Picosecond:  1_000_000_000_000,
		simtime.Nanosecond:  1_000_000_000,
		simtime.Microsecond: 1_000_000,
		simtime.Millisecond: 1_000,
		simtime.Second:      1,
	}[unit]
	return int64(sc.StopTimeSec * float64(perSecond))
}
