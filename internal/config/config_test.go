package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("pan_id: 6000\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/scenario.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_SearchPath(t *testing.T) {
	dir := t.TempDir()
	orig := searchPathsFunc
	searchPathsFunc = func() []string {
		return []string{filepath.Join(dir, "scenario.yaml")}
	}
	defer func() { searchPathsFunc = orig }()

	_, err := FindConfig("")
	if err == nil {
		t.Fatal("FindConfig(\"\") with no scenario files should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	os.WriteFile(path, []byte("pan_id: 6000\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "scenario.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "scenario.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	os.WriteFile(path, []byte("pan_id: ${ZIGSIM_TEST_PAN}\n"), 0600)
	os.Setenv("ZIGSIM_TEST_PAN", "4660")
	defer os.Unsetenv("ZIGSIM_TEST_PAN")

	sc, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if sc.PanID != 4660 {
		t.Errorf("pan_id = %d, want 4660", sc.PanID)
	}
}

func TestLoad_Topology(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	body := `
stop_time_sec: 30
nodes:
  - id: ZC
    short_addr: 0
    device_type: coordinator
    concentrator: true
  - id: ZR1
    short_addr: 4369
    device_type: router
    neighbors: [ZC]
  - id: DEV1
    short_addr: 1
    device_type: end_device
    neighbors: [ZR1]
    groups:
      - group_id: 291
        endpoint: 3
`
	os.WriteFile(path, []byte(body), 0600)

	sc, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(sc.Nodes) != 3 {
		t.Fatalf("len(Nodes) = %d, want 3", len(sc.Nodes))
	}
	if sc.Nodes[2].Groups[0].GroupID != 291 || sc.Nodes[2].Groups[0].Endpoint != 3 {
		t.Errorf("DEV1 group binding = %+v, want {291 3}", sc.Nodes[2].Groups[0])
	}
	if sc.StopTime() != 30_000_000_000 {
		t.Errorf("StopTime() = %d, want 30_000_000_000", sc.StopTime())
	}
}

func TestApplyDefaults(t *testing.T) {
	sc := &Scenario{}
	sc.applyDefaults()

	if sc.TimeResolution != "ns" {
		t.Errorf("TimeResolution = %q, want ns", sc.TimeResolution)
	}
	if sc.PanID != 0x1A62 {
		t.Errorf("PanID = 0x%04X, want 0x1A62", sc.PanID)
	}
	if len(sc.ChannelList) != 1 || sc.ChannelList[0] != 11 {
		t.Errorf("ChannelList = %v, want [11]", sc.ChannelList)
	}
	if sc.StopTimeSec != 60 {
		t.Errorf("StopTimeSec = %v, want 60", sc.StopTimeSec)
	}
}

func TestValidate_DuplicateNodeID(t *testing.T) {
	sc := &Scenario{Nodes: []NodeConfig{
		{ID: "ZC", DeviceType: "coordinator"},
		{ID: "ZC", ShortAddr: 1, DeviceType: "router"},
	}}
	sc.applyDefaults()

	err := sc.Validate()
	if err == nil {
		t.Fatal("expected error for duplicate node id")
	}
	if !strings.Contains(err.Error(), "duplicate node id") {
		t.Errorf("error = %v, want mention of duplicate node id", err)
	}
}

func TestValidate_DuplicateShortAddr(t *testing.T) {
	sc := &Scenario{Nodes: []NodeConfig{
		{ID: "ZC", ShortAddr: 0, DeviceType: "coordinator"},
		{ID: "ZR1", ShortAddr: 0, DeviceType: "router"},
	}}
	sc.applyDefaults()

	err := sc.Validate()
	if err == nil {
		t.Fatal("expected error for duplicate short_addr")
	}
	if !strings.Contains(err.Error(), "share short_addr") {
		t.Errorf("error = %v, want mention of shared short_addr", err)
	}
}

func TestValidate_UnknownNeighbor(t *testing.T) {
	sc := &Scenario{Nodes: []NodeConfig{
		{ID: "ZC", ShortAddr: 0, DeviceType: "coordinator", Neighbors: []string{"GHOST"}},
	}}
	sc.applyDefaults()

	err := sc.Validate()
	if err == nil {
		t.Fatal("expected error for unknown neighbor id")
	}
	if !strings.Contains(err.Error(), "GHOST") {
		t.Errorf("error = %v, want mention of GHOST", err)
	}
}

func TestValidate_RequiresExactlyOneCoordinator(t *testing.T) {
	sc := &Scenario{Nodes: []NodeConfig{
		{ID: "ZR1", ShortAddr: 1, DeviceType: "router"},
		{ID: "ZR2", ShortAddr: 2, DeviceType: "router"},
	}}
	sc.applyDefaults()

	err := sc.Validate()
	if err == nil {
		t.Fatal("expected error when no coordinator is present")
	}
	if !strings.Contains(err.Error(), "exactly one coordinator") {
		t.Errorf("error = %v, want mention of exactly one coordinator", err)
	}
}

func TestValidate_EndDeviceConcentratorRejected(t *testing.T) {
	sc := &Scenario{Nodes: []NodeConfig{
		{ID: "ZC", ShortAddr: 0, DeviceType: "coordinator"},
		{ID: "DEV1", ShortAddr: 1, DeviceType: "end_device", Concentrator: true},
	}}
	sc.applyDefaults()

	err := sc.Validate()
	if err == nil {
		t.Fatal("expected error for end-device concentrator")
	}
	if !strings.Contains(err.Error(), "concentrator") {
		t.Errorf("error = %v, want mention of concentrator", err)
	}
}

func TestValidate_BadTimeResolution(t *testing.T) {
	sc := &Scenario{TimeResolution: "fortnights"}
	sc.StopTimeSec = 1

	err := sc.Validate()
	if err == nil {
		t.Fatal("expected error for unknown time_resolution")
	}
	if !strings.Contains(err.Error(), "time_resolution") {
		t.Errorf("error = %v, want mention of time_resolution", err)
	}
}

func TestValidate_BadStopTime(t *testing.T) {
	sc := &Scenario{}
	sc.applyDefaults()
	sc.StopTimeSec = 0

	err := sc.Validate()
	if err == nil {
		t.Fatal("expected error for non-positive stop_time_sec")
	}
	if !strings.Contains(err.Error(), "stop_time_sec") {
		t.Errorf("error = %v, want mention of stop_time_sec", err)
	}
}

func TestParseDeviceType(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"coordinator", false},
		{"router", false},
		{"", false},
		{"end_device", false},
		{"gateway", true},
	}
	for _, tt := range tests {
		_, err := ParseDeviceType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDeviceType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestResolutionUnit(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"ns", false},
		{"us", false},
		{"ms", false},
		{"s", false},
		{"", false},
		{"lightyears", true},
	}
	for _, tt := range tests {
		_, err := ResolutionUnit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolutionUnit(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}
