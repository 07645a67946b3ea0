package runstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestRecordRun_AutoID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	now := time.Now()
	id, err := s.RecordRun(ctx, RunRecord{
		ScenarioName: "grid-20x3",
		StartedAt:    now,
		FinishedAt:   now.Add(15 * time.Second),
		NodeCount:    61,
		EventCount:   4200,
	}, nil, nil)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if id == "" {
		t.Fatal("RecordRun returned empty id")
	}

	rec, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.ScenarioName != "grid-20x3" {
		t.Errorf("ScenarioName = %q, want grid-20x3", rec.ScenarioName)
	}
	if rec.NodeCount != 61 {
		t.Errorf("NodeCount = %d, want 61", rec.NodeCount)
	}
	if rec.CampaignID != id {
		t.Errorf("CampaignID = %q, want it to default to the run id %q", rec.CampaignID, id)
	}
}

func TestRecordRun_WithTalliesAndSnapshots(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	now := time.Now()
	tallies := []EventTally{
		{Kind: "rreqRetriesExhausted", Count: 3},
		{Kind: "routeDiscovered", Count: 61},
	}
	snapshots := []RoutingSnapshotRow{
		{NodeID: "ZR1", Destination: "0x0000", NextHop: "0x0000", Status: "ACTIVE", ManyToOne: true},
		{NodeID: "ZR2", Destination: "0x0000", NextHop: "ZR1", Status: "ACTIVE", ManyToOne: true},
	}

	id, err := s.RecordRun(ctx, RunRecord{
		ScenarioName: "many-to-one",
		StartedAt:    now,
		FinishedAt:   now.Add(10 * time.Second),
		NodeCount:    3,
	}, tallies, snapshots)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	gotTallies, err := s.EventTallies(ctx, id)
	if err != nil {
		t.Fatalf("EventTallies: %v", err)
	}
	if len(gotTallies) != 2 {
		t.Fatalf("got %d tallies, want 2: %+v", len(gotTallies), gotTallies)
	}
	if gotTallies[0].Kind != "routeDiscovered" || gotTallies[0].Count != 61 {
		t.Errorf("first tally = %+v, want routeDiscovered/61 (ordered by count desc)", gotTallies[0])
	}

	gotSnaps, err := s.RoutingSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("RoutingSnapshot: %v", err)
	}
	if len(gotSnaps) != 2 {
		t.Fatalf("got %d snapshot rows, want 2", len(gotSnaps))
	}
	for _, row := range gotSnaps {
		if !row.ManyToOne {
			t.Errorf("row %+v: ManyToOne = false, want true", row)
		}
	}
}

func TestListRunsForCampaign(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	now := time.Now()

	campaignID := "campaign-1"
	for i := 0; i < 3; i++ {
		_, err := s.RecordRun(ctx, RunRecord{
			CampaignID:   campaignID,
			ScenarioName: "sweep",
			StartedAt:    now.Add(time.Duration(i) * time.Minute),
			FinishedAt:   now.Add(time.Duration(i)*time.Minute + time.Second),
			NodeCount:    5,
		}, nil, nil)
		if err != nil {
			t.Fatalf("RecordRun %d: %v", i, err)
		}
	}
	// A run under a different campaign must not show up.
	if _, err := s.RecordRun(ctx, RunRecord{CampaignID: "other", ScenarioName: "sweep", StartedAt: now, FinishedAt: now}, nil, nil); err != nil {
		t.Fatalf("RecordRun other: %v", err)
	}

	runs, err := s.ListRunsForCampaign(ctx, campaignID)
	if err != nil {
		t.Fatalf("ListRunsForCampaign: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	for _, r := range runs {
		if r.CampaignID != campaignID {
			t.Errorf("run %q has campaign %q, want %q", r.ID, r.CampaignID, campaignID)
		}
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetRun(context.Background(), "nonexistent")
	if err == nil {
		t.Fatal("GetRun should error for an unknown run id")
	}
}
