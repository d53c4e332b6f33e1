package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/Agrid-Dev/vdizone/internal/simulator"
)

func TestNilDatabase(t *testing.T) {
	s := New(nil, "zone")
	if err := s.Migrate(context.Background()); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("Migrate: expected ErrNoDatabase, got %v", err)
	}
	if err := s.Record(context.Background(), simulator.Summary{}); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("Record: expected ErrNoDatabase, got %v", err)
	}
	if _, err := s.Recent(context.Background(), 1); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("Recent: expected ErrNoDatabase, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestRecordAndRecent needs a live PostgreSQL.
func TestRecordAndRecent(t *testing.T) {
	connString := os.Getenv("TEST_POSTGRES_CONN")
	if connString == "" {
		t.Skip("Skipping test: TEST_POSTGRES_CONN not set")
	}

	db, err := sql.Open("postgres", connString)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	zoneID := "test-" + time.Now().Format("150405.000000")
	s := New(db, zoneID)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM zone_runs WHERE zone_id = $1`, zoneID)
	})

	started := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	first := simulator.Summary{
		Case:        "case10",
		Timesteps:   86400,
		FinalAir:    21.5,
		MinAir:      17.6,
		MaxAir:      29.25,
		MeanPower:   0,
		Passed:      true,
		Deviations:  map[int]float64{1: 0.01, 10: 0.02},
		StartedAt:   started,
		ElapsedSecs: 2.5,
	}
	if err := s.Record(ctx, first); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// same key upserts and replaces deviations
	first.FinalAir = 22
	first.Deviations = map[int]float64{60: 0.03}
	if err := s.Record(ctx, first); err != nil {
		t.Fatalf("Record upsert: %v", err)
	}

	second := first
	second.Case = "case10-staged"
	second.StartedAt = started.Add(time.Hour)
	second.Deviations = nil
	second.Unmet = 4
	if err := s.Record(ctx, second); err != nil {
		t.Fatalf("Record second: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}
	if got[0].Case != "case10-staged" || got[0].Unmet != 4 || got[0].Deviations != nil {
		t.Fatalf("unexpected newest run %+v", got[0])
	}
	if got[1].FinalAir != 22 {
		t.Fatalf("expected upserted final air 22, got %v", got[1].FinalAir)
	}
	if len(got[1].Deviations) != 1 || got[1].Deviations[60] != 0.03 {
		t.Fatalf("expected deviations replaced, got %v", got[1].Deviations)
	}
	if !got[1].StartedAt.Equal(started) {
		t.Fatalf("expected started %v, got %v", started, got[1].StartedAt)
	}
}
