package monitor

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/starveil/engine/internal/database"
	"github.com/starveil/engine/internal/engine"
	"github.com/starveil/engine/internal/influx"
	"github.com/starveil/engine/internal/model"
)

func TestRecordTick_WritesPerformanceRow(t *testing.T) {
	db, err := database.GetSqliteDBStandalone("file:monitortest?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(&model.TickPerformance{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	s := NewService(Dependencies{DB: db})
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stats := engine.TickStats{
		TickNumber:    42,
		Duration:      35 * time.Millisecond,
		PlayersTicked: 12,
		PlanetsTicked: 99,
		StepFailures:  1,
	}

	if err := s.RecordTick(stats, at); err != nil {
		t.Fatalf("RecordTick failed: %v", err)
	}

	var row model.TickPerformance
	if err := db.First(&row).Error; err != nil {
		t.Fatalf("failed to load performance row: %v", err)
	}
	if row.TickNumber != 42 {
		t.Errorf("tick number = %d, want 42", row.TickNumber)
	}
	if row.DurationMs != 35.0 {
		t.Errorf("duration = %f, want 35.0", row.DurationMs)
	}
	if row.PlanetsTicked != 99 {
		t.Errorf("planets ticked = %d, want 99", row.PlanetsTicked)
	}
	if row.StepFailures != 1 {
		t.Errorf("step failures = %d, want 1", row.StepFailures)
	}
}

func TestRecordCatchUp_ShipsPoint(t *testing.T) {
	// An invalid influx manager falls back to its gzip backup writer, which
	// lets the test capture the line protocol it would have sent.
	var buf bytes.Buffer
	im := &influx.Manager{
		BackupWriter: gzip.NewWriter(&buf),
		Logger:       zerolog.Nop(),
	}

	s := NewService(Dependencies{Influx: im})
	result := engine.CatchUpResult{
		PlayerID:       7,
		TicksProcessed: 120,
		Truncated:      true,
		PlanetsTicked:  3,
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.RecordCatchUp(result, at); err != nil {
		t.Fatalf("RecordCatchUp failed: %v", err)
	}

	if err := im.BackupWriter.Close(); err != nil {
		t.Fatalf("failed to flush backup writer: %v", err)
	}
	r, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatalf("failed to read backup: %v", err)
	}
	line, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read backup: %v", err)
	}

	got := string(line)
	if !strings.HasPrefix(got, "catchup,player_id=7 ") {
		t.Errorf("unexpected measurement line: %q", got)
	}
	for _, field := range []string{"ticks_processed=120i", "truncated=true", "planets_ticked=3i"} {
		if !strings.Contains(got, field) {
			t.Errorf("line %q missing field %s", got, field)
		}
	}
}
