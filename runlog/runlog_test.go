package runlog

import (
	"errors"
	"strings"
	"testing"
)

func TestNilLedgerIsInert(t *testing.T) {
	var l *Ledger

	if l.Enabled() {
		t.Error("nil ledger should not report enabled")
	}
	if id, err := l.StartRun("proj", "config.yaml"); id != 0 || err != nil {
		t.Errorf("StartRun on nil ledger = (%d, %v), want (0, nil)", id, err)
	}
	if err := l.StartStage(1, "preprocess", "sub-001"); err != nil {
		t.Errorf("StartStage on nil ledger: %v", err)
	}
	if err := l.FinishStage(1, "preprocess", "sub-001", nil); err != nil {
		t.Errorf("FinishStage on nil ledger: %v", err)
	}
	if rows, err := l.RecentStages(10); rows != nil || err != nil {
		t.Errorf("RecentStages on nil ledger = (%v, %v), want (nil, nil)", rows, err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close on nil ledger: %v", err)
	}
}

func TestDisabledLedgerIsInert(t *testing.T) {
	l := &Ledger{}

	if l.Enabled() {
		t.Error("driverless ledger should not report enabled")
	}
	if err := l.StartStage(1, "preprocess", "sub-001"); err != nil {
		t.Errorf("StartStage on disabled ledger: %v", err)
	}
}

func TestRecordReturnsStageError(t *testing.T) {
	var l *Ledger

	want := errors.New("bet exited 1")
	if got := l.Record(1, "preprocess", "sub-001", func() error { return want }); got != want {
		t.Errorf("Record() = %v, want the stage error back", got)
	}
	if got := l.Record(1, "preprocess", "sub-001", func() error { return nil }); got != nil {
		t.Errorf("Record() = %v, want nil", got)
	}
}

func TestSchemaCoversBothTables(t *testing.T) {
	for _, table := range []string{"runs", "stages"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("schema is missing table %q", table)
		}
	}
	for _, col := range []string{"run_id", "stage", "subject", "status", "started_at", "finished_at", "detail"} {
		if !strings.Contains(schema, col) {
			t.Errorf("schema is missing column %q", col)
		}
	}
}
