// Package runlog keeps a small sqlite ledger of pipeline runs and stage
// outcomes, so the viewer can show what has been computed for each subject.
// The ledger is strictly additive bookkeeping: when it cannot be opened or
// written, stages log a warning and continue.
package runlog

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/neuroviz/neuroviz"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project TEXT NOT NULL,
	config_path TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS stages (
	run_id INTEGER NOT NULL,
	stage TEXT NOT NULL,
	subject TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	detail TEXT NOT NULL DEFAULT ''
);
`

const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// Ledger wraps the run database. A nil Ledger, or one built without sqlite
// support, ignores every call.
type Ledger struct {
	db *sqlx.DB
}

// StageRow is one stage record as shown on the viewer index page.
type StageRow struct {
	RunID      int64      `db:"run_id"`
	Stage      string     `db:"stage"`
	Subject    string     `db:"subject"`
	Status     string     `db:"status"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
	Detail     string     `db:"detail"`
}

// Open creates or opens the ledger at path, making parent directories as
// needed. Builds without cgo get a disabled ledger and no error.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, neuroviz.DataErrorf("runlog: %v", err)
	}

	db, err := openSqlite(path)
	if err != nil {
		return nil, neuroviz.DataErrorf("runlog: %v", err)
	}
	if db == nil {
		return &Ledger{}, nil
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, neuroviz.DataErrorf("runlog: schema: %v", err)
	}

	return &Ledger{db: db}, nil
}

// Enabled reports whether writes will actually be recorded.
func (l *Ledger) Enabled() bool {
	return l != nil && l.db != nil
}

func (l *Ledger) Close() error {
	if !l.Enabled() {
		return nil
	}

	return l.db.Close()
}

// StartRun records a new pipeline invocation and returns its id.
func (l *Ledger) StartRun(project, configPath string) (int64, error) {
	if !l.Enabled() {
		return 0, nil
	}

	res, err := l.db.Exec(`INSERT INTO runs (project, config_path, started_at) VALUES (?, ?, ?)`,
		project, configPath, time.Now().UTC())
	if err != nil {
		return 0, neuroviz.DataErrorf("runlog: %v", err)
	}

	return res.LastInsertId()
}

// StartStage marks a stage as running for one subject.
func (l *Ledger) StartStage(runID int64, stage, subject string) error {
	if !l.Enabled() {
		return nil
	}

	_, err := l.db.Exec(`INSERT INTO stages (run_id, stage, subject, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, stage, subject, StatusRunning, time.Now().UTC())
	if err != nil {
		return neuroviz.DataErrorf("runlog: %v", err)
	}

	return nil
}

// FinishStage resolves the running record to ok or failed. A non-nil
// stageErr marks failure and stores the message as detail.
func (l *Ledger) FinishStage(runID int64, stage, subject string, stageErr error) error {
	if !l.Enabled() {
		return nil
	}

	status, detail := StatusOK, ""
	if stageErr != nil {
		status, detail = StatusFailed, stageErr.Error()
	}

	_, err := l.db.Exec(`UPDATE stages SET status = ?, finished_at = ?, detail = ?
		WHERE run_id = ? AND stage = ? AND subject = ? AND status = ?`,
		status, time.Now().UTC(), detail, runID, stage, subject, StatusRunning)
	if err != nil {
		return neuroviz.DataErrorf("runlog: %v", err)
	}

	return nil
}

// Record brackets one stage execution for one subject: a running row before
// fn, and the resolved status after. Ledger failures are logged and
// swallowed so bookkeeping never fails a pipeline; fn's own error is
// returned untouched.
func (l *Ledger) Record(runID int64, stage, subject string, fn func() error) error {
	if err := l.StartStage(runID, stage, subject); err != nil {
		log.Println(err)
	}

	stageErr := fn()

	if err := l.FinishStage(runID, stage, subject, stageErr); err != nil {
		log.Println(err)
	}

	return stageErr
}

// RecentStages returns the newest stage records, newest first.
func (l *Ledger) RecentStages(limit int) ([]StageRow, error) {
	if !l.Enabled() {
		return nil, nil
	}

	var rows []StageRow
	err := l.db.Select(&rows, `SELECT run_id, stage, subject, status, started_at, finished_at, detail
		FROM stages ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, neuroviz.DataErrorf("runlog: %v", err)
	}

	return rows, nil
}
