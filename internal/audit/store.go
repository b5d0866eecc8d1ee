// Package audit implements the Audit Store (spec.md section 4.11.1,
// C16): an append-only, queryable record of every finalized Proposal
// decision, cast Vote, PlanApproval transition, and Quality Evaluator
// result, independent of the content-addressed Persistence Store.
// Grounded on the teacher's internal/memory package (database/sql
// open/migrate idiom, go:embed schema, SELECT...WHERE 1=1 filter
// building), generalized from a multi-table learning/episode schema
// down to one append-only table and swapped from mattn/go-sqlite3 (CGO)
// to modernc.org/sqlite (pure Go), since an audit sink has no need for
// go-sqlite3's extra extension surface and a pure-Go driver keeps the
// orchestrator binary CGO-free.
package audit

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Kind tags what an AuditRecord describes.
type Kind string

const (
	KindProposalDecision  Kind = "proposal_decision"
	KindVote              Kind = "vote"
	KindPlanApproval      Kind = "plan_approval"
	KindQualityEvaluation Kind = "quality_evaluation"
	KindHITLApproval      Kind = "hitl_approval"
)

// Record is one append-only audit row.
type Record struct {
	ID        int64     `json:"id"`
	Kind      Kind      `json:"kind"`
	SubjectID string    `json:"subject_id"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a SQLite-backed append-only audit log.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the audit database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Append writes one audit record. A write failure here is logged and
// swallowed by the caller in best-effort paths (supervisor/governance
// call sites), not by Append itself, which always reports its error.
func (s *Store) Append(kind Kind, subjectID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO audit_records (kind, subject_id, payload) VALUES (?, ?, ?)`,
		string(kind), subjectID, string(body),
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Query filters audit records by kind, subject ID, and/or time range;
// zero-value fields are not filtered on.
type Query struct {
	Kind      Kind
	SubjectID string
	Since     time.Time
	Until     time.Time
	Limit     int
}

// Find returns records matching q, newest first.
func (s *Store) Find(q Query) ([]Record, error) {
	query := `SELECT id, kind, subject_id, payload, created_at FROM audit_records WHERE 1=1`
	var args []any

	if q.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(q.Kind))
	}
	if q.SubjectID != "" {
		query += " AND subject_id = ?"
		args = append(args, q.SubjectID)
	}
	if !q.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, q.Since)
	}
	if !q.Until.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, q.Until)
	}
	query += " ORDER BY created_at DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var kind, payload string
		if err := rows.Scan(&r.ID, &kind, &r.SubjectID, &payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.Kind = Kind(kind)
		var decoded any
		if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
			return nil, fmt.Errorf("unmarshal audit payload: %w", err)
		}
		r.Payload = decoded
		out = append(out, r)
	}
	return out, rows.Err()
}
