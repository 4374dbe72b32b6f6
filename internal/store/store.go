// Package store provides the triage daemon's embedded SQLite state:
// the last triage decision per message, a history of cycle runs, and
// the VIP and draft-blocked sender lists policy decisions read back.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/inboxd/triaged/internal/addrutil"
	"github.com/inboxd/triaged/internal/types"
)

// querier is the subset of *sql.DB / *sql.Tx that the read/write
// helpers below need, so the same SQL can run either directly against
// the connection or inside a cycle's transaction.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store wraps a SQLite connection holding the triage daemon's state.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the state database at path, creating its
// parent directory and schema if they do not already exist.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Now returns the current time as an ISO 8601 UTC string, the format
// every timestamp column in this schema is written in.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// CycleTx is the write surface available inside one cycle's
// transaction: state reads/upserts, VIP bookkeeping, and the final
// run-log insert. Commit persists them together; Rollback discards
// them together, per the single-writer-per-cycle transaction protocol
// ("writes occur in one transaction per cycle; rollback on any
// uncaught error").
type CycleTx interface {
	GetState(emailID string) (*types.TriageState, error)
	UpsertState(t types.TriageState) error
	RecordRun(summary types.CycleSummary) error
	CountHighPriorityForSender(senderEmail string) (int, error)
	IsVIP(senderEmail string) (bool, error)
	UpsertVIP(v types.VipSender) error
	Commit() error
	Rollback() error
}

var _ CycleTx = (*Tx)(nil)

// Tx is a cycle-scoped transaction over the state database.
type Tx struct {
	tx *sql.Tx
}

// BeginCycle starts the transaction a triage cycle writes its state
// rows and run-log row into.
func (s *Store) BeginCycle() (CycleTx, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin cycle transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

func (t *Tx) GetState(emailID string) (*types.TriageState, error) { return getState(t.tx, emailID) }
func (t *Tx) UpsertState(s types.TriageState) error                { return upsertState(t.tx, s) }
func (t *Tx) RecordRun(summary types.CycleSummary) error           { return recordRun(t.tx, summary) }
func (t *Tx) CountHighPriorityForSender(senderEmail string) (int, error) {
	return countHighPriorityForSender(t.tx, senderEmail)
}
func (t *Tx) IsVIP(senderEmail string) (bool, error) { return isVIP(t.tx, senderEmail) }
func (t *Tx) UpsertVIP(v types.VipSender) error      { return upsertVIP(t.tx, v) }

// --- triage_state ---

// GetState returns the stored triage decision for emailID, or nil if
// no row exists yet.
func (s *Store) GetState(emailID string) (*types.TriageState, error) {
	return getState(s.conn, emailID)
}

func getState(q querier, emailID string) (*types.TriageState, error) {
	row := q.QueryRow(`
		SELECT email_id, subject, sender, sender_email, received_at,
		       priority, actionable, reason, summary, reply_text,
		       drafted, draft_id, status, error, raw_email,
		       first_seen_at, last_seen_at, updated_at
		FROM triage_state WHERE email_id = ?`, emailID)
	return scanState(row)
}

func scanState(row *sql.Row) (*types.TriageState, error) {
	t := &types.TriageState{}
	var subject, sender, senderEmail, receivedAt, priority, reason, summary, replyText, draftID, errCol, rawEmail sql.NullString
	var actionable, drafted int
	err := row.Scan(
		&t.EmailID, &subject, &sender, &senderEmail, &receivedAt,
		&priority, &actionable, &reason, &summary, &replyText,
		&drafted, &draftID, &t.Status, &errCol, &rawEmail,
		&t.FirstSeenAt, &t.LastSeenAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Subject = subject.String
	t.Sender = sender.String
	t.SenderEmail = senderEmail.String
	t.ReceivedAt = receivedAt.String
	t.Priority = priority.String
	t.Actionable = actionable != 0
	t.Reason = reason.String
	t.Summary = summary.String
	t.ReplyText = replyText.String
	t.Drafted = drafted != 0
	t.DraftID = draftID.String
	t.Error = errCol.String
	t.RawEmail = rawEmail.String
	return t, nil
}

// UpsertState creates or updates a message's triage state row,
// preserving first_seen_at across updates, mirroring
// upsert_state_row's ON CONFLICT behavior. Callers populate
// FirstSeenAt and LastSeenAt with the same "now" value on first
// insert; on conflict, first_seen_at is left untouched.
func (s *Store) UpsertState(t types.TriageState) error {
	return upsertState(s.conn, t)
}

func upsertState(q querier, t types.TriageState) error {
	_, err := q.Exec(`
		INSERT INTO triage_state (
		  email_id, subject, sender, sender_email, received_at,
		  priority, actionable, reason, summary, reply_text,
		  drafted, draft_id, status, error, raw_email,
		  first_seen_at, last_seen_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email_id) DO UPDATE SET
		  subject=excluded.subject,
		  sender=excluded.sender,
		  sender_email=excluded.sender_email,
		  received_at=excluded.received_at,
		  priority=excluded.priority,
		  actionable=excluded.actionable,
		  reason=excluded.reason,
		  summary=excluded.summary,
		  reply_text=excluded.reply_text,
		  drafted=excluded.drafted,
		  draft_id=excluded.draft_id,
		  status=excluded.status,
		  error=excluded.error,
		  raw_email=excluded.raw_email,
		  last_seen_at=excluded.last_seen_at,
		  updated_at=excluded.updated_at`,
		t.EmailID, nullStr(t.Subject), nullStr(t.Sender), nullStr(addrutil.Normalize(t.SenderEmail)), nullStr(t.ReceivedAt),
		nullStr(t.Priority), boolToInt(t.Actionable), nullStr(t.Reason), nullStr(t.Summary), nullStr(t.ReplyText),
		boolToInt(t.Drafted), nullStr(t.DraftID), t.Status, nullStr(t.Error), nullStr(t.RawEmail),
		t.FirstSeenAt, t.LastSeenAt, t.UpdatedAt,
	)
	return err
}

// CountHighPriorityForSender returns how many stored triage_state rows
// have priority "high" for the given normalized sender address.
// Satisfies policy.VIPStore.
func (s *Store) CountHighPriorityForSender(senderEmail string) (int, error) {
	return countHighPriorityForSender(s.conn, senderEmail)
}

func countHighPriorityForSender(q querier, senderEmail string) (int, error) {
	var n int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM triage_state WHERE sender_email = ? AND priority = 'high'`,
		addrutil.Normalize(senderEmail),
	).Scan(&n)
	return n, err
}

// --- triage_runs ---

// RecordRun inserts a cycle summary as a history row, JSON-encoding
// the full summary into details_json.
func (s *Store) RecordRun(summary types.CycleSummary) error {
	return recordRun(s.conn, summary)
}

func recordRun(q querier, summary types.CycleSummary) error {
	details, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode run details: %w", err)
	}
	mode := "dry-run"
	if summary.ApplyMode {
		mode = "apply"
	}
	_, err = q.Exec(`
		INSERT INTO triage_runs (
		  run_at, mode, emails_seen, triaged_count, archived_count,
		  drafted_count, skipped_count, error_count, details_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunAt, mode, summary.EmailsSeen, summary.TriagedCount, summary.ArchivedCount,
		summary.DraftedCount, summary.SkippedCount, summary.ErrorCount, string(details),
	)
	return err
}

// RecentRuns returns the most recent triage_runs rows, newest first.
func (s *Store) RecentRuns(limit int) ([]types.RunLog, error) {
	query := `SELECT id, run_at, mode, emails_seen, triaged_count, archived_count,
		drafted_count, skipped_count, error_count, details_json
		FROM triage_runs ORDER BY run_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []types.RunLog
	for rows.Next() {
		var r types.RunLog
		var details sql.NullString
		if err := rows.Scan(&r.ID, &r.RunAt, &r.Mode, &r.EmailsSeen, &r.TriagedCount,
			&r.ArchivedCount, &r.DraftedCount, &r.SkippedCount, &r.ErrorCount, &details); err != nil {
			return nil, err
		}
		r.DetailsJSON = details.String
		result = append(result, r)
	}
	return result, rows.Err()
}

// --- vip_senders ---

// VIPSenders returns the set of normalized VIP sender addresses.
func (s *Store) VIPSenders() (map[string]bool, error) {
	rows, err := s.conn.Query(`SELECT email FROM vip_senders`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		if email != "" {
			result[strings.ToLower(strings.TrimSpace(email))] = true
		}
	}
	return result, rows.Err()
}

// IsVIP reports whether senderEmail is already in the VIP table.
// Satisfies policy.VIPStore.
func (s *Store) IsVIP(senderEmail string) (bool, error) {
	return isVIP(s.conn, senderEmail)
}

func isVIP(q querier, senderEmail string) (bool, error) {
	normalized := addrutil.Normalize(senderEmail)
	if normalized == "" {
		return false, nil
	}
	var n int
	err := q.QueryRow(`SELECT 1 FROM vip_senders WHERE email = ?`, normalized).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddVIPSender inserts email as a VIP sender with the given source,
// returning false without error if it already exists or is malformed.
func (s *Store) AddVIPSender(email, source string) (bool, error) {
	normalized := addrutil.Normalize(email)
	if normalized == "" || !strings.Contains(normalized, "@") {
		return false, nil
	}

	var n int
	err := s.conn.QueryRow(`SELECT 1 FROM vip_senders WHERE email = ?`, normalized).Scan(&n)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}

	_, err = s.conn.Exec(
		`INSERT INTO vip_senders (email, added_at, source) VALUES (?, ?, ?)`,
		normalized, Now(), source,
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveVIPSender deletes a VIP sender, reporting whether a row was
// removed.
func (s *Store) RemoveVIPSender(email string) (bool, error) {
	normalized := addrutil.Normalize(email)
	if normalized == "" {
		return false, nil
	}
	res, err := s.conn.Exec(`DELETE FROM vip_senders WHERE email = ?`, normalized)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListVIPSenders returns all VIP sender addresses, sorted.
func (s *Store) ListVIPSenders() ([]string, error) {
	rows, err := s.conn.Query(`SELECT email FROM vip_senders ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

// UpsertVIP inserts or refreshes a VIP sender, used by the
// auto-frequency promotion path which may race a manual addition.
// Satisfies policy.VIPStore.
func (s *Store) UpsertVIP(v types.VipSender) error {
	return upsertVIP(s.conn, v)
}

func upsertVIP(q querier, v types.VipSender) error {
	normalized := addrutil.Normalize(v.Email)
	if normalized == "" || !strings.Contains(normalized, "@") {
		return fmt.Errorf("invalid VIP sender address %q", v.Email)
	}
	_, err := q.Exec(`
		INSERT INTO vip_senders (email, added_at, source, note)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
		  added_at = excluded.added_at,
		  source = excluded.source,
		  note = excluded.note`,
		normalized, Now(), v.Source, nullStr(v.Note),
	)
	return err
}

// SeedVIPSendersFromConfig adds each configured VIP sender with source
// "config", skipping ones already present, and returns the number
// newly added.
func (s *Store) SeedVIPSendersFromConfig(senders []string) (int, error) {
	added := 0
	for _, raw := range senders {
		ok, err := s.AddVIPSender(raw, types.VIPSourceConfig)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// --- draft_blocked_senders ---

// DraftBlockedSenders returns the set of normalized blocked addresses.
func (s *Store) DraftBlockedSenders() (map[string]bool, error) {
	rows, err := s.conn.Query(`SELECT email FROM draft_blocked_senders`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		if email != "" {
			result[strings.ToLower(strings.TrimSpace(email))] = true
		}
	}
	return result, rows.Err()
}

// AddDraftBlockedSender blocks email from receiving auto-drafted
// replies, returning false without error if already blocked or
// malformed.
func (s *Store) AddDraftBlockedSender(email, source string) (bool, error) {
	normalized := addrutil.Normalize(email)
	if normalized == "" || !strings.Contains(normalized, "@") {
		return false, nil
	}

	var n int
	err := s.conn.QueryRow(`SELECT 1 FROM draft_blocked_senders WHERE email = ?`, normalized).Scan(&n)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, err
	}

	_, err = s.conn.Exec(
		`INSERT INTO draft_blocked_senders (email, added_at, source) VALUES (?, ?, ?)`,
		normalized, Now(), source,
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

// RemoveDraftBlockedSender unblocks email, reporting whether a row was
// removed.
func (s *Store) RemoveDraftBlockedSender(email string) (bool, error) {
	normalized := addrutil.Normalize(email)
	if normalized == "" {
		return false, nil
	}
	res, err := s.conn.Exec(`DELETE FROM draft_blocked_senders WHERE email = ?`, normalized)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListDraftBlockedSenders returns all blocked addresses, sorted.
func (s *Store) ListDraftBlockedSenders() ([]string, error) {
	rows, err := s.conn.Query(`SELECT email FROM draft_blocked_senders ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
