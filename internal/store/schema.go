package store

// Schema is the DDL for the triage daemon's state database: the last
// triage decision per message, a history of cycle runs, and the VIP
// and draft-blocked sender lists that policy decisions read back.
const Schema = `
CREATE TABLE IF NOT EXISTS triage_state (
    email_id       TEXT PRIMARY KEY,
    subject        TEXT,
    sender         TEXT,
    sender_email   TEXT,
    received_at    TEXT,
    priority       TEXT,
    actionable     INTEGER NOT NULL,
    reason         TEXT,
    summary        TEXT,
    reply_text     TEXT,
    drafted        INTEGER NOT NULL DEFAULT 0,
    draft_id       TEXT,
    status         TEXT NOT NULL,
    error          TEXT,
    raw_email      TEXT,
    first_seen_at  TEXT NOT NULL,
    last_seen_at   TEXT NOT NULL,
    updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS triage_runs (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    run_at         TEXT NOT NULL,
    mode           TEXT NOT NULL,
    emails_seen    INTEGER NOT NULL,
    triaged_count  INTEGER NOT NULL,
    archived_count INTEGER NOT NULL DEFAULT 0,
    drafted_count  INTEGER NOT NULL,
    skipped_count  INTEGER NOT NULL,
    error_count    INTEGER NOT NULL,
    details_json   TEXT
);

CREATE TABLE IF NOT EXISTS vip_senders (
    email      TEXT PRIMARY KEY,
    added_at   TEXT NOT NULL,
    source     TEXT NOT NULL,
    note       TEXT
);

CREATE TABLE IF NOT EXISTS draft_blocked_senders (
    email      TEXT PRIMARY KEY,
    added_at   TEXT NOT NULL,
    source     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_triage_state_sender ON triage_state(sender_email);
CREATE INDEX IF NOT EXISTS idx_triage_runs_run_at ON triage_runs(run_at DESC);
`
