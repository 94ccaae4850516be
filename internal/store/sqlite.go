package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sdr-enrich/internal/model"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as UTC unix nanoseconds so eligibility comparisons stay numeric.
type SQLiteStore struct {
	db *sql.DB
}

// sqlExecer is satisfied by both *sql.DB and *sql.Tx.
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection keeps :memory: databases shared and serializes claims.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
	team_id         TEXT NOT NULL,
	email           TEXT NOT NULL,
	email_key       TEXT NOT NULL,
	email_type      TEXT NOT NULL DEFAULT '',
	first_name      TEXT NOT NULL DEFAULT '',
	last_name       TEXT NOT NULL DEFAULT '',
	company         TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	company_size    TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	linkedin_url    TEXT NOT NULL DEFAULT '',
	enrichment_data TEXT,
	status          TEXT NOT NULL DEFAULT 'NEW',
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL,
	UNIQUE (team_id, email_key)
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);

CREATE TABLE IF NOT EXISTS enrichment_queue (
	id           TEXT PRIMARY KEY,
	lead_id      TEXT NOT NULL UNIQUE REFERENCES leads(id) ON DELETE CASCADE,
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_attempt INTEGER,
	error        TEXT,
	claimed_at   INTEGER,
	claimed_by   TEXT,
	payload      TEXT,
	created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS email_queue (
	id           TEXT PRIMARY KEY,
	lead_id      TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_attempt INTEGER,
	error        TEXT,
	claimed_at   INTEGER,
	claimed_by   TEXT,
	payload      TEXT,
	created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS activities (
	id             TEXT PRIMARY KEY,
	type           TEXT NOT NULL,
	description    TEXT NOT NULL,
	lead_id        TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	team_id        TEXT NOT NULL,
	team_member_id TEXT NOT NULL DEFAULT '',
	metadata       TEXT,
	created_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activities_lead ON activities(lead_id, created_at);

CREATE TABLE IF NOT EXISTS approvals (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	team_id    TEXT NOT NULL,
	subject    TEXT NOT NULL,
	body       TEXT NOT NULL,
	channel_id TEXT NOT NULL DEFAULT '',
	message_ts TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'pending',
	decided_by TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	decided_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_approvals_lead ON approvals(lead_id, created_at);
`

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// jsonArg stores empty documents as NULL.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanSQLiteLead(row rowScanner) (*model.Lead, error) {
	var l model.Lead
	var data []byte
	var created, updated int64
	err := row.Scan(&l.ID, &l.TeamID, &l.Email, &l.EmailType, &l.FirstName, &l.LastName,
		&l.Company, &l.Title, &l.Industry, &l.CompanySize, &l.Location, &l.LinkedInURL,
		&data, &l.Status, &created, &updated)
	if err != nil {
		return nil, err
	}
	l.EnrichmentData = data
	l.CreatedAt, l.UpdatedAt = fromNanos(created), fromNanos(updated)
	return &l, nil
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) (bool, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	now := time.Now().UTC()
	lead.CreatedAt, lead.UpdatedAt = now, now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var id string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO leads (id, team_id, email, email_key, email_type, first_name, last_name, company, title,
			industry, company_size, location, linkedin_url, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (team_id, email_key) DO NOTHING
		RETURNING id`,
		lead.ID, lead.TeamID, lead.Email, strings.ToLower(lead.Email), string(lead.EmailType),
		lead.FirstName, lead.LastName, lead.Company, lead.Title, lead.Industry, lead.CompanySize,
		lead.Location, lead.LinkedInURL, string(lead.Status), toNanos(now), toNanos(now),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := scanSQLiteLead(tx.QueryRowContext(ctx,
			`SELECT `+leadColumns+` FROM leads WHERE team_id = ? AND email_key = ?`,
			lead.TeamID, strings.ToLower(lead.Email)))
		if err != nil {
			return false, eris.Wrap(err, "sqlite: load existing lead")
		}
		*lead = *existing
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert lead")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO enrichment_queue (id, lead_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (lead_id) DO NOTHING`,
		uuid.New().String(), id, toNanos(now),
	); err != nil {
		return false, eris.Wrap(err, "sqlite: enqueue enrichment")
	}
	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: commit lead")
	}
	return true, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanSQLiteLead(s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("lead", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get lead")
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	args := []any{}

	if filter.TeamID != "" {
		query += ` AND team_id = ?`
		args = append(args, filter.TeamID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		l, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) exec(ctx context.Context, what, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s", what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s rows affected", what)
	}
	if n == 0 {
		return notFound(what, id)
	}
	return nil
}

func (s *SQLiteStore) SetEmailType(ctx context.Context, id string, t model.EmailType) error {
	return s.exec(ctx, "lead", id,
		`UPDATE leads SET email_type = ?, updated_at = ? WHERE id = ?`,
		string(t), toNanos(time.Now()), id)
}

func (s *SQLiteStore) UpdateLeadEnrichment(ctx context.Context, id string, upd model.LeadUpdate) error {
	return s.exec(ctx, "undecided lead", id,
		`UPDATE leads SET
			company = COALESCE(NULLIF(?, ''), company),
			title = COALESCE(NULLIF(?, ''), title),
			industry = COALESCE(NULLIF(?, ''), industry),
			company_size = COALESCE(NULLIF(?, ''), company_size),
			location = COALESCE(NULLIF(?, ''), location),
			linkedin_url = COALESCE(NULLIF(?, ''), linkedin_url),
			enrichment_data = COALESCE(?, enrichment_data),
			status = ?,
			updated_at = ?
		WHERE id = ? AND status NOT IN ('APPROVED', 'REJECTED')`,
		upd.Company, upd.Title, upd.Industry, upd.CompanySize, upd.Location, upd.LinkedInURL,
		jsonArg(upd.EnrichmentData), string(upd.Status), toNanos(time.Now()), id)
}

func (s *SQLiteStore) TransitionLead(ctx context.Context, id string, from, to model.LeadStatus) (bool, error) {
	return sqliteTransitionLead(ctx, s.db, id, from, to)
}

func sqliteTransitionLead(ctx context.Context, ex sqlExecer, id string, from, to model.LeadStatus) (bool, error) {
	res, err := ex.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), toNanos(time.Now()), id, string(from))
	if err != nil {
		return false, eris.Wrap(err, "sqlite: transition lead")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: transition lead rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) AppendActivity(ctx context.Context, a *model.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, type, description, lead_id, team_id, team_member_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Type), a.Description, a.LeadID, a.TeamID, a.TeamMemberID,
		jsonArg(a.Metadata), toNanos(a.CreatedAt))
	return eris.Wrap(err, "sqlite: append activity")
}

func (s *SQLiteStore) ListActivities(ctx context.Context, leadID string) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, description, lead_id, team_id, team_member_id, metadata, created_at
		FROM activities WHERE lead_id = ? ORDER BY created_at, rowid`, leadID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list activities")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Activity
	for rows.Next() {
		var a model.Activity
		var meta []byte
		var created int64
		if err := rows.Scan(&a.ID, &a.Type, &a.Description, &a.LeadID, &a.TeamID, &a.TeamMemberID, &meta, &created); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan activity")
		}
		a.Metadata = meta
		a.CreatedAt = fromNanos(created)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list activities iterate")
}

func scanSQLiteQueueItems(kind model.QueueKind, rows *sql.Rows) ([]model.QueueItem, error) {
	defer rows.Close() //nolint:errcheck
	var items []model.QueueItem
	for rows.Next() {
		it := model.QueueItem{Kind: kind}
		var lastAttempt, claimedAt sql.NullInt64
		var errMsg, claimedBy sql.NullString
		var payload []byte
		var created int64
		if err := rows.Scan(&it.ID, &it.LeadID, &it.Attempts, &lastAttempt, &errMsg,
			&claimedAt, &claimedBy, &payload, &created); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan queue item")
		}
		it.LastAttempt = nullNanos(lastAttempt)
		it.Error = nullString(errMsg)
		it.ClaimedAt = nullNanos(claimedAt)
		it.ClaimedBy = nullString(claimedBy)
		it.Payload = payload
		it.CreatedAt = fromNanos(created)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: queue iterate")
	}
	slices.SortFunc(items, func(a, b model.QueueItem) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return items, nil
}

func (s *SQLiteStore) Enqueue(ctx context.Context, kind model.QueueKind, leadID string, payload json.RawMessage) (*model.QueueItem, error) {
	return sqliteEnqueue(ctx, s.db, kind, leadID, payload)
}

func sqliteEnqueue(ctx context.Context, ex sqlExecer, kind model.QueueKind, leadID string, payload json.RawMessage) (*model.QueueItem, error) {
	it := &model.QueueItem{
		ID:        uuid.New().String(),
		Kind:      kind,
		LeadID:    leadID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	query := `INSERT INTO ` + kind.Table() + ` (id, lead_id, payload, created_at) VALUES (?, ?, ?, ?)`
	if kind == model.QueueEnrichment {
		query += ` ON CONFLICT (lead_id) DO NOTHING`
	}
	res, err := ex.ExecContext(ctx, query, it.ID, leadID, jsonArg(payload), toNanos(it.CreatedAt))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: enqueue %s", kind)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return it, nil
}

func (s *SQLiteStore) Claim(ctx context.Context, kind model.QueueKind, req model.ClaimRequest) ([]model.QueueItem, error) {
	table := kind.Table()
	cooldownBefore, leaseBefore := claimCutoffs(req)
	rows, err := s.db.QueryContext(ctx,
		`UPDATE `+table+` SET claimed_at = ?, claimed_by = ?
		WHERE id IN (
			SELECT id FROM `+table+`
			WHERE attempts < ?
				AND (last_attempt IS NULL OR last_attempt <= ?)
				AND (claimed_at IS NULL OR claimed_at <= ?)
			ORDER BY created_at, rowid
			LIMIT ?
		)
		RETURNING `+queueColumns,
		toNanos(req.Now), req.WorkerID, req.MaxAttempts,
		toNanos(cooldownBefore), toNanos(leaseBefore), req.Limit)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: claim %s", kind)
	}
	return scanSQLiteQueueItems(kind, rows)
}

func (s *SQLiteStore) Complete(ctx context.Context, kind model.QueueKind, id, workerID string) error {
	return s.owned(ctx, kind, id, workerID,
		`DELETE FROM `+kind.Table()+` WHERE id = ? AND claimed_by = ?`, id, workerID)
}

func (s *SQLiteStore) Fail(ctx context.Context, kind model.QueueKind, id, workerID string, at time.Time, msg string) error {
	return s.owned(ctx, kind, id, workerID,
		`UPDATE `+kind.Table()+` SET attempts = attempts + 1, last_attempt = ?, error = ?,
			claimed_at = NULL, claimed_by = NULL
		WHERE id = ? AND claimed_by = ?`,
		toNanos(at), msg, id, workerID)
}

// owned runs a statement guarded by the lease owner and maps a miss to
// ErrLeaseLost.
func (s *SQLiteStore) owned(ctx context.Context, kind model.QueueKind, id, workerID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s ticket", kind)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s ticket rows affected", kind)
	}
	if n == 0 {
		return leaseLost(kind, id, workerID)
	}
	return nil
}

func (s *SQLiteStore) ListExhausted(ctx context.Context, kind model.QueueKind, maxAttempts int) ([]model.QueueItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+queueColumns+` FROM `+kind.Table()+` WHERE attempts >= ? ORDER BY created_at`,
		maxAttempts)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list exhausted %s", kind)
	}
	return scanSQLiteQueueItems(kind, rows)
}

func (s *SQLiteStore) ResetAttempts(ctx context.Context, kind model.QueueKind, id string) error {
	return s.exec(ctx, string(kind)+" ticket", id,
		`UPDATE `+kind.Table()+` SET attempts = 0, last_attempt = NULL, error = NULL,
			claimed_at = NULL, claimed_by = NULL
		WHERE id = ?`, id)
}

func (s *SQLiteStore) QueueStats(ctx context.Context, kind model.QueueKind, maxAttempts int, leaseExpiredBefore time.Time) (model.QueueStats, error) {
	stats := model.QueueStats{Kind: kind}
	cutoff := toNanos(leaseExpiredBefore)
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN attempts < ? AND (claimed_at IS NULL OR claimed_at <= ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN attempts < ? AND claimed_at > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN attempts >= ? THEN 1 ELSE 0 END), 0)
		FROM `+kind.Table(),
		maxAttempts, cutoff, maxAttempts, cutoff, maxAttempts,
	).Scan(&stats.Pending, &stats.Claimed, &stats.Exhausted)
	if err != nil {
		return stats, eris.Wrapf(err, "sqlite: stats %s", kind)
	}
	return stats, nil
}

func (s *SQLiteStore) CreateApproval(ctx context.Context, a *model.Approval) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = model.ApprovalPending
	}
	a.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO approvals (id, lead_id, team_id, subject, body, channel_id, message_ts, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.LeadID, a.TeamID, a.Subject, a.Body, a.ChannelID, a.MessageTS, string(a.Status), toNanos(a.CreatedAt))
	return eris.Wrap(err, "sqlite: create approval")
}

func (s *SQLiteStore) GetApprovalByLead(ctx context.Context, leadID string) (*model.Approval, error) {
	var a model.Approval
	var created int64
	var decided sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE lead_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		leadID,
	).Scan(&a.ID, &a.LeadID, &a.TeamID, &a.Subject, &a.Body, &a.ChannelID, &a.MessageTS,
		&a.Status, &a.DecidedBy, &created, &decided)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("approval for lead", leadID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get approval")
	}
	a.CreatedAt = fromNanos(created)
	a.DecidedAt = nullNanos(decided)
	return &a, nil
}

func (s *SQLiteStore) SetApprovalMessage(ctx context.Context, id, channelID, ts string) error {
	return s.exec(ctx, "approval", id,
		`UPDATE approvals SET channel_id = ?, message_ts = ? WHERE id = ?`,
		channelID, ts, id)
}

func (s *SQLiteStore) DecideApproval(ctx context.Context, id string, status model.ApprovalStatus, decidedBy string, at time.Time) (bool, error) {
	return sqliteDecideApproval(ctx, s.db, id, status, decidedBy, at)
}

func sqliteDecideApproval(ctx context.Context, ex sqlExecer, id string, status model.ApprovalStatus, decidedBy string, at time.Time) (bool, error) {
	res, err := ex.ExecContext(ctx,
		`UPDATE approvals SET status = ?, decided_by = ?, decided_at = ?
		WHERE id = ? AND status = 'pending'`,
		string(status), decidedBy, toNanos(at), id)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: decide approval")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: decide approval rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) DecideLead(ctx context.Context, d model.Decision) (*model.QueueItem, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	ok, err := sqliteTransitionLead(ctx, tx, d.LeadID, d.From, d.To)
	if err != nil || !ok {
		return nil, false, err
	}
	if d.ApprovalID != "" {
		if _, err := sqliteDecideApproval(ctx, tx, d.ApprovalID, d.Status, d.DecidedBy, d.At); err != nil {
			return nil, false, err
		}
	}
	var ticket *model.QueueItem
	if d.Email != nil {
		if ticket, err = sqliteEnqueue(ctx, tx, model.QueueEmail, d.LeadID, d.Email); err != nil {
			return nil, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: commit decision")
	}
	return ticket, true, nil
}
