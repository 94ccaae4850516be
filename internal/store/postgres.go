package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sdr-enrich/internal/db"
	"github.com/sells-group/sdr-enrich/internal/model"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// pgExecer is satisfied by both the pool and a transaction.
type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	team_id         TEXT NOT NULL,
	email           TEXT NOT NULL,
	email_type      TEXT NOT NULL DEFAULT '',
	first_name      TEXT NOT NULL DEFAULT '',
	last_name       TEXT NOT NULL DEFAULT '',
	company         TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	company_size    TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	linkedin_url    TEXT NOT NULL DEFAULT '',
	enrichment_data JSONB,
	status          TEXT NOT NULL DEFAULT 'NEW',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_team_email ON leads(team_id, lower(email));
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);

CREATE TABLE IF NOT EXISTS enrichment_queue (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id      TEXT NOT NULL UNIQUE REFERENCES leads(id) ON DELETE CASCADE,
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_attempt TIMESTAMPTZ,
	error        TEXT,
	claimed_at   TIMESTAMPTZ,
	claimed_by   TEXT,
	payload      JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_enrichment_queue_created ON enrichment_queue(created_at);

CREATE TABLE IF NOT EXISTS email_queue (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id      TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	attempts     INTEGER NOT NULL DEFAULT 0,
	last_attempt TIMESTAMPTZ,
	error        TEXT,
	claimed_at   TIMESTAMPTZ,
	claimed_by   TEXT,
	payload      JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_email_queue_created ON email_queue(created_at);

CREATE TABLE IF NOT EXISTS activities (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	type           TEXT NOT NULL,
	description    TEXT NOT NULL,
	lead_id        TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	team_id        TEXT NOT NULL,
	team_member_id TEXT NOT NULL DEFAULT '',
	metadata       JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_activities_lead ON activities(lead_id, created_at);

CREATE TABLE IF NOT EXISTS approvals (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id    TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	team_id    TEXT NOT NULL,
	subject    TEXT NOT NULL,
	body       TEXT NOT NULL,
	channel_id TEXT NOT NULL DEFAULT '',
	message_ts TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'pending',
	decided_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	decided_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_approvals_lead ON approvals(lead_id, created_at DESC);
`

const leadColumns = `id, team_id, email, email_type, first_name, last_name, company, title,
	industry, company_size, location, linkedin_url, enrichment_data, status, created_at, updated_at`

const queueColumns = `id, lead_id, attempts, last_attempt, error, claimed_at, claimed_by, payload, created_at`

const approvalColumns = `id, lead_id, team_id, subject, body, channel_id, message_ts, status, decided_by, created_at, decided_at`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func scanPGLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var data *[]byte
	err := row.Scan(&l.ID, &l.TeamID, &l.Email, &l.EmailType, &l.FirstName, &l.LastName,
		&l.Company, &l.Title, &l.Industry, &l.CompanySize, &l.Location, &l.LinkedInURL,
		&data, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if data != nil {
		l.EnrichmentData = *data
	}
	return &l, nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) (bool, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	now := time.Now().UTC()
	lead.CreatedAt, lead.UpdatedAt = now, now

	created := false
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx,
			`INSERT INTO leads (id, team_id, email, email_type, first_name, last_name, company, title,
				industry, company_size, location, linkedin_url, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (team_id, lower(email)) DO NOTHING
			RETURNING id`,
			lead.ID, lead.TeamID, lead.Email, string(lead.EmailType), lead.FirstName, lead.LastName,
			lead.Company, lead.Title, lead.Industry, lead.CompanySize, lead.Location, lead.LinkedInURL,
			string(lead.Status), now, now,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			existing, err := scanPGLead(tx.QueryRow(ctx,
				`SELECT `+leadColumns+` FROM leads WHERE team_id = $1 AND lower(email) = lower($2)`,
				lead.TeamID, lead.Email))
			if err != nil {
				return eris.Wrap(err, "postgres: load existing lead")
			}
			*lead = *existing
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "postgres: insert lead")
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO enrichment_queue (id, lead_id, created_at) VALUES ($1, $2, $3)
			ON CONFLICT (lead_id) DO NOTHING`,
			uuid.New().String(), id, now,
		); err != nil {
			return eris.Wrap(err, "postgres: enqueue enrichment")
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanPGLead(s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("lead", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get lead")
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.TeamID != "" {
		query += fmt.Sprintf(` AND team_id = $%d`, argIdx)
		args = append(args, filter.TeamID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanPGLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) SetEmailType(ctx context.Context, id string, t model.EmailType) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET email_type = $1, updated_at = $2 WHERE id = $3`,
		string(t), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrap(err, "postgres: set email type")
	}
	if tag.RowsAffected() == 0 {
		return notFound("lead", id)
	}
	return nil
}

func (s *PostgresStore) UpdateLeadEnrichment(ctx context.Context, id string, upd model.LeadUpdate) error {
	var data any
	if len(upd.EnrichmentData) > 0 {
		data = []byte(upd.EnrichmentData)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET
			company = COALESCE(NULLIF($1, ''), company),
			title = COALESCE(NULLIF($2, ''), title),
			industry = COALESCE(NULLIF($3, ''), industry),
			company_size = COALESCE(NULLIF($4, ''), company_size),
			location = COALESCE(NULLIF($5, ''), location),
			linkedin_url = COALESCE(NULLIF($6, ''), linkedin_url),
			enrichment_data = COALESCE($7, enrichment_data),
			status = $8,
			updated_at = $9
		WHERE id = $10 AND status NOT IN ('APPROVED', 'REJECTED')`,
		upd.Company, upd.Title, upd.Industry, upd.CompanySize, upd.Location, upd.LinkedInURL,
		data, string(upd.Status), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrap(err, "postgres: update lead enrichment")
	}
	if tag.RowsAffected() == 0 {
		return notFound("undecided lead", id)
	}
	return nil
}

func (s *PostgresStore) TransitionLead(ctx context.Context, id string, from, to model.LeadStatus) (bool, error) {
	return pgTransitionLead(ctx, s.pool, id, from, to)
}

func pgTransitionLead(ctx context.Context, ex pgExecer, id string, from, to model.LeadStatus) (bool, error) {
	tag, err := ex.Exec(ctx,
		`UPDATE leads SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return false, eris.Wrap(err, "postgres: transition lead")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) AppendActivity(ctx context.Context, a *model.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	var meta any
	if len(a.Metadata) > 0 {
		meta = []byte(a.Metadata)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO activities (id, type, description, lead_id, team_id, team_member_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, string(a.Type), a.Description, a.LeadID, a.TeamID, a.TeamMemberID, meta, a.CreatedAt)
	return eris.Wrap(err, "postgres: append activity")
}

func (s *PostgresStore) ListActivities(ctx context.Context, leadID string) ([]model.Activity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, type, description, lead_id, team_id, team_member_id, metadata, created_at
		FROM activities WHERE lead_id = $1 ORDER BY created_at, id`, leadID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list activities")
	}
	defer rows.Close()

	var out []model.Activity
	for rows.Next() {
		var a model.Activity
		var meta *[]byte
		if err := rows.Scan(&a.ID, &a.Type, &a.Description, &a.LeadID, &a.TeamID, &a.TeamMemberID, &meta, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan activity")
		}
		if meta != nil {
			a.Metadata = *meta
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list activities iterate")
}

func scanPGQueueItems(kind model.QueueKind, rows pgx.Rows) ([]model.QueueItem, error) {
	defer rows.Close()
	var items []model.QueueItem
	for rows.Next() {
		it := model.QueueItem{Kind: kind}
		var payload *[]byte
		if err := rows.Scan(&it.ID, &it.LeadID, &it.Attempts, &it.LastAttempt, &it.Error,
			&it.ClaimedAt, &it.ClaimedBy, &payload, &it.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan queue item")
		}
		if payload != nil {
			it.Payload = *payload
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: queue iterate")
}

func (s *PostgresStore) Enqueue(ctx context.Context, kind model.QueueKind, leadID string, payload json.RawMessage) (*model.QueueItem, error) {
	return pgEnqueue(ctx, s.pool, kind, leadID, payload)
}

func pgEnqueue(ctx context.Context, ex pgExecer, kind model.QueueKind, leadID string, payload json.RawMessage) (*model.QueueItem, error) {
	it := &model.QueueItem{
		ID:        uuid.New().String(),
		Kind:      kind,
		LeadID:    leadID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	var p any
	if len(payload) > 0 {
		p = []byte(payload)
	}
	query := `INSERT INTO ` + kind.Table() + ` (id, lead_id, payload, created_at) VALUES ($1, $2, $3, $4)`
	if kind == model.QueueEnrichment {
		query += ` ON CONFLICT (lead_id) DO NOTHING`
	}
	tag, err := ex.Exec(ctx, query, it.ID, leadID, p, it.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: enqueue %s", kind)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return it, nil
}

func (s *PostgresStore) Claim(ctx context.Context, kind model.QueueKind, req model.ClaimRequest) ([]model.QueueItem, error) {
	table := kind.Table()
	cooldownBefore, leaseBefore := claimCutoffs(req)
	rows, err := s.pool.Query(ctx,
		`UPDATE `+table+` SET claimed_at = $1, claimed_by = $2
		WHERE id IN (
			SELECT id FROM `+table+`
			WHERE attempts < $3
				AND (last_attempt IS NULL OR last_attempt <= $4)
				AND (claimed_at IS NULL OR claimed_at <= $5)
			ORDER BY created_at
			LIMIT $6
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+queueColumns,
		req.Now, req.WorkerID, req.MaxAttempts, cooldownBefore, leaseBefore, req.Limit)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: claim %s", kind)
	}
	return scanPGQueueItems(kind, rows)
}

func (s *PostgresStore) Complete(ctx context.Context, kind model.QueueKind, id, workerID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+kind.Table()+` WHERE id = $1 AND claimed_by = $2`, id, workerID)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete %s", kind)
	}
	if tag.RowsAffected() == 0 {
		return leaseLost(kind, id, workerID)
	}
	return nil
}

func (s *PostgresStore) Fail(ctx context.Context, kind model.QueueKind, id, workerID string, at time.Time, msg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+kind.Table()+` SET attempts = attempts + 1, last_attempt = $1, error = $2,
			claimed_at = NULL, claimed_by = NULL
		WHERE id = $3 AND claimed_by = $4`,
		at, msg, id, workerID)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail %s", kind)
	}
	if tag.RowsAffected() == 0 {
		return leaseLost(kind, id, workerID)
	}
	return nil
}

func (s *PostgresStore) ListExhausted(ctx context.Context, kind model.QueueKind, maxAttempts int) ([]model.QueueItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+queueColumns+` FROM `+kind.Table()+` WHERE attempts >= $1 ORDER BY created_at`,
		maxAttempts)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list exhausted %s", kind)
	}
	return scanPGQueueItems(kind, rows)
}

func (s *PostgresStore) ResetAttempts(ctx context.Context, kind model.QueueKind, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+kind.Table()+` SET attempts = 0, last_attempt = NULL, error = NULL,
			claimed_at = NULL, claimed_by = NULL
		WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: reset %s", kind)
	}
	if tag.RowsAffected() == 0 {
		return notFound(string(kind)+" ticket", id)
	}
	return nil
}

func (s *PostgresStore) QueueStats(ctx context.Context, kind model.QueueKind, maxAttempts int, leaseExpiredBefore time.Time) (model.QueueStats, error) {
	stats := model.QueueStats{Kind: kind}
	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE attempts < $1 AND (claimed_at IS NULL OR claimed_at <= $2)),
			COUNT(*) FILTER (WHERE attempts < $1 AND claimed_at > $2),
			COUNT(*) FILTER (WHERE attempts >= $1)
		FROM `+kind.Table(),
		maxAttempts, leaseExpiredBefore,
	).Scan(&stats.Pending, &stats.Claimed, &stats.Exhausted)
	if err != nil {
		return stats, eris.Wrapf(err, "postgres: stats %s", kind)
	}
	return stats, nil
}

func (s *PostgresStore) CreateApproval(ctx context.Context, a *model.Approval) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = model.ApprovalPending
	}
	a.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO approvals (id, lead_id, team_id, subject, body, channel_id, message_ts, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.LeadID, a.TeamID, a.Subject, a.Body, a.ChannelID, a.MessageTS, string(a.Status), a.CreatedAt)
	return eris.Wrap(err, "postgres: create approval")
}

func (s *PostgresStore) GetApprovalByLead(ctx context.Context, leadID string) (*model.Approval, error) {
	var a model.Approval
	err := s.pool.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE lead_id = $1 ORDER BY created_at DESC LIMIT 1`,
		leadID,
	).Scan(&a.ID, &a.LeadID, &a.TeamID, &a.Subject, &a.Body, &a.ChannelID, &a.MessageTS,
		&a.Status, &a.DecidedBy, &a.CreatedAt, &a.DecidedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("approval for lead", leadID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get approval")
	}
	return &a, nil
}

func (s *PostgresStore) SetApprovalMessage(ctx context.Context, id, channelID, ts string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE approvals SET channel_id = $1, message_ts = $2 WHERE id = $3`,
		channelID, ts, id)
	if err != nil {
		return eris.Wrap(err, "postgres: set approval message")
	}
	if tag.RowsAffected() == 0 {
		return notFound("approval", id)
	}
	return nil
}

func (s *PostgresStore) DecideApproval(ctx context.Context, id string, status model.ApprovalStatus, decidedBy string, at time.Time) (bool, error) {
	return pgDecideApproval(ctx, s.pool, id, status, decidedBy, at)
}

func pgDecideApproval(ctx context.Context, ex pgExecer, id string, status model.ApprovalStatus, decidedBy string, at time.Time) (bool, error) {
	tag, err := ex.Exec(ctx,
		`UPDATE approvals SET status = $1, decided_by = $2, decided_at = $3
		WHERE id = $4 AND status = 'pending'`,
		string(status), decidedBy, at, id)
	if err != nil {
		return false, eris.Wrap(err, "postgres: decide approval")
	}
	return tag.RowsAffected() == 1, nil
}

// errLeadMoved aborts a decision transaction when the lead already left
// d.From.
var errLeadMoved = eris.New("store: lead moved")

func (s *PostgresStore) DecideLead(ctx context.Context, d model.Decision) (*model.QueueItem, bool, error) {
	var ticket *model.QueueItem
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		ok, err := pgTransitionLead(ctx, tx, d.LeadID, d.From, d.To)
		if err != nil {
			return err
		}
		if !ok {
			return errLeadMoved
		}
		if d.ApprovalID != "" {
			if _, err := pgDecideApproval(ctx, tx, d.ApprovalID, d.Status, d.DecidedBy, d.At); err != nil {
				return err
			}
		}
		if d.Email != nil {
			ticket, err = pgEnqueue(ctx, tx, model.QueueEmail, d.LeadID, d.Email)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errLeadMoved) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "postgres: decide lead %s", d.LeadID)
	}
	return ticket, true, nil
}
