package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/connect-cli/internal/db"
	"github.com/sells-group/connect-cli/internal/match"
	"github.com/sells-group/connect-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
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
	return NewPostgresWithPool(pool), nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: func() time.Time { return time.Now().UTC() }}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS members (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name            TEXT NOT NULL DEFAULT '',
	name_key        TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	phone_digits    TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_members_org_email ON members(organization_id, lower(email));
CREATE INDEX IF NOT EXISTS idx_members_org_phone ON members(organization_id, phone_digits);

CREATE TABLE IF NOT EXISTS leaders (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name            TEXT NOT NULL,
	categories      TEXT[] NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_leaders_org ON leaders(organization_id);

CREATE TABLE IF NOT EXISTS connect_cards (
	id                 TEXT PRIMARY KEY,
	organization_id    TEXT NOT NULL,
	batch_id           TEXT NOT NULL DEFAULT '',
	front_image_key    TEXT NOT NULL DEFAULT '',
	back_image_key     TEXT NOT NULL DEFAULT '',
	name               TEXT NOT NULL DEFAULT '',
	name_key           TEXT NOT NULL DEFAULT '',
	email              TEXT NOT NULL DEFAULT '',
	phone              TEXT NOT NULL DEFAULT '',
	phone_digits       TEXT NOT NULL DEFAULT '',
	prayer_request     TEXT NOT NULL DEFAULT '',
	visit_status       TEXT NOT NULL DEFAULT '',
	interests          TEXT[] NOT NULL DEFAULT '{}',
	keywords           TEXT[] NOT NULL DEFAULT '{}',
	volunteer_category TEXT NOT NULL DEFAULT '',
	assigned_leader_id TEXT NOT NULL DEFAULT '',
	sms_automation     BOOLEAN NOT NULL DEFAULT false,
	status             TEXT NOT NULL DEFAULT 'awaiting_review',
	member_id          TEXT REFERENCES members(id),
	reviewed_by        TEXT,
	reviewed_at        TIMESTAMPTZ,
	scanned_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_connect_cards_queue ON connect_cards(organization_id, status, scanned_at);
CREATE INDEX IF NOT EXISTS idx_connect_cards_batch ON connect_cards(organization_id, batch_id);

CREATE TABLE IF NOT EXISTS volunteer_assignments (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	member_id       TEXT NOT NULL REFERENCES members(id),
	card_id         TEXT NOT NULL REFERENCES connect_cards(id),
	category        TEXT NOT NULL,
	leader_id       TEXT NOT NULL DEFAULT '',
	notify_leader   BOOLEAN NOT NULL DEFAULT false,
	send_onboarding BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_volunteer_assignments_member ON volunteer_assignments(member_id);
`

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

const pendingCardColumns = `id, organization_id, batch_id, front_image_key, back_image_key,
	name, email, phone, prayer_request, visit_status, interests, keywords,
	volunteer_category, assigned_leader_id, sms_automation, status, scanned_at, updated_at`

func (s *PostgresStore) FindPendingCards(ctx context.Context, orgID, batchID string) ([]model.PendingCard, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pendingCardColumns+` FROM connect_cards
		 WHERE organization_id = $1 AND status = 'awaiting_review' AND ($2 = '' OR batch_id = $2)
		 ORDER BY scanned_at ASC, id ASC`,
		orgID, batchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find pending cards for org %s", orgID)
	}
	defer rows.Close()

	var cards []model.PendingCard
	for rows.Next() {
		var c model.PendingCard
		var category, status string
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.BatchID, &c.FrontImageKey, &c.BackImageKey,
			&c.Name, &c.Email, &c.Phone, &c.PrayerRequest, &c.VisitStatus, &c.Interests, &c.Keywords,
			&category, &c.AssignedLeaderID, &c.SMSAutomation, &status, &c.ScannedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pending card")
		}
		c.VolunteerCategory = model.VolunteerCategory(category)
		c.Status = model.CardStatus(status)
		cards = append(cards, c)
	}
	return cards, eris.Wrap(rows.Err(), "postgres: find pending cards iterate")
}

// InsertPendingCards bulk loads freshly extracted cards with COPY.
func (s *PostgresStore) InsertPendingCards(ctx context.Context, cards []model.PendingCard) (int64, error) {
	columns := []string{
		"id", "organization_id", "batch_id", "front_image_key", "back_image_key",
		"name", "name_key", "email", "phone", "phone_digits", "prayer_request", "visit_status",
		"interests", "keywords", "volunteer_category", "assigned_leader_id", "sms_automation",
		"status", "scanned_at", "updated_at",
	}
	rows := make([][]any, 0, len(cards))
	for _, c := range cards {
		rows = append(rows, []any{
			c.ID, c.OrganizationID, c.BatchID, c.FrontImageKey, c.BackImageKey,
			c.Name, match.NormalizeName(c.Name), c.Email, c.Phone, match.PhoneDigits(c.Phone),
			c.PrayerRequest, c.VisitStatus, nonNil(c.Interests), nonNil(c.Keywords),
			string(c.VolunteerCategory), c.AssignedLeaderID, c.SMSAutomation,
			string(model.CardStatusAwaitingReview), c.ScannedAt, c.UpdatedAt,
		})
	}
	n, err := db.CopyFrom(ctx, s.pool, "connect_cards", columns, rows)
	return n, eris.Wrap(err, "postgres: insert pending cards")
}

func (s *PostgresStore) FindMemberCandidates(ctx context.Context, orgID string, q model.CandidateQuery) ([]model.Candidate, error) {
	if q.Empty() {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, phone FROM members
		 WHERE organization_id = $1
		   AND (($2 <> '' AND lower(email) = $2)
		     OR ($3 <> '' AND phone_digits = $3)
		     OR ($4 <> '' AND name_key LIKE '%' || $4 || '%'))
		 ORDER BY CASE WHEN $2 <> '' AND lower(email) = $2 THEN 0 ELSE 1 END,
		          CASE WHEN $3 <> '' AND phone_digits = $3 THEN 0 ELSE 1 END,
		          updated_at DESC
		 LIMIT $5`,
		orgID, match.NormalizeEmail(q.Email), q.PhoneDigits, nameToken(q.NameLike), candidateLimit(q),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find member candidates")
	}
	return scanCandidates(rows, model.CandidateMember)
}

func (s *PostgresStore) FindPendingCandidates(ctx context.Context, orgID string, q model.CandidateQuery) ([]model.Candidate, error) {
	if q.Empty() {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, phone FROM connect_cards
		 WHERE organization_id = $1 AND status = 'awaiting_review' AND id <> $2
		   AND (($3 <> '' AND lower(email) = $3)
		     OR ($4 <> '' AND phone_digits = $4)
		     OR ($5 <> '' AND name_key LIKE '%' || $5 || '%'))
		 ORDER BY CASE WHEN $3 <> '' AND lower(email) = $3 THEN 0 ELSE 1 END,
		          CASE WHEN $4 <> '' AND phone_digits = $4 THEN 0 ELSE 1 END,
		          scanned_at ASC
		 LIMIT $6`,
		orgID, q.ExcludeCardID, match.NormalizeEmail(q.Email), q.PhoneDigits, nameToken(q.NameLike), candidateLimit(q),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find pending candidates")
	}
	return scanCandidates(rows, model.CandidatePendingCard)
}

func scanCandidates(rows pgx.Rows, kind model.CandidateKind) ([]model.Candidate, error) {
	defer rows.Close()
	var out []model.Candidate
	for rows.Next() {
		c := model.Candidate{Kind: kind}
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone); err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: candidates iterate")
}

// CommitCard applies the reviewed fields in one transaction: lock the card,
// link or create the member, flip the card to active, and record a
// volunteer assignment when one was chosen. Any failure rolls back all of it.
func (s *PostgresStore) CommitCard(ctx context.Context, scope model.Scope, cardID string, f model.CommitFields) (model.CommittedContact, error) {
	var out model.CommittedContact
	orgID := scope.OrganizationID

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return out, eris.Wrap(err, "postgres: commit card: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM connect_cards WHERE id = $1 AND organization_id = $2 FOR UPDATE`,
		cardID, orgID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return out, eris.Wrapf(ErrCardNotFound, "postgres: commit card %s", cardID)
		}
		return out, eris.Wrapf(err, "postgres: commit card %s: lock", cardID)
	}
	if model.CardStatus(status) != model.CardStatusAwaitingReview {
		return out, eris.Wrapf(ErrNotPending, "postgres: commit card %s (status %s)", cardID, status)
	}

	now := s.now()
	nameKey := match.NormalizeName(f.Name)
	digits := match.PhoneDigits(f.Phone)

	memberID := f.MatchedMemberID
	created := false
	if f.IsExistingMember && memberID != "" {
		tag, err := tx.Exec(ctx,
			`UPDATE members SET
			   name = CASE WHEN $3 = '' THEN name ELSE $3 END,
			   name_key = CASE WHEN $3 = '' THEN name_key ELSE $4 END,
			   email = CASE WHEN $5 = '' THEN email ELSE $5 END,
			   phone = CASE WHEN $6 = '' THEN phone ELSE $6 END,
			   phone_digits = CASE WHEN $6 = '' THEN phone_digits ELSE $7 END,
			   updated_at = $8
			 WHERE id = $1 AND organization_id = $2`,
			memberID, orgID, f.Name, nameKey, f.Email, f.Phone, digits, now,
		)
		if err != nil {
			return out, eris.Wrapf(err, "postgres: commit card %s: update member %s", cardID, memberID)
		}
		if tag.RowsAffected() == 0 {
			return out, eris.Wrapf(ErrMemberNotFound, "postgres: commit card %s: member %s", cardID, memberID)
		}
	} else {
		memberID = uuid.New().String()
		created = true
		if _, err := tx.Exec(ctx,
			`INSERT INTO members (id, organization_id, name, name_key, email, phone, phone_digits, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
			memberID, orgID, f.Name, nameKey, f.Email, f.Phone, digits, now,
		); err != nil {
			return out, eris.Wrapf(err, "postgres: commit card %s: insert member", cardID)
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE connect_cards SET
		   name = $3, name_key = $4, email = $5, phone = $6, phone_digits = $7,
		   prayer_request = $8, visit_status = $9, interests = $10, keywords = $11,
		   volunteer_category = $12, assigned_leader_id = $13, sms_automation = $14,
		   status = 'active', member_id = $15, reviewed_by = $16, reviewed_at = $17, updated_at = $17
		 WHERE id = $1 AND organization_id = $2`,
		cardID, orgID, f.Name, nameKey, f.Email, f.Phone, digits,
		f.PrayerRequest, f.VisitStatus, nonNil(f.Interests), nonNil(f.Keywords),
		string(f.VolunteerCategory), f.AssignedLeaderID, f.SMSAutomation,
		memberID, scope.UserID, now,
	); err != nil {
		return out, eris.Wrapf(err, "postgres: commit card %s: activate", cardID)
	}

	if wantsVolunteer(f) {
		if _, err := tx.Exec(ctx,
			`INSERT INTO volunteer_assignments
			 (id, organization_id, member_id, card_id, category, leader_id, notify_leader, send_onboarding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			uuid.New().String(), orgID, memberID, cardID, string(f.VolunteerCategory), f.AssignedLeaderID,
			f.SendMessageToLeader, f.SendOnboardingDocuments, now,
		); err != nil {
			return out, eris.Wrapf(err, "postgres: commit card %s: volunteer assignment", cardID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return out, eris.Wrapf(err, "postgres: commit card %s: commit tx", cardID)
	}
	return model.CommittedContact{CardID: cardID, MemberID: memberID, Created: created, CommittedAt: now}, nil
}

// DeleteCard soft-deletes a pending card by flipping it to removed.
func (s *PostgresStore) DeleteCard(ctx context.Context, scope model.Scope, cardID string) error {
	now := s.now()
	tag, err := s.pool.Exec(ctx,
		`UPDATE connect_cards SET status = 'removed', reviewed_by = $3, reviewed_at = $4, updated_at = $4
		 WHERE id = $1 AND organization_id = $2 AND status = 'awaiting_review'`,
		cardID, scope.OrganizationID, scope.UserID, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete card %s", cardID)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = s.pool.QueryRow(ctx,
		`SELECT status FROM connect_cards WHERE id = $1 AND organization_id = $2`,
		cardID, scope.OrganizationID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrCardNotFound, "postgres: delete card %s", cardID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: delete card %s: status", cardID)
	}
	return eris.Wrapf(ErrNotPending, "postgres: delete card %s (status %s)", cardID, status)
}

func (s *PostgresStore) ListLeaders(ctx context.Context, orgID string) ([]model.Leader, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, name, categories FROM leaders WHERE organization_id = $1 ORDER BY name`,
		orgID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list leaders for org %s", orgID)
	}
	defer rows.Close()

	var leaders []model.Leader
	for rows.Next() {
		var l model.Leader
		var cats []string
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.Name, &cats); err != nil {
			return nil, eris.Wrap(err, "postgres: scan leader")
		}
		l.Categories = stringsToCategories(cats)
		leaders = append(leaders, l)
	}
	return leaders, eris.Wrap(rows.Err(), "postgres: list leaders iterate")
}

func (s *PostgresStore) UpsertMembers(ctx context.Context, members []model.Member) (int64, error) {
	now := s.now()
	rows := make([][]any, 0, len(members))
	for _, m := range members {
		rows = append(rows, []any{
			m.ID, m.OrganizationID, m.Name, match.NormalizeName(m.Name),
			m.Email, m.Phone, match.PhoneDigits(m.Phone), now,
		})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "members",
		Columns:      []string{"id", "organization_id", "name", "name_key", "email", "phone", "phone_digits", "updated_at"},
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert members")
}

func (s *PostgresStore) UpsertLeaders(ctx context.Context, leaders []model.Leader) (int64, error) {
	rows := make([][]any, 0, len(leaders))
	for _, l := range leaders {
		rows = append(rows, []any{l.ID, l.OrganizationID, l.Name, categoriesToStrings(l.Categories)})
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leaders",
		Columns:      []string{"id", "organization_id", "name", "categories"},
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert leaders")
}

func (s *PostgresStore) QueueStats(ctx context.Context, since time.Time) ([]model.QueueStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT organization_id,
		        count(*) FILTER (WHERE status = 'awaiting_review'),
		        min(scanned_at) FILTER (WHERE status = 'awaiting_review'),
		        count(*) FILTER (WHERE status = 'active' AND updated_at >= $1),
		        count(*) FILTER (WHERE status = 'removed' AND updated_at >= $1)
		 FROM connect_cards
		 GROUP BY organization_id
		 ORDER BY organization_id`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: queue stats")
	}
	defer rows.Close()

	var out []model.QueueStats
	for rows.Next() {
		var st model.QueueStats
		var oldest *time.Time
		if err := rows.Scan(&st.OrganizationID, &st.Pending, &oldest, &st.Committed, &st.Discarded); err != nil {
			return nil, eris.Wrap(err, "postgres: scan queue stats")
		}
		if oldest != nil {
			st.OldestPending = oldest.UTC()
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: queue stats iterate")
}
