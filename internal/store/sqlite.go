package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/connect-cli/internal/match"
	"github.com/sells-group/connect-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Array columns are
// stored as JSON text.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS members (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name            TEXT NOT NULL DEFAULT '',
	name_key        TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	phone_digits    TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leaders (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	name            TEXT NOT NULL,
	categories      TEXT NOT NULL DEFAULT '[]'
);

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
	interests          TEXT NOT NULL DEFAULT '[]',
	keywords           TEXT NOT NULL DEFAULT '[]',
	volunteer_category TEXT NOT NULL DEFAULT '',
	assigned_leader_id TEXT NOT NULL DEFAULT '',
	sms_automation     INTEGER NOT NULL DEFAULT 0,
	status             TEXT NOT NULL DEFAULT 'awaiting_review',
	member_id          TEXT REFERENCES members(id),
	reviewed_by        TEXT,
	reviewed_at        DATETIME,
	scanned_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS volunteer_assignments (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	member_id       TEXT NOT NULL REFERENCES members(id),
	card_id         TEXT NOT NULL REFERENCES connect_cards(id),
	category        TEXT NOT NULL,
	leader_id       TEXT NOT NULL DEFAULT '',
	notify_leader   INTEGER NOT NULL DEFAULT 0,
	send_onboarding INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_members_org ON members(organization_id);
CREATE INDEX IF NOT EXISTS idx_leaders_org ON leaders(organization_id);
CREATE INDEX IF NOT EXISTS idx_connect_cards_queue ON connect_cards(organization_id, status, scanned_at);
CREATE INDEX IF NOT EXISTS idx_volunteer_assignments_member ON volunteer_assignments(member_id);
`

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

func (s *SQLiteStore) FindPendingCards(ctx context.Context, orgID, batchID string) ([]model.PendingCard, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pendingCardColumns+` FROM connect_cards
		 WHERE organization_id = ?1 AND status = 'awaiting_review' AND (?2 = '' OR batch_id = ?2)
		 ORDER BY scanned_at ASC, id ASC`,
		orgID, batchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find pending cards for org %s", orgID)
	}
	defer rows.Close()

	var cards []model.PendingCard
	for rows.Next() {
		var c model.PendingCard
		var category, status, interests, keywords string
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.BatchID, &c.FrontImageKey, &c.BackImageKey,
			&c.Name, &c.Email, &c.Phone, &c.PrayerRequest, &c.VisitStatus, &interests, &keywords,
			&category, &c.AssignedLeaderID, &c.SMSAutomation, &status, &c.ScannedAt, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pending card")
		}
		if c.Interests, err = decodeList(interests); err != nil {
			return nil, eris.Wrapf(err, "sqlite: card %s interests", c.ID)
		}
		if c.Keywords, err = decodeList(keywords); err != nil {
			return nil, eris.Wrapf(err, "sqlite: card %s keywords", c.ID)
		}
		c.VolunteerCategory = model.VolunteerCategory(category)
		c.Status = model.CardStatus(status)
		cards = append(cards, c)
	}
	return cards, eris.Wrap(rows.Err(), "sqlite: find pending cards iterate")
}

func (s *SQLiteStore) InsertPendingCards(ctx context.Context, cards []model.PendingCard) (int64, error) {
	if len(cards) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert pending cards: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO connect_cards (id, organization_id, batch_id, front_image_key, back_image_key,
		 name, name_key, email, phone, phone_digits, prayer_request, visit_status,
		 interests, keywords, volunteer_category, assigned_leader_id, sms_automation,
		 status, scanned_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert pending cards: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, c := range cards {
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.OrganizationID, c.BatchID, c.FrontImageKey, c.BackImageKey,
			c.Name, match.NormalizeName(c.Name), c.Email, c.Phone, match.PhoneDigits(c.Phone),
			c.PrayerRequest, c.VisitStatus, encodeList(c.Interests), encodeList(c.Keywords),
			string(c.VolunteerCategory), c.AssignedLeaderID, c.SMSAutomation,
			string(model.CardStatusAwaitingReview), c.ScannedAt.UTC(), c.UpdatedAt.UTC(),
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert pending card %s", c.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: insert pending cards: commit tx")
	}
	return n, nil
}

func (s *SQLiteStore) FindMemberCandidates(ctx context.Context, orgID string, q model.CandidateQuery) ([]model.Candidate, error) {
	if q.Empty() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, phone FROM members
		 WHERE organization_id = ?1
		   AND ((?2 <> '' AND lower(email) = ?2)
		     OR (?3 <> '' AND phone_digits = ?3)
		     OR (?4 <> '' AND name_key LIKE '%' || ?4 || '%'))
		 ORDER BY CASE WHEN ?2 <> '' AND lower(email) = ?2 THEN 0 ELSE 1 END,
		          CASE WHEN ?3 <> '' AND phone_digits = ?3 THEN 0 ELSE 1 END,
		          updated_at DESC
		 LIMIT ?5`,
		orgID, match.NormalizeEmail(q.Email), q.PhoneDigits, nameToken(q.NameLike), candidateLimit(q),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find member candidates")
	}
	return scanSQLCandidates(rows, model.CandidateMember)
}

func (s *SQLiteStore) FindPendingCandidates(ctx context.Context, orgID string, q model.CandidateQuery) ([]model.Candidate, error) {
	if q.Empty() {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, phone FROM connect_cards
		 WHERE organization_id = ?1 AND status = 'awaiting_review' AND id <> ?2
		   AND ((?3 <> '' AND lower(email) = ?3)
		     OR (?4 <> '' AND phone_digits = ?4)
		     OR (?5 <> '' AND name_key LIKE '%' || ?5 || '%'))
		 ORDER BY CASE WHEN ?3 <> '' AND lower(email) = ?3 THEN 0 ELSE 1 END,
		          CASE WHEN ?4 <> '' AND phone_digits = ?4 THEN 0 ELSE 1 END,
		          scanned_at ASC
		 LIMIT ?6`,
		orgID, q.ExcludeCardID, match.NormalizeEmail(q.Email), q.PhoneDigits, nameToken(q.NameLike), candidateLimit(q),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find pending candidates")
	}
	return scanSQLCandidates(rows, model.CandidatePendingCard)
}

func scanSQLCandidates(rows *sql.Rows, kind model.CandidateKind) ([]model.Candidate, error) {
	defer rows.Close()
	var out []model.Candidate
	for rows.Next() {
		c := model.Candidate{Kind: kind}
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: candidates iterate")
}

func (s *SQLiteStore) CommitCard(ctx context.Context, scope model.Scope, cardID string, f model.CommitFields) (model.CommittedContact, error) {
	var out model.CommittedContact
	orgID := scope.OrganizationID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return out, eris.Wrap(err, "sqlite: commit card: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM connect_cards WHERE id = ? AND organization_id = ?`,
		cardID, orgID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return out, eris.Wrapf(ErrCardNotFound, "sqlite: commit card %s", cardID)
	}
	if err != nil {
		return out, eris.Wrapf(err, "sqlite: commit card %s: status", cardID)
	}
	if model.CardStatus(status) != model.CardStatusAwaitingReview {
		return out, eris.Wrapf(ErrNotPending, "sqlite: commit card %s (status %s)", cardID, status)
	}

	now := s.now()
	nameKey := match.NormalizeName(f.Name)
	digits := match.PhoneDigits(f.Phone)

	memberID := f.MatchedMemberID
	created := false
	if f.IsExistingMember && memberID != "" {
		res, err := tx.ExecContext(ctx,
			`UPDATE members SET
			   name = CASE WHEN ?3 = '' THEN name ELSE ?3 END,
			   name_key = CASE WHEN ?3 = '' THEN name_key ELSE ?4 END,
			   email = CASE WHEN ?5 = '' THEN email ELSE ?5 END,
			   phone = CASE WHEN ?6 = '' THEN phone ELSE ?6 END,
			   phone_digits = CASE WHEN ?6 = '' THEN phone_digits ELSE ?7 END,
			   updated_at = ?8
			 WHERE id = ?1 AND organization_id = ?2`,
			memberID, orgID, f.Name, nameKey, f.Email, f.Phone, digits, now,
		)
		if err != nil {
			return out, eris.Wrapf(err, "sqlite: commit card %s: update member %s", cardID, memberID)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return out, eris.Wrapf(ErrMemberNotFound, "sqlite: commit card %s: member %s", cardID, memberID)
		}
	} else {
		memberID = uuid.New().String()
		created = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO members (id, organization_id, name, name_key, email, phone, phone_digits, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			memberID, orgID, f.Name, nameKey, f.Email, f.Phone, digits, now, now,
		); err != nil {
			return out, eris.Wrapf(err, "sqlite: commit card %s: insert member", cardID)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE connect_cards SET
		   name = ?, name_key = ?, email = ?, phone = ?, phone_digits = ?,
		   prayer_request = ?, visit_status = ?, interests = ?, keywords = ?,
		   volunteer_category = ?, assigned_leader_id = ?, sms_automation = ?,
		   status = 'active', member_id = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ?
		 WHERE id = ? AND organization_id = ? AND status = 'awaiting_review'`,
		f.Name, nameKey, f.Email, f.Phone, digits,
		f.PrayerRequest, f.VisitStatus, encodeList(f.Interests), encodeList(f.Keywords),
		string(f.VolunteerCategory), f.AssignedLeaderID, f.SMSAutomation,
		memberID, scope.UserID, now, now, cardID, orgID,
	)
	if err != nil {
		return out, eris.Wrapf(err, "sqlite: commit card %s: activate", cardID)
	}
	if err := checkRowsAffected(res, "card", cardID); err != nil {
		return out, err
	}

	if wantsVolunteer(f) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO volunteer_assignments
			 (id, organization_id, member_id, card_id, category, leader_id, notify_leader, send_onboarding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), orgID, memberID, cardID, string(f.VolunteerCategory), f.AssignedLeaderID,
			f.SendMessageToLeader, f.SendOnboardingDocuments, now,
		); err != nil {
			return out, eris.Wrapf(err, "sqlite: commit card %s: volunteer assignment", cardID)
		}
	}

	if err := tx.Commit(); err != nil {
		return out, eris.Wrapf(err, "sqlite: commit card %s: commit tx", cardID)
	}
	return model.CommittedContact{CardID: cardID, MemberID: memberID, Created: created, CommittedAt: now}, nil
}

func (s *SQLiteStore) DeleteCard(ctx context.Context, scope model.Scope, cardID string) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE connect_cards SET status = 'removed', reviewed_by = ?, reviewed_at = ?, updated_at = ?
		 WHERE id = ? AND organization_id = ? AND status = 'awaiting_review'`,
		scope.UserID, now, now, cardID, scope.OrganizationID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete card %s", cardID)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx,
		`SELECT status FROM connect_cards WHERE id = ? AND organization_id = ?`,
		cardID, scope.OrganizationID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrCardNotFound, "sqlite: delete card %s", cardID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete card %s: status", cardID)
	}
	return eris.Wrapf(ErrNotPending, "sqlite: delete card %s (status %s)", cardID, status)
}

func (s *SQLiteStore) ListLeaders(ctx context.Context, orgID string) ([]model.Leader, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, organization_id, name, categories FROM leaders WHERE organization_id = ? ORDER BY name`,
		orgID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list leaders for org %s", orgID)
	}
	defer rows.Close()

	var leaders []model.Leader
	for rows.Next() {
		var l model.Leader
		var cats string
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.Name, &cats); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan leader")
		}
		list, err := decodeList(cats)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: leader %s categories", l.ID)
		}
		l.Categories = stringsToCategories(list)
		leaders = append(leaders, l)
	}
	return leaders, eris.Wrap(rows.Err(), "sqlite: list leaders iterate")
}

func (s *SQLiteStore) UpsertMembers(ctx context.Context, members []model.Member) (int64, error) {
	now := s.now()
	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, m := range members {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO members (id, organization_id, name, name_key, email, phone, phone_digits, created_at, updated_at)
				 VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?8)
				 ON CONFLICT(id) DO UPDATE SET
				   organization_id = excluded.organization_id, name = excluded.name, name_key = excluded.name_key,
				   email = excluded.email, phone = excluded.phone, phone_digits = excluded.phone_digits,
				   updated_at = excluded.updated_at`,
				m.ID, m.OrganizationID, m.Name, match.NormalizeName(m.Name), m.Email, m.Phone, match.PhoneDigits(m.Phone), now,
			); err != nil {
				return eris.Wrapf(err, "sqlite: upsert member %s", m.ID)
			}
			n++
		}
		return nil
	})
	return n, err
}

func (s *SQLiteStore) UpsertLeaders(ctx context.Context, leaders []model.Leader) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, l := range leaders {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO leaders (id, organization_id, name, categories) VALUES (?, ?, ?, ?)
				 ON CONFLICT(id) DO UPDATE SET
				   organization_id = excluded.organization_id, name = excluded.name, categories = excluded.categories`,
				l.ID, l.OrganizationID, l.Name, encodeList(categoriesToStrings(l.Categories)),
			); err != nil {
				return eris.Wrapf(err, "sqlite: upsert leader %s", l.ID)
			}
			n++
		}
		return nil
	})
	return n, err
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func encodeList(ss []string) string {
	b, _ := json.Marshal(nonNil(ss))
	return string(b)
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s not found: %s", entity, id)
	}
	return nil
}

// QueueStats aggregates in Go; DATETIME aggregates come back as text from
// the driver.
func (s *SQLiteStore) QueueStats(ctx context.Context, since time.Time) ([]model.QueueStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT organization_id, status, scanned_at, updated_at FROM connect_cards ORDER BY organization_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: queue stats")
	}
	defer rows.Close()

	var out []model.QueueStats
	for rows.Next() {
		var org, status string
		var scanned, updated time.Time
		if err := rows.Scan(&org, &status, &scanned, &updated); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan queue stats")
		}
		if len(out) == 0 || out[len(out)-1].OrganizationID != org {
			out = append(out, model.QueueStats{OrganizationID: org})
		}
		st := &out[len(out)-1]
		switch model.CardStatus(status) {
		case model.CardStatusAwaitingReview:
			st.Pending++
			if st.OldestPending.IsZero() || scanned.Before(st.OldestPending) {
				st.OldestPending = scanned.UTC()
			}
		case model.CardStatusActive:
			if !updated.Before(since) {
				st.Committed++
			}
		case model.CardStatusRemoved:
			if !updated.Before(since) {
				st.Discarded++
			}
		}
	}
	return out, eris.Wrap(rows.Err(), "sqlite: queue stats iterate")
}
