package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/connect-cli/internal/match"
	"github.com/sells-group/connect-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedCards(t *testing.T, st *SQLiteStore, cards ...model.PendingCard) {
	t.Helper()
	n, err := st.InsertPendingCards(context.Background(), cards)
	require.NoError(t, err)
	require.Equal(t, int64(len(cards)), n)
}

func pending(id, org, name, email, phone string, scanned time.Time) model.PendingCard {
	return model.PendingCard{
		ID: id, OrganizationID: org, Name: name, Email: email, Phone: phone,
		ScannedAt: scanned, UpdatedAt: scanned,
	}
}

func TestSQLite_FindPendingCards_OrderAndScope(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, time.January, 4, 9, 0, 0, 0, time.UTC)

	late := pending("c2", "org1", "Bo", "", "", base.Add(time.Hour))
	late.Interests = []string{"Volunteering"}
	late.BatchID = "b1"
	seedCards(t, st,
		late,
		pending("c1", "org1", "Ann", "", "", base),
		pending("x1", "org2", "Other", "", "", base),
	)

	cards, err := st.FindPendingCards(ctx, "org1", "")
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "c1", cards[0].ID)
	assert.Equal(t, "c2", cards[1].ID)
	assert.Equal(t, []string{"Volunteering"}, cards[1].Interests)
	assert.Equal(t, []string{}, cards[0].Keywords)
	assert.Equal(t, model.CardStatusAwaitingReview, cards[0].Status)

	batch, err := st.FindPendingCards(ctx, "org1", "b1")
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "c2", batch[0].ID)
}

func TestSQLite_CommitCard_CreatesMemberAndAssignment(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCards(t, st, pending("c1", "org1", "Ann Lee", "ann@example.com", "555-010-0100", time.Now().UTC()))

	got, err := st.CommitCard(ctx, testScope, "c1", model.CommitFields{
		Name:                    "Ann Lee",
		Email:                   "ann@example.com",
		Phone:                   "555-010-0100",
		Interests:               []string{"Volunteering"},
		VolunteerCategory:       model.CategoryGreeter,
		SendOnboardingDocuments: true,
	})
	require.NoError(t, err)
	assert.True(t, got.Created)
	require.NotEmpty(t, got.MemberID)

	remaining, err := st.FindPendingCards(ctx, "org1", "")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	var status, memberID string
	require.NoError(t, st.db.QueryRow(`SELECT status, member_id FROM connect_cards WHERE id = 'c1'`).Scan(&status, &memberID))
	assert.Equal(t, "active", status)
	assert.Equal(t, got.MemberID, memberID)

	var category string
	var onboarding bool
	require.NoError(t, st.db.QueryRow(`SELECT category, send_onboarding FROM volunteer_assignments WHERE card_id = 'c1'`).
		Scan(&category, &onboarding))
	assert.Equal(t, "GREETER", category)
	assert.True(t, onboarding)

	cands, err := st.FindMemberCandidates(ctx, "org1", model.CandidateQuery{Email: "ANN@example.com"})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, got.MemberID, cands[0].ID)
}

func TestSQLite_CommitCard_LinksExistingMember(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertMembers(ctx, []model.Member{{ID: "m1", OrganizationID: "org1", Name: "Ann Lee", Email: "old@example.com", Phone: "5550100100"}})
	require.NoError(t, err)
	seedCards(t, st, pending("c1", "org1", "Ann Lee", "new@example.com", "", time.Now().UTC()))

	got, err := st.CommitCard(ctx, testScope, "c1", model.CommitFields{
		Name:             "Ann Lee",
		Email:            "new@example.com",
		IsExistingMember: true,
		MatchedMemberID:  "m1",
	})
	require.NoError(t, err)
	assert.False(t, got.Created)
	assert.Equal(t, "m1", got.MemberID)

	var email, phone string
	require.NoError(t, st.db.QueryRow(`SELECT email, phone FROM members WHERE id = 'm1'`).Scan(&email, &phone))
	assert.Equal(t, "new@example.com", email)
	assert.Equal(t, "5550100100", phone, "blank phone keeps the stored value")

	var count int
	require.NoError(t, st.db.QueryRow(`SELECT count(*) FROM members`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLite_CommitCard_Failures(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCards(t, st, pending("c1", "org1", "Ann", "", "", time.Now().UTC()))

	_, err := st.CommitCard(ctx, testScope, "nope", model.CommitFields{Name: "Ann"})
	assert.True(t, eris.Is(err, ErrCardNotFound))

	_, err = st.CommitCard(ctx, model.Scope{OrganizationID: "org2", UserID: "u1"}, "c1", model.CommitFields{Name: "Ann"})
	assert.True(t, eris.Is(err, ErrCardNotFound), "cards are scoped to their organization")

	_, err = st.CommitCard(ctx, testScope, "c1", model.CommitFields{Name: "Ann", IsExistingMember: true, MatchedMemberID: "ghost"})
	assert.True(t, eris.Is(err, ErrMemberNotFound))

	var count int
	require.NoError(t, st.db.QueryRow(`SELECT count(*) FROM members`).Scan(&count))
	assert.Zero(t, count)

	_, err = st.CommitCard(ctx, testScope, "c1", model.CommitFields{Name: "Ann"})
	require.NoError(t, err)
	_, err = st.CommitCard(ctx, testScope, "c1", model.CommitFields{Name: "Ann"})
	assert.True(t, eris.Is(err, ErrNotPending))
}

func TestSQLite_DeleteCard(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCards(t, st, pending("c1", "org1", "Ann", "", "", time.Now().UTC()))

	require.NoError(t, st.DeleteCard(ctx, testScope, "c1"))
	assert.True(t, eris.Is(st.DeleteCard(ctx, testScope, "c1"), ErrNotPending))
	assert.True(t, eris.Is(st.DeleteCard(ctx, testScope, "zzz"), ErrCardNotFound))

	cards, err := st.FindPendingCards(ctx, "org1", "")
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestSQLite_FindPendingCandidates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seedCards(t, st,
		pending("c1", "org1", "Ann Lee", "", "555-010-0100", now),
		pending("c2", "org1", "Annie Lee", "", "(555) 010-0100", now.Add(time.Second)),
		pending("c3", "org1", "Zed Quill", "", "", now.Add(2*time.Second)),
	)

	got, err := st.FindPendingCandidates(ctx, "org1", model.CandidateQuery{
		NameLike:      "Ann Lee",
		PhoneDigits:   "5550100100",
		ExcludeCardID: "c1",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].ID)

	none, err := st.FindPendingCandidates(ctx, "org1", model.CandidateQuery{})
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLite_Leaders(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	leaders := []model.Leader{
		{ID: "l2", OrganizationID: "org1", Name: "Eli", Categories: []model.VolunteerCategory{model.CategoryParking}},
		{ID: "l1", OrganizationID: "org1", Name: "Dana", Categories: []model.VolunteerCategory{model.CategoryYouth, model.CategoryKidsMinistry}},
	}
	n, err := st.UpsertLeaders(ctx, leaders)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	leaders[0].Categories = nil
	_, err = st.UpsertLeaders(ctx, leaders[:1])
	require.NoError(t, err)

	got, err := st.ListLeaders(ctx, "org1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Dana", got[0].Name)
	assert.True(t, got[0].Covers(model.CategoryKidsMinistry))
	assert.Empty(t, got[1].Categories)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestSQLite_QueueStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Second)
	seedCards(t, st,
		pending("c1", "org1", "Ann", "", "", base),
		pending("c2", "org1", "Bo", "", "", base.Add(time.Hour)),
		pending("c3", "org1", "Cy", "", "", base.Add(2*time.Hour)),
		pending("x1", "org2", "Dee", "", "", base),
	)
	_, err := st.CommitCard(ctx, testScope, "c1", model.CommitFields{Name: "Ann"})
	require.NoError(t, err)
	require.NoError(t, st.DeleteCard(ctx, testScope, "c3"))

	stats, err := st.QueueStats(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "org1", stats[0].OrganizationID)
	assert.Equal(t, 1, stats[0].Pending)
	assert.True(t, stats[0].OldestPending.Equal(base.Add(time.Hour)))
	assert.Equal(t, 1, stats[0].Committed)
	assert.Equal(t, 1, stats[0].Discarded)

	assert.Equal(t, "org2", stats[1].OrganizationID)
	assert.Equal(t, 1, stats[1].Pending)
	assert.True(t, stats[1].OldestPending.Equal(base))
}

func TestSQLite_FindMemberCandidates_ExactEmailSurvivesLimit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	old := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

	st.now = func() time.Time { return old }
	_, err := st.UpsertMembers(ctx, []model.Member{
		{ID: "m-ann", OrganizationID: "org1", Name: "Ann Lee", Email: "ann@x.org", Phone: "555-0100"},
	})
	require.NoError(t, err)

	// Thirty newer members share the family-name token and crowd the limit.
	st.now = time.Now
	var lees []model.Member
	for i := range 30 {
		lees = append(lees, model.Member{
			ID: fmt.Sprintf("m-%d", i), OrganizationID: "org1", Name: fmt.Sprintf("Person%d Lee", i),
		})
	}
	_, err = st.UpsertMembers(ctx, lees)
	require.NoError(t, err)

	cands, err := st.FindMemberCandidates(ctx, "org1", model.CandidateQuery{
		Email:    "ann@x.org",
		NameLike: "Ann Lee",
	})
	require.NoError(t, err)
	require.Len(t, cands, defaultCandidateLimit)
	assert.Equal(t, "m-ann", cands[0].ID)

	got := match.New(st, match.DefaultConfig()).Check(ctx, "org1", match.Query{
		Name:  "Ann Lee",
		Email: "ann@x.org",
	})
	assert.True(t, got.IsDuplicate)
	assert.Equal(t, model.MatchMemberEmail, got.MatchType)
	assert.Equal(t, "m-ann", got.MemberID)
}

func TestSQLite_FindPendingCandidates_ExactPhoneRanksFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	base := time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC)

	var cards []model.PendingCard
	for i := range 10 {
		cards = append(cards, pending(fmt.Sprintf("c%d", i), "org1", fmt.Sprintf("Guest%d Lee", i), "", "", base.Add(time.Duration(i)*time.Minute)))
	}
	cards = append(cards, pending("c-bo", "org1", "Bo Lee", "", "555-0199", base.Add(time.Hour)))
	seedCards(t, st, cards...)

	got, err := st.FindPendingCandidates(context.Background(), "org1", model.CandidateQuery{
		NameLike:    "Bo Lee",
		PhoneDigits: "5550199",
		Limit:       3,
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c-bo", got[0].ID)
}
