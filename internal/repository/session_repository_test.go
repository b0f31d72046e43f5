package repository_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/match-relay/internal/db"
	"github.com/oggyb/match-relay/internal/repository"
	"github.com/oggyb/match-relay/internal/testutil"
)

func activeRows(t *testing.T, dbase *gorm.DB) map[uint64]uint64 {
	t.Helper()
	var rows []db.ActiveChat
	require.NoError(t, dbase.Find(&rows).Error)
	out := map[uint64]uint64{}
	for _, r := range rows {
		out[r.UserID] = r.PartnerID
	}
	return out
}

func TestPair_InsertsMirroredRows(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	repo := repository.NewSessionRepository(dbase)

	require.NoError(t, repo.Pair(ctx, 1, 2, repository.PairOptions{}))
	assert.Equal(t, map[uint64]uint64{1: 2, 2: 1}, activeRows(t, dbase))

	p, ok, err := repo.PartnerOf(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), p)
}

func TestPair_RefusesLivePairs(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	repo := repository.NewSessionRepository(dbase)
	require.NoError(t, repo.Pair(ctx, 1, 2, repository.PairOptions{}))

	assert.ErrorIs(t, repo.Pair(ctx, 1, 3, repository.PairOptions{}), repository.ErrInitiatorBusy)
	assert.ErrorIs(t, repo.Pair(ctx, 3, 2, repository.PairOptions{}), repository.ErrCounterpartBusy)

	// nothing displaced
	assert.Equal(t, map[uint64]uint64{1: 2, 2: 1}, activeRows(t, dbase))
}

func TestPair_RepairsOrphans(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	repo := repository.NewSessionRepository(dbase)

	// single-sided rows left by an interrupted write
	require.NoError(t, dbase.Create(&db.ActiveChat{UserID: 1, PartnerID: 7}).Error)
	require.NoError(t, dbase.Create(&db.ActiveChat{UserID: 8, PartnerID: 2}).Error)

	require.NoError(t, repo.Pair(ctx, 1, 2, repository.PairOptions{}))
	assert.Equal(t, map[uint64]uint64{1: 2, 2: 1}, activeRows(t, dbase))
}

func TestPair_KeepsPairCommittedAfterRead(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	repo := repository.NewSessionRepository(dbase)
	require.NoError(t, dbase.Create(&db.ActiveChat{UserID: 1, PartnerID: 7}).Error)

	// 2 ↔ 3 lands between Pair's read and its orphan cleanup
	var fired atomic.Bool
	require.NoError(t, dbase.Callback().Delete().Before("gorm:delete").Register("test:late_pair", func(tx *gorm.DB) {
		if tx.Statement.Table != "active_chats" || !fired.CompareAndSwap(false, true) {
			return
		}
		now := time.Now().UTC()
		err := tx.Session(&gorm.Session{NewDB: true}).
			Exec("INSERT INTO active_chats (user_id, partner_id, created_at) VALUES (?, ?, ?), (?, ?, ?)", 2, 3, now, 3, 2, now).Error
		assert.NoError(t, err)
	}))

	err := repo.Pair(ctx, 1, 2, repository.PairOptions{})
	assert.ErrorIs(t, err, repository.ErrCounterpartBusy)
	assert.True(t, fired.Load())
	assert.Equal(t, map[uint64]uint64{1: 7}, activeRows(t, dbase))
}

func TestPartnerOf_RepairsOrphanOnRead(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	repo := repository.NewSessionRepository(dbase)
	require.NoError(t, dbase.Create(&db.ActiveChat{UserID: 1, PartnerID: 7}).Error)

	active, err := repo.HasActive(ctx, 1)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Empty(t, activeRows(t, dbase))
}

func TestPair_ConsumesRequest(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	repo := repository.NewSessionRepository(dbase)

	created, err := repo.CreateRequest(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, created)
	req, err := repo.PendingRequest(ctx, 2, 1)
	require.NoError(t, err)
	require.NotNil(t, req)

	require.NoError(t, repo.Pair(ctx, 1, 2, repository.PairOptions{ConsumeRequestID: req.ID}))

	var n int64
	require.NoError(t, dbase.Model(&db.ChatRequest{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)

	// consumed twice: gone, and the failed transaction leaves nothing behind
	require.NoError(t, dbase.Exec("DELETE FROM active_chats").Error)
	err = repo.Pair(ctx, 1, 2, repository.PairOptions{ConsumeRequestID: req.ID})
	assert.ErrorIs(t, err, repository.ErrRequestGone)
	assert.Empty(t, activeRows(t, dbase))
}

func TestStop_OpensReconnectGate(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	repo := repository.NewSessionRepository(dbase)
	require.NoError(t, repo.Pair(ctx, 1, 2, repository.PairOptions{}))

	partner, had, err := repo.Stop(ctx, 1)
	require.NoError(t, err)
	assert.True(t, had)
	assert.Equal(t, uint64(2), partner)
	assert.Empty(t, activeRows(t, dbase))

	req, err := repo.PendingRequest(ctx, 2, 1)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, db.ChatRequestPending, req.Status)

	// a second stop is a no-op
	_, had, err = repo.Stop(ctx, 1)
	require.NoError(t, err)
	assert.False(t, had)
}

func TestStop_OrphanRowOpensNoGate(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	repo := repository.NewSessionRepository(dbase)
	require.NoError(t, dbase.Create(&[]db.ActiveChat{{UserID: 1, PartnerID: 2}, {UserID: 3, PartnerID: 1}}).Error)

	partner, had, err := repo.Stop(ctx, 1)
	require.NoError(t, err)
	assert.False(t, had)
	assert.Zero(t, partner)
	assert.Empty(t, activeRows(t, dbase))

	var n int64
	require.NoError(t, dbase.Model(&db.ChatRequest{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestStop_GateInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	repo := repository.NewSessionRepository(dbase)

	_, err := repo.CreateRequest(ctx, 2, 1)
	require.NoError(t, err)
	require.NoError(t, dbase.Create(&[]db.ActiveChat{{UserID: 1, PartnerID: 2}, {UserID: 2, PartnerID: 1}}).Error)

	_, _, err = repo.Stop(ctx, 1)
	require.NoError(t, err)

	var n int64
	require.NoError(t, dbase.Model(&db.ChatRequest{}).Where("status = ?", db.ChatRequestPending).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestTeardown_RemovesExactPair(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	repo := repository.NewSessionRepository(dbase)
	require.NoError(t, repo.Pair(ctx, 1, 2, repository.PairOptions{}))
	require.NoError(t, repo.Pair(ctx, 3, 4, repository.PairOptions{}))

	removed, err := repo.Teardown(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, map[uint64]uint64{3: 4, 4: 3}, activeRows(t, dbase))

	var n int64
	require.NoError(t, dbase.Model(&db.ChatRequest{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestBanUser_TearsDownWithoutGate(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	require.NoError(t, dbase.Create(&[]db.User{
		{ID: 1, Name: "A", Gender: db.GenderMale, Preference: db.PreferenceBoth},
		{ID: 2, Name: "B", Gender: db.GenderFemale, Preference: db.PreferenceBoth},
	}).Error)
	repo := repository.NewSessionRepository(dbase)
	require.NoError(t, repo.Pair(ctx, 1, 2, repository.PairOptions{}))

	partners, err := repo.BanUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, partners)
	assert.Empty(t, activeRows(t, dbase))

	var u db.User
	require.NoError(t, dbase.First(&u, 2).Error)
	assert.True(t, u.IsBanned)

	var n int64
	require.NoError(t, dbase.Model(&db.ChatRequest{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)

	_, err = repo.BanUser(ctx, 42)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestChatRequests_PendingUniqueAndDecline(t *testing.T) {
	ctx := context.Background()
	dbase := testutil.NewDB(t)
	require.NoError(t, dbase.Create(&[]db.User{
		{ID: 1, Name: "A", Campus: "North", Gender: db.GenderMale, Preference: db.PreferenceBoth},
		{ID: 2, Name: "B", Campus: "South", Gender: db.GenderFemale, Preference: db.PreferenceBoth},
		{ID: 3, Name: "C", Gender: db.GenderFemale, Preference: db.PreferenceBoth},
	}).Error)
	repo := repository.NewSessionRepository(dbase)

	created, err := repo.CreateRequest(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.CreateRequest(ctx, 2, 1)
	require.NoError(t, err)
	assert.False(t, created)
	_, err = repo.CreateRequest(ctx, 3, 1)
	require.NoError(t, err)

	list, err := repo.ListPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(3), list[0].RequesterID)
	assert.Equal(t, "B", list[1].RequesterName)
	assert.Equal(t, "South", list[1].RequesterCampus)

	ok, err := repo.Decline(ctx, list[1].ID, 2) // not the recipient
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Decline(ctx, list[1].ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	declined, err := repo.HasDeclined(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, declined)

	hist, err := repo.HasRequestHistory(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, hist)

	// declining freed the pending slot
	created, err = repo.CreateRequest(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, created)

	n, err := repo.DeclineAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err = repo.ListPending(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)

	missing, err := repo.GetPendingForRecipient(ctx, 9999, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReportRepository(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewReportRepository(testutil.NewDB(t))

	rep, err := repo.Create(ctx, 1, 2, "spam")
	require.NoError(t, err)
	assert.NotZero(t, rep.ID)

	n, err := repo.CountPending(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
