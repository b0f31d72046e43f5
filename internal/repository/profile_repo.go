package repository

import (
	"context"
	"errors"
	"math/rand/v2"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/match-relay/internal/db"
)

// ProfileRepository is the core's view of the profile store.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// Get loads a profile. Returns gorm.ErrRecordNotFound when absent.
func (r *ProfileRepository) Get(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).Take(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// Upsert creates a profile or refreshes its editable fields.
// The ban flag and preference are never touched here.
func (r *ProfileRepository) Upsert(ctx context.Context, u *db.User) error {
	if u.Preference == "" {
		u.Preference = db.PreferenceBoth
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "name", "gender", "campus", "bio", "hobbies", "photo_ref", "updated_at",
			}),
		}).
		Create(u).Error
}

func (r *ProfileRepository) SetPreference(ctx context.Context, id uint64, pref db.Preference) error {
	return r.update(ctx, id, "preference", pref)
}

func (r *ProfileRepository) SetBanned(ctx context.Context, id uint64, banned bool) error {
	return r.update(ctx, id, "is_banned", banned)
}

func (r *ProfileRepository) update(ctx context.Context, id uint64, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL reports 0 for unchanged rows; tell that apart from a missing one
		var n int64
		if err := r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

// PickCandidate returns one eligible profile for userID, chosen uniformly at random.
//
// Eligible means:
//   - gender is one of genders
//   - not banned, not userID itself
//   - never liked by userID (swipes are the "seen" ledger)
//
// Returns nil, nil when nobody is eligible. The count-then-offset read works
// the same on every supported dialect.
func (r *ProfileRepository) PickCandidate(ctx context.Context, userID uint64, genders []db.Gender) (*db.User, error) {
	eligible := func() *gorm.DB {
		liked := r.db.Model(&db.Swipe{}).Select("liked_id").Where("liker_id = ?", userID)
		return r.db.WithContext(ctx).
			Model(&db.User{}).
			Where("gender IN ?", genders).
			Where("is_banned = ?", false).
			Where("id <> ?", userID).
			Where("id NOT IN (?)", liked)
	}

	var total int64
	if err := eligible().Count(&total).Error; err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	var u db.User
	err := eligible().Order("id").Offset(int(rand.Int64N(total))).Limit(1).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// a row vanished between count and read
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Stats is an operational snapshot for the admin API.
type Stats struct {
	Users          int64
	BannedUsers    int64
	Swipes         int64
	ActiveSessions int64
	PendingChats   int64
	PendingReports int64
}

func (r *ProfileRepository) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	q := r.db.WithContext(ctx)
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&s.Users, q.Model(&db.User{})},
		{&s.BannedUsers, q.Model(&db.User{}).Where("is_banned = ?", true)},
		{&s.Swipes, q.Model(&db.Swipe{})},
		{&s.ActiveSessions, q.Model(&db.ActiveChat{})},
		{&s.PendingChats, q.Model(&db.ChatRequest{}).Where("status = ?", db.ChatRequestPending)},
		{&s.PendingReports, q.Model(&db.Report{}).Where("status = ?", db.ReportPending)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	// two mirrored rows per session
	s.ActiveSessions /= 2
	return &s, nil
}
