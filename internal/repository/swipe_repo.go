package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/match-relay/internal/db"
	"github.com/oggyb/match-relay/internal/utils/pagination"
)

// SwipeRepository is the append-only like ledger.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// RecordLike inserts liker → liked if absent.
//
// Behavior:
//   - Duplicate likes are absorbed by the composite PK, not reported as errors.
//   - inserted is false when the like already existed.
//
// Example:
//
//	repo.RecordLike(ctx, 1, 2) // user 1 liked user 2
func (r *SwipeRepository) RecordLike(ctx context.Context, likerID, likedID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.Swipe{LikerID: likerID, LikedID: likedID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// HasLiked checks whether liker has liked liked.
func (r *SwipeRepository) HasLiked(ctx context.Context, likerID, likedID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Count(&count).Error
	return count > 0, err
}

// IsMutual is true iff both a → b and b → a exist. Symmetric in its arguments.
func (r *SwipeRepository) IsMutual(ctx context.Context, a, b uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("(liker_id = ? AND liked_id = ?) OR (liker_id = ? AND liked_id = ?)", a, b, b, a).
		Count(&count).Error
	return count == 2, err
}

// Admirer is someone who liked the viewer and has not been liked back.
type Admirer struct {
	UserID   uint64    `json:"user_id"`
	Name     string    `json:"name"`
	Campus   string    `json:"campus,omitempty"`
	PhotoRef string    `json:"photo_ref,omitempty"`
	LikedAt  time.Time `json:"liked_at"`
}

// GetNewLikers returns users who liked likedID but have not been liked back.
//
// Behavior:
//   - Excludes mutual likes and banned likers.
//   - Ordered by created_at DESC, liker_id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.GetNewLikers(ctx, 42, nil, 20) // first 20 one-way likes for user 42
func (r *SwipeRepository) GetNewLikers(
	ctx context.Context,
	likedID uint64,
	paginationToken *string,
	limit int,
) ([]Admirer, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.newLikers(ctx, likedID).
		Select("s.liker_id AS user_id, u.name, u.campus, u.photo_ref, s.created_at AS liked_at").
		Order("s.created_at DESC, s.liker_id DESC").
		Limit(limit + 1)

	// apply cursor
	if !cursor.IsZero() {
		ts := cursor.CreatedAt()
		query = query.Where(
			"(s.created_at < ? OR (s.created_at = ? AND s.liker_id < ?))",
			ts, ts, cursor.UserID,
		)
	}

	var admirers []Admirer
	if err := query.Scan(&admirers).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(admirers) > limit {
		last := admirers[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			UserID:        last.UserID,
			CreatedMicros: last.LikedAt.UnixMicro(),
		})
		nextToken = &token
		admirers = admirers[:limit]
	}

	return admirers, nextToken, nil
}

// CountNewLikers counts what GetNewLikers would list.
func (r *SwipeRepository) CountNewLikers(ctx context.Context, likedID uint64) (int64, error) {
	var count int64
	if err := r.newLikers(ctx, likedID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SwipeRepository) newLikers(ctx context.Context, likedID uint64) *gorm.DB {
	// subquery to exclude mutual likes
	likedBack := r.db.
		Table("swipes s2").
		Select("1").
		Where("s2.liker_id = s.liked_id AND s2.liked_id = s.liker_id")

	return r.db.WithContext(ctx).
		Table("swipes s").
		Joins("JOIN users u ON u.id = s.liker_id").
		Where("s.liked_id = ? AND u.is_banned = ?", likedID, false).
		Where("NOT EXISTS (?)", likedBack)
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
