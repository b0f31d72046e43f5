package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/match-relay/internal/db"
)

var (
	// ErrInitiatorBusy means the initiating user is already in a live pairing.
	ErrInitiatorBusy = errors.New("initiator already paired")
	// ErrCounterpartBusy means the other user is in a live pairing, or won a
	// race for the session row while this transaction ran.
	ErrCounterpartBusy = errors.New("counterpart already paired")
	// ErrRequestGone means the chat request to consume was resolved concurrently.
	ErrRequestGone = errors.New("chat request no longer pending")
)

// SessionRepository owns active_chats and chat_requests.
//
// Every multi-row change runs in a single transaction so the mirrored
// active_chats rows are never observed half-written.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(database *gorm.DB) *SessionRepository {
	return &SessionRepository{db: database}
}

// PartnerOf returns the user's current partner.
//
// A row without its mirror is an orphan left by an interrupted write; it is
// removed here and the user reported as not paired.
func (r *SessionRepository) PartnerOf(ctx context.Context, userID uint64) (uint64, bool, error) {
	var row db.ActiveChat
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&row).Error
	if err != nil {
		return 0, false, err
	}
	if row.UserID == 0 {
		return 0, false, nil
	}

	var mirrored int64
	err = r.db.WithContext(ctx).
		Model(&db.ActiveChat{}).
		Where("user_id = ? AND partner_id = ?", row.PartnerID, userID).
		Count(&mirrored).Error
	if err != nil {
		return 0, false, err
	}
	if mirrored == 0 {
		err := r.db.WithContext(ctx).
			Where("user_id = ? AND partner_id = ?", userID, row.PartnerID).
			Delete(&db.ActiveChat{}).Error
		return 0, false, err
	}
	return row.PartnerID, true, nil
}

func (r *SessionRepository) HasActive(ctx context.Context, userID uint64) (bool, error) {
	_, ok, err := r.PartnerOf(ctx, userID)
	return ok, err
}

// PairOptions tunes Pair.
type PairOptions struct {
	// ConsumeRequestID, when set, names a pending chat request deleted in the
	// same transaction; Pair fails with ErrRequestGone if it is no longer pending.
	ConsumeRequestID uint64
}

// Pair commits a mirrored session between a and b.
//
// Inside one transaction it:
//  1. loads every row referencing a or b
//  2. refuses if either user is in a live mirrored pair
//  3. deletes orphan rows left behind by interrupted writes
//  4. consumes the named request and drops other pending requests between the two
//  5. inserts a → b and b → a
//
// A duplicate key on insert means someone else paired first and is reported
// as ErrCounterpartBusy.
func (r *SessionRepository) Pair(ctx context.Context, a, b uint64, opts PairOptions) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := []uint64{a, b}

		var rows []db.ActiveChat
		if err := tx.Where("user_id IN ? OR partner_id IN ?", ids, ids).Find(&rows).Error; err != nil {
			return err
		}

		live := livePairs(rows)
		if _, busy := live[a]; busy {
			return ErrInitiatorBusy
		}
		if _, busy := live[b]; busy {
			return ErrCounterpartBusy
		}

		// only the rows read above; anything committed since is left to the insert
		for _, row := range rows {
			err := tx.Where("user_id = ? AND partner_id = ?", row.UserID, row.PartnerID).Delete(&db.ActiveChat{}).Error
			if err != nil {
				return err
			}
		}

		if opts.ConsumeRequestID != 0 {
			res := tx.Where("id = ? AND status = ?", opts.ConsumeRequestID, db.ChatRequestPending).Delete(&db.ChatRequest{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrRequestGone
			}
		}

		err := tx.Where("status = ?", db.ChatRequestPending).
			Where("(requester_id = ? AND requested_id = ?) OR (requester_id = ? AND requested_id = ?)", a, b, b, a).
			Delete(&db.ChatRequest{}).Error
		if err != nil {
			return err
		}

		pair := []db.ActiveChat{{UserID: a, PartnerID: b}, {UserID: b, PartnerID: a}}
		if err := tx.Create(&pair).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrCounterpartBusy
			}
			return err
		}
		return nil
	})
}

// Stop ends the user's session and opens the reconnect gate.
//
// All rows referencing the user are deleted. If the user was in a mirrored
// pair, a pending request partner → user is inserted (if absent) so the
// partner can only come back with the user's consent. Orphan rows are removed
// without a gate. Returns the former partner, if any.
func (r *SessionRepository) Stop(ctx context.Context, userID uint64) (uint64, bool, error) {
	var partnerID uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []db.ActiveChat
		if err := tx.Where("user_id = ? OR partner_id = ?", userID, userID).Find(&rows).Error; err != nil {
			return err
		}
		partnerID = livePairs(rows)[userID]

		if err := tx.Where("user_id = ? OR partner_id = ?", userID, userID).Delete(&db.ActiveChat{}).Error; err != nil {
			return err
		}
		if partnerID == 0 {
			return nil
		}

		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&db.ChatRequest{
			RequesterID: partnerID,
			RequestedID: userID,
			Status:      db.ChatRequestPending,
			PendingKey:  db.PendingKey(partnerID, userID),
		}).Error
	})
	if err != nil {
		return 0, false, err
	}
	return partnerID, partnerID != 0, nil
}

// Teardown deletes exactly the a ↔ b pair and creates no request.
// Reports whether anything was removed.
func (r *SessionRepository) Teardown(ctx context.Context, a, b uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("(user_id = ? AND partner_id = ?) OR (user_id = ? AND partner_id = ?)", a, b, b, a).
		Delete(&db.ActiveChat{})
	return res.RowsAffected > 0, res.Error
}

// BanUser flags the user banned and removes every session row referencing
// them, without a reconnect request. Returns the users who lost a partner.
func (r *SessionRepository) BanUser(ctx context.Context, userID uint64) ([]uint64, error) {
	var partners []uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&db.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Model(&db.User{}).Where("id = ?", userID).Update("is_banned", true).Error; err != nil {
			return err
		}

		var rows []db.ActiveChat
		if err := tx.Where("user_id = ? OR partner_id = ?", userID, userID).Find(&rows).Error; err != nil {
			return err
		}
		seen := map[uint64]bool{}
		for _, row := range rows {
			other := row.PartnerID
			if other == userID {
				other = row.UserID
			}
			if !seen[other] {
				seen[other] = true
				partners = append(partners, other)
			}
		}

		return tx.Where("user_id = ? OR partner_id = ?", userID, userID).Delete(&db.ActiveChat{}).Error
	})
	if err != nil {
		return nil, err
	}
	return partners, nil
}

// livePairs maps each user in a mirrored pair to their partner.
func livePairs(rows []db.ActiveChat) map[uint64]uint64 {
	byUser := make(map[uint64]uint64, len(rows))
	for _, row := range rows {
		byUser[row.UserID] = row.PartnerID
	}
	live := make(map[uint64]uint64)
	for user, partner := range byUser {
		if back, ok := byUser[partner]; ok && back == user {
			live[user] = partner
		}
	}
	return live
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate")
}
