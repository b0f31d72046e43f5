package repository

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/oggyb/match-relay/internal/db"
)

// CreateRequest inserts a pending request requester → requested if none is
// pending for that ordered pair. created is false when one already was.
func (r *SessionRepository) CreateRequest(ctx context.Context, requesterID, requestedID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.ChatRequest{
			RequesterID: requesterID,
			RequestedID: requestedID,
			Status:      db.ChatRequestPending,
			PendingKey:  db.PendingKey(requesterID, requestedID),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PendingRequest returns the pending request requester → requested, or nil.
func (r *SessionRepository) PendingRequest(ctx context.Context, requesterID, requestedID uint64) (*db.ChatRequest, error) {
	var req db.ChatRequest
	err := r.db.WithContext(ctx).
		Where("pending_key = ?", *db.PendingKey(requesterID, requestedID)).
		Limit(1).
		Find(&req).Error
	if err != nil || req.ID == 0 {
		return nil, err
	}
	return &req, nil
}

// HasDeclined reports whether requested has ever declined requester.
func (r *SessionRepository) HasDeclined(ctx context.Context, requesterID, requestedID uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&db.ChatRequest{}).
		Where("requester_id = ? AND requested_id = ? AND status = ?", requesterID, requestedID, db.ChatRequestDeclined).
		Count(&n).Error
	return n > 0, err
}

// HasRequestHistory reports whether any request ever passed between a and b.
// A stopped session leaves one behind, so former partners stay reachable.
func (r *SessionRepository) HasRequestHistory(ctx context.Context, a, b uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&db.ChatRequest{}).
		Where("(requester_id = ? AND requested_id = ?) OR (requester_id = ? AND requested_id = ?)", a, b, b, a).
		Count(&n).Error
	return n > 0, err
}

// GetPendingForRecipient loads a pending request addressed to recipientID, or nil.
func (r *SessionRepository) GetPendingForRecipient(ctx context.Context, requestID, recipientID uint64) (*db.ChatRequest, error) {
	var req db.ChatRequest
	err := r.db.WithContext(ctx).
		Where("id = ? AND requested_id = ? AND status = ?", requestID, recipientID, db.ChatRequestPending).
		Limit(1).
		Find(&req).Error
	if err != nil || req.ID == 0 {
		return nil, err
	}
	return &req, nil
}

// LatestPendingOutbound returns the newest pending request sent by requesterID, or nil.
func (r *SessionRepository) LatestPendingOutbound(ctx context.Context, requesterID uint64) (*db.ChatRequest, error) {
	var req db.ChatRequest
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND status = ?", requesterID, db.ChatRequestPending).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&req).Error
	if err != nil || req.ID == 0 {
		return nil, err
	}
	return &req, nil
}

// PendingInbound is a pending request joined with the requester's profile.
type PendingInbound struct {
	ID              uint64    `json:"id"`
	RequesterID     uint64    `json:"requester_id"`
	RequesterName   string    `json:"requester_name"`
	RequesterCampus string    `json:"requester_campus,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListPending lists pending requests addressed to recipientID, newest first.
func (r *SessionRepository) ListPending(ctx context.Context, recipientID uint64) ([]PendingInbound, error) {
	var out []PendingInbound
	err := r.db.WithContext(ctx).
		Table("chat_requests cr").
		Select("cr.id, cr.requester_id, u.name AS requester_name, u.campus AS requester_campus, cr.created_at").
		Joins("JOIN users u ON u.id = cr.requester_id").
		Where("cr.requested_id = ? AND cr.status = ?", recipientID, db.ChatRequestPending).
		Order("cr.created_at DESC, cr.id DESC").
		Scan(&out).Error
	return out, err
}

// Decline marks one pending request to recipientID declined.
// Reports false when it was not pending (or not theirs).
func (r *SessionRepository) Decline(ctx context.Context, requestID, recipientID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.ChatRequest{}).
		Where("id = ? AND requested_id = ? AND status = ?", requestID, recipientID, db.ChatRequestPending).
		Updates(map[string]any{"status": db.ChatRequestDeclined, "pending_key": nil})
	return res.RowsAffected > 0, res.Error
}

// DeclineAll declines every pending request addressed to recipientID.
func (r *SessionRepository) DeclineAll(ctx context.Context, recipientID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.ChatRequest{}).
		Where("requested_id = ? AND status = ?", recipientID, db.ChatRequestPending).
		Updates(map[string]any{"status": db.ChatRequestDeclined, "pending_key": nil})
	return res.RowsAffected, res.Error
}
