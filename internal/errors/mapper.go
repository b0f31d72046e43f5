// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Domain rejections. Services return these unwrapped or wrapped with %w;
// transports translate them once through Map, HTTPStatus or UserMessage.
var (
	ErrNoProfile         = errors.New("profile not found")
	ErrBanned            = errors.New("user is banned")
	ErrAlreadyInChat     = errors.New("already in a chat")
	ErrNotInChat         = errors.New("not in a chat")
	ErrSelf              = errors.New("cannot target yourself")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserUnavailable   = errors.New("user unavailable")
	ErrNotMatched        = errors.New("users have not matched")
	ErrPartnerBusy       = errors.New("partner is in another chat")
	ErrRequestNotFound   = errors.New("chat request not found")
	ErrInvalidPreference = errors.New("invalid preference")
	ErrReasonTooLong     = errors.New("report reason too long")
	ErrNothingToReport   = errors.New("nothing to report")
	ErrEmptyMessage      = errors.New("empty message")
)

// Map converts domain/repo/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, ErrNoProfile),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrRequestNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrSelf),
		errors.Is(err, ErrInvalidPreference),
		errors.Is(err, ErrReasonTooLong),
		errors.Is(err, ErrEmptyMessage):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, ErrBanned):
		return status.Error(codes.PermissionDenied, err.Error())

	case errors.Is(err, ErrAlreadyInChat),
		errors.Is(err, ErrNotInChat),
		errors.Is(err, ErrNotMatched),
		errors.Is(err, ErrPartnerBusy),
		errors.Is(err, ErrUserUnavailable),
		errors.Is(err, ErrNothingToReport):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// HTTPStatus picks the response code for an error returned by a service.
func HTTPStatus(err error) int {
	switch status.Code(Map(err)) {
	case codes.OK:
		return http.StatusOK
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage renders an error as the text shown to the end user.
// Infrastructure failures never leak details.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoProfile):
		return "Please create a profile first."
	case errors.Is(err, ErrBanned):
		return "🚫 You are banned from using this service."
	case errors.Is(err, ErrAlreadyInChat):
		return "You are already in a chat. Use /stop to end it first."
	case errors.Is(err, ErrNotInChat):
		return "You are not in a chat right now."
	case errors.Is(err, ErrSelf):
		return "You cannot do that with yourself."
	case errors.Is(err, ErrUserNotFound):
		return "User not found."
	case errors.Is(err, ErrUserUnavailable):
		return "This user is no longer available."
	case errors.Is(err, ErrNotMatched):
		return "You can only chat with your matches."
	case errors.Is(err, ErrPartnerBusy):
		return "They are currently in another conversation. Try again later."
	case errors.Is(err, ErrRequestNotFound):
		return "That chat request is no longer available."
	case errors.Is(err, ErrInvalidPreference):
		return "Preference must be Male, Female or Both."
	case errors.Is(err, ErrReasonTooLong):
		return "Please keep the reason under 500 characters."
	case errors.Is(err, ErrNothingToReport):
		return "There is no one to report."
	case errors.Is(err, ErrEmptyMessage):
		return "Nothing to send."
	default:
		return "Something went wrong. Please try again."
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}

// Unauthenticated creates a gRPC Unauthenticated error.
func Unauthenticated(msg string) error {
	return status.Error(codes.Unauthenticated, msg)
}
