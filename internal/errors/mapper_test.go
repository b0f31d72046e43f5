package errors_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	svcErr "github.com/oggyb/match-relay/internal/errors"
)

func TestMap(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{gorm.ErrRecordNotFound, codes.NotFound},
		{fmt.Errorf("load: %w", svcErr.ErrRequestNotFound), codes.NotFound},
		{svcErr.ErrSelf, codes.InvalidArgument},
		{svcErr.ErrBanned, codes.PermissionDenied},
		{svcErr.ErrPartnerBusy, codes.FailedPrecondition},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{fmt.Errorf("boom"), codes.Internal},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, status.Code(svcErr.Map(c.err)), c.err.Error())
	}

	assert.Nil(t, svcErr.Map(nil))

	// already a status: passed through
	in := status.Error(codes.Unauthenticated, "nope")
	assert.Equal(t, in, svcErr.Map(in))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, svcErr.HTTPStatus(nil))
	assert.Equal(t, http.StatusNotFound, svcErr.HTTPStatus(svcErr.ErrNoProfile))
	assert.Equal(t, http.StatusConflict, svcErr.HTTPStatus(svcErr.ErrAlreadyInChat))
	assert.Equal(t, http.StatusBadRequest, svcErr.HTTPStatus(svcErr.ErrReasonTooLong))
	assert.Equal(t, http.StatusInternalServerError, svcErr.HTTPStatus(fmt.Errorf("db down")))
}

func TestUserMessage_HidesInternals(t *testing.T) {
	msg := svcErr.UserMessage(fmt.Errorf("dial tcp 10.0.0.1:3306: refused"))
	assert.NotContains(t, msg, "10.0.0.1")
	assert.Contains(t, svcErr.UserMessage(fmt.Errorf("x: %w", svcErr.ErrPartnerBusy)), "another conversation")
}
