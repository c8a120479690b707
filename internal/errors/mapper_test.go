package errors_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	svcErr "github.com/oggyb/campusknot/internal/errors"
)

func TestMap(t *testing.T) {
	tests := []struct {
		name   string
		in     error
		kind   svcErr.Kind
		status int
		msg    string
	}{
		{"record not found", fmt.Errorf("load: %w", gorm.ErrRecordNotFound), svcErr.KindNotFound, http.StatusNotFound, "record not found"},
		{"duplicate key", gorm.ErrDuplicatedKey, svcErr.KindConflict, http.StatusConflict, "already exists"},
		{"deadline", context.DeadlineExceeded, svcErr.KindUpstream, http.StatusBadGateway, "request timed out"},
		{"unknown hides detail", errors.New("near \"SELEC\": syntax error"), svcErr.KindInternal, http.StatusInternalServerError, "internal server error"},
		{"classified passes through", svcErr.Forbidden("not a member"), svcErr.KindForbidden, http.StatusForbidden, "not a member"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := svcErr.Map(tc.in)
			assert.Equal(t, tc.kind, svcErr.KindOf(got))
			assert.Equal(t, tc.status, svcErr.HTTPStatus(got))
			assert.Equal(t, tc.msg, svcErr.Message(got))
		})
	}
}

func TestMap_Nil(t *testing.T) {
	assert.NoError(t, svcErr.Map(nil))
}

func TestUpstreamKeepsCause(t *testing.T) {
	cause := errors.New("smtp: 421 service not available")
	err := svcErr.Upstream("failed to send verification email", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, svcErr.Is(err, svcErr.KindUpstream))
	assert.Equal(t, "failed to send verification email", svcErr.Message(err))
}
