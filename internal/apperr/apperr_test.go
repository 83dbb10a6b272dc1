package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Status(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindGatewayRejected, http.StatusBadRequest},
		{KindGatewayVerify, http.StatusBadRequest},
		{KindForbidden, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindGatewayUnavailable, http.StatusServiceUnavailable},
		{KindGatewayAuth, http.StatusInternalServerError},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, New(tc.kind, "x").Status(), string(tc.kind))
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	base := WithCode(KindGatewayRejected, "-780", "approval failed", errors.New("boom"))
	err := fmt.Errorf("approve: %w", base)

	assert.Equal(t, KindGatewayRejected, KindOf(err))
	assert.True(t, IsKind(err, KindGatewayRejected))

	e, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "-780", e.Code)
	assert.Contains(t, e.Error(), "boom")

	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindInternal))
}
