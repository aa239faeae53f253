package middlewarectx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/mirage-ghibli/internal/http/middlewarectx"
	"github.com/magabrotheeeer/mirage-ghibli/internal/models"
)

func TestUserRateLimiter_PerUser(t *testing.T) {
	l := middlewarectx.NewUserRateLimiter(0.001, 2)

	assert.True(t, l.Allow("u-1"))
	assert.True(t, l.Allow("u-1"))
	assert.False(t, l.Allow("u-1"))

	assert.True(t, l.Allow("u-2"), "other users have their own bucket")
}

func TestRateLimitMiddleware(t *testing.T) {
	l := middlewarectx.NewUserRateLimiter(0.001, 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	h := middlewarectx.RateLimitMiddleware(l, newNoopLogger())(next)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/transform", nil)
		req = req.WithContext(middlewarectx.WithUser(req.Context(), &models.User{ID: "u-1"}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusAccepted, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}
