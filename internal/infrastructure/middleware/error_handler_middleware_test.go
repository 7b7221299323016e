package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"owlet/internal/core/domain"
	"owlet/internal/core/services"
)

func failingRouter(t *testing.T, err error) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zaptest.NewLogger(t).Sugar()))
	router.GET("/test", func(c *gin.Context) {
		c.Error(err)
	})
	return router
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrChannelNotFound, http.StatusNotFound},
		{"wrapped not found", errors.New("x"), http.StatusInternalServerError},
		{"permission denied", services.ErrPermissionDenied, http.StatusForbidden},
		{"banned", domain.ErrBanned, http.StatusForbidden},
		{"already a member", domain.ErrAlreadyMember, http.StatusConflict},
		{"username taken", domain.ErrUsernameTaken, http.StatusConflict},
		{"self friendship", services.ErrSelfFriendship, http.StatusBadRequest},
		{"expired token", services.ErrExpiredToken, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := failingRouter(t, tc.err)
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RecoveryMiddleware(zaptest.NewLogger(t).Sugar()))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/panic", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
