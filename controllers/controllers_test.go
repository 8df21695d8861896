package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/socialfeed/models"
)

func TestParsePagination(t *testing.T) {
	cases := []struct {
		offset, limit      string
		wantOff, wantLimit int
	}{
		{"", "", 0, 20},
		{"5", "10", 5, 10},
		{"-3", "0", 0, 20},
		{"x", "500", 0, 100},
		{"2", "100", 2, 100},
		{"0", "101", 0, 100},
		{"", "abc", 0, 20},
	}
	for _, tc := range cases {
		off, lim := parsePagination(tc.offset, tc.limit)
		if off != tc.wantOff || lim != tc.wantLimit {
			t.Errorf("parsePagination(%q, %q) = %d, %d; want %d, %d", tc.offset, tc.limit, off, lim, tc.wantOff, tc.wantLimit)
		}
	}
}

func TestValidUsername(t *testing.T) {
	for name, want := range map[string]bool{
		"alice":     true,
		"bob_2.x-y": true,
		"":          false,
		"has space": false,
		"<script>":  false,
	} {
		if got := validUsername(name); got != want {
			t.Errorf("validUsername(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestWriteErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("post 1: %w", models.ErrNotFound), http.StatusNotFound},
		{models.ErrConflict, http.StatusConflict},
		{models.ErrCredential, http.StatusForbidden},
		{fmt.Errorf("post 1: %w", models.ErrAccessDenied), http.StatusForbidden},
		{models.ErrUnauthenticated, http.StatusUnauthorized},
		{models.ErrUnsupportedMedia, http.StatusUnsupportedMediaType},
		{models.ErrInvalidInput, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		writeError(ctx, zap.NewNop(), tc.err)
		if w.Code != tc.status {
			t.Errorf("writeError(%v) status = %d, want %d", tc.err, w.Code, tc.status)
		}
	}
}
