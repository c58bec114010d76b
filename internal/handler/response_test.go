package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/memorial/internal/apperror"
	"github.com/sakif/memorial/internal/auth"
	"github.com/sakif/memorial/internal/model"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		wantMsg    string
		wantField  string
	}{
		{"validation", apperror.ValidationFailed("content", "tribute text is required"), http.StatusBadRequest, "validation_error", "tribute text is required", "content"},
		{"unauthorized", apperror.Unauthorized("invalid credentials"), http.StatusUnauthorized, "unauthorized", "invalid credentials", ""},
		{"forbidden", apperror.Forbidden("not your tribute"), http.StatusForbidden, "forbidden", "not your tribute", ""},
		{"not found", apperror.NotFound("tribute", "t1"), http.StatusNotFound, "not_found", "tribute not found with id t1", ""},
		{"conflict", apperror.Conflict("account", "alice"), http.StatusConflict, "conflict", "account already exists: alice", ""},
		{"wrapped", fmt.Errorf("service: %w", apperror.NotFound("gallery image", "g1")), http.StatusNotFound, "not_found", "gallery image not found with id g1", ""},
		{"internal", errors.New("sqlite: disk I/O error at /var/lib/memorial.db"), http.StatusInternalServerError, "internal_error", "An internal error occurred", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantType, body.Error)
			assert.Equal(t, tt.wantMsg, body.Message)
			assert.Equal(t, tt.wantField, body.Field)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Run("unknown fields are ignored", func(t *testing.T) {
		var dst registerRequest
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"alice","isAdmin":true}`))
		require.NoError(t, decodeJSON(httptest.NewRecorder(), req, &dst))
		assert.Equal(t, "alice", dst.Username)
	})

	t.Run("malformed body", func(t *testing.T) {
		var dst registerRequest
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":`))
		err := decodeJSON(httptest.NewRecorder(), req, &dst)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("oversized body", func(t *testing.T) {
		var dst settingRequest
		body := `{"value":"` + strings.Repeat("a", maxJSONBody) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		err := decodeJSON(httptest.NewRecorder(), req, &dst)
		require.ErrorIs(t, err, apperror.ErrValidation)
		assert.Contains(t, err.Error(), "too large")
	})
}

func TestPageParams(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"", 0, 0, false},
		{"limit=5&offset=10", 5, 10, false},
		{"limit=abc", 0, 0, true},
		{"offset=1.5", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tributes?"+tt.query, nil)
			limit, offset, err := pageParams(req)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, actor(req))

	alice := &model.Account{ID: "a1", Username: "alice"}
	req = req.WithContext(auth.WithAccount(req.Context(), alice))
	assert.Same(t, alice, actor(req))
}
