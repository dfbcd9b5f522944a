package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tasklist/internal/domain/entities"
	"github.com/taskmaster/tasklist/internal/ports"
)

func TestHTTPRemote_MoveSendsBaseVersion(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ports.WriteResult{Version: 4, Changed: true})
	}))
	defer srv.Close()

	remote := NewHTTPRemote(strings.TrimPrefix(srv.URL, "http://"), "tok", time.Second)
	base := int64(3)
	res, err := remote.Move(context.Background(), "C", 2, &base)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Version)
	assert.True(t, res.Changed)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/api/v1/tasks/C/move/2", got.URL.Path)
	assert.Equal(t, "3", got.Header.Get("If-Match"))
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
}

func TestHTTPRemote_CreateSendsPayload(t *testing.T) {
	var body ports.CreateTaskRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("If-Match"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(ports.WriteResult{Version: 1, Changed: true, Position: 1})
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, "", time.Second)
	res, err := remote.Create(context.Background(), ports.CreateTaskRequest{ID: "P", Data: entities.TextData("pin me"), Pinned: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Position)
	assert.Equal(t, "P", body.ID)
	assert.True(t, body.Pinned)
	assert.Equal(t, "pin me", body.Data.Text())
}

func TestHTTPRemote_ErrorsMapToSentinels(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		want    error
	}{
		{"stale", http.StatusConflict, "version mismatch", entities.ErrStaleVersion},
		{"duplicate", http.StatusConflict, entities.ErrTaskConflict.Error(), entities.ErrTaskConflict},
		{"missing", http.StatusNotFound, "not here", entities.ErrTaskNotFound},
		{"unauthorized", http.StatusUnauthorized, "no token", entities.ErrUnauthorized},
		{"storage", http.StatusServiceUnavailable, "db down", entities.ErrPersistence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": tt.message})
			}))
			defer srv.Close()

			_, err := NewHTTPRemote(srv.URL, "", time.Second).Delete(context.Background(), "A", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var remoteErr *RemoteError
			require.ErrorAs(t, err, &remoteErr)
			assert.Equal(t, tt.status, remoteErr.Status)
			assert.Equal(t, tt.message, remoteErr.Message)
		})
	}
}
