package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenClientAcquire(t *testing.T) {
	var gotContext string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotContext = body["context"]
		json.NewEncoder(w).Encode(Token{Credential: "ek_abc", SessionID: "sess_1"})
	}))
	defer srv.Close()

	tok, err := NewTokenClient(srv.URL).Acquire(context.Background(), "tech conference, 300 attendees")
	require.NoError(t, err)
	assert.Equal(t, "ek_abc", tok.Credential)
	assert.Equal(t, "sess_1", tok.SessionID)
	assert.Equal(t, "tech conference, 300 attendees", gotContext)
}

func TestTokenClientSurfacesErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "campaign quota exhausted"})
	}))
	defer srv.Close()

	_, err := NewTokenClient(srv.URL).Acquire(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "campaign quota exhausted")
}

func TestTokenClientRejectsEmptyCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Token{SessionID: "sess_1"})
	}))
	defer srv.Close()

	_, err := NewTokenClient(srv.URL).Acquire(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credential")
}
