package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))

		var in credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		if in.Password != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok",
			"token_type":   "bearer",
			"expires_in":   3600,
			"user":         map[string]string{"id": "u1", "email": in.Email},
		})
	}))
	defer srv.Close()
	c := NewClient(srv.URL+"/", "anon", 5*time.Second)

	s, err := c.SignIn(context.Background(), "alex@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", s.AccessToken)
	assert.Equal(t, "alex@example.com", s.User.Email)
	assert.True(t, s.ExpiresAt.After(time.Now()))

	_, err = c.SignIn(context.Background(), "alex@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "Invalid login credentials")
}

func TestSignUp_ConfirmationPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		w.Write([]byte(`{"id":"u2","email":"new@example.com"}`))
	}))
	defer srv.Close()

	s, err := NewClient(srv.URL, "anon", 5*time.Second).SignUp(context.Background(), "new@example.com", "pw")
	require.NoError(t, err)

	assert.Empty(t, s.AccessToken)
	assert.Equal(t, User{ID: "u2", Email: "new@example.com"}, s.User)
}

func TestSignOutAndUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		case "/auth/v1/user":
			w.Write([]byte(`{"id":"u1","email":"alex@example.com"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "anon", 5*time.Second)

	u, err := c.User(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	assert.NoError(t, c.SignOut(context.Background(), "tok"))
}

func TestProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"msg":"User already registered"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "anon", 5*time.Second).SignUp(context.Background(), "alex@example.com", "pw")

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnprocessableEntity, pe.Code)
	assert.Equal(t, "User already registered", pe.Message)
}
