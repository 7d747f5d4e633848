// File: internal/lookup/client_test.go
package lookup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/peltrault/formsync/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.EndpointsConfig{
		AllowedOptions: srv.URL + "/allowed/",
		AssignedRoles:  srv.URL + "/roles/",
		RequestTimeout: 2 * time.Second,
		RateLimit:      0, // unlimited in tests
	}
	return New(cfg, zap.NewNop()), srv
}

func TestAllowedOptions_Success(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/allowed/", r.URL.Path)
		assert.Equal(t, "owner-7", r.URL.Query().Get("owner_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"processus":[
			{"uuid":"P-1","nom":"Achats","numero_processus":"01"},
			{"uuid":"P-2","nom":"Ventes"}
		]}`))
	}))

	options, err := client.AllowedOptions(context.Background(), "owner-7")
	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, "P-1", options[0].UUID)
	assert.Equal(t, "Achats", options[0].Name)
	assert.Equal(t, "01", options[0].Number)
	assert.Equal(t, "P-2", options[1].UUID)
}

func TestAllowedOptions_EmptyOwnerShortCircuits(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	options, err := client.AllowedOptions(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, options)
	assert.EqualValues(t, 0, hits.Load(), "no request may be issued without an owner")
}

func TestAllowedOptions_MissingKeyMeansNoOptions(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	options, err := client.AllowedOptions(context.Background(), "owner-7")
	require.NoError(t, err)
	assert.Empty(t, options)
}

func TestAllowedOptions_ServerErrorWithDetail(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"owner is suspended"}`))
	}))

	_, err := client.AllowedOptions(context.Background(), "owner-7")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Equal(t, "owner is suspended", te.Detail)
	assert.Equal(t, "owner is suspended", te.UserMessage())
}

func TestAllowedOptions_ServerErrorUnparsableDetailSwallowed(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<html>boom</html>`))
	}))

	_, err := client.AllowedOptions(context.Background(), "owner-7")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Empty(t, te.Detail)
	assert.Equal(t, genericFailureMessage, te.UserMessage())
}

func TestAllowedOptions_NonServerErrorStatusHasNoDetail(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"should be ignored for 403"}`))
	}))

	_, err := client.AllowedOptions(context.Background(), "owner-7")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusForbidden, te.StatusCode)
	assert.Empty(t, te.Detail)
}

func TestAllowedOptions_MalformedPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"processus": "not-an-array"}`))
	}))

	_, err := client.AllowedOptions(context.Background(), "owner-7")
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, genericFailureMessage, FailureMessage(err))
}

func TestAllowedOptions_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // closed on purpose

	cfg := config.EndpointsConfig{
		AllowedOptions: srv.URL + "/allowed/",
		AssignedRoles:  srv.URL + "/roles/",
		RequestTimeout: time.Second,
	}
	client := New(cfg, zap.NewNop())

	_, err := client.AllowedOptions(context.Background(), "owner-7")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
	assert.Error(t, errors.Unwrap(te))
}

func TestAssignedRoles_Success(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/roles/", r.URL.Path)
		assert.Equal(t, "owner-7", r.URL.Query().Get("owner_id"))
		_, _ = w.Write([]byte(`{"roles":[{"role_uuid":"R-1"},{"role_uuid":"R-2"},{"role_uuid":""}]}`))
	}))

	roles, err := client.AssignedRoles(context.Background(), "owner-7")
	require.NoError(t, err)
	assert.Equal(t, []string{"R-1", "R-2"}, roles)
}

func TestAssignedRoles_EmptyOwnerShortCircuits(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	roles, err := client.AssignedRoles(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, roles)
	assert.EqualValues(t, 0, hits.Load())
}

func TestFailureMessage_NonTransportError(t *testing.T) {
	assert.Equal(t, genericFailureMessage, FailureMessage(errors.New("anything")))
}
