// File: internal/network/httpclient_test.go
package network

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDefaultClientConfig(t *testing.T) {
	t.Parallel()
	cfg := NewDefaultClientConfig()

	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, DefaultMaxIdleConns, cfg.MaxIdleConns)
	assert.True(t, cfg.ForceHTTP2)
	assert.False(t, cfg.IgnoreTLSErrors)
	assert.NotNil(t, cfg.Logger)
}

func TestNewClient_NilConfigUsesDefaults(t *testing.T) {
	t.Parallel()
	client := NewClient(nil)
	require.NotNil(t, client)
	assert.Equal(t, DefaultRequestTimeout, client.Timeout)
}

func TestNewHTTPTransport_AppliesPoolAndTimeouts(t *testing.T) {
	t.Parallel()
	cfg := NewDefaultClientConfig()
	cfg.Logger = zap.NewNop()
	cfg.MaxIdleConnsPerHost = 2

	transport := NewHTTPTransport(cfg)
	assert.Equal(t, cfg.MaxIdleConns, transport.MaxIdleConns)
	assert.Equal(t, 2, transport.MaxIdleConnsPerHost)
	assert.Equal(t, cfg.ResponseHeaderTimeout, transport.ResponseHeaderTimeout)
	require.NotNil(t, transport.TLSClientConfig)
	assert.GreaterOrEqual(t, transport.TLSClientConfig.MinVersion, uint16(tls.VersionTLS12))
}

func TestConfigureTLS_EnforcesMinimumVersion(t *testing.T) {
	t.Parallel()
	cfg := NewDefaultClientConfig()
	cfg.Logger = zap.NewNop()
	cfg.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS10}

	tlsConfig := configureTLS(cfg)
	assert.Equal(t, uint16(tls.VersionTLS12), tlsConfig.MinVersion)
	// The caller's config object is cloned, never mutated.
	assert.Equal(t, uint16(tls.VersionTLS10), cfg.TLSConfig.MinVersion)
}

func TestConfigureTLS_IgnoreTLSErrors(t *testing.T) {
	t.Parallel()
	cfg := NewDefaultClientConfig()
	cfg.Logger = zap.NewNop()
	cfg.IgnoreTLSErrors = true

	assert.True(t, configureTLS(cfg).InsecureSkipVerify)
}

func TestClient_RoundTrip(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	cfg := NewDefaultClientConfig()
	cfg.Logger = zap.NewNop()
	client := NewClient(cfg)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
