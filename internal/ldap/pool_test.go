package ldap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3, cfg.ProtocolVersion)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, TLSDemand, cfg.TLSRequireCert)
	assert.Equal(t, 10, cfg.MaxConnections)
	assert.Equal(t, 5*time.Minute, cfg.MaxIdleTime)
	assert.Equal(t, 30*time.Second, cfg.HealthCheck)
	assert.False(t, cfg.UsesKerberos())
}

func TestValidatePoolConfig(t *testing.T) {
	valid := func() *ConnectionConfig {
		cfg := DefaultConfig()
		cfg.URL = "ldap://ldap.example.org"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*ConnectionConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*ConnectionConfig) {}},
		{name: "no url", mutate: func(c *ConnectionConfig) { c.URL = "" }, wantErr: "URL is required"},
		{name: "zero max connections", mutate: func(c *ConnectionConfig) { c.MaxConnections = 0 }, wantErr: "must be positive"},
		{name: "too many connections", mutate: func(c *ConnectionConfig) { c.MaxConnections = MaxPoolSize + 1 }, wantErr: "too high"},
		{name: "zero idle time", mutate: func(c *ConnectionConfig) { c.MaxIdleTime = 0 }, wantErr: "idle time"},
		{name: "zero timeout", mutate: func(c *ConnectionConfig) { c.Timeout = 0 }, wantErr: "timeout"},
		{name: "bad version", mutate: func(c *ConnectionConfig) { c.ProtocolVersion = 1 }, wantErr: "version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validatePoolConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewPoolRequiresURL(t *testing.T) {
	_, err := NewPool(t.Context(), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func newTestPool(t *testing.T, url string, maxConns int) *Pool {
	t.Helper()
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.MaxConnections = maxConns
	cfg.HealthCheck = 0

	p, err := NewPool(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPoolReusesHandles(t *testing.T) {
	td := startDirectory(t)
	p := newTestPool(t, directoryURL(td), 2)
	ctx := t.Context()

	first, err := p.Get(ctx)
	require.NoError(t, err)
	assert.True(t, first.Bound())
	assert.Equal(t, int64(1), p.Stats().Active)
	p.Put(first)

	second, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	p.Put(second)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Created)
	assert.Equal(t, int64(0), stats.Active)
	assert.Equal(t, 1, stats.Idle)
}

func TestPoolBlocksWhenExhausted(t *testing.T) {
	td := startDirectory(t)
	p := newTestPool(t, directoryURL(td), 1)

	c, err := p.Get(t.Context())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Get(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)

	p.Put(c)
	c, err = p.Get(t.Context())
	require.NoError(t, err)
	p.Put(c)
}

func TestPoolWithDiscardsBrokenHandles(t *testing.T) {
	td := startDirectory(t)
	p := newTestPool(t, directoryURL(td), 2)

	var used *Conn
	err := p.With(t.Context(), func(c *Conn) error {
		used = c
		return protocolError("search_ext_s", "", ldap.NewError(ldap.ErrorNetwork, errors.New("connection reset")))
	})
	require.Error(t, err)
	assert.Equal(t, ErrorCategoryConnection, GetErrorCategory(err))
	assert.False(t, used.Bound())
	assert.Equal(t, 0, p.Stats().Idle)

	err = p.With(t.Context(), func(c *Conn) error {
		return c.SimpleBind(t.Context(), testAliceDN, testPassword)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stats().Idle)
}

func TestPoolOpenFailure(t *testing.T) {
	p := newTestPool(t, "ldap://ldap.example.org", 1)
	p.open = func(context.Context) (*Conn, error) {
		return nil, newError("initialize", ErrProtocol, "connection refused")
	}

	for range 3 {
		_, err := p.Get(t.Context())
		assert.ErrorIs(t, err, ErrProtocol)
	}
	assert.Equal(t, int64(3), p.Stats().Errors)
	assert.Equal(t, int64(0), p.Stats().Active)
}

func TestPoolClose(t *testing.T) {
	td := startDirectory(t)
	p := newTestPool(t, directoryURL(td), 2)

	c, err := p.Get(t.Context())
	require.NoError(t, err)
	p.Put(c)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.False(t, c.Bound())

	_, err = p.Get(t.Context())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestAuthenticateWithSASL(t *testing.T) {
	td := startDirectory(t)
	c := openConn(t, td)

	cfg := DefaultConfig()
	cfg.SASLMechanism = "simple"
	cfg.BindDN = testAliceDN
	cfg.BindPassword = testPassword

	require.NoError(t, Authenticate(t.Context(), c, cfg))
	mech, err := c.GetOption(t.Context(), OptSASLMech)
	require.NoError(t, err)
	assert.Equal(t, MechSimple, mech)

	cfg.BindPassword = ""
	err = Authenticate(t.Context(), c, cfg)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
