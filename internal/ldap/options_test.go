package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolVersionOption(t *testing.T) {
	c := newOfflineConn(t)

	require.NoError(t, c.SetOption(OptProtocolVersion, 2))
	v, err := c.GetOption(t.Context(), OptProtocolVersion)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	assert.ErrorIs(t, c.SetOption(OptProtocolVersion, 4), ErrInvalidArgument)
	assert.ErrorIs(t, c.SetOption(OptProtocolVersion, "3"), ErrInvalidArgument)

	v, err = c.GetOption(t.Context(), OptProtocolVersion)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestTLSRequireCertOption(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    TLSRequireCert
		wantErr bool
	}{
		{name: "typed", value: TLSNever, want: TLSNever},
		{name: "int", value: 3, want: TLSAllow},
		{name: "name", value: "Try", want: TLSTry},
		{name: "out of range", value: 5, wantErr: true},
		{name: "negative", value: TLSRequireCert(-1), wantErr: true},
		{name: "unknown name", value: "sometimes", wantErr: true},
		{name: "wrong type", value: 1.5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newOfflineConn(t)
			err := c.SetOption(OptTLSRequireCert, tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				got, _ := c.GetOption(t.Context(), OptTLSRequireCert)
				assert.Equal(t, TLSNever, got, "unchanged on failure")
				return
			}
			require.NoError(t, err)
			got, err := c.GetOption(t.Context(), OptTLSRequireCert)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadOnlyOptions(t *testing.T) {
	c := newOfflineConn(t)
	c.saslMech = MechExternal

	mech, err := c.GetOption(t.Context(), OptSASLMech)
	require.NoError(t, err)
	assert.Equal(t, MechExternal, mech)

	for _, opt := range []Option{OptSASLMech, OptSASLMechList} {
		err := c.SetOption(opt, "GSSAPI")
		assert.ErrorIs(t, err, ErrUnsupported, opt.String())
	}
}

func TestUnknownOption(t *testing.T) {
	c := newOfflineConn(t)

	_, err := c.GetOption(t.Context(), Option(0x0001))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Contains(t, err.Error(), "option(0x0001)")

	assert.ErrorIs(t, c.SetOption(Option(0x0001), 1), ErrUnsupported)
	assert.Equal(t, "protocol_version", OptProtocolVersion.String())
}

func TestTLSConfigFollowsRequireCert(t *testing.T) {
	tests := []struct {
		level        TLSRequireCert
		wantInsecure bool
	}{
		{TLSNever, true},
		{TLSHard, false},
		{TLSDemand, false},
		{TLSAllow, true},
		{TLSTry, false},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			c := newOfflineConn(t)
			require.NoError(t, c.SetOption(OptTLSRequireCert, tt.level))

			cfg, err := c.tlsConfig()
			require.NoError(t, err)
			assert.Equal(t, tt.wantInsecure, cfg.InsecureSkipVerify)
			assert.Equal(t, "localhost", cfg.ServerName)
		})
	}

	c := newOfflineConn(t)
	c.cfg.TLSCACertFile = "/nonexistent/ca.pem"
	_, err := c.tlsConfig()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDefaultOptions(t *testing.T) {
	t.Cleanup(ResetDefaultOptions)

	tests := []struct {
		name    string
		opt     Option
		value   any
		want    any
		wantErr error
	}{
		{name: "protocol version", opt: OptProtocolVersion, value: 2, want: 2},
		{name: "require cert", opt: OptTLSRequireCert, value: "allow", want: TLSAllow},
		{name: "invalid version", opt: OptProtocolVersion, value: 4, wantErr: ErrInvalidArgument},
		{name: "read-only option", opt: OptSASLMech, value: "GSSAPI", wantErr: ErrUnsupported},
		{name: "unknown option", opt: Option(0x0001), value: 1, wantErr: ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetDefaultOptions()
			err := SetDefaultOption(tt.opt, tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			got, err := GetDefaultOption(tt.opt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := GetDefaultOption(OptSASLMechList)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDefaultOptionsSeedNewHandles(t *testing.T) {
	t.Cleanup(ResetDefaultOptions)
	td := startDirectory(t)

	before := openConn(t, td)

	require.NoError(t, SetDefaultOption(OptProtocolVersion, 2))
	require.NoError(t, SetDefaultOption(OptTLSRequireCert, TLSTry))

	cfg := DefaultConfig()
	assert.Equal(t, 2, cfg.ProtocolVersion)
	assert.Equal(t, TLSTry, cfg.TLSRequireCert)

	after := openConn(t, td)
	version, err := after.GetOption(t.Context(), OptProtocolVersion)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	level, err := after.GetOption(t.Context(), OptTLSRequireCert)
	require.NoError(t, err)
	assert.Equal(t, TLSTry, level)

	// handles opened earlier keep their values
	version, err = before.GetOption(t.Context(), OptProtocolVersion)
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	ResetDefaultOptions()
	assert.Equal(t, 3, DefaultConfig().ProtocolVersion)
	assert.Equal(t, TLSDemand, DefaultConfig().TLSRequireCert)
}
