package ldap

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
)

// ConnectionConfig holds everything needed to open and bind a handle.
type ConnectionConfig struct {
	URL             string        // scheme://host[:port][/baseDN]
	BaseDN          string        // overrides the DN carried by URL
	ProtocolVersion int           `default:"3"`
	Timeout         time.Duration `default:"30s"` // dial and per-request timeout

	// Authentication
	BindDN        string
	BindPassword  string
	SASLMechanism string // empty means simple bind

	KerberosRealm  string
	KerberosKeytab string // path to keytab file
	KerberosConfig string // path to krb5.conf
	KerberosCCache string // path to credential cache
	KerberosSPN    string // defaults to ldap/<host>

	// TLS
	StartTLS       bool
	TLSRequireCert TLSRequireCert `default:"2"`
	TLSConfig      *tls.Config
	TLSCACertFile  string

	// Handle pool
	MaxConnections int           `default:"10"`
	MaxIdleTime    time.Duration `default:"5m"`
	HealthCheck    time.Duration `default:"30s"`
}

// DefaultConfig returns a configuration with all defaults applied, option
// values taken from SetDefaultOption.
func DefaultConfig() *ConnectionConfig {
	cfg := &ConnectionConfig{}
	if err := defaults.Set(cfg); err != nil {
		// tags above are static; a failure here is a programming error
		panic(fmt.Sprintf("ldap: invalid config defaults: %v", err))
	}
	applyDefaultOptions(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields of c with their defaults.
func (c *ConnectionConfig) ApplyDefaults() error {
	return defaults.Set(c)
}

// UsesKerberos reports whether the configuration selects a GSSAPI bind.
func (c *ConnectionConfig) UsesKerberos() bool {
	if strings.EqualFold(c.SASLMechanism, MechGSSAPI) {
		return true
	}
	return c.SASLMechanism == "" && c.KerberosRealm != "" &&
		(c.KerberosKeytab != "" || c.KerberosCCache != "" || c.BindDN != "")
}

// SearchScope is the breadth of a search.
type SearchScope int

const (
	ScopeBase SearchScope = iota
	ScopeOneLevel
	ScopeSubtree
	ScopeChildren
)

func (s SearchScope) String() string {
	switch s {
	case ScopeBase:
		return "base"
	case ScopeOneLevel:
		return "onelevel"
	case ScopeSubtree:
		return "subtree"
	case ScopeChildren:
		return "children"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// ParseSearchScope accepts the names returned by SearchScope.String, plus
// "one" and "sub", case-insensitively.
func ParseSearchScope(s string) (SearchScope, error) {
	switch strings.ToLower(s) {
	case "base":
		return ScopeBase, nil
	case "onelevel", "one":
		return ScopeOneLevel, nil
	case "subtree", "sub", "":
		return ScopeSubtree, nil
	case "children":
		return ScopeChildren, nil
	default:
		return 0, invalidArgument("parse_scope", "unknown search scope %q", s)
	}
}

// DerefAliases defines alias dereferencing behavior.
type DerefAliases int

const (
	NeverDerefAliases DerefAliases = iota
	DerefInSearching
	DerefFindingBaseObj
	DerefAlways
)

// AuthMethod is the authentication method passed to Bind.
type AuthMethod int

const (
	AuthSimple AuthMethod = 0x80 // LDAP_AUTH_SIMPLE
	AuthSASL   AuthMethod = 0xa3 // LDAP_AUTH_SASL
)

func (a AuthMethod) String() string {
	switch a {
	case AuthSimple:
		return "simple"
	case AuthSASL:
		return "sasl"
	default:
		return "unknown"
	}
}

// TLSRequireCert is the certificate checking level of LDAP_OPT_X_TLS_REQUIRE_CERT.
type TLSRequireCert int

const (
	TLSNever TLSRequireCert = iota
	TLSHard
	TLSDemand
	TLSAllow
	TLSTry
)

var tlsRequireCertNames = []string{"never", "hard", "demand", "allow", "try"}

func (r TLSRequireCert) String() string {
	if r < 0 || int(r) >= len(tlsRequireCertNames) {
		return fmt.Sprintf("require_cert(%d)", int(r))
	}
	return tlsRequireCertNames[r]
}

// ParseTLSRequireCert parses one of never, hard, demand, allow or try.
func ParseTLSRequireCert(s string) (TLSRequireCert, error) {
	for i, name := range tlsRequireCertNames {
		if strings.EqualFold(s, name) {
			return TLSRequireCert(i), nil
		}
	}
	return 0, invalidArgument("parse_require_cert", "unknown TLS require-cert level %q", s)
}

// verifies reports whether the server certificate must validate. A TLS
// server always presents a certificate, so TRY fails on a bad one just like
// DEMAND; only NEVER and ALLOW let the session continue.
func (r TLSRequireCert) verifies() bool {
	return r == TLSHard || r == TLSDemand || r == TLSTry
}

// TLSRequireCertNames lists the accepted names in constant order.
func TLSRequireCertNames() []string {
	return append([]string(nil), tlsRequireCertNames...)
}
