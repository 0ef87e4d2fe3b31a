package ldap

import (
	"context"
	"fmt"
	"sync"

	"github.com/creasty/defaults"
	"github.com/go-ldap/ldap/v3"
)

// Option identifies a handle option (LDAP_OPT_*).
type Option int

const (
	// OptProtocolVersion is stored and reported but has no effect on the
	// wire: go-ldap always speaks LDAPv3, so setting 2 only changes what
	// GetOption returns.
	OptProtocolVersion Option = 0x0011
	OptTLSRequireCert  Option = 0x6006
	OptSASLMech        Option = 0x6100
	OptSASLMechList    Option = 0x610a
)

func (o Option) String() string {
	if h, ok := optionTable[o]; ok {
		return h.name
	}
	return fmt.Sprintf("option(0x%04x)", int(o))
}

type optionHandler struct {
	name string
	get  func(c *Conn, ctx context.Context) (any, error)
	set  func(c *Conn, value any) error // nil when read-only
}

var optionTable = map[Option]optionHandler{
	OptProtocolVersion: {
		name: "protocol_version",
		get: func(c *Conn, _ context.Context) (any, error) {
			return c.version, nil
		},
		set: func(c *Conn, value any) error {
			v, ok := value.(int)
			if !ok {
				return invalidArgument("set_option", "protocol version must be an int, not %T", value)
			}
			if err := validateVersion("set_option", v); err != nil {
				return err
			}
			c.version = v
			return nil
		},
	},
	OptTLSRequireCert: {
		name: "tls_require_cert",
		get: func(c *Conn, _ context.Context) (any, error) {
			return c.requireCert, nil
		},
		set: func(c *Conn, value any) error {
			var level TLSRequireCert
			switch v := value.(type) {
			case TLSRequireCert:
				level = v
			case int:
				level = TLSRequireCert(v)
			case string:
				parsed, err := ParseTLSRequireCert(v)
				if err != nil {
					return err
				}
				level = parsed
			default:
				return invalidArgument("set_option", "require cert level must be a TLSRequireCert, int or string, not %T", value)
			}
			if level < TLSNever || level > TLSTry {
				return invalidArgument("set_option", "invalid require cert level %d", int(level))
			}
			c.requireCert = level
			return nil
		},
	},
	OptSASLMech: {
		name: "sasl_mech",
		get: func(c *Conn, _ context.Context) (any, error) {
			return c.saslMech, nil
		},
	},
	OptSASLMechList: {
		name: "sasl_mech_list",
		get: func(c *Conn, ctx context.Context) (any, error) {
			return c.serverMechanisms(ctx)
		},
	},
}

// GetOption returns the current value of opt. Values are int for
// OptProtocolVersion, TLSRequireCert for OptTLSRequireCert, string for
// OptSASLMech and []string for OptSASLMechList.
func (c *Conn) GetOption(ctx context.Context, opt Option) (any, error) {
	const op = "get_option"
	if err := c.check(op); err != nil {
		return nil, err
	}
	h, ok := optionTable[opt]
	if !ok {
		return nil, newError(op, ErrUnsupported, "option not supported: %s", opt)
	}
	return h.get(c, ctx)
}

// SetOption changes opt. Read-only options fail with ErrUnsupported.
func (c *Conn) SetOption(opt Option, value any) error {
	const op = "set_option"
	if err := c.check(op); err != nil {
		return err
	}
	h, ok := optionTable[opt]
	if !ok || h.set == nil {
		return newError(op, ErrUnsupported, "option not supported: %s", opt)
	}
	return h.set(c, value)
}

// serverMechanisms reads supportedSASLMechanisms from the root DSE.
func (c *Conn) serverMechanisms(ctx context.Context) ([]string, error) {
	const op = "get_option"

	req := ldap.NewSearchRequest("", ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 0, false,
		"(objectClass=*)", []string{"supportedSASLMechanisms"}, nil)

	var mechs []string
	err := LogOperation(ctx, SubsystemSASL, "read_sasl_mechanisms", nil, func() error {
		res, err := c.conn.Search(req)
		if err != nil {
			return protocolError(op, "", err)
		}
		if len(res.Entries) > 0 {
			mechs = res.Entries[0].GetAttributeValues("supportedSASLMechanisms")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if mechs == nil {
		mechs = []string{}
	}
	return mechs, nil
}

// Package-wide option defaults. They live on a prototype handle so that the
// option table validates them exactly as it does per-handle values.
var (
	defaultsMu    sync.RWMutex
	defaultHandle = newDefaultHandle()
)

func newDefaultHandle() Conn {
	var cfg ConnectionConfig
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("ldap: invalid config defaults: %v", err))
	}
	return Conn{version: cfg.ProtocolVersion, requireCert: cfg.TLSRequireCert}
}

// SetDefaultOption changes the package default of opt. Configurations
// returned by DefaultConfig afterwards, and so handles opened from them,
// start with the new value; open handles keep theirs. Only settable options
// have defaults.
func SetDefaultOption(opt Option, value any) error {
	const op = "set_option"
	h, ok := optionTable[opt]
	if !ok || h.set == nil {
		return newError(op, ErrUnsupported, "option not supported: %s", opt)
	}

	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	return h.set(&defaultHandle, value)
}

// GetDefaultOption returns the package default of opt.
func GetDefaultOption(opt Option) (any, error) {
	const op = "get_option"
	h, ok := optionTable[opt]
	if !ok || h.set == nil {
		return nil, newError(op, ErrUnsupported, "option not supported: %s", opt)
	}

	defaultsMu.RLock()
	defer defaultsMu.RUnlock()
	return h.get(&defaultHandle, context.Background())
}

// ResetDefaultOptions restores the built-in option defaults.
func ResetDefaultOptions() {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	defaultHandle = newDefaultHandle()
}

// applyDefaultOptions copies the package defaults into cfg.
func applyDefaultOptions(cfg *ConnectionConfig) {
	defaultsMu.RLock()
	defer defaultsMu.RUnlock()
	cfg.ProtocolVersion = defaultHandle.version
	cfg.TLSRequireCert = defaultHandle.requireCert
}
