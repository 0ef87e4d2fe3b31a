package ldap

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"math"
	"net"
	"os"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Conn is one LDAP connection handle. It is not safe for concurrent use;
// use one handle per goroutine or borrow handles from a Pool.
//
// A handle starts unbound, may be bound any number of times and becomes
// inert after Unbind: every method then fails with ErrState.
type Conn struct {
	uri    string
	url    *URLDescriptor
	ip     net.IP
	baseDN string

	conn   *ldap.Conn
	tap    *sortTap
	cfg    *ConnectionConfig
	logCtx context.Context

	version     int
	requireCert TLSRequireCert
	saslMech    string
	bound       bool
	lastMsgID   int

	prompter Prompter
}

// ConnOption customises a handle at construction.
type ConnOption func(*Conn)

// WithConfig sets the configuration used for timeouts, TLS, Kerberos and
// the initial option values.
func WithConfig(cfg *ConnectionConfig) ConnOption {
	return func(c *Conn) {
		if cfg != nil {
			c.cfg = cfg
		}
	}
}

// WithPrompter replaces the terminal prompter used by SASL binds.
func WithPrompter(p Prompter) ConnOption {
	return func(c *Conn) {
		if p != nil {
			c.prompter = p
		}
	}
}

// NewConnWithConfig opens a handle for cfg.URL.
func NewConnWithConfig(ctx context.Context, cfg *ConnectionConfig, opts ...ConnOption) (*Conn, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return NewConn(ctx, cfg.URL, append([]ConnOption{WithConfig(cfg)}, opts...)...)
}

// NewConn parses rawURL, resolves its host and dials the server. The
// returned handle is not bound.
func NewConn(ctx context.Context, rawURL string, opts ...ConnOption) (*Conn, error) {
	const op = "initialize"

	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		uri:      u.URI,
		url:      u,
		baseDN:   u.BaseDN,
		cfg:      DefaultConfig(),
		logCtx:   ctx,
		prompter: NewTerminalPrompter(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cfg.BaseDN != "" {
		c.baseDN = c.cfg.BaseDN
	}
	if err := validateVersion(op, c.cfg.ProtocolVersion); err != nil {
		return nil, err
	}
	c.version = c.cfg.ProtocolVersion
	c.requireCert = c.cfg.TLSRequireCert

	r := newResolver(ctx)
	if u.Scheme != "ldapi" {
		if u.Host == "" {
			if err := c.discoverHost(ctx, r); err != nil {
				return nil, err
			}
		}
		if c.ip, err = r.resolve(ctx, u.Host); err != nil {
			return nil, err
		}
	}

	if err := c.dial(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// discoverHost fills in the host of a URL without one, from DNS SRV records
// of the base DN domain, or localhost.
func (c *Conn) discoverHost(ctx context.Context, r *resolver) error {
	if DomainFromDN(c.baseDN) == "" {
		c.url.Host = "localhost"
		return nil
	}
	targets, err := r.discover(ctx, c.url.Scheme, c.baseDN)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return newError("discover", ErrResolution, "no SRV records for %s", DomainFromDN(c.baseDN))
	}
	c.url.Host = targets[0].Host
	c.url.Port = targets[0].Port
	c.uri = c.url.Scheme + "://" + targets[0].String()
	return nil
}

func (c *Conn) dial(ctx context.Context) error {
	start := time.Now()
	fields := map[string]any{
		"uri":    c.uri,
		"scheme": c.url.Scheme,
	}

	target := c.url.Host
	if c.ip != nil {
		target = c.ip.String()
	}
	network, address := c.url.DialTarget(target)

	conn, err := c.dialSocket(ctx, network, address)
	fields["duration_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		fields["error"] = err.Error()
		LogConnectionEvent(ctx, "connection_failed", fields)
		return protocolError("initialize", "", err)
	}

	c.tap = newSortTap(conn)
	c.conn = ldap.NewConn(c.tap, c.url.Scheme == "ldaps")
	c.conn.Start()
	LogConnectionEvent(ctx, "connection_established", fields)
	return nil
}

// dialSocket opens the transport, completing the TLS handshake for ldaps.
func (c *Conn) dialSocket(ctx context.Context, network, address string) (net.Conn, error) {
	var tlsConfig *tls.Config
	if c.url.Scheme == "ldaps" {
		var err error
		if tlsConfig, err = c.tlsConfig(); err != nil {
			return nil, err
		}
	}

	dialer := &net.Dialer{Timeout: c.cfg.Timeout}
	raw, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, ldap.NewError(ldap.ErrorNetwork, err)
	}
	if tlsConfig == nil {
		return raw, nil
	}

	conn := tls.Client(raw, tlsConfig)
	hsCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		hsCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	if err := conn.HandshakeContext(hsCtx); err != nil {
		raw.Close()
		return nil, ldap.NewError(ldap.ErrorNetwork, err)
	}
	return conn, nil
}

// tlsConfig derives the TLS settings from the configuration and the current
// require-cert level.
func (c *Conn) tlsConfig() (*tls.Config, error) {
	var cfg *tls.Config
	if c.cfg.TLSConfig != nil {
		cfg = c.cfg.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if cfg.ServerName == "" {
		cfg.ServerName = c.url.Host
	}
	cfg.InsecureSkipVerify = !c.requireCert.verifies()

	if c.cfg.TLSCACertFile != "" {
		pem, err := os.ReadFile(c.cfg.TLSCACertFile)
		if err != nil {
			return nil, invalidArgument("tls", "cannot read CA certificate file: %v", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, invalidArgument("tls", "no certificates found in %s", c.cfg.TLSCACertFile)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

func validateVersion(op string, v int) error {
	if v != 2 && v != 3 {
		return invalidArgument(op, "version must be 2 or 3, not %d", v)
	}
	return nil
}

// check fails with ErrState once the handle has been released.
func (c *Conn) check(op string) error {
	if c == nil || c.conn == nil {
		return invalidState(op)
	}
	return nil
}

func (c *Conn) nextMsgID() int {
	c.lastMsgID++
	return c.lastMsgID
}

// URI returns scheme://host[:port] without the base DN.
func (c *Conn) URI() string { return c.uri }

func (c *Conn) Scheme() string { return c.url.Scheme }

func (c *Conn) Host() string { return c.url.Host }

func (c *Conn) Port() int { return c.url.Port }

// IP returns the resolved numeric address, or "" for ldapi.
func (c *Conn) IP() string {
	if c.ip == nil {
		return ""
	}
	return c.ip.String()
}

// BaseDN returns the DN relative DNs are completed against.
func (c *Conn) BaseDN() string { return c.baseDN }

func (c *Conn) SetBaseDN(dn string) { c.baseDN = dn }

// Bound reports whether the last bind succeeded.
func (c *Conn) Bound() bool { return c.conn != nil && c.bound }

// Unbind releases the connection. The handle is unusable afterwards.
func (c *Conn) Unbind() error {
	const op = "unbind_s"
	if err := c.check(op); err != nil {
		return err
	}

	conn := c.conn
	c.conn = nil
	c.bound = false

	err := conn.Unbind()
	conn.Close()

	LogConnectionEvent(c.logCtx, "connection_released", map[string]any{"uri": c.uri})

	if err != nil {
		return protocolError(op, "", err)
	}
	return nil
}

// Bind binds with method, which must be AuthSimple.
func (c *Conn) Bind(ctx context.Context, who, cred string, method AuthMethod) error {
	const op = "bind_s"
	if err := c.check(op); err != nil {
		return err
	}
	if method != AuthSimple {
		return newError(op, ErrUnsupported, "only simple authentication [AUTH_SIMPLE] is supported")
	}
	return c.SimpleBind(ctx, who, cred)
}

// SimpleBind performs a simple bind. who is completed against the base DN;
// empty who and cred bind anonymously.
func (c *Conn) SimpleBind(ctx context.Context, who, cred string) error {
	const op = "simple_bind_s"
	if err := c.check(op); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return protocolError(op, "", err)
	}

	dn := ""
	if who != "" {
		dn = CompleteDN(who, c.baseDN)
	}

	return LogOperation(ctx, SubsystemLDAP, op, map[string]any{"dn": dn}, func() error {
		var err error
		if cred == "" {
			err = c.conn.UnauthenticatedBind(dn)
		} else {
			err = c.conn.Bind(dn, cred)
		}
		if err != nil {
			c.bound = false
			return protocolError(op, dn, err)
		}
		c.bound = true
		c.saslMech = ""
		return nil
	})
}

// StartTLS negotiates TLS on the connection and returns the message id
// assigned to the request.
func (c *Conn) StartTLS(ctx context.Context) (int, error) {
	const op = "start_tls"
	if err := c.check(op); err != nil {
		return 0, err
	}
	msgID := c.nextMsgID()
	if err := c.startTLS(ctx, op); err != nil {
		return 0, err
	}
	return msgID, nil
}

// StartTLSSync is the synchronous form of StartTLS.
func (c *Conn) StartTLSSync(ctx context.Context) error {
	const op = "start_tls_s"
	if err := c.check(op); err != nil {
		return err
	}
	return c.startTLS(ctx, op)
}

func (c *Conn) startTLS(ctx context.Context, op string) error {
	tlsConfig, err := c.tlsConfig()
	if err != nil {
		return err
	}
	if err := c.conn.StartTLS(tlsConfig); err != nil {
		LogConnectionEvent(ctx, "tls_failed", map[string]any{"uri": c.uri, "error": err.Error()})
		return protocolError(op, "", err)
	}
	LogConnectionEvent(ctx, "tls_started", map[string]any{"uri": c.uri})
	return nil
}

// SearchRequest holds the parameters of Search.
type SearchRequest struct {
	Base       string // completed against the handle base DN
	Scope      SearchScope
	Filter     string   // defaults to (objectClass=*)
	Attributes []string // nil for all user attributes; non-empty otherwise
	AttrsOnly  bool
	Deref      DerefAliases
	Server     *Controls
	Client     *Controls
	SizeLimit  int
	Timeout    time.Duration // applied only when > 0
}

// NewSearchRequest returns a subtree search for all user attributes.
func NewSearchRequest(base, filter string) *SearchRequest {
	return &SearchRequest{
		Base:   base,
		Scope:  ScopeSubtree,
		Filter: filter,
	}
}

// Search runs a synchronous search and returns the entries in server order.
func (c *Conn) Search(ctx context.Context, req *SearchRequest) ([]Entry, error) {
	const op = "search_ext_s"
	if err := c.check(op); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, invalidArgument(op, "search request is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, protocolError(op, "", err)
	}

	base := CompleteDN(req.Base, c.baseDN)
	if base == "" {
		return nil, invalidArgument(op, "argument `base' is not set")
	}

	var attrs []string
	if req.Attributes != nil {
		var err error
		if attrs, err = StringList(op, req.Attributes); err != nil {
			return nil, err
		}
	}

	if req.Scope < ScopeBase || req.Scope > ScopeChildren {
		return nil, invalidArgument(op, "invalid scope %d", int(req.Scope))
	}
	if req.SizeLimit < 0 {
		return nil, invalidArgument(op, "size limit must not be negative")
	}

	filter := req.Filter
	if filter == "" {
		filter = "(objectClass=*)"
	}

	var (
		ctrls        []ldap.Control
		sortCritical bool
	)
	if req.Server != nil {
		if req.Server.Len() == 0 {
			return nil, newError(op, ErrUsage, "server controls: %s", errDirectControl)
		}
		ctrls = req.Server.toLDAP()
		if sortCtrl := req.Server.find(OIDSortRequest); sortCtrl != nil {
			sortCritical = sortCtrl.critical
		}
	}
	// go-ldap has no client-side controls; they are accepted and ignored
	if req.Client != nil && req.Client.Len() == 0 {
		return nil, newError(op, ErrUsage, "client controls: %s", errDirectControl)
	}

	timeLimit := 0
	if req.Timeout > 0 {
		timeLimit = int(math.Ceil(req.Timeout.Seconds()))
		c.conn.SetTimeout(req.Timeout)
		defer c.conn.SetTimeout(0)
	}

	ldapReq := ldap.NewSearchRequest(
		base,
		int(req.Scope),
		int(req.Deref),
		req.SizeLimit,
		timeLimit,
		req.AttrsOnly,
		filter,
		attrs,
		ctrls,
	)

	fields := map[string]any{
		"base":   base,
		"scope":  req.Scope.String(),
		"filter": filter,
	}

	var entries []Entry
	err := LogOperation(ctx, SubsystemLDAP, op, fields, func() error {
		c.tap.reset()
		res, err := c.conn.Search(ldapReq)
		if err != nil {
			return protocolError(op, base, err)
		}
		if err := checkSortResponse(res.Controls, c.tap, sortCritical); err != nil {
			return err
		}
		entries = entriesFromLDAP(res.Entries)
		return nil
	})
	if err != nil {
		return nil, err
	}

	tflog.SubsystemTrace(ctx, SubsystemLDAP, "Search returned entries", map[string]any{
		"base":    base,
		"entries": len(entries),
	})
	return entries, nil
}

// Add creates dn from mods, which must all be ModAdd.
func (c *Conn) Add(ctx context.Context, dn string, mods []*Mod, ctrls ...Controls) error {
	const op = "add_s"
	if err := c.check(op); err != nil {
		return err
	}
	if err := checkMods(op, mods); err != nil {
		return err
	}
	for i, m := range mods {
		if m.mode != ModAdd {
			return newError(op, ErrValue, "mods element %d has mode %s, all mods must be MOD_ADD", i, m.mode)
		}
	}

	dn = CompleteDN(dn, c.baseDN)
	if dn == "" {
		return invalidArgument(op, "argument `dn' is not set")
	}
	serverCtrls, err := mergeControls(op, ctrls)
	if err != nil {
		return err
	}

	return LogOperation(ctx, SubsystemLDAP, op, map[string]any{"dn": dn, "mods": len(mods)}, func() error {
		if err := c.conn.Add(buildAddRequest(dn, mods, serverCtrls)); err != nil {
			return protocolError(op, dn, err)
		}
		return nil
	})
}

// Delete removes dn.
func (c *Conn) Delete(ctx context.Context, dn string, ctrls ...Controls) error {
	const op = "delete_s"
	if err := c.check(op); err != nil {
		return err
	}

	dn = CompleteDN(dn, c.baseDN)
	if dn == "" {
		return invalidArgument(op, "argument `dn' is not set")
	}
	serverCtrls, err := mergeControls(op, ctrls)
	if err != nil {
		return err
	}

	return LogOperation(ctx, SubsystemLDAP, op, map[string]any{"dn": dn}, func() error {
		if err := c.conn.Del(ldap.NewDelRequest(dn, serverCtrls)); err != nil {
			return protocolError(op, dn, err)
		}
		return nil
	})
}

// Modify applies mods to dn.
func (c *Conn) Modify(ctx context.Context, dn string, mods []*Mod, ctrls ...Controls) error {
	const op = "modify_s"
	if err := c.check(op); err != nil {
		return err
	}
	if err := checkMods(op, mods); err != nil {
		return err
	}

	dn = CompleteDN(dn, c.baseDN)
	if dn == "" {
		return invalidArgument(op, "argument `dn' is not set")
	}
	serverCtrls, err := mergeControls(op, ctrls)
	if err != nil {
		return err
	}

	return LogOperation(ctx, SubsystemLDAP, op, map[string]any{"dn": dn, "mods": len(mods)}, func() error {
		if err := c.conn.Modify(buildModifyRequest(dn, mods, serverCtrls)); err != nil {
			return protocolError(op, dn, err)
		}
		return nil
	})
}

// ModRDN2 renames dn to newRDN under the same parent.
func (c *Conn) ModRDN2(ctx context.Context, dn, newRDN string, deleteOldRDN bool) error {
	const op = "modrdn2_s"
	if err := c.check(op); err != nil {
		return err
	}
	if newRDN == "" {
		return invalidArgument(op, "argument `newrdn' is not set")
	}

	dn = CompleteDN(dn, c.baseDN)
	if dn == "" {
		return invalidArgument(op, "argument `dn' is not set")
	}

	fields := map[string]any{"dn": dn, "new_rdn": newRDN, "delete_old_rdn": deleteOldRDN}
	return LogOperation(ctx, SubsystemLDAP, op, fields, func() error {
		if err := c.conn.ModifyDN(ldap.NewModifyDNRequest(dn, newRDN, deleteOldRDN, "")); err != nil {
			return protocolError(op, dn, err)
		}
		return nil
	})
}

// WhoAmI returns the authorization identity of the handle (RFC 4532).
func (c *Conn) WhoAmI(ctx context.Context) (string, error) {
	const op = "whoami_s"
	if err := c.check(op); err != nil {
		return "", err
	}

	var authzID string
	err := LogOperation(ctx, SubsystemLDAP, op, nil, func() error {
		res, err := c.conn.WhoAmI(nil)
		if err != nil {
			return protocolError(op, "", err)
		}
		authzID = res.AuthzID
		return nil
	})
	return authzID, err
}

// Ping reads the root DSE to check the connection is alive. Any LDAP result
// proves a live server, so only transport failures are reported: servers
// may hide the root DSE from the bound identity.
func (c *Conn) Ping(ctx context.Context) error {
	const op = "ping"
	if err := c.check(op); err != nil {
		return err
	}
	req := ldap.NewSearchRequest("", ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 5, false,
		"(objectClass=*)", []string{"supportedLDAPVersion"}, nil)
	_, err := c.conn.Search(req)
	if err == nil || isServerResult(err) {
		return nil
	}
	return protocolError(op, "", err)
}

// isServerResult reports whether err carries a result code sent by the
// server rather than one go-ldap assigns to local failures.
func isServerResult(err error) bool {
	var lerr *ldap.Error
	return errors.As(err, &lerr) && lerr.ResultCode < ldap.ErrorNetwork
}

// mergeControls flattens the control sets of one request. A zero Controls
// did not come from NewControls and is rejected.
func mergeControls(op string, sets []Controls) ([]ldap.Control, error) {
	var out []ldap.Control
	for i, cs := range sets {
		if cs.Len() == 0 {
			return nil, newError(op, ErrUsage, "controls argument %d: %s", i, errDirectControl)
		}
		out = append(out, cs.toLDAP()...)
	}
	return out, nil
}
