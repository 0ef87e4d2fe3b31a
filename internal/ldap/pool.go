package ldap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// MaxPoolSize caps ConnectionConfig.MaxConnections.
const MaxPoolSize = 100

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("connection pool is closed")

// Pool hands out bound handles so that concurrent callers never share one.
// At most MaxConnections handles exist at any time; Get blocks until one is
// free or ctx is done.
type Pool struct {
	ctx  context.Context // logging context
	cfg  *ConnectionConfig
	opts []ConnOption
	open func(ctx context.Context) (*Conn, error)

	idle  chan *pooledConn
	slots chan struct{}

	mu     sync.RWMutex
	closed bool

	created atomic.Int64
	failed  atomic.Int64
	active  atomic.Int64
	started time.Time

	healthTicker *time.Ticker
	healthStop   chan struct{}
	healthWg     sync.WaitGroup
}

type pooledConn struct {
	conn     *Conn
	lastUsed time.Time
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	Idle    int
	Active  int64
	Created int64
	Errors  int64
	Uptime  time.Duration
}

// NewPool validates cfg and returns an empty pool. Handles are opened and
// bound lazily. Interactive prompting is disabled for pooled handles unless
// a prompter is passed in opts.
func NewPool(ctx context.Context, cfg *ConnectionConfig, opts ...ConnOption) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := validatePoolConfig(cfg); err != nil {
		return nil, err
	}

	p := &Pool{
		ctx:        ctx,
		cfg:        cfg,
		opts:       append([]ConnOption{WithPrompter(NoPrompter())}, opts...),
		idle:       make(chan *pooledConn, cfg.MaxConnections),
		slots:      make(chan struct{}, cfg.MaxConnections),
		started:    time.Now(),
		healthStop: make(chan struct{}),
	}
	p.open = p.openBound

	if cfg.HealthCheck > 0 {
		p.startHealthChecker()
	}

	LogPoolEvent(ctx, "pool_created", map[string]any{
		"url":             cfg.URL,
		"max_connections": cfg.MaxConnections,
		"max_idle_time":   cfg.MaxIdleTime.String(),
	})
	return p, nil
}

func validatePoolConfig(cfg *ConnectionConfig) error {
	const op = "pool"
	if cfg.URL == "" {
		return invalidArgument(op, "URL is required")
	}
	if cfg.MaxConnections <= 0 {
		return invalidArgument(op, "max connections must be positive")
	}
	if cfg.MaxConnections > MaxPoolSize {
		return invalidArgument(op, "max connections too high (max %d)", MaxPoolSize)
	}
	if cfg.MaxIdleTime <= 0 {
		return invalidArgument(op, "max idle time must be positive")
	}
	if cfg.Timeout <= 0 {
		return invalidArgument(op, "timeout must be positive")
	}
	return validateVersion(op, cfg.ProtocolVersion)
}

// Config returns the configuration the pool binds with.
func (p *Pool) Config() *ConnectionConfig { return p.cfg }

// Get returns an idle handle or opens a new one. The handle must be given
// back with Put.
func (p *Pool) Get(ctx context.Context) (*Conn, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, protocolError("pool_get", "", ctx.Err())
	}

	for reuse := true; reuse; {
		select {
		case pc, ok := <-p.idle:
			if !ok {
				<-p.slots
				return nil, ErrPoolClosed
			}
			if p.usable(pc) {
				p.active.Add(1)
				return pc.conn, nil
			}
			p.discard(pc.conn)
		default:
			reuse = false
		}
	}

	c, err := p.open(ctx)
	if err != nil {
		<-p.slots
		p.failed.Add(1)
		return nil, err
	}
	p.created.Add(1)
	p.active.Add(1)
	return c, nil
}

// Put gives a handle back. Released or failed handles are dropped.
func (p *Pool) Put(c *Conn) {
	if c == nil {
		return
	}
	p.active.Add(-1)
	defer func() { <-p.slots }()

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || c.conn == nil || !c.Bound() {
		p.discard(c)
		return
	}
	select {
	case p.idle <- &pooledConn{conn: c, lastUsed: time.Now()}:
	default:
		p.discard(c)
	}
}

// With runs fn on a pooled handle. The handle is dropped rather than reused
// when fn fails with a connection level error.
func (p *Pool) With(ctx context.Context, fn func(*Conn) error) error {
	c, err := p.Get(ctx)
	if err != nil {
		return err
	}
	err = fn(c)
	if err != nil && GetErrorCategory(err) == ErrorCategoryConnection {
		p.discard(c)
	}
	p.Put(c)
	return err
}

func (p *Pool) usable(pc *pooledConn) bool {
	return pc != nil && pc.conn.conn != nil && pc.conn.Bound() && time.Since(pc.lastUsed) < p.cfg.MaxIdleTime
}

func (p *Pool) discard(c *Conn) {
	if c == nil || c.conn == nil {
		return
	}
	if err := c.Unbind(); err != nil {
		tflog.SubsystemDebug(p.ctx, SubsystemPool, "Unbind of discarded handle failed", map[string]any{
			"error": err.Error(),
		})
	}
}

// openBound opens a handle for the configured URL and binds it with the
// configured credentials.
func (p *Pool) openBound(ctx context.Context) (*Conn, error) {
	c, err := NewConnWithConfig(ctx, p.cfg, p.opts...)
	if err != nil {
		return nil, err
	}
	if err := Authenticate(ctx, c, p.cfg); err != nil {
		p.discard(c)
		return nil, err
	}
	return c, nil
}

// Authenticate negotiates StartTLS when configured and binds c with the
// credentials of cfg: a SASL mechanism when one is set, else a simple bind
// (anonymous without bind DN).
func Authenticate(ctx context.Context, c *Conn, cfg *ConnectionConfig) error {
	if cfg.StartTLS && c.Scheme() == "ldap" {
		if err := c.StartTLSSync(ctx); err != nil {
			return err
		}
	}

	if cfg.SASLMechanism == "" {
		return c.SimpleBind(ctx, cfg.BindDN, cfg.BindPassword)
	}

	quiet := SASLQuiet
	return c.SASLInteractiveBind(ctx, SASLInteractiveRequest{
		Mechanisms: []string{cfg.SASLMechanism},
		Flags:      &quiet,
		Realm:      cfg.KerberosRealm,
		User:       cfg.BindDN,
		Password:   []byte(cfg.BindPassword),
	})
}

// Close unbinds every idle handle. Handles still out are unbound when put
// back.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.healthTicker != nil {
		close(p.healthStop)
		p.healthWg.Wait()
		p.healthTicker.Stop()
	}

	var result *multierror.Error
	close(p.idle)
	for pc := range p.idle {
		if pc.conn.conn == nil {
			continue
		}
		if err := pc.conn.Unbind(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", pc.conn.URI(), err))
		}
	}

	LogPoolEvent(p.ctx, "pool_closed", p.Stats().fields())
	return result.ErrorOrNil()
}

// Stats returns usage counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Idle:    len(p.idle),
		Active:  p.active.Load(),
		Created: p.created.Load(),
		Errors:  p.failed.Load(),
		Uptime:  time.Since(p.started),
	}
}

func (s PoolStats) fields() map[string]any {
	return map[string]any{
		"idle":    s.Idle,
		"active":  s.Active,
		"created": s.Created,
		"errors":  s.Errors,
		"uptime":  s.Uptime.String(),
	}
}

func (p *Pool) startHealthChecker() {
	p.healthTicker = time.NewTicker(p.cfg.HealthCheck)

	p.healthWg.Go(func() {
		for {
			select {
			case <-p.healthTicker.C:
				p.checkIdle()
			case <-p.healthStop:
				return
			}
		}
	})
}

// checkIdle pings up to three idle handles and drops the dead ones.
func (p *Pool) checkIdle() {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	var toCheck []*pooledConn
loop:
	for range 3 {
		select {
		case pc := <-p.idle:
			toCheck = append(toCheck, pc)
		default:
			break loop
		}
	}

	for _, pc := range toCheck {
		if !p.usable(pc) || pc.conn.Ping(ctx) != nil {
			p.discard(pc.conn)
			LogPoolEvent(p.ctx, "handle_evicted", map[string]any{"uri": pc.conn.URI()})
			continue
		}
		select {
		case p.idle <- pc:
		default:
			p.discard(pc.conn)
		}
	}
}
