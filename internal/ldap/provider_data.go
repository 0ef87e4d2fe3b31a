package ldap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// ProviderData is what the provider hands to its resources, data sources
// and functions.
type ProviderData struct {
	Pool   *Pool
	Config *ConnectionConfig
	Schema *SchemaCache
}

// NewProviderData wraps pool; the configuration is taken from it.
func NewProviderData(pool *Pool) *ProviderData {
	return &ProviderData{
		Pool:   pool,
		Config: pool.Config(),
		Schema: NewSchemaCache(10 * time.Minute),
	}
}

// ValidateConnection borrows a handle and pings the server with it.
func (pd *ProviderData) ValidateConnection(ctx context.Context) error {
	if pd == nil || pd.Pool == nil {
		return fmt.Errorf("LDAP connection pool is not initialized")
	}

	err := pd.Pool.With(ctx, func(c *Conn) error {
		return c.Ping(ctx)
	})
	if err != nil {
		return fmt.Errorf("LDAP connection failed: %w", err)
	}

	tflog.Debug(ctx, "Provider data validation successful", pd.Pool.Stats().fields())
	return nil
}

// SchemaCache keeps the last subschema read so that resources do not search
// for it on every plan.
type SchemaCache struct {
	ttl time.Duration

	mu      sync.Mutex
	schema  *Subschema
	err     error
	fetched time.Time
	hits    int64
	misses  int64
}

func NewSchemaCache(ttl time.Duration) *SchemaCache {
	return &SchemaCache{ttl: ttl}
}

// Get returns the cached subschema, reading it through c when absent or
// expired. Partial parse errors are cached with the schema.
func (s *SchemaCache) Get(ctx context.Context, c *Conn) (*Subschema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schema != nil && time.Since(s.fetched) < s.ttl {
		s.hits++
		return s.schema, s.err
	}
	s.misses++

	schema, err := c.GetSchema(ctx, SchemaAllowAll)
	if schema == nil {
		return nil, err
	}
	s.schema, s.err, s.fetched = schema, err, time.Now()

	tflog.SubsystemDebug(ctx, SubsystemLDAP, "Subschema cached", map[string]any{
		"dn":     schema.DN,
		"hits":   s.hits,
		"misses": s.misses,
	})
	return schema, err
}

// Invalidate drops the cached subschema.
func (s *SchemaCache) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema, s.err = nil, nil
}
