package ldap

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Default ports per scheme.
const (
	DefaultLDAPPort  = 389
	DefaultLDAPSPort = 636
)

// URLDescriptor is a parsed LDAP URL (RFC 4516):
//
//	scheme://host[:port][/dn[?attrs[?scope[?filter[?exts]]]]]
type URLDescriptor struct {
	Scheme     string
	Host       string // unix socket path for ldapi
	Port       int    // 0 for ldapi
	BaseDN     string
	Attributes []string
	Scope      SearchScope
	Filter     string
	Extensions []string

	// URI is the URL without its DN and query parts.
	URI string
}

// ParseURL parses an ldap, ldaps or ldapi URL.
func ParseURL(raw string) (*URLDescriptor, error) {
	const op = "url_parse"

	if raw == "" {
		return nil, invalidArgument(op, "URL cannot be empty")
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return nil, invalidArgument(op, "%q is not an LDAP URL", raw)
	}
	scheme = strings.ToLower(scheme)
	if scheme != "ldap" && scheme != "ldaps" && scheme != "ldapi" {
		return nil, invalidArgument(op, "unsupported scheme %q, must be ldap, ldaps or ldapi", scheme)
	}

	hostport, path, hasPath := strings.Cut(rest, "/")
	d := &URLDescriptor{
		Scheme: scheme,
		Scope:  ScopeBase,
		URI:    scheme + "://" + hostport,
	}

	if err := d.parseHostPort(hostport); err != nil {
		return nil, err
	}

	if hasPath {
		if err := d.parsePath(path); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func (d *URLDescriptor) parseHostPort(hostport string) error {
	const op = "url_parse"

	if d.Scheme == "ldapi" {
		socket, err := url.PathUnescape(hostport)
		if err != nil {
			return invalidArgument(op, "invalid ldapi socket path: %v", err)
		}
		d.Host = socket
		return nil
	}

	d.Port = DefaultLDAPPort
	if d.Scheme == "ldaps" {
		d.Port = DefaultLDAPSPort
	}

	if hostport == "" {
		return nil
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		// no port component
		d.Host = strings.Trim(hostport, "[]")
		return nil
	}
	d.Host = host

	if portStr == "" {
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return invalidArgument(op, "invalid port number: %s", portStr)
	}
	d.Port = port

	return ValidatePort(port)
}

// ValidatePort checks that port lies in ]0, 65535].
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return invalidArgument("url_parse", "invalid port number: %d, must be in ]0, 65535]", port)
	}
	return nil
}

func (d *URLDescriptor) parsePath(path string) error {
	const op = "url_parse"

	parts := strings.SplitN(path, "?", 5)
	unescape := func(s string) (string, error) {
		v, err := url.PathUnescape(s)
		if err != nil {
			return "", invalidArgument(op, "invalid URL escape in %q", s)
		}
		return v, nil
	}

	dn, err := unescape(parts[0])
	if err != nil {
		return err
	}
	d.BaseDN = dn

	if len(parts) > 1 && parts[1] != "" {
		for _, a := range strings.Split(parts[1], ",") {
			a, err := unescape(a)
			if err != nil {
				return err
			}
			if a != "" {
				d.Attributes = append(d.Attributes, a)
			}
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		scope, err := ParseSearchScope(parts[2])
		if err != nil {
			return invalidArgument(op, "invalid scope %q", parts[2])
		}
		d.Scope = scope
	}
	if len(parts) > 3 && parts[3] != "" {
		if d.Filter, err = unescape(parts[3]); err != nil {
			return err
		}
	}
	if len(parts) > 4 && parts[4] != "" {
		for _, ext := range strings.Split(parts[4], ",") {
			ext, err := unescape(ext)
			if err != nil {
				return err
			}
			d.Extensions = append(d.Extensions, ext)
		}
	}
	return nil
}

// Address returns host:port for dialing, or the socket path for ldapi.
func (d *URLDescriptor) Address() string {
	if d.Scheme == "ldapi" {
		return d.Host
	}
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// DefaultLDAPISocket is dialed for ldapi URLs without a socket path.
const DefaultLDAPISocket = "/var/run/slapd/ldapi"

// DialTarget returns the network and address to dial for the given
// resolved host.
func (d *URLDescriptor) DialTarget(host string) (network, address string) {
	if d.Scheme == "ldapi" {
		if d.Host == "" {
			return "unix", DefaultLDAPISocket
		}
		return "unix", d.Host
	}
	return "tcp", net.JoinHostPort(host, strconv.Itoa(d.Port))
}

// resolver resolves host names and discovers servers through DNS SRV
// records.
type resolver struct {
	ctx context.Context // logging context
	net *net.Resolver
}

func newResolver(ctx context.Context) *resolver {
	return &resolver{ctx: ctx, net: net.DefaultResolver}
}

// resolve returns the first address of host.
func (r *resolver) resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	start := time.Now()
	addrs, err := r.net.LookupIPAddr(ctx, host)
	if err != nil {
		e := newError("resolve", ErrResolution, "cannot resolve %s: %v", host, err)
		e.Cause = err
		return nil, e
	}
	if len(addrs) == 0 {
		return nil, newError("resolve", ErrResolution, "no address found for %s", host)
	}

	tflog.SubsystemTrace(r.ctx, SubsystemLDAP, "Resolved host", map[string]any{
		"host":        host,
		"address":     addrs[0].IP.String(),
		"candidates":  len(addrs),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return addrs[0].IP, nil
}

// srvTarget is one server found through DNS SRV.
type srvTarget struct {
	Host     string
	Port     int
	Priority uint16
	Weight   uint16
}

// discover finds the LDAP servers of the domain derived from baseDN. It is
// used when a URL names no host.
func (r *resolver) discover(ctx context.Context, scheme, baseDN string) ([]srvTarget, error) {
	domain := DomainFromDN(baseDN)
	if domain == "" {
		return nil, newError("discover", ErrResolution, "no host given and no domain components in base DN %q", baseDN)
	}

	service := "ldap"
	if scheme == "ldaps" {
		service = "ldaps"
	}

	_, records, err := r.net.LookupSRV(ctx, service, "tcp", domain)
	if err != nil {
		e := newError("discover", ErrResolution, "SRV lookup for _%s._tcp.%s failed: %v", service, domain, err)
		e.Cause = err
		return nil, e
	}

	targets := make([]srvTarget, 0, len(records))
	for _, rec := range records {
		targets = append(targets, srvTarget{
			Host:     strings.TrimSuffix(rec.Target, "."),
			Port:     int(rec.Port),
			Priority: rec.Priority,
			Weight:   rec.Weight,
		})
	}
	slices.SortStableFunc(targets, func(a, b srvTarget) int {
		if a.Priority != b.Priority {
			return int(a.Priority) - int(b.Priority)
		}
		return int(b.Weight) - int(a.Weight)
	})

	tflog.SubsystemDebug(r.ctx, SubsystemLDAP, "Discovered servers", map[string]any{
		"domain":  domain,
		"service": service,
		"count":   len(targets),
	})
	return targets, nil
}

// DomainFromDN joins the dc= components of dn into a DNS domain.
func DomainFromDN(dn string) string {
	var labels []string
	for _, rdn := range strings.Split(dn, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(rdn), "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), "dc") {
			labels = append(labels, strings.TrimSpace(v))
		}
	}
	return strings.Join(labels, ".")
}

func (t srvTarget) String() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}
