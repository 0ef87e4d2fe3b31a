package ldap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3/gssapi"
	"github.com/hashicorp/terraform-plugin-log/tflog"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

const defaultKrb5Conf = "/etc/krb5.conf"

// kerberosCredentials is what a GSSAPI bind needs beyond the configuration
// file locations.
type kerberosCredentials struct {
	Principal string // user part, without realm
	Realm     string
	Password  string
	Keytab    string
	CCache    string
	Krb5Conf  string
	SPN       string
	AuthzID   string
}

// kerberosCredentialsFrom merges the SASL bind inputs with the configuration.
// A principal of the form user@REALM supplies the realm.
func kerberosCredentialsFrom(cfg *ConnectionConfig, user, realm, password string) kerberosCredentials {
	creds := kerberosCredentials{
		Principal: user,
		Realm:     realm,
		Password:  password,
		Keytab:    cfg.KerberosKeytab,
		CCache:    cfg.KerberosCCache,
		Krb5Conf:  cfg.KerberosConfig,
		SPN:       cfg.KerberosSPN,
	}
	if creds.Realm == "" {
		creds.Realm = cfg.KerberosRealm
	}
	if name, r, ok := strings.Cut(creds.Principal, "@"); ok {
		creds.Principal = name
		if creds.Realm == "" {
			creds.Realm = r
		}
	}
	if creds.Krb5Conf == "" {
		creds.Krb5Conf = defaultKrb5Conf
	}
	return creds
}

// newGSSAPIClient picks the first available credential source:
// explicit ccache, default ccache, explicit keytab, default keytab, password.
func newGSSAPIClient(ctx context.Context, creds kerberosCredentials) (*gssapi.Client, error) {
	const op = "sasl_gssapi"

	if !fileExists(creds.Krb5Conf) {
		return nil, newError(op, ErrInvalidArgument,
			"Kerberos configuration file not found at %s; set kerberos_config or create it", creds.Krb5Conf)
	}

	settings := krb5client.DisablePAFXFAST(true)

	if fileExists(creds.CCache) {
		tflog.SubsystemDebug(ctx, SubsystemSASL, "Using Kerberos credential cache", map[string]any{"ccache": creds.CCache})
		return gssapi.NewClientFromCCache(creds.CCache, creds.Krb5Conf, settings)
	}
	if ccache := defaultCCachePath(); fileExists(ccache) {
		tflog.SubsystemDebug(ctx, SubsystemSASL, "Using default Kerberos credential cache", map[string]any{"ccache": ccache})
		return gssapi.NewClientFromCCache(ccache, creds.Krb5Conf, settings)
	}

	if creds.Principal == "" || creds.Realm == "" {
		return nil, newError(op, ErrInvalidArgument, "Kerberos principal and realm are required without a credential cache")
	}

	if fileExists(creds.Keytab) {
		return gssapi.NewClientWithKeytab(creds.Principal, creds.Realm, creds.Keytab, creds.Krb5Conf, settings)
	}
	if keytab := defaultKeytabPath(); creds.Keytab == "" && fileExists(keytab) {
		return gssapi.NewClientWithKeytab(creds.Principal, creds.Realm, keytab, creds.Krb5Conf, settings)
	}
	if creds.Password != "" {
		return gssapi.NewClientWithPassword(creds.Principal, creds.Realm, creds.Password, creds.Krb5Conf, settings)
	}

	return nil, newError(op, ErrInvalidArgument, "no Kerberos credentials found: provide a credential cache, a keytab or a password")
}

// gssapiBind performs a SASL/GSSAPI bind on the handle.
func (c *Conn) gssapiBind(ctx context.Context, creds kerberosCredentials) error {
	client, err := newGSSAPIClient(ctx, creds)
	if err != nil {
		return protocolError("sasl_gssapi", "", err)
	}
	defer func() {
		_ = client.DeleteSecContext()
	}()

	spn := creds.SPN
	if spn == "" {
		spn = servicePrincipal(c.url.Host)
	}

	tflog.SubsystemDebug(ctx, SubsystemSASL, "Performing GSSAPI bind", map[string]any{
		"spn":   spn,
		"realm": creds.Realm,
	})

	if err := c.conn.GSSAPIBind(client, spn, creds.AuthzID); err != nil {
		return protocolError("sasl_gssapi", "", err)
	}
	return nil
}

// servicePrincipal builds ldap/<host>. host never carries a port.
func servicePrincipal(host string) string {
	return fmt.Sprintf("ldap/%s", strings.ToLower(host))
}

func defaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

func defaultKeytabPath() string {
	if keytab := os.Getenv("KRB5_KTNAME"); keytab != "" {
		return strings.TrimPrefix(keytab, "FILE:")
	}
	return "/etc/krb5.keytab"
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
