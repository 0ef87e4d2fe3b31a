/*
Package ldap is the directory access layer of the LDAP Terraform provider.

It wraps github.com/go-ldap/ldap/v3 behind a small handle-oriented API.

# Handles

A Conn is created from an LDAP URL (ldap://, ldaps:// or ldapi://). The URL
host is resolved once at construction; a URL without host is completed from
the DNS SRV records of the base DN domain. A handle is not safe for
concurrent use and becomes inert after Unbind:

	conn, err := ldap.NewConn(ctx, "ldap://ldap.example.org/dc=example,dc=org")
	if err != nil {
		return err
	}
	defer conn.Unbind()

	if err := conn.SimpleBind(ctx, "cn=admin", "secret"); err != nil {
		return err
	}
	entries, err := conn.Search(ctx, ldap.NewSearchRequest("ou=people", "(uid=alice)"))

Relative DNs passed to any operation are completed against the handle base
DN with CompleteDN.

# Controls and modifications

Controls are only produced by the handle factories CreateSortControl and
CreateAssertionControl and are attached to operations as a Controls
collection. Mod values describe one attribute change each.

# Schema

ParseSyntax, ParseMatchingRule, ParseMatchingRuleUse, ParseAttributeType and
ParseObjectClass parse RFC 4512 definitions with the relaxations selected by
SchemaFlags. GetSchema reads and parses the subschema subentry.

# Errors

Every failure is an *Error whose kind is one of the Err* sentinels, so
callers use errors.Is(err, ldap.ErrState) and friends. Protocol errors carry
the LDAP result code and the server diagnostic.

# Pooling

Pool keeps bound handles for the provider so that concurrent Terraform
operations each get their own handle.
*/
package ldap
