package ldap

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// SchemaBase is the DN of the subschema subentry. It is never completed
// against a handle's base DN.
const SchemaBase = "cn=Subschema"

// CompleteDN combines dn with the handle base DN. An empty string stands for
// an absent value on both sides and in the result.
func CompleteDN(dn, base string) string {
	switch {
	case dn == "" && base == "":
		return ""
	case dn == "":
		return base
	case strings.EqualFold(dn, SchemaBase):
		return dn
	case base == "" || strings.HasSuffix(dn, base):
		return dn
	default:
		return dn + "," + base
	}
}

// DNFlags selects the DN syntax accepted by IsValidDN (LDAP_DN_FORMAT_*).
type DNFlags uint

const (
	DNFormatLDAP        DNFlags = 0x0000
	DNFormatLDAPv3      DNFlags = 0x0010
	DNFormatLDAPv2      DNFlags = 0x0020
	DNFormatDCE         DNFlags = 0x0030
	DNFormatUFN         DNFlags = 0x0040
	DNFormatADCanonical DNFlags = 0x0050
	DNFormatMask        DNFlags = 0x00f0
	DNPedantic          DNFlags = 0xf000
)

// IsValidDN reports whether dn parses in the format selected by flags. Only
// the LDAP string formats are understood; other formats are never valid.
func IsValidDN(dn string, flags DNFlags) bool {
	switch flags & DNFormatMask {
	case DNFormatLDAP, DNFormatLDAPv3:
	case DNFormatLDAPv2:
		// v2 also allows ';' as RDN separator
		dn = strings.ReplaceAll(dn, ";", ",")
	default:
		return false
	}

	if flags&DNPedantic != 0 && dn != strings.TrimSpace(dn) {
		return false
	}

	if dn == "" {
		return true
	}
	_, err := ldap.ParseDN(dn)
	return err == nil
}

// NormalizeDN returns dn with lower-cased attribute types, no insignificant
// spaces and re-escaped values, so equal DNs compare equal as strings apart
// from value case.
func NormalizeDN(dn string) (string, error) {
	dn = strings.TrimSpace(dn)
	if dn == "" {
		return "", nil
	}

	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", invalidArgument("normalize_dn", "invalid DN syntax: %v", err)
	}
	return formatRDNs(parsed.RDNs), nil
}

// EqualDN compares two DNs the way directory servers do for the common
// case-ignore naming attributes.
func EqualDN(a, b string) bool {
	pa, err := ldap.ParseDN(a)
	if err != nil {
		return strings.EqualFold(a, b)
	}
	pb, err := ldap.ParseDN(b)
	if err != nil {
		return false
	}
	return pa.EqualFold(pb)
}

// EscapeDNValue escapes an attribute value for use inside an RDN.
func EscapeDNValue(value string) string {
	return ldap.EscapeDN(value)
}

// SplitRDN returns the first RDN of dn and the DN of its parent.
func SplitRDN(dn string) (rdn, parent string, err error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", "", invalidArgument("split_rdn", "invalid DN syntax: %v", err)
	}
	if len(parsed.RDNs) == 0 {
		return "", "", invalidArgument("split_rdn", "DN has no RDN: %q", dn)
	}
	return formatRDNs(parsed.RDNs[:1]), formatRDNs(parsed.RDNs[1:]), nil
}

func formatRDNs(rdns []*ldap.RelativeDN) string {
	parts := make([]string, 0, len(rdns))
	for _, rdn := range rdns {
		avas := make([]string, 0, len(rdn.Attributes))
		for _, ava := range rdn.Attributes {
			avas = append(avas, strings.ToLower(ava.Type)+"="+ldap.EscapeDN(ava.Value))
		}
		parts = append(parts, strings.Join(avas, "+"))
	}
	return strings.Join(parts, ",")
}

// ParentDN returns the DN of the entry above dn, "" for a single RDN.
func ParentDN(dn string) (string, error) {
	_, parent, err := SplitRDN(dn)
	return parent, err
}
