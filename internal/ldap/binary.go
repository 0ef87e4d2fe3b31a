package ldap

import (
	"strings"

	"github.com/bwmarrin/go-objectsid"
	"github.com/google/uuid"
)

// Binary attributes rendered as text in entries. Other values are passed
// through as the server sent them.
const (
	AttrObjectSID  = "objectSid"
	AttrObjectGUID = "objectGUID"
)

const guidLength = 16

// renderValues returns the text form of the values of attribute name.
func renderValues(name string, raw [][]byte, values []string) []string {
	var render func([]byte) (string, bool)
	switch {
	case strings.EqualFold(name, AttrObjectSID):
		render = SIDString
	case strings.EqualFold(name, AttrObjectGUID):
		render = GUIDString
	default:
		return append([]string{}, values...)
	}

	out := make([]string, 0, len(values))
	for i, v := range values {
		if i < len(raw) {
			if s, ok := render(raw[i]); ok {
				out = append(out, s)
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

// SIDString renders a binary security identifier as S-1-5-21-....
func SIDString(b []byte) (string, bool) {
	// revision, sub-authority count and 6 byte authority
	if len(b) < 8 || b[0] != 1 || len(b) != 8+4*int(b[1]) {
		return "", false
	}
	return objectsid.Decode(b).String(), true
}

// GUIDString renders a 16 byte GUID stored with little-endian leading
// fields, as Active Directory and Samba store objectGUID.
func GUIDString(b []byte) (string, bool) {
	if len(b) != guidLength {
		return "", false
	}
	std := make([]byte, guidLength)
	std[0], std[1], std[2], std[3] = b[3], b[2], b[1], b[0]
	std[4], std[5] = b[5], b[4]
	std[6], std[7] = b[7], b[6]
	copy(std[8:], b[8:])

	id, err := uuid.FromBytes(std)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
