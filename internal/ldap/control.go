package ldap

import (
	"bytes"
	"errors"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

// Control OIDs produced or inspected by this package.
const (
	OIDSortRequest  = "1.2.840.113556.1.4.473" // RFC 2891
	OIDSortResponse = "1.2.840.113556.1.4.474"
	OIDAssertion    = "1.3.6.1.1.12" // RFC 4528
)

const errDirectControl = "cannot be created directly, use instead Create*Control methods"

// Control is a request control produced by one of the Conn.Create*Control
// factories. The zero value is not usable.
type Control struct {
	oid      string
	critical bool
	value    []byte
}

// OID returns the control type.
func (c *Control) OID() string { return c.oid }

// Critical reports the criticality flag.
func (c *Control) Critical() bool { return c.critical }

// Value returns a copy of the BER encoded control value.
func (c *Control) Value() []byte { return bytes.Clone(c.value) }

func (c *Control) valid() bool {
	return c != nil && c.oid != ""
}

func (c *Control) clone() *Control {
	return &Control{
		oid:      c.oid,
		critical: c.critical,
		value:    bytes.Clone(c.value),
	}
}

func (c *Control) toLDAP() ldap.Control {
	return ldap.NewControlString(c.oid, c.critical, string(c.value))
}

func (c *Control) String() string {
	if !c.valid() {
		return "Control(invalid)"
	}
	return "Control(" + c.oid + ")"
}

// Controls is an ordered collection of duplicated controls.
type Controls struct {
	items []*Control
}

// NewControls copies ctrls into a new collection. At least one control is
// required and every element must come from a factory.
func NewControls(ctrls ...*Control) (Controls, error) {
	if len(ctrls) == 0 {
		return Controls{}, invalidArgument("controls", "at least one control is required")
	}

	items := make([]*Control, 0, len(ctrls))
	for i, c := range ctrls {
		if !c.valid() {
			return Controls{}, newError("controls", ErrUsage, "element %d: %s", i, errDirectControl)
		}
		items = append(items, c.clone())
	}
	return Controls{items: items}, nil
}

// Len returns the number of controls in the collection.
func (cs Controls) Len() int { return len(cs.items) }

// At returns a copy of the i-th control.
func (cs Controls) At(i int) *Control { return cs.items[i].clone() }

// find returns the first control of type oid, or nil.
func (cs Controls) find(oid string) *Control {
	for _, c := range cs.items {
		if c.oid == oid {
			return c
		}
	}
	return nil
}

// toLDAP builds the go-ldap control list for one request.
func (cs Controls) toLDAP() []ldap.Control {
	if len(cs.items) == 0 {
		return nil
	}
	out := make([]ldap.Control, len(cs.items))
	for i, c := range cs.items {
		out[i] = c.toLDAP()
	}
	return out
}

// SortKey is one key of a server-side sort request.
type SortKey struct {
	Attribute    string
	MatchingRule string
	Reverse      bool
}

// ParseSortKeyList parses the OpenLDAP key list syntax: whitespace separated
// keys of the form [-]attribute[:matchingRule].
func ParseSortKeyList(keylist string) ([]SortKey, error) {
	fields := strings.Fields(keylist)
	if len(fields) == 0 {
		return nil, newError("create_sort_keylist", ErrProtocol, "empty sort key list")
	}

	keys := make([]SortKey, 0, len(fields))
	for _, f := range fields {
		var k SortKey
		if strings.HasPrefix(f, "-") {
			k.Reverse = true
			f = f[1:]
		}
		attr, rule, hasRule := strings.Cut(f, ":")
		if attr == "" || (hasRule && rule == "") {
			return nil, newError("create_sort_keylist", ErrProtocol, "invalid sort key %q", f)
		}
		k.Attribute = attr
		k.MatchingRule = rule
		keys = append(keys, k)
	}
	return keys, nil
}

// encodeSortKeys encodes SortKeyList (RFC 2891 section 1.1).
func encodeSortKeys(keys []SortKey) []byte {
	list := ber.NewSequence("SortKeyList")
	for _, k := range keys {
		seq := ber.NewSequence("SortKey")
		seq.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, k.Attribute, "attributeType"))
		if k.MatchingRule != "" {
			seq.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 0, k.MatchingRule, "orderingRule"))
		}
		if k.Reverse {
			seq.AppendChild(ber.NewBoolean(ber.ClassContext, ber.TypePrimitive, 1, true, "reverseOrder"))
		}
		list.AppendChild(seq)
	}
	return list.Bytes()
}

// CreateSortControl builds a server-side sort request control from an
// OpenLDAP style key list.
func (c *Conn) CreateSortControl(keylist string, critical bool) (*Control, error) {
	if err := c.check("create_sort_control"); err != nil {
		return nil, err
	}

	keys, err := ParseSortKeyList(keylist)
	if err != nil {
		return nil, err
	}

	return &Control{
		oid:      OIDSortRequest,
		critical: critical,
		value:    encodeSortKeys(keys),
	}, nil
}

// CreateAssertionControl builds an assertion control for filter.
func (c *Conn) CreateAssertionControl(filter string, critical bool) (*Control, error) {
	if err := c.check("create_assertion_control"); err != nil {
		return nil, err
	}

	packet, err := ldap.CompileFilter(filter)
	if err != nil {
		return nil, protocolError("create_assertion_control", "", err)
	}

	return &Control{
		oid:      OIDAssertion,
		critical: critical,
		value:    packet.Bytes(),
	}, nil
}

// sortResult is the decoded server-side sort response.
type sortResult struct {
	code      int64
	attribute string
}

// checkSortResponse fails a search whose response carries a sort result
// other than success. go-ldap hands over the control without its value, so
// the result is taken from the tap. When the tap cannot read the stream a
// critical request is trusted, as the server fails the whole search when it
// cannot honour one, and a non-critical request fails closed.
func checkSortResponse(ctrls []ldap.Control, tap *sortTap, critical bool) error {
	const op = "search_ext_s"

	if ldap.FindControl(ctrls, OIDSortResponse) == nil {
		return nil
	}

	res, err := tap.lastSort()
	switch {
	case errors.Is(err, errWireUnreadable), err == nil && res == nil:
		if critical {
			return nil
		}
		return newError(op, ErrProtocol, "server side sort result cannot be read on this connection")
	case err != nil:
		return protocolError(op, "", err)
	case res.code == 0:
		return nil
	}

	attr := res.attribute
	if attr == "" {
		attr = "(unspecified)"
	}
	e := newError(op, ErrProtocol, "server side sort failed (result %d), attribute in error: %s", res.code, attr)
	e.Code = uint16(res.code)
	e.Category = categorizeCode(e.Code)
	return e
}

// parseSortResultValue decodes
//
//	SortResult ::= SEQUENCE {
//	   sortResult  ENUMERATED,
//	   attributeType [0] AttributeDescription OPTIONAL }
func parseSortResultValue(value []byte) (sortResult, error) {
	packet, err := ber.DecodePacketErr(value)
	if err != nil {
		return sortResult{}, err
	}
	if len(packet.Children) == 0 {
		return sortResult{}, newError("search_ext_s", ErrProtocol, "malformed sort response")
	}

	var res sortResult
	code, ok := packet.Children[0].Value.(int64)
	if !ok {
		return sortResult{}, newError("search_ext_s", ErrProtocol, "malformed sort result code")
	}
	res.code = code

	if len(packet.Children) > 1 {
		attr := packet.Children[1]
		if attr.ClassType == ber.ClassContext && attr.Tag == 0 && attr.Data != nil {
			res.attribute = attr.Data.String()
		}
	}
	return res, nil
}
