package ldap

import (
	"fmt"
	"strconv"
	"strings"
)

// SchemaFlags relaxes the RFC 4512 definition grammar (LDAP_SCHEMA_ALLOW_*).
// SchemaAllowOutOfOrder is accepted but has no effect: field order is never
// enforced.
type SchemaFlags int

const (
	SchemaAllowNone        SchemaFlags = 0x00
	SchemaAllowNoOID       SchemaFlags = 0x01
	SchemaAllowQuoted      SchemaFlags = 0x02
	SchemaAllowDescr       SchemaFlags = 0x04
	SchemaAllowDescrPrefix SchemaFlags = 0x08
	SchemaAllowOIDMacro    SchemaFlags = 0x10
	SchemaAllowOutOfOrder  SchemaFlags = 0x20
	SchemaAllowAll         SchemaFlags = 0x3f
)

// SchemaErrorCode is an LDAP_SCHERR_* value.
type SchemaErrorCode int

const (
	SchemaErrOutOfMemory  SchemaErrorCode = 1
	SchemaErrUnexpToken   SchemaErrorCode = 2
	SchemaErrNoLeftParen  SchemaErrorCode = 3
	SchemaErrNoRightParen SchemaErrorCode = 4
	SchemaErrNoDigit      SchemaErrorCode = 5
	SchemaErrBadName      SchemaErrorCode = 6
	SchemaErrBadDesc      SchemaErrorCode = 7
	SchemaErrBadSup       SchemaErrorCode = 8
	SchemaErrDupOpt       SchemaErrorCode = 9
	SchemaErrEmpty        SchemaErrorCode = 10
	SchemaErrMissing      SchemaErrorCode = 11
	SchemaErrOutOfOrder   SchemaErrorCode = 12
)

var schemaErrorText = map[SchemaErrorCode]string{
	SchemaErrOutOfMemory:  "Out of memory",
	SchemaErrUnexpToken:   "Unexpected token",
	SchemaErrNoLeftParen:  "Missing opening parenthesis",
	SchemaErrNoRightParen: "Missing closing parenthesis",
	SchemaErrNoDigit:      "Expecting digit",
	SchemaErrBadName:      "Expecting a name",
	SchemaErrBadDesc:      "Bad description",
	SchemaErrBadSup:       "Bad superiors",
	SchemaErrDupOpt:       "Duplicate option",
	SchemaErrEmpty:        "Unexpected end of data",
	SchemaErrMissing:      "Missing required field",
	SchemaErrOutOfOrder:   "Out of order field",
}

func (c SchemaErrorCode) String() string {
	if s, ok := schemaErrorText[c]; ok {
		return s
	}
	return "Unknown error"
}

// SchemaError is a definition parse failure. It matches ErrProtocol.
type SchemaError struct {
	Func   string // parser name, e.g. ldap_str2attributetype
	Code   SchemaErrorCode
	Offset int    // byte offset of the failure in the definition
	Rest   string // definition text from Offset on
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s(): `%s': %s", e.Func, e.Rest, e.Code)
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrProtocol
}

// Extension is an X- extension of a schema element, in definition order.
type Extension struct {
	Name   string
	Values []string
}

// AttributeUsage is the USAGE of an attribute type.
type AttributeUsage int

const (
	UsageUserApplications     AttributeUsage = 0
	UsageDirectoryOperation   AttributeUsage = 1
	UsageDistributedOperation AttributeUsage = 2
	UsageDSAOperation         AttributeUsage = 3
)

var usageNames = []string{"userApplications", "directoryOperation", "distributedOperation", "dSAOperation"}

func (u AttributeUsage) String() string {
	if u < 0 || int(u) >= len(usageNames) {
		return strconv.Itoa(int(u))
	}
	return usageNames[u]
}

// ObjectClassKind is the kind of an object class.
type ObjectClassKind int

const (
	KindAbstract   ObjectClassKind = 0
	KindStructural ObjectClassKind = 1
	KindAuxiliary  ObjectClassKind = 2
)

var kindNames = []string{"ABSTRACT", "STRUCTURAL", "AUXILIARY"}

func (k ObjectClassKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return strconv.Itoa(int(k))
	}
	return kindNames[k]
}

// Syntax is an LDAP syntax description.
type Syntax struct {
	OID        string
	Names      []string
	Desc       *string
	Extensions []Extension
}

func (s *Syntax) Map() map[string]any {
	return map[string]any{
		"oid":        optString(s.OID),
		"names":      s.Names,
		"desc":       ptrValue(s.Desc),
		"extensions": extensionsValue(s.Extensions),
	}
}

// MatchingRule is a matching rule description.
type MatchingRule struct {
	OID        string
	Names      []string
	Desc       *string
	Obsolete   bool
	SyntaxOID  string
	Extensions []Extension
}

func (m *MatchingRule) Map() map[string]any {
	return map[string]any{
		"oid":        optString(m.OID),
		"names":      m.Names,
		"desc":       ptrValue(m.Desc),
		"obsolete":   m.Obsolete,
		"syntax_oid": optString(m.SyntaxOID),
		"extensions": extensionsValue(m.Extensions),
	}
}

// MatchingRuleUse is a matching rule use description.
type MatchingRuleUse struct {
	OID         string
	Names       []string
	Desc        *string
	Obsolete    bool
	AppliesOIDs []string
	Extensions  []Extension
}

func (m *MatchingRuleUse) Map() map[string]any {
	return map[string]any{
		"oid":          optString(m.OID),
		"names":        m.Names,
		"desc":         ptrValue(m.Desc),
		"obsolete":     m.Obsolete,
		"applies_oids": m.AppliesOIDs,
		"extensions":   extensionsValue(m.Extensions),
	}
}

// AttributeType is an attribute type description.
type AttributeType struct {
	OID         string
	Names       []string
	Desc        *string
	Obsolete    bool
	SupOID      *string
	EqualityOID *string
	OrderingOID *string
	SubstrOID   *string
	SyntaxOID   *string
	SyntaxLen   int
	SingleValue bool
	Collective  bool
	NoUserMod   bool
	Usage       AttributeUsage
	Extensions  []Extension
}

func (a *AttributeType) Map() map[string]any {
	return map[string]any{
		"oid":          optString(a.OID),
		"names":        a.Names,
		"desc":         ptrValue(a.Desc),
		"obsolete":     a.Obsolete,
		"sup_oid":      ptrValue(a.SupOID),
		"equality_oid": ptrValue(a.EqualityOID),
		"ordering_oid": ptrValue(a.OrderingOID),
		"substr_oid":   ptrValue(a.SubstrOID),
		"syntax_oid":   ptrValue(a.SyntaxOID),
		"syntax_len":   a.SyntaxLen,
		"single_value": a.SingleValue,
		"collective":   a.Collective,
		"no_user_mod":  a.NoUserMod,
		"usage":        int(a.Usage),
		"extensions":   extensionsValue(a.Extensions),
	}
}

// ObjectClass is an object class description.
type ObjectClass struct {
	OID        string
	Names      []string
	Desc       *string
	Obsolete   bool
	SupOIDs    []string
	Kind       ObjectClassKind
	Must       []string
	May        []string
	Extensions []Extension
}

func (o *ObjectClass) Map() map[string]any {
	return map[string]any{
		"oid":          optString(o.OID),
		"names":        o.Names,
		"desc":         ptrValue(o.Desc),
		"obsolete":     o.Obsolete,
		"sup_oids":     o.SupOIDs,
		"kind":         int(o.Kind),
		"at_oids_must": o.Must,
		"at_oids_may":  o.May,
		"extensions":   extensionsValue(o.Extensions),
	}
}

func optString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func ptrValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func extensionsValue(exts []Extension) any {
	if exts == nil {
		return nil
	}
	return exts
}

func checkSchemaFlags(fn string, flags SchemaFlags) error {
	if flags < SchemaAllowNone || flags > SchemaAllowAll {
		return invalidArgument(fn, "`%d': invalid flags", int(flags))
	}
	return nil
}

// ParseSyntax parses an LDAP syntax description. The OID must be numeric
// whatever the flags.
func ParseSyntax(def string, flags SchemaFlags) (*Syntax, error) {
	const fn = "ldap_str2syntax"
	if err := checkSchemaFlags(fn, flags); err != nil {
		return nil, err
	}

	p := newSchemaParser(fn, def, flags)
	if err := p.open(); err != nil {
		return nil, err
	}
	oid, err := p.numericOID(SchemaAllowNone)
	if err != nil {
		return nil, err
	}

	syn := &Syntax{OID: oid, Names: []string{}}
	seen := map[string]bool{}
	for {
		kw, done, err := p.keyword()
		if err != nil {
			return nil, err
		}
		if done {
			return syn, nil
		}
		if err := p.once(seen, kw); err != nil {
			return nil, err
		}
		switch {
		case kw == "DESC":
			if syn.Desc, err = p.qdstring(); err != nil {
				return nil, err
			}
		case isExtension(kw):
			if syn.Extensions, err = p.extension(syn.Extensions); err != nil {
				return nil, err
			}
		default:
			return nil, p.fail(SchemaErrUnexpToken)
		}
	}
}

// ParseMatchingRule parses a matching rule description. SYNTAX is required.
func ParseMatchingRule(def string, flags SchemaFlags) (*MatchingRule, error) {
	const fn = "ldap_str2matchingrule"
	if err := checkSchemaFlags(fn, flags); err != nil {
		return nil, err
	}

	p := newSchemaParser(fn, def, flags)
	if err := p.open(); err != nil {
		return nil, err
	}
	oid, err := p.elementOID(matchingRuleKeywords, false)
	if err != nil {
		return nil, err
	}

	mr := &MatchingRule{OID: oid, Names: []string{}}
	seen := map[string]bool{}
	for {
		kw, done, err := p.keyword()
		if err != nil {
			return nil, err
		}
		if done {
			if !seen["SYNTAX"] {
				return nil, p.fail(SchemaErrMissing)
			}
			return mr, nil
		}
		if err := p.once(seen, kw); err != nil {
			return nil, err
		}
		switch {
		case kw == "NAME":
			if mr.Names, err = p.qdescrs(); err != nil {
				return nil, err
			}
		case kw == "DESC":
			if mr.Desc, err = p.qdstring(); err != nil {
				return nil, err
			}
		case kw == "OBSOLETE":
			mr.Obsolete = true
		case kw == "SYNTAX":
			p.skipSpace()
			if mr.SyntaxOID, err = p.numericOID(p.flags); err != nil {
				return nil, err
			}
		case isExtension(kw):
			if mr.Extensions, err = p.extension(mr.Extensions); err != nil {
				return nil, err
			}
		default:
			return nil, p.fail(SchemaErrUnexpToken)
		}
	}
}

// ParseMatchingRuleUse parses a matching rule use description. APPLIES is
// required.
func ParseMatchingRuleUse(def string, flags SchemaFlags) (*MatchingRuleUse, error) {
	const fn = "ldap_str2matchingruleuse"
	if err := checkSchemaFlags(fn, flags); err != nil {
		return nil, err
	}

	p := newSchemaParser(fn, def, flags)
	if err := p.open(); err != nil {
		return nil, err
	}
	oid, err := p.elementOID(matchingRuleUseKeywords, false)
	if err != nil {
		return nil, err
	}

	mru := &MatchingRuleUse{OID: oid, Names: []string{}}
	seen := map[string]bool{}
	for {
		kw, done, err := p.keyword()
		if err != nil {
			return nil, err
		}
		if done {
			if !seen["APPLIES"] {
				return nil, p.fail(SchemaErrMissing)
			}
			return mru, nil
		}
		if err := p.once(seen, kw); err != nil {
			return nil, err
		}
		switch {
		case kw == "NAME":
			if mru.Names, err = p.qdescrs(); err != nil {
				return nil, err
			}
		case kw == "DESC":
			if mru.Desc, err = p.qdstring(); err != nil {
				return nil, err
			}
		case kw == "OBSOLETE":
			mru.Obsolete = true
		case kw == "APPLIES":
			if mru.AppliesOIDs, err = p.oids(); err != nil {
				return nil, err
			}
		case isExtension(kw):
			if mru.Extensions, err = p.extension(mru.Extensions); err != nil {
				return nil, err
			}
		default:
			return nil, p.fail(SchemaErrUnexpToken)
		}
	}
}

// ParseAttributeType parses an attribute type description.
func ParseAttributeType(def string, flags SchemaFlags) (*AttributeType, error) {
	const fn = "ldap_str2attributetype"
	if err := checkSchemaFlags(fn, flags); err != nil {
		return nil, err
	}

	p := newSchemaParser(fn, def, flags)
	if err := p.open(); err != nil {
		return nil, err
	}
	oid, err := p.elementOID(attributeTypeKeywords, true)
	if err != nil {
		return nil, err
	}

	at := &AttributeType{OID: oid, Names: []string{}, Usage: UsageUserApplications}
	seen := map[string]bool{}
	for {
		kw, done, err := p.keyword()
		if err != nil {
			return nil, err
		}
		if done {
			return at, nil
		}
		if err := p.once(seen, kw); err != nil {
			return nil, err
		}
		switch {
		case kw == "NAME":
			at.Names, err = p.qdescrs()
		case kw == "DESC":
			at.Desc, err = p.qdstring()
		case kw == "OBSOLETE":
			at.Obsolete = true
		case kw == "SUP":
			at.SupOID, err = p.woid()
		case kw == "EQUALITY":
			at.EqualityOID, err = p.woid()
		case kw == "ORDERING":
			at.OrderingOID, err = p.woid()
		case kw == "SUBSTR":
			at.SubstrOID, err = p.woid()
		case kw == "SYNTAX":
			at.SyntaxOID, at.SyntaxLen, err = p.noidlen()
		case kw == "SINGLE-VALUE":
			at.SingleValue = true
		case kw == "COLLECTIVE":
			at.Collective = true
		case kw == "NO-USER-MODIFICATION":
			at.NoUserMod = true
		case kw == "USAGE":
			at.Usage, err = p.usage()
		case isExtension(kw):
			at.Extensions, err = p.extension(at.Extensions)
		default:
			err = p.fail(SchemaErrUnexpToken)
		}
		if err != nil {
			return nil, err
		}
	}
}

// ParseObjectClass parses an object class description. The kind defaults to
// STRUCTURAL.
func ParseObjectClass(def string, flags SchemaFlags) (*ObjectClass, error) {
	const fn = "ldap_str2objectclass"
	if err := checkSchemaFlags(fn, flags); err != nil {
		return nil, err
	}

	p := newSchemaParser(fn, def, flags)
	if err := p.open(); err != nil {
		return nil, err
	}
	oid, err := p.elementOID(objectClassKeywords, true)
	if err != nil {
		return nil, err
	}

	oc := &ObjectClass{
		OID:     oid,
		Names:   []string{},
		SupOIDs: []string{},
		Kind:    KindStructural,
		Must:    []string{},
		May:     []string{},
	}
	seen := map[string]bool{}
	for {
		kw, done, err := p.keyword()
		if err != nil {
			return nil, err
		}
		if done {
			return oc, nil
		}

		// the three kinds share one slot
		slot := kw
		if kw == "ABSTRACT" || kw == "STRUCTURAL" || kw == "AUXILIARY" {
			slot = "KIND"
		}
		if err := p.once(seen, slot); err != nil {
			return nil, err
		}

		switch {
		case kw == "NAME":
			oc.Names, err = p.qdescrs()
		case kw == "DESC":
			oc.Desc, err = p.qdstring()
		case kw == "OBSOLETE":
			oc.Obsolete = true
		case kw == "SUP":
			if oc.SupOIDs, err = p.oids(); err != nil {
				err = p.fail(SchemaErrBadSup)
			}
		case kw == "ABSTRACT":
			oc.Kind = KindAbstract
		case kw == "STRUCTURAL":
			oc.Kind = KindStructural
		case kw == "AUXILIARY":
			oc.Kind = KindAuxiliary
		case kw == "MUST":
			oc.Must, err = p.oids()
		case kw == "MAY":
			oc.May, err = p.oids()
		case isExtension(kw):
			oc.Extensions, err = p.extension(oc.Extensions)
		default:
			err = p.fail(SchemaErrUnexpToken)
		}
		if err != nil {
			return nil, err
		}
	}
}

var (
	matchingRuleKeywords    = []string{"NAME", "DESC", "OBSOLETE", "SYNTAX"}
	matchingRuleUseKeywords = []string{"NAME", "DESC", "OBSOLETE", "APPLIES"}
	attributeTypeKeywords   = []string{
		"NAME", "DESC", "OBSOLETE", "SUP", "EQUALITY", "ORDERING", "SUBSTR", "SYNTAX",
		"SINGLE-VALUE", "COLLECTIVE", "NO-USER-MODIFICATION", "USAGE",
	}
	objectClassKeywords = []string{
		"NAME", "DESC", "OBSOLETE", "SUP", "ABSTRACT", "STRUCTURAL", "AUXILIARY", "MUST", "MAY",
	}
)

func isExtension(kw string) bool {
	return strings.HasPrefix(kw, "X-")
}

type schemaToken int

const (
	tokEOS schemaToken = iota
	tokBad
	tokLeftParen
	tokRightParen
	tokDollar
	tokQDString
	tokBareword
)

// schemaParser walks one definition. pos always points at the next unread
// byte.
type schemaParser struct {
	fn    string
	s     string
	pos   int
	flags SchemaFlags
}

func newSchemaParser(fn, def string, flags SchemaFlags) *schemaParser {
	return &schemaParser{fn: fn, s: def, flags: flags}
}

func (p *schemaParser) fail(code SchemaErrorCode) *SchemaError {
	return &SchemaError{Func: p.fn, Code: code, Offset: p.pos, Rest: p.s[p.pos:]}
}

func isSchemaSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func (p *schemaParser) skipSpace() {
	for p.pos < len(p.s) && isSchemaSpace(p.s[p.pos]) {
		p.pos++
	}
}

// token reads the next token after skipping leading space.
func (p *schemaParser) token() (schemaToken, string) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return tokEOS, ""
	}

	switch c := p.s[p.pos]; c {
	case '(':
		p.pos++
		return tokLeftParen, ""
	case ')':
		p.pos++
		return tokRightParen, ""
	case '$':
		p.pos++
		return tokDollar, ""
	case '\'':
		end := strings.IndexByte(p.s[p.pos+1:], '\'')
		if end < 0 {
			return tokBad, ""
		}
		v := p.s[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return tokQDString, v
	}

	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if isSchemaSpace(c) || c == '(' || c == ')' || c == '$' || c == '\'' || c == '{' {
			break
		}
		p.pos++
	}
	return tokBareword, p.s[start:p.pos]
}

func (p *schemaParser) open() error {
	if tok, _ := p.token(); tok != tokLeftParen {
		return p.fail(SchemaErrNoLeftParen)
	}
	p.skipSpace()
	return nil
}

// keyword reads the next field keyword, upper-cased. done is set on the
// closing parenthesis.
func (p *schemaParser) keyword() (kw string, done bool, err error) {
	tok, v := p.token()
	switch tok {
	case tokEOS:
		return "", false, p.fail(SchemaErrNoRightParen)
	case tokRightParen:
		return "", true, nil
	case tokBareword:
		return strings.ToUpper(v), false, nil
	default:
		return "", false, p.fail(SchemaErrUnexpToken)
	}
}

func (p *schemaParser) once(seen map[string]bool, kw string) error {
	if seen[kw] {
		return p.fail(SchemaErrDupOpt)
	}
	seen[kw] = true
	return nil
}

// numericOID reads a dotted-decimal OID at the current position, quoted
// when flags allow it. The position is unchanged on failure.
func (p *schemaParser) numericOID(flags SchemaFlags) (string, error) {
	start := p.pos
	i := p.pos

	quoted := false
	if flags&SchemaAllowQuoted != 0 && i < len(p.s) && p.s[i] == '\'' {
		quoted = true
		i++
	}
	if i >= len(p.s) {
		return "", p.fail(SchemaErrEmpty)
	}

	oidStart := i
	for {
		if i >= len(p.s) || !isDigit(p.s[i]) {
			return "", p.fail(SchemaErrNoDigit)
		}
		for i < len(p.s) && isDigit(p.s[i]) {
			i++
		}
		if i >= len(p.s) || p.s[i] != '.' {
			break
		}
		i++
	}
	oid := p.s[oidStart:i]

	if quoted {
		if i >= len(p.s) || p.s[i] != '\'' {
			p.pos = i
			err := p.fail(SchemaErrUnexpToken)
			p.pos = start
			return "", err
		}
		i++
	}
	p.pos = i
	return oid, nil
}

// elementOID reads the OID that opens a definition, honouring the
// no-OID, descr and OID macro flags.
func (p *schemaParser) elementOID(keywords []string, macros bool) (string, error) {
	save := p.pos
	oid, err := p.numericOID(p.flags)
	if err == nil {
		return oid, nil
	}

	relaxed := SchemaAllowNoOID | SchemaAllowDescr | SchemaAllowDescrPrefix
	if macros {
		relaxed |= SchemaAllowOIDMacro
	}
	if p.flags&relaxed == 0 {
		return "", err
	}

	tok, v := p.token()
	if tok != tokBareword {
		p.pos = save
		return "", err
	}

	upper := strings.ToUpper(v)
	if isExtension(upper) || containsKeyword(keywords, upper) {
		if p.flags&SchemaAllowNoOID != 0 {
			// no OID, the keyword starts the field list
			p.pos = save
			return "", nil
		}
		p.pos = save
		return "", err
	}

	switch {
	case p.flags&SchemaAllowDescr != 0 && isDescr(v):
		return v, nil
	case p.flags&SchemaAllowDescrPrefix != 0 && isDescrPrefixed(v):
		return v, nil
	case macros && p.flags&SchemaAllowOIDMacro != 0:
		return v, nil
	}
	p.pos = save
	return "", err
}

func containsKeyword(keywords []string, kw string) bool {
	for _, k := range keywords {
		if k == kw {
			return true
		}
	}
	return false
}

// isDescr reports whether s is a keystring: ALPHA *( ALPHA / DIGIT / "-" ).
func isDescr(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (isDigit(c) || c == '-'):
		default:
			return false
		}
	}
	return true
}

// isDescrPrefixed accepts descr:suffix, the suffix being a descr or a
// numeric OID tail.
func isDescrPrefixed(s string) bool {
	prefix, suffix, ok := strings.Cut(s, ":")
	if !ok || !isDescr(prefix) || suffix == "" {
		return false
	}
	if isDescr(suffix) {
		return true
	}
	for _, part := range strings.Split(suffix, ".") {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			if !isDigit(part[i]) {
				return false
			}
		}
	}
	return true
}

func (p *schemaParser) qdstring() (*string, error) {
	tok, v := p.token()
	if tok != tokQDString {
		return nil, p.fail(SchemaErrUnexpToken)
	}
	return &v, nil
}

// qdescrs reads one quoted name or a parenthesised list of them.
func (p *schemaParser) qdescrs() ([]string, error) {
	tok, v := p.token()
	switch tok {
	case tokQDString:
		return []string{v}, nil
	case tokLeftParen:
		var names []string
		for {
			tok, v := p.token()
			switch tok {
			case tokRightParen:
				if len(names) == 0 {
					return nil, p.fail(SchemaErrBadName)
				}
				return names, nil
			case tokQDString:
				names = append(names, v)
			default:
				return nil, p.fail(SchemaErrBadName)
			}
		}
	default:
		return nil, p.fail(SchemaErrBadName)
	}
}

// woid reads one OID or descr.
func (p *schemaParser) woid() (*string, error) {
	tok, v := p.token()
	if tok == tokBareword || (tok == tokQDString && p.flags&SchemaAllowQuoted != 0) {
		return &v, nil
	}
	return nil, p.fail(SchemaErrUnexpToken)
}

// oids reads one woid or a $-separated parenthesised list.
func (p *schemaParser) oids() ([]string, error) {
	acceptable := func(tok schemaToken) bool {
		return tok == tokBareword || (tok == tokQDString && p.flags&SchemaAllowQuoted != 0)
	}

	tok, v := p.token()
	if acceptable(tok) {
		return []string{v}, nil
	}
	if tok != tokLeftParen {
		return nil, p.fail(SchemaErrUnexpToken)
	}

	tok, v = p.token()
	if !acceptable(tok) {
		return nil, p.fail(SchemaErrUnexpToken)
	}
	list := []string{v}
	for {
		tok, _ = p.token()
		switch tok {
		case tokRightParen:
			return list, nil
		case tokDollar:
			tok, v = p.token()
			if !acceptable(tok) {
				return nil, p.fail(SchemaErrUnexpToken)
			}
			list = append(list, v)
		default:
			return nil, p.fail(SchemaErrUnexpToken)
		}
	}
}

// noidlen reads numericoid{len}. OID macros are accepted in place of the
// numeric OID when the flags allow them.
func (p *schemaParser) noidlen() (*string, int, error) {
	p.skipSpace()
	save := p.pos
	oid, err := p.numericOID(p.flags)
	if err != nil {
		if p.flags&SchemaAllowOIDMacro == 0 {
			return nil, 0, err
		}
		tok, v := p.token()
		if tok != tokBareword {
			p.pos = save
			return nil, 0, err
		}
		oid = v
	}

	length := 0
	if p.pos < len(p.s) && p.s[p.pos] == '{' {
		p.pos++
		start := p.pos
		for p.pos < len(p.s) && isDigit(p.s[p.pos]) {
			p.pos++
		}
		if p.pos == start {
			return nil, 0, p.fail(SchemaErrNoDigit)
		}
		length, _ = strconv.Atoi(p.s[start:p.pos])
		if p.pos >= len(p.s) || p.s[p.pos] != '}' {
			return nil, 0, p.fail(SchemaErrUnexpToken)
		}
		p.pos++
	}
	return &oid, length, nil
}

func (p *schemaParser) usage() (AttributeUsage, error) {
	tok, v := p.token()
	if tok != tokBareword {
		return 0, p.fail(SchemaErrUnexpToken)
	}
	for i, name := range usageNames {
		if strings.EqualFold(v, name) {
			return AttributeUsage(i), nil
		}
	}
	return 0, p.fail(SchemaErrUnexpToken)
}

// extension reads the values of an X- field and appends it to exts. The
// keyword has already been consumed.
func (p *schemaParser) extension(exts []Extension) ([]Extension, error) {
	name := p.lastBareword()

	tok, v := p.token()
	switch tok {
	case tokQDString:
		return append(exts, Extension{Name: name, Values: []string{v}}), nil
	case tokLeftParen:
		values := []string{}
		for {
			tok, v := p.token()
			switch tok {
			case tokRightParen:
				return append(exts, Extension{Name: name, Values: values}), nil
			case tokQDString:
				values = append(values, v)
			default:
				return nil, p.fail(SchemaErrUnexpToken)
			}
		}
	default:
		return nil, p.fail(SchemaErrUnexpToken)
	}
}

// lastBareword returns the bareword ending at the current position, in its
// original case.
func (p *schemaParser) lastBareword() string {
	end := p.pos
	start := end
	for start > 0 {
		c := p.s[start-1]
		if isSchemaSpace(c) || c == '(' || c == ')' || c == '$' || c == '\'' {
			break
		}
		start--
	}
	return p.s[start:end]
}
