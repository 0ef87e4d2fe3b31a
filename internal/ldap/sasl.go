package ldap

import (
	"context"
	"strings"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// SASL mechanisms understood by the handle.
const (
	MechSimple    = "SIMPLE"
	MechExternal  = "EXTERNAL"
	MechDigestMD5 = "DIGEST-MD5"
	MechGSSAPI    = "GSSAPI"
)

var supportedMechs = []string{MechSimple, MechExternal, MechDigestMD5, MechGSSAPI}

// SupportedMechanisms lists the mechanisms a bind can negotiate.
func SupportedMechanisms() []string {
	return append([]string(nil), supportedMechs...)
}

func mechSupported(mech string) bool {
	for _, m := range supportedMechs {
		if m == mech {
			return true
		}
	}
	return false
}

// SASLFlags selects how missing interactive bind fields are obtained.
type SASLFlags int

const (
	SASLAutomatic   SASLFlags = 0 // LDAP_SASL_AUTOMATIC
	SASLInteractive SASLFlags = 1 // LDAP_SASL_INTERACTIVE
	SASLQuiet       SASLFlags = 2 // LDAP_SASL_QUIET

	saslFlagsUnset SASLFlags = -1
)

func (f SASLFlags) String() string {
	switch f {
	case SASLAutomatic:
		return "automatic"
	case SASLInteractive:
		return "interactive"
	case SASLQuiet:
		return "quiet"
	default:
		return "unset"
	}
}

// SASLBindRequest is the input of SASLBind.
//
// Password is zeroed when SASLBind returns. go-ldap only accepts passwords
// as strings, so the bind makes one immutable string copy that cannot be
// zeroed and lives until the garbage collector reclaims it.
type SASLBindRequest struct {
	DN        string
	Password  []byte
	Mechanism string // defaults to SIMPLE
}

// SASLBind binds with a single named mechanism. A missing DN or password is
// asked for on the prompter.
func (c *Conn) SASLBind(ctx context.Context, req SASLBindRequest) error {
	const op = "sasl_bind_s"
	if err := c.check(op); err != nil {
		return err
	}
	defer zero(req.Password)

	mech := strings.ToUpper(req.Mechanism)
	if mech == "" {
		mech = MechSimple
	}
	if !mechSupported(mech) {
		return newError(op, ErrUnsupported, "SASL mechanism %s is not supported", mech)
	}

	dn := req.DN
	password := req.Password
	needsCreds := mech == MechSimple || mech == MechDigestMD5

	if needsCreds && dn == "" {
		line, err := c.prompter.Prompt("Enter DN: ")
		if err != nil {
			return err
		}
		if !IsValidDN(line, DNFormatLDAPv3) {
			return invalidArgument(op, "invalid DN %q", line)
		}
		dn = line
	}
	if needsCreds && len(password) == 0 {
		secret, err := c.prompter.PromptSecret("Enter password: ")
		if err != nil {
			return err
		}
		defer zero(secret)
		password = secret
	}

	if dn != "" && mech != MechDigestMD5 {
		dn = CompleteDN(dn, c.baseDN)
	}

	fields := map[string]any{"dn": dn, "mechanism": mech}
	return LogOperation(ctx, SubsystemSASL, op, fields, func() error {
		var err error
		switch mech {
		case MechSimple:
			if len(password) == 0 {
				err = c.conn.UnauthenticatedBind(dn)
			} else {
				err = c.conn.Bind(dn, string(password))
			}
		case MechExternal:
			err = c.conn.ExternalBind()
		case MechDigestMD5:
			err = c.conn.MD5Bind(c.url.Host, dn, string(password))
		case MechGSSAPI:
			err = c.gssapiBind(ctx, kerberosCredentialsFrom(c.cfg, dn, "", string(password)))
		}
		return c.finishBind(op, dn, mech, err)
	})
}

// SASLInteractiveRequest is the input of SASLInteractiveBind. Fields left
// empty are supplied by the interaction callback.
type SASLInteractiveRequest struct {
	Mechanisms []string // tried in order; defaults to SIMPLE
	Flags      *SASLFlags
	Realm      string
	AuthzID    string
	User       string
	Password   []byte // zeroed on return; the string copy handed to go-ldap is not
}

// SASLInteractiveBind binds with the first of req.Mechanisms the client
// supports, asking for missing fields according to the flags.
func (c *Conn) SASLInteractiveBind(ctx context.Context, req SASLInteractiveRequest) error {
	const op = "sasl_interactive_bind_s"
	if err := c.check(op); err != nil {
		return err
	}
	defer zero(req.Password)

	flags := saslFlagsUnset
	if req.Flags != nil {
		flags = *req.Flags
	}
	switch flags {
	case SASLAutomatic, SASLInteractive, SASLQuiet:
	case saslFlagsUnset:
		if req.User == "" || len(req.Password) == 0 {
			flags = SASLInteractive
		} else {
			flags = SASLQuiet
		}
	default:
		return invalidArgument(op, "invalid flags %d, expected SASL_AUTOMATIC, SASL_INTERACTIVE or SASL_QUIET", int(flags))
	}

	mech, err := selectMechanism(op, req.Mechanisms)
	if err != nil {
		return err
	}

	in := &saslInteraction{
		prompter: c.prompter,
		flags:    flags,
		realm:    req.Realm,
		authzID:  req.AuthzID,
		user:     req.User,
		password: req.Password,
	}
	defer in.release()

	tflog.SubsystemDebug(ctx, SubsystemSASL, "Selected SASL mechanism", map[string]any{
		"mechanism": mech,
		"flags":     flags.String(),
	})

	fields := map[string]any{"mechanism": mech, "user": req.User}
	return LogOperation(ctx, SubsystemSASL, op, fields, func() error {
		var err error
		switch mech {
		case MechExternal:
			err = c.conn.ExternalBind()
		case MechSimple:
			if err = in.require(true); err != nil {
				return err
			}
			err = c.conn.Bind(CompleteDN(in.user, c.baseDN), string(in.password))
		case MechDigestMD5:
			if err = in.require(true); err != nil {
				return err
			}
			err = c.conn.MD5Bind(c.url.Host, in.user, string(in.password))
		case MechGSSAPI:
			// a credential cache needs neither user nor password
			if err = in.require(false); err != nil {
				return err
			}
			creds := kerberosCredentialsFrom(c.cfg, in.user, in.realm, string(in.password))
			creds.AuthzID = in.authzID
			err = c.gssapiBind(ctx, creds)
		}
		return c.finishBind(op, in.user, mech, err)
	})
}

// selectMechanism returns the first requested mechanism the client supports.
func selectMechanism(op string, requested []string) (string, error) {
	if len(requested) == 0 {
		return MechSimple, nil
	}
	for _, m := range requested {
		m = strings.ToUpper(strings.TrimSpace(m))
		if mechSupported(m) {
			return m, nil
		}
	}
	return "", newError(op, ErrUnsupported, "none of the SASL mechanisms %s is supported", JoinMechanisms(requested))
}

func (c *Conn) finishBind(op, dn, mech string, err error) error {
	if err != nil {
		c.bound = false
		LogConnectionEvent(c.logCtx, "bind_failed", map[string]any{"mechanism": mech, "error": err.Error()})
		return protocolError(op, dn, err)
	}
	c.bound = true
	c.saslMech = mech
	LogConnectionEvent(c.logCtx, "bind_success", map[string]any{"mechanism": mech})
	return nil
}

// saslInteraction fills in the fields a mechanism asks for.
type saslInteraction struct {
	prompter Prompter
	flags    SASLFlags

	realm    string
	authzID  string
	user     string
	password []byte
	prompted []byte
}

// require makes sure user and password are set, prompting when allowed.
// With strict false only fields the prompter can supply are asked for and
// absence is not an error.
func (in *saslInteraction) require(strict bool) error {
	const op = "sasl_interact"

	if in.user == "" {
		switch {
		case in.flags == SASLQuiet && strict:
			return invalidArgument(op, "user name is required in quiet mode")
		case in.flags == SASLInteractive || (in.flags == SASLAutomatic && strict):
			user, err := in.prompter.Prompt("Enter user's name: ")
			if err != nil {
				return err
			}
			in.user = user
		}
	}

	if len(in.password) == 0 {
		switch {
		case in.flags == SASLQuiet && strict:
			return invalidArgument(op, "password is required in quiet mode")
		case in.flags == SASLInteractive || (in.flags == SASLAutomatic && strict):
			secret, err := in.prompter.PromptSecret("Enter user's password: ")
			if err != nil {
				return err
			}
			in.prompted = secret
			in.password = secret
		}
	}
	return nil
}

func (in *saslInteraction) release() {
	zero(in.prompted)
	in.password = nil
}
