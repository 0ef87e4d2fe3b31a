package ldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Error kinds. Every error returned by this package matches exactly one of
// them with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrValue           = errors.New("invalid value")
	ErrUsage           = errors.New("usage error")
	ErrState           = errors.New("invalid state")
	ErrUnsupported     = errors.New("unsupported operation")
	ErrResolution      = errors.New("address resolution failed")
	ErrProtocol        = errors.New("protocol error")
	ErrOutOfMemory     = errors.New("out of memory")
)

// ErrorCategory groups protocol failures by what the caller can do about them.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryConflict       ErrorCategory = "conflict"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryUnsupported    ErrorCategory = "unsupported"
	ErrorCategoryClient         ErrorCategory = "client"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// Error carries the failing operation, its kind and, for protocol failures,
// the LDAP result code and server diagnostic.
type Error struct {
	Op        string        // operation name, e.g. "search_ext_s"
	Kind      error         // one of the Err* sentinels
	Category  ErrorCategory // derived from Code for protocol errors
	Code      uint16        // LDAP result code, 0 when not applicable
	Message   string        // human-readable cause
	ServerMsg string        // diagnostic text returned by the server
	DN        string        // DN involved in the operation, if any
	Cause     error
}

func (e *Error) Error() string {
	var parts []string

	if e.Code > 0 {
		parts = append(parts, fmt.Sprintf("LDAP %s failed (code %d)", e.Op, e.Code))
	} else {
		parts = append(parts, fmt.Sprintf("LDAP %s failed", e.Op))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.ServerMsg != "" && e.ServerMsg != e.Message {
		parts = append(parts, fmt.Sprintf("server: %s", e.ServerMsg))
	}

	if e.DN != "" {
		parts = append(parts, fmt.Sprintf("DN: %s", e.DN))
	}

	return strings.Join(parts, " - ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func newError(op string, kind error, format string, args ...any) *Error {
	category := ErrorCategoryClient
	if kind == ErrUnsupported {
		category = ErrorCategoryUnsupported
	}
	return &Error{
		Op:       op,
		Kind:     kind,
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

func invalidArgument(op, format string, args ...any) *Error {
	return newError(op, ErrInvalidArgument, format, args...)
}

func invalidState(op string) *Error {
	return newError(op, ErrState, "invalid LDAP connection")
}

// protocolError converts a failure reported by go-ldap or the server into an
// *Error of kind ErrProtocol.
func protocolError(op, dn string, err error) error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		if existing.DN == "" {
			existing.DN = dn
		}
		return existing
	}

	e := &Error{
		Op:    op,
		Kind:  ErrProtocol,
		DN:    dn,
		Cause: err,
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		e.Code = resultErr.ResultCode
		if resultErr.Err != nil {
			e.ServerMsg = resultErr.Err.Error()
		}
		e.Category = categorizeCode(resultErr.ResultCode)
		e.Message = resultCodeMessage(resultErr.ResultCode)
	} else {
		e.Category = categorizeGenericError(err)
		e.Message = err.Error()
	}

	return e
}

// categorizeCode maps an LDAP result code onto an ErrorCategory.
func categorizeCode(code uint16) ErrorCategory {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired,
		ldap.LDAPResultAuthMethodNotSupported,
		ldap.LDAPResultAuthUnknown:
		return ErrorCategoryAuthentication

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return ErrorCategoryPermission

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return ErrorCategoryNotFound

	case ldap.LDAPResultEntryAlreadyExists,
		ldap.LDAPResultAttributeOrValueExists,
		ldap.LDAPResultObjectClassViolation,
		ldap.LDAPResultNotAllowedOnNonLeaf:
		return ErrorCategoryConflict

	case ldap.LDAPResultInvalidAttributeSyntax,
		ldap.LDAPResultConstraintViolation,
		ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultNamingViolation,
		ldap.LDAPResultFilterError:
		return ErrorCategoryValidation

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultAdminLimitExceeded:
		return ErrorCategoryServer

	case ldap.LDAPResultConnectError,
		ldap.LDAPResultProtocolError,
		ldap.ErrorNetwork:
		return ErrorCategoryConnection

	case ldap.LDAPResultUnavailableCriticalExtension,
		ldap.LDAPResultNotSupported:
		return ErrorCategoryUnsupported

	default:
		return ErrorCategoryUnknown
	}
}

func categorizeGenericError(err error) ErrorCategory {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "broken pipe"):
		return ErrorCategoryConnection
	case strings.Contains(msg, "credentials"),
		strings.Contains(msg, "kerberos"),
		strings.Contains(msg, "authentication"):
		return ErrorCategoryAuthentication
	default:
		return ErrorCategoryUnknown
	}
}

// resultCodeMessage returns a short description for an LDAP result code.
func resultCodeMessage(code uint16) string {
	switch code {
	case ldap.LDAPResultSuccess:
		return "Success"
	case ldap.LDAPResultOperationsError:
		return "Operations error"
	case ldap.LDAPResultProtocolError:
		return "Protocol error"
	case ldap.LDAPResultTimeLimitExceeded:
		return "Time limit exceeded"
	case ldap.LDAPResultSizeLimitExceeded:
		return "Size limit exceeded"
	case ldap.LDAPResultAuthMethodNotSupported:
		return "Authentication method not supported"
	case ldap.LDAPResultStrongAuthRequired:
		return "Strong(er) authentication required"
	case ldap.LDAPResultReferral:
		return "Referral"
	case ldap.LDAPResultAdminLimitExceeded:
		return "Administrative limit exceeded"
	case ldap.LDAPResultUnavailableCriticalExtension:
		return "Critical extension is unavailable"
	case ldap.LDAPResultConfidentialityRequired:
		return "Confidentiality required"
	case ldap.LDAPResultSaslBindInProgress:
		return "SASL bind in progress"
	case ldap.LDAPResultNoSuchAttribute:
		return "No such attribute"
	case ldap.LDAPResultUndefinedAttributeType:
		return "Undefined attribute type"
	case ldap.LDAPResultInappropriateMatching:
		return "Inappropriate matching"
	case ldap.LDAPResultConstraintViolation:
		return "Constraint violation"
	case ldap.LDAPResultAttributeOrValueExists:
		return "Type or value exists"
	case ldap.LDAPResultInvalidAttributeSyntax:
		return "Invalid syntax"
	case ldap.LDAPResultNoSuchObject:
		return "No such object"
	case ldap.LDAPResultAliasProblem:
		return "Alias problem"
	case ldap.LDAPResultInvalidDNSyntax:
		return "Invalid DN syntax"
	case ldap.LDAPResultAliasDereferencingProblem:
		return "Alias dereferencing problem"
	case ldap.LDAPResultInappropriateAuthentication:
		return "Inappropriate authentication"
	case ldap.LDAPResultInvalidCredentials:
		return "Invalid credentials"
	case ldap.LDAPResultInsufficientAccessRights:
		return "Insufficient access"
	case ldap.LDAPResultBusy:
		return "Server is busy"
	case ldap.LDAPResultUnavailable:
		return "Server is unavailable"
	case ldap.LDAPResultUnwillingToPerform:
		return "Server is unwilling to perform"
	case ldap.LDAPResultLoopDetect:
		return "Loop detected"
	case ldap.LDAPResultNamingViolation:
		return "Naming violation"
	case ldap.LDAPResultObjectClassViolation:
		return "Object class violation"
	case ldap.LDAPResultNotAllowedOnNonLeaf:
		return "Operation not allowed on non-leaf"
	case ldap.LDAPResultNotAllowedOnRDN:
		return "Operation not allowed on RDN"
	case ldap.LDAPResultEntryAlreadyExists:
		return "Already exists"
	case ldap.LDAPResultObjectClassModsProhibited:
		return "Cannot modify object class"
	case ldap.LDAPResultAffectsMultipleDSAs:
		return "Results too large"
	case ldap.LDAPResultServerDown:
		return "Can't contact LDAP server"
	case ldap.LDAPResultLocalError:
		return "Local error"
	case ldap.LDAPResultEncodingError:
		return "Encoding error"
	case ldap.LDAPResultDecodingError:
		return "Decoding error"
	case ldap.LDAPResultTimeout:
		return "Timed out"
	case ldap.LDAPResultAuthUnknown:
		return "Unknown authentication method"
	case ldap.LDAPResultFilterError:
		return "Bad search filter"
	case ldap.LDAPResultUserCanceled:
		return "User cancelled operation"
	case ldap.LDAPResultParamError:
		return "Bad parameter to an ldap routine"
	case ldap.LDAPResultNoMemory:
		return "Out of memory"
	case ldap.LDAPResultConnectError:
		return "Connect error"
	case ldap.LDAPResultNotSupported:
		return "Not Supported"
	case ldap.LDAPResultControlNotFound:
		return "Control not found"
	case ldap.LDAPResultNoResultsReturned:
		return "No results returned"
	case ldap.LDAPResultMoreResultsToReturn:
		return "More results to return"
	case ldap.LDAPResultClientLoop:
		return "Client Loop"
	case ldap.LDAPResultReferralLimitExceeded:
		return "Referral Limit Exceeded"
	default:
		return fmt.Sprintf("Unknown error (code %d)", code)
	}
}

// GetErrorCategory returns the category of err, looking through wrapping.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}

	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		return categorizeCode(resultErr.ResultCode)
	}

	return categorizeGenericError(err)
}

// ResultCode returns the LDAP result code carried by err, or 0.
func ResultCode(err error) uint16 {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var resultErr *ldap.Error
	if errors.As(err, &resultErr) {
		return resultErr.ResultCode
	}
	return 0
}

// IsNotFoundError reports whether err means the target entry or attribute
// does not exist.
func IsNotFoundError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryNotFound
}

func IsConflictError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryConflict
}

func IsAuthenticationError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryAuthentication
}
