package ldap

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// tflog subsystems used by this package and the provider.
const (
	SubsystemLDAP     = "ldap"
	SubsystemSASL     = "sasl"
	SubsystemPool     = "pool"
	SubsystemProvider = "provider"
)

// NewLoggingContext registers the package subsystems on ctx. Levels are read
// from TF_LOG_PROVIDER_LDAP_<SUBSYSTEM>.
func NewLoggingContext(ctx context.Context) context.Context {
	for _, subsystem := range []string{SubsystemLDAP, SubsystemSASL, SubsystemPool} {
		ctx = tflog.NewSubsystem(ctx, subsystem,
			tflog.WithLevelFromEnv("TF_LOG_PROVIDER_LDAP_"+strings.ToUpper(subsystem)),
			tflog.WithRootFields(),
		)
	}
	return ctx
}

// LogOperation runs fn and logs its start, duration and outcome.
func LogOperation(ctx context.Context, subsystem, operation string, fields map[string]any, fn func() error) error {
	start := time.Now()

	logged := make(map[string]any, len(fields)+3)
	maps.Copy(logged, SanitizeFields(fields))
	logged["operation"] = operation

	tflog.SubsystemTrace(ctx, subsystem, "Starting operation", logged)

	err := fn()

	logged["duration_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		LogLDAPError(ctx, subsystem, operation, err, logged)
		return err
	}

	tflog.SubsystemDebug(ctx, subsystem, "Operation completed", logged)
	return nil
}

// LogLDAPError logs err with its result code and diagnostic when it carries one.
func LogLDAPError(ctx context.Context, subsystem, operation string, err error, fields map[string]any) {
	logged := make(map[string]any, len(fields)+4)
	maps.Copy(logged, fields)
	logged["operation"] = operation
	logged["error"] = err.Error()

	var e *Error
	if errors.As(err, &e) {
		logged["error_kind"] = e.Kind.Error()
		if e.Code > 0 {
			logged["ldap_result_code"] = e.Code
			logged["error_category"] = string(e.Category)
		}
		if e.ServerMsg != "" {
			logged["ldap_diagnostic_message"] = e.ServerMsg
		}
	}

	tflog.SubsystemError(ctx, subsystem, "LDAP operation failed", logged)
}

// LogConnectionEvent logs a connection lifecycle event at a level derived from
// its name.
func LogConnectionEvent(ctx context.Context, event string, fields map[string]any) {
	logged := make(map[string]any, len(fields)+1)
	maps.Copy(logged, SanitizeFields(fields))
	logged["event"] = event

	switch event {
	case "connection_established", "bind_success", "tls_started":
		tflog.SubsystemInfo(ctx, SubsystemLDAP, "Connection event", logged)
	case "connection_failed", "bind_failed", "tls_failed":
		tflog.SubsystemError(ctx, SubsystemLDAP, "Connection event", logged)
	default:
		tflog.SubsystemDebug(ctx, SubsystemLDAP, "Connection event", logged)
	}
}

// LogPoolEvent logs handle pool events.
func LogPoolEvent(ctx context.Context, event string, fields map[string]any) {
	logged := make(map[string]any, len(fields)+1)
	maps.Copy(logged, fields)
	logged["event"] = event

	switch event {
	case "pool_exhausted", "handle_discarded", "health_check_failed":
		tflog.SubsystemWarn(ctx, SubsystemPool, "Pool event", logged)
	case "pool_creation_failed":
		tflog.SubsystemError(ctx, SubsystemPool, "Pool event", logged)
	default:
		tflog.SubsystemTrace(ctx, SubsystemPool, "Pool event", logged)
	}
}

var sensitiveKeys = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"credential":    true,
	"credentials":   true,
	"bind_password": true,
}

var sensitivePatterns = []string{
	"password=",
	"passwd=",
	"secret=",
	"userpassword",
}

// SanitizeFields returns a copy of fields with credentials redacted.
func SanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))

	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			sanitized[k] = "[REDACTED]"
			continue
		}
		if s, ok := v.(string); ok && containsSensitivePattern(s) {
			sanitized[k] = "[REDACTED]"
			continue
		}
		sanitized[k] = v
	}

	return sanitized
}

func containsSensitivePattern(s string) bool {
	lower := strings.ToLower(s)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// LogResourceOperation logs entry into a Terraform resource operation and
// returns a func that logs its exit.
func LogResourceOperation(ctx context.Context, resource, operation string, fields map[string]any) func(error) {
	return logTerraformOperation(ctx, "resource", resource, operation, fields)
}

// LogDataSourceOperation is LogResourceOperation for data sources.
func LogDataSourceOperation(ctx context.Context, dataSource, operation string, fields map[string]any) func(error) {
	return logTerraformOperation(ctx, "data_source", dataSource, operation, fields)
}

func logTerraformOperation(ctx context.Context, kind, name, operation string, fields map[string]any) func(error) {
	start := time.Now()

	base := make(map[string]any, len(fields)+2)
	maps.Copy(base, SanitizeFields(fields))
	base[kind] = name
	base["operation"] = operation

	tflog.SubsystemDebug(ctx, SubsystemProvider, "Starting "+strings.ReplaceAll(kind, "_", " ")+" operation", base)

	return func(err error) {
		exit := maps.Clone(base)
		exit["duration_ms"] = time.Since(start).Milliseconds()
		exit["has_error"] = err != nil

		if err != nil {
			exit["error"] = err.Error()
			tflog.SubsystemError(ctx, SubsystemProvider, "Operation failed", exit)
			return
		}
		tflog.SubsystemDebug(ctx, SubsystemProvider, "Operation completed", exit)
	}
}
