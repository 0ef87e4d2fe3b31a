package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

// initializeLogging registers the provider subsystem and the ldap package
// subsystems on ctx. Call it at the top of every CRUD and Read method.
func initializeLogging(ctx context.Context) context.Context {
	// TF_LOG_PROVIDER_LDAP_<SUBSYSTEM>
	ctx = tflog.NewSubsystem(ctx, ldapclient.SubsystemProvider,
		tflog.WithLevelFromEnv("TF_LOG_PROVIDER_LDAP_PROVIDER"))
	return ldapclient.NewLoggingContext(ctx)
}

// completeLog passes the first error diagnostic, if any, to logCompletion.
func completeLog(logCompletion func(error), diags diag.Diagnostics) {
	var err error
	for _, d := range diags.Errors() {
		err = fmt.Errorf("%s: %s", d.Summary(), d.Detail())
		break
	}
	logCompletion(err)
}
