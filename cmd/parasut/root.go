package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/adilumer/parasut-api-client/pkg/auth"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments, API rejection).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates credentials are not configured.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the token endpoint could not be used.
	ExitCodeAuthFailed = 3
)

// Global flags
var (
	companyOverride string
)

var rootCmd = &cobra.Command{
	Use:   "parasut",
	Short: "Command line access to the Parasut accounting API",
	Long: `parasut talks to the Parasut v4 API using the OAuth2 password grant.

Credentials are read from PARASUT_* environment variables (or a .env file),
optionally completed from AWS Secrets Manager via PARASUT_SECRET_NAME.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits with a code describing the failure.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "parasut version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, auth.ErrMissingCredentials), errors.Is(err, auth.ErrUnknownClient):
		return ExitCodeAuthRequired
	case errors.Is(err, auth.ErrAuthenticationRejected),
		errors.Is(err, auth.ErrAuthenticationTransportError),
		errors.Is(err, auth.ErrInvalidAuthenticationResponse),
		errors.Is(err, auth.ErrTokenUnavailable):
		return ExitCodeAuthFailed
	default:
		return ExitCodeError
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&companyOverride, "company", "", "company id (overrides PARASUT_COMPANY_ID)")

	rootCmd.AddCommand(meCmd)
	rootCmd.AddCommand(companiesCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(salesInvoicesCmd)
}
