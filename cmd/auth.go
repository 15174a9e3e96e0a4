package cmd

import (
	"errors"
	"fmt"

	"vitals/internal/cli"
	"vitals/internal/gate"
	"vitals/internal/session"

	"github.com/spf13/cobra"
)

var (
	loginForce     bool
	statusValidate bool
)

// newAuthCmd creates the auth command group.
func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage GitHub sign-in for vitals",
		Long: `Manage the GitHub session used by vitals.

Examples:
  vitals auth login                    # Sign in with GitHub in your browser
  vitals auth status                   # Show the current session
  vitals auth status --validate        # Also check the token with GitHub
  vitals auth logout                   # Forget the stored token and profile`,
	}

	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with GitHub",
		Long: `Sign in with GitHub using the browser-based OAuth flow.

A temporary listener on the configured loopback port receives the callback.
OAuth client credentials must be configured first with 'vitals credentials set'.`,
		Args: cobra.NoArgs,
		RunE: runAuthLogin,
	}
	loginCmd.Flags().BoolVar(&loginForce, "force", false, "Sign in again even if the current session is valid")

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out of GitHub",
		Long: `Remove the stored access token, the cached profile and the
sign-in completion flag. OAuth client credentials are kept.`,
		Args: cobra.NoArgs,
		RunE: runAuthLogout,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show sign-in status",
		Args:  cobra.NoArgs,
		RunE:  runAuthStatus,
	}
	statusCmd.Flags().BoolVar(&statusValidate, "validate", false, "Check the stored token with GitHub")

	authCmd.AddCommand(loginCmd, logoutCmd, statusCmd)
	return authCmd
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	application, closeApp, err := openApplication(cmd, false)
	if err != nil {
		return err
	}
	defer closeApp()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	s := application.Services()

	if !loginForce {
		if signedIn, err := s.Session.IsSignedIn(ctx); err != nil {
			return err
		} else if signedIn {
			if profile, err := s.Session.ValidateToken(ctx); err == nil {
				fmt.Fprintf(out, "Already signed in as %s. Use --force to sign in again.\n", profile.DisplayName())
				return nil
			}
			fmt.Fprintln(out, "Your GitHub session has expired.")
		}
	}

	var profile *session.UserProfile
	err = cli.Spin(cmd.ErrOrStderr(), quiet, "Waiting for GitHub authorization...", func() error {
		var serr error
		profile, serr = s.Session.SignIn(ctx)
		return serr
	})
	if err != nil {
		return signInError(err)
	}
	fmt.Fprintf(out, gate.SignedInMessage+"\n", profile.DisplayName())
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	application, closeApp, err := openApplication(cmd, false)
	if err != nil {
		return err
	}
	defer closeApp()

	if err := application.Services().Session.SignOut(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out of GitHub.")
	return nil
}

// authStatusOutput is the structured form of 'auth status'.
type authStatusOutput struct {
	session.Status
	CredentialsConfigured bool  `json:"credentialsConfigured"`
	TokenValid            *bool `json:"tokenValid,omitempty"`
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	format, err := selectedOutput()
	if err != nil {
		return err
	}

	application, closeApp, err := openApplication(cmd, false)
	if err != nil {
		return err
	}
	defer closeApp()

	ctx := cmd.Context()
	s := application.Services()

	var st authStatusOutput
	if statusValidate {
		valid := true
		if _, err := s.Session.ValidateToken(ctx); err != nil {
			if !errors.Is(err, session.ErrNotSignedIn) && !errors.Is(err, session.ErrProfileUnavailable) {
				return err
			}
			valid = false
		}
		st.TokenValid = &valid
	}

	if st.Status, err = s.Session.CheckStatus(ctx); err != nil {
		return err
	}
	if _, st.CredentialsConfigured, err = s.Vault.Get(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format != cli.OutputFormatTable {
		return cli.WriteStructured(out, format, st)
	}

	cli.RenderStatus(out, st.Status)
	if st.TokenValid != nil && !*st.TokenValid && st.SignedIn {
		fmt.Fprintln(out, "The stored token was rejected by GitHub. Run 'vitals auth login' to sign in again.")
	}
	if !st.CredentialsConfigured {
		fmt.Fprintln(out, "OAuth client credentials are not configured. Run 'vitals credentials set'.")
	}
	return nil
}
