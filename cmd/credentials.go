package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"vitals/internal/cli"
	"vitals/internal/vault"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	credClientID    string
	credSecretStdin bool
)

// newCredentialsCmd creates the credentials command group.
func newCredentialsCmd() *cobra.Command {
	credentialsCmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Manage the GitHub OAuth client credentials",
		Long: `Manage the Client ID and Client Secret of the GitHub OAuth App used
for sign-in. The secret is kept in the encrypted secret store.

Create an OAuth App at https://github.com/settings/developers with the
callback URL http://127.0.0.1:3000/callback.

Examples:
  vitals credentials set                                  # Prompt for both values
  vitals credentials set --client-id Iv1.abc --client-secret-stdin < secret.txt
  vitals credentials show
  vitals credentials clear`,
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store OAuth client credentials",
		Args:  cobra.NoArgs,
		RunE:  runCredentialsSet,
	}
	setCmd.Flags().StringVar(&credClientID, "client-id", "", "OAuth App Client ID")
	setCmd.Flags().BoolVar(&credSecretStdin, "client-secret-stdin", false, "Read the Client Secret from standard input")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the configured Client ID",
		Args:  cobra.NoArgs,
		RunE:  runCredentialsShow,
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored OAuth client credentials",
		Args:  cobra.NoArgs,
		RunE:  runCredentialsClear,
	}

	credentialsCmd.AddCommand(setCmd, showCmd, clearCmd)
	return credentialsCmd
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	interactive := credClientID == "" || !credSecretStdin
	application, closeApp, err := openApplication(cmd, interactive)
	if err != nil {
		return err
	}
	defer closeApp()

	ctx := cmd.Context()
	var cred vault.Credential

	if interactive {
		var ok bool
		cred, ok, err = application.Prompter().ConfigureCredentials(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("client ID and client secret are required; pass --client-id and --client-secret-stdin when input is disabled")
		}
	} else {
		secret, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 4096))
		if err != nil {
			return fmt.Errorf("failed to read client secret: %w", err)
		}
		cred = vault.Credential{ClientID: strings.TrimSpace(credClientID), ClientSecret: strings.TrimSpace(string(secret))}
	}

	if err := application.Services().Vault.Store(ctx, cred); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "GitHub OAuth credentials saved.")
	return nil
}

// credentialsOutput is the structured form of 'credentials show'. The
// secret itself is never printed.
type credentialsOutput struct {
	ClientID        string `json:"clientId"`
	ClientSecretSet bool   `json:"clientSecretSet"`
}

func runCredentialsShow(cmd *cobra.Command, args []string) error {
	format, err := selectedOutput()
	if err != nil {
		return err
	}

	application, closeApp, err := openApplication(cmd, false)
	if err != nil {
		return err
	}
	defer closeApp()

	cred, found, err := application.Services().Vault.Get(cmd.Context())
	if err != nil {
		return err
	}
	if !found {
		return &cli.ConfigurationRequiredError{}
	}

	out := cmd.OutOrStdout()
	if format != cli.OutputFormatTable {
		return cli.WriteStructured(out, format, credentialsOutput{ClientID: cred.ClientID, ClientSecretSet: cred.ClientSecret != ""})
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendRow(table.Row{"Client ID", cred.ClientID})
	t.AppendRow(table.Row{"Client Secret", "********"})
	t.Render()
	return nil
}

func runCredentialsClear(cmd *cobra.Command, args []string) error {
	application, closeApp, err := openApplication(cmd, false)
	if err != nil {
		return err
	}
	defer closeApp()

	if err := application.Services().Vault.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "GitHub OAuth credentials removed.")
	return nil
}
