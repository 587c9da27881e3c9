// internal/cli/login.go
package cli

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cvscout/cvscout/internal/ui"
)

var loginPassword string

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login <identity>",
	Short: "Log in to the portal and persist the browser profile",
	Long: `Authenticates against the recruiter portal with the given account identity
and persists the resulting browser profile and cookies.

Later runs restore the saved profile instead of submitting credentials again,
as long as the profile is fresh enough. The password is read from the
--password flag, the CVSCOUT_PASSWORD environment variable, or an interactive
prompt, in that order.`,
	Example: `  # Log in and persist the profile for later crawls
  $ cvscout login recruiter@example.com

  # Non-interactive login
  $ CVSCOUT_PASSWORD=... cvscout login recruiter@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password (prefer CVSCOUT_PASSWORD or the prompt)")
}

// resolveSecret picks the password source: flag, environment, then prompt.
func resolveSecret(identity string) (string, error) {
	if loginPassword != "" {
		return loginPassword, nil
	}
	if env := os.Getenv("CVSCOUT_PASSWORD"); env != "" {
		return env, nil
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", identity)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	identity := args[0]
	appCtx := GetAppFromCmd(cmd)

	secret, err := resolveSecret(identity)
	if err != nil {
		return err
	}

	log.Info().Str("identity", identity).Msg("Initiating login")

	fmt.Printf("\n%s\n", ui.Bold("Portal Login"))
	fmt.Printf("  %s %s\n", ui.ColorBold+"Identity:"+ui.ColorReset, ui.ColorWhite+identity+ui.ColorReset)
	fmt.Printf("  %s %s\n\n", ui.ColorBold+"Portal:"+ui.ColorReset, ui.ColorWhite+appCtx.Config.BaseURL+ui.ColorReset)

	sessionID, err := appCtx.Registry.CreateSession(identity)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer appCtx.Registry.CloseSession(sessionID, true)

	ctx, cancel := context.WithTimeout(cmd.Context(), appCtx.Config.PageTimeout*10)
	defer cancel()

	ok, err := appCtx.Registry.Authenticate(ctx, sessionID, secret)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if !ok {
		info, _ := appCtx.Registry.GetSession(sessionID)
		fmt.Println(ui.Error("\n✗ Login rejected by the portal."))
		return fmt.Errorf("authentication failed (state: %s)", info.AuthState)
	}

	fmt.Println(ui.Success("✓ Logged in; browser profile saved."))
	fmt.Printf("\n%s\n", ui.Bold("You can now crawl with:"))
	fmt.Printf("  %s\n\n", ui.ColorCyan+"cvscout crawl \"golang developer\" --identity="+identity+ui.ColorReset)
	return nil
}
