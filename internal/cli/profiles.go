// internal/cli/profiles.go
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cvscout/cvscout/internal/auth"
)

// profilesCmd represents the profiles command
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage saved login profiles",
	Long: `List, view, and delete saved login profiles.

A profile holds the persisted browser state and cookies for one portal
account. Fresh profiles let crawls skip the credential form entirely.`,
	Example: `  # List all saved profiles
  $ cvscout profiles list

  # View details of one account's profile
  $ cvscout profiles view recruiter@example.com

  # Delete a profile (forces a fresh login next time)
  $ cvscout profiles delete recruiter@example.com`,
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved profiles",
	RunE:  runProfilesList,
}

var profilesViewCmd = &cobra.Command{
	Use:   "view <identity>",
	Short: "View details of a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesView,
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete <identity>",
	Short: "Delete a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesDelete,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesViewCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	appCtx := GetAppFromCmd(cmd)

	keys, err := appCtx.Profiles.List()
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	if len(keys) == 0 {
		fmt.Println("\nNo saved profiles found.")
		fmt.Println("\nCreate one with:")
		fmt.Println("  cvscout login <identity>")
		fmt.Println()
		return nil
	}

	fmt.Printf("\nSaved Profiles (%d)\n\n", len(keys))

	for i, key := range keys {
		record, err := appCtx.Profiles.Load(key)
		if err != nil {
			fmt.Printf("%d. %s\n   ⚠ error loading: %v\n", i+1, key, err)
			continue
		}

		fmt.Printf("%d. %s\n", i+1, record.Identity)
		fmt.Printf("   Cookies: %d\n", len(record.Cookies))
		fmt.Printf("   Last login: %s\n", record.LastLoginAt.Format(time.RFC1123))
		if record.Stale(auth.DefaultStaleness) {
			fmt.Printf("   Status: stale (%s ago, will re-login)\n", time.Since(record.LastLoginAt).Round(time.Hour))
		} else {
			fmt.Printf("   Status: fresh\n")
		}

		if i < len(keys)-1 {
			fmt.Println()
		}
	}

	fmt.Println()
	return nil
}

func runProfilesView(cmd *cobra.Command, args []string) error {
	appCtx := GetAppFromCmd(cmd)
	identity := args[0]

	key := auth.ProfileKey(identity)
	record, err := appCtx.Profiles.Load(key)
	if err != nil {
		return fmt.Errorf("failed to load profile for '%s': %w", identity, err)
	}

	fmt.Printf("\nProfile Details: %s\n\n", identity)
	fmt.Printf("Key:        %s\n", record.ProfileKey)
	fmt.Printf("Identity:   %s\n", record.Identity)
	fmt.Printf("Cookies:    %d\n", len(record.Cookies))
	fmt.Printf("Last login: %s\n", record.LastLoginAt.Format(time.RFC1123))
	fmt.Printf("Stale:      %v\n", record.Stale(auth.DefaultStaleness))
	fmt.Println()
	return nil
}

func runProfilesDelete(cmd *cobra.Command, args []string) error {
	appCtx := GetAppFromCmd(cmd)
	identity := args[0]

	key := auth.ProfileKey(identity)
	if err := appCtx.Profiles.Delete(key); err != nil {
		return fmt.Errorf("failed to delete profile for '%s': %w", identity, err)
	}

	fmt.Printf("Profile for '%s' deleted.\n", identity)
	return nil
}
