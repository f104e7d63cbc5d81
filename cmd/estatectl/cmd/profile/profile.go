package profile

import (
	"errors"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estatectl/internal/client"
	"github.com/terraconstructs/estate/internal/authority"
)

// ProfileCmd is the parent command for profile operations
var ProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or edit the signed-in user's profile",
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, snap, err := client.MustFromContext(cmd.Context()).Authority(cmd.Context())
		if err != nil {
			return err
		}
		if snap.Session == nil {
			return errors.New("not signed in (run 'estatectl auth signin')")
		}
		if snap.Profile == nil {
			pterm.Warning.Println("No profile on record; create one with 'estatectl profile set'")
			return nil
		}
		printProfile(snap.Profile)
		return nil
	},
}

var (
	firstName string
	lastName  string
	phone     string
	avatarURL string
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Update profile fields",
	Long:  `Updates only the fields whose flags are given. A missing profile is created.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch authority.ProfilePatch
		flags := cmd.Flags()
		if flags.Changed("first-name") {
			patch.FirstName = &firstName
		}
		if flags.Changed("last-name") {
			patch.LastName = &lastName
		}
		if flags.Changed("phone") {
			patch.Phone = &phone
		}
		if flags.Changed("avatar-url") {
			patch.AvatarURL = &avatarURL
		}

		a, _, err := client.MustFromContext(cmd.Context()).Authority(cmd.Context())
		if err != nil {
			return err
		}
		p, err := a.UpdateProfile(cmd.Context(), patch)
		if err != nil {
			return err
		}
		pterm.Success.Println("Profile updated")
		printProfile(p)
		return nil
	},
}

func printProfile(p *authority.Profile) {
	pterm.DefaultSection.Println("Profile")
	pterm.Printf("Name:    %s %s\n", p.FirstName, p.LastName)
	pterm.Printf("Email:   %s\n", p.Email)
	if p.Phone != "" {
		pterm.Printf("Phone:   %s\n", p.Phone)
	}
	if p.AvatarURL != "" {
		pterm.Printf("Avatar:  %s\n", p.AvatarURL)
	}
	if !p.UpdatedAt.IsZero() {
		pterm.Printf("Updated: %s\n", p.UpdatedAt.Local().Format(time.RFC1123))
	}
}

func init() {
	setCmd.Flags().StringVar(&firstName, "first-name", "", "Given name")
	setCmd.Flags().StringVar(&lastName, "last-name", "", "Family name")
	setCmd.Flags().StringVar(&phone, "phone", "", "Contact phone number")
	setCmd.Flags().StringVar(&avatarURL, "avatar-url", "", "Avatar image URL")
	ProfileCmd.AddCommand(showCmd)
	ProfileCmd.AddCommand(setCmd)
}
