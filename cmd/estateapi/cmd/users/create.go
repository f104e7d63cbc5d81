package users

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estateapi/cmd/cmdutil"
	"github.com/terraconstructs/estate/internal/db/models"
	"github.com/terraconstructs/estate/internal/roles"
	"github.com/terraconstructs/estate/internal/services/directory"
	"github.com/terraconstructs/estate/internal/services/iam"
)

var (
	emailFlag     string
	firstNameFlag string
	lastNameFlag  string
	passwordFlag  string
	rolesInput    []string
	stdinFlag     bool
)

// parseRoles validates every requested role against the closed set.
func parseRoles(values []string) ([]roles.Role, error) {
	out := []roles.Role{roles.Default}
	var invalid []string
	for _, v := range values {
		r, err := roles.Parse(v)
		if err != nil {
			invalid = append(invalid, v)
			continue
		}
		if !roles.Contains(out, r) {
			out = append(out, r)
		}
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid role(s): %s\nValid roles are: %s",
			strings.Join(invalid, ", "), strings.Join(roles.Strings(roles.All), ", "))
	}
	return out, nil
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account with its profile and roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if emailFlag == "" {
			return fmt.Errorf("--email flag is required")
		}
		assign, err := parseRoles(rolesInput)
		if err != nil {
			return err
		}

		password := passwordFlag
		if stdinFlag {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		ctx := cmd.Context()
		backend, err := cmdutil.OpenForCLI(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()

		user, err := backend.IAM.CreateUser(ctx, emailFlag, password, iam.SignUpMetadata{
			FirstName: firstNameFlag,
			LastName:  lastNameFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		if _, _, err := backend.Directory.EnsureProfile(ctx, models.Profile{
			ID:        user.ID,
			FirstName: firstNameFlag,
			LastName:  lastNameFlag,
			Email:     user.Email,
		}); err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}

		fmt.Println("Assigning roles...")
		for _, r := range assign {
			if _, err := backend.Directory.AssignRole(ctx, user.ID, r, directory.SystemActor); err != nil {
				return fmt.Errorf("failed to assign role '%s': %w", r, err)
			}
			fmt.Printf("✓ Assigned role '%s'\n", r)
		}

		fmt.Println("User created successfully!")
		fmt.Println("----------------------------------------")
		fmt.Printf("User ID: %s\n", user.ID)
		fmt.Printf("Email: %s\n", user.Email)
		fmt.Printf("Roles: %s\n", strings.Join(roles.Strings(assign), ", "))
		fmt.Println("----------------------------------------")
		return nil
	},
}
