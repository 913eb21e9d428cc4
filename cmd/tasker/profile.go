package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudsbay/tasker/internal/account"
	"github.com/cloudsbay/tasker/internal/ui"
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	GroupID: "account",
	Short:   "Show or change the signed-in user's profile",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.requireSession(); err != nil {
			return err
		}
		return printProfile(cmd, a)
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the profile",
	Args:  cobra.NoArgs,
	RunE:  profileCmd.RunE,
}

var profileSetCmd = &cobra.Command{
	Use:       "set <name|email|phone> <value>",
	Short:     "Change one profile field",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"name", "email", "phone"},
	RunE: func(cmd *cobra.Command, args []string) error {
		field, value := strings.ToLower(args[0]), args[1]

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		switch field {
		case "name":
			err = a.account.UpdateName(ctx, value)
		case "email":
			err = a.account.UpdateEmail(ctx, value)
		case "phone", "phone_number":
			cc, _ := cmd.Flags().GetString("country-code")
			if cc != "" {
				value = account.FormatPhone(cc, value)
			}
			err = a.account.UpdatePhoneNumber(ctx, value)
		default:
			return fmt.Errorf("unknown profile field %q (want name, email or phone)", args[0])
		}
		if err != nil {
			return err
		}
		return printProfile(cmd, a)
	},
}

var profilePhotoCmd = &cobra.Command{
	Use:   "photo <image-file>",
	Short: "Upload a profile photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0]) // #nosec G304 - user-supplied image path
		if err != nil {
			return fmt.Errorf("read photo: %w", err)
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		url, err := a.account.UploadProfilePhoto(cmd.Context(), data, http.DetectContentType(data))
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]string{"profile_picture_url": url})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Photo uploaded: %s\n", ui.RenderPassIcon(), url)
		return nil
	},
}

var profilePhotoGetCmd = &cobra.Command{
	Use:   "get <output-file>",
	Short: "Download the profile photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := a.requireSession()
		if err != nil {
			return err
		}
		if a.objects == nil {
			return fmt.Errorf("profile photos are not configured")
		}
		data, _, err := a.objects.Get(cmd.Context(), account.ProfilePicturePrefix+sess.UID+".jpg")
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], data, 0o600); err != nil {
			return fmt.Errorf("write photo: %w", err)
		}
		if !quietFlag && !jsonOutput {
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d bytes to %s\n", len(data), args[0])
		}
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the account and its profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("this permanently deletes the account; pass --yes to confirm")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.account.DeleteAccount(cmd.Context()); err != nil {
			return err
		}
		if !quietFlag && !jsonOutput {
			fmt.Fprintf(cmd.OutOrStdout(), "%s Account deleted\n", ui.RenderPassIcon())
		}
		return nil
	},
}

// printProfile writes the cached profile as JSON or as a rendered block.
func printProfile(cmd *cobra.Command, a *app) error {
	u := a.account.Profile().Get()
	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), u)
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderProfile(u))
	return nil
}

func init() {
	profileSetCmd.Flags().String("country-code", "", "Country code to prefix a phone number with")
	profileDeleteCmd.Flags().Bool("yes", false, "Confirm deletion")

	profilePhotoCmd.AddCommand(profilePhotoGetCmd)
	profileCmd.AddCommand(profileShowCmd, profileSetCmd, profilePhotoCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}
