package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/cloudsbay/tasker/internal/account"
	"github.com/cloudsbay/tasker/internal/auth"
	"github.com/cloudsbay/tasker/internal/ui"
)

var registerCmd = &cobra.Command{
	Use:     "register",
	GroupID: "account",
	Short:   "Create an account and profile",
	Long: `Create an account and the profile stored with it.

Missing fields are asked for in an interactive form when running on a
terminal. The phone number is stored as +<country code><number>.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var r account.Registration
		r.Email, _ = cmd.Flags().GetString("email")
		r.Name, _ = cmd.Flags().GetString("name")
		r.Username, _ = cmd.Flags().GetString("username")
		r.CountryCode, _ = cmd.Flags().GetString("country-code")
		r.PhoneNumber, _ = cmd.Flags().GetString("phone")
		fromStdin, _ := cmd.Flags().GetBool("password-stdin")

		if (r.Email == "" || r.Username == "" || r.PhoneNumber == "") && !fromStdin && interactive() {
			if err := runRegistrationForm(&r); err != nil {
				return err
			}
		} else {
			pw, err := readPassword(cmd.InOrStdin(), "Password: ", fromStdin)
			if err != nil {
				return err
			}
			r.Password = pw
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.account.Register(cmd.Context(), r); err != nil {
			return err
		}
		return printProfile(cmd, a)
	},
}

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "account",
	Short:   "Sign in",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		fromStdin, _ := cmd.Flags().GetBool("password-stdin")
		if email == "" {
			return fmt.Errorf("--email is required")
		}
		pw, err := readPassword(cmd.InOrStdin(), "Password: ", fromStdin)
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.account.Login(cmd.Context(), email, pw); err != nil {
			return err
		}
		if jsonOutput {
			return printProfile(cmd, a)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Signed in as %s\n", ui.RenderPassIcon(), email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "account",
	Short:   "Sign out and forget the local session",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.account.Logout(cmd.Context()); err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]string{"state": a.account.AuthState().Get().String()})
		}
		if !quietFlag {
			fmt.Fprintf(cmd.OutOrStdout(), "%s Signed out\n", ui.RenderPassIcon())
		}
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	GroupID: "account",
	Short:   "Show the signed-in account",
	Args:    cobra.NoArgs,
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
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]interface{}{
				"uid":        sess.UID,
				"email":      sess.Email,
				"expires_at": sess.ExpiresAt,
				"state":      a.account.AuthState().Get().String(),
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", sess.Email, ui.RenderMuted(sess.UID))
		fmt.Fprintf(cmd.OutOrStdout(), "Session expires %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	},
}

var resetPasswordCmd = &cobra.Command{
	Use:     "reset-password <email>",
	GroupID: "account",
	Short:   "Send a password reset token",
	Long: `Send a password reset token through the configured notification
channels (notify.channels). Use 'tasker reset-password confirm' with the
token to choose a new password.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.account.ResetPassword(cmd.Context(), args[0]); err != nil {
			return err
		}
		if !quietFlag && !jsonOutput {
			fmt.Fprintf(cmd.OutOrStdout(), "If %s has an account, a reset token is on its way.\n", args[0])
		}
		return nil
	},
}

var resetConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Set a new password with a reset token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		fromStdin, _ := cmd.Flags().GetBool("password-stdin")
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("--token is required")
		}
		pw, err := readPassword(cmd.InOrStdin(), "New password: ", fromStdin)
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.provider.ConfirmPasswordReset(cmd.Context(), token, pw); err != nil {
			return err
		}
		if !quietFlag && !jsonOutput {
			fmt.Fprintf(cmd.OutOrStdout(), "%s Password updated. Sign in with 'tasker login'.\n", ui.RenderPassIcon())
		}
		return nil
	},
}

func runRegistrationForm(r *account.Registration) error {
	if r.CountryCode == "" {
		r.CountryCode = "1"
	}
	required := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&r.Email).
				Validate(required("email")),

			huh.NewInput().
				Title("Password").
				Description(fmt.Sprintf("At least %d characters", auth.MinPasswordLength)).
				EchoMode(huh.EchoModePassword).
				Value(&r.Password).
				Validate(func(s string) error {
					if len(s) < auth.MinPasswordLength {
						return auth.ErrWeakPassword
					}
					return nil
				}),
		),

		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&r.Name),

			huh.NewInput().
				Title("Username").
				Value(&r.Username).
				Validate(required("username")),

			huh.NewInput().
				Title("Country code").
				Placeholder("1").
				Value(&r.CountryCode),

			huh.NewInput().
				Title("Phone number").
				Description(fmt.Sprintf("At least %d digits, without the country code", account.MinPhoneDigits)).
				Value(&r.PhoneNumber).
				Validate(func(s string) error {
					if account.PhoneDigits(s) < account.MinPhoneDigits {
						return fmt.Errorf("phone number must have at least %d digits", account.MinPhoneDigits)
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return fmt.Errorf("registration cancelled")
		}
		return fmt.Errorf("form error: %w", err)
	}
	return nil
}

func init() {
	registerCmd.Flags().String("email", "", "Email address")
	registerCmd.Flags().String("name", "", "Display name")
	registerCmd.Flags().String("username", "", "Username")
	registerCmd.Flags().String("country-code", "1", "Phone country code")
	registerCmd.Flags().String("phone", "", "Phone number without country code")
	registerCmd.Flags().Bool("password-stdin", false, "Read the password from stdin")

	loginCmd.Flags().String("email", "", "Email address")
	loginCmd.Flags().Bool("password-stdin", false, "Read the password from stdin")

	resetConfirmCmd.Flags().String("token", "", "Reset token")
	resetConfirmCmd.Flags().Bool("password-stdin", false, "Read the new password from stdin")
	resetPasswordCmd.AddCommand(resetConfirmCmd)

	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd, resetPasswordCmd)
}
