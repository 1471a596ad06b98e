package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blackdropbox/blackdropbox/internal/identity"
)

// newAuthCmd creates the 'auth' command group.
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign up and manage the session",
	}
	cmd.AddCommand(newAuthSignInCmd())
	cmd.AddCommand(newAuthSignUpCmd())
	cmd.AddCommand(newAuthConfirmCmd())
	cmd.AddCommand(newAuthSignOutCmd())
	cmd.AddCommand(newAuthWhoAmICmd())
	return cmd
}

func newAuthSignInCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with username and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if username == "" {
				if username, err = p.required("Username"); err != nil {
					return err
				}
			}
			password, err := p.password("Password")
			if err != nil {
				return err
			}

			if err := a.gate.SignIn(ctx, identity.Credentials{Username: username, Password: password}); err != nil {
				if errors.Is(err, identity.ErrNotConfirmed) {
					return fmt.Errorf("%w: run 'blackdropbox auth confirm %s'", err, username)
				}
				return fmt.Errorf("sign in failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", a.gate.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when omitted)")
	return cmd
}

func newAuthSignUpCmd() *cobra.Command {
	var username, email, name string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Long: `Create an account with username, email and name.

A confirmation code is sent to the email address; finish with
'blackdropbox auth confirm <username>'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			for _, field := range []struct {
				dst   *string
				label string
			}{
				{&username, "Username"},
				{&email, "Email"},
				{&name, "Name"},
			} {
				if *field.dst == "" {
					if *field.dst, err = p.required(field.label); err != nil {
						return err
					}
				}
			}
			password, err := p.password("Password")
			if err != nil {
				return err
			}

			res, err := a.gate.SignUp(ctx, identity.SignUpParams{
				Username: username,
				Password: password,
				Email:    email,
				Name:     name,
			})
			if err != nil {
				return fmt.Errorf("sign up failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if res.UserConfirmed {
				fmt.Fprintf(out, "Account %s created. Sign in with 'blackdropbox auth signin'.\n", username)
				return nil
			}
			dest := res.Destination
			if dest == "" {
				dest = email
			}
			fmt.Fprintf(out, "Confirmation code sent to %s\n", dest)
			fmt.Fprintf(out, "Run 'blackdropbox auth confirm %s' to finish.\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

func newAuthConfirmCmd() *cobra.Command {
	var code string
	var noSignIn bool

	cmd := &cobra.Command{
		Use:   "confirm <username>",
		Short: "Confirm an account with the emailed code",
		Long: `Confirm an account with the emailed code.

The password is asked for afterwards so the new account is signed in
right away; use --no-signin to skip that.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			username := args[0]
			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if code == "" {
				if code, err = p.required("Confirmation code"); err != nil {
					return err
				}
			}
			var password string
			if !noSignIn {
				if password, err = p.password("Password"); err != nil {
					return err
				}
			}

			if err := a.gate.ConfirmSignUp(ctx, username, code, password); err != nil {
				return fmt.Errorf("confirmation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if a.gate.State() == identity.StateAuthenticated {
				fmt.Fprintf(out, "Account confirmed. Signed in as %s\n", a.gate.DisplayName())
			} else {
				fmt.Fprintln(out, "Account confirmed. Sign in with 'blackdropbox auth signin'.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "Confirmation code (prompted when omitted)")
	cmd.Flags().BoolVar(&noSignIn, "no-signin", false, "Do not sign in after confirming")
	return cmd
}

func newAuthSignOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.gate.SignOut(ctx); err != nil {
				// Local state is gone either way
				GetLogger().Warn().Err(err).Msg("Token revocation failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

type whoAmI struct {
	State       identity.State `json:"state" yaml:"state"`
	DisplayName string         `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Username    string         `json:"username,omitempty" yaml:"username,omitempty"`
	LoginID     string         `json:"loginId,omitempty" yaml:"loginId,omitempty"`
	ExpiresAt   string         `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

func newAuthWhoAmICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := GetContext()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			info := whoAmI{State: a.gate.Resolve(ctx)}
			if s := a.gate.Session(); s != nil {
				info.DisplayName = s.DisplayName()
				info.Username = s.Username
				info.LoginID = s.LoginID
				if !s.ExpiresAt.IsZero() {
					info.ExpiresAt = s.ExpiresAt.Format("2006-01-02 15:04:05 MST")
				}
			}

			return render(cmd.OutOrStdout(), a.cfg.OutputFormat, info, func(tw *tabwriter.Writer) {
				if info.State != identity.StateAuthenticated {
					fmt.Fprintln(tw, "Not signed in")
					return
				}
				fmt.Fprintf(tw, "User:\t%s (%s)\n", info.DisplayName, a.gate.Initials())
				fmt.Fprintf(tw, "Username:\t%s\n", info.Username)
				if info.ExpiresAt != "" {
					fmt.Fprintf(tw, "Session expires:\t%s\n", info.ExpiresAt)
				}
			})
		},
	}
}
