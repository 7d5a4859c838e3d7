package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradebook/accounts"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Register, sign in and manage accounts",
	Long: `Manage tradebook accounts.

Subcommands:
  register - Create an account
  login    - Check credentials and remember the user on this device
  logout   - Forget the remembered user
  whoami   - Show the remembered user's profile
  passwd   - Change password
  reset    - Reset a password with the security answer
  rename   - Change username, moving journals along

Examples:
  tradebook account register --user alice --password s3cret --question "First car?" --answer civic
  tradebook account login --user alice --password s3cret`,
}

var accountRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE:  runAccountRegister,
}

var accountLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check credentials and remember the user",
	Args:  cobra.NoArgs,
	RunE:  runAccountLogin,
}

var accountLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the remembered user",
	Args:  cobra.NoArgs,
	RunE:  runAccountLogout,
}

var accountWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current user's profile",
	Args:  cobra.NoArgs,
	RunE:  runAccountWhoami,
}

var accountPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change password",
	Args:  cobra.NoArgs,
	RunE:  runAccountPasswd,
}

var accountResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset a forgotten password with the security answer",
	Args:  cobra.NoArgs,
	RunE:  runAccountReset,
}

var accountRenameCmd = &cobra.Command{
	Use:   "rename <new-username>",
	Short: "Change username and move journals to it",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountRename,
}

var (
	acctUser     string
	acctPassword string
	acctNew      string
	acctEmail    string
	acctPhone    string
	acctQuestion string
	acctAnswer   string
	acctRemember bool
)

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountRegisterCmd, accountLoginCmd, accountLogoutCmd, accountWhoamiCmd,
		accountPasswdCmd, accountResetCmd, accountRenameCmd)

	accountCmd.PersistentFlags().StringVarP(&acctUser, "user", "u", "", "username (defaults to the remembered user)")
	accountCmd.PersistentFlags().StringVarP(&acctPassword, "password", "p", "", "current password")

	accountRegisterCmd.Flags().StringVar(&acctEmail, "email", "", "email address")
	accountRegisterCmd.Flags().StringVar(&acctPhone, "phone", "", "phone number")
	accountRegisterCmd.Flags().StringVar(&acctQuestion, "question", "", "security question")
	accountRegisterCmd.Flags().StringVar(&acctAnswer, "answer", "", "security answer")
	accountResetCmd.Flags().StringVar(&acctAnswer, "answer", "", "security answer")
	accountResetCmd.Flags().StringVar(&acctNew, "new-password", "", "new password")
	accountPasswdCmd.Flags().StringVar(&acctNew, "new-password", "", "new password")
	accountLoginCmd.Flags().BoolVar(&acctRemember, "remember", true, "remember the user on this device")
}

func currentUser(a *app, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if u, ok := a.journals.RememberedUser(); ok {
		return u, nil
	}
	return "", errors.New("no user: pass --user or run 'tradebook account login'")
}

func runAccountRegister(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	acct, res, err := a.accounts.Register(cmd.Context(), accounts.Registration{
		Username:         acctUser,
		Password:         acctPassword,
		Email:            acctEmail,
		Phone:            acctPhone,
		SecurityQuestion: acctQuestion,
		SecurityAnswer:   acctAnswer,
	})
	if err != nil {
		return err
	}
	awaitRemote(a, res)
	if err := a.journals.RememberUser(acct.Username); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Registered %s\n", acct.Username)
	return nil
}

func runAccountLogin(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	acct, err := a.accounts.Login(cmd.Context(), acctUser, acctPassword)
	if err != nil {
		return err
	}
	if acctRemember {
		if err := a.journals.RememberUser(acct.Username); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Signed in as %s\n", acct.Username)
	return nil
}

func runAccountLogout(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.journals.ForgetUser(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Signed out")
	return nil
}

func runAccountWhoami(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := currentUser(a, acctUser)
	if err != nil {
		return err
	}
	acct, err := a.accounts.Get(cmd.Context(), user)
	if err != nil {
		return err
	}
	p := acct.Profile()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Username:   %s\n", p.Username)
	if p.Email != "" {
		fmt.Fprintf(out, "Email:      %s\n", p.Email)
	}
	if p.Phone != "" {
		fmt.Fprintf(out, "Phone:      %s\n", p.Phone)
	}
	fmt.Fprintf(out, "Registered: %s\n", p.RegisteredAt.Format("2006-01-02"))
	return nil
}

func runAccountPasswd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := currentUser(a, acctUser)
	if err != nil {
		return err
	}
	res, err := a.accounts.ChangePassword(cmd.Context(), user, acctPassword, acctNew)
	if err != nil {
		return err
	}
	awaitRemote(a, res)
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Password changed")
	return nil
}

func runAccountReset(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.accounts.ResetPassword(cmd.Context(), acctUser, acctAnswer, acctNew)
	if err != nil {
		return err
	}
	awaitRemote(a, res)
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Password reset")
	return nil
}

func runAccountRename(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := currentUser(a, acctUser)
	if err != nil {
		return err
	}
	acct, res, err := a.accounts.Rename(cmd.Context(), user, args[0], acctPassword)
	if err != nil {
		return err
	}
	awaitRemote(a, res)
	if err := a.journals.Move(cmd.Context(), user, acct.Username); err != nil {
		return err
	}
	if remembered, ok := a.journals.RememberedUser(); ok && remembered == user {
		_ = a.journals.RememberUser(acct.Username)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Renamed %s to %s\n", user, acct.Username)
	return nil
}
