package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/medvault/medvault/internal/dashboard"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/validate"
)

func loginCmd(a *app) *cobra.Command {
	var form validate.LoginForm
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOf(cmd)
			s, err := a.anonymous().Login(ctx, form)
			if err != nil {
				return err
			}
			if err := a.tokens.Save(s); err != nil {
				return fmt.Errorf("store session: %w", err)
			}
			a.printf("Signed in as %s (%s)\n", dash(s.Email()), s.Role())

			shell, err := dashboard.New(s, a.newClient(s), a.tokens, a.logger)
			if err != nil {
				return err
			}
			_, err = shell.Enter(ctx)
			var gate *dashboard.ProfileGateError
			switch {
			case errors.Is(err, dashboard.ErrPasswordSetupRequired):
				a.printf("First login: choose a new password with medvault password set --new PASSWORD\n")
				return nil
			case errors.As(err, &gate):
				a.printf("%s\n", gate.Error())
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&form.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "Account password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.tokens.Clear(); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			a.printf("Signed out\n")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.signedIn("")
			if err != nil {
				return err
			}
			s := c.Session()
			a.printf("%s (%s), expires %s\n", dash(s.Email()), s.Role(), stamp(s.ExpiresAt()))
			shell, err := dashboard.New(s, c, a.tokens, a.logger)
			if err != nil {
				return err
			}
			tabs := make([]string, 0, len(shell.Tabs()))
			for _, t := range shell.Tabs() {
				tabs = append(tabs, string(t))
			}
			a.printf("Tabs: %s\n", strings.Join(tabs, ", "))
			return nil
		},
	}
}

func registerCmd(a *app) *cobra.Command {
	var (
		form validate.RegisterForm
		role string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Request a patient or doctor account",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := auth.ParseRole(role)
			if err != nil {
				return err
			}
			msg, err := a.anonymous().Register(ctxOf(cmd), r, form)
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&role, "role", "patient", "patient or doctor")
	f.StringVar(&form.Name, "name", "", "Full name")
	f.StringVar(&form.Email, "email", "", "Email")
	f.StringVar(&form.Password, "password", "", "Password, at least 6 characters")
	f.StringVar(&form.Phone, "phone", "", "Phone number")
	f.StringVar(&form.Gender, "gender", "", "Gender")
	f.StringVar(&form.DOB, "dob", "", "Date of birth, YYYY-MM-DD")
	f.StringVar(&form.Address, "address", "", "Address")
	f.StringVar(&form.EmergencyContactPhone, "emergency-phone", "", "Emergency contact phone")
	f.StringVar(&form.Specialization, "specialization", "", "Doctor specialization")
	f.StringVar(&form.Hospital, "hospital", "", "Doctor hospital")
	f.IntVar(&form.Experience, "experience", 0, "Doctor years of experience")
	f.Float64Var(&form.ConsultationFees, "fees", 0, "Doctor consultation fees")
	return cmd
}

func passwordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Recover or set a password",
	}

	var email string
	forgot := &cobra.Command{
		Use:   "forgot",
		Short: "Send a one-time code to the account email",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := a.anonymous().ForgotPassword(ctxOf(cmd), email)
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}
	forgot.Flags().StringVar(&email, "email", "", "Account email")

	var otp string
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Check a one-time code",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := a.anonymous().VerifyOTP(ctxOf(cmd), email, otp)
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}
	verify.Flags().StringVar(&email, "email", "", "Account email")
	verify.Flags().StringVar(&otp, "otp", "", "Six digit code")

	var reset validate.ResetPasswordForm
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Choose a new password with a one-time code",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := a.anonymous().ResetPassword(ctxOf(cmd), reset)
			if err != nil {
				return err
			}
			a.printf("%s\n", msg)
			return nil
		},
	}
	resetCmd.Flags().StringVar(&reset.Email, "email", "", "Account email")
	resetCmd.Flags().StringVar(&reset.OTP, "otp", "", "Six digit code")
	resetCmd.Flags().StringVar(&reset.NewPassword, "new", "", "New password")

	var newPassword string
	set := &cobra.Command{
		Use:   "set",
		Short: "Set the password after a first login",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.signedIn("")
			if err != nil {
				return err
			}
			shell, err := dashboard.New(c.Session(), c, a.tokens, a.logger)
			if err != nil {
				return err
			}
			msg, err := shell.CompletePasswordSetup(ctxOf(cmd), newPassword)
			if err != nil {
				return err
			}
			a.printf("%s\nSign in again with the new password.\n", strings.TrimSpace(msg))
			return nil
		},
	}
	set.Flags().StringVar(&newPassword, "new", "", "New password")

	cmd.AddCommand(forgot, verify, resetCmd, set)
	return cmd
}
