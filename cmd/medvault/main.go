package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/medvault/medvault/internal/config"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	a := &app{
		cfg:    cfg,
		logger: logger.New(cfg),
		tokens: auth.NewFileTokenStore(cfg.TokenFile),
		out:    os.Stdout,
		now:    time.Now,
	}
	os.Exit(run(a, os.Args[1:], os.Stderr))
}

// run executes args and reports failures on errOut. The return value is the
// process exit code.
func run(a *app, args []string, errOut io.Writer) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetErr(errOut)
	cmd, err := root.ExecuteC()
	if err == nil {
		return 0
	}
	fmt.Fprintln(errOut, "error:", err)
	if h := hint(cmd, err); h != "" {
		fmt.Fprintln(errOut, h)
	}
	return 1
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "medvault",
		Short:         "MedVault appointments, records and administration from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if api, _ := cmd.Flags().GetString("api"); api != "" {
				a.cfg.APIBase = api
			}
			return a.cfg.Validate()
		},
	}
	root.PersistentFlags().String("api", "", "Backend origin, overrides MEDVAULT_API_BASE")
	root.SetOut(a.out)

	root.AddCommand(loginCmd(a))
	root.AddCommand(logoutCmd(a))
	root.AddCommand(whoamiCmd(a))
	root.AddCommand(registerCmd(a))
	root.AddCommand(passwordCmd(a))
	root.AddCommand(patientCmd(a))
	root.AddCommand(doctorCmd(a))
	root.AddCommand(adminCmd(a))
	root.AddCommand(watchCmd(a))
	root.AddCommand(sandboxCmd(a))
	return root
}
