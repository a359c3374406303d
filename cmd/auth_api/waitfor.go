// File: cmd/auth_api/waitfor.go
package main

import (
	"auth_api/internal/platform/readiness"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

const addressFlag = "address"

var waitForFlags = map[string]cobraflags.Flag{
	addressFlag: &cobraflags.StringFlag{
		Name:  addressFlag,
		Value: "",
		Usage: "host:port to poll (default: DB_HOST:DB_PORT)",
	},
}

func newWaitForCommand() *cobra.Command {
	var opts readiness.Options
	var ping bool
	cmd := &cobra.Command{
		Use:   "wait-for",
		Short: "Block until the database accepts connections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, appLogger, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = appLogger.Sync() }()

			opts.Address = waitForFlags[addressFlag].GetString()
			if opts.Address == "" {
				opts.Address = cfg.DBAddress()
			}
			if ping {
				opts.PostgresURL = cfg.PostgresURL()
			}
			if err := readiness.Wait(cmd.Context(), opts, appLogger); err != nil {
				return err
			}
			cmd.Printf("%s is ready\n", opts.Address)
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, waitForFlags)
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "Give up after this long (0 waits forever)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", readiness.DefaultInterval, "Delay between attempts")
	cmd.Flags().BoolVar(&ping, "ping", false, "Also require a successful Postgres ping")
	return cmd
}
