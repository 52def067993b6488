package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/GPTx-global/rngoracle/oracle/config"
	"github.com/GPTx-global/rngoracle/oracle/daemon"
	"github.com/GPTx-global/rngoracle/oracle/log"
	"github.com/GPTx-global/rngoracle/oracle/metrics"
)

const (
	EnvPrefix = "RNGORACLE"

	flagHome         = "home"
	flagExecutor     = "executor"
	flagNetwork      = "network"
	flagConfirmMode  = "confirm-mode"
	flagStatusListen = "status-listen"
	flagVerbose      = "verbose"
)

// NewRootCmd creates the rngoracled root command.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "rngoracled",
		Short:         "Oracle identity lifecycle daemon for on-chain random numbers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			home, err := cmd.Flags().GetString(flagHome)
			if err != nil {
				return err
			}

			return config.Load(home, v)
		},
	}

	rootCmd.PersistentFlags().String(flagHome, config.DefaultHome(), "directory for config, journal and logs")
	rootCmd.PersistentFlags().String(flagExecutor, "", "transaction executor endpoint")
	rootCmd.PersistentFlags().Int(flagNetwork, config.NetworkUnset, "network selector: 0 Preprod, 1 Mainnet")
	rootCmd.PersistentFlags().String(flagConfirmMode, "", "confirmation mode: poll or fixed")
	rootCmd.PersistentFlags().String(flagStatusListen, "", "status server listen address")
	rootCmd.PersistentFlags().Bool(flagVerbose, false, "enable debug logging")

	bindFlags(v, rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		startCmd(),
		configCmd(),
	)

	return rootCmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for key, name := range map[string]string{
		"executor.endpoint": flagExecutor,
		"network.selector":  flagNetwork,
		"confirm.mode":      flagConfirmMode,
		"status.listen":     flagStatusListen,
		"log.verbose":       flagVerbose,
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			log.Fatalf("failed to bind flag %s: %v", name, err)
		}
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Mint and register an oracle identity, then serve generate and query actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log.SetVerbose(config.LogVerbose())
			if config.LogToFile() {
				log.ResetLogger(config.Home())
			}
			config.Print()

			sink, err := metrics.NewPrometheusSink()
			if err != nil {
				return err
			}
			if err := metrics.Init(sink); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := daemon.New(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := d.Start(); err != nil {
				d.Stop()
				return err
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- d.Run()
			}()

			select {
			case err = <-errCh:
			case <-ctx.Done():
				log.Infof("shutdown signal received")
			}
			d.Stop()

			return err
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			config.Print()
		},
	}
}
