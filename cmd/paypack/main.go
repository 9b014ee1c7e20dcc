package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/berniyo/paypack-portal/internal/app"
	"github.com/berniyo/paypack-portal/internal/config"
	"github.com/berniyo/paypack-portal/internal/paypack"
	"github.com/berniyo/paypack-portal/pkg/slogx"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "paypack",
		Short:         "Paypack payment portal and operator tools",
		Version:       app.BuildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if envFile == "" {
				return config.LoadDotEnv()
			}
			return config.LoadDotEnv(envFile)
		},
	}
	rootCmd.PersistentFlags().String("env-file", "", "Dotenv file to load (default ./.env)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(cashInCmd())
	rootCmd.AddCommand(cashOutCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(transactionsCmd())
	rootCmd.AddCommand(cancelCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the payment portal HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(config.Load())
			if err != nil {
				return err
			}
			return a.Run()
		},
	}
}

// newClient builds a provider client from the environment. CLI logs go to
// stderr so command output stays parseable.
func newClient() (*paypack.Client, config.Config, error) {
	cfg := config.Load()
	if err := cfg.RequireProvider(); err != nil {
		return nil, cfg, err
	}

	logger := slogx.New(slogx.Config{
		Service: "paypack-cli",
		Version: app.BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  "text",
		Output:  os.Stderr,
	})

	client, err := paypack.NewClient(cfg.Paypack(),
		paypack.WithHTTPClient(cfg.HTTPClient()),
		paypack.WithLogger(logger),
	)
	if err != nil {
		return nil, cfg, fmt.Errorf("failed to initialize paypack client: %w", err)
	}
	return client, cfg, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
