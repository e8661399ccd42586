package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DoctorPlant/DrPlantTelegramApp/core/buildinfo"
	corecmd "github.com/DoctorPlant/DrPlantTelegramApp/core/cmd"
	"github.com/DoctorPlant/DrPlantTelegramApp/core/logger"
	"github.com/DoctorPlant/DrPlantTelegramApp/internal/app"
)

const defaultConfigPath = "config.yaml"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "plantdoctor",
		Short:         "Plant Doctor Telegram bot",
		Long:          "Plant Doctor walks users through a diagnostic quiz about their plant in Telegram and in a Mini App.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd)
		},
	}
	root.PersistentFlags().String("config", "", "Path to the YAML config (overrides "+corecmd.DefaultConfigEnvVar+")")

	root.AddCommand(newBotCmd(), newServeCmd(), newValidateCmd(), newSchemaCmd(), newVersionCmd())
	return root
}

func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot, and the HTTP API when http.enabled is set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd)
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run only the Mini App HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "plantdoctor", buildinfo.String())
		},
	}
}

func runnerOptions(cmd *cobra.Command) corecmd.Options {
	path, _ := cmd.Flags().GetString("config")
	return corecmd.Options{
		ConfigPath:        path,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := app.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			a, err := app.Bootstrap(ctx, cfg.(*app.Config))
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	}
}

func runBot(cmd *cobra.Command) error {
	return corecmd.Run(cmd.Context(), runnerOptions(cmd))
}

// runServe follows the bot pipeline without Telegram: config, bootstrap,
// then the HTTP server until a signal arrives.
func runServe(cmd *cobra.Command) error {
	opts := runnerOptions(cmd)
	path, err := opts.ResolveConfigPath()
	if err != nil {
		return err
	}
	log.Printf("loading config: %s", path)
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("close error: %v", err)
		}
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()
	return a.Serve(ctx)
}
