package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/keagan/geoframes/internal/config"
	"github.com/keagan/geoframes/internal/logging"
	"github.com/keagan/geoframes/internal/pipeline"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var version = "dev"

// Exit codes
const (
	exitFatal    = 1
	exitDegraded = 2
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		code := exitCode(err)
		if code == exitDegraded {
			log.Warn().Err(err).Msg("frames written without positions")
		} else {
			log.Error().Err(err).Msg("geoframes failed")
		}
		stop()
		os.Exit(code)
	}
}

func exitCode(err error) int {
	if errors.Is(err, pipeline.ErrDegraded) {
		return exitDegraded
	}
	return exitFatal
}

var rootCmd = &cobra.Command{
	Use:           "geoframes",
	Short:         "geoframes - geotagged frames from video",
	Long:          "Extract timestamped JPEG frames from a video and geotag them from a GPS track.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose)

		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Msg("could not read .env")
		}

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./geoframes.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newGeotagCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func software() string {
	return fmt.Sprintf("geoframes (v%s)", version)
}

var probeCmd = &cobra.Command{
	Use:   "probe [video]",
	Short: "Show video metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := pipeline.New(log.Logger, config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}

		info, err := pipe.Probe(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "file:       %s\n", info.FilePath)
		fmt.Fprintf(out, "codec:      %s\n", info.VideoCodec)
		fmt.Fprintf(out, "resolution: %dx%d\n", info.Width, info.Height)
		fmt.Fprintf(out, "fps:        %.3f\n", info.FPS)
		fmt.Fprintf(out, "frames:     %d\n", info.FrameCount)
		fmt.Fprintf(out, "duration:   %s\n", info.Duration)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "./geoframes.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("configuration written")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(config.FromContext(cmd.Context()))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
