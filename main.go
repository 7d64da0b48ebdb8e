package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"electionsim/mapsim/internal/config"
	"electionsim/mapsim/internal/server"
	"electionsim/mapsim/internal/travel"
)

var (
	configPath string
	addr       string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "mapsim",
	Short: "Agent travel server for the election map",
	Long: `mapsim moves agents between the zones of the election map and streams
their positions to the renderer over a websocket.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket server (default)",
	RunE:  runServe,
}

var routeCmd = &cobra.Command{
	Use:   "route FROM TO",
	Short: "Print the waypoints between two zones",
	Args:  cobra.ExactArgs(2),
	RunE:  runRoute,
}

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List the zones of the configured map",
	RunE:  runZones,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "mapsim.yaml", "Config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "Listen address (overrides config)")

	rootCmd.AddCommand(serveCmd, routeCmd, zonesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging level: %w", err)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

func runRoute(cmd *cobra.Command, args []string) error {
	layout, err := configuredLayout()
	if err != nil {
		return err
	}
	points := layout.BuildRoute(args[0], args[1])
	out := cmd.OutOrStdout()
	if len(points) == 0 {
		fmt.Fprintf(out, "no travel needed from %s to %s\n", args[0], args[1])
		return nil
	}
	for i, p := range points {
		fmt.Fprintf(out, "%d\t%.2f\t%.2f\n", i, p[0], p[1])
	}
	fmt.Fprintf(out, "length\t%.2f\n", travel.RouteLength(points))
	return nil
}

func runZones(cmd *cobra.Command, args []string) error {
	layout, err := configuredLayout()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "corridor x=%.2f\n", layout.CorridorX())
	for _, z := range layout.Zones() {
		fmt.Fprintf(out, "%s\t%s\t%s\tgateway=(%.2f, %.2f)\n", z.ID, z.Name, layout.Side(z), z.Gateway[0], z.Gateway[1])
	}
	return nil
}

func configuredLayout() (*travel.Layout, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Map.Layout()
}
