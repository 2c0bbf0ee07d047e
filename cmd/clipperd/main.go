// Command clipperd runs the clip processing daemon in the foreground: the
// queue worker, the HTTP job API, and the CLI control socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"clipper/internal/config"
	"clipper/internal/daemon"
	"clipper/internal/ipc"
	"clipper/internal/logging"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var socketFlag string

	cmd := &cobra.Command{
		Use:           "clipperd",
		Short:         "Run the clipper daemon in the foreground",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configFlag, socketFlag)
		},
	}
	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Path to the configuration file")
	cmd.Flags().StringVar(&socketFlag, "socket", "", "Path to the control socket")
	return cmd
}

func run(ctx context.Context, configPath, socketPath string) error {
	signalCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewForDir(cfg.Paths.LogDir, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if strings.TrimSpace(socketPath) == "" {
		socketPath = filepath.Join(cfg.Paths.LogDir, "clipperd.sock")
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	logger.Info("clipper daemon ready",
		logging.String("socket", socketPath),
		logging.String("api_bind", cfg.Paths.APIBind),
	)

	<-signalCtx.Done()
	logger.Info("clipper daemon shutting down")
	d.Stop()
	return nil
}
