// Command sumgrid serves an editable grid with per-column sums.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := configFromEnv()

	root := &cobra.Command{
		Use:          "sumgrid",
		Short:        "Editable grid with per-column sums",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setupLogging(cfg.LogLevel)
		},
	}
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
	serve.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address (default from PORT)")
	serve.Flags().IntVar(&cfg.DefaultRows, "rows", cfg.DefaultRows, "Rows of a new sheet")
	serve.Flags().IntVar(&cfg.DefaultCols, "cols", cfg.DefaultCols, "Columns of a new sheet")
	serve.Flags().StringVar(&cfg.GeminiModel, "gemini-model", cfg.GeminiModel, "Gemini model used to scan table photos")

	render := &cobra.Command{
		Use:   "render [input.xlsx]",
		Short: "Print the grid page of an Excel file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0])
		},
	}

	root.AddCommand(serve, render)
	return root
}

func runServe(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var gemini *GeminiClient
	if cfg.GCPProject != "" {
		var err error
		gemini, err = NewGeminiClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("init gemini: %w", err)
		}
		defer gemini.Close()
		log.WithFields(log.Fields{"project": cfg.GCPProject, "model": cfg.GeminiModel}).Info("gemini client ready")
	} else {
		log.Info("GCP_PROJECT_ID not set, image scanning disabled")
	}

	srv := NewServer(cfg, NewStore(), gemini)
	defer srv.Close()

	log.Infof("listening on %s", cfg.Addr)
	return http.ListenAndServe(cfg.Addr, srv)
}

func runRender(cmd *cobra.Command, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	sheet, err := ReadXLSX(f)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	wb := NewStore().AddSheet(path, sheet)
	return wb.WritePage(cmd.OutOrStdout())
}
