package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dfryer1193/storefront/catalog/application"
	"github.com/dfryer1193/storefront/internal/bootstrap"
	"github.com/dfryer1193/storefront/shared/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	deleteMode bool
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "assetgc",
	Short: "Report or delete asset files no catalog document references",
	Long: `assetgc compares the asset directory with the image references held by
product and category documents. By default it only reports; pass --delete to
remove unreferenced files. Do not run it while an import is in progress.`,
	SilenceUsage: true,
	RunE:         runGC,
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file (defaults to $STOREFRONT_CONFIG)")
	rootCmd.Flags().BoolVar(&deleteMode, "delete", false, "Delete unreferenced files instead of only reporting them")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every unreferenced file and duplicate group")
}

func initLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func runGC(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := cmd.Context()
	stores, err := bootstrap.OpenDocuments(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close(context.Background())

	gc := application.NewGarbageCollector(stores.Documents, cfg.Assets.Dir, cfg.Assets.URLPrefix)
	report, err := gc.Run(ctx, !deleteMode)
	if err != nil {
		return fmt.Errorf("garbage collection failed: %w", err)
	}

	return printReport(cmd.OutOrStdout(), report, jsonOutput, verbose)
}
