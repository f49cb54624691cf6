// Command tablecast bridges typed records and wide-column tables. It runs
// source-to-destination pipelines, provisions tables ahead of time, and
// lists the registered connectors.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tablecast/tablecast/internal/pipeline"
	"github.com/tablecast/tablecast/pkg/config"
	"github.com/tablecast/tablecast/pkg/connector/registry"
	"github.com/tablecast/tablecast/pkg/json"
	"github.com/tablecast/tablecast/pkg/logger"

	// Register the connectors and the in-memory store driver.
	widecolumndest "github.com/tablecast/tablecast/pkg/connector/destinations/widecolumn"
	_ "github.com/tablecast/tablecast/pkg/connector/sources/widecolumn"
	"github.com/tablecast/tablecast/pkg/widecolumn"
	_ "github.com/tablecast/tablecast/pkg/widecolumn/memstore"
)

var version = "0.1.0"

func main() {
	// A .env file is optional.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "tablecast",
		Short: "tablecast - typed records in and out of wide-column tables",
		Long: `tablecast moves typed tabular records into and out of wide-column stores.
Field names resolve to family:qualifier columns, values are encoded per
declared type, and tables with their column families are provisioned on
demand.`,
	}

	root.AddCommand(versionCmd())
	root.AddCommand(listCmd())
	root.AddCommand(runCmd())
	root.AddCommand(provisionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tablecast v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func listCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered connectors and store drivers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				out, err := json.MarshalIndent(registry.ListInfo(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			fmt.Println("Source connectors:")
			for _, name := range registry.ListSources() {
				fmt.Printf("  - %s\n", name)
			}
			fmt.Println("\nDestination connectors:")
			for _, name := range registry.ListDestinations() {
				fmt.Printf("  - %s\n", name)
			}
			fmt.Println("\nStore drivers:")
			for _, scheme := range widecolumn.Drivers() {
				fmt.Printf("  - %s://\n", scheme)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the connector catalog as JSON")
	return cmd
}

func runCmd() *cobra.Command {
	var sourceConfigFile, destConfigFile string
	var batchSize, workers int
	var timeout, flushInterval time.Duration
	var failFast bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a source-to-destination pipeline",
		Long: `Run a pipeline with the given source and destination configurations.
Configuration files are YAML; ${VAR} references are substituted from the
environment.

Example:
  tablecast run --source source.yaml --destination dest.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(sourceConfigFile, destConfigFile, &pipeline.Config{
				BatchSize:     batchSize,
				WorkerCount:   workers,
				FlushInterval: flushInterval,
				FailFast:      failFast,
			}, timeout)
		},
	}

	cmd.Flags().StringVarP(&sourceConfigFile, "source", "s", "", "Path to source configuration YAML file (required)")
	cmd.Flags().StringVarP(&destConfigFile, "destination", "d", "", "Path to destination configuration YAML file (required)")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("destination")

	cmd.Flags().IntVar(&batchSize, "batch-size", config.DefaultWriteBatch, "Records per destination batch")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "Parallel transform workers")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Pipeline timeout")
	cmd.Flags().DurationVar(&flushInterval, "flush-interval", time.Second, "Partial batch flush interval")
	cmd.Flags().BoolVar(&failFast, "fail-fast", true, "Abort the run on the first record error")
	return cmd
}

func provisionCmd() *cobra.Command {
	var destConfigFile string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create the output table and default family without running a pipeline",
		Long: `Provision the destination's output table ahead of a run. Creating the
table up front moves the region-allocation wait out of the first write.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadBase(destConfigFile)
			if err != nil {
				return fmt.Errorf("destination configuration error: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			dest, err := widecolumndest.NewDestination(cfg)
			if err != nil {
				return err
			}
			// Initialize performs the table and family provisioning.
			if err := dest.Initialize(ctx, cfg); err != nil {
				return fmt.Errorf("provisioning failed: %w", err)
			}
			defer dest.Close(ctx)

			fmt.Printf("table %q provisioned with family %q\n",
				cfg.WideColumn.OutputTable, cfg.WideColumn.DefaultFamily)
			return nil
		},
	}

	cmd.Flags().StringVarP(&destConfigFile, "destination", "d", "", "Path to destination configuration YAML file (required)")
	_ = cmd.MarkFlagRequired("destination")
	return cmd
}

func runPipeline(sourceConfigFile, destConfigFile string, pipeCfg *pipeline.Config, timeout time.Duration) error {
	sourceConfig, err := config.LoadBase(sourceConfigFile)
	if err != nil {
		return fmt.Errorf("source configuration error: %w", err)
	}
	destConfig, err := config.LoadBase(destConfigFile)
	if err != nil {
		return fmt.Errorf("destination configuration error: %w", err)
	}

	if pipeCfg.BatchSize > 0 {
		destConfig.Performance.BatchSize = pipeCfg.BatchSize
	}

	log := logger.Get().With(
		zap.String("component", "tablecast-cli"),
		zap.String("source", sourceConfig.Type),
		zap.String("destination", destConfig.Type),
	)

	source, err := registry.CreateSource(sourceConfig.Type, sourceConfig)
	if err != nil {
		return fmt.Errorf("failed to create source connector %q: %w", sourceConfig.Type, err)
	}
	destination, err := registry.CreateDestination(destConfig.Type, destConfig)
	if err != nil {
		return fmt.Errorf("failed to create destination connector %q: %w", destConfig.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := source.Initialize(ctx, sourceConfig); err != nil {
		return fmt.Errorf("failed to initialize source: %w", err)
	}
	if err := destination.Initialize(ctx, destConfig); err != nil {
		return fmt.Errorf("failed to initialize destination: %w", err)
	}

	p := pipeline.New(source, destination, pipeCfg, log)

	start := time.Now()
	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("pipeline execution failed: %w", err)
	}

	elapsed := time.Since(start)
	log.Info("pipeline completed",
		zap.Duration("elapsed", elapsed),
		zap.Int64("records_processed", p.RecordsProcessed()),
		zap.Int64("records_failed", p.RecordsFailed()))

	if err := source.Close(ctx); err != nil {
		log.Warn("failed to close source", zap.Error(err))
	}
	if err := destination.Close(ctx); err != nil {
		log.Warn("failed to close destination", zap.Error(err))
	}
	return nil
}
