package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docflow/internal/config"
	"docflow/internal/extractor"
	"docflow/internal/run"
	"docflow/internal/synth"
	"docflow/internal/workspace"
)

var (
	rootCmd = &cobra.Command{
		Use:   "docflow",
		Short: "Generates project documentation and publishes it to a workspace",
		// main prints the error itself; without these every failure is
		// printed twice and followed by the usage text.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	configPath string

	flagModel              string
	flagLang               string
	flagDryRun             bool
	flagNoPublish          bool
	flagOverview           bool
	flagPrune              bool
	flagCache              bool
	flagConcurrency        int
	flagPublishConcurrency int
	flagFailureThreshold   int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "docflow.yaml", "Path to the YAML config file")

	generateCmd.Flags().StringVar(&flagModel, "model", "", "Model name (overrides config)")
	generateCmd.Flags().StringVar(&flagLang, "lang", "", "Source language to document (overrides config)")
	generateCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Compute publish actions without writing to the workspace")
	generateCmd.Flags().BoolVar(&flagNoPublish, "no-publish", false, "Synthesize only, skip the workspace entirely")
	generateCmd.Flags().BoolVar(&flagOverview, "overview", false, "Also write a project overview onto the parent page")
	generateCmd.Flags().BoolVar(&flagPrune, "prune", false, "Archive pages whose source no longer exists")
	generateCmd.Flags().BoolVar(&flagCache, "cache", true, "Reuse cached synthesis results for unchanged modules")
	generateCmd.Flags().IntVar(&flagConcurrency, "concurrency", 4, "Parallel model calls")
	generateCmd.Flags().IntVar(&flagPublishConcurrency, "publish-concurrency", 2, "Parallel workspace writes")
	generateCmd.Flags().IntVar(&flagFailureThreshold, "failure-threshold", 0, "Abort after this many failed modules (0 = never)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(languagesCmd)
}

var generateCmd = &cobra.Command{
	Use:   "generate [path]",
	Short: "Document a project and reconcile it with the workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			cfg.Project.Root = args[0]
		}
		if cfg.Project.Root == "" {
			cfg.Project.Root = "."
		}
		if flagModel != "" {
			cfg.AI.Model = flagModel
		}
		if flagLang != "" {
			cfg.Project.Lang = flagLang
		}

		publishing := !flagNoPublish
		if err := cfg.Validate(publishing); err != nil {
			return err
		}

		ctx := cmd.Context()

		gen, err := synth.NewGeminiGenerator(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			return fmt.Errorf("setting up model client: %w", err)
		}

		var svc *workspace.Client
		if publishing {
			svc = workspace.NewClient(cfg.Workspace.Token)
			if err := svc.Preflight(ctx, cfg.Workspace.ParentID); err != nil {
				return err
			}
		}

		opts := run.Options{
			Root:               cfg.Project.Root,
			ProjectName:        cfg.Project.Name,
			Lang:               cfg.Project.Lang,
			IgnorePatterns:     cfg.Project.Ignore,
			PromptBudget:       cfg.AI.PromptBudget,
			Concurrency:        flagConcurrency,
			PublishConcurrency: flagPublishConcurrency,
			FailureThreshold:   flagFailureThreshold,
			RequestTimeout:     time.Duration(cfg.AI.RequestTimeout) * time.Second,
			MaxRetries:         cfg.AI.MaxRetries,
			Overview:           flagOverview,
			ParentID:           cfg.Workspace.ParentID,
			DryRun:             flagDryRun,
			Prune:              flagPrune,
		}
		if flagCache {
			opts.CachePath = cfg.Cache.Path
		}

		start := time.Now()
		var runner *run.Runner
		if publishing {
			runner = run.New(gen, svc, opts)
		} else {
			runner = run.New(gen, nil, opts)
		}

		res, err := runner.Run(ctx)
		if res != nil {
			printResult(res)
		}
		if err != nil {
			return err
		}
		log.Printf("done in %s", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported source languages",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(strings.Join(extractor.Languages(), "\n"))
	},
}

func printResult(res *run.Result) {
	fmt.Printf("Scanned %d files into %d nodes\n", res.Files, res.Nodes)
	if res.SkippedOversize > 0 {
		fmt.Printf("  skipped %d oversized files\n", res.SkippedOversize)
	}
	if res.ScanTruncated {
		fmt.Println("  scan stopped at the total size cap; some files were not read")
	}
	for _, pe := range res.ParseErrors {
		fmt.Printf("  parse error: %s (line %d)\n", pe.Path, pe.Line)
	}
	if res.FromCache > 0 {
		fmt.Printf("Served %d nodes from cache\n", res.FromCache)
	}
	for _, path := range res.SynthFailed {
		fmt.Printf("  synthesis failed: %s\n", path)
	}
	if res.Publish != nil {
		fmt.Printf("Publish: %s\n", res.Publish)
	}
}
