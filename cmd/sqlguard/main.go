package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sqlguard/internal/batch"
	"sqlguard/internal/model"
	"sqlguard/internal/optimizer"
	"sqlguard/internal/reporter"
	"sqlguard/internal/suggest"
	"sqlguard/internal/validator"
)

var (
	queryFile   string
	tablesFile  string
	excludes    []string
	concurrency int
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "sqlguard",
	Short: "Safety validation and heuristic optimization for generated SQL",
	Long: `sqlguard classifies untrusted SQL as safe-to-execute or rejected,
applies conservative text-level optimizations to queries that pass, and
suggests table names when a query referenced one that does not exist.

Only single SELECT or WITH statements are ever accepted; everything
else is rejected with a machine-readable reason.`,
	SilenceUsage: true,
}

var validateCmd = &cobra.Command{
	Use:   "validate [sql]",
	Short: "Classify a query as safe or rejected",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfig()
		if err != nil {
			return err
		}
		sql, err := readQuery(args)
		if err != nil {
			return err
		}

		res := validator.New(validatorConfig(v)).Validate(sql)
		rpt := reporter.NewConsoleReporter()
		if err := rpt.ReportValidation(res); err != nil {
			return err
		}
		if !res.OK() {
			os.Exit(1)
		}
		return nil
	},
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize [sql]",
	Short: "Validate a query, then apply conservative rewrites",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfig()
		if err != nil {
			return err
		}
		sql, err := readQuery(args)
		if err != nil {
			return err
		}

		check := validator.New(validatorConfig(v))
		rpt := reporter.NewConsoleReporter()

		res := check.Validate(sql)
		if !res.OK() {
			if err := rpt.ReportValidation(res); err != nil {
				return err
			}
			os.Exit(1)
		}

		opt := optimizer.New(optimizerConfig(v), check)
		return rpt.ReportOptimization(opt.Optimize(res.SanitizedSQL))
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <name>",
	Short: "Rank known tables similar to a missing one",
	Long: `Rank known table names by similarity to the one that failed to
resolve. The argument may be a bare table name or a full warehouse error
message containing "Object '...' does not exist". Known names are read one
per line from --tables, or from stdin when --tables is not given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfig()
		if err != nil {
			return err
		}

		failing := args[0]
		if name := suggest.MissingObject(failing); name != "" {
			failing = name
		}

		known, err := readTables()
		if err != nil {
			return err
		}

		eng := suggest.New(suggestConfig(v))
		rpt := reporter.NewConsoleReporter()
		return rpt.ReportSuggestions(failing, eng.Rank(failing, known))
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Validate every .sql file under a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfig()
		if err != nil {
			return err
		}
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		if _, err := os.Stat(root); err != nil {
			return fmt.Errorf("scan root: %w", err)
		}

		logLevel := slog.LevelWarn
		if verbose {
			logLevel = slog.LevelDebug
		}
		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

		if concurrency <= 0 {
			concurrency = v.GetInt(cfgKeyScanConcurrency)
		}

		ctx := context.Background()
		walker := batch.NewFileWalker([]string{"sql"}, excludes)
		paths, errChan := walker.Walk(ctx, root)

		pool := batch.NewWorkerPool(concurrency, validator.New(validatorConfig(v)))
		results := pool.Start(ctx, paths)

		go func() {
			for err := range errChan {
				log.Warn("walk failed", "err", err)
			}
		}()

		var total, rejected int
		for res := range results {
			if res.Err != nil {
				log.Warn("read failed", "file", res.File, "err", res.Err)
				continue
			}
			total++
			if res.Result.OK() {
				log.Debug("safe", "file", res.File)
				continue
			}
			rejected++
			if res.Result.Reason == model.ReasonDangerousKeyword {
				fmt.Printf("%s: %s (%s)\n", res.File, res.Result.Reason, res.Result.OffendingKeyword)
			} else {
				fmt.Printf("%s: %s\n", res.File, res.Result.Reason)
			}
		}

		fmt.Printf("%d files checked, %d rejected\n", total, rejected)
		if rejected > 0 {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	validateCmd.Flags().StringVarP(&queryFile, "file", "f", "", "Read the query from a file instead of an argument")
	optimizeCmd.Flags().StringVarP(&queryFile, "file", "f", "", "Read the query from a file instead of an argument")

	suggestCmd.Flags().StringVarP(&tablesFile, "tables", "t", "", "File with known table names, one per line")

	scanCmd.Flags().StringSliceVarP(&excludes, "exclude", "e", []string{".git", "vendor"}, "Patterns to exclude from the scan")
	scanCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Worker count (default from config)")

	rootCmd.AddCommand(validateCmd, optimizeCmd, suggestCmd, scanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// readQuery resolves the SQL input: positional argument, --file, or stdin.
func readQuery(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if queryFile != "" {
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return "", fmt.Errorf("read query file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

// readTables loads known table names from --tables or stdin, one per line.
func readTables() ([]string, error) {
	var data []byte
	var err error
	if tablesFile != "" {
		data, err = os.ReadFile(tablesFile)
		if err != nil {
			return nil, fmt.Errorf("read tables file: %w", err)
		}
	} else {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}

	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}
