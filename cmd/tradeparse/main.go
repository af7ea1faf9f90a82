package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/dedup"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/output"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/registry"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/roundtrip"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/rules"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/scanner"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/store"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/ui"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/validate"
)

const version = "0.1.0"

var (
	// Global flags
	versionFlag = flag.Bool("version", false, "Show version")

	// Core CLI flags
	inputDir = flag.String("input", "", "Input directory containing brokerage statements (required)")
	dryRun   = flag.Bool("dry-run", false, "Show what would be parsed without writing")
	verbose  = flag.Bool("verbose", false, "Show detailed parsing logs")

	// Output flags
	outputFile = flag.String("output", "", "Output JSON file (default: stdout)")
	mergeMode  = flag.Bool("merge", false, "Merge with existing output file")
	dbFile     = flag.String("db", "", "SQLite database to persist trades into")

	// Deduplication and rules
	stateFile = flag.String("state", "", "Deduplication state file")
	rulesFile = flag.String("rules", "", "Trading alert rules file (.yaml or .json)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `tradeparse - Brokerage statement parser and trade analyzer

Usage:
  tradeparse [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Parse all statements to stdout
  tradeparse -input ~/statements

  # Parse to file with dedup state and a trade database
  tradeparse -input ~/statements -output trades.json -state state.json -db trades.db

  # Evaluate alert rules against the imported trades
  tradeparse -input ~/statements -rules alerts.yaml

  # Dry run with verbose output
  tradeparse -input ~/statements -dry-run -verbose

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("tradeparse version %s\n", version)
		os.Exit(0)
	}

	if *inputDir == "" {
		fmt.Fprintf(os.Stderr, "Error: -input flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	s := scanner.New(*inputDir)

	if !*verbose {
		ui.Header("Importing Brokerage Statements")
		ui.Step(1, 4, "Scanning directory")
	} else {
		fmt.Fprintf(os.Stderr, "Scanning directory: %s\n", *inputDir)
	}

	files, err := s.Scan()
	if err != nil {
		return fmt.Errorf("failed to scan directory %s: %w", *inputDir, err)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Found %d statement files\n", len(files))
		for _, f := range files {
			fmt.Fprintf(os.Stderr, "  - %s (broker: %s, account: %s)\n",
				f.Path, f.Metadata.Broker(), f.Metadata.AccountHint())
		}
	} else {
		ui.Success(fmt.Sprintf("Found %d statement files", len(files)))
	}

	reg := registry.New()
	if *verbose {
		fmt.Fprintf(os.Stderr, "Registered parsers: %v\n", reg.ListParsers())
	}

	if *dryRun {
		fmt.Printf("Dry run complete. Would process %d files.\n", len(files))
		return nil
	}

	// Return error if no files found - prevents silent failures in scripts
	if len(files) == 0 {
		return fmt.Errorf("no statement files found in %s\n\nPlease check:\n  - Directory path is correct\n  - Files have supported extensions (.csv, .ofx, .qfx)\n  - You have read permissions on the directory and files", *inputDir)
	}

	// Dedup state: refuse to continue on a corrupt state file rather than
	// reprocessing everything as new.
	if !*verbose {
		ui.Step(2, 4, "Loading deduplication state")
	}
	var state *dedup.State
	if *stateFile != "" {
		loaded, err := dedup.LoadState(*stateFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("failed to load existing state file %q: %w\n\nDeleting it would cause all trades to be reprocessed as new. Back it up and inspect it before removing", *stateFile, err)
			}
			state = dedup.NewState()
			if *verbose {
				fmt.Fprintf(os.Stderr, "State file not found, creating new state\n")
			}
		} else {
			state = loaded
			if *verbose {
				fmt.Fprintf(os.Stderr, "Loaded state with %d fingerprints\n", len(state.Fingerprints))
			}
		}
	}

	if !*verbose {
		ui.Step(3, 4, "Loading alert rules")
	}
	var ruleSet *rules.RuleSet
	if *rulesFile != "" {
		ruleSet, err = rules.LoadFromFile(*rulesFile)
		if err != nil {
			return fmt.Errorf("failed to load rules file: %w", err)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Loaded %d rules from %s\n", len(ruleSet.Rules), *rulesFile)
		}
	}

	if !*verbose {
		ui.Step(4, 4, "Parsing statements")
	} else {
		fmt.Fprintln(os.Stderr, "\nParsing statements...")
	}

	report := output.NewReport()
	var duplicatesSkipped, failedStatements int

	for i, file := range files {
		p, err := reg.FindParser(file.Path)
		if err != nil {
			return fmt.Errorf("failed to find parser for %s: %w", file.Path, err)
		}

		if *verbose {
			fmt.Fprintf(os.Stderr, "  Parsing %s with %s parser\n", file.Path, p.Name())
		} else {
			fmt.Fprintf(os.Stderr, "\r  Progress: %d/%d files...", i+1, len(files))
		}

		f, err := os.Open(file.Path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", file.Path, err)
		}

		result, err := p.Parse(ctx, f, file.Metadata)
		// Close immediately instead of deferring to avoid descriptor
		// accumulation in the loop.
		if closeErr := f.Close(); closeErr != nil {
			return fmt.Errorf("failed to close %s: %w", file.Path, closeErr)
		}
		if err != nil {
			return fmt.Errorf("parse failed for file %d of %d (%s): %w", i+1, len(files), file.Path, err)
		}

		if !result.Success {
			failedStatements++
			for _, msg := range result.Errors {
				ui.Error(fmt.Sprintf("%s: %s", file.Path, msg))
			}
			continue
		}

		if state != nil {
			fresh, duplicates := state.FilterNew(result.Trades)
			duplicatesSkipped += len(duplicates)
			for _, trade := range fresh {
				fp := dedup.Fingerprint(trade)
				if err := state.RecordTrade(fp, fmt.Sprintf("%s@%s", trade.Symbol, trade.DateTime), time.Now()); err != nil {
					return fmt.Errorf("failed to record trade fingerprint: %w", err)
				}
			}
			result.Trades = fresh
		}

		report.AddResult(result)

		if *verbose {
			for _, ev := range result.Trace {
				fmt.Fprintf(os.Stderr, "    [%s] %s\n", ev.Stage, ev.Message)
			}
		}
	}

	if !*verbose {
		fmt.Fprintf(os.Stderr, "\r  Progress: %d/%d files - Complete!\n", len(files), len(files))
	}

	if failedStatements == len(files) {
		return fmt.Errorf("all %d statements failed to parse", len(files))
	}

	// Match round trips over the merged trade set.
	matched := roundtrip.Match(report.Trades)
	report.RoundTrips = matched.RoundTrips
	report.WinRate = matched.WinRate

	fmt.Fprintf(os.Stderr, "\n")
	ui.Info(fmt.Sprintf("Imported %d trades across %d accounts", len(report.Trades), len(report.Accounts)))
	ui.Info(fmt.Sprintf("Round trips: %d closed, %d legs still open, win rate %.1f%%",
		len(report.RoundTrips), len(matched.OpenTrades), report.WinRate*100))
	if len(report.Accounts) > 0 {
		ui.Info(fmt.Sprintf("Cumulative P&L: %s", ui.SignedMoney(report.CumulativePL, report.Accounts[0].BaseCurrency)))
	}
	if duplicatesSkipped > 0 {
		ui.Info(fmt.Sprintf("Skipped %d duplicate trades", duplicatesSkipped))
	}
	if failedStatements > 0 {
		ui.Warning(fmt.Sprintf("%d statements failed to parse", failedStatements))
	}

	// Alert rules run over the import summary; a rule failure aborts the
	// run before any output is written.
	if ruleSet != nil {
		if err := evaluateRules(ctx, ruleSet, report); err != nil {
			return fmt.Errorf("rule evaluation failed: %w", err)
		}
	}

	ui.Info("Validating import...")
	validation := validate.ValidateReport(report)
	if len(validation.Errors) > 0 {
		for i, e := range validation.Errors {
			if !*verbose && i >= 5 {
				ui.Error(fmt.Sprintf("... and %d more errors", len(validation.Errors)-5))
				break
			}
			ui.Error(fmt.Sprintf("%s %s [%s]: %s", e.Entity, e.ID, e.Field, e.Message))
		}
		return fmt.Errorf("validation failed with %d errors", len(validation.Errors))
	}
	if len(validation.Warnings) > 0 {
		ui.Warning(fmt.Sprintf("Validation produced %d warnings", len(validation.Warnings)))
		if *verbose {
			for _, w := range validation.Warnings {
				fmt.Fprintf(os.Stderr, "  - %s %s [%s]: %s\n", w.Entity, w.ID, w.Field, w.Message)
			}
		}
	} else {
		ui.Success("Validation passed")
	}

	// Save state before writing output: if the output write fails, a retry
	// must not reprocess already-recorded trades.
	if state != nil && *stateFile != "" {
		if err := dedup.SaveState(state, *stateFile); err != nil {
			return fmt.Errorf("failed to save state file before writing output: %w", err)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Saved state with %d fingerprints to %s\n", len(state.Fingerprints), *stateFile)
		}
	}

	if *dbFile != "" {
		if err := persist(ctx, report); err != nil {
			return fmt.Errorf("failed to persist trades: %w", err)
		}
		ui.Success(fmt.Sprintf("Persisted %d trades to %s", len(report.Trades), *dbFile))
	}

	opts := output.WriteOptions{
		MergeMode: *mergeMode,
		FilePath:  *outputFile,
	}
	if err := output.WriteReportToFile(report, opts); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if *outputFile != "" {
		ui.Success(fmt.Sprintf("Output written to %s", *outputFile))
	}

	return nil
}

// evaluateRules runs the alert rule set against a context built from the
// import summary. Handlers print through the ui package; position-sizing
// actions only advise since the CLI holds no live positions.
func evaluateRules(ctx context.Context, ruleSet *rules.RuleSet, report *output.Report) error {
	contextData := map[string]any{
		"tradeCount":   len(report.Trades),
		"winRate":      report.WinRate,
		"cumulativePL": report.CumulativePL,
		"roundTrips":   len(report.RoundTrips),
		"positions":    len(report.Positions),
		"optionTrades": len(report.OptionTrades),
	}
	if len(report.Accounts) > 0 {
		contextData["account"] = map[string]any{
			"id":       report.Accounts[0].AccountID,
			"balance":  report.Accounts[0].Balance,
			"currency": report.Accounts[0].BaseCurrency,
		}
	}

	actionCtx := rules.NewActionContext()
	actionCtx.Register("notify", func(ctx context.Context, params ...any) error {
		ui.Info(fmt.Sprintf("rule notification: %v", params[0]))
		return nil
	})
	actionCtx.Register("alert", func(ctx context.Context, params ...any) error {
		ui.Warning(fmt.Sprintf("rule alert: %v", params[0]))
		return nil
	})
	actionCtx.Register("log", func(ctx context.Context, params ...any) error {
		ui.BlueText(fmt.Sprintf("rule log: %v", params[0]))
		return nil
	})
	actionCtx.Register("setPositionSize", func(ctx context.Context, params ...any) error {
		ui.Info(fmt.Sprintf("rule advises position size: %v", params[0]))
		return nil
	})
	actionCtx.Register("reducePositionSize", func(ctx context.Context, params ...any) error {
		ui.Warning(fmt.Sprintf("rule advises reducing position size: %v", params[0]))
		return nil
	})

	hooks := &rules.Hooks{
		OnEvent: func(ev rules.Event) {
			if *verbose {
				fmt.Fprintf(os.Stderr, "  rule event: %s rule=%s action=%s\n", ev.Type, ev.RuleID, ev.Action)
			}
		},
	}

	return rules.NewEngine().Evaluate(ctx, ruleSet, contextData, actionCtx, hooks)
}

// persist writes the report's accounts, trades, positions and round trips
// to the SQLite store under one import session.
func persist(ctx context.Context, report *output.Report) error {
	db, err := store.Open(*dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	session, err := db.BeginImport(ctx, *inputDir, "tradeparse")
	if err != nil {
		return err
	}

	// The merged report carries no per-account trade split; persist the
	// whole import under its primary account.
	if len(report.Accounts) > 0 {
		result := domain.NewParseResult()
		result.Account = report.Accounts[0]
		result.Trades = report.Trades
		result.Positions = report.Positions
		result.OptionTrades = report.OptionTrades
		result.CumulativePL = report.CumulativePL

		if err := db.SaveResult(ctx, session, result); err != nil {
			return err
		}
	}

	if err := db.SaveRoundTrips(ctx, session, report.RoundTrips); err != nil {
		return err
	}

	return db.FinishImport(ctx, session)
}
