package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/diagnose/diagnose/internal/config"
	"github.com/diagnose/diagnose/internal/domain/diagnosis"
	"github.com/diagnose/diagnose/internal/domain/rules"
	"github.com/diagnose/diagnose/internal/platform/logging"
)

// sourceFlags lets file-based commands point at a rule file without touching
// the environment.
type sourceFlags struct {
	rules  string
	format string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.rules, "rules", "", "Rule file (overrides RULES_PATH and forces RULES_SOURCE=file)")
	cmd.Flags().StringVar(&f.format, "format", "", "Rule file format: json or yaml (default from extension)")
}

func (f *sourceFlags) apply(cfg *config.Config) error {
	if f.rules != "" {
		cfg.RulesSource = config.RulesSourceFile
		cfg.RulesPath = f.rules
	}
	if f.format != "" {
		cfg.RulesFormat = strings.ToLower(f.format)
	}
	return cfg.Validate()
}

// cliLogger writes warnings to stderr so stdout stays parseable.
func cliLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	logger, err := logging.NewTo(cmd.ErrOrStderr(), "development", cfg.LogLevel)
	if err != nil {
		logger, _ = logging.NewTo(cmd.ErrOrStderr(), "development", "warn")
	}
	return logger
}

// loadRules opens the configured source and loads it once.
func loadRules(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*rules.Store, func(), error) {
	src, pool, err := openSource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if pool != nil {
			pool.Close()
		}
	}
	store, err := rules.NewStore(ctx, src, logger)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return store, closer, nil
}

func inferCmd() *cobra.Command {
	var (
		sf       sourceFlags
		symptoms []string
		names    string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Score diagnoses for a set of observed symptoms",
		Example: "  diagnose infer --rules data/rules.json --names data/catalog.json --symptom G05\n" +
			"  diagnose infer --symptom G01,G02 --out report.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := sf.apply(cfg); err != nil {
				return err
			}
			if names != "" {
				cfg.NamesPath = names
			}
			logger := cliLogger(cmd, cfg)

			ctx := cmd.Context()
			store, closer, err := loadRules(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closer()

			catalog, err := diagnosis.LoadCatalog(cfg.NamesPath)
			if err != nil {
				return err
			}
			res, err := diagnosis.NewService(store, catalog, logger).Diagnose(ctx, symptoms)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.Summary)
			if out != "" {
				if err := diagnosis.WriteReport(out, res); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "report written to %s\n", out)
			}
			return nil
		},
	}
	sf.register(cmd)
	cmd.Flags().StringSliceVarP(&symptoms, "symptom", "s", nil, "Observed symptom code (repeatable or comma-separated)")
	cmd.Flags().StringVar(&names, "names", "", "Display-name catalog (overrides NAMES_PATH)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the result to a file (.json for full JSON, otherwise text)")
	return cmd
}

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the rule base",
	}

	var vf sourceFlags
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load the rule base and report problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := vf.apply(cfg); err != nil {
				return err
			}
			store, closer, err := loadRules(cmd.Context(), cfg, cliLogger(cmd, cfg))
			if err != nil {
				return err
			}
			defer closer()

			snap := store.Snapshot()
			unconditional := 0
			for _, r := range snap.Rules {
				if r.Unconditional() {
					unconditional++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rule(s) OK", snap.Source, len(snap.Rules))
			if unconditional > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", %d without conditions", unconditional)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	vf.register(validate)

	var lf sourceFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the rule base as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := lf.apply(cfg); err != nil {
				return err
			}
			store, closer, err := loadRules(cmd.Context(), cfg, cliLogger(cmd, cfg))
			if err != nil {
				return err
			}
			defer closer()

			return printRules(cmd.OutOrStdout(), store.Rules())
		},
	}
	lf.register(list)

	cmd.AddCommand(validate, list)
	return cmd
}

func printRules(w io.Writer, rs []rules.Rule) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tIF\tTHEN\tCF")
	for i, r := range rs {
		conds := make([]string, 0, len(r.Conditions))
		for _, c := range r.Conditions {
			conds = append(conds, string(c))
		}
		cond := strings.Join(conds, " AND ")
		if cond == "" {
			cond = "(always)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\n", i+1, cond, r.Conclusion, r.Confidence)
	}
	return tw.Flush()
}
