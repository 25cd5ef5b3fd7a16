package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alem-hub/strategic-analytics/internal/domain/analytics"
	"github.com/alem-hub/strategic-analytics/internal/domain/assessment"
	"github.com/alem-hub/strategic-analytics/internal/infrastructure/policyfile"
	"github.com/alem-hub/strategic-analytics/pkg/logger"
)

// sections selectable with --section.
var sections = map[string]func(*analytics.Report) any{
	"all":         func(r *analytics.Report) any { return r },
	"metrics":     func(r *analytics.Report) any { return r.Metrics },
	"gaps":        func(r *analytics.Report) any { return r.LearningGaps },
	"rankings":    func(r *analytics.Report) any { return r.ClassRankings },
	"predictions": func(r *analytics.Report) any { return r.Predictions },
	"alerts":      func(r *analytics.Report) any { return r.Alerts },
}

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Build a strategic report from a JSON snapshot",
		Example: `  analytics analyze --input snapshot.json
  analytics analyze --input - --policy policy.yaml --section alerts < snapshot.json`,
		RunE: runAnalyze,
	}
	f := cmd.Flags()
	f.StringP("input", "i", "-", "snapshot JSON file (- for stdin)")
	f.StringP("policy", "p", "", "YAML policy file")
	f.StringP("output", "o", "-", "output file (- for stdout)")
	f.String("section", "all", "report section: all, metrics, gaps, rankings, predictions, alerts")
	f.Bool("compact", false, "write compact JSON")
	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	input, _ := f.GetString("input")
	policyPath, _ := f.GetString("policy")
	output, _ := f.GetString("output")
	section, _ := f.GetString("section")
	compact, _ := f.GetBool("compact")

	pick, ok := sections[section]
	if !ok {
		return fmt.Errorf("unknown section %q", section)
	}

	log := cliLogger(cmd)
	settings, err := policyfile.Load(policyPath)
	if err != nil {
		return err
	}
	snapshot, err := readSnapshot(cmd.InOrStdin(), input)
	if err != nil {
		return err
	}

	start := time.Now()
	report, err := analytics.Analyze(snapshot, settings.Goals, settings.Policy)
	if err != nil {
		return err
	}
	log.Info("report computed",
		logger.Fingerprint(report.Fingerprint),
		logger.Int("classes", len(snapshot.Classes)),
		logger.Int("students", len(snapshot.Students)),
		logger.Int("critical_alerts", report.CriticalAlerts()),
		logger.Latency(time.Since(start)),
	)

	return writeJSON(cmd.OutOrStdout(), output, pick(report), !compact)
}

func readSnapshot(stdin io.Reader, path string) (assessment.Snapshot, error) {
	r := stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return assessment.Snapshot{}, fmt.Errorf("open snapshot: %w", err)
		}
		defer file.Close()
		r = file
	}

	var s assessment.Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return assessment.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

func writeJSON(stdout io.Writer, path string, v any, pretty bool) error {
	w := stdout
	if path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	}

	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func cliLogger(cmd *cobra.Command) *logger.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	f := logger.FormatText
	if format == string(logger.FormatJSON) {
		f = logger.FormatJSON
	}
	return logger.New(logger.Options{Output: cmd.ErrOrStderr(), Level: logger.ParseLevel(level), Format: f})
}
