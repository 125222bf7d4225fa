// Command calc validates and runs rule set files from the command line.
//
//	calc validate premium.yaml
//	calc run premium.yaml value=5000 use=Show
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/liamcoop/ratebook/rules"
)

var (
	owner    string
	jsonOut  bool
	showRule bool
)

var rootCmd = &cobra.Command{
	Use:           "calc",
	Short:         "Validate and run rule set files",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Check rule set files for problems",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateFiles(cmd.OutOrStdout(), args)
	},
}

var runCmd = &cobra.Command{
	Use:   "run FILE [name=value...]",
	Short: "Evaluate a rule set file against field values",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseValues(args[1:])
		if err != nil {
			return err
		}
		return runFile(cmd.OutOrStdout(), args[0], values)
	},
}

func validateFiles(out io.Writer, paths []string) error {
	failed := 0
	for _, path := range paths {
		session, err := rules.ReadRuleSetFile(path, owner)
		if err == nil {
			err = session.Validate()
		}

		var verr *rules.ValidationError
		switch {
		case err == nil:
			fmt.Fprintf(out, "%s: ok\n", path)
		case errors.As(err, &verr):
			failed++
			fmt.Fprintf(out, "%s: %d problem(s)\n", path, len(verr.Problems))
			for _, p := range verr.Problems {
				fmt.Fprintf(out, "  %s: %s\n", p.Path, p.Message)
			}
		default:
			failed++
			fmt.Fprintf(out, "%s: %v\n", path, err)
		}
	}

	if failed > 0 {
		return eris.Errorf("%d of %d file(s) failed validation", failed, len(paths))
	}
	return nil
}

func runFile(out io.Writer, path string, values rules.Values) error {
	session, err := rules.ReadRuleSetFile(path, owner)
	if err != nil {
		return err
	}
	result, trace := session.Trace(values)
	meta := session.Metadata()

	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rules.Calculation{
			Result:      result,
			ResultLabel: meta.ResultLabel,
			WarningText: meta.WarningText,
			Trace:       trace,
		})
	}

	if showRule {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ORDER\tFIELD\tACTION\tMATCHED\tBEFORE\tAFTER")
		for _, s := range trace {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%v\t%.2f\t%.2f\n", s.SortOrder, s.Field, s.Action, s.Matched, s.Before, s.After)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	label := meta.ResultLabel
	if label == "" {
		label = "Result"
	}
	fmt.Fprintf(out, "%s: %.2f\n", label, result)
	if meta.WarningText != "" {
		fmt.Fprintln(out, meta.WarningText)
	}
	return nil
}

// parseValues turns name=value arguments into evaluation values. Values
// that parse as numbers are passed as numbers.
func parseValues(args []string) (rules.Values, error) {
	values := make(rules.Values, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, eris.Errorf("invalid value %q, want name=value", arg)
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			values[name] = f
		} else {
			values[name] = raw
		}
	}
	return values, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&owner, "owner", "", "owner recorded on the loaded rule set")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "print the result and trace as JSON")
	runCmd.Flags().BoolVar(&showRule, "trace", false, "print every rule's effect")
	rootCmd.AddCommand(validateCmd, runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "calc:", err)
		os.Exit(1)
	}
}
