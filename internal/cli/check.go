package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/simphotonics/lockattr/internal/policy"
)

// RuleInfo describes one compiled rule in check output.
type RuleInfo struct {
	Kind       string   `json:"kind"`
	Protect    []string `json:"protect,omitempty"`
	ProtectAll bool     `json:"protect_all"`
	Scope      string   `json:"scope"`
}

// CheckResult holds the check command result.
type CheckResult struct {
	Valid bool       `json:"valid"`
	Rules []RuleInfo `json:"rules"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <policy-path>",
		Short: "Compile a guard policy and list its rules",
		Long: `Load a CUE guard policy (a .cue file or a directory holding a CUE
package), compile every rule under the top-level guard struct, and list
the protected attributes per kind.

Exit codes:
  0 - Policy is valid
  1 - Policy is invalid
  2 - Command error (path not found, no CUE files)

Examples:
  lockattr check ./policies
  lockattr check ./policies/account.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	formatter.VerboseLog("Loading policy from %s", path)
	set, err := LoadPolicy(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	result := CheckResult{Valid: true, Rules: make([]RuleInfo, 0, set.Len())}
	for _, r := range set.Rules() {
		formatter.VerboseLog("Compiled rule: %s", r.Kind)
		result.Rules = append(result.Rules, ruleInfo(r))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ %d rule(s) loaded from %s\n", len(result.Rules), path)
	for _, r := range result.Rules {
		protect := "all"
		if !r.ProtectAll {
			protect = strings.Join(r.Protect, ", ")
		}
		fmt.Fprintf(w, "  %s: protect %s (scope %s)\n", r.Kind, protect, r.Scope)
	}
	return nil
}

func ruleInfo(r policy.Rule) RuleInfo {
	return RuleInfo{
		Kind:       r.Kind,
		Protect:    r.Protect,
		ProtectAll: r.ProtectsAll(),
		Scope:      r.Scope.String(),
	}
}

// outputLoadError reports a policy load failure. Missing paths are command
// errors (exit 2); invalid policies are validation failures (exit 1).
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load policy", err)
	}

	var details any
	if loadErr.Pos.IsValid() {
		details = map[string]any{
			"file":   loadErr.Pos.Filename(),
			"line":   loadErr.Pos.Line(),
			"column": loadErr.Pos.Column(),
		}
	}
	_ = formatter.Error(loadErr.Code, loadErr.Message, details)

	switch loadErr.Code {
	case ErrCodeNotFound, ErrCodeNoFiles, ErrCodeLoadFailed:
		return NewExitError(ExitCommandError, loadErr.Error())
	default:
		return WrapExitError(ExitFailure, "invalid policy", loadErr)
	}
}
