package main

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/engine/workflow"
	"github.com/flowforge/flowforge/pkg/logger"
)

// exit codes: success (0), CANCEL (130), and FAILED or any other
// non-success status (1), plus a catch-all for everything else
// (config/param errors, an unknown workflow name, …). A release that hits
// its workflow timeout ends FAILED and so also exits 1; there is no
// separate timeout code.
const (
	exitSuccess = 0
	exitFailed  = 1
	exitCancel  = 130
	exitError   = 1
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run a registered workflow once and print its result",
		Args:  cobra.ExactArgs(1),
		RunE:  runRunCmd,
	}
	cmd.Flags().StringArray("param", nil, "a param override, as key=value (value parsed as YAML)")
	return cmd
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	ctx := contextWithLogger(cmd.Context(), cmd)
	log := logger.FromContext(ctx)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}

	name := args[0]
	spec, ok := a.specs[name]
	if !ok {
		return fmt.Errorf("no workflow named %q is registered under %v", name, cfg.RegistryPaths)
	}

	rawParams, err := parseParamFlags(cmd)
	if err != nil {
		return err
	}

	log.Info("starting release", "workflow", name)
	result, err := a.driver.Run(ctx, spec, rawParams, "")
	if err != nil {
		log.Error("release failed to start", "workflow", name, "error", err)
		return err
	}

	if err := printResult(result); err != nil {
		return err
	}
	return exitForStatus(result.Status)
}

// parseParamFlags turns repeated --param key=value flags into the raw
// params map Driver.Run resolves against the workflow's declared params,
// parsing each value as YAML so callers can pass numbers, bools, and
// structured values as easily as bare strings.
func parseParamFlags(cmd *cobra.Command) (map[string]any, error) {
	raw, err := cmd.Flags().GetStringArray("param")
	if err != nil {
		return nil, err
	}
	params := make(map[string]any, len(raw))
	for _, entry := range raw {
		key, value, ok := splitParam(entry)
		if !ok {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", entry)
		}
		var decoded any
		if err := yaml.Unmarshal([]byte(value), &decoded); err != nil {
			return nil, fmt.Errorf("--param %q: %w", entry, err)
		}
		params[key] = decoded
	}
	return params, nil
}

func splitParam(entry string) (key, value string, ok bool) {
	for i, r := range entry {
		if r == '=' {
			return entry[:i], entry[i+1:], true
		}
	}
	return "", "", false
}

func printResult(result workflow.Result) error {
	b, err := json.MarshalIndent(map[string]any{
		"status":        result.Status,
		"run_id":        result.RunID,
		"parent_run_id": result.ParentRunID,
		"context":       result.Context,
		"errors":        result.Errors,
		"started_at":    result.StartedAt,
		"ended_at":      result.EndedAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(b))
	return nil
}

// exitForStatus maps a release's terminal status onto a process exit code
// by returning an error cobra's Execute will surface as a non-zero exit;
// a plain SUCCESS returns nil so the process exits 0.
func exitForStatus(status core.Status) error {
	switch status {
	case core.StatusSuccess:
		return nil
	case core.StatusCancel:
		return exitCodeError{code: exitCancel, status: status}
	default:
		return exitCodeError{code: exitFailed, status: status}
	}
}

// exitCodeError carries the process exit code a terminal release status
// maps to; main checks for it to set os.Exit beyond cobra's plain 0/1.
type exitCodeError struct {
	code   int
	status core.Status
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("release ended with status %s", e.status)
}

func (e exitCodeError) ExitCode() int { return e.code }
