package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/engine/scheduler"
	"github.com/flowforge/flowforge/pkg/logger"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load every workflow in the registry and check its job graph and schedules",
		Args:  cobra.NoArgs,
		RunE:  runValidateCmd,
	}
}

func runValidateCmd(cmd *cobra.Command, _ []string) error {
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

	for name, spec := range a.specs {
		nodes := make([]scheduler.Node, 0, len(spec.Jobs))
		for _, job := range spec.Jobs {
			nodes = append(nodes, scheduler.Node{ID: job.ID, Needs: job.Needs})
		}
		if err := scheduler.Validate(nodes); err != nil {
			return fmt.Errorf("workflow %q: invalid job graph: %w", name, err)
		}
		if spec.Event != nil {
			if _, err := spec.Event.Compile(); err != nil {
				return fmt.Errorf("workflow %q: %w", name, err)
			}
		}
		log.Info("workflow OK", "workflow", name, "jobs", len(spec.Jobs))
	}
	fmt.Printf("%d workflow(s) validated\n", len(a.specs))
	return nil
}
