package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/flowforge/flowforge/engine/jobrunner"
	"github.com/flowforge/flowforge/engine/stage"
	"github.com/flowforge/flowforge/engine/workflow"
	"github.com/flowforge/flowforge/pkg/config"
	"github.com/flowforge/flowforge/pkg/logger"
	"github.com/flowforge/flowforge/pkg/metrics"
	"github.com/flowforge/flowforge/pkg/sink"
	"github.com/flowforge/flowforge/pkg/tplengine"
)

// app is every long-lived component a run/serve invocation wires together:
// the driver that actually executes workflows, the registry loaded from
// disk behind it, and the optional metrics service a serve subcommand
// exposes over HTTP.
type app struct {
	cfg     *config.Config
	driver  *workflow.Driver
	specs   map[string]workflow.Spec
	metrics *metrics.Service
}

// registryResolver implements workflow.Resolver over the set of specs
// loaded from the configured registry paths, the lookup Trigger stages use
// to find a target workflow by name.
type registryResolver struct {
	specs map[string]workflow.Spec
}

func (r registryResolver) Resolve(name string) (workflow.Spec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return workflow.Spec{}, fmt.Errorf("no workflow named %q is registered", name)
	}
	return spec, nil
}

// buildApp loads every workflow file under cfg.RegistryPaths, builds the
// stage evaluator/dispatcher stack, and wires a Driver over them.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.FromContext(ctx)

	specs, err := loadRegistry(cfg.RegistryPaths)
	if err != nil {
		return nil, err
	}
	applyConfigDefaults(specs, cfg)
	log.Info("loaded workflow registry", "workflows", len(specs))

	cond, err := stage.NewCELEvaluator()
	if err != nil {
		return nil, fmt.Errorf("building condition evaluator: %w", err)
	}
	tpl := tplengine.New()
	registry := jobrunner.NewRegistry(jobrunner.NewLocalRunner())

	resolver := registryResolver{specs: specs}
	driver := workflow.New(registry, cond, nil, tpl, resolver)
	driver.Dispatch = stage.NewDispatcher(stage.NewCallRegistry(), driver)

	metricsSvc, err := metrics.NewService(ctx, &metrics.Config{Enabled: true, Path: "/metrics"})
	if err != nil {
		return nil, fmt.Errorf("building metrics service: %w", err)
	}
	driver.Metrics = metricsSvc

	if cfg.Trace.Enabled {
		trace, err := buildTraceSink(cfg.Trace.URL)
		if err != nil {
			return nil, err
		}
		driver.Trace = trace
	}
	if cfg.Audit.Enabled {
		audit, err := buildAuditSink(cfg.Audit.URL)
		if err != nil {
			return nil, err
		}
		driver.Audit = audit
	}

	return &app{cfg: cfg, driver: driver, specs: specs, metrics: metricsSvc}, nil
}

// buildTraceSink resolves a `trace.url` config value of the form
// `file:///var/log/flowforge/trace.jsonl` into a FileTraceSink against the
// real filesystem; any other scheme is rejected rather than silently
// discarding trace events.
func buildTraceSink(rawURL string) (sink.TraceSink, error) {
	path, err := filePathFromURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("trace sink: %w", err)
	}
	return sink.NewFileTraceSink(afero.NewOsFs(), path)
}

func buildAuditSink(rawURL string) (sink.AuditSink, error) {
	path, err := filePathFromURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("audit sink: %w", err)
	}
	return sink.NewFileAuditSink(afero.NewOsFs(), path)
}

const fileURLPrefix = "file://"

func filePathFromURL(rawURL string) (string, error) {
	if len(rawURL) <= len(fileURLPrefix) || rawURL[:len(fileURLPrefix)] != fileURLPrefix {
		return "", fmt.Errorf("unsupported sink url %q, only file:// is supported", rawURL)
	}
	return rawURL[len(fileURLPrefix):], nil
}

// loadRegistry reads every *.yaml/*.yml file under paths and parses it as a
// workflow document, keyed by its declared name.
func loadRegistry(paths []string) (map[string]workflow.Spec, error) {
	specs := make(map[string]workflow.Spec)
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() || !isWorkflowFile(path) {
				return nil
			}
			b, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			doc, err := loadDocument(b)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			spec, err := doc.toSpec()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if spec.Name == "" {
				return fmt.Errorf("%s: workflow declares no name", path)
			}
			specs[spec.Name] = spec
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning registry path %q: %w", root, err)
		}
	}
	return specs, nil
}

func isWorkflowFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

// applyConfigDefaults fills in the process-wide defaults a workflow
// document left unset: its own max_parallel and the overall workflow
// timeout both fall back to the loaded Config rather than the package's
// hardcoded constants, so a host can tune them without touching workflow
// files.
func applyConfigDefaults(specs map[string]workflow.Spec, cfg *config.Config) {
	for name, spec := range specs {
		if spec.MaxParallel <= 0 {
			spec.MaxParallel = cfg.MaxParallelJobs
		}
		if spec.Timeout <= 0 {
			spec.Timeout = cfg.WorkflowTimeout
		}
		specs[name] = spec
	}
}
