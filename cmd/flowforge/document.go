package main

import (
	"fmt"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/flowforge/flowforge/engine/core"
	"github.com/flowforge/flowforge/engine/event"
	"github.com/flowforge/flowforge/engine/paramspec"
	"github.com/flowforge/flowforge/engine/scheduler"
	"github.com/flowforge/flowforge/engine/stage"
	"github.com/flowforge/flowforge/engine/strategy"
	"github.com/flowforge/flowforge/engine/workflow"
)

// document is the on-disk shape of a workflow file. The core engine
// packages (workflow.Spec, stage.Node, …) carry no yaml tags of their own —
// they're wire-format-agnostic — so this package owns the one YAML
// document shape and translates it into those types by hand.
type document struct {
	Name        string                    `yaml:"name"`
	Description string                    `yaml:"description"`
	Params      paramspec.Declaration     `yaml:"params"`
	Timeout     string                    `yaml:"timeout"`
	MaxParallel int                       `yaml:"max_parallel"`
	On          *eventDoc                 `yaml:"on"`
	Jobs        map[string]jobDoc         `yaml:"jobs"`
}

type eventDoc struct {
	Schedules []scheduleDoc `yaml:"schedules"`
	ReleaseOn []string      `yaml:"release_on"`
}

type scheduleDoc struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

type jobDoc struct {
	Needs       []string    `yaml:"needs"`
	TriggerRule string      `yaml:"trigger_rule"`
	Condition   string      `yaml:"condition"`
	RunsOn      string      `yaml:"runs_on"`
	MaxParallel int         `yaml:"max_parallel"`
	FailFast    bool        `yaml:"fail_fast"`
	Matrix      *matrixDoc  `yaml:"matrix"`
	Stages      []stageDoc  `yaml:"stages"`
}

type matrixDoc struct {
	Axes    map[string][]any `yaml:"axes"`
	Exclude []map[string]any `yaml:"exclude"`
	Include []map[string]any `yaml:"include"`
}

// stageDoc is the recursive, tagged-union document shape behind every
// stage.Node implementation: a leaf (Uses != "" or Run != "" or …) or one
// of the five composites (sequence/parallel/foreach/until/case), picked by
// which field is populated.
type stageDoc struct {
	ID        string `yaml:"id"`
	Condition string `yaml:"condition"`
	Sleep     string `yaml:"sleep"`
	Retry     int    `yaml:"retry"`
	RetryWait string `yaml:"retry_wait"`

	// Leaf variants.
	Variant string            `yaml:"variant"`
	Echo    string            `yaml:"echo"`
	Run     string            `yaml:"run"`
	Env     map[string]string `yaml:"env"`
	Vars    map[string]any    `yaml:"vars"`
	Uses    string            `yaml:"uses"`
	Args    map[string]any    `yaml:"args"`
	Trigger string            `yaml:"trigger"`
	Params  map[string]any    `yaml:"params"`
	Version string            `yaml:"version"`
	Deps    []string          `yaml:"deps"`
	Message string            `yaml:"message"`

	// Composite variants.
	Sequence []stageDoc      `yaml:"sequence"`
	Parallel []stageDoc      `yaml:"parallel"`
	ForEach  *forEachDoc     `yaml:"foreach"`
	Until    *untilDoc       `yaml:"until"`
	Case     []caseBranchDoc `yaml:"case"`
	Default  *stageDoc       `yaml:"default"`
}

type forEachDoc struct {
	Items string   `yaml:"items"`
	Body  stageDoc `yaml:"body"`
}

type untilDoc struct {
	Condition string         `yaml:"condition"`
	MaxLoop   int            `yaml:"max_loop"`
	Initial   map[string]any `yaml:"initial"`
	Body      stageDoc       `yaml:"body"`
}

type caseBranchDoc struct {
	Condition string   `yaml:"condition"`
	Body      stageDoc `yaml:"body"`
}

// loadDocument parses a workflow YAML file.
func loadDocument(b []byte) (document, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return document{}, fmt.Errorf("parsing workflow document: %w", err)
	}
	return doc, nil
}

// toSpec translates a parsed document into the workflow.Spec the core
// engine runs.
func (doc document) toSpec() (workflow.Spec, error) {
	spec := workflow.Spec{
		Name:        doc.Name,
		Description: doc.Description,
		Params:      doc.Params,
		MaxParallel: doc.MaxParallel,
	}
	if doc.Timeout != "" {
		timeout, err := time.ParseDuration(doc.Timeout)
		if err != nil {
			return workflow.Spec{}, fmt.Errorf("workflow %q: parsing timeout: %w", doc.Name, err)
		}
		spec.Timeout = timeout
	}
	if doc.On != nil {
		ev, err := doc.On.toSpec()
		if err != nil {
			return workflow.Spec{}, fmt.Errorf("workflow %q: %w", doc.Name, err)
		}
		spec.Event = ev
	}

	jobIDs := sortedKeys(doc.Jobs)
	spec.Jobs = make([]workflow.JobSpec, 0, len(doc.Jobs))
	for _, id := range jobIDs {
		jd := doc.Jobs[id]
		job, err := jd.toJobSpec(id)
		if err != nil {
			return workflow.Spec{}, fmt.Errorf("workflow %q: job %q: %w", doc.Name, id, err)
		}
		spec.Jobs = append(spec.Jobs, job)
	}
	return spec, nil
}

func (e *eventDoc) toSpec() (*event.Spec, error) {
	out := &event.Spec{ReleaseOn: e.ReleaseOn}
	out.Schedules = make([]event.ScheduleDecl, 0, len(e.Schedules))
	for _, s := range e.Schedules {
		out.Schedules = append(out.Schedules, event.ScheduleDecl{Cron: s.Cron, Timezone: s.Timezone})
	}
	return out, nil
}

func (jd jobDoc) toJobSpec(id string) (workflow.JobSpec, error) {
	root, err := buildTree(jd.Stages, id)
	if err != nil {
		return workflow.JobSpec{}, err
	}
	job := workflow.JobSpec{
		ID:          id,
		Needs:       jd.Needs,
		TriggerRule: scheduler.TriggerRule(orDefault(jd.TriggerRule, string(scheduler.RuleAllSuccess))),
		Condition:   jd.Condition,
		RunsOn:      jd.RunsOn,
		Root:        root,
		MaxParallel: jd.MaxParallel,
		FailFast:    jd.FailFast,
	}
	if jd.Matrix != nil {
		job.Matrix = &strategy.Matrix{
			Axes:    jd.Matrix.Axes,
			Exclude: jd.Matrix.Exclude,
			Include: jd.Matrix.Include,
		}
	}
	return job, nil
}

// buildTree wraps a job's flat stage list in a SequenceNode, the shape
// every job in the spec's examples declares at the top level; nested
// composites are declared explicitly inside a stage entry.
func buildTree(docs []stageDoc, jobID string) (stage.Node, error) {
	children := make([]stage.Node, 0, len(docs))
	for _, d := range docs {
		node, err := d.toNode(jobID)
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}
	return stage.SequenceNode{ID: jobID, JobID: jobID, Children: children}, nil
}

// toNode recursively translates one stageDoc into the stage.Node it
// declares, picking the variant by which field is populated.
func (d stageDoc) toNode(jobID string) (stage.Node, error) {
	switch {
	case len(d.Sequence) > 0:
		children, err := toNodes(d.Sequence, jobID)
		if err != nil {
			return nil, err
		}
		return stage.SequenceNode{ID: d.ID, JobID: jobID, Children: children}, nil
	case len(d.Parallel) > 0:
		children, err := toNodes(d.Parallel, jobID)
		if err != nil {
			return nil, err
		}
		return stage.ParallelNode{ID: d.ID, Children: children}, nil
	case d.ForEach != nil:
		body, err := d.ForEach.Body.toNode(jobID)
		if err != nil {
			return nil, err
		}
		return stage.ForEachNode{ID: d.ID, ItemsExpr: d.ForEach.Items, Body: body}, nil
	case d.Until != nil:
		body, err := d.Until.Body.toNode(jobID)
		if err != nil {
			return nil, err
		}
		return stage.UntilNode{
			ID: d.ID, Condition: d.Until.Condition, Body: body,
			MaxLoop: d.Until.MaxLoop, InitialContext: d.Until.Initial,
		}, nil
	case len(d.Case) > 0:
		branches := make([]stage.CaseBranch, 0, len(d.Case))
		for _, b := range d.Case {
			body, err := b.Body.toNode(jobID)
			if err != nil {
				return nil, err
			}
			branches = append(branches, stage.CaseBranch{Condition: b.Condition, Body: body})
		}
		var def stage.Node
		if d.Default != nil {
			var err error
			def, err = d.Default.toNode(jobID)
			if err != nil {
				return nil, err
			}
		}
		return stage.CaseNode{ID: d.ID, Branches: branches, Default: def}, nil
	default:
		return d.toLeaf()
	}
}

func (d stageDoc) toLeaf() (stage.Node, error) {
	sleep, err := parseOptionalDuration(d.Sleep)
	if err != nil {
		return nil, fmt.Errorf("stage %q: parsing sleep: %w", d.ID, err)
	}
	retryWait, err := parseOptionalDuration(d.RetryWait)
	if err != nil {
		return nil, fmt.Errorf("stage %q: parsing retry_wait: %w", d.ID, err)
	}
	variant, err := resolveVariant(d)
	if err != nil {
		return nil, fmt.Errorf("stage %q: %w", d.ID, err)
	}
	spec := stage.Spec{
		ID:        d.ID,
		Variant:   variant,
		Condition: d.Condition,
		Sleep:     sleep,
		Retry:     d.Retry,
		RetryWait: retryWait,
		Echo:      d.Echo,
		Run:       d.Run,
		Env:       core.EnvMap(d.Env),
		Vars:      d.Vars,
		Uses:      d.Uses,
		Args:      d.Args,
		Trigger:   d.Trigger,
		Params:    d.Params,
		Version:   d.Version,
		Deps:      d.Deps,
		Message:   d.Message,
	}
	return stage.LeafNode{Spec: spec}, nil
}

// resolveVariant infers a leaf's Variant from whichever of its
// variant-specific fields is populated, falling back to the explicit
// `variant:` field for the one case with no distinguishing field (empty).
func resolveVariant(d stageDoc) (stage.Variant, error) {
	switch {
	case d.Run != "" && d.Version != "":
		return stage.VariantVirtualScript, nil
	case d.Run != "":
		return stage.VariantBash, nil
	case d.Uses != "":
		return stage.VariantCall, nil
	case d.Trigger != "":
		return stage.VariantTrigger, nil
	case d.Message != "":
		return stage.VariantRaise, nil
	case len(d.Vars) > 0:
		return stage.VariantEmbeddedScript, nil
	case d.Variant != "":
		return stage.Variant(d.Variant), nil
	default:
		return stage.VariantEmpty, nil
	}
}

func toNodes(docs []stageDoc, jobID string) ([]stage.Node, error) {
	out := make([]stage.Node, 0, len(docs))
	for _, d := range docs {
		n, err := d.toNode(jobID)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func sortedKeys(m map[string]jobDoc) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
