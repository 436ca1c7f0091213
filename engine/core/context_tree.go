package core

import "sync"

// StageContext is one stage's slot inside a JobContext: its captured
// outputs and terminal status.
type StageContext struct {
	Outputs Output `json:"outputs"`
	Status  Status `json:"status"`
}

// JobContext is one job's slot inside the release's context tree. When the
// job has no matrix, Stages holds the (single) combo's stage slots under
// Strategies == nil. When the job has a matrix, Strategies holds one
// JobContext-without-strategies per strategy key and Stages/Matrix are
// empty on the outer value (spec §3).
type JobContext struct {
	Matrix     map[string]any          `json:"matrix,omitempty"`
	Stages     map[string]StageContext `json:"stages,omitempty"`
	Strategies map[string]JobContext   `json:"strategies,omitempty"`
	Status     Status                  `json:"status"`
}

// ContextTree is the nested mapping carrying params and accumulated
// job/stage outputs, read by templates (spec §3). Each job/stage slot has
// a single writer; SetJob/SetStage panic on a second write to the same
// slot, turning the single-writer invariant (spec §8.4) into something the
// type system enforces rather than a convention callers must honor.
type ContextTree struct {
	mu     sync.RWMutex
	Params Input                  `json:"params"`
	Jobs   map[string]*JobContext `json:"jobs"`
	Status Status                 `json:"status"`
	Errors []ErrorRecord          `json:"errors,omitempty"`

	written map[string]struct{}
}

// NewContextTree builds an empty context tree seeded with params.
func NewContextTree(params Input) *ContextTree {
	if params == nil {
		params = NewInput(nil)
	}
	return &ContextTree{
		Params:  params,
		Jobs:    make(map[string]*JobContext),
		Status:  StatusWait,
		written: make(map[string]struct{}),
	}
}

// SetJob writes jobID's slot exactly once. A second call for the same
// jobID panics: the Job Scheduler's slot-per-job allocation is the only
// legitimate writer, and a double-write indicates a scheduling bug, not a
// recoverable runtime condition.
func (c *ContextTree) SetJob(jobID string, jc JobContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.Jobs[jobID]; ok {
		panic("core: job slot " + jobID + " written more than once")
	}
	cp := jc
	c.Jobs[jobID] = &cp
}

// SetStage writes the (jobID, strategyKey, stageID) slot exactly once.
// strategyKey is empty for jobs with no matrix.
func (c *ContextTree) SetStage(jobID, strategyKey, stageID string, sc StageContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := jobID + "\x00" + strategyKey + "\x00" + stageID
	if _, ok := c.written[key]; ok {
		panic("core: stage slot " + key + " written more than once")
	}
	c.written[key] = struct{}{}
	jc, ok := c.Jobs[jobID]
	if !ok {
		jc = &JobContext{Status: StatusWait}
		c.Jobs[jobID] = jc
	}
	if strategyKey == "" {
		if jc.Stages == nil {
			jc.Stages = make(map[string]StageContext)
		}
		jc.Stages[stageID] = sc
		return
	}
	if jc.Strategies == nil {
		jc.Strategies = make(map[string]JobContext)
	}
	strat := jc.Strategies[strategyKey]
	if strat.Stages == nil {
		strat.Stages = make(map[string]StageContext)
	}
	strat.Stages[stageID] = sc
	jc.Strategies[strategyKey] = strat
}

// AddError appends an error record; Errors is flat and depth-first in
// append order (spec §7 "User-visible behavior").
func (c *ContextTree) AddError(rec ErrorRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errors = append(c.Errors, rec)
}

// SetStatus sets the overall release status. Unlike job/stage slots this
// may be written more than once as the release progresses toward a
// terminal status.
func (c *ContextTree) SetStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Status = s
}

// Snapshot returns a freshly built map view of the tree (the maps it
// creates are new, but values nested inside params and stage outputs are
// shared with the tree, not deep-copied), suitable for
// handing to the template engine or to a descendant that must not observe
// future writes (spec §3 "Context tree: ... readers see completed values
// only").
func (c *ContextTree) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	jobs := make(map[string]any, len(c.Jobs))
	for id, jc := range c.Jobs {
		jobs[id] = jobContextToMap(*jc)
	}
	out := map[string]any{
		"params": c.Params.AsMap(),
		"jobs":   jobs,
		"status": string(c.Status),
	}
	if len(c.Errors) > 0 {
		errs := make([]any, len(c.Errors))
		for i, e := range c.Errors {
			errs[i] = map[string]any{"name": e.Name, "message": e.Message, "kind": string(e.Kind)}
		}
		out["errors"] = errs
	}
	return out
}

func jobContextToMap(jc JobContext) map[string]any {
	out := map[string]any{"status": string(jc.Status)}
	if jc.Matrix != nil {
		out["matrix"] = jc.Matrix
	}
	if jc.Stages != nil {
		stages := make(map[string]any, len(jc.Stages))
		for id, sc := range jc.Stages {
			stages[id] = map[string]any{
				"outputs": sc.Outputs.AsMap(),
				"status":  string(sc.Status),
			}
		}
		out["stages"] = stages
	}
	if jc.Strategies != nil {
		strategies := make(map[string]any, len(jc.Strategies))
		for key, inner := range jc.Strategies {
			strategies[key] = jobContextToMap(inner)
		}
		out["strategies"] = strategies
	}
	return out
}

// Job returns a copy of jobID's context, or (JobContext{}, false) if no
// slot has been written yet.
func (c *ContextTree) Job(jobID string) (JobContext, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	jc, ok := c.Jobs[jobID]
	if !ok {
		return JobContext{}, false
	}
	return *jc, true
}
