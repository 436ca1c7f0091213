package stage

import "context"

// TriggerRunner recursively invokes the workflow driver on a Trigger
// stage's target workflow. It is an interface rather than a direct
// dependency on engine/workflow so that engine/workflow (which runs jobs
// built from stages) can depend on engine/stage without a cycle; the
// concrete implementation lives in engine/workflow and is wired in at
// Dispatcher construction time.
type TriggerRunner interface {
	// RunTriggered runs in.Spec.Trigger with in.Spec.Params, binding the
	// child run's cancellation to in.Cancel, and returns the child
	// workflow's full context as the stage's outputs.
	RunTriggered(ctx context.Context, in Input) (map[string]any, error)
}
