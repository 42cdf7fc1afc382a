package engine

import "github.com/roach88/onboarding/internal/model"

// Action is what a reconciliation step does to one task.
type Action string

const (
	ActionNone      Action = "none"
	ActionCreate    Action = "create"
	ActionResume    Action = "resume"
	ActionRefresh   Action = "refresh"
	ActionRetire    Action = "retire"
	ActionPropagate Action = "propagate"
)

// Mutates reports whether the action writes to the store.
func (a Action) Mutates() bool {
	return a != ActionNone && a != ""
}

// Decide applies the decision table. existing is nil when no task has the
// composed id. manager is the subject's current manager. Statuses outside the
// known domain are treated as active.
func Decide(requested bool, existing *model.Task, manager string) Action {
	switch {
	case existing == nil && requested:
		return ActionCreate
	case existing == nil:
		return ActionNone
	case existing.Status.Terminal():
		return ActionNone
	case existing.Status == model.StatusNotApplicable && requested:
		return ActionResume
	case existing.Status == model.StatusNotApplicable:
		return ActionNone
	case !requested:
		return ActionRetire
	case existing.Manager != manager:
		return ActionRefresh
	default:
		return ActionNone
	}
}

// Patch returns the store update for a mutating action on existing.
func Patch(a Action, existing model.Task, s model.Subject) model.TaskPatch {
	switch a {
	case ActionResume:
		return model.TaskPatch{
			Status:  model.Ptr(model.StatusOpen),
			Manager: model.Ptr(s.Manager),
		}
	case ActionRefresh:
		return model.TaskPatch{Manager: model.Ptr(s.Manager)}
	case ActionRetire:
		return model.TaskPatch{
			Status:      model.Ptr(model.StatusNotApplicable),
			Description: model.Ptr(model.RetiredDescription(existing.Description)),
		}
	case ActionPropagate:
		var p model.TaskPatch
		if name := s.FullName(); existing.EmployeeFullName != name {
			p.EmployeeFullName = model.Ptr(name)
		}
		if existing.Manager != s.Manager {
			p.Manager = model.Ptr(s.Manager)
		}
		return p
	}
	return model.TaskPatch{}
}
