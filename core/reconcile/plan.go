package reconcile

import "context"

// Plan is the operation decided for one attempt: what to do and which
// token the backend must still hold for it to apply.
type Plan struct {
	// Action is the operation to execute.
	Action Action

	// Expected is the token passed to Write/Remove.
	Expected Token
}

// Changes reports whether executing the plan would modify the backend.
func (p Plan) Changes() bool {
	return p.Action != ActionNone
}

// Decide computes the minimal operation that moves observed to desired.
// Identical values and already-absent keys yield ActionNone.
func Decide(desired DesiredState, observed ObservedState) Plan {
	switch desired.Presence {
	case Absent:
		if !observed.Exists {
			return Plan{Action: ActionNone}
		}
		return Plan{Action: ActionDelete, Expected: observed.Token}
	default:
		if !observed.Exists {
			return Plan{Action: ActionCreate, Expected: CreateOnly}
		}
		if observed.Value == desired.Value {
			return Plan{Action: ActionNone}
		}
		return Plan{Action: ActionUpdate, Expected: observed.Token}
	}
}

// apply executes a non-empty plan against the backend.
func apply(ctx context.Context, b Backend, desired DesiredState, plan Plan) (bool, error) {
	switch plan.Action {
	case ActionDelete:
		return b.Remove(ctx, desired.Key, plan.Expected)
	case ActionCreate, ActionUpdate:
		return b.Write(ctx, desired.Key, desired.Value, plan.Expected)
	default:
		return true, nil
	}
}
