//go:build windows

package capture

import "fmt"

// resolveTarget turns a shape-validated selector into an immutable Target.
// Resolution happens exactly once, at open; later topology or title
// changes do not rebind the session.
func resolveTarget(sel Selector, emit DiagnosticFunc) (Target, error) {
	switch s := sel.(type) {
	case MonitorSelector:
		// Existence is proven when the duplication is created; a bad
		// index surfaces as ErrTargetNotFound from output enumeration.
		return Target{Kind: TargetMonitor, MonitorIndex: int(s)}, nil
	case WindowSelector:
		return resolveWindowTarget(s)
	}
	return Target{}, fmt.Errorf("%w: unknown selector type %T", ErrTargetNotFound, sel)
}

func resolveWindowTarget(s WindowSelector) (Target, error) {
	field, _ := s.pick()
	cands, err := matchWindows(s, field)
	if err != nil {
		return Target{}, err
	}
	if len(cands) == 0 {
		return Target{}, fmt.Errorf("%w: %s matched no windows", ErrTargetNotFound, s.String())
	}
	if s.Index >= len(cands) {
		return Target{}, fmt.Errorf("%w: match index %d out of range, %d windows matched %s",
			ErrTargetNotFound, s.Index, len(cands), s.String())
	}
	pick := cands[s.Index]

	monIdx, err := monitorIndexForWindow(pick.handle)
	if err != nil {
		return Target{}, err
	}
	return Target{
		Kind:         TargetWindow,
		MonitorIndex: monIdx,
		Window:       pick.handle,
		PID:          pick.pid,
		Title:        pick.title,
	}, nil
}
