package health

// Evaluate checks every non-ignored required service against the snapshot.
// All failures are collected in policy order; an empty or fully ignored
// policy is always healthy.
func Evaluate(snapshot Snapshot, policy Policy) Verdict {
	var failures []FailedService
	for _, name := range policy.required {
		if policy.Ignored(name) {
			continue
		}
		state, ok := snapshot[name]
		switch {
		case !ok:
			failures = append(failures, FailedService{Name: name, State: StateMissing})
		case state != StateStarted:
			failures = append(failures, FailedService{Name: name, State: state})
		}
	}
	return Verdict{Failures: failures}
}
