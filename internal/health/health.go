package health

import "strings"

const (
	// StateStarted is the only state that satisfies a required service.
	StateStarted = "started"
	// StateMissing is reported for required services absent from the snapshot.
	StateMissing = "missing"
)

// Snapshot maps service names to the last state reported for them.
type Snapshot map[string]string

// Policy describes which services must be running for a slot to be good.
type Policy struct {
	required        []string
	optional        []string
	ignoreExact     map[string]struct{}
	ignoreExactList []string
	ignorePrefixes  []string
}

// NewPolicy builds an immutable policy. The slices are copied.
func NewPolicy(required, optional, ignoreExact, ignorePrefixes []string) Policy {
	exact := make(map[string]struct{}, len(ignoreExact))
	for _, name := range ignoreExact {
		exact[name] = struct{}{}
	}
	return Policy{
		required:        append([]string(nil), required...),
		optional:        append([]string(nil), optional...),
		ignoreExact:     exact,
		ignoreExactList: append([]string(nil), ignoreExact...),
		ignorePrefixes:  append([]string(nil), ignorePrefixes...),
	}
}

// Required returns a copy of the required service names in policy order.
func (p Policy) Required() []string {
	return append([]string(nil), p.required...)
}

// Optional returns a copy of the informational service names.
func (p Policy) Optional() []string {
	return append([]string(nil), p.optional...)
}

// IgnoreExact returns a copy of the exact-match ignore list.
func (p Policy) IgnoreExact() []string {
	return append([]string(nil), p.ignoreExactList...)
}

// IgnorePrefixes returns a copy of the prefix ignore list.
func (p Policy) IgnorePrefixes() []string {
	return append([]string(nil), p.ignorePrefixes...)
}

// Ignored reports whether name is exempt from the required check.
func (p Policy) Ignored(name string) bool {
	if _, ok := p.ignoreExact[name]; ok {
		return true
	}
	for _, prefix := range p.ignorePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// FailedService is a required service that is not started.
type FailedService struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// Verdict is the result of evaluating a snapshot. A verdict without
// failures is healthy.
type Verdict struct {
	Failures []FailedService
}

// Healthy reports whether no required service failed.
func (v Verdict) Healthy() bool {
	return len(v.Failures) == 0
}

// Names returns the failing service names in encounter order.
func (v Verdict) Names() []string {
	names := make([]string, 0, len(v.Failures))
	for _, failure := range v.Failures {
		names = append(names, failure.Name)
	}
	return names
}
