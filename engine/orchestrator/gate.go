package orchestrator

// PermissionGate is the side-effect gate collaborator. The engine never
// caches its decisions; each gated action is asked for anew.
type PermissionGate interface {
	MayPerform(action, target string) bool
}

// GatedActions is the fixed set of actions that require gate approval.
// Actions outside this set are auto-approved.
var GatedActions = map[string]struct{}{
	"file:write":      {},
	"file:delete":     {},
	"file:rename":     {},
	"file:move":       {},
	"process:execute": {},
	"network:request": {},
	"deploy:trigger":  {},
	"config:modify":   {},
	"system:install":  {},
}

// IsGated reports whether an action belongs to the gated set.
func IsGated(action string) bool {
	_, ok := GatedActions[action]
	return ok
}

// Allowed consults the gate for gated actions and auto-approves the rest.
// A nil gate approves everything.
func Allowed(gate PermissionGate, action, target string) bool {
	if !IsGated(action) {
		return true
	}
	if gate == nil {
		return true
	}
	return gate.MayPerform(action, target)
}

// AllowAllGate approves every action. It is the default collaborator when
// no interactive prompt is wired in.
type AllowAllGate struct{}

// MayPerform implements PermissionGate.
func (AllowAllGate) MayPerform(_, _ string) bool { return true }
