package kairo

import "context"

// Reasoner is a pairwise compatibility assessor for cases the rule tier
// cannot decide. When provided via WithReasoner, it replaces the HTTP
// reasoning collaborator configured through KAIRO_REASONER_URL.
// Assess runs under the configured reasoner timeout — implementations
// must honor ctx cancellation. Failures degrade gracefully: the checker
// records an optimistic verdict with a manual-verification warning.
type Reasoner interface {
	Assess(ctx context.Context, a, b Part, connectionType string) (Assessment, error)
}
