package resolver

import "context"

// Resolver validates an Input and computes a Plan (start order).
//
// Validation problems are reported all at once through Plan.Diagnostics and
// the returned error; ordering only happens when validation passed.
type Resolver interface {
	Resolve(ctx context.Context, in Input) (Plan, error)
}
