// Package engine evaluates admin-access policy for moderation endpoints using
// in-process OPA Rego.
package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.marketplace.adminaccess.allow"

// Default Rego policy: moderation actions are open to admins only.
const defaultRegoPolicy = `package marketplace.adminaccess

default allow = false

allow if {
	input.actor.role == "admin"
}
`

// AccessInput is the evaluation input for one moderation request.
type AccessInput struct {
	ActorID   string
	ActorRole string
	Action    string
	TargetID  string
}

// OPAEvaluator answers whether an actor may perform a moderation action. A
// deployment can override the built-in default-deny policy with its own Rego
// module.
type OPAEvaluator struct {
	modules map[string]string
}

// NewOPAEvaluator returns an evaluator using the built-in policy.
func NewOPAEvaluator() *OPAEvaluator {
	return &OPAEvaluator{modules: map[string]string{"default.rego": defaultRegoPolicy}}
}

// NewOPAEvaluatorFromFile returns an evaluator whose policy is loaded from
// path, replacing the built-in module. The module must define
// marketplace.adminaccess.allow.
func NewOPAEvaluatorFromFile(path string) (*OPAEvaluator, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	e := &OPAEvaluator{modules: map[string]string{"custom.rego": string(src)}}
	if err := e.HealthCheck(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// Allowed evaluates the admin-access policy for in. Evaluation errors deny.
func (e *OPAEvaluator) Allowed(ctx context.Context, in AccessInput) (bool, error) {
	compiler, err := ast.CompileModules(e.modules)
	if err != nil {
		return false, fmt.Errorf("compile policy: %w", err)
	}
	q := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
		rego.Input(map[string]interface{}{
			"actor": map[string]interface{}{
				"id":   in.ActorID,
				"role": in.ActorRole,
			},
			"action": in.Action,
			"target": map[string]interface{}{
				"id": in.TargetID,
			},
		}),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	return ok && allowed, nil
}

// HealthCheck verifies the configured modules compile and answer the allow
// query. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.Allowed(ctx, AccessInput{ActorID: "healthcheck", ActorRole: "student", Action: "suspend"})
	return err
}
