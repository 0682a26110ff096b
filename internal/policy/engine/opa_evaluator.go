package engine

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"sessionkeeper/backend/internal/fingerprint"
	sessiondomain "sessionkeeper/backend/internal/session/domain"
)

const violationsQuery = "data.sessionkeeper.fingerprint.violations"

// DefaultRegoPolicy matches StaticEvaluator: a change on an axis whose toggle is off is a violation.
const DefaultRegoPolicy = `package sessionkeeper.fingerprint

violations contains "ip_change" if {
	not input.allow.ip_change
	input.stored.ip_address != input.current.ip_address
}

violations contains "device_change" if {
	not input.allow.device_change
	input.stored.device_name != input.current.device_name
}

violations contains "browser_change" if {
	not input.allow.browser_change
	input.stored.browser_version != input.current.browser_version
}
`

// violationOrder fixes which violation is reported when several fire.
var violationOrder = []string{
	sessiondomain.RejectIPChange,
	sessiondomain.RejectDeviceChange,
	sessiondomain.RejectBrowserChange,
}

// OPAEvaluator evaluates fingerprint drift with an OPA Rego policy. The toggles are passed to the
// policy as input.allow; a custom module may ignore or extend them.
type OPAEvaluator struct {
	toggles DriftToggles
	query   rego.PreparedEvalQuery
	log     zerolog.Logger
}

// NewOPAEvaluator compiles module (DefaultRegoPolicy when empty) and prepares the violations query.
func NewOPAEvaluator(ctx context.Context, module string, toggles DriftToggles, log zerolog.Logger) (*OPAEvaluator, error) {
	if module == "" {
		module = DefaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"fingerprint.rego": module})
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(violationsQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &OPAEvaluator{toggles: toggles, query: q, log: log}, nil
}

// NewOPAEvaluatorFromFile reads a Rego module from path; an empty path uses DefaultRegoPolicy.
func NewOPAEvaluatorFromFile(ctx context.Context, path string, toggles DriftToggles, log zerolog.Logger) (*OPAEvaluator, error) {
	var module string
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read policy: %w", err)
		}
		module = string(b)
	}
	return NewOPAEvaluator(ctx, module, toggles, log)
}

// HealthCheck evaluates the prepared policy against identical fingerprints. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	fp := fingerprint.Fingerprint{DeviceName: "health", BrowserVersion: "health", IPAddress: "127.0.0.1"}
	if _, err := e.violations(ctx, fp, fp); err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	return nil
}

// EvaluateDrift reports the first violation in ip, device, browser order. If the policy cannot be
// evaluated the static toggles decide, and the error is returned alongside that decision.
func (e *OPAEvaluator) EvaluateDrift(ctx context.Context, stored, current fingerprint.Fingerprint) (DriftDecision, error) {
	found, err := e.violations(ctx, stored, current)
	if err != nil {
		e.log.Warn().Err(err).Msg("policy: drift evaluation failed, using static toggles")
		return staticDecision(e.toggles, stored, current), err
	}
	for _, v := range violationOrder {
		if found[v] {
			return DriftDecision{Reason: v}, nil
		}
	}
	if len(found) > 0 {
		// Custom policies may name their own violations.
		return DriftDecision{Reason: slices.Sorted(maps.Keys(found))[0]}, nil
	}
	return DriftDecision{Allowed: true}, nil
}

func (e *OPAEvaluator) violations(ctx context.Context, stored, current fingerprint.Fingerprint) (map[string]bool, error) {
	input := map[string]interface{}{
		"stored":  fingerprintInput(stored),
		"current": fingerprintInput(current),
		"allow": map[string]interface{}{
			"ip_change":      e.toggles.AllowIPChange,
			"browser_change": e.toggles.AllowBrowserChange,
			"device_change":  e.toggles.AllowDeviceChange,
		},
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		// Undefined set: no rule fired.
		return out, nil
	}
	items, ok := rs[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("violations has type %T, want set", rs[0].Expressions[0].Value)
	}
	for _, it := range items {
		if s, ok := it.(string); ok {
			out[s] = true
		}
	}
	return out, nil
}

func fingerprintInput(fp fingerprint.Fingerprint) map[string]interface{} {
	return map[string]interface{}{
		"device_name":     fp.DeviceName,
		"browser_version": fp.BrowserVersion,
		"ip_address":      fp.IPAddress,
	}
}
