package gatesvc

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/rzbill/turnstile/internal/gate"
)

// celFilter wraps a compiled CEL program evaluated against waiting entries.
// When disabled, Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("key", cel.StringType),
		cel.Variable("position", cel.IntType),
		cel.Variable("locked", cel.BoolType),
		cel.Variable("enqueued_at_ms", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		// Parsed JSON payload (map/list/values) for field filtering
		cel.Variable("json", cel.DynType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against a waiting entry. When
// disabled, returns true; evaluation errors exclude the entry.
func (f celFilter) Eval(we gate.WaitingEntry) bool {
	if !f.enabled {
		return true
	}
	var jsonObj any
	_ = json.Unmarshal(we.Payload, &jsonObj)
	headers := we.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	out, _, err := f.prog.Eval(map[string]any{
		"key":            we.Key,
		"position":       int64(we.Position),
		"locked":         we.Locked,
		"enqueued_at_ms": we.EnqueuedAtMs,
		"size":           int64(len(we.Payload)),
		"text":           string(we.Payload),
		"json":           jsonObj,
		"headers":        headers,
		"now_ms":         time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
