package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/rxmesh/core"
)

// resultRefPrefix marks an argument string value as a reference to the result
// of an earlier function call in the same batch. The accepted forms are
// "$result:<call-id>" for the whole payload and "$result:<call-id>.<field>"
// for a single top-level field of an object payload.
const resultRefPrefix = "$result:"

type resultRef struct {
	callID string
	field  string
}

func parseResultRef(s string) (resultRef, bool) {
	if !strings.HasPrefix(s, resultRefPrefix) {
		return resultRef{}, false
	}
	rest := s[len(resultRefPrefix):]
	if rest == "" {
		return resultRef{}, false
	}
	if idx := strings.IndexByte(rest, '.'); idx >= 0 {
		return resultRef{callID: rest[:idx], field: rest[idx+1:]}, true
	}
	return resultRef{callID: rest}, true
}

// callRefs extracts all result references declared in a call's arguments.
// Malformed argument JSON yields no refs; the schema validation inside the
// tool reports that failure instead.
func callRefs(fc core.FunctionCall) []resultRef {
	var args map[string]any
	if fc.Arguments == "" || json.Unmarshal([]byte(fc.Arguments), &args) != nil {
		return nil
	}

	var refs []resultRef
	walkStrings(args, func(s string) {
		if ref, ok := parseResultRef(s); ok {
			refs = append(refs, ref)
		}
	})
	return refs
}

func walkStrings(v any, fn func(string)) {
	switch t := v.(type) {
	case string:
		fn(t)
	case map[string]any:
		for _, e := range t {
			walkStrings(e, fn)
		}
	case []any:
		for _, e := range t {
			walkStrings(e, fn)
		}
	}
}

// planStages splits a batch into dependency stages. Calls in the same stage
// have no references to one another and may run concurrently; each stage only
// references results produced by earlier stages. Calls with unresolvable
// references (unknown call id or a reference cycle) are returned in planErrs
// and must not be executed.
func planStages(calls []core.FunctionCall) (stages [][]core.FunctionCall, planErrs map[string]error) {
	planErrs = make(map[string]error)

	inBatch := make(map[string]core.FunctionCall, len(calls))
	for _, fc := range calls {
		inBatch[fc.ID] = fc
	}

	deps := make(map[string][]string, len(calls))
	for _, fc := range calls {
		for _, ref := range callRefs(fc) {
			if _, ok := inBatch[ref.callID]; !ok {
				planErrs[fc.ID] = fmt.Errorf("argument references unknown call %q", ref.callID)
				continue
			}
			deps[fc.ID] = append(deps[fc.ID], ref.callID)
		}
	}

	placed := make(map[string]bool, len(calls))
	for id := range planErrs {
		placed[id] = true // excluded from execution
	}

	remaining := len(calls) - len(planErrs)
	for remaining > 0 {
		var stage []core.FunctionCall
		for _, fc := range calls {
			if placed[fc.ID] {
				continue
			}
			ready := true
			for _, dep := range deps[fc.ID] {
				if !placed[dep] || planErrs[dep] != nil {
					ready = false
					break
				}
			}
			// A dependency on a call that itself failed planning is unresolvable.
			for _, dep := range deps[fc.ID] {
				if planErrs[dep] != nil {
					planErrs[fc.ID] = fmt.Errorf("argument depends on unplannable call %q", dep)
					placed[fc.ID] = true
					remaining--
					ready = false
					break
				}
			}
			if ready {
				stage = append(stage, fc)
			}
		}

		if len(stage) == 0 {
			// Whatever is left participates in a cycle.
			for _, fc := range calls {
				if !placed[fc.ID] {
					planErrs[fc.ID] = fmt.Errorf("argument reference cycle involving call %q", fc.ID)
					placed[fc.ID] = true
					remaining--
				}
			}
			break
		}

		for _, fc := range stage {
			placed[fc.ID] = true
			remaining--
		}
		stages = append(stages, stage)
	}

	return stages, planErrs
}

// resolveArguments rewrites result references in the call's argument JSON
// using the payloads recorded for completed calls. A reference to a failed
// call or a missing field is an error; the caller turns that into a failed
// result without running the tool.
func resolveArguments(fc core.FunctionCall, lookup func(callID string) (any, bool)) (string, error) {
	if fc.Arguments == "" {
		return fc.Arguments, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
		return fc.Arguments, nil // let schema validation report this
	}

	resolved, err := resolveValue(args, lookup)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(resolved)
	if err != nil {
		return "", fmt.Errorf("re-encode arguments: %w", err)
	}
	return string(out), nil
}

func resolveValue(v any, lookup func(callID string) (any, bool)) (any, error) {
	switch t := v.(type) {
	case string:
		ref, ok := parseResultRef(t)
		if !ok {
			return t, nil
		}
		payload, ok := lookup(ref.callID)
		if !ok {
			return nil, fmt.Errorf("no successful result for call %q", ref.callID)
		}
		if ref.field == "" {
			return payload, nil
		}
		return fieldOf(payload, ref)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			r, err := resolveValue(e, lookup)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			r, err := resolveValue(e, lookup)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

// fieldOf indexes a top-level field of an object payload. Struct payloads are
// normalized through JSON so handlers can return either.
func fieldOf(payload any, ref resultRef) (any, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("result of call %q is not an object", ref.callID)
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("result of call %q is not an object", ref.callID)
		}
	}
	val, ok := obj[ref.field]
	if !ok {
		return nil, fmt.Errorf("result of call %q has no field %q", ref.callID, ref.field)
	}
	return val, nil
}
