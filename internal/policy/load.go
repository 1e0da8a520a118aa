package policy

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/rateguard/internal/rules"
)

//go:embed schema.cue
var schemaCUE string

//go:embed default.cue
var defaultCUE string

// policyFile mirrors the CUE "policy" struct for decoding.
type policyFile struct {
	OverrideBand         Band           `json:"override_band"`
	EventBand            Band           `json:"event_band"`
	BasePriorities       map[string]int `json:"base_priorities"`
	PrioritySearchBound  int            `json:"priority_search_bound"`
	IncoherenceThreshold float64        `json:"incoherence_threshold"`
	LeadWindowDays       int            `json:"lead_window_days"`
}

// Default returns the embedded default policy. Panics if the embedded
// source is invalid, which is a build defect, not a runtime condition.
func Default() Policy {
	p, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("embedded default policy is invalid: %v", err))
	}
	return p
}

// Load builds the policy from CUE and validates it. With an empty dir
// the embedded defaults are used; otherwise every .cue file in dir is
// loaded and unified against the embedded schema, replacing the
// defaults entirely.
func Load(dir string) (Policy, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Policy{}, fmt.Errorf("compile policy schema: %w", err)
	}

	var source cue.Value
	if dir == "" {
		source = ctx.CompileString(defaultCUE, cue.Filename("default.cue"))
		if err := source.Err(); err != nil {
			return Policy{}, fmt.Errorf("compile default policy: %w", err)
		}
	} else {
		info, err := os.Stat(dir)
		if os.IsNotExist(err) {
			return Policy{}, fmt.Errorf("policy directory not found: %s", dir)
		}
		if err != nil {
			return Policy{}, fmt.Errorf("access policy directory: %w", err)
		}
		if !info.IsDir() {
			return Policy{}, fmt.Errorf("not a directory: %s", dir)
		}

		instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
		if len(instances) == 0 {
			return Policy{}, fmt.Errorf("no CUE instances in %s", dir)
		}
		inst := instances[0]
		if inst.Err != nil {
			return Policy{}, fmt.Errorf("load policy files: %w", inst.Err)
		}

		source = ctx.BuildInstance(inst)
		if err := source.Err(); err != nil {
			return Policy{}, fmt.Errorf("build policy value: %w", err)
		}
	}

	unified := schema.Unify(source)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Policy{}, fmt.Errorf("validate policy: %w", err)
	}

	val := unified.LookupPath(cue.ParsePath("policy"))
	if !val.Exists() {
		return Policy{}, fmt.Errorf("policy struct not found")
	}

	var file policyFile
	if err := val.Decode(&file); err != nil {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}

	p := Policy{
		OverrideBand:         file.OverrideBand,
		EventBand:            file.EventBand,
		BasePriorities:       make(map[rules.Category]int, len(file.BasePriorities)),
		PrioritySearchBound:  file.PrioritySearchBound,
		IncoherenceThreshold: file.IncoherenceThreshold,
		LeadWindowDays:       file.LeadWindowDays,
	}
	for cat, base := range file.BasePriorities {
		p.BasePriorities[rules.Category(cat)] = base
	}

	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("policy: %w", err)
	}
	return p, nil
}
