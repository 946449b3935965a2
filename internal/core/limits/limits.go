// Package limits provides the static endpoint rate-limit table.
//
// The table is loaded once from an embedded asset and is immutable
// afterwards. Endpoints absent from the table carry no configured limits
// and are treated as unlimited by the rate limiter.
package limits

import (
	_ "embed"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chirpwire/chirpwire/internal/core"
)

//go:embed limits.yaml
var limitsYAML []byte

// Table is an immutable lookup from endpoint identifier (method plus
// path template, e.g. "POST /2/tweets") to its configured limits.
type Table struct {
	entries map[string]core.EndpointLimits
}

type limitSpec struct {
	Rate   int    `yaml:"rate"`
	Period string `yaml:"period"`
}

type endpointSpec struct {
	User           *limitSpec `yaml:"user"`
	App            *limitSpec `yaml:"app"`
	MaxResults     int        `yaml:"max_results"`
	MaxQueryLength int        `yaml:"max_query_length"`
}

type tableSpec struct {
	Endpoints map[string]endpointSpec `yaml:"endpoints"`
}

// Parse builds a table from raw YAML.
func Parse(data []byte) (*Table, error) {
	var spec tableSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse endpoint limits: %w", err)
	}

	entries := make(map[string]core.EndpointLimits, len(spec.Endpoints))
	for endpoint, ep := range spec.Endpoints {
		userLimit, err := ep.User.toRateLimit(core.ScopeUser)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", endpoint, err)
		}
		appLimit, err := ep.App.toRateLimit(core.ScopeApp)
		if err != nil {
			return nil, fmt.Errorf("endpoint %q: %w", endpoint, err)
		}
		entries[endpoint] = core.EndpointLimits{
			UserLimit:      userLimit,
			AppLimit:       appLimit,
			MaxResults:     ep.MaxResults,
			MaxQueryLength: ep.MaxQueryLength,
		}
	}

	return &Table{entries: entries}, nil
}

func (s *limitSpec) toRateLimit(scope core.Scope) (*core.RateLimit, error) {
	if s == nil {
		return nil, nil
	}
	if s.Rate <= 0 {
		return nil, fmt.Errorf("%s limit rate must be positive", scope)
	}
	period, err := time.ParseDuration(s.Period)
	if err != nil {
		return nil, fmt.Errorf("%s limit period: %w", scope, err)
	}
	if period <= 0 {
		return nil, fmt.Errorf("%s limit period must be positive", scope)
	}
	return &core.RateLimit{Rate: s.Rate, Period: period, Scope: scope}, nil
}

// Default returns the table built from the embedded asset.
func Default() *Table {
	table, err := Parse(limitsYAML)
	if err != nil {
		// The embedded asset is validated by tests; a parse failure here
		// is a build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded limits.yaml is invalid: %v", err))
	}
	return table
}

// Lookup returns the limits for an endpoint identifier. The second
// return is false when the endpoint has no configured limits.
func (t *Table) Lookup(endpointID string) (core.EndpointLimits, bool) {
	if t == nil {
		return core.EndpointLimits{}, false
	}
	entry, ok := t.entries[endpointID]
	return entry, ok
}

// Endpoints returns all configured endpoint identifiers, sorted.
func (t *Table) Endpoints() []string {
	if t == nil {
		return nil
	}
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
