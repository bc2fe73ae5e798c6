package ratelimit

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type policyFile struct {
	Limits map[string]struct {
		Limit  int    `yaml:"limit"`
		Window string `yaml:"window"`
	} `yaml:"limits"`
}

// ParsePolicy decodes a YAML policy of the form:
//
//	limits:
//	  upload: {limit: 5, window: 300s}
//	  whatsapp: {limit: 50, window: 5m}
//
// Keys other than upload and question are treated as channel names.
func ParsePolicy(data []byte) (Policy, error) {
	var raw policyFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse rate limit policy: %w", err)
	}
	out := make(Policy, len(raw.Limits))
	for name, entry := range raw.Limits {
		name = strings.ToLower(strings.TrimSpace(name))
		if entry.Limit <= 0 {
			return nil, fmt.Errorf("rate limit policy %q: limit must be positive", name)
		}
		window, err := time.ParseDuration(strings.TrimSpace(entry.Window))
		if err != nil || window <= 0 {
			return nil, fmt.Errorf("rate limit policy %q: invalid window %q", name, entry.Window)
		}
		out[scopeForName(name)] = Rule{Limit: entry.Limit, Window: window}
	}
	return out, nil
}

// LoadPolicyFile reads and parses a YAML policy file.
func LoadPolicyFile(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limit policy: %w", err)
	}
	return ParsePolicy(data)
}

// Merge returns base with every rule in override applied on top.
func (p Policy) Merge(override Policy) Policy {
	out := make(Policy, len(p)+len(override))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func scopeForName(name string) Scope {
	switch Scope(name) {
	case ScopeUpload, ScopeQuestion:
		return Scope(name)
	}
	if strings.HasPrefix(name, "channel:") {
		return Scope(name)
	}
	return ChannelScope(name)
}
