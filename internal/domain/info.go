package domain

import (
	"maps"
	"slices"
)

// InfoProperties is an immutable set of build or git attributes.
type InfoProperties struct {
	entries map[string]string
}

func NewInfoProperties(entries map[string]string) InfoProperties {
	return InfoProperties{entries: maps.Clone(entries)}
}

func (p InfoProperties) Get(key string) (string, bool) {
	v, ok := p.entries[key]
	return v, ok
}

func (p InfoProperties) Len() int {
	return len(p.entries)
}

// All returns a copy of every entry.
func (p InfoProperties) All() map[string]string {
	out := make(map[string]string, len(p.entries))
	maps.Copy(out, p.entries)
	return out
}

// Select returns the entries whose key is in allow, each key prefixed with prefix and a dot.
func (p InfoProperties) Select(prefix string, allow []string) map[string]string {
	out := make(map[string]string)
	for k, v := range p.entries {
		if slices.Contains(allow, k) {
			out[prefix+"."+k] = v
		}
	}
	return out
}
