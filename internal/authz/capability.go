package authz

import "sort"

// CapabilitySet is an ordered, deduplicated set of capability strings.
type CapabilitySet []string

// NewCapabilitySet builds a normalized set from the given capabilities.
func NewCapabilitySet(caps ...string) CapabilitySet {
	unique := make(map[string]struct{}, len(caps))
	for _, c := range caps {
		if c == "" {
			continue
		}
		unique[c] = struct{}{}
	}
	set := make(CapabilitySet, 0, len(unique))
	for c := range unique {
		set = append(set, c)
	}
	sort.Strings(set)
	return set
}

// Has reports whether the set contains the capability.
func (s CapabilitySet) Has(capability string) bool {
	i := sort.SearchStrings(s, capability)
	return i < len(s) && s[i] == capability
}

// HasAny reports whether the set contains at least one of the capabilities.
func (s CapabilitySet) HasAny(caps ...string) bool {
	for _, c := range caps {
		if s.Has(c) {
			return true
		}
	}
	return false
}

// HasAll reports whether the set contains every capability.
func (s CapabilitySet) HasAll(caps ...string) bool {
	for _, c := range caps {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// Union returns a new set combining both operands.
func (s CapabilitySet) Union(other CapabilitySet) CapabilitySet {
	return NewCapabilitySet(append(append([]string{}, s...), other...)...)
}
