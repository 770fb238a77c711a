package visibility

import "github.com/armature-app/armature/internal/authn"

// Record is a map-shaped row as returned by the query façade.
type Record map[string]any

// Redact returns a copy of the record with every restricted attribute the
// principal may not see removed. Removal is structural: keys are dropped,
// never replaced with sentinel values. Redacting an already-redacted record
// is a no-op.
func Redact(p *authn.Principal, class Class, record Record) Record {
	desc, ok := Lookup(class)
	if !ok {
		// Unknown class fails closed.
		return Record{}
	}
	out := make(Record, len(record))
	for key, value := range record {
		if guard, restricted := desc.Restricted[key]; restricted {
			if p == nil || !p.Capabilities.Has(guard) {
				continue
			}
		}
		out[key] = value
	}
	return out
}

// RedactAll applies the identical per-record rule to every element. No
// aggregate is computed here: a total derived from restricted attributes
// must never reach a principal who cannot see the attributes themselves.
func RedactAll(p *authn.Principal, class Class, records []Record) []Record {
	out := make([]Record, len(records))
	for i, record := range records {
		out[i] = Redact(p, class, record)
	}
	return out
}
