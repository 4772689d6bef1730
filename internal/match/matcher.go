// Package match resolves payment claims to catalog events. Claims were
// written by several historical code paths that encoded the event
// reference inconsistently (plain vs structured field, string vs wrapped
// identifier), so resolution runs a fixed chain of fallbacks rather than
// a single lookup.
package match

import (
	"campuspay/internal/model"
)

// Index is a lookup table over the full event catalog, keyed by each
// event's canonical identifier and, when present, its redundant legacy
// identifier.
type Index struct {
	byKey  map[string]*model.Event
	events []model.Event
}

func NewIndex(events []model.Event) *Index {
	idx := &Index{
		byKey:  make(map[string]*model.Event, len(events)),
		events: events,
	}
	for i := range idx.events {
		e := &idx.events[i]
		idx.byKey[e.ID] = e
		if e.LegacyID != "" {
			idx.byKey[e.LegacyID] = e
		}
	}
	return idx
}

// Resolve maps a claim to its event. Precedence, in order:
//
//  1. direct lookup by the candidate reference (structured field
//     preferred over the plain one);
//  2. if that misses and a structured reference exists, re-encode it in
//     the catalog's identifier form and retry;
//  3. exhaustive pass comparing both claim fields against both event
//     identifier fields by string value.
//
// The second result is false when nothing resolves. Callers on bulk
// aggregation paths skip and count misses; the single-claim decision
// path treats a miss as NotFound.
func (ix *Index) Resolve(c *model.Claim) (*model.Event, bool) {
	if candidate := c.EventRef(); candidate != "" {
		if e, ok := ix.byKey[candidate]; ok {
			return e, true
		}
	}

	if c.LegacyRef != nil {
		if e, ok := ix.byKey[c.LegacyRef.Canonical()]; ok {
			return e, true
		}
	}

	var refs []string
	if c.LegacyRef != nil {
		refs = append(refs, c.LegacyRef.String())
	}
	if c.PlainRef != "" {
		refs = append(refs, c.PlainRef)
	}
	for i := range ix.events {
		e := &ix.events[i]
		for _, ref := range refs {
			if ref == e.ID || (e.LegacyID != "" && ref == e.LegacyID) {
				return e, true
			}
		}
	}
	return nil, false
}
