package drm

// Solve re-assigns CRTCs to connectors (spec §4.3 "CRTC allocation
// solver"). It performs a bounded recursive search that maximizes the
// number of matched "wants a CRTC" connectors while minimizing changes
// relative to previous (ties broken in favor of keeping a connector on
// the CRTC it already had).
//
// Constraint: a connector that is both enabled and connected may not
// lose its CRTC and may not migrate to a different one. If honoring
// that constraint for every such connector is impossible (two locked
// connectors would need the same CRTC — which should not happen if
// previous was itself a valid solution, but is checked defensively),
// Solve reports ok=false and the caller must retain the previous
// mapping unchanged (spec §4.3: "if such a solution cannot be found,
// the previous mapping is retained and the operation reports
// failure").
//
// previous maps connector id to the CRTC id it previously held; it
// may be nil. The returned mapping maps connector id to CRTC id for
// every matched connector; an unmatched connector that wanted a CRTC
// is simply absent from the map (spec's UNMATCHED).
func Solve(conns []*Connector, crtcs []*CRTC, previous map[uint32]uint32) (mapping map[uint32]uint32, ok bool) {
	mapping = make(map[uint32]uint32)
	reserved := make(map[uint32]bool) // crtc id -> reserved by a locked connector

	locked := func(c *Connector) bool {
		return c.Hotplug == StatusConnected && c.WantsCRTC() && c.CurrentCRTC != nil
	}

	// Pin every locked connector first; conflicting pins mean failure.
	for _, c := range conns {
		if !locked(c) {
			continue
		}
		crtc := c.CurrentCRTC
		if reserved[crtc.ID] {
			return nil, false
		}
		reserved[crtc.ID] = true
		mapping[c.ID] = crtc.ID
	}

	// Candidates still needing a CRTC: connectors that want one and
	// are not already locked above.
	var free []*Connector
	for _, c := range conns {
		if locked(c) {
			continue
		}
		if c.WantsCRTC() {
			free = append(free, c)
		}
	}

	// available CRTCs per free connector, respecting PossibleCRTCs
	// and reservation by a locked connector.
	avail := func(c *Connector) []*CRTC {
		var out []*CRTC
		for _, crtc := range crtcs {
			if reserved[crtc.ID] {
				continue
			}
			if c.PossibleCRTCs&(1<<uint(crtc.Index)) == 0 {
				continue
			}
			out = append(out, crtc)
		}
		return out
	}

	type assignment map[uint32]uint32
	var best assignment
	bestMatched := -1
	bestChanges := -1

	changesFor := func(a assignment) int {
		n := 0
		for connID, crtcID := range a {
			if previous[connID] != crtcID {
				n++
			}
		}
		return n
	}

	usedCRTC := make(map[uint32]bool)
	cur := make(assignment)

	var search func(i int)
	search = func(i int) {
		if i == len(free) {
			matched := len(cur)
			ch := changesFor(cur)
			if matched > bestMatched || (matched == bestMatched && ch < bestChanges) {
				bestMatched = matched
				bestChanges = ch
				best = make(assignment, len(cur))
				for k, v := range cur {
					best[k] = v
				}
			}
			return
		}
		c := free[i]
		candidates := avail(c)
		// Prefer keeping the connector's previous CRTC, for stability
		// (spec P5: removing an already-matched connector must not
		// change the mapping of the remaining ones).
		if prev, ok := previous[c.ID]; ok {
			for j, crtc := range candidates {
				if crtc.ID == prev {
					candidates[0], candidates[j] = candidates[j], candidates[0]
					break
				}
			}
		}
		for _, crtc := range candidates {
			if usedCRTC[crtc.ID] {
				continue
			}
			usedCRTC[crtc.ID] = true
			cur[c.ID] = crtc.ID
			search(i + 1)
			delete(cur, c.ID)
			usedCRTC[crtc.ID] = false
		}
		// Leave c unmatched and continue.
		search(i + 1)
	}
	search(0)

	for connID, crtcID := range best {
		mapping[connID] = crtcID
	}
	return mapping, true
}
