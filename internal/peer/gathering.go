package peer

// GatheringDetector watches the candidate events of one transport and
// reports when gathering has finished. Completion happens once, on the
// first end-of-candidates marker, and never reverts.
type GatheringDetector struct {
	complete   bool
	candidates int
}

// Observe records c and reports whether it completed gathering. Events
// after completion are ignored.
func (d *GatheringDetector) Observe(c Candidate) bool {
	if d.complete {
		return false
	}
	if !c.IsEnd() {
		d.candidates++
		return false
	}
	d.complete = true
	return true
}

// IsComplete reports whether the end-of-candidates marker was observed.
func (d *GatheringDetector) IsComplete() bool {
	return d.complete
}

// Candidates returns the number of candidates seen before completion.
func (d *GatheringDetector) Candidates() int {
	return d.candidates
}
