package peer

import "testing"

func TestGatheringDetector(t *testing.T) {
	host := Candidate{Address: "candidate:1 1 udp 2130706431 10.0.0.2 50000 typ host"}
	srflx := Candidate{Address: "candidate:2 1 udp 1694498815 203.0.113.7 50000 typ srflx"}
	end := Candidate{}

	tests := []struct {
		name       string
		events     []Candidate
		completeAt int // index of the event that completes gathering, -1 for never
		candidates int
	}{
		{name: "sentinel only", events: []Candidate{end}, completeAt: 0},
		{name: "candidates then sentinel", events: []Candidate{host, srflx, end}, completeAt: 2, candidates: 2},
		{name: "no sentinel", events: []Candidate{host, srflx}, completeAt: -1, candidates: 2},
		{name: "events after sentinel", events: []Candidate{host, end, srflx, end}, completeAt: 1, candidates: 1},
		{name: "empty", completeAt: -1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var detector GatheringDetector
			completions := 0
			for i, c := range test.events {
				if detector.IsComplete() != (test.completeAt >= 0 && i > test.completeAt) {
					t.Fatalf("before event %d: IsComplete = %v", i, detector.IsComplete())
				}
				if detector.Observe(c) {
					completions++
					if i != test.completeAt {
						t.Errorf("completed at event %d, want %d", i, test.completeAt)
					}
				}
			}

			wantCompletions := 0
			if test.completeAt >= 0 {
				wantCompletions = 1
			}
			if completions != wantCompletions {
				t.Errorf("completions = %d, want %d", completions, wantCompletions)
			}
			if detector.IsComplete() != (test.completeAt >= 0) {
				t.Errorf("IsComplete = %v, want %v", detector.IsComplete(), test.completeAt >= 0)
			}
			if detector.Candidates() != test.candidates {
				t.Errorf("Candidates = %d, want %d", detector.Candidates(), test.candidates)
			}
		})
	}
}
