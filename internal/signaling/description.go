package signaling

import (
	"fmt"

	"github.com/BioHazard786/peerlink/internal/peer"
	"github.com/pion/sdp/v3"
)

// maxDescriptionSize bounds a description read from the network.
const maxDescriptionSize = 64 * 1024

// Validate checks that d is of type want and carries a parseable session
// description with at least one media section.
func Validate(d peer.Description, want peer.SDPType) error {
	if d.Type != want {
		return fmt.Errorf("%w: type %q, want %q", ErrMalformedDescription, d.Type, want)
	}
	parsed, err := parse(d)
	if err != nil {
		return err
	}
	if len(parsed.MediaDescriptions) == 0 {
		return fmt.Errorf("%w: no media sections", ErrMalformedDescription)
	}
	return nil
}

// CandidateCount returns the number of candidates embedded in d, or 0 if
// d does not parse.
func CandidateCount(d peer.Description) int {
	parsed, err := parse(d)
	if err != nil {
		return 0
	}
	n := 0
	for _, a := range parsed.Attributes {
		if a.Key == "candidate" {
			n++
		}
	}
	for _, m := range parsed.MediaDescriptions {
		for _, a := range m.Attributes {
			if a.Key == "candidate" {
				n++
			}
		}
	}
	return n
}

func parse(d peer.Description) (*sdp.SessionDescription, error) {
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(d.SDP)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDescription, err)
	}
	return &parsed, nil
}
