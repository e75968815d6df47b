package release

import (
	"errors"
	"fmt"
)

// ArtifactState is a step in the downloaded artifact lifecycle.
type ArtifactState int

const (
	// StateAbsent means nothing has been fetched yet.
	StateAbsent ArtifactState = iota
	// StateDownloading means the fetch is in progress.
	StateDownloading
	// StateDownloaded means the file is on disk but unchecked.
	StateDownloaded
	// StateVerified means the digest matched the descriptor.
	StateVerified
	// StateRejected means the digest did not match.
	StateRejected
)

// ErrInvalidTransition is returned when the artifact is moved out of order.
var ErrInvalidTransition = errors.New("invalid artifact state transition")

// String implements fmt.Stringer.
func (s ArtifactState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateDownloading:
		return "downloading"
	case StateDownloaded:
		return "downloaded"
	case StateVerified:
		return "verified"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Artifact is the archive file inside the workspace.
type Artifact struct {
	// Path is the location of the file.
	Path string

	state ArtifactState
}

// NewArtifact returns an absent artifact that will be written to path.
func NewArtifact(path string) *Artifact {
	return &Artifact{Path: path}
}

// State returns the current lifecycle state.
func (a *Artifact) State() ArtifactState {
	return a.state
}

// Verified reports whether the artifact may be unpacked.
func (a *Artifact) Verified() bool {
	return a.state == StateVerified
}

// MarkDownloading records that a fetch has started.
func (a *Artifact) MarkDownloading() error {
	return a.transition(StateAbsent, StateDownloading)
}

// MarkDownloaded records that the fetch completed.
func (a *Artifact) MarkDownloaded() error {
	return a.transition(StateDownloading, StateDownloaded)
}

// MarkVerified records a digest match.
func (a *Artifact) MarkVerified() error {
	return a.transition(StateDownloaded, StateVerified)
}

// MarkRejected records a digest mismatch. Rejection is final.
func (a *Artifact) MarkRejected() error {
	return a.transition(StateDownloaded, StateRejected)
}

func (a *Artifact) transition(from, to ArtifactState) error {
	if a.state != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.state, to)
	}

	a.state = to

	return nil
}
