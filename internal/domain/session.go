package domain

import (
	"maps"
	"time"
)

// Step is the position of a user inside a generation conversation.
type Step int

const (
	StepIdle Step = iota
	StepAwaitingPhoto
	StepAwaitingParameters
)

func (s Step) String() string {
	switch s {
	case StepAwaitingPhoto:
		return "awaiting_photo"
	case StepAwaitingParameters:
		return "awaiting_parameters"
	default:
		return "idle"
	}
}

// Session is the transient per-user state bridging a command, a photo upload
// and an optional parameters message.
type Session struct {
	Step        Step
	Template    string
	Fields      map[string]string
	Image       []byte
	NeedsParams bool
	UpdatedAt   time.Time
}

// Clone returns a copy whose Fields map can be mutated independently. Image
// bytes are shared and must be treated as read-only.
func (s Session) Clone() Session {
	out := s
	if s.Fields != nil {
		out.Fields = maps.Clone(s.Fields)
	}
	return out
}
