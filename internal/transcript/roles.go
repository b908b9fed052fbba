package transcript

import (
	"fmt"
	"strings"
)

// Default role labels
const (
	DefaultFirstRole         = "Interviewer"
	DefaultSecondRole        = "Interviewee"
	DefaultParticipantFormat = "Participant %d"
	UnknownRole              = "Unknown"
)

// RoleAssigner derives display labels for the speakers of one chunk.
// Assign receives turns in detection order and is called once per chunk.
type RoleAssigner interface {
	Assign(turns []SpeakerTurn) Roles
}

// PositionalRoles labels speakers by order of first appearance: the first
// speaker heard is the interviewer, the second the interviewee, the rest are
// numbered participants. This assumes the interviewer opens the recording.
type PositionalRoles struct {
	First             string
	Second            string
	ParticipantFormat string // must contain one %d verb
}

// NewPositionalRoles returns the assigner with the default labels
func NewPositionalRoles() PositionalRoles {
	return PositionalRoles{
		First:             DefaultFirstRole,
		Second:            DefaultSecondRole,
		ParticipantFormat: DefaultParticipantFormat,
	}
}

// Assign implements RoleAssigner
func (p PositionalRoles) Assign(turns []SpeakerTurn) Roles {
	roles := make(Roles)
	for _, turn := range turns {
		if _, seen := roles[turn.Speaker]; seen {
			continue
		}
		roles[turn.Speaker] = p.label(len(roles))
	}
	return roles
}

func (p PositionalRoles) label(order int) string {
	switch order {
	case 0:
		return orDefault(p.First, DefaultFirstRole)
	case 1:
		return orDefault(p.Second, DefaultSecondRole)
	}
	format := p.ParticipantFormat
	if !strings.Contains(format, "%d") {
		format = DefaultParticipantFormat
	}
	return fmt.Sprintf(format, order-1)
}

// SpeakerIDRoles uses the diarizer's own speaker IDs as labels
type SpeakerIDRoles struct{}

// Assign implements RoleAssigner
func (SpeakerIDRoles) Assign(turns []SpeakerTurn) Roles {
	roles := make(Roles, len(turns))
	for _, turn := range turns {
		roles[turn.Speaker] = turn.Speaker
	}
	return roles
}

// AssignerByName returns the assigner for a ROLE_STRATEGY value
func AssignerByName(name string, positional PositionalRoles) (RoleAssigner, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "positional":
		return positional, nil
	case "speaker":
		return SpeakerIDRoles{}, nil
	}
	return nil, fmt.Errorf("unknown role strategy %q", name)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
