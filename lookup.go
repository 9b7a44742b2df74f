package main

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type LookupOutcome int

const (
	// LookupIdle means nothing was typed yet.
	LookupIdle LookupOutcome = iota
	// LookupUnassigned means a name was typed but no character is assigned to it.
	LookupUnassigned
	LookupFound
)

func (o LookupOutcome) String() string {
	switch o {
	case LookupIdle:
		return "idle"
	case LookupUnassigned:
		return "unassigned"
	case LookupFound:
		return "found"
	default:
		return "unknown"
	}
}

type LookupResult struct {
	Outcome   LookupOutcome
	Name      string // trimmed input
	Player    string // stored key that matched
	Character Character
}

// PlayerLookupService lets a player find their own character by name.
type PlayerLookupService struct {
	chars       *CharacterRegistry
	assignments *AssignmentRegistry
}

func NewPlayerLookupService(chars *CharacterRegistry, assignments *AssignmentRegistry) *PlayerLookupService {
	return &PlayerLookupService{chars: chars, assignments: assignments}
}

// Lookup matches the trimmed name against stored player names ignoring
// case. Stored names are case-sensitive, so "Sam" and "sam" can both exist;
// the one that comes first in iteration order wins. An assignment whose
// character is gone reads as unassigned.
func (s *PlayerLookupService) Lookup(typed string) LookupResult {
	name := strings.TrimSpace(typed)
	if name == "" {
		return LookupResult{Outcome: LookupIdle}
	}

	lower := cases.Lower(language.Und)
	want := lower.String(name)
	for _, e := range s.assignments.Entries() {
		if lower.String(e.Player) != want {
			continue
		}
		c, ok := s.chars.Get(e.CharacterID)
		if !ok {
			DebugLog("lookup: %q -> character %d missing", e.Player, e.CharacterID)
			return LookupResult{Outcome: LookupUnassigned, Name: name}
		}
		return LookupResult{Outcome: LookupFound, Name: name, Player: e.Player, Character: c}
	}

	return LookupResult{Outcome: LookupUnassigned, Name: name}
}
