package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
)

// Assignment binds one player name to one character id.
type Assignment struct {
	Player      string `json:"player"`
	CharacterID int64  `json:"character_id"`
}

// assignmentMap is a player -> character id map that remembers insertion
// order. Overwriting a key keeps its original position.
type assignmentMap struct {
	order []string
	ids   map[string]int64
}

func newAssignmentMap() *assignmentMap {
	return &assignmentMap{ids: make(map[string]int64)}
}

func (m *assignmentMap) set(player string, id int64) {
	if _, ok := m.ids[player]; !ok {
		m.order = append(m.order, player)
	}
	m.ids[player] = id
}

func (m *assignmentMap) delete(player string) bool {
	if _, ok := m.ids[player]; !ok {
		return false
	}
	delete(m.ids, player)
	m.order = slices.DeleteFunc(m.order, func(p string) bool { return p == player })
	return true
}

func (m *assignmentMap) entries() []Assignment {
	out := make([]Assignment, 0, len(m.order))
	for _, p := range m.order {
		out = append(out, Assignment{Player: p, CharacterID: m.ids[p]})
	}
	return out
}

// MarshalJSON writes a JSON object whose member order is the map's order.
func (m *assignmentMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", m.ids[p])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object in document order. A repeated member
// overwrites the earlier value in place.
func (m *assignmentMap) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return errors.New("assignments: invalid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return fmt.Errorf("assignments: expected object, got %s", doc.Type)
	}

	fresh := newAssignmentMap()
	var bad error
	doc.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.Number {
			bad = fmt.Errorf("assignments: %q: expected number, got %s", key.String(), value.Type)
			return false
		}
		fresh.set(key.String(), value.Int())
		return true
	})
	if bad != nil {
		return bad
	}

	*m = *fresh
	return nil
}

// AssignmentRegistry owns the player -> character mapping. It drops
// entries for characters deleted from chars.
type AssignmentRegistry struct {
	chars   *CharacterRegistry
	m       *assignmentMap
	persist *persister
}

func NewAssignmentRegistry(chars *CharacterRegistry, initial []Assignment, p *persister) *AssignmentRegistry {
	a := &AssignmentRegistry{
		chars:   chars,
		m:       newAssignmentMap(),
		persist: p,
	}
	for _, e := range initial {
		a.m.set(e.Player, e.CharacterID)
	}
	chars.onDelete = append(chars.onDelete, a.dropCharacter)
	return a
}

// Upsert stores characterID under the trimmed player name.
func (a *AssignmentRegistry) Upsert(player string, characterID int64) error {
	player = strings.TrimSpace(player)
	if player == "" {
		return fmt.Errorf("%w: player name is required", ErrValidation)
	}
	if _, ok := a.chars.Get(characterID); !ok {
		return fmt.Errorf("%w: unknown character %d", ErrValidation, characterID)
	}

	a.m.set(player, characterID)
	LogMutation("assignment.upsert", "player=%q character=%d", player, characterID)
	a.save()
	return nil
}

// Remove deletes the entry whose key is exactly player. No trimming is
// applied here, unlike Upsert.
func (a *AssignmentRegistry) Remove(player string) {
	if !a.m.delete(player) {
		DebugLog("assignment.remove: %q not assigned", player)
	}
	LogMutation("assignment.remove", "player=%q", player)
	a.save()
}

// ReplaceAll discards every existing entry and installs entries in order.
func (a *AssignmentRegistry) ReplaceAll(entries []Assignment) {
	fresh := newAssignmentMap()
	for _, e := range entries {
		fresh.set(e.Player, e.CharacterID)
	}
	a.m = fresh
	LogMutation("assignment.replace_all", "entries=%d", len(fresh.order))
	a.save()
}

// Entries returns a snapshot in iteration order.
func (a *AssignmentRegistry) Entries() []Assignment {
	return a.m.entries()
}

func (a *AssignmentRegistry) Len() int {
	return len(a.m.order)
}

func (a *AssignmentRegistry) dropCharacter(id int64) {
	var dropped []string
	for _, p := range a.m.order {
		if a.m.ids[p] == id {
			dropped = append(dropped, p)
		}
	}
	for _, p := range dropped {
		a.m.delete(p)
	}
	LogMutation("assignment.cascade", "character=%d dropped=%d", id, len(dropped))
	a.save()
}

func (a *AssignmentRegistry) save() {
	a.persist.save(assignmentsKey, a.m)
}
