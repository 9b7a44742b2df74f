package main

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Character is a role with a name and a private backstory.
type Character struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Backstory string `json:"backstory"`
}

// CharacterRegistry owns the ordered character list. Insertion order is
// what organizers see.
type CharacterRegistry struct {
	chars    []Character
	lastID   int64
	now      func() time.Time
	persist  *persister
	onDelete []func(id int64)
}

func NewCharacterRegistry(initial []Character, p *persister) *CharacterRegistry {
	r := &CharacterRegistry{
		chars:   slices.Clone(initial),
		now:     time.Now,
		persist: p,
	}
	for _, c := range r.chars {
		r.lastID = max(r.lastID, c.ID)
	}
	return r
}

// nextID uses the creation time in milliseconds, bumped past the last id
// handed out so two creates in the same millisecond never collide.
func (r *CharacterRegistry) nextID() int64 {
	id := r.now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return id
}

func (r *CharacterRegistry) Create(name, backstory string) (Character, error) {
	if strings.TrimSpace(name) == "" {
		return Character{}, fmt.Errorf("%w: character name is required", ErrValidation)
	}

	c := Character{ID: r.nextID(), Name: name, Backstory: backstory}
	r.chars = append(r.chars, c)
	LogMutation("character.create", "id=%d name=%q", c.ID, c.Name)
	r.save()
	return c, nil
}

// Update overwrites name and backstory in place. An unknown id changes
// nothing and returns ErrNotFound, which callers may treat as a no-op.
func (r *CharacterRegistry) Update(id int64, name, backstory string) (Character, error) {
	i := r.index(id)
	if i < 0 {
		DebugLog("character.update: id %d not found, ignoring", id)
		return Character{}, fmt.Errorf("%w: character %d", ErrNotFound, id)
	}

	r.chars[i].Name = name
	r.chars[i].Backstory = backstory
	LogMutation("character.update", "id=%d name=%q", id, name)
	r.save()
	return r.chars[i], nil
}

// Delete removes the character and every assignment pointing at it.
// Deleting an unknown id is not an error.
func (r *CharacterRegistry) Delete(id int64) {
	r.chars = slices.DeleteFunc(r.chars, func(c Character) bool { return c.ID == id })
	LogMutation("character.delete", "id=%d", id)
	r.save()

	for _, fn := range r.onDelete {
		fn(id)
	}
}

// List returns a snapshot in insertion order.
func (r *CharacterRegistry) List() []Character {
	return slices.Clone(r.chars)
}

func (r *CharacterRegistry) Get(id int64) (Character, bool) {
	i := r.index(id)
	if i < 0 {
		return Character{}, false
	}
	return r.chars[i], true
}

func (r *CharacterRegistry) Len() int {
	return len(r.chars)
}

func (r *CharacterRegistry) index(id int64) int {
	return slices.IndexFunc(r.chars, func(c Character) bool { return c.ID == id })
}

func (r *CharacterRegistry) save() {
	chars := r.chars
	if chars == nil {
		chars = []Character{}
	}
	r.persist.save(charactersKey, chars)
}
