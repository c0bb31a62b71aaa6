// Package fsm implements transition tables for workflow documents.
//
// A Machine is declared once per document type as a list of named
// transitions. The current state lives in a Status whose value can only be
// changed by Machine.Fire (or replaced wholesale by Restore when a repository
// rehydrates a document), so every state change goes through the table.
package fsm

import (
	"fmt"
	"slices"

	"github.com/erp/retailops/internal/domain/shared"
)

// Status holds the current state of one document.
type Status[S ~string] struct {
	value S
}

// Initial returns a status in the given state.
func Initial[S ~string](s S) Status[S] {
	return Status[S]{value: s}
}

// Restore rebuilds a status from persisted data.
func Restore[S ~string](s S) Status[S] {
	return Status[S]{value: s}
}

// Get returns the current state.
func (s Status[S]) Get() S {
	return s.value
}

func (s Status[S]) String() string {
	return string(s.value)
}

// Transition is one row of a transition table. An empty From list means the
// transition is allowed from any state.
type Transition[S ~string] struct {
	Name string
	From []S
	To   S
}

// From lists the allowed source states of a transition.
func From[S ~string](states ...S) []S {
	return states
}

// Any allows a transition from every state.
func Any[S ~string]() []S {
	return nil
}

func (t Transition[S]) allows(current S) bool {
	if len(t.From) == 0 {
		return true
	}
	return slices.Contains(t.From, current)
}

// Machine is an immutable transition table for one document type.
type Machine[S ~string] struct {
	entity      string
	transitions map[string]Transition[S]
}

// New builds a machine. It panics on duplicate transition names since tables
// are declared at package init.
func New[S ~string](entity string, transitions ...Transition[S]) *Machine[S] {
	m := &Machine[S]{
		entity:      entity,
		transitions: make(map[string]Transition[S], len(transitions)),
	}
	for _, t := range transitions {
		if _, dup := m.transitions[t.Name]; dup {
			panic(fmt.Sprintf("fsm: duplicate transition %q for %s", t.Name, entity))
		}
		m.transitions[t.Name] = t
	}
	return m
}

// Can reports whether the named transition is allowed from current.
func (m *Machine[S]) Can(current S, name string) bool {
	t, ok := m.transitions[name]
	return ok && t.allows(current)
}

// Target returns the destination state of a transition.
func (m *Machine[S]) Target(name string) (S, bool) {
	t, ok := m.transitions[name]
	return t.To, ok
}

// Check returns the error Fire would return for the current state without
// running anything.
func (m *Machine[S]) Check(current S, name string) error {
	_, err := m.lookup(current, name)
	return err
}

func (m *Machine[S]) lookup(current S, name string) (Transition[S], error) {
	t, ok := m.transitions[name]
	if !ok {
		return t, shared.NewDomainError(shared.CodeIllegalTransition,
			fmt.Sprintf("%s has no transition named %q", m.entity, name))
	}
	if !t.allows(current) {
		return t, &shared.IllegalTransitionError{
			Entity:     m.entity,
			From:       string(current),
			Transition: name,
		}
	}
	return t, nil
}

// Fire validates the transition against the current state, runs effect and,
// if effect succeeds, moves the status to the transition's target. On any
// error the status is left unchanged.
func (m *Machine[S]) Fire(status *Status[S], name string, effect func(from S) error) error {
	from := status.value
	t, err := m.lookup(from, name)
	if err != nil {
		return err
	}
	if effect != nil {
		if err := effect(from); err != nil {
			return err
		}
	}
	status.value = t.To
	return nil
}
