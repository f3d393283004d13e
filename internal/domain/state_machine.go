package domain

import "fmt"

type TransactionState string

const (
	StatePending  TransactionState = "pending"
	StateSettled  TransactionState = "settled"
	StateFailed   TransactionState = "failed"
	StateCanceled TransactionState = "canceled"
)

type TransactionEvent string

const (
	EventSettle TransactionEvent = "settle"
	EventFail   TransactionEvent = "fail"
	EventCancel TransactionEvent = "cancel"
)

// transitions lists every allowed move. Terminal states have no entry.
var transitions = map[TransactionState]map[TransactionEvent]TransactionState{
	StatePending: {
		EventSettle: StateSettled,
		EventFail:   StateFailed,
		EventCancel: StateCanceled,
	},
}

// NextState resolves (state, event) against the transition table without
// touching any transaction.
func NextState(from TransactionState, event TransactionEvent) (TransactionState, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%s from %s: %w", event, from, ErrTransitionNotAllowed)
}

func (s TransactionState) IsTerminal() bool {
	return s == StateSettled || s == StateFailed || s == StateCanceled
}

func (s TransactionState) Valid() bool {
	switch s {
	case StatePending, StateSettled, StateFailed, StateCanceled:
		return true
	}
	return false
}
