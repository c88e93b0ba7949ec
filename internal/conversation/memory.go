package conversation

import (
	"context"
	"slices"
	"sync"

	"github.com/emogotchi/emogotchi-backend/internal/domain"
)

// Memory is a process-local Store.
type Memory struct {
	mu    sync.RWMutex
	state map[string]State
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{state: make(map[string]State)}
}

// Load implements Store.
func (m *Memory) Load(_ context.Context, uuid string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.state[uuid]
	if !ok {
		return State{UUID: uuid}, nil
	}
	st.History = slices.Clone(st.History)
	return st, nil
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, st State) error {
	st.History = slices.Clone(st.History)
	if st.History == nil {
		st.History = []domain.Turn{}
	}
	m.mu.Lock()
	m.state[st.UUID] = st
	m.mu.Unlock()
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, uuid string) error {
	m.mu.Lock()
	delete(m.state, uuid)
	m.mu.Unlock()
	return nil
}
