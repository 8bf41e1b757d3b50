package reinforcement

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"racer/models"
)

// Entry is the preferred action for one observation and the reward it last earned.
type Entry struct {
	Action models.Action
	Value  float64
}

// policyTable is one vehicle's observation-key -> entry mapping.
// Only the owning vehicle's stepper writes it; the lock lets telemetry read sizes mid-run.
type policyTable struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// PolicyStore maps (vehicle id, observation) to a preferred action. Tables are built
// online during a run and never pruned; the store lives only as long as the run.
type PolicyStore struct {
	tables []*policyTable
	writes atomic.Int64
}

// NewPolicyStore returns an empty store for numVehicles vehicles.
func NewPolicyStore(numVehicles int) *PolicyStore {
	store := &PolicyStore{tables: make([]*policyTable, numVehicles)}
	for i := range store.tables {
		store.tables[i] = &policyTable{entries: map[string]Entry{}}
	}
	return store
}

func (ps *PolicyStore) table(id int) (*policyTable, error) {
	if id < 0 || id >= len(ps.tables) {
		return nil, fmt.Errorf("no policy table for vehicle %d", id)
	}
	return ps.tables[id], nil
}

// Lookup returns the stored entry for the vehicle's observation, if any.
func (ps *PolicyStore) Lookup(id int, obs models.Observation) (Entry, bool) {
	table, err := ps.table(id)
	if err != nil {
		return Entry{}, false
	}
	table.mu.RLock()
	defer table.mu.RUnlock()
	entry, ok := table.entries[obs.Key()]
	return entry, ok
}

// Choose returns the stored action when its value is non-negative, otherwise a uniformly
// random action from rng.
func (ps *PolicyStore) Choose(id int, obs models.Observation, rng *rand.Rand) models.Action {
	if entry, ok := ps.Lookup(id, obs); ok && entry.Value >= 0 {
		return entry.Action
	}
	return models.RandomAction(rng)
}

// Record credits action with the reward it earned from the pre-action observation obs.
// Re-taking the stored action overwrites its value with the latest reward, so an action
// that degrades can fall below zero and be abandoned. A different action replaces the
// entry only on a strictly better reward; ties keep the first write.
// Returns true if the table was written.
func (ps *PolicyStore) Record(id int, obs models.Observation, action models.Action, reward float64) (bool, error) {
	if !action.Valid() {
		return false, fmt.Errorf("%w: %d", models.ErrUnknownAction, int(action))
	}
	table, err := ps.table(id)
	if err != nil {
		return false, err
	}

	key := obs.Key()
	table.mu.Lock()
	defer table.mu.Unlock()

	current, ok := table.entries[key]
	switch {
	case !ok, current.Action == action, reward > current.Value:
		table.entries[key] = Entry{Action: action, Value: reward}
		ps.writes.Add(1)
		return true, nil
	}
	return false, nil
}

// Len returns the number of observations learned by the vehicle.
func (ps *PolicyStore) Len(id int) int {
	table, err := ps.table(id)
	if err != nil {
		return 0
	}
	table.mu.RLock()
	defer table.mu.RUnlock()
	return len(table.entries)
}

// Writes returns the total number of writes across all vehicles.
func (ps *PolicyStore) Writes() int64 {
	return ps.writes.Load()
}
