package hostcall

import (
	"fmt"
	"sync"

	"github.com/tinyrange/aot/internal/values"
)

// Event is one emitted event recorded by State.
type Event struct {
	Keys []int64
	Data []int64
}

type storageKey struct {
	domain uint32
	key    int64
}

// State is an in-process Handler backed by maps. Each operation charges a
// fixed gas cost. Nested contract calls are delegated to Contracts, keyed by
// address.
type State struct {
	mu          sync.Mutex
	storage     map[storageKey]int64
	events      []Event
	BlockNumber uint64
	// Cost is charged for every host operation.
	Cost      uint64
	Contracts map[int64]func(selector int64, calldata []int64) ([]int64, error)
}

var _ Handler = (*State)(nil)

func NewState() *State {
	return &State{storage: make(map[storageKey]int64)}
}

var outOfGas = values.EncodeShortStrings("Out of gas")

func (s *State) charge(gas *uint64) error {
	if *gas < s.Cost {
		return &Revert{Data: outOfGas}
	}
	*gas -= s.Cost
	return nil
}

func (s *State) StorageRead(domain uint32, key int64, gas *uint64) (int64, error) {
	if err := s.charge(gas); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage[storageKey{domain, key}], nil
}

func (s *State) StorageWrite(domain uint32, key, value int64, gas *uint64) error {
	if err := s.charge(gas); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage[storageKey{domain, key}] = value
	return nil
}

func (s *State) EmitEvent(keys, data []int64, gas *uint64) error {
	if err := s.charge(gas); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{
		Keys: append([]int64(nil), keys...),
		Data: append([]int64(nil), data...),
	})
	return nil
}

func (s *State) CallContract(address, selector int64, calldata []int64, gas *uint64) ([]int64, error) {
	if err := s.charge(gas); err != nil {
		return nil, err
	}
	fn, ok := s.Contracts[address]
	if !ok {
		return nil, fmt.Errorf("contract %#x not deployed", address)
	}
	return fn(selector, calldata)
}

func (s *State) GetBlockNumber(gas *uint64) (uint64, error) {
	if err := s.charge(gas); err != nil {
		return 0, err
	}
	return s.BlockNumber, nil
}

// Events returns a copy of the events emitted so far.
func (s *State) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Load returns the stored value for (domain, key).
func (s *State) Load(domain uint32, key int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.storage[storageKey{domain, key}]
	return v, ok
}
