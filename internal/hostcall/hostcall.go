// Package hostcall defines the host operations compiled code may request and
// the plumbing that routes a raw request to a Handler.
package hostcall

import (
	"errors"
	"fmt"
)

var ErrUnsupported = errors.New("host call not supported")

// Handler implements the host operations available to compiled programs.
// Each method may charge gas by decrementing *gas.
type Handler interface {
	StorageRead(domain uint32, key int64, gas *uint64) (int64, error)
	StorageWrite(domain uint32, key, value int64, gas *uint64) error
	EmitEvent(keys, data []int64, gas *uint64) error
	CallContract(address, selector int64, calldata []int64, gas *uint64) ([]int64, error)
	GetBlockNumber(gas *uint64) (uint64, error)
}

// Revert is returned by a Handler to fail a host call with explicit revert
// data visible to the program.
type Revert struct {
	Data []int64
}

func (r *Revert) Error() string {
	return fmt.Sprintf("host call reverted with %d values", len(r.Data))
}

// Rejecting fails every host call. It is used when the caller supplies no
// handler.
type Rejecting struct{}

var _ Handler = Rejecting{}

func (Rejecting) StorageRead(uint32, int64, *uint64) (int64, error) {
	return 0, fmt.Errorf("storage_read: %w", ErrUnsupported)
}

func (Rejecting) StorageWrite(uint32, int64, int64, *uint64) error {
	return fmt.Errorf("storage_write: %w", ErrUnsupported)
}

func (Rejecting) EmitEvent([]int64, []int64, *uint64) error {
	return fmt.Errorf("emit_event: %w", ErrUnsupported)
}

func (Rejecting) CallContract(int64, int64, []int64, *uint64) ([]int64, error) {
	return nil, fmt.Errorf("call_contract: %w", ErrUnsupported)
}

func (Rejecting) GetBlockNumber(*uint64) (uint64, error) {
	return 0, fmt.Errorf("get_block_number: %w", ErrUnsupported)
}
