package ir

import (
	"errors"
	"fmt"
)

var ErrUnterminatedBlock = errors.New("block is not terminated")

// BlockBuilder is an insertion point: fragments are appended in order and
// the builder keeps count of how many of them end control flow.
type BlockBuilder struct {
	label       Label
	fragments   Block
	terminators int
}

func NewBlockBuilder(label Label) *BlockBuilder {
	return &BlockBuilder{label: label}
}

func (b *BlockBuilder) Label() Label { return b.label }

func (b *BlockBuilder) Append(frags ...Fragment) {
	for _, f := range frags {
		if IsTerminator(f) {
			b.terminators++
		}
		b.fragments = append(b.fragments, f)
	}
}

// Fragments returns the fragments appended so far.
func (b *BlockBuilder) Fragments() Block {
	return b.fragments
}

// Terminators returns the number of appended fragments that end control flow.
func (b *BlockBuilder) Terminators() int {
	return b.terminators
}

// Terminated reports whether the last appended fragment is a terminator.
func (b *BlockBuilder) Terminated() bool {
	return IsTerminator(b.fragments)
}

// Finish checks that the block ends with exactly one terminator and returns
// it as a labelled block.
func (b *BlockBuilder) Finish() (Fragment, error) {
	switch {
	case b.terminators == 0:
		return nil, fmt.Errorf("ir: %s: %w", b.label, ErrUnterminatedBlock)
	case b.terminators > 1:
		return nil, fmt.Errorf("ir: %s: %d terminators appended, want 1", b.label, b.terminators)
	case !b.Terminated():
		return nil, fmt.Errorf("ir: %s: fragments appended after the terminator", b.label)
	}
	return DeclareLabel(b.label, b.fragments), nil
}
