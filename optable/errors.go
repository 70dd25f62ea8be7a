package optable

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidExtensionValue = errors.New("invalid opcode extension value")
	ErrKindMismatch          = errors.New("opcode kind does not match table")
	ErrSlotCollision         = errors.New("opcode table slot collision")
	ErrIndexOutOfBounds      = errors.New("opcode table index out of bounds")
	ErrMalformedRecord       = errors.New("malformed instruction record")
	ErrFinalized             = errors.New("opcode tables already finalized")
)

// ExtensionError reports a symbolic extension value with no slot.
type ExtensionError struct {
	Kind  Kind
	Value string
}

func (err *ExtensionError) Error() string {
	return fmt.Sprintf("%v: %s=%s", ErrInvalidExtensionValue, err.Kind, err.Value)
}

func (err *ExtensionError) Unwrap() error { return ErrInvalidExtensionValue }

// KindError reports a token applied to a table of a different kind.
type KindError struct {
	Table *Table
	Token Token
}

func (err *KindError) Error() string {
	return fmt.Sprintf("%v: %s <-> %s", ErrKindMismatch, err.Table.Kind(), err.Token.Kind)
}

func (err *KindError) Unwrap() error { return ErrKindMismatch }

// CollisionError reports two entries competing for one slot. Existing is
// whatever already occupies the slot when Incoming arrived.
type CollisionError struct {
	Table    *Table
	Index    int
	Existing Entry
	Incoming Entry
}

func (err *CollisionError) Error() string {
	return fmt.Sprintf("%v: %s[%02x]: %s <-> %s", ErrSlotCollision, err.Table, err.Index, err.Existing, err.Incoming)
}

func (err *CollisionError) Unwrap() error { return ErrSlotCollision }

type IndexError struct {
	Table *Table
	Index int
}

func (err *IndexError) Error() string {
	return fmt.Sprintf("%v: %s[%d], size %d", ErrIndexOutOfBounds, err.Table, err.Index, err.Table.Size())
}

func (err *IndexError) Unwrap() error { return ErrIndexOutOfBounds }

type RecordError struct {
	Mnemonic string
	Reason   string
}

func (err *RecordError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrMalformedRecord, err.Mnemonic, err.Reason)
}

func (err *RecordError) Unwrap() error { return ErrMalformedRecord }

// CompileError is returned when a definition cannot be placed in the
// tables. Path is the opcode path being inserted and Dump holds the
// tables as they were when the insertion failed.
type CompileError struct {
	Mnemonic string
	Path     []Token
	Dump     string
	Err      error
}

func (err *CompileError) Error() string {
	return fmt.Sprintf("%s [%s]: %v", err.Mnemonic, formatPath(err.Path), err.Err)
}

func (err *CompileError) Unwrap() error { return err.Err }
