package recorder

import (
	"fmt"

	"github.com/aronnbrant/gorecorder/internal/logging"
	"github.com/aronnbrant/gorecorder/internal/scalar"
	"github.com/aronnbrant/gorecorder/internal/wire"
)

type keyState struct {
	kind   scalar.Kind
	value  scalar.Value
	length int8
}

// RecorderBase is the untyped core owning the per-key state table, the
// change-detection state machine, and the session binding. Recorder[K]
// is a thin typed facade over this type.
//
// A RecorderBase is owned by a single goroutine and must not be shared
// across goroutines.
type RecorderBase struct {
	session    *Session
	logger     *logging.Logger
	recorderID uint16
	externalID int64
	name       string
	tick       int32

	keys []keyState
}

// NewRecorderBase constructs a recorder bound to session, with a closed
// key range of size count (the Go stand-in for a compile-time enum
// K::Count), and emits the InitRecorder frame.
func NewRecorderBase(session *Session, count int, name string, externalID int64) (*RecorderBase, error) {
	if count <= 0 {
		return nil, NewConfigError("NewRecorderBase", "count must be positive")
	}
	if session == nil {
		return nil, NewConfigError("NewRecorderBase", "session must not be nil")
	}

	rb := &RecorderBase{
		session:    session,
		logger:     logging.Default(),
		recorderID: nextRecorderID(),
		externalID: externalID,
		name:       name,
		keys:       make([]keyState, count),
	}

	var nameBuf [52]byte
	truncateInto(nameBuf[:], name, rb.logger, "NewRecorderBase", "name")

	ir := wire.InitRecorder{
		ExternalID: externalID,
		RecorderID: int16(rb.recorderID),
		NumItems:   int16(count),
		Name:       nameBuf,
	}
	if err := session.sendInitRecorder(ir); err != nil {
		return nil, err
	}
	return rb, nil
}

// RecorderID returns the process-wide unique id assigned at construction.
func (r *RecorderBase) RecorderID() uint16 { return r.recorderID }

// truncateInto copies s into dst, NUL-padding, and warns if s overflows dst.
func truncateInto(dst []byte, s string, logger *logging.Logger, op, field string) {
	for i := range dst {
		dst[i] = 0
	}
	n := copy(dst, s)
	if n < len(s) {
		logger.Warn("truncating field to fit wire buffer", "op", op, "field", field, "original_len", len(s), "max_len", len(dst))
	}
}

// Setup registers key with a display name/unit/description, initializing
// its local slot to INIT and emitting one InitItem frame. Re-setup of an
// already-registered key is a no-op.
func (r *RecorderBase) Setup(key int, name, unit, desc string) error {
	if err := r.checkKeyRange("Setup", key); err != nil {
		return err
	}
	if desc == "" {
		desc = DefaultItemDesc
	}

	if r.keys[key].kind != scalar.Unset {
		return nil // idempotent re-setup
	}

	var nameBuf [32]byte
	var unitBuf [32]byte
	var descBuf [184]byte
	truncateInto(nameBuf[:], name, r.logger, "Setup", "name")
	truncateInto(unitBuf[:], unit, r.logger, "Setup", "unit")
	truncateInto(descBuf[:], desc, r.logger, "Setup", "desc")

	it := wire.InitItem{
		RecorderID: int16(r.recorderID),
		Key:        int16(key),
		Name:       nameBuf,
		Unit:       unitBuf,
		Desc:       descBuf,
	}
	if err := r.session.sendInitItem(it); err != nil {
		return err
	}

	r.keys[key] = keyState{kind: scalar.Init}
	return nil
}

// Record applies the edge-doubling state machine (§4.3) to value for key.
func (r *RecorderBase) Record(key int, value any) error {
	if err := r.checkKeyRange("Record", key); err != nil {
		return err
	}
	state := &r.keys[key]
	if state.kind == scalar.Unset {
		return NewProtocolError("Record", int32(r.recorderID), int32(key), "record called before setup")
	}

	newKind, newValue, length, classifyErr := scalar.Classify(value)
	if classifyErr != nil {
		// Array length outside 1..3: fall back to OTHER with zeroed
		// bytes rather than failing the call (classification-failure
		// policy, §7).
		newKind, newValue, length = scalar.Other, scalar.Value{}, 1
	}

	r.tick++
	now := r.tick

	if state.kind == scalar.Init {
		state.kind = newKind
		state.value = newValue
		state.length = int8(length)
		return r.emit(key, newKind, length, now, newValue)
	}

	if state.kind != newKind {
		// Resolved open question: a kind that disagrees with the frozen
		// kind is rejected, not coerced or widened — the frozen kind and
		// stored value are left untouched.
		return &Error{
			Op:         "Record",
			Code:       ErrCodeClassification,
			RecorderID: int32(r.recorderID),
			Key:        int32(key),
			Msg:        fmt.Sprintf("value kind %s disagrees with frozen kind %s", newKind, state.kind),
		}
	}

	if scalar.Equal(state.kind, state.value, newKind, newValue) {
		return nil // unchanged: dropped per I3
	}

	old := state.value
	oldLength := state.length
	state.value = newValue
	state.length = int8(length)

	if err := r.emit(key, state.kind, int(oldLength), now, old); err != nil {
		return err
	}
	return r.emit(key, newKind, length, now, newValue)
}

func (r *RecorderBase) emit(key int, kind scalar.Kind, length int, t int32, v scalar.Value) error {
	rec := wire.ItemRecord{
		Key:    int16(key),
		Kind:   int8(kind),
		Length: int8(length),
		Time:   t,
		Data:   v,
	}
	return r.session.append(r.recorderID, rec)
}

// Flush drains the owning Session's SendBuffer immediately.
func (r *RecorderBase) Flush() error {
	return r.session.Flush()
}

// Close flushes the owning session. Call when the recorder is done being
// used on this goroutine (mirrors the destructor-triggered flush in I5).
func (r *RecorderBase) Close() error {
	return r.session.Flush()
}

func (r *RecorderBase) checkKeyRange(op string, key int) error {
	if key < 0 || key >= len(r.keys) {
		return NewProtocolError(op, int32(r.recorderID), int32(key), fmt.Sprintf("key %d outside [0,%d)", key, len(r.keys)))
	}
	return nil
}

// Recorder is a generic facade over RecorderBase for a closed key range
// described by K, an idiomatic Go rendering of a compile-time-enum-bound
// key type.
type Recorder[K ~int] struct {
	base *RecorderBase
}

// NewRecorder constructs a Recorder[K] with an explicit key count (the
// enum's cardinality), since Go has no K::Count constant to read at
// compile time.
func NewRecorder[K ~int](session *Session, count int, name string, externalID int64) (*Recorder[K], error) {
	base, err := NewRecorderBase(session, count, name, externalID)
	if err != nil {
		return nil, err
	}
	return &Recorder[K]{base: base}, nil
}

func (r *Recorder[K]) RecorderID() uint16 { return r.base.RecorderID() }

func (r *Recorder[K]) Setup(key K, name, unit, desc string) error {
	return r.base.Setup(int(key), name, unit, desc)
}

func (r *Recorder[K]) Record(key K, value any) error {
	return r.base.Record(int(key), value)
}

func (r *Recorder[K]) Flush() error { return r.base.Flush() }
func (r *Recorder[K]) Close() error { return r.base.Close() }
