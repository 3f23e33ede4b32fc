package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"photocal/pkg/logger"
)

// SchemaVersion is written into every record envelope. Records carrying any
// other version are treated as absent.
const SchemaVersion = 1

type envelope struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

// Validatable values are checked after decoding; a failing record is treated
// as absent.
type Validatable interface {
	Validate() error
}

// Adapter serializes values as JSON over a Backend. Save and Remove report
// false and Load falls back to the caller's default, so callers can keep
// working with in-memory state. Get is the one read that surfaces backend
// errors.
type Adapter struct {
	backend Backend
	prefix  string
	logger  *logger.Logger
}

func NewAdapter(backend Backend, l *logger.Logger) *Adapter {
	return &Adapter{backend: backend, logger: l}
}

// Scoped returns an adapter whose keys are isolated under owner.
func (a *Adapter) Scoped(owner string) *Adapter {
	return &Adapter{
		backend: a.backend,
		prefix:  a.prefix + owner + ":",
		logger:  a.logger,
	}
}

func (a *Adapter) key(k string) string {
	return a.prefix + k
}

// Save stores value under key and reports whether it was persisted.
func (a *Adapter) Save(ctx context.Context, key string, value interface{}) bool {
	data, err := json.Marshal(value)
	if err != nil {
		a.logger.Errorw("Error serializing value", "key", a.key(key), "error", err)
		return false
	}

	payload, err := json.Marshal(envelope{Version: SchemaVersion, Data: data})
	if err != nil {
		a.logger.Errorw("Error serializing envelope", "key", a.key(key), "error", err)
		return false
	}

	if err := a.backend.Set(ctx, a.key(key), payload); err != nil {
		a.logger.Errorw("Error saving to storage", "key", a.key(key), "error", err)
		return false
	}
	return true
}

// Remove deletes key and reports whether the backend accepted it.
func (a *Adapter) Remove(ctx context.Context, key string) bool {
	if err := a.backend.Delete(ctx, a.key(key)); err != nil {
		a.logger.Errorw("Error removing from storage", "key", a.key(key), "error", err)
		return false
	}
	return true
}

// Load decodes the value stored under key. def is returned unchanged when the
// key is absent, unreadable, of another schema version, carries fields the
// type does not know, or fails validation.
func Load[T any](ctx context.Context, a *Adapter, key string, def T) T {
	value, ok, err := Get[T](ctx, a, key)
	if err != nil || !ok {
		return def
	}
	return value
}

// Get is Load for read-modify-write paths. A record that is missing or fails
// to decode reports ok == false; a backend that could not be read returns
// the error, so the caller does not write over data it never saw.
func Get[T any](ctx context.Context, a *Adapter, key string) (value T, ok bool, err error) {
	raw, err := a.backend.Get(ctx, a.key(key))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return value, false, nil
		}
		a.logger.Errorw("Error loading from storage", "key", a.key(key), "error", err)
		return value, false, err
	}

	value, err = decode[T](raw)
	if err != nil {
		a.logger.Warnw("Discarding stored record", "key", a.key(key), "error", err)
		var zero T
		return zero, false, nil
	}
	return value, true, nil
}

func decode[T any](raw []byte) (T, error) {
	var zero T

	var env envelope
	if err := strictUnmarshal(raw, &env); err != nil {
		return zero, fmt.Errorf("bad envelope: %w", err)
	}
	if env.Version != SchemaVersion {
		return zero, fmt.Errorf("schema version %d, want %d", env.Version, SchemaVersion)
	}

	var value T
	if err := strictUnmarshal(env.Data, &value); err != nil {
		return zero, fmt.Errorf("bad record: %w", err)
	}

	if v, ok := any(value).(Validatable); ok && !isNil(value) {
		if err := v.Validate(); err != nil {
			return zero, err
		}
	}
	return value, nil
}

func isNil(v interface{}) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return !rv.IsValid()
	}
}

func strictUnmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}
