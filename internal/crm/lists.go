package crm

import (
	"context"
	"errors"
	"strings"

	"islatel/internal/domain"
	"islatel/internal/metrics"
	"islatel/internal/models"
	"islatel/internal/store"
)

var ErrListValueExists = errors.New("value already in list")

// List returns the current values of one enum list.
func (e *Engine) List(kind domain.ListKind) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.lists[kind]...)
}

// Statuses returns the fixed status vocabulary. Unlike the other lists it is
// not store-backed; custom statuses live directly on guest records.
func (e *Engine) Statuses() []string {
	return append([]string(nil), models.DefaultStatuses...)
}

// AddListValue appends a value to an enum list, unique by value.
func (e *Engine) AddListValue(ctx context.Context, kind domain.ListKind, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("value must not be empty")
	}

	e.mu.RLock()
	for _, v := range e.lists[kind] {
		if strings.EqualFold(v, value) {
			e.mu.RUnlock()
			return ErrListValueExists
		}
	}
	e.mu.RUnlock()

	if err := e.store.AddListValue(ctx, kind, value); err != nil {
		e.onStoreError(err)
		e.mu.Lock()
		e.lists[kind] = append(e.lists[kind], value)
		e.mu.Unlock()
		e.journalWrite(ctx, kind.String(), models.WriteOpInsert, value, value)
		return nil
	}

	metrics.IncMutation(kind.String(), models.WriteOpInsert)
	return nil
}

// RemoveListValue removes a value from an enum list. Guests already
// classified with the value keep it.
func (e *Engine) RemoveListValue(ctx context.Context, kind domain.ListKind, value string) error {
	if err := e.store.RemoveListValue(ctx, kind, value); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		e.onStoreError(err)
		e.removeListLocal(kind, value)
		e.journalWrite(ctx, kind.String(), models.WriteOpDelete, value, nil)
		return nil
	}

	// An emptied list publishes an empty snapshot, which keeps the previous
	// values, so the removal is applied locally as well.
	e.removeListLocal(kind, value)
	metrics.IncMutation(kind.String(), models.WriteOpDelete)
	return nil
}

func (e *Engine) removeListLocal(kind domain.ListKind, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	values := e.lists[kind]
	for i, v := range values {
		if v == value {
			e.lists[kind] = append(values[:i], values[i+1:]...)
			return
		}
	}
}
