// Package storage provides the local persistence layer: entity tables, the
// outbound mutation queue and change notification.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrInvalidRecord = errors.New("invalid record")
	ErrInvalidAction = errors.New("invalid queue action")
)

// IsNotFound reports whether err means a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTable guards every query that interpolates a table name.
func validateTable(table model.Table) error {
	if !table.Valid() {
		return fmt.Errorf("%w: %q", common.ErrUnknownTable, table)
	}
	return nil
}

func validateRecord(rec Record) error {
	if err := validateString(rec.ID, "id"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if !json.Valid(rec.Doc) {
		return fmt.Errorf("%w: %s is not valid JSON", ErrInvalidRecord, rec.ID)
	}

	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Doc, &probe); err != nil {
		return fmt.Errorf("%w: %s is not a JSON object", ErrInvalidRecord, rec.ID)
	}
	if probe.ID != rec.ID {
		return fmt.Errorf("%w: document id %q does not match key %q", ErrInvalidRecord, probe.ID, rec.ID)
	}
	return nil
}
