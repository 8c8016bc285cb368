package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/finsync/internal/common"
	"github.com/Veraticus/finsync/internal/model"
)

// ToRemote converts a local JSON document into a remote row owned by userID.
// Keys without a mapping are passed through unchanged.
func ToRemote(table model.Table, doc json.RawMessage, userID string) (Row, error) {
	m, err := For(table)
	if err != nil {
		return nil, err
	}

	local, err := decode(doc)
	if err != nil {
		return nil, fmt.Errorf("decode %s document: %w", table, err)
	}

	row := make(Row, len(local)+1)
	for _, f := range m.Fields {
		if v, ok := takePath(local, f.Local); ok {
			row[f.Remote] = v
		}
	}
	for _, key := range m.LocalOnly {
		delete(local, key)
	}
	for k, v := range local {
		row[k] = v
	}

	if _, ok := row.ID(); !ok {
		return nil, fmt.Errorf("%w: %s document has no id", common.ErrInvalidEntity, table)
	}
	if userID != "" {
		row[UserColumn] = userID
	}

	return row, nil
}

// FromRemote converts a remote row into a local JSON document.
// Null columns are omitted.
func FromRemote(table model.Table, row Row) (json.RawMessage, error) {
	m, err := For(table)
	if err != nil {
		return nil, err
	}
	if _, ok := row.ID(); !ok {
		return nil, fmt.Errorf("%w: %s row has no id", common.ErrInvalidEntity, table)
	}

	remaining := make(map[string]any, len(row))
	for k, v := range row {
		remaining[k] = v
	}

	local := make(map[string]any, len(row))
	for _, f := range m.Fields {
		v, ok := remaining[f.Remote]
		if !ok {
			continue
		}
		delete(remaining, f.Remote)
		if v == nil {
			continue
		}
		setPath(local, f.Local, v)
	}
	delete(remaining, UserColumn)
	for _, col := range m.RemoteOnly {
		delete(remaining, col)
	}
	for k, v := range remaining {
		if v == nil {
			continue
		}
		local[k] = v
	}

	doc, err := json.Marshal(local)
	if err != nil {
		return nil, fmt.Errorf("encode %s document: %w", table, err)
	}
	return doc, nil
}

func decode(doc json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: empty document", common.ErrInvalidEntity)
	}
	return out, nil
}

// takePath removes and returns the value at a dotted path. Parent objects
// left empty by the removal are removed as well.
func takePath(obj map[string]any, path string) (any, bool) {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		v, ok := obj[head]
		if ok {
			delete(obj, head)
		}
		return v, ok
	}

	child, ok := obj[head].(map[string]any)
	if !ok {
		return nil, false
	}
	v, found := takePath(child, rest)
	if len(child) == 0 {
		delete(obj, head)
	}
	return v, found
}

func setPath(obj map[string]any, path string, v any) {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		obj[head] = v
		return
	}

	child, ok := obj[head].(map[string]any)
	if !ok {
		child = make(map[string]any)
		obj[head] = child
	}
	setPath(child, rest, v)
}
