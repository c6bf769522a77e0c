package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/crmkit/workflow-engine/internal/infrastructure/persistence/sqlite"
)

// executor interface covers both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// pick returns the open transaction from ctx when present, the pool otherwise.
func pick(ctx context.Context, db *sql.DB) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return db
}

// marshalStrings encodes a string slice as a JSON column value.
func marshalStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal string list: %w", err)
	}
	return string(data), nil
}

func unmarshalStrings(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("unmarshal string list: %w", err)
	}
	return values, nil
}
