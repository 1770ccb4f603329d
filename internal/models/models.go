// Package models holds the mapped tables served by the server. Each model
// registers its resource with the core registry in init, so importing the
// package is enough to mount them.
package models

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/JonMunkholm/restfab/internal/core"
)

//go:embed schema.sql
var ddl string

// DDL returns the CREATE statements for every model table.
func DDL() string { return ddl }

// Migrate creates the model tables if they do not exist.
func Migrate(ctx context.Context, db core.DBTX) error {
	if _, err := db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate models: %w", err)
	}
	return nil
}
