package models

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/restfab/internal/core"
	"github.com/JonMunkholm/restfab/internal/schema"
)

// Customer is an account keyed by a server-generated UUID.
type Customer struct {
	ID        uuid.UUID `db:"id" crud:"pk,default"`
	Email     string    `db:"email" crud:"unique"`
	Name      string    `db:"name"`
	State     *string   `db:"state"`
	Balance   float64   `db:"balance" crud:"default"`
	Active    bool      `db:"active" crud:"default"`
	CreatedAt time.Time `db:"created_at" crud:"default"`
}

// CustomerModel is the reflected Customer mapping.
var CustomerModel = schema.MustReflect(Customer{})

func init() {
	core.Register(core.Definition{
		Label:          "Customers",
		Model:          CustomerModel,
		ReadOnly:       []string{"created_at"},
		UniqueIdentity: true,
		Preparer:       PrepareCustomers,
	})
}

// PrepareCustomers lower-cases emails and turns US state names into their
// postal codes before a CSV import is written.
func PrepareCustomers(_ context.Context, _ core.DBTX, rows []schema.Values, _ *core.Accessor) ([]schema.Values, error) {
	for _, row := range rows {
		if email, ok := row["email"].(string); ok {
			row["email"] = strings.ToLower(strings.TrimSpace(email))
		}
		if state, ok := row["state"].(string); ok {
			row["state"] = NormalizeUSState(state)
		}
	}
	return rows, nil
}
