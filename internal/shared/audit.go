package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Denial represents a record stored in access_denials. Every Forbidden
// outcome is persisted for audit.
type Denial struct {
	PrincipalID   uuid.UUID
	Role          string
	ResourceClass string
	Action        string
	Meta          map[string]any
	At            time.Time
}

// DenialLogger writes records into access_denials.
type DenialLogger struct {
	pool *pgxpool.Pool
}

// NewDenialLogger returns a new DenialLogger.
func NewDenialLogger(pool *pgxpool.Pool) *DenialLogger {
	return &DenialLogger{pool: pool}
}

// Record persists the denial entry.
func (l *DenialLogger) Record(ctx context.Context, d Denial) error {
	if l == nil {
		return errors.New("denial logger not initialised")
	}
	if d.PrincipalID == uuid.Nil || d.ResourceClass == "" || d.Action == "" {
		return errors.New("denial log requires principal/resource_class/action")
	}
	metaJSON, err := json.Marshal(d.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO access_denials (principal_id, role, resource_class, action, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`, d.PrincipalID, d.Role, d.ResourceClass, d.Action, metaJSON, d.At)
	return err
}
