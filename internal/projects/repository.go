package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/armature-app/armature/internal/platform/db"
	"github.com/armature-app/armature/internal/platform/httpx"
	"github.com/armature-app/armature/internal/shared"
	"github.com/armature-app/armature/internal/visibility"
)

type Repository interface {
	Insert(ctx context.Context, input CreateInput) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) error
	// Raw returns the scoping columns of a project without visibility
	// filtering. Callers must check the predicate before acting on it.
	Raw(ctx context.Context, id uuid.UUID) (visibility.Record, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, input CreateInput) (uuid.UUID, error) {
	status := input.Status
	if status == "" {
		status = "draft"
	}
	id := uuid.New()
	now := time.Now()
	// The manager is enrolled as a member in the same transaction so the
	// membership arm of the predicate admits the project immediately.
	err := db.InWriteTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO projects (id, code, name, status, project_manager_id, client_id,
				start_date, end_date, contract_value, budget_cost, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`,
			id, input.Code, input.Name, status, input.ProjectManagerID, input.ClientID,
			input.StartDate, input.EndDate, input.ContractValue, input.BudgetCost, now); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO project_members (project_id, member_id, created_at)
			VALUES ($1, $2, $3)`,
			id, input.ProjectManagerID, now)
		return err
	})
	if err != nil {
		return uuid.Nil, mapPgError("insert project", err)
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, input UpdateInput) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE projects
		SET name = $1, status = $2, start_date = $3, end_date = $4,
			contract_value = $5, budget_cost = $6, updated_at = $7
		WHERE id = $8`,
		input.Name, input.Status, input.StartDate, input.EndDate,
		input.ContractValue, input.BudgetCost, time.Now(), id)
	if err != nil {
		return mapPgError("update project", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Raw(ctx context.Context, id uuid.UUID) (visibility.Record, error) {
	var managerID, clientID uuid.UUID
	err := r.db.QueryRow(ctx,
		`SELECT project_manager_id, client_id FROM projects WHERE id = $1`, id).
		Scan(&managerID, &clientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("projects: raw: %w", err)
	}
	return visibility.Record{
		"id":                 id,
		"project_manager_id": managerID,
		"client_id":          clientID,
	}, nil
}

func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: project code already in use", httpx.ErrDuplicate)
	}
	return fmt.Errorf("projects: %s: %w", op, err)
}
