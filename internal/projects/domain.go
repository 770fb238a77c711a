package projects

import (
	"time"

	"github.com/google/uuid"
)

// CreateInput is the payload for registering a new project.
type CreateInput struct {
	Code             string     `json:"code" validate:"required,max=32"`
	Name             string     `json:"name" validate:"required,max=160"`
	Status           string     `json:"status" validate:"omitempty,oneof=draft active on_hold closed"`
	ProjectManagerID uuid.UUID  `json:"project_manager_id" validate:"required"`
	ClientID         uuid.UUID  `json:"client_id" validate:"required"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
	ContractValue    *float64   `json:"contract_value" validate:"omitempty,gte=0"`
	BudgetCost       *float64   `json:"budget_cost" validate:"omitempty,gte=0"`
}

// UpdateInput is the payload for changing an existing project. Ownership
// and client linkage are not updatable through this path.
type UpdateInput struct {
	Name          string     `json:"name" validate:"required,max=160"`
	Status        string     `json:"status" validate:"required,oneof=draft active on_hold closed"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	ContractValue *float64   `json:"contract_value" validate:"omitempty,gte=0"`
	BudgetCost    *float64   `json:"budget_cost" validate:"omitempty,gte=0"`
}
