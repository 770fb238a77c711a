package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/armature-app/armature/internal/policyaudit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypePrincipalInvalidate removes every cached entry for a
	// principal after a privilege change.
	TaskTypePrincipalInvalidate = "principal:invalidate"
	// TaskTypePolicyAudit re-checks the database policy scripts against
	// the in-process predicates.
	TaskTypePolicyAudit = "policy:audit"
)

// PrincipalInvalidatePayload identifies the principal whose cache
// entries must be dropped and why.
type PrincipalInvalidatePayload struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Reason      string    `json:"reason"`
}

// NewPrincipalInvalidateTask constructs an Asynq task.
func NewPrincipalInvalidateTask(payload PrincipalInvalidatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePrincipalInvalidate, data), nil
}

// Invalidator drops cached principal state.
type Invalidator interface {
	Invalidate(ctx context.Context, principalID uuid.UUID) error
}

// HandlePrincipalInvalidate returns the handler for invalidation tasks.
// The handler retries on failure; a privilege change must not be
// acknowledged while stale cache entries can still serve.
func HandlePrincipalInvalidate(inv Invalidator, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PrincipalInvalidatePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.PrincipalID == uuid.Nil {
			return asynq.SkipRetry
		}
		if err := inv.Invalidate(ctx, payload.PrincipalID); err != nil {
			logger.Error("principal invalidation failed",
				slog.String("principal_id", payload.PrincipalID.String()),
				slog.Any("error", err))
			return err
		}
		logger.Info("principal cache invalidated",
			slog.String("principal_id", payload.PrincipalID.String()),
			slog.String("reason", payload.Reason))
		return nil
	}
}

// NewPolicyAuditTask constructs the scheduled policy audit task.
func NewPolicyAuditTask() *asynq.Task {
	return asynq.NewTask(TaskTypePolicyAudit, nil)
}

// HandlePolicyAudit returns the handler for scheduled policy audits.
// Divergence is logged loudly but not retried; the policy file will not
// change between attempts.
func HandlePolicyAudit(policyFile string, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		raw, err := os.ReadFile(policyFile)
		if err != nil {
			logger.Error("policy audit: read policy file", slog.Any("error", err))
			return err
		}
		policies, err := policyaudit.ParsePolicies(string(raw))
		if err != nil {
			logger.Error("policy audit: parse policies", slog.Any("error", err))
			return asynq.SkipRetry
		}
		report := policyaudit.Audit(policies)
		for _, finding := range report.Findings {
			if finding.Verdict == policyaudit.Equivalent {
				continue
			}
			logger.Warn("policy finding",
				slog.String("class", string(finding.Class)),
				slog.String("table", finding.Table),
				slog.String("verdict", string(finding.Verdict)),
				slog.Any("details", finding.Details))
		}
		if report.HasDivergence() {
			logger.Error("policy audit found divergence", slog.Int("findings", len(report.Findings)))
		}
		return nil
	}
}
