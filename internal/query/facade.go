package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/armature-app/armature/internal/authn"
	"github.com/armature-app/armature/internal/observability"
	"github.com/armature-app/armature/internal/shared"
	"github.com/armature-app/armature/internal/visibility"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Facade composes the access predicate with caller filters, sort and
// pagination into one fetch. Caller filters can only narrow visibility:
// they are ANDed onto the predicate, never merged with OR.
type Facade struct {
	store   Store
	denials *shared.DenialLogger
	logger  *slog.Logger
	metrics *observability.Metrics
	maxPage int
}

// NewFacade constructs a Facade. denials may be nil in tests.
func NewFacade(store Store, denials *shared.DenialLogger, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{store: store, denials: denials, logger: logger, maxPage: maxPageSize}
}

// WithMetrics attaches the metrics registry and returns the facade.
func (f *Facade) WithMetrics(metrics *observability.Metrics) *Facade {
	f.metrics = metrics
	return f
}

// Fetch returns one redacted page of the resource class visible to the
// principal. A class-level denial is a typed Forbidden error, never an
// empty-but-successful list.
func (f *Facade) Fetch(ctx context.Context, principal *authn.Principal, class visibility.Class, params Params) (Result, error) {
	desc, ok := visibility.Lookup(class)
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown resource class %q", shared.ErrQuery, class)
	}

	pred := visibility.For(principal, class)
	if pred.Kind == visibility.KindDenied {
		f.recordDenial(ctx, principal, class, "list")
		return Result{}, shared.ErrForbidden
	}

	if err := validateParams(desc, params); err != nil {
		return Result{}, err
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > f.maxPage {
		pageSize = f.maxPage
	}

	where, args := composeWhere(pred, params.Filters)

	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", desc.Table, where)
	total, err := f.store.Count(ctx, countSQL, args)
	if err != nil {
		return Result{}, fmt.Errorf("query: count %s: %w", class, err)
	}

	selectSQL := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		strings.Join(desc.Columns, ", "), desc.Table, where,
		orderClause(params), pageSize, (page-1)*pageSize)
	records, err := f.store.Select(ctx, selectSQL, args)
	if err != nil {
		return Result{}, fmt.Errorf("query: select %s: %w", class, err)
	}

	redacted := visibility.RedactAll(principal, class, records)
	f.countRedactions(records, redacted)

	pagination := shared.NewPagination(page, pageSize, total)
	return Result{
		Records: redacted,
		PageInfo: PageInfo{
			Total:    total,
			Page:     pagination.Page,
			PageSize: pagination.PerPage,
			HasNext:  pagination.HasNext(),
			HasPrev:  pagination.HasPrev(),
		},
	}, nil
}

// FetchOne returns a single redacted record by id. For records outside the
// principal's predicate it reports not found, revealing nothing about
// whether the record exists.
func (f *Facade) FetchOne(ctx context.Context, principal *authn.Principal, class visibility.Class, id uuid.UUID) (visibility.Record, error) {
	desc, ok := visibility.Lookup(class)
	if !ok {
		return nil, fmt.Errorf("%w: unknown resource class %q", shared.ErrQuery, class)
	}

	pred := visibility.For(principal, class)
	if pred.Kind == visibility.KindDenied {
		f.recordDenial(ctx, principal, class, "get")
		return nil, shared.ErrForbidden
	}

	predSQL, args := pred.SQL(1)
	args = append(args, id)
	sqlText := fmt.Sprintf("SELECT %s FROM %s WHERE %s AND id = $%d",
		strings.Join(desc.Columns, ", "), desc.Table, predSQL, len(args))

	records, err := f.store.Select(ctx, sqlText, args)
	if err != nil {
		return nil, fmt.Errorf("query: get %s: %w", class, err)
	}
	if len(records) == 0 {
		return nil, shared.ErrNotFound
	}
	redacted := visibility.Redact(principal, class, records[0])
	f.metrics.RedactedFields(len(records[0]) - len(redacted))
	return redacted, nil
}

// Visible reports whether the principal's predicate admits the record,
// evaluated in memory. Write paths use it before mutating.
func (f *Facade) Visible(principal *authn.Principal, class visibility.Class, record visibility.Record) bool {
	return visibility.For(principal, class).Matches(record)
}

func (f *Facade) countRedactions(before, after []visibility.Record) {
	removed := 0
	for i := range after {
		removed += len(before[i]) - len(after[i])
	}
	f.metrics.RedactedFields(removed)
}

func (f *Facade) recordDenial(ctx context.Context, principal *authn.Principal, class visibility.Class, action string) {
	f.metrics.Denial(string(class))
	if f.denials == nil || principal == nil {
		return
	}
	denial := shared.Denial{
		PrincipalID:   principal.ID,
		Role:          string(principal.Role),
		ResourceClass: string(class),
		Action:        action,
	}
	if err := f.denials.Record(ctx, denial); err != nil {
		f.logger.Warn("record denial", slog.Any("error", err))
	}
}

func validateParams(desc visibility.Descriptor, params Params) error {
	for key := range params.Filters {
		if !contains(desc.Filterable, key) {
			return fmt.Errorf("%w: filter %q not allowed for %s", shared.ErrQuery, key, desc.Class)
		}
	}
	if params.Sort != "" && !contains(desc.Sortable, params.Sort) {
		return fmt.Errorf("%w: sort field %q not allowed for %s", shared.ErrQuery, params.Sort, desc.Class)
	}
	if params.Dir != "" && params.Dir != SortAsc && params.Dir != SortDesc {
		return fmt.Errorf("%w: sort direction %q", shared.ErrQuery, params.Dir)
	}
	return nil
}

// composeWhere renders "predicate AND filter AND filter ..." with
// deterministic filter ordering.
func composeWhere(pred visibility.Predicate, filters map[string]string) (string, []any) {
	where, args := pred.SQL(1)

	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, filters[key])
		where += fmt.Sprintf(" AND %s = $%d", key, len(args))
	}
	return where, args
}

func orderClause(params Params) string {
	if params.Sort == "" {
		return "created_at DESC, id"
	}
	dir := "ASC"
	if params.Dir == SortDesc {
		dir = "DESC"
	}
	// Secondary key keeps pagination stable across equal sort values.
	return fmt.Sprintf("%s %s, id", params.Sort, dir)
}

func contains(allowed []string, value string) bool {
	for _, v := range allowed {
		if v == value {
			return true
		}
	}
	return false
}
