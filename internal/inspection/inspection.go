// Package inspection runs stage inspections from creation through scoring,
// and owns inspector assignment.
package inspection

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zulandar/qcyard/internal/checklist"
	"github.com/zulandar/qcyard/internal/clock"
	"github.com/zulandar/qcyard/internal/metrics"
	"github.com/zulandar/qcyard/internal/models"
	"github.com/zulandar/qcyard/internal/qcerr"
	"github.com/zulandar/qcyard/internal/sequence"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultMaxPending is the number of PENDING inspections an inspector may
// hold before further assignments are refused.
const DefaultMaxPending = 10

// OrderDirectory resolves production orders and receives status updates.
type OrderDirectory interface {
	Get(ctx context.Context, id string) (*models.ProductionOrder, error)
	SetStatus(ctx context.Context, id, status string) error
}

// InspectorDirectory resolves inspector ids.
type InspectorDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// RequirementsLookup returns a customer's standing requirements.
type RequirementsLookup interface {
	ForCustomer(ctx context.Context, name string) ([]string, error)
}

// Options configures a Service. DB, Orders and Inspectors are required.
type Options struct {
	DB           *gorm.DB
	Orders       OrderDirectory
	Inspectors   InspectorDirectory
	Requirements RequirementsLookup
	Counter      sequence.Counter
	Clock        clock.Clock
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	MaxPending   int
}

// Service implements the inspection workflow.
type Service struct {
	db           *gorm.DB
	orders       OrderDirectory
	inspectors   InspectorDirectory
	requirements RequirementsLookup
	counter      sequence.Counter
	clock        clock.Clock
	log          *zap.Logger
	metrics      *metrics.Metrics
	maxPending   int
}

// NewService returns a Service, filling unset options with defaults.
func NewService(opts Options) *Service {
	s := &Service{
		db:           opts.DB,
		orders:       opts.Orders,
		inspectors:   opts.Inspectors,
		requirements: opts.Requirements,
		counter:      opts.Counter,
		clock:        opts.Clock,
		log:          opts.Logger,
		metrics:      opts.Metrics,
		maxPending:   opts.MaxPending,
	}
	if s.counter == nil {
		s.counter = sequence.DBCounter{}
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.maxPending <= 0 {
		s.maxPending = DefaultMaxPending
	}
	return s
}

// CreateOpts holds parameters for creating an inspection.
type CreateOpts struct {
	ProductionOrderID string
	Stage             models.Stage
	InspectorID       string
	// CustomerRequirements, when nil, is looked up from the order's customer.
	CustomerRequirements []string
	// ChecklistItems override or extend the stage template by checkpoint id.
	ChecklistItems []checklist.Item
}

// Create opens a PENDING inspection for a production order stage.
func (s *Service) Create(ctx context.Context, opts CreateOpts) (*models.Inspection, error) {
	if opts.ProductionOrderID == "" {
		return nil, qcerr.New(qcerr.ErrMissingField, "inspection: production order id is required")
	}
	if !opts.Stage.Valid() {
		return nil, qcerr.New(qcerr.ErrInvalidStage, "inspection: unknown stage %q", opts.Stage)
	}
	items, err := checklist.ForStage(opts.Stage, opts.ChecklistItems)
	if err != nil {
		return nil, qcerr.Wrap(qcerr.ErrInvalidChecklist, err, "inspection: invalid checklist")
	}

	order, err := s.orders.Get(ctx, opts.ProductionOrderID)
	if err != nil {
		return nil, fmt.Errorf("inspection: lookup order %s: %w", opts.ProductionOrderID, err)
	}
	if order == nil {
		return nil, qcerr.New(qcerr.ErrProductionOrderNotFound, "inspection: production order not found: %s", opts.ProductionOrderID)
	}
	if opts.InspectorID != "" {
		if err := s.requireInspector(ctx, opts.InspectorID); err != nil {
			return nil, err
		}
	}

	reqs := opts.CustomerRequirements
	if reqs == nil {
		reqs = s.lookupRequirements(ctx, order.CustomerName)
	}

	now := s.clock.Now().UTC()
	insp := &models.Inspection{
		ID:                   uuid.NewString(),
		ProductionOrderID:    order.ID,
		BranchID:             order.BranchID,
		Stage:                opts.Stage,
		Status:               models.InspectionPending,
		CustomerRequirements: reqs,
		Photos:               []string{},
		DeliveryDocuments:    []string{},
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if opts.InspectorID != "" {
		id := opts.InspectorID
		insp.InspectorID = &id
	}
	for i, it := range items {
		insp.ChecklistItems = append(insp.ChecklistItems, models.ChecklistItem{
			CheckpointID:  it.CheckpointID,
			Position:      i,
			Description:   it.Description,
			ExpectedValue: it.ExpectedValue,
			Status:        models.ItemPending,
			Photos:        []string{},
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := sequence.Generate(ctx, s.counter, tx, sequence.PrefixInspection, now)
		if err != nil {
			return err
		}
		insp.InspectionNumber = number
		if insp.InspectorID != nil {
			if err := s.reserveInspector(tx, *insp.InspectorID); err != nil {
				return err
			}
		}
		return tx.Create(insp).Error
	})
	if err != nil {
		var qe *qcerr.Error
		if errors.As(err, &qe) {
			return nil, err
		}
		return nil, fmt.Errorf("inspection: create for %s/%s: %w", opts.ProductionOrderID, opts.Stage, err)
	}

	s.metrics.InspectionCreated(string(insp.Stage))
	s.log.Info("inspection created",
		zap.String("inspection", insp.InspectionNumber),
		zap.String("order", insp.ProductionOrderID),
		zap.String("stage", string(insp.Stage)),
		zap.Int("checkpoints", len(insp.ChecklistItems)))
	return insp, nil
}

// Get returns an inspection with its checklist in position order.
func (s *Service) Get(ctx context.Context, id string) (*models.Inspection, error) {
	return Get(ctx, s.db, id)
}

// Get loads an inspection with its checklist.
func Get(ctx context.Context, db *gorm.DB, id string) (*models.Inspection, error) {
	var insp models.Inspection
	err := db.WithContext(ctx).
		Preload("ChecklistItems", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Where("id = ?", id).First(&insp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, qcerr.New(qcerr.ErrInspectionNotFound, "inspection: not found: %s", id)
		}
		return nil, fmt.Errorf("inspection: get %s: %w", id, err)
	}
	return &insp, nil
}

// ListFilters narrows List results. Zero values match everything.
type ListFilters struct {
	ProductionOrderID string
	Stage             models.Stage
	Status            models.InspectionStatus
	InspectorID       string
	BranchID          string
	Limit             int
}

// List returns inspections without checklists, newest first.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]models.Inspection, error) {
	q := s.db.WithContext(ctx).Model(&models.Inspection{})
	if filters.ProductionOrderID != "" {
		q = q.Where("production_order_id = ?", filters.ProductionOrderID)
	}
	if filters.Stage != "" {
		q = q.Where("stage = ?", filters.Stage)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.InspectorID != "" {
		q = q.Where("inspector_id = ?", filters.InspectorID)
	}
	if filters.BranchID != "" {
		q = q.Where("branch_id = ?", filters.BranchID)
	}
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}
	var out []models.Inspection
	if err := q.Order("created_at DESC, inspection_number DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("inspection: list: %w", err)
	}
	return out, nil
}

// PendingCount returns the number of PENDING inspections held by an inspector.
func (s *Service) PendingCount(ctx context.Context, inspectorID string) (int64, error) {
	counts, err := CountPending(ctx, s.db, inspectorID)
	if err != nil {
		return 0, err
	}
	return counts[inspectorID], nil
}

// CountPending returns PENDING inspection counts keyed by inspector. With no
// ids it counts every assigned inspector. This is the single workload
// primitive shared by assignment, dashboards and alerts.
func CountPending(ctx context.Context, db *gorm.DB, inspectorIDs ...string) (map[string]int64, error) {
	type row struct {
		InspectorID string
		Count       int64
	}
	q := db.WithContext(ctx).Model(&models.Inspection{}).
		Select("inspector_id, COUNT(*) AS count").
		Where("status = ? AND inspector_id IS NOT NULL", models.InspectionPending)
	if len(inspectorIDs) > 0 {
		q = q.Where("inspector_id IN ?", inspectorIDs)
	}
	var rows []row
	if err := q.Group("inspector_id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("inspection: count pending: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.InspectorID] = r.Count
	}
	return out, nil
}

func (s *Service) requireInspector(ctx context.Context, id string) error {
	ok, err := s.inspectors.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("inspection: lookup inspector %s: %w", id, err)
	}
	if !ok {
		return qcerr.New(qcerr.ErrInspectorNotFound, "inspection: inspector not found: %s", id)
	}
	return nil
}

// lookupRequirements fails open: a lookup error or unknown customer yields
// an empty list.
func (s *Service) lookupRequirements(ctx context.Context, customer string) []string {
	if s.requirements == nil || customer == "" {
		return []string{}
	}
	reqs, err := s.requirements.ForCustomer(ctx, customer)
	if err != nil {
		s.log.Warn("customer requirements lookup failed",
			zap.String("customer", customer), zap.Error(err))
		return []string{}
	}
	if reqs == nil {
		return []string{}
	}
	return reqs
}
