// Package certificate issues quality certificates for production orders and
// runs their customer-approval lifecycle.
package certificate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/qcyard/internal/clock"
	"github.com/zulandar/qcyard/internal/metrics"
	"github.com/zulandar/qcyard/internal/models"
	"github.com/zulandar/qcyard/internal/notify"
	"github.com/zulandar/qcyard/internal/qcerr"
	"github.com/zulandar/qcyard/internal/sequence"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Validity periods by certificate type.
const (
	QualityValidity = 365 * 24 * time.Hour
	DefaultValidity = 30 * 24 * time.Hour
)

// Prefixes maps certificate types to their number prefixes.
var Prefixes = map[models.CertificateType]string{
	models.CertificateQuality:    "QCC",
	models.CertificateCompliance: "CMP",
	models.CertificateTest:       "TST",
}

// Standards and statements every certificate carries.
var (
	complianceStandards = []string{
		"ISO 9001:2015 Quality Management Systems",
		"ISO 14001:2015 Environmental Management Systems",
	}
	complianceStatements = []string{
		"All production stages listed were inspected against documented checklists.",
		"Materials used conform to the approved specification for this order.",
		"Non-conformances found during inspection were corrected before release.",
	}
)

// OrderDirectory resolves production orders.
type OrderDirectory interface {
	Get(ctx context.Context, id string) (*models.ProductionOrder, error)
}

// DeliveryTrigger starts the delivery process for an approved order.
type DeliveryTrigger interface {
	StartDelivery(ctx context.Context, orderID, certificateID string) error
}

// Options configures a Service. DB and Orders are required.
type Options struct {
	DB       *gorm.DB
	Orders   OrderDirectory
	Delivery DeliveryTrigger
	Notifier notify.Notifier
	Counter  sequence.Counter
	Clock    clock.Clock
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Service implements certificate issuance and approval.
type Service struct {
	db       *gorm.DB
	orders   OrderDirectory
	delivery DeliveryTrigger
	notifier notify.Notifier
	counter  sequence.Counter
	clock    clock.Clock
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewService returns a Service, filling unset options with defaults.
func NewService(opts Options) *Service {
	s := &Service{
		db:       opts.DB,
		orders:   opts.Orders,
		delivery: opts.Delivery,
		notifier: opts.Notifier,
		counter:  opts.Counter,
		clock:    opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
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
	return s
}

// IssueOpts holds parameters for issuing a certificate.
type IssueOpts struct {
	ProductionOrderID        string
	Type                     models.CertificateType
	IssuedBy                 string
	CustomerApprovalRequired bool
}

// Issue builds a certificate from every PASSED inspection of the order.
// Without customer approval the certificate is approved immediately by the
// issuer; otherwise it awaits the customer's decision.
func (s *Service) Issue(ctx context.Context, opts IssueOpts) (*models.Certificate, error) {
	if opts.ProductionOrderID == "" {
		return nil, qcerr.New(qcerr.ErrMissingField, "certificate: production order id is required")
	}
	if opts.IssuedBy == "" {
		return nil, qcerr.New(qcerr.ErrMissingField, "certificate: issuer is required")
	}
	prefix, ok := Prefixes[opts.Type]
	if !ok {
		return nil, qcerr.New(qcerr.ErrInvalidCertificateType, "certificate: unknown type %q", opts.Type)
	}

	order, err := s.orders.Get(ctx, opts.ProductionOrderID)
	if err != nil {
		return nil, fmt.Errorf("certificate: lookup order %s: %w", opts.ProductionOrderID, err)
	}
	if order == nil {
		return nil, qcerr.New(qcerr.ErrProductionOrderNotFound, "certificate: production order not found: %s", opts.ProductionOrderID)
	}

	now := s.clock.Now().UTC()
	cert := &models.Certificate{
		ID:                       uuid.NewString(),
		ProductionOrderID:        order.ID,
		Type:                     opts.Type,
		IssuedDate:               now,
		ValidUntil:               now.Add(validity(opts.Type)),
		IssuedBy:                 opts.IssuedBy,
		CustomerApprovalRequired: opts.CustomerApprovalRequired,
		State:                    models.CertificateAwaitingApproval,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if !opts.CustomerApprovalRequired {
		issuer := opts.IssuedBy
		cert.State = models.CertificateApproved
		cert.ApprovedBy = &issuer
		cert.ResolvedAt = &now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var passed []models.Inspection
		if err := tx.Where("production_order_id = ? AND status = ?", order.ID, models.InspectionPassed).
			Order("created_at ASC, inspection_number ASC").Find(&passed).Error; err != nil {
			return fmt.Errorf("certificate: load inspections for %s: %w", order.ID, err)
		}
		if len(passed) == 0 {
			return qcerr.New(qcerr.ErrNoPassedInspections, "certificate: order %s has no passed inspections", order.OrderNumber)
		}

		ids := make([]string, 0, len(passed))
		for _, insp := range passed {
			ids = append(ids, insp.ID)
		}
		cert.InspectionIDs = ids
		cert.Payload = datatypes.NewJSONType(BuildPayload(order, passed))

		number, err := sequence.Generate(ctx, s.counter, tx, prefix, now)
		if err != nil {
			return err
		}
		cert.CertificateNumber = number
		if err := tx.Create(cert).Error; err != nil {
			return fmt.Errorf("certificate: create for %s: %w", order.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CertificateTransition(string(cert.Type), string(cert.State))
	s.log.Info("certificate issued",
		zap.String("certificate", cert.CertificateNumber),
		zap.String("order", order.OrderNumber),
		zap.String("type", string(cert.Type)),
		zap.String("state", string(cert.State)),
		zap.Int("inspections", len(cert.InspectionIDs)))
	return cert, nil
}

// BuildPayload summarizes passed inspections of an order.
func BuildPayload(order *models.ProductionOrder, passed []models.Inspection) models.CertificatePayload {
	var (
		scoreSum   int
		scored     int
		stages     []models.Stage
		inspectors []string
		reqs       []string
		summary    []models.InspectionSummary
		seenStage  = map[models.Stage]bool{}
		seenInsp   = map[string]bool{}
		seenReq    = map[string]bool{}
	)
	for _, insp := range passed {
		entry := models.InspectionSummary{
			InspectionID:     insp.ID,
			InspectionNumber: insp.InspectionNumber,
			Stage:            insp.Stage,
			InspectedAt:      insp.InspectionDate,
		}
		if insp.OverallScore != nil {
			scoreSum += *insp.OverallScore
			scored++
			entry.Score = *insp.OverallScore
		}
		if !seenStage[insp.Stage] {
			seenStage[insp.Stage] = true
			stages = append(stages, insp.Stage)
		}
		if insp.InspectorID != nil {
			entry.InspectorID = *insp.InspectorID
			if !seenInsp[*insp.InspectorID] {
				seenInsp[*insp.InspectorID] = true
				inspectors = append(inspectors, *insp.InspectorID)
			}
		}
		for _, r := range insp.CustomerRequirements {
			if !seenReq[r] {
				seenReq[r] = true
				reqs = append(reqs, r)
			}
		}
		summary = append(summary, entry)
	}

	avg := 0.0
	if scored > 0 {
		avg = math.Round(float64(scoreSum)/float64(scored)*100) / 100
	}
	return models.CertificatePayload{
		ProductDetails: models.ProductDetails{
			OrderNumber:  order.OrderNumber,
			Quantity:     order.Quantity,
			CustomerName: order.CustomerName,
		},
		QualityResults: models.QualityResults{
			AverageScore:     avg,
			TotalInspections: len(passed),
			PassedStages:     nonNil(stages),
			Inspectors:       nonNil(inspectors),
		},
		InspectionSummary: summary,
		ComplianceInfo: models.ComplianceInfo{
			Standards:  append([]string(nil), complianceStandards...),
			Statements: append([]string(nil), complianceStatements...),
		},
		CustomerRequirements: nonNil(reqs),
	}
}

// SubmitForApproval records that the certificate was sent to the customer
// and notifies listeners. The certificate keeps awaiting approval.
func (s *Service) SubmitForApproval(ctx context.Context, id, notes string) (*models.Certificate, error) {
	now := s.clock.Now().UTC()
	result := s.db.WithContext(ctx).Model(&models.Certificate{}).
		Where("id = ? AND state = ?", id, models.CertificateAwaitingApproval).
		Updates(map[string]interface{}{
			"submission_notes": notes,
			"submitted_at":     now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("certificate: submit %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		cert, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, qcerr.New(qcerr.ErrInvalidCertificateState,
			"certificate: %s cannot be submitted while %s", cert.CertificateNumber, cert.Status(now))
	}

	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifyBestEffort(ctx, notify.Event{
		Kind:     notify.KindCertificateSubmitted,
		Title:    fmt.Sprintf("Certificate %s submitted for customer approval", cert.CertificateNumber),
		Body:     notes,
		Severity: notify.SeverityInfo,
		Fields:   certificateFields(cert),
	})
	s.log.Info("certificate submitted", zap.String("certificate", cert.CertificateNumber))
	return cert, nil
}

// ProcessCustomerApproval resolves a certificate awaiting approval. The
// transition is a compare-and-swap on the state, so only the first decision
// is applied. Approval starts delivery; failures there are logged.
func (s *Service) ProcessCustomerApproval(ctx context.Context, id string, approved bool, approvedBy, comments string) (*models.Certificate, error) {
	if approvedBy == "" {
		return nil, qcerr.New(qcerr.ErrMissingField, "certificate: approver is required")
	}
	target := models.CertificateRejected
	if approved {
		target = models.CertificateApproved
	}

	now := s.clock.Now().UTC()
	result := s.db.WithContext(ctx).Model(&models.Certificate{}).
		Where("id = ? AND state = ?", id, models.CertificateAwaitingApproval).
		Updates(map[string]interface{}{
			"state":             target,
			"approved_by":       approvedBy,
			"approval_comments": comments,
			"resolved_at":       now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("certificate: resolve %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		cert, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if cert.State == models.CertificateApproved || cert.State == models.CertificateRejected {
			return nil, qcerr.New(qcerr.ErrApprovalAlreadyResolved,
				"certificate: %s already %s", cert.CertificateNumber, cert.CustomerApprovalStatus())
		}
		return nil, qcerr.New(qcerr.ErrInvalidCertificateState,
			"certificate: %s is %s, not awaiting approval", cert.CertificateNumber, cert.Status(now))
	}

	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.CertificateTransition(string(cert.Type), string(cert.State))

	evt := notify.Event{
		Kind:     notify.KindCertificateRejected,
		Title:    fmt.Sprintf("Certificate %s rejected by customer", cert.CertificateNumber),
		Body:     comments,
		Severity: notify.SeverityWarning,
		Fields:   certificateFields(cert),
	}
	if approved {
		evt.Kind = notify.KindCertificateApproved
		evt.Title = fmt.Sprintf("Certificate %s approved by customer", cert.CertificateNumber)
		evt.Severity = notify.SeveritySuccess
		s.startDelivery(ctx, cert)
	}
	s.notifyBestEffort(ctx, evt)
	s.log.Info("certificate resolved",
		zap.String("certificate", cert.CertificateNumber),
		zap.String("state", string(cert.State)),
		zap.String("by", approvedBy))
	return cert, nil
}

// Get returns a certificate by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, qcerr.New(qcerr.ErrCertificateNotFound, "certificate: not found: %s", id)
		}
		return nil, fmt.Errorf("certificate: get %s: %w", id, err)
	}
	return &cert, nil
}

// ListByOrder returns an order's certificates, oldest first.
func (s *Service) ListByOrder(ctx context.Context, orderID string) ([]models.Certificate, error) {
	var certs []models.Certificate
	if err := s.db.WithContext(ctx).Where("production_order_id = ?", orderID).
		Order("created_at ASC, certificate_number ASC").Find(&certs).Error; err != nil {
		return nil, fmt.Errorf("certificate: list for %s: %w", orderID, err)
	}
	return certs, nil
}

func (s *Service) startDelivery(ctx context.Context, cert *models.Certificate) {
	if s.delivery == nil {
		return
	}
	if err := s.delivery.StartDelivery(ctx, cert.ProductionOrderID, cert.ID); err != nil {
		s.log.Warn("delivery trigger failed",
			zap.String("certificate", cert.CertificateNumber),
			zap.String("order", cert.ProductionOrderID),
			zap.Error(err))
	}
}

func (s *Service) notifyBestEffort(ctx context.Context, evt notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, evt); err != nil {
		s.log.Warn("notification failed", zap.String("kind", evt.Kind), zap.Error(err))
	}
}

func certificateFields(cert *models.Certificate) []notify.Field {
	return []notify.Field{
		{Name: "certificate", Value: cert.CertificateNumber, Short: true},
		{Name: "type", Value: string(cert.Type), Short: true},
		{Name: "order", Value: cert.ProductionOrderID, Short: true},
		{Name: "valid_until", Value: cert.ValidUntil.Format("2006-01-02"), Short: true},
	}
}

func validity(t models.CertificateType) time.Duration {
	if t == models.CertificateQuality {
		return QualityValidity
	}
	return DefaultValidity
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
