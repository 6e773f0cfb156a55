package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/port"
)

var crmTracer = otel.Tracer("service/crm")

// OperationRecorder observes service operation latency.
// *observability.Metrics satisfies it.
type OperationRecorder interface {
	RecordOperation(operation string, d time.Duration)
}

// CRMService manages customers, deals and interactions.
type CRMService struct {
	store   port.CRMStore
	metrics OperationRecorder
	logger  *zap.Logger
	now     func() time.Time
}

// NewCRMService creates a CRM service. metrics may be nil.
func NewCRMService(store port.CRMStore, metrics OperationRecorder, logger *zap.Logger) *CRMService {
	return &CRMService{store: store, metrics: metrics, logger: logger, now: time.Now}
}

// ============================================================
// Customers
// ============================================================

func validateCustomer(in *domain.CustomerInput) (*domain.Customer, error) {
	c := &domain.Customer{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:   strings.TrimSpace(in.Phone),
		Company: trimmedOrNil(in.Company),
		Address: trimmedOrNil(in.Address),
		Status:  in.Status,
		Notes:   trimmedOrNil(in.Notes),
	}
	if c.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "Nome é obrigatório"}
	}
	if c.Email == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "E-mail é obrigatório"}
	}
	if !govalidator.IsEmail(c.Email) {
		return nil, &domain.ErrValidation{Field: "email", Message: "E-mail inválido"}
	}
	if c.Phone == "" {
		return nil, &domain.ErrValidation{Field: "phone", Message: "Telefone é obrigatório"}
	}
	if c.Status == "" {
		c.Status = domain.CustomerStatusAtivo
	}
	if !c.Status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: "Status inválido"}
	}
	return c, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func (s *CRMService) CreateCustomer(ctx context.Context, in *domain.CustomerInput) (*domain.Customer, error) {
	ctx, span := crmTracer.Start(ctx, "CRMService.CreateCustomer")
	defer span.End()

	c, err := validateCustomer(in)
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateCustomer(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.logger.Info("customer created", zap.String("customer_id", created.ID))
	return created, nil
}

func (s *CRMService) UpdateCustomer(ctx context.Context, id string, in *domain.CustomerInput) (*domain.Customer, error) {
	ctx, span := crmTracer.Start(ctx, "CRMService.UpdateCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", id))

	c, err := validateCustomer(in)
	if err != nil {
		return nil, err
	}
	c.ID = id
	updated, err := s.store.UpdateCustomer(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return updated, nil
}

func (s *CRMService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	ctx, span := crmTracer.Start(ctx, "CRMService.GetCustomer")
	defer span.End()

	return s.store.GetCustomer(ctx, id)
}

// DeleteCustomer removes the customer with its interactions and deals atomically.
func (s *CRMService) DeleteCustomer(ctx context.Context, id string) error {
	ctx, span := crmTracer.Start(ctx, "CRMService.DeleteCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", id))

	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	s.logger.Info("customer deleted", zap.String("customer_id", id))
	return nil
}

// ListCustomers filters by a case-insensitive substring of name, e-mail or phone.
func (s *CRMService) ListCustomers(ctx context.Context, search string) ([]domain.Customer, error) {
	ctx, span := crmTracer.Start(ctx, "CRMService.ListCustomers")
	defer span.End()

	return s.store.ListCustomers(ctx, strings.TrimSpace(search))
}

// ============================================================
// Deals
// ============================================================

// ParseAmount parses a non-negative currency amount. Both "1200.50" and
// "1200,50" are accepted. The result is rounded to cents.
func ParseAmount(raw domain.AmountText) (float64, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return 0, &domain.ErrValidation{Field: "value", Message: "Valor é obrigatório"}
	}
	if strings.Contains(text, ",") && !strings.Contains(text, ".") {
		text = strings.Replace(text, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &domain.ErrValidation{Field: "value", Message: "Valor deve ser numérico"}
	}
	if v < 0 {
		return 0, &domain.ErrValidation{Field: "value", Message: "Valor não pode ser negativo"}
	}
	if v > domain.MaxAmount {
		return 0, &domain.ErrValidation{Field: "value", Message: "Valor acima do limite permitido"}
	}
	cents := domain.ToCents(v)
	if cents > domain.ToCents(domain.MaxAmount) {
		return 0, &domain.ErrValidation{Field: "value", Message: "Valor acima do limite permitido"}
	}
	return domain.FromCents(cents), nil
}

func validateDeal(in *domain.DealInput) (*domain.Deal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, &domain.ErrValidation{Field: "title", Message: "Título é obrigatório"}
	}
	value, err := ParseAmount(in.Value)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = domain.DealStatusProspeccao
	}
	if !status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: "Status inválido"}
	}

	closeDate := trimmedOrNil(in.ExpectedCloseDate)
	if closeDate != nil {
		if _, err := time.Parse(time.DateOnly, *closeDate); err != nil {
			return nil, &domain.ErrValidation{Field: "expected_close_date", Message: "Data deve estar no formato AAAA-MM-DD"}
		}
	}

	return &domain.Deal{
		Title:             title,
		Value:             value,
		Status:            status,
		ExpectedCloseDate: closeDate,
		Notes:             trimmedOrNil(in.Notes),
	}, nil
}

// CreateDeal opens a deal under an existing customer.
func (s *CRMService) CreateDeal(ctx context.Context, customerID string, in *domain.DealInput) (*domain.Deal, error) {
	ctx, span := crmTracer.Start(ctx, "CRMService.CreateDeal")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	d, err := validateDeal(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	d.CustomerID = customerID
	created, err := s.store.CreateDeal(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("create deal: %w", err)
	}
	s.logger.Info("deal created", zap.String("deal_id", created.ID), zap.String("customer_id", customerID))
	return created, nil
}

// UpdateDeal replaces the editable fields. Any stage may move to any other.
func (s *CRMService) UpdateDeal(ctx context.Context, id string, in *domain.DealInput) (*domain.Deal, error) {
	ctx, span := crmTracer.Start(ctx, "CRMService.UpdateDeal")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", id))

	d, err := validateDeal(in)
	if err != nil {
		return nil, err
	}
	current, err := s.store.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}

	d.ID = id
	d.CustomerID = current.CustomerID
	updated, err := s.store.UpdateDeal(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("update deal: %w", err)
	}
	if updated.Status != current.Status {
		s.logger.Info("deal stage changed",
			zap.String("deal_id", id),
			zap.String("from", string(current.Status)),
			zap.String("to", string(updated.Status)),
		)
	}
	return updated, nil
}

func (s *CRMService) GetDeal(ctx context.Context, id string) (*domain.DealView, error) {
	ctx, span := crmTracer.Start(ctx, "CRMService.GetDeal")
	defer span.End()

	return s.store.GetDeal(ctx, id)
}

func (s *CRMService) DeleteDeal(ctx context.Context, id string) error {
	ctx, span := crmTracer.Start(ctx, "CRMService.DeleteDeal")
	defer span.End()

	if err := s.store.DeleteDeal(ctx, id); err != nil {
		return fmt.Errorf("delete deal: %w", err)
	}
	return nil
}

// ListDeals lists deals joined with customer fields, optionally filtered.
func (s *CRMService) ListDeals(ctx context.Context, filter domain.DealFilter) ([]domain.DealView, error) {
	ctx, span := crmTracer.Start(ctx, "CRMService.ListDeals")
	defer span.End()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, &domain.ErrValidation{Field: "status", Message: "Status inválido"}
	}
	return s.store.ListDeals(ctx, filter)
}

// ============================================================
// Interactions
// ============================================================

func (s *CRMService) CreateInteraction(ctx context.Context, customerID string, actor domain.Actor, in *domain.InteractionInput) (*domain.Interaction, error) {
	ctx, span := crmTracer.Start(ctx, "CRMService.CreateInteraction")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !in.Type.Valid() {
		return nil, &domain.ErrValidation{Field: "type", Message: "Tipo de interação inválido"}
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, &domain.ErrValidation{Field: "description", Message: "Descrição é obrigatória"}
	}
	if _, err := s.store.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	date := s.now().UTC()
	if in.Date != nil {
		date = in.Date.UTC()
	}

	created, err := s.store.CreateInteraction(ctx, &domain.Interaction{
		CustomerID:  customerID,
		Type:        in.Type,
		Description: description,
		Date:        date,
		CreatedBy:   actor.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("create interaction: %w", err)
	}
	return created, nil
}

// ListInteractions returns a customer's interactions, newest first.
func (s *CRMService) ListInteractions(ctx context.Context, customerID string) ([]domain.InteractionView, error) {
	ctx, span := crmTracer.Start(ctx, "CRMService.ListInteractions")
	defer span.End()

	return s.store.ListInteractions(ctx, customerID)
}

// ============================================================
// Dashboard
// ============================================================

// ComputeStats folds all customers and deals into the dashboard aggregate.
// Amounts are summed in cents.
func (s *CRMService) ComputeStats(ctx context.Context) (*domain.DashboardStats, error) {
	ctx, span := crmTracer.Start(ctx, "CRMService.ComputeStats")
	defer span.End()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperation("crm.compute_stats", time.Since(start))
		}
	}()

	var (
		customers []domain.Customer
		deals     []domain.DealView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		customers, err = s.store.ListCustomers(gctx, "")
		return err
	})
	g.Go(func() error {
		var err error
		deals, err = s.store.ListDeals(gctx, domain.DealFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dashboard data: %w", err)
	}

	return foldStats(customers, deals), nil
}

func foldStats(customers []domain.Customer, deals []domain.DealView) *domain.DashboardStats {
	stats := &domain.DashboardStats{
		TotalCustomers:    len(customers),
		CustomersByStatus: make(map[domain.CustomerStatus]int, len(domain.CustomerStatuses)),
		TotalDeals:        len(deals),
		DealsByStatus:     make(map[domain.DealStatus]domain.DealStageStat, len(domain.DealStatuses)),
	}
	for _, st := range domain.CustomerStatuses {
		stats.CustomersByStatus[st] = 0
	}
	for _, c := range customers {
		stats.CustomersByStatus[c.Status]++
	}

	stageCents := make(map[domain.DealStatus]int64, len(domain.DealStatuses))
	stageCount := make(map[domain.DealStatus]int, len(domain.DealStatuses))
	var pipelineCents int64
	for _, d := range deals {
		cents := domain.ToCents(d.Value)
		stageCents[d.Status] += cents
		stageCount[d.Status]++
		if d.Status != domain.DealStatusFechadoGanho && d.Status != domain.DealStatusFechadoPerdido {
			pipelineCents += cents
		}
	}
	for _, st := range domain.DealStatuses {
		stats.DealsByStatus[st] = domain.DealStageStat{Count: stageCount[st], Value: domain.FromCents(stageCents[st])}
	}

	stats.PipelineValue = domain.FromCents(pipelineCents)
	stats.TotalRevenue = domain.FromCents(stageCents[domain.DealStatusFechadoGanho])
	return stats
}
