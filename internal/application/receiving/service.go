// Package receiving holds the application services that reconcile receptions
// against purchase orders.
package receiving

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erp/reconciliation/internal/domain/receiving"
	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/erp/reconciliation/internal/infrastructure/logger"
	"github.com/erp/reconciliation/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DocumentStorage issues presigned URLs for reception documents
type DocumentStorage interface {
	GenerateUploadURL(ctx context.Context, storageKey, contentType string, expiresIn time.Duration) (string, time.Time, error)
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
}

// ErrDocumentStorageUnavailable is returned when no document storage is configured
var ErrDocumentStorageUnavailable = shared.NewDomainError("STORAGE_UNAVAILABLE", "Document storage is not configured")

// Document reference errors
var (
	ErrInvalidFileName    = shared.NewDomainError("INVALID_FILE_NAME", "File name is required")
	ErrInvalidDocumentRef = shared.NewDomainError("INVALID_DOCUMENT_REF", "Unknown document reference")
)

// Config tunes the reconciliation service
type Config struct {
	SequencePrefix string
	SequenceWidth  int
	// MaxAttempts bounds how often a unit of work runs when it hits a concurrency conflict
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		SequencePrefix: "RCP-",
		SequenceWidth:  6,
		MaxAttempts:    3,
		BaseBackoff:    25 * time.Millisecond,
		MaxBackoff:     250 * time.Millisecond,
	}
}

// ReconciliationService submits receptions and drives their inspection
type ReconciliationService struct {
	scope      TransactionScope
	orders     receiving.OrderRepository
	receptions receiving.ReceptionRepository
	publisher  shared.EventPublisher
	documents  DocumentStorage
	metrics    *telemetry.ReconciliationMetrics
	cfg        Config
	now        func() time.Time
}

// NewReconciliationService creates a new ReconciliationService.
// orders and receptions serve read-only queries outside transactions.
func NewReconciliationService(
	scope TransactionScope,
	orders receiving.OrderRepository,
	receptions receiving.ReceptionRepository,
	cfg Config,
) *ReconciliationService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &ReconciliationService{
		scope:      scope,
		orders:     orders,
		receptions: receptions,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetEventPublisher sets the publisher used after commit
func (s *ReconciliationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetDocumentStorage enables presigned document uploads
func (s *ReconciliationService) SetDocumentStorage(documents DocumentStorage) {
	s.documents = documents
}

// SetMetrics sets the reconciliation metrics collector
func (s *ReconciliationService) SetMetrics(m *telemetry.ReconciliationMetrics) {
	s.metrics = m
}

// SubmitReception validates a delivery against the order's outstanding
// balance, stores it and updates the order status in one transaction.
func (s *ReconciliationService) SubmitReception(ctx context.Context, cmd SubmitReceptionCommand) (*ReceptionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "SubmitReception",
		telemetry.WithAttribute("order_id", cmd.OrderID.String()),
		telemetry.WithAttribute("line_count", len(cmd.Lines)),
	)
	defer span.End()
	start := time.Now()

	receptionType, err := receiving.ParseReceptionType(cmd.ReceptionType)
	if err != nil {
		return nil, s.fail(ctx, span, "SubmitReception", err)
	}
	if strings.TrimSpace(cmd.ActorID) == "" {
		return nil, s.fail(ctx, span, "SubmitReception", receiving.ErrMissingActor)
	}

	proposed := make([]receiving.ProposedLine, len(cmd.Lines))
	for i, l := range cmd.Lines {
		proposed[i] = receiving.ProposedLine{
			OrderLineID:      l.OrderLineID,
			ReceivedQuantity: l.ReceivedQuantity,
			AcceptedQuantity: l.AcceptedQuantity,
			RejectedQuantity: l.RejectedQuantity,
			Notes:            l.Notes,
		}
	}

	var (
		reception *receiving.Reception
		order     *receiving.Order
	)
	err = s.withRetry(ctx, "SubmitReception", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			o, err := repos.OrderRepo().FindByIDForUpdate(ctx, cmd.OrderID)
			if err != nil {
				return err
			}
			if err := o.EnsureReceivable(); err != nil {
				return err
			}

			history, err := repos.ReceptionRepo().FindByOrderID(ctx, o.ID)
			if err != nil {
				return err
			}
			ledger := receiving.NewLedger(o, history)

			validated, err := receiving.ValidateReception(o, ledger, proposed)
			if err != nil {
				return err
			}

			seq, err := repos.SequenceRepo().Next(ctx, receiving.SequenceCounterReception)
			if err != nil {
				return err
			}
			number := receiving.FormatSequenceNumber(s.cfg.SequencePrefix, seq, s.cfg.SequenceWidth)

			r, err := receiving.NewReception(o.ID, receptionType, number, cmd.ActorID, validated, cmd.Documents, cmd.Notes)
			if err != nil {
				return err
			}
			if err := repos.ReceptionRepo().Create(ctx, r); err != nil {
				return err
			}

			if o.ApplyStatus(receiving.ResolveOrderStatus(o, ledger.With(r))) {
				if err := repos.OrderRepo().UpdateStatus(ctx, o); err != nil {
					return err
				}
			}

			r.RecordSubmitted(o)
			reception, order = r, o
			return nil
		})
	})
	if err != nil {
		return nil, s.fail(ctx, span, "SubmitReception", err)
	}

	s.metrics.RecordSubmitted(ctx, string(reception.Type), time.Since(start))
	logger.L(ctx).Info("Reception submitted",
		zap.String("order_id", order.ID.String()),
		zap.String("reception_id", reception.ID.String()),
		zap.String("sequence_number", reception.SequenceNumber),
		zap.String("order_status", order.Status.String()),
	)
	telemetry.SetOK(span)

	s.publishPending(ctx, reception)
	return ToReceptionResponse(reception, order.Status), nil
}

// BeginInspection claims a pending reception for an inspector
func (s *ReconciliationService) BeginInspection(ctx context.Context, receptionID uuid.UUID, actorID string) (*ReceptionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "BeginInspection",
		telemetry.WithAttribute("reception_id", receptionID.String()),
	)
	defer span.End()

	var reception *receiving.Reception
	err := s.withRetry(ctx, "BeginInspection", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			r, err := repos.ReceptionRepo().FindByIDForUpdate(ctx, receptionID)
			if err != nil {
				return err
			}
			loaded := r.Version
			if err := r.BeginInspection(actorID, s.now()); err != nil {
				return err
			}
			if r.Version != loaded {
				if err := repos.ReceptionRepo().SaveInspection(ctx, r, loaded); err != nil {
					return err
				}
			}
			reception = r
			return nil
		})
	})
	if err != nil {
		return nil, s.fail(ctx, span, "BeginInspection", err)
	}
	telemetry.SetOK(span)
	return ToReceptionResponse(reception, ""), nil
}

// UpdateReceptionLineInspection records an inspection verdict for one line.
// Approved receptions are locked; partially approved ones still accept corrections.
func (s *ReconciliationService) UpdateReceptionLineInspection(ctx context.Context, cmd InspectLineCommand) (*ReceptionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "UpdateReceptionLineInspection",
		telemetry.WithAttribute("reception_id", cmd.ReceptionID.String()),
		telemetry.WithAttribute("line_id", cmd.LineID.String()),
	)
	defer span.End()

	status, err := receiving.ParseInspectionStatus(cmd.InspectionStatus)
	if err != nil {
		return nil, s.fail(ctx, span, "UpdateReceptionLineInspection", err)
	}
	if strings.TrimSpace(cmd.ActorID) == "" {
		return nil, s.fail(ctx, span, "UpdateReceptionLineInspection", receiving.ErrMissingActor)
	}

	var (
		reception *receiving.Reception
		order     *receiving.Order
	)
	err = s.withRetry(ctx, "UpdateReceptionLineInspection", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			r, err := repos.ReceptionRepo().FindByIDForUpdate(ctx, cmd.ReceptionID)
			if err != nil {
				return err
			}
			if r.Status == receiving.ReceptionStatusApproved {
				return receiving.ErrReceptionAlreadyApproved.
					WithDetail("reception_id", r.ID.String()).
					WithDetail("kind", string(receiving.KindStateConflict))
			}

			loaded := r.Version
			now := s.now()
			if err := r.ResolveLine(cmd.LineID, status, cmd.Notes, now); err != nil {
				return err
			}
			previous := r.RecomputeOverallStatus(now)

			var o *receiving.Order
			if r.Status.IsTerminal() {
				o, err = repos.OrderRepo().FindByIDForUpdate(ctx, r.OrderID)
				if err != nil {
					return err
				}
				history, err := repos.ReceptionRepo().FindByOrderID(ctx, o.ID)
				if err != nil {
					return err
				}
				if o.ApplyStatus(receiving.ResolveOrderStatus(o, receiving.NewLedger(o, history))) {
					if err := repos.OrderRepo().UpdateStatus(ctx, o); err != nil {
						return err
					}
				}
			}

			if err := repos.ReceptionRepo().SaveInspection(ctx, r, loaded); err != nil {
				return err
			}

			if o != nil {
				r.RecordApproval(previous, o, cmd.ActorID)
			}
			reception, order = r, o
			return nil
		})
	})
	if err != nil {
		return nil, s.fail(ctx, span, "UpdateReceptionLineInspection", err)
	}

	logger.L(ctx).Info("Reception line inspected",
		zap.String("reception_id", reception.ID.String()),
		zap.String("line_id", cmd.LineID.String()),
		zap.String("inspection_status", string(status)),
		zap.String("reception_status", reception.Status.String()),
	)
	telemetry.SetOK(span)

	var orderStatus receiving.OrderStatus
	if order != nil {
		orderStatus = order.Status
	}
	s.publishPending(ctx, reception)
	return ToReceptionResponse(reception, orderStatus), nil
}

// GetReception returns a reception with its lines
func (s *ReconciliationService) GetReception(ctx context.Context, receptionID uuid.UUID) (*ReceptionResponse, error) {
	r, err := s.receptions.FindByID(ctx, receptionID)
	if err != nil {
		return nil, err
	}
	return ToReceptionResponse(r, ""), nil
}

// ListReceptions pages through an order's reception history
func (s *ReconciliationService) ListReceptions(ctx context.Context, orderID uuid.UUID, filter shared.Filter) (*shared.Paginated[ReceptionResponse], error) {
	if _, err := s.orders.FindByID(ctx, orderID); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	items, total, err := s.receptions.ListByOrderID(ctx, orderID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]ReceptionResponse, 0, len(items))
	for _, r := range items {
		out = append(out, *ToReceptionResponse(r, ""))
	}
	page := shared.NewPaginated(out, total, filter.Page, filter.PageSize)
	return &page, nil
}

// GetOrderLedger shows ordered, received, accepted, rejected and remaining per order line
func (s *ReconciliationService) GetOrderLedger(ctx context.Context, orderID uuid.UUID) (*OrderLedgerResponse, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	history, err := s.receptions.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderLedgerResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status.String(),
		Lines:       receiving.NewLedger(order, history).Balances(),
	}, nil
}

// PresignDocumentUpload returns an upload URL and the opaque reference to
// pass as a document when submitting the reception
func (s *ReconciliationService) PresignDocumentUpload(ctx context.Context, cmd PresignDocumentCommand) (*PresignedDocument, error) {
	if s.documents == nil {
		return nil, ErrDocumentStorageUnavailable
	}
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(cmd.FileName), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return nil, ErrInvalidFileName
	}
	owner := "unassigned"
	if cmd.ReceptionID != nil {
		owner = cmd.ReceptionID.String()
	}
	key := fmt.Sprintf("receptions/%s/%s/%s", owner, uuid.NewString(), name)

	url, expiresAt, err := s.documents.GenerateUploadURL(ctx, key, cmd.ContentType, 0)
	if err != nil {
		return nil, fmt.Errorf("presign document upload: %w", err)
	}
	return &PresignedDocument{UploadURL: url, DocumentRef: key, ExpiresAt: expiresAt}, nil
}

// PresignDocumentDownload returns a download URL for a stored document reference
func (s *ReconciliationService) PresignDocumentDownload(ctx context.Context, documentRef string) (*PresignedDocument, error) {
	if s.documents == nil {
		return nil, ErrDocumentStorageUnavailable
	}
	if !strings.HasPrefix(documentRef, "receptions/") {
		return nil, ErrInvalidDocumentRef
	}
	url, expiresAt, err := s.documents.GenerateDownloadURL(ctx, documentRef, 0)
	if err != nil {
		return nil, fmt.Errorf("presign document download: %w", err)
	}
	return &PresignedDocument{UploadURL: url, DocumentRef: documentRef, ExpiresAt: expiresAt}, nil
}

// withRetry reruns fn while it fails with a concurrency conflict, up to the
// configured number of attempts. Other errors are returned immediately.
func (s *ReconciliationService) withRetry(ctx context.Context, operation string, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.BaseBackoff
	policy.MaxInterval = s.cfg.MaxBackoff
	policy.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		err := fn()
		if err == nil || receiving.IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		s.metrics.RecordRetry(ctx, operation)
		logger.L(ctx).Warn("Retrying after concurrency conflict",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.cfg.MaxAttempts-1)), ctx)
	return backoff.RetryNotify(op, b, notify)
}

// fail records a failed operation for tracing and metrics and returns err unchanged
func (s *ReconciliationService) fail(ctx context.Context, span trace.Span, operation string, err error) error {
	telemetry.RecordError(span, err)

	kind := receiving.KindOf(err)
	code := string(kind)
	if de, ok := shared.AsDomainError(err); ok {
		code = de.Code
	}
	s.metrics.RecordRejected(ctx, operation, string(kind), code)

	log := logger.L(ctx).With(
		zap.String("operation", operation),
		zap.String("kind", string(kind)),
		zap.String("code", code),
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn("Reconciliation aborted, transaction rolled back", zap.Error(err))
	case kind == receiving.KindInternal:
		log.Error("Reconciliation failed", zap.Error(err))
	default:
		log.Info("Reconciliation rejected", zap.Error(err))
	}
	return err
}

// publishPending drains the events an aggregate queued during the committed
// unit of work and publishes them
func (s *ReconciliationService) publishPending(ctx context.Context, aggregate shared.AggregateRoot) {
	events := aggregate.GetDomainEvents()
	aggregate.ClearDomainEvents()
	s.publish(ctx, events...)
}

// publish delivers events after commit. Delivery failures are reported but
// never undo the committed work; consumers dedupe on reception id and event type.
func (s *ReconciliationService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := s.publisher.Publish(ctx, events...); err != nil {
		for _, e := range events {
			s.metrics.RecordEventFailure(ctx, e.EventType())
			logger.L(ctx).Warn("Event delivery failed",
				zap.String("event_type", e.EventType()),
				zap.String("event_id", e.EventID().String()),
				zap.String("aggregate_id", e.AggregateID().String()),
				zap.Error(err),
			)
		}
	}
}
