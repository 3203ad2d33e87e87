package ledger

import (
	"context"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// InvoiceService handles invoice operations: writing invoices together with
// their stock, appointment and credit effects, and recording payments.
type InvoiceService struct {
	uow             UnitOfWork
	invoiceRepo     ledger.InvoiceRepository
	creditNoteRepo  ledger.CreditNoteRepository
	applicationRepo ledger.CreditNoteApplicationRepository
	eventPublisher  shared.EventPublisher
	logger          *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	uow UnitOfWork,
	invoiceRepo ledger.InvoiceRepository,
	creditNoteRepo ledger.CreditNoteRepository,
	applicationRepo ledger.CreditNoteApplicationRepository,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		uow:             uow,
		invoiceRepo:     invoiceRepo,
		creditNoteRepo:  creditNoteRepo,
		applicationRepo: applicationRepo,
		logger:          logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *InvoiceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Create writes a new invoice, takes its products out of stock, completes the
// linked appointment and spends the selected credits, all in one transaction.
// The invoice number is taken first; a failed create leaves a gap.
func (s *InvoiceService) Create(ctx context.Context, actor ledger.Actor, req InvoiceRequest) (*InvoiceDetailResponse, error) {
	if err := actor.RequireManage(); err != nil {
		return nil, err
	}
	invoiceNo, err := s.uow.NextNumber(ctx, ledger.InvoiceSequence)
	if err != nil {
		return nil, err
	}

	var (
		inv  *ledger.Invoice
		book *creditBook
	)
	err = s.uow.Execute(ctx, func(repos TxRepositories) error {
		if _, err := repos.Patients().FindByID(ctx, req.PatientID); err != nil {
			return err
		}

		items, err := priceAndCheckStock(ctx, repos, req.Lines(), nil)
		if err != nil {
			return err
		}
		if req.AppointmentID != nil {
			if err := checkAppointment(ctx, repos, *req.AppointmentID, req.PatientID, uuid.Nil); err != nil {
				return err
			}
		}

		book = newCreditBook(repos, actor.ID)
		if err := book.lock(ctx, creditNoteIDs(req.AppliedCredits)...); err != nil {
			return err
		}

		inv, err = ledger.NewInvoice(actor.ID, invoiceNo, req.PatientID, items,
			req.InvoiceDiscount(), req.PaidAmount, req.Notes)
		if err != nil {
			return err
		}
		inv.LinkAppointment(req.AppointmentID)

		if err := book.fund(ctx, inv, req.AppliedCredits); err != nil {
			return err
		}
		inv.RefreshStatus()

		if err := repos.InvoiceRepo().Create(ctx, inv); err != nil {
			return err
		}
		if err := adjustStock(ctx, repos, ledger.Allocation{}.DeltaTo(inv.Allocation())); err != nil {
			return err
		}
		if req.AppointmentID != nil {
			if err := repos.Appointments().MarkCompleted(ctx, *req.AppointmentID, inv.ID); err != nil {
				return err
			}
		}
		return book.flush(ctx)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_no", inv.InvoiceNo),
		zap.String("total_amount", inv.TotalAmount.StringFixed(2)),
		zap.String("status", inv.Status.String()),
	)
	s.publish(ctx, append(drainEvents(inv), book.events()...))

	return s.detail(ctx, inv)
}

// Update replaces the content of an invoice. Credits applied to it are
// released before the new selection is checked, and stock moves only by the
// net difference between the old and the new items.
func (s *InvoiceService) Update(ctx context.Context, actor ledger.Actor, id uuid.UUID, req InvoiceRequest) (*InvoiceDetailResponse, error) {
	if err := actor.RequireManage(); err != nil {
		return nil, err
	}

	var (
		inv  *ledger.Invoice
		book *creditBook
	)
	err := s.uow.Execute(ctx, func(repos TxRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.AuthorizeManage(inv); err != nil {
			return err
		}
		if _, err := repos.Patients().FindByID(ctx, req.PatientID); err != nil {
			return err
		}
		patientChanged := req.PatientID != inv.PatientID
		if err := inv.ChangePatient(req.PatientID); err != nil {
			return err
		}

		previous := inv.Allocation()
		previousStatus := inv.Status
		previousAppointment := inv.AppointmentID

		items, err := priceAndCheckStock(ctx, repos, req.Lines(), previous)
		if err != nil {
			return err
		}
		relink := !sameAppointment(previousAppointment, req.AppointmentID)
		switch {
		case relink && req.AppointmentID != nil:
			if err := checkAppointment(ctx, repos, *req.AppointmentID, req.PatientID, inv.ID); err != nil {
				return err
			}
		case patientChanged && req.AppointmentID != nil:
			// the linked appointment is already completed by this invoice
			if _, err := appointmentOf(ctx, repos, *req.AppointmentID, req.PatientID); err != nil {
				return err
			}
		}

		applied, err := repos.ApplicationRepo().FindByInvoice(ctx, inv.ID)
		if err != nil {
			return err
		}
		book = newCreditBook(repos, actor.ID)
		noteIDs := append(
			lo.Map(applied, func(a ledger.CreditNoteApplication, _ int) uuid.UUID { return a.CreditNoteID }),
			creditNoteIDs(req.AppliedCredits)...)
		if err := book.lock(ctx, noteIDs...); err != nil {
			return err
		}
		if err := book.release(ctx, inv, applied); err != nil {
			return err
		}

		if err := inv.Revise(items, req.InvoiceDiscount(), req.PaidAmount, req.Notes); err != nil {
			return err
		}
		if err := book.fund(ctx, inv, req.AppliedCredits); err != nil {
			return err
		}
		inv.LinkAppointment(req.AppointmentID)
		inv.RefreshStatus()

		if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
			return err
		}
		if err := repos.InvoiceRepo().ReplaceItems(ctx, inv.ID, inv.Items); err != nil {
			return err
		}
		if err := adjustStock(ctx, repos, previous.DeltaTo(inv.Allocation())); err != nil {
			return err
		}
		if relink {
			if previousAppointment != nil {
				if err := repos.Appointments().MarkScheduled(ctx, *previousAppointment); err != nil {
					return err
				}
			}
			if req.AppointmentID != nil {
				if err := repos.Appointments().MarkCompleted(ctx, *req.AppointmentID, inv.ID); err != nil {
					return err
				}
			}
		}
		if err := book.flush(ctx); err != nil {
			return err
		}

		inv.RecordStatusChange(previousStatus, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice updated",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("total_amount", inv.TotalAmount.StringFixed(2)),
		zap.String("status", inv.Status.String()),
	)
	s.publish(ctx, append(drainEvents(inv), book.events()...))

	return s.detail(ctx, inv)
}

// Delete removes an invoice that has no credit activity, returns its
// products to stock and puts its appointment back to scheduled.
func (s *InvoiceService) Delete(ctx context.Context, actor ledger.Actor, id uuid.UUID) error {
	if err := actor.RequireManage(); err != nil {
		return err
	}

	var inv *ledger.Invoice
	err := s.uow.Execute(ctx, func(repos TxRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.AuthorizeManage(inv); err != nil {
			return err
		}

		applied, err := repos.ApplicationRepo().CountByInvoice(ctx, inv.ID)
		if err != nil {
			return err
		}
		if applied > 0 {
			return shared.NewDomainError(ledger.ErrCodeInvoiceHasCreditActivity,
				"Invoice has credit notes applied to it and cannot be deleted")
		}
		issued, err := repos.CreditNoteRepo().FindByInvoice(ctx, inv.ID)
		if err != nil {
			return err
		}
		if lo.ContainsBy(issued, func(cn ledger.CreditNote) bool { return !cn.IsVoided() }) {
			return shared.NewDomainError(ledger.ErrCodeInvoiceHasCreditActivity,
				"Invoice has issued credit notes and cannot be deleted")
		}

		if err := adjustStock(ctx, repos, inv.Allocation().Negate()); err != nil {
			return err
		}
		if inv.AppointmentID != nil {
			if err := repos.Appointments().MarkScheduled(ctx, *inv.AppointmentID); err != nil {
				return err
			}
		}
		return repos.InvoiceRepo().Delete(ctx, inv.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("invoice deleted",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_no", inv.InvoiceNo),
	)
	s.publish(ctx, []shared.DomainEvent{ledger.NewInvoiceDeletedEvent(inv)})
	return nil
}

// RecordPayment adds a direct payment against what the patient still owes
func (s *InvoiceService) RecordPayment(ctx context.Context, actor ledger.Actor, id uuid.UUID, req RecordPaymentRequest) (*InvoiceResponse, error) {
	if err := actor.RequireManage(); err != nil {
		return nil, err
	}

	var inv *ledger.Invoice
	err := s.uow.Execute(ctx, func(repos TxRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.AuthorizeManage(inv); err != nil {
			return err
		}

		before := inv.Status
		if err := inv.RecordPayment(req.Amount); err != nil {
			return err
		}
		inv.RefreshStatus()
		if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
			return err
		}
		inv.RecordStatusChange(before, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice payment recorded",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("amount", ledger.Round2(req.Amount).StringFixed(2)),
		zap.String("status", inv.Status.String()),
	)
	s.publish(ctx, drainEvents(inv))

	response := ToInvoiceResponse(inv)
	return &response, nil
}

// Get returns an invoice with its credit activity
func (s *InvoiceService) Get(ctx context.Context, actor ledger.Actor, id uuid.UUID) (*InvoiceDetailResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.AuthorizeView(inv); err != nil {
		return nil, err
	}
	return s.detail(ctx, inv)
}

// List returns a page of invoices. Actors without view-all only see the
// invoices they created.
func (s *InvoiceService) List(ctx context.Context, actor ledger.Actor, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	query := ledger.InvoiceFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			OrderBy:  filter.OrderBy,
			OrderDir: filter.OrderDir,
		},
		PatientID: filter.PatientID,
	}
	if filter.Status != "" {
		status := ledger.InvoiceStatus(filter.Status)
		query.Status = &status
	}
	if !actor.CanViewAllInvoices {
		query.CreatedBy = &actor.ID
	}

	invoices, total, err := s.invoiceRepo.List(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return lo.Map(invoices, func(inv ledger.Invoice, _ int) InvoiceResponse {
		return ToInvoiceResponse(&inv)
	}), total, nil
}

func (s *InvoiceService) detail(ctx context.Context, inv *ledger.Invoice) (*InvoiceDetailResponse, error) {
	apps, err := s.applicationRepo.FindByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	notes, err := s.creditNoteRepo.FindByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	return &InvoiceDetailResponse{
		InvoiceResponse:    ToInvoiceResponse(inv),
		CreditApplications: ToApplicationResponses(apps),
		CreditNotes:        ToCreditNoteResponses(notes),
	}, nil
}

// publish hands events to the event bus once the transaction has committed.
// Delivery problems are logged and never undo the ledger write.
func (s *InvoiceService) publish(ctx context.Context, events []shared.DomainEvent) {
	publishEvents(ctx, s.eventPublisher, s.logger, events)
}

// priceAndCheckStock prices the lines against current catalog data and checks
// that catalog quantities fit in stock, counting previous as already held.
func priceAndCheckStock(ctx context.Context, repos TxRepositories, lines []ledger.LineItem, previous ledger.Allocation) ([]ledger.InvoiceItem, error) {
	productIDs := lo.FilterMap(lines, func(line ledger.LineItem, _ int) (uuid.UUID, bool) {
		catalog, ok := line.(ledger.CatalogLine)
		return catalog.ProductID, ok
	})
	products, err := repos.Products().FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	items, err := ledger.PriceLines(lines, products)
	if err != nil {
		return nil, err
	}
	if err := ledger.CheckStock(items, products, previous); err != nil {
		return nil, err
	}
	return items, nil
}

// adjustStock applies net stock deltas through the atomic conditional update
func adjustStock(ctx context.Context, repos TxRepositories, deltas []ledger.StockDelta) error {
	for _, d := range deltas {
		if err := repos.Products().AdjustStock(ctx, d.ProductID, d.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// checkAppointment verifies an appointment can be billed by the invoice
// being written. invoiceID is uuid.Nil for a new invoice.
func checkAppointment(ctx context.Context, repos TxRepositories, appointmentID, patientID, invoiceID uuid.UUID) error {
	appt, err := appointmentOf(ctx, repos, appointmentID, patientID)
	if err != nil {
		return err
	}
	if appt.InvoiceID != nil && *appt.InvoiceID != invoiceID {
		return shared.NewDomainError(ledger.ErrCodeAppointmentUnavailable,
			"Appointment is already linked to another invoice")
	}
	if appt.Status != ledger.AppointmentStatusScheduled {
		return shared.NewDomainError(ledger.ErrCodeAppointmentUnavailable,
			"Appointment must be scheduled to be invoiced (status: "+string(appt.Status)+")")
	}
	return nil
}

// appointmentOf loads an appointment and checks it belongs to patientID
func appointmentOf(ctx context.Context, repos TxRepositories, appointmentID, patientID uuid.UUID) (*ledger.Appointment, error) {
	appt, err := repos.Appointments().FindByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != patientID {
		return nil, shared.NewDomainError(ledger.ErrCodeAppointmentUnavailable,
			"Appointment belongs to a different patient")
	}
	return appt, nil
}

func sameAppointment(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func creditNoteIDs(selected []AppliedCreditRequest) []uuid.UUID {
	return lo.Map(selected, func(c AppliedCreditRequest, _ int) uuid.UUID { return c.CreditNoteID })
}

type eventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// drainEvents returns and clears the pending events of an aggregate
func drainEvents(agg eventSource) []shared.DomainEvent {
	events := agg.GetDomainEvents()
	agg.ClearDomainEvents()
	return events
}

func publishEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, events []shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Warn("failed to publish ledger events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}
