package ledger

import (
	"context"
	"errors"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreditNoteService handles issuing, spending and voiding credit notes
type CreditNoteService struct {
	uow             UnitOfWork
	invoiceRepo     ledger.InvoiceRepository
	creditNoteRepo  ledger.CreditNoteRepository
	applicationRepo ledger.CreditNoteApplicationRepository
	historyRepo     ledger.CreditNoteHistoryRepository
	patients        ledger.PatientDirectory
	eventPublisher  shared.EventPublisher
	logger          *zap.Logger
}

// NewCreditNoteService creates a new CreditNoteService
func NewCreditNoteService(
	uow UnitOfWork,
	invoiceRepo ledger.InvoiceRepository,
	creditNoteRepo ledger.CreditNoteRepository,
	applicationRepo ledger.CreditNoteApplicationRepository,
	historyRepo ledger.CreditNoteHistoryRepository,
	patients ledger.PatientDirectory,
	logger *zap.Logger,
) *CreditNoteService {
	return &CreditNoteService{
		uow:             uow,
		invoiceRepo:     invoiceRepo,
		creditNoteRepo:  creditNoteRepo,
		applicationRepo: applicationRepo,
		historyRepo:     historyRepo,
		patients:        patients,
		logger:          logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *CreditNoteService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Issue refunds part or all of an invoice as a credit note for its patient
func (s *CreditNoteService) Issue(ctx context.Context, actor ledger.Actor, invoiceID uuid.UUID, req IssueCreditNoteRequest) (*CreditNoteResponse, error) {
	creditNo, err := s.uow.NextNumber(ctx, ledger.CreditNoteSequence)
	if err != nil {
		return nil, err
	}

	var (
		inv  *ledger.Invoice
		note *ledger.CreditNote
	)
	err = s.uow.Execute(ctx, func(repos TxRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := actor.AuthorizeView(inv); err != nil {
			return err
		}

		before := inv.Status
		note, err = ledger.IssueCreditNote(creditNo, inv, req.Amount, req.Reason, req.Notes, actor.ID)
		if err != nil {
			return err
		}
		inv.RefreshStatus()

		if err := repos.CreditNoteRepo().Create(ctx, note); err != nil {
			return err
		}
		if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
			return err
		}
		if err := repos.HistoryRepo().Append(ctx, ledger.NewCreditNoteHistory(
			note.ID, ledger.HistoryActionCreated, actor.ID, inv.ID, note.TotalAmount, req.Reason)); err != nil {
			return err
		}

		inv.RecordStatusChange(before, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("credit note issued",
		zap.String("credit_note_id", note.ID.String()),
		zap.String("credit_no", note.CreditNo),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("amount", note.TotalAmount.StringFixed(2)),
	)
	publishEvents(ctx, s.eventPublisher, s.logger, append(drainEvents(note), drainEvents(inv)...))

	response := ToCreditNoteResponse(note)
	return &response, nil
}

// Apply spends credit note balance on an invoice of the same patient. The
// amount is limited by what the note has left and what the invoice still
// has due.
func (s *CreditNoteService) Apply(ctx context.Context, actor ledger.Actor, creditNoteID uuid.UUID, req ApplyCreditNoteRequest) (*CreditNoteApplicationResponse, error) {
	var (
		inv  *ledger.Invoice
		book *creditBook
		app  *ledger.CreditNoteApplication
	)
	err := s.uow.Execute(ctx, func(repos TxRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		if err := actor.AuthorizeView(inv); err != nil {
			return err
		}

		book = newCreditBook(repos, actor.ID)
		note, err := book.note(ctx, creditNoteID)
		if err != nil {
			return err
		}

		before := inv.Status
		app, err = book.spend(note, inv, req.Amount)
		if err != nil {
			return err
		}
		inv.RefreshStatus()

		if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
			return err
		}
		if err := book.flush(ctx); err != nil {
			return err
		}

		inv.RecordStatusChange(before, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("credit note applied",
		zap.String("credit_note_id", creditNoteID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("amount", app.AppliedAmount.StringFixed(2)),
		zap.String("invoice_status", inv.Status.String()),
	)
	publishEvents(ctx, s.eventPublisher, s.logger, append(book.events(), drainEvents(inv)...))

	response := ToApplicationResponses([]ledger.CreditNoteApplication{*app})[0]
	return &response, nil
}

// Void cancels a credit note that was never spent and gives its amount back
// to the refundable balance of the originating invoice.
func (s *CreditNoteService) Void(ctx context.Context, actor ledger.Actor, creditNoteID uuid.UUID, req VoidCreditNoteRequest) (*CreditNoteResponse, error) {
	if err := actor.RequireManage(); err != nil {
		return nil, err
	}

	var (
		inv  *ledger.Invoice
		note *ledger.CreditNote
	)
	err := s.uow.Execute(ctx, func(repos TxRepositories) error {
		// The invoice row is locked before the note, the same order every
		// other ledger write uses.
		peek, err := repos.CreditNoteRepo().FindByID(ctx, creditNoteID)
		if err != nil {
			return err
		}
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, peek.InvoiceID)
		if err != nil {
			return err
		}
		if err := actor.AuthorizeManage(inv); err != nil {
			return err
		}
		note, err = repos.CreditNoteRepo().FindByIDForUpdate(ctx, creditNoteID)
		if err != nil {
			return err
		}

		before := inv.Status
		if err := note.Void(req.Reason); err != nil {
			return err
		}
		inv.RemoveRefund(note.TotalAmount)
		inv.RefreshStatus()

		if err := repos.CreditNoteRepo().SaveWithLock(ctx, note); err != nil {
			return err
		}
		if err := repos.InvoiceRepo().SaveWithLock(ctx, inv); err != nil {
			return err
		}
		if err := repos.HistoryRepo().Append(ctx, ledger.NewCreditNoteHistory(
			note.ID, ledger.HistoryActionVoided, actor.ID, inv.ID, note.TotalAmount, req.Reason)); err != nil {
			return err
		}

		inv.RecordStatusChange(before, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("credit note voided",
		zap.String("credit_note_id", note.ID.String()),
		zap.String("credit_no", note.CreditNo),
		zap.String("invoice_id", inv.ID.String()),
	)
	publishEvents(ctx, s.eventPublisher, s.logger, append(drainEvents(note), drainEvents(inv)...))

	response := ToCreditNoteResponse(note)
	return &response, nil
}

// Get returns a credit note with its applications and audit trail. Access
// follows the originating invoice.
func (s *CreditNoteService) Get(ctx context.Context, actor ledger.Actor, id uuid.UUID) (*CreditNoteDetailResponse, error) {
	note, err := s.creditNoteRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeNote(ctx, actor, note); err != nil {
		return nil, err
	}

	apps, err := s.applicationRepo.FindByCreditNote(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	history, err := s.historyRepo.FindByCreditNote(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	return &CreditNoteDetailResponse{
		CreditNoteResponse: ToCreditNoteResponse(note),
		Applications:       ToApplicationResponses(apps),
		History:            ToHistoryResponses(history),
	}, nil
}

// ListForPatient returns the credit notes of a patient, newest first.
// With onlyAvailable only notes that still have balance to spend are returned.
func (s *CreditNoteService) ListForPatient(ctx context.Context, patientID uuid.UUID, onlyAvailable bool) ([]CreditNoteResponse, error) {
	if _, err := s.patients.FindByID(ctx, patientID); err != nil {
		return nil, err
	}
	notes, err := s.creditNoteRepo.FindByPatient(ctx, patientID, onlyAvailable)
	if err != nil {
		return nil, err
	}
	return ToCreditNoteResponses(notes), nil
}

func (s *CreditNoteService) authorizeNote(ctx context.Context, actor ledger.Actor, note *ledger.CreditNote) error {
	inv, err := s.invoiceRepo.FindByID(ctx, note.InvoiceID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if actor.CanViewAllInvoices {
			return nil
		}
		return shared.NewDomainError(shared.ErrForbidden.Code, "You do not have access to this credit note")
	}
	return actor.AuthorizeView(inv)
}
