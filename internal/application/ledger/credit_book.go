package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/clinic/backend/internal/domain/ledger"
	"github.com/clinic/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// creditBook tracks the credit notes one unit of work touches. Notes are
// locked in ID order the first time they are needed and saved once at flush,
// so releasing and re-spending the same note in one operation is a single
// versioned write.
type creditBook struct {
	repos   TxRepositories
	actorID uuid.UUID
	notes   map[uuid.UUID]*ledger.CreditNote
	dirty   map[uuid.UUID]bool
	apps    []*ledger.CreditNoteApplication
	history []*ledger.CreditNoteHistory
}

func newCreditBook(repos TxRepositories, actorID uuid.UUID) *creditBook {
	return &creditBook{
		repos:   repos,
		actorID: actorID,
		notes:   make(map[uuid.UUID]*ledger.CreditNote),
		dirty:   make(map[uuid.UUID]bool),
	}
}

// lock row-locks every note in ids that is not held yet, in ID order
func (b *creditBook) lock(ctx context.Context, ids ...uuid.UUID) error {
	pending := lo.Filter(lo.Uniq(ids), func(id uuid.UUID, _ int) bool {
		_, held := b.notes[id]
		return !held
	})
	sort.Slice(pending, func(i, j int) bool { return pending[i].String() < pending[j].String() })

	for _, id := range pending {
		note, err := b.repos.CreditNoteRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		b.notes[id] = note
	}
	return nil
}

func (b *creditBook) note(ctx context.Context, id uuid.UUID) (*ledger.CreditNote, error) {
	if err := b.lock(ctx, id); err != nil {
		return nil, err
	}
	return b.notes[id], nil
}

// release returns every credit applied to inv to its note and deletes the
// applications
func (b *creditBook) release(ctx context.Context, inv *ledger.Invoice, apps []ledger.CreditNoteApplication) error {
	if len(apps) == 0 {
		return nil
	}
	for _, app := range apps {
		note, err := b.note(ctx, app.CreditNoteID)
		if err != nil {
			return err
		}
		note.Restore(app.AppliedAmount)
		inv.ReleaseCredit(app.AppliedAmount)
		b.dirty[note.ID] = true
		b.history = append(b.history, ledger.NewCreditNoteHistory(
			note.ID, ledger.HistoryActionReleased, b.actorID, inv.ID, app.AppliedAmount, "Invoice updated"))
	}
	return b.repos.ApplicationRepo().DeleteByInvoice(ctx, inv.ID)
}

// fund spends the selected credits on inv. Selections of the same note are
// merged before they are checked.
func (b *creditBook) fund(ctx context.Context, inv *ledger.Invoice, selected []AppliedCreditRequest) error {
	if len(selected) == 0 {
		return nil
	}
	merged := mergeCredits(selected)

	requested := lo.Reduce(merged, func(sum decimal.Decimal, c AppliedCreditRequest, _ int) decimal.Decimal {
		return sum.Add(c.Amount)
	}, decimal.Zero)
	if !ledger.WithinTolerance(requested, inv.TotalAmount) {
		return shared.NewDomainError(ledger.ErrCodeCreditExceedsBalance,
			fmt.Sprintf("Applied credits exceed invoice total of %s", inv.TotalAmount.StringFixed(2)))
	}
	if owed := inv.Outstanding(); !ledger.WithinTolerance(requested, owed) {
		return shared.NewDomainError(ledger.ErrCodeCreditExceedsBalance,
			fmt.Sprintf("Applied credits exceed the outstanding balance of %s", owed.StringFixed(2)))
	}

	for _, c := range merged {
		if c.Amount.LessThanOrEqual(decimal.Zero) {
			return shared.NewValidationError("Credit amount must be positive")
		}
		note, err := b.note(ctx, c.CreditNoteID)
		if err != nil {
			return err
		}
		if err := note.CheckAvailable(inv.PatientID, c.Amount); err != nil {
			return err
		}
		app, err := note.Fund(inv, c.Amount, b.actorID)
		if err != nil {
			return err
		}
		b.record(note, app)
	}
	return nil
}

// spend applies amount of an already locked note to inv
func (b *creditBook) spend(note *ledger.CreditNote, inv *ledger.Invoice, amount decimal.Decimal) (*ledger.CreditNoteApplication, error) {
	app, err := note.ApplyTo(inv, amount, b.actorID)
	if err != nil {
		return nil, err
	}
	b.record(note, app)
	return app, nil
}

func (b *creditBook) record(note *ledger.CreditNote, app *ledger.CreditNoteApplication) {
	b.dirty[note.ID] = true
	b.apps = append(b.apps, app)
	b.history = append(b.history, ledger.NewCreditNoteHistory(
		note.ID, ledger.HistoryActionApplied, b.actorID, app.AppliedInvoiceID, app.AppliedAmount, ""))
}

// flush writes applications, audit entries and changed notes
func (b *creditBook) flush(ctx context.Context) error {
	for _, app := range b.apps {
		if err := b.repos.ApplicationRepo().Create(ctx, app); err != nil {
			return err
		}
	}
	for _, entry := range b.history {
		if err := b.repos.HistoryRepo().Append(ctx, entry); err != nil {
			return err
		}
	}
	for _, id := range b.dirtyIDs() {
		if err := b.repos.CreditNoteRepo().SaveWithLock(ctx, b.notes[id]); err != nil {
			return err
		}
	}
	return nil
}

func (b *creditBook) dirtyIDs() []uuid.UUID {
	ids := lo.Keys(b.dirty)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// events collects the domain events of every changed note
func (b *creditBook) events() []shared.DomainEvent {
	var events []shared.DomainEvent
	for _, id := range b.dirtyIDs() {
		note := b.notes[id]
		events = append(events, note.GetDomainEvents()...)
		note.ClearDomainEvents()
	}
	return events
}

// mergeCredits sums selections per credit note, keeping first-seen order
func mergeCredits(selected []AppliedCreditRequest) []AppliedCreditRequest {
	groups := lo.GroupBy(selected, func(c AppliedCreditRequest) uuid.UUID { return c.CreditNoteID })
	order := lo.Uniq(lo.Map(selected, func(c AppliedCreditRequest, _ int) uuid.UUID { return c.CreditNoteID }))
	return lo.Map(order, func(id uuid.UUID, _ int) AppliedCreditRequest {
		total := lo.Reduce(groups[id], func(sum decimal.Decimal, c AppliedCreditRequest, _ int) decimal.Decimal {
			return sum.Add(c.Amount)
		}, decimal.Zero)
		return AppliedCreditRequest{CreditNoteID: id, Amount: total}
	})
}
