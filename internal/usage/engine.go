// Package usage реализует протокол stage → confirm → commit для учёта расхода
// материалов: один слот под подготовленную запись на клиента и атомарное
// списание остатка вместе с записью в журнал.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Spok95/makerspace/internal/catalog"
	"github.com/Spok95/makerspace/internal/docstore"
	"github.com/Spok95/makerspace/internal/domain/machines"
	"github.com/Spok95/makerspace/internal/domain/materials"
	"github.com/Spok95/makerspace/internal/domain/usagelog"
	"github.com/Spok95/makerspace/internal/domain/users"
	"github.com/Spok95/makerspace/internal/pricing"
)

const DefaultCommitTimeout = 10 * time.Second

type State string

const (
	StateIdle       State = "idle"
	StateStaged     State = "staged"
	StateCommitting State = "committing"
)

type Catalog interface {
	LookupMaterial(id string) (materials.Material, bool)
	LookupMachine(id string) (machines.Machine, bool)
	Refresh(ctx context.Context) (catalog.Snapshot, error)
}

type Identity interface {
	CurrentUser() (users.User, bool)
}

// Observer получает исход каждого коммита и сигналы о низком остатке.
type Observer interface {
	CommitObserved(outcome string, took time.Duration)
	LowStockObserved(materialID string)
}

// Listener вызывается после успешного коммита (события, уведомления).
// Ошибки только логируются: коммит уже состоялся.
type Listener interface {
	UsageCommitted(ctx context.Context, res CommitResult) error
	StockLow(ctx context.Context, m materials.Material) error
}

const (
	OutcomeOK                = "ok"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeMaterialNotFound  = "material_not_found"
	OutcomeFailed            = "failed"
	OutcomeRejected          = "rejected"
)

type StageRequest struct {
	MaterialID      string
	MachineID       string
	Amount          string
	Duration        string // минуты; пусто: 0
	UsesOwnMaterial bool
}

type Pending struct {
	ID              string
	MaterialID      string
	MaterialName    string
	MachineID       string
	Amount          decimal.Decimal
	Duration        decimal.Decimal
	UsesOwnMaterial bool
	Price           decimal.Decimal
	StagedAt        time.Time
}

type CommitResult struct {
	Entry    usagelog.Entry
	NewStock decimal.Decimal
	Receipt  docstore.Receipt
}

type Deps struct {
	Catalog    Catalog
	Store      docstore.Store
	Session    Identity
	Membership pricing.Membership
	Log        *slog.Logger
	Timeout    time.Duration
	Observer   Observer   // может быть nil
	Listeners  []Listener // может быть пустым
}

type Engine struct {
	catalog    Catalog
	store      docstore.Store
	session    Identity
	membership pricing.Membership
	log        *slog.Logger
	timeout    time.Duration
	obs        Observer
	listeners  []Listener
	now        func() time.Time

	commitMu sync.Mutex

	mu         sync.Mutex
	pending    *Pending
	committing bool
}

func NewEngine(d Deps) *Engine {
	e := &Engine{
		catalog:    d.Catalog,
		store:      d.Store,
		session:    d.Session,
		membership: d.Membership,
		log:        d.Log,
		timeout:    d.Timeout,
		obs:        d.Observer,
		listeners:  d.Listeners,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if e.membership == nil {
		e.membership = pricing.Fixed(true)
	}
	if e.timeout <= 0 {
		e.timeout = DefaultCommitTimeout
	}
	if e.log == nil {
		e.log = slog.New(slog.DiscardHandler)
	}
	return e
}

// Quote считает цену без постановки в слот (живое обновление цены в форме).
func (e *Engine) Quote(req StageRequest) (Pending, error) {
	return e.build(req)
}

// Stage проверяет ввод, считает цену и заменяет содержимое слота.
func (e *Engine) Stage(req StageRequest) (Pending, error) {
	p, err := e.build(req)
	if err != nil {
		return Pending{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.committing {
		return Pending{}, ErrCommitInProgress
	}
	if e.pending != nil {
		e.log.Debug("replacing staged usage", "old_id", e.pending.ID, "new_id", p.ID)
	}
	e.pending = &p
	return p, nil
}

func (e *Engine) build(req StageRequest) (Pending, error) {
	materialID := strings.TrimSpace(req.MaterialID)
	machineID := strings.TrimSpace(req.MachineID)
	if materialID == "" {
		return Pending{}, &ValidationError{Field: "material_id", Reason: "required"}
	}
	if machineID == "" {
		return Pending{}, &ValidationError{Field: "machine_id", Reason: "required"}
	}
	amount, err := parseQuantity("amount", req.Amount, false)
	if err != nil {
		return Pending{}, err
	}
	duration, err := parseQuantity("duration", req.Duration, true)
	if err != nil {
		return Pending{}, err
	}

	m, ok := e.catalog.LookupMaterial(materialID)
	if !ok {
		return Pending{}, &ValidationError{Field: "material_id", Reason: "unknown material"}
	}
	if _, ok := e.catalog.LookupMachine(machineID); !ok {
		return Pending{}, &ValidationError{Field: "machine_id", Reason: "unknown machine"}
	}

	// без входа: разовая ставка
	isMember := false
	if u, ok := e.session.CurrentUser(); ok {
		isMember = e.membership.IsMember(u)
	}
	price, err := pricing.Price(&m, amount, req.UsesOwnMaterial, isMember)
	if err != nil {
		return Pending{}, &ValidationError{Field: "amount", Reason: err.Error()}
	}

	return Pending{
		ID:              uuid.NewString(),
		MaterialID:      m.ID,
		MaterialName:    m.Name,
		MachineID:       machineID,
		Amount:          amount,
		Duration:        duration,
		UsesOwnMaterial: req.UsesOwnMaterial,
		Price:           price,
		StagedAt:        e.now(),
	}, nil
}

func parseQuantity(field, raw string, optional bool) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if optional {
			return decimal.Zero, nil
		}
		return decimal.Zero, &ValidationError{Field: field, Reason: "required"}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Reason: "not a number"}
	}
	if d.IsNegative() {
		return decimal.Zero, &ValidationError{Field: field, Reason: "must not be negative"}
	}
	return d, nil
}

// RequiresConfirmation: нужна ли внешняя оплата перед коммитом.
func RequiresConfirmation(p Pending) bool {
	return p.Price.IsPositive()
}

func (e *Engine) Pending() (Pending, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return Pending{}, false
	}
	return *e.pending, true
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.committing:
		return StateCommitting
	case e.pending != nil:
		return StateStaged
	default:
		return StateIdle
	}
}

// Cancel сбрасывает слот без записи (закрытие окна оплаты).
func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.committing {
		return ErrCommitInProgress
	}
	e.pending = nil
	return nil
}

// Reset очищает слот безусловно (выход пользователя). Идущий коммит
// доработает, но слот после него останется пустым.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
}

func (e *Engine) Commit(ctx context.Context) (CommitResult, error) {
	return e.commit(ctx, "")
}

// CommitPending коммитит только кандидата с данным id: сигнал подтверждения
// оплаты мог прийти после того, как слот перезаписали.
func (e *Engine) CommitPending(ctx context.Context, id string) (CommitResult, error) {
	if id == "" {
		return CommitResult{}, ErrStaleCandidate
	}
	return e.commit(ctx, id)
}

func (e *Engine) commit(ctx context.Context, wantID string) (CommitResult, error) {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	start := time.Now()
	p, user, err := e.begin(wantID)
	if err != nil {
		e.observe(OutcomeRejected, start)
		return CommitResult{}, err
	}
	defer e.finish()

	res, m, err := e.apply(ctx, p, user)
	switch {
	case err == nil:
	case errors.Is(err, ErrMaterialNotFound):
		e.clearIf(p.ID)
		e.observe(OutcomeMaterialNotFound, start)
		e.log.Warn("material disappeared, staged usage discarded", "material_id", p.MaterialID, "usage_id", p.ID)
		return CommitResult{}, err
	case errors.Is(err, ErrInsufficientStock):
		e.observe(OutcomeInsufficientStock, start)
		return CommitResult{}, err
	default:
		e.observe(OutcomeFailed, start)
		e.log.Error("usage commit failed", "usage_id", p.ID, "material_id", p.MaterialID, "err", err)
		return CommitResult{}, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	e.clearIf(p.ID)
	e.observe(OutcomeOK, start)
	e.log.Info("usage committed",
		"usage_id", p.ID,
		"entry_id", res.Entry.ID,
		"user_id", user.ID,
		"material_id", p.MaterialID,
		"amount", p.Amount.String(),
		"price", p.Price.StringFixed(2),
		"new_stock", res.NewStock.String(),
		"attempts", res.Receipt.Attempts,
	)
	e.afterCommit(ctx, res, m)
	return res, nil
}

func (e *Engine) begin(wantID string) (Pending, users.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return Pending{}, users.User{}, ErrNoPendingUsage
	}
	if wantID != "" && e.pending.ID != wantID {
		return Pending{}, users.User{}, ErrStaleCandidate
	}
	user, ok := e.session.CurrentUser()
	if !ok {
		return Pending{}, users.User{}, ErrNotAuthenticated
	}
	e.committing = true
	return *e.pending, user, nil
}

func (e *Engine) finish() {
	e.mu.Lock()
	e.committing = false
	e.mu.Unlock()
}

// clearIf освобождает слот, только если в нём всё ещё тот же кандидат.
func (e *Engine) clearIf(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != nil && e.pending.ID == id {
		e.pending = nil
	}
}

func (e *Engine) apply(ctx context.Context, p Pending, user users.User) (CommitResult, materials.Material, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		res CommitResult
		mat materials.Material
	)
	receipt, err := e.store.RunAtomic(ctx, func(ctx context.Context, txn docstore.Txn) error {
		// остаток читаем внутри транзакции: кэш мог устареть
		doc, ok, err := txn.Read(ctx, materials.Ref(p.MaterialID))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrMaterialNotFound, p.MaterialID)
		}
		m, err := materials.FromDocument(doc)
		if err != nil {
			return err
		}
		if m.Stock.LessThan(p.Amount) {
			return &InsufficientStockError{MaterialID: m.ID, Available: m.Stock, Requested: p.Amount}
		}

		newStock := m.Stock.Sub(p.Amount)
		if err := txn.Write(m.Ref(), materials.StockFields(newStock)); err != nil {
			return err
		}
		entry := usagelog.Entry{
			UserID:          user.ID,
			UserName:        user.DisplayName,
			MaterialID:      m.ID,
			MaterialName:    m.Name,
			MachineID:       p.MachineID,
			Amount:          p.Amount,
			Price:           p.Price,
			Duration:        p.Duration,
			UsesOwnMaterial: p.UsesOwnMaterial,
		}
		ref, err := txn.Append(usagelog.Collection, entry.Fields())
		if err != nil {
			return err
		}
		entry.ID = ref.ID

		m.Stock = newStock
		mat = m
		res = CommitResult{Entry: entry, NewStock: newStock}
		return nil
	})
	if err != nil {
		return CommitResult{}, materials.Material{}, err
	}
	res.Receipt = receipt
	res.Entry.Timestamp = receipt.CommitTime
	return res, mat, nil
}

func (e *Engine) afterCommit(ctx context.Context, res CommitResult, m materials.Material) {
	if _, err := e.catalog.Refresh(ctx); err != nil {
		e.log.Warn("catalog refresh after commit failed", "err", err)
	}
	for _, l := range e.listeners {
		if err := l.UsageCommitted(ctx, res); err != nil {
			e.log.Warn("usage committed listener failed", "entry_id", res.Entry.ID, "err", err)
		}
	}
	if !m.IsLow() {
		return
	}
	e.log.Warn("material stock is low",
		"material_id", m.ID,
		"name", m.Name,
		"stock", m.Stock.String(),
		"threshold", m.LowStockThreshold.String(),
	)
	if e.obs != nil {
		e.obs.LowStockObserved(m.ID)
	}
	for _, l := range e.listeners {
		if err := l.StockLow(ctx, m); err != nil {
			e.log.Warn("low stock listener failed", "material_id", m.ID, "err", err)
		}
	}
}

func (e *Engine) observe(outcome string, start time.Time) {
	if e.obs != nil {
		e.obs.CommitObserved(outcome, time.Since(start))
	}
}
