package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/vi13x/wagerbot/internal/domain"
)

const DefaultStoreTimeout = 5 * time.Second

// Store is the durable home of the ledger. Load and Save always move the whole
// ledger; the service never keeps a copy between operations.
type Store interface {
	Load(ctx context.Context) (*domain.Ledger, error)
	Save(ctx context.Context, l *domain.Ledger) error
}

// Ledger runs wager operations against a Store, one at a time. A call that
// arrives while another is in flight fails with domain.ErrBusy instead of
// waiting.
type Ledger struct {
	store   Store
	guard   *semaphore.Weighted
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger
	tracer  trace.Tracer
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.log = logger
		}
	}
}

// WithStoreTimeout bounds each load and save. Zero keeps the default.
func WithStoreTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		guard:   semaphore.NewWeighted(1),
		timeout: DefaultStoreTimeout,
		now:     time.Now,
		log:     slog.Default(),
		tracer:  otel.Tracer("github.com/vi13x/wagerbot/internal/service"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type proposal struct {
	status domain.Status
}

type ProposeOption func(*proposal)

// AsStanding proposes a wager that is re-offered each time it is taken.
func AsStanding() ProposeOption {
	return func(p *proposal) { p.status = domain.StatusStanding }
}

// Resolution tells the caller what Resolve did to the wager.
type Resolution string

const (
	Resolved Resolution = "resolved"
	Annulled Resolution = "annulled"
)

// mutation reports whether the ledger changed and must be saved.
type mutation func(l *domain.Ledger) (bool, error)

func (s *Ledger) run(ctx context.Context, op string, fn mutation) error {
	if !s.guard.TryAcquire(1) {
		return domain.ErrBusy
	}
	defer s.guard.Release(1)

	ctx, span := s.tracer.Start(ctx, "ledger."+op)
	defer span.End()

	err := s.apply(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Ledger) apply(ctx context.Context, fn mutation) error {
	// A started operation runs to completion even if the caller goes away;
	// only the store timeout can stop it.
	ioCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	l, err := s.store.Load(ioCtx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	changed, err := fn(l)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := s.store.Save(ioCtx, l); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// Propose records a new open wager and returns its id.
func (s *Ledger) Propose(ctx context.Context, proposer domain.ParticipantID, statement string, opts ...ProposeOption) (domain.WagerID, error) {
	p := proposal{status: domain.StatusOpen}
	for _, opt := range opts {
		opt(&p)
	}
	statement = strings.TrimSpace(statement)
	if proposer == "" {
		return 0, domain.ErrUnauthorized
	}
	if statement == "" {
		return 0, domain.ErrEmptyStatement
	}

	var id domain.WagerID
	err := s.run(ctx, "propose", func(l *domain.Ledger) (bool, error) {
		id = s.insert(l, proposer, statement, p.status)
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("bet proposed", "op", "propose", "bet_id", id, "actor", proposer, "status", p.status)
	return id, nil
}

func (s *Ledger) insert(l *domain.Ledger, proposer domain.ParticipantID, statement string, status domain.Status) domain.WagerID {
	id := l.Allocate()
	l.Entries[id] = &domain.Wager{
		ID:        id,
		Proposer:  proposer,
		Status:    status,
		Statement: statement,
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}
	return id
}

// Withdraw removes the actor's most recent wager that nobody has taken yet.
func (s *Ledger) Withdraw(ctx context.Context, actor domain.ParticipantID) (domain.WagerID, error) {
	var removed domain.WagerID
	err := s.run(ctx, "withdraw", func(l *domain.Ledger) (bool, error) {
		for _, id := range l.Newest() {
			w := l.Entries[id]
			if w.Proposer != actor {
				continue
			}
			if _, err := domain.Transition(w.Status, domain.EventWithdraw); err != nil {
				continue
			}
			delete(l.Entries, id)
			removed = id
			return true, nil
		}
		return false, domain.ErrNotFound
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("bet withdrawn", "op", "withdraw", "bet_id", removed, "actor", actor)
	return removed, nil
}

// Accept makes actor the counterparty of wager id. Taking a standing wager
// also re-offers its statement as a new open wager from the same proposer;
// the id of that wager is returned, or zero when there is none.
func (s *Ledger) Accept(ctx context.Context, actor domain.ParticipantID, id domain.WagerID) (domain.WagerID, error) {
	var reoffer domain.WagerID
	err := s.run(ctx, "accept", func(l *domain.Ledger) (bool, error) {
		w, ok := l.Entries[id]
		if !ok {
			return false, domain.ErrNotFound
		}
		next, err := domain.Transition(w.Status, domain.EventAccept)
		if err != nil {
			return false, err
		}
		if actor == "" {
			return false, domain.ErrUnauthorized
		}
		if actor == w.Proposer {
			return false, domain.ErrSelfAcceptance
		}
		prior := w.Status
		w.Acceptor = actor
		w.Status = next
		if prior == domain.StatusStanding {
			reoffer = s.insert(l, w.Proposer, w.Statement, domain.StatusOpen)
		}
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("bet taken", "op", "accept", "bet_id", id, "actor", actor, "reoffer_id", reoffer)
	return reoffer, nil
}

// Resolve settles a pending wager, or annuls one that was never taken. Only
// the two participants may do either. A wager that is already resolved is
// not resolved again; that fails with domain.ErrInvalidTransition.
func (s *Ledger) Resolve(ctx context.Context, actor domain.ParticipantID, id domain.WagerID) (Resolution, error) {
	var res Resolution
	err := s.run(ctx, "resolve", func(l *domain.Ledger) (bool, error) {
		w, ok := l.Entries[id]
		if !ok {
			return false, domain.ErrNotFound
		}
		if !w.Participant(actor) {
			return false, domain.ErrUnauthorized
		}
		next, err := domain.Transition(w.Status, domain.EventResolve)
		if err != nil {
			return false, err
		}
		if next == domain.StatusRemoved {
			delete(l.Entries, id)
			res = Annulled
		} else {
			w.Status = next
			res = Resolved
		}
		return true, nil
	})
	if err != nil {
		return "", err
	}
	s.log.Info("bet "+string(res), "op", "resolve", "bet_id", id, "actor", actor)
	return res, nil
}

// List returns up to limit wagers, newest first. An empty filter matches
// every status.
func (s *Ledger) List(ctx context.Context, limit int, filter domain.Status) ([]domain.Wager, error) {
	if filter != "" && !filter.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStatus, filter)
	}
	var out []domain.Wager
	err := s.run(ctx, "list", func(l *domain.Ledger) (bool, error) {
		for _, id := range l.Newest() {
			if len(out) >= limit {
				break
			}
			w := l.Entries[id]
			if filter != "" && w.Status != filter {
				continue
			}
			out = append(out, *w)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Ledger) Get(ctx context.Context, id domain.WagerID) (domain.Wager, error) {
	var out domain.Wager
	err := s.run(ctx, "get", func(l *domain.Ledger) (bool, error) {
		w, ok := l.Entries[id]
		if !ok {
			return false, domain.ErrNotFound
		}
		out = *w
		return false, nil
	})
	return out, err
}
