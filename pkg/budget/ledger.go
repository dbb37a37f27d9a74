package budget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/models"
)

var spentGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "persona_budget_spent_characters",
	Help: "Characters charged against today's budget",
})

var admissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "persona_budget_admissions_total",
	Help: "Admission decisions by purpose and result",
}, []string{"purpose", "result"})

const dayLayout = "2006-01-02"

// Recorder persists admitted charges.
type Recorder interface {
	Record(ctx context.Context, rec models.SpendRecord) error
}

// Source reports spend already charged since a point in time.
type Source interface {
	TotalSince(ctx context.Context, since time.Time) (int64, error)
}

// Ledger is the daily character budget shared by every watcher.
// The zero value is not usable; construct with New.
type Ledger struct {
	mu    sync.Mutex
	cap   int64
	day   string
	spent int64

	now      func() time.Time
	recorder Recorder
	log      *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces the wall clock used for day rollover.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithRecorder persists every admitted charge to r.
func WithRecorder(r Recorder) Option {
	return func(l *Ledger) { l.recorder = r }
}

// WithLogger sets the logger used for recorder failures.
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// New creates a Ledger with the given daily cap.
func New(cap int64, opts ...Option) *Ledger {
	l := &Ledger{
		cap: cap,
		now: time.Now,
		log: zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	l.day = l.now().Format(dayLayout)
	return l
}

// Admit charges cost against today's budget if it fits.
func (l *Ledger) Admit(cost int) bool {
	return l.AdmitFor("", cost)
}

// AdmitFor is Admit with the charge labelled by purpose.
// A charge is admitted only while spent+cost stays below the cap; a decline
// leaves the ledger untouched.
func (l *Ledger) AdmitFor(purpose models.SpendPurpose, cost int) bool {
	if cost < 0 {
		return false
	}
	c := int64(cost)

	l.mu.Lock()
	now := l.now()
	l.rollover(now)
	if l.spent+c >= l.cap {
		l.mu.Unlock()
		admissions.WithLabelValues(string(purpose), "declined").Inc()
		return false
	}
	l.spent += c
	spent := l.spent
	l.mu.Unlock()

	spentGauge.Set(float64(spent))
	admissions.WithLabelValues(string(purpose), "admitted").Inc()

	if l.recorder != nil {
		rec := models.SpendRecord{Purpose: purpose, Cost: c, CreatedAt: now.UTC()}
		if err := l.recorder.Record(context.Background(), rec); err != nil {
			l.log.Warn("failed to record spend", zap.String("purpose", string(purpose)), zap.Error(err))
		}
	}
	return true
}

// rollover zeroes the tally when the calendar day changed. Caller holds mu.
func (l *Ledger) rollover(now time.Time) {
	day := now.Format(dayLayout)
	if day != l.day {
		l.day = day
		l.spent = 0
		spentGauge.Set(0)
	}
}

// Restore seeds today's tally from previously recorded spend.
// It never lowers the in-memory tally.
func (l *Ledger) Restore(ctx context.Context, src Source) error {
	now := l.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	total, err := src.TotalSince(ctx, start.UTC())
	if err != nil {
		return fmt.Errorf("restore budget: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(now)
	if total > l.spent {
		l.spent = total
	}
	spentGauge.Set(float64(l.spent))
	return nil
}

// Status returns today's spend against the cap.
func (l *Ledger) Status() models.BudgetStatus {
	l.mu.Lock()
	l.rollover(l.now())
	day, spent := l.day, l.spent
	l.mu.Unlock()

	return statusOf(day, spent, l.cap)
}

// StatusFor builds a BudgetStatus from a stored total, for reporting outside
// a running agent.
func StatusFor(day string, spent, cap int64) models.BudgetStatus {
	return statusOf(day, spent, cap)
}

func statusOf(day string, spent, cap int64) models.BudgetStatus {
	remaining := cap - spent
	if remaining < 0 {
		remaining = 0
	}
	var pct int
	if cap > 0 {
		pct = int(spent * 100 / cap)
	}
	return models.BudgetStatus{
		Day:       day,
		Spent:     spent,
		Cap:       cap,
		Remaining: remaining,
		Percent:   pct,
	}
}
