package agent

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pario-ai/persona/pkg/models"
)

var itemsSeen = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "persona_items_seen_total",
	Help: "Items read from platform streams",
}, []string{"stream"})

var decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "persona_decisions_total",
	Help: "Pipeline decisions by action and outcome",
}, []string{"action", "outcome"})

// Counters tracks activity since startup. Counts only go up.
type Counters struct {
	postsSeen    atomic.Int64
	commentsSeen atomic.Int64
	inboxSeen    atomic.Int64
	postsMade    atomic.Int64
	commentsMade atomic.Int64
}

func (c *Counters) Snapshot() models.CounterSnapshot {
	return models.CounterSnapshot{
		PostsSeen:    c.postsSeen.Load(),
		CommentsSeen: c.commentsSeen.Load(),
		InboxSeen:    c.inboxSeen.Load(),
		PostsMade:    c.postsMade.Load(),
		CommentsMade: c.commentsMade.Load(),
	}
}

// StatusLine renders the one-line activity report.
func StatusLine(c models.CounterSnapshot, b models.BudgetStatus) string {
	return fmt.Sprintf("READ: submissions=%d\tcomment=%d\t| WRITE: post=%d\treply=%d\t| SPEND=%d%%",
		c.PostsSeen, c.CommentsSeen, c.PostsMade, c.CommentsMade, b.Percent)
}
