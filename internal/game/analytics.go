package game

import (
	"sync"
	"time"
)

// analytics tracks per-session metrics surfaced in the final report.
type analytics struct {
	mu                 sync.Mutex
	maxStackDepth      int
	totalStackEntries  int
	priorityPasses     int
	cardsPlayed        int
	triggersProcessed  int
	actionsPerTurn     map[int]int
	gameStartTime      time.Time
}

func newAnalytics() *analytics {
	return &analytics{
		actionsPerTurn: make(map[int]int),
		gameStartTime:  time.Now(),
	}
}

func (a *analytics) recordPush(depth int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalStackEntries++
	if depth > a.maxStackDepth {
		a.maxStackDepth = depth
	}
}

func (a *analytics) recordPass() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.priorityPasses++
}

func (a *analytics) recordPlay(turn int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cardsPlayed++
	a.actionsPerTurn[turn]++
}

func (a *analytics) recordTriggers(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.triggersProcessed += n
}

// AnalyticsReport is the exported snapshot of session metrics.
type AnalyticsReport struct {
	MaxStackDepth     int           `json:"max_stack_depth"`
	TotalStackEntries int           `json:"total_stack_entries"`
	PriorityPasses    int           `json:"priority_passes"`
	CardsPlayed       int           `json:"cards_played"`
	TriggersProcessed int           `json:"triggers_processed"`
	Duration          time.Duration `json:"duration"`
}

func (a *analytics) report() AnalyticsReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AnalyticsReport{
		MaxStackDepth:     a.maxStackDepth,
		TotalStackEntries: a.totalStackEntries,
		PriorityPasses:    a.priorityPasses,
		CardsPlayed:       a.cardsPlayed,
		TriggersProcessed: a.triggersProcessed,
		Duration:          time.Since(a.gameStartTime),
	}
}
