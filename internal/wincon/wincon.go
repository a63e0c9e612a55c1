// Package wincon evaluates victory conditions on a fixed polling interval
// and emits a terminal outcome exactly once per match.
package wincon

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tacband/skirmish/internal/clock"
	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/event"
	"github.com/tacband/skirmish/internal/health"
	"github.com/tacband/skirmish/internal/roster"
	"github.com/tacband/skirmish/pkg/core"
)

// Evaluator polls team state against the configured victory predicates.
type Evaluator struct {
	cfg    config.WinConfig
	bus    *event.Bus
	clock  *clock.Clock
	roster *roster.Roster
	health *health.State
	log    *slog.Logger

	mu          sync.Mutex
	outcome     core.WinConditionOutcome
	lastPollAt  float64
	polledOnce  bool
	inOvertime  bool
	unsubscribe func()
}

// New creates a win-condition evaluator and, when sudden death is enabled,
// subscribes to unit deaths so the first death in overtime decides.
func New(cfg config.WinConfig, bus *event.Bus, clk *clock.Clock, r *roster.Roster, h *health.State, log *slog.Logger) *Evaluator {
	e := &Evaluator{
		cfg:    cfg,
		bus:    bus,
		clock:  clk,
		roster: r,
		health: h,
		log:    log,
	}
	if cfg.SuddenDeath {
		e.unsubscribe = bus.UnitDied.Subscribe(e.onUnitDied)
	}
	return e
}

// Shutdown releases event subscriptions.
func (e *Evaluator) Shutdown() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// Outcome returns the current (possibly still in-progress) outcome.
func (e *Evaluator) Outcome() core.WinConditionOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outcome
}

// Decided reports whether the match has ended.
func (e *Evaluator) Decided() bool {
	return e.Outcome().Decided()
}

// TeamStatusFor derives the team's survival state from live counts and
// health percentage.
func (e *Evaluator) TeamStatusFor(team core.Team) core.TeamStatus {
	out := e.Outcome()
	if out.Decided() && out.WinningTeam == team {
		return core.TeamVictorious
	}
	if e.roster.AliveCount(team) == 0 {
		return core.TeamEliminated
	}
	cur, max := e.health.TeamHealth(team)
	if max <= 0 {
		return core.TeamActive
	}
	pct := float64(cur) / float64(max)
	switch {
	case pct < 0.25:
		return core.TeamCriticallyWeakened
	case pct < 0.5:
		return core.TeamWeakened
	default:
		return core.TeamActive
	}
}

// Tick polls victory conditions. The warm-up guard suppresses evaluation
// during setup so a match cannot end before it meaningfully started.
func (e *Evaluator) Tick() {
	if e.Decided() {
		return
	}
	now := e.clock.Now()
	if now < e.cfg.MinMatchDuration {
		return
	}

	e.mu.Lock()
	if e.polledOnce && now-e.lastPollAt < e.cfg.PollIntervalSec {
		e.mu.Unlock()
		return
	}
	e.polledOnce = true
	e.lastPollAt = now
	e.mu.Unlock()

	// Elimination is always live; a board with no remaining opposition ends
	// the match regardless of the configured primary condition.
	if e.checkElimination() {
		return
	}
	switch e.cfg.Condition {
	case "health":
		if e.cfg.HealthThresholdPct > 0 && e.checkHealthThreshold() {
			return
		}
	case "timelimit":
		if e.cfg.TimeLimitSec > 0 {
			e.checkTimeLimit(now)
		}
	}
}

// checkElimination: exactly one team with live units wins; zero is a draw.
func (e *Evaluator) checkElimination() bool {
	aliveA := e.roster.AliveCount(core.TeamA)
	aliveB := e.roster.AliveCount(core.TeamB)

	switch {
	case aliveA == 0 && aliveB == 0:
		return e.settle(core.MatchDraw, core.TeamNone, "both teams eliminated")
	case aliveA == 0:
		return e.settle(core.MatchTeamBWins, core.TeamB, "TeamA eliminated")
	case aliveB == 0:
		return e.settle(core.MatchTeamAWins, core.TeamA, "TeamB eliminated")
	}
	return false
}

// checkHealthThreshold ends the match when a team's total health percentage
// drops below the configured floor.
func (e *Evaluator) checkHealthThreshold() bool {
	for _, team := range []core.Team{core.TeamA, core.TeamB} {
		cur, max := e.health.TeamHealth(team)
		if max <= 0 {
			continue
		}
		pct := float64(cur) / float64(max) * 100
		if pct < e.cfg.HealthThresholdPct {
			winner := team.Opponent()
			result := core.MatchTeamAWins
			if winner == core.TeamB {
				result = core.MatchTeamBWins
			}
			return e.settle(result, winner,
				fmt.Sprintf("%s health fell below %.0f%%", team.String(), e.cfg.HealthThresholdPct))
		}
	}
	return false
}

// checkTimeLimit handles expiry: sudden death hands the decision to the next
// death, otherwise the healthier team wins and equal health is a timeout draw.
func (e *Evaluator) checkTimeLimit(now float64) {
	if now < e.cfg.TimeLimitSec {
		return
	}

	if e.cfg.SuddenDeath {
		e.mu.Lock()
		entered := !e.inOvertime
		e.inOvertime = true
		e.mu.Unlock()
		if entered && e.log != nil {
			e.log.Info("time limit reached, sudden death overtime begins")
		}
		return
	}

	curA, maxA := e.health.TeamHealth(core.TeamA)
	curB, maxB := e.health.TeamHealth(core.TeamB)
	pctA, pctB := 0.0, 0.0
	if maxA > 0 {
		pctA = float64(curA) / float64(maxA)
	}
	if maxB > 0 {
		pctB = float64(curB) / float64(maxB)
	}

	switch {
	case pctA > pctB:
		e.settle(core.MatchTeamAWins, core.TeamA, "time limit reached with higher team health")
	case pctB > pctA:
		e.settle(core.MatchTeamBWins, core.TeamB, "time limit reached with higher team health")
	default:
		e.settle(core.MatchTimeout, core.TeamNone, "time limit reached with equal team health")
	}
}

// onUnitDied decides overtime: the first death after the time limit loses
// the match for its team.
func (e *Evaluator) onUnitDied(ev core.UnitDiedEvent) {
	e.mu.Lock()
	overtime := e.inOvertime
	e.mu.Unlock()
	if !overtime || e.Decided() {
		return
	}

	winner := ev.Team.Opponent()
	result := core.MatchTeamAWins
	if winner == core.TeamB {
		result = core.MatchTeamBWins
	}
	e.settle(result, winner, fmt.Sprintf("sudden death: %s lost a unit", ev.Team.String()))
}

// settle records the terminal outcome and fires the event exactly once.
func (e *Evaluator) settle(result core.MatchResult, winner core.Team, reason string) bool {
	e.mu.Lock()
	if e.outcome.Decided() {
		e.mu.Unlock()
		return true
	}
	e.outcome = core.WinConditionOutcome{
		Result:      result,
		WinningTeam: winner,
		Reason:      reason,
	}
	out := e.outcome
	e.mu.Unlock()

	if e.log != nil {
		e.log.Info("win condition met",
			"result", result.String(), "winner", winner.String(), "reason", reason)
	}

	e.bus.WinConditionMet.Publish(core.WinConditionMetEvent{
		Outcome: out,
		Tick:    e.clock.Tick(),
	})
	return true
}
