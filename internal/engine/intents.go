package engine

import (
	"fmt"
	"strconv"

	"github.com/tacband/skirmish/internal/dispatcher"
	"github.com/tacband/skirmish/pkg/core"
)

// RegisterIntents wires the host command surface onto a dispatcher. The
// attack handler is buffered so input bursts cannot stall the input thread.
func (e *Engine) RegisterIntents(d *dispatcher.Dispatcher) {
	d.Register("move", e.handleMoveIntent, dispatcher.Logged())
	d.Register("attack", e.handleAttackIntent, dispatcher.Buffered(64), dispatcher.Logged())
	d.Register("cancel", e.handleCancelIntent)
	d.Register("endTurn", func(dispatcher.Intent) (any, error) {
		e.ResetAttacksForNewTurn()
		return "ok", nil
	})
}

// handleMoveIntent expects args: unitID, targetX, targetZ.
func (e *Engine) handleMoveIntent(in dispatcher.Intent) (any, error) {
	if len(in.Args) != 3 {
		return nil, fmt.Errorf("move expects 3 args, got %d", len(in.Args))
	}
	unitID, err := parseUnitID(in.Args[0])
	if err != nil {
		return nil, err
	}
	x, err := strconv.Atoi(in.Args[1])
	if err != nil {
		return nil, fmt.Errorf("invalid target x %q: %w", in.Args[1], err)
	}
	z, err := strconv.Atoi(in.Args[2])
	if err != nil {
		return nil, fmt.Errorf("invalid target z %q: %w", in.Args[2], err)
	}

	ok, result := e.RequestMove(unitID, core.GridCoordinate{X: x, Z: z})
	if !ok {
		return result, fmt.Errorf("move rejected: %s", result.Reason)
	}
	return result, nil
}

// handleAttackIntent expects args: attackerID, targetID.
func (e *Engine) handleAttackIntent(in dispatcher.Intent) (any, error) {
	if len(in.Args) != 2 {
		return nil, fmt.Errorf("attack expects 2 args, got %d", len(in.Args))
	}
	attackerID, err := parseUnitID(in.Args[0])
	if err != nil {
		return nil, err
	}
	targetID, err := parseUnitID(in.Args[1])
	if err != nil {
		return nil, err
	}

	result := e.RequestAttack(attackerID, targetID)
	if !result.Success {
		return result, fmt.Errorf("attack rejected: %s", result.Message)
	}
	return result, nil
}

// handleCancelIntent expects args: unitID.
func (e *Engine) handleCancelIntent(in dispatcher.Intent) (any, error) {
	if len(in.Args) != 1 {
		return nil, fmt.Errorf("cancel expects 1 arg, got %d", len(in.Args))
	}
	unitID, err := parseUnitID(in.Args[0])
	if err != nil {
		return nil, err
	}
	if !e.CancelMove(unitID) {
		return nil, fmt.Errorf("unit %d has no move in flight", unitID)
	}
	return "cancelled", nil
}

func parseUnitID(s string) (core.UnitID, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return core.NoUnit, fmt.Errorf("invalid unit id %q: %w", s, err)
	}
	return core.UnitID(v), nil
}
