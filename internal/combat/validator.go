// Package combat validates and resolves attacks. Validation always re-runs
// at execution time; a result computed on an earlier tick is never trusted.
package combat

import (
	"math"

	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/los"
	"github.com/tacband/skirmish/internal/roster"
	"github.com/tacband/skirmish/pkg/core"
)

// Validation failure reasons, returned verbatim to callers.
const (
	ReasonAttackerUnknown = "attacker is not registered"
	ReasonTargetUnknown   = "target is not registered"
	ReasonAttackerDead    = "attacker is not alive"
	ReasonTargetDead      = "target is not alive"
	ReasonFriendlyFire    = "target is on the same team"
	ReasonOutOfRange      = "target is out of range"
	ReasonNoAttacksLeft   = "no attacks remaining this turn"
	ReasonSelfAttack      = "attacker cannot target itself"
)

// rangeEpsilon absorbs floating point error at the exact range boundary.
const rangeEpsilon = 1e-6

// lenientRayOffset is how far each side ray of the lenient diagonal sample
// is displaced perpendicular to the sight line, in world units.
const lenientRayOffset = 0.25

// Validator checks attacker and target eligibility.
type Validator struct {
	cfg    config.CombatConfig
	roster *roster.Roster
	los    *los.Engine // nil degrades to "always clear"
}

// NewValidator creates an attack validator. sight may be nil, in which case
// line of sight is treated as always clear rather than failing every attack.
func NewValidator(cfg config.CombatConfig, r *roster.Roster, sight *los.Engine) *Validator {
	return &Validator{
		cfg:    cfg,
		roster: r,
		los:    sight,
	}
}

// Validate checks the attack and returns the first failing reason.
func (v *Validator) Validate(attackerID, targetID core.UnitID) core.AttackValidationResult {
	fail := func(reason string) core.AttackValidationResult {
		return core.AttackValidationResult{AttackerID: attackerID, TargetID: targetID, Reason: reason}
	}

	if attackerID == targetID {
		return fail(ReasonSelfAttack)
	}

	attacker, ok := v.roster.Get(attackerID)
	if !ok {
		return fail(ReasonAttackerUnknown)
	}
	target, ok := v.roster.Get(targetID)
	if !ok {
		return fail(ReasonTargetUnknown)
	}
	if !attacker.Alive {
		return fail(ReasonAttackerDead)
	}
	if !target.Alive {
		return fail(ReasonTargetDead)
	}
	if attacker.Team == target.Team {
		return fail(ReasonFriendlyFire)
	}

	attackRange := attacker.AttackRange
	if attackRange <= 0 {
		attackRange = v.cfg.AttackRange
	}
	if attacker.WorldPos.Distance(target.WorldPos) > attackRange+rangeEpsilon {
		return fail(ReasonOutOfRange)
	}

	if v.cfg.RequireLineOfSight && v.los != nil {
		if res, clear := v.checkSight(attacker, target); !clear {
			return fail(res.Reason)
		}
	}

	return core.AttackValidationResult{IsValid: true, AttackerID: attackerID, TargetID: targetID}
}

// checkSight resolves line of sight between the two units. Diagonal attacks
// under lenient mode sample three rays spread across a small tolerance and
// pass on a majority; strict mode requires the direct ray clear.
func (v *Validator) checkSight(attacker, target roster.UnitRecord) (core.LineOfSightResult, bool) {
	direct := v.los.GetDetails(attacker.WorldPos, target.WorldPos)

	diagonal := attacker.Coord.X != target.Coord.X && attacker.Coord.Z != target.Coord.Z
	if !v.cfg.LenientDiagonalLOS || !diagonal {
		return direct, !direct.IsBlocked
	}

	// Perpendicular offset in the XZ plane for the two side rays.
	dir := target.WorldPos.Sub(attacker.WorldPos)
	length := math.Hypot(dir.X, dir.Z)
	if length < 1e-9 {
		return direct, !direct.IsBlocked
	}
	perp := core.Position3D{X: -dir.Z / length * lenientRayOffset, Z: dir.X / length * lenientRayOffset}

	clear := 0
	if !direct.IsBlocked {
		clear++
	}
	left := v.los.GetDetails(attacker.WorldPos, target.WorldPos.Add(perp))
	if !left.IsBlocked {
		clear++
	}
	right := v.los.GetDetails(attacker.WorldPos, target.WorldPos.Sub(perp))
	if !right.IsBlocked {
		clear++
	}

	if clear*2 >= 3 {
		return direct, true
	}
	if direct.IsBlocked {
		return direct, false
	}
	// Direct ray clear but the majority failed; report the blocked side.
	if left.IsBlocked {
		return left, false
	}
	return right, false
}
