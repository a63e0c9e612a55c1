package combat

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/health"
	"github.com/tacband/skirmish/internal/los"
	"github.com/tacband/skirmish/internal/roster"
	"github.com/tacband/skirmish/pkg/core"
)

// coverProximity is how close to the target (in world units) an obstacle hit
// must land for the target to count as sheltering behind it.
const coverProximity = 1.5

// coverCastHeight is the height at which the cover probe is cast. Low, so
// waist-high cover that does not block sight still mitigates damage.
const coverCastHeight = 0.5

// Executor applies validated attacks.
type Executor struct {
	cfg    config.CombatConfig
	health *health.State
	roster *roster.Roster
	los    *los.Engine // nil disables cover mitigation
	log    *slog.Logger
}

// NewExecutor creates an attack executor.
func NewExecutor(cfg config.CombatConfig, h *health.State, r *roster.Roster, sight *los.Engine, log *slog.Logger) *Executor {
	return &Executor{
		cfg:    cfg,
		health: h,
		roster: r,
		los:    sight,
		log:    log,
	}
}

// Execute applies damage for an already-validated attack and returns the
// structured result. The target's death transition, if any, runs
// synchronously within this call.
func (e *Executor) Execute(attackerID, targetID core.UnitID) core.AttackResult {
	attacker, okA := e.roster.Get(attackerID)
	target, okT := e.roster.Get(targetID)
	if !okA || !okT {
		return core.AttackResult{Message: "unit lookup failed during execution"}
	}

	damage := e.cfg.BaseDamage
	if cover := e.coverValueFor(attacker, target); cover > 0 {
		mitigated := int(math.Round(float64(damage) * (1 - cover)))
		if e.log != nil {
			e.log.Debug("cover mitigated attack damage",
				"attacker", attackerID, "target", targetID,
				"base", damage, "mitigated", mitigated)
		}
		damage = mitigated
	}

	applied := e.health.TakeDamage(targetID, damage, attackerID)
	if applied <= 0 {
		return core.AttackResult{
			Success: true,
			Damage:  0,
			Message: "attack connected but dealt no damage",
		}
	}

	return core.AttackResult{
		Success: true,
		Damage:  applied,
		Message: fmt.Sprintf("dealt %d damage", applied),
	}
}

// coverValueFor probes a low ray from attacker to target. An obstacle hit
// landing close to the target means the target shelters behind it; its cover
// value mitigates incoming damage even when it is too low to block sight.
// The probe uses the cover-aware cast so obstacles that grant cover without
// blocking sight still count.
func (e *Executor) coverValueFor(attacker, target roster.UnitRecord) float64 {
	if !e.cfg.CoverMitigation || e.los == nil {
		return 0
	}
	from := core.Position3D{X: attacker.WorldPos.X, Y: coverCastHeight, Z: attacker.WorldPos.Z}
	to := core.Position3D{X: target.WorldPos.X, Y: coverCastHeight, Z: target.WorldPos.Z}
	hit, blocked := e.los.Raycaster().CastCover(from, to)
	if !blocked || hit.CoverValue <= 0 {
		return 0
	}
	if hit.Point.Distance(to) > coverProximity {
		return 0
	}
	if hit.CoverValue > 1 {
		return 1
	}
	return hit.CoverValue
}
