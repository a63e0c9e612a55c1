// Command skirmishd runs the combat engine headless: it loads config,
// places a scripted scenario on the board and ticks the simulation until a
// win condition fires, streaming events to the configured replay backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/dispatcher"
	"github.com/tacband/skirmish/internal/engine"
	"github.com/tacband/skirmish/internal/health"
	"github.com/tacband/skirmish/internal/influx"
	"github.com/tacband/skirmish/internal/logging"
	intOtel "github.com/tacband/skirmish/internal/otel"
	"github.com/tacband/skirmish/internal/replay"
	"github.com/tacband/skirmish/internal/replay/storage"
	"github.com/tacband/skirmish/pkg/core"
)

const (
	tickRate    = 60.0
	maxDuration = 120 * time.Second
)

var version = "0.1.0"

func main() {
	configDir := flag.String("config", ".", "directory containing skirmish.cfg.json")
	matchName := flag.String("match", "scripted skirmish", "match name for the replay")
	flag.Parse()

	if err := run(*configDir, *matchName); err != nil {
		fmt.Fprintln(os.Stderr, "skirmishd:", err)
		os.Exit(1)
	}
}

func run(configDir, matchName string) error {
	if err := config.Load(configDir); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := config.Get()
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	sessionStart := time.Now()
	if err := os.MkdirAll(cfg.LogsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	// OTel first so the slog bridge can attach to it.
	var otelLogWriter *os.File
	var logProvider *sdklog.LoggerProvider
	otelProvider, err := intOtel.New(otelConfig(cfg, &otelLogWriter, sessionStart))
	if err != nil {
		return fmt.Errorf("initializing otel: %w", err)
	}
	if otelLogWriter != nil {
		defer otelLogWriter.Close()
	}
	logProvider = otelProvider.LoggerProvider()

	logFile, err := os.OpenFile(
		logging.LogFilePath(cfg.LogsDir, "skirmish", sessionStart),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	logManager := logging.NewSlogManager()
	logManager.Setup(logFile, cfg.LogLevel, logProvider, nil)
	logger := logManager.Logger()

	logger.Info("skirmishd starting", "version", version, "configDir", configDir)

	// Optional replay recording.
	var recorder *replay.Recorder
	if cfg.Replay.Enabled {
		backend, err := storage.NewBackend(cfg.Replay, logManager)
		if err != nil {
			return fmt.Errorf("building replay backend: %w", err)
		}
		if err := backend.Init(); err != nil {
			return fmt.Errorf("initializing replay backend: %w", err)
		}
		recorder = replay.NewRecorder(backend, logManager.Component("replay"))
	}

	eng, err := engine.New(engine.Dependencies{
		Config:   cfg,
		Log:      logger,
		Recorder: recorder,
	})
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	defer eng.Shutdown()

	// Optional InfluxDB performance sink.
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	var perfSink *influx.Manager
	if cfg.Influx.Enabled {
		perfSink = influx.NewManager(cfg.Influx, zlog,
			filepath.Join(cfg.LogsDir, "influx_backup.lp.gz"))
		if err := perfSink.Connect(); err != nil {
			logger.Warn("influx unavailable, continuing without it", "error", err)
			perfSink = nil
		} else {
			defer perfSink.Close()
			eng.Events().AttackCompleted.Subscribe(func(ev core.AttackCompletedEvent) {
				_ = perfSink.WriteAttack(context.Background(), ev)
			})
			eng.Events().UnitDied.Subscribe(func(ev core.UnitDiedEvent) {
				_ = perfSink.WriteDeath(context.Background(), ev)
			})
		}
	}

	disp, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return fmt.Errorf("building dispatcher: %w", err)
	}
	eng.RegisterIntents(disp)

	if err := eng.StartMatch(matchName); err != nil {
		return fmt.Errorf("starting match: %w", err)
	}
	if err := placeScenario(eng); err != nil {
		return fmt.Errorf("placing scenario: %w", err)
	}

	subscribeLogging(eng, logger)

	outcome := runLoop(eng, disp, perfSink)

	logger.Info("match finished",
		"result", outcome.Result.String(),
		"winner", outcome.WinningTeam.String(),
		"reason", outcome.Reason)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := logManager.Flush(ctx); err != nil {
		logger.Warn("log flush failed", "error", err)
	}
	if err := otelProvider.Shutdown(ctx); err != nil {
		logger.Warn("otel shutdown failed", "error", err)
	}
	return nil
}

func otelConfig(cfg config.Config, logWriter **os.File, sessionStart time.Time) intOtel.Config {
	c := intOtel.Config{
		Enabled:      cfg.Otel.Enabled,
		ServiceName:  cfg.Otel.ServiceName,
		BatchTimeout: 5 * time.Second,
		Endpoint:     cfg.Otel.Endpoint,
		Insecure:     cfg.Otel.Insecure,
	}
	if !c.Enabled {
		return c
	}
	if c.Endpoint == "" {
		f, err := os.OpenFile(
			logging.LogFilePath(cfg.LogsDir, "skirmish.otel", sessionStart),
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			*logWriter = f
			c.LogWriter = f
		}
	}
	return c
}

// placeScenario sets up two three-unit teams facing each other across a
// wall with a gap, enough to exercise movement, sight and combat.
func placeScenario(eng *engine.Engine) error {
	units := []engine.UnitSpec{
		{ID: 1, Name: "alpha-1", Team: core.TeamA, Coord: core.GridCoordinate{X: 0, Z: 4}},
		{ID: 2, Name: "alpha-2", Team: core.TeamA, Coord: core.GridCoordinate{X: 0, Z: 5}},
		{ID: 3, Name: "alpha-3", Team: core.TeamA, Coord: core.GridCoordinate{X: 1, Z: 4},
			Health: health.Params{ResistancePercent: 0.25}},
		{ID: 4, Name: "bravo-1", Team: core.TeamB, Coord: core.GridCoordinate{X: 9, Z: 4}},
		{ID: 5, Name: "bravo-2", Team: core.TeamB, Coord: core.GridCoordinate{X: 9, Z: 5}},
		{ID: 6, Name: "bravo-3", Team: core.TeamB, Coord: core.GridCoordinate{X: 8, Z: 5}},
	}
	for _, u := range units {
		if err := eng.PlaceUnit(u); err != nil {
			return err
		}
	}

	// A short wall down the middle, with a gap at z=5.
	for z := 2; z <= 4; z++ {
		err := eng.PlaceObstacle(engine.ObstacleSpec{
			ID:             fmt.Sprintf("wall-%d", z),
			Coord:          core.GridCoordinate{X: 5, Z: z},
			HalfWidth:      0.5,
			HalfDepth:      0.5,
			Height:         2.0,
			BlocksSight:    true,
			BlocksMovement: true,
		})
		if err != nil {
			return err
		}
	}
	// Low crate near the gap grants cover without blocking sight.
	return eng.PlaceObstacle(engine.ObstacleSpec{
		ID:         "crate-1",
		Coord:      core.GridCoordinate{X: 6, Z: 5},
		HalfWidth:  0.4,
		HalfDepth:  0.4,
		Height:     0.9,
		CoverValue: 0.3,
	})
}

// subscribeLogging mirrors the notable engine events into the log so the
// headless run leaves a readable trace.
func subscribeLogging(eng *engine.Engine, logger *slog.Logger) {
	eng.Events().AttackCompleted.Subscribe(func(ev core.AttackCompletedEvent) {
		if ev.Result.Success {
			logger.Info("attack landed",
				"attacker", ev.AttackerID, "target", ev.TargetID, "damage", ev.Result.Damage)
		}
	})
	eng.Events().UnitDied.Subscribe(func(ev core.UnitDiedEvent) {
		logger.Info("unit died",
			"unit", ev.UnitID, "killer", ev.KillerID, "team", ev.Team.String())
	})
	eng.Events().TeamEliminated.Subscribe(func(ev core.TeamEliminatedEvent) {
		logger.Info("team eliminated", "team", ev.Team.String())
	})
}

// runLoop drives the fixed-rate simulation. A crude script moves both
// teams toward the gap and trades attacks whenever a target is in range,
// which reliably ends in an elimination.
func runLoop(eng *engine.Engine, disp *dispatcher.Dispatcher, perfSink *influx.Manager) core.WinConditionOutcome {
	dt := 1.0 / tickRate
	deadline := time.Now().Add(maxDuration)

	for time.Now().Before(deadline) {
		eng.Tick(dt)

		if eng.Outcome().Decided() {
			break
		}

		driveScript(eng, disp)

		if perfSink != nil && eng.Clock().Tick()%uint64(tickRate) == 0 {
			_ = perfSink.WriteSnapshot(context.Background(), eng.Monitor().Last())
		}
	}
	return eng.Outcome()
}

// driveScript issues intents for any idle unit: attack the nearest visible
// enemy if one is in range, otherwise step toward the wall gap.
func driveScript(eng *engine.Engine, disp *dispatcher.Dispatcher) {
	gap := core.GridCoordinate{X: 5, Z: 5}

	for _, u := range eng.Roster().All() {
		if !u.Alive || eng.Movement().IsMoving(u.ID) {
			continue
		}

		if target, ok := nearestEnemy(eng, u.ID); ok {
			res := eng.ValidateAttack(u.ID, target)
			if res.IsValid {
				_, _ = disp.Dispatch(dispatcher.Intent{
					Command:   "attack",
					Args:      []string{fmt.Sprint(u.ID), fmt.Sprint(target)},
					Timestamp: time.Now(),
				})
				continue
			}
		}

		next := stepToward(u.Coord, gap)
		if next != u.Coord {
			_, _ = disp.Dispatch(dispatcher.Intent{
				Command:   "move",
				Args:      []string{fmt.Sprint(u.ID), fmt.Sprint(next.X), fmt.Sprint(next.Z)},
				Timestamp: time.Now(),
			})
		}
	}
}

func nearestEnemy(eng *engine.Engine, unitID core.UnitID) (core.UnitID, bool) {
	u, ok := eng.Roster().Get(unitID)
	if !ok {
		return core.NoUnit, false
	}
	best := core.NoUnit
	bestDist := -1
	for _, other := range eng.Roster().Team(u.Team.Opponent()) {
		if !other.Alive {
			continue
		}
		d := u.Coord.ManhattanDistance(other.Coord)
		if bestDist < 0 || d < bestDist {
			best = other.ID
			bestDist = d
		}
	}
	return best, best != core.NoUnit
}

func stepToward(from, to core.GridCoordinate) core.GridCoordinate {
	next := from
	switch {
	case from.X < to.X:
		next.X++
	case from.X > to.X:
		next.X--
	case from.Z < to.Z:
		next.Z++
	case from.Z > to.Z:
		next.Z--
	}
	return next
}
