package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Config is the immutable configuration value object handed to the engine
// composition root. After Load, nothing outside this package touches viper.
type Config struct {
	LogLevel string `json:"logLevel" mapstructure:"logLevel"`
	LogsDir  string `json:"logsDir" mapstructure:"logsDir"`

	Grid     GridConfig     `json:"grid" mapstructure:"grid"`
	Movement MovementConfig `json:"movement" mapstructure:"movement"`
	Combat   CombatConfig   `json:"combat" mapstructure:"combat"`
	LOS      LOSConfig      `json:"los" mapstructure:"los"`
	Health   HealthConfig   `json:"health" mapstructure:"health"`
	Death    DeathConfig    `json:"death" mapstructure:"death"`
	Win      WinConfig      `json:"win" mapstructure:"win"`
	Replay   ReplayConfig   `json:"replay" mapstructure:"replay"`
	Influx   InfluxConfig   `json:"influx" mapstructure:"influx"`
	Otel     OtelConfig     `json:"otel" mapstructure:"otel"`
}

// GridConfig holds board dimensions and grid-to-world mapping.
type GridConfig struct {
	Width    int     `json:"width" mapstructure:"width"`
	Height   int     `json:"height" mapstructure:"height"`
	CellSize float64 `json:"cellSize" mapstructure:"cellSize"`
	OriginX  float64 `json:"originX" mapstructure:"originX"`
	OriginZ  float64 `json:"originZ" mapstructure:"originZ"`
}

// MovementConfig holds movement validation and animation settings.
type MovementConfig struct {
	Speed              float64 `json:"speed" mapstructure:"speed"` // world units per second
	AllowDiagonal      bool    `json:"allowDiagonal" mapstructure:"allowDiagonal"`
	PreventOverlapping bool    `json:"preventOverlapping" mapstructure:"preventOverlapping"`
	CancelPolicy       string  `json:"cancelPolicy" mapstructure:"cancelPolicy"` // "hold" or "snapback"
	Easing             string  `json:"easing" mapstructure:"easing"`             // "easeinout", "linear", "cubic"
}

// CombatConfig holds attack validation and budget settings.
type CombatConfig struct {
	AttackRange        float64 `json:"attackRange" mapstructure:"attackRange"` // world units
	AttacksPerTurn     int     `json:"attacksPerTurn" mapstructure:"attacksPerTurn"`
	RequireLineOfSight bool    `json:"requireLineOfSight" mapstructure:"requireLineOfSight"`
	LenientDiagonalLOS bool    `json:"lenientDiagonalLOS" mapstructure:"lenientDiagonalLOS"`
	BaseDamage         int     `json:"baseDamage" mapstructure:"baseDamage"`
	CoverMitigation    bool    `json:"coverMitigation" mapstructure:"coverMitigation"`
}

// LOSConfig holds sight-check cache and raycast budget settings.
type LOSConfig struct {
	CacheSize          int     `json:"cacheSize" mapstructure:"cacheSize"`
	CacheValiditySec   float64 `json:"cacheValiditySec" mapstructure:"cacheValiditySec"`
	MinRaycastsPerTick int     `json:"minRaycastsPerTick" mapstructure:"minRaycastsPerTick"`
	MaxRaycastsPerTick int     `json:"maxRaycastsPerTick" mapstructure:"maxRaycastsPerTick"`
	TargetFrameTimeSec float64 `json:"targetFrameTimeSec" mapstructure:"targetFrameTimeSec"`
	RequestTimeoutSec  float64 `json:"requestTimeoutSec" mapstructure:"requestTimeoutSec"`
	EyeHeight          float64 `json:"eyeHeight" mapstructure:"eyeHeight"`
	EndTolerance       float64 `json:"endTolerance" mapstructure:"endTolerance"`
	QuantizeStep       float64 `json:"quantizeStep" mapstructure:"quantizeStep"`
	InvalidationRadius float64 `json:"invalidationRadius" mapstructure:"invalidationRadius"`
	SphereRadius       float64 `json:"sphereRadius" mapstructure:"sphereRadius"` // 0 = thin ray
}

// HealthConfig holds default per-unit health parameters. Individual units
// may override these at placement.
type HealthConfig struct {
	MaxHealth          int     `json:"maxHealth" mapstructure:"maxHealth"`
	ResistancePercent  float64 `json:"resistancePercent" mapstructure:"resistancePercent"`
	MinDamageThreshold int     `json:"minDamageThreshold" mapstructure:"minDamageThreshold"`
	RegenEnabled       bool    `json:"regenEnabled" mapstructure:"regenEnabled"`
	RegenRate          float64 `json:"regenRate" mapstructure:"regenRate"`
	RegenIntervalSec   float64 `json:"regenIntervalSec" mapstructure:"regenIntervalSec"`
}

// DeathConfig holds death-queue and elimination settings.
type DeathConfig struct {
	MaxDeathsPerTick        int `json:"maxDeathsPerTick" mapstructure:"maxDeathsPerTick"`
	MinimumUnitsForSurvival int `json:"minimumUnitsForSurvival" mapstructure:"minimumUnitsForSurvival"`
}

// WinConfig holds win-condition evaluation settings.
type WinConfig struct {
	Condition          string  `json:"condition" mapstructure:"condition"` // "elimination", "health", "timelimit"
	PollIntervalSec    float64 `json:"pollIntervalSec" mapstructure:"pollIntervalSec"`
	MinMatchDuration   float64 `json:"minMatchDurationSec" mapstructure:"minMatchDurationSec"`
	TimeLimitSec       float64 `json:"timeLimitSec" mapstructure:"timeLimitSec"`
	HealthThresholdPct float64 `json:"healthThresholdPct" mapstructure:"healthThresholdPct"`
	SuddenDeath        bool    `json:"suddenDeath" mapstructure:"suddenDeath"`
}

// ReplayConfig selects and configures the match recording backend.
type ReplayConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Backend   string `json:"backend" mapstructure:"backend"` // "memory", "sqlite", "postgres", "websocket"
	OutputDir string `json:"outputDir" mapstructure:"outputDir"`
	Compress  bool   `json:"compress" mapstructure:"compress"`

	SqlitePath string `json:"sqlitePath" mapstructure:"sqlitePath"`

	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`

	WebsocketURL    string `json:"websocketUrl" mapstructure:"websocketUrl"`
	WebsocketSecret string `json:"websocketSecret" mapstructure:"websocketSecret"`
}

// PostgresConfig holds connection settings for the postgres replay backend.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds settings for the optional performance metrics sink.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// OtelConfig holds OpenTelemetry export settings.
type OtelConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"serviceName" mapstructure:"serviceName"`
	Endpoint    string `json:"endpoint" mapstructure:"endpoint"`
	Insecure    bool   `json:"insecure" mapstructure:"insecure"`
}

// Load reads configuration from an optional JSON file in configDir and sets
// default values for every option. A missing config file is not an error;
// the defaults describe a playable 10x10 skirmish.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./skirmishlogs")

	viper.SetDefault("grid.width", 10)
	viper.SetDefault("grid.height", 10)
	viper.SetDefault("grid.cellSize", 1.0)
	viper.SetDefault("grid.originX", 0.0)
	viper.SetDefault("grid.originZ", 0.0)

	viper.SetDefault("movement.speed", 2.0)
	viper.SetDefault("movement.allowDiagonal", false)
	viper.SetDefault("movement.preventOverlapping", false)
	viper.SetDefault("movement.cancelPolicy", "hold")
	viper.SetDefault("movement.easing", "easeinout")

	viper.SetDefault("combat.attackRange", 3.0)
	viper.SetDefault("combat.attacksPerTurn", 1)
	viper.SetDefault("combat.requireLineOfSight", true)
	viper.SetDefault("combat.lenientDiagonalLOS", true)
	viper.SetDefault("combat.baseDamage", 25)
	viper.SetDefault("combat.coverMitigation", true)

	viper.SetDefault("los.cacheSize", 512)
	viper.SetDefault("los.cacheValiditySec", 0.5)
	viper.SetDefault("los.minRaycastsPerTick", 2)
	viper.SetDefault("los.maxRaycastsPerTick", 32)
	viper.SetDefault("los.targetFrameTimeSec", 1.0/60.0)
	viper.SetDefault("los.requestTimeoutSec", 1.0)
	viper.SetDefault("los.eyeHeight", 1.6)
	viper.SetDefault("los.endTolerance", 0.1)
	viper.SetDefault("los.quantizeStep", 0.5)
	viper.SetDefault("los.invalidationRadius", 2.0)
	viper.SetDefault("los.sphereRadius", 0.0)

	viper.SetDefault("health.maxHealth", 100)
	viper.SetDefault("health.resistancePercent", 0.0)
	viper.SetDefault("health.minDamageThreshold", 0)
	viper.SetDefault("health.regenEnabled", false)
	viper.SetDefault("health.regenRate", 1.0)
	viper.SetDefault("health.regenIntervalSec", 5.0)

	viper.SetDefault("death.maxDeathsPerTick", 3)
	viper.SetDefault("death.minimumUnitsForSurvival", 1)

	viper.SetDefault("win.condition", "elimination")
	viper.SetDefault("win.pollIntervalSec", 0.5)
	viper.SetDefault("win.minMatchDurationSec", 1.0)
	viper.SetDefault("win.timeLimitSec", 0.0)
	viper.SetDefault("win.healthThresholdPct", 0.0)
	viper.SetDefault("win.suddenDeath", false)

	viper.SetDefault("replay.enabled", false)
	viper.SetDefault("replay.backend", "memory")
	viper.SetDefault("replay.outputDir", "./replays")
	viper.SetDefault("replay.compress", true)
	viper.SetDefault("replay.sqlitePath", "./replays/skirmish.db")
	viper.SetDefault("replay.postgres.host", "localhost")
	viper.SetDefault("replay.postgres.port", "5432")
	viper.SetDefault("replay.postgres.username", "postgres")
	viper.SetDefault("replay.postgres.password", "postgres")
	viper.SetDefault("replay.postgres.database", "skirmish")
	viper.SetDefault("replay.websocketUrl", "ws://localhost:8080/stream")
	viper.SetDefault("replay.websocketSecret", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "skirmish-metrics")
	viper.SetDefault("influx.bucket", "tick_performance")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "skirmish-engine")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("skirmish.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// Get unmarshals the loaded configuration into a Config value.
func Get() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Default returns the default configuration without touching any file.
// Tests and embedded hosts use this instead of Load.
func Default() Config {
	return Config{
		LogLevel: "info",
		LogsDir:  "./skirmishlogs",
		Grid:     GridConfig{Width: 10, Height: 10, CellSize: 1.0},
		Movement: MovementConfig{
			Speed:        2.0,
			CancelPolicy: "hold",
			Easing:       "easeinout",
		},
		Combat: CombatConfig{
			AttackRange:        3.0,
			AttacksPerTurn:     1,
			RequireLineOfSight: true,
			LenientDiagonalLOS: true,
			BaseDamage:         25,
			CoverMitigation:    true,
		},
		LOS: LOSConfig{
			CacheSize:          512,
			CacheValiditySec:   0.5,
			MinRaycastsPerTick: 2,
			MaxRaycastsPerTick: 32,
			TargetFrameTimeSec: 1.0 / 60.0,
			RequestTimeoutSec:  1.0,
			EyeHeight:          1.6,
			EndTolerance:       0.1,
			QuantizeStep:       0.5,
			InvalidationRadius: 2.0,
		},
		Health: HealthConfig{
			MaxHealth:        100,
			RegenRate:        1.0,
			RegenIntervalSec: 5.0,
		},
		Death: DeathConfig{
			MaxDeathsPerTick:        3,
			MinimumUnitsForSurvival: 1,
		},
		Win: WinConfig{
			Condition:        "elimination",
			PollIntervalSec:  0.5,
			MinMatchDuration: 1.0,
		},
		Replay: ReplayConfig{
			Backend:   "memory",
			OutputDir: "./replays",
		},
	}
}
