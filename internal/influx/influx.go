// Package influx ships engine performance samples and match events to
// InfluxDB, falling back to a gzip line-protocol file when the server is
// unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/tacband/skirmish/internal/config"
	"github.com/tacband/skirmish/internal/monitor"
	"github.com/tacband/skirmish/pkg/core"
)

// DefaultPerformanceBucket receives engine load samples when influx.bucket
// is not configured.
const DefaultPerformanceBucket = "engine_performance"

// MatchEventsBucket receives attack and death points.
const MatchEventsBucket = "match_events"

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	perfBucket string
}

// NewManager creates a new InfluxDB manager. The performance bucket name
// comes from the config; match events always land in MatchEventsBucket.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	perfBucket := cfg.Bucket
	if perfBucket == "" {
		perfBucket = DefaultPerformanceBucket
	}
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		IsValid:     false,
		BucketNames: []string{perfBucket, MatchEventsBucket},
		Logger:      log,
		BackupPath:  backupPath,
		cfg:         cfg,
		perfBucket:  perfBucket,
	}
}

// Connect establishes a connection to InfluxDB.
func (m *Manager) Connect() error {
	if !m.cfg.Enabled {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %v", err)
			}
			m.BackupWriter = gzip.NewWriter(file)
		}
	} else {
		m.IsValid = true
	}

	if m.IsValid {
		err = m.setupOrganizationAndBuckets()
		if err != nil {
			return err
		}
		m.CreateWriters()
		m.Logger.Info().Msg("InfluxDB client initialized")
	} else {
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
	}

	return nil
}

func (m *Manager) setupOrganizationAndBuckets() error {
	ctx := context.Background()
	orgName := m.cfg.Org

	_, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		_, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Error().Err(err).Str("org", orgName).Msg("Error getting organization")
		return err
	}

	// ensure buckets exist with 90 day retention
	for _, bucket := range m.BucketNames {
		_, err = m.Client.BucketsAPI().FindBucketByName(ctx, bucket)
		if err != nil {
			m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

			rule := domain.RetentionRuleTypeExpire
			_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
				Type:         &rule,
				EverySeconds: 60 * 60 * 24 * 90,
			})
			if err != nil {
				m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
				return err
			}
		}
	}

	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	for _, bucket := range m.BucketNames {
		m.Logger.Trace().Str("bucket", bucket).Msg("Creating InfluxDB writer")
		m.Writers[bucket] = m.Client.WriteAPI(m.cfg.Org, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)
	}

	m.Logger.Debug().Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		if _, ok := m.Writers[bucket]; !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		m.Writers[bucket].WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Duration(1*time.Nanosecond))
	_, err := m.BackupWriter.Write([]byte(lineProtocol + "\n"))
	if err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
	}
	return nil
}

// WriteSnapshot records one engine load sample.
func (m *Manager) WriteSnapshot(ctx context.Context, snap monitor.Snapshot) error {
	point := influxdb2_write.NewPointWithMeasurement("engine_tick").
		AddField("frame_ms", snap.FrameTimeMs).
		AddField("rolling_frame_ms", snap.RollingFrameMs).
		AddField("raycast_queue", snap.RaycastQueueLen).
		AddField("death_queue", snap.DeathQueueLen).
		AddField("active_moves", snap.ActiveMoves).
		AddField("raycast_budget", snap.RaycastBudget).
		AddField("tick", int64(snap.Tick)).
		SetTime(snap.CapturedAt)
	return m.WritePoint(ctx, m.perfBucket, point)
}

// WriteAttack records a resolved attack.
func (m *Manager) WriteAttack(ctx context.Context, ev core.AttackCompletedEvent) error {
	point := influxdb2_write.NewPointWithMeasurement("attack").
		AddTag("success", fmt.Sprintf("%t", ev.Result.Success)).
		AddField("attacker", int(ev.AttackerID)).
		AddField("target", int(ev.TargetID)).
		AddField("damage", ev.Result.Damage).
		AddField("tick", int64(ev.Tick)).
		SetTime(time.Now())
	return m.WritePoint(ctx, MatchEventsBucket, point)
}

// WriteDeath records a processed unit death.
func (m *Manager) WriteDeath(ctx context.Context, ev core.UnitDiedEvent) error {
	point := influxdb2_write.NewPointWithMeasurement("unit_death").
		AddTag("team", ev.Team.String()).
		AddField("unit", int(ev.UnitID)).
		AddField("killer", int(ev.KillerID)).
		AddField("tick", int64(ev.Tick)).
		SetTime(time.Now())
	return m.WritePoint(ctx, MatchEventsBucket, point)
}

// Close flushes writers and the backup file.
func (m *Manager) Close() {
	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	if m.BackupWriter != nil {
		if err := m.BackupWriter.Close(); err != nil {
			m.Logger.Error().Err(err).Msg("Error closing InfluxDB backup writer")
		}
	}
}
