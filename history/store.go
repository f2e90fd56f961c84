// Package history persists one record per finished conversion job so
// operators can audit what ran, with which backend, and how it ended.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/crisslavik/xStage/types"
)

// ErrNotFound is returned when no record exists for a job ID.
var ErrNotFound = errors.New("job record not found")

// JobRecord is one finished job.
type JobRecord struct {
	JobID        string    `gorm:"primaryKey;size:36" json:"job_id"`
	SourcePath   string    `json:"source_path"`
	TargetPath   string    `json:"target_path"`
	Format       string    `gorm:"index" json:"format"`
	Status       string    `gorm:"index" json:"status"`
	MethodUsed   string    `json:"method_used,omitempty"`
	FailureKind  string    `json:"failure_kind,omitempty"`
	Attempts     int       `json:"attempts"`
	WarningCount int       `json:"warning_count"`
	DurationMS   int64     `json:"duration_ms"`
	SubmittedAt  time.Time `json:"submitted_at"`
	FinishedAt   time.Time `gorm:"index" json:"finished_at"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (JobRecord) TableName() string { return "job_history" }

// Store is the SQLite-backed record store.
type Store struct {
	db     *gorm.DB
	keep   int
	logger *zap.Logger
}

// Open opens (or creates) the database and migrates the schema. keep bounds
// retained records; zero keeps everything.
func Open(path string, keep int, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.AutoMigrate(&JobRecord{}); err != nil {
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return &Store{
		db:     db,
		keep:   keep,
		logger: logger.With(zap.String("component", "history")),
	}, nil
}

// Record stores one finished job, converting the engine result into a row.
func (s *Store) Record(ctx context.Context, job *types.ConversionJob, result *types.ConversionResult) error {
	rec := JobRecord{
		JobID:        job.ID,
		SourcePath:   job.SourcePath,
		TargetPath:   job.TargetPath,
		Format:       string(job.Format),
		Status:       string(result.Status),
		MethodUsed:   result.MethodUsed,
		FailureKind:  string(result.FailureKind),
		Attempts:     len(result.Attempts),
		WarningCount: len(result.Warnings),
		DurationMS:   result.Duration.Milliseconds(),
		SubmittedAt:  job.SubmitTime,
		FinishedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record job history: %w", err)
	}
	if s.keep > 0 {
		s.prune(ctx)
	}
	return nil
}

// Get fetches one record by job ID.
func (s *Store) Get(ctx context.Context, jobID string) (*JobRecord, error) {
	var rec JobRecord
	err := s.db.WithContext(ctx).First(&rec, "job_id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load job record: %w", err)
	}
	return &rec, nil
}

// Recent lists the most recently finished jobs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []JobRecord
	err := s.db.WithContext(ctx).
		Order("finished_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list job records: %w", err)
	}
	return recs, nil
}

// CountByStatus aggregates records per final status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&JobRecord{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate job records: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// prune drops the oldest rows beyond the retention bound. Failures are
// logged, never propagated; retention is best-effort.
func (s *Store) prune(ctx context.Context) {
	sub := s.db.Model(&JobRecord{}).
		Select("job_id").
		Order("finished_at DESC").
		Limit(s.keep)
	err := s.db.WithContext(ctx).
		Where("job_id NOT IN (?)", sub).
		Delete(&JobRecord{}).Error
	if err != nil {
		s.logger.Warn("history prune failed", zap.Error(err))
	}
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
