// Package dashboard assembles the aggregate views: QC request statistics,
// workflow stage counts, and project listings. The aggregates are fetched
// concurrently and independently; one failing query zeroes its own section
// instead of taking down the snapshot.
package dashboard

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyeonwoo-dev/qcgate/internal/activity"
	"github.com/hyeonwoo-dev/qcgate/internal/logging"
	"github.com/hyeonwoo-dev/qcgate/internal/stage"
	"github.com/hyeonwoo-dev/qcgate/internal/store"
)

// QCStats summarizes the QC request workload.
type QCStats struct {
	Total           int     `json:"total"`
	Pending         int     `json:"pending"`
	InProgress      int     `json:"in_progress"`
	Complete        int     `json:"complete"`
	Rejected        int     `json:"rejected"`
	AverageScore    float64 `json:"average_score"`
	ScoredRequests  int     `json:"scored_requests"`
	OpenFeedback    int     `json:"open_feedback"`
	ReportsApproved int     `json:"reports_approved"`
}

// StageCount is one bar of the workflow funnel.
type StageCount struct {
	Stage stage.Code `json:"stage"`
	Label string     `json:"label"`
	Count int        `json:"count"`
}

// ProjectRow is one line of the projects-by-status listing.
type ProjectRow struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Stage    stage.Code `json:"stage"`
	Urgency  string     `json:"urgency"`
	Active   bool       `json:"active"`
	Assigned string     `json:"assigned_pe,omitempty"`
}

// Snapshot is the full dashboard payload.
type Snapshot struct {
	QC             QCStats      `json:"qc"`
	Stages         []StageCount `json:"stages"`
	Projects       []ProjectRow `json:"projects"`
	RecentActivity []string     `json:"recent_activity"`
	GeneratedAt    time.Time    `json:"generated_at"`
}

// Service computes dashboard snapshots.
type Service struct {
	db       *sql.DB
	activity *activity.Log
	logger   logging.Printf
	clock    func() time.Time
}

// Option customizes the service.
type Option func(*Service)

// WithLogger replaces the service's log sink.
func WithLogger(logger logging.Printf) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService wires the dashboard to the shared database and activity log.
func NewService(db *store.DB, log *activity.Log, opts ...Option) *Service {
	s := &Service{
		db:       db.SQL(),
		activity: log,
		logger:   logging.Nop(),
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Snapshot fans the aggregate queries out concurrently. Each section
// tolerates its own failure: the error is logged and the section renders
// zeroed so the rest of the dashboard still loads.
func (s *Service) Snapshot(ctx context.Context, activityLines int) Snapshot {
	snap := Snapshot{GeneratedAt: s.clock()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.qcStats(ctx)
		if err != nil {
			s.logger.Printf("dashboard: qc stats: %v", err)
			return nil
		}
		snap.QC = stats
		return nil
	})
	g.Go(func() error {
		stages, err := s.stageCounts(ctx)
		if err != nil {
			s.logger.Printf("dashboard: stage counts: %v", err)
			stages = zeroStageCounts()
		}
		snap.Stages = stages
		return nil
	})
	g.Go(func() error {
		projects, err := s.projectRows(ctx)
		if err != nil {
			s.logger.Printf("dashboard: project rows: %v", err)
			return nil
		}
		snap.Projects = projects
		return nil
	})
	g.Wait()

	if s.activity != nil && activityLines > 0 {
		lines, _ := s.activity.Tail(activityLines)
		snap.RecentActivity = lines
	}
	return snap
}

// Stats computes the QC aggregate alone, for the stats endpoint.
func (s *Service) Stats(ctx context.Context) (QCStats, error) {
	return s.qcStats(ctx)
}

// WorkflowCounts computes the stage funnel alone.
func (s *Service) WorkflowCounts(ctx context.Context) ([]StageCount, error) {
	return s.stageCounts(ctx)
}

// ProjectsByStatus computes the project listing alone.
func (s *Service) ProjectsByStatus(ctx context.Context) ([]ProjectRow, error) {
	return s.projectRows(ctx)
}

func (s *Service) qcStats(ctx context.Context) (QCStats, error) {
	var stats QCStats
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM qc_requests GROUP BY status`)
	if err != nil {
		return QCStats{}, fmt.Errorf("dashboard: request counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return QCStats{}, err
		}
		stats.Total += count
		switch status {
		case "pending":
			stats.Pending = count
		case "in_progress":
			stats.InProgress = count
		case "complete":
			stats.Complete = count
		case "rejected":
			stats.Rejected = count
		}
	}
	if err := rows.Err(); err != nil {
		return QCStats{}, err
	}

	var (
		avg    sql.NullFloat64
		scored int
	)
	err = s.db.QueryRowContext(ctx, `SELECT AVG(quality_score), COUNT(quality_score)
		FROM qc_requests WHERE quality_score IS NOT NULL`).Scan(&avg, &scored)
	if err != nil {
		return QCStats{}, fmt.Errorf("dashboard: average score: %w", err)
	}
	if avg.Valid {
		stats.AverageScore = avg.Float64
	}
	stats.ScoredRequests = scored

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&stats.OpenFeedback); err != nil {
		return QCStats{}, fmt.Errorf("dashboard: feedback count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM verification_reports`).Scan(&stats.ReportsApproved); err != nil {
		return QCStats{}, fmt.Errorf("dashboard: report count: %w", err)
	}
	return stats, nil
}

// stageCounts always returns one entry per lifecycle stage, zero-filled,
// so the funnel renders every bar even with no projects.
func (s *Service) stageCounts(ctx context.Context) ([]StageCount, error) {
	counts := map[stage.Code]int{}
	rows, err := s.db.QueryContext(ctx, `SELECT stage, COUNT(*) FROM projects WHERE active = 1 GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("dashboard: stage counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			code  string
			count int
		)
		if err := rows.Scan(&code, &count); err != nil {
			return nil, err
		}
		counts[stage.Code(code)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := zeroStageCounts()
	for i := range out {
		out[i].Count = counts[out[i].Stage]
	}
	return out, nil
}

func zeroStageCounts() []StageCount {
	all := stage.All()
	out := make([]StageCount, len(all))
	for i, st := range all {
		out[i] = StageCount{Stage: st.Code, Label: st.Label}
	}
	return out
}

func (s *Service) projectRows(ctx context.Context) ([]ProjectRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, stage, urgency, active, assigned_pe
		FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("dashboard: project rows: %w", err)
	}
	defer rows.Close()
	var out []ProjectRow
	for rows.Next() {
		var row ProjectRow
		var code string
		if err := rows.Scan(&row.ID, &row.Name, &code, &row.Urgency, &row.Active, &row.Assigned); err != nil {
			return nil, err
		}
		row.Stage = stage.Code(code)
		out = append(out, row)
	}
	return out, rows.Err()
}
