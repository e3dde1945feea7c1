package project

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hyeonwoo-dev/qcgate/internal/activity"
	"github.com/hyeonwoo-dev/qcgate/internal/events"
	"github.com/hyeonwoo-dev/qcgate/internal/stage"
	"github.com/hyeonwoo-dev/qcgate/internal/store"
)

// ErrNotFound is returned when a project or request does not exist.
var ErrNotFound = errors.New("project: not found")

// Publisher routes workflow events. Satisfied by *events.Router.
type Publisher interface {
	Publish(events.Event) error
}

// Store persists projects and QC requests. Stage transitions are announced
// through the optional activity log and event publisher; Advance is the only
// mutation that moves a project along the lifecycle sequence.
type Store struct {
	db       *sql.DB
	clock    func() time.Time
	activity *activity.Log
	bus      Publisher
}

// StoreOption customizes the store.
type StoreOption func(*Store)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithActivity records stage transitions in the workflow history feed.
func WithActivity(log *activity.Log) StoreOption {
	return func(s *Store) {
		s.activity = log
	}
}

// WithPublisher announces stage transitions on the event router.
func WithPublisher(bus Publisher) StoreOption {
	return func(s *Store) {
		s.bus = bus
	}
}

// NewStore wires the store to the shared database.
func NewStore(db *store.DB, opts ...StoreOption) *Store {
	s := &Store{db: db.SQL(), clock: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create validates and persists a new draft project.
func (s *Store) Create(name string, urgency Urgency, deadline *time.Time) (Project, error) {
	p, err := NewProject(uuid.NewString(), name, urgency, deadline, s.clock())
	if err != nil {
		return Project{}, err
	}
	_, err = s.db.Exec(`INSERT INTO projects
		(id, name, stage, prior_stage, urgency, deadline, assigned_pe, original_developer, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Stage), string(p.PriorStage), string(p.Urgency),
		p.Deadline, p.AssignedPE, p.OriginalDeveloper, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Project{}, fmt.Errorf("project: insert: %w", err)
	}
	return p, nil
}

// Get loads one project by ID.
func (s *Store) Get(id string) (Project, error) {
	row := s.db.QueryRow(`SELECT id, name, stage, prior_stage, urgency, deadline,
		assigned_pe, original_developer, active, created_at, updated_at
		FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// List returns every project, newest first.
func (s *Store) List() ([]Project, error) {
	rows, err := s.db.Query(`SELECT id, name, stage, prior_stage, urgency, deadline,
		assigned_pe, original_developer, active, created_at, updated_at
		FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("project: list: %w", err)
	}
	defer rows.Close()
	return collectProjects(rows)
}

// ListByStage returns projects currently in the given stage.
func (s *Store) ListByStage(code stage.Code) ([]Project, error) {
	rows, err := s.db.Query(`SELECT id, name, stage, prior_stage, urgency, deadline,
		assigned_pe, original_developer, active, created_at, updated_at
		FROM projects WHERE stage = ? ORDER BY created_at DESC`, string(code))
	if err != nil {
		return nil, fmt.Errorf("project: list by stage: %w", err)
	}
	defer rows.Close()
	return collectProjects(rows)
}

// Advance moves a project to the next requested stage; the transition must
// satisfy the stage rules.
func (s *Store) Advance(id string, to stage.Code) (Project, error) {
	p, err := s.Get(id)
	if err != nil {
		return Project{}, err
	}
	if err := stage.Validate(p.Stage, to); err != nil {
		return Project{}, err
	}
	if stage.IsSideState(to) {
		return Project{}, fmt.Errorf("project: use Suspend/Cancel for side states")
	}
	from := p.Stage
	p, err = s.setStage(p, to, "")
	if err != nil {
		return Project{}, err
	}
	s.announceAdvance(p, from)
	return p, nil
}

// announceAdvance is best-effort: the transition is already committed, so
// history and event delivery failures must not unwind it.
func (s *Store) announceAdvance(p Project, from stage.Code) {
	s.activity.Record(activity.KindStageAdvanced, p.ID,
		fmt.Sprintf("%s: %s -> %s", p.Name, from, p.Stage))
	if s.bus == nil {
		return
	}
	evt, err := events.New(events.TypeStageAdvanced, p.ID, events.StageAdvancedPayload{
		From: string(from),
		To:   string(p.Stage),
	})
	if err != nil {
		return
	}
	evt.ProjectID = p.ID
	_ = s.bus.Publish(evt)
}

// Suspend parks a project, remembering where it was so Resume can restore it.
func (s *Store) Suspend(id string) (Project, error) {
	p, err := s.Get(id)
	if err != nil {
		return Project{}, err
	}
	if err := stage.Validate(p.Stage, stage.Suspended); err != nil {
		return Project{}, err
	}
	return s.setStage(p, stage.Suspended, p.Stage)
}

// Resume restores a suspended project to the stage it held before.
func (s *Store) Resume(id string) (Project, error) {
	p, err := s.Get(id)
	if err != nil {
		return Project{}, err
	}
	if p.Stage != stage.Suspended {
		return Project{}, fmt.Errorf("project: %s is not suspended", id)
	}
	target := p.PriorStage
	if target == "" {
		target = stage.Draft
	}
	if err := stage.Validate(stage.Suspended, target); err != nil {
		return Project{}, err
	}
	return s.setStage(p, target, "")
}

// Cancel flags a project as cancelled. Projects are never hard-deleted.
func (s *Store) Cancel(id string) (Project, error) {
	p, err := s.Get(id)
	if err != nil {
		return Project{}, err
	}
	if err := stage.Validate(p.Stage, stage.Cancelled); err != nil {
		return Project{}, err
	}
	p, err = s.setStage(p, stage.Cancelled, "")
	if err != nil {
		return Project{}, err
	}
	if _, err := s.db.Exec(`UPDATE projects SET active = 0, updated_at = ? WHERE id = ?`, s.clock(), id); err != nil {
		return Project{}, fmt.Errorf("project: deactivate: %w", err)
	}
	p.Active = false
	return p, nil
}

func (s *Store) setStage(p Project, to, prior stage.Code) (Project, error) {
	now := s.clock()
	res, err := s.db.Exec(`UPDATE projects SET stage = ?, prior_stage = ?, updated_at = ? WHERE id = ?`,
		string(to), string(prior), now, p.ID)
	if err != nil {
		return Project{}, fmt.Errorf("project: update stage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Project{}, ErrNotFound
	}
	p.Stage = to
	p.PriorStage = prior
	p.UpdatedAt = now
	return p, nil
}

// Assign sets the responsible PE and records the original developer on
// first assignment.
func (s *Store) Assign(id, pe string) (Project, error) {
	p, err := s.Get(id)
	if err != nil {
		return Project{}, err
	}
	if pe == "" {
		return Project{}, fmt.Errorf("project: assignee is required")
	}
	now := s.clock()
	original := p.OriginalDeveloper
	if original == "" {
		original = pe
	}
	_, err = s.db.Exec(`UPDATE projects SET assigned_pe = ?, original_developer = ?, updated_at = ? WHERE id = ?`,
		pe, original, now, id)
	if err != nil {
		return Project{}, fmt.Errorf("project: assign: %w", err)
	}
	if err := s.addEligiblePE(id, pe); err != nil {
		return Project{}, err
	}
	p.AssignedPE = pe
	p.OriginalDeveloper = original
	p.UpdatedAt = now
	return p, nil
}

// AddEligiblePE registers a PE as a valid feedback assignee for the project.
func (s *Store) AddEligiblePE(projectID, pe string) error {
	if pe == "" {
		return fmt.Errorf("project: pe is required")
	}
	if _, err := s.Get(projectID); err != nil {
		return err
	}
	return s.addEligiblePE(projectID, pe)
}

func (s *Store) addEligiblePE(projectID, pe string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO project_pes (project_id, pe) VALUES (?, ?)`, projectID, pe)
	if err != nil {
		return fmt.Errorf("project: add eligible pe: %w", err)
	}
	return nil
}

// EligiblePEs lists the PEs that may receive feedback for the project, with
// the original developer sorted first.
func (s *Store) EligiblePEs(projectID string) ([]string, error) {
	p, err := s.Get(projectID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`SELECT pe FROM project_pes WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("project: eligible pes: %w", err)
	}
	defer rows.Close()
	var pes []string
	for rows.Next() {
		var pe string
		if err := rows.Scan(&pe); err != nil {
			return nil, err
		}
		pes = append(pes, pe)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(pes, func(i, j int) bool {
		if pes[i] == p.OriginalDeveloper {
			return true
		}
		if pes[j] == p.OriginalDeveloper {
			return false
		}
		return pes[i] < pes[j]
	})
	return pes, nil
}

// CreateRequest raises a QC verification request against a project.
func (s *Store) CreateRequest(projectID, title string) (Request, error) {
	if _, err := s.Get(projectID); err != nil {
		return Request{}, err
	}
	if title == "" {
		return Request{}, fmt.Errorf("project: request title is required")
	}
	req := Request{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Title:       title,
		Status:      RequestPending,
		RequestedAt: s.clock(),
	}
	_, err := s.db.Exec(`INSERT INTO qc_requests (id, project_id, title, status, requested_at)
		VALUES (?, ?, ?, ?, ?)`,
		req.ID, req.ProjectID, req.Title, string(req.Status), req.RequestedAt)
	if err != nil {
		return Request{}, fmt.Errorf("project: insert request: %w", err)
	}
	return req, nil
}

// GetRequest loads one QC request.
func (s *Store) GetRequest(id string) (Request, error) {
	row := s.db.QueryRow(`SELECT id, project_id, title, status, quality_score, requested_at, completed_at
		FROM qc_requests WHERE id = ?`, id)
	return scanRequest(row)
}

// ListRequests returns all QC requests, newest first.
func (s *Store) ListRequests() ([]Request, error) {
	rows, err := s.db.Query(`SELECT id, project_id, title, status, quality_score, requested_at, completed_at
		FROM qc_requests ORDER BY requested_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("project: list requests: %w", err)
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// SetRequestStatus updates a request's status, optionally recording the
// final quality score and completion time.
func (s *Store) SetRequestStatus(id string, status RequestStatus, score *int) (Request, error) {
	req, err := s.GetRequest(id)
	if err != nil {
		return Request{}, err
	}
	var completed *time.Time
	if status == RequestComplete || status == RequestRejected {
		now := s.clock()
		completed = &now
	}
	_, err = s.db.Exec(`UPDATE qc_requests SET status = ?, quality_score = ?, completed_at = ? WHERE id = ?`,
		string(status), score, completed, id)
	if err != nil {
		return Request{}, fmt.Errorf("project: update request: %w", err)
	}
	req.Status = status
	req.QualityScore = score
	req.CompletedAt = completed
	return req, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var (
		p         Project
		stageCode string
		priorCode string
		urgency   string
		deadline  sql.NullTime
		active    bool
	)
	err := row.Scan(&p.ID, &p.Name, &stageCode, &priorCode, &urgency, &deadline,
		&p.AssignedPE, &p.OriginalDeveloper, &active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, fmt.Errorf("project: scan: %w", err)
	}
	p.Stage = stage.Code(stageCode)
	p.PriorStage = stage.Code(priorCode)
	p.Urgency = Urgency(urgency)
	p.Active = active
	if deadline.Valid {
		t := deadline.Time
		p.Deadline = &t
	}
	return p, nil
}

func collectProjects(rows *sql.Rows) ([]Project, error) {
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanRequest(row rowScanner) (Request, error) {
	var (
		req       Request
		status    string
		score     sql.NullInt64
		completed sql.NullTime
	)
	err := row.Scan(&req.ID, &req.ProjectID, &req.Title, &status, &score, &req.RequestedAt, &completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, fmt.Errorf("project: scan request: %w", err)
	}
	req.Status = RequestStatus(status)
	if score.Valid {
		v := int(score.Int64)
		req.QualityScore = &v
	}
	if completed.Valid {
		t := completed.Time
		req.CompletedAt = &t
	}
	return req, nil
}
