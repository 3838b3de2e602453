package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"siteflow/models"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// Employee

func (s *Storage) CreateEmployee(ctx context.Context, e *models.Employee) error {
	query := `
        INSERT INTO employee (username, first_name, last_name, reviewer)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`
	return s.db.QueryRowContext(ctx, query, e.Username, e.FirstName, e.LastName, e.Reviewer).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (s *Storage) GetEmployeeByUsername(ctx context.Context, username string) (*models.Employee, error) {
	e := &models.Employee{}
	query := `SELECT * FROM employee WHERE username=$1`
	err := s.db.GetContext(ctx, e, query, username)
	return e, err
}

// LeastLoadedReviewer picks the reviewer with the fewest live request
// assignments, for the auto-assignment side effect.
func (s *Storage) LeastLoadedReviewer(ctx context.Context) (string, error) {
	var username string
	query := `
        SELECT e.username
        FROM employee e
        LEFT JOIN entities t
            ON t.assigned_to = e.username AND t.current_state NOT IN ('closed', 'cancelled')
        WHERE e.reviewer
        GROUP BY e.username
        ORDER BY COUNT(t.id) ASC, e.username ASC
        LIMIT 1`
	err := s.db.GetContext(ctx, &username, query)
	return username, err
}

// WorkflowEntity

func (s *Storage) CreateEntity(ctx context.Context, e *models.WorkflowEntity) error {
	query := `
        INSERT INTO entities
            (kind, current_state, title, description, raised_by, assigned_to,
             question, response, issued_by, awarded_to, budget, deadline)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id, created_at, updated_at`
	return s.db.QueryRowContext(ctx, query,
		e.Kind, e.CurrentState, e.Title, e.Description, e.RaisedBy, e.AssignedTo,
		e.Question, e.Response, e.IssuedBy, e.AwardedTo, e.Budget, e.Deadline).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (s *Storage) GetEntity(ctx context.Context, id int) (*models.WorkflowEntity, error) {
	e := &models.WorkflowEntity{}
	query := `SELECT * FROM entities WHERE id=$1`
	if err := s.db.GetContext(ctx, e, query, id); err != nil {
		return nil, err
	}
	// The closed enums are enforced here so a stray status value in the
	// store surfaces as an error instead of flowing into the engine.
	if _, err := models.ParseState(string(e.CurrentState)); err != nil {
		return nil, fmt.Errorf("entity %d: %w", id, err)
	}
	if !e.Kind.IsValid() {
		return nil, fmt.Errorf("entity %d: unknown kind %q", id, e.Kind)
	}
	return e, nil
}

func (s *Storage) ListEntities(ctx context.Context, kind models.EntityKind, limit, offset int) ([]models.WorkflowEntity, error) {
	entities := []models.WorkflowEntity{}
	query := `
        SELECT * FROM entities
        WHERE kind = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	err := s.db.SelectContext(ctx, &entities, query, kind, limit, offset)
	return entities, err
}

// ApplyTransition moves the entity's denormalized state and appends the audit
// record in one transaction. The conditional UPDATE is the optimistic
// concurrency guard: zero rows affected means another writer got there first,
// and nothing is persisted.
func (s *Storage) ApplyTransition(ctx context.Context, rec *models.TransitionRecord) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE entities
        SET current_state = $1, updated_at = NOW()
        WHERE id = $2 AND current_state = $3`,
		rec.ToState, rec.EntityID, rec.FromState)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	err = tx.QueryRowContext(ctx, `
        INSERT INTO transitions
            (id, entity_id, from_state, to_state, action, actor_id, notes)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at`,
		rec.ID, rec.EntityID, rec.FromState, rec.ToState, rec.Action, rec.ActorID, rec.Notes).
		Scan(&rec.CreatedAt)
	if err != nil {
		return false, err
	}

	return true, tx.Commit()
}

func (s *Storage) History(ctx context.Context, entityID int) ([]models.TransitionRecord, error) {
	records := []models.TransitionRecord{}
	query := `
        SELECT * FROM transitions
        WHERE entity_id = $1
        ORDER BY created_at ASC, id ASC`
	err := s.db.SelectContext(ctx, &records, query, entityID)
	return records, err
}

func (s *Storage) LatestTransition(ctx context.Context, entityID int) (*models.TransitionRecord, error) {
	rec := &models.TransitionRecord{}
	query := `
        SELECT * FROM transitions
        WHERE entity_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT 1`
	err := s.db.GetContext(ctx, rec, query, entityID)
	return rec, err
}

// SetAwardedTo stamps the winning bidder on the tender. current_state is
// untouched; it belongs to ApplyTransition.
func (s *Storage) SetAwardedTo(ctx context.Context, tenderID int, bidder string) error {
	query := `UPDATE entities SET awarded_to = $1, updated_at = NOW() WHERE id = $2`
	_, err := s.db.ExecContext(ctx, query, bidder, tenderID)
	return err
}

// AssignReviewer sets assigned_to only when the request is still unassigned,
// so a re-delivered state-entered event cannot steal an assignment.
func (s *Storage) AssignReviewer(ctx context.Context, entityID int, username string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
        UPDATE entities
        SET assigned_to = $1, updated_at = NOW()
        WHERE id = $2 AND assigned_to = ''`,
		username, entityID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

// Bid

func (s *Storage) CreateBid(ctx context.Context, b *models.Bid) error {
	query := `
        INSERT INTO bid
            (tender_id, bidder, amount, status,
             technical_score, cost_score, schedule_score, safety_score, experience_score, overall_score)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, created_at, updated_at`
	return s.db.QueryRowContext(ctx, query,
		b.TenderID, b.Bidder, b.Amount, b.Status,
		b.TechnicalScore, b.CostScore, b.ScheduleScore, b.SafetyScore, b.ExperienceScore, b.OverallScore).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (s *Storage) GetBid(ctx context.Context, id int) (*models.Bid, error) {
	b := &models.Bid{}
	query := `SELECT * FROM bid WHERE id=$1`
	err := s.db.GetContext(ctx, b, query, id)
	return b, err
}

func (s *Storage) ListBidsForTender(ctx context.Context, tenderID int) ([]models.Bid, error) {
	bids := []models.Bid{}
	query := `
        SELECT * FROM bid
        WHERE tender_id = $1
        ORDER BY created_at ASC, id ASC`
	err := s.db.SelectContext(ctx, &bids, query, tenderID)
	return bids, err
}

// AcceptBid and RejectOtherBids are idempotent set-operations, not deltas:
// re-applying either after a partial failure converges on the same rows.

func (s *Storage) AcceptBid(ctx context.Context, tenderID, bidID int) error {
	query := `
        UPDATE bid
        SET status = 'accepted', updated_at = NOW()
        WHERE id = $1 AND tender_id = $2 AND status <> 'accepted'`
	_, err := s.db.ExecContext(ctx, query, bidID, tenderID)
	return err
}

func (s *Storage) RejectOtherBids(ctx context.Context, tenderID, winningBidID int) error {
	query := `
        UPDATE bid
        SET status = 'rejected', updated_at = NOW()
        WHERE tender_id = $1 AND id <> $2 AND status <> 'rejected'`
	_, err := s.db.ExecContext(ctx, query, tenderID, winningBidID)
	return err
}

// Award reconciliation queue

func (s *Storage) EnqueueAwardReconciliation(ctx context.Context, tenderID, winningBidID int) error {
	query := `
        INSERT INTO award_reconciliation (tender_id, winning_bid_id)
        VALUES ($1, $2)
        ON CONFLICT (tender_id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query, tenderID, winningBidID)
	return err
}

func (s *Storage) PendingAwardReconciliations(ctx context.Context, limit int) ([]models.AwardReconciliation, error) {
	recs := []models.AwardReconciliation{}
	query := `
        SELECT * FROM award_reconciliation
        WHERE resolved_at IS NULL
        ORDER BY created_at ASC
        LIMIT $1`
	err := s.db.SelectContext(ctx, &recs, query, limit)
	return recs, err
}

func (s *Storage) ResolveAwardReconciliation(ctx context.Context, tenderID int) error {
	query := `
        UPDATE award_reconciliation
        SET resolved_at = NOW()
        WHERE tender_id = $1 AND resolved_at IS NULL`
	_, err := s.db.ExecContext(ctx, query, tenderID)
	return err
}

// Reminders

func (s *Storage) ScheduleReminder(ctx context.Context, rem *models.Reminder) error {
	query := `
        INSERT INTO reminder (entity_id, state, transition_id, kind, due_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (entity_id, state, transition_id, kind) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query,
		rem.EntityID, rem.State, rem.TransitionID, rem.Kind, rem.DueAt)
	return err
}

func (s *Storage) DueReminders(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error) {
	reminders := []models.Reminder{}
	query := `
        SELECT * FROM reminder
        WHERE sent_at IS NULL AND due_at <= $1
        ORDER BY due_at ASC
        LIMIT $2`
	err := s.db.SelectContext(ctx, &reminders, query, now, limit)
	return reminders, err
}

func (s *Storage) MarkReminderSent(ctx context.Context, reminderID int) error {
	query := `UPDATE reminder SET sent_at = NOW() WHERE id = $1 AND sent_at IS NULL`
	_, err := s.db.ExecContext(ctx, query, reminderID)
	return err
}
