package models

import (
	"fmt"
	"time"
)

// EntityKind separates the two request-type records the engine governs.
type EntityKind string

const (
	KindRequest EntityKind = "request"
	KindTender  EntityKind = "tender"
)

func (k EntityKind) IsValid() bool {
	return k == KindRequest || k == KindTender
}

// State is a lifecycle state. The engine only ever stores values from the
// closed set below; anything else is rejected at the store boundary.
type State string

const (
	// Request states.
	StateDraft            State = "draft"
	StateReview           State = "review"
	StateAdditionalInput  State = "additional_input_required"
	StateRevisionRequired State = "revision_required"
	StateApproved         State = "approved"
	StateResponded        State = "responded"
	StateClosed           State = "closed"

	// Tender states. Draft and closed are shared with the request set.
	StateOpen      State = "open"
	StateAwarded   State = "awarded"
	StateCancelled State = "cancelled"
)

var validStates = map[State]bool{
	StateDraft:            true,
	StateReview:           true,
	StateAdditionalInput:  true,
	StateRevisionRequired: true,
	StateApproved:         true,
	StateResponded:        true,
	StateClosed:           true,
	StateOpen:             true,
	StateAwarded:          true,
	StateCancelled:        true,
}

func (s State) IsValid() bool { return validStates[s] }

func (s State) String() string { return string(s) }

// ParseState validates a raw status value read from the store.
func ParseState(raw string) (State, error) {
	s := State(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown state %q", raw)
	}
	return s, nil
}

// Action is a named operation an actor may attempt against an entity.
type Action string

const (
	ActionSubmitForReview        Action = "submit_for_review"
	ActionApprove                Action = "approve"
	ActionRequestAdditionalInput Action = "request_additional_input"
	ActionRequestRevision        Action = "request_revision"
	ActionProvideInput           Action = "provide_input"
	ActionRespond                Action = "respond"
	ActionClose                  Action = "close"

	ActionPublish Action = "publish"
	ActionAward   Action = "award"
	ActionCancel  Action = "cancel"
)

var validActions = map[Action]bool{
	ActionSubmitForReview:        true,
	ActionApprove:                true,
	ActionRequestAdditionalInput: true,
	ActionRequestRevision:        true,
	ActionProvideInput:           true,
	ActionRespond:                true,
	ActionClose:                  true,
	ActionPublish:                true,
	ActionAward:                  true,
	ActionCancel:                 true,
}

func (a Action) IsValid() bool { return validActions[a] }

func (a Action) String() string { return string(a) }

func ParseAction(raw string) (Action, error) {
	a := Action(raw)
	if !a.IsValid() {
		return "", fmt.Errorf("unknown action %q", raw)
	}
	return a, nil
}

// BidStatus is the lifecycle status of a single bid.
type BidStatus string

const (
	BidSubmitted   BidStatus = "submitted"
	BidUnderReview BidStatus = "under_review"
	BidAccepted    BidStatus = "accepted"
	BidRejected    BidStatus = "rejected"
)

func (b BidStatus) IsValid() bool {
	switch b {
	case BidSubmitted, BidUnderReview, BidAccepted, BidRejected:
		return true
	}
	return false
}

// WorkflowEntity is a request-for-information or a tender. The domain payload
// (question, response, budget, deadline) is opaque to the engine; only
// CurrentState and the owner-role fields drive transitions.
type WorkflowEntity struct {
	ID           int        `db:"id" json:"id"`
	Kind         EntityKind `db:"kind" json:"kind" validate:"required,oneof=request tender"`
	CurrentState State      `db:"current_state" json:"currentState"`
	Title        string     `db:"title" json:"title" validate:"required,max=100"`
	Description  string     `db:"description" json:"description" validate:"max=1000"`

	// Request ownership.
	RaisedBy   string `db:"raised_by" json:"raisedBy,omitempty"`
	AssignedTo string `db:"assigned_to" json:"assignedTo,omitempty"`
	Question   string `db:"question" json:"question,omitempty"`
	Response   string `db:"response" json:"response,omitempty"`

	// Tender ownership.
	IssuedBy  string     `db:"issued_by" json:"issuedBy,omitempty"`
	AwardedTo string     `db:"awarded_to" json:"awardedTo,omitempty"`
	Budget    float64    `db:"budget" json:"budget,omitempty"`
	Deadline  *time.Time `db:"deadline" json:"deadline,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

// Owner returns the username the entity belongs to: the raiser for requests,
// the issuer for tenders.
func (e *WorkflowEntity) Owner() string {
	if e.Kind == KindTender {
		return e.IssuedBy
	}
	return e.RaisedBy
}

// TransitionRecord is one immutable audit entry. Records are ordered by
// creation time per entity and are never updated or deleted.
type TransitionRecord struct {
	ID        string    `db:"id" json:"id"`
	EntityID  int       `db:"entity_id" json:"entityId"`
	FromState State     `db:"from_state" json:"fromState"`
	ToState   State     `db:"to_state" json:"toState"`
	Action    Action    `db:"action" json:"action"`
	ActorID   string    `db:"actor_id" json:"actorId"`
	Notes     string    `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Bid is a proposal submitted against a tender. Evaluation sub-scores are
// 0-100 values; the fixed weights sum to 100 and the weighted sum is
// OverallScore.
type Bid struct {
	ID       int       `db:"id" json:"id"`
	TenderID int       `db:"tender_id" json:"tenderId" validate:"required"`
	Bidder   string    `db:"bidder" json:"bidder" validate:"required"`
	Amount   float64   `db:"amount" json:"amount" validate:"required,gt=0"`
	Status   BidStatus `db:"status" json:"status"`

	TechnicalScore  float64 `db:"technical_score" json:"technicalScore" validate:"min=0,max=100"`
	CostScore       float64 `db:"cost_score" json:"costScore" validate:"min=0,max=100"`
	ScheduleScore   float64 `db:"schedule_score" json:"scheduleScore" validate:"min=0,max=100"`
	SafetyScore     float64 `db:"safety_score" json:"safetyScore" validate:"min=0,max=100"`
	ExperienceScore float64 `db:"experience_score" json:"experienceScore" validate:"min=0,max=100"`
	OverallScore    float64 `db:"overall_score" json:"overallScore"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

// ScoreWeights are the fixed evaluation weights. They sum to 100.
var ScoreWeights = struct {
	Technical, Cost, Schedule, Safety, Experience float64
}{30, 30, 15, 15, 10}

// ComputeOverall recomputes the weighted overall score from the sub-scores.
func (b *Bid) ComputeOverall() {
	b.OverallScore = (b.TechnicalScore*ScoreWeights.Technical +
		b.CostScore*ScoreWeights.Cost +
		b.ScheduleScore*ScoreWeights.Schedule +
		b.SafetyScore*ScoreWeights.Safety +
		b.ExperienceScore*ScoreWeights.Experience) / 100
}

// ReminderKind distinguishes the two reminders scheduled on entering review.
type ReminderKind string

const (
	ReminderFirst      ReminderKind = "first"
	ReminderEscalation ReminderKind = "escalation"
)

// Reminder is a scheduled follow-up keyed by (entity, state, transition, kind)
// so a re-delivered state-entered event never schedules duplicates.
type Reminder struct {
	ID           int          `db:"id" json:"id"`
	EntityID     int          `db:"entity_id" json:"entityId"`
	State        State        `db:"state" json:"state"`
	TransitionID string       `db:"transition_id" json:"transitionId"`
	Kind         ReminderKind `db:"kind" json:"kind"`
	DueAt        time.Time    `db:"due_at" json:"dueAt"`
	SentAt       *time.Time   `db:"sent_at" json:"sentAt,omitempty"`
}

// AwardReconciliation marks a tender whose sibling-bid rejection did not fully
// apply. A background runner replays the rejection until it converges.
type AwardReconciliation struct {
	TenderID     int        `db:"tender_id" json:"tenderId"`
	WinningBidID int        `db:"winning_bid_id" json:"winningBidId"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolvedAt,omitempty"`
}

// Employee is a known user, used for identity resolution and auto-assignment.
type Employee struct {
	ID        int       `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	FirstName string    `db:"first_name" json:"firstName"`
	LastName  string    `db:"last_name" json:"lastName"`
	Reviewer  bool      `db:"reviewer" json:"reviewer"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}
