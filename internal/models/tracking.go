package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidTransition = errors.New("invalid application status transition")

type AlertType string

const (
	AlertHighPriority    AlertType = "high_priority"
	AlertDeadlineWarning AlertType = "deadline_warning"
)

type Alert struct {
	ID       uuid.UUID `json:"id"`
	GrantID  string    `json:"grant_id"`
	Type     AlertType `json:"alert_type"`
	Message  string    `json:"message"`
	Priority string    `json:"priority"`
	Score    float64   `json:"score"`
	SentAt   time.Time `json:"sent_at"`
}

// NewAlert labels the alert priority from the grant's priority score.
func NewAlert(g Grant, kind AlertType, message string, now time.Time) Alert {
	label := "medium"
	if g.PriorityScore >= 70 {
		label = "high"
	}
	return Alert{
		ID:       uuid.New(),
		GrantID:  g.ID,
		Type:     kind,
		Message:  message,
		Priority: label,
		Score:    g.PriorityScore,
		SentAt:   now,
	}
}

type ApplicationStatus string

const (
	StatusDraft       ApplicationStatus = "draft"
	StatusInProgress  ApplicationStatus = "in_progress"
	StatusSubmitted   ApplicationStatus = "submitted"
	StatusUnderReview ApplicationStatus = "under_review"
	StatusApproved    ApplicationStatus = "approved"
	StatusRejected    ApplicationStatus = "rejected"
	StatusWithdrawn   ApplicationStatus = "withdrawn"
)

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusInProgress, StatusSubmitted, StatusUnderReview,
		StatusApproved, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

func (s ApplicationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusWithdrawn
}

// CanTransition rejects unknown targets and any move out of a terminal state.
func (s ApplicationStatus) CanTransition(to ApplicationStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if s.Terminal() {
		return fmt.Errorf("%w: %s is final", ErrInvalidTransition, s)
	}
	return nil
}

type Application struct {
	ID                   uuid.UUID         `json:"id"`
	UserID               uuid.UUID         `json:"user_id"`
	GrantID              string            `json:"grant_id"`
	Status               ApplicationStatus `json:"status"`
	SubmittedAt          *time.Time        `json:"submitted_at"`
	DeadlineReminderSent bool              `json:"deadline_reminder_sent"`
	DecisionDate         *time.Time        `json:"decision_date"`
	AwardedAmount        *float64          `json:"awarded_amount"`
	Feedback             string            `json:"feedback"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// ScrapingSession records one source scan.
type ScrapingSession struct {
	ID            uuid.UUID     `json:"id"`
	Source        string        `json:"source"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at"`
	GrantsFound   int           `json:"grants_found"`
	GrantsNew     int           `json:"grants_new"`
	GrantsUpdated int           `json:"grants_updated"`
	Status        SessionStatus `json:"status"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// MonitoringSession is the summary stored at the end of each cycle.
type MonitoringSession struct {
	ID                uuid.UUID     `json:"id"`
	GrantsProcessed   int           `json:"grants_processed"`
	HighPriorityCount int           `json:"high_priority_count"`
	AvgRelevance      float64       `json:"avg_relevance"`
	AvgComplexity     float64       `json:"avg_complexity"`
	AlertsSent        int           `json:"alerts_sent"`
	Errors            int           `json:"errors"`
	Status            SessionStatus `json:"status"`
	StartedAt         time.Time     `json:"started_at"`
	CompletedAt       time.Time     `json:"timestamp"`
}

// User is an API account. PasswordHash never leaves the server.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	CompanyName  string    `json:"company_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
