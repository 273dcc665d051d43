package candidate

import (
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Statuses shared by the round-0 questionnaire and interview rounds.
// Transitions only ever move forward: upcoming -> pending -> completed.
const (
	StatusUpcoming  = "upcoming"
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Round identifies one of the three interview rounds.
type Round int

const (
	Round1 Round = iota + 1
	Round2
	Round3
)

// Rounds lists all interview rounds in order.
var Rounds = []Round{Round1, Round2, Round3}

// ParseRound converts a caller-supplied round number.
func ParseRound(n int) (Round, bool) {
	switch n {
	case 1:
		return Round1, true
	case 2:
		return Round2, true
	case 3:
		return Round3, true
	default:
		return 0, false
	}
}

// HasTask reports whether the round hands out a take-home task.
// Round 3 is the final interview and has no task stage.
func (r Round) HasTask() bool {
	switch r {
	case Round1, Round2:
		return true
	default:
		return false
	}
}

// Round0 is the written questionnaire gating entry into round 1.
type Round0 struct {
	ContactNo          string   `json:"contact_no"`
	Branch             string   `json:"branch,omitempty"`
	GithubProfile      string   `json:"github_profile,omitempty"`
	ProjectLink        string   `json:"project_link,omitempty"`
	ProjectText        string   `json:"project_text,omitempty"`
	Domains            []string `json:"domains"`
	Answers            []string `json:"answers"`
	ManagementQuestion int      `json:"management_question"`
	ManagementAnswer   string   `json:"management_answer"`
	Status             string   `json:"status"`
}

// TaskAssignment is the take-home task handed out with a round 1/2 review.
type TaskAssignment struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
}

// RoundState tracks a candidate's progress through one interview round.
type RoundState struct {
	Status          string     `json:"status"`
	Review          *string    `json:"review,omitempty"`
	TaskTitle       *string    `json:"task_title,omitempty"`
	TaskDescription *string    `json:"task_description,omitempty"`
	TaskDeadline    *time.Time `json:"task_deadline,omitempty"`
	TaskLink        *string    `json:"task_link,omitempty"`
	TaskSubmitted   bool       `json:"task_submitted"`
}

// Candidate is a person moving through the recruitment pipeline.
type Candidate struct {
	ID                    uuid.UUID            `json:"id"`
	Name                  string               `json:"name"`
	Email                 string               `json:"email"`
	RegNo                 string               `json:"reg_no"`
	IsFresher             bool                 `json:"is_fresher"`
	IsEliminated          bool                 `json:"is_eliminated"`
	CurrentRound          int                  `json:"current_round"`
	Round0                Round0               `json:"round0"`
	Rounds                map[Round]RoundState `json:"rounds"`
	RefreshToken          string               `json:"-"`
	RefreshTokenExpiresAt *time.Time           `json:"-"`
	CreatedAt             time.Time            `json:"created_at"`
}

// RoundState returns the state for a round, defaulting to upcoming when the
// record has no row yet.
func (c *Candidate) RoundState(r Round) RoundState {
	if state, ok := c.Rounds[r]; ok {
		return state
	}
	return RoundState{Status: StatusUpcoming}
}

// SplitDisplayName splits a sign-in display name of the form
// "Full Name 24XYZ1234" into the name and registration number.
func SplitDisplayName(display string) (name, regNo string) {
	display = strings.TrimSpace(display)
	idx := strings.LastIndex(display, " ")
	if idx < 0 {
		return display, ""
	}
	return strings.TrimSpace(display[:idx]), strings.TrimSpace(display[idx+1:])
}

// IsFresherRegNo reports whether a registration number belongs to the
// current intake year.
func IsFresherRegNo(regNo string) bool {
	return strings.HasPrefix(regNo, "24")
}

// ManagementQuestionCount is the size of the management question pool.
const ManagementQuestionCount = 3

// PickManagementQuestion selects a management question (1-based) from an
// explicit seed. Callers pass a request-scoped seed; there is no shared
// counter behind this.
func PickManagementQuestion(seed int64) int {
	return rand.New(rand.NewSource(seed)).Intn(ManagementQuestionCount) + 1
}
