package agent

import "itera/internal/itinerary"

// PlanRequest is the traveler's onboarding preferences sent to /plan. It
// doubles as the profile echoed to /chat.
type PlanRequest struct {
	Destination   string   `json:"destination"`
	StartDate     string   `json:"startDate"`
	EndDate       string   `json:"endDate"`
	StartTime     string   `json:"startTime"`
	EndTime       string   `json:"endTime,omitempty"`
	TimePeriod    string   `json:"timePeriod"`
	BudgetMax     int      `json:"budgetMax"`
	Budget        int      `json:"budget,omitempty"` // legacy alias of budgetMax
	Persona       string   `json:"persona"`
	IsReligious   bool     `json:"isReligious"`
	Duration      int      `json:"duration"`
	Accommodation string   `json:"accommodation,omitempty"`
	Interests     []string `json:"interests,omitempty"`
}

// Normalize folds the legacy budget field into BudgetMax.
func (r *PlanRequest) Normalize() {
	if r.BudgetMax == 0 && r.Budget > 0 {
		r.BudgetMax = r.Budget
	}
	r.Budget = 0
}

// PlanStatusSuccess is the only /plan status that carries a usable plan.
const PlanStatusSuccess = "success"

// PlanResponse is the /plan reply.
type PlanResponse struct {
	Status           string              `json:"status"`
	Itinerary        itinerary.Itinerary `json:"itinerary"`
	Insights         []itinerary.Insight `json:"insights,omitempty"`
	Center           *itinerary.LatLon   `json:"center,omitempty"`
	EfficiencyMetric string              `json:"efficiency_metric,omitempty"`
}

// ChatRequest is the /chat body. The agent uses the itinerary and the
// progress pointer to split completed from remaining stops.
type ChatRequest struct {
	Message          string              `json:"message"`
	CurrentItinerary itinerary.Itinerary `json:"current_itinerary"`
	LastReachedIndex int                 `json:"last_reached_index"`
	Profile          *PlanRequest        `json:"profile,omitempty"`
}

// ChatTypeReplan marks a chat reply that replaces the itinerary.
const ChatTypeReplan = "replan"

// ChatResponse is the /chat reply: a replan or a conversational answer.
type ChatResponse struct {
	Type         string              `json:"type"`
	NewItinerary itinerary.Itinerary `json:"new_itinerary,omitempty"`
	Answer       string              `json:"answer,omitempty"`
}

// IsReplan reports whether the reply replaces the itinerary.
func (r *ChatResponse) IsReplan() bool { return r.Type == ChatTypeReplan }
