package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one transcript entry. The transcript is append-only: entries
// are never reordered or deleted within a session.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryEmissions is one slice of the live breakdown chart.
type CategoryEmissions struct {
	Category string  `json:"category"`
	Tonnes   float64 `json:"tonnes"`
}

// PipelineStatus reports which post-category calls are currently in flight.
type PipelineStatus struct {
	Running            bool `json:"running"`
	SummaryInFlight    bool `json:"summary_in_flight"`
	EmissionsInFlight  bool `json:"emissions_in_flight"`
	ConfidenceInFlight bool `json:"confidence_in_flight"`
}

// Session holds all conversational state for one guided intake. It lives in
// memory for the duration of the intake; the analysis backend is the durable
// source of truth, so a lost session is re-initialized from there.
//
// The mutex serializes orchestrator mutations with snapshot reads. The JS
// original relied on the browser's single event loop for this; a server
// handles concurrent requests for the same session, so the lock is explicit.
type Session struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time

	Transcript []Message

	// Entities grow monotonically, in discovery order, deduplicated.
	Entities  []string
	entitySet map[string]struct{}

	// DetectedCategories records every category that has ever become
	// current, in the order they became current. A category must not appear
	// here before the pipeline for its predecessor has finished.
	DetectedCategories []string
	CurrentCategory    string

	// Emissions is upsert-by-category, kept in first-seen order for the chart.
	Emissions []CategoryEmissions

	// Pending transition buffer: the upcoming category/question returned
	// alongside a category_complete signal. Invisible to callers until the
	// post-category pipeline consumes it.
	pendingNextCategory string
	pendingNextQuestion string

	pipelineRunning    bool
	summaryInFlight    bool
	emissionsInFlight  bool
	confidenceInFlight bool

	Awaiting         bool
	AnalysisComplete bool
}

func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		entitySet: make(map[string]struct{}),
	}
}

// Snapshot is a consistent copy of everything a client may render.
type Snapshot struct {
	ID                 string              `json:"id"`
	Transcript         []Message           `json:"transcript"`
	Entities           []string            `json:"entities"`
	DetectedCategories []string            `json:"detected_categories"`
	CurrentCategory    string              `json:"current_category"`
	Emissions          []CategoryEmissions `json:"emissions"`
	Pipeline           PipelineStatus      `json:"pipeline"`
	Awaiting           bool                `json:"awaiting"`
	AnalysisComplete   bool                `json:"analysis_complete"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:                 s.ID,
		Transcript:         make([]Message, len(s.Transcript)),
		Entities:           make([]string, len(s.Entities)),
		DetectedCategories: make([]string, len(s.DetectedCategories)),
		CurrentCategory:    s.CurrentCategory,
		Emissions:          make([]CategoryEmissions, len(s.Emissions)),
		Pipeline: PipelineStatus{
			Running:            s.pipelineRunning,
			SummaryInFlight:    s.summaryInFlight,
			EmissionsInFlight:  s.emissionsInFlight,
			ConfidenceInFlight: s.confidenceInFlight,
		},
		Awaiting:         s.Awaiting,
		AnalysisComplete: s.AnalysisComplete,
	}
	copy(snap.Transcript, s.Transcript)
	copy(snap.Entities, s.Entities)
	copy(snap.DetectedCategories, s.DetectedCategories)
	copy(snap.Emissions, s.Emissions)
	return snap
}

// Busy reports whether a new answer would overlap an in-flight exchange.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Awaiting || s.pipelineRunning
}

func (s *Session) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AnalysisComplete
}

// --- mutation helpers, caller must hold s.mu ---

func (s *Session) appendMessageLocked(role, text string) Message {
	msg := Message{
		ID:        uuid.New(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
	s.Transcript = append(s.Transcript, msg)
	return msg
}

// lastAssistantTextLocked scans the transcript backward for the question the
// user is currently answering.
func (s *Session) lastAssistantTextLocked() string {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == RoleAssistant {
			return s.Transcript[i].Text
		}
	}
	return ""
}

func (s *Session) addEntitiesLocked(ids []string) []string {
	if s.entitySet == nil {
		s.entitySet = make(map[string]struct{})
	}
	var added []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := s.entitySet[id]; ok {
			continue
		}
		s.entitySet[id] = struct{}{}
		s.Entities = append(s.Entities, id)
		added = append(added, id)
	}
	return added
}

func (s *Session) addDetectedCategoryLocked(category string) bool {
	if category == "" {
		return false
	}
	for _, c := range s.DetectedCategories {
		if c == category {
			return false
		}
	}
	s.DetectedCategories = append(s.DetectedCategories, category)
	return true
}

func (s *Session) upsertEmissionsLocked(category string, tonnes float64) {
	for i := range s.Emissions {
		if s.Emissions[i].Category == category {
			s.Emissions[i].Tonnes = tonnes
			return
		}
	}
	s.Emissions = append(s.Emissions, CategoryEmissions{Category: category, Tonnes: tonnes})
}
