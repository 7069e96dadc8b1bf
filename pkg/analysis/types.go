package analysis

import (
	"fmt"
	"strings"
)

// CompanyProfile mirrors the intake wizard payload the backend expects when
// a new session is registered.
type CompanyProfile struct {
	Country            string `json:"country"`
	Industry           string `json:"industry"`
	Employees          string `json:"employees"`
	PhysicalFacilities string `json:"physical_facilities"`
	Sells              string `json:"sells"`
}

// StepRequest is the body of every /chat/next call. The backend treats
// category/question/answer as optional; re-ask requests send them empty on
// purpose together with the missing fields list.
type StepRequest struct {
	SessionID     string   `json:"session_id"`
	Category      string   `json:"category"`
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// ExtractedField identifies one entity surfaced from a free-text answer.
// The backend is inconsistent about the id key, so all three spellings are
// decoded and Identifier picks the first non-empty one, coerced to text.
type ExtractedField struct {
	EntityID    any `json:"entity_id,omitempty"`
	EntityIDAlt any `json:"entityId,omitempty"`
	Entity      any `json:"entity,omitempty"`
}

func (f ExtractedField) Identifier() string {
	for _, v := range []any{f.EntityID, f.EntityIDAlt, f.Entity} {
		if v == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s
		}
	}
	return ""
}

type StepResponse struct {
	NextQuestion         string           `json:"next_question"`
	CategoryComplete     bool             `json:"category_complete"`
	NextCategory         string           `json:"next_category"`
	AnalysisComplete     bool             `json:"analysis_complete"`
	ExtractedFields      []ExtractedField `json:"extracted_fields"`
	Category             string           `json:"category"`
	UpdatedMissingFields []string         `json:"updated_missing_fields"`
}

type EmissionsRequest struct {
	SessionID      string `json:"session_id"`
	Category       string `json:"category"`
	CorrectionNote string `json:"correction_note,omitempty"`
}

// EmissionsResponse carries the category-level figure computed by the
// backend. RawEmissions is a pointer because the chart must only be updated
// when the backend actually produced a number.
type EmissionsResponse struct {
	RawEmissions *float64 `json:"raw_emissions"`
	Scope        string   `json:"scope"`
}

// ConfidenceResponse is the verdict of the backend's confidence check.
// CalculationValid and ConfidenceFinal are pointers: an absent field must
// not be confused with an explicit false / 0.
type ConfidenceResponse struct {
	Scope            string   `json:"scope"`
	CalculationValid *bool    `json:"calculation_valid"`
	ConfidenceModel  float64  `json:"confidence_model"`
	ConfidenceData   float64  `json:"confidence_data"`
	ConfidenceFinal  *float64 `json:"confidence_final"`
	CorrectionNote   string   `json:"correction_note"`
	MissingFields    []string `json:"missing_fields"`
}

type CategoryEmissions struct {
	Category     string  `json:"category"`
	RawEmissions float64 `json:"raw_emissions"`
}

type EntityEmissions struct {
	EntityID       string  `json:"entity_id"`
	EmissionTonnes float64 `json:"emission_tonnes"`
}

type CategoryDetail struct {
	Category     string            `json:"category"`
	RawEmissions float64           `json:"raw_emissions"`
	Entities     []EntityEmissions `json:"entities"`
}

// ResultsResponse is the dashboard aggregate served by the backend once the
// guided conversation has covered enough categories.
type ResultsResponse struct {
	TotalYearlyEmissions    float64             `json:"total_yearly_emissions"`
	ConfidenceWeightedScore float64             `json:"confidence_weighted_score"`
	Scope1Total             float64             `json:"scope1_total"`
	Scope2Total             float64             `json:"scope2_total"`
	Scope3Total             float64             `json:"scope3_total"`
	TopCategories           []CategoryEmissions `json:"top_categories"`
	CategoriesDetailed      []CategoryDetail    `json:"categories_detailed"`
}
