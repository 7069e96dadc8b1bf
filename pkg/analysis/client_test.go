package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSessionSendsProfileAndReturnsID(t *testing.T) {
	var gotBody map[string]CompanyProfile
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/start", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"session_id":"abc-123"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	id, err := c.StartSession(context.Background(), CompanyProfile{Country: "Sweden", Industry: "Retail"})
	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)
	assert.Equal(t, "Sweden", gotBody["company_profile"].Country)
}

func TestStartSessionRejectsEmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	_, err := c.StartSession(context.Background(), CompanyProfile{})
	assert.Error(t, err)
}

func TestNextStepDecodesPlainObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/next", r.URL.Path)
		w.Write([]byte(`{"next_question":"How many vehicles?","category":"Travel"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	resp, err := c.NextStep(context.Background(), StepRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "How many vehicles?", resp.NextQuestion)
	assert.Equal(t, "Travel", resp.Category)
}

func TestNextStepUnwrapsArrayResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(` [{"next_question":"Q1","category_complete":true,"next_category":"Energy"}] `))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	resp, err := c.NextStep(context.Background(), StepRequest{SessionID: "s1"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.CategoryComplete)
	assert.Equal(t, "Energy", resp.NextCategory)
}

func TestNextStepEmptyArrayYieldsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	resp, err := c.NextStep(context.Background(), StepRequest{SessionID: "s1"})
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestErrorIncludesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`upstream exploded`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	_, err := c.NextStep(context.Background(), StepRequest{SessionID: "s1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestCalculateEmissionsNullFigure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emissions/calculate", r.URL.Path)
		w.Write([]byte(`{"raw_emissions":null,"scope":"scope1"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	resp, err := c.CalculateEmissions(context.Background(), EmissionsRequest{SessionID: "s1", Category: "Travel"})
	require.NoError(t, err)
	assert.Nil(t, resp.RawEmissions)
	assert.Equal(t, "scope1", resp.Scope)
}

func TestCheckConfidencePointerFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/confidence/check", r.URL.Path)
		w.Write([]byte(`{"calculation_valid":false,"confidence_final":0.42,"correction_note":"re-check fuel mix","missing_fields":["fuel_type"]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	resp, err := c.CheckConfidence(context.Background(), "s1", "Travel")
	require.NoError(t, err)
	require.NotNil(t, resp.CalculationValid)
	assert.False(t, *resp.CalculationValid)
	require.NotNil(t, resp.ConfidenceFinal)
	assert.InDelta(t, 0.42, *resp.ConfidenceFinal, 1e-9)
	assert.Equal(t, "re-check fuel mix", resp.CorrectionNote)
	assert.Equal(t, []string{"fuel_type"}, resp.MissingFields)
}

func TestFetchResultsUsesGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/results/s1", r.URL.Path)
		w.Write([]byte(`{"total_yearly_emissions":120.5,"top_categories":[{"category":"Travel","raw_emissions":80}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 5*time.Second)
	resp, err := c.FetchResults(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 120.5, resp.TotalYearlyEmissions)
	require.Len(t, resp.TopCategories, 1)
	assert.Equal(t, "Travel", resp.TopCategories[0].Category)
}

func TestExtractedFieldIdentifier(t *testing.T) {
	cases := []struct {
		name string
		in   ExtractedField
		want string
	}{
		{"entity_id string", ExtractedField{EntityID: "car"}, "car"},
		{"camelCase fallback", ExtractedField{EntityIDAlt: "truck"}, "truck"},
		{"entity fallback", ExtractedField{Entity: "plane"}, "plane"},
		{"numeric id", ExtractedField{EntityID: float64(42)}, "42"},
		{"first non-empty wins", ExtractedField{EntityID: " ", EntityIDAlt: "bus"}, "bus"},
		{"all empty", ExtractedField{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Identifier())
		})
	}
}
