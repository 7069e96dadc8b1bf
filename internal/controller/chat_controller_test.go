package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"ecoagent-be/internal/pkg/logger"
	"ecoagent-be/internal/pkg/serverutils"
	"ecoagent-be/internal/repository/memory"
	"ecoagent-be/internal/service"
	internalWS "ecoagent-be/internal/websocket"
	"ecoagent-be/pkg/analysis"
	"ecoagent-be/pkg/conversation"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	steps []*analysis.StepResponse
}

func (s *scriptedClient) StartSession(context.Context, analysis.CompanyProfile) (string, error) {
	return "sess-1", nil
}

func (s *scriptedClient) NextStep(context.Context, analysis.StepRequest) (*analysis.StepResponse, error) {
	if len(s.steps) == 0 {
		return &analysis.StepResponse{}, nil
	}
	resp := s.steps[0]
	s.steps = s.steps[1:]
	return resp, nil
}

func (s *scriptedClient) UpdateSummary(context.Context, string, string) error { return nil }

func (s *scriptedClient) CalculateEmissions(context.Context, analysis.EmissionsRequest) (*analysis.EmissionsResponse, error) {
	return &analysis.EmissionsResponse{}, nil
}

func (s *scriptedClient) CheckConfidence(context.Context, string, string) (*analysis.ConfidenceResponse, error) {
	return &analysis.ConfidenceResponse{}, nil
}

func (s *scriptedClient) FetchResults(context.Context, string) (*analysis.ResultsResponse, error) {
	return &analysis.ResultsResponse{TotalYearlyEmissions: 42}, nil
}

func newTestApp(client analysis.Client) *fiber.App {
	log := logger.NewNopLogger()
	repo := memory.NewSessionRepository(time.Hour)
	orch := conversation.NewOrchestrator(client, nil, log)
	svc := service.NewChatService(client, repo, orch, log)
	hub := internalWS.NewHub(nil, log)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	api := app.Group("/api")
	NewChatController(svc, hub, log).RegisterRoutes(api)
	return app
}

func TestStartIntakeEndpoint(t *testing.T) {
	app := newTestApp(&scriptedClient{
		steps: []*analysis.StepResponse{
			{NextCategory: "Travel", NextQuestion: "How many vehicles?"},
		},
	})

	body := bytes.NewBufferString(`{"company_profile":{"country":"Sweden","industry":"Logistics","employees":"11-50"}}`)
	req := httptest.NewRequest("POST", "/api/intake/v1/profile", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			SessionID    string `json:"session_id"`
			Conversation struct {
				CurrentCategory string `json:"current_category"`
			} `json:"conversation"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "sess-1", envelope.Data.SessionID)
	assert.Equal(t, "Travel", envelope.Data.Conversation.CurrentCategory)
}

func TestStartIntakeRejectsIncompleteProfile(t *testing.T) {
	app := newTestApp(&scriptedClient{})

	body := bytes.NewBufferString(`{"company_profile":{"country":"Sweden"}}`)
	req := httptest.NewRequest("POST", "/api/intake/v1/profile", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSendAnswerUnknownSessionReturns404(t *testing.T) {
	app := newTestApp(&scriptedClient{})

	body := bytes.NewBufferString(`{"answer":"five vans"}`)
	req := httptest.NewRequest("POST", "/api/chat/v1/unknown/message", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSendAnswerRequiresBody(t *testing.T) {
	app := newTestApp(&scriptedClient{})

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest("POST", "/api/chat/v1/sess-1/message", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetResultsEndpoint(t *testing.T) {
	client := &scriptedClient{
		steps: []*analysis.StepResponse{
			{NextCategory: "Travel", NextQuestion: "Q"},
		},
	}
	app := newTestApp(client)

	// start a session first so results has something to attach to
	body := bytes.NewBufferString(`{"company_profile":{"country":"Sweden","industry":"Logistics","employees":"11-50"}}`)
	req := httptest.NewRequest("POST", "/api/intake/v1/profile", body)
	req.Header.Set("Content-Type", "application/json")
	_, err := app.Test(req, 5000)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/results/v1/sess-1", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var envelope struct {
		Data struct {
			TotalYearlyEmissions float64 `json:"total_yearly_emissions"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, float64(42), envelope.Data.TotalYearlyEmissions)
}

func TestGetConversationEndpoint(t *testing.T) {
	client := &scriptedClient{
		steps: []*analysis.StepResponse{
			{NextCategory: "Travel", NextQuestion: "Q"},
		},
	}
	app := newTestApp(client)

	body := bytes.NewBufferString(`{"company_profile":{"country":"Sweden","industry":"Logistics","employees":"11-50"}}`)
	req := httptest.NewRequest("POST", "/api/intake/v1/profile", body)
	req.Header.Set("Content-Type", "application/json")
	_, err := app.Test(req, 5000)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/chat/v1/sess-1", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
