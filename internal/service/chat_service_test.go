package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ecoagent-be/internal/dto"
	"ecoagent-be/internal/pkg/logger"
	"ecoagent-be/internal/pkg/serverutils"
	"ecoagent-be/internal/repository/memory"
	"ecoagent-be/pkg/analysis"
	"ecoagent-be/pkg/conversation"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalysisClient struct {
	startErr   error
	steps      []*analysis.StepResponse
	resultsErr error
}

func (s *stubAnalysisClient) StartSession(context.Context, analysis.CompanyProfile) (string, error) {
	if s.startErr != nil {
		return "", s.startErr
	}
	return "sess-1", nil
}

func (s *stubAnalysisClient) NextStep(context.Context, analysis.StepRequest) (*analysis.StepResponse, error) {
	if len(s.steps) == 0 {
		return &analysis.StepResponse{}, nil
	}
	resp := s.steps[0]
	s.steps = s.steps[1:]
	return resp, nil
}

func (s *stubAnalysisClient) UpdateSummary(context.Context, string, string) error { return nil }

func (s *stubAnalysisClient) CalculateEmissions(context.Context, analysis.EmissionsRequest) (*analysis.EmissionsResponse, error) {
	return &analysis.EmissionsResponse{}, nil
}

func (s *stubAnalysisClient) CheckConfidence(context.Context, string, string) (*analysis.ConfidenceResponse, error) {
	return &analysis.ConfidenceResponse{}, nil
}

func (s *stubAnalysisClient) FetchResults(context.Context, string) (*analysis.ResultsResponse, error) {
	if s.resultsErr != nil {
		return nil, s.resultsErr
	}
	return &analysis.ResultsResponse{TotalYearlyEmissions: 99}, nil
}

func newTestChatService(client analysis.Client) (IChatService, *memory.SessionRepository) {
	repo := memory.NewSessionRepository(time.Hour)
	orch := conversation.NewOrchestrator(client, nil, logger.NewNopLogger())
	return NewChatService(client, repo, orch, logger.NewNopLogger()), repo
}

func TestStartIntakeCreatesSessionWithOpeningQuestion(t *testing.T) {
	client := &stubAnalysisClient{
		steps: []*analysis.StepResponse{
			{NextCategory: "Travel", NextQuestion: "How many vehicles do you operate?"},
		},
	}
	svc, repo := newTestChatService(client)

	res, err := svc.StartIntake(context.Background(), &dto.StartIntakeRequest{
		CompanyProfile: dto.CompanyProfileDTO{Country: "Sweden", Industry: "Logistics", Employees: "11-50"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", res.SessionID)
	assert.Equal(t, "Travel", res.Conversation.CurrentCategory)
	require.Len(t, res.Conversation.Transcript, 1)

	_, found := repo.Get("sess-1")
	assert.True(t, found)
}

func TestStartIntakeBackendDown(t *testing.T) {
	client := &stubAnalysisClient{startErr: fmt.Errorf("connection refused")}
	svc, _ := newTestChatService(client)

	_, err := svc.StartIntake(context.Background(), &dto.StartIntakeRequest{})
	require.Error(t, err)

	appErr, ok := err.(*serverutils.AppError)
	require.True(t, ok)
	assert.Equal(t, fiber.StatusBadGateway, appErr.Code)
}

func TestSubmitAnswerUnknownSession(t *testing.T) {
	svc, _ := newTestChatService(&stubAnalysisClient{})

	_, err := svc.SubmitAnswer(context.Background(), "nope", &dto.SendAnswerRequest{Answer: "hi"})
	require.Error(t, err)

	appErr, ok := err.(*serverutils.AppError)
	require.True(t, ok)
	assert.Equal(t, fiber.StatusNotFound, appErr.Code)
}

func TestSubmitAnswerAppendsExchange(t *testing.T) {
	client := &stubAnalysisClient{
		steps: []*analysis.StepResponse{
			{NextCategory: "Travel", NextQuestion: "How many vehicles?"},
			{NextQuestion: "How far does each drive?"},
		},
	}
	svc, _ := newTestChatService(client)

	started, err := svc.StartIntake(context.Background(), &dto.StartIntakeRequest{})
	require.NoError(t, err)

	res, err := svc.SubmitAnswer(context.Background(), started.SessionID, &dto.SendAnswerRequest{Answer: "five vans"})
	require.NoError(t, err)
	require.Len(t, res.Conversation.Transcript, 3)
	assert.Equal(t, "five vans", res.Conversation.Transcript[1].Text)
	assert.Equal(t, "How far does each drive?", res.Conversation.Transcript[2].Text)
}

func TestGetConversationUnknownSession(t *testing.T) {
	svc, _ := newTestChatService(&stubAnalysisClient{})

	_, err := svc.GetConversation(context.Background(), "missing")
	require.Error(t, err)
}

func TestGetResultsProxiesBackend(t *testing.T) {
	client := &stubAnalysisClient{}
	svc, repo := newTestChatService(client)
	repo.Save(conversation.NewSession("sess-1"))

	res, err := svc.GetResults(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, float64(99), res.TotalYearlyEmissions)
}

func TestGetResultsBackendFailure(t *testing.T) {
	client := &stubAnalysisClient{resultsErr: fmt.Errorf("boom")}
	svc, repo := newTestChatService(client)
	repo.Save(conversation.NewSession("sess-1"))

	_, err := svc.GetResults(context.Background(), "sess-1")
	require.Error(t, err)

	appErr, ok := err.(*serverutils.AppError)
	require.True(t, ok)
	assert.Equal(t, fiber.StatusBadGateway, appErr.Code)
}
