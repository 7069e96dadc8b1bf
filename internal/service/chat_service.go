package service

import (
	"context"

	"ecoagent-be/internal/dto"
	"ecoagent-be/internal/pkg/logger"
	"ecoagent-be/internal/pkg/serverutils"
	"ecoagent-be/internal/repository/memory"
	"ecoagent-be/pkg/analysis"
	"ecoagent-be/pkg/conversation"

	"github.com/gofiber/fiber/v2"
)

type IChatService interface {
	StartIntake(ctx context.Context, req *dto.StartIntakeRequest) (*dto.StartIntakeResponse, error)
	SubmitAnswer(ctx context.Context, sessionID string, req *dto.SendAnswerRequest) (*dto.SendAnswerResponse, error)
	GetConversation(ctx context.Context, sessionID string) (*conversation.Snapshot, error)
	GetResults(ctx context.Context, sessionID string) (*analysis.ResultsResponse, error)
}

type chatService struct {
	client       analysis.Client
	sessionRepo  *memory.SessionRepository
	orchestrator *conversation.Orchestrator
	log          logger.ILogger
}

func NewChatService(
	client analysis.Client,
	sessionRepo *memory.SessionRepository,
	orchestrator *conversation.Orchestrator,
	log logger.ILogger,
) IChatService {
	return &chatService{
		client:       client,
		sessionRepo:  sessionRepo,
		orchestrator: orchestrator,
		log:          log,
	}
}

func (s *chatService) StartIntake(ctx context.Context, req *dto.StartIntakeRequest) (*dto.StartIntakeResponse, error) {
	profile := analysis.CompanyProfile{
		Country:            req.CompanyProfile.Country,
		Industry:           req.CompanyProfile.Industry,
		Employees:          req.CompanyProfile.Employees,
		PhysicalFacilities: req.CompanyProfile.PhysicalFacilities,
		Sells:              req.CompanyProfile.Sells,
	}

	sessionID, err := s.client.StartSession(ctx, profile)
	if err != nil {
		s.log.Error("ChatService", "Failed to start analysis session", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, serverutils.NewAppError(fiber.StatusBadGateway, "analysis backend unavailable")
	}

	session := conversation.NewSession(sessionID)
	s.sessionRepo.Save(session)

	// Fetch the opening question. A failure here leaves an empty but usable
	// session; the client retries by answering.
	s.orchestrator.Initialize(ctx, session)

	s.log.Info("ChatService", "Intake session started", map[string]interface{}{
		"session_id": sessionID,
	})

	return &dto.StartIntakeResponse{
		SessionID:    sessionID,
		Conversation: session.Snapshot(),
	}, nil
}

func (s *chatService) SubmitAnswer(ctx context.Context, sessionID string, req *dto.SendAnswerRequest) (*dto.SendAnswerResponse, error) {
	session, found := s.sessionRepo.Get(sessionID)
	if !found {
		return nil, serverutils.NewAppError(fiber.StatusNotFound, "session not found")
	}

	if session.Busy() {
		return nil, serverutils.NewAppError(fiber.StatusConflict, "previous answer still being processed")
	}

	s.orchestrator.SubmitAnswer(ctx, session, req.Answer)
	s.sessionRepo.Touch(sessionID)

	return &dto.SendAnswerResponse{
		Conversation: session.Snapshot(),
	}, nil
}

func (s *chatService) GetConversation(_ context.Context, sessionID string) (*conversation.Snapshot, error) {
	session, found := s.sessionRepo.Get(sessionID)
	if !found {
		return nil, serverutils.NewAppError(fiber.StatusNotFound, "session not found")
	}

	snap := session.Snapshot()
	return &snap, nil
}

func (s *chatService) GetResults(ctx context.Context, sessionID string) (*analysis.ResultsResponse, error) {
	if _, found := s.sessionRepo.Get(sessionID); !found {
		return nil, serverutils.NewAppError(fiber.StatusNotFound, "session not found")
	}

	results, err := s.client.FetchResults(ctx, sessionID)
	if err != nil {
		s.log.Error("ChatService", "Failed to fetch results", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil, serverutils.NewAppError(fiber.StatusBadGateway, "analysis backend unavailable")
	}
	return results, nil
}
