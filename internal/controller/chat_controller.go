package controller

import (
	"ecoagent-be/internal/dto"
	"ecoagent-be/internal/pkg/logger"
	"ecoagent-be/internal/pkg/serverutils"
	"ecoagent-be/internal/service"
	internalWS "ecoagent-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	StartIntake(ctx *fiber.Ctx) error
	SendAnswer(ctx *fiber.Ctx) error
	GetConversation(ctx *fiber.Ctx) error
	GetResults(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewChatController(service service.IChatService, hub *internalWS.Hub, log logger.ILogger) IChatController {
	return &chatController{service: service, hub: hub, logger: log}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	intake := r.Group("/intake/v1")
	intake.Post("/profile", c.StartIntake)

	chat := r.Group("/chat/v1")
	chat.Get("/:session_id", c.GetConversation)
	chat.Post("/:session_id/message", c.SendAnswer)
	chat.Get("/:session_id/ws", c.ServeWs)

	results := r.Group("/results/v1")
	results.Get("/:session_id", c.GetResults)
}

func (c *chatController) StartIntake(ctx *fiber.Ctx) error {
	var req dto.StartIntakeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.StartIntake(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Intake session started", res))
}

func (c *chatController) SendAnswer(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("session_id")

	var req dto.SendAnswerRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SubmitAnswer(ctx.Context(), sessionID, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Answer processed", res))
}

func (c *chatController) GetConversation(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("session_id")

	res, err := c.service.GetConversation(ctx.Context(), sessionID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Conversation state", res))
}

func (c *chatController) GetResults(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("session_id")

	res, err := c.service.GetResults(ctx.Context(), sessionID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Emission results", res))
}

// ServeWs upgrades the connection and streams this session's events.
func (c *chatController) ServeWs(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("session_id")

	if _, err := c.service.GetConversation(ctx.Context(), sessionID); err != nil {
		return err
	}

	if websocket.IsWebSocketUpgrade(ctx) {
		return websocket.New(func(conn *websocket.Conn) {
			c.logger.Info("ChatController", "Starting WebSocket session", map[string]interface{}{"session_id": sessionID})
			internalWS.ServeWs(c.hub, conn, sessionID)
			c.logger.Info("ChatController", "WebSocket session ended", map[string]interface{}{"session_id": sessionID})
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}
