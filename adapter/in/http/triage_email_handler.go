package http

import (
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/infra/middleware"
	"triage_server/pkg/apperr"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// EmailHandler serves processed emails and account linking.
type EmailHandler struct {
	inbox    in.InboxUseCase
	accounts in.AccountUseCase
}

func NewEmailHandler(inbox in.InboxUseCase, accounts in.AccountUseCase) *EmailHandler {
	return &EmailHandler{inbox: inbox, accounts: accounts}
}

func (h *EmailHandler) Register(app fiber.Router) {
	app.Get("/emails/:userId", h.ListProcessed)
	app.Put("/accounts/:userId", h.LinkAccount)
}

type emailDTO struct {
	ID         int64   `json:"id"`
	EmailID    string  `json:"emailId"`
	Subject    string  `json:"subject"`
	From       string  `json:"from"`
	Snippet    string  `json:"snippet"`
	ReceivedAt string  `json:"receivedAt"`
	Processed  bool    `json:"processed"`
	Summary    *string `json:"summary"`
	Priority   *string `json:"priority"`
	Action     *string `json:"action"`
	DueDate    *string `json:"dueDate"`
	DueTime    *string `json:"dueTime"`
	CreatedAt  string  `json:"createdAt"`
}

func toEmailDTO(r *domain.EmailRecord) emailDTO {
	dto := emailDTO{
		ID:         r.ID,
		EmailID:    r.ProviderID,
		Subject:    r.Subject,
		From:       r.Sender,
		Snippet:    r.Body,
		ReceivedAt: r.ReceivedAt.UTC().Format(time.RFC3339),
		Processed:  r.Processed,
		Summary:    r.Summary,
		Action:     r.Action,
		DueDate:    r.DueDate,
		DueTime:    r.DueTime,
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.Priority != nil {
		p := r.Priority.String()
		dto.Priority = &p
	}
	return dto
}

// ListProcessed returns the latest processed emails and their tier counts.
// Callers may only read their own mailbox.
func (h *EmailHandler) ListProcessed(c *fiber.Ctx) error {
	userID, err := h.pathUser(c)
	if err != nil {
		return response.FromError(c, err)
	}

	records, stats, err := h.inbox.ListProcessed(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, apperr.DatabaseError("list emails", err))
	}

	emails := make([]emailDTO, len(records))
	for i, r := range records {
		emails[i] = toEmailDTO(r)
	}
	return response.OK(c, fiber.Map{"emails": emails, "stats": stats})
}

type linkAccountRequest struct {
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
}

// LinkAccount stores the caller's offline refresh token.
func (h *EmailHandler) LinkAccount(c *fiber.Ctx) error {
	userID, err := h.pathUser(c)
	if err != nil {
		return response.FromError(c, err)
	}

	var req linkAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	acct := &domain.Account{UserID: userID, Email: req.Email, RefreshToken: req.RefreshToken}
	if err := h.accounts.LinkAccount(c.UserContext(), acct); err != nil {
		return response.FromError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *EmailHandler) pathUser(c *fiber.Ctx) (uuid.UUID, error) {
	userID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid user id")
	}
	if caller, ok := middleware.UserID(c); ok && caller != userID {
		return uuid.Nil, apperr.Forbidden("cannot access another user's mailbox")
	}
	return userID, nil
}
