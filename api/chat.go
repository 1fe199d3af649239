package api

import (
	"context"
	"net/http"
	"strings"

	"taskchat/chat"
	"taskchat/errors"
	"taskchat/logger"
)

const maxMessageLen = 4000

// TurnHandler is the part of the chat engine the transport needs.
type TurnHandler interface {
	HandleTurn(ctx context.Context, turn chat.Turn) (*chat.Reply, error)
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	Owner          string `json:"owner"`
}

// NewChatHandler handles POST /chat. Turns without an owner belong to defaultOwner.
func NewChatHandler(engine TurnHandler, defaultOwner string, lg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if taskErr := decodeJSON(w, r, &req); taskErr != nil {
			respondWithError(w, taskErr, lg)
			return
		}

		if strings.TrimSpace(req.Message) == "" {
			respondWithError(w, errors.NewValidationError("message is required"), lg)
			return
		}
		if len(req.Message) > maxMessageLen {
			respondWithError(w, errors.NewValidationError("message too long", map[string]any{
				"max_length":    maxMessageLen,
				"actual_length": len(req.Message),
			}), lg)
			return
		}

		owner := strings.TrimSpace(req.Owner)
		if owner == "" {
			owner = defaultOwner
		}

		reply, err := engine.HandleTurn(r.Context(), chat.Turn{
			ConversationID: strings.TrimSpace(req.ConversationID),
			Owner:          owner,
			Text:           req.Message,
		})
		if err != nil {
			respondWithFailure(w, err, lg)
			return
		}

		respondJSON(w, http.StatusOK, reply, lg)
	}
}
