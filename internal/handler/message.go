package handler

import (
	"log/slog"
	"net/http"

	"msgtree/internal/config"
	"msgtree/internal/domain/services"
	"msgtree/internal/httputil"
)

// MessageHandler handles message tree HTTP requests
type MessageHandler struct {
	messageService services.MessageService
	logger         *slog.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService services.MessageService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		logger:         logger,
	}
}

// RegisterRoutes mounts the message routes on mux (Go 1.22+ patterns)
func (h *MessageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("GET /api/v1/messages", h.ListMessages)
	mux.HandleFunc("GET /api/v1/messages/cursor", h.ListMessagesCursor) // Must come before {id} route
	mux.HandleFunc("GET /api/v1/messages/{id}", h.GetMessage)
	mux.HandleFunc("DELETE /api/v1/messages/{id}", h.DeleteMessage)
	mux.HandleFunc("GET /api/v1/messages/{id}/conversation", h.GetConversation)
	mux.HandleFunc("GET /api/v1/messages/{id}/tree", h.GetTree)
	mux.HandleFunc("GET /api/v1/messages/{id}/children", h.GetChildren)
	mux.HandleFunc("GET /api/v1/messages/{id}/descendants", h.GetDescendants)
	mux.HandleFunc("GET /api/v1/messages/{id}/longest_conversation_in_tree", h.GetLongestConversation)
	mux.HandleFunc("GET /api/v1/messages/{id}/max_children_in_tree", h.GetMaxChildren)
}

// HealthCheck reports liveness
// GET /health
func (h *MessageHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseFilters reads the predicate query parameters shared by both listings
func parseFilters(r *http.Request) (services.MessageFilters, error) {
	var f services.MessageFilters
	var err error

	if f.UserID, err = httputil.QueryUUID(r, "user_id"); err != nil {
		return f, err
	}
	if f.APIClientID, err = httputil.QueryUUID(r, "api_client_id"); err != nil {
		return f, err
	}
	if f.OnlyRoots, err = httputil.QueryBool(r, "only_roots", false); err != nil {
		return f, err
	}
	if f.IncludeDeleted, err = httputil.QueryBool(r, "include_deleted", false); err != nil {
		return f, err
	}
	q := r.URL.Query()
	f.Username = q.Get("username")
	f.AuthMethod = q.Get("auth_method")
	return f, nil
}

// ListMessages lists messages in a date window
// GET /api/v1/messages?start_date=&end_date=&desc=true&max_count=10
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	req, err := parseListRequest(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	messages, err := h.messageService.ListMessages(r.Context(), caller, req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, messages)
}

func parseListRequest(r *http.Request) (*services.ListMessagesRequest, error) {
	filters, err := parseFilters(r)
	if err != nil {
		return nil, err
	}
	req := &services.ListMessagesRequest{MessageFilters: filters}
	if req.StartDate, err = httputil.QueryTime(r, "start_date"); err != nil {
		return nil, err
	}
	if req.EndDate, err = httputil.QueryTime(r, "end_date"); err != nil {
		return nil, err
	}
	if req.Desc, err = httputil.QueryBool(r, "desc", true); err != nil {
		return nil, err
	}
	if req.MaxCount, err = httputil.QueryInt(r, "max_count", config.DefaultPageSize); err != nil {
		return nil, err
	}
	return req, nil
}

// ListMessagesCursor returns one cursor-delimited page
// GET /api/v1/messages/cursor?gt=&lt=&desc=false&max_count=10
func (h *MessageHandler) ListMessagesCursor(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	filters, err := parseFilters(r)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	req := &services.MessagePageRequest{
		MessageFilters: filters,
		GT:             r.URL.Query().Get("gt"),
		LT:             r.URL.Query().Get("lt"),
	}
	if req.Desc, err = httputil.QueryBool(r, "desc", false); err != nil {
		handleError(w, h.logger, err)
		return
	}
	if req.MaxCount, err = httputil.QueryInt(r, "max_count", config.DefaultPageSize); err != nil {
		handleError(w, h.logger, err)
		return
	}

	page, err := h.messageService.ListMessagesPage(r.Context(), caller, req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, page)
}

// GetMessage retrieves a single message
// GET /api/v1/messages/{id}
func (h *MessageHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathUUID(r, "id")
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	msg, err := h.messageService.GetMessage(r.Context(), id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, msg)
}

// GetConversation returns the root-to-message path
// GET /api/v1/messages/{id}/conversation
func (h *MessageHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathUUID(r, "id")
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	conv, err := h.messageService.GetConversation(r.Context(), id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conv)
}

// GetTree returns the whole tree the message belongs to
// GET /api/v1/messages/{id}/tree?reviewed=false
func (h *MessageHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathUUID(r, "id")
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	reviewed, err := httputil.QueryBool(r, "reviewed", false)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	tree, err := h.messageService.GetTree(r.Context(), id, reviewed)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, tree)
}

// GetChildren returns the direct replies
// GET /api/v1/messages/{id}/children
func (h *MessageHandler) GetChildren(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathUUID(r, "id")
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	children, err := h.messageService.GetChildren(r.Context(), id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, children)
}

// GetDescendants returns the message and its subtree
// GET /api/v1/messages/{id}/descendants
func (h *MessageHandler) GetDescendants(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathUUID(r, "id")
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	tree, err := h.messageService.GetDescendants(r.Context(), id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, tree)
}

// GetLongestConversation returns the path to the deepest leaf of the message's tree
// GET /api/v1/messages/{id}/longest_conversation_in_tree
func (h *MessageHandler) GetLongestConversation(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathUUID(r, "id")
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	conv, err := h.messageService.GetLongestConversation(r.Context(), id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conv)
}

// GetMaxChildren returns the node with the most replies and those replies
// GET /api/v1/messages/{id}/max_children_in_tree
func (h *MessageHandler) GetMaxChildren(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathUUID(r, "id")
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	tree, err := h.messageService.GetNodeWithMostChildren(r.Context(), id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, tree)
}

// DeleteMessage soft-deletes a message
// DELETE /api/v1/messages/{id}
// Returns 204 on success, also when the message was already deleted
func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	id, err := httputil.PathUUID(r, "id")
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	if err := h.messageService.DeleteMessage(r.Context(), caller, id); err != nil {
		handleError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
