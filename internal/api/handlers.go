package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"avt-guide/internal/assistant"
	"avt-guide/internal/chat"
	"avt-guide/internal/quota"
)

type chatRequest struct {
	Message   string `json:"message"`
	Locale    string `json:"locale"`
	SessionID string `json:"session_id,omitempty"`
}

type quotaView struct {
	Date      string `json:"date"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

type chatResponse struct {
	Success     bool              `json:"success"`
	Outcome     assistant.Outcome `json:"outcome"`
	SessionID   string            `json:"session_id"`
	Message     *chat.Message     `json:"message,omitempty"`
	Data        *chat.Response    `json:"data,omitempty"`
	Suggestions []chat.Suggestion `json:"suggestions"`
	Quota       quotaView         `json:"quota"`
}

type conversationResponse struct {
	SessionID   string            `json:"session_id"`
	Messages    []chat.Message    `json:"messages"`
	Suggestions []chat.Suggestion `json:"suggestions"`
	Typing      bool              `json:"typing"`
}

func viewQuota(g *quota.Guard) quotaView {
	rec := g.Status()
	return quotaView{Date: rec.Date, Used: rec.Count, Limit: g.Limit(), Remaining: g.Remaining()}
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Active()})
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.WithError(err).Warn("api: bad chat request")
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	clientID, sessionID := identity(w, r, req.SessionID)
	locale := s.locale(r, req.Locale)
	orc := s.sessions.Session(clientID, sessionID, locale)
	turn := orc.Send(r.Context(), assistant.Request{Locale: locale, Text: req.Message})
	log.WithField("outcome", turn.Outcome).Info("api: chat turn")

	resp := chatResponse{
		Success:     turn.Outcome == assistant.OutcomeSuccess,
		Outcome:     turn.Outcome,
		SessionID:   sessionID,
		Message:     turn.Reply,
		Suggestions: orc.Conversation().Suggestions(),
		Quota:       viewQuota(orc.Quota()),
	}
	if turn.Reply != nil {
		resp.Data = turn.Reply.Data
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request) {
	clientID, sessionID := identity(w, r, "")
	orc := s.sessions.Session(clientID, sessionID, s.locale(r, ""))
	writeJSON(w, http.StatusOK, conversationResponse{
		SessionID:   sessionID,
		Messages:    orc.Conversation().Messages(),
		Suggestions: orc.Conversation().Suggestions(),
		Typing:      orc.Typing(),
	})
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	clientID, sessionID := identity(w, r, "")
	orc := s.sessions.Session(clientID, sessionID, s.locale(r, ""))
	orc.Reset()
	requestLog(r).WithField("session", sessionID).Info("api: conversation reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) quotaHandler(w http.ResponseWriter, r *http.Request) {
	clientID, _ := identity(w, r, "")
	writeJSON(w, http.StatusOK, viewQuota(s.sessions.Quota(clientID)))
}
