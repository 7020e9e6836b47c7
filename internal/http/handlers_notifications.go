package http

import (
	"net/http"
	"time"

	"lana/internal/core"
	"lana/internal/ledger"
	"lana/internal/services"
)

type notificationResponse struct {
	ID           int64                  `json:"id"`
	Kind         core.NotificationKind  `json:"kind"`
	Channel      core.Channel           `json:"channel,omitempty"`
	Message      string                 `json:"message"`
	State        core.NotificationState `json:"state"`
	ScheduledFor *time.Time             `json:"scheduled_for,omitempty"`
	SentAt       *time.Time             `json:"sent_at,omitempty"`
	Payload      map[string]any         `json:"payload,omitempty"`
}

type preferencesBody struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
	Push  bool `json:"push"`
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toNotificationResponse(n core.Notification) notificationResponse {
	return notificationResponse{
		ID:           n.ID,
		Kind:         n.Kind,
		Channel:      n.Channel,
		Message:      n.Message,
		State:        n.State,
		ScheduledFor: timeOrNil(n.ScheduledFor),
		SentAt:       timeOrNil(n.SentAt),
		Payload:      n.Payload,
	}
}

func toNotificationResponses(list []core.Notification) []notificationResponse {
	out := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, toNotificationResponse(n))
	}
	return out
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	read, err := queryBool(r, "read")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", services.DefaultNotificationLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.deps.Notifications.List(r.Context(), owner(r), ledger.NotificationFilter{
		Read:  read,
		Kind:  core.NotificationKind(r.URL.Query().Get("kind")),
		Limit: limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toNotificationResponses(list)).Write(w)
}

func (s *Server) handlePendingNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Notifications.Pending(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toNotificationResponses(list)).Write(w)
}

func (s *Server) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.deps.Notifications.Get(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(toNotificationResponse(n)).Write(w)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Notifications.MarkRead(r.Context(), owner(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Notifications.Delete(r.Context(), owner(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Notifications.Preferences(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(preferencesBody{Email: p.ByEmail, SMS: p.BySMS, Push: p.ByPush}).Write(w)
}

func (s *Server) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesBody
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := s.deps.Notifications.SavePreferences(r.Context(), core.NotificationPreferences{
		OwnerID: owner(r),
		ByEmail: req.Email,
		BySMS:   req.SMS,
		ByPush:  req.Push,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(req).Write(w)
}
