package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/connect-cli/internal/imageurl"
	"github.com/sells-group/connect-cli/internal/ingest"
	"github.com/sells-group/connect-cli/internal/model"
	"github.com/sells-group/connect-cli/internal/review"
)

// maxBodyBytes caps request bodies; payloads are small JSON documents.
const maxBodyBytes = 1 << 20

// SessionView is the session snapshot plus resolved image URLs.
type SessionView struct {
	ID string `json:"id"`
	review.Snapshot
	Images imageurl.Images `json:"images"`
}

type createSessionRequest struct {
	BatchID string `json:"batch_id"`
}

type ingestCardRequest struct {
	BatchID       string          `json:"batch_id"`
	FrontImageKey string          `json:"front_image_key"`
	BackImageKey  string          `json:"back_image_key"`
	Payload       json.RawMessage `json:"payload"`
}

type navigateRequest struct {
	Direction string `json:"direction"`
	Index     *int   `json:"index,omitempty"`
}

type saveResponse struct {
	Contact model.CommittedContact `json:"contact"`
	Session SessionView            `json:"session"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return eris.Wrap(err, "api: decode request body")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}
	if s.cfg.Sessions != nil {
		status["sessions"] = s.cfg.Sessions.Len()
	}
	if s.cfg.Pinger != nil {
		if err := s.cfg.Pinger.Ping(r.Context()); err != nil {
			status["status"] = "degraded"
			status["store"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleIngestCard(w http.ResponseWriter, r *http.Request) {
	var req ingestCardRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	card, err := s.cfg.Ingester.Ingest(r.Context(), ingest.Request{
		Scope:         scopeFrom(r.Context()),
		BatchID:       req.BatchID,
		FrontImageKey: req.FrontImageKey,
		BackImageKey:  req.BackImageKey,
		Payload:       req.Payload,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	scope := scopeFrom(r.Context())
	cards, err := s.cfg.Cards.FindPendingCards(r.Context(), scope.OrganizationID, r.URL.Query().Get("batch_id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if cards == nil {
		cards = []model.PendingCard{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": cards, "count": len(cards)})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	sess, err := s.cfg.Sessions.Create(r.Context(), scopeFrom(r.Context()), req.BatchID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.view(r.Context(), sess))
}

// session resolves the {id} path parameter for the caller's scope.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := s.cfg.Sessions.Get(chi.URLParam(r, "id"), scopeFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) view(ctx context.Context, sess *Session) SessionView {
	snap := sess.Controller.Snapshot()
	v := SessionView{ID: sess.ID, Snapshot: snap}
	if snap.Card != nil {
		v.Images = s.cfg.Images.ResolveCard(ctx, *snap.Card, snap.Capabilities.TwoSidedImages)
	}
	return v
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.view(r.Context(), sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Sessions.Delete(chi.URLParam(r, "id"), scopeFrom(r.Context())); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	after, _ := strconv.Atoi(r.URL.Query().Get("after"))
	writeJSON(w, http.StatusOK, map[string]any{"events": sess.EventsSince(after)})
}

func (s *Server) handlePatchForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var p review.Patch
	if err := decode(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sess.Controller.Apply(p); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(r.Context(), sess))
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req navigateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var err error
	switch {
	case req.Index != nil:
		err = sess.Controller.JumpTo(*req.Index)
	case req.Direction == "next":
		err = sess.Controller.Next()
	case req.Direction == "prev":
		err = sess.Controller.Prev()
	default:
		writeError(w, http.StatusBadRequest, `navigate: direction must be "next" or "prev", or index must be set`)
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(r.Context(), sess))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	contact, err := sess.Controller.Save(r.Context())
	if err != nil {
		if eris.Is(err, review.ErrCategoryRequired) {
			writeJSON(w, http.StatusUnprocessableEntity, s.view(r.Context(), sess))
			return
		}
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saveResponse{Contact: contact, Session: s.view(r.Context(), sess)})
}

func (s *Server) handleRequestDiscard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Controller.RequestDiscard(); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(r.Context(), sess))
}

func (s *Server) handleConfirmDiscard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Controller.ConfirmDiscard(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(r.Context(), sess))
}

func (s *Server) handleCancelDiscard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Controller.CancelDiscard()
	writeJSON(w, http.StatusOK, s.view(r.Context(), sess))
}

func (s *Server) handleReloadLeaders(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Controller.ReloadLeaders(r.Context()); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(r.Context(), sess))
}
