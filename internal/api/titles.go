package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"occtitles/pkg/apisession"
	"occtitles/pkg/config"
	"occtitles/pkg/editor"
	"occtitles/pkg/generator"
	"occtitles/pkg/scorer"
	"occtitles/pkg/titles"
)

// TitlesHandler serves title generation, both stateless and per editor session.
type TitlesHandler struct {
	gen      editor.Generator
	cfgProv  config.Provider
	sessions *apisession.Store[editorSession]

	// budget bounds one job attempt; a request also gets writeSlack to deliver the result.
	budget func(context.Context) time.Duration
}

// writeSlack is the time left to write a response after its job deadline.
const writeSlack = 15 * time.Second

// editorSession pairs an editor's state with its progress feed.
type editorSession struct {
	*editor.Session
	feed *feed
}

// NewTitlesHandler creates a TitlesHandler.
func NewTitlesHandler(gen editor.Generator, cfg config.Provider) *TitlesHandler {
	ttl := cfg.AppConfig().Editor.SessionTTL.Std()
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	h := &TitlesHandler{
		gen:      gen,
		cfgProv:  cfg,
		sessions: apisession.New[editorSession](ttl),
	}
	h.budget = func(ctx context.Context) time.Duration { return generator.JobBudget(ctx, cfg) }
	return h
}

// jobContext bounds a request running attempts jobs and moves the response
// write deadline past that bound.
func (h *TitlesHandler) jobContext(w http.ResponseWriter, r *http.Request, attempts int) (context.Context, context.CancelFunc) {
	limit := h.budget(r.Context()) * time.Duration(max(attempts, 1))
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(limit + writeSlack)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.Warn("Failed to extend write deadline", "error", err)
	}
	return context.WithTimeout(r.Context(), limit)
}

// ActiveSessions returns the number of live editor sessions.
func (h *TitlesHandler) ActiveSessions() int { return h.sessions.Len() }

type generateRequest struct {
	Content string `json:"content"`
	Style   string `json:"style"`
}

type rankingResponse struct {
	Rows        []scorer.Row `json:"rows"`
	Best        int          `json:"best"`
	KeywordLine string       `json:"keyword_line"`
}

// HandleGenerate runs one stateless job and returns the ranked table.
func (h *TitlesHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	style, ok := normalizeStyle(req.Style)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown style.")
		return
	}

	ctx, cancel := h.jobContext(w, r, 1)
	defer cancel()
	batch, err := h.gen.Generate(ctx, titles.JobRequest{Content: req.Content, Style: style}, nil)
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rankingResponse{
		Rows:        batch.Rows(),
		Best:        batch.Best,
		KeywordLine: batch.KeywordLine(),
	})
}

func normalizeStyle(s string) (string, bool) {
	if s == "" {
		return "", true
	}
	st, ok := titles.LookupStyle(s)
	return st.Value, ok
}

// jobError reports a job that ran out of its time budget as a timed out run.
func jobError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &titles.Error{Kind: titles.RunTimedOut, Message: titles.MessageFor(titles.RunTimedOut), Err: err}
	}
	return err
}

func writeJobError(w http.ResponseWriter, err error) {
	err = jobError(err)
	code := http.StatusBadGateway
	switch {
	case titles.KindOf(err) == titles.RunTimedOut:
		code = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		code = http.StatusServiceUnavailable
	case titles.KindOf(err) == titles.MissingConfiguration:
		code = http.StatusUnprocessableEntity
	case titles.KindOf(err) == "":
		code = http.StatusInternalServerError
	}
	writeError(w, code, titles.DisplayMessage(err))
}

type createSessionRequest struct {
	PostType string `json:"post_type"`
	Title    string `json:"title"`
}

type sessionResponse struct {
	ID    string       `json:"id"`
	State editor.State `json:"state"`
}

// HandleCreateSession opens an editor session for a post.
func (h *TitlesHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.PostType == "" {
		req.PostType = "post"
	}
	if !h.cfgProv.PostTypeEnabled(r.Context(), req.PostType) {
		writeError(w, http.StatusForbidden, "Title generation is not enabled for this post type.")
		return
	}

	es := &editorSession{
		Session: editor.NewSession(req.PostType, req.Title, h.cfgProv.AppConfig().Editor.Retries),
		feed:    newFeed(),
	}
	id := h.sessions.Add(es)
	slog.Debug("Editor session opened", "session_id", id, "post_type", req.PostType)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, State: es.State()})
}

func (h *TitlesHandler) lookup(w http.ResponseWriter, r *http.Request) (*editorSession, string, bool) {
	id := chi.URLParam(r, "id")
	es, ok := h.sessions.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found.")
	}
	return es, id, ok
}

func (h *TitlesHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	es, id, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, State: es.State()})
}

func (h *TitlesHandler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// HandleSessionGenerate runs a job for an editor session, streaming
// status changes and tips to its feed while the job is in flight.
func (h *TitlesHandler) HandleSessionGenerate(w http.ResponseWriter, r *http.Request) {
	es, _, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	ctx, cancel := h.jobContext(w, r, h.cfgProv.AppConfig().Editor.Retries+1)
	defer cancel()
	res, err := es.Generate(ctx, h.gen, editor.Request{
		Content:     req.Content,
		Style:       req.Style,
		TipInterval: h.cfgProv.AppConfig().Editor.TipInterval.Std(),
		OnTip: func(tip string) {
			es.feed.publish(feedMessage{Type: msgTip, Text: tip})
		},
	}, es.feed.observer())
	if err != nil {
		switch {
		case errors.Is(err, editor.ErrBusy):
			writeError(w, http.StatusConflict, "A title generation is already running.")
			return
		case errors.Is(err, editor.ErrUnknownStyle):
			writeError(w, http.StatusBadRequest, "Unknown style.")
			return
		}
		es.feed.publish(feedMessage{Type: msgError, Text: titles.DisplayMessage(jobError(err))})
		writeJobError(w, err)
		return
	}
	es.feed.publish(feedMessage{Type: msgDone, Attempts: res.Attempts})
	writeJSON(w, http.StatusOK, res)
}

type titleRequest struct {
	Title string `json:"title"`
}

// HandleSetTitle records a title typed by the editor outside the generator.
func (h *TitlesHandler) HandleSetTitle(w http.ResponseWriter, r *http.Request) {
	es, _, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req titleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	es.SetTitle(req.Title)
	writeJSON(w, http.StatusOK, titleResponse{Title: es.Title()})
}

type applyRequest struct {
	Index int `json:"index"`
}

type titleResponse struct {
	Title string `json:"title"`
}

// HandleApply puts a ranked candidate into the editor title.
func (h *TitlesHandler) HandleApply(w http.ResponseWriter, r *http.Request) {
	es, _, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req applyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	title, err := es.Apply(req.Index)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, titleResponse{Title: title})
}

// HandleRevert restores the title from before the last generation.
func (h *TitlesHandler) HandleRevert(w http.ResponseWriter, r *http.Request) {
	es, _, ok := h.lookup(w, r)
	if !ok {
		return
	}
	title, err := es.Revert()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, titleResponse{Title: title})
}

func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, editor.ErrNoResults) {
		writeError(w, http.StatusConflict, "No titles have been generated yet.")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
