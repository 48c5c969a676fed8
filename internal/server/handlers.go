package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/labnoted/internal/ai"
	"github.com/hyperjump/labnoted/internal/apperr"
	"github.com/hyperjump/labnoted/internal/models"
	"github.com/hyperjump/labnoted/internal/prompts"
	"github.com/hyperjump/labnoted/internal/quality"
	"github.com/hyperjump/labnoted/internal/queryproc"
	"github.com/hyperjump/labnoted/internal/streammon"
)

// userHandle returns the trusted caller identity for userHandle-scoped operations
// (OAuth tokens, AI feedback). Bearer validation is out of scope (§6); the core trusts
// an already-authenticated request context and reads the identity it left behind.
func userHandle(r *http.Request) string {
	if h := r.Header.Get("X-User-Handle"); h != "" {
		return h
	}
	return "default"
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondAppError maps a typed *apperr.Error (or any other error, opaquely) onto the
// conventional HTTP status and a {"detail": "..."} body, logging the full error chain.
func (s *Server) respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if e, ok := apperr.As(err); ok {
		status = e.HTTPStatus()
	}
	if s.logger != nil {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.respondJSON(w, status, map[string]string{"detail": apperr.Detail(err)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

// --- Search ---

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("q") == "" {
		s.respondAppError(w, r, apperr.InvalidInput("query parameter 'q' is required"))
		return
	}
	query := &models.SearchQuery{
		Query: q.Get("q"),
		Type:  models.SearchType(q.Get("type")),
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			s.respondAppError(w, r, apperr.InvalidInput("limit must be an integer"))
			return
		}
		query.Limit = limit
	}

	response, err := s.engine.Search(r.Context(), query)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleIndexTrigger(w http.ResponseWriter, r *http.Request) {
	started, err := s.reindex.Start(r.Context())
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	if !started {
		s.respondJSON(w, http.StatusOK, map[string]string{
			"status":  "already_indexing",
			"message": "a re-index run is already in progress",
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "indexing",
		"message": "re-index started",
	})
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	p := s.reindex.Progress()
	pending := p.Total - p.Indexed - p.Failed
	if pending < 0 {
		pending = 0
	}
	resp := map[string]interface{}{
		"status":         p.Status,
		"total_notes":    p.Total,
		"indexed_notes":  p.Indexed,
		"pending_notes":  pending,
		"failed":         p.Failed,
	}
	if p.ErrorMessage != "" {
		resp["error_message"] = p.ErrorMessage
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// --- AI ---

type aiOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

type aiChatRequest struct {
	Feature string     `json:"feature"`
	Content string     `json:"content"`
	Model   *string    `json:"model,omitempty"`
	Options *aiOptions `json:"options,omitempty"`
}

// hintToOAuthProvider maps ai.ProviderHint's generic provider family to the OAuth
// provider key RegisterOAuth expects (the OAuth-backed variant of that family).
var hintToOAuthProvider = map[string]string{
	"openai": "openai-codex",
	"google": "google",
}

// resolveRouter returns the router to use for this request: the singleton, or — when
// the requested model belongs to a family with a stored OAuth token for this user — a
// per-request clone with that OAuth-backed provider injected. The singleton is never
// mutated (§9 OAuth hot-swap).
func (s *Server) resolveRouter(r *http.Request, modelID *string) *ai.Router {
	if modelID == nil || *modelID == "" || s.oauth == nil {
		return s.router
	}
	hint, ok := ai.ProviderHint(*modelID)
	if !ok {
		return s.router
	}
	oauthProvider, ok := hintToOAuthProvider[hint]
	if !ok {
		return s.router
	}
	token, accountID, err := s.oauth.DecryptedToken(r.Context(), userHandle(r), oauthProvider)
	if err != nil {
		return s.router
	}
	return s.router.WithOAuth(oauthProvider, token, accountID)
}

func chatOptionsFrom(o *aiOptions) models.ChatOptions {
	if o == nil {
		return models.ChatOptions{}
	}
	return models.ChatOptions{Temperature: o.Temperature, MaxTokens: o.MaxTokens}
}

func (s *Server) handleAIChat(w http.ResponseWriter, r *http.Request) {
	var req aiChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondAppError(w, r, apperr.InvalidInput("invalid request body"))
		return
	}

	taskType := prompts.TaskType(req.Feature)
	messages, err := prompts.Build(taskType, req.Content, nil)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	router := s.resolveRouter(r, req.Model)
	resp, err := router.Chat(r.Context(), models.ChatRequest{
		Feature:  req.Feature,
		Messages: messages,
		Model:    req.Model,
		Options:  chatOptionsFrom(req.Options),
	})
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	if s.gate != nil && quality.HasChecklist(req.Feature) {
		go s.evaluateQualityGate(req.Feature, req.Content, resp.Content)
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// evaluateQualityGate runs the checklist evaluation fire-and-forget, the way search
// events are recorded (§3 Search Event): observability that must never slow or fail
// the request it describes.
func (s *Server) evaluateQualityGate(feature, request, response string) {
	result, err := s.gate.Evaluate(context.Background(), feature, request, response)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("quality gate evaluation failed", zap.String("feature", feature), zap.Error(err))
		}
		return
	}
	if s.logger != nil {
		s.logger.Info("quality gate result",
			zap.String("feature", feature),
			zap.Float64("score", result.Score),
			zap.Bool("passed", result.Passed),
		)
	}
}

func (s *Server) handleAIStream(w http.ResponseWriter, r *http.Request) {
	var req aiChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondAppError(w, r, apperr.InvalidInput("invalid request body"))
		return
	}

	taskType := prompts.TaskType(req.Feature)
	messages, err := prompts.Build(taskType, req.Content, nil)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	router := s.resolveRouter(r, req.Model)
	resolvedModel, provider, err := router.Resolve(req.Model)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	events, err := provider.Stream(r.Context(), messages, resolvedModel, chatOptionsFrom(req.Options))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondAppError(w, r, apperr.Internal(fmt.Errorf("response writer does not support flushing")))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	requestLanguage := queryproc.Analyze(req.Content).Language
	monitor := streammon.New(streammon.Options{
		FormatSensitive: taskType == prompts.TaskWriting || taskType == prompts.TaskTemplate,
		KoreanRequest:   requestLanguage == queryproc.LangKorean || requestLanguage == queryproc.LangMixed,
	})

	bw := bufio.NewWriter(w)
	ctx := r.Context()
	for ev := range events {
		switch ev.Type {
		case ai.StreamEventChunk:
			if verdict := monitor.Feed(ev.Chunk); verdict.Action == streammon.ActionAbort {
				writeSSEError(bw, flusher, verdict.Reason)
				return
			}
			writeSSEChunk(bw, flusher, ev.Chunk)
		case ai.StreamEventError:
			msg := "stream failed"
			if ev.Err != nil {
				msg = ev.Err.Error()
			}
			writeSSEError(bw, flusher, msg)
			return
		case ai.StreamEventDone:
			writeSSEDone(bw, flusher)
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

type sseChunkPayload struct {
	Chunk string `json:"chunk"`
}
type sseErrorPayload struct {
	Error string `json:"error"`
}

func writeSSEChunk(bw *bufio.Writer, f http.Flusher, text string) {
	data, _ := json.Marshal(sseChunkPayload{Chunk: text})
	fmt.Fprintf(bw, "data: %s\n\n", data)
	bw.Flush()
	f.Flush()
}

func writeSSEError(bw *bufio.Writer, f http.Flusher, message string) {
	data, _ := json.Marshal(sseErrorPayload{Error: message})
	fmt.Fprintf(bw, "event: error\ndata: %s\n\n", data)
	bw.Flush()
	f.Flush()
}

func writeSSEDone(bw *bufio.Writer, f http.Flusher) {
	bw.WriteString("data: [DONE]\n\n")
	bw.Flush()
	f.Flush()
}

func (s *Server) handleAIModels(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"models": s.router.ListModels()})
}

func (s *Server) handleAIProviders(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"providers": s.router.ProviderNames()})
}

// --- OAuth ---

func (s *Server) handleOAuthConfigStatus(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	configured, authMode := s.oauth.ConfigStatus(provider)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"provider":   provider,
		"configured": configured,
		"auth_mode":  authMode,
	})
}

func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	res, err := s.oauth.BuildAuthorizeURL(r.Context(), provider, userHandle(r))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"authorization_url": res.AuthorizationURL,
		"state":             res.State,
	})
}

type oauthCallbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	var req oauthCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondAppError(w, r, apperr.InvalidInput("invalid request body"))
		return
	}
	res, err := s.oauth.ExchangeCode(r.Context(), provider, req.Code, req.State)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	resp := map[string]interface{}{"connected": res.Connected, "provider": res.Provider}
	if res.Email != "" {
		resp["email"] = res.Email
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOAuthStatus(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	res, err := s.oauth.Status(r.Context(), userHandle(r), provider)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	resp := map[string]interface{}{"connected": res.Connected, "provider": res.Provider}
	if res.Email != "" {
		resp["email"] = res.Email
	}
	if res.ExpiresAt != nil {
		resp["expires_at"] = res.ExpiresAt
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOAuthDisconnect(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	res, err := s.oauth.Revoke(r.Context(), userHandle(r), provider)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"disconnected": res.Disconnected})
}

func (s *Server) handleOAuthDeviceStart(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	res, err := s.oauth.StartDeviceFlow(r.Context(), provider, userHandle(r))
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}
	resp := map[string]interface{}{
		"device_code":       res.DeviceCode,
		"user_code":         res.UserCode,
		"verification_uri":  res.VerificationURI,
		"expires_in":        res.ExpiresIn,
		"interval":          res.Interval,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type oauthDevicePollRequest struct {
	DeviceCode string `json:"device_code"`
}

func (s *Server) handleOAuthDevicePoll(w http.ResponseWriter, r *http.Request) {
	var req oauthDevicePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondAppError(w, r, apperr.InvalidInput("invalid request body"))
		return
	}
	res, err := s.oauth.PollDeviceTokenByCode(r.Context(), req.DeviceCode)
	if err != nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "error",
			"connected": false,
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "connected",
		"connected": res.Connected,
		"provider":  res.Provider,
	})
}
