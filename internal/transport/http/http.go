// Package http implements the HTTP transport for interlude.
//
// This transport exposes a REST API for announcements and per-guild settings,
// plus the generated Swagger UI. It is what the chat bot front end calls when
// a user runs a say command.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/interlude/internal/message"
	"github.com/nadzzz/interlude/internal/transport"
)

const maxBodyBytes = 1 << 20

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port           int
	allowedOrigins []string
	server         *http.Server
}

// New creates a new HTTP transport on the given port.
func New(port int, allowedOrigins []string) *Transport {
	return &Transport{port: port, allowedOrigins: allowedOrigins}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler builds the router for svc, wrapped in CORS handling.
func (t *Transport) Handler(svc transport.Service) http.Handler {
	h := &handlers{svc: svc}

	r := mux.NewRouter()
	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/guilds/{guild}/say", h.say).Methods(http.MethodPost)
	api.HandleFunc("/guilds/{guild}/config", h.getConfig).Methods(http.MethodGet)
	api.HandleFunc("/guilds/{guild}/config/lang", h.setLang).Methods(http.MethodPut)
	api.HandleFunc("/guilds/{guild}/config/padding", h.setPadding).Methods(http.MethodPut)
	api.HandleFunc("/guilds/{guild}/session", h.leave).Methods(http.MethodDelete)
	api.HandleFunc("/languages", h.languages).Methods(http.MethodGet)

	// Swagger UI for the generated OpenAPI docs.
	r.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	origins := t.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

// Listen starts the HTTP server and serves requests from svc.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Handler(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

type handlers struct {
	svc transport.Service
}

// say handles POST /v1/guilds/{guild}/say.
//
// @Summary     Speak text in a voice channel
// @Description Synthesizes the text in the guild's language (or a leading language code such as "fr ..."),
// @Description pads it with silence and plays it immediately, interrupting and later restoring any music.
// @Tags        announce
// @Accept      json
// @Produce     json
// @Param       guild    path      string              true  "Guild ID"
// @Param       request  body      message.SayRequest  true  "Say request"
// @Success     200  {object}  message.SayResult
// @Failure     400  {object}  message.ErrorResponse  "Empty text, not in voice, or unsupported language"
// @Failure     502  {object}  message.ErrorResponse  "Speech synthesis failed"
// @Failure     503  {object}  message.ErrorResponse  "Player unavailable"
// @Router      /v1/guilds/{guild}/say [post]
func (h *handlers) say(w http.ResponseWriter, r *http.Request) {
	var req message.SayRequest
	if !decode(w, r, &req) {
		return
	}
	req.GuildID = mux.Vars(r)["guild"]
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Timestamp = time.Now()

	res, err := h.svc.Say(r.Context(), &req)
	respond(w, res, err)
}

// getConfig handles GET /v1/guilds/{guild}/config.
//
// @Summary  Show a guild's announcement settings
// @Tags     config
// @Produce  json
// @Param    guild  path  string  true  "Guild ID"
// @Success  200  {object}  message.GuildConfig
// @Router   /v1/guilds/{guild}/config [get]
func (h *handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetConfig(r.Context(), mux.Vars(r)["guild"])
	respond(w, res, err)
}

// setLang handles PUT /v1/guilds/{guild}/config/lang.
//
// @Summary  Change a guild's default language
// @Tags     config
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    guild    path  string                  true  "Guild ID"
// @Param    request  body  message.SetLangRequest  true  "New language"
// @Success  200  {object}  message.GuildConfig
// @Failure  400  {object}  message.ErrorResponse  "Unsupported language"
// @Failure  403  {object}  message.ErrorResponse  "Missing or wrong admin token"
// @Router   /v1/guilds/{guild}/config/lang [put]
func (h *handlers) setLang(w http.ResponseWriter, r *http.Request) {
	var req message.SetLangRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.SetLang(r.Context(), bearer(r), mux.Vars(r)["guild"], req.Lang)
	respond(w, res, err)
}

// setPadding handles PUT /v1/guilds/{guild}/config/padding.
//
// @Summary  Change the silence around announcements
// @Tags     config
// @Accept   json
// @Produce  json
// @Security BearerAuth
// @Param    guild    path  string                     true  "Guild ID"
// @Param    request  body  message.SetPaddingRequest  true  "Padding in milliseconds"
// @Success  200  {object}  message.GuildConfig
// @Failure  400  {object}  message.ErrorResponse  "Padding outside 0 to 10000 ms"
// @Failure  403  {object}  message.ErrorResponse  "Missing or wrong admin token"
// @Router   /v1/guilds/{guild}/config/padding [put]
func (h *handlers) setPadding(w http.ResponseWriter, r *http.Request) {
	var req message.SetPaddingRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.SetPadding(r.Context(), bearer(r), mux.Vars(r)["guild"], req.PaddingMS)
	respond(w, res, err)
}

// leave handles DELETE /v1/guilds/{guild}/session.
//
// @Summary  Leave the guild's voice channel
// @Tags     announce
// @Produce  json
// @Security BearerAuth
// @Param    guild  path  string  true  "Guild ID"
// @Success  200  {object}  message.LeaveResult
// @Failure  403  {object}  message.ErrorResponse  "Missing or wrong admin token"
// @Failure  404  {object}  message.ErrorResponse  "No active session"
// @Router   /v1/guilds/{guild}/session [delete]
func (h *handlers) leave(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Leave(r.Context(), bearer(r), mux.Vars(r)["guild"])
	respond(w, res, err)
}

// languages handles GET /v1/languages.
//
// @Summary  List supported language codes
// @Tags     announce
// @Produce  json
// @Success  200  {object}  message.LanguagesResult
// @Router   /v1/languages [get]
func (h *handlers) languages(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Languages(r.Context())
	respond(w, res, err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, message.ErrorResponse{Error: "invalid json: " + err.Error()})
		return false
	}
	return true
}

// bearer returns the token of a "Bearer <token>" Authorization header, or ""
// for any other scheme.
func bearer(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return token
}

func respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			slog.Error("request failed", "status", status, "error", err)
		}
		writeJSON(w, status, message.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func statusFor(err error) int {
	switch transport.Classify(err) {
	case transport.KindInvalid:
		return http.StatusBadRequest
	case transport.KindForbidden:
		return http.StatusForbidden
	case transport.KindUpstream:
		return http.StatusBadGateway
	case transport.KindUnavailable:
		return http.StatusServiceUnavailable
	case transport.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
