// Package server exposes the WhatsApp webhook and a few operational
// endpoints over HTTP.
package server

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amirbrooks/taskping/internal/command"
)

// Server handles inbound WhatsApp messages. Routes:
//
//	POST /whatsapp/webhook  carrier form webhook, replies with TwiML XML
//	POST /process           manual command processing, bearer-token guarded
//	GET  /health            liveness probe
type Server struct {
	addr      string
	authToken string
	commands  *command.Handler
	log       *zap.Logger
	mux       *http.ServeMux
}

func New(addr, authToken string, commands *command.Handler, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		addr:      addr,
		authToken: authToken,
		commands:  commands,
		log:       log.Named("server"),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/whatsapp/webhook", s.handleWebhook)
	s.mux.HandleFunc("/process", s.handleProcess)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.withRequestID(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler returns the routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("req", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// twimlResponse is the carrier's XML reply envelope.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Please use POST method for this endpoint.", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.log.Warn("webhook form parse failed", zap.Error(err))
		s.writeTwiML(w, "Sorry, something went wrong. Please try again.")
		return
	}
	body := strings.TrimSpace(r.PostFormValue("Body"))
	from := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")
	if body == "" {
		s.writeTwiML(w, "Please send a valid command. Send 'help' for assistance.")
		return
	}
	s.writeTwiML(w, s.commands.Process(r.Context(), body, from))
}

func (s *Server) writeTwiML(w http.ResponseWriter, message string) {
	resp := twimlResponse{Message: message}
	b, err := xml.Marshal(resp)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(b)
}

type processRequest struct {
	Body string `json:"body"`
	From string `json:"from_number"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "invalid authentication token", http.StatusUnauthorized)
		return
	}
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	reply := s.commands.Process(r.Context(), req.Body, req.From)
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return false
	}
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	return header[len(prefix):] == s.authToken
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
