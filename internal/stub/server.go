package stub

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cuitingzhao/companion/internal/onboarding"
)

// APIPrefix is where the stub mounts the onboarding API.
const APIPrefix = "/api"

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorBody struct {
	Error apiError `json:"error"`
}

// Server answers onboarding turns from a Script, keeping one cursor per user.
type Server struct {
	script *Script
	log    *zap.Logger

	mu       sync.Mutex
	cursors  map[int64]int
	received map[int64][]string
}

func NewServer(script *Script, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		script:   script,
		log:      log,
		cursors:  make(map[int64]int),
		received: make(map[int64][]string),
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route(APIPrefix, func(api chi.Router) {
		api.Get("/healthz", s.handleHealth)
		api.Post("/onboarding/messages", s.handleMessage)
		api.Get("/goals/{goal_id}/plan", s.handlePlan)
	})
	return r
}

// Received returns the messages a user has sent so far.
func (s *Server) Received(userID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received[userID]...)
}

// Reset rewinds every user to the first turn.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors = make(map[int64]int)
	s.received = make(map[int64][]string)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req onboarding.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "request body must be JSON")
		return
	}
	if req.UserID <= 0 {
		writeErr(w, http.StatusBadRequest, "invalid_user", "userId is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeErr(w, http.StatusBadRequest, "empty_message", "message is required")
		return
	}

	turn, ok := s.next(req)
	s.log.Debug("stub turn",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Int64("user_id", req.UserID),
		zap.String("message", req.Message),
		zap.Bool("scripted", ok),
	)
	if !ok {
		writeErr(w, http.StatusConflict, "script_exhausted", "no scripted turn left for this user")
		return
	}
	if turn.Status != 0 {
		writeErr(w, turn.Status, "scripted_failure", http.StatusText(turn.Status))
		return
	}
	writeJSON(w, http.StatusOK, turn.response())
}

func (s *Server) next(req onboarding.MessageRequest) (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received[req.UserID] = append(s.received[req.UserID], req.Message)
	turns := s.script.turnsFor(req.UserID)
	i := s.cursors[req.UserID]
	if i >= len(turns) {
		if !s.script.Loop || len(turns) == 0 {
			return Turn{}, false
		}
		return turns[len(turns)-1], true
	}
	s.cursors[req.UserID] = i + 1
	return turns[i], true
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	goalID, err := strconv.ParseInt(chi.URLParam(r, "goal_id"), 10, 64)
	if err != nil || goalID <= 0 {
		writeErr(w, http.StatusBadRequest, "invalid_goal", "goal id must be a positive integer")
		return
	}
	plan, ok := s.script.Plans[goalID]
	if !ok {
		writeErr(w, http.StatusNotFound, "plan_not_found", "no plan for goal "+strconv.FormatInt(goalID, 10))
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErr(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, apiErrorBody{Error: apiError{Code: errCode, Message: message}})
}
