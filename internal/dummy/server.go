package dummy

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lessonload/internal/catalog"
)

const SessionCookie = "session"

type ServerConfig struct {
	Port int
	// Latency is added to every content call, plus up to Jitter at random.
	Latency time.Duration
	Jitter  time.Duration
	// ErrorRate is the fraction of content calls answered with 500.
	ErrorRate float64
	// RejectLogins makes every login fail with 401.
	RejectLogins bool
}

// Server mimics the learning platform API the harness targets.
type Server struct {
	cfg ServerConfig

	mu       sync.Mutex
	users    map[string]string // username -> password
	sessions map[string]string // session id -> username
	rng      *rand.Rand

	requests      int64
	untagged      int64
	unauthorized  int64
	registrations int64
	logins        int64
}

func NewServer(cfg ServerConfig) *Server {
	return &Server{
		cfg:      cfg,
		users:    make(map[string]string),
		sessions: make(map[string]string),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Handler routes the platform API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/register", s.register)
	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	content := map[string]any{
		"GET /api/lessons":                  map[string]any{"lessons": []string{"Greetings", "Numbers", "Travel"}},
		"GET /api/lessons/{id}":             map[string]any{"title": "Lesson", "sections": 4},
		"GET /api/vocabulary":               map[string]any{"words": []string{"hello", "thank you", "goodbye"}},
		"GET /api/stories":                  map[string]any{"stories": []string{"At the market", "Lost luggage"}},
		"GET /api/stories/{id}":             map[string]any{"title": "Story", "paragraphs": 6},
		"GET /api/scenarios":                map[string]any{"scenarios": []string{"Restaurant", "Hotel check-in"}},
		"GET /api/scenarios/{id}":           map[string]any{"title": "Scenario", "turns": 8},
		"POST /api/scenarios/{id}/practice": map[string]any{"reply": "Sure, there is one around the corner."},
		"GET /api/quizzes":                  map[string]any{"quizzes": []int{1, 7, 12}},
		"POST /api/quizzes/{id}/submit":     map[string]any{"score": 80},
		"GET /api/progress":                 map[string]any{"completed_lessons": 3, "streak": 5},
	}
	for pattern, payload := range content {
		mux.HandleFunc(pattern, s.content(payload))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.requests, 1)
		if r.Header.Get("X-Session-ID") == "" {
			atomic.AddInt64(&s.untagged, 1)
		}
		mux.ServeHTTP(w, r)
	})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Level    string `json:"level,omitempty"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&s.registrations, 1)
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Username == "" || c.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}
	if c.Level != "" {
		if _, err := catalog.ParseCategory(c.Level); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}

	s.mu.Lock()
	_, exists := s.users[c.Username]
	if !exists {
		s.users[c.Username] = c.Password
	}
	s.mu.Unlock()

	if exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "user already exists"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": c.Username})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&s.logins, 1)
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
		return
	}
	if s.cfg.RejectLogins {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	s.mu.Lock()
	pw, ok := s.users[c.Username]
	var sid string
	if ok && pw == c.Password {
		sid = uuid.NewString()
		s.sessions[sid] = c.Username
	}
	s.mu.Unlock()

	if sid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: sid, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"username": c.Username})
}

func (s *Server) content(payload any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			atomic.AddInt64(&s.unauthorized, 1)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "login required"})
			return
		}

		s.mu.Lock()
		delay := s.cfg.Latency
		if s.cfg.Jitter > 0 {
			delay += time.Duration(s.rng.Int63n(int64(s.cfg.Jitter)))
		}
		fail := s.cfg.ErrorRate > 0 && s.rng.Float64() < s.cfg.ErrorRate
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if fail {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[c.Value]
	return ok
}

// Counters reports what the server has seen so far.
type Counters struct {
	Requests      int64
	Untagged      int64
	Unauthorized  int64
	Registrations int64
	Logins        int64
}

func (s *Server) Counters() Counters {
	return Counters{
		Requests:      atomic.LoadInt64(&s.requests),
		Untagged:      atomic.LoadInt64(&s.untagged),
		Unauthorized:  atomic.LoadInt64(&s.unauthorized),
		Registrations: atomic.LoadInt64(&s.registrations),
		Logins:        atomic.LoadInt64(&s.logins),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Start serves the mock platform on cfg.Port in the background.
func Start(cfg ServerConfig) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("👻 Dummy platform running on http://localhost%s\n", addr)
	fmt.Println("   Endpoints: /api/register, /api/login, /api/health, /api/lessons, /api/stories, /api/scenarios, /api/quizzes, /api/progress")

	server := &http.Server{
		Addr:    addr,
		Handler: NewServer(cfg).Handler(),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("Dummy server failed")
		}
	}()
	return server
}
