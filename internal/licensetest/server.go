// Package licensetest implements an in-memory licensing service speaking
// the same envelope contract as the real one. It backs the client tests and
// runs standalone for development; it carries none of the production
// service's semantics beyond the wire contract.
package licensetest

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/crypto/bcrypt"
)

// License is one seeded license record.
type License struct {
	Key       string
	Active    bool
	ExpiresAt time.Time

	// Device binding state
	HWID             string
	ResetAllowed     bool
	LastHWIDReset    time.Time
	ResetCooldownSec int64
}

// account is a registered username bound to a license
type account struct {
	passwordHash []byte
	licenseKey   string
}

// Server is the mock licensing service.
type Server struct {
	mu       sync.Mutex
	licenses map[string]*License
	accounts map[string]*account
	now      func() time.Time
}

// NewServer creates an empty mock service.
func NewServer() *Server {
	return &Server{
		licenses: make(map[string]*License),
		accounts: make(map[string]*account),
		now:      time.Now,
	}
}

// SetClock pins the server clock for cooldown tests.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Seed installs a license record, replacing any previous one for the key.
func (s *Server) Seed(lic License) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := lic
	s.licenses[lic.Key] = &copied
}

// Handler returns the HTTP surface of the mock service.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/authenticate", s.handleAuthenticate)
	r.Post("/register", s.handleRegister)

	return r
}

// envelope is the response contract shared with the real service
type envelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

type authenticateRequest struct {
	License  string `json:"license"`
	Username string `json:"username"`
	Password string `json:"password"`
	HWID     string `json:"hwid"`
}

func (a *authenticateRequest) Bind(r *http.Request) error { return nil }

type registerRequest struct {
	License  string `json:"license"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *registerRequest) Bind(r *http.Request) error { return nil }

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	req := &authenticateRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, envelope{Success: false, Message: "BAD_REQUEST"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := req.License
	if key == "" {
		acct, ok := s.accounts[req.Username]
		if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(req.Password)) != nil {
			render.JSON(w, r, envelope{Success: false, Message: "INVALID_USERNAME_OR_PASSWORD"})
			return
		}
		key = acct.licenseKey
	}

	lic, ok := s.licenses[key]
	if !ok {
		render.JSON(w, r, envelope{Success: false, Message: "LICENSE_NOT_FOUND"})
		return
	}

	if !lic.Active {
		render.JSON(w, r, envelope{Success: false, Message: "LICENSE_NOT_ACTIVE"})
		return
	}

	if !lic.ExpiresAt.IsZero() && s.now().After(lic.ExpiresAt) {
		render.JSON(w, r, envelope{
			Success: false,
			Message: "LICENSE_EXPIRED",
			Data:    map[string]any{"expires_at": lic.ExpiresAt.UTC().Format(time.RFC3339)},
		})
		return
	}

	// Some other license already bound to this device?
	for _, other := range s.licenses {
		if other.Key != lic.Key && other.HWID != "" && other.HWID == req.HWID {
			render.JSON(w, r, envelope{Success: false, Message: "DEVICE_ALREADY_REGISTERED_WITH_OTHER_LICENSE"})
			return
		}
	}

	if lic.HWID != "" && lic.HWID != req.HWID {
		data := map[string]any{"hwid_reset_allowed": lic.ResetAllowed}
		if lic.ResetAllowed && !lic.LastHWIDReset.IsZero() {
			data["last_hwid_reset_at"] = lic.LastHWIDReset.UTC().Format(time.RFC3339)
			data["hwid_reset_cooldown"] = lic.ResetCooldownSec
		}
		render.JSON(w, r, envelope{Success: false, Message: "HWID_MISMATCH", Data: data})
		return
	}

	// First authentication binds the device
	if lic.HWID == "" {
		lic.HWID = req.HWID
	}

	render.JSON(w, r, envelope{
		Success: true,
		Message: "OK",
		Data:    map[string]any{"key": lic.Key},
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req := &registerRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, envelope{Success: false, Message: "BAD_REQUEST"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.License == "" || req.Username == "" || req.Password == "" {
		render.JSON(w, r, envelope{Success: false, Message: "MISSING_FIELDS"})
		return
	}

	if _, ok := s.licenses[req.License]; !ok {
		render.JSON(w, r, envelope{Success: false, Message: "LICENSE_NOT_FOUND"})
		return
	}

	if _, taken := s.accounts[req.Username]; taken {
		render.JSON(w, r, envelope{Success: false, Message: "USERNAME_TAKEN"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, envelope{Success: false, Message: "INTERNAL_ERROR"})
		return
	}

	s.accounts[req.Username] = &account{passwordHash: hash, licenseKey: req.License}

	render.JSON(w, r, envelope{Success: true, Message: "Registered successfully"})
}
