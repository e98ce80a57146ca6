// Package bankdemo is a small stand-in for the ParaBank demo site. It serves
// the same URLs, form field names and confirmation texts, so journeys can run
// hermetically against it.
package bankdemo

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kuitang/parabank-e2e/internal/errs"
	"github.com/kuitang/parabank-e2e/internal/logutil"
	"github.com/kuitang/parabank-e2e/internal/obs"
	"github.com/kuitang/parabank-e2e/internal/ratelimit"
)

// SessionCookieName matches the servlet container the real site runs on.
const SessionCookieName = "JSESSIONID"

// Texts the harness asserts on.
const (
	RegisteredText    = "Your account was created successfully. You are now logged in."
	InitializedText   = "Database Initialized"
	CleanedText       = "Database Cleaned"
	LoginFailedText   = "The username and password could not be verified."
	LoginMissingText  = "Please enter a username and password."
	PasswordMismatch  = "Passwords did not match."
	UsernameTakenText = "This username already exists."
)

const (
	internalErrorText = "An internal error has occurred and has been logged."

	indexPageName    = "index.html"
	registerPageName = "register.html"
	adminPageName    = "admin.html"
	overviewPageName = "overview.html"
)

// formField is one row of the registration form.
type formField struct {
	Name     string
	Label    string
	Required string // error text when empty; "" means optional
	Secret   bool
	Value    string
	Error    string
}

var registrationFields = []formField{
	{Name: "customer.firstName", Label: "First Name", Required: "First name is required."},
	{Name: "customer.lastName", Label: "Last Name", Required: "Last name is required."},
	{Name: "customer.address.street", Label: "Address", Required: "Address is required."},
	{Name: "customer.address.city", Label: "City", Required: "City is required."},
	{Name: "customer.address.state", Label: "State", Required: "State is required."},
	{Name: "customer.address.zipCode", Label: "Zip Code", Required: "Zip Code is required."},
	{Name: "customer.phoneNumber", Label: "Phone #"},
	{Name: "customer.ssn", Label: "SSN", Required: "Social Security Number is required."},
	{Name: "customer.username", Label: "Username", Required: "Username is required."},
	{Name: "customer.password", Label: "Password", Required: "Password is required.", Secret: true},
	{Name: "repeatedPassword", Label: "Confirm", Required: "Password confirmation is required.", Secret: true},
}

// pageData is what every template receives.
type pageData struct {
	Customer   *Customer
	Error      string
	Message    string
	Registered bool
	Fields     []formField
	Accounts   []Account
	TotalCents int64
}

// ServerOptions configures NewServer.
type ServerOptions struct {
	// Secure marks the session cookie Secure.
	Secure bool
	// Throttle limits form posts per client address; zero uses ratelimit.DefaultConfig.
	Throttle ratelimit.Config
}

// Server serves the bank's pages.
type Server struct {
	store   *Store
	render  *Renderer
	secure  bool
	limiter *ratelimit.RateLimiter
}

// NewServer builds a Server over store. Call Close to stop the throttle.
func NewServer(store *Store, opts ServerOptions) (*Server, error) {
	render, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	throttle := opts.Throttle
	if throttle.RPS <= 0 || throttle.Burst <= 0 {
		throttle = ratelimit.DefaultConfig
	}
	return &Server{
		store:   store,
		render:  render,
		secure:  opts.Secure,
		limiter: ratelimit.NewRateLimiter(throttle),
	}, nil
}

// Close releases the throttle. The store is owned by the caller.
func (s *Server) Close() {
	s.limiter.Stop()
}

// Handler returns the routed handler wrapped in request-id and access-log middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/parabank/index.htm", http.StatusFound)
	})
	mux.HandleFunc("GET /parabank/{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/parabank/index.htm", http.StatusFound)
	})
	mux.HandleFunc("GET /parabank/index.htm", s.handleIndex)
	mux.HandleFunc("POST /parabank/login.htm", s.handleLogin)
	mux.HandleFunc("GET /parabank/logout.htm", s.handleLogout)
	mux.HandleFunc("GET /parabank/register.htm", s.handleRegisterForm)
	mux.HandleFunc("POST /parabank/register.htm", s.handleRegister)
	mux.HandleFunc("GET /parabank/admin.htm", s.handleAdmin)
	mux.HandleFunc("POST /parabank/db.htm", s.handleDB)
	mux.HandleFunc("GET /parabank/overview.htm", s.handleOverview)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	throttled := ratelimit.FormPostMiddleware(s.limiter, ratelimit.ClientAddr)(mux)
	return obs.RequestContextMiddleware(obs.AccessLogMiddleware("bankdemo", throttled))
}

// current returns the logged-in customer, or nil.
func (s *Server) current(r *http.Request) *Customer {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil
	}
	c, err := s.store.SessionCustomer(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			obs.From(r.Context()).With("pkg", "bankdemo").Warn("session_lookup_failed", "error", err)
		}
		return nil
	}
	return &c
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, customerID int64) error {
	id, err := s.store.CreateSession(r.Context(), customerID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/parabank",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) page(w http.ResponseWriter, r *http.Request, code int, name string, data pageData) {
	if err := s.render.Render(w, code, name, data); err != nil {
		s.fail(w, r, errs.Wrap(errs.Internal, "render "+name, err))
	}
}

// fail logs err and renders the generic error page with the status for its code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.HTTPStatus(errs.CodeOf(err))
	obs.From(r.Context()).With("pkg", "bankdemo").Error("request_failed",
		"path", r.URL.Path,
		"code", errs.CodeOf(err),
		"error", err,
	)
	if rerr := s.render.Render(w, code, indexPageName, pageData{Error: internalErrorText}); rerr != nil {
		http.Error(w, internalErrorText, code)
	}
}

func (s *Server) logForm(r *http.Request, event string) {
	obs.From(r.Context()).With("pkg", "bankdemo").Debug(event,
		"path", r.URL.Path,
		"form", logutil.FormatFormForLog(r.PostForm),
	)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, indexPageName, pageData{Customer: s.current(r)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, errs.Wrap(errs.InvalidArgument, "parse login form", err))
		return
	}
	s.logForm(r, "login_submitted")

	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		s.page(w, r, http.StatusOK, indexPageName, pageData{Error: LoginMissingText})
		return
	}

	c, err := s.store.Authenticate(r.Context(), username, password)
	if errors.Is(err, ErrInvalidCredentials) {
		obs.From(r.Context()).With("pkg", "bankdemo").Info("login_rejected", "username", username)
		s.page(w, r, http.StatusOK, indexPageName, pageData{Error: LoginFailedText})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.login(w, r, c.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	obs.From(r.Context()).With("pkg", "bankdemo").Info("login_succeeded", "username", username)
	http.Redirect(w, r, "overview.htm", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := s.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookieName,
		Value:  "",
		Path:   "/parabank",
		MaxAge: -1,
	})
	http.Redirect(w, r, "index.htm", http.StatusFound)
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	fields := make([]formField, len(registrationFields))
	copy(fields, registrationFields)
	s.page(w, r, http.StatusOK, registerPageName, pageData{Customer: s.current(r), Fields: fields})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, errs.Wrap(errs.InvalidArgument, "parse registration form", err))
		return
	}
	s.logForm(r, "registration_submitted")

	fields, valid := validateRegistration(r)
	value := func(name string) string { return strings.TrimSpace(r.PostForm.Get(name)) }

	if valid {
		taken, err := s.store.UsernameExists(r.Context(), value("customer.username"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if taken {
			setFieldError(fields, "customer.username", UsernameTakenText)
			valid = false
		}
	}
	if !valid {
		s.page(w, r, http.StatusOK, registerPageName, pageData{Customer: s.current(r), Fields: fields})
		return
	}

	c, err := s.store.CreateCustomer(r.Context(), NewCustomer{
		Customer: Customer{
			FirstName: value("customer.firstName"),
			LastName:  value("customer.lastName"),
			Street:    value("customer.address.street"),
			City:      value("customer.address.city"),
			State:     value("customer.address.state"),
			ZipCode:   value("customer.address.zipCode"),
			Phone:     value("customer.phoneNumber"),
			SSN:       value("customer.ssn"),
			Username:  value("customer.username"),
		},
		Password: r.PostForm.Get("customer.password"),
	})
	if errors.Is(err, ErrUsernameTaken) {
		setFieldError(fields, "customer.username", UsernameTakenText)
		s.page(w, r, http.StatusOK, registerPageName, pageData{Customer: s.current(r), Fields: fields})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.login(w, r, c.ID); err != nil {
		s.fail(w, r, err)
		return
	}

	obs.From(r.Context()).With("pkg", "bankdemo").Info("customer_registered", "username", c.Username, "customer_id", c.ID)
	s.page(w, r, http.StatusOK, registerPageName, pageData{Customer: &c, Registered: true})
}

// validateRegistration echoes submitted values back and marks missing fields
// and a password mismatch.
func validateRegistration(r *http.Request) ([]formField, bool) {
	fields := make([]formField, len(registrationFields))
	copy(fields, registrationFields)

	valid := true
	for i := range fields {
		f := &fields[i]
		raw := r.PostForm.Get(f.Name)
		if !f.Secret {
			f.Value = strings.TrimSpace(raw)
		}
		if f.Required != "" && strings.TrimSpace(raw) == "" {
			f.Error = f.Required
			valid = false
		}
	}

	password := r.PostForm.Get("customer.password")
	repeated := r.PostForm.Get("repeatedPassword")
	if password != "" && repeated != "" && password != repeated {
		setFieldError(fields, "repeatedPassword", PasswordMismatch)
		valid = false
	}
	return fields, valid
}

func setFieldError(fields []formField, name, msg string) {
	for i := range fields {
		if fields[i].Name == name {
			fields[i].Error = msg
			return
		}
	}
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, http.StatusOK, adminPageName, pageData{Customer: s.current(r)})
}

func (s *Server) handleDB(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, errs.Wrap(errs.InvalidArgument, "parse admin form", err))
		return
	}
	log := obs.From(r.Context()).With("pkg", "bankdemo")

	var message string
	switch action := r.PostForm.Get("action"); action {
	case "INIT":
		if err := s.store.Initialize(r.Context()); err != nil {
			s.fail(w, r, err)
			return
		}
		message = InitializedText
	case "CLEAN":
		if err := s.store.Clean(r.Context()); err != nil {
			s.fail(w, r, err)
			return
		}
		message = CleanedText
	default:
		s.fail(w, r, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown database action %q", action)))
		return
	}
	log.Info("database_reset", "message", message)

	// Every session was dropped with the data.
	s.page(w, r, http.StatusOK, adminPageName, pageData{Message: message})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	c := s.current(r)
	if c == nil {
		http.Redirect(w, r, "index.htm", http.StatusFound)
		return
	}
	accounts, err := s.store.Accounts(r.Context(), c.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var total int64
	for _, a := range accounts {
		total += a.BalanceCents
	}
	s.page(w, r, http.StatusOK, overviewPageName, pageData{Customer: c, Accounts: accounts, TotalCents: total})
}
