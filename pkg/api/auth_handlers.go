package api

import (
	"net/http"
	"strings"

	"github.com/inkwell-io/inkwell/pkg/auth"
	"github.com/inkwell-io/inkwell/pkg/httputil"
	"github.com/inkwell-io/inkwell/pkg/middleware"
)

// maxSignupFormSize bounds multipart signup bodies (profile image included).
const maxSignupFormSize = 10 << 20

// signup handles POST /auth/signup
//
// The body is either JSON or a multipart form; the multipart variant may
// carry an optional profileImage file which is stored before the account
// is created.
func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxSignupFormSize); err != nil {
			httputil.WriteBadRequest(w, "invalid multipart form")
			return
		}
		req.Username = r.FormValue("username")
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")

		if file, header, err := r.FormFile("profileImage"); err == nil {
			defer file.Close()
			if s.images == nil {
				httputil.WriteBadRequest(w, "profile image uploads are not enabled")
				return
			}
			url, err := s.images.Put(r.Context(), header.Filename, file)
			if err != nil {
				httputil.WriteBadRequest(w, err.Error())
				return
			}
			req.ProfileImageURL = url
		}
	} else {
		var body struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !httputil.ParseJSONOrError(w, r, &body) {
			return
		}
		req.Username = body.Username
		req.Email = body.Email
		req.Password = body.Password
	}

	session, err := s.service.Signup(r.Context(), req)
	if err != nil {
		s.countSignup("failure")
		writeAuthError(w, err)
		return
	}

	s.countSignup("success")
	httputil.WriteCreated(w, session)
}

// login handles POST /auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") ||
		!httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	session, err := s.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.countLogin("failure")
		writeAuthError(w, err)
		return
	}

	s.countLogin("success")
	httputil.WriteSuccess(w, session)
}

// logout handles POST /auth/logout
//
// Bearer tokens are stateless, so logout is a client-side operation; the
// endpoint exists so clients have a uniform place to end a session.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccessMessage(w, "logged out", nil)
}

// status handles GET /auth/status
//
// The route runs behind optional authentication: with a valid bearer
// token it reports the account, without one it reports anonymous.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		httputil.WriteSuccess(w, map[string]interface{}{"authenticated": false})
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"authenticated": true,
		"user":          user,
	})
}

// getUser handles GET /auth/users/{userID}
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathStringOrError(w, r, "userID")
	if !ok {
		return
	}

	user, err := s.service.GetUser(r.Context(), userID)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	httputil.WriteSuccess(w, user)
}

// forgotPassword handles POST /auth/forgot-password
//
// The response is identical whether or not the email names an account.
func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}

	if err := s.service.ForgotPassword(r.Context(), req.Email); err != nil {
		writeAuthError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.ResetTicketsIssuedTotal.Inc()
	}
	httputil.WriteSuccessMessage(w, "if that email exists, a reset link has been sent", nil)
}

// resetPassword handles POST /auth/reset-password/{token}
func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	secret, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	session, err := s.service.ResetPassword(r.Context(), secret, req.Password)
	if err != nil {
		s.countResetConsumption("failure")
		writeAuthError(w, err)
		return
	}

	s.countResetConsumption("success")
	httputil.WriteSuccess(w, session)
}

func (s *Server) countSignup(outcome string) {
	if s.metrics != nil {
		s.metrics.SignupsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) countResetConsumption(outcome string) {
	if s.metrics != nil {
		s.metrics.ResetConsumptionsTotal.WithLabelValues(outcome).Inc()
	}
}
