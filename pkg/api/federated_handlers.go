package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-io/inkwell/pkg/httputil"
)

const oauthStateCookie = "oauth_state"

// googleLogin handles GET /auth/google
//
// A random state nonce is pinned in a short-lived cookie and carried
// through the provider round trip to tie the callback to this browser.
func (s *Server) googleLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.google.InitiateLogin(w, r, state)
}

// googleCallback handles GET /auth/google/callback
func (s *Server) googleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		httputil.WriteBadRequest(w, "state mismatch")
		return
	}

	// The nonce is single-use; clear it before anything else.
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
	})

	profile, err := s.google.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.countFederatedLogin("failure")
		s.logger.WithError(err).Warn("federated exchange failed")
		httputil.WriteUnauthorized(w, "federated sign-in failed")
		return
	}

	session, err := s.service.LinkFederated(r.Context(), *profile)
	if err != nil {
		s.countFederatedLogin("failure")
		writeAuthError(w, err)
		return
	}

	s.countFederatedLogin("success")
	httputil.WriteSuccess(w, session)
}

func (s *Server) countFederatedLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.FederatedLoginsTotal.WithLabelValues(outcome).Inc()
	}
}
