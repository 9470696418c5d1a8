package scouting_client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mcdev12/scoutsync/go/clients"
	"github.com/mcdev12/scoutsync/go/internal/models"
	"github.com/rs/zerolog/log"
)

// LoginResult is the outcome of a passcode exchange.
type LoginResult struct {
	Success     bool               `json:"success"`
	Name        string             `json:"name,omitempty"`
	Error       string             `json:"error,omitempty"`
	Permissions models.Permissions `json:"permissions"`
}

// VerifyResult is the outcome of re-validating the stored identity.
type VerifyResult struct {
	Success     bool               `json:"success"`
	Name        string             `json:"name,omitempty"`
	Permissions models.Permissions `json:"permissions"`
}

type loginRequest struct {
	Passcode string `json:"passcode"`
}

type loginResponse struct {
	UUID        string             `json:"uuid"`
	Name        string             `json:"name"`
	Expires     string             `json:"expires,omitempty"`
	Permissions models.Permissions `json:"permissions"`
}

type verifyResponse struct {
	Name        string             `json:"name"`
	Permissions models.Permissions `json:"permissions"`
}

// Login exchanges a passcode for a session identity. Any stored identity is
// cleared first so a failed re-login cannot keep acting as the previous scouter.
func (c *ScoutingClient) Login(ctx context.Context, passcode string) LoginResult {
	if c.identity != nil {
		if err := c.identity.Clear(); err != nil {
			log.Warn().Err(err).Msg("failed to clear stored identity before login")
		}
	}

	var resp loginResponse
	err := c.SendJSON(ctx, http.MethodPost, LoginEndpoint, loginRequest{Passcode: passcode}, &resp)
	if err != nil {
		var statusErr *clients.StatusError
		if errors.As(err, &statusErr) {
			log.Warn().Int("status", statusErr.StatusCode).Msg("login rejected")
			return LoginResult{Error: fmt.Sprintf("Login failed: %s", statusText(statusErr))}
		}
		log.Error().Err(err).Msg("login failed")
		return LoginResult{Error: "Network error"}
	}

	if resp.UUID == "" {
		log.Warn().Msg("login response carried no session token")
		return LoginResult{Error: "Login failed: malformed response"}
	}

	if c.identity != nil {
		if err := c.identity.Save(resp.UUID, resp.Name); err != nil {
			log.Error().Err(err).Msg("failed to persist identity")
			return LoginResult{Error: "Login failed: could not store session"}
		}
	}

	log.Info().Str("scouter", resp.Name).Msg("logged in")
	return LoginResult{
		Success:     true,
		Name:        resp.Name,
		Permissions: resp.Permissions,
	}
}

// Verify re-validates the stored identity and returns the current permission flags.
func (c *ScoutingClient) Verify(ctx context.Context) VerifyResult {
	var resp verifyResponse
	if err := c.GetJSON(ctx, VerifyEndpoint, &resp); err != nil {
		log.Debug().Err(err).Msg("verify failed")
		return VerifyResult{}
	}
	return VerifyResult{
		Success:     true,
		Name:        resp.Name,
		Permissions: resp.Permissions,
	}
}

func statusText(e *clients.StatusError) string {
	if text := http.StatusText(e.StatusCode); text != "" {
		return text
	}
	return e.Status
}
