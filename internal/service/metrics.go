package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/giecabral/team-flow-management/pkg/errors"
)

// Auth event names.
const (
	authEventRegister       = "register"
	authEventLogin          = "login"
	authEventRefresh        = "refresh"
	authEventLogout         = "logout"
	authEventChangePassword = "change_password"
)

var authEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_events_total",
		Help: "Authentication events by outcome.",
	},
	[]string{"event", "outcome"},
)

func recordAuthEvent(event string, err error) {
	authEventsTotal.WithLabelValues(event, authOutcome(err)).Inc()
}

func authOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, apperrors.ErrEmailExists):
		return "email_exists"
	case errors.Is(err, apperrors.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, apperrors.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
