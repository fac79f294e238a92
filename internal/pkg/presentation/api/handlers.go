package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	formauth "github.com/diwise/entity-sessions/internal/pkg/application/auth"
	"github.com/diwise/entity-sessions/internal/pkg/application/events"
	"github.com/diwise/entity-sessions/internal/pkg/application/sessions"
	"github.com/diwise/entity-sessions/internal/pkg/presentation/api/problems"
	"github.com/diwise/entity-sessions/pkg/mapper"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("entity-sessions/api")

const maxValueSize int64 = 64 * 1024

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// NewLoginHandler authenticates the posted credentials and starts a new
// session for the user. Any session named by the request cookie is destroyed.
func NewLoginHandler(manager *sessions.Manager, checker CredentialChecker, notifier events.Notifier, cookie CookieOptions) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "login")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		logger := logging.GetFromContext(ctx)

		req := loginRequest{}
		err = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxValueSize)).Decode(&req)
		if err != nil {
			problems.ReportBadRequest(w, fmt.Sprintf("unable to decode request payload: %s", err.Error()))
			return
		}

		user, err := checker.Check(ctx, map[string]string{"username": req.Username, "password": req.Password})
		if err != nil {
			if errors.Is(err, formauth.ErrInvalidCredentials) {
				problems.ReportUnauthorized(w, "invalid credentials")
				return
			}
			logger.Error("failed to check credentials", "err", err.Error())
			problems.ReportInternalError(w, "failed to check credentials")
			return
		}

		if previous := sessionIDFromRequest(r); previous != "" {
			old, startErr := manager.Start(ctx, previous)
			if startErr == nil {
				if old.Key() == previous {
					subject := subjectOf(old)
					if destroyErr := old.Destroy(ctx); destroyErr == nil {
						notifier.SessionDestroyed(ctx, previous, subject.UserID)
					}
				}
				old.Close()
			}
		}

		s, err := manager.Start(ctx, "")
		if err != nil {
			logger.Error("failed to start session", "err", err.Error())
			problems.ReportInternalError(w, "failed to start session")
			return
		}
		defer s.Close()

		s.Set("user.id", user.ID())
		s.Set("user.username", user.Username())

		err = s.Save(ctx)
		if err != nil {
			reportSaveError(w, err)
			return
		}

		setCookie(w, s.Key(), cookie)
		notifier.SessionStarted(ctx, s.Key(), user.ID())

		logger.Info("user logged in", "user", user.Username(), "session", events.Fingerprint(s.Key()))

		writeJSON(w, http.StatusOK, loginResponse{ID: user.ID(), Username: user.Username()})
	})
}

func NewLogoutHandler(manager *sessions.Manager, notifier events.Notifier, cookie CookieOptions) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "logout")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		sessionID := sessionIDFromRequest(r)

		if sessionID != "" {
			var s *sessions.Session

			s, err = manager.Start(ctx, sessionID)
			if err != nil {
				logging.GetFromContext(ctx).Error("failed to start session", "err", err.Error())
				problems.ReportInternalError(w, "failed to start session")
				return
			}
			defer s.Close()

			if s.Key() == sessionID {
				subject := subjectOf(s)

				err = s.Destroy(ctx)
				if err != nil {
					logging.GetFromContext(ctx).Error("failed to destroy session", "err", err.Error())
					problems.ReportInternalError(w, "failed to destroy session")
					return
				}

				notifier.SessionDestroyed(ctx, sessionID, subject.UserID)
			}
		}

		clearCookie(w, cookie)
		w.WriteHeader(http.StatusNoContent)
	})
}

func NewRetrieveSessionHandler() http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := GetSessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, s.Values())
	})
}

func NewRetrieveValueHandler() http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		s := GetSessionFromContext(r.Context())

		value, ok := s.Get(key)
		if !ok {
			problems.ReportNotFound(w, fmt.Sprintf("no session value stored under %s", key))
			return
		}

		writeJSON(w, http.StatusOK, value)
	})
}

func NewUpdateValueHandler(cookie CookieOptions) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "update-value")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		key := chi.URLParam(r, "key")
		s := GetSessionFromContext(ctx)

		var value any
		err = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxValueSize)).Decode(&value)
		if err != nil {
			problems.ReportBadRequest(w, fmt.Sprintf("unable to decode request payload: %s", err.Error()))
			return
		}

		s.Set(key, value)

		err = s.Save(ctx)
		if err != nil {
			reportSaveError(w, err)
			return
		}

		setCookie(w, s.Key(), cookie)
		w.WriteHeader(http.StatusNoContent)
	})
}

func NewDeleteValueHandler(cookie CookieOptions) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "delete-value")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		key := chi.URLParam(r, "key")
		s := GetSessionFromContext(ctx)

		if !s.Delete(key) {
			problems.ReportNotFound(w, fmt.Sprintf("no session value stored under %s", key))
			return
		}

		err = s.Save(ctx)
		if err != nil {
			reportSaveError(w, err)
			return
		}

		setCookie(w, s.Key(), cookie)
		w.WriteHeader(http.StatusNoContent)
	})
}

func reportSaveError(w http.ResponseWriter, err error) {
	var vf *mapper.ValidationFailed
	if errors.As(err, &vf) {
		problems.ReportValidationFailed(w, vf.Error(), vf.Errors)
		return
	}

	problems.ReportInternalError(w, "failed to save session")
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		problems.ReportInternalError(w, "failed to marshal response")
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
