package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/diwise/entity-sessions/internal/pkg/application/events"
	"github.com/diwise/entity-sessions/internal/pkg/application/sessions"
	"github.com/diwise/entity-sessions/internal/pkg/presentation/api/auth"
	"github.com/diwise/entity-sessions/internal/pkg/presentation/api/problems"
	"github.com/diwise/entity-sessions/pkg/models"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CredentialChecker authenticates submitted login credentials
type CredentialChecker interface {
	Check(ctx context.Context, credentials map[string]string) (*models.User, error)
}

func RegisterHandlers(ctx context.Context, r chi.Router, policies io.Reader, manager *sessions.Manager, checker CredentialChecker, notifier events.Notifier, cookie CookieOptions) error {

	authorizer, err := auth.NewAuthorizer(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authorizer: %w", err)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/api/v0", func(r chi.Router) {
		r.Use(Logger(logging.GetFromContext(ctx)))

		jsonOnly := RequiredContentTypes([]string{"application/json"})

		r.With(jsonOnly).Post("/login", NewLoginHandler(manager, checker, notifier, cookie))
		r.Post("/logout", NewLogoutHandler(manager, notifier, cookie))

		r.Route("/session", func(r chi.Router) {
			r.Use(WithSession(manager, cookie))

			r.With(Authorize(authorizer, "")).Get("/", NewRetrieveSessionHandler())

			r.With(Authorize(authorizer, "key")).Get("/values/{key}", NewRetrieveValueHandler())
			r.With(Authorize(authorizer, "key"), jsonOnly).Put("/values/{key}", NewUpdateValueHandler(cookie))
			r.With(Authorize(authorizer, "key")).Delete("/values/{key}", NewDeleteValueHandler(cookie))
		})
	})

	return nil
}

type sessionContextKey struct {
	name string
}

var sessionCtxKey = &sessionContextKey{"session"}
var subjectCtxKey = &sessionContextKey{"subject"}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequiredContentTypes(validTypes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType := r.Header.Get("Content-Type")
			isValidContentType := true

			if len(contentType) > 0 {
				isValidContentType = false

				for _, t := range validTypes {
					if strings.HasPrefix(contentType, t) {
						isValidContentType = true
						break
					}
				}
			}

			if isValidContentType {
				next.ServeHTTP(w, r)
			} else {
				http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
			}
		})
	}
}

// WithSession resumes the session named by the request cookie and rejects
// requests without an active session
func WithSession(manager *sessions.Manager, cookie CookieOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sessionID := sessionIDFromRequest(r)
			if sessionID == "" {
				problems.ReportUnauthorized(w, "no active session")
				return
			}

			s, err := manager.Start(ctx, sessionID)
			if err != nil {
				logging.GetFromContext(ctx).Error("failed to start session", "err", err.Error())
				problems.ReportInternalError(w, "failed to start session")
				return
			}
			defer s.Close()

			if s.Key() != sessionID {
				clearCookie(w, cookie)
				problems.ReportUnauthorized(w, "no active session")
				return
			}

			subject := subjectOf(s)

			if labeler, found := otelhttp.LabelerFromContext(ctx); found {
				labeler.Add(attribute.Bool("authenticated", subject.Authenticated()))
			}

			ctx = context.WithValue(ctx, sessionCtxKey, s)
			ctx = context.WithValue(ctx, subjectCtxKey, subject)
			ctx = logging.NewContextWithLogger(ctx, logging.GetFromContext(ctx), "session", events.Fingerprint(sessionID))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize asks the policy whether the session may perform the request. A
// non empty param names the url parameter passed to the policy as key.
func Authorize(authorizer auth.Authorizer, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			key := ""
			if param != "" {
				key = chi.URLParam(r, param)
			}

			err := authorizer.CheckAccess(ctx, r, GetSubjectFromContext(ctx), key)
			if err != nil {
				if errors.Is(err, auth.ErrAccessDenied) {
					problems.ReportForbidden(w, "access denied")
					return
				}

				logging.GetFromContext(ctx).Error("authorization failed", "err", err.Error())
				problems.ReportInternalError(w, "authorization failed")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func subjectOf(s *sessions.Session) auth.Subject {
	subject := auth.Subject{}

	if id, ok := s.Get("user.id"); ok {
		subject.UserID, _ = id.(string)
	}
	if name, ok := s.Get("user.username"); ok {
		subject.Username, _ = name.(string)
	}

	return subject
}

// GetSessionFromContext returns the session resumed by WithSession, or nil
func GetSessionFromContext(ctx context.Context) *sessions.Session {
	s, ok := ctx.Value(sessionCtxKey).(*sessions.Session)
	if !ok {
		return nil
	}
	return s
}

func GetSubjectFromContext(ctx context.Context) auth.Subject {
	subject, _ := ctx.Value(subjectCtxKey).(auth.Subject)
	return subject
}
