package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/open-policy-agent/opa/rego"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("entity-sessions/api/authz")

var ErrAccessDenied = errors.New("access denied")

// Subject describes the session a request is made from
type Subject struct {
	UserID   string
	Username string
}

func (s Subject) Authenticated() bool {
	return s.UserID != ""
}

type Authorizer interface {
	CheckAccess(ctx context.Context, r *http.Request, subject Subject, key string) error
}

type authorizerImpl struct {
	preparedQuery rego.PreparedEvalQuery
}

// NewAuthorizer compiles a rego module that must define data.sessions.authz.allow
func NewAuthorizer(ctx context.Context, policies io.Reader) (Authorizer, error) {
	module, err := io.ReadAll(policies)
	if err != nil {
		return nil, fmt.Errorf("unable to read authz policies: %s", err.Error())
	}

	impl := &authorizerImpl{}

	impl.preparedQuery, err = rego.New(
		rego.Query("x = data.sessions.authz.allow"),
		rego.Module("sessions.rego", string(module)),
	).PrepareForEval(ctx)

	if err != nil {
		return nil, err
	}

	return impl, nil
}

func (a *authorizerImpl) CheckAccess(ctx context.Context, r *http.Request, subject Subject, key string) error {
	var err error

	ctx, span := tracer.Start(ctx, "check-auth")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	path := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	input := map[string]any{
		"method":        r.Method,
		"path":          path,
		"authenticated": subject.Authenticated(),
		"user":          subject.Username,
		"key":           key,
	}

	results, err := a.preparedQuery.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		err = fmt.Errorf("opa eval failed: %w", err)
		return err
	}

	if len(results) == 0 {
		err = fmt.Errorf("%w: opa query could not be satisfied", ErrAccessDenied)
		return err
	}

	switch allowed := results[0].Bindings["x"].(type) {
	case bool:
		if !allowed {
			err = ErrAccessDenied
			logging.GetFromContext(ctx).Debug("request denied by policy", "method", r.Method, "key", key)
			return err
		}
	default:
		err = errors.New("opa error: unexpected result type")
		return err
	}

	return nil
}
