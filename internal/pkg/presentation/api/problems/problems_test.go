package problems

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diwise/entity-sessions/pkg/mapper/validation"
	"github.com/matryer/is"
)

func TestValidationFailedCarriesFieldErrors(t *testing.T) {
	is := is.New(t)
	w := httptest.NewRecorder()

	errs := validation.Errors{}
	errs.Add("email", "Email is empty.")

	ReportValidationFailed(w, "user failed validation", errs)

	is.Equal(w.Code, http.StatusUnprocessableEntity)
	is.Equal(w.Header().Get("Content-Type"), ProblemReportContentType)

	body := struct {
		Type   string              `json:"type"`
		Status int                 `json:"status"`
		Errors map[string][]string `json:"errors"`
	}{}
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &body))

	is.Equal(body.Type, baseURI+"ValidationFailed")
	is.Equal(body.Status, http.StatusUnprocessableEntity)
	is.Equal(body.Errors["email"], []string{"Email is empty."})
}

func TestProblemsWithoutErrorsOmitTheMember(t *testing.T) {
	is := is.New(t)
	w := httptest.NewRecorder()

	ReportUnauthorized(w, "no active session")

	is.Equal(w.Code, http.StatusUnauthorized)

	body := map[string]any{}
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &body))

	_, ok := body["errors"]
	is.True(!ok)
	is.Equal(body["detail"], "no active session")
}
