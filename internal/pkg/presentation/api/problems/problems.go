package problems

import (
	"encoding/json"
	"net/http"

	"github.com/diwise/entity-sessions/pkg/mapper/validation"
)

// ProblemDetails stores details about a certain problem according to RFC7807
// See https://tools.ietf.org/html/rfc7807
type ProblemDetails interface {
	ContentType() string
	Type() string
	Title() string
	Detail() string
	ResponseCode() int
	MarshalJSON() ([]byte, error)
	WriteResponse(w http.ResponseWriter)
}

const (
	// ProblemReportContentType as required by https://tools.ietf.org/html/rfc7807
	ProblemReportContentType string = "application/problem+json"

	baseURI string = "https://diwise.io/entity-sessions/problems/"
)

type ProblemDetailsImpl struct {
	typ    string
	title  string
	detail string
	code   int
	errors validation.Errors
}

func newProblem(name, title, detail string, code int) ProblemDetailsImpl {
	return ProblemDetailsImpl{
		typ:    baseURI + name,
		title:  title,
		detail: detail,
		code:   code,
	}
}

func NewBadRequest(detail string) *ProblemDetailsImpl {
	p := newProblem("BadRequestData", "Bad Request Data", detail, http.StatusBadRequest)
	return &p
}

func ReportBadRequest(w http.ResponseWriter, detail string) {
	NewBadRequest(detail).WriteResponse(w)
}

func NewUnauthorized(detail string) *ProblemDetailsImpl {
	p := newProblem("Unauthorized", "Unauthorized", detail, http.StatusUnauthorized)
	return &p
}

func ReportUnauthorized(w http.ResponseWriter, detail string) {
	NewUnauthorized(detail).WriteResponse(w)
}

func NewForbidden(detail string) *ProblemDetailsImpl {
	p := newProblem("Forbidden", "Forbidden", detail, http.StatusForbidden)
	return &p
}

func ReportForbidden(w http.ResponseWriter, detail string) {
	NewForbidden(detail).WriteResponse(w)
}

func NewNotFound(detail string) *ProblemDetailsImpl {
	p := newProblem("ResourceNotFound", "Not Found", detail, http.StatusNotFound)
	return &p
}

func ReportNotFound(w http.ResponseWriter, detail string) {
	NewNotFound(detail).WriteResponse(w)
}

// NewValidationFailed reports the messages of every field that failed validation
func NewValidationFailed(detail string, errs validation.Errors) *ProblemDetailsImpl {
	p := newProblem("ValidationFailed", "Validation Failed", detail, http.StatusUnprocessableEntity)
	p.errors = errs
	return &p
}

func ReportValidationFailed(w http.ResponseWriter, detail string, errs validation.Errors) {
	NewValidationFailed(detail, errs).WriteResponse(w)
}

func NewInternalError(detail string) *ProblemDetailsImpl {
	p := newProblem("InternalError", "Internal Error", detail, http.StatusInternalServerError)
	return &p
}

func ReportInternalError(w http.ResponseWriter, detail string) {
	NewInternalError(detail).WriteResponse(w)
}

func (p *ProblemDetailsImpl) ContentType() string {
	return ProblemReportContentType
}

func (p *ProblemDetailsImpl) Type() string   { return p.typ }
func (p *ProblemDetailsImpl) Title() string  { return p.title }
func (p *ProblemDetailsImpl) Detail() string { return p.detail }

// MarshalJSON is called when a ProblemDetailsImpl instance should be serialized to JSON
func (p *ProblemDetailsImpl) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string            `json:"type"`
		Title  string            `json:"title"`
		Status int               `json:"status"`
		Detail string            `json:"detail"`
		Errors validation.Errors `json:"errors,omitempty"`
	}{
		Type:   p.typ,
		Title:  p.title,
		Status: p.ResponseCode(),
		Detail: p.detail,
		Errors: p.errors,
	})
}

// ResponseCode returns the HTTP response code to be used when returning a specific problem
func (p *ProblemDetailsImpl) ResponseCode() int {
	if p.code != 0 {
		return p.code
	}

	return http.StatusBadRequest
}

// WriteResponse writes the contents of this instance to a http.ResponseWriter
func (p *ProblemDetailsImpl) WriteResponse(w http.ResponseWriter) {
	w.Header().Add("Content-Type", p.ContentType())
	w.Header().Add("Content-Language", "en")
	w.WriteHeader(p.ResponseCode())

	pdbytes, err := json.MarshalIndent(p, "", "  ")
	if err == nil {
		w.Write(pdbytes)
	}
}
