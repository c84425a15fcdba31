package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

const (
	limitFuelFactor      = "fuel_factor"
	limitGridIntensity   = "grid_intensity"
	limitExpenseExtract  = "expense_extract"
	limitCallSheetCreate = "callsheet_create"

	maxJSONBodyBytes = 64 << 10
	// multipartOverhead leaves room for boundaries and part headers around
	// a file at the artifact limit.
	multipartOverhead = 1 << 20
	multipartMemory   = 4 << 20
)

func (rt *Router) identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	who, ok := domain.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, errMissingIdentity)
		return domain.Identity{}, false
	}
	return who, true
}

func jobIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var jobID string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &jobID, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "bind job id", err))
		return "", false
	}
	return jobID, true
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, domain.WrapError(domain.ErrTooLarge, "decode body", err))
			return false
		}
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode body", errors.New("invalid json")))
		return false
	}
	return true
}

func (rt *Router) getFuelFactor(w http.ResponseWriter, r *http.Request) {
	var fuelType string
	if err := runtime.BindQueryParameter("form", true, true, "fuelType", r.URL.Query(), &fuelType); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "bind fuelType", err))
		return
	}
	factor, err := rt.factors.FuelFactor(r.Context(), fuelType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, factor)
}

func (rt *Router) getGridIntensity(w http.ResponseWriter, r *http.Request) {
	var country string
	if err := runtime.BindQueryParameter("form", true, true, "country", r.URL.Query(), &country); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "bind country", err))
		return
	}
	intensity, err := rt.factors.GridIntensity(r.Context(), country)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, intensity)
}

func (rt *Router) extractExpense(w http.ResponseWriter, r *http.Request) {
	who, ok := rt.identity(w, r)
	if !ok {
		return
	}
	var req domain.ExpenseExtractRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	out, err := rt.expenses.Extract(r.Context(), who, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) createCallSheetJob(w http.ResponseWriter, r *http.Request) {
	who, ok := rt.identity(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxArtifactBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, domain.WrapError(domain.ErrTooLarge, "read upload", err))
			return
		}
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("multipart field 'file' is required")))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	job, err := rt.callSheets.Create(r.Context(), who, ports.Upload{
		Filename: header.Filename,
		MimeType: uploadMimeType(header.Header.Get("Content-Type"), header.Filename),
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/jobs/%s", job.ID))
	writeJSON(w, http.StatusAccepted, job)
}

// uploadMimeType trusts the part header unless it is generic.
func uploadMimeType(header, filename string) string {
	mt := domain.NormalizeMimeType(header)
	if mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if byExt := domain.MimeTypeByExtension(filename); byExt != "" {
		return byExt
	}
	return mt
}

type jobStatusResponse struct {
	ID        string           `json:"id"`
	Status    domain.JobStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	Filename  string           `json:"filename,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	who, ok := rt.identity(w, r)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	job, err := rt.jobs.GetJob(r.Context(), who.ID, jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Error:     job.Error,
		Filename:  job.Filename,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	})
}

func (rt *Router) getJobResult(w http.ResponseWriter, r *http.Request) {
	who, ok := rt.identity(w, r)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	result, err := rt.jobs.GetResult(r.Context(), who.ID, jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getJobReview(w http.ResponseWriter, r *http.Request) {
	who, ok := rt.identity(w, r)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	review, err := rt.reviews.Prepare(r.Context(), who.ID, jobID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (rt *Router) confirmJobReview(w http.ResponseWriter, r *http.Request) {
	who, ok := rt.identity(w, r)
	if !ok {
		return
	}
	jobID, ok := jobIDParam(w, r)
	if !ok {
		return
	}

	var in domain.ReviewConfirmation
	if !decodeJSONBody(w, r, &in) {
		return
	}
	trip, err := rt.reviews.Confirm(r.Context(), who.ID, jobID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

func (rt *Router) getQuota(w http.ResponseWriter, r *http.Request) {
	who, ok := rt.identity(w, r)
	if !ok {
		return
	}
	status, err := rt.quota.Check(r.Context(), who.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
