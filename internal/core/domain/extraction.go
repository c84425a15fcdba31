package domain

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"
)

// MaxArtifactBytes is the upload ceiling for receipts and call sheets.
const MaxArtifactBytes int64 = 10 << 20

const (
	MimePDF  = "application/pdf"
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWEBP = "image/webp"
	MimeHEIC = "image/heic"
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var supportedMimeTypes = map[string]bool{
	MimePDF:  true,
	MimeJPEG: true,
	MimePNG:  true,
	MimeWEBP: true,
	MimeHEIC: true,
	MimeXLSX: true,
}

// NormalizeMimeType lower-cases a content type and drops its parameters.
func NormalizeMimeType(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == "image/jpg" {
		mt = MimeJPEG
	}
	return mt
}

var extensionMimeTypes = map[string]string{
	".pdf":  MimePDF,
	".jpg":  MimeJPEG,
	".jpeg": MimeJPEG,
	".png":  MimePNG,
	".webp": MimeWEBP,
	".heic": MimeHEIC,
	".xlsx": MimeXLSX,
}

// MimeTypeByExtension resolves a content type from a file name or object key.
// It returns "" when the extension is unknown.
func MimeTypeByExtension(name string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/")))
	if mt, ok := extensionMimeTypes[ext]; ok {
		return mt
	}
	return NormalizeMimeType(mime.TypeByExtension(ext))
}

func IsSupportedMimeType(mimeType string) bool {
	return supportedMimeTypes[NormalizeMimeType(mimeType)]
}

// ValidateArtifact checks size and type of an uploaded file before any job
// row is created or quota is consumed.
func ValidateArtifact(size int64, mimeType string) error {
	if size <= 0 {
		return WrapError(ErrInvalidInput, "validate artifact", fmt.Errorf("empty artifact"))
	}
	if size > MaxArtifactBytes {
		return WrapError(ErrTooLarge, "validate artifact", fmt.Errorf("size %d exceeds %d bytes", size, MaxArtifactBytes))
	}
	if !IsSupportedMimeType(mimeType) {
		return WrapError(ErrInvalidInput, "validate artifact", fmt.Errorf("unsupported mime type %q", mimeType))
	}
	return nil
}

type ExpenseType string

const (
	ExpenseFuel    ExpenseType = "fuel"
	ExpenseParking ExpenseType = "parking"
	ExpenseToll    ExpenseType = "toll"
	ExpenseMeal    ExpenseType = "meal"
	ExpenseLodging ExpenseType = "lodging"
	ExpenseOther   ExpenseType = "other"
)

func ParseExpenseType(s string) (ExpenseType, error) {
	et := ExpenseType(strings.ToLower(strings.TrimSpace(s)))
	switch et {
	case ExpenseFuel, ExpenseParking, ExpenseToll, ExpenseMeal, ExpenseLodging, ExpenseOther:
		return et, nil
	}
	return "", WrapError(ErrInvalidInput, "parse expense type", fmt.Errorf("unknown expense type %q", s))
}

type ExpenseExtractRequest struct {
	StoragePath string      `json:"storagePath"`
	ExpenseType ExpenseType `json:"expenseType"`
	TripID      string      `json:"tripId,omitempty"`
	ProjectID   string      `json:"projectId,omitempty"`
}

// ExpenseExtraction is the normalized receipt record. Absent values stay nil.
type ExpenseExtraction struct {
	ExpenseType  ExpenseType `json:"expenseType"`
	Merchant     string      `json:"merchant,omitempty"`
	Date         string      `json:"date,omitempty"`
	Amount       *float64    `json:"amount"`
	Currency     string      `json:"currency"`
	Quantity     *float64    `json:"quantity,omitempty"`
	Unit         string      `json:"unit,omitempty"`
	UnitPrice    *float64    `json:"unitPrice,omitempty"`
	FuelType     string      `json:"fuelType,omitempty"`
	Confidence   *float64    `json:"confidence,omitempty"`
	DocumentID   string      `json:"documentId,omitempty"`
	QuotaLimit   int         `json:"quotaLimit"`
	QuotaRemains int         `json:"quotaRemaining"`
}

// DocumentRef is the lightweight pointer persisted after a sync extraction.
type DocumentRef struct {
	ID          string      `json:"id"`
	UserID      string      `json:"-"`
	StoragePath string      `json:"storagePath"`
	Kind        ExpenseType `json:"kind"`
	TripID      string      `json:"tripId,omitempty"`
	ProjectID   string      `json:"projectId,omitempty"`
	Amount      *float64    `json:"amount,omitempty"`
	Currency    string      `json:"currency,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// CallSheetResult holds the structured fields of a finished job. It is
// written once by the worker and never updated.
type CallSheetResult struct {
	JobID             string    `json:"jobId"`
	ProjectName       string    `json:"projectName,omitempty"`
	ProductionCompany string    `json:"productionCompany,omitempty"`
	Date              string    `json:"date,omitempty"`
	CallTime          string    `json:"callTime,omitempty"`
	Confidence        *float64  `json:"confidence,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ExtractedLocation is one raw location string read from a call sheet.
type ExtractedLocation struct {
	JobID    string `json:"-"`
	Position int    `json:"position"`
	RawText  string `json:"rawText"`
	Label    string `json:"label,omitempty"`
}

type CallSheetExtraction struct {
	Result    CallSheetResult     `json:"result"`
	Locations []ExtractedLocation `json:"locations"`
}
