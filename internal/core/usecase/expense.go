package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liliganster/tp-companion/internal/core/domain"
	"github.com/liliganster/tp-companion/internal/core/normalize"
	"github.com/liliganster/tp-companion/internal/core/ports"
)

// ExpenseExtractionUseCase extracts one receipt synchronously. Session and
// rate limit are enforced by the transport before Extract is called.
type ExpenseExtractionUseCase struct {
	storage   ports.ObjectStorage
	text      ports.TextLayerExtractor
	ai        ports.DocumentAI
	quota     ports.QuotaService
	documents ports.DocumentRepository
	observer  ports.PipelineObserver
	now       func() time.Time
}

func NewExpenseExtractionUseCase(
	storage ports.ObjectStorage,
	text ports.TextLayerExtractor,
	ai ports.DocumentAI,
	quota ports.QuotaService,
	documents ports.DocumentRepository,
	observer ports.PipelineObserver,
) *ExpenseExtractionUseCase {
	if observer == nil {
		observer = ports.NoopObserver{}
	}
	return &ExpenseExtractionUseCase{
		storage:   storage,
		text:      text,
		ai:        ai,
		quota:     quota,
		documents: documents,
		observer:  observer,
		now:       time.Now,
	}
}

func (uc *ExpenseExtractionUseCase) Extract(ctx context.Context, who domain.Identity, req domain.ExpenseExtractRequest) (*domain.ExpenseExtraction, error) {
	expenseType, key, err := validateExpenseRequest(who, req)
	if err != nil {
		return nil, err
	}

	status, err := requireQuota(ctx, uc.quota, uc.observer, who.ID, domain.OperationExpenseExtract)
	if err != nil {
		return nil, err
	}

	info, err := uc.storage.Stat(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	if err := domain.ValidateArtifact(info.Size, info.MimeType); err != nil {
		return nil, err
	}
	if domain.NormalizeMimeType(info.MimeType) == domain.MimeXLSX {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract expense", errors.New("receipts must be images or PDFs"))
	}

	artifact, err := loadArtifact(ctx, uc.storage, uc.text, key, info.MimeType)
	if err != nil {
		return nil, err
	}

	raw, err := uc.ai.ExtractExpense(ctx, expenseType, artifact)
	if err != nil {
		uc.observer.AICall(domain.OperationExpenseExtract, "error")
		return nil, fmt.Errorf("extract expense: %w", err)
	}
	uc.observer.AICall(domain.OperationExpenseExtract, "ok")
	uc.recordUsage(ctx, who.ID)

	out, err := normalize.Expense(raw, expenseType, normalize.DefaultCurrency)
	if err != nil {
		return nil, fmt.Errorf("normalize expense: %w", err)
	}

	out.QuotaLimit = status.Limit
	out.QuotaRemains = status.Remaining - 1
	if out.QuotaRemains < 0 {
		out.QuotaRemains = 0
	}
	out.DocumentID = uc.persistRef(ctx, who.ID, key, req, out)
	return &out, nil
}

func validateExpenseRequest(who domain.Identity, req domain.ExpenseExtractRequest) (domain.ExpenseType, string, error) {
	key := strings.TrimSpace(req.StoragePath)
	if key == "" {
		return "", "", domain.WrapError(domain.ErrInvalidInput, "extract expense", errors.New("storagePath is required"))
	}
	expenseType, err := domain.ParseExpenseType(string(req.ExpenseType))
	if err != nil {
		return "", "", err
	}
	if !ownsKey(who.ID, key) {
		return "", "", domain.WrapError(domain.ErrNotFound, "extract expense", errors.New("artifact not found"))
	}
	return expenseType, key, nil
}

// recordUsage runs right after the paid call succeeded. A failure here is
// logged; the user already has their result.
func (uc *ExpenseExtractionUseCase) recordUsage(ctx context.Context, userID string) {
	if err := uc.quota.Record(ctx, userID, domain.OperationExpenseExtract); err != nil {
		slog.Error("quota_record_failed", "user_id", userID, "operation", domain.OperationExpenseExtract, "error", err)
	}
}

func (uc *ExpenseExtractionUseCase) persistRef(ctx context.Context, userID, key string, req domain.ExpenseExtractRequest, out domain.ExpenseExtraction) string {
	if uc.documents == nil {
		return ""
	}
	ref := &domain.DocumentRef{
		ID:          uuid.NewString(),
		UserID:      userID,
		StoragePath: key,
		Kind:        out.ExpenseType,
		TripID:      strings.TrimSpace(req.TripID),
		ProjectID:   strings.TrimSpace(req.ProjectID),
		Amount:      out.Amount,
		Currency:    out.Currency,
		CreatedAt:   uc.now().UTC(),
	}
	if err := uc.documents.CreateRef(ctx, ref); err != nil {
		slog.Warn("document_ref_failed", "user_id", userID, "error", err)
		return ""
	}
	return ref.ID
}
