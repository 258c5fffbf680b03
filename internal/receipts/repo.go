package receipts

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/angelmondragon/fruteria-pos/pkg/db"
	"github.com/angelmondragon/fruteria-pos/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/angelmondragon/fruteria-pos/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Page is one newest-first slice of the journal.
type Page struct {
	Receipts   []Receipt `json:"receipts"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// Repository persists receipts with gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a receipt repository bound to the provided gorm DB.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// Create stores a receipt. A second receipt for the same sale is a conflict.
func (r *Repository) Create(ctx context.Context, receipt Receipt) (Receipt, error) {
	if strings.TrimSpace(receipt.SaleID) == "" {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeValidation, "sale id is required")
	}
	if receipt.ID == uuid.Nil {
		receipt.ID = uuid.New()
	}
	row, err := toModel(receipt)
	if err != nil {
		return Receipt{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode receipt lines")
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return Receipt{}, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "receipt already recorded").
				WithDetails(map[string]any{"sale_id": receipt.SaleID})
		}
		return Receipt{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store receipt")
	}
	return receipt, nil
}

// FindBySaleID returns the receipt for a backend sale id.
func (r *Repository) FindBySaleID(ctx context.Context, saleID string) (Receipt, error) {
	var row models.Receipt
	err := r.db.WithContext(ctx).Where("sale_id = ?", saleID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found").
			WithDetails(map[string]any{"sale_id": saleID})
	}
	if err != nil {
		return Receipt{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load receipt")
	}
	return fromModel(row)
}

// ListRecent returns receipts newest first using cursor pagination.
func (r *Repository) ListRecent(ctx context.Context, params pagination.Params) (Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Receipt{})
	if cursor != nil {
		at := cursor.At.UTC()
		query = query.Where("(committed_at < ?) OR (committed_at = ? AND id < ?)", at, at, cursor.ID.String())
	}
	query = query.Order("committed_at DESC").Order("id DESC").Limit(pagination.LimitWithBuffer(limit))

	var rows []models.Receipt
	if err := query.Find(&rows).Error; err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list receipts")
	}

	page := Page{Receipts: make([]Receipt, 0, len(rows))}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{At: last.CommittedAt, ID: last.ID})
	}
	for _, row := range rows {
		receipt, err := fromModel(row)
		if err != nil {
			return Page{}, err
		}
		page.Receipts = append(page.Receipts, receipt)
	}
	return page, nil
}

func toModel(receipt Receipt) (models.Receipt, error) {
	lines := receipt.Lines
	if lines == nil {
		lines = []Line{}
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return models.Receipt{}, err
	}
	return models.Receipt{
		ID:            receipt.ID,
		SaleID:        receipt.SaleID,
		SessionID:     receipt.SessionID,
		CustomerName:  receipt.CustomerName,
		CustomerPhone: receipt.CustomerPhone,
		CustomerEmail: receipt.CustomerEmail,
		PaymentMethod: receipt.PaymentMethod,
		Total:         receipt.Total,
		Lines:         string(payload),
		CommittedAt:   receipt.CommittedAt.UTC(),
	}, nil
}

func fromModel(row models.Receipt) (Receipt, error) {
	var lines []Line
	if err := json.Unmarshal([]byte(row.Lines), &lines); err != nil {
		return Receipt{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode receipt lines").
			WithDetails(map[string]any{"sale_id": row.SaleID})
	}
	return Receipt{
		ID:            row.ID,
		SaleID:        row.SaleID,
		SessionID:     row.SessionID,
		CustomerName:  row.CustomerName,
		CustomerPhone: row.CustomerPhone,
		CustomerEmail: row.CustomerEmail,
		PaymentMethod: row.PaymentMethod,
		Total:         row.Total,
		Lines:         lines,
		CommittedAt:   row.CommittedAt.UTC(),
	}, nil
}
