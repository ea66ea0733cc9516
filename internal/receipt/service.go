// Package receipt stores receipt images, extracts their contents and turns them into
// expense transactions.
package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/apperr"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/events"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/ledger"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/models"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/money"
	"github.com/vijaysanthoshp/Finance-tracker-Backend/internal/util"
)

type Service struct {
	db            *gorm.DB
	engine        *ledger.Engine
	extractor     Extractor
	blobs         BlobStore
	encryptionKey string
	events        events.Publisher
	log           zerolog.Logger

	// limits concurrent extractions
	sem chan struct{}
}

type Options struct {
	EncryptionKey string
	MaxConcurrent int
	Events        events.Publisher
}

func NewService(db *gorm.DB, engine *ledger.Engine, extractor Extractor, blobs BlobStore, opts Options, log zerolog.Logger) *Service {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	return &Service{
		db:            db,
		engine:        engine,
		extractor:     extractor,
		blobs:         blobs,
		encryptionKey: opts.EncryptionKey,
		events:        opts.Events,
		log:           log,
		sem:           make(chan struct{}, opts.MaxConcurrent),
	}
}

// Detail is a receipt with its decrypted extraction.
type Detail struct {
	models.Receipt
	Extraction *Extraction
}

// Ingest validates and stores the image, runs extraction and records the receipt. The
// blob is removed again if anything after the upload fails.
func (s *Service) Ingest(ctx context.Context, userID uint, img []byte) (*Detail, error) {
	format, err := ValidateImage(img)
	if err != nil {
		return nil, apperr.Validation("invalid receipt image", apperr.FieldError{Field: "image", Message: err.Error()})
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "receipt processing is busy", ctx.Err())
	}

	names, err := s.expenseCategories(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := path.Join("receipts", fmt.Sprint(userID), uuid.NewString()+extension(format))
	if err := s.blobs.Put(ctx, key, img); err != nil {
		return nil, apperr.Internal("store receipt image", err)
	}

	ex, err := s.extractor.Extract(ctx, img, names)
	if err != nil {
		s.dropBlob(key)
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "receipt extraction failed", err)
	}

	raw, err := json.Marshal(ex)
	if err != nil {
		s.dropBlob(key)
		return nil, apperr.Internal("encode extraction", err)
	}
	enc, err := util.EncryptField(s.encryptionKey, string(raw))
	if err != nil {
		s.dropBlob(key)
		return nil, apperr.Internal("encrypt extraction", err)
	}

	row := models.Receipt{
		UserID:            userID,
		MerchantName:      truncate(ex.MerchantName, 255),
		Amount:            ex.Amount,
		ReceiptDate:       ex.Date,
		SuggestedCategory: truncate(ex.SuggestedCategory, 64),
		Confidence:        ex.Confidence,
		ImageKey:          key,
		RawDataEnc:        enc,
	}
	if ex.SuggestedCategory != "" {
		if id, ok := s.categoryByName(ctx, userID, ex.SuggestedCategory); ok {
			row.SuggestedCategoryID = &id
		}
	}
	if err := s.db.WithContext(ctx).Omit("User").Create(&row).Error; err != nil {
		s.dropBlob(key)
		return nil, apperr.FromStore(err, "")
	}

	ev := events.New(events.TypeReceiptProcessed, userID, row.ID, row.Amount)
	if err := s.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Warn().Err(err).Uint("receipt_id", row.ID).Msg("publish receipt event failed")
	}
	s.log.Info().Uint("user_id", userID).Uint("receipt_id", row.ID).Float64("confidence", ex.Confidence).Msg("receipt processed")
	return &Detail{Receipt: row, Extraction: ex}, nil
}

// List returns the user's receipts, newest first, and the total count.
func (s *Service) List(ctx context.Context, userID uint, page, size int) ([]models.Receipt, int64, error) {
	base := s.db.WithContext(ctx).Model(&models.Receipt{}).Where("user_id = ?", userID)
	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "")
	}
	q := base.Session(&gorm.Session{}).Order("created_at DESC, id DESC")
	if size > 0 {
		if page <= 0 {
			page = 1
		}
		q = q.Limit(size).Offset((page - 1) * size)
	}
	var rows []models.Receipt
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, apperr.FromStore(err, "")
	}
	return rows, total, nil
}

// Get returns one receipt with its extraction. An undecryptable payload yields a nil
// Extraction rather than an error.
func (s *Service) Get(ctx context.Context, userID, id uint) (*Detail, error) {
	row, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	d := &Detail{Receipt: *row}
	if plain := util.DecryptField(s.encryptionKey, row.RawDataEnc); plain != "" {
		var ex Extraction
		if err := json.Unmarshal([]byte(plain), &ex); err == nil {
			d.Extraction = &ex
		}
	}
	return d, nil
}

// Image returns the stored image of an owned receipt and its detected content type.
func (s *Service) Image(ctx context.Context, userID, id uint) ([]byte, string, error) {
	row, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	b, err := s.blobs.Get(ctx, row.ImageKey)
	if errors.Is(err, ErrBlobNotFound) {
		return nil, "", apperr.NotFound("receipt image not found")
	}
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindStoreUnavailable, "receipt image unavailable", err)
	}
	return b, http.DetectContentType(b), nil
}

// Delete removes a receipt that has not been turned into a transaction, then its image.
func (s *Service) Delete(ctx context.Context, userID, id uint) error {
	row, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if row.TransactionCreated {
		return apperr.Conflict("receipt is linked to a transaction")
	}
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND transaction_created = ?", id, userID, false).
		Delete(&models.Receipt{})
	if res.Error != nil {
		return apperr.FromStore(res.Error, "")
	}
	if res.RowsAffected == 0 {
		// linked between the read and the delete
		return apperr.Conflict("receipt is linked to a transaction")
	}
	s.dropBlob(row.ImageKey)
	return nil
}

// CommitInput overrides extracted values. Nil fields fall back to the extraction.
type CommitInput struct {
	AccountID   uint
	CategoryID  *uint
	Amount      *money.Amount
	Description *string
	Date        *time.Time
	Notes       string
}

// Commit creates the EXPENSE transaction for a receipt. The ledger flips the receipt's
// flag in the same database transaction, so a receipt commits at most once.
func (s *Service) Commit(ctx context.Context, userID, id uint, in CommitInput) (*models.Transaction, error) {
	row, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if row.TransactionCreated {
		return nil, apperr.Conflict("a transaction has already been created from this receipt")
	}

	tin := ledger.TransactionInput{
		AccountID:   in.AccountID,
		Type:        models.TransactionExpense,
		Amount:      row.Amount,
		Description: row.MerchantName,
		Date:        row.ReceiptDate,
		Notes:       in.Notes,
		ReceiptID:   &row.ID,
	}
	if row.SuggestedCategoryID != nil {
		tin.CategoryID = *row.SuggestedCategoryID
	}
	if in.CategoryID != nil {
		tin.CategoryID = *in.CategoryID
	}
	if in.Amount != nil {
		tin.Amount = *in.Amount
	}
	if in.Description != nil {
		tin.Description = *in.Description
	}
	if strings.TrimSpace(tin.Description) == "" {
		tin.Description = "Receipt"
	}
	if in.Date != nil {
		tin.Date = in.Date
	}
	return s.engine.CreateTransaction(ctx, userID, tin)
}

func (s *Service) owned(ctx context.Context, userID, id uint) (*models.Receipt, error) {
	var row models.Receipt
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
		return nil, apperr.FromStore(err, "receipt not found")
	}
	return &row, nil
}

func (s *Service) expenseCategories(ctx context.Context, userID uint) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Model(&models.Category{}).
		Where("type = ? AND (user_id IS NULL OR user_id = ?)", models.CategoryExpense, userID).
		Order("name").
		Pluck("name", &names).Error
	if err != nil {
		return nil, apperr.FromStore(err, "")
	}
	return names, nil
}

// categoryByName prefers the user's own category over a system one with the same name.
func (s *Service) categoryByName(ctx context.Context, userID uint, name string) (uint, bool) {
	var cat models.Category
	err := s.db.WithContext(ctx).
		Where("type = ? AND LOWER(name) = ? AND (user_id IS NULL OR user_id = ?)",
			models.CategoryExpense, strings.ToLower(strings.TrimSpace(name)), userID).
		Order("user_id IS NULL, id").
		First(&cat).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn().Err(err).Str("category", name).Msg("resolve suggested category failed")
		}
		return 0, false
	}
	return cat.ID, true
}

func (s *Service) dropBlob(key string) {
	if err := s.blobs.Delete(context.Background(), key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("delete receipt image failed")
	}
}

func extension(format string) string {
	if format == "jpeg" {
		return ".jpg"
	}
	return "." + format
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
