package vault

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository implements Store on the vault database connection. This
// connection carries its own credentials; the application pool never sees
// these tables.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&TokenMapping{},
		&TokenAccessLog{},
		&RateLimitWindow{},
		&RateLimitConfig{},
		&SecurityAlert{},
	)
}

func (r *Repository) GetMappingByToken(ctx context.Context, token string) (TokenMapping, error) {
	var mapping TokenMapping
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return TokenMapping{}, ErrNotFound
	}
	if err != nil {
		return TokenMapping{}, err
	}
	return mapping, nil
}

func (r *Repository) GetMappingByRealIdentifier(ctx context.Context, realIdentifier string) (TokenMapping, error) {
	var mapping TokenMapping
	err := r.db.WithContext(ctx).Where("real_identifier = ?", realIdentifier).First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return TokenMapping{}, ErrNotFound
	}
	if err != nil {
		return TokenMapping{}, err
	}
	return mapping, nil
}

func (r *Repository) CreateMapping(ctx context.Context, mapping TokenMapping) error {
	return r.db.WithContext(ctx).Create(&mapping).Error
}

func (r *Repository) RecordMappingAccess(ctx context.Context, token string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&TokenMapping{}).Where("token = ?", token).Updates(map[string]interface{}{
		"last_accessed_at": at,
		"access_count":     gorm.Expr("access_count + 1"),
	}).Error
}

func (r *Repository) InsertAccessLog(ctx context.Context, entry TokenAccessLog) error {
	return r.db.WithContext(ctx).Create(&entry).Error
}

func (r *Repository) SaveRateLimitWindow(ctx context.Context, window RateLimitWindow) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "requestor_id"}, {Name: "window_start"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tokenize_count", "detokenize_count", "window_end",
		}),
	}).Create(&window).Error
}

func (r *Repository) ListRateLimitConfigs(ctx context.Context) ([]RateLimitConfig, error) {
	var configs []RateLimitConfig
	err := r.db.WithContext(ctx).Find(&configs).Error
	return configs, err
}

func (r *Repository) CreateAlert(ctx context.Context, alert SecurityAlert) error {
	return r.db.WithContext(ctx).Create(&alert).Error
}

func (r *Repository) GetAlert(ctx context.Context, id uuid.UUID) (SecurityAlert, error) {
	var alert SecurityAlert
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SecurityAlert{}, ErrNotFound
	}
	if err != nil {
		return SecurityAlert{}, err
	}
	return alert, nil
}

func (r *Repository) UpdateAlert(ctx context.Context, alert SecurityAlert) error {
	return r.db.WithContext(ctx).Save(&alert).Error
}

func (r *Repository) ListAlerts(ctx context.Context, status string, limit int) ([]SecurityAlert, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var alerts []SecurityAlert
	err := q.Find(&alerts).Error
	return alerts, err
}
