package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rechnung/server/internal/models"
	"rechnung/server/internal/utils"
)

const (
	companyCacheKey = "company:" + models.DefaultCompanyID
	companyCacheTTL = 10 * time.Minute
)

// CompanyService manages the single issuer record
type CompanyService struct {
	db    *gorm.DB
	cache *utils.RedisClient
	log   *zap.Logger
}

// NewCompanyService creates the service; cache may be nil
func NewCompanyService(db *gorm.DB, cache *utils.RedisClient, log *zap.Logger) *CompanyService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CompanyService{db: db, cache: cache, log: log}
}

// Get returns the issuer, seeding the placeholder company on first use
func (s *CompanyService) Get(ctx context.Context) (models.CompanyInfo, error) {
	var cached models.CompanyInfo
	if err := s.cache.GetJSON(ctx, companyCacheKey, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, utils.ErrCacheMiss) {
		s.log.Warn("company cache read failed", zap.Error(err))
	}

	var company models.Company
	err := s.db.WithContext(ctx).First(&company, "id = ?", models.DefaultCompanyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		company = models.Company{ID: models.DefaultCompanyID, CompanyInfo: models.DefaultCompanyInfo()}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&company).Error; err != nil {
			return models.CompanyInfo{}, fmt.Errorf("failed to seed company: %w", err)
		}
		s.log.Info("default company created")
	} else if err != nil {
		return models.CompanyInfo{}, fmt.Errorf("failed to load company: %w", err)
	}

	s.store(ctx, company.CompanyInfo)
	return company.CompanyInfo, nil
}

// Update replaces every issuer field
func (s *CompanyService) Update(ctx context.Context, info models.CompanyInfo) (models.CompanyInfo, error) {
	company := models.Company{ID: models.DefaultCompanyID, CompanyInfo: info}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&company).Error
	if err != nil {
		return models.CompanyInfo{}, fmt.Errorf("failed to save company: %w", err)
	}

	if err := s.cache.Delete(ctx, companyCacheKey); err != nil {
		s.log.Warn("company cache invalidation failed", zap.Error(err))
	}
	s.log.Info("company updated", zap.String("name", info.Name))
	return info, nil
}

func (s *CompanyService) store(ctx context.Context, info models.CompanyInfo) {
	if err := s.cache.Set(ctx, companyCacheKey, info, companyCacheTTL); err != nil {
		s.log.Warn("company cache write failed", zap.Error(err))
	}
}
