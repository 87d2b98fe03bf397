package profiles

import (
	"context"

	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/store"
)

const defaultRelationshipType = "romantic"

// ListPartners returns the caller's active partners
func (s *Service) ListPartners(ctx context.Context, userID string) ([]store.PartnerProfile, error) {
	partners := []store.PartnerProfile{}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at").
		Find(&partners).Error
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return partners, nil
}

// CreatePartner inserts a partner owned by the caller
func (s *Service) CreatePartner(ctx context.Context, userID string, req models.PartnerRequest) (*store.PartnerProfile, error) {
	p := store.PartnerProfile{
		UserID:            userID,
		Name:              req.Name,
		RelationshipType:  req.RelationshipType,
		RelationshipStart: req.RelationshipStart,
		BirthDate:         req.BirthDate,
		BirthTime:         req.BirthTime,
		BirthTimeUnknown:  req.BirthTimeUnknown,
		BirthCity:         req.BirthCity,
		BirthCountry:      req.BirthCountry,
		BirthLat:          req.BirthLat,
		BirthLng:          req.BirthLng,
		BirthTimezone:     req.BirthTimezone,
		Notes:             req.Notes,
		IsActive:          true,
	}
	if p.RelationshipType == "" {
		p.RelationshipType = defaultRelationshipType
	}
	if req.BirthDate != nil {
		if sign, ok := SunSignFromString(*req.BirthDate); ok {
			p.SunSign = sign
		}
	}

	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}
	return &p, nil
}

// UpdatePartner applies req to one of the caller's partners
func (s *Service) UpdatePartner(ctx context.Context, userID, partnerID string, req models.PartnerRequest) error {
	updates := map[string]any{
		"name":               req.Name,
		"birth_time_unknown": req.BirthTimeUnknown,
	}
	if req.RelationshipType != "" {
		updates["relationship_type"] = req.RelationshipType
	}
	setIf(updates, "relationship_start", req.RelationshipStart)
	setIf(updates, "birth_date", req.BirthDate)
	setIf(updates, "birth_time", req.BirthTime)
	setIf(updates, "birth_city", req.BirthCity)
	setIf(updates, "birth_country", req.BirthCountry)
	setIf(updates, "birth_lat", req.BirthLat)
	setIf(updates, "birth_lng", req.BirthLng)
	setIf(updates, "birth_timezone", req.BirthTimezone)
	setIf(updates, "notes", req.Notes)
	if req.BirthDate != nil {
		if sign, ok := SunSignFromString(*req.BirthDate); ok {
			updates["sun_sign"] = sign
		}
	}

	return s.updatePartner(ctx, userID, partnerID, updates)
}

// DeletePartner soft deletes one of the caller's partners
func (s *Service) DeletePartner(ctx context.Context, userID, partnerID string) error {
	return s.updatePartner(ctx, userID, partnerID, map[string]any{"is_active": false})
}

func (s *Service) updatePartner(ctx context.Context, userID, partnerID string, updates map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&store.PartnerProfile{}).
		Where("id = ? AND user_id = ? AND is_active = ?", partnerID, userID, true).
		Updates(updates)
	if res.Error != nil {
		return domain.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.NewNotFoundError("partner")
	}
	return nil
}
