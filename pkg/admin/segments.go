package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/astrapersonal/astra-api/pkg/domain"
	"github.com/astrapersonal/astra-api/pkg/models"
	"github.com/astrapersonal/astra-api/pkg/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListSegments returns all marketing segments, newest first
func (s *Service) ListSegments(ctx context.Context) ([]store.MarketingSegment, error) {
	segments := []store.MarketingSegment{}
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&segments).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}
	return segments, nil
}

// CreateSegment stores a new marketing segment
func (s *Service) CreateSegment(ctx context.Context, req models.SegmentRequest) (*store.MarketingSegment, error) {
	seg := store.MarketingSegment{
		Name:        req.Name,
		Description: req.Description,
		OfferType:   req.OfferType,
		ValidFrom:   req.ValidFrom,
		ValidUntil:  req.ValidUntil,
	}

	var err error
	fields := []struct {
		dst *datatypes.JSON
		src any
	}{
		{&seg.TargetCountries, req.TargetCountries},
		{&seg.TargetRegions, req.TargetRegions},
		{&seg.TargetPostalCodes, req.TargetPostalCodes},
		{&seg.TargetPlans, req.TargetPlans},
		{&seg.OfferPayload, req.OfferPayload},
	}
	for _, f := range fields {
		if *f.dst, err = encodeJSON(f.src); err != nil {
			return nil, domain.NewBadRequestError(err.Error())
		}
	}

	if err := s.db.WithContext(ctx).Create(&seg).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}

	s.logger.Info("segment created", "segment_id", seg.ID, "name", seg.Name)
	return &seg, nil
}

// AssignSegment links every user matching the segment targets to it and
// returns how many users matched. Existing assignments are kept.
func (s *Service) AssignSegment(ctx context.Context, segmentID string) (*models.AssignResponse, error) {
	db := s.db.WithContext(ctx)

	var seg store.MarketingSegment
	err := db.Where("id = ?", segmentID).Take(&seg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("segment")
	}
	if err != nil {
		return nil, domain.NewInternalError(err)
	}

	filters := []struct {
		column string
		values datatypes.JSON
	}{
		{"profiles.reg_country", seg.TargetCountries},
		{"profiles.reg_region", seg.TargetRegions},
		{"profiles.reg_postal_code", seg.TargetPostalCodes},
		{"subscriptions.plan", seg.TargetPlans},
	}

	q := db.Table("profiles").
		Select("profiles.id").
		Joins("LEFT JOIN subscriptions ON subscriptions.user_id = profiles.id")
	for _, f := range filters {
		values, err := decodeStrings(f.values)
		if err != nil {
			return nil, domain.NewInternalError(fmt.Errorf("segment %s %s: %w", seg.ID, f.column, err))
		}
		if len(values) > 0 {
			q = q.Where(f.column+" IN ?", values)
		}
	}

	var userIDs []string
	if err := q.Pluck("profiles.id", &userIDs).Error; err != nil {
		return nil, domain.NewInternalError(err)
	}

	if len(userIDs) > 0 {
		rows := make([]store.UserSegmentAssignment, 0, len(userIDs))
		for _, id := range userIDs {
			rows = append(rows, store.UserSegmentAssignment{UserID: id, SegmentID: seg.ID})
		}
		err := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 500).Error
		if err != nil {
			return nil, domain.NewInternalError(err)
		}
	}

	s.logger.Info("segment assigned", "segment_id", seg.ID, "users", len(userIDs))
	return &models.AssignResponse{OK: true, Assigned: len(userIDs)}, nil
}

func encodeJSON(v any) (datatypes.JSON, error) {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodeStrings(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
