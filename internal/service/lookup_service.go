package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/participation-api/internal/dto"
	"github.com/noah-isme/participation-api/internal/observability"
	"github.com/noah-isme/participation-api/internal/repository"
)

const lookupCachePrefix = "participation:lookup:v1"

// LookupService serves the read-only reference data the participation grid needs.
type LookupService interface {
	Rooms(ctx context.Context, schoolYear string) ([]int, error)
	SchoolYears(ctx context.Context) ([]string, error)
	Activities(ctx context.Context) ([]dto.ActivityResponse, error)
	Students(ctx context.Context, req dto.StudentListRequest) ([]dto.StudentResponse, error)
}

type lookupService struct {
	students   repository.StudentRepository
	activities repository.ActivityRepository
	validator  *validator.Validate
	cache      *redis.Client
	ttl        time.Duration
	logger     zerolog.Logger
}

// NewLookupService builds the lookup service. cache may be nil.
func NewLookupService(students repository.StudentRepository, activities repository.ActivityRepository, validate *validator.Validate, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) LookupService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &lookupService{
		students:   students,
		activities: activities,
		validator:  validate,
		cache:      cache,
		ttl:        ttl,
		logger:     logger.With().Str("component", "lookup_service").Logger(),
	}
}

func (s *lookupService) Rooms(ctx context.Context, schoolYear string) ([]int, error) {
	key := fmt.Sprintf("%s:rooms:%s", lookupCachePrefix, schoolYear)
	return cachedLookup(ctx, s, "rooms", key, func() ([]int, error) {
		rooms, err := s.students.Rooms(ctx, schoolYear)
		if err != nil {
			return nil, fmt.Errorf("list rooms: %w", err)
		}
		if rooms == nil {
			rooms = []int{}
		}
		return rooms, nil
	})
}

func (s *lookupService) SchoolYears(ctx context.Context) ([]string, error) {
	key := lookupCachePrefix + ":years"
	return cachedLookup(ctx, s, "years", key, func() ([]string, error) {
		years, err := s.students.SchoolYears(ctx)
		if err != nil {
			return nil, fmt.Errorf("list school years: %w", err)
		}
		if years == nil {
			years = []string{}
		}
		return years, nil
	})
}

func (s *lookupService) Activities(ctx context.Context) ([]dto.ActivityResponse, error) {
	key := lookupCachePrefix + ":activities"
	return cachedLookup(ctx, s, "activities", key, func() ([]dto.ActivityResponse, error) {
		activities, err := s.activities.ListVisible(ctx)
		if err != nil {
			return nil, fmt.Errorf("list activities: %w", err)
		}
		items := make([]dto.ActivityResponse, 0, len(activities))
		for _, activity := range activities {
			items = append(items, dto.NewActivityResponse(activity))
		}
		return items, nil
	})
}

func (s *lookupService) Students(ctx context.Context, req dto.StudentListRequest) ([]dto.StudentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	students, err := s.students.ListByRoom(ctx, req.Room, req.SchoolYear)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	items := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		items = append(items, dto.NewStudentResponse(student))
	}
	return items, nil
}

// cachedLookup returns the cached JSON for key or loads, caches and returns a fresh value.
// Cache failures are logged and never surface to the caller.
func cachedLookup[T any](ctx context.Context, s *lookupService, resource, key string, load func() (T, error)) (T, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Bytes(); err == nil && len(cached) > 0 {
			var value T
			if err := json.Unmarshal(cached, &value); err == nil {
				observability.LookupCacheRequests().WithLabelValues(resource, "hit").Inc()
				return value, nil
			}
		} else if err != nil && err != redis.Nil {
			s.logger.Warn().Err(err).Str("resource", resource).Msg("failed to read lookup cache")
		}
	}

	value, err := load()
	if err != nil {
		observability.LookupCacheRequests().WithLabelValues(resource, "error").Inc()
		return value, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(value); err == nil {
			if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Str("resource", resource).Msg("failed to write lookup cache")
			}
		}
	}
	observability.LookupCacheRequests().WithLabelValues(resource, "miss").Inc()

	return value, nil
}
