package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/pkg/logger"
	"github.com/coursebill/billing-api/pkg/pg"
	"github.com/coursebill/billing-api/pkg/redis"
	"gorm.io/gorm"
)

var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrDuplicateCourse = errors.New("course code already exists")
)

const (
	courseCacheTTL     = 30 * time.Minute
	courseCacheKey     = "course:code:"
	courseListCacheKey = "course:all"
)

// CourseRepository reads and writes the course catalog. When a redis
// adapter is supplied, single-course and catalog reads are cached and
// invalidated on every write.
type CourseRepository struct {
	*pg.DB
	cache redis.RedisAdapter
}

func NewCourseRepository(db *pg.DB, cache redis.RedisAdapter) *CourseRepository {
	return &CourseRepository{
		DB:    db,
		cache: cache,
	}
}

func (r *CourseRepository) Create(ctx context.Context, c *model.Course) (*model.Course, error) {
	entity := toCourseEntity(c)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	r.invalidate(entity.Code)
	return toCourseModel(entity), nil
}

func (r *CourseRepository) Update(ctx context.Context, c *model.Course) (*model.Course, error) {
	entity := toCourseEntity(c)

	var prev CourseEntity
	err := r.Write(ctx).WithContext(ctx).
		Select("code").
		Where("id = ?", entity.ID).
		First(&prev).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&CourseEntity{}).
		Where("id = ?", entity.ID).
		Updates(map[string]interface{}{
			"code":  entity.Code,
			"title": entity.Title,
			"type":  entity.Type,
			"cost":  entity.Cost,
		})

	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrCourseNotFound
	}

	// A code rename leaves the cache entry for the old code behind.
	if prev.Code != entity.Code {
		r.invalidate(prev.Code)
	}
	r.invalidate(entity.Code)
	return toCourseModel(entity), nil
}

func (r *CourseRepository) GetByID(ctx context.Context, id int64) (*model.Course, error) {
	var entity CourseEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	return toCourseModel(&entity), nil
}

func (r *CourseRepository) GetByCode(ctx context.Context, code string) (*model.Course, error) {
	if r.cache != nil {
		if data, err := r.cache.Get(courseCacheKey + code); err == nil && len(data) > 0 {
			var entity CourseEntity
			if err := json.Unmarshal(data, &entity); err == nil {
				return toCourseModel(&entity), nil
			}
		}
	}

	var entity CourseEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("code = ?", code).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	r.cacheSet(courseCacheKey+code, &entity)
	return toCourseModel(&entity), nil
}

func (r *CourseRepository) List(ctx context.Context) ([]*model.Course, error) {
	if r.cache != nil {
		if data, err := r.cache.Get(courseListCacheKey); err == nil && len(data) > 0 {
			var entities []*CourseEntity
			if err := json.Unmarshal(data, &entities); err == nil {
				return toCourseModels(entities), nil
			}
		}
	}

	var entities []*CourseEntity
	err := r.Read(ctx).WithContext(ctx).
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(entities); err == nil {
		r.cacheSetRaw(courseListCacheKey, data)
	}
	return toCourseModels(entities), nil
}

func (r *CourseRepository) cacheSet(key string, entity *CourseEntity) {
	data, err := json.Marshal(entity)
	if err != nil {
		return
	}
	r.cacheSetRaw(key, data)
}

func (r *CourseRepository) cacheSetRaw(key string, data []byte) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(key, data, courseCacheTTL); err != nil {
		logger.Warn("failed to cache courses", "key", key, "error", err)
	}
}

func (r *CourseRepository) invalidate(code string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(courseCacheKey + code); err != nil {
		logger.Warn("failed to invalidate course cache", "code", code, "error", err)
	}
	if err := r.cache.Del(courseListCacheKey); err != nil {
		logger.Warn("failed to invalidate course list cache", "error", err)
	}
}
