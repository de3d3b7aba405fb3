package services

import (
	"context"
	"errors"
	"strings"

	"github.com/coursebill/billing-api/internal/model"
	"github.com/coursebill/billing-api/internal/repository"
)

var (
	ErrCourseExists = errors.New("course code already exists")
	ErrEmptyCode    = errors.New("course code cannot be empty")
	ErrEmptyTitle   = errors.New("course title cannot be empty")
)

type CourseRepository interface {
	Create(ctx context.Context, c *model.Course) (*model.Course, error)
	Update(ctx context.Context, c *model.Course) (*model.Course, error)
	GetByCode(ctx context.Context, code string) (*model.Course, error)
	List(ctx context.Context) ([]*model.Course, error)
}

type CourseService struct {
	repo CourseRepository
}

func NewCourseService(repo CourseRepository) *CourseService {
	return &CourseService{repo: repo}
}

func (s *CourseService) Create(ctx context.Context, req model.CourseCreateRequest) (*model.Course, error) {
	c := &model.Course{
		Code:  strings.TrimSpace(req.Code),
		Title: strings.TrimSpace(req.Title),
		Type:  req.Type,
	}
	if req.Cost != nil {
		c.Cost = *req.Cost
		c.HasCost = true
	}

	if c.Code == "" {
		return nil, ErrEmptyCode
	}
	if c.Title == "" {
		return nil, ErrEmptyTitle
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByCode(ctx, c.Code); err == nil {
		return nil, ErrCourseExists
	} else if !errors.Is(err, repository.ErrCourseNotFound) {
		return nil, err
	}

	return s.repo.Create(ctx, c)
}

// Update patches the course found by code with the non-nil request
// fields and re-validates the result.
func (s *CourseService) Update(ctx context.Context, code string, req model.CourseUpdateRequest) (*model.Course, error) {
	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCourseNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	if req.Code != nil {
		newCode := strings.TrimSpace(*req.Code)
		if newCode == "" {
			return nil, ErrEmptyCode
		}
		if newCode != c.Code {
			if _, err := s.repo.GetByCode(ctx, newCode); err == nil {
				return nil, ErrCourseExists
			} else if !errors.Is(err, repository.ErrCourseNotFound) {
				return nil, err
			}
		}
		c.Code = newCode
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, ErrEmptyTitle
		}
		c.Title = title
	}
	if req.Type != nil {
		c.Type = *req.Type
	}
	if req.Cost != nil {
		c.Cost = *req.Cost
		c.HasCost = true
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return s.repo.Update(ctx, c)
}

func (s *CourseService) GetByCode(ctx context.Context, code string) (*model.Course, error) {
	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCourseNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *CourseService) List(ctx context.Context) ([]*model.Course, error) {
	return s.repo.List(ctx)
}
