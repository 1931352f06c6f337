package service

import (
	"context"
	"time"

	"campusfeed/internal/models"
	"campusfeed/internal/repository"

	"gorm.io/gorm"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn    func(context.Context, *models.Post) error
	getByIDFn   func(context.Context, uint) (*models.Post, error)
	getDetailFn func(context.Context, uint) (*models.Post, error)
	listFn      func(context.Context, repository.PostFilter) ([]*models.Post, int64, error)
	updateFn    func(context.Context, *models.Post) error
	deleteFn    func(context.Context, uint) error
	countFn     func(context.Context) (map[string]int64, error)
}

func (s *postRepoStub) WithTx(_ *gorm.DB) repository.PostRepository { return s }
func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) GetDetail(ctx context.Context, id uint) (*models.Post, error) {
	return s.getDetailFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, filter repository.PostFilter) ([]*models.Post, int64, error) {
	return s.listFn(ctx, filter)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) CountByCategory(ctx context.Context) (map[string]int64, error) {
	return s.countFn(ctx)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1}, nil
		},
		getDetailFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1}, nil
		},
		listFn: func(_ context.Context, _ repository.PostFilter) ([]*models.Post, int64, error) {
			return nil, 0, nil
		},
		updateFn: func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn: func(_ context.Context, _ uint) error { return nil },
		countFn:  func(_ context.Context) (map[string]int64, error) { return map[string]int64{}, nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn        func(context.Context, *models.Comment) error
	setPathFn       func(context.Context, uint, models.CommentPath) error
	getByIDFn       func(context.Context, uint) (*models.Comment, error)
	listByPostFn    func(context.Context, uint) ([]*models.Comment, error)
	listSubtreeFn   func(context.Context, *models.Comment) ([]*models.Comment, error)
	updateContentFn func(context.Context, uint, string) error
	softDeleteFn    func(context.Context, uint) error
}

func (s *commentRepoStub) WithTx(_ *gorm.DB) repository.CommentRepository { return s }
func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) SetPath(ctx context.Context, id uint, path models.CommentPath) error {
	return s.setPathFn(ctx, id, path)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}
func (s *commentRepoStub) ListSubtree(ctx context.Context, root *models.Comment) ([]*models.Comment, error) {
	return s.listSubtreeFn(ctx, root)
}
func (s *commentRepoStub) UpdateContent(ctx context.Context, id uint, content string, _ time.Time) error {
	return s.updateContentFn(ctx, id, content)
}
func (s *commentRepoStub) SoftDelete(ctx context.Context, id uint) error {
	return s.softDeleteFn(ctx, id)
}
func (s *commentRepoStub) ListByUser(_ context.Context, _ uint, _ int) ([]models.UserComment, error) {
	return nil, nil
}
func (s *commentRepoStub) IDsByPost(_ context.Context, _ uint) ([]uint, error) { return nil, nil }
func (s *commentRepoStub) DeleteByPost(_ context.Context, _ uint) (int64, error) {
	return 0, nil
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:  func(_ context.Context, _ *models.Comment) error { return nil },
		setPathFn: func(_ context.Context, _ uint, _ models.CommentPath) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id, PostID: 1, UserID: 1}, nil
		},
		listByPostFn:    func(_ context.Context, _ uint) ([]*models.Comment, error) { return nil, nil },
		listSubtreeFn:   func(_ context.Context, _ *models.Comment) ([]*models.Comment, error) { return nil, nil },
		updateContentFn: func(_ context.Context, _ uint, _ string) error { return nil },
		softDeleteFn:    func(_ context.Context, _ uint) error { return nil },
	}
}
