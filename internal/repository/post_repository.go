package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"postbox/internal/authz"
	"postbox/internal/model"
)

// PostRepository defines post persistence operations.
type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	FindByID(ctx context.Context, id uint) (*model.Post, error)
	List(ctx context.Context, filter authz.Filter) ([]model.Post, error)
	Update(ctx context.Context, id uint, patch model.PostPatch) (*model.Post, error)
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// visibleTo narrows a posts query to the rows f admits. Membership in the
// visibility set is an exact match on post_viewers.user_id.
func visibleTo(f authz.Filter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.Unrestricted {
			return db
		}
		return db.Where(
			"posts.restricted = ? OR posts.author_id = ? OR EXISTS (SELECT 1 FROM post_viewers WHERE post_viewers.post_id = posts.id AND post_viewers.user_id = ?)",
			false, f.ViewerID, f.ViewerID,
		)
	}
}

// Create inserts the post together with its visibility set.
func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		viewers := post.Viewers
		if err := tx.Omit("Viewers").Create(post).Error; err != nil {
			return err
		}
		if len(viewers) == 0 {
			return nil
		}
		for i := range viewers {
			viewers[i].PostID = post.ID
		}
		return tx.Create(&viewers).Error
	})
}

// FindByID loads a post and its visibility set.
func (r *postRepository) FindByID(ctx context.Context, id uint) (*model.Post, error) {
	var post model.Post
	if err := r.db.WithContext(ctx).Preload("Viewers").First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// List returns the posts f admits, oldest first. Every call re-queries.
func (r *postRepository) List(ctx context.Context, filter authz.Filter) ([]model.Post, error) {
	var posts []model.Post
	err := r.db.WithContext(ctx).
		Scopes(visibleTo(filter)).
		Preload("Viewers").
		Order("posts.id").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Update applies patch to the post with row-level lock inside a transaction.
// It returns gorm.ErrRecordNotFound when id does not resolve.
func (r *postRepository) Update(ctx context.Context, id uint, patch model.PostPatch) (*model.Post, error) {
	var updated model.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&existing, id).Error; err != nil {
			return err
		}

		changes := map[string]interface{}{"updated_at": time.Now()}
		if patch.Content != nil {
			changes["content"] = *patch.Content
		}
		if patch.VisibleTo.Set {
			changes["restricted"] = patch.VisibleTo.IDs != nil
		}
		if err := tx.Model(&model.Post{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return err
		}

		if patch.VisibleTo.Set {
			if err := tx.Where("post_id = ?", id).Delete(&model.PostViewer{}).Error; err != nil {
				return err
			}
			if viewers := model.ViewersFor(id, patch.VisibleTo.IDs); len(viewers) > 0 {
				if err := tx.Create(&viewers).Error; err != nil {
					return err
				}
			}
		}

		return tx.Preload("Viewers").First(&updated, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the post and its visibility set. It returns
// gorm.ErrRecordNotFound when id does not resolve.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&model.PostViewer{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
