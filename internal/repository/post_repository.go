// Package repository implements the read and write ports of the chunk pipeline over gorm.
package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tigerroll/postchunk/internal/domain/entity"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/exception"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

// TableNames names the source and destination tables.
type TableNames struct {
	Posts    string
	Comments string
	Chunks   string
}

// PostRepository is the read port.
type PostRepository interface {
	// GetAllPosts returns every post ordered by post_id ascending.
	GetAllPosts(ctx context.Context) ([]entity.Post, error)
	// GetCommentsForPost returns the comments of postID ordered by
	// comment_priority ascending, then text_length ascending.
	// The assembler relies on this order and does not sort on its own.
	GetCommentsForPost(ctx context.Context, postID string) ([]entity.Comment, error)
	// TablesExist reports whether the posts, comments and chunk tables all exist.
	TablesExist(ctx context.Context) bool
}

// GormPostRepository implements PostRepository.
type GormPostRepository struct {
	db     *gorm.DB
	tables TableNames
	log    logger.Logger
}

// NewPostRepository creates a GormPostRepository reading through db.
func NewPostRepository(db *gorm.DB, tables TableNames, log logger.Logger) *GormPostRepository {
	return &GormPostRepository{db: db, tables: tables, log: log.Named("reader")}
}

// GetAllPosts implements PostRepository.
func (r *GormPostRepository) GetAllPosts(ctx context.Context) ([]entity.Post, error) {
	var posts []entity.Post
	err := r.db.WithContext(ctx).
		Table(r.tables.Posts).
		Select("post_id", "timestamp", "author", "title", "post_texts", "text_length").
		Order("post_id ASC").
		Find(&posts).Error
	if err != nil {
		return nil, exception.NewBatchError(exception.ModuleReader, "failed to read posts", err, false, false)
	}
	r.log.Infof("Retrieved %d posts from %s.", len(posts), r.tables.Posts)
	return posts, nil
}

// GetCommentsForPost implements PostRepository.
func (r *GormPostRepository) GetCommentsForPost(ctx context.Context, postID string) ([]entity.Comment, error) {
	var comments []entity.Comment
	err := r.db.WithContext(ctx).
		Table(r.tables.Comments).
		Select("comment_id", "post_id", "timestamp", "author", "comment_texts", "comment_priority", "text_length").
		Where("post_id = ?", postID).
		Order("comment_priority ASC").
		Order("text_length ASC").
		Find(&comments).Error
	if err != nil {
		return nil, exception.NewBatchErrorf(exception.ModuleReader, "failed to read comments for post %s", postID, err)
	}
	return comments, nil
}

// TablesExist implements PostRepository.
func (r *GormPostRepository) TablesExist(ctx context.Context) bool {
	m := r.db.WithContext(ctx).Migrator()
	for _, name := range []string{r.tables.Posts, r.tables.Comments, r.tables.Chunks} {
		if !m.HasTable(name) {
			r.log.Errorf("Required table %s does not exist.", name)
			return false
		}
	}
	return true
}

var _ PostRepository = (*GormPostRepository)(nil)
