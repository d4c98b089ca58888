package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/postchunk/internal/domain/entity"
	gormadapter "github.com/tigerroll/postchunk/pkg/batch/adapter/database/gorm"
	testfixture "github.com/tigerroll/postchunk/pkg/batch/test"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/exception"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

var defaultTables = TableNames{Posts: "posts", Comments: "comments", Chunks: "facebook_chunks"}

func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	ts := time.Date(2026, 1, 13, 10, 30, 0, 0, time.UTC)
	posts := []entity.Post{
		{PostID: "P3", Timestamp: ts, Author: "Carol", Title: "third", PostTexts: "q3", TextLength: 2},
		{PostID: "P1", Timestamp: ts, Author: "JohnDoe123", Title: "first", PostTexts: "q1", TextLength: 2},
		{PostID: "P2", Author: "", PostTexts: "q2", TextLength: 2},
	}
	require.NoError(t, db.Table("posts").Create(&posts).Error)

	comments := []entity.Comment{
		{CommentID: "C1", PostID: "P1", CommentTexts: "bb", CommentPriority: 2, TextLength: 2},
		{CommentID: "C2", PostID: "P1", CommentTexts: "long comment", CommentPriority: 1, TextLength: 12},
		{CommentID: "C3", PostID: "P1", CommentTexts: "x", CommentPriority: 1, TextLength: 1},
		{CommentID: "C4", PostID: "P1", CommentTexts: "mid", CommentPriority: 1, TextLength: 3},
		{CommentID: "C5", PostID: "P3", CommentTexts: "other post", CommentPriority: 1, TextLength: 10},
	}
	require.NoError(t, db.Table("comments").Create(&comments).Error)
}

func TestPostRepository_GetAllPostsOrderedByID(t *testing.T) {
	db := testfixture.NewSQLiteDB(t)
	seed(t, db)
	repo := NewPostRepository(db, defaultTables, logger.Nop())

	posts, err := repo.GetAllPosts(context.Background())
	require.NoError(t, err)

	require.Len(t, posts, 3)
	assert.Equal(t, "P1", posts[0].PostID)
	assert.Equal(t, "P2", posts[1].PostID)
	assert.Equal(t, "P3", posts[2].PostID)
	assert.Equal(t, "JohnDoe123", posts[0].Author)
	assert.True(t, posts[0].Timestamp.Equal(time.Date(2026, 1, 13, 10, 30, 0, 0, time.UTC)))
	assert.True(t, posts[1].Timestamp.IsZero(), "missing timestamp reads back as the zero time")
}

func TestPostRepository_GetCommentsOrderedByPriorityThenLength(t *testing.T) {
	db := testfixture.NewSQLiteDB(t)
	seed(t, db)
	repo := NewPostRepository(db, defaultTables, logger.Nop())

	comments, err := repo.GetCommentsForPost(context.Background(), "P1")
	require.NoError(t, err)

	var texts []string
	for _, c := range comments {
		texts = append(texts, c.CommentTexts)
	}
	assert.Equal(t, []string{"x", "mid", "long comment", "bb"}, texts)

	none, err := repo.GetCommentsForPost(context.Background(), "P2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostRepository_TablesExist(t *testing.T) {
	db := testfixture.NewSQLiteDB(t)
	repo := NewPostRepository(db, defaultTables, logger.Nop())
	assert.True(t, repo.TablesExist(context.Background()))

	require.NoError(t, db.Migrator().DropTable("facebook_chunks"))
	assert.False(t, repo.TablesExist(context.Background()))
}

func TestPostRepository_QueryErrorIsFatalBatchError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT .* FROM `posts`").WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectQuery("SELECT .* FROM `comments` WHERE post_id = \\?").
		WithArgs("P9").
		WillReturnError(errors.New("connection reset by peer"))

	repo := NewPostRepository(db, defaultTables, logger.Nop())

	_, err = repo.GetAllPosts(context.Background())
	require.Error(t, err)
	assert.True(t, exception.IsFatal(err))
	assert.Contains(t, err.Error(), "failed to read posts")

	_, err = repo.GetCommentsForPost(context.Background(), "P9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read comments for post P9")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_QueriesSelectOrderedColumns(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT `comment_id`,`post_id`,`timestamp`,`author`,`comment_texts`,`comment_priority`,`text_length` FROM `comments` WHERE post_id = ? ORDER BY comment_priority ASC,text_length ASC")).
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows([]string{"comment_id", "post_id", "comment_texts", "comment_priority", "text_length"}).
			AddRow("C1", "P1", "hello", 1, 5))

	repo := NewPostRepository(db, defaultTables, logger.Nop())
	comments, err := repo.GetCommentsForPost(context.Background(), "P1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "hello", comments[0].CommentTexts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChunkRepository_InsertChunk(t *testing.T) {
	db := testfixture.NewSQLiteDB(t)
	repo := NewChunkRepository(db, "facebook_chunks")
	txm := gormadapter.NewTransactionManager(db)
	ctx := context.Background()

	assert.True(t, repo.TableExists(ctx))

	tx, err := txm.Begin(ctx)
	require.NoError(t, err)
	ts := time.Date(2026, 1, 13, 10, 30, 0, 0, time.UTC)
	require.NoError(t, repo.InsertChunk(ctx, tx, entity.ChunkRecord{PostID: "P1", Timestamp: ts, FullChunk: "text", EngagementScore: 3}))
	require.NoError(t, repo.InsertChunk(ctx, tx, entity.ChunkRecord{PostID: "P2", FullChunk: "no ts"}))

	err = repo.InsertChunk(ctx, tx, entity.ChunkRecord{PostID: "P1", FullChunk: "dup"})
	require.Error(t, err)
	assert.True(t, exception.IsSkippable(err))
	assert.Contains(t, err.Error(), "failed to insert chunk for post P1")

	require.NoError(t, txm.Commit(tx))

	var rows []chunkRow
	require.NoError(t, db.Table("facebook_chunks").Order("post_id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "text", rows[0].FullChunk)
	assert.Equal(t, 3, rows[0].EngagementScore)
	require.NotNil(t, rows[0].Timestamp)
	assert.True(t, rows[0].Timestamp.Equal(ts))
	assert.Nil(t, rows[1].Timestamp, "zero timestamp is stored as NULL")
}

func TestChunkRepository_TableMissing(t *testing.T) {
	db := testfixture.NewSQLiteDB(t)
	repo := NewChunkRepository(db, "chunks_v2")
	assert.False(t, repo.TableExists(context.Background()))
}
