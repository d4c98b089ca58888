package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/postchunk/internal/domain/entity"
	tx "github.com/tigerroll/postchunk/pkg/batch/core/tx"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/exception"
)

// ChunkRepository is the write port.
type ChunkRepository interface {
	// InsertChunk inserts rec as a single row inside t.
	// Failures are returned as skippable errors.
	InsertChunk(ctx context.Context, t tx.Tx, rec entity.ChunkRecord) error
	// TableExists reports whether the chunk table exists.
	TableExists(ctx context.Context) bool
}

// chunkRow is the persisted shape of a ChunkRecord. A zero timestamp is stored as NULL.
type chunkRow struct {
	PostID          string     `gorm:"column:post_id"`
	Timestamp       *time.Time `gorm:"column:timestamp"`
	FullChunk       string     `gorm:"column:full_chunk"`
	EngagementScore int        `gorm:"column:engagement_score"`
}

func toRow(rec entity.ChunkRecord) *chunkRow {
	row := &chunkRow{
		PostID:          rec.PostID,
		FullChunk:       rec.FullChunk,
		EngagementScore: rec.EngagementScore,
	}
	if !rec.Timestamp.IsZero() {
		ts := rec.Timestamp
		row.Timestamp = &ts
	}
	return row
}

// GormChunkRepository implements ChunkRepository.
type GormChunkRepository struct {
	db    *gorm.DB
	table string
}

// NewChunkRepository creates a GormChunkRepository. db is only used for the existence check;
// inserts go through the transaction passed to InsertChunk.
func NewChunkRepository(db *gorm.DB, table string) *GormChunkRepository {
	return &GormChunkRepository{db: db, table: table}
}

// InsertChunk implements ChunkRepository.
func (r *GormChunkRepository) InsertChunk(ctx context.Context, t tx.Tx, rec entity.ChunkRecord) error {
	if _, err := t.ExecuteInsert(ctx, r.table, toRow(rec)); err != nil {
		return exception.NewBatchError(exception.ModuleWriter, "failed to insert chunk for post "+rec.PostID, err, true, false)
	}
	return nil
}

// TableExists implements ChunkRepository.
func (r *GormChunkRepository) TableExists(ctx context.Context) bool {
	return r.db.WithContext(ctx).Migrator().HasTable(r.table)
}

var _ ChunkRepository = (*GormChunkRepository)(nil)
