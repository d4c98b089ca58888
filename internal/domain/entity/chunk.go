package entity

import "time"

// ChunkRecord is the retrieval-ready text synthesized from one post and its comments.
// It is created once by the assembler and never modified afterwards.
type ChunkRecord struct {
	PostID    string
	Timestamp time.Time
	// FullChunk never exceeds the word budget it was assembled with.
	FullChunk string
	// EngagementScore is the number of comments passed to the assembler,
	// whether or not their text was rendered.
	EngagementScore int
}
