// Package chunk synthesizes the retrieval text for a post and its comments.
//
// A chunk is built from up to five sections, always in this order and joined by Delimiter:
//
//	metadata: [Post_id: P1 | Timestamp: 2026-01-13 10:30:00 | Author: JohnD]
//	Title: ...
//	Question (priority 1): ...
//	Important answer (priority 2): ...
//	Other comments (priority 3): ...
//
// Sections whose source is empty are omitted. The joined text is then cut to a word budget.
package chunk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tigerroll/postchunk/internal/domain/entity"
	"github.com/tigerroll/postchunk/pkg/batch/core/metrics"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

// Delimiter separates sections, and the individual comments inside "Other comments".
const Delimiter = "\n\n---\n\n"

const (
	authorPrefixRunes = 5
	timestampLayout   = "2006-01-02 15:04:05"
)

// Assemble builds the ChunkRecord for post. comments must already be ordered by
// (priority ASC, text length ASC); they are rendered in the order given.
// It has no side effects.
func Assemble(post entity.Post, comments []entity.Comment, wordBudget int) entity.ChunkRecord {
	rec, _ := assemble(post, comments, wordBudget)
	return rec
}

func assemble(post entity.Post, comments []entity.Comment, wordBudget int) (entity.ChunkRecord, bool) {
	text, truncated := Truncate(strings.Join(sections(post, comments), Delimiter), wordBudget)
	return entity.ChunkRecord{
		PostID:          post.PostID,
		Timestamp:       post.Timestamp,
		FullChunk:       text,
		EngagementScore: len(comments),
	}, truncated
}

func sections(post entity.Post, comments []entity.Comment) []string {
	parts := []string{
		fmt.Sprintf("metadata: [Post_id: %s | Timestamp: %s | Author: %s]",
			post.PostID, FormatTimestamp(post.Timestamp), authorPrefix(post.Author)),
	}
	if post.Title != "" {
		parts = append(parts, "Title: "+post.Title)
	}
	if post.PostTexts != "" {
		parts = append(parts, "Question (priority 1): "+post.PostTexts)
	}
	if len(comments) == 0 {
		return parts
	}
	if first := comments[0].CommentTexts; first != "" {
		parts = append(parts, "Important answer (priority 2): "+first)
	}
	var others []string
	for _, c := range comments[1:] {
		if c.CommentTexts != "" {
			others = append(others, c.CommentTexts)
		}
	}
	if len(others) > 0 {
		parts = append(parts, "Other comments (priority 3): "+strings.Join(others, Delimiter))
	}
	return parts
}

// Truncate keeps at most maxWords whitespace-separated words of text.
// Text within the budget is returned unchanged; truncated text is re-joined with single spaces.
// The second result reports whether words were dropped.
func Truncate(text string, maxWords int) (string, bool) {
	if text == "" {
		return "", false
	}
	if maxWords < 0 {
		maxWords = 0
	}
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text, false
	}
	return strings.Join(words[:maxWords], " "), true
}

// FormatTimestamp renders t as "2006-01-02 15:04:05", adding a microsecond fraction
// only when t has sub-second precision. The zero time renders as "".
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		return t.Format(timestampLayout + ".000000")
	}
	return t.Format(timestampLayout)
}

func authorPrefix(author string) string {
	r := []rune(author)
	if len(r) > authorPrefixRunes {
		return string(r[:authorPrefixRunes])
	}
	return author
}

// Assembler applies Assemble with a fixed word budget and reports what it did.
type Assembler struct {
	wordBudget int
	log        logger.Logger
	recorder   metrics.MetricRecorder
	build      buildFunc
}

type buildFunc func(entity.Post, []entity.Comment, int) (entity.ChunkRecord, bool)

// NewAssembler creates an Assembler producing chunks of at most wordBudget words.
func NewAssembler(wordBudget int, log logger.Logger, recorder metrics.MetricRecorder) *Assembler {
	return newAssembler(wordBudget, log, recorder, assemble)
}

func newAssembler(wordBudget int, log logger.Logger, recorder metrics.MetricRecorder, build buildFunc) *Assembler {
	return &Assembler{
		wordBudget: wordBudget,
		log:        log.Named("assembler"),
		recorder:   recorder,
		build:      build,
	}
}

// Assemble builds one chunk.
func (a *Assembler) Assemble(ctx context.Context, post entity.Post, comments []entity.Comment) entity.ChunkRecord {
	rec, truncated := a.build(post, comments, a.wordBudget)
	if truncated {
		a.log.Debugf("Chunk for post %s truncated to %d words.", post.PostID, a.wordBudget)
	}
	a.recorder.RecordChunkAssembled(ctx, truncated)
	return rec
}

// AssembleBatch builds one chunk per entry, in order. A post whose assembly panics is
// logged and left out of the result; the remaining posts are still assembled.
func (a *Assembler) AssembleBatch(ctx context.Context, batch []entity.PostComments) []entity.ChunkRecord {
	out := make([]entity.ChunkRecord, 0, len(batch))
	for _, pc := range batch {
		if rec, ok := a.safeAssemble(ctx, pc); ok {
			out = append(out, rec)
		}
	}
	a.log.Infof("Assembled %d chunks from %d posts.", len(out), len(batch))
	return out
}

func (a *Assembler) safeAssemble(ctx context.Context, pc entity.PostComments) (rec entity.ChunkRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Errorf("Failed to assemble chunk for post %s: %v", pc.Post.PostID, r)
			a.recorder.RecordAssemblySkipped(ctx, "panic")
			ok = false
		}
	}()
	return a.Assemble(ctx, pc.Post, pc.Comments), true
}
