package chunk

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/postchunk/internal/domain/entity"
	"github.com/tigerroll/postchunk/pkg/batch/core/metrics"
	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

func samplePost() entity.Post {
	return entity.Post{
		PostID:    "P1",
		Timestamp: time.Date(2026, 1, 13, 10, 30, 0, 0, time.UTC),
		Author:    "JohnDoe123",
		Title:     "T",
		PostTexts: "Q",
	}
}

func comments(texts ...string) []entity.Comment {
	out := make([]entity.Comment, len(texts))
	for i, text := range texts {
		out[i] = entity.Comment{
			CommentID:       "C" + string(rune('1'+i)),
			PostID:          "P1",
			CommentTexts:    text,
			CommentPriority: i + 1,
			TextLength:      len(text),
		}
	}
	return out
}

func TestAssemble_AllSections(t *testing.T) {
	cs := comments("A1", "A2", "A3")
	cs[2].CommentPriority = 2

	rec := Assemble(samplePost(), cs, 700)

	want := strings.Join([]string{
		"metadata: [Post_id: P1 | Timestamp: 2026-01-13 10:30:00 | Author: JohnD]",
		"Title: T",
		"Question (priority 1): Q",
		"Important answer (priority 2): A1",
		"Other comments (priority 3): A2" + Delimiter + "A3",
	}, Delimiter)
	assert.Equal(t, want, rec.FullChunk)
	assert.Equal(t, 3, rec.EngagementScore)
	assert.Equal(t, "P1", rec.PostID)
	assert.Equal(t, samplePost().Timestamp, rec.Timestamp)
}

func TestAssemble_NoComments(t *testing.T) {
	rec := Assemble(samplePost(), nil, 700)

	parts := strings.Split(rec.FullChunk, Delimiter)
	require.Len(t, parts, 3)
	assert.True(t, strings.HasPrefix(parts[0], "metadata: "))
	assert.Equal(t, "Title: T", parts[1])
	assert.Equal(t, "Question (priority 1): Q", parts[2])
	assert.Equal(t, 0, rec.EngagementScore)
}

func TestAssemble_SingleComment(t *testing.T) {
	rec := Assemble(samplePost(), comments("only answer"), 700)

	assert.Contains(t, rec.FullChunk, "Important answer (priority 2): only answer")
	assert.NotContains(t, rec.FullChunk, "Other comments")
	assert.Equal(t, 1, rec.EngagementScore)
}

func TestAssemble_TruncatesLongBody(t *testing.T) {
	post := samplePost()
	post.PostTexts = strings.TrimSpace(strings.Repeat("word ", 500))

	rec := Assemble(post, nil, 50)

	assert.Len(t, strings.Fields(rec.FullChunk), 50)
	assert.NotContains(t, rec.FullChunk, "\n", "truncated text is re-joined with single spaces")
	assert.True(t, strings.HasPrefix(rec.FullChunk, "metadata: [Post_id: P1"))
}

func TestAssemble_SectionPresenceFollowsInput(t *testing.T) {
	full := Assemble(samplePost(), comments("A1", "A2"), 700).FullChunk
	require.Len(t, strings.Split(full, Delimiter), 5)

	noTitle := samplePost()
	noTitle.Title = ""
	got := Assemble(noTitle, comments("A1", "A2"), 700).FullChunk
	assert.NotContains(t, got, "Title:")
	assert.Len(t, strings.Split(got, Delimiter), 4)

	noBody := samplePost()
	noBody.PostTexts = ""
	got = Assemble(noBody, comments("A1", "A2"), 700).FullChunk
	assert.NotContains(t, got, "Question (priority 1)")
	assert.Contains(t, got, "Title: T")
	assert.Len(t, strings.Split(got, Delimiter), 4)
}

func TestAssemble_EmptyCommentTexts(t *testing.T) {
	rec := Assemble(samplePost(), comments("", "B"), 700)
	assert.NotContains(t, rec.FullChunk, "Important answer")
	assert.Contains(t, rec.FullChunk, "Other comments (priority 3): B")
	assert.Equal(t, 2, rec.EngagementScore)

	rec = Assemble(samplePost(), comments("", "", ""), 700)
	assert.NotContains(t, rec.FullChunk, "Important answer")
	assert.NotContains(t, rec.FullChunk, "Other comments")
	assert.Equal(t, 3, rec.EngagementScore, "score counts comments, not rendered texts")
}

func TestAssemble_DoesNotReorderComments(t *testing.T) {
	cs := []entity.Comment{
		{CommentTexts: "third", CommentPriority: 3, TextLength: 5},
		{CommentTexts: "first", CommentPriority: 1, TextLength: 5},
		{CommentTexts: "second", CommentPriority: 2, TextLength: 6},
	}

	rec := Assemble(samplePost(), cs, 700)

	assert.Contains(t, rec.FullChunk, "Important answer (priority 2): third")
	assert.Contains(t, rec.FullChunk, "Other comments (priority 3): first"+Delimiter+"second")
	assert.Equal(t, "third", cs[0].CommentTexts, "input slice is left untouched")
}

func TestAssemble_Author(t *testing.T) {
	tests := []struct {
		author string
		want   string
	}{
		{"JohnDoe123", "Author: JohnD]"},
		{"VeryLongAuthorName", "Author: VeryL]"},
		{"Bob", "Author: Bob]"},
		{"", "Author: ]"},
		{"ÉmileZola", "Author: Émile]"},
	}
	for _, tt := range tests {
		post := samplePost()
		post.Author = tt.author
		assert.Contains(t, Assemble(post, nil, 700).FullChunk, tt.want, tt.author)
	}
}

func TestAssemble_WordBudgetBound(t *testing.T) {
	cs := comments("a long first answer with several words", "another reply", "and one more")
	untruncated := Assemble(samplePost(), cs, 10000).FullChunk
	total := len(strings.Fields(untruncated))

	for budget := 0; budget <= total+2; budget++ {
		got := Assemble(samplePost(), cs, budget).FullChunk
		assert.LessOrEqual(t, len(strings.Fields(got)), budget)
		if total <= budget {
			assert.Equal(t, untruncated, got, "budget %d", budget)
		}
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	cs := comments("A1", "A2")
	assert.Equal(t, Assemble(samplePost(), cs, 20), Assemble(samplePost(), cs, 20))
}

func TestTruncate(t *testing.T) {
	text := "one  two\n\n---\n\nthree"

	got, truncated := Truncate(text, 4)
	assert.Equal(t, text, got)
	assert.False(t, truncated)

	got, truncated = Truncate(text, 3)
	assert.Equal(t, "one two ---", got)
	assert.True(t, truncated)

	got, truncated = Truncate("", 5)
	assert.Equal(t, "", got)
	assert.False(t, truncated)

	got, truncated = Truncate("a b", -1)
	assert.Equal(t, "", got)
	assert.True(t, truncated)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "", FormatTimestamp(time.Time{}))
	assert.Equal(t, "2026-01-13 10:30:00", FormatTimestamp(time.Date(2026, 1, 13, 10, 30, 0, 0, time.UTC)))
	assert.Equal(t, "2026-01-13 10:30:00.123456",
		FormatTimestamp(time.Date(2026, 1, 13, 10, 30, 0, 123456789, time.UTC)))
}

type skipCounter struct {
	metrics.NoOpMetricRecorder
	skipped   int
	truncated int
}

func (s *skipCounter) RecordAssemblySkipped(ctx context.Context, reason string) { s.skipped++ }
func (s *skipCounter) RecordChunkAssembled(ctx context.Context, truncated bool) {
	if truncated {
		s.truncated++
	}
}

func TestAssembler_AssembleBatchSkipsPanickingPost(t *testing.T) {
	var buf bytes.Buffer
	rec := &skipCounter{}
	a := newAssembler(700, logger.New(logger.LevelDebug, &buf), rec, func(p entity.Post, cs []entity.Comment, budget int) (entity.ChunkRecord, bool) {
		if p.PostID == "P2" {
			panic("malformed post")
		}
		return assemble(p, cs, budget)
	})

	batch := []entity.PostComments{
		{Post: entity.Post{PostID: "P1"}},
		{Post: entity.Post{PostID: "P2"}},
		{Post: entity.Post{PostID: "P3"}, Comments: comments("x")},
	}
	out := a.AssembleBatch(context.Background(), batch)

	require.Len(t, out, 2)
	assert.Equal(t, "P1", out[0].PostID)
	assert.Equal(t, "P3", out[1].PostID)
	assert.Equal(t, 1, out[1].EngagementScore)
	assert.Equal(t, 1, rec.skipped)
	assert.Contains(t, buf.String(), "Failed to assemble chunk for post P2: malformed post")
}

func TestAssembler_ReportsTruncation(t *testing.T) {
	rec := &skipCounter{}
	a := NewAssembler(5, logger.Nop(), rec)
	assert.Equal(t, 5, a.wordBudget)

	out := a.Assemble(context.Background(), samplePost(), comments("A1"))

	assert.Len(t, strings.Fields(out.FullChunk), 5)
	assert.Equal(t, 1, rec.truncated)
}
