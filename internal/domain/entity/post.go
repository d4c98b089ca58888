// Package entity holds the immutable records flowing through the chunk pipeline.
package entity

import "time"

// Post is a single social-media post read from the source table.
// A zero Timestamp means the source column was NULL.
type Post struct {
	PostID     string    `gorm:"column:post_id;primaryKey"`
	Timestamp  time.Time `gorm:"column:timestamp"`
	Author     string    `gorm:"column:author"`
	Title      string    `gorm:"column:title"`
	PostTexts  string    `gorm:"column:post_texts"`
	TextLength int       `gorm:"column:text_length"`
}

// Comment is a reply to a Post.
// Lower CommentPriority values are more important.
type Comment struct {
	CommentID       string    `gorm:"column:comment_id;primaryKey"`
	PostID          string    `gorm:"column:post_id"`
	Timestamp       time.Time `gorm:"column:timestamp"`
	Author          string    `gorm:"column:author"`
	CommentTexts    string    `gorm:"column:comment_texts"`
	CommentPriority int       `gorm:"column:comment_priority"`
	TextLength      int       `gorm:"column:text_length"`
}

// PostComments pairs a post with its comments, already ordered by
// (CommentPriority ASC, TextLength ASC).
type PostComments struct {
	Post     Post
	Comments []Comment
}
