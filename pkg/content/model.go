// ABOUTME: Post, Comment and Reply documents scored by the quality engine
// ABOUTME: Counters and ContentQuality change only through atomic updates

package content

import (
	"time"

	"github.com/nainya/readerstore/pkg/docstore"
	"github.com/nainya/readerstore/pkg/quality"
)

// Status is the moderation state of a content item.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusHidden   Status = "hidden"
)

// Votes and abuse reports are shared by every kind.
type Votes struct {
	YesVotesCount     int64
	NoVotesCount      int64
	AbuseReportsCount int64
}

// Post is a top-level content item.
type Post struct {
	Id                  string
	AuthorId            string   `validate:"required"`
	Title               string   `validate:"required,max=512"`
	Body                string   `validate:"max=65536"`
	Tags                []string `validate:"max=32,dive,required,max=64"`
	Status              Status   `validate:"omitempty,oneof=pending approved rejected hidden"`
	CreatedDate         time.Time
	ModifiedDate        time.Time
	PublishedDate       *time.Time
	ViewsCount          int64
	LikesCount          int64
	CommentsCount       int64
	BookmarksCount      int64
	SharesCount         int64
	RatingsCount        int64
	RatingsAverageValue float64
	Votes
	IsFeatured     bool
	ContentQuality float64
}

func (p *Post) ident() string      { return p.Id }
func (p *Post) setIdent(id string) { p.Id = id }

func (p *Post) reset(now time.Time) {
	*p = Post{
		Id: p.Id, AuthorId: p.AuthorId, Title: p.Title, Body: p.Body, Tags: p.Tags,
		Status: p.Status, PublishedDate: p.PublishedDate, IsFeatured: p.IsFeatured,
		CreatedDate: now, ModifiedDate: now,
	}
}

func (p *Post) status() Status          { return p.Status }
func (p *Post) setStatus(s Status)      { p.Status = s }
func (p *Post) created() time.Time      { return p.CreatedDate }
func (p *Post) setModified(t time.Time) { p.ModifiedDate = t }

func (p *Post) adopt(existing *Post) {
	p.Id = existing.Id
	p.AuthorId = existing.AuthorId
	p.CreatedDate = existing.CreatedDate
	p.ViewsCount = existing.ViewsCount
	p.LikesCount = existing.LikesCount
	p.CommentsCount = existing.CommentsCount
	p.BookmarksCount = existing.BookmarksCount
	p.SharesCount = existing.SharesCount
	p.RatingsCount = existing.RatingsCount
	p.RatingsAverageValue = existing.RatingsAverageValue
	p.Votes = existing.Votes
	p.ContentQuality = existing.ContentQuality
}

func (p *Post) mutable() []docstore.Expr {
	return []docstore.Expr{
		docstore.Set("Title", p.Title),
		docstore.Set("Body", p.Body),
		docstore.Set("Tags", p.Tags),
		docstore.Set("Status", string(p.Status)),
		docstore.Set("PublishedDate", p.PublishedDate),
		docstore.Set("IsFeatured", p.IsFeatured),
	}
}

// Signals maps the post onto the scoring inputs.
func (p *Post) Signals() quality.PostSignals {
	return quality.PostSignals{
		Views:          p.ViewsCount,
		Likes:          p.LikesCount,
		Comments:       p.CommentsCount,
		Bookmarks:      p.BookmarksCount,
		Shares:         p.SharesCount,
		YesVotes:       p.YesVotesCount,
		NoVotes:        p.NoVotesCount,
		Ratings:        p.RatingsCount,
		RatingsAverage: p.RatingsAverageValue,
		AbuseReports:   p.AbuseReportsCount,
		Tags:           len(p.Tags),
		Featured:       p.IsFeatured,
		Published:      p.PublishedDate,
	}
}

// Comment belongs to a post.
type Comment struct {
	Id           string
	PostId       string `validate:"required"`
	AuthorId     string `validate:"required"`
	Body         string `validate:"required,max=16384"`
	Status       Status `validate:"omitempty,oneof=pending approved rejected hidden"`
	CreatedDate  time.Time
	ModifiedDate time.Time
	ViewsCount   int64
	LikesCount   int64
	RepliesCount int64
	Votes
	IsFeatured     bool
	ContentQuality float64
}

func (c *Comment) ident() string      { return c.Id }
func (c *Comment) setIdent(id string) { c.Id = id }

func (c *Comment) reset(now time.Time) {
	*c = Comment{
		Id: c.Id, PostId: c.PostId, AuthorId: c.AuthorId, Body: c.Body,
		Status: c.Status, IsFeatured: c.IsFeatured,
		CreatedDate: now, ModifiedDate: now,
	}
}

func (c *Comment) status() Status          { return c.Status }
func (c *Comment) setStatus(s Status)      { c.Status = s }
func (c *Comment) created() time.Time      { return c.CreatedDate }
func (c *Comment) setModified(t time.Time) { c.ModifiedDate = t }

func (c *Comment) adopt(existing *Comment) {
	c.Id = existing.Id
	c.PostId = existing.PostId
	c.AuthorId = existing.AuthorId
	c.CreatedDate = existing.CreatedDate
	c.ViewsCount = existing.ViewsCount
	c.LikesCount = existing.LikesCount
	c.RepliesCount = existing.RepliesCount
	c.Votes = existing.Votes
	c.ContentQuality = existing.ContentQuality
}

func (c *Comment) mutable() []docstore.Expr {
	return []docstore.Expr{
		docstore.Set("Body", c.Body),
		docstore.Set("Status", string(c.Status)),
		docstore.Set("IsFeatured", c.IsFeatured),
	}
}

// Signals maps the comment onto the scoring inputs.
func (c *Comment) Signals() quality.CommentSignals {
	created := c.CreatedDate
	return quality.CommentSignals{
		Views:        c.ViewsCount,
		Likes:        c.LikesCount,
		Replies:      c.RepliesCount,
		YesVotes:     c.YesVotesCount,
		NoVotes:      c.NoVotesCount,
		AbuseReports: c.AbuseReportsCount,
		Featured:     c.IsFeatured,
		Created:      &created,
	}
}

// Reply answers a comment.
type Reply struct {
	Id           string
	CommentId    string `validate:"required"`
	PostId       string
	AuthorId     string `validate:"required"`
	Body         string `validate:"required,max=16384"`
	Status       Status `validate:"omitempty,oneof=pending approved rejected hidden"`
	CreatedDate  time.Time
	ModifiedDate time.Time
	LikesCount   int64
	Votes
	ContentQuality float64
}

func (r *Reply) ident() string      { return r.Id }
func (r *Reply) setIdent(id string) { r.Id = id }

func (r *Reply) reset(now time.Time) {
	*r = Reply{
		Id: r.Id, CommentId: r.CommentId, PostId: r.PostId, AuthorId: r.AuthorId,
		Body: r.Body, Status: r.Status,
		CreatedDate: now, ModifiedDate: now,
	}
}

func (r *Reply) status() Status          { return r.Status }
func (r *Reply) setStatus(s Status)      { r.Status = s }
func (r *Reply) created() time.Time      { return r.CreatedDate }
func (r *Reply) setModified(t time.Time) { r.ModifiedDate = t }

func (r *Reply) adopt(existing *Reply) {
	r.Id = existing.Id
	r.CommentId = existing.CommentId
	r.PostId = existing.PostId
	r.AuthorId = existing.AuthorId
	r.CreatedDate = existing.CreatedDate
	r.LikesCount = existing.LikesCount
	r.Votes = existing.Votes
	r.ContentQuality = existing.ContentQuality
}

func (r *Reply) mutable() []docstore.Expr {
	return []docstore.Expr{
		docstore.Set("Body", r.Body),
		docstore.Set("Status", string(r.Status)),
	}
}

// Signals maps the reply onto the scoring inputs.
func (r *Reply) Signals() quality.ReplySignals {
	created := r.CreatedDate
	return quality.ReplySignals{
		Likes:        r.LikesCount,
		YesVotes:     r.YesVotesCount,
		NoVotes:      r.NoVotesCount,
		AbuseReports: r.AbuseReportsCount,
		Created:      &created,
	}
}
