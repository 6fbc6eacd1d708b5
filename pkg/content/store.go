// ABOUTME: Store aggregates the post, comment and reply repositories
// ABOUTME: Shares the client, validator, clock and logger

package content

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nainya/readerstore/pkg/docstore"
)

// Store is the content repository set.
type Store struct {
	client   docstore.Client
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string

	Posts    *PostRepository
	Comments *CommentRepository
	Replies  *ReplyRepository
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger; the default discards.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithClock sets the time source for dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs replaces the UUID generator used for new items.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New builds the content repositories over client, which must serve Tables().
func New(client docstore.Client, opts ...Option) *Store {
	s := &Store{
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      zerolog.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "content").Logger()
	s.Posts = &PostRepository{repo: repo[Post, *Post]{s: s, kind: "post", table: PostsTable, counters: postCounters}}
	s.Comments = &CommentRepository{repo: repo[Comment, *Comment]{s: s, kind: "comment", table: CommentsTable, counters: commentCounters}}
	s.Replies = &ReplyRepository{repo: repo[Reply, *Reply]{s: s, kind: "reply", table: RepliesTable, counters: replyCounters}}
	return s
}

// Client returns the underlying document store client.
func (s *Store) Client() docstore.Client { return s.client }

func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}
