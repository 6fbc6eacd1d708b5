// ABOUTME: Tables and indexes of the content family
// ABOUTME: Status lookups back the quality recompute walk and top lists

package content

import "github.com/nainya/readerstore/pkg/docstore"

const (
	PostsTable    = "Posts"
	CommentsTable = "Comments"
	RepliesTable  = "Replies"
)

const (
	AuthorIndex  = "author_id"
	StatusIndex  = "status"
	PostIndex    = "post_id"
	CommentIndex = "comment_id"
)

// Tables returns the content tables with their indexes.
func Tables() []docstore.Table {
	common := func(extra ...docstore.IndexDef) []docstore.IndexDef {
		return append([]docstore.IndexDef{
			{Name: AuthorIndex, Fields: []string{"AuthorId"}},
			{Name: StatusIndex, Fields: []string{"Status"}},
		}, extra...)
	}
	return []docstore.Table{
		{Name: PostsTable, Indexes: common()},
		{Name: CommentsTable, Indexes: common(
			docstore.IndexDef{Name: PostIndex, Fields: []string{"PostId"}},
		)},
		{Name: RepliesTable, Indexes: common(
			docstore.IndexDef{Name: PostIndex, Fields: []string{"PostId"}},
			docstore.IndexDef{Name: CommentIndex, Fields: []string{"CommentId"}},
		)},
	}
}

// Schema returns the docstore schema of Tables().
func Schema() *docstore.Schema {
	return docstore.MustSchema(Tables()...)
}

func fieldSet(fields ...string) map[string]bool {
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f] = true
	}
	return m
}

var (
	voteCounters = []string{"YesVotesCount", "NoVotesCount", "AbuseReportsCount"}

	postCounters = fieldSet(append(voteCounters,
		"ViewsCount", "LikesCount", "CommentsCount", "BookmarksCount", "SharesCount", "RatingsCount")...)
	commentCounters = fieldSet(append(voteCounters, "ViewsCount", "LikesCount", "RepliesCount")...)
	replyCounters   = fieldSet(append(voteCounters, "LikesCount")...)
)
