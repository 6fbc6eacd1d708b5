// ABOUTME: Tables, secondary indexes and counter sets of the hierarchy
// ABOUTME: Every backend is opened with Tables() to create the indexes

package bookstore

import "github.com/nainya/readerstore/pkg/docstore"

// Table names.
const (
	BooksTable                = "Books"
	VolumesTable              = "Volumes"
	SubjectsTable             = "Subjects"
	ChaptersTable             = "Chapters"
	ParagraphsTable           = "Paragraphs"
	VolumeAnnotationsTable    = "VolumeAnnotations"
	ChapterAnnotationsTable   = "ChapterAnnotations"
	ParagraphAnnotationsTable = "ParagraphAnnotations"
	PendingCascadesTable      = "PendingCascades"
)

// Index names. parent_number is (direct parent id, Number); path_number is
// (BookId, ancestor numbers..., Number).
const (
	ParentNumberIndex = "parent_number"
	PathNumberIndex   = "path_number"
	BookIndex         = "book_id"
	VolumeIndex       = "volume_id"
	ChapterIndex      = "chapter_id"
	ParagraphIndex    = "paragraph_id"
	SubjectIndex      = "subject_id"
	EntityIndex       = "entity"
)

func idx(name string, fields ...string) docstore.IndexDef {
	return docstore.IndexDef{Name: name, Fields: fields}
}

// Tables returns the hierarchy tables with their indexes.
func Tables() []docstore.Table {
	return []docstore.Table{
		{Name: BooksTable},
		{Name: VolumesTable, Indexes: []docstore.IndexDef{
			idx(ParentNumberIndex, "BookId", "Number"),
			idx(BookIndex, "BookId"),
		}},
		{Name: SubjectsTable, Indexes: []docstore.IndexDef{
			idx(ParentNumberIndex, "VolumeId", "Number"),
			idx(PathNumberIndex, "BookId", "VolumeNumber", "Number"),
			idx(BookIndex, "BookId"),
			idx(VolumeIndex, "VolumeId"),
		}},
		{Name: ChaptersTable, Indexes: []docstore.IndexDef{
			idx(ParentNumberIndex, "VolumeId", "Number"),
			idx(PathNumberIndex, "BookId", "VolumeNumber", "Number"),
			idx(BookIndex, "BookId"),
			idx(VolumeIndex, "VolumeId"),
		}},
		{Name: ParagraphsTable, Indexes: []docstore.IndexDef{
			idx(ParentNumberIndex, "ChapterId", "Number"),
			idx(PathNumberIndex, "BookId", "VolumeNumber", "ChapterNumber", "Number"),
			idx(BookIndex, "BookId"),
			idx(VolumeIndex, "VolumeId"),
			idx(ChapterIndex, "ChapterId"),
			idx(SubjectIndex, "SubjectId"),
		}},
		{Name: VolumeAnnotationsTable, Indexes: []docstore.IndexDef{
			idx(ParentNumberIndex, "VolumeId", "Number"),
			idx(PathNumberIndex, "BookId", "VolumeNumber", "Number"),
			idx(BookIndex, "BookId"),
			idx(VolumeIndex, "VolumeId"),
		}},
		{Name: ChapterAnnotationsTable, Indexes: []docstore.IndexDef{
			idx(ParentNumberIndex, "ChapterId", "Number"),
			idx(PathNumberIndex, "BookId", "VolumeNumber", "ChapterNumber", "Number"),
			idx(BookIndex, "BookId"),
			idx(VolumeIndex, "VolumeId"),
			idx(ChapterIndex, "ChapterId"),
		}},
		{Name: ParagraphAnnotationsTable, Indexes: []docstore.IndexDef{
			idx(ParentNumberIndex, "ParagraphId", "Number"),
			idx(PathNumberIndex, "BookId", "VolumeNumber", "ChapterNumber", "ParagraphNumber", "Number"),
			idx(BookIndex, "BookId"),
			idx(VolumeIndex, "VolumeId"),
			idx(ChapterIndex, "ChapterId"),
			idx(ParagraphIndex, "ParagraphId"),
		}},
		{Name: PendingCascadesTable, Indexes: []docstore.IndexDef{
			idx(EntityIndex, "Level", "EntityId"),
		}},
	}
}

func counterSet(fields ...string) map[string]bool {
	m := make(map[string]bool, len(fields))
	for _, f := range fields {
		m[f] = true
	}
	return m
}

var (
	bookCounters      = counterSet(append(engagementCounters, "VolumesCount", "ChaptersCount", "ParagraphsCount")...)
	volumeCounters    = counterSet(append(engagementCounters, "ChaptersCount", "SubjectsCount", "AnnotationsCount")...)
	subjectCounters   = counterSet("ParagraphsCount")
	chapterCounters   = counterSet(append(engagementCounters, "ParagraphsCount", "AnnotationsCount")...)
	paragraphCounters = counterSet(append(engagementCounters, "AnnotationsCount")...)
	noteCounters      = counterSet("LikesCount")

	engagementGauges = counterSet("RatingsAverageValue")
	noGauges         = counterSet()
)

// Schema returns the docstore schema of Tables().
func Schema() *docstore.Schema {
	return docstore.MustSchema(Tables()...)
}
