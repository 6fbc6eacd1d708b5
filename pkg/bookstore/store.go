// ABOUTME: Store aggregates the hierarchy repositories over one client
// ABOUTME: Shared guard, validator, clock and logger live here

package bookstore

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/nainya/readerstore/pkg/docstore"
)

// Store is the hierarchy repository set. It holds no mutable state of its
// own and is safe for concurrent use when the client is.
type Store struct {
	client   docstore.Client
	guard    *Guard
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
	journal  bool

	Books                *BookRepository
	Volumes              *VolumeRepository
	Subjects             *SubjectRepository
	Chapters             *ChapterRepository
	Paragraphs           *ParagraphRepository
	VolumeAnnotations    *VolumeAnnotationRepository
	ChapterAnnotations   *ChapterAnnotationRepository
	ParagraphAnnotations *ParagraphAnnotationRepository
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger; the default discards.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithClock sets the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithoutJournal disables the pending-cascade journal.
func WithoutJournal() Option {
	return func(s *Store) { s.journal = false }
}

// New builds the repository set over client, which must serve Tables().
func New(client docstore.Client, opts ...Option) *Store {
	s := &Store{
		client:   client,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      zerolog.Nop(),
		now:      time.Now,
		journal:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "bookstore").Logger()
	s.guard = NewGuard(client, s.log)

	s.Books = &BookRepository{level: newLevel[Book](s, "book", BooksTable, bookCounters, engagementGauges)}
	s.Volumes = &VolumeRepository{level: newLevel[Volume](s, "volume", VolumesTable, volumeCounters, engagementGauges)}
	s.Subjects = &SubjectRepository{level: newLevel[Subject](s, "subject", SubjectsTable, subjectCounters, noGauges)}
	s.Chapters = &ChapterRepository{level: newLevel[Chapter](s, "chapter", ChaptersTable, chapterCounters, engagementGauges)}
	s.Paragraphs = &ParagraphRepository{level: newLevel[Paragraph](s, "paragraph", ParagraphsTable, paragraphCounters, engagementGauges)}
	s.VolumeAnnotations = &VolumeAnnotationRepository{level: newLevel[VolumeAnnotation](s, "volume annotation", VolumeAnnotationsTable, noteCounters, noGauges)}
	s.ChapterAnnotations = &ChapterAnnotationRepository{level: newLevel[ChapterAnnotation](s, "chapter annotation", ChapterAnnotationsTable, noteCounters, noGauges)}
	s.ParagraphAnnotations = &ParagraphAnnotationRepository{level: newLevel[ParagraphAnnotation](s, "paragraph annotation", ParagraphAnnotationsTable, noteCounters, noGauges)}
	return s
}

// Client returns the underlying document store client.
func (s *Store) Client() docstore.Client {
	return s.client
}

// Guard returns the uniqueness guard.
func (s *Store) Guard() *Guard {
	return s.guard
}

// clock returns whole UTC seconds so stored timestamps order as strings.
func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}
