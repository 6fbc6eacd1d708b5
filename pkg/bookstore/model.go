// ABOUTME: Hierarchy entities: Book, Volume, Subject, Chapter, Paragraph
// ABOUTME: and the Volume, Chapter and Paragraph annotation twins

package bookstore

import (
	"time"

	"github.com/nainya/readerstore/pkg/docstore"
)

// Timestamps are set by the repositories from their clock.
type Timestamps struct {
	CreatedDate  time.Time
	ModifiedDate time.Time
}

func (t *Timestamps) timestamps() (time.Time, time.Time) {
	return t.CreatedDate, t.ModifiedDate
}

func (t *Timestamps) setTimestamps(created, modified time.Time) {
	t.CreatedDate = created
	t.ModifiedDate = modified
}

// Engagement holds the reader-activity counters shared by books, volumes,
// chapters and paragraphs. They change only through IncrementCounter and
// SetCounter.
type Engagement struct {
	ViewsCount          int64
	BookmarksCount      int64
	CommentsCount       int64
	LikesCount          int64
	RatingsCount        int64
	RatingsAverageValue float64
	SharesCount         int64
}

var engagementCounters = []string{
	"ViewsCount", "BookmarksCount", "CommentsCount", "LikesCount", "RatingsCount", "SharesCount",
}

// Book is the root of the hierarchy.
type Book struct {
	Id          string
	Title       string   `validate:"required,max=512"`
	Description string   `validate:"max=8192"`
	Authors     []string `validate:"dive,required"`
	Language    string   `validate:"omitempty,bcp47_language_tag"`
	Engagement
	VolumesCount    int64
	ChaptersCount   int64
	ParagraphsCount int64
	Timestamps
}

func (b *Book) ident() string      { return b.Id }
func (b *Book) setIdent(id string) { b.Id = id }

func (b *Book) zeroCounters() {
	b.Engagement = Engagement{}
	b.VolumesCount, b.ChaptersCount, b.ParagraphsCount = 0, 0, 0
}

func (b *Book) adopt(existing *Book) {
	b.Id = existing.Id
	b.Engagement = existing.Engagement
	b.VolumesCount = existing.VolumesCount
	b.ChaptersCount = existing.ChaptersCount
	b.ParagraphsCount = existing.ParagraphsCount
	b.CreatedDate = existing.CreatedDate
}

func (b *Book) mutable() []docstore.Expr {
	return []docstore.Expr{
		docstore.Set("Title", b.Title),
		docstore.Set("Description", b.Description),
		docstore.Set("Authors", b.Authors),
		docstore.Set("Language", b.Language),
	}
}

// Volume is a numbered part of a book.
type Volume struct {
	Id          string
	BookId      string `validate:"required"`
	Number      int    `validate:"gte=1"`
	Title       string `validate:"max=512"`
	Description string `validate:"max=8192"`
	Engagement
	ChaptersCount    int64
	SubjectsCount    int64
	AnnotationsCount int64
	Timestamps
}

func (v *Volume) ident() string      { return v.Id }
func (v *Volume) setIdent(id string) { v.Id = id }

func (v *Volume) zeroCounters() {
	v.Engagement = Engagement{}
	v.ChaptersCount, v.SubjectsCount, v.AnnotationsCount = 0, 0, 0
}

func (v *Volume) adopt(existing *Volume) {
	v.Id = existing.Id
	v.BookId = existing.BookId
	v.Number = existing.Number
	v.Engagement = existing.Engagement
	v.ChaptersCount = existing.ChaptersCount
	v.SubjectsCount = existing.SubjectsCount
	v.AnnotationsCount = existing.AnnotationsCount
	v.CreatedDate = existing.CreatedDate
}

func (v *Volume) mutable() []docstore.Expr {
	return []docstore.Expr{
		docstore.Set("Title", v.Title),
		docstore.Set("Description", v.Description),
	}
}

// Subject groups paragraphs of one volume across chapters.
type Subject struct {
	Id           string
	BookId       string
	VolumeId     string `validate:"required"`
	VolumeNumber int
	Number       int    `validate:"gte=1"`
	Title        string `validate:"required,max=512"`
	Description  string `validate:"max=8192"`

	ParagraphsCount int64
	Timestamps
}

func (s *Subject) ident() string      { return s.Id }
func (s *Subject) setIdent(id string) { s.Id = id }
func (s *Subject) zeroCounters()      { s.ParagraphsCount = 0 }

func (s *Subject) adopt(existing *Subject) {
	s.Id = existing.Id
	s.BookId = existing.BookId
	s.VolumeId = existing.VolumeId
	s.VolumeNumber = existing.VolumeNumber
	s.Number = existing.Number
	s.ParagraphsCount = existing.ParagraphsCount
	s.CreatedDate = existing.CreatedDate
}

func (s *Subject) mutable() []docstore.Expr {
	return []docstore.Expr{
		docstore.Set("Title", s.Title),
		docstore.Set("Description", s.Description),
	}
}

// Chapter is a numbered part of a volume.
type Chapter struct {
	Id           string
	BookId       string
	VolumeId     string `validate:"required"`
	VolumeNumber int
	Number       int    `validate:"gte=1"`
	Title        string `validate:"max=512"`
	Engagement
	ParagraphsCount  int64
	AnnotationsCount int64
	Timestamps
}

func (c *Chapter) ident() string      { return c.Id }
func (c *Chapter) setIdent(id string) { c.Id = id }

func (c *Chapter) zeroCounters() {
	c.Engagement = Engagement{}
	c.ParagraphsCount, c.AnnotationsCount = 0, 0
}

func (c *Chapter) adopt(existing *Chapter) {
	c.Id = existing.Id
	c.BookId = existing.BookId
	c.VolumeId = existing.VolumeId
	c.VolumeNumber = existing.VolumeNumber
	c.Number = existing.Number
	c.Engagement = existing.Engagement
	c.ParagraphsCount = existing.ParagraphsCount
	c.AnnotationsCount = existing.AnnotationsCount
	c.CreatedDate = existing.CreatedDate
}

func (c *Chapter) mutable() []docstore.Expr {
	return []docstore.Expr{docstore.Set("Title", c.Title)}
}

// Paragraph is a numbered block of text in a chapter. SubjectId optionally
// files it under a subject of the same volume.
type Paragraph struct {
	Id            string
	BookId        string
	VolumeId      string
	ChapterId     string `validate:"required"`
	VolumeNumber  int
	ChapterNumber int
	Number        int     `validate:"gte=1"`
	SubjectId     *string `validate:"omitempty,min=1"`
	Text          string  `validate:"required"`
	Engagement
	AnnotationsCount int64
	Timestamps
}

func (p *Paragraph) ident() string      { return p.Id }
func (p *Paragraph) setIdent(id string) { p.Id = id }

func (p *Paragraph) zeroCounters() {
	p.Engagement = Engagement{}
	p.AnnotationsCount = 0
}

func (p *Paragraph) adopt(existing *Paragraph) {
	p.Id = existing.Id
	p.BookId = existing.BookId
	p.VolumeId = existing.VolumeId
	p.ChapterId = existing.ChapterId
	p.VolumeNumber = existing.VolumeNumber
	p.ChapterNumber = existing.ChapterNumber
	p.Number = existing.Number
	p.Engagement = existing.Engagement
	p.AnnotationsCount = existing.AnnotationsCount
	p.CreatedDate = existing.CreatedDate
}

func (p *Paragraph) mutable() []docstore.Expr {
	return []docstore.Expr{
		docstore.Set("Text", p.Text),
		docstore.Set("SubjectId", p.SubjectId),
	}
}

// Note is the body shared by every annotation kind.
type Note struct {
	AuthorId   string `validate:"required"`
	Text       string `validate:"required,max=16384"`
	LikesCount int64
	Timestamps
}

func (n *Note) setNote(src Note) {
	n.AuthorId = src.AuthorId
	n.Text = src.Text
}

func (n *Note) mutable() []docstore.Expr {
	return []docstore.Expr{
		docstore.Set("AuthorId", n.AuthorId),
		docstore.Set("Text", n.Text),
	}
}

// VolumeAnnotation annotates a volume.
type VolumeAnnotation struct {
	Id           string
	BookId       string
	VolumeId     string `validate:"required"`
	VolumeNumber int
	Number       int `validate:"gte=1"`
	Note
}

func (a *VolumeAnnotation) ident() string      { return a.Id }
func (a *VolumeAnnotation) setIdent(id string) { a.Id = id }
func (a *VolumeAnnotation) zeroCounters()      { a.LikesCount = 0 }

func (a *VolumeAnnotation) adopt(existing *VolumeAnnotation) {
	a.Id = existing.Id
	a.BookId = existing.BookId
	a.VolumeId = existing.VolumeId
	a.VolumeNumber = existing.VolumeNumber
	a.Number = existing.Number
	a.LikesCount = existing.LikesCount
	a.CreatedDate = existing.CreatedDate
}

// ChapterAnnotation annotates a chapter.
type ChapterAnnotation struct {
	Id            string
	BookId        string
	VolumeId      string
	ChapterId     string `validate:"required"`
	VolumeNumber  int
	ChapterNumber int
	Number        int `validate:"gte=1"`
	Note
}

func (a *ChapterAnnotation) ident() string      { return a.Id }
func (a *ChapterAnnotation) setIdent(id string) { a.Id = id }
func (a *ChapterAnnotation) zeroCounters()      { a.LikesCount = 0 }

func (a *ChapterAnnotation) adopt(existing *ChapterAnnotation) {
	a.Id = existing.Id
	a.BookId = existing.BookId
	a.VolumeId = existing.VolumeId
	a.ChapterId = existing.ChapterId
	a.VolumeNumber = existing.VolumeNumber
	a.ChapterNumber = existing.ChapterNumber
	a.Number = existing.Number
	a.LikesCount = existing.LikesCount
	a.CreatedDate = existing.CreatedDate
}

// ParagraphAnnotation annotates a paragraph.
type ParagraphAnnotation struct {
	Id              string
	BookId          string
	VolumeId        string
	ChapterId       string
	ParagraphId     string `validate:"required"`
	VolumeNumber    int
	ChapterNumber   int
	ParagraphNumber int
	Number          int `validate:"gte=1"`
	Note
}

func (a *ParagraphAnnotation) ident() string      { return a.Id }
func (a *ParagraphAnnotation) setIdent(id string) { a.Id = id }
func (a *ParagraphAnnotation) zeroCounters()      { a.LikesCount = 0 }

func (a *ParagraphAnnotation) adopt(existing *ParagraphAnnotation) {
	a.Id = existing.Id
	a.BookId = existing.BookId
	a.VolumeId = existing.VolumeId
	a.ChapterId = existing.ChapterId
	a.ParagraphId = existing.ParagraphId
	a.VolumeNumber = existing.VolumeNumber
	a.ChapterNumber = existing.ChapterNumber
	a.ParagraphNumber = existing.ParagraphNumber
	a.Number = existing.Number
	a.LikesCount = existing.LikesCount
	a.CreatedDate = existing.CreatedDate
}
