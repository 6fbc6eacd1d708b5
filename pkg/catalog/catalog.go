// ABOUTME: YAML catalog import that seeds whole book hierarchies
// ABOUTME: Entities go through the repositories; roll-ups are explicit sets

// Package catalog imports books described in YAML into a bookstore.
//
// A catalog looks like:
//
//	books:
//	  - id: meditations
//	    title: Meditations
//	    authors: [Marcus Aurelius]
//	    volumes:
//	      - number: 1
//	        title: Book One
//	        subjects:
//	          - {number: 1, title: Debts}
//	        chapters:
//	          - number: 1
//	            paragraphs:
//	              - {number: 1, subject: 1, text: From my grandfather Verus...}
package catalog

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/nainya/readerstore/pkg/bookstore"
)

type Catalog struct {
	Books []Book `yaml:"books"`
}

type Book struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Authors     []string `yaml:"authors"`
	Language    string   `yaml:"language"`
	Volumes     []Volume `yaml:"volumes"`
}

type Volume struct {
	Number      int       `yaml:"number"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Subjects    []Subject `yaml:"subjects"`
	Chapters    []Chapter `yaml:"chapters"`
}

type Subject struct {
	Number      int    `yaml:"number"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type Chapter struct {
	Number     int         `yaml:"number"`
	Title      string      `yaml:"title"`
	Paragraphs []Paragraph `yaml:"paragraphs"`
}

// Paragraph names its subject by number within the volume; 0 means none.
type Paragraph struct {
	Number  int    `yaml:"number"`
	Subject int    `yaml:"subject"`
	Text    string `yaml:"text"`
}

// Summary counts created entities.
type Summary struct {
	Books      int
	Volumes    int
	Subjects   int
	Chapters   int
	Paragraphs int
}

// Parse decodes a catalog document.
func Parse(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}

// Import parses r and loads it into s.
func Import(ctx context.Context, s *bookstore.Store, r io.Reader) (Summary, error) {
	c, err := Parse(r)
	if err != nil {
		return Summary{}, err
	}
	return Load(ctx, s, c)
}

// Load creates every entity of c, stopping at the first failure. Parent
// counters are set from what was created.
func Load(ctx context.Context, s *bookstore.Store, c *Catalog) (Summary, error) {
	var sum Summary
	for _, b := range c.Books {
		if err := loadBook(ctx, s, b, &sum); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func loadBook(ctx context.Context, s *bookstore.Store, in Book, sum *Summary) error {
	book, err := s.Books.Create(ctx, &bookstore.Book{
		Id:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		Authors:     in.Authors,
		Language:    in.Language,
	})
	if err != nil {
		return fmt.Errorf("book %q: %w", in.Title, err)
	}
	sum.Books++

	var chapters, paragraphs int64
	for _, vin := range in.Volumes {
		vol, err := s.Volumes.Create(ctx, &bookstore.Volume{
			BookId:      book.Id,
			Number:      vin.Number,
			Title:       vin.Title,
			Description: vin.Description,
		})
		if err != nil {
			return fmt.Errorf("book %s volume %d: %w", book.Id, vin.Number, err)
		}
		sum.Volumes++

		subjects := make(map[int]string, len(vin.Subjects))
		subjectParagraphs := make(map[string]int64, len(vin.Subjects))
		for _, sin := range vin.Subjects {
			sub, err := s.Subjects.Create(ctx, &bookstore.Subject{
				VolumeId:    vol.Id,
				Number:      sin.Number,
				Title:       sin.Title,
				Description: sin.Description,
			})
			if err != nil {
				return fmt.Errorf("volume %s subject %d: %w", vol.Id, sin.Number, err)
			}
			subjects[sin.Number] = sub.Id
			sum.Subjects++
		}

		var volParagraphs int64
		for _, cin := range vin.Chapters {
			ch, err := s.Chapters.Create(ctx, &bookstore.Chapter{
				VolumeId: vol.Id,
				Number:   cin.Number,
				Title:    cin.Title,
			})
			if err != nil {
				return fmt.Errorf("volume %s chapter %d: %w", vol.Id, cin.Number, err)
			}
			sum.Chapters++

			for _, pin := range cin.Paragraphs {
				p := &bookstore.Paragraph{ChapterId: ch.Id, Number: pin.Number, Text: pin.Text}
				if pin.Subject != 0 {
					id, ok := subjects[pin.Subject]
					if !ok {
						return fmt.Errorf("chapter %s paragraph %d: no subject %d in volume %d",
							ch.Id, pin.Number, pin.Subject, vin.Number)
					}
					p.SubjectId = &id
					subjectParagraphs[id]++
				}
				if _, err := s.Paragraphs.Create(ctx, p); err != nil {
					return fmt.Errorf("chapter %s paragraph %d: %w", ch.Id, pin.Number, err)
				}
				sum.Paragraphs++
			}
			n := int64(len(cin.Paragraphs))
			volParagraphs += n
			if err := s.Chapters.SetCounter(ctx, ch.Id, "ParagraphsCount", float64(n)); err != nil {
				return err
			}
		}

		for id, n := range subjectParagraphs {
			if err := s.Subjects.SetCounter(ctx, id, "ParagraphsCount", float64(n)); err != nil {
				return err
			}
		}
		if err := s.Volumes.SetCounter(ctx, vol.Id, "ChaptersCount", float64(len(vin.Chapters))); err != nil {
			return err
		}
		if err := s.Volumes.SetCounter(ctx, vol.Id, "SubjectsCount", float64(len(vin.Subjects))); err != nil {
			return err
		}
		chapters += int64(len(vin.Chapters))
		paragraphs += volParagraphs
	}

	for field, n := range map[string]int64{
		"VolumesCount":    int64(len(in.Volumes)),
		"ChaptersCount":   chapters,
		"ParagraphsCount": paragraphs,
	} {
		if err := s.Books.SetCounter(ctx, book.Id, field, float64(n)); err != nil {
			return err
		}
	}
	return nil
}
