package corpus

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sha1n/mathfuse/internal/domain"
)

// rowElement is the element holding one post in the archive dump.
const rowElement = "row"

// PostReader streams RawPosts out of an archive dump of the form
// <posts><row Id=".." PostTypeId=".." Body=".." .../>...</posts>.
// Attribute names are matched case-insensitively.
type PostReader struct {
	dec *xml.Decoder
}

// NewPostReader creates a reader over r.
func NewPostReader(r io.Reader) *PostReader {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	return &PostReader{dec: dec}
}

// Next returns the next post, or io.EOF when the dump is exhausted.
func (r *PostReader) Next() (domain.RawPost, error) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return domain.RawPost{}, io.EOF
			}
			return domain.RawPost{}, fmt.Errorf("failed to read posts: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, rowElement) {
			continue
		}
		return rawPostFromAttrs(start.Attr), nil
	}
}

// ReadAll drains the reader.
func (r *PostReader) ReadAll() ([]domain.RawPost, error) {
	var posts []domain.RawPost
	for {
		p, err := r.Next()
		if errors.Is(err, io.EOF) {
			return posts, nil
		}
		if err != nil {
			return posts, err
		}
		posts = append(posts, p)
	}
}

func rawPostFromAttrs(attrs []xml.Attr) domain.RawPost {
	var p domain.RawPost
	for _, a := range attrs {
		switch strings.ToLower(a.Name.Local) {
		case "id":
			p.ID, p.HasID = a.Value, true
		case "posttypeid":
			p.PostTypeID, p.HasPostTypeID = a.Value, true
		case "parentid":
			p.ParentID = a.Value
		case "score":
			p.Score, p.HasScore = a.Value, true
		case "title":
			p.Title = a.Value
		case "body":
			p.Body, p.HasBody = a.Value, true
		case "tags":
			p.Tags = a.Value
		}
	}
	return p
}
