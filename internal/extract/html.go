package extract

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

type field struct {
	key      string
	selector string
}

var (
	experienceFields = []field{
		{"title", "h3"},
		{"company", "p"},
		{"duration", ".date-range"},
		{"description", ".description"},
	}
	educationFields = []field{
		{"school", "h3"},
		{"degree", ".degree-name"},
		{"field", ".field-of-study"},
		{"duration", ".date-range"},
	}
)

// ParseProfileHTML reads a rendered profile page into a document with name,
// headline, experience and education. Elements missing from the page are
// omitted; experience and education are always present, possibly empty.
func ParseProfileHTML(r io.Reader) (map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse profile html")
	}

	out := map[string]any{}
	if s, ok := firstText(doc.Selection, "h1"); ok {
		out["name"] = s
	}
	if s, ok := firstText(doc.Selection, ".text-body-medium"); ok {
		out["headline"] = s
	}
	out["experience"] = entries(doc, "#experience-section li", experienceFields)
	out["education"] = entries(doc, "#education-section li", educationFields)
	return out, nil
}

func entries(doc *goquery.Document, selector string, fields []field) []any {
	list := []any{}
	doc.Find(selector).Each(func(_ int, item *goquery.Selection) {
		e := map[string]any{}
		for _, f := range fields {
			if s, ok := firstText(item, f.selector); ok {
				e[f.key] = s
			}
		}
		list = append(list, e)
	})
	return list
}

func firstText(sel *goquery.Selection, selector string) (string, bool) {
	found := sel.Find(selector).First()
	if found.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(found.Text()), true
}
