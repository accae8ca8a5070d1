package utils

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// HTMLToPlainText drops script and style elements and collapses whitespace.
func HTMLToPlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})

	// block elements would otherwise glue adjacent words together
	doc.Find("br, p, div, tr, li").Each(func(i int, el *goquery.Selection) {
		el.AppendHtml(" ")
	})

	text := whitespaceRegex.ReplaceAllString(doc.Text(), " ")
	return strings.TrimSpace(text), nil
}
