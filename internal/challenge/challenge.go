// Package challenge recognises anti-bot interstitials that the FCA Register
// sometimes serves in place of a JSON payload, often with a 200 status.
package challenge

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

var (
	marker  = []byte("Just a moment")
	doctype = []byte("<!DOCTYPE")
)

// maxTitleLen bounds the title kept for logging, in runes.
const maxTitleLen = 120

// Detect reports whether body is a challenge or block page rather than an
// API answer. Any HTML document is treated as a block; the API only ever
// answers with JSON.
func Detect(body []byte) bool {
	if bytes.Contains(body, marker) {
		return true
	}
	return bytes.HasPrefix(bytes.TrimLeftFunc(body, isLeadingSpace), doctype)
}

// isLeadingSpace matches the ECMAScript WhiteSpace and LineTerminator sets:
// Unicode white space plus the byte order mark, but not NEL (U+0085).
func isLeadingSpace(r rune) bool {
	if r == '\u0085' {
		return false
	}
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// Title returns the trimmed <title> of an HTML body, or "" if there is none.
// It is only used to describe a detected block in logs.
func Title(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen])
	}
	return title
}
