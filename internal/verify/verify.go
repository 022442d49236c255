// Package verify resolves a reported location to a page identifier and
// compares it with a match target.
package verify

import (
	"errors"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// ErrUnparseable is returned when no page identifier can be extracted.
var ErrUnparseable = errors.New("location has no page identifier")

const wikiPathPrefix = "/wiki/"

var folder = cases.Fold()

// Result of comparing a candidate location with a target.
type Result struct {
	Matched     bool
	Unparseable bool
	// Page is the display title of the candidate; empty when unparseable.
	Page   string
	Target string
}

// Parse extracts the raw page identifier from a location. Absolute URLs,
// root-relative /wiki/ paths, index.php?title= URLs and bare titles are
// accepted. URL forms are percent-decoded; bare titles are taken literally.
func Parse(location string) (string, error) {
	s := strings.TrimSpace(location)
	if s == "" {
		return "", ErrUnparseable
	}
	if !looksLikeURL(s) {
		return s, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", ErrUnparseable
	}
	var raw string
	switch {
	case strings.Contains(u.EscapedPath(), wikiPathPrefix):
		p := u.EscapedPath()
		raw = p[strings.Index(p, wikiPathPrefix)+len(wikiPathPrefix):]
		decoded, derr := url.PathUnescape(raw)
		if derr != nil {
			return "", ErrUnparseable
		}
		raw = decoded
	case u.Query().Get("title") != "":
		raw = u.Query().Get("title")
	default:
		return "", ErrUnparseable
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrUnparseable
	}
	return raw, nil
}

// Title returns the human-readable page title of a location.
func Title(location string) (string, error) {
	raw, err := Parse(location)
	if err != nil {
		return "", err
	}
	return collapse(raw), nil
}

// Normalize returns the canonical comparison key of a location.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(location string) (string, error) {
	title, err := Title(location)
	if err != nil {
		return "", err
	}
	return folder.String(title), nil
}

// Verify reports whether candidate resolves to the same page as target.
// Only exact equality of the normalized forms counts.
func Verify(candidate, target string) Result {
	res := Result{Target: strings.TrimSpace(target)}
	page, err := Title(candidate)
	if err != nil {
		res.Unparseable = true
		return res
	}
	res.Page = page
	want, err := Normalize(target)
	if err != nil {
		return res
	}
	res.Matched = folder.String(page) == want
	return res
}

func looksLikeURL(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "/") || strings.Contains(s, wikiPathPrefix)
}

// collapse turns underscores and whitespace runs into single spaces.
func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r == '_' || unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
