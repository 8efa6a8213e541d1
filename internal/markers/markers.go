// Package markers implements the Root-File Marker Engine (spec §4.5 C7): a
// two-pass scanner that locates open/close HTML-comment markers and
// extracts/inserts per-package sections, rather than regex-ing over
// mutable state (spec §9 design note).
package markers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// closeMarker is the shared, non-nested close marker.
const closeMarker = "<!-- -->"

// openMarkerRE matches an opening marker: case-insensitive "package:" key,
// the package name, and an optional "id:<uuid>".
//
//	<!-- package: <name>[ id:<uuid>] -->
var openMarkerRE = regexp.MustCompile(`(?im)^[ \t]*<!--[ \t]*package:[ \t]*([^\s]+)(?:[ \t]+id:([0-9a-fA-F-]+))?[ \t]*-->[ \t]*$`)

type marker struct {
	name       string
	id         string
	hasID      bool
	start      int // byte offset of the start of the opening marker line
	headerEnd  int // byte offset just past the opening marker's newline
	closeStart int // byte offset of the close marker, or -1 if none found
	closeEnd   int // byte offset just past the close marker's line
}

// findOpenMarkers scans content for every opening marker and its paired
// close marker (first "<!-- -->" after the open).
func findOpenMarkers(content string) []marker {
	var markers []marker
	matches := openMarkerRE.FindAllStringSubmatchIndex(content, -1)
	for _, m := range matches {
		start := m[0]
		headerEnd := m[1]
		if headerEnd < len(content) && content[headerEnd] == '\n' {
			headerEnd++
		}
		name := content[m[2]:m[3]]
		hasID := m[4] >= 0
		id := ""
		if hasID {
			id = content[m[4]:m[5]]
		}

		closeStart := strings.Index(content[headerEnd:], closeMarker)
		closeEnd := -1
		if closeStart >= 0 {
			closeStart += headerEnd
			closeEnd = closeStart + len(closeMarker)
			if closeEnd < len(content) && content[closeEnd] == '\n' {
				closeEnd++
			}
		} else {
			closeStart = -1
		}

		markers = append(markers, marker{
			name:       name,
			id:         id,
			hasID:      hasID,
			start:      start,
			headerEnd:  headerEnd,
			closeStart: closeStart,
			closeEnd:   closeEnd,
		})
	}
	return markers
}

func findByName(markers []marker, name string) *marker {
	for i := range markers {
		if strings.EqualFold(markers[i].name, name) {
			return &markers[i]
		}
	}
	return nil
}

// ExtractPackageSection returns just the section body for name, or "" and
// false if no marker for name exists (spec §4.5 "read-only counterpart").
func ExtractPackageSection(content, name string) (string, bool) {
	m := findByName(findOpenMarkers(content), name)
	if m == nil {
		return "", false
	}
	return sectionBody(content, *m), true
}

func sectionBody(content string, m marker) string {
	end := m.closeStart
	if end < 0 {
		end = len(content)
	}
	return content[m.headerEnd:end]
}

// ExtractAllPackageSections returns an ordered map of every package's
// section body in content, preserving file order.
func ExtractAllPackageSections(content string) ([]string, map[string]string) {
	markers := findOpenMarkers(content)
	order := make([]string, 0, len(markers))
	sections := make(map[string]string, len(markers))
	for _, m := range markers {
		order = append(order, m.name)
		sections[m.name] = sectionBody(content, m)
	}
	return order, sections
}

// EnsureResult is the outcome of EnsureMarkerIdAndExtract.
type EnsureResult struct {
	SectionBody    string
	ID             string
	UpdatedContent string
	Changed        bool
}

// EnsureMarkerIdAndExtract finds name's opening marker; if present but
// lacking an id, injects a fresh UUID and reports UpdatedContent so the
// caller can rewrite the file once. Returns (nil, nil) if no opening
// marker for name exists -- nothing to save (spec §4.5).
func EnsureMarkerIdAndExtract(content, name string) (*EnsureResult, error) {
	m := findByName(findOpenMarkers(content), name)
	if m == nil {
		return nil, nil
	}

	if m.hasID {
		return &EnsureResult{SectionBody: sectionBody(content, *m), ID: m.id, UpdatedContent: content, Changed: false}, nil
	}

	newID := uuid.New().String()
	newOpen := fmt.Sprintf("<!-- package: %s id:%s -->\n", m.name, newID)
	updated := content[:m.start] + newOpen + content[m.headerEnd:]

	body := sectionBody(content, *m)

	return &EnsureResult{SectionBody: body, ID: newID, UpdatedContent: updated, Changed: true}, nil
}

// WrapSection re-wraps body in open/close markers, reusing id if non-empty
// (spec §4.6/§4.8: "re-wrap in markers (reusing any existing id)").
func WrapSection(name, id, body string) string {
	open := fmt.Sprintf("<!-- package: %s -->\n", name)
	if id != "" {
		open = fmt.Sprintf("<!-- package: %s id:%s -->\n", name, id)
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return open + body + closeMarker + "\n"
}

// UpsertSection replaces name's existing section in content with a
// freshly-wrapped one (reusing any existing id), or, if absent, appends it
// with a single blank line before the opening marker (spec §4.8 step 1).
func UpsertSection(content, name, body string) string {
	markers := findOpenMarkers(content)
	m := findByName(markers, name)

	if m == nil {
		sep := "\n"
		if content == "" {
			sep = ""
		} else if !strings.HasSuffix(content, "\n\n") {
			if strings.HasSuffix(content, "\n") {
				sep = "\n"
			} else {
				sep = "\n\n"
			}
		} else {
			sep = ""
		}
		return content + sep + WrapSection(name, "", body)
	}

	end := m.closeEnd
	if end < 0 {
		end = len(content)
	}
	return content[:m.start] + WrapSection(name, m.id, body) + content[end:]
}

// RemoveSection deletes name's markers and body from content (spec §4.10
// step 1). Returns the updated content and whether a section was removed.
func RemoveSection(content, name string) (string, bool) {
	m := findByName(findOpenMarkers(content), name)
	if m == nil {
		return content, false
	}
	end := m.closeEnd
	if end < 0 {
		end = len(content)
	}
	return content[:m.start] + content[end:], true
}

// IsWhitespaceOnly reports whether content has no non-whitespace runes.
func IsWhitespaceOnly(content string) bool {
	return strings.TrimSpace(content) == ""
}
