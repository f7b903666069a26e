// Package inipatch toggles the anti-aliasing override in an Engine.ini.
package inipatch

import (
	"strings"
)

const (
	// Section holds the scalability overrides.
	Section = "[ScalabilityGroups]"
	// Line disables anti-aliasing.
	Line = "sg.AntiAliasingQuality=0"

	keyPrefix = "sg.antialiasingquality"
)

// Outcome reports what Apply did.
type Outcome int

const (
	Unchanged Outcome = iota
	Replaced
	Inserted
	SectionAdded
)

func (o Outcome) String() string {
	switch o {
	case Replaced:
		return "replaced"
	case Inserted:
		return "inserted"
	case SectionAdded:
		return "section_added"
	default:
		return "unchanged"
	}
}

// Status is the patch state of a file as reported by Describe.
type Status string

const (
	Enabled        Status = "enabled"
	OtherValue     Status = "other_value"
	SectionOnly    Status = "section_only"
	MissingSection Status = "missing_section"
)

// Apply makes sure Line is set under Section. The returned content always
// ends with a newline when the outcome is not Unchanged.
func Apply(content string) (string, Outcome) {
	if strings.Contains(content, Line) {
		return content, Unchanged
	}
	lines := splitLines(content)

	var (
		found     bool
		inSection bool
		insertAt  = -1
	)
	for i, l := range lines {
		s := strings.TrimSpace(l)
		if isHeader(s) {
			if inSection && insertAt < 0 {
				insertAt = i
			}
			inSection = strings.EqualFold(s, Section)
			if inSection {
				found = true
			}
			continue
		}
		if inSection && strings.HasPrefix(strings.ToLower(s), keyPrefix) {
			lines[i] = Line
			return joinLines(lines), Replaced
		}
	}

	if found {
		if insertAt < 0 {
			lines = append(lines, Line)
		} else {
			lines = append(lines[:insertAt], append([]string{Line}, lines[insertAt:]...)...)
		}
		return joinLines(lines), Inserted
	}

	if n := len(lines); n > 0 && strings.TrimSpace(lines[n-1]) != "" {
		lines = append(lines, "")
	}
	lines = append(lines, Section, Line)
	return joinLines(lines), SectionAdded
}

// Remove deletes Line. When it is the only entry of Section, the header and
// the blank lines around it go too. The second result is false when
// nothing was removed.
func Remove(content string) (string, bool) {
	lines := splitLines(content)

	start := -1
	for i, l := range lines {
		if strings.EqualFold(strings.TrimSpace(l), Section) {
			start = i
			break
		}
	}
	if start >= 0 {
		end := len(lines)
		for i := start + 1; i < len(lines); i++ {
			if isHeader(strings.TrimSpace(lines[i])) {
				end = i
				break
			}
		}
		kept := filterLine(lines[start+1 : end])
		if len(kept) != end-start-1 {
			tail := append([]string(nil), lines[end:]...)
			if allBlank(kept) {
				head := lines[:start]
				for len(tail) > 0 && strings.TrimSpace(tail[0]) == "" {
					tail = tail[1:]
				}
				for len(head) > 0 && strings.TrimSpace(head[len(head)-1]) == "" {
					head = head[:len(head)-1]
				}
				lines = append(head, tail...)
			} else {
				lines = append(append(lines[:start+1], kept...), tail...)
			}
			return joinLines(lines), true
		}
	}

	kept := filterLine(lines)
	if len(kept) == len(lines) {
		return content, false
	}
	return joinLines(kept), true
}

// Describe classifies content without modifying it.
func Describe(content string) Status {
	switch {
	case strings.Contains(content, Line):
		return Enabled
	case strings.Contains(content, "sg.AntiAliasingQuality"):
		return OtherValue
	case strings.Contains(content, Section):
		return SectionOnly
	default:
		return MissingSection
	}
}

func isHeader(s string) bool {
	return strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
}

func filterLine(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) != Line {
			out = append(out, l)
		}
	}
	return out
}

func allBlank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
