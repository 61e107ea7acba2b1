package extract

import (
	"strings"
	"unicode/utf8"
)

// Section is the bucket that non-header lines are collected into.
type Section int

const (
	SectionNone Section = iota
	SectionEducation
	SectionQualifications
	SectionProjects
	SectionPersonalInfo
)

func (s Section) String() string {
	switch s {
	case SectionEducation:
		return "education"
	case SectionQualifications:
		return "qualifications"
	case SectionProjects:
		return "projects"
	case SectionPersonalInfo:
		return "personalInfo"
	}
	return "none"
}

// headerMaxWords caps how long a line matching the section already in effect
// may be and still count as a heading. Longer lines such as "BSc, XYZ
// University" under Education are content.
const headerMaxWords = 4

// Order matters: the first set with a matching keyword wins.
var sectionTriggers = []struct {
	section  Section
	keywords []string
}{
	{SectionEducation, []string{"education", "academic", "degree", "university", "college", "school"}},
	{SectionQualifications, []string{"skills", "qualifications", "certifications", "expertise", "technologies", "proficiencies"}},
	{SectionProjects, []string{"projects", "experience", "work", "employment", "job", "career"}},
	{SectionPersonalInfo, []string{"personal", "contact", "info", "about me", "profile"}},
}

// Classify returns the section in effect after line and whether line is a
// section header. Non-header lines leave current unchanged. A trigger line
// of any length switches to a different section.
func Classify(line string, current Section) (Section, bool) {
	matched, ok := matchTrigger(line)
	if !ok {
		return current, false
	}
	if matched == current && len(strings.Fields(line)) > headerMaxWords {
		return current, false
	}
	return matched, true
}

func matchTrigger(line string) (Section, bool) {
	lower := strings.ToLower(line)
	for _, t := range sectionTriggers {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return t.section, true
			}
		}
	}
	return SectionNone, false
}

// minLineLength is the shortest line, in characters, a section collects.
// Zero means the section collects nothing.
func (s Section) minLineLength() int {
	switch s {
	case SectionEducation, SectionProjects:
		return 5
	case SectionQualifications:
		return 3
	}
	return 0
}

// accepts reports whether line is long enough to be collected under s.
func (s Section) accepts(line string) bool {
	n := s.minLineLength()
	return n > 0 && utf8.RuneCountInString(line) >= n
}
