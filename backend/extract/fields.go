package extract

import (
	"regexp"
	"slices"
	"strings"
)

var (
	// emailRe requires a top-level label of at least two letters.
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// phoneRe matches 3-3-4 digit groups with an optional +CC prefix.
	phoneRe = regexp.MustCompile(`(?:\+\d{1,3}[\s.-]?)?\b\d{3}[\s.-]?\d{3}[\s.-]?\d{4}\b`)

	urlRe = regexp.MustCompile(`https?://[^\s,;()<>"']+`)
)

// ExtractFields returns info updated with the contact tokens found on line.
// Fields already holding a value are never overwritten. Header lines still
// yield email, phone and links, but are never taken as a candidate name.
func ExtractFields(line string, info PersonalInfo, header bool) PersonalInfo {
	lower := strings.ToLower(line)

	email := emailRe.FindString(line)
	info.SetIfEmpty(FieldEmail, email)

	phone := phoneRe.FindString(line)
	info.SetIfEmpty(FieldPhone, phone)

	linkedIn := strings.Contains(lower, "linkedin.com")
	var links []string
	if linkedIn {
		info.SetIfEmpty(FieldLinkedIn, line)
	} else if strings.Contains(lower, "http://") || strings.Contains(lower, "https://") {
		for _, u := range urlRe.FindAllString(line, -1) {
			links = append(links, strings.TrimRight(u, ".:"))
		}
		if len(links) > 0 {
			info.SetIfEmpty(FieldWebsite, links[0])
			info.OtherLinks = append(slices.Clip(info.OtherLinks), links...)
		}
	}

	if !header && email == "" && phone == "" && !linkedIn && len(links) == 0 &&
		len(strings.Fields(line)) >= 2 {
		info.SetIfEmpty(FieldName, line)
	}
	return info
}
