// Package extract turns plain resume text into structured applicant data.
//
// Lines are folded top to bottom: each one may switch the current section,
// contribute contact fields, or be collected into the active section.
package extract

// Field names a PersonalInfo value that is set at most once per run.
type Field string

const (
	FieldName     Field = "name"
	FieldEmail    Field = "email"
	FieldPhone    Field = "phone"
	FieldLinkedIn Field = "linkedin"
	FieldWebsite  Field = "website"
)

// PersonalInfo holds contact details found anywhere in a document.
type PersonalInfo struct {
	Name       string   `json:"name,omitempty"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	LinkedIn   string   `json:"linkedin,omitempty"`
	Website    string   `json:"website,omitempty"`
	OtherLinks []string `json:"otherLinks,omitempty"`
}

// SetIfEmpty stores value under f unless f already holds a value.
// It reports whether the write happened.
func (p *PersonalInfo) SetIfEmpty(f Field, value string) bool {
	dst := p.slot(f)
	if dst == nil || *dst != "" || value == "" {
		return false
	}
	*dst = value
	return true
}

// Get returns the value stored under f.
func (p PersonalInfo) Get(f Field) string {
	if dst := p.slot(f); dst != nil {
		return *dst
	}
	return ""
}

func (p *PersonalInfo) slot(f Field) *string {
	switch f {
	case FieldName:
		return &p.Name
	case FieldEmail:
		return &p.Email
	case FieldPhone:
		return &p.Phone
	case FieldLinkedIn:
		return &p.LinkedIn
	case FieldWebsite:
		return &p.Website
	}
	return nil
}

// IsEmpty reports whether no field has been populated.
func (p PersonalInfo) IsEmpty() bool {
	return p.Name == "" && p.Email == "" && p.Phone == "" &&
		p.LinkedIn == "" && p.Website == "" && len(p.OtherLinks) == 0
}

// ExtractedCVData is the record handed to every downstream consumer.
// Slices are never nil so the JSON form always carries arrays.
type ExtractedCVData struct {
	Education      []string     `json:"education"`
	Qualifications []string     `json:"qualifications"`
	Projects       []string     `json:"projects"`
	PersonalInfo   PersonalInfo `json:"personalInfo"`
	RawText        string       `json:"rawText"`
}

// Empty returns the well-formed record used when no text could be retrieved.
func Empty() ExtractedCVData {
	return ExtractedCVData{
		Education:      []string{},
		Qualifications: []string{},
		Projects:       []string{},
	}
}

// Normalize replaces nil slices with empty ones.
func (d *ExtractedCVData) Normalize() {
	if d.Education == nil {
		d.Education = []string{}
	}
	if d.Qualifications == nil {
		d.Qualifications = []string{}
	}
	if d.Projects == nil {
		d.Projects = []string{}
	}
}
