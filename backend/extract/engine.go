package extract

import (
	"context"
	"strings"
	"time"

	"github.com/AnTengye/cvintake/backend/pkg/logger"
)

// Retriever converts a stored document, reached by URL, into plain text.
type Retriever interface {
	RetrieveText(ctx context.Context, documentURL string) (string, error)
}

// Engine runs retrieval followed by line-by-line extraction.
// It holds no per-document state and is safe for concurrent use.
type Engine struct {
	retriever Retriever
}

func NewEngine(r Retriever) *Engine {
	return &Engine{retriever: r}
}

// Extract never fails: when no text can be retrieved it returns Empty().
func (e *Engine) Extract(ctx context.Context, documentURL string) ExtractedCVData {
	if e.retriever == nil {
		logger.Warn(ctx, "cv extraction skipped, no retriever configured")
		return Empty()
	}

	start := time.Now()
	text, err := e.retriever.RetrieveText(ctx, documentURL)
	if err != nil {
		logger.Warn(ctx, "cv text retrieval failed, returning empty record",
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Empty()
	}

	data := Parse(text)
	logger.Info(ctx, "cv extraction completed",
		"text_length", len(text),
		"education", len(data.Education),
		"qualifications", len(data.Qualifications),
		"projects", len(data.Projects),
		"has_email", data.PersonalInfo.Email != "",
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return data
}

// Parse extracts structured data from already retrieved text.
func Parse(text string) ExtractedCVData {
	acc := accumulator{section: SectionNone, result: Empty()}
	for _, line := range SplitLines(text) {
		acc = acc.step(line)
	}
	acc.result.RawText = text
	return acc.result
}

// SplitLines breaks text on line boundaries, trims each line and drops
// the empty ones, keeping document order.
func SplitLines(text string) []string {
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// accumulator is the state threaded through the line fold.
type accumulator struct {
	section Section
	result  ExtractedCVData
}

func (a accumulator) step(line string) accumulator {
	next, header := Classify(line, a.section)
	a.section = next
	a.result.PersonalInfo = ExtractFields(line, a.result.PersonalInfo, header)
	if header || !a.section.accepts(line) {
		return a
	}

	switch a.section {
	case SectionEducation:
		a.result.Education = append(a.result.Education, line)
	case SectionQualifications:
		a.result.Qualifications = append(a.result.Qualifications, line)
	case SectionProjects:
		a.result.Projects = append(a.result.Projects, line)
	}
	return a
}
