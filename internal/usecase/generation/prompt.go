package generation

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/edurag/internal/domain"
	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
	"github.com/kailas-cloud/edurag/internal/domain/material"
)

// excerptChars bounds the excerpt kept in a persisted source.
const excerptChars = 240

type promptInput struct {
	CourseID string
	Topic    string
	Category material.Category
	Language string
	Depth    string
	Chunks   []domchunk.Retrieved
	Refs     []domain.ExternalReference
}

type prompt struct {
	System  string
	User    string
	Mode    material.Mode
	Sources []material.Source
}

// selectMode picks the citation regime from the non-empty source sets.
func selectMode(chunks, refs int) material.Mode {
	switch {
	case chunks > 0 && refs > 0:
		return material.ModeBlended
	case chunks > 0:
		return material.ModeCourseOnly
	default:
		return material.ModeExternalOnly
	}
}

func buildPrompt(in promptInput) prompt {
	p := prompt{Mode: selectMode(len(in.Chunks), len(in.Refs))}

	var ctxBlock strings.Builder
	for i, r := range in.Chunks {
		label := fmt.Sprintf("S%d", i+1)
		m := r.Chunk.Metadata()
		title := m.Title
		if title == "" {
			title = m.Topic
		}
		fmt.Fprintf(&ctxBlock, "[%s] %s\n%s\n\n", label, title, strings.TrimSpace(r.Chunk.Content()))
		p.Sources = append(p.Sources, material.Source{
			Label:      label,
			Kind:       material.SourceCourse,
			Title:      title,
			URL:        r.Chunk.FileURL(),
			ContentID:  m.ContentID,
			ChunkID:    r.Chunk.ID(),
			Similarity: r.Similarity,
			Excerpt:    excerpt(r.Chunk.Content()),
		})
	}
	for i, ref := range in.Refs {
		label := fmt.Sprintf("E%d", i+1)
		fmt.Fprintf(&ctxBlock, "[%s] %s (%s)\n%s\n\n", label, ref.Title, ref.URL, strings.TrimSpace(ref.Extract))
		p.Sources = append(p.Sources, material.Source{
			Label:   label,
			Kind:    material.SourceExternal,
			Title:   ref.Title,
			URL:     ref.URL,
			Excerpt: excerpt(ref.Extract),
		})
	}

	p.System = systemPrompt(in.Category) + "\n\n" + citationRules(p.Mode)

	var user strings.Builder
	fmt.Fprintf(&user, "Course ID: %s\nTopic: %s\n", in.CourseID, in.Topic)
	if in.Category == material.CategoryLab {
		lang := in.Language
		if lang == "" {
			lang = "python"
		}
		fmt.Fprintf(&user, "Language: %s\n\n", lang)
		user.WriteString("Write a lab-style explanation with a short conceptual intro, a step-by-step " +
			"algorithm walkthrough, clean commented code in the requested language and 1-2 small test cases.\n")
	} else {
		depth := in.Depth
		if depth == "" {
			depth = "standard"
		}
		fmt.Fprintf(&user, "Depth: %s\n\n", depth)
		user.WriteString("Write clear, exam-oriented notes with definitions, key properties " +
			"and small worked examples where relevant.\n")
	}
	user.WriteString("\nContext:\n")
	user.WriteString(ctxBlock.String())
	p.User = user.String()
	return p
}

func systemPrompt(c material.Category) string {
	if c == material.CategoryLab {
		return "You are a lab instructor helping students understand and implement algorithms."
	}
	return "You are an expert teacher writing rigorous, exam-focused course notes."
}

func citationRules(m material.Mode) string {
	switch m {
	case material.ModeBlended:
		return "Course excerpts [S#] are the PRIMARY source: base the material on them and cite them as [S#]. " +
			"External references [E#] are SECONDARY and may only fill gaps the course excerpts leave; cite them as [E#]. " +
			"Never copy code verbatim from external references."
	case material.ModeCourseOnly:
		return "Use only the course excerpts and cite them as [S#]. " +
			"When something the topic needs is not covered by the excerpts, say so explicitly."
	default:
		return "This topic is not covered in the course materials; say so at the start. " +
			"Use only the external references and cite them as [E#]."
	}
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	n := 0
	for i := range s {
		if n == excerptChars {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
