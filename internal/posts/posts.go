// Package posts parses the hand-curated file of union social media posts.
//
// Each record looks like:
//
//	<union>Mining and Energy Union</union>
//	<date>2025-01-20</date>
//	Free text, one or more lines.
//	https://www.facebook.com/...   (optional)
//	https://images.example/...     (optional)
//
// Records are separated by the next <union> tag.
package posts

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/deusflow/pilbarawatch/internal/classify"
)

type Post struct {
	ID        string `json:"id"`
	Union     string `json:"union"`
	Date      string `json:"date"`
	Content   string `json:"content"`
	PostURL   string `json:"postUrl,omitempty"`
	PhotoURL  string `json:"photoUrl,omitempty"`
	Category  string `json:"category"`
	Urgency   string `json:"urgency"`
	Timestamp string `json:"timestamp"`
}

var (
	unionTag = regexp.MustCompile(`<union>(.*?)</union>`)
	dateTag  = regexp.MustCompile(`<date>(.*?)</date>`)
)

const recordStart = "<union>"

// Parse reads every record in r. Records without a union, a date or any
// content are dropped.
func Parse(r io.Reader) ([]Post, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading posts: %w", err)
	}

	var posts []Post
	for i, section := range splitSections(string(data)) {
		p, ok := parseSection(section)
		if !ok {
			continue
		}
		p.ID = fmt.Sprintf("post_%d", i)
		posts = append(posts, p)
	}
	return posts, nil
}

// splitSections cuts text before every <union> tag, dropping blank pieces.
func splitSections(text string) []string {
	pieces := strings.Split(text, recordStart)
	sections := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		if i > 0 {
			piece = recordStart + piece
		}
		if strings.TrimSpace(piece) != "" {
			sections = append(sections, piece)
		}
	}
	return sections
}

func parseSection(section string) (Post, bool) {
	var p Post
	if m := unionTag.FindStringSubmatch(section); m != nil {
		p.Union = strings.TrimSpace(m[1])
	}
	if m := dateTag.FindStringSubmatch(section); m != nil {
		p.Date = strings.TrimSpace(m[1])
	}

	var content []string
	collecting := false
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "</date>") {
			collecting = true
			continue
		}
		if !collecting || line == "" {
			continue
		}
		if strings.HasPrefix(line, "https://") {
			p.addLink(line)
			continue
		}
		content = append(content, line)
	}
	p.Content = strings.Join(content, " ")
	p.Timestamp = p.Date

	return p, p.Union != "" && p.Date != "" && p.Content != ""
}

func (p *Post) addLink(link string) {
	isFacebook := strings.Contains(link, "facebook.com") || strings.Contains(link, "fb.com") || strings.Contains(link, "fb.watch")
	switch {
	case isFacebook && p.PostURL == "":
		p.PostURL = link
	case !isFacebook && p.PhotoURL == "":
		p.PhotoURL = link
	}
}

// Label fills category and urgency from the post content.
func Label(posts []Post, l classify.Labeler) {
	for i := range posts {
		text := posts[i].Union + " " + posts[i].Content
		posts[i].Category = l.CategoryFor(text)
		posts[i].Urgency = l.UrgencyFor(text)
	}
}

// Load parses and labels the posts file at path.
func Load(path string, l classify.Labeler) ([]Post, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	posts, err := Parse(f)
	if err != nil {
		return nil, err
	}
	Label(posts, l)
	return posts, nil
}
