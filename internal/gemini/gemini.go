package gemini

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	modelName       = "gemini-1.5-flash"
	maxHeadlines    = 10
	maxPromptChars  = 6000
	maxBriefingSize = 1500
)

var ErrEmptyResponse = errors.New("no response from Gemini")

// Client writes short briefings over a list of headlines.
type Client struct {
	client *genai.Client
}

func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Brief asks the model for a short situation summary of the headlines.
func (c *Client) Brief(ctx context.Context, topic string, headlines []string) (string, error) {
	if len(headlines) == 0 {
		return "", errors.New("no headlines to summarise")
	}

	model := c.client.GenerativeModel(modelName)
	resp, err := model.GenerateContent(ctx, genai.Text(BuildPrompt(topic, headlines)))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	briefing := CleanResponse(fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]))
	if briefing == "" {
		return "", ErrEmptyResponse
	}
	return briefing, nil
}

// BuildPrompt renders the briefing request. Headlines are whitespace
// collapsed and the list is capped to keep the prompt small.
func BuildPrompt(topic string, headlines []string) string {
	if len(headlines) > maxHeadlines {
		headlines = headlines[:maxHeadlines]
	}

	var b strings.Builder
	for _, h := range headlines {
		h = strings.Join(strings.Fields(h), " ")
		if h == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	list := b.String()
	if utf8.RuneCountInString(list) > maxPromptChars {
		list = string([]rune(list)[:maxPromptChars]) + "\n[TRUNCATED]"
	}

	return fmt.Sprintf(`You are briefing mine workers in the Pilbara region of Western Australia.

TOPIC: %s

HEADLINES:
%s
TASK:
Write one plain paragraph (under %d characters) describing what is happening.

RULES:
Do not invent facts that are not in the headlines.
Keep company and union names exactly as written.
Do not start with phrases like "The news is about".

Answer in the format:

BRIEFING: <paragraph>
`, topic, list, maxBriefingSize)
}

var briefingLabel = regexp.MustCompile(`(?i)^\**\s*briefing\s*\**\s*: ?`)

// CleanResponse strips the answer label and markdown noise from a model reply.
func CleanResponse(response string) string {
	var parts []string
	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || line == "```" {
			continue
		}
		line = briefingLabel.ReplaceAllString(line, "")
		line = strings.Trim(line, "*_ ")
		if line != "" {
			parts = append(parts, line)
		}
	}

	out := strings.Join(parts, " ")
	if utf8.RuneCountInString(out) > maxBriefingSize {
		runes := []rune(out)
		trimmed := string(runes[:maxBriefingSize])
		if idx := strings.LastIndex(trimmed, ". "); idx > maxBriefingSize/2 {
			trimmed = trimmed[:idx+1]
		}
		out = trimmed
	}
	return out
}
