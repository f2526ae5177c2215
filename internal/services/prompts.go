// Package services – prompt presets
//
// This file owns the newsletter prompt material: the built-in system prompt
// presets, the fixed user-prompt template, and the JSON rendering of stored
// posts into that template. Additional presets can be supplied at runtime
// from a YAML file; they are merged over the built-ins so operators can both
// add new editorial styles and override the shipped ones.
package services

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-feed-digest/internal/domain"
)

const (
	// PresetNewsletter is the default editorial style.
	PresetNewsletter = "newsletter"

	// maxPromptPosts caps how many posts are rendered into the prompt so a
	// large window cannot blow the provider's context limit.
	maxPromptPosts = 50

	// maxPromptContentLen truncates each post's text inside the prompt.
	maxPromptContentLen = 300
)

const newsletterSystemPrompt = `You are an AI newsletter editor. Given a collection of recent posts about AI/tech, create a polished newsletter digest.`

const newsletterUserPrompt = `## Input
%s

## Instructions

1. **Analyze & Categorize**: Group posts by theme (Research, Product Launches, Industry News, Drama/Controversy, Insights)

2. **Identify the Top Story**: Pick the single most impactful/discussed topic. Write 3-4 sentences explaining what happened and why it matters.

3. **Create Headlines Section**: Select 5-8 other noteworthy items. For each:
   - Write a compelling one-line summary
   - Include the source: [@handle](post_url)
   - Add a brief "why it matters" (1 sentence)

4. **Spot Trends**: If multiple posts discuss the same topic, synthesize them into a single insight with multiple sources.

5. **Filter Noise**: Ignore promotional spam, low-engagement hot takes, and off-topic content.

6. **Handle Replies**: Some posts have ` + "`is_reply: true`" + ` with ` + "`replying_to`" + ` naming the account they respond to. Use this context to understand the discussion and include it when it makes the story clearer.

## Output Format

# 🔥 Top Story
**[Headline]**
[3-4 sentence summary with context and implications]
Source: [@handle](url)

---

# 📰 What Else Happened

### [Category Name]
- **[Headline]** - [One sentence summary] ([Source](url))
- **[Headline]** - [One sentence summary] ([Source](url))

### [Category Name]
...

---

# 📊 Emerging Pattern
[If you notice 3+ posts about the same trend, synthesize here with multiple source links]

---

# 💡 One to Watch
[Single forward-looking insight or prediction based on the posts]`

// builtinPresets maps preset names to system prompts. The map is copied into
// each Prompts value; never mutated.
var builtinPresets = map[string]string{
	PresetNewsletter: newsletterSystemPrompt,

	"anti_politics": "You are an AI newsletter editor. Given a collection of recent posts, create a polished " +
		"newsletter digest. IMPORTANT: Filter out ALL political content. No politicians, elections, " +
		"government policy, partisan debates, culture war topics, or geopolitical conflicts. Focus " +
		"exclusively on technology, science, engineering, design, culture, arts, and human interest " +
		"stories. If a post mixes tech and politics, extract only the tech angle.",

	"tech_ai": "You are an AI newsletter editor specializing in technology. Given a collection of recent " +
		"posts, create a polished newsletter digest focused EXCLUSIVELY on: artificial intelligence, " +
		"machine learning, large language models, software engineering, developer tools, open source, " +
		"programming languages, cloud infrastructure, and tech product launches. Ignore everything " +
		"else. No politics, sports, entertainment, or general news.",
}

// Prompts resolves a tenant's preset (or custom instructions) into the system
// prompt handed to the summarizer. Values are immutable after construction
// and safe for concurrent use.
type Prompts struct {
	presets map[string]string
}

// promptsFile is the YAML shape of an operator-supplied preset file:
//
//	presets:
//	  no_sports: |
//	    You are an AI newsletter editor ...
type promptsFile struct {
	Presets map[string]string `yaml:"presets"`
}

// DefaultPrompts returns the built-in presets only.
func DefaultPrompts() *Prompts {
	p := &Prompts{presets: make(map[string]string, len(builtinPresets))}
	for k, v := range builtinPresets {
		p.presets[k] = v
	}
	return p
}

// LoadPrompts builds the preset table from the built-ins plus the YAML file
// at path. A missing file is not an error; the built-ins alone are returned
// so a fresh install works without any prompt configuration. A present but
// malformed file is an error: silently dropping operator presets would make
// every briefing use the wrong editorial style.
func LoadPrompts(path string) (*Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("read prompts file: %w", err)
	}

	var f promptsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
	}
	for name, text := range f.Presets {
		name = strings.TrimSpace(name)
		text = strings.TrimSpace(text)
		if name == "" || text == "" {
			continue
		}
		p.presets[name] = text
	}
	return p, nil
}

// System resolves the system prompt for one tenant. A non-empty custom
// prompt always wins; otherwise the named preset is looked up, falling back
// to the newsletter default for unknown names.
func (p *Prompts) System(preset, custom string) string {
	if c := strings.TrimSpace(custom); c != "" {
		return c
	}
	if text, ok := p.presets[preset]; ok {
		return text
	}
	return p.presets[PresetNewsletter]
}

// Has reports whether name is a known preset.
func (p *Prompts) Has(name string) bool {
	_, ok := p.presets[name]
	return ok
}

// Names returns the known preset names in sorted order.
func (p *Prompts) Names() []string {
	out := make([]string, 0, len(p.presets))
	for k := range p.presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// promptPost is the per-post JSON shape embedded in the user prompt. Kept
// deliberately small; the summarizer needs attribution and engagement, not
// the whole row.
type promptPost struct {
	Author     string `json:"author"`
	Content    string `json:"content"`
	URL        string `json:"url,omitempty"`
	Likes      int    `json:"likes"`
	Reposts    int    `json:"reposts"`
	Timestamp  string `json:"timestamp,omitempty"`
	IsReply    bool   `json:"is_reply,omitempty"`
	ReplyingTo string `json:"replying_to,omitempty"`
}

// buildUserPrompt renders up to maxPromptPosts posts as a JSON array inside
// the newsletter instruction template. Posts without content are skipped;
// content is truncated to maxPromptContentLen runes to protect the provider
// context window.
func buildUserPrompt(posts []domain.StoredPost) string {
	formatted := make([]promptPost, 0, len(posts))
	for _, p := range posts {
		if len(formatted) >= maxPromptPosts {
			break
		}
		content := p.Content
		if content == "" {
			continue
		}
		if utf8.RuneCountInString(content) > maxPromptContentLen {
			content = string([]rune(content)[:maxPromptContentLen])
		}

		entry := promptPost{
			Author:  "@" + nonEmpty(p.AuthorHandle, "unknown"),
			Content: content,
			Likes:   intOrZero(p.Likes),
			Reposts: intOrZero(p.Reposts),
		}
		if p.ExternalID != "" {
			entry.URL = fmt.Sprintf("https://x.com/%s/status/%s", nonEmpty(p.AuthorHandle, "unknown"), p.ExternalID)
		}
		if p.PostedAt != nil {
			entry.Timestamp = p.PostedAt.UTC().Format(time.RFC3339)
		}
		if p.IsReply {
			entry.IsReply = true
			if p.ReplyToHandle != "" {
				entry.ReplyingTo = "@" + p.ReplyToHandle
			}
		}
		formatted = append(formatted, entry)
	}

	b, err := json.Marshal(formatted)
	if err != nil {
		// promptPost contains only marshalable fields; this cannot fire.
		b = []byte("[]")
	}
	return fmt.Sprintf(newsletterUserPrompt, string(b))
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
