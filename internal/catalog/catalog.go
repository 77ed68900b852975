// Package catalog loads the question set from JSON sources and hands out
// questions through shuffled, non-repeating draw bags.
package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mitjasha/Qui3zBot/internal/domain"
	"github.com/mitjasha/Qui3zBot/internal/textnorm"
)

// TagAll is the reserved scope meaning "every question"; it never appears in
// tag listings.
const TagAll = "all"

const defaultDifficulty = 2

// Catalog holds the immutable question set for the process lifetime.
type Catalog struct {
	questions []domain.Question
	byID      map[string]domain.Question
}

// Load reads questions from a JSON file or a directory of JSON files.
// A file is either {"questions": [...]} or a bare list. Unparseable sources
// and malformed records are skipped, not fatal; only an unreadable path is
// an error.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog path: %w", err)
	}

	c := &Catalog{byID: make(map[string]domain.Question)}

	if !info.IsDir() {
		c.loadFile(path)
	} else {
		var files []string
		_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".json") {
				files = append(files, p)
			}
			return nil
		})
		sort.Strings(files)
		for _, f := range files {
			c.loadFile(f)
		}
	}

	for _, q := range c.questions {
		c.byID[q.ID] = q
	}
	return c, nil
}

// Len reports the number of loaded questions.
func (c *Catalog) Len() int { return len(c.questions) }

// Get looks a question up by id.
func (c *Catalog) Get(id string) (domain.Question, error) {
	q, ok := c.byID[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

// Tags lists distinct tags, sorted, excluding the reserved "all".
func (c *Catalog) Tags() []string {
	seen := make(map[string]struct{})
	for _, q := range c.questions {
		for _, t := range q.Tags {
			if t != TagAll {
				seen[t] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

// Categories lists distinct categories, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	for _, q := range c.questions {
		if q.Category != "" {
			seen[q.Category] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// HasTag reports whether any question carries the tag (compared after
// normalization). The reserved "all" always matches.
func (c *Catalog) HasTag(tag string) bool {
	if tag == TagAll {
		return true
	}
	n := textnorm.Normalize(tag)
	for _, q := range c.questions {
		for _, t := range q.Tags {
			if textnorm.Normalize(t) == n {
				return true
			}
		}
	}
	return false
}

// HasCategory reports whether any question belongs to the category.
func (c *Catalog) HasCategory(category string) bool {
	n := textnorm.Normalize(category)
	for _, q := range c.questions {
		if q.Category != "" && textnorm.Normalize(q.Category) == n {
			return true
		}
	}
	return false
}

// AcceptedForms returns every normalized accepted answer and alias for the
// question. Empty forms are dropped.
func AcceptedForms(q domain.Question) map[string]struct{} {
	forms := make(map[string]struct{}, len(q.Answers)+len(q.Aliases))
	for _, a := range q.Answers {
		if n := textnorm.Normalize(a); n != "" {
			forms[n] = struct{}{}
		}
	}
	for _, a := range q.Aliases {
		if n := textnorm.Normalize(a); n != "" {
			forms[n] = struct{}{}
		}
	}
	return forms
}

// idsForScope collects every question id eligible for the scope, comparing
// tags and categories after normalization.
func (c *Catalog) idsForScope(scope domain.Scope) []string {
	ids := make([]string, 0, len(c.questions))
	switch scope.Kind {
	case domain.ScopeTag:
		n := textnorm.Normalize(scope.Key)
		if scope.Key == TagAll {
			break
		}
		for _, q := range c.questions {
			for _, t := range q.Tags {
				if textnorm.Normalize(t) == n {
					ids = append(ids, q.ID)
					break
				}
			}
		}
		return ids
	case domain.ScopeCategory:
		n := textnorm.Normalize(scope.Key)
		for _, q := range c.questions {
			if q.Category != "" && textnorm.Normalize(q.Category) == n {
				ids = append(ids, q.ID)
			}
		}
		return ids
	}
	for _, q := range c.questions {
		ids = append(ids, q.ID)
	}
	return ids
}

// rawQuestion tolerates the loose typing seen in real catalog files: numeric
// ids, numeric or string difficulties, missing optional fields.
type rawQuestion struct {
	ID         any            `json:"id"`
	Category   string         `json:"category"`
	Question   string         `json:"question"`
	Answers    []string       `json:"answers"`
	Aliases    []string       `json:"aliases"`
	Tags       []string       `json:"tags"`
	Difficulty any            `json:"difficulty"`
	Lang       string         `json:"lang"`
	Meta       map[string]any `json:"meta"`
}

func (c *Catalog) loadFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("catalog: skipping %s: %v", path, err)
		return
	}

	items, ok := splitItems(data)
	if !ok {
		log.Printf("catalog: skipping %s: unknown format", path)
		return
	}

	base := filepath.Base(path)
	for _, item := range items {
		var raw rawQuestion
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		q, ok := c.repair(raw, base)
		if !ok {
			continue
		}
		c.questions = append(c.questions, q)
	}
}

// splitItems accepts {"questions": [...]} or a bare list and returns the
// undecoded items.
func splitItems(data []byte) ([]json.RawMessage, bool) {
	var wrapped struct {
		Questions []json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Questions != nil {
		return wrapped.Questions, true
	}
	var bare []json.RawMessage
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, true
	}
	return nil, false
}

// repair validates a candidate record and fills defaults. A blank prompt or
// an answer list with no non-blank entry rejects the record.
func (c *Catalog) repair(raw rawQuestion, sourceFile string) (domain.Question, bool) {
	prompt := strings.TrimSpace(raw.Question)
	if prompt == "" {
		return domain.Question{}, false
	}
	answers := cleanList(raw.Answers)
	if len(answers) == 0 {
		return domain.Question{}, false
	}

	id := stringifyID(raw.ID)
	if id == "" {
		// Synthesized ids are positional: not stable if the source set
		// changes between loads.
		id = fmt.Sprintf("%s::%d", sourceFile, len(c.questions)+1)
	}

	category := strings.TrimSpace(raw.Category)
	tags := cleanList(raw.Tags)
	if category != "" {
		catTag := textnorm.Normalize(category)
		if catTag != "" && !containsNormalized(tags, catTag) {
			tags = append(tags, catTag)
		}
	}

	lang := raw.Lang
	if lang == "" {
		lang = "ru"
	}

	return domain.Question{
		ID:         id,
		Category:   category,
		Prompt:     prompt,
		Answers:    answers,
		Aliases:    cleanList(raw.Aliases),
		Tags:       tags,
		Difficulty: parseDifficulty(raw.Difficulty),
		Lang:       lang,
		Meta:       raw.Meta,
	}, true
}

func stringifyID(id any) string {
	switch v := id.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func parseDifficulty(d any) int {
	switch v := d.(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return defaultDifficulty
}

func cleanList(xs []string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if s := strings.TrimSpace(x); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsNormalized(xs []string, normalized string) bool {
	for _, x := range xs {
		if textnorm.Normalize(x) == normalized {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
