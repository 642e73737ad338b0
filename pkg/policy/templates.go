package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
)

// Template is a reply skeleton with {{variable}} placeholders.
type Template struct {
	ID        string         `yaml:"id"`
	ProjectID string         `yaml:"projectId"`
	Channel   models.Channel `yaml:"channel"`
	Subject   string         `yaml:"subject"`
	Body      string         `yaml:"body"`
}

// Rendered is a template with its variables substituted.
type Rendered struct {
	Subject string
	Body    string
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// Templates indexes templates by id.
type Templates struct {
	byID map[string]Template
}

// NewTemplates builds a registry. Later templates with the same id win.
func NewTemplates(list []Template) *Templates {
	t := &Templates{byID: make(map[string]Template, len(list))}
	for _, tpl := range list {
		t.byID[tpl.ID] = tpl
	}
	return t
}

// Get returns the template with the given id.
func (t *Templates) Get(id string) (Template, error) {
	tpl, ok := t.byID[id]
	if !ok {
		return Template{}, domain.NewNotFoundError("template " + id)
	}
	return tpl, nil
}

// Render substitutes vars into the template. Every placeholder must have a value.
func (t *Templates) Render(id string, channel models.Channel, vars map[string]string) (*Rendered, error) {
	tpl, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	if tpl.Channel != "" && channel != "" && tpl.Channel != channel {
		return nil, domain.NewValidationError(fmt.Sprintf("template %s is for %s, not %s", id, tpl.Channel, channel))
	}

	missing := map[string]bool{}
	sub := func(s string) string {
		return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
			name := placeholderRe.FindStringSubmatch(m)[1]
			v, ok := vars[name]
			if !ok {
				missing[name] = true
				return m
			}
			return v
		})
	}
	out := &Rendered{Subject: sub(tpl.Subject), Body: sub(tpl.Body)}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, domain.NewValidationError("missing template variables: " + strings.Join(names, ", "))
	}
	return out, nil
}
