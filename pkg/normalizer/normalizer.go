// Package normalizer turns channel-specific inbound payloads into a
// RawLeadEvent. Extracted contact fields are advisory: anything that cannot be
// parsed is left empty and the raw text is kept.
package normalizer

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/leaddesk/pkg/domain"
	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/phone"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalizer converts inbound payloads.
type Normalizer struct {
	validate       *validator.Validate
	title          cases.Caser
	region         string
	defaultProject string
	now            func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithRegion sets the region used for phone numbers without a country prefix.
func WithRegion(region string) Option { return func(n *Normalizer) { n.region = region } }

// WithDefaultProject sets the project used when a payload names none.
func WithDefaultProject(id string) Option { return func(n *Normalizer) { n.defaultProject = id } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(n *Normalizer) { n.now = now } }

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		validate:       validator.New(),
		title:          cases.Title(language.Italian),
		region:         phone.DefaultRegion,
		defaultProject: "default",
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Validate runs struct validation and maps failures to VALIDATION_ERROR.
func (n *Normalizer) Validate(v interface{}) error {
	if err := n.validate.Struct(v); err != nil {
		return domain.NewValidationError(describe(err))
	}
	return nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}

// check enforces the one rule every channel shares: an event must be
// deduplicable by portal lead id or by a contact identifier.
func check(ev *models.RawLeadEvent) (*models.RawLeadEvent, error) {
	if ev.PortalLeadID == "" && !ev.Contact.HasIdentifier() {
		return nil, domain.NewValidationError("payload has neither portal lead id nor contact email/phone")
	}
	return ev, nil
}

func (n *Normalizer) project(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return n.defaultProject
}

func (n *Normalizer) name(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return n.title.String(strings.ToLower(s))
}

// phone returns the E.164 form of s, or "" when s is not a valid number.
func (n *Normalizer) phone(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	e164, err := phone.NormalizePhone(s, n.region)
	if err != nil {
		return ""
	}
	return e164
}
