// Package testdata builds realistic inbound lead payloads for tests.
package testdata

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jordanlanch/leaddesk/pkg/models"
)

// GeneratorConfig configures payload generation.
type GeneratorConfig struct {
	Seed      int64
	ProjectID string
	Sources   []string
	// PhoneChance is the probability (0.0-1.0) that a payload carries a phone number.
	PhoneChance float64
}

// DefaultGeneratorConfig returns a deterministic config for project p1.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:        42,
		ProjectID:   "p1",
		Sources:     []string{"immobiliare", "idealista", "casa"},
		PhoneChance: 0.7,
	}
}

var inquiries = []string{
	"Is the apartment still available?",
	"I would like to book a visit this week.",
	"Can you send me the floor plan?",
	"Is the price negotiable?",
	"Are pets allowed?",
}

// Generator produces fake inbound payloads. It is not safe for concurrent use.
type Generator struct {
	cfg   GeneratorConfig
	faker *gofakeit.Faker
	seq   int
}

// NewGenerator creates a generator seeded from cfg.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultGeneratorConfig().Sources
	}
	return &Generator{cfg: cfg, faker: gofakeit.New(cfg.Seed)}
}

// PortalWebhook returns a webhook with a unique portal lead id.
func (g *Generator) PortalWebhook() *models.PortalWebhook {
	g.seq++
	first, last := g.faker.FirstName(), g.faker.LastName()
	w := &models.PortalWebhook{
		Source:       g.faker.RandomString(g.cfg.Sources),
		PortalLeadID: fmt.Sprintf("PL-%05d-%s", g.seq, g.faker.LetterN(4)),
		ListingID:    "L-" + g.faker.Numerify("####"),
		Name:         strings.ToLower(first + " " + last),
		Email:        fmt.Sprintf("%s.%s.%d@example.com", localPart(first), localPart(last), g.seq),
		Message:      g.faker.RandomString(inquiries),
		ProjectID:    g.cfg.ProjectID,
	}
	if g.faker.Float64Range(0, 1) < g.cfg.PhoneChance {
		w.Phone = g.ItalianMobile()
	}
	return w
}

// PortalWebhooks returns n webhooks with distinct portal lead ids.
func (g *Generator) PortalWebhooks(n int) []*models.PortalWebhook {
	out := make([]*models.PortalWebhook, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.PortalWebhook())
	}
	return out
}

// WhatsAppMessage returns an inbound WhatsApp message from phone.
func (g *Generator) WhatsAppMessage(phone string, at time.Time) *models.WhatsAppInbound {
	return &models.WhatsAppInbound{
		From:      phone,
		MessageID: "wamid." + g.faker.LetterN(16),
		Text:      g.faker.RandomString(inquiries),
		Timestamp: at.Unix(),
		ProjectID: g.cfg.ProjectID,
	}
}

// ItalianMobile returns a mobile number in the loose format portals send.
func (g *Generator) ItalianMobile() string {
	return "+39 3" + g.faker.Numerify("## ### ####")
}

func localPart(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		return -1
	}, strings.ToLower(s))
}
