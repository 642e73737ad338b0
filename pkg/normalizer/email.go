package normalizer

import (
	"fmt"
	"html"
	"net/mail"
	"regexp"
	"strings"

	"github.com/jordanlanch/leaddesk/pkg/models"
)

const maxAttachments = 5

var (
	labeledNameRe = regexp.MustCompile(`(?im)^\s*(?:nome(?:\s+e\s+cognome)?|name|cliente)\s*:\s*([^\n\r]+?)\s*$`)
	introNameRe   = regexp.MustCompile(`(?:[Mm]i chiamo|[Ss]ono)[ \t]+(\p{Lu}[\p{L}']+(?:[ \t]+\p{Lu}[\p{L}']+){0,2})`)
	emailRe       = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe       = regexp.MustCompile(`(?:\+|00)?\d[\d .\-/]{6,16}\d`)
	listingRe     = regexp.MustCompile(`(?i)(?:rif\.?\s*annuncio|riferimento|rif\.)\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9\-_/]*)`)
	portalIDRe    = regexp.MustCompile(`(?i)(?:id\s+richiesta|lead\s+id)\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9\-_]*)`)
	messageIDRe   = regexp.MustCompile(`(?im)^message-id:\s*<?([^>\s]+)>?`)
	tagRe         = regexp.MustCompile(`(?s)<[^>]*>`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
)

// portalDomains maps notification sender domains to the portal they belong to.
var portalDomains = map[string]models.LeadSource{
	"immobiliare.it": models.SourceImmobiliare,
	"idealista.it":   models.SourceIdealista,
	"idealista.com":  models.SourceIdealista,
	"casa.it":        models.SourceCasa,
}

// DetectPortal returns the portal a sender address belongs to, if any.
func DetectPortal(address string) (models.LeadSource, bool) {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return "", false
	}
	domain := strings.ToLower(address[at+1:])
	for suffix, source := range portalDomains {
		if domain == suffix || strings.HasSuffix(domain, "."+suffix) {
			return source, true
		}
	}
	return "", false
}

// FromEmail normalizes an inbound-parse email. Portal notification emails are
// recognised by sender domain and the customer's details are read from the body.
func (n *Normalizer) FromEmail(in *models.InboundEmail) (*models.RawLeadEvent, error) {
	if err := n.Validate(in); err != nil {
		return nil, err
	}

	body := in.Text
	if strings.TrimSpace(body) == "" && in.HTML != "" {
		body = stripHTML(in.HTML)
	}

	senderName, senderAddr := splitAddress(in.From)
	ev := &models.RawLeadEvent{
		ProjectID:   n.project(projectFromRecipient(in.To, in.ProjectID)),
		Source:      models.SourceEmail,
		Channel:     models.ChannelEmail,
		Subject:     strings.TrimSpace(in.Subject),
		Text:        body,
		HTML:        in.HTML,
		ExternalID:  firstGroup(messageIDRe, in.Headers),
		Attachments: attachments(in),
		ReceivedAt:  n.now().UTC(),
	}

	haystack := ev.Subject + "\n" + body
	ev.ListingID = firstGroup(listingRe, haystack)

	if portal, ok := DetectPortal(senderAddr); ok {
		ev.Source = portal
		ev.PortalLeadID = firstGroup(portalIDRe, haystack)
		ev.Contact = n.contactFromBody(body, senderAddr)
	} else {
		ev.Contact = models.Contact{
			Name:  n.name(senderName),
			Email: strings.ToLower(senderAddr),
			Phone: n.firstPhone(body),
		}
		if ev.Contact.Name == "" {
			ev.Contact.Name = n.bodyName(body)
		}
	}

	if ev.Text == "" {
		ev.Text = ev.Subject
	}
	return check(ev)
}

func (n *Normalizer) contactFromBody(body, exclude string) models.Contact {
	c := models.Contact{
		Name:  n.bodyName(body),
		Phone: n.firstPhone(body),
	}
	excludeDomain := ""
	if at := strings.LastIndex(exclude, "@"); at >= 0 {
		excludeDomain = strings.ToLower(exclude[at+1:])
	}
	for _, addr := range emailRe.FindAllString(body, -1) {
		addr = strings.ToLower(addr)
		if excludeDomain != "" && strings.HasSuffix(addr, "@"+excludeDomain) {
			continue
		}
		if _, isPortal := DetectPortal(addr); isPortal {
			continue
		}
		c.Email = addr
		break
	}
	return c
}

func (n *Normalizer) bodyName(body string) string {
	if m := labeledNameRe.FindStringSubmatch(body); m != nil {
		return n.name(m[1])
	}
	if m := introNameRe.FindStringSubmatch(body); m != nil {
		return n.name(m[1])
	}
	return ""
}

func (n *Normalizer) firstPhone(body string) string {
	for _, candidate := range phoneRe.FindAllString(body, -1) {
		if e164 := n.phone(candidate); e164 != "" {
			return e164
		}
	}
	return ""
}

func splitAddress(from string) (string, string) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return "", strings.TrimSpace(emailRe.FindString(from))
	}
	return addr.Name, addr.Address
}

// projectFromRecipient reads a plus-addressed project ("leads+acme@...") when
// no explicit project is given.
func projectFromRecipient(to, explicit string) string {
	if explicit != "" {
		return explicit
	}
	_, addr := splitAddress(to)
	local, _, ok := strings.Cut(addr, "@")
	if !ok {
		return ""
	}
	_, project, ok := strings.Cut(local, "+")
	if !ok {
		return ""
	}
	return project
}

func attachments(in *models.InboundEmail) []models.Attachment {
	out := in.AttachmentN
	if len(out) > maxAttachments {
		out = out[:maxAttachments]
	}
	if len(out) == 0 && in.Attachments > 0 {
		for i := 1; i <= in.Attachments && i <= maxAttachments; i++ {
			out = append(out, models.Attachment{Filename: fmt.Sprintf("attachment%d", i)})
		}
	}
	return out
}

func stripHTML(s string) string {
	s = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n", "</div>", "\n").Replace(s)
	s = html.UnescapeString(tagRe.ReplaceAllString(s, ""))
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
