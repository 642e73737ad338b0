package normalizer

import (
	"strings"

	"github.com/jordanlanch/leaddesk/pkg/models"
)

// FromPortal normalizes a structured portal webhook.
func (n *Normalizer) FromPortal(in *models.PortalWebhook) (*models.RawLeadEvent, error) {
	if err := n.Validate(in); err != nil {
		return nil, err
	}

	source := models.ParseLeadSource(strings.ToLower(strings.TrimSpace(in.Source)))
	if source == models.SourceUnknown {
		source = models.SourcePortal
	}

	phone := n.phone(in.Phone)
	if phone == "" {
		phone = strings.TrimSpace(in.Phone)
	}

	ev := &models.RawLeadEvent{
		ProjectID:    n.project(in.ProjectID),
		Source:       source,
		PortalLeadID: strings.TrimSpace(in.PortalLeadID),
		ListingID:    strings.TrimSpace(in.ListingID),
		Contact: models.Contact{
			Name:  n.name(in.Name),
			Email: strings.ToLower(strings.TrimSpace(in.Email)),
			Phone: phone,
		},
		Channel:    models.ChannelPortal,
		Text:       strings.TrimSpace(in.Message),
		Type:       in.Type,
		Priority:   models.LeadPriority(in.Priority),
		ReceivedAt: n.now().UTC(),
	}
	return check(ev)
}
