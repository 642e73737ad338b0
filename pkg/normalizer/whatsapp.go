package normalizer

import (
	"strings"
	"time"

	"github.com/jordanlanch/leaddesk/pkg/models"
	"github.com/jordanlanch/leaddesk/pkg/phone"
)

// FromWhatsApp normalizes an inbound WhatsApp message.
func (n *Normalizer) FromWhatsApp(in *models.WhatsAppInbound) (*models.RawLeadEvent, error) {
	if err := n.Validate(in); err != nil {
		return nil, err
	}

	number, err := phone.NormalizeWhatsAppID(in.From)
	if err != nil {
		number = "+" + strings.TrimPrefix(strings.TrimSpace(in.From), "+")
	}

	received := n.now().UTC()
	if in.Timestamp > 0 {
		received = time.Unix(in.Timestamp, 0).UTC()
	}

	ev := &models.RawLeadEvent{
		ProjectID:  n.project(in.ProjectID),
		Source:     models.SourceWhatsApp,
		Channel:    models.ChannelWhatsApp,
		Contact:    models.Contact{Name: n.name(in.ProfileName), Phone: number},
		Text:       in.Text,
		ExternalID: in.MessageID,
		ReceivedAt: received,
	}
	return check(ev)
}
