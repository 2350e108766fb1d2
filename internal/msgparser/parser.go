// Package msgparser detects webhook-origin messages carrying an O365
// connector card attachment and parses the embedded card.
package msgparser

import (
	"encoding/json"
	"strings"

	"github.com/nugget/alert-sentinel/internal/cardmodel"
	"github.com/nugget/alert-sentinel/internal/source"
)

// IsWebhookOrigin reports whether msg was posted by an application
// (webhook) identity rather than a human user.
func IsWebhookOrigin(msg source.Message) bool {
	return msg.From.Application != ""
}

// cardContentTypeToken is the substring (case-insensitive) an
// attachment's contentType must contain to be recognized as a card.
// Adaptive-card variants are an accepted extension point but are not
// required for correctness, so only the O365 connector token is
// checked here.
const cardContentTypeToken = "o365connector"

// IsCardAttachment reports whether msg carries at least one attachment
// whose contentType contains the O365 connector card token.
func IsCardAttachment(msg source.Message) bool {
	for _, a := range msg.Attachments {
		if strings.Contains(strings.ToLower(a.ContentType), cardContentTypeToken) {
			return true
		}
	}
	return false
}

// ParseCard picks the first card attachment, decodes its content
// string as JSON, and parses it into a Card. Any decoding or
// validation failure yields (Card{}, false) rather than an error —
// callers treat this as "drop the message, log, continue."
func ParseCard(msg source.Message) (cardmodel.Card, bool) {
	for _, a := range msg.Attachments {
		if !strings.Contains(strings.ToLower(a.ContentType), cardContentTypeToken) {
			continue
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(a.Content), &obj); err != nil {
			return cardmodel.Card{}, false
		}

		card, err := cardmodel.Parse(obj)
		if err != nil {
			return cardmodel.Card{}, false
		}
		return card, true
	}
	return cardmodel.Card{}, false
}
