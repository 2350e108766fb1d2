// Package source abstracts the upstream chat message API as a
// "message source" port. The core depends only on the MessageSource
// interface; concrete transport (Microsoft Graph or any other chat
// platform) lives behind it and is an external collaborator per the
// pipeline's own scope.
package source

import (
	"context"
	"time"
)

// From identifies the sender of a Message: either a human user or an
// application (webhook) identity. Exactly one of the two is expected
// to be populated for a real message.
type From struct {
	User        string `json:"user,omitempty"`
	Application string `json:"application,omitempty"`
}

// Attachment carries a content type and a JSON-serialized payload
// string. For card attachments, Content decodes to the card object
// shape in cardmodel.
type Attachment struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Message is the upstream channel message shape the pipeline depends
// on. Fields beyond these are not modeled; unknown upstream fields are
// simply never populated here.
type Message struct {
	ID                 string       `json:"id"`
	CreatedDateTime    string       `json:"createdDateTime"`
	LastModifiedDateTime string     `json:"lastModifiedDateTime"`
	From               From         `json:"from"`
	Attachments        []Attachment `json:"attachments"`
}

// MessageSource fetches messages from a single channel, optionally
// filtered to those at or after since. top bounds the number of
// messages returned. Implementations must never return an error to
// the poller for a transient failure — per the error taxonomy,
// UpstreamFetchFailed is recovered inside the implementation, which
// logs and returns an empty slice; GetMessages returning a non-nil
// error is reserved for programmer-error-class misuse (e.g. an
// unconfigured client).
type MessageSource interface {
	GetMessages(ctx context.Context, teamID, channelID string, since time.Time, top int) ([]Message, error)
}
