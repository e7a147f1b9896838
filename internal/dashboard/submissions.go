package dashboard

import (
	"strings"
	"time"
	"unicode/utf8"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/shared/errors"
)

// Limits on visitor submissions.
const (
	MaxMessageLength    = 5000
	MaxSenderNameLength = 100
)

// Content types a comment can be attached to.
const (
	ContentPoem  = "poem"
	ContentVideo = "video"
)

// InviteInput is an invitation sent from the public site.
type InviteInput struct {
	SenderName  string `json:"sender_name"`
	IsAnonymous bool   `json:"is_anonymous"`
	Message     string `json:"message"`
}

// Validate checks the message and, unless anonymous, the sender name.
func (in InviteInput) Validate() *errors.ValidationErrors {
	ve := errors.NewValidationErrors()
	validateMessage(ve, in.Message)
	if !in.IsAnonymous && utf8.RuneCountInString(in.SenderName) > MaxSenderNameLength {
		ve.Add("sender_name", "Name must be less than 100 characters", in.SenderName)
	}
	return ve
}

// Record shapes the invite row. Invites arrive unread by email contact.
func (in InviteInput) Record(now time.Time) model.Record {
	return model.Record{
		"sender_name":    nullable(senderName(in.SenderName, in.IsAnonymous)),
		"is_anonymous":   in.IsAnonymous,
		"message":        in.Message,
		"contact_method": "email",
		"is_read":        false,
		"created_at":     now.UTC().Format(time.RFC3339Nano),
	}
}

// CommentInput is a reflection left on a poem or a video.
type CommentInput struct {
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	SenderName  string `json:"sender_name"`
	IsAnonymous bool   `json:"is_anonymous"`
	Message     string `json:"message"`
}

// Validate checks the target and the message.
func (in CommentInput) Validate() *errors.ValidationErrors {
	ve := errors.NewValidationErrors()
	if in.ContentType != ContentPoem && in.ContentType != ContentVideo {
		ve.Add("content_type", "Content type must be poem or video", in.ContentType)
	}
	if strings.TrimSpace(in.ContentID) == "" {
		ve.Add("content_id", "Content id is required", in.ContentID)
	}
	validateMessage(ve, in.Message)
	if !in.IsAnonymous && utf8.RuneCountInString(in.SenderName) > MaxSenderNameLength {
		ve.Add("sender_name", "Name must be less than 100 characters", in.SenderName)
	}
	return ve
}

// Record shapes the comment row. Comments wait for approval.
func (in CommentInput) Record(now time.Time) model.Record {
	return model.Record{
		"content_type": in.ContentType,
		"content_id":   in.ContentID,
		"sender_name":  nullable(senderName(in.SenderName, in.IsAnonymous)),
		"is_anonymous": in.IsAnonymous,
		"message":      in.Message,
		"is_approved":  false,
		"created_at":   now.UTC().Format(time.RFC3339Nano),
	}
}

// ApprovedComments filters comments to the approved ones of one content item.
// The legacy approved column counts as well.
func ApprovedComments(comments []model.Record, contentType, contentID string) []model.Record {
	out := make([]model.Record, 0)
	for _, c := range comments {
		if c.String("content_type") != contentType || c.String("content_id") != contentID {
			continue
		}
		if c.Bool("is_approved") || c.Bool("approved") {
			out = append(out, c)
		}
	}
	return out
}

func validateMessage(ve *errors.ValidationErrors, message string) {
	switch {
	case strings.TrimSpace(message) == "":
		ve.Add("message", "Message is required", message)
	case utf8.RuneCountInString(message) > MaxMessageLength:
		ve.Add("message", "Message must be less than 5000 characters", len(message))
	}
}

func senderName(name string, anonymous bool) string {
	if anonymous {
		return ""
	}
	return strings.TrimSpace(name)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
