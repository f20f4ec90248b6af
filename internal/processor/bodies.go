package processor

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/emersion/go-message"
)

// Attachment is a file part of a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// bodies is the content of a message split into the parts a forward needs.
type bodies struct {
	Text        string
	HTML        string
	Attachments []Attachment
}

// splitBodies walks a MIME entity, descending into nested multiparts, and
// collects the first text and HTML part plus every attachment.
func splitBodies(entity *message.Entity) bodies {
	var b bodies
	b.walk(entity)
	return b
}

func (b *bodies) walk(entity *message.Entity) {
	mediaType, _, _ := entity.Header.ContentType()

	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil && !message.IsUnknownCharset(err) {
				slog.Warn("Failed to read message part", "error", err)
				return
			}
			b.walk(part)
		}
	}

	data, err := io.ReadAll(entity.Body)
	if err != nil {
		slog.Warn("Failed to read part body", "content_type", mediaType, "error", err)
		return
	}

	if disposition, params, _ := entity.Header.ContentDisposition(); disposition == "attachment" {
		b.Attachments = append(b.Attachments, Attachment{
			Filename:    attachmentName(params, entity.Header),
			ContentType: mediaType,
			Data:        data,
		})
		return
	}

	switch mediaType {
	case "text/plain", "":
		if b.Text == "" {
			b.Text = string(data)
		}
	case "text/html":
		if b.HTML == "" {
			b.HTML = string(data)
		}
	}
}

func attachmentName(params map[string]string, h message.Header) string {
	if name := params["filename"]; name != "" {
		return name
	}
	if _, ctParams, err := mime.ParseMediaType(h.Get("Content-Type")); err == nil {
		if name := strings.TrimSpace(ctParams["name"]); name != "" {
			return name
		}
	}
	return "attachment"
}
