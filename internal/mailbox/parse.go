package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"

	"pressdesk/internal/textutil"
)

// maxPartBytes bounds how much of a single MIME part is read.
const maxPartBytes = 4 << 20

// ParseMessage decodes a raw RFC 822 message. The body is the first inline
// text/plain part, or the first inline text/html part flattened to text when
// no plain part exists.
func ParseMessage(raw []byte) (Message, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if mr == nil {
		return Message{}, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	subject := decodeHeader(&mr.Header, "Subject")
	sender := decodeHeader(&mr.Header, "From")
	date := strings.TrimSpace(mr.Header.Get("Date"))
	messageID, _ := mr.Header.MessageID()

	var plain, html string
	for plain == "" {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) || message.IsUnknownEncoding(err) {
				continue
			}
			// A broken trailing part should not discard what was already read.
			if plain != "" || html != "" {
				break
			}
			return Message{}, fmt.Errorf("read part: %w", err)
		}
		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, _ := inline.ContentType()
		if mediaType == "" {
			mediaType = "text/plain"
		}
		if mediaType != "text/plain" && mediaType != "text/html" {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part.Body, maxPartBytes))
		if err != nil {
			continue
		}
		text := decodeText(data)
		switch mediaType {
		case "text/plain":
			plain = text
		case "text/html":
			if html == "" {
				html = text
			}
		}
	}

	body := plain
	if strings.TrimSpace(body) == "" && html != "" {
		body = HTMLToText(html)
	}

	return Message{
		Key:     messageKey(messageID, date, sender, subject),
		Subject: textutil.CollapseSpaces(subject),
		Sender:  strings.TrimSpace(sender),
		Date:    date,
		Body:    textutil.CollapseParagraphs(body),
	}, nil
}

// decodeHeader returns the RFC 2047 decoded header value, falling back to the
// raw text when the encoded word cannot be decoded.
func decodeHeader(h *mail.Header, key string) string {
	if text, err := h.Text(key); err == nil {
		return strings.TrimSpace(text)
	}
	raw := h.Get(key)
	dec := mime.WordDecoder{}
	if text, err := dec.DecodeHeader(raw); err == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(raw)
}

// decodeText returns data as UTF-8. Parts that declare a charset were already
// converted by go-message; undeclared non-UTF-8 bytes are read as ISO-8859-1.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(decoded)
}
