package notification

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "New user registered"

// DefaultFromName is the display name put on the From header.
const DefaultFromName = "Notifications"

// Addressing carries the fixed, configured parts of every notification.
type Addressing struct {
	From     string
	FromName string
	To       string
	Subject  string
}

// OutboundMessage is a fully built notification. Its fields are unexported so
// that a message cannot change after BuildMessage returns it.
type OutboundMessage struct {
	from     string
	fromName string
	to       string
	subject  string
	body     string
}

// BuildMessage turns a validated request into the message sent to the
// administrative address. It never fails: the request is assumed valid.
func BuildMessage(req NotificationRequest, addr Addressing) OutboundMessage {
	subject := addr.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	fromName := addr.FromName
	if fromName == "" {
		fromName = DefaultFromName
	}
	return OutboundMessage{
		from:     addr.From,
		fromName: fromName,
		to:       addr.To,
		subject:  subject,
		body:     RenderBody(req),
	}
}

// RenderBody renders the plain-text body. The phone line is always present,
// left empty when no phone was given.
func RenderBody(req NotificationRequest) string {
	var b strings.Builder
	b.WriteString("A new user registered:\n")
	fmt.Fprintf(&b, "Name: %s\n", req.Name)
	fmt.Fprintf(&b, "Email: %s\n", req.Email)
	fmt.Fprintf(&b, "Phone: %s\n", req.Phone)
	return b.String()
}

func (m OutboundMessage) From() string     { return m.from }
func (m OutboundMessage) FromName() string { return m.fromName }
func (m OutboundMessage) To() string       { return m.to }
func (m OutboundMessage) Subject() string  { return m.subject }
func (m OutboundMessage) Body() string     { return m.body }

// MIME converts the message into a go-mail message: UTF-8, text/plain.
func (m OutboundMessage) MIME() (*mail.Msg, error) {
	msg := mail.NewMsg(mail.WithCharset(mail.CharsetUTF8))
	if err := msg.FromFormat(m.fromName, m.from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(m.to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", m.to, err)
	}
	msg.Subject(m.subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, m.body)
	return msg, nil
}

// Render returns the message as it goes on the wire after DATA.
func (m OutboundMessage) Render() ([]byte, error) {
	msg, err := m.MIME()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("rendering message: %w", err)
	}
	return buf.Bytes(), nil
}
