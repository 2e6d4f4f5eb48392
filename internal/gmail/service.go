package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"regexp"
	"strings"

	"github.com/ashutoshrp06/parcel-agent/internal/types"
	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// UnreadQuery selects unread inbox mail.
const UnreadQuery = "is:unread label:inbox"

const me = "me"

var htmlTag = regexp.MustCompile(`<[^>]+>`)

// Service reads, sends and marks mail for the authenticated account.
type Service struct {
	auth   *Authenticator
	opts   []option.ClientOption
	logger *zap.Logger
}

// NewService creates a service. Extra client options (e.g. an endpoint
// override) are passed to every Gmail API client it builds.
func NewService(auth *Authenticator, logger *zap.Logger, opts ...option.ClientOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{auth: auth, opts: opts, logger: logger}
}

// api builds a client over the current token. Tokens are reloaded on every
// call so a consent completed after startup is picked up.
func (s *Service) api(ctx context.Context) (*gmailapi.Service, error) {
	ts, err := s.auth.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, s.opts...)
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail client: %w", err)
	}
	return svc, nil
}

// FetchUnread returns up to maxResults unread inbox messages, newest first.
func (s *Service) FetchUnread(ctx context.Context, maxResults int) ([]types.Email, error) {
	svc, err := s.api(ctx)
	if err != nil {
		return nil, err
	}
	if maxResults <= 0 {
		maxResults = 1
	}

	list, err := svc.Users.Messages.List(me).Q(UnreadQuery).MaxResults(int64(maxResults)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list unread messages: %w", err)
	}

	emails := make([]types.Email, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := svc.Users.Messages.Get(me, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return emails, fmt.Errorf("get message %s: %w", ref.Id, err)
		}
		emails = append(emails, toEmail(msg))
	}

	s.logger.Debug("Fetched unread mail", zap.Int("count", len(emails)))
	return emails, nil
}

// Send delivers a plain-text message.
func (s *Service) Send(ctx context.Context, to, subject, body string) (types.SendResult, error) {
	svc, err := s.api(ctx)
	if err != nil {
		return types.SendResult{}, err
	}

	raw := base64.URLEncoding.EncodeToString(buildMessage(to, subject, body))
	sent, err := svc.Users.Messages.Send(me, &gmailapi.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return types.SendResult{}, fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("Email sent", zap.String("to", to), zap.String("message_id", sent.Id))
	return types.SendResult{Success: true, MessageID: sent.Id}, nil
}

// MarkAsRead removes the UNREAD label from a message.
func (s *Service) MarkAsRead(ctx context.Context, id string) error {
	svc, err := s.api(ctx)
	if err != nil {
		return err
	}

	_, err = svc.Users.Messages.Modify(me, id, &gmailapi.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("mark %s as read: %w", id, err)
	}
	return nil
}

func buildMessage(to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func toEmail(msg *gmailapi.Message) types.Email {
	e := types.Email{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
	}
	if msg.Payload == nil {
		return e
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			e.Subject = h.Value
		case "from":
			e.FromEmail = h.Value
		}
	}
	e.Body = extractBody(msg.Payload)
	return e
}

// extractBody prefers a single-part body, then the first text/plain part,
// then text/html with tags stripped, then nested multiparts.
func extractBody(part *gmailapi.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.Body != nil && part.Body.Data != "" {
		return decodeData(part.Body.Data)
	}

	for _, p := range part.Parts {
		if p.MimeType == "text/plain" && p.Body != nil && p.Body.Data != "" {
			return decodeData(p.Body.Data)
		}
	}
	for _, p := range part.Parts {
		if p.MimeType == "text/html" && p.Body != nil && p.Body.Data != "" {
			return htmlTag.ReplaceAllString(decodeData(p.Body.Data), "")
		}
	}
	for _, p := range part.Parts {
		if len(p.Parts) > 0 {
			if body := extractBody(p); body != "" {
				return body
			}
		}
	}
	return ""
}

// decodeData accepts padded or unpadded base64url.
func decodeData(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return ""
		}
	}
	return strings.ToValidUTF8(string(decoded), "�")
}
