package gmail

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"mailsorter/internal/logger"
	"mailsorter/internal/mailparse"
	"mailsorter/internal/service"
)

const (
	// Use 'me' to refer to the authenticated user
	userMe      = "me"
	unreadQuery = "in:inbox is:unread"
)

// Client calls the Gmail API with the access token passed to each method.
type Client struct {
	timeout time.Duration
	logger  *logger.Logger
	opts    []option.ClientOption
}

var _ service.MailboxClient = (*Client)(nil)

// NewClient returns a Gmail client whose requests are bounded by timeout.
// Extra options are appended to every service, e.g. option.WithEndpoint in tests.
func NewClient(timeout time.Duration, logger *logger.Logger, opts ...option.ClientOption) *Client {
	return &Client{timeout: timeout, logger: logger, opts: opts}
}

func (c *Client) service(ctx context.Context, token *oauth2.Token) (*gmail.Service, error) {
	httpClient := &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(token),
			Base:   http.DefaultTransport,
		},
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, c.opts...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

// ListUnread returns the ids of up to max unread inbox messages.
func (c *Client) ListUnread(ctx context.Context, token *oauth2.Token, max int64) ([]string, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	call := svc.Users.Messages.List(userMe).Q(unreadQuery).Context(ctx)
	if max > 0 {
		call = call.MaxResults(max)
	}
	list, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list unread messages: %w", err)
	}

	ids := make([]string, 0, len(list.Messages))
	for _, msg := range list.Messages {
		ids = append(ids, msg.Id)
	}
	c.logger.Debug("Listed", len(ids), "unread messages")
	return ids, nil
}

// GetMessage fetches the full message and converts it to the parser's format.
func (c *Client) GetMessage(ctx context.Context, token *oauth2.Token, messageID string) (*mailparse.Message, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	message, err := svc.Users.Messages.Get(userMe, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}

	return &mailparse.Message{
		ID:           message.Id,
		ThreadID:     message.ThreadId,
		Snippet:      message.Snippet,
		InternalDate: message.InternalDate,
		Payload:      convertPart(message.Payload),
	}, nil
}

func convertPart(part *gmail.MessagePart) *mailparse.Part {
	if part == nil {
		return nil
	}
	converted := &mailparse.Part{MimeType: part.MimeType}
	for _, h := range part.Headers {
		converted.Headers = append(converted.Headers, mailparse.Header{Name: h.Name, Value: h.Value})
	}
	if part.Body != nil {
		converted.Data = part.Body.Data
	}
	for _, child := range part.Parts {
		converted.Parts = append(converted.Parts, convertPart(child))
	}
	return converted
}

// Archive removes the INBOX and UNREAD labels from the message.
func (c *Client) Archive(ctx context.Context, token *oauth2.Token, messageID string) error {
	svc, err := c.service(ctx, token)
	if err != nil {
		return err
	}

	modifyRequest := &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"INBOX", "UNREAD"},
	}
	if _, err := svc.Users.Messages.Modify(userMe, messageID, modifyRequest).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to archive message %s: %w", messageID, err)
	}

	c.logger.Debug("Archived message:", messageID)
	return nil
}
