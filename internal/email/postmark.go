package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"time"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// Invitation is what the recipient needs to act on an invitation.
type Invitation struct {
	To            string
	HouseholdName string
	InviterName   string
	Role          string
	Token         string
	Message       string
	ExpiresAt     time.Time
}

func (c *Client) acceptLink(token string) string {
	return fmt.Sprintf("%s/invitations/%s", c.baseURL, url.PathEscape(token))
}

// SendInvitation emails the invite link for a household invitation.
func (c *Client) SendInvitation(inv Invitation) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	inviter := inv.InviterName
	if inviter == "" {
		inviter = "A household member"
	}
	subject := fmt.Sprintf("You've been invited to %s on Kitchentory", inv.HouseholdName)
	link := c.acceptLink(inv.Token)
	expires := inv.ExpiresAt.UTC().Format("Jan 2, 2006 15:04 MST")

	textBody := fmt.Sprintf("%s invited you to join %s as %s.\n\n", inviter, inv.HouseholdName, inv.Role)
	htmlBody := fmt.Sprintf("<p>%s invited you to join <strong>%s</strong> as %s.</p>",
		html.EscapeString(inviter), html.EscapeString(inv.HouseholdName), html.EscapeString(inv.Role))
	if inv.Message != "" {
		textBody += fmt.Sprintf("%q\n\n", inv.Message)
		htmlBody += fmt.Sprintf("<blockquote>%s</blockquote>", html.EscapeString(inv.Message))
	}
	textBody += fmt.Sprintf("Accept your invitation:\n\n%s\n\nThis invitation expires %s.", link, expires)
	htmlBody += fmt.Sprintf(`<p><a href="%s">Accept your invitation</a></p><p>This invitation expires %s.</p>`,
		html.EscapeString(link), expires)

	return c.send(postmarkEmail{
		From:     c.fromEmail,
		To:       inv.To,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
}

func (c *Client) send(payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", postmarkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
