// Package contentapi is the HTTP adapter for the external content service.
//
// Endpoints used:
//
//	GET  /v1/owners/{owner}/content?visibility=private
//	GET  /v1/owners/{owner}/recipients
//	GET  /v1/owners/{owner}/assignments/{contact}/recipients
//	POST /v1/content/{content}/shares   {"recipient": "..."}
//
// A share answered with 409 means the grant already exists and counts as
// success.
package contentapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"heirloom/internal/release/models"
	id "heirloom/pkg/domain"
	"heirloom/pkg/platform/circuit"
)

// ErrCircuitOpen is returned without a network call while the content
// service is considered down.
var ErrCircuitOpen = errors.New("content service circuit open")

// StatusError is a non-success reply from the content service.
type StatusError struct {
	Method string
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("content service %s %s: status %d", e.Method, e.Path, e.Status)
}

// Client does not retry on its own: the orchestrator records failed pairs
// and the operator retry re-runs them.
type Client struct {
	http    *resty.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) { cl.breaker = b }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

func New(baseURL, token string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		httpClient.SetAuthToken(token)
	}

	c := &Client{
		http:    httpClient,
		breaker: circuit.New("content-api"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type contentItem struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	AssignedContactID string `json:"assigned_contact_id,omitempty"`
}

type contentList struct {
	Items []contentItem `json:"items"`
}

type recipientList struct {
	Recipients []string `json:"recipients"`
}

type shareRequest struct {
	Recipient string `json:"recipient"`
}

func (c *Client) ListPrivateContent(ctx context.Context, owner id.PersonID) ([]models.Content, error) {
	var body contentList
	req := c.http.R().
		SetPathParam("owner", owner.String()).
		SetQueryParam("visibility", "private")
	if err := c.do(ctx, req, http.MethodGet, "/v1/owners/{owner}/content", &body); err != nil {
		return nil, err
	}
	out := make([]models.Content, 0, len(body.Items))
	for _, item := range body.Items {
		contentID, err := id.ParseContentID(item.ID)
		if err != nil {
			return nil, fmt.Errorf("content service returned invalid content id %q: %w", item.ID, err)
		}
		content := models.Content{ID: contentID, OwnerPersonID: owner, Title: item.Title}
		if item.AssignedContactID != "" {
			contactID, err := id.ParseContactID(item.AssignedContactID)
			if err != nil {
				return nil, fmt.Errorf("content service returned invalid contact id %q: %w", item.AssignedContactID, err)
			}
			content.AssignedContactID = &contactID
		}
		out = append(out, content)
	}
	return out, nil
}

func (c *Client) GeneralRecipients(ctx context.Context, owner id.PersonID) ([]string, error) {
	var body recipientList
	req := c.http.R().SetPathParam("owner", owner.String())
	if err := c.do(ctx, req, http.MethodGet, "/v1/owners/{owner}/recipients", &body); err != nil {
		return nil, err
	}
	return body.Recipients, nil
}

func (c *Client) AssignedRecipients(ctx context.Context, owner id.PersonID, contactID id.ContactID) ([]string, error) {
	var body recipientList
	req := c.http.R().SetPathParams(map[string]string{
		"owner":   owner.String(),
		"contact": contactID.String(),
	})
	if err := c.do(ctx, req, http.MethodGet, "/v1/owners/{owner}/assignments/{contact}/recipients", &body); err != nil {
		return nil, err
	}
	return body.Recipients, nil
}

func (c *Client) Share(ctx context.Context, contentID id.ContentID, recipient string) error {
	req := c.http.R().
		SetPathParam("content", contentID.String()).
		SetHeader("Content-Type", "application/json").
		SetBody(shareRequest{Recipient: recipient})
	err := c.do(ctx, req, http.MethodPost, "/v1/content/{content}/shares", nil)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusConflict {
		return nil
	}
	return err
}

// do executes req through the breaker. Only 5xx replies and transport errors
// count against the content service; a 4xx is the caller's problem.
func (c *Client) do(ctx context.Context, req *resty.Request, method, path string, out any) error {
	if !c.breaker.Allow() {
		return ErrCircuitOpen
	}

	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		c.recordFailure(ctx)
		return fmt.Errorf("content service %s %s: %w", method, path, err)
	}
	if resp.StatusCode() >= 500 {
		c.recordFailure(ctx)
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode()}
	}
	c.recordSuccess(ctx)
	if resp.IsError() || resp.StatusCode() >= 300 {
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode()}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode content service response: %w", err)
	}
	return nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "content service circuit opened", "breaker", c.breaker.Name())
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "content service circuit closed", "breaker", c.breaker.Name())
	}
}
