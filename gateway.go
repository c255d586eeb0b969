package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// Gateway authenticates against the posting service
type Gateway interface {
	Login(ctx context.Context, identity, secret string) (Session, error)
}

// Session submits posts on behalf of an authenticated user
type Session interface {
	CreatePost(ctx context.Context, project string, post *Post) (string, error)
}

// AuthError is returned when the posting service rejects the credentials or
// cannot be reached during login
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed: %v", e.Err)
	}
	return fmt.Sprintf("login failed: HTTP %d", e.StatusCode)
}

func (e *AuthError) Unwrap() error { return e.Err }

// SubmitError is returned when a post is not accepted
type SubmitError struct {
	StatusCode int
	Err        error
}

func (e *SubmitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("creating post failed: %v", e.Err)
	}
	return fmt.Sprintf("creating post failed: HTTP %d", e.StatusCode)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// HTTPGateway talks to the posting service's REST API
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway creates a gateway for the API rooted at baseURL
func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges an email and password for a session token
func (g *HTTPGateway) Login(ctx context.Context, identity, secret string) (Session, error) {
	body, err := json.Marshal(loginRequest{Email: identity, Password: secret})
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &AuthError{StatusCode: resp.StatusCode}
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding login response: %w", err)}
	}
	if lr.Token == "" {
		return nil, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("empty session token")}
	}

	return &httpSession{gateway: g, token: lr.Token}, nil
}

type httpSession struct {
	gateway *HTTPGateway
	token   string
}

type postAttachment struct {
	Filename string `json:"filename"`
	AltText  string `json:"alt_text"`
}

type postRequest struct {
	Headline    string           `json:"headline"`
	Markdown    string           `json:"markdown"`
	Tags        []string         `json:"tags"`
	Attachments []postAttachment `json:"attachments"`
}

type postResponse struct {
	ID string `json:"id"`
}

// CreatePost uploads post as multipart form data: a JSON "post" part
// followed by one "attachment" part per attachment, in order.
func (s *httpSession) CreatePost(ctx context.Context, project string, post *Post) (string, error) {
	body, contentType, err := encodePost(post)
	if err != nil {
		return "", &SubmitError{Err: err}
	}

	endpoint := fmt.Sprintf("%s/projects/%s/posts", s.gateway.baseURL, url.PathEscape(project))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", &SubmitError{Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.gateway.client.Do(req)
	if err != nil {
		return "", &SubmitError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		io.Copy(io.Discard, resp.Body)
		return "", &SubmitError{StatusCode: resp.StatusCode}
	}

	var pr postResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", &SubmitError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding post response: %w", err)}
	}

	return pr.ID, nil
}

func encodePost(post *Post) (io.Reader, string, error) {
	meta := postRequest{
		Headline:    post.Headline,
		Markdown:    post.Markdown,
		Tags:        post.Tags,
		Attachments: make([]postAttachment, 0, len(post.Attachments)),
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	for _, a := range post.Attachments {
		meta.Attachments = append(meta.Attachments, postAttachment{Filename: a.Filename, AltText: a.AltText})
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", fmt.Errorf("encoding post: %w", err)
	}
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="post"`},
		"Content-Type":        {"application/json"},
	})
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(metaJSON); err != nil {
		return nil, "", err
	}

	for _, a := range post.Attachments {
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {fmt.Sprintf(`form-data; name="attachment"; filename=%q`, a.Filename)},
			"Content-Type":        {a.ContentType},
		})
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(a.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
