package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL    = "http://localhost:8000"
	DefaultUploadPath = "/api/upload-image/"
	// LegacyUploadPath is the path used by older backend deployments.
	LegacyUploadPath = "/upload-image/"
)

// Product is one recommendation as returned by the backend.
type Product struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
	ImagePath   string `json:"image_path"`
}

// UploadResponse is the backend's success body. Product may be null.
type UploadResponse struct {
	Product []Product `json:"product"`
}

// File is the optional image part of an upload.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// UploadRequest is the multipart body: an optional file and a description
// that is always sent, even when empty.
type UploadRequest struct {
	File        *File
	Description string
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	StatusText string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Server error: %s", e.StatusText)
}

// ErrMalformedResponse is returned when a 2xx body is not valid JSON.
var ErrMalformedResponse = errors.New("malformed response")

type ClientOpts struct {
	BaseURL    string
	UploadPath string
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// Client talks to the recommendation backend.
type Client struct {
	httpClient *resty.Client
	baseURL    string
	uploadPath string
}

func NewClient(opts ClientOpts) *Client {
	c := Client{baseURL: DefaultBaseURL, uploadPath: DefaultUploadPath}
	if opts.BaseURL != "" {
		c.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.UploadPath != "" {
		c.uploadPath = "/" + strings.TrimLeft(opts.UploadPath, "/")
	}

	if opts.HTTPClient != nil {
		c.httpClient = resty.NewWithClient(opts.HTTPClient)
	} else {
		c.httpClient = resty.New()
	}
	// No client-side timeout: a submission lives as long as the transport
	// keeps it alive.
	c.httpClient.
		SetDebug(false).
		SetBaseURL(c.baseURL).
		SetHeader("Accept", "application/json")

	return &c
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// UploadPath returns the upload endpoint path.
func (c *Client) UploadPath() string {
	return c.uploadPath
}

// UploadImage posts the image and description and returns the matched
// products. A missing or null product list yields an empty slice.
func (c *Client) UploadImage(ctx context.Context, req UploadRequest) ([]Product, error) {
	r := c.httpClient.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{
			"description": req.Description,
		})

	if req.File != nil {
		name := req.File.Name
		if name == "" {
			name = "image"
		}
		mimeType := req.File.MimeType
		if mimeType == "" {
			mimeType = http.DetectContentType(req.File.Data)
		}
		r.SetMultipartField("file", name, mimeType, bytes.NewReader(req.File.Data))
	}

	log.Info().
		Str("url", c.baseURL+c.uploadPath).
		Bool("hasFile", req.File != nil).
		Int("descriptionLen", len(req.Description)).
		Msg("uploading inspiration")

	res, err := handleError(r.Post(c.uploadPath))
	if err != nil {
		return nil, err
	}

	var body UploadResponse
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if body.Product == nil {
		body.Product = []Product{}
	}

	log.Info().Int("products", len(body.Product)).Msg("received recommendations")
	return body.Product, nil
}

// handleError turns any non-2xx response into a StatusError. Without this,
// failing responses would have nil error.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, fmt.Errorf("request failed: %w", err)
	}
	if !res.IsSuccess() {
		return res, &StatusError{StatusCode: res.StatusCode(), StatusText: statusText(res)}
	}
	return res, nil
}

// statusText returns the reason phrase of the response, e.g. "Not Found".
func statusText(res *resty.Response) string {
	status := res.Status()
	code := fmt.Sprintf("%d", res.StatusCode())
	if text := strings.TrimSpace(strings.TrimPrefix(status, code)); text != "" {
		return text
	}
	return http.StatusText(res.StatusCode())
}
