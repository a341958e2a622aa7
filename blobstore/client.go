package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// serviceError is the blob service's error envelope.
type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *serviceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

type client struct {
	base *url.URL
	http *http.Client
	log  *logrus.Entry
}

// NewClient returns a Store talking to the blob service at baseURL.
// Transient transport failures are retried.
func NewClient(baseURL string) (Store, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing blob store URL %q: %w", baseURL, err)
	}
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	return &client{
		base: u,
		http: rc.StandardClient(),
		log:  logrus.WithField("component", "blobstore"),
	}, nil
}

func (c *client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = path
	u.RawQuery = query.Encode()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.log.Debugf("%s %s", method, u.String())
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("blob store %s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return c.responseError(res)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding blob store response: %w", err)
		}
	}
	return nil
}

// responseError maps the service's error envelope onto the client's
// sentinels where the engine dispatches on them, and passes everything else
// through with the envelope text.
func (c *client) responseError(res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
	var se serviceError
	if err := json.Unmarshal(raw, &se); err == nil && se.Code != "" {
		switch se.Code {
		case "ResourceNotFound", "BlobNotFound":
			return fmt.Errorf("%s: %w", se.Message, ErrBlobNotFound)
		case "DependentBlobExists", "BlobHasDependents":
			return fmt.Errorf("%s: %w", se.Message, ErrDependentBlob)
		}
		return &se
	}
	if res.StatusCode == http.StatusNotFound {
		return ErrBlobNotFound
	}
	return fmt.Errorf("blob store returned status %d", res.StatusCode)
}

func (c *client) Get(ctx context.Context, blobID string) (*Blob, error) {
	var b Blob
	if err := c.do(ctx, http.MethodGet, "/blobs/"+blobID, nil, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *client) Delete(ctx context.Context, blobID string) error {
	return c.do(ctx, http.MethodDelete, "/blobs/"+blobID, nil, nil, nil)
}

func (c *client) Create(ctx context.Context, manifest *Blob) (*Blob, error) {
	var b Blob
	if err := c.do(ctx, http.MethodPost, "/blobs", nil, manifest, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *client) Import(ctx context.Context, manifest *Blob) (*Blob, error) {
	var b Blob
	q := url.Values{"action": []string{"import"}}
	if err := c.do(ctx, http.MethodPost, "/blobs", q, manifest, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *client) Activate(ctx context.Context, blobID string) (*Blob, error) {
	var b Blob
	q := url.Values{"action": []string{"activate"}}
	if err := c.do(ctx, http.MethodPost, "/blobs/"+blobID, q, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *client) ListNative(ctx context.Context, owner string) ([]*Blob, error) {
	var blobs []*Blob
	q := url.Values{"account": []string{owner}, "state": []string{"active"}}
	if err := c.do(ctx, http.MethodGet, "/blobs", q, nil, &blobs); err != nil {
		return nil, err
	}
	return blobs, nil
}
