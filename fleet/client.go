package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

type client struct {
	base *url.URL
	http *http.Client
	log  *logrus.Entry
}

// NewClient returns an Inventory talking to the fleet service at baseURL.
func NewClient(baseURL string) (Inventory, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing fleet inventory URL %q: %w", baseURL, err)
	}
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	return &client{
		base: u,
		http: rc.StandardClient(),
		log:  logrus.WithField("component", "fleet"),
	}, nil
}

func (c *client) ListWorkloads(ctx context.Context, params ListParams) ([]*Workload, error) {
	u := *c.base
	u.Path = "/workloads"
	q := url.Values{}
	if params.BlobID != "" {
		q.Set("image_uuid", params.BlobID)
	}
	if params.Owner != "" {
		q.Set("owner_uuid", params.Owner)
	}
	if len(params.States) > 0 {
		q.Set("state", strings.Join(params.States, ","))
	}
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	c.log.Debugf("GET %s", u.String())
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fleet inventory query: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fleet inventory returned status %d", res.StatusCode)
	}
	var workloads []*Workload
	if err := json.NewDecoder(res.Body).Decode(&workloads); err != nil {
		return nil, fmt.Errorf("decoding fleet inventory response: %w", err)
	}
	return workloads, nil
}
