package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

type client struct {
	base *url.URL
	http *http.Client
	log  *logrus.Entry

	// pollInterval is how often AwaitJob re-reads the job record.
	pollInterval time.Duration
}

// NewClient returns a Client talking to the job service at baseURL.
func NewClient(baseURL string) (Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing workflow service URL %q: %w", baseURL, err)
	}
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	return &client{
		base:         u,
		http:         rc.StandardClient(),
		log:          logrus.WithField("component", "workflow"),
		pollInterval: 2 * time.Second,
	}, nil
}

type jobRecord struct {
	ID        string    `json:"uuid"`
	Execution string    `json:"execution"` // queued, running, succeeded, failed, canceled
	Error     *JobError `json:"chain_err,omitempty"`
}

func (c *client) SubmitPullJob(ctx context.Context, job PullJob) (string, error) {
	body, err := json.Marshal(map[string]any{
		"name":   "pull-image",
		"params": job,
	})
	if err != nil {
		return "", err
	}
	u := *c.base
	u.Path = "/jobs"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.log.Debugf("submitting pull job for %q", job.RepoAndTag)
	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting pull job: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<16))
		return "", fmt.Errorf("workflow service rejected pull job: status %d: %s", res.StatusCode, raw)
	}
	var rec jobRecord
	if err := json.NewDecoder(res.Body).Decode(&rec); err != nil {
		return "", fmt.Errorf("decoding job submission response: %w", err)
	}
	return rec.ID, nil
}

func (c *client) AwaitJob(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		rec, err := c.getJob(ctx, jobID)
		if err != nil {
			return err
		}
		switch rec.Execution {
		case "succeeded":
			return nil
		case "failed", "canceled":
			if rec.Error != nil {
				return rec.Error
			}
			return &JobError{Message: fmt.Sprintf("job %s %s", jobID, rec.Execution)}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *client) getJob(ctx context.Context, jobID string) (*jobRecord, error) {
	u := *c.base
	u.Path = "/jobs/" + jobID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reading job %s: %w", jobID, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("workflow service returned status %d for job %s", res.StatusCode, jobID)
	}
	var rec jobRecord
	if err := json.NewDecoder(res.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding job %s: %w", jobID, err)
	}
	return &rec, nil
}
