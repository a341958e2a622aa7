package workflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testRepoAndTag = "docker.io/library/busybox:latest"

func TestPullErrorMessageByCode(t *testing.T) {
	cases := []struct {
		code string
		want string
	}{
		{"ResourceNotFound", "Error: image docker.io/library/busybox:latest not found"},
		{"UnknownRepository", "Error: image docker.io/library/busybox:latest not found"},
		{"ENOTFOUND", "Error: image docker.io/library/busybox:latest not found"},
		{"UnauthorizedError", "Error pulling image docker.io/library/busybox:latest: unauthorized: authentication required"},
		{"NotAuthorized", "Error pulling image docker.io/library/busybox:latest: unauthorized: authentication required"},
		{"RemoteSourceError", "Error pulling image docker.io/library/busybox:latest: error communicating with the registry"},
		{"DownloadError", "Error pulling image docker.io/library/busybox:latest: error communicating with the registry"},
	}
	for _, tc := range cases {
		err := &JobError{Code: tc.code, Message: "whatever the job said"}
		assert.Equal(t, tc.want, PullErrorMessage(err, testRepoAndTag), "code %s", tc.code)
	}
}

// A wrapped JobError still classifies.
func TestPullErrorMessageUnwraps(t *testing.T) {
	err := fmt.Errorf("job failed: %w", &JobError{Code: "ResourceNotFound", Message: "gone"})
	assert.Equal(t, "Error: image docker.io/library/busybox:latest not found",
		PullErrorMessage(err, testRepoAndTag))
}

func TestPullErrorMessageRegistryEnvelope(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    string
	}{
		{
			"manifest unknown",
			`registry said: {"errors":[{"code":"MANIFEST_UNKNOWN","message":"manifest unknown"}]}`,
			"Error: image docker.io/library/busybox:latest not found",
		},
		{
			"name unknown",
			`{"errors":[{"code":"NAME_UNKNOWN","message":"repository name not known to registry"}]}`,
			"Error: image docker.io/library/busybox:latest not found",
		},
		{
			"unauthorized",
			`{"errors":[{"code":"UNAUTHORIZED","message":"authentication required"}]}`,
			"Error pulling image docker.io/library/busybox:latest: unauthorized: authentication required",
		},
		{
			"denied",
			`{"errors":[{"code":"DENIED","message":"requested access to the resource is denied"}]}`,
			"Error pulling image docker.io/library/busybox:latest: unauthorized: authentication required",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := &JobError{Message: tc.message}
			assert.Equal(t, tc.want, PullErrorMessage(err, testRepoAndTag))
		})
	}
}

func TestPullErrorMessageEnvelopeOtherCode(t *testing.T) {
	err := &JobError{Message: `{"errors":[{"code":"TOOMANYREQUESTS","message":"rate limited"}]}`}
	got := PullErrorMessage(err, testRepoAndTag)
	assert.Contains(t, got, "Error pulling image docker.io/library/busybox:latest: ")
	assert.NotEqual(t, genericPullError(testRepoAndTag), got)
}

// Unrecognized failures degrade to a generic message; job internals never
// reach the tenant.
func TestPullErrorMessageGenericFallback(t *testing.T) {
	want := "Error pulling image docker.io/library/busybox:latest: internal error"
	assert.Equal(t, want, PullErrorMessage(errors.New("socket hangup in moray"), testRepoAndTag))
	assert.Equal(t, want, PullErrorMessage(&JobError{Code: "WeirdInternalCode", Message: "stack trace"}, testRepoAndTag))
	assert.Equal(t, want, PullErrorMessage(&JobError{Message: "no envelope here"}, testRepoAndTag))
	assert.Equal(t, want, PullErrorMessage(&JobError{Message: "broken { envelope"}, testRepoAndTag))
}

func TestJobErrorError(t *testing.T) {
	assert.Equal(t, "ResourceNotFound: gone", (&JobError{Code: "ResourceNotFound", Message: "gone"}).Error())
	assert.Equal(t, "gone", (&JobError{Message: "gone"}).Error())
}
