package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/docker/distribution/registry/api/errcode"
	v2 "github.com/docker/distribution/registry/api/v2"
	"github.com/sirupsen/logrus"
)

// PullErrorMessage turns a failed pull job into the user-facing,
// Docker-compatible error text appended to the progress stream.  The job's
// structured code wins when present; otherwise the message is tried as a
// registry error envelope; anything unrecognized degrades to a generic
// internal error so tenant-facing output never leaks job internals.
func PullErrorMessage(err error, repoAndTag string) string {
	var je *JobError
	if !errors.As(err, &je) {
		logrus.Warnf("unclassifiable pull failure for %q: %v", repoAndTag, err)
		return genericPullError(repoAndTag)
	}
	switch je.Code {
	case "ResourceNotFound", "UnknownRepository", "ENOTFOUND":
		return fmt.Sprintf("Error: image %s not found", repoAndTag)
	case "UnauthorizedError", "NotAuthorized":
		return fmt.Sprintf("Error pulling image %s: unauthorized: authentication required", repoAndTag)
	case "RemoteSourceError", "DownloadError":
		return fmt.Sprintf("Error pulling image %s: error communicating with the registry", repoAndTag)
	}
	if msg, ok := registryEnvelopeMessage(je.Message, repoAndTag); ok {
		return msg
	}
	logrus.Warnf("unclassifiable pull failure for %q: code=%q message=%q", repoAndTag, je.Code, je.Message)
	return genericPullError(repoAndTag)
}

// registryEnvelopeMessage attempts to read message as the registry's
// {"errors":[{"code","message"}]} envelope, which pull jobs pass through
// verbatim when the registry itself rejected the request.
func registryEnvelopeMessage(message, repoAndTag string) (string, bool) {
	start := strings.IndexByte(message, '{')
	if start < 0 {
		return "", false
	}
	var envelope errcode.Errors
	if err := json.Unmarshal([]byte(message[start:]), &envelope); err != nil || len(envelope) == 0 {
		return "", false
	}
	first := envelope[0]
	var code errcode.ErrorCode
	switch e := first.(type) {
	case errcode.Error:
		code = e.Code
	case errcode.ErrorCode:
		code = e
	default:
		return "", false
	}
	switch code {
	case v2.ErrorCodeManifestUnknown, v2.ErrorCodeNameUnknown:
		return fmt.Sprintf("Error: image %s not found", repoAndTag), true
	case errcode.ErrorCodeUnauthorized, errcode.ErrorCodeDenied:
		return fmt.Sprintf("Error pulling image %s: unauthorized: authentication required", repoAndTag), true
	}
	return fmt.Sprintf("Error pulling image %s: %s", repoAndTag, first.Error()), true
}

func genericPullError(repoAndTag string) string {
	return fmt.Sprintf("Error pulling image %s: internal error", repoAndTag)
}
