package workflow

import (
	"encoding/json"
	"io"
	"sync"
)

// ProgressRegistry hands pull-progress bytes from the job service to the
// HTTP response stream of whichever request started the pull.  Sinks are
// keyed by canonical image name, matching the job's own keying.
type ProgressRegistry struct {
	mutex sync.Mutex
	sinks map[string]io.Writer
}

// NewProgressRegistry returns an empty registry.
func NewProgressRegistry() *ProgressRegistry {
	return &ProgressRegistry{sinks: map[string]io.Writer{}}
}

// Register attaches sink as the progress destination for canonicalName,
// replacing any previous sink.
func (r *ProgressRegistry) Register(canonicalName string, sink io.Writer) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sinks[canonicalName] = sink
}

// Unregister detaches the sink for canonicalName.
func (r *ProgressRegistry) Unregister(canonicalName string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.sinks, canonicalName)
}

// Write delivers one progress payload to the sink registered for
// canonicalName.  Payloads for unknown names are dropped: the pull may have
// been started by a request that already disconnected.
func (r *ProgressRegistry) Write(canonicalName string, payload []byte) {
	r.mutex.Lock()
	sink := r.sinks[canonicalName]
	r.mutex.Unlock()
	if sink == nil {
		return
	}
	sink.Write(payload) //nolint:errcheck // a broken stream must not fail the pull
}

// streamMessage is the chunked-stream JSON message format of the Docker
// pull endpoint.
type streamMessage struct {
	Status      string       `json:"status,omitempty"`
	Error       string       `json:"error,omitempty"`
	ErrorDetail *errorDetail `json:"errorDetail,omitempty"`
}

type errorDetail struct {
	Message string `json:"message"`
}

// WriteStatus appends a status line to the stream for canonicalName.
func (r *ProgressRegistry) WriteStatus(canonicalName, status string) {
	r.writeMessage(canonicalName, streamMessage{Status: status})
}

// WriteError appends a final structured error payload to the stream for
// canonicalName.  Pull responses are chunked streams whose headers are
// already committed by the time a failure is known, so errors are only ever
// appended, never raised as transport errors.
func (r *ProgressRegistry) WriteError(canonicalName, message string) {
	r.writeMessage(canonicalName, streamMessage{
		Error:       message,
		ErrorDetail: &errorDetail{Message: message},
	})
}

func (r *ProgressRegistry) writeMessage(canonicalName string, msg streamMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	r.Write(canonicalName, append(payload, '\n'))
}
