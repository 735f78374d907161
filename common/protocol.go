package common

const (
	// DefaultRollupURL is where the coordinator listens when
	// ROLLUP_HTTP_SERVER_URL is not set.
	DefaultRollupURL = "http://127.0.0.1:5004"

	// EnvRollupURL selects the coordinator base URL.
	EnvRollupURL = "ROLLUP_HTTP_SERVER_URL"
)

// RequestType is the kind of work item handed out by /finish.
type RequestType string

const (
	AdvanceState RequestType = "advance_state"
	InspectState RequestType = "inspect_state"
)

// Status is the verdict sent back to the coordinator for the
// just-completed work item.
type Status string

const (
	StatusAccept Status = "accept"
	StatusReject Status = "reject"
)

// Valid reports whether s is one of the two statuses the coordinator understands.
func (s Status) Valid() bool {
	return s == StatusAccept || s == StatusReject
}

// --- Rollup HTTP protocol ---

// FinishRequest is the body of POST /finish.
type FinishRequest struct {
	Status Status `json:"status"`
}

// RollupRequest is the work item returned by POST /finish.
type RollupRequest struct {
	RequestType RequestType `json:"request_type"`
	Data        RequestData `json:"data"`
}

// RequestData carries the hex payload and, for advance requests, the
// input metadata the node attaches.
type RequestData struct {
	Payload  string    `json:"payload"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Metadata describes where an advance input came from. It is logged but
// never influences a result.
type Metadata struct {
	MsgSender   string `json:"msg_sender"`
	EpochIndex  uint64 `json:"epoch_index"`
	InputIndex  uint64 `json:"input_index"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   int64  `json:"timestamp"`
}

// PayloadBody is the body of POST /notice and POST /report.
type PayloadBody struct {
	Payload string `json:"payload"`
}

// IndexResponse is what the coordinator answers to POST /notice.
type IndexResponse struct {
	Index int `json:"index"`
}

// --- Business objects ---

// Request is the decoded advance/inspect input.
type Request struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// ErrorDetail is the only shape ever sent on the report channel.
type ErrorDetail struct {
	Error string `json:"error"`
}

// InspectInfo is the fixed notice emitted for every inspect request.
type InspectInfo struct {
	Ops     []string      `json:"ops"`
	Format  RequestFormat `json:"format"`
	Example Request       `json:"example"`
}

// RequestFormat documents the expected request shape.
type RequestFormat struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}
