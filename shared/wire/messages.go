// Package wire is the hand-authored substitute for a protoc-generated
// package: arkeep.proto (in this directory) is the documented
// contract, and this file defines the Go message types it describes.
// Wire encoding is JSON rather than real protobuf binary — see
// DESIGN.md's "shared/wire" entry for why: no protoc toolchain is
// available to generate a real pb.go, and hand-faking one (correct
// ProtoReflect(), raw descriptors) would not be an honest substitute.
// The messages are still carried over google.golang.org/grpc using a
// custom encoding.Codec (see codec.go), so the transport, streaming,
// interceptor, and deadline semantics are all real gRPC.
package wire

// RegisterRequest is sent once when an agent establishes a session.
type RegisterRequest struct {
	Hostname     string            `json:"hostname"`
	Version      string            `json:"version"`
	OS           string            `json:"os"`
	Arch         string            `json:"arch"`
	Capabilities AgentCapabilities `json:"capabilities"`
}

// AgentCapabilities advertises what an agent's archive engine supports.
type AgentCapabilities struct {
	DockerAvailable    bool     `json:"docker_available"`
	CompressAlgorithms []string `json:"compress_algorithms"`
	CryptAlgorithms    []string `json:"crypt_algorithms"`
}

// RegisterResponse returns the durable agent identity.
type RegisterResponse struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
}

// HeartbeatRequest is sent periodically by a connected agent.
type HeartbeatRequest struct {
	AgentID string       `json:"agent_id"`
	Metrics AgentMetrics `json:"metrics"`
}

// AgentMetrics is a point-in-time resource sample.
type AgentMetrics struct {
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryUsedBytes uint64  `json:"memory_used_bytes"`
	DiskFreeBytes   uint64  `json:"disk_free_bytes"`
}

// HeartbeatResponse acknowledges a heartbeat. Empty by design.
type HeartbeatResponse struct{}

// StreamJobsRequest opens the server-streaming job assignment channel.
type StreamJobsRequest struct {
	AgentID string `json:"agent_id"`
}

// JobType distinguishes the archive operation an assignment requests.
type JobType int32

const (
	JobTypeUnspecified JobType = 0
	JobTypeBackup      JobType = 1
	JobTypeRestore     JobType = 2
)

// JobAssignment carries one job's payload to an agent.
type JobAssignment struct {
	JobID    string  `json:"job_id"`
	PolicyID string  `json:"policy_id"`
	Type     JobType `json:"type"`
	Payload  []byte  `json:"payload"`
}

// JobStatus mirrors the server's job lifecycle states on the wire.
type JobStatus int32

const (
	JobStatusUnspecified JobStatus = 0
	JobStatusRunning     JobStatus = 1
	JobStatusSucceeded   JobStatus = 2
	JobStatusFailed      JobStatus = 3
	JobStatusCancelled   JobStatus = 4
)

// JobStatusReport is sent by an agent as a job progresses.
type JobStatusReport struct {
	JobID           string                 `json:"job_id"`
	AgentID         string                 `json:"agent_id"`
	Status          JobStatus              `json:"status"`
	Message         string                 `json:"message"`
	TimestampUnixMs int64                  `json:"timestamp_unix_ms"`
	Results         []JobDestinationResult `json:"results,omitempty"`
}

// JobDestinationResult carries one destination's outcome, attached to the
// terminal JobStatusReport (succeeded or failed) so the server can record
// per-destination snapshot metadata — and, via Entries, the index catalog's
// per-file rows — without a separate RPC round trip.
type JobDestinationResult struct {
	DestinationID string        `json:"destination_id"`
	SnapshotID    string        `json:"snapshot_id"`
	SizeBytes     int64         `json:"size_bytes"`
	Error         string        `json:"error,omitempty"`
	Entries       []EntryResult `json:"entries,omitempty"`
}

// EntryFragmentResult is one contiguous byte range of an entry's stored
// content, positioned within the entry's logical byte stream.
// FragmentIndex is the archive volume (0-based) the fragment was written
// to, so a backup spanning several volumes can still be catalogued
// precisely.
type EntryFragmentResult struct {
	FragmentIndex uint32 `json:"fragment_index"`
	Offset        uint64 `json:"offset"`
	Size          uint64 `json:"size"`
}

// EntryResult is the catalog-facing record of one archived
// file/directory/link, reported by the agent so the server can insert
// the corresponding entries/entryFragments rows.
type EntryResult struct {
	Type            string                `json:"type"`
	Name            string                `json:"name"`
	Size            int64                 `json:"size"`
	TimeLastChanged int64                 `json:"time_last_changed_unix"`
	UserID          uint32                `json:"user_id"`
	GroupID         uint32                `json:"group_id"`
	Permission      uint32                `json:"permission"`
	ContentHash     []byte                `json:"content_hash,omitempty"`
	HashAlgorithm   string                `json:"hash_algorithm,omitempty"`
	LinkTarget      string                `json:"link_target,omitempty"`
	Fragments       []EntryFragmentResult `json:"fragments,omitempty"`
}

// JobStatusAck acknowledges a status report.
type JobStatusAck struct {
	OK bool `json:"ok"`
}

// LogLevel mirrors zap's level set on the wire.
type LogLevel int32

const (
	LogLevelUnspecified LogLevel = 0
	LogLevelDebug       LogLevel = 1
	LogLevelInfo        LogLevel = 2
	LogLevelWarn        LogLevel = 3
	LogLevelError       LogLevel = 4
)

// LogEntry is one line of a job's log stream.
type LogEntry struct {
	JobID           string   `json:"job_id"`
	AgentID         string   `json:"agent_id"`
	Level           LogLevel `json:"level"`
	Message         string   `json:"message"`
	TimestampUnixMs int64    `json:"timestamp_unix_ms"`
}

// StreamLogsAck closes a client-streaming log upload.
type StreamLogsAck struct {
	EntriesReceived uint32 `json:"entries_received"`
}
