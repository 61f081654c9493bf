package workspace

import "fmt"

// Property names persisted on every page this tool manages. They key a
// remote page back to its tree node across runs; pages without them are
// not ours and are never touched.
const (
	PropNodeID      = "docflow_node_id"
	PropFingerprint = "docflow_fingerprint"
)

// RemotePage is a page already present in the workspace, as seen by the
// reconciler.
type RemotePage struct {
	ID          string
	ParentID    string
	Title       string
	NodeID      string
	Fingerprint string
}

// Managed reports whether the page carries the identifying property and so
// belongs to this tool.
func (p RemotePage) Managed() bool { return p.NodeID != "" }

// ErrorKind classifies a workspace API failure.
type ErrorKind string

const (
	NotFound         ErrorKind = "not_found"
	PermissionDenied ErrorKind = "permission_denied"
	RateLimited      ErrorKind = "rate_limited"
	ServiceFailure   ErrorKind = "service_failure"
)

// APIError is a classified failure from a workspace call.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("workspace request failed (%s, status %d): %s", e.Kind, e.Status, e.Message)
}
