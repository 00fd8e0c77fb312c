package execution

// ResultStatus is the outcome of a single node execution.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailure ResultStatus = "failure"
)

// NodeResult carries the outcome of one node execution: the produced outputs
// on success, or the causing error on failure.  A failed result is still
// routable through on_failure edges.
type NodeResult struct {
	Node    string                 `json:"node"`
	Status  ResultStatus           `json:"status"`
	Outputs map[string]interface{} `json:"outputs,omitempty"`
	Err     error                  `json:"-"`
}

// NewSuccess creates a successful result with the given outputs.
func NewSuccess(node string, outputs map[string]interface{}) *NodeResult {
	return &NodeResult{Node: node, Status: ResultSuccess, Outputs: outputs}
}

// NewFailure creates a failed result carrying the causing error.
func NewFailure(node string, err error) *NodeResult {
	return &NodeResult{Node: node, Status: ResultFailure, Err: err}
}

// Succeeded reports whether the node completed normally.
func (r *NodeResult) Succeeded() bool {
	return r != nil && r.Status == ResultSuccess
}

// maxSummaryLen caps history entries so a verbose error cannot bloat
// persisted snapshots.
const maxSummaryLen = 256

// Summary returns a short human readable account of the result, used in
// session history.
func (r *NodeResult) Summary() string {
	summary := string(r.Status)
	if r.Err != nil {
		summary = r.Err.Error()
	}
	if len(summary) > maxSummaryLen {
		summary = summary[:maxSummaryLen]
	}
	return summary
}

// Vars exposes the result to the expression language.  Conditional edges see
// the outcome as "status" and "error" alongside session memory.
func (r *NodeResult) Vars() map[string]interface{} {
	vars := map[string]interface{}{
		"status": string(r.Status),
	}
	if r.Err != nil {
		vars["error"] = r.Err.Error()
	}
	return vars
}
