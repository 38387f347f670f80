// Package job tracks geocoding jobs: progress state, cancellation flags,
// and the runner that executes one job over one uploaded file.
package job

// Status is the lifecycle state of a geocoding job.
type Status string

// Job lifecycle states. Completed, Canceled, and Error are terminal.
const (
	StatusStarting  Status = "starting"
	StatusGeocoding Status = "geocoding"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusError     Status = "error"

	// StatusNotFound is reported to pollers asking about an unknown job id.
	StatusNotFound Status = "not_found"
)

// Progress is a point-in-time snapshot of a job's state. The running job is
// the only writer; pollers receive copies.
type Progress struct {
	Status         Status `json:"status"`
	Progress       int    `json:"progress"`
	Total          int    `json:"total"`
	CurrentAddress string `json:"current_address"`
	Completed      bool   `json:"completed"`
	Error          string `json:"error,omitempty"`

	// Set when the job completes.
	SuccessfulCount    int  `json:"successful_count"`
	FailedCount        int  `json:"failed_count"`
	HasFailedAddresses bool `json:"has_failed_addresses"`
}
