package run

import "time"

// Store summary modes.
const (
	StoreCreated  = "create"
	StoreMirrored = "mirror"
	StoreKept     = "kept"
)

// StoreSummary describes one record entry for the report.
type StoreSummary struct {
	Name string `json:"name"`

	// Mode is create for an owned store, mirror for a redirect, kept for
	// an owned store left standing by Options.KeepStores.
	Mode string `json:"mode"`

	// Tables is the size of the inventory captured at creation; zero for
	// mirrors.
	Tables int `json:"tables"`
}

// Report is the assembled outcome of one run. The controller always hands
// one back, fatal error or not.
type Report struct {
	RunID  string `json:"run_id"`
	Result Result `json:"result"`

	// Outcome is the exit code derived from the unit counts. Fatal
	// orchestrator errors carry their own exit codes and are mapped at
	// the CLI edge, not here.
	Outcome int `json:"outcome"`

	// State is the last lifecycle phase the run completed: reported for a
	// full run, an earlier phase when a fatal error cut it short.
	State string `json:"state"`

	Duration time.Duration  `json:"duration"`
	Stores   []StoreSummary `json:"stores,omitempty"`

	// Fatal is the configuration, provisioning, or execution error that
	// ended the run early; empty for a clean run.
	Fatal string `json:"fatal,omitempty"`

	// TeardownWarnings lists best-effort teardown failures, one line per
	// store plus one for the environment. They never change the outcome.
	TeardownWarnings []string `json:"teardown_warnings,omitempty"`

	// KeptPaths names where kept stores live. The controller does not
	// know the provider's layout; the command fills this in when
	// Options.KeepStores is set.
	KeptPaths []string `json:"kept_paths,omitempty"`
}
