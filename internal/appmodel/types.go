// Package appmodel defines the durable and ephemeral data model: Configuration,
// ApplicationSpec, HealthCheckSpec, ApplicationRuntime, and the application
// State machine (spec.md §3).
package appmodel

import (
	"encoding/json"
	"time"
)

// Seconds is a duration that marshals on the wire as a plain JSON number of
// seconds rather than encoding/json's default nanosecond int64 for
// time.Duration, matching spec.md §3's "startup-timeout seconds (default
// 30)" and §4.2's "interval seconds, timeout seconds" conventions so a
// configuration document round-trips through the MCP/HTTP surface with the
// same units it was written in.
type Seconds time.Duration

// Duration converts s to a time.Duration for use with the time package.
func (s Seconds) Duration() time.Duration { return time.Duration(s) }

func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(s).Seconds())
}

func (s *Seconds) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*s = Seconds(f * float64(time.Second))
	return nil
}

// State is the tagged state of a single ApplicationRuntime.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateFailed   State = "failed"
	StateStopping State = "stopping"
)

// HealthCheckKind enumerates supported probe kinds.
type HealthCheckKind string

const (
	HealthHTTP    HealthCheckKind = "http"
	HealthTCP     HealthCheckKind = "tcp"
	HealthProcess HealthCheckKind = "process"
)

// HealthVerdict is the latest probe result for a run.
type HealthVerdict string

const (
	HealthHealthy   HealthVerdict = "healthy"
	HealthUnhealthy HealthVerdict = "unhealthy"
	HealthUnknown   HealthVerdict = "unknown"
)

// HealthCheckSpec describes how to probe an application for liveness.
type HealthCheckSpec struct {
	Kind     HealthCheckKind `json:"kind"`
	URL      string          `json:"url,omitempty"`
	Port     int             `json:"port,omitempty"`
	Interval Seconds         `json:"interval"`
	Timeout  Seconds         `json:"timeout"`
}

// ApplicationSpec is one managed child process within a Configuration.
type ApplicationSpec struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	HandlerTag     string            `json:"handler_tag"`
	WorkDir        string            `json:"work_dir"`
	Command        string            `json:"command"`
	Env            map[string]string `json:"env,omitempty"`
	BuildCommand   string            `json:"build_command,omitempty"`
	HealthCheck    *HealthCheckSpec  `json:"health_check,omitempty"`
	AutoRestart    bool              `json:"auto_restart"`
	StartupTimeout Seconds           `json:"startup_timeout"`
	DependsOn      []string          `json:"depends_on,omitempty"`
	FixedPort      int               `json:"fixed_port,omitempty"`
	PortEnvVar     string            `json:"port_env_var,omitempty"`
	StopTimeout    Seconds           `json:"stop_timeout,omitempty"`
}

// WantsDynamicPort reports whether this spec asked for an allocator-assigned port.
func (a *ApplicationSpec) WantsDynamicPort() bool {
	return a.FixedPort == 0 && a.PortEnvVar != ""
}

// Configuration is a named group of application specs managed as a unit.
type Configuration struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Applications []ApplicationSpec `json:"applications"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// AppByID returns the ApplicationSpec with the given id, or nil.
func (c *Configuration) AppByID(id string) *ApplicationSpec {
	for i := range c.Applications {
		if c.Applications[i].ID == id {
			return &c.Applications[i]
		}
	}
	return nil
}

// ApplicationRuntime is the ephemeral, non-persisted runtime state of one
// application within a loaded configuration. It is owned exclusively by the
// Process Manager; no other component mutates it.
type ApplicationRuntime struct {
	ConfigID       string
	AppID          string
	State          State
	PID            int
	AllocatedPort  int
	ResolvedEnv    []string
	StartedAt      time.Time
	StoppedAt      time.Time
	LastExitCode   int
	LastError      string
	Health         HealthVerdict
	RunID          string
	RestartCount   int
	restartWindow  []time.Time
}

// ApplicationStatus is the wire-shape returned by get_status.
type ApplicationStatus struct {
	AppID         string        `json:"app_id"`
	State         State         `json:"state"`
	PID           int           `json:"pid,omitempty"`
	ExitCode      int           `json:"exit_code,omitempty"`
	StartedAt     time.Time     `json:"started_at,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Health        HealthVerdict `json:"health,omitempty"`
	AllocatedPort int           `json:"allocated_port,omitempty"`
}

// CommandResult is the outcome of a handler-dispatched custom command.
type CommandResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// LogEntry is one parsed line from a Log Pipeline file.
type LogEntry struct {
	Timestamp time.Time `json:"ts"`
	Stream    string    `json:"stream"`
	Text      string    `json:"text"`
}

// LogRunInfo describes one archived run file.
type LogRunInfo struct {
	RunID      string    `json:"run_id"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// SearchMatch is one regex search hit with surrounding context.
type SearchMatch struct {
	File      string    `json:"file"`
	Line      int       `json:"line"`
	Timestamp time.Time `json:"ts"`
	Text      string    `json:"text"`
	Before    string    `json:"before,omitempty"`
	After     string    `json:"after,omitempty"`
}
