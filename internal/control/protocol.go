package control

// Command names accepted over the control socket.
const (
	CmdPing      = "ping"
	CmdLogin     = "login"
	CmdLogout    = "logout"
	CmdStart     = "start"
	CmdStop      = "stop"
	CmdStatus    = "status"
	CmdActivity  = "activity"
	CmdDashboard = "dashboard"
	CmdWatch     = "watch"
)

// Request is the JSON payload of an [OpCommand] frame. Token is only set for
// login.
type Request struct {
	Command string `json:"command"`
	Token   string `json:"token,omitempty"`
}

// Response is the JSON payload of an [OpResponse] frame. Message is the
// actor-facing line; ErrorKind carries the classification name for failures
// so the editor can branch without parsing text.
type Response struct {
	OK        bool              `json:"ok"`
	Message   string            `json:"message,omitempty"`
	ErrorKind string            `json:"error_kind,omitempty"`
	Status    *StatusPayload    `json:"status,omitempty"`
	Dashboard *DashboardPayload `json:"dashboard,omitempty"`
}

// StatusPayload is how the daemon's tracking state crosses the wire, both in
// status responses and in pushed [OpEvent] frames. StopReason is set on the
// idle event that ends a session when the stop was automatic ("inactivity"),
// empty for a manual stop.
type StatusPayload struct {
	Active         bool   `json:"active"`
	Elapsed        string `json:"elapsed,omitempty"`
	ElapsedSeconds int64  `json:"elapsed_seconds,omitempty"`
	Workspace      string `json:"workspace,omitempty"`
	StartTime      string `json:"start_time,omitempty"`
	StopReason     string `json:"stop_reason,omitempty"`
}

// DashboardPayload carries recent entries and aggregate totals.
type DashboardPayload struct {
	Entries []DashboardEntry `json:"entries"`
	Today   string           `json:"today"`
	Week    string           `json:"week"`
	Total   string           `json:"total"`
}

// DashboardEntry is one row in the dashboard listing.
type DashboardEntry struct {
	Workspace  string `json:"workspace"`
	StartTime  string `json:"start_time"`
	Duration   string `json:"duration"`
	Active     bool   `json:"active"`
	StopReason string `json:"stop_reason,omitempty"`
}
