package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyUserID     = "user_id"
	KeyJobID      = "job_id"
	KeyJobStatus  = "job_status"
	KeyDocID      = "doc_id"
	KeyProjectID  = "project_id"
	KeyStage      = "stage"
	KeyLanguage   = "language"
	KeyVersion    = "version"
	KeyDurationMS = "duration_ms"
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatus     = "status"
	KeyUserAgent  = "user_agent"
	KeyRemoteAddr = "remote_addr"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func UserID(id string) slog.Attr      { return slog.String(KeyUserID, id) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func JobStatus(s string) slog.Attr    { return slog.String(KeyJobStatus, s) }
func DocID(id string) slog.Attr       { return slog.String(KeyDocID, id) }
func ProjectID(id string) slog.Attr   { return slog.String(KeyProjectID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Language(lang string) slog.Attr  { return slog.String(KeyLanguage, lang) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr   { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
