// Package buildinfo carries the version stamped in at link time, e.g.
// -ldflags "-X deliverytrack/internal/buildinfo.Version=v1.2.0".
package buildinfo

import "go.uber.org/zap"

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

// Fields returns the build stamp as log fields, skipping empty values.
func Fields() []zap.Field {
    fs := []zap.Field{zap.String("version", Version)}
    if Commit != "" {
        fs = append(fs, zap.String("commit", Commit))
    }
    if BuiltAt != "" {
        fs = append(fs, zap.String("built_at", BuiltAt))
    }
    return fs
}

// UserAgent identifies the tracker client in outgoing requests.
func UserAgent() string {
    ua := "deliverytrack/" + Version
    if Commit != "" {
        ua += " (" + Commit + ")"
    }
    return ua
}
