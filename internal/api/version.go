package api

import (
	"encoding/json"
	"net/http"
	"runtime"

	"github.com/Togather-Foundation/devconnector/internal/api/middleware"
)

type versionResponse struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// VersionHandler serves the build metadata injected through ldflags.
func VersionHandler(version, gitCommit, buildDate string) http.Handler {
	body := versionResponse{
		Service:   "devconnector",
		Version:   orDefault(version, "dev"),
		GitCommit: orDefault(gitCommit, "unknown"),
		BuildDate: orDefault(buildDate, "unknown"),
		GoVersion: runtime.Version(),
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.LoggerFromContext(r.Context()).Debug().Str("version", body.Version).Msg("version requested")
		writeJSON(w, http.StatusOK, body)
	})
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
