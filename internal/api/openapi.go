package api

import (
	_ "embed"
	"net/http"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/Togather-Foundation/devconnector/internal/api/problem"
)

//go:embed openapi.yaml
var openAPIYAML []byte

var (
	openAPIJSON    []byte
	openAPIJSONErr error
	openAPIOnce    sync.Once
)

// OpenAPIHandler serves the embedded API description as JSON. The YAML is
// converted once on first request.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		openAPIOnce.Do(func() {
			openAPIJSON, openAPIJSONErr = yaml.YAMLToJSON(openAPIYAML)
		})

		if openAPIJSONErr != nil {
			problem.Write(w, r, http.StatusInternalServerError, problem.TypeServer, "OpenAPI document unavailable", openAPIJSONErr, "")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(openAPIJSON)
	}
}
