package validation

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"fixity/internal/check"
	"fixity/internal/errors"
)

// MaxBodySize bounds check request bodies.
const MaxBodySize = 1 << 20

// ValidateCheckRequest decodes and validates a check request body.
func ValidateCheckRequest(r *http.Request) (*check.Request, error) {
	var req check.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, errors.ValidationError("invalid request body", nil)
	}

	details := map[string]string{}
	if req.Name == "" {
		details["name"] = "required"
	}
	switch {
	case req.Root == "":
		details["root"] = "required"
	case !filepath.IsAbs(req.Root):
		details["root"] = "must be an absolute path"
	}
	for _, p := range req.Excludes {
		if p == "" {
			details["excludes"] = "empty pattern"
			break
		}
		// patterns match single names, never paths
		if strings.Contains(p, "/") {
			details["excludes"] = "pattern contains a path separator: " + p
			break
		}
	}

	if len(details) > 0 {
		return nil, errors.ValidationError("invalid check request", details)
	}
	req.Root = filepath.Clean(req.Root)
	return &req, nil
}
