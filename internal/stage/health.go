package stage

import (
	"strings"

	"reelhouse/internal/deps"
)

// Health summarizes whether a handler can run jobs right now.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// BinaryHealth is ready when every requirement resolves on PATH; otherwise
// Detail lists what is missing, separated by "; ".
func BinaryHealth(name string, requirements []deps.Requirement) Health {
	missing := deps.Missing(deps.CheckBinaries(requirements))
	if len(missing) == 0 {
		return Healthy(name)
	}
	details := make([]string, 0, len(missing))
	for _, status := range missing {
		details = append(details, status.Detail)
	}
	return Unhealthy(name, strings.Join(details, "; "))
}
