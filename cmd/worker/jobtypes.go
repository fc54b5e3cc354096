package main

import (
	"fmt"
	"strings"

	"github.com/dvloznov/covid-award-summary/internal/jobs"
)

// parseJobTypes splits a comma-separated list of job types, keeping order.
func parseJobTypes(s string) ([]jobs.JobType, error) {
	var out []jobs.JobType
	seen := make(map[jobs.JobType]bool)
	for _, part := range strings.Split(s, ",") {
		t := jobs.JobType(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if !t.Valid() {
			return nil, fmt.Errorf("unknown job type %q", t)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no job types given")
	}
	return out, nil
}
