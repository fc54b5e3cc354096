package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dvloznov/covid-award-summary/internal/jobs"
)

func TestParseJobTypes(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []jobs.JobType
		wantErr bool
	}{
		{name: "single", in: "refresh_summary", want: []jobs.JobType{jobs.JobTypeRefreshSummary}},
		{
			name: "ordered with spaces",
			in:   " backfill_lookup , refresh_summary",
			want: []jobs.JobType{jobs.JobTypeBackfillLookup, jobs.JobTypeRefreshSummary},
		},
		{name: "duplicates dropped", in: "refresh_summary,refresh_summary", want: []jobs.JobType{jobs.JobTypeRefreshSummary}},
		{name: "unknown", in: "refresh_summary,reindex", wantErr: true},
		{name: "empty", in: " , ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJobTypes(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseJobTypes(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseJobTypes(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}
