package main

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_create_award_financial_summary.sql", true, "0001", "create_award_financial_summary"},
		{"001_invalid.sql", false, "", ""},       // wrong number format
		{"0001_test", false, "", ""},             // missing .sql
		{"0001.sql", false, "", ""},              // missing name
		{"invalid_0001_test.sql", false, "", ""}, // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m := filenamePattern.FindStringSubmatch(tt.filename)
			if (m != nil) != tt.valid {
				t.Fatalf("match = %v, want %v", m != nil, tt.valid)
			}
			if m == nil {
				return
			}
			if m[1] != tt.version || m[2] != tt.name {
				t.Errorf("got version %q name %q, want %q %q", m[1], m[2], tt.version, tt.name)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	raw := "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.{{SUMMARY_TABLE}}` (award_id INT64);"
	fsys := fstest.MapFS{
		"0002_second.sql":  {Data: []byte("SELECT 2;")},
		"0001_summary.sql": {Data: []byte(raw)},
		"README.md":        {Data: []byte("notes")},
	}
	vars := map[string]string{"PROJECT_ID": "proj", "DATASET_ID": "ds", "SUMMARY_TABLE": "award_financial_summary"}

	got, err := readMigrations(fsys, vars, zerolog.Nop())
	if err != nil {
		t.Fatalf("readMigrations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d migrations, want 2", len(got))
	}
	if got[0].Version != 1 || got[1].Version != 2 {
		t.Errorf("versions = %d, %d, want 1, 2", got[0].Version, got[1].Version)
	}
	if want := "CREATE TABLE `proj.ds.award_financial_summary` (award_id INT64);"; got[0].SQL != want {
		t.Errorf("SQL = %q, want %q", got[0].SQL, want)
	}
	if want := fmt.Sprintf("%x", sha256.Sum256([]byte(raw))); got[0].Checksum != want {
		t.Errorf("checksum should be taken before substitution")
	}
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := readMigrations(fsys, nil, zerolog.Nop())
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("readMigrations() error = %v, want duplicate version error", err)
	}
}

func TestMigrationChecksumConsistency(t *testing.T) {
	a := fstest.MapFS{"0001_t.sql": {Data: []byte("CREATE TABLE test (id INT64);")}}
	b := fstest.MapFS{"0001_t.sql": {Data: []byte("CREATE TABLE test (id INT64);")}}
	c := fstest.MapFS{"0001_t.sql": {Data: []byte("CREATE TABLE different (id INT64);")}}

	read := func(fsys fstest.MapFS) string {
		m, err := readMigrations(fsys, nil, zerolog.Nop())
		if err != nil {
			t.Fatalf("readMigrations() error = %v", err)
		}
		return m[0].Checksum
	}
	if read(a) != read(b) {
		t.Error("Same content should produce the same checksum")
	}
	if read(a) == read(c) {
		t.Error("Different content should produce different checksums")
	}
}

func TestPlan(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Filename: "0001_a.sql", Checksum: "aaa"},
		{Version: 2, Filename: "0002_b.sql", Checksum: "bbb"},
		{Version: 3, Filename: "0003_c.sql", Checksum: "ccc"},
	}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "aaa"},
		{Version: 2, Checksum: "changed"},
	}

	pending, drifted := plan(migrations, applied)
	if len(pending) != 1 || pending[0].Version != 3 {
		t.Errorf("pending = %+v, want only version 3", pending)
	}
	if len(drifted) != 1 || drifted[0].Version != 2 {
		t.Errorf("drifted = %+v, want only version 2", drifted)
	}
}

func TestRepositoryMigrationsParse(t *testing.T) {
	for _, driver := range []string{"bigquery", "postgres"} {
		dir, err := findDir("migrations/" + driver)
		if err != nil {
			t.Fatalf("findDir(%s) error = %v", driver, err)
		}
		got, err := readMigrations(os.DirFS(dir), map[string]string{"SUMMARY_TABLE": "s", "BACKFILL_TABLE": "b"}, zerolog.Nop())
		if err != nil {
			t.Fatalf("readMigrations(%s) error = %v", driver, err)
		}
		if len(got) < 2 {
			t.Errorf("%s: got %d migrations, want at least 2", driver, len(got))
		}
		for _, m := range got {
			if strings.Contains(m.SQL, "{{SUMMARY_TABLE}}") || strings.Contains(m.SQL, "{{BACKFILL_TABLE}}") {
				t.Errorf("%s: unreplaced table placeholder", m.Filename)
			}
		}
	}
}
