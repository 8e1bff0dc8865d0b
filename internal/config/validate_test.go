package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

// validPipeline returns a pipeline that lints clean; tests mutate single
// fields from here.
func validPipeline() Pipeline {
	return Pipeline{
		Job: "nabca-monthly",
		Source: Source{
			Kind: "file",
			File: SourceFile{Dir: "data/incoming"},
		},
		Catalog:   "configs/catalog.json",
		Templates: []string{"configs/templates/nabca.json"},
		Entities:  "configs/entities.json",
		Storage: Storage{
			Kind: "postgres",
			DB:   DBConfig{DSN: "postgres://user@localhost/db"},
		},
		Runtime: RuntimeConfig{Workers: 2, BatchSize: 100},
	}
}

func TestValidatePipeline_ValidMinimal(t *testing.T) {
	t.Parallel()

	issues := ValidatePipeline(validPipeline())
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
	if HasErrors(issues) {
		t.Fatalf("HasErrors = true for clean pipeline")
	}
}

func TestValidatePipeline_MissingJob(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Job = ""
	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityError, "job", "job must not be empty") {
		t.Fatalf("expected SeverityError for job; got issues: %+v", issues)
	}
}

func TestValidatePipeline_MissingCatalogAndTemplates(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Catalog = ""
	p.Templates = nil
	issues := ValidatePipeline(p)

	if !hasIssue(t, issues, SeverityError, "catalog", "must not be empty") {
		t.Fatalf("expected error for catalog; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "templates", "at least one") {
		t.Fatalf("expected error for templates; got %+v", issues)
	}
}

func TestValidatePipeline_EmptyTemplatePath(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Templates = []string{"good.json", "  "}
	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityError, "templates[1]", "must not be empty") {
		t.Fatalf("expected error for templates[1]; got %+v", issues)
	}
}

func TestValidatePipeline_MissingEntitiesIsWarning(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Entities = ""
	issues := ValidatePipeline(p)
	if !hasIssue(t, issues, SeverityWarning, "entities", "no entity registry") {
		t.Fatalf("expected warning for entities; got %+v", issues)
	}
	if HasErrors(issues) {
		t.Fatalf("warning-only pipeline reported as having errors")
	}
}

func TestValidateSource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		source   Source
		wantSev  IssueSeverity
		wantPath string
		wantMsg  string
	}{
		{
			name:     "empty kind",
			source:   Source{},
			wantSev:  SeverityError,
			wantPath: "source.kind",
			wantMsg:  "must not be empty",
		},
		{
			name:     "unknown kind is warning",
			source:   Source{Kind: "s3"},
			wantSev:  SeverityWarning,
			wantPath: "source.kind",
			wantMsg:  "unknown source kind",
		},
		{
			name:     "file kind without dir",
			source:   Source{Kind: "file"},
			wantSev:  SeverityError,
			wantPath: "source.file.dir",
			wantMsg:  "non-empty directory",
		},
		{
			name:     "http kind without list",
			source:   Source{Kind: "http"},
			wantSev:  SeverityError,
			wantPath: "source.http.list",
			wantMsg:  "URL list",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			issues := validateSource(tt.source)
			if !hasIssue(t, issues, tt.wantSev, tt.wantPath, tt.wantMsg) {
				t.Fatalf("expected %s at %s containing %q; got %+v", tt.wantSev, tt.wantPath, tt.wantMsg, issues)
			}
		})
	}
}

func TestValidateMatching(t *testing.T) {
	t.Parallel()

	if issues := validateMatching(Matching{Threshold: 1.5}); !hasIssue(t, issues, SeverityError, "matching.threshold", "between 0 and 1") {
		t.Fatalf("expected error for threshold > 1; got %+v", issues)
	}
	if issues := validateMatching(Matching{Threshold: 0.2}); !hasIssue(t, issues, SeverityWarning, "matching.threshold", "permissive") {
		t.Fatalf("expected warning for low threshold; got %+v", issues)
	}
	if issues := validateMatching(Matching{Threshold: 0}); len(issues) != 0 {
		t.Fatalf("zero threshold (use default) should lint clean; got %+v", issues)
	}
	if issues := validateMatching(Matching{Threshold: 0.85}); len(issues) != 0 {
		t.Fatalf("default threshold should lint clean; got %+v", issues)
	}
}

func TestValidateAI(t *testing.T) {
	t.Parallel()

	// Disabled AI is never linted.
	if issues := validateAI(AIConfig{Enabled: false, TimeoutSeconds: -1}); len(issues) != 0 {
		t.Fatalf("disabled AI should lint clean; got %+v", issues)
	}
	issues := validateAI(AIConfig{Enabled: true, TimeoutSeconds: -1, Concurrency: -2})
	if !hasIssue(t, issues, SeverityError, "ai.timeout_seconds", "negative") {
		t.Fatalf("expected error for timeout; got %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "ai.concurrency", "negative") {
		t.Fatalf("expected error for concurrency; got %+v", issues)
	}
}

func TestValidateStorage(t *testing.T) {
	t.Parallel()

	if issues := validateStorage(Storage{}); !hasIssue(t, issues, SeverityError, "storage.kind", "must not be empty") {
		t.Fatalf("expected error for empty kind; got %+v", issues)
	}
	if issues := validateStorage(Storage{Kind: "oracle", DB: DBConfig{DSN: "x"}}); !hasIssue(t, issues, SeverityWarning, "storage.kind", "unknown storage kind") {
		t.Fatalf("expected warning for unknown kind; got %+v", issues)
	}
	if issues := validateStorage(Storage{Kind: "sqlite"}); !hasIssue(t, issues, SeverityError, "storage.db.dsn", "must not be empty") {
		t.Fatalf("expected error for empty DSN; got %+v", issues)
	}
}

func TestValidateRuntime(t *testing.T) {
	t.Parallel()

	issues := validateRuntime(RuntimeConfig{Workers: -1, BatchSize: -2, ChannelBuffer: -3})
	for _, path := range []string{"runtime.workers", "runtime.batch_size", "runtime.channel_buffer"} {
		if !hasIssue(t, issues, SeverityError, path, "negative") {
			t.Fatalf("expected error at %s; got %+v", path, issues)
		}
	}

	// Zero values mean defaults and must lint clean.
	if issues := validateRuntime(RuntimeConfig{}); len(issues) != 0 {
		t.Fatalf("zero runtime should lint clean; got %+v", issues)
	}
}
