package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParsePipelines(t *testing.T) {
	pipelines, err := ParsePipelines([]byte(`
pipelines:
  - pipeline: deploy
    branch: prod
  - org: other-org
    pipeline: ingest
    branch: main
    lark_webhook: https://open.larksuite.com/hook
`))
	if err != nil {
		t.Fatalf("ParsePipelines failed: %v", err)
	}
	if len(pipelines) != 2 {
		t.Fatalf("expected 2 pipelines, got %d", len(pipelines))
	}
	if pipelines[0].Pipeline != "deploy" || pipelines[0].Branch != "prod" {
		t.Errorf("unexpected first entry %+v", pipelines[0])
	}
	if pipelines[1].Org != "other-org" || pipelines[1].LarkWebhook != "https://open.larksuite.com/hook" {
		t.Errorf("unexpected second entry %+v", pipelines[1])
	}
}

func TestParsePipelinesUnknownKey(t *testing.T) {
	_, err := ParsePipelines([]byte(`
pipelines:
  - pipeline: deploy
    brnach: prod
`))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "pipelines[0]") {
		t.Errorf("error should name the entry, got %q", err)
	}
}

func TestParsePipelinesMissingSlug(t *testing.T) {
	_, err := ParsePipelines([]byte(`
pipelines:
  - branch: prod
`))
	if err == nil {
		t.Fatal("expected error for missing pipeline slug")
	}
}

func TestParsePipelinesNotAList(t *testing.T) {
	_, err := ParsePipelines([]byte(`pipelines: nope`))
	if err == nil {
		t.Fatal("expected error for non-list pipelines key")
	}
}

func TestParsePipelinesAbsentKey(t *testing.T) {
	pipelines, err := ParsePipelines([]byte(`other: value`))
	if err != nil {
		t.Fatalf("ParsePipelines failed: %v", err)
	}
	if pipelines != nil {
		t.Errorf("expected nil for absent key, got %v", pipelines)
	}
}

func TestParsePipelinesEnvPlaceholder(t *testing.T) {
	t.Setenv("TEST_HOOK_URL", "https://hook.example/x")
	pipelines, err := ParsePipelines([]byte(`
pipelines:
  - pipeline: deploy
    lark_webhook: ${TEST_HOOK_URL}
`))
	if err != nil {
		t.Fatalf("ParsePipelines failed: %v", err)
	}
	if pipelines[0].LarkWebhook != "https://hook.example/x" {
		t.Errorf("placeholder not expanded: %q", pipelines[0].LarkWebhook)
	}
}

func TestLoadPipelinesAbsentFile(t *testing.T) {
	pipelines, err := LoadPipelines(t.TempDir())
	if err != nil {
		t.Fatalf("LoadPipelines failed: %v", err)
	}
	if pipelines != nil {
		t.Errorf("expected nil for absent file, got %v", pipelines)
	}
}

func TestLoadPipelinesFromFile(t *testing.T) {
	dir := t.TempDir()
	content := "pipelines:\n  - pipeline: deploy\n"
	if err := os.WriteFile(filepath.Join(dir, "pipelines.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	pipelines, err := LoadPipelines(dir)
	if err != nil {
		t.Fatalf("LoadPipelines failed: %v", err)
	}
	if len(pipelines) != 1 || pipelines[0].Pipeline != "deploy" {
		t.Errorf("unexpected pipelines %v", pipelines)
	}
}

func TestLoadPipelinesMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pipelines.yaml"), []byte("pipelines: ["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPipelines(dir); err == nil {
		t.Fatal("expected error for malformed file")
	}
}
