package output_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/internal/output"
)

func emptyReport() *output.Report {
	return &output.Report{
		GeneratedAt: time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC),
		Results: domain.ScenarioResults{
			domain.ScenarioAverage: {},
			domain.ScenarioBest:    {},
			domain.ScenarioWorst:   {},
		},
	}
}

func TestGenerateReport_JSON_CSV(t *testing.T) {
	dir := t.TempDir()

	files, err := output.GenerateReport(emptyReport(), "json", dir)
	if err != nil {
		t.Fatalf("GenerateReport json error: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "btc_annuity_json_20240602_120000.json" {
		t.Fatalf("unexpected json file: %v", files)
	}

	files, err = output.GenerateReport(emptyReport(), "income", dir)
	if err != nil {
		t.Fatalf("GenerateReport csv error: %v", err)
	}
	if !strings.HasSuffix(files[0], ".csv") {
		t.Fatalf("expected csv extension, got %s", files[0])
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if strings.TrimSpace(string(data)) != "Scenario,Date,USDAmount,IsProjection" {
		t.Fatalf("unexpected monthly csv: %q", data)
	}
}

func TestGenerateReport_All(t *testing.T) {
	dir := t.TempDir()
	files, err := output.GenerateReport(emptyReport(), "all", dir)
	if err != nil {
		t.Fatalf("GenerateReport all error: %v", err)
	}
	if len(files) != 4 {
		t.Fatalf("expected 4 files, got %v", files)
	}
	if !strings.HasSuffix(files[0], ".txt") {
		t.Fatalf("console report should be .txt, got %s", files[0])
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 4 {
		t.Fatalf("expected 4 files on disk, got %d", len(entries))
	}
}

func TestGenerateReport_MissingDir(t *testing.T) {
	_, err := output.GenerateReport(emptyReport(), "console", filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatalf("expected error writing into a missing directory")
	}
}
