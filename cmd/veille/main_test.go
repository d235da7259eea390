package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeConfig(t *testing.T, dir, storeLines string) string {
	t.Helper()

	path := filepath.Join(dir, "veille.toml")
	content := storeLines + "\n[logging]\nlevel = \"error\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeFeed(t *testing.T, dir string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, "feed.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "veille dev") {
		t.Errorf("output = %q, want it to mention veille dev", out)
	}
}

func TestIngestCommandLoadsFeeds(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "[store]\ndriver = \"memory\"\n")
	feedPath := writeFeed(t, dir,
		`{"url":"https://posts.example/1","title":"one","body":"hello there"}`,
		`{"url":"https://posts.example/2","title":"two","body":"hello again"}`,
	)

	out, err := runCommand(t, "--config", cfgPath, "ingest", "--feed", feedPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out, "Ingested 2 documents (2 new, 0 updated)") {
		t.Errorf("output = %q, want the ingest summary", out)
	}
}

func TestIngestCommandRequiresFeedFlag(t *testing.T) {
	_, err := runCommand(t, "ingest")
	if err == nil || !strings.Contains(err.Error(), "--feed") {
		t.Errorf("err = %v, want the feed requirement", err)
	}
}

func TestReprocessCommandValidatesFlags(t *testing.T) {
	if _, err := runCommand(t, "reprocess"); err == nil {
		t.Error("reprocess with no flags should fail")
	}
	if _, err := runCommand(t, "reprocess", "--all", "--url", "https://posts.example/1"); err == nil {
		t.Error("reprocess with both --all and --url should fail")
	}
}

func TestInitCommandWritesConfigAndSchema(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := runCommand(t, "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration to veille.toml") {
		t.Errorf("output = %q, want the config path", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "veille.toml")); err != nil {
		t.Errorf("config file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "veille.db")); err != nil {
		t.Errorf("store file missing: %v", err)
	}

	if _, err := runCommand(t, "init"); err == nil {
		t.Error("second init should fail without --overwrite")
	}
	if _, err := runCommand(t, "init", "--overwrite"); err != nil {
		t.Errorf("init --overwrite: %v", err)
	}
}

func TestPipelineCommandsAgainstSQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "posts.db")
	cfgPath := writeConfig(t, dir,
		fmt.Sprintf("[store]\ndriver = \"sqlite\"\ndsn = %q\n", dbPath))
	feedPath := writeFeed(t, dir,
		`{"url":"https://posts.example/1","title":"Great","body":"a wonderful happy day"}`,
	)

	if out, err := runCommand(t, "--config", cfgPath, "ingest", "--feed", feedPath); err != nil {
		t.Fatalf("ingest: %v (%s)", err, out)
	}

	out, err := runCommand(t, "--config", cfgPath, "enrich")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if !strings.Contains(out, "1 processed, 1 enriched, 0 failed") {
		t.Errorf("enrich output = %q, want one document enriched", out)
	}

	csvPath := filepath.Join(dir, "out.csv")
	if _, err := runCommand(t, "--config", cfgPath, "export-csv", "--out", csvPath); err != nil {
		t.Fatalf("export-csv: %v", err)
	}
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "https://posts.example/1") {
		t.Errorf("csv = %q, want it to carry the document url", data)
	}
}
