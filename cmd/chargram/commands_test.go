package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/cognicore/chargram/pkg/chargram/config"
	"github.com/cognicore/chargram/pkg/chargram/internalerr"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGatherNormalizeInspect(t *testing.T) {
	dir := t.TempDir()
	text := strings.Repeat("abcab ", 50)
	input := writeFile(t, dir, "in.txt", text)
	db := filepath.Join(dir, "out.db")

	if _, err := execute(t, "gather", "-q", "-a", "a,b,c", "--offset-back", "1", "--offset-front", "2", "-i", input, "-o", db, "--chunk-size", "32"); err != nil {
		t.Fatalf("gather: %v", err)
	}
	if _, err := execute(t, "normalize", "-o", db, "-n", "sum-to-one"); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	out, err := execute(t, "inspect", db, "-b", "a", "--offset", "1")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}

	// Only bases with a full window [i-1, i+2] are counted.
	var want int
	for i := 1; i+2 < len(text); i++ {
		if text[i] == 'a' && text[i+1] == 'b' {
			want++
		}
	}
	if want != 99 {
		t.Fatalf("fixture has %d full-window a->b pairs, want 99", want)
	}

	rows := tableRows(out)
	if got := rows["'b'"]; len(got) != 2 || got[0] != strconv.Itoa(want) || got[1] != "1" {
		t.Errorf("row 'b' = %v, want [%d 1]\n%s", got, want, out)
	}
	for _, label := range []string{"'a'", "'c'"} {
		if got := rows[label]; len(got) != 2 || got[0] != "0" || got[1] != "0" {
			t.Errorf("row %s = %v, want [0 0]\n%s", label, got, out)
		}
	}
}

// tableRows maps the first column of each rendered table line to the rest.
func tableRows(out string) map[string][]string {
	rows := make(map[string][]string)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		rows[fields[0]] = fields[1:]
	}
	return rows
}

func TestExtractCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "in.txt", "cabaab")
	outDir := filepath.Join(dir, "ctx")

	if _, err := execute(t, "extract", "-q", "-a", "ab", "--offset-back", "1", "--offset-front", "1", "-i", input, "-o", outDir, "-t", "a", "--ordered"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "context_a.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "b,a,a,\na,a,b,\n" {
		t.Errorf("context_a.csv = %q", data)
	}
}

func TestConfigFileWithFlagOverride(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "in.txt", "abab")
	cfg := writeFile(t, dir, "run.yaml", `mode: gather
alphabet: "xy"
offset_back: 3
input: `+input+`
output: `+filepath.Join(dir, "out.db")+`
`)

	root := newRootCmd()
	gatherCmd, _, err := root.Find([]string{"gather"})
	if err != nil {
		t.Fatal(err)
	}
	if err := gatherCmd.ParseFlags([]string{"--config", cfg, "-a", "ab"}); err != nil {
		t.Fatal(err)
	}

	f := &runFlags{configPath: cfg, alphabet: "ab"}
	run, err := resolve(gatherCmd, f, config.ModeGather)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if run.Alphabet != "ab" {
		t.Errorf("Alphabet = %q, flag should win over config", run.Alphabet)
	}
	if *run.OffsetBack != 3 || *run.OffsetFront != config.DefaultOffset {
		t.Errorf("Offsets = %d/%d, want 3/%d", *run.OffsetBack, *run.OffsetFront, config.DefaultOffset)
	}
	if run.Input != input {
		t.Errorf("Input = %q, want %q", run.Input, input)
	}
}

func TestMissingAlphabet(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "in.txt", "abab")

	_, err := execute(t, "gather", "-q", "-i", input, "-o", filepath.Join(dir, "out.db"))
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestGatherMissingInputLeavesNoContainer(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "out.db")

	_, err := execute(t, "gather", "-q", "-a", "ab", "-i", filepath.Join(dir, "missing.txt"), "-o", db)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Expected os.ErrNotExist, got %v", err)
	}
	if _, err := os.Stat(db); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Container should not be created for a missing input, stat: %v", err)
	}
}

func TestNormalizeMissingContainer(t *testing.T) {
	_, err := execute(t, "normalize", "-o", filepath.Join(t.TempDir(), "none.db"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}

func TestCorpusCommand(t *testing.T) {
	dir := t.TempDir()
	page := writeFile(t, dir, "page.html", "<html><head><title>x</title></head><body><p>hello</p><script>var a;</script></body></html>")
	out := filepath.Join(dir, "corpus.txt")

	if _, err := execute(t, "corpus", "-o", out, page); err != nil {
		t.Fatalf("corpus: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") || strings.Contains(string(data), "var a") {
		t.Errorf("corpus = %q", data)
	}
}

func TestParseChar(t *testing.T) {
	tests := []struct {
		in      string
		want    byte
		wantErr bool
	}{
		{"a", 'a', false},
		{`'\n'`, '\n', false},
		{"é", 0xE9, false},
		{"ab", 0, true},
		{"", 0, true},
		{"€", 0, true},
	}
	for _, tt := range tests {
		got, err := parseChar(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseChar(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseChar(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
