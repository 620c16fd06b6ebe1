package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cognicore/chargram/pkg/chargram/gather"
	"github.com/cognicore/chargram/pkg/chargram/internalerr"
	"github.com/cognicore/chargram/pkg/chargram/normalize"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadGather(t *testing.T) {
	path := writeConfig(t, `mode: gather
alphabet: "a,b,c"
offset_back: 2
offset_front: 0
workers: 3
chunk_size: 1024
boundary: isolated
input: corpus.txt
output: counts.db
`)

	run, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := run.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	alpha, err := run.BuildAlphabet()
	if err != nil {
		t.Fatalf("BuildAlphabet: %v", err)
	}
	if alpha.String() != "abc" {
		t.Errorf("alphabet = %q, want abc", alpha.String())
	}

	win, err := run.Window()
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if win.Back != 2 || win.Front != 0 {
		t.Errorf("window = %+v, want back 2 front 0", win)
	}

	opts, err := run.GatherOptions()
	if err != nil {
		t.Fatalf("GatherOptions: %v", err)
	}
	if opts.Workers != 3 || opts.ChunkSize != 1024 || opts.Boundary != gather.Isolated {
		t.Errorf("Unexpected options %+v", opts)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `alphabet: xyz
input: in.txt
output: out.db
`)

	run, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if run.Mode != ModeGather {
		t.Errorf("mode = %q, want gather", run.Mode)
	}
	win, err := run.Window()
	if err != nil {
		t.Fatal(err)
	}
	if win.Back != DefaultOffset || win.Front != DefaultOffset {
		t.Errorf("window = %+v, want default offsets", win)
	}
	if run.ChunkSize != gather.DefaultChunkSize || run.Workers <= 0 {
		t.Errorf("chunk_size=%d workers=%d", run.ChunkSize, run.Workers)
	}
	policy, err := run.Policy()
	if err != nil || policy != normalize.MinMax {
		t.Errorf("Policy() = %v, %v; want min-max", policy, err)
	}
}

func TestLoadExplicitZeroOffsets(t *testing.T) {
	path := writeConfig(t, `alphabet: ab
offset_back: 0
offset_front: 0
input: in.txt
output: out.db
`)

	run, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	win, err := run.Window()
	if err != nil {
		t.Fatal(err)
	}
	if win.Width() != 1 {
		t.Errorf("Explicit zero offsets were replaced by defaults: %+v", win)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "alphabet: [unclosed\n")
	if _, err := Load(path); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	neg := -1
	tests := []struct {
		name string
		run  Run
		want error
	}{
		{
			name: "missing output",
			run:  Run{Alphabet: "ab", Input: "in"},
			want: internalerr.ErrInvalidConfig,
		},
		{
			name: "missing input",
			run:  Run{Alphabet: "ab", Output: "out"},
			want: internalerr.ErrInvalidConfig,
		},
		{
			name: "missing alphabet",
			run:  Run{Input: "in", Output: "out"},
			want: internalerr.ErrInvalidConfig,
		},
		{
			name: "negative offset",
			run:  Run{Alphabet: "ab", Input: "in", Output: "out", OffsetBack: &neg},
			want: internalerr.ErrInvalidConfig,
		},
		{
			name: "unknown boundary",
			run:  Run{Alphabet: "ab", Input: "in", Output: "out", Boundary: "wrap"},
			want: internalerr.ErrInvalidConfig,
		},
		{
			name: "extract without targets",
			run:  Run{Mode: ModeExtract, Alphabet: "ab", Input: "in", Output: "out"},
			want: internalerr.ErrInvalidConfig,
		},
		{
			name: "unknown mode",
			run:  Run{Mode: "stitch", Output: "out"},
			want: internalerr.ErrInvalidConfig,
		},
		{
			name: "unsupported policy",
			run:  Run{Mode: ModeNormalize, Output: "out", Normalizer: "7"},
			want: internalerr.ErrUnsupportedPolicy,
		},
		{
			name: "normalize needs no input",
			run:  Run{Mode: ModeNormalize, Output: "out", Normalizer: "z-score"},
			want: nil,
		},
		{
			name: "extract ok",
			run:  Run{Mode: ModeExtract, Alphabet: "ab", Input: "in", Output: "out", Targets: "a"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTargetBytes(t *testing.T) {
	run := Run{Targets: "a,b,a"}
	if got := string(run.TargetBytes()); got != "ab" {
		t.Errorf("TargetBytes() = %q, want ab", got)
	}
	run.Targets = "xyx"
	if got := string(run.TargetBytes()); got != "xy" {
		t.Errorf("TargetBytes() = %q, want xy", got)
	}
}
