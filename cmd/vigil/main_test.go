package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/vigilator/vigil/pkg/core"
	"github.com/vigilator/vigil/pkg/vigil"
)

func TestParseTokenIDs(t *testing.T) {
	tests := []struct {
		in      string
		want    []uint32
		wantErr bool
	}{
		{"", nil, false},
		{"1, 2,3", []uint32{1, 2, 3}, false},
		{"4294967295", []uint32{4294967295}, false},
		{"-1", nil, true},
		{"4294967296", nil, true},
		{"a", nil, true},
	}
	for _, tt := range tests {
		got, err := parseTokenIDs(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTokenIDs(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseTokenIDs(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseScores(t *testing.T) {
	got, err := parseScores("0.5, -1.25,3")
	if err != nil {
		t.Fatal(err)
	}
	if want := []float32{0.5, -1.25, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("parseScores() = %v, want %v", got, want)
	}
	if _, err := parseScores("1,x"); err == nil {
		t.Error("expected error for non-numeric logit")
	}
}

func TestLoadConfigStorePath(t *testing.T) {
	dir := t.TempDir()
	memConfig := filepath.Join(dir, "memory.yaml")
	if err := os.WriteFile(memConfig, []byte("store:\n  path: \":memory:\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	noPath := filepath.Join(dir, "nopath.yaml")
	if err := os.WriteFile(noPath, []byte("log_level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		config string
		dbFlag string // empty leaves --db unset
		want   string
	}{
		{"config memory path kept", memConfig, "", core.MemoryPath},
		{"unset path takes --db default", noPath, "", "outputs.db"},
		{"explicit --db wins", memConfig, "explicit.db", "explicit.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldDB, oldConfig := dbPath, configPath
			t.Cleanup(func() { dbPath, configPath = oldDB, oldConfig })

			cmd := &cobra.Command{}
			cmd.Flags().StringVar(&dbPath, "db", "outputs.db", "")
			cmd.Flags().StringVar(&compression, "compression", "none", "")
			if tt.dbFlag != "" {
				if err := cmd.Flags().Set("db", tt.dbFlag); err != nil {
					t.Fatal(err)
				}
			}
			configPath = tt.config

			cfg, err := loadConfig(cmd)
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Store.Path != tt.want {
				t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, tt.want)
			}
		})
	}
}

func openIngestDB(t *testing.T) *vigil.DB {
	t.Helper()
	db, err := vigil.Open(context.Background(), core.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIngest(t *testing.T) {
	db := openIngestDB(t)
	input := strings.Join([]string{
		`{"text":"a","token_ids":[1,2],"logits":[0.1,0.2]}`,
		``,
		`{"text":"b","token_ids":[3],"logits":[0.3]}`,
		`{"text":"c","token_ids":[],"logits":[]}`,
	}, "\n")

	n, err := ingest(context.Background(), db, strings.NewReader(input), 3, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("ingested %d, want 3", n)
	}
	count, err := db.Store().Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("Count() = %d, want 3", count)
	}
	rec, err := db.FetchByText(context.Background(), "b")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual([]uint32(rec.TokenIDs.Value), []uint32{3}) {
		t.Errorf("token ids = %v", rec.TokenIDs.Value)
	}
}

func TestIngestBadLine(t *testing.T) {
	db := openIngestDB(t)
	input := "{\"text\":\"ok\"}\nnot json\n"

	if _, err := ingest(context.Background(), db, strings.NewReader(input), 1, 0); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("ingest() error = %v, want line 2 failure", err)
	}
}

func TestIngestCancelled(t *testing.T) {
	db := openIngestDB(t)
	input := "{\"text\":\"a\"}\n{\"text\":\"b\"}\n"

	for _, perSecond := range []float64{0, 1000} {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		n, err := ingest(ctx, db, strings.NewReader(input), 2, perSecond)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("rate %v: ingest() error = %v, want context.Canceled", perSecond, err)
		}
		if n != 0 {
			t.Errorf("rate %v: ingested %d records after cancellation", perSecond, n)
		}
	}
}

func TestIngestClosedStore(t *testing.T) {
	db := openIngestDB(t)
	db.Close()

	_, err := ingest(context.Background(), db, strings.NewReader(`{"text":"x"}`), 2, 0)
	if !errors.Is(err, core.ErrStoreClosed) {
		t.Errorf("ingest() error = %v, want ErrStoreClosed", err)
	}
}
