package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vigilator/vigil/pkg/vigil"
)

// ingestLine is one JSON line accepted by ingest.
type ingestLine struct {
	Text     string    `json:"text"`
	TokenIDs []uint32  `json:"token_ids"`
	Logits   []float32 `json:"logits"`
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Store records from JSON lines (file or stdin)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workers, _ := cmd.Flags().GetInt("workers")
		perSecond, _ := cmd.Flags().GetFloat64("rate")

		var in io.Reader = os.Stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		db, err := openFromFlags(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := ingest(cmd.Context(), db, in, workers, perSecond)
		if err != nil {
			return err
		}
		fmt.Printf("Ingested %d records\n", n)
		return nil
	},
}

// ingest stores every line of r using up to workers concurrent writers,
// optionally throttled to perSecond records.
func ingest(ctx context.Context, db *vigil.DB, r io.Reader, workers int, perSecond float64) (int64, error) {
	if workers <= 0 {
		workers = 1
	}
	var limiter *rate.Limiter
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var stored atomic.Int64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64<<20)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line ingestLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return stored.Load(), errors.Join(fmt.Errorf("line %d: %w", lineNo, err), g.Wait())
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return stored.Load(), stopped(g, err)
			}
		} else if err := ctx.Err(); err != nil {
			return stored.Load(), stopped(g, err)
		}

		n := lineNo
		g.Go(func() error {
			if _, err := db.StoreRecord(ctx, line.Text, line.TokenIDs, line.Logits); err != nil {
				return fmt.Errorf("line %d: %w", n, err)
			}
			stored.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stored.Load(), err
	}
	if err := scanner.Err(); err != nil {
		return stored.Load(), err
	}
	return stored.Load(), nil
}

// stopped waits for in-flight writers and prefers a writer failure over the
// cancellation that interrupted the read loop.
func stopped(g *errgroup.Group, cause error) error {
	if err := g.Wait(); err != nil {
		return err
	}
	return cause
}
