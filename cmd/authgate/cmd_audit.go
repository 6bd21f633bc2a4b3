package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tickersense/authgate/audit"
)

// ---- Audit Commands ----

func (a *app) auditCommand(args []string) error {
	opts := parseArgs(args)

	filter := audit.Filter{Limit: 20}
	if v, ok := opts["limit"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid --limit: %w", err)
		}
		filter.Limit = n
	}
	if v, ok := opts["identity"]; ok {
		filter.Identity = v
	}
	if v, ok := opts["type"]; ok {
		filter.Types = strings.Split(v, ",")
	}

	ctx := context.Background()
	events, err := a.gate.Recorder().Query(ctx, filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tIDENTITY\tSTATUS\tMESSAGE")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), e.Type, e.Identity, e.Status, e.Message)
	}
	w.Flush()

	// The listing is capped by --limit; the count is not.
	total := int64(len(events))
	if store := a.gate.Recorder().Store(); store != nil {
		if n, err := store.Count(ctx, filter); err == nil {
			total = n
		}
	}
	fmt.Printf("\nShowing %d of %d\n", len(events), total)
	return nil
}
