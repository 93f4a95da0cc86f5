package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dfryer1193/storefront/catalog/application"
	"github.com/dustin/go-humanize"
)

func printReport(w io.Writer, r *application.GCReport, asJSON, verbose bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	mode := "delete"
	if r.DryRun {
		mode = "dry-run"
	}

	fmt.Fprintf(w, "Mode:            %s\n", mode)
	fmt.Fprintf(w, "Required refs:   %d\n", r.RequiredRefs)
	fmt.Fprintf(w, "Files scanned:   %d (%s)\n", r.TotalFiles, humanize.IBytes(uint64(r.TotalBytes)))
	fmt.Fprintf(w, "Referenced:      %d\n", len(r.Referenced))
	fmt.Fprintf(w, "Unreferenced:    %d (%s)\n", len(r.Unreferenced), humanize.IBytes(uint64(r.UnreferencedBytes)))
	fmt.Fprintf(w, "Duplicate sets:  %d\n", len(r.Duplicates))

	if !r.DryRun {
		fmt.Fprintf(w, "Deleted:         %d (%s)\n", len(r.Deleted), humanize.IBytes(uint64(r.DeletedBytes)))
		fmt.Fprintf(w, "Failed:          %d\n", len(r.Failed))
		if len(r.Skipped) > 0 {
			fmt.Fprintf(w, "Skipped:         %d (referenced since scan)\n", len(r.Skipped))
		}
		for _, f := range r.Failed {
			fmt.Fprintf(w, "  ! %s: %s\n", f.Path, f.Error)
		}
	}

	if verbose {
		if len(r.Unreferenced) > 0 {
			fmt.Fprintln(w, "\nUnreferenced files:")
			for _, f := range r.Unreferenced {
				fmt.Fprintf(w, "  %s\t%s\n", f.Path, humanize.IBytes(uint64(f.Size)))
			}
		}
		if len(r.Duplicates) > 0 {
			fmt.Fprintln(w, "\nDuplicate content:")
			for _, g := range r.Duplicates {
				fmt.Fprintf(w, "  %s (%s)\n", g.Hash[:12], humanize.IBytes(uint64(g.Size)))
				for _, f := range g.Files {
					fmt.Fprintf(w, "    %s\n", f)
				}
			}
		}
	}
	return nil
}
