package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/ramonehamilton/nft-rarity/internal/export"
	"github.com/ramonehamilton/nft-rarity/internal/metadata"
	"github.com/ramonehamilton/nft-rarity/internal/rarity"
)

const formatTable = "table"

// loadCollection decodes a collection file; "-" reads stdin.
func loadCollection(path string) (*metadata.Collection, error) {
	if path == "" {
		return nil, errors.New("-file is required")
	}

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	doc, err := metadata.DecodeCollection(r)
	if err != nil {
		return nil, err
	}
	if err := rarity.ValidateCollection(doc.Items); err != nil {
		return nil, err
	}
	return doc, nil
}

// writeRows writes rows as CSV or JSON, or returns false for the table format.
func writeRows(out io.Writer, format string, rows any) (bool, error) {
	if format == formatTable {
		return false, nil
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return true, err
	}
	return true, export.NewExporter(export.Options{Format: f, PrettyJSON: true}).Write(out, rows)
}

func runScore(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	file := fs.String("file", "", "Collection file (- for stdin)")
	top := fs.Int("top", 0, "Only show the N rarest items")
	format := fs.String("format", formatTable, "Output format: table, csv or json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, err := loadCollection(*file)
	if err != nil {
		return err
	}

	idx := rarity.NewIndex(doc.Items)
	ranked := idx.Rank(doc.Items)
	if *top > 0 && *top < len(ranked) {
		ranked = ranked[:*top]
	}

	if done, err := writeRows(out, *format, export.RankedRows(ranked)); done {
		return err
	}

	stats := idx.Stats()
	fmt.Fprintf(out, "%s: %d items, %d traits across %d types (avg trait count %.2f)\n\n",
		collectionLabel(doc), stats.CollectionSize, stats.DistinctTraits, stats.DistinctTraitTypes, idx.AverageTraitCount())

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTOKEN\tNAME\tSCORE\tPERCENTILE\tTIER")
	for _, r := range ranked {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.4f\t%.2f%%\t%s\n",
			r.Rank, r.Item.TokenID, r.Item.Name, r.Score, r.Percentile, r.Tier.DisplayName())
	}
	return tw.Flush()
}

func runInspect(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	file := fs.String("file", "", "Collection file (- for stdin)")
	traitType := fs.String("trait-type", "", "Trait type")
	value := fs.String("value", "", "Trait value")
	format := fs.String("format", formatTable, "Output format: table or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *traitType == "" {
		return errors.New("-trait-type is required")
	}

	doc, err := loadCollection(*file)
	if err != nil {
		return err
	}

	tr := rarity.NewIndex(doc.Items).Inspect(rarity.Trait{TraitType: *traitType, Value: *value})

	switch *format {
	case formatTable:
		fmt.Fprintf(out, "Trait:         %s\n", tr.Trait)
		fmt.Fprintf(out, "Count:         %d\n", tr.Count)
		fmt.Fprintf(out, "Frequency:     %.2f%%\n", tr.Frequency)
		fmt.Fprintf(out, "Contribution:  %.4f\n", tr.RarityContribution)
		tier := tr.Tier.DisplayName()
		if tier == "" {
			tier = "-"
		}
		fmt.Fprintf(out, "Tier:          %s\n", tier)
		return nil
	case string(export.FormatJSON):
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tr)
	default:
		return fmt.Errorf("unsupported format %q", *format)
	}
}

func runTraits(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("traits", flag.ContinueOnError)
	file := fs.String("file", "", "Collection file (- for stdin)")
	format := fs.String("format", formatTable, "Output format: table, csv or json")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, err := loadCollection(*file)
	if err != nil {
		return err
	}

	table := rarity.NewIndex(doc.Items).TraitTable()
	if done, err := writeRows(out, *format, export.TraitRows(table)); done {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tVALUE\tCOUNT\tFREQUENCY\tCONTRIBUTION\tTIER")
	for _, tr := range table {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f%%\t%.4f\t%s\n",
			tr.Trait.TraitType, tr.Trait.Value, tr.Count, tr.Frequency, tr.RarityContribution, tr.Tier.DisplayName())
	}
	return tw.Flush()
}

func collectionLabel(doc *metadata.Collection) string {
	switch {
	case doc.Name != "":
		return doc.Name
	case doc.Slug != "":
		return doc.Slug
	default:
		return "collection"
	}
}
