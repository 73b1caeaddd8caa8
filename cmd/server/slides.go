package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pitch-deck/internal/services"
)

func newSlidesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "slides",
		Short: "Print the slide catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			catalog, err := services.LoadSlideCatalog(cfg.Catalog.File, logger)
			if err != nil {
				return err
			}
			return printSlides(cmd.OutOrStdout(), catalog, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")
	return cmd
}

func printSlides(w io.Writer, catalog *services.SlideCatalog, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(catalog.All())
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tTHEME\tTITLE")
	for i, slide := range catalog.All() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, slide.ID, slide.Theme, slide.Title)
	}
	return tw.Flush()
}
