package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuitang/parabank-e2e/internal/journey"
	"github.com/kuitang/parabank-e2e/internal/pages"
)

func listSteps(cmd *cobra.Command, args []string) error {
	catalog := journey.NewCatalog(pages.NewSite("", nil))
	out := cmd.OutOrStdout()
	for _, name := range catalog.Names() {
		fmt.Fprintln(out, name)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "default journeys:")
	for _, def := range []journey.Definition{catalog.DefaultRegistration(), catalog.FullJourney()} {
		fmt.Fprintf(out, "  %s: %v\n", def.Name, def.StepNames())
	}
	return nil
}
