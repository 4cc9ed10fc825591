package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/jonwraymond/ncmat/element"
	"github.com/jonwraymond/ncmat/health"
)

var errUnhealthy = errors.New("material stack is unhealthy")

func (c *cli) formulaCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "formula SYM:COUNT...",
		Short:   "print the reduced Hill formula of a composition",
		Example: "  ncmat formula H:4 C:2 O:2",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := element.ParseCounts(args)
			if err != nil {
				return err
			}
			formula, err := comp.Formula()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formula)
			return nil
		},
	}
}

func (c *cli) materialCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "material CONFIG...",
		Short:   "build materials and print their registry entries",
		Example: "  ncmat material 'Al.yaml;temp=350K' 'Al.yaml;packfact=0.6'",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: c.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := c.app
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tNAME\tBASE\tDENSITY\tTEMP\tCACHED")
			for _, cfg := range args {
				_, cached := a.factory.DerivedStore().Get(cfg)
				h, err := a.factory.DerivedMaterial(cmd.Context(), cfg)
				if err != nil {
					return fmt.Errorf("%s: %w", cfg, err)
				}
				m := h.Value
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.4g g/cm3\t%.2f K\t%v\n",
					m.Index, m.Name, a.baseName(m), m.Density, m.Temperature, cached)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) sampleCmd() *cobra.Command {
	var (
		energy float64
		n      int
		seed   uint64
	)
	cmd := &cobra.Command{
		Use:     "sample CONFIG",
		Short:   "sample scattering events for a neutron travelling along +z",
		Args:    cobra.ExactArgs(1),
		PreRunE: c.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := c.app.factory.DerivedMaterial(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			s := h.Value.Scatter
			dir := r3.Vec{Z: 1}

			xs, err := s.CrossSection(energy, dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %g barn at %g eV\n", s.Name(), xs, energy)

			rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tTHETA_DEG\tPHI_DEG\tDE_EV")
			for i := 0; i < n; i++ {
				d, dE, err := s.GenerateScattering(rng, energy, dir)
				if err != nil {
					return err
				}
				theta := math.Acos(math.Max(-1, math.Min(1, d.Z))) * 180 / math.Pi
				phi := math.Atan2(d.Y, d.X) * 180 / math.Pi
				fmt.Fprintf(tw, "%d\t%.3f\t%.3f\t%g\n", i, theta, phi, dE)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Float64Var(&energy, "energy", 0.025, "neutron kinetic energy (eV)")
	cmd.Flags().IntVarP(&n, "n", "n", 5, "number of events")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	return cmd
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "health [CONFIG...]",
		Short:   "build materials, then print the cache health report",
		PreRunE: c.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, cfg := range args {
				if _, err := c.app.factory.DerivedMaterial(cmd.Context(), cfg); err != nil {
					return fmt.Errorf("%s: %w", cfg, err)
				}
			}

			report := c.app.health.Run(cmd.Context())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(health.NewReportResponse(report)); err != nil {
				return err
			}
			if report.Status == health.StatusUnhealthy {
				return errUnhealthy
			}
			return nil
		},
	}
}
