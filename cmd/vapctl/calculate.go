package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/Simplici0/vapformula/internal/pricing"
)

func runCalculate(c *cli.Context) error {
	in, err := readInput(c.String("input"), c.App.Reader)
	if err != nil {
		return err
	}

	out, err := pricing.Calculate(in)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid input: %v", err), 2)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return printBreakdown(c.App.Writer, out)
}

func readInput(path string, stdin io.Reader) (pricing.Input, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return pricing.Input{}, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var in pricing.Input
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return pricing.Input{}, fmt.Errorf("decode input %s: %w", path, err)
	}
	return in, nil
}

func printBreakdown(w io.Writer, out pricing.Output) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tFACTOR TYPE\tFACTOR VALUE\tREFERENCE\tCOST")
	for _, row := range out.Breakdown {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			row.Component, row.FactorType, fixed4(row.FactorValue), row.MarketReference, fixed4(row.CalculatedCost))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	v := out.Validation
	_, err := fmt.Fprintf(w, "\nFOB final: %.4f  (recipe total %.2f%%, recipe valid %t, prices present %t)\n",
		out.FOBFinal, v.RecipePercentTotal, v.RecipePercentValid, v.AllMarketPricesPresent)
	return err
}

func fixed4(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}
