package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/supplyopt/planner/pkg/plan"
)

type outputConfig struct {
	Format    string
	OutputDir string
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func writeOutput(p *plan.Projection, cfg outputConfig) error {
	switch cfg.Format {
	case "text":
		return writeText(os.Stdout, p)
	case "json":
		if cfg.OutputDir == "" {
			return writeJSON(os.Stdout, p)
		}
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		f, err := os.Create(filepath.Join(cfg.OutputDir, "result.json"))
		if err != nil {
			return fmt.Errorf("failed to create result file: %w", err)
		}
		defer f.Close()
		return writeJSON(f, p)
	case "csv":
		if cfg.OutputDir == "" {
			return fmt.Errorf("csv output requires -output directory")
		}
		return writeCSVFiles(cfg.OutputDir, p)
	default:
		return fmt.Errorf("unknown output format: %s", cfg.Format)
	}
}

// writeText prints one pivot block per product/location pair: key
// figures as rows, periods as columns. Backlog is shown only when the
// plan actually carries some.
func writeText(w io.Writer, p *plan.Projection) error {
	fmt.Fprintf(w, "%s\n", headerStyle.Render("Supply Plan"))
	fmt.Fprintf(w, "backlog=%.6g  inventory=%.6g  buy=%.6g\n\n",
		p.Metrics.Backlog, p.Metrics.Inventory, p.Metrics.BuyVolume)

	const figureWidth = 22
	for _, pp := range p.Plans {
		fmt.Fprintf(w, "%s\n", headerStyle.Render(fmt.Sprintf("%s @ %s", pp.Product, pp.Location)))

		var header strings.Builder
		header.WriteString(fmt.Sprintf("%-*s", figureWidth, ""))
		for _, t := range p.Periods {
			header.WriteString(fmt.Sprintf("%12s", string(t)))
		}
		fmt.Fprintln(w, labelStyle.Render(header.String()))

		for _, fig := range plan.KeyFigures {
			if fig == plan.FigureBacklog && !pp.HasBacklog() {
				continue
			}
			fmt.Fprintf(w, "%-*s", figureWidth, string(fig))
			for _, v := range pp.Figures[fig] {
				fmt.Fprintf(w, "%12s", formatCell(v))
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	for _, ru := range p.Resources {
		fmt.Fprintf(w, "%s\n", headerStyle.Render(fmt.Sprintf("resource %s @ %s", ru.Resource, ru.Location)))
		fmt.Fprintf(w, "%-*s", figureWidth, "total")
		for _, v := range ru.Total {
			fmt.Fprintf(w, "%12s", formatCell(v))
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w)
	}
	return nil
}

func formatCell(v decimal.Decimal) string {
	if v.IsZero() {
		return "."
	}
	return v.String()
}

type jsonPlan struct {
	Product  plan.ProductID              `json:"product"`
	Location plan.LocationID             `json:"location"`
	Figures  map[plan.KeyFigure][]string `json:"figures"`
}

type jsonResource struct {
	Resource plan.ResourceID             `json:"resource"`
	Location plan.LocationID             `json:"location"`
	Total    []string                    `json:"total"`
	Products map[plan.ProductID][]string `json:"products,omitempty"`
}

type jsonResult struct {
	Periods   []plan.PeriodID `json:"periods"`
	Metrics   plan.Metrics    `json:"metrics"`
	Plans     []jsonPlan      `json:"plans"`
	Resources []jsonResource  `json:"resources,omitempty"`
}

func writeJSON(w io.Writer, p *plan.Projection) error {
	out := jsonResult{
		Periods: p.Periods,
		Metrics: p.Metrics,
	}
	for _, pp := range p.Plans {
		jp := jsonPlan{
			Product:  pp.Product,
			Location: pp.Location,
			Figures:  make(map[plan.KeyFigure][]string, len(pp.Figures)),
		}
		for fig, series := range pp.Figures {
			jp.Figures[fig] = seriesStrings(series)
		}
		out.Plans = append(out.Plans, jp)
	}
	for _, ru := range p.Resources {
		jr := jsonResource{
			Resource: ru.Resource,
			Location: ru.Location,
			Total:    seriesStrings(ru.Total),
		}
		if len(ru.ByProduct) > 0 {
			jr.Products = make(map[plan.ProductID][]string, len(ru.ByProduct))
			for prod, series := range ru.ByProduct {
				jr.Products[prod] = seriesStrings(series)
			}
		}
		out.Resources = append(out.Resources, jr)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func seriesStrings(s plan.Series) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = v.String()
	}
	return out
}

// writeCSVFiles writes result.csv plus resource consumption files into
// the output directory.
func writeCSVFiles(dir string, p *plan.Projection) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeCSVFile(filepath.Join(dir, "result.csv"),
		[]string{"product", "location", "figure", "period", "value"},
		func(w *csv.Writer) error {
			for _, pp := range p.Plans {
				for _, fig := range plan.KeyFigures {
					series := pp.Figures[fig]
					for ti, t := range p.Periods {
						record := []string{
							string(pp.Product),
							string(pp.Location),
							string(fig),
							string(t),
							series[ti].String(),
						}
						if err := w.Write(record); err != nil {
							return err
						}
					}
				}
			}
			return nil
		}); err != nil {
		return err
	}

	if err := writeCSVFile(filepath.Join(dir, "resource_consumption.csv"),
		[]string{"resource", "location", "period", "value"},
		func(w *csv.Writer) error {
			for _, ru := range p.Resources {
				for ti, t := range p.Periods {
					record := []string{
						string(ru.Resource),
						string(ru.Location),
						string(t),
						ru.Total[ti].String(),
					}
					if err := w.Write(record); err != nil {
						return err
					}
				}
			}
			return nil
		}); err != nil {
		return err
	}

	return writeCSVFile(filepath.Join(dir, "resource_consumption_detail.csv"),
		[]string{"resource", "location", "product", "period", "value"},
		func(w *csv.Writer) error {
			for _, ru := range p.Resources {
				products := make([]plan.ProductID, 0, len(ru.ByProduct))
				for prod := range ru.ByProduct {
					products = append(products, prod)
				}
				slices.Sort(products)
				for _, prod := range products {
					series := ru.ByProduct[prod]
					for ti, t := range p.Periods {
						record := []string{
							string(ru.Resource),
							string(ru.Location),
							string(prod),
							string(t),
							series[ti].String(),
						}
						if err := w.Write(record); err != nil {
							return err
						}
					}
				}
			}
			return nil
		})
}

func writeCSVFile(path string, header []string, body func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := body(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	w.Flush()
	return w.Error()
}
