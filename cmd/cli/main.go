package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gocausal/adapters/causalapi"
	"gocausal/domain/causal"
	"gocausal/internal/editor"
	"gocausal/internal/report"
	"gocausal/internal/session"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gocausal-cli",
		Short:         "Inspect, render and report saved causal graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newCheckCmd(),
		newRenderCmd(),
		newReportCmd(),
		newListCmd(),
		newModelsCmd(),
	)
	return rootCmd
}

// graphFile is the document written by the editor's file store
type graphFile struct {
	SessionID string        `json:"session_id"`
	Nodes     []causal.Node `json:"nodes"`
	Edges     []causal.Edge `json:"edges"`
}

// loadGraph reads a saved graph into a canvas, which rejects duplicate
// nodes and dangling edges
func loadGraph(path string) (*graphFile, *editor.Canvas, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var doc graphFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", path, err)
	}

	canvas := editor.NewCanvas(editor.CanvasOptions{})
	if err := canvas.Update(func(g *editor.GraphModel) error { return g.Load(doc.Nodes, doc.Edges) }); err != nil {
		return nil, nil, fmt.Errorf("invalid graph %s: %w", path, err)
	}
	return &doc, canvas, nil
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [graph.json]",
		Short: "Validate a saved graph and report cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, canvas, err := loadGraph(args[0])
			if err != nil {
				return err
			}

			var (
				nodes, latent, edges int
				groups               [][]string
			)
			canvas.View(func(g *editor.GraphModel) {
				for _, n := range g.Nodes() {
					nodes++
					if !n.Observed() {
						latent++
					}
				}
				edges = len(g.Edges())
				groups = g.CycleGroups()
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "nodes: %d (%d latent)\n", nodes, latent)
			fmt.Fprintf(out, "edges: %d\n", edges)
			if len(groups) == 0 {
				fmt.Fprintln(out, "cycles: none")
				return nil
			}
			for _, grp := range groups {
				fmt.Fprintf(out, "cycle: %s\n", strings.Join(grp, " → "))
			}
			return fmt.Errorf("graph has %d cycle(s); estimation would be refused", len(groups))
		},
	}
}

func newRenderCmd() *cobra.Command {
	var (
		output        string
		width, height int
		zoom          float64
	)

	cmd := &cobra.Command{
		Use:   "render [graph.json]",
		Short: "Render a saved graph as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, canvas, err := loadGraph(args[0])
			if err != nil {
				return err
			}
			scene := canvas.Scene()
			if zoom > 0 {
				scene.Zoom = zoom
				scene.GridCellSize *= zoom
			}
			return writeOutput(cmd, output, []byte(scene.SVG(width, height)))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().IntVar(&width, "width", 1200, "SVG width in pixels")
	cmd.Flags().IntVar(&height, "height", 800, "SVG height in pixels")
	cmd.Flags().Float64Var(&zoom, "zoom", 0, "Content scale, 0 keeps 1.0")
	return cmd
}

func newReportCmd() *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "report [graph.json]",
		Short: "Write a markdown or HTML report of a saved graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, canvas, err := loadGraph(args[0])
			if err != nil {
				return err
			}
			g := report.Graph{SessionID: doc.SessionID, GeneratedAt: time.Now()}
			canvas.View(func(m *editor.GraphModel) {
				g.Nodes = m.Nodes()
				g.Edges = m.Edges()
			})

			switch format {
			case "md", "markdown":
				return writeOutput(cmd, output, []byte(report.Markdown(g)))
			case "html":
				return writeOutput(cmd, output, report.HTML(g))
			}
			return fmt.Errorf("unknown format %q (use md or html)", format)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&format, "format", "md", "Report format: md or html")
	return cmd
}

func newListCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List graphs saved by the file store",
		RunE: func(cmd *cobra.Command, args []string) error {
			blobs, err := session.NewLocalBlobStore(dir)
			if err != nil {
				return err
			}
			ids, err := session.NewGraphStore(blobs).List(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", envOr("GRAPH_DIR", "data/graphs"), "Graph store directory")
	return cmd
}

func newModelsCmd() *cobra.Command {
	var (
		apiURL  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "models [model]",
		Short: "List the causal service's models, or one model's options",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := causalapi.NewClient(causalapi.Config{
				BaseURL: apiURL,
				Token:   os.Getenv("CAUSAL_API_TOKEN"),
				Timeout: timeout,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				params, err := client.ModelOptions(ctx, args[0])
				if err != nil {
					return err
				}
				for _, p := range params {
					fmt.Fprintf(out, "%s\t%s\n", p.Name, p.Type)
				}
				return nil
			}

			models, err := client.ModelList(ctx)
			if err != nil {
				return err
			}
			for _, m := range models {
				fmt.Fprintln(out, m.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api-url", envOr("CAUSAL_API_URL", "http://localhost:5000"), "Causal service base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	return cmd
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	var w io.Writer = cmd.OutOrStdout()
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	_, err := w.Write(data)
	return err
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
