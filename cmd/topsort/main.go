// Package main provides the topsort CLI: generational topological
// sorting of edge lists from files, stdin, or a SQLite edge table.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/topsort"
	"github.com/meikuraledutech/topsort/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "topsort [file]",
	Short: "Topologically sort a directed graph in generations",
	Long: `Reads "source sink" pairs, one edge per line, from a file or stdin
(or from a SQLite table with --db) and prints the topological order one
generation per line. Nodes sharing a line have no ordering between them.
Blank lines and lines starting with # are ignored.`,
	Args:          cobra.MaximumNArgs(1),
	RunE:          runSort,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Exit zero if the graph is acyclic",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

var addCmd = &cobra.Command{
	Use:   "add <source> <sink>",
	Short: "Insert an edge into the database",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdd,
}

var rmCmd = &cobra.Command{
	Use:   "rm <source> <sink>",
	Short: "Delete an edge from the database",
	Args:  cobra.ExactArgs(2),
	RunE:  runRemove,
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List every node in the database",
	Args:  cobra.NoArgs,
	RunE:  runNodes,
}

var edgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "List every edge in the database, one per line",
	Args:  cobra.NoArgs,
	RunE:  runEdges,
}

var (
	dbPath    string
	tableName string
	sourceCol string
	sinkCol   string
	reverse   bool
	flat      bool
	starts    []string
	endpoints []string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to a SQLite database to read edges from")
	rootCmd.PersistentFlags().StringVar(&tableName, "table", "edges", "Edge table name")
	rootCmd.PersistentFlags().StringVar(&sourceCol, "source-col", "source", "Source column name")
	rootCmd.PersistentFlags().StringVar(&sinkCol, "sink-col", "sink", "Sink column name")

	rootCmd.Flags().BoolVar(&reverse, "reverse", false, "Sort sinks before sources")
	rootCmd.Flags().BoolVar(&flat, "flat", false, "Print one node per line instead of one generation per line")
	rootCmd.Flags().StringSliceVar(&starts, "start", nil, "Restrict to nodes reachable from these (repeatable)")
	rootCmd.Flags().StringSliceVar(&endpoints, "endpoint", nil, "Restrict to nodes reaching these (repeatable)")

	checkCmd.Flags().StringSliceVar(&starts, "start", nil, "Restrict to nodes reachable from these (repeatable)")
	checkCmd.Flags().StringSliceVar(&endpoints, "endpoint", nil, "Restrict to nodes reaching these (repeatable)")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(edgesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSort(cmd *cobra.Command, args []string) error {
	g, cleanup, err := openSort(cmd.Context(), args)
	if err != nil {
		return err
	}
	defer cleanup()

	gens, err := topsort.Collect(g)
	for _, gen := range gens {
		if flat {
			fmt.Println(strings.Join(gen, "\n"))
		} else {
			fmt.Println(strings.Join(gen, " "))
		}
	}
	return err
}

func runCheck(cmd *cobra.Command, args []string) error {
	g, cleanup, err := openSort(cmd.Context(), args)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = topsort.Collect(g)
	return err
}

func runAdd(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Add(cmd.Context(), args[0], args[1])
}

func runRemove(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Remove(cmd.Context(), args[0], args[1])
}

func runNodes(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	nodes, err := store.Nodes(cmd.Context())
	if err != nil {
		return err
	}
	for _, n := range nodes {
		fmt.Println(n)
	}
	return nil
}

func runEdges(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	edges, err := store.Edges(cmd.Context())
	if err != nil {
		return err
	}
	for _, e := range edges {
		fmt.Println(e.Source, e.Sink)
	}
	return nil
}

// openSort begins the requested sort over either the database or a
// parsed edge list. The cleanup func releases whatever backs the cursor
// and must run after the cursor is drained.
func openSort(ctx context.Context, args []string) (topsort.Generations, func(), error) {
	if dbPath != "" {
		if len(args) > 0 {
			return nil, nil, errors.New("cannot combine --db with an edge file")
		}
		store, err := openStore()
		if err != nil {
			return nil, nil, err
		}
		var g topsort.Generations
		if reverse {
			g, err = store.SortReverse(ctx, starts, endpoints)
		} else {
			g, err = store.SortForward(ctx, starts, endpoints)
		}
		if err != nil {
			store.Close()
			return nil, nil, err
		}
		return g, func() { store.Close() }, nil
	}

	d, err := loadDAG(args)
	if err != nil {
		return nil, nil, err
	}
	if reverse {
		return d.SortReverse(starts, endpoints), func() {}, nil
	}
	return d.SortForward(starts, endpoints), func() {}, nil
}

// openStore opens the SQLite store named by --db and makes sure its
// table exists.
func openStore() (*sqlite.SQLiteDAG, error) {
	if dbPath == "" {
		return nil, errors.New("--db is required")
	}
	store, err := sqlite.Open(dbPath, tableName, sourceCol, sinkCol)
	if err != nil {
		return nil, err
	}
	if err := store.CreateSchema(context.Background()); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// loadDAG reads edges from the named file, or stdin when no file (or
// "-") is given.
func loadDAG(args []string) (*topsort.DAG, error) {
	var r io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("opening edges: %w", err)
		}
		defer f.Close()
		r = f
	}
	edges, err := parseEdges(r)
	if err != nil {
		return nil, err
	}
	return topsort.New(edges...), nil
}

// parseEdges reads whitespace separated "source sink" pairs, one per
// line, skipping blanks and # comments.
func parseEdges(r io.Reader) ([]topsort.Edge, error) {
	var edges []topsort.Edge
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want \"source sink\", got %q", line, text)
		}
		edges = append(edges, topsort.Edge{Source: fields[0], Sink: fields[1]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading edges: %w", err)
	}
	return edges, nil
}
