package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"hotspotter/internal/config"
	"hotspotter/internal/export"
	"hotspotter/internal/hotspot"
	"hotspotter/internal/reactor"
	"hotspotter/internal/scene"
	"hotspotter/internal/selection"
	"hotspotter/internal/storage"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "hotspotter",
		Short: "Annotate design frames with named hotspots and export their positions",
	}
	dbPath     string
	configPath string
	docName    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Path to the document database (SQLite); overrides store.path")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVarP(&docName, "doc", "n", "default", "Name of the document inside the database")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(duplicateCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads the config file and installs the default logger.
func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.Log.Level, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg
}

func markerOf(cfg *config.Config) hotspot.MarkerTemplate {
	return hotspot.MarkerTemplate{Name: cfg.Marker.Name, Size: cfg.Marker.Size}
}

func encoderOf(cfg *config.Config) *export.Encoder {
	return export.NewEncoder(export.Options{
		RemBase:       cfg.Export.RemBase,
		JSONPrecision: cfg.Export.JSONPrecision,
		CSSPrecision:  cfg.Export.CSSPrecision,
	})
}

// initStore initializes the SQLite store.
func initStore(cfg *config.Config) *storage.SQLiteStore {
	store, err := storage.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	return store
}

// workspace is one loaded document with a running session.
type workspace struct {
	cfg     *config.Config
	store   *storage.SQLiteStore
	doc     *scene.Document
	session *reactor.Session
	out     *console
}

func openWorkspace(ctx context.Context) *workspace {
	cfg := loadConfig()
	store := initStore(cfg)

	doc, err := store.LoadDocument(ctx, docName)
	if errors.Is(err, storage.ErrNotFound) {
		store.Close()
		log.Fatalf("Document %q not found in %s. Run 'hotspotter import' first.", docName, cfg.Store.Path)
	}
	if err != nil {
		store.Close()
		log.Fatalf("Failed to load document: %v", err)
	}

	out := &console{w: os.Stderr}
	session := reactor.NewSession(doc, out,
		reactor.WithLogger(slog.Default()),
		reactor.WithMarker(markerOf(cfg)),
	)
	if err := session.Start(); err != nil {
		store.Close()
		log.Fatalf("Failed to start session: %v", err)
	}
	return &workspace{cfg: cfg, store: store, doc: doc, session: session, out: out}
}

func (ws *workspace) save(ctx context.Context) {
	if err := ws.store.SaveDocument(ctx, docName, ws.doc); err != nil {
		log.Fatalf("Failed to save document: %v", err)
	}
}

func (ws *workspace) close() {
	ws.session.Close()
	ws.store.Close()
}

// lookup resolves a node id given on the command line.
func (ws *workspace) lookup(id string) *scene.Node {
	n, ok := ws.doc.Node(id)
	if !ok || !ws.doc.Attached(n) {
		log.Fatalf("Node %q not found", id)
	}
	return n
}

// printState refreshes and prints the current selection state.
func (ws *workspace) printState() {
	ws.session.Refresh()
	msg, ok := ws.out.last()
	if !ok {
		return
	}
	printResult(os.Stdout, msg)
}

// console is the terminal presenter: notifications go to w as they arrive
// and the latest message is kept for printing.
type console struct {
	w        io.Writer
	messages []selection.Result
}

func (c *console) Post(msg selection.Result) {
	c.messages = append(c.messages, msg)
}

func (c *console) Notify(text string) {
	fmt.Fprintf(c.w, "⚠️  %s\n", text)
}

func (c *console) last() (selection.Result, bool) {
	if len(c.messages) == 0 {
		return selection.Result{}, false
	}
	return c.messages[len(c.messages)-1], true
}

func printResult(w io.Writer, msg selection.Result) {
	fmt.Fprintf(w, "Selection: %s\n", msg.Classification)
	if msg.Hotspot != nil {
		fmt.Fprintf(w, "Hotspot: %s (%s)\n", msg.Hotspot.Name, msg.Hotspot.ID)
	}
	if msg.Snapshot == nil {
		return
	}
	for _, f := range msg.Snapshot.Frames {
		fmt.Fprintf(w, "📐 %s [%s] %gx%g\n", f.Name, f.ID, f.Width, f.Height)
		for _, h := range f.Hotspots {
			fmt.Fprintf(w, "   • %-20s left=%.3f top=%.3f  node=%s\n", h.Name, h.Left, h.Top, h.NodeRef)
		}
	}
}

func printTree(w io.Writer, doc *scene.Document, n *scene.Node, depth int) {
	label := n.Name
	if a, err := hotspot.ReadAnnotation(doc, n); err == nil {
		label = fmt.Sprintf("%s ⭐ %s", n.Name, a.Name)
	}
	fmt.Fprintf(w, "%s%s %s (%s) @%g,%g\n", strings.Repeat("  ", depth), n.ID, label, n.Type, n.X, n.Y)
	for _, c := range doc.Children(n) {
		printTree(w, doc, c, depth+1)
	}
}
