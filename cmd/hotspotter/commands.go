package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"hotspotter/internal/docfile"
	"hotspotter/internal/export"
	"hotspotter/internal/query"
	"hotspotter/internal/reactor"
	"hotspotter/internal/scene"
	"hotspotter/internal/server"
	"hotspotter/internal/snapshot"
	"hotspotter/internal/storage"

	"github.com/spf13/cobra"
)

var (
	importForce  bool
	selectWhere  string
	exportFormat string
	exportAll    bool
	exportOutput string
	serveAddr    string
)

func init() {
	importCmd.Flags().BoolVarP(&importForce, "force", "f", false, "Replace the document if it already exists")
	selectCmd.Flags().StringVarP(&selectWhere, "where", "w", "", `Filter expression, e.g. 'hotspot && frame == "Hall"'`)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "F", "", "Output format: json or css (default from config)")
	exportCmd.Flags().BoolVarP(&exportAll, "all", "a", false, "Export every frame containing hotspots, not just the selection")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create a document from a YAML description of frames and hotspots",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()
		store := initStore(cfg)
		defer store.Close()

		if !importForce {
			if _, err := store.LoadDocument(ctx, docName); err == nil {
				log.Fatalf("Document %q already exists. Use --force to replace it.", docName)
			} else if !errors.Is(err, storage.ErrNotFound) {
				log.Fatalf("Failed to check document: %v", err)
			}
		}

		f, err := docfile.LoadFile(args[0])
		if err != nil {
			log.Fatalf("Failed to read %s: %v", args[0], err)
		}
		doc, err := f.Build(markerOf(cfg))
		if err != nil {
			log.Fatalf("Failed to build document: %v", err)
		}
		if err := store.SaveDocument(ctx, docName, doc); err != nil {
			log.Fatalf("Failed to save document: %v", err)
		}

		frames := doc.FindAllByType(doc.Root(), scene.NodeTypeFrame)
		fmt.Printf("✅ Imported %q: %d nodes, %d frames.\n", docName, doc.Len(), len(frames))
	},
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List the documents stored in the database",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		store := initStore(cfg)
		defer store.Close()

		names, err := store.ListDocuments(context.Background())
		if err != nil {
			log.Fatalf("Failed to list documents: %v", err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the document tree with node ids",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := openWorkspace(context.Background())
		defer ws.close()
		printTree(os.Stdout, ws.doc, ws.doc.Root(), 0)
	},
}

var selectCmd = &cobra.Command{
	Use:   "select [node-id...]",
	Short: "Replace the selection by ids or by a filter expression",
	Run: func(cmd *cobra.Command, args []string) {
		if selectWhere != "" && len(args) > 0 {
			log.Fatalf("Node ids and --where are mutually exclusive")
		}
		ctx := context.Background()
		ws := openWorkspace(ctx)
		defer ws.close()

		var nodes []*scene.Node
		if selectWhere != "" {
			f, err := query.Compile(selectWhere)
			if err != nil {
				log.Fatalf("%v", err)
			}
			nodes, err = query.Select(ws.doc, f)
			if err != nil {
				log.Fatalf("%v", err)
			}
		}
		for _, id := range args {
			nodes = append(nodes, ws.lookup(id))
		}

		ws.doc.SetSelection(nodes...)
		ws.save(ctx)
		ws.printState()
	},
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Add a hotspot to the frame containing the selection",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(reactor.CreateHotspot(args[0]))
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <name>",
	Short: "Rename the selected hotspot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runCommand(reactor.RenameHotspot(args[0]))
	},
}

func runCommand(c reactor.Command) {
	ctx := context.Background()
	ws := openWorkspace(ctx)
	defer ws.close()

	if err := ws.session.Dispatch(c); err != nil {
		// The session already printed the user-facing notice.
		if _, ok := reactor.UserMessage(err); !ok {
			log.Fatalf("Command failed: %v", err)
		}
		os.Exit(1)
	}
	ws.save(ctx)
	ws.printState()
}

var duplicateCmd = &cobra.Command{
	Use:   "duplicate <node-id>",
	Short: "Duplicate a node in place; copied hotspots get a unique name",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)
		defer ws.close()

		clone, err := ws.doc.Duplicate(ws.lookup(args[0]))
		if err != nil {
			log.Fatalf("Failed to duplicate: %v", err)
		}
		ws.save(ctx)
		fmt.Printf("📄 Created %s\n", clone.ID)
		ws.printState()
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <node-id> <x> <y>",
	Short: "Move a node to parent-relative coordinates",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		x, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			log.Fatalf("Invalid x: %v", err)
		}
		y, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			log.Fatalf("Invalid y: %v", err)
		}

		ctx := context.Background()
		ws := openWorkspace(ctx)
		defer ws.close()

		n := ws.lookup(args[0])
		if n == ws.doc.Root() {
			log.Fatalf("Failed to move: %v", scene.ErrRootNode)
		}
		ws.doc.SetPosition(n, x, y)
		ws.save(ctx)
		ws.printState()
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <node-id>",
	Short: "Remove a node and its subtree",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		ws := openWorkspace(ctx)
		defer ws.close()

		if err := ws.doc.Remove(ws.lookup(args[0])); err != nil {
			log.Fatalf("Failed to delete: %v", err)
		}
		ws.save(ctx)
		fmt.Printf("🗑️  Removed %s\n", args[0])
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export hotspot positions of the selected frames as JSON or CSS",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := openWorkspace(context.Background())
		defer ws.close()

		name := exportFormat
		if name == "" {
			name = ws.cfg.Export.Format
		}
		format, err := export.ParseFormat(name)
		if err != nil {
			log.Fatalf("%v", err)
		}

		var snap *snapshot.Snapshot
		if exportAll {
			snap, err = ws.session.DocumentSnapshot()
		} else {
			snap, err = ws.session.SelectionSnapshot()
		}
		if err != nil {
			log.Fatalf("Failed to build snapshot: %v", err)
		}
		if snap.HotspotCount() == 0 && !exportAll {
			fmt.Fprintln(os.Stderr, "ℹ️  Nothing selected contains hotspots. Use --all to export the whole document.")
		}

		out, err := encoderOf(ws.cfg).Encode(format, snap)
		if err != nil {
			log.Fatalf("Failed to encode: %v", err)
		}
		if exportOutput == "" {
			fmt.Println(out)
			return
		}
		if err := os.WriteFile(exportOutput, []byte(out+"\n"), 0o644); err != nil {
			log.Fatalf("Failed to write %s: %v", exportOutput, err)
		}
		fmt.Fprintf(os.Stderr, "💾 Wrote %s\n", exportOutput)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the document session over HTTP",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := loadConfig()
		store := initStore(cfg)
		defer store.Close()

		doc, err := store.LoadDocument(ctx, docName)
		if errors.Is(err, storage.ErrNotFound) {
			slog.Info("Starting with an empty document", "doc", docName)
			doc = scene.NewDocument()
		} else if err != nil {
			log.Fatalf("Failed to load document: %v", err)
		}

		format, err := export.ParseFormat(cfg.Export.Format)
		if err != nil {
			log.Fatalf("%v", err)
		}
		srv, err := server.New(doc,
			server.WithLogger(slog.Default()),
			server.WithEncoder(encoderOf(cfg), format),
			server.WithMarker(markerOf(cfg)),
			server.WithSaveFunc(func(ctx context.Context, d *scene.Document) error {
				return store.SaveDocument(ctx, docName, d)
			}),
		)
		if err != nil {
			log.Fatalf("Failed to start session: %v", err)
		}
		defer srv.Close()

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
		}()

		slog.Info("Serving document", "doc", docName, "addr", addr, "db", cfg.Store.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	},
}
