// Command marginalia is the CLI tool for the marginalia highlight engine.
// It provides commands for serving the REST API, rewriting markers in
// markdown sources, anchoring highlights in rendered views, and managing
// the highlight store.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/marginalia/core/highlight"
	"github.com/FocuswithJustin/marginalia/core/marker"
	"github.com/FocuswithJustin/marginalia/core/store"
	"github.com/FocuswithJustin/marginalia/core/view"
	"github.com/FocuswithJustin/marginalia/internal/api"
	"github.com/FocuswithJustin/marginalia/internal/archive"
	"github.com/FocuswithJustin/marginalia/internal/logging"
	"github.com/FocuswithJustin/marginalia/internal/report"
	"github.com/FocuswithJustin/marginalia/internal/validation"
)

const version = "0.3.0"

// CLI defines the command-line interface for marginalia.
var CLI struct {
	// Global flags
	Library  string `name:"library" short:"l" help:"Markdown library root directory" default:"." type:"path"`
	Backend  string `help:"Highlight store backend" enum:"file,sqlite" default:"file"`
	DB       string `name:"db" help:"SQLite database path (sqlite backend only)" type:"path"`
	LogLevel string `help:"Log level" enum:"debug,info,warn,error" default:"info"`
	LogJSON  bool   `help:"Emit logs as JSON"`

	Serve   ServeCmd   `cmd:"" help:"Start REST API server"`
	Mark    MarkCmd    `cmd:"" help:"Rewrite highlight markers in a markdown file"`
	Strip   StripCmd   `cmd:"" help:"Remove all highlight markers from a markdown file"`
	Anchor  AnchorCmd  `cmd:"" help:"Wrap stored highlights in a rendered XHTML view"`
	List    ListCmd    `cmd:"" help:"List documents with stored highlights"`
	Show    ShowCmd    `cmd:"" help:"Show one document's highlight record"`
	Report  ReportCmd  `cmd:"" help:"Render a library highlight report"`
	Export  ExportCmd  `cmd:"" help:"Export the highlight store to an archive"`
	Import  ImportCmd  `cmd:"" help:"Import highlights from an export archive"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Port      int      `help:"HTTP server port" default:"8081"`
	APIKey    string   `name:"api-key" help:"API key for authentication (min 16 chars)" env:"MARGINALIA_API_KEY"`
	RateLimit int      `name:"rate-limit" help:"Requests per minute per client (0 = disabled)" default:"0"`
	RateBurst int      `name:"rate-burst" help:"Burst size for rate limiting" default:"10"`
	TLSCert   string   `name:"tls-cert" help:"Path to TLS certificate file" type:"path"`
	TLSKey    string   `name:"tls-key" help:"Path to TLS private key file" type:"path"`
	Origins   []string `help:"Allowed CORS origins (empty = allow all)"`
}

func (c *ServeCmd) Run() error {
	libDir, err := libraryDir()
	if err != nil {
		return err
	}

	cfg := api.Config{
		Port:              c.Port,
		LibraryDir:        libDir,
		Backend:           CLI.Backend,
		DBPath:            CLI.DB,
		RateLimitRequests: c.RateLimit,
		RateLimitBurst:    c.RateBurst,
		Auth: api.AuthConfig{
			Enabled: c.APIKey != "",
			APIKey:  c.APIKey,
		},
		TLS: api.TLSConfig{
			Enabled:  c.TLSCert != "" && c.TLSKey != "",
			CertFile: c.TLSCert,
			KeyFile:  c.TLSKey,
		},
		AllowedOrigins: c.Origins,
	}
	return api.Start(cfg)
}

// MarkCmd rewrites the markers in a markdown file from its stored record.
type MarkCmd struct {
	File string `arg:"" help:"Path to markdown file" type:"existingfile"`
	Path string `help:"Library path of the stored record (default: file path relative to library root)"`
}

func (c *MarkCmd) Run() error {
	if err := checkInput(c.File, validation.FileTypeMarkdown, validation.FileTypeText); err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}

	libraryPath := c.Path
	if libraryPath == "" {
		libraryPath, err = relLibraryPath(c.File)
		if err != nil {
			return err
		}
	}

	doc, err := st.Load(libraryPath)
	if err != nil {
		return fmt.Errorf("failed to load record: %w", err)
	}

	src, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	out, skipped := marker.Write(string(src), doc.Highlights)
	if out != string(src) {
		if err := os.WriteFile(c.File, []byte(out), 0644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
	}

	fmt.Printf("Marked: %s\n", c.File)
	fmt.Printf("  Record: %s\n", libraryPath)
	fmt.Printf("  Highlights: %d\n", len(doc.Highlights))
	if len(skipped) > 0 {
		fmt.Printf("  Unmatched: %d\n", len(skipped))
		for _, h := range skipped {
			fmt.Printf("    %s\n", excerpt(h.Text))
		}
	}
	return nil
}

// StripCmd removes every highlight marker from a markdown file.
type StripCmd struct {
	File string `arg:"" help:"Path to markdown file" type:"existingfile"`
}

func (c *StripCmd) Run() error {
	if err := checkInput(c.File, validation.FileTypeMarkdown, validation.FileTypeText); err != nil {
		return err
	}
	src, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	out := marker.Strip(string(src))
	if out != string(src) {
		if err := os.WriteFile(c.File, []byte(out), 0644); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
	}

	fmt.Printf("Stripped: %s\n", c.File)
	fmt.Printf("  Removed: %d bytes of markers\n", len(src)-len(out))
	return nil
}

// AnchorCmd wraps a document's stored highlights in a rendered XHTML view.
type AnchorCmd struct {
	File    string   `arg:"" help:"Path to rendered XHTML view" type:"existingfile"`
	Path    string   `help:"Library path of the stored record (default: view path relative to library root)"`
	Out     string   `short:"o" help:"Output path (default: stdout)" type:"path"`
	Exclude []string `help:"XPath expressions whose subtrees are excluded from matching"`
}

func (c *AnchorCmd) Run() error {
	if err := checkInput(c.File, validation.FileTypeHTML); err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}

	libraryPath := c.Path
	if libraryPath == "" {
		libraryPath, err = relLibraryPath(c.File)
		if err != nil {
			return err
		}
	}

	doc, err := st.Load(libraryPath)
	if err != nil {
		return fmt.Errorf("failed to load record: %w", err)
	}

	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("failed to open view: %w", err)
	}
	node, err := xmlquery.Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to parse view: %w", err)
	}

	a, err := view.New(node, doc.Highlights, view.Options{Exclude: c.Exclude})
	if err != nil {
		return fmt.Errorf("failed to anchor view: %w", err)
	}
	a.WrapAll()
	html := a.HTML()

	if c.Out == "" {
		fmt.Print(html)
		return nil
	}
	if err := os.WriteFile(c.Out, []byte(html), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	p := a.Progress()
	fmt.Printf("Anchored: %s\n", c.File)
	fmt.Printf("  Record: %s\n", libraryPath)
	fmt.Printf("  Resolved: %d of %d highlight(s)\n", p.Total, len(doc.Highlights))
	fmt.Printf("  Output: %s\n", c.Out)
	return nil
}

// ListCmd lists every document with stored highlights.
type ListCmd struct{}

func (c *ListCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}

	paths, err := st.List()
	if err != nil {
		return fmt.Errorf("failed to list store: %w", err)
	}

	libDir, _ := libraryDir()
	fmt.Printf("Documents in library: %s\n\n", libDir)

	if len(paths) == 0 {
		fmt.Println("No highlights stored.")
		return nil
	}

	total := 0
	for _, p := range paths {
		doc, err := st.Load(p)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
		fmt.Printf("  %s (%d)\n", p, len(doc.Highlights))
		total += len(doc.Highlights)
	}

	fmt.Printf("\nTotal: %d document(s), %d highlight(s)\n", len(paths), total)
	return nil
}

// ShowCmd shows one document's full highlight record.
type ShowCmd struct {
	Path string `arg:"" help:"Library path of the document"`
	JSON bool   `help:"Output as JSON"`
}

func (c *ShowCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}

	doc, err := st.Load(c.Path)
	if err != nil {
		return fmt.Errorf("failed to load record: %w", err)
	}

	if c.JSON {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Document: %s\n", doc.Path)
	if doc.Title != "" {
		fmt.Printf("  Title: %s\n", doc.Title)
	}
	if !doc.UpdatedAt.IsZero() {
		fmt.Printf("  Updated: %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("  Highlights: %d\n", len(doc.Highlights))
	fmt.Println()

	for i, h := range doc.Highlights {
		fmt.Printf("  %d. %s\n", i+1, excerpt(h.Text))
		fmt.Printf("     ID: %s\n", h.ID)
		if h.Note != "" {
			fmt.Printf("     Note: %s\n", h.Note)
		}
		if h.Color != "" {
			fmt.Printf("     Color: %s\n", h.Color)
		}
	}
	return nil
}

// ReportCmd renders a highlight report over the whole library.
type ReportCmd struct {
	Flat     bool `help:"Force the flat line-per-document layout"`
	Sections bool `help:"Group highlights under their markdown sections"`
}

func (c *ReportCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	libDir, err := libraryDir()
	if err != nil {
		return err
	}

	opts := report.Options{
		Flat:         c.Flat || !report.IsTerminal(os.Stdout),
		ShowSections: c.Sections,
		LibraryDir:   libDir,
	}
	return report.Render(st, os.Stdout, opts)
}

// ExportCmd exports the highlight store to a compressed archive.
type ExportCmd struct {
	Out string `arg:"" help:"Output archive path (.tar.xz or .tar.gz)" type:"path"`
}

func (c *ExportCmd) Run() error {
	st, err := openStore()
	if err != nil {
		return err
	}

	n, err := archive.ExportLibrary(st, c.Out)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("Exported: %s\n", c.Out)
	fmt.Printf("  Documents: %d\n", n)
	return nil
}

// ImportCmd imports highlight records from an export archive.
type ImportCmd struct {
	Archive string `arg:"" help:"Path to export archive" type:"existingfile"`
}

func (c *ImportCmd) Run() error {
	if err := checkInput(c.Archive, validation.FileTypeTarXZ, validation.FileTypeTarGZ); err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}

	n, err := archive.ImportLibrary(st, c.Archive)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Imported: %s\n", c.Archive)
	fmt.Printf("  Documents: %d\n", n)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("marginalia version %s\n", version)
	return nil
}

// Helper functions

func libraryDir() (string, error) {
	abs, err := filepath.Abs(CLI.Library)
	if err != nil {
		return "", fmt.Errorf("invalid library path: %w", err)
	}
	return abs, nil
}

func openStore() (store.Store, error) {
	libDir, err := libraryDir()
	if err != nil {
		return nil, err
	}

	switch CLI.Backend {
	case "sqlite":
		dbPath := CLI.DB
		if dbPath == "" {
			dbPath = filepath.Join(libDir, ".marginalia", "highlights.db")
		}
		return store.OpenSQLite(dbPath)
	default:
		return store.NewFileStore(filepath.Join(libDir, ".marginalia"))
	}
}

// checkInput sniffs a file argument and rejects it when its content does not
// match one of the accepted types.
func checkInput(file string, accept ...validation.FileType) error {
	got, err := validation.ValidateFilePath(file)
	if err != nil {
		return err
	}
	for _, t := range accept {
		if got == t {
			return nil
		}
	}
	return fmt.Errorf("%s: %s input not accepted here", file, got)
}

// relLibraryPath maps a file argument to its library path. Files outside the
// library root fall back to their base name.
func relLibraryPath(file string) (string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	libDir, err := libraryDir()
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(libDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return highlight.NormalizePath(filepath.Base(abs)), nil
	}
	return highlight.NormalizePath(rel), nil
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 60 {
		return text[:57] + "..."
	}
	return text
}

func initLogging() {
	level := logging.LevelInfo
	switch CLI.LogLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}

	format := logging.FormatText
	if CLI.LogJSON {
		format = logging.FormatJSON
	}
	logging.InitLogger(level, format)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("marginalia"),
		kong.Description("Marginalia - Highlight anchoring for markdown libraries"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	initLogging()
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
