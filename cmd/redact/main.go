// redact is a command-line tool for reviewing and applying redactions to scanned documents.
//
// The document is described by an hOCR file plus its page images, or is sent to Google
// Document AI to obtain both. Redactions already present in the PDF are loaded as manual
// redactions, suggestion batches and the built-in pattern and NER producers add suggested
// redactions, and the result is exported as a preview PDF (reversible marks on a separate
// layer) or a permanently redacted PDF (content burned out of the page images and the text layer).
//
// Configuration:
//
// An optional YAML configuration file:
//
//	project_id: "your-gcp-project-id"
//	location: "us"
//	processor_id: "your-processor-id"
//	ner_url: "http://sanitize-ner:8001"
//	rules_url: "https://example.org/redaction-rules/rules.json"
//	jurisdiction: "de-bund"
//	regex_categories: [email, phone, iban]
//	strip: [Author, Creator, Producer]
//	compress: true
//	log_level: info
//
// Every setting can be overridden with REDACT_* environment variables, also read from a
// .env file in the working directory.
//
// Usage:
//
//	redact -hocr doc.hocr [-images dir] [-pdf doc.pdf] [options]
//	redact -docai -pdf doc.pdf -config config.yml [options]
//	redact -list-rules [-jurisdiction id]
//
// Input flags:
//
//	-hocr string      Path to the hOCR file describing the document
//	-images string    Directory holding the page images referenced by the hOCR file
//	-pdf string       Path to the source PDF (existing annotations and metadata)
//	-docai            Obtain hOCR and page images from Document AI (requires -pdf)
//	-config string    Path to the YAML configuration file
//
// Review flags:
//
//	-session string      Session JSON; restored when it exists and written back at the end
//	-suggestions string  Suggestion batch JSON to apply
//	-regex               Suggest structured personal data found by patterns
//	-ner                 Suggest persons, organisations and places from the NER sidecar
//	-accept-all          Accept every suggested redaction
//	-jurisdiction string Rule catalog jurisdiction for reasoned redaction
//	-rule string         Title or reference of the rule justifying redactions that have none
//	-list-rules          Print the jurisdictions, or the rules of -jurisdiction, and exit
//
// Output flags:
//
//	-output string     Path to save the exported PDF
//	-permanent         Remove redacted content instead of marking it
//	-strip string      Comma separated metadata fields to remove ("none" keeps all)
//	-hocr-out string   Path to save the hOCR with redacted words removed
//	-debug-api string  Path to save the raw Document AI response as JSON
//
// Example:
//
//	redact -hocr scan.hocr -images scan_images -pdf scan.pdf -regex -session scan.json
//	redact -hocr scan.hocr -images scan_images -session scan.json -accept-all -permanent -output scan_redacted.pdf
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gardar/redactra/pkg/engine"
	"github.com/gardar/redactra/pkg/entities"
	"github.com/gardar/redactra/pkg/exporter"
	"github.com/gardar/redactra/pkg/gdocai"
	"github.com/gardar/redactra/pkg/hocr"
	"github.com/gardar/redactra/pkg/pdfengine"
	"github.com/gardar/redactra/pkg/redaction"
	"github.com/gardar/redactra/pkg/rules"
	"github.com/gardar/redactra/pkg/session"
	"github.com/gardar/redactra/pkg/suggest"
)

func main() {
	// Input flags
	hocrPath := flag.String("hocr", "", "Path to the hOCR file (required unless -docai)")
	imagesDir := flag.String("images", "", "Directory holding the page images")
	pdfPath := flag.String("pdf", "", "Path to the source PDF file")
	useDocAI := flag.Bool("docai", false, "Process the PDF with Google Document AI instead of reading -hocr")
	configPath := flag.String("config", "", "Path to the config YAML file")

	// Review flags
	sessionPath := flag.String("session", "", "Path to the session JSON (restored if present, saved at the end)")
	suggestionsPath := flag.String("suggestions", "", "Path to a suggestion batch JSON")
	useRegex := flag.Bool("regex", false, "Suggest personal data found by patterns")
	useNER := flag.Bool("ner", false, "Suggest entities found by the NER sidecar")
	acceptAll := flag.Bool("accept-all", false, "Accept every suggested redaction")
	jurisdiction := flag.String("jurisdiction", "", "Rule catalog jurisdiction (overrides config)")
	ruleKey := flag.String("rule", "", "Title or reference of the rule to assign to unjustified redactions")
	listRules := flag.Bool("list-rules", false, "List jurisdictions or the rules of -jurisdiction and exit")

	// Output flags
	outputPath := flag.String("output", "", "Path to save the exported PDF")
	permanent := flag.Bool("permanent", false, "Permanently remove redacted content")
	stripFields := flag.String("strip", "", "Comma separated metadata fields to strip (\"none\" keeps all)")
	hocrOutPath := flag.String("hocr-out", "", "Path to save the redacted hOCR")
	debugAPIPath := flag.String("debug-api", "", "Path to save the Document AI response as JSON")

	flag.Parse()

	providedFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		providedFlags[f.Name] = true
	})

	usage := func(msg string) {
		fmt.Fprintln(os.Stderr, "Error:", msg)
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *listRules {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		setString(&cfg.Jurisdiction, *jurisdiction)
		if err := printRules(context.Background(), cfg); err != nil {
			log.Fatalf("Failed to list rules: %v", err)
		}
		return
	}

	if (*hocrPath == "") == !*useDocAI {
		usage("Either -hocr or -docai must be provided (but not both)")
	}
	if *useDocAI && *pdfPath == "" {
		usage("-docai requires -pdf")
	}
	if *debugAPIPath != "" && !*useDocAI {
		usage("-debug-api requires -docai")
	}

	hasError := false
	validateFlag := func(name string, value string) {
		if providedFlags[name] && value == "" {
			fmt.Fprintf(os.Stderr, "Error: -%s flag requires a value\n", name)
			hasError = true
		}
	}
	validateFlag("images", *imagesDir)
	validateFlag("pdf", *pdfPath)
	validateFlag("config", *configPath)
	validateFlag("session", *sessionPath)
	validateFlag("suggestions", *suggestionsPath)
	validateFlag("output", *outputPath)
	validateFlag("hocr-out", *hocrOutPath)
	validateFlag("debug-api", *debugAPIPath)
	validateFlag("jurisdiction", *jurisdiction)
	validateFlag("rule", *ruleKey)
	if hasError {
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	setString(&cfg.Jurisdiction, *jurisdiction)
	if *ruleKey != "" && cfg.Jurisdiction == "" {
		usage("-rule requires a jurisdiction (-jurisdiction or config)")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Source PDF
	var pdfBytes []byte
	if *pdfPath != "" {
		if pdfBytes, err = os.ReadFile(*pdfPath); err != nil {
			log.Fatalf("Failed to read PDF file: %v", err)
		}
		warnPreviewLayers(pdfBytes)
	}

	// Page model and images
	var doc *hocr.HOCR
	var images [][]byte
	if *useDocAI {
		fmt.Println("Processing PDF with Document AI:", *pdfPath)
		res, err := gdocai.Process(ctx, pdfBytes, &cfg.DocAI)
		if err != nil {
			log.Fatalf("Error processing document: %v", err)
		}
		doc, images = res.HOCR, res.Images
		if *debugAPIPath != "" {
			apiJSON, err := gdocai.ToJSON(res.Raw)
			if err != nil {
				log.Fatalf("Failed to convert API response to JSON: %v", err)
			}
			if err := os.WriteFile(*debugAPIPath, []byte(apiJSON), 0644); err != nil {
				log.Fatalf("Failed to write API response JSON: %v", err)
			}
			fmt.Println("API response JSON saved to:", *debugAPIPath)
		}
	} else {
		data, err := os.ReadFile(*hocrPath)
		if err != nil {
			log.Fatalf("Failed to read hOCR file: %v", err)
		}
		parsed, err := hocr.ParseHOCR(data)
		if err != nil {
			log.Fatalf("Failed to parse hOCR: %v", err)
		}
		doc = &parsed
		if *imagesDir != "" {
			if images, err = loadImages(*imagesDir, doc); err != nil {
				log.Fatalf("Failed to load page images: %v", err)
			}
		}
	}
	fmt.Printf("Document has %d pages\n", len(doc.Pages))

	engCfg := pdfengine.DefaultConfig()
	engCfg.Compress = cfg.Compress
	engCfg.Logger = logger
	pdfEng, err := pdfengine.New(doc, images, pdfBytes, engCfg)
	if err != nil {
		log.Fatalf("Failed to open document: %v", err)
	}
	worker := engine.NewWorker(pdfEng)
	defer worker.Close()

	sessCfg := session.DefaultConfig()
	sessCfg.Logger = logger
	sess := session.New(worker, documentKey(*pdfPath, *hocrPath), sessCfg)
	defer sess.Close()

	restored := false
	if *sessionPath != "" {
		coll, err := readSession(*sessionPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			log.Fatalf("Failed to read session: %v", err)
		default:
			if err := sess.Restore(coll); err != nil {
				log.Fatalf("Failed to restore session: %v", err)
			}
			restored = true
			fmt.Printf("Restored %d redactions from %s\n", coll.Len(), *sessionPath)
		}
	}
	if !restored && pdfBytes != nil {
		n, err := sess.Load(ctx, pdfBytes)
		if err != nil {
			log.Fatalf("Failed to load existing annotations: %v", err)
		}
		fmt.Printf("Loaded %d existing redaction annotations\n", n)
	}

	// Suggestions
	if *suggestionsPath != "" {
		data, err := os.ReadFile(*suggestionsPath)
		if err != nil {
			log.Fatalf("Failed to read suggestions: %v", err)
		}
		batch, problems := suggest.DecodeBatch(data)
		for _, p := range problems {
			log.Printf("Skipping suggestion: %v", p)
		}
		applyBatch(ctx, sess, "suggestion batch", batch)
	}
	if *useRegex || *useNER {
		pages, err := entities.PagesFromEngine(ctx, worker)
		if err != nil {
			log.Fatalf("Failed to collect page text: %v", err)
		}
		if *useRegex {
			cats, err := entities.ParseCategories(cfg.RegexCategories)
			if err != nil {
				log.Fatalf("Invalid regex categories: %v", err)
			}
			ex, err := entities.NewExtractor(cats...)
			if err != nil {
				log.Fatalf("Failed to compile patterns: %v", err)
			}
			points, err := ex.Extract(pages)
			if err != nil {
				log.Fatalf("Pattern extraction failed: %v", err)
			}
			applyBatch(ctx, sess, "patterns", entities.PointBatch(points))
		}
		if *useNER {
			points, err := entities.NewNERClient(cfg.NERURL, logger).Suggest(ctx, pages)
			if err != nil {
				log.Fatalf("NER failed: %v", err)
			}
			applyBatch(ctx, sess, "NER", entities.PointBatch(points))
		}
	}

	if *acceptAll {
		n, err := sess.AcceptAll()
		if err != nil {
			log.Fatalf("Failed to accept suggestions: %v", err)
		}
		fmt.Printf("Accepted %d suggestions\n", n)
	}

	if *ruleKey != "" {
		client, err := rules.NewClient(cfg.RulesURL, logger)
		if err != nil {
			log.Fatalf("Invalid rule catalog: %v", err)
		}
		rule, err := client.Find(ctx, cfg.Jurisdiction, *ruleKey)
		if err != nil {
			log.Fatalf("Failed to find rule: %v", err)
		}
		n, err := sess.JustifyAll(*rule.Redaction())
		if err != nil {
			log.Fatalf("Failed to assign rule: %v", err)
		}
		fmt.Printf("Justified %d redactions with %q\n", n, rule.Title)
	}

	printSummary(sess.Collection().Summary(sess.DocumentKey()))

	if *sessionPath != "" {
		data, err := json.MarshalIndent(sess.Collection(), "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode session: %v", err)
		}
		if err := os.WriteFile(*sessionPath, data, 0644); err != nil {
			log.Fatalf("Failed to write session: %v", err)
		}
		fmt.Println("Session saved to:", *sessionPath)
	}

	if *outputPath != "" {
		strip := cfg.Strip
		if providedFlags["strip"] {
			strip = splitList(*stripFields)
		}
		if strip == nil {
			meta, err := worker.Metadata(ctx)
			if err != nil {
				log.Fatalf("Failed to read metadata: %v", err)
			}
			strip = exporter.DefaultStrip(meta)
		}

		if *permanent {
			fmt.Println("Creating permanently redacted PDF...")
		} else {
			fmt.Println("Creating redaction preview PDF...")
		}
		out, err := sess.Export(ctx, exporter.Options{Permanent: *permanent, Strip: strip})
		if err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		if err := os.WriteFile(*outputPath, out, 0644); err != nil {
			log.Fatalf("Failed to write PDF: %v", err)
		}
		fmt.Println("PDF saved to:", *outputPath)
	}

	if *hocrOutPath != "" {
		redacted := pdfEng.Redacted(exporter.Annotations(sess.Collection(), sess.DocumentKey()))
		out, err := hocr.GenerateHOCRDocument(&redacted)
		if err != nil {
			log.Fatalf("Failed to render hOCR: %v", err)
		}
		if err := os.WriteFile(*hocrOutPath, []byte(out), 0644); err != nil {
			log.Fatalf("Failed to write hOCR: %v", err)
		}
		fmt.Println("Redacted hOCR saved to:", *hocrOutPath)
	}
}

// documentKey names the document by its source file.
func documentKey(pdfPath, hocrPath string) string {
	if pdfPath != "" {
		return filepath.Base(pdfPath)
	}
	return filepath.Base(hocrPath)
}

func applyBatch(ctx context.Context, sess *session.Session, source string, batch suggest.Batch) {
	report, err := sess.ApplySuggestions(ctx, batch)
	if err != nil {
		log.Fatalf("Failed to apply %s: %v", source, err)
	}
	fmt.Printf("Applied %s: %d created, %d subsumed, %d not found, %d removed, %d skipped\n",
		source, report.Created, report.Subsumed, report.NotFound, report.Removed, report.Skipped)
}

func readSession(path string) (redaction.Collection, error) {
	var coll redaction.Collection
	data, err := os.ReadFile(path)
	if err != nil {
		return coll, err
	}
	if err := json.Unmarshal(data, &coll); err != nil {
		return coll, fmt.Errorf("decode %s: %w", path, err)
	}
	return coll, nil
}

// warnPreviewLayers reports inputs that are themselves preview exports; their marks are
// overlays and hide nothing.
func warnPreviewLayers(pdf []byte) {
	layers, err := pdfengine.DetectLayers(pdf)
	if err != nil {
		return
	}
	preview := pdfengine.DefaultConfig().PreviewLayer
	for _, l := range layers {
		if strings.HasPrefix(l, preview) {
			fmt.Println("Warning: input PDF is a redaction preview; its marks do not remove content")
			return
		}
	}
}

// loadImages reads one image per page. Pages naming an image in the hOCR use that file
// from dir; the rest take the remaining image files of dir in name order.
func loadImages(dir string, doc *hocr.HOCR) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var pool []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			if !e.IsDir() {
				pool = append(pool, e.Name())
			}
		}
	}
	sort.Strings(pool)

	used := make(map[string]bool)
	names := make([]string, len(doc.Pages))
	for i, p := range doc.Pages {
		if p.ImageName == "" {
			continue
		}
		name := filepath.Base(p.ImageName)
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			names[i] = name
			used[name] = true
		}
	}
	next := 0
	for i := range names {
		for names[i] == "" && next < len(pool) {
			if !used[pool[next]] {
				names[i] = pool[next]
				used[pool[next]] = true
			}
			next++
		}
		if names[i] == "" {
			return nil, fmt.Errorf("no image for page %d in %s", i+1, dir)
		}
	}

	images := make([][]byte, len(names))
	for i, name := range names {
		if images[i], err = os.ReadFile(filepath.Join(dir, name)); err != nil {
			return nil, err
		}
		fmt.Printf("Using image %s for page %d\n", name, i+1)
	}
	return images, nil
}

func printSummary(s redaction.Summary) {
	fmt.Printf("Redactions: %d manual, %d suggested, %d accepted, %d ignored\n",
		s.ByStatus[redaction.StatusManual], s.ByStatus[redaction.StatusSuggested],
		s.ByStatus[redaction.StatusAccepted], s.ByStatus[redaction.StatusIgnored])
	for _, p := range s.Pages() {
		fmt.Printf("  page %d: %d\n", p+1, s.ByPage[p])
	}
	for _, pc := range s.ByPerson {
		fmt.Printf("  %s: %d\n", pc.Person, pc.Count)
	}
}

// printRules lists the catalog's jurisdictions, or the grouped rules of the configured one.
func printRules(ctx context.Context, cfg *config) error {
	client, err := rules.NewClient(cfg.RulesURL, nil)
	if err != nil {
		return err
	}
	if cfg.Jurisdiction == "" {
		js, err := client.Jurisdictions(ctx)
		if err != nil {
			return err
		}
		for _, j := range js {
			fmt.Printf("%-12s %s (%s)\n", j.ID, j.Name, j.Abbreviation)
		}
		return nil
	}
	list, err := client.Rules(ctx, cfg.Jurisdiction)
	if err != nil {
		return err
	}
	for _, g := range rules.Grouped(list) {
		fmt.Println(g.Name)
		for _, r := range g.Rules {
			fmt.Printf("  %-40s %s\n", r.Title, r.Reference)
		}
	}
	return nil
}
