package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/solemnwarning/chmweb/internal/aklink"
	"github.com/solemnwarning/chmweb/internal/config"
	"github.com/solemnwarning/chmweb/internal/contents"
	"github.com/solemnwarning/chmweb/internal/extract"
	"github.com/solemnwarning/chmweb/internal/fscache"
	"github.com/solemnwarning/chmweb/internal/output"
	"github.com/solemnwarning/chmweb/internal/registry"
	"github.com/solemnwarning/chmweb/internal/rewrite"
	"github.com/solemnwarning/chmweb/internal/scan"
	"github.com/solemnwarning/chmweb/internal/workerpool"
)

// workerFlag is the hidden argument that routes a re-executed copy of the
// binary into the worker loop.
const workerFlag = "__chmweb-worker"

// chwExtractDir is where a collection's own tables are unpacked. The
// member archives get their own subdirectories next to it.
const chwExtractDir = "_chw"

func main() {
	if len(os.Args) > 1 && os.Args[1] == workerFlag {
		scan.ServeWorker()
		return
	}

	gzipPages := flag.Bool("gzip-pages", false, "Compress every emitted output file with gzip")
	tocJSON := flag.String("write-toc-json", "", "Export the contents tree as JSON to the given path")
	workers := flag.Int("workers", 0, "Number of scan workers (defaults to CPU count)")
	frontPage := flag.String("front-page", "", "Markdown file rendered as the site front page")
	verbose := flag.Bool("verbose", false, "Enable verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file.chm>... <outdir>\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "       %s [flags] <file.chw> <outdir>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadFromFile("chmweb.toml")
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Warning: could not load config file: %v. Using defaults.", err)
		}
		cfg = config.NewDefaultConfig()
	}

	if *gzipPages {
		cfg.GzipPages = true
	}
	if *tocJSON != "" {
		cfg.TocJSON = *tocJSON
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *frontPage != "" {
		cfg.FrontPage = *frontPage
	}
	if *verbose {
		cfg.Verbose = true
	}
	// CHMWEB_* environment variables take precedence over flags and file.
	cfg.UpdateFromEnv()

	archives := args[:len(args)-1]
	outDir := args[len(args)-1]

	if err := run(cfg, archives, outDir); err != nil {
		log.Fatalf("Failed: %v", err)
	}
}

func run(cfg *config.Config, archives []string, outDir string) error {
	warn := func(format string, args ...interface{}) {
		log.Printf("Warning: "+format, args...)
	}
	progress := func(format string, args ...interface{}) {
		if cfg.Verbose {
			fmt.Printf(format+"\n", args...)
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	reg := registry.New()
	tree := contents.New()
	var ak *aklink.Table
	var err error

	collection := len(archives) == 1 && strings.EqualFold(filepath.Ext(archives[0]), ".chw")
	if collection {
		ak, err = setupCollection(cfg, archives[0], outDir, reg, tree, warn, progress)
	} else {
		ak, err = setupArchives(cfg, archives, outDir, reg, tree, progress)
	}
	if err != nil {
		return err
	}

	fc := fscache.New(outDir, fscache.WarnFunc(warn))

	pool, err := workerpool.New(cfg.Workers, workerpool.WarnFunc(warn), os.Args[0], workerFlag)
	if err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	defer pool.Close()

	ts := &scan.TreeScanner{
		OutDir: outDir,
		Tree:   tree,
		Reg:    reg,
		FC:     fc,
		Pool:   pool,
		Warn:   scan.WarnFunc(warn),
	}
	data, err := ts.Run(ak.LocalSeeds())
	if err != nil {
		return err
	}
	progress("Discovered %d pages, %d assets", len(data.Pages), len(data.Assets))

	writer := &output.Writer{Root: outDir, Gzip: cfg.GzipPages}
	resPages := rewrite.NewResolutionPages(writer.WriteFile)
	resolver := rewrite.NewResolver(data, ak, rewrite.WarnFunc(warn), resPages)
	rewriter := rewrite.NewRewriter(resolver)

	keys := make([]string, 0, len(data.Pages))
	for k := range data.Pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rec := data.Pages[k]
		src := filepath.Join(outDir, filepath.FromSlash(rec.FSPath))
		pageData, err := os.ReadFile(src)
		if err != nil {
			warn("failed to read %s: %v", src, err)
			continue
		}
		rewritten, err := rewriter.RewritePage(pageData, rec)
		if err != nil {
			return fmt.Errorf("failed to rewrite %s: %w", rec.FSPath, err)
		}
		if err := writer.WriteFile(rewrite.ContentName(rec.FSPath), rewritten); err != nil {
			return err
		}
	}
	progress("Rewrote %d pages", len(keys))

	siteTitle := siteTitleFrom(archives)
	if err := rewrite.EmitContentsPages(data, siteTitle, writer.WriteFile); err != nil {
		return err
	}
	if err := rewrite.EmitWrappers(data, writer.WriteFile); err != nil {
		return err
	}

	haveFront := false
	if cfg.FrontPage != "" {
		md, err := os.ReadFile(cfg.FrontPage)
		if err != nil {
			return fmt.Errorf("failed to read front page: %w", err)
		}
		front, err := rewrite.RenderFrontPage(md, siteTitle)
		if err != nil {
			return err
		}
		if err := writer.WriteFile(rewrite.FrontPagePath, front); err != nil {
			return err
		}
		haveFront = true
	}
	if err := rewrite.EmitIndex(data, siteTitle, haveFront, writer.WriteFile); err != nil {
		return err
	}

	if cfg.TocJSON != "" {
		if err := output.WriteTocJSON(cfg.TocJSON, tree); err != nil {
			return err
		}
		progress("Exported contents tree to %s", cfg.TocJSON)
	}

	return pool.Drain()
}

// setupArchives registers and extracts plain chm archives: one at the
// output root, or several in per-stem subdirectories.
func setupArchives(cfg *config.Config, archives []string, outDir string, reg *registry.Registry, tree *contents.Tree, progress func(string, ...interface{})) (*aklink.Table, error) {
	single := len(archives) == 1

	for _, archive := range archives {
		stem := archiveStem(archive)
		subdir := ""
		if !single {
			subdir = stem
		}
		if err := reg.Add(stem, subdir); err != nil {
			return nil, err
		}

		dest := outDir
		if subdir != "" {
			dest = filepath.Join(outDir, subdir)
		}
		progress("Extracting %s", archive)
		if err := extract.Run(cfg.Extractor, archive, dest); err != nil {
			return nil, err
		}

		tree.AddChild(tree.RootIndex(), contents.Node{Kind: contents.Placeholder, Stem: stem, Title: stem})
	}

	warn := aklink.WarnFunc(func(format string, args ...interface{}) {
		log.Printf("Warning: "+format, args...)
	})
	if single {
		return aklink.LoadSingle(outDir, "", warn)
	}
	return aklink.LoadMulti(outDir, reg, warn)
}

// setupCollection extracts a chw collection: the collection's own tables,
// the COL-driven contents skeleton, and every member archive found next to
// the chw file.
func setupCollection(cfg *config.Config, chwPath, outDir string, reg *registry.Registry, tree *contents.Tree, warn func(string, ...interface{}), progress func(string, ...interface{})) (*aklink.Table, error) {
	chwDir := filepath.Join(outDir, chwExtractDir)
	progress("Extracting %s", chwPath)
	if err := extract.Run(cfg.Extractor, chwPath, chwDir); err != nil {
		return nil, err
	}

	srcDir := filepath.Dir(chwPath)
	stem := archiveStem(chwPath)
	colPath := filepath.Join(srcDir, stem+".col")
	colData, err := os.ReadFile(colPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection contents: %w", err)
	}
	folders, err := contents.ParseCOL(colData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", colPath, err)
	}
	contents.BuildFromCol(tree, folders)

	for _, memberStem := range contents.CollectStems(folders) {
		if err := reg.Add(memberStem, memberStem); err != nil {
			return nil, err
		}
		memberPath := filepath.Join(srcDir, memberStem+".chm")
		if _, err := os.Stat(memberPath); err != nil {
			warn("collection names %s but %s is missing", memberStem, memberPath)
			continue
		}
		progress("Extracting %s", memberPath)
		if err := extract.Run(cfg.Extractor, memberPath, filepath.Join(outDir, memberStem)); err != nil {
			return nil, err
		}
	}

	return aklink.LoadCollection(chwDir, outDir, reg, aklink.WarnFunc(warn))
}

// archiveStem strips the directory and the archive extension from a path.
func archiveStem(p string) string {
	base := filepath.Base(p)
	ext := filepath.Ext(base)
	switch strings.ToLower(ext) {
	case ".chm", ".chi", ".chw":
		return base[:len(base)-len(ext)]
	}
	return base
}

// siteTitleFrom derives a display title for emitted navigation pages.
func siteTitleFrom(archives []string) string {
	if len(archives) == 0 {
		return "Help"
	}
	return archiveStem(archives[0])
}
