// Command pdf-edit merges, splits and edits PDF files from the command line.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/a3tai/mcp-pdf-editor/internal/config"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/custom"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/export"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/merge"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/pagerange"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/session"
	"github.com/a3tai/mcp-pdf-editor/internal/pdf/split"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

type cli struct {
	stdout      io.Writer
	stderr      io.Writer
	isTerminal  func(io.Writer) bool
	maxFileSize int64
}

func main() {
	c := &cli{
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		isTerminal:  isTerminal,
		maxFileSize: config.DefaultMaxFileSize,
	}
	os.Exit(c.run(os.Args[1:]))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *cli) run(args []string) int {
	if len(args) == 0 {
		c.usage()
		return exitUsage
	}

	commands := map[string]func([]string) error{
		"merge":  c.merge,
		"split":  c.split,
		"pages":  c.pages,
		"apply":  c.apply,
		"verify": c.verify,
	}
	name := args[0]
	if name == "-h" || name == "--help" || name == "help" {
		c.usage()
		return exitOK
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(c.stderr, "pdf-edit: unknown command %q\n\n", name)
		c.usage()
		return exitUsage
	}

	err := cmd(args[1:])
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, pflag.ErrHelp):
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintf(c.stderr, "pdf-edit %s: %v\n", name, err)
		return exitUsage
	default:
		fmt.Fprintf(c.stderr, "pdf-edit %s: %v\n", name, err)
		return exitError
	}
}

func (c *cli) usage() {
	fmt.Fprintf(c.stderr, `Usage: pdf-edit <command> [options]

Commands:
  merge -o out.pdf a.pdf b.pdf...     Concatenate documents [--dedup]
  split -o out.pdf -p 1-3,7 in.pdf    Extract, reorder or repeat pages [--share]
  pages in.pdf...                     Print page counts
  apply script.yaml                   Run an edit script [-o out.pdf]
  verify in.pdf                       Validate with independent readers [--text s]

An output of "-" writes to stdout, which must not be a terminal.
`)
}

func (c *cli) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func (c *cli) merge(args []string) error {
	fs := c.flagSet("merge")
	output := fs.StringP("output", "o", "", "output file, or - for stdout")
	dedup := fs.Bool("dedup", false, "store identical standard font dictionaries once")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *output == "" || fs.NArg() == 0 {
		return usageError("merge -o out.pdf a.pdf [b.pdf...]")
	}

	docs := make([]*custom.Graph, fs.NArg())
	for i, path := range fs.Args() {
		g, err := pdf.ParseFile(path, c.maxFileSize)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		docs[i] = g
	}

	out, err := merge.Merge(docs, merge.Options{DedupFonts: *dedup})
	if err != nil {
		return err
	}
	return c.writeGraph(*output, out)
}

func (c *cli) split(args []string) error {
	fs := c.flagSet("split")
	output := fs.StringP("output", "o", "", "output file, or - for stdout")
	selection := fs.StringP("pages", "p", "", "1-based page selection, e.g. 1-3,7")
	share := fs.Bool("share", false, "pages selected more than once share their content")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *output == "" || *selection == "" || fs.NArg() != 1 {
		return usageError("split -o out.pdf -p 1-3 in.pdf")
	}

	g, err := pdf.ParseFile(fs.Arg(0), c.maxFileSize)
	if err != nil {
		return err
	}
	count, err := g.PageCount()
	if err != nil {
		return err
	}
	pages, err := pagerange.ParseRange(*selection, count)
	if err != nil {
		return err
	}

	opts := split.Options{}
	if *share {
		opts.Duplicates = split.DuplicateShare
	}
	out, err := split.Split(g, pages, opts)
	if err != nil {
		return err
	}
	return c.writeGraph(*output, out)
}

func (c *cli) pages(args []string) error {
	fs := c.flagSet("pages")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usageError("pages in.pdf [more.pdf...]")
	}

	for _, path := range fs.Args() {
		g, err := pdf.ParseFile(path, c.maxFileSize)
		if err != nil {
			return err
		}
		count, err := g.PageCount()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%s: %d\n", path, count)
	}
	return nil
}

func (c *cli) apply(args []string) error {
	fs := c.flagSet("apply")
	output := fs.StringP("output", "o", "", "override the script's output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("apply script.yaml")
	}

	script, err := config.LoadScript(fs.Arg(0))
	if err != nil {
		return err
	}
	if *output != "" {
		script.Output = *output
	}

	g, err := pdf.ParseFile(script.Input, c.maxFileSize)
	if err != nil {
		return err
	}
	var opts []session.Option
	if script.Scale > 0 {
		opts = append(opts, session.WithUnits(script.Scale))
	}
	if script.Font != "" {
		opts = append(opts, session.WithFont(script.Font))
	}
	sess, err := session.New(g, opts...)
	if err != nil {
		return err
	}

	for i, action := range script.Actions {
		switch {
		case action.IsUndo():
			_, err = sess.Undo()
		case action.IsRedo():
			_, err = sess.Redo()
		default:
			_, err = sess.Apply(action.Edit)
		}
		if err != nil {
			return fmt.Errorf("action %d (%s): %w", i, action.Kind, err)
		}
	}

	mode, err := export.ParseMode(script.Mode)
	if err != nil {
		return err
	}
	data, err := sess.Export(mode)
	if err != nil {
		return err
	}
	return c.write(script.Output, data)
}

func (c *cli) verify(args []string) error {
	fs := c.flagSet("verify")
	text := fs.String("text", "", "text that must appear on some page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("verify in.pdf [--text s]")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	result, err := pdf.NewValidator(c.maxFileSize).Verify(data)
	if err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("%s is invalid: %s", fs.Arg(0), result.Message)
	}
	fmt.Fprintf(c.stdout, "%s: valid, %d pages\n", fs.Arg(0), result.Pages)

	if *text != "" {
		for _, page := range result.Texts {
			if strings.Contains(page, *text) {
				fmt.Fprintf(c.stdout, "%s: contains %q\n", fs.Arg(0), *text)
				return nil
			}
		}
		return fmt.Errorf("%s does not contain %q", fs.Arg(0), *text)
	}
	return nil
}

func (c *cli) writeGraph(path string, g *custom.Graph) error {
	data, err := custom.Serialize(g)
	if err != nil {
		return err
	}
	return c.write(path, data)
}

// write validates data and writes it to path, or to stdout for "-"
func (c *cli) write(path string, data []byte) error {
	if path == "-" && c.isTerminal(c.stdout) {
		return errors.New("refusing to write PDF data to a terminal; redirect stdout or use -o file.pdf")
	}

	result, err := pdf.NewValidator(int64(len(data)) + 1).Verify(data)
	if err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("output failed independent validation: %s", result.Message)
	}

	if path == "-" {
		_, err := c.stdout.Write(data)
		return err
	}
	if err := pdf.WriteFileAtomic(path, data); err != nil {
		return err
	}
	fmt.Fprintf(c.stderr, "wrote %s (%d pages, %d bytes)\n", path, result.Pages, len(data))
	return nil
}
