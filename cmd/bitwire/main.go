// bitwire decodes binary data with a schema and encodes value trees back.
//
// Schemas come from the built-in formats (--format) or from YAML/JSONC
// schema files (--schema). Schema files named without a directory are
// searched for in the colon separated BITWIRE_SCHEMA_PATH.
package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/mkch/bitwire"
	"github.com/mkch/bitwire/compress"
	"github.com/mkch/bitwire/formats"
	"github.com/mkch/bitwire/internal/treecodec"
	"github.com/mkch/bitwire/schemafile"
)

const schemaPathEnv = "BITWIRE_SCHEMA_PATH"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// usageError is reported with exit status 2.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, a ...any) error {
	return &usageError{fmt.Sprintf(format, a...)}
}

type command struct {
	name    string
	summary string
	run     func(*env, []string) error
}

var commands = []command{
	{"decode", "decode binary input into a value tree", runDecode},
	{"encode", "encode a value tree into binary output", runEncode},
	{"layout", "list the position of every decoded value", runLayout},
	{"describe", "print a schema and its fingerprint", runDescribe},
	{"formats", "list the built-in formats", runFormats},
}

// env is the process environment of one invocation.
type env struct {
	stdin          io.Reader
	stdout, stderr io.Writer
	logger         *slog.Logger
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage(stdout)
		return 0
	}
	for _, c := range commands {
		if c.name != name {
			continue
		}
		e := &env{stdin: stdin, stdout: stdout, stderr: stderr}
		err := c.run(e, args[1:])
		if err == nil || errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "bitwire %s: %v\n", name, err)
		var ue *usageError
		if errors.As(err, &ue) {
			return 2
		}
		return 1
	}
	fmt.Fprintf(stderr, "bitwire: unknown command %q\n", name)
	printUsage(stderr)
	return 2
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: bitwire <command> [flags] [FILE]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "\nRun 'bitwire <command> --help' for the flags of a command.\n")
}

// schemaFlags select the schema of a command.
type schemaFlags struct {
	format  string
	schema  string
	strct   string
	verbose bool
}

func (f *schemaFlags) add(fs *pflag.FlagSet) {
	fs.StringVarP(&f.format, "format", "f", "", "built-in format name (see 'bitwire formats')")
	fs.StringVarP(&f.schema, "schema", "s", "", "schema file, searched for in $"+schemaPathEnv)
	fs.StringVar(&f.strct, "struct", "", "use the named struct of the schema file instead of its fields")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log every field at debug level")
}

func (f *schemaFlags) load(e *env) (*bitwire.Schema, error) {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	e.logger = slog.New(slog.NewTextHandler(e.stderr, &slog.HandlerOptions{Level: level}))

	switch {
	case f.format != "" && f.schema != "":
		return nil, usagef("--format and --schema are mutually exclusive")
	case f.format != "":
		if f.strct != "" {
			return nil, usagef("--struct needs --schema")
		}
		format, ok := formats.Lookup(f.format)
		if !ok {
			return nil, usagef("unknown format %q", f.format)
		}
		return format.Schema(e.logger)
	case f.schema != "":
		path, err := schemafile.Find(f.schema, os.Getenv(schemaPathEnv))
		if err != nil {
			return nil, err
		}
		doc, err := schemafile.ReadFile(path)
		if err != nil {
			return nil, err
		}
		e.logger.Debug("schema loaded", "path", path, "name", doc.Name)
		if f.strct != "" {
			return doc.CompileStruct(f.strct, e.logger)
		}
		return doc.Compile(e.logger)
	}
	return nil, usagef("one of --format and --schema is required")
}

// inputFlags control how binary input is read.
type inputFlags struct {
	hex        bool
	decompress string
}

func (f *inputFlags) add(fs *pflag.FlagSet) {
	fs.BoolVar(&f.hex, "hex", false, "input is hex text; whitespace is ignored")
	fs.StringVar(&f.decompress, "decompress", "none",
		"input compression: none, auto or "+strings.Join(compress.Names(), ", "))
}

func (f *inputFlags) read(e *env, args []string) ([]byte, error) {
	data, err := readInput(e, args)
	if err != nil {
		return nil, err
	}
	if f.hex {
		data, err = hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
		if err != nil {
			return nil, fmt.Errorf("reading hex input: %w", err)
		}
	}
	if _, ok := compress.Lookup(f.decompress); !ok && f.decompress != "none" && f.decompress != "auto" {
		return nil, usagef("unknown compression %q", f.decompress)
	}
	return compress.Decompress(f.decompress, data)
}

// readInput reads the file named by the only argument, or stdin when there
// is none or it is "-".
func readInput(e *env, args []string) ([]byte, error) {
	switch {
	case len(args) > 1:
		return nil, usagef("unexpected argument %q", args[1])
	case len(args) == 0 || args[0] == "-":
		return io.ReadAll(e.stdin)
	}
	return os.ReadFile(args[0])
}

func newFlagSet(e *env, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("bitwire "+name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return usagef("%v", err)
	}
	return nil
}

func treeCodec(name string) (treecodec.Codec, error) {
	c, err := treecodec.Lookup(name)
	if err != nil {
		return nil, usagef("%v", err)
	}
	return c, nil
}

func runDecode(e *env, args []string) error {
	var sf schemaFlags
	var in inputFlags
	fs := newFlagSet(e, "decode")
	sf.add(fs)
	in.add(fs)
	output := fs.StringP("output", "o", "json", "output syntax: "+strings.Join(treecodec.Names(), ", "))
	strict := fs.Bool("strict", false, "fail when input remains after the last field")
	if err := parse(fs, args); err != nil {
		return err
	}
	codec, err := treeCodec(*output)
	if err != nil {
		return err
	}
	s, err := sf.load(e)
	if err != nil {
		return err
	}
	data, err := in.read(e, fs.Args())
	if err != nil {
		return err
	}
	tree, n, err := s.DecodePrefix(data)
	if err != nil {
		return err
	}
	if n < len(data) {
		if *strict {
			return fmt.Errorf("%d trailing bytes after offset %d", len(data)-n, n)
		}
		e.logger.Warn("trailing input ignored", "offset", n, "bytes", len(data)-n)
	}
	out, err := codec.Marshal(tree)
	if err != nil {
		return err
	}
	_, err = e.stdout.Write(out)
	return err
}

func runEncode(e *env, args []string) error {
	var sf schemaFlags
	fs := newFlagSet(e, "encode")
	sf.add(fs)
	input := fs.StringP("input", "i", "json", "input syntax: "+strings.Join(treecodec.Names(), ", "))
	hexOut := fs.Bool("hex-output", false, "write hex text instead of binary")
	comp := fs.String("compress", "none", "output compression: none or "+strings.Join(compress.Names(), ", "))
	if err := parse(fs, args); err != nil {
		return err
	}
	codec, err := treeCodec(*input)
	if err != nil {
		return err
	}
	if _, ok := compress.Lookup(*comp); !ok && *comp != "none" {
		return usagef("unknown compression %q", *comp)
	}
	s, err := sf.load(e)
	if err != nil {
		return err
	}
	data, err := readInput(e, fs.Args())
	if err != nil {
		return err
	}
	tree, err := codec.Unmarshal(data)
	if err != nil {
		return err
	}
	out, err := s.Encode(tree)
	if err != nil {
		return err
	}
	if out, err = compress.Compress(*comp, out); err != nil {
		return err
	}
	if *hexOut {
		_, err = fmt.Fprintf(e.stdout, "%x\n", out)
		return err
	}
	_, err = e.stdout.Write(out)
	return err
}

func runLayout(e *env, args []string) error {
	var sf schemaFlags
	var in inputFlags
	fs := newFlagSet(e, "layout")
	sf.add(fs)
	in.add(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	s, err := sf.load(e)
	if err != nil {
		return err
	}
	data, err := in.read(e, fs.Args())
	if err != nil {
		return err
	}
	layout, err := s.DecodeLayout(data)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tBIT\tBITS\tKIND\tPATH\tVALUE")
	for _, sp := range layout.Spans {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\n",
			sp.ByteOffset, sp.BitOffset, sp.BitLength, sp.Kind, sp.Path, valueAt(layout.Tree, sp.Path))
	}
	fmt.Fprintf(tw, "%d\t\t\t\t(end)\t\n", layout.Length)
	return tw.Flush()
}

// valueAt renders the value at a dotted path such as "files[1].name".
func valueAt(t bitwire.Tree, path string) string {
	var v any = t
	for part := range strings.SplitSeq(path, ".") {
		name, idx, _ := strings.Cut(part, "[")
		if name != "" {
			m, ok := v.(bitwire.Tree)
			if !ok {
				return ""
			}
			v = m[name]
		}
		for idx != "" {
			var i int
			if _, err := fmt.Sscanf(idx, "%d]", &i); err != nil {
				return ""
			}
			a, ok := v.([]any)
			if !ok || i < 0 || i >= len(a) {
				return ""
			}
			v = a[i]
			_, idx, _ = strings.Cut(idx, "[")
		}
	}
	switch v.(type) {
	case bitwire.Tree, []any, nil:
		return ""
	case string:
		return fmt.Sprintf("%q", v)
	}
	return fmt.Sprint(v)
}

func runDescribe(e *env, args []string) error {
	var sf schemaFlags
	fs := newFlagSet(e, "describe")
	sf.add(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usagef("unexpected argument %q", fs.Arg(0))
	}
	s, err := sf.load(e)
	if err != nil {
		return err
	}
	fp := s.Fingerprint()
	_, err = fmt.Fprintf(e.stdout, "%sfingerprint %x\n", s, fp[:])
	return err
}

func runFormats(e *env, args []string) error {
	fs := newFlagSet(e, "formats")
	if err := parse(fs, args); err != nil {
		return err
	}
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	for _, name := range formats.Names() {
		f, _ := formats.Lookup(name)
		fmt.Fprintf(tw, "%s\t%s\n", f.Name, f.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := e.stdout.Write(buf.Bytes())
	return err
}
