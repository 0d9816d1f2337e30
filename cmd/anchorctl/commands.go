package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/docanchor/internal/anchor"
	"github.com/dgallion1/docanchor/internal/doctree"
	"github.com/dgallion1/docanchor/internal/parser"
	"github.com/dgallion1/docanchor/internal/renumber"
	"github.com/dgallion1/docanchor/internal/session"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	idAttr       string
	foreignClass string
	quoteContext int
	verbose      bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "anchorctl",
		Short:        "Encode, decode and edit text anchors in local documents",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.idAttr, "id-attr", doctree.DefaultIDAttribute, "attribute holding element ids")
	root.PersistentFlags().StringVar(&g.foreignClass, "foreign-class", doctree.DefaultForeignClass, "class marking overlay elements")
	root.PersistentFlags().IntVar(&g.quoteContext, "quote-context", anchor.DefaultContextLength, "prefix/suffix length of quote selectors")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log decode fallbacks to stderr")

	root.AddCommand(
		newEncodeCmd(g),
		newDecodeCmd(g),
		newReplaceCmd(g),
		newRenumberCmd(g),
	)
	return root
}

func (g *globalFlags) logger(cmd *cobra.Command) *slog.Logger {
	if !g.verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// load parses a document into a single-use session.
func (g *globalFlags) load(cmd *cobra.Command, path string) (*session.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root, err := parseFile(path, data)
	if err != nil {
		return nil, err
	}
	opts := session.Options{
		IDAttribute:  g.idAttr,
		ForeignClass: g.foreignClass,
		QuoteContext: g.quoteContext,
	}
	return session.New("anchorctl", session.ContentHashHex(data)[:16], filepath.Base(path), root, opts, g.logger(cmd)), nil
}

func parseFile(path string, data []byte) (*doctree.Node, error) {
	p, err := parser.ForFile(path)
	if err != nil {
		return nil, err
	}
	root, err := p.Parse(bytes.NewReader(data), filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return root, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newEncodeCmd(g *globalFlags) *cobra.Command {
	var (
		nodeID     string
		start, end int
	)
	cmd := &cobra.Command{
		Use:   "encode FILE",
		Short: "Print the target for a range of a node's text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := g.load(cmd, args[0])
			if err != nil {
				return err
			}
			target, err := sess.Encode(nodeID, start, end)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), target)
		},
	}
	cmd.Flags().StringVar(&nodeID, "node", "", "id of the node whose text is selected")
	cmd.Flags().IntVar(&start, "start", 0, "start offset in characters")
	cmd.Flags().IntVar(&end, "end", 0, "end offset in characters")
	cmd.MarkFlagRequired("node")
	return cmd
}

func newDecodeCmd(g *globalFlags) *cobra.Command {
	var targetPath string
	cmd := &cobra.Command{
		Use:   "decode FILE",
		Short: "Locate a target (JSON, from --target or stdin) in a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := g.load(cmd, args[0])
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if targetPath != "" && targetPath != "-" {
				f, err := os.Open(targetPath)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var target anchor.Target
			if err := json.NewDecoder(r).Decode(&target); err != nil {
				return fmt.Errorf("read target: %w", err)
			}
			if err := target.Validate(); err != nil {
				return err
			}

			loc, ok := sess.Decode(target)
			if !ok {
				return fmt.Errorf("target %s cannot be located", target.AnchorID)
			}
			return printJSON(cmd.OutOrStdout(), loc)
		},
	}
	cmd.Flags().StringVar(&targetPath, "target", "", "target JSON file (default stdin)")
	return cmd
}

func newReplaceCmd(g *globalFlags) *cobra.Command {
	var (
		nodeID, format, rule string
		text, textPath       string
		output               string
	)
	cmd := &cobra.Command{
		Use:   "replace FILE",
		Short: "Replace a node with a parsed fragment and print the resulting XML",
		Long: `Replace the node given by --node with the fragment in --text or --text-file.
Without --node the whole document is replaced. An empty fragment deletes the node.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := g.load(cmd, args[0])
			if err != nil {
				return err
			}
			if textPath != "" {
				data, err := os.ReadFile(textPath)
				if err != nil {
					return err
				}
				text = string(data)
			}

			var res session.ReplaceResult
			if text == "" && nodeID != "" {
				res, err = sess.Delete(nodeID, "")
			} else {
				res, err = sess.Replace(session.ReplaceRequest{NodeID: nodeID, Format: format, Rule: rule, Text: text})
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", res.Op, res.NodeID)
			return writeXML(cmd, sess.XML(), output)
		},
	}
	cmd.Flags().StringVar(&nodeID, "node", "", "id of the node to replace (default whole document)")
	cmd.Flags().StringVar(&format, "format", "xml", "fragment format: xml, html, markdown or text")
	cmd.Flags().StringVar(&rule, "rule", "", "required element name of each top-level fragment node, or \"inline\"")
	cmd.Flags().StringVar(&text, "text", "", "fragment source")
	cmd.Flags().StringVar(&textPath, "text-file", "", "read the fragment from a file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write XML to a file instead of stdout")
	return cmd
}

func newRenumberCmd(g *globalFlags) *cobra.Command {
	var (
		full   bool
		scope  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "renumber FILE",
		Short: "Assign missing element ids and print the resulting XML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			root, err := parseFile(args[0], data)
			if err != nil {
				return err
			}
			tree := doctree.New(root, g.idAttr)
			r := renumber.New(nil, doctree.HasClass(g.foreignClass))
			r.Full = full
			r.Renumber(tree, scope)
			return writeXML(cmd, tree.XML(), output)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "rewrite every id by position instead of filling gaps")
	cmd.Flags().StringVar(&scope, "scope", "", "only renumber below the element with this id")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write XML to a file instead of stdout")
	return cmd
}

func writeXML(cmd *cobra.Command, xml, output string) error {
	if output == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), xml)
		return err
	}
	return os.WriteFile(output, []byte(xml+"\n"), 0o644)
}
