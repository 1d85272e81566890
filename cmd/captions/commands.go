package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/anatolykoptev/go_caption/internal/engine"
	"github.com/anatolykoptev/go_caption/internal/engine/sources"
	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
)

func newResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <url>",
		Short: "Print the video id of a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := sources.ResolveVideoID(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newTracksCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tracks <url>",
		Short: "List the caption tracks of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := ctx.service().Tracks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Fprintln(w, renderTracks(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var (
		lang   string
		out    string
		direct bool
	)
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download one caption track as SRT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := ctx.service().Subtitles(cmd.Context(), engine.CaptionFetchInput{
				URL:      args[0],
				Language: lang,
				Direct:   direct,
			})
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), res.Content)
				return err
			}
			if err := writeFileAtomic(out, []byte(res.Content)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d cues (%s, %s) to %s; attempts=%d proxy_used=%t\n",
				res.Cues, res.Language, res.Source, out, res.Attempts, res.ProxyUsed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "en", "Caption language code")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&direct, "direct", false, "Skip the proxy for this download")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "captions", version)
		},
	}
}

// writeFileAtomic replaces path with data; readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
