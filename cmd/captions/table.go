package main

import (
	"strconv"

	"github.com/anatolykoptev/go_caption/internal/engine"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const fallbackNote = "track list unavailable upstream; showing common languages"

// renderTracks draws the track listing of one video. A fallback catalog is
// flagged in the table caption.
func renderTracks(out engine.CaptionTracksOutput) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(out.VideoID)
	tw.AppendHeader(table.Row{"#", "Code", "Name", "Auto"})
	for i, t := range out.Tracks {
		auto := ""
		if t.Auto {
			auto = "yes"
		}
		tw.AppendRow(table.Row{strconv.Itoa(i + 1), t.Code, t.Name, auto})
	}
	tw.AppendFooter(table.Row{"", "", "tracks", strconv.Itoa(len(out.Tracks))})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignCenter, AlignFooter: text.AlignCenter},
	})
	if !out.Authoritative {
		tw.SetCaption("note: " + fallbackNote)
	}
	return tw.Render()
}
