// Package captionserver exposes the caption pipeline over MCP tools and a
// small REST API.
package captionserver

import (
	"context"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_caption/internal/engine"
	"github.com/anatolykoptev/go_caption/internal/engine/sources"
	"github.com/anatolykoptev/go_caption/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterTools registers the caption tools on the given MCP server:
// caption_tracks, caption_fetch, caption_translate.
func RegisterTools(server *mcp.Server, svc *sources.Service) {
	registerCaptionTracks(server, svc)
	registerCaptionFetch(server, svc)
	registerCaptionTranslate(server, svc)
}

func registerCaptionTracks(server *mcp.Server, svc *sources.Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "caption_tracks",
		Description: "List the caption tracks (language code, display name, auto-generated flag) of a YouTube video. Accepts watch, short, embed and shorts URLs or a bare video id. authoritative=false means the video page had no readable track list and a static list of common languages was returned instead.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.CaptionTracksInput) (*mcp.CallToolResult, engine.CaptionTracksOutput, error) {
		out, err := svc.Tracks(ctx, input.URL)
		if err != nil {
			return nil, engine.CaptionTracksOutput{}, err
		}
		return nil, out, nil
	})
}

func registerCaptionFetch(server *mcp.Server, svc *sources.Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "caption_fetch",
		Description: "Fetch one caption track of a YouTube video and return it as SubRip (SRT) text. Pass url or video_id and an optional lang (default en). proxy_used and attempts report how the upstream was reached; cached=true means no upstream call was made.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.CaptionFetchInput) (*mcp.CallToolResult, engine.SubtitlesOutput, error) {
		out, err := fetchSubtitles(ctx, svc, input)
		if err != nil {
			return nil, engine.SubtitlesOutput{}, err
		}
		return nil, out, nil
	})
}

func registerCaptionTranslate(server *mcp.Server, svc *sources.Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "caption_translate",
		Description: "Fetch one caption track of a YouTube video, translate every cue into the target language with the LLM, and return SRT with the original timing.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input engine.CaptionTranslateInput) (*mcp.CallToolResult, engine.SubtitlesOutput, error) {
		out, err := translateSubtitles(ctx, svc, input)
		if err != nil {
			return nil, engine.SubtitlesOutput{}, err
		}
		return nil, out, nil
	})
}

// fetchSubtitles serves rendered subtitles from the result cache when possible.
// Track listings are never cached; only the rendered document is.
func fetchSubtitles(ctx context.Context, svc *sources.Service, input engine.CaptionFetchInput) (engine.SubtitlesOutput, error) {
	id, err := sources.ResolveInput(input)
	if err != nil {
		return engine.SubtitlesOutput{}, err
	}
	input.VideoID = id
	input.Language = engine.NormLang(input.Language)
	key := engine.CacheKey("caption_fetch", id, input.Language, strconv.FormatBool(input.Direct))
	return cachedSubtitles(ctx, key, func(ctx context.Context) (engine.SubtitlesOutput, error) {
		return svc.Subtitles(ctx, input)
	})
}

func translateSubtitles(ctx context.Context, svc *sources.Service, input engine.CaptionTranslateInput) (engine.SubtitlesOutput, error) {
	id, err := sources.ResolveInput(input.CaptionFetchInput)
	if err != nil {
		return engine.SubtitlesOutput{}, err
	}
	input.VideoID = id
	input.Language = engine.NormLang(input.Language)
	input.Target = strings.TrimSpace(input.Target)
	key := engine.CacheKey("caption_translate", id, input.Language, input.Target, strconv.FormatBool(input.Direct))
	return cachedSubtitles(ctx, key, func(ctx context.Context) (engine.SubtitlesOutput, error) {
		return svc.Translate(ctx, input)
	})
}

// cachedSubtitles marks cache hits and clears the transport provenance of the
// run that produced them; a hit touches no upstream.
func cachedSubtitles(ctx context.Context, key string, load func(context.Context) (engine.SubtitlesOutput, error)) (engine.SubtitlesOutput, error) {
	out, hit, err := toolutil.Cached(ctx, key, load)
	if err != nil {
		return engine.SubtitlesOutput{}, err
	}
	if hit {
		out.Cached = true
		out.ProxyUsed = false
		out.Attempts = 0
	}
	return out, nil
}
