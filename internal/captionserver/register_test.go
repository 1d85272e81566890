package captionserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/anatolykoptev/go_caption/internal/engine"
	"github.com/anatolykoptev/go_caption/internal/engine/sources"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectTools(t *testing.T, svc *sources.Service) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := mcp.NewServer(&mcp.Implementation{Name: "go_caption", Version: "test"}, nil)
	RegisterTools(server, svc)

	clientT, serverT := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callTool[T any](t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (T, *mcp.CallToolResult) {
	t.Helper()
	var out T
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if res.IsError {
		return out, res
	}
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))
	return out, res
}

func TestToolsListed(t *testing.T) {
	noCache(t)
	cs := connectTools(t, newUpstream(t).service())
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"caption_tracks", "caption_fetch", "caption_translate"}, names)
}

func TestCaptionTracksTool(t *testing.T) {
	noCache(t)
	cs := connectTools(t, newUpstream(t).service())
	out, res := callTool[engine.CaptionTracksOutput](t, cs, "caption_tracks",
		map[string]any{"url": "https://www.youtube.com/watch?v=" + testVideoID})
	require.False(t, res.IsError)
	assert.Equal(t, testVideoID, out.VideoID)
	assert.Len(t, out.Tracks, 2)
}

func TestCaptionFetchTool(t *testing.T) {
	noCache(t)
	cs := connectTools(t, newUpstream(t).service())
	out, res := callTool[engine.SubtitlesOutput](t, cs, "caption_fetch",
		map[string]any{"video_id": testVideoID, "lang": "de"})
	require.False(t, res.IsError)
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nHallo\n\n", out.Content)
	assert.Equal(t, sources.SourceTimedText, out.Source)

	_, res = callTool[engine.SubtitlesOutput](t, cs, "caption_fetch",
		map[string]any{"video_id": testVideoID, "lang": "fr"})
	assert.True(t, res.IsError)
}

func TestCaptionTranslateTool(t *testing.T) {
	noCache(t)
	complete := func(_ context.Context, prompt string) (string, error) {
		// echo every numbered line back upper-cased
		var sb strings.Builder
		for _, line := range strings.Split(prompt, "\n") {
			if strings.HasPrefix(line, "1: ") {
				sb.WriteString(strings.ToUpper(line) + "\n")
			}
		}
		return sb.String(), nil
	}
	cs := connectTools(t, newUpstream(t).service(sources.WithCompleter(complete)))
	out, res := callTool[engine.SubtitlesOutput](t, cs, "caption_translate",
		map[string]any{"video_id": testVideoID, "lang": "de", "target": "en"})
	require.False(t, res.IsError)
	assert.Equal(t, "en", out.Target)
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nHALLO\n\n", out.Content)
}
