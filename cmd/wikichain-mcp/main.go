// Command wikichain-mcp is an MCP server that exposes chain finding,
// verification and title lookup on a MediaWiki site as tools for LLM agents.
// It speaks MCP over stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/latebit/wikichain/internal/config"
	"github.com/latebit/wikichain/internal/errors"
	"github.com/latebit/wikichain/internal/history"
	"github.com/latebit/wikichain/internal/logging"
	"github.com/latebit/wikichain/internal/mediawiki"
	"github.com/latebit/wikichain/internal/report"
	"github.com/latebit/wikichain/internal/session"
	"github.com/latebit/wikichain/internal/titles"
)

// Upper bounds on the budgets an agent may ask for.
const (
	maxDepthLimit = 10
	maxNodesLimit = 10000
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config file")
	endpoint := flag.String("endpoint", "", "MediaWiki action API endpoint")
	insecure := flag.Bool("insecure", false, "skip TLS certificate verification")
	noHistory := flag.Bool("no-history", false, "do not record searches in the history database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	cfg.Insecure = cfg.Insecure || *insecure

	// stdout carries the protocol; logs go to stderr.
	logger := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr)
	sess := session.Open(cfg, logger)
	defer sess.Close()

	h := &handler{sess: sess}
	if !*noHistory {
		if hist, err := history.Open(cfg.HistoryPath); err != nil {
			logger.Warn("history unavailable", "path", cfg.HistoryPath, "err", err)
		} else {
			defer hist.Close()
			h.history = hist
		}
	}

	s := server.NewMCPServer("wikichain-mcp", "0.1.0")
	s.AddTool(findChainTool(), h.findChain)
	s.AddTool(verifyChainTool(), h.verifyChain)
	s.AddTool(resolveTitleTool(), h.resolveTitle)
	s.AddTool(listLinksTool(), h.listLinks)
	s.AddTool(randomArticleTool(), h.randomArticle)

	if err := server.ServeStdio(s); err != nil {
		log.Fatal(err)
	}
}

type handler struct {
	sess    *session.Session
	history *history.Store
}

func findChainTool() mcp.Tool {
	return mcp.NewTool("find_chain",
		mcp.WithDescription(
			"Find a chain of hyperlinks from one Wikipedia article to another. "+
				"The search runs from both ends at once and every link of the returned chain "+
				"is verified against the live article. Articles may be given as titles or URLs.",
		),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("starting article title or URL"),
		),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("destination article title or URL"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description(fmt.Sprintf("maximum depth of each search frontier (default 6, max %d)", maxDepthLimit)),
		),
		mcp.WithNumber("max_nodes",
			mcp.Description(fmt.Sprintf("maximum pages expanded per search (default 2000, max %d)", maxNodesLimit)),
		),
		mcp.WithBoolean("include_infobox",
			mcp.Description("follow links inside infobox templates (default true)"),
		),
		mcp.WithBoolean("include_navbox",
			mcp.Description("follow links inside navbox templates (default true)"),
		),
	)
}

func verifyChainTool() mcp.Tool {
	return mcp.NewTool("verify_chain",
		mcp.WithDescription(
			"Check that each article of a chain links to the next one. "+
				"Redirects and disambiguation pages are tolerated.",
		),
		mcp.WithString("chain",
			mcp.Required(),
			mcp.Description(`article titles in order, separated by "|" (e.g. "Cat|Mammal|Dog")`),
		),
	)
}

func resolveTitleTool() mcp.Tool {
	return mcp.NewTool("resolve_title",
		mcp.WithDescription(
			"Resolve an article title or URL to its canonical title, following redirects, "+
				"and report whether the article exists.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("article title or URL"),
		),
	)
}

func listLinksTool() mcp.Tool {
	return mcp.NewTool("list_links",
		mcp.WithDescription("List the articles an article links to, or the articles linking to it."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("article title or URL"),
		),
		mcp.WithString("direction",
			mcp.Description(`"outgoing" (default) or "incoming"`),
			mcp.Enum("outgoing", "incoming"),
		),
	)
}

func randomArticleTool() mcp.Tool {
	return mcp.NewTool("random_article",
		mcp.WithDescription("Return the title of a random article."),
	)
}

func (h *handler) findChain(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source is required"), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError("target is required"), nil
	}

	cfg := h.sess.ChainConfig(h.sess.Observer())
	cfg.MaxDepth = max(0, min(req.GetInt("max_depth", cfg.MaxDepth), maxDepthLimit))
	cfg.MaxNodes = max(1, min(req.GetInt("max_nodes", cfg.MaxNodes), maxNodesLimit))
	cfg.Filter.IncludeInfobox = req.GetBool("include_infobox", cfg.Filter.IncludeInfobox)
	cfg.Filter.IncludeNavbox = req.GetBool("include_navbox", cfg.Filter.IncludeNavbox)

	out, err := h.sess.Finder.FindChain(ctx, source, target, cfg)
	if err != nil {
		return mcp.NewToolResultError(describeError(err)), nil
	}
	if h.history != nil {
		if _, err := h.history.Save(context.WithoutCancel(ctx), history.FromOutcome(out)); err != nil {
			h.sess.Logger.Warn("recording run failed", "err", err)
		}
	}
	return mcp.NewToolResultText(report.MarkdownOf(report.FromOutcome(out, h.sess.Endpoint()))), nil
}

func (h *handler) verifyChain(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	raw, err := req.RequireString("chain")
	if err != nil {
		return mcp.NewToolResultError("chain is required"), nil
	}
	chain := splitChain(raw)
	if len(chain) < 2 {
		return mcp.NewToolResultError("chain needs at least two titles separated by |"), nil
	}

	verdict := h.sess.Verifier(nil, h.sess.Observer()).VerifyAll(ctx, chain)
	if verdict.Valid {
		return mcp.NewToolResultText(fmt.Sprintf("valid: all %d links confirmed\n%s", len(chain)-1, strings.Join(chain, " → "))), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "invalid: %d of %d links could not be confirmed\n", len(verdict.Violations), len(chain)-1)
	for _, v := range verdict.Violations {
		fmt.Fprintf(&b, "  link %d: %s → %s: %s", v.Index+1, v.From, v.To, v.Reason)
		if v.Err != nil {
			fmt.Fprintf(&b, " (%v)", v.Err)
		}
		b.WriteByte('\n')
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (h *handler) resolveTitle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	raw, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("title is required"), nil
	}
	title := titles.Normalize(raw)
	if title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}

	canonical, exists, err := h.sess.Resolver.Resolve(ctx, title)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolve failed: %v", err)), nil
	}
	if !exists {
		return mcp.NewToolResultText(fmt.Sprintf("%s: does not exist", title)), nil
	}
	info, err := h.sess.Resolver.RedirectInfo(ctx, title)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolve failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "canonical: %s\n", canonical)
	if info.IsRedirect {
		fmt.Fprintf(&b, "redirect: %s → %s\n", title, info.Target)
	}
	fmt.Fprintf(&b, "url: %s\n", mediawiki.ArticleURL(h.sess.Endpoint(), canonical))
	return mcp.NewToolResultText(b.String()), nil
}

func (h *handler) listLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	raw, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("title is required"), nil
	}
	title := titles.Normalize(raw)

	var list []string
	switch dir := req.GetString("direction", "outgoing"); dir {
	case "outgoing":
		list, err = h.sess.Links.Outgoing(ctx, title, h.sess.Filter())
	case "incoming":
		list, err = h.sess.Links.Incoming(ctx, title)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown direction %q", dir)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list links failed: %v", err)), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("%s: no links", title)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d links\n%s", len(list), strings.Join(list, "\n"))), nil
}

func (h *handler) randomArticle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) { //nolint:gocritic // signature required by mcp-go
	title, err := h.sess.API.RandomTitle(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("random failed: %v", err)), nil
	}
	return mcp.NewToolResultText(title), nil
}

// splitChain splits a "|"-separated chain, dropping empty entries.
func splitChain(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, "|") {
		if t := titles.Normalize(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// describeError turns a coded error into a message an agent can act on.
func describeError(err error) string {
	switch errors.CodeOf(err) {
	case errors.CodeValidation:
		return "invalid input: " + err.Error()
	case errors.CodeNotFound:
		return "article not found: " + err.Error()
	case errors.CodeTransport:
		return "wiki unreachable: " + err.Error()
	case errors.CodeNoProgress:
		return "search gave up: " + err.Error()
	default:
		return "search failed: " + err.Error()
	}
}
