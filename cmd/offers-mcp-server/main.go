package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"avt-guide/internal/app"
	"avt-guide/internal/chat"
	"avt-guide/internal/config"
	"avt-guide/internal/expander"
	"avt-guide/internal/logger"
)

type ExpandParams struct {
	Query    string   `json:"query" mcp:"free text or destination to expand"`
	Keywords []string `json:"keywords,omitempty" mcp:"keywords already proposed, used when at least 3 are valid"`
}

type SearchParams struct {
	Query      string   `json:"query" mcp:"what the traveller is looking for, e.g. 'beach Tunisia'"`
	Keywords   []string `json:"keywords,omitempty" mcp:"optional search keywords; expanded from query when fewer than 3"`
	PriceStart string   `json:"price_start,omitempty" mcp:"minimum price in DZD"`
	PriceEnd   string   `json:"price_end,omitempty" mcp:"maximum price in DZD"`
	DateStart  string   `json:"date_start,omitempty" mcp:"earliest departure, YYYY-MM-DD"`
	DateEnd    string   `json:"date_end,omitempty" mcp:"latest return, YYYY-MM-DD"`
}

type offersServer struct {
	search *app.Search
	log    logrus.FieldLogger
}

func (s *offersServer) ExpandKeywords(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ExpandParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	if strings.TrimSpace(args.Query) == "" && len(expander.CleanKeywords(args.Keywords)) == 0 {
		return errorResult("query is required"), nil
	}
	keywords := s.search.Expander.Expand(args.Query, args.Keywords)
	s.log.WithFields(logrus.Fields{"query": args.Query, "keywords": keywords}).Info("expand_keywords")
	return jsonResult(map[string]any{"keywords": keywords})
}

func (s *offersServer) SearchOffers(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[SearchParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	if strings.TrimSpace(args.Query) == "" && len(args.Keywords) == 0 {
		return errorResult("query or keywords are required"), nil
	}
	keywords := s.search.Expander.Expand(args.Query, args.Keywords)
	filter := chat.FilterParams{
		Query:      args.Query,
		PriceStart: args.PriceStart,
		PriceEnd:   args.PriceEnd,
		DateStart:  args.DateStart,
		DateEnd:    args.DateEnd,
	}
	posts := s.search.Fanout.Run(ctx, keywords, filter)
	s.log.WithFields(logrus.Fields{"keywords": keywords, "posts": len(posts)}).Info("search_offers")
	return jsonResult(map[string]any{"keywords": keywords, "posts": posts})
}

func jsonResult(v any) (*mcp.CallToolResultFor[any], error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}

func errorResult(msg string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}
	cfg := config.New()
	// stdout carries the protocol
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.CatalogBaseURL == "" {
		log.Fatal("CATALOG_BASE_URL is required")
	}

	srv := &offersServer{
		search: app.NewSearch(cfg, nil, log),
		log:    log.WithField("component", "mcp"),
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "avt-guide-offers",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "expand_keywords",
		Description: "Expands a travel query into up to 5 catalog search keywords in English, French and Arabic forms",
	}, srv.ExpandKeywords)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_offers",
		Description: "Searches the travel agency catalog for offers matching a query, budget and dates",
	}, srv.SearchOffers)

	log.Info("offers MCP server starting on stdio")
	if err := server.Run(context.Background(), mcp.NewStdioTransport()); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}
