// Package mcp exposes retrieval and question answering as MCP tools so
// assistant clients can consult the tax reference corpus directly.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/core/ports"
)

const (
	SearchToolName = "search_tax_documents"
	AskToolName    = "ask_tax_question"

	maxTopK = 20
)

type Server struct {
	advisor  ports.Advisor
	searcher ports.Searcher
	profiles ports.ProfileStore
	topK     int
}

// NewServer builds the tool handlers. profiles may be nil.
func NewServer(advisor ports.Advisor, searcher ports.Searcher, profiles ports.ProfileStore, topK int) *Server {
	if topK <= 0 {
		topK = 5
	}
	return &Server{advisor: advisor, searcher: searcher, profiles: profiles, topK: topK}
}

func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer("student-tax-advisor", version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool(SearchToolName,
		mcp.WithDescription("Search IRS publications, tax treaties and visa guidance for passages relevant to an international student's tax question."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Tax question or keywords, e.g. 'Form 8843 deadline'.")),
		mcp.WithNumber("top_k", mcp.Description("Number of passages to return (1-20).")),
	), s.handleSearch)

	srv.AddTool(mcp.NewTool(AskToolName,
		mcp.WithDescription("Answer a U.S. tax question for an international student with citations to the reference documents."),
		mcp.WithString("question", mcp.Required(), mcp.Description("The student's question.")),
		mcp.WithString("profile_id", mcp.Description("Stored profile to personalize the answer.")),
		mcp.WithString("visa_type", mcp.Description("Visa type, e.g. F-1 or J-1.")),
		mcp.WithString("home_country", mcp.Description("Country of citizenship, used for treaty lookups.")),
		mcp.WithString("tax_year", mcp.Description("Tax year the question is about.")),
	), s.handleAsk)

	return srv
}

func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK := req.GetInt("top_k", s.topK)
	if topK < 1 {
		topK = 1
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	result, err := s.searcher.Search(ctx, domain.StudentProfile{}, query, topK)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(FormatResults(result)), nil
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	profile := domain.StudentProfile{}
	if id := req.GetString("profile_id", ""); id != "" && s.profiles != nil {
		stored, err := s.profiles.GetProfile(ctx, id)
		if err != nil {
			return toolError(err), nil
		}
		profile = *stored
	}
	if v := req.GetString("visa_type", ""); v != "" {
		profile.VisaType = v
	}
	if v := req.GetString("home_country", ""); v != "" {
		profile.HomeCountry = v
	}
	if v := req.GetString("tax_year", ""); v != "" {
		profile.TaxYear = v
	}

	answer, err := s.advisor.Ask(ctx, profile, question)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(FormatAnswer(answer)), nil
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrOffTopic):
		return mcp.NewToolResultError("question is outside U.S. tax topics for international students")
	case domain.IsRetryable(err):
		return mcp.NewToolResultError("retrieval is temporarily unavailable, try again shortly")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

// FormatResults renders passages with their citation labels.
func FormatResults(result *domain.RetrievalResult) string {
	if result == nil || len(result.Chunks) == 0 {
		return "No matching passages found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Confidence: %.2f\n", result.Confidence)
	for i, c := range result.Chunks {
		fmt.Fprintf(&b, "\n%d. %s [%s, %d]\n%s\n", i+1, c.Citation(), c.Metadata.DocID, c.Metadata.PageNumber, c.Text)
	}
	return b.String()
}

func FormatAnswer(answer *domain.Answer) string {
	var b strings.Builder
	b.WriteString(answer.Text)
	if answer.Outcome != domain.OutcomeAnswered {
		return b.String()
	}
	if len(answer.Sources) > 0 {
		b.WriteString("\n\nSources:")
		for _, c := range answer.Sources {
			fmt.Fprintf(&b, "\n- %s [%s, %d]", c.Citation(), c.Metadata.DocID, c.Metadata.PageNumber)
		}
	}
	fmt.Fprintf(&b, "\n\nConfidence: %.2f", answer.Confidence)
	return b.String()
}
