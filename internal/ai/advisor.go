package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/iliyamo/civic-budget/internal/model"
)

const cityName = "Petropavlovsk"

// Analyze asks for a structured assessment of a project.
func (c *Client) Analyze(ctx context.Context, p model.Project) (*model.Analysis, error) {
	text, err := c.generate(ctx, []content{userTurn(analysisPrompt(p))}, true)
	if err != nil {
		return nil, err
	}
	var a model.Analysis
	if err := decodeInto(text, c.schemas.analysis, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ModerateComment screens a comment for abuse and spam.
func (c *Client) ModerateComment(ctx context.Context, text string) (model.CommentVerdict, error) {
	prompt := fmt.Sprintf(`Check the following comment against the community rules. A comment must be constructive and free of insults and spam.

Comment: %q

Reply with JSON only:
{"isAppropriate": true or false, "reason": "why, if inappropriate", "toxicityScore": number from 0 to 10}`, text)
	out, err := c.generate(ctx, []content{userTurn(prompt)}, true)
	if err != nil {
		return model.CommentVerdict{}, err
	}
	var v model.CommentVerdict
	if err := decodeInto(out, c.schemas.moderation, &v); err != nil {
		return model.CommentVerdict{}, err
	}
	return v, nil
}

// ProjectChat answers a free-form question about a project.
func (c *Client) ProjectChat(ctx context.Context, p model.Project, question string, history []model.ChatTurn) (string, error) {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are an assistant for the %s participatory budget. Answer questions about this project briefly and factually.\n\n", cityName)
	writeProject(&sys, p)
	turns := []content{userTurn(sys.String())}
	turns = append(turns, historyTurns(history)...)
	turns = append(turns, userTurn(question))
	return c.generate(ctx, turns, false)
}

// SupportChat answers a support-desk message and decides whether a human
// needs to follow up.
func (c *Client) SupportChat(ctx context.Context, message string, history []model.ChatTurn, userName string) (model.SupportReply, error) {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are the support assistant of the %s participatory budget platform. ", cityName)
	sys.WriteString("Citizens submit city projects, moderators review them and residents vote with tokens. ")
	sys.WriteString("If you cannot resolve the request, or it concerns payments, account access or a complaint, set needsAdmin to true.\n")
	if userName != "" {
		fmt.Fprintf(&sys, "The user's name is %s.\n", userName)
	}
	sys.WriteString(`Reply with JSON only: {"answer": "...", "needsAdmin": true or false, "category": one of GENERAL, TECHNICAL, ACCOUNT, PROJECTS, VOTING, PAYMENTS, OTHER}`)

	turns := []content{userTurn(sys.String())}
	turns = append(turns, historyTurns(history)...)
	turns = append(turns, userTurn(message))
	out, err := c.generate(ctx, turns, true)
	if err != nil {
		return model.SupportReply{}, err
	}
	var r model.SupportReply
	if err := decodeInto(out, c.schemas.support, &r); err != nil {
		return model.SupportReply{}, err
	}
	return r, nil
}

func analysisPrompt(p model.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyse the following city project for %s and give a structured assessment.\n\n", cityName)
	writeProject(&b, p)
	b.WriteString(`
Reply with JSON only, in this shape:
{"summary": "2-3 sentences", "pros": ["..."], "cons": ["..."], "risks": ["..."], "investmentAdvantages": ["..."], "estimatedBudget": number or null}`)
	return b.String()
}

func writeProject(b *strings.Builder, p model.Project) {
	fmt.Fprintf(b, "Title: %s\nDescription: %s\nCategory: %s\n", p.Title, p.Description, p.Category)
	if p.EstimatedBudget != nil {
		fmt.Fprintf(b, "Estimated budget: %.0f KZT\n", *p.EstimatedBudget)
	}
	if p.Location != nil {
		fmt.Fprintf(b, "Location: %s\n", *p.Location)
	}
	if p.Benefits != nil {
		fmt.Fprintf(b, "Benefits according to the author: %s\n", *p.Benefits)
	}
	kind := "citizen initiative"
	if p.IsCompanyProject {
		kind = "commercial (company) project"
	}
	fmt.Fprintf(b, "Project type: %s\n", kind)
	if p.VotesFor+p.VotesAgainst > 0 {
		fmt.Fprintf(b, "Votes: %d for, %d against\n", p.VotesFor, p.VotesAgainst)
	}
}

func historyTurns(history []model.ChatTurn) []content {
	out := make([]content, 0, len(history))
	for _, h := range history {
		role := "user"
		if h.Role == "assistant" || h.Role == "ai" || h.Role == "model" {
			role = "model"
		}
		if strings.TrimSpace(h.Content) == "" {
			continue
		}
		out = append(out, content{Role: role, Parts: []part{{Text: h.Content}}})
	}
	return out
}
