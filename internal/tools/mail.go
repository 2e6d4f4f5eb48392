package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashutoshrp06/parcel-agent/internal/catalog"
	"github.com/ashutoshrp06/parcel-agent/internal/gmail"
	"github.com/ashutoshrp06/parcel-agent/internal/types"
)

// Sender sends outbound mail. *gmail.Service implements it.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) (types.SendResult, error)
}

// Searcher finds products by meaning. *catalog.Index implements it.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, minScore float32) ([]catalog.Match, error)
}

// RegisterMailTools registers send_gmail.
func RegisterMailTools(r *Registry, sender Sender) error {
	return r.Register(Spec{
		Name: "send_gmail",
		Description: "Send an email via Gmail API to a customer.\n" +
			"Use this tool to send order confirmation emails or any communication to customers.",
		Parameters: []Parameter{
			{Name: "to", Type: TypeString, Description: "Recipient email address", Required: true},
			{Name: "subject", Type: TypeString, Description: "Email subject line (e.g. 'Order Confirmation - Order #123')", Required: true},
			{Name: "body", Type: TypeString, Description: "Plain text email body with order details and confirmation message", Required: true},
		},
	}, HandlerFunc(func(ctx context.Context, args Args) (any, error) {
		to := args.String("to")
		res, err := sender.Send(ctx, to, args.String("subject"), args.String("body"))
		if errors.Is(err, gmail.ErrNotAuthenticated) {
			return map[string]any{
				"success": false,
				"error":   "Gmail not authenticated. Please visit /auth/google to authenticate first.",
			}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to send email: %w", err)
		}
		return map[string]any{
			"success":    true,
			"message":    fmt.Sprintf("Email sent successfully to %s", to),
			"message_id": res.MessageID,
		}, nil
	}))
}

// RegisterCatalogTools registers search_products. topK is the default limit.
func RegisterCatalogTools(r *Registry, searcher Searcher, topK int, minScore float32) error {
	if topK <= 0 {
		topK = 3
	}
	return r.Register(Spec{
		Name: "search_products",
		Description: "Search the product catalog by description when the exact product name is unknown.\n" +
			"Returns the closest matches with their product IDs and similarity scores.",
		Parameters: []Parameter{
			{Name: "query", Type: TypeString, Description: "What the customer asked for, in their words", Required: true},
			{Name: "limit", Type: TypeInteger, Description: "Maximum number of matches", Default: int64(topK)},
		},
	}, HandlerFunc(func(ctx context.Context, args Args) (any, error) {
		query := args.String("query")
		matches, err := searcher.Search(ctx, query, int(args.Int("limit")), minScore)
		if err != nil {
			return nil, fmt.Errorf("search catalog: %w", err)
		}
		if len(matches) == 0 {
			return map[string]any{"found": false, "error": fmt.Sprintf("No products matching '%s'", query)}, nil
		}
		return map[string]any{"found": true, "matches": matches}, nil
	}))
}
