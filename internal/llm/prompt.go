package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/ashutoshrp06/parcel-agent/internal/tools"
)

// toolsPlaceholder is replaced by the tool catalogue in prompt templates.
const toolsPlaceholder = "{{TOOLS}}"

const orderProcessingPrompt = `You are an order processing agent for an e-commerce company.

Your job is to read customer order emails and extract the relevant information to create orders in the system.

When given an email, you must:

1. Extract customer details:
   - Full name
   - Email address
   - Phone number (if provided)
   - Shipping address

2. Extract order details:
   - Product ID (look for "productId" in the email)
   - Product name(s)
   - Quantity for each product

3. Process the order step by step (follow this exact order):
   - Step 1: Use find_customer_by_email to find the customer using the email from the email header (From field). Get the customer ID from the result. If the customer does not exist, create them with create_customer.
   - Step 2: Use get_product_by_id to verify the product exists using the product ID extracted from the email. If no product ID is found in the email, use find_product to search by name.
   - Step 3: Only after both customer and product are verified, use create_order with the customer ID and product ID to place the order.
   - Step 4: Send the customer a confirmation email with send_gmail, or an email explaining what went wrong.

4. Available tools:
{{TOOLS}}
Rules:
- Always use tools to perform actions. Never make up IDs or data.
- If a product is not found, inform the user instead of guessing.
- If the email contains multiple products, process each one.
- Extract information exactly as written in the email. Do not invent details.
- If required information is missing from the email, note what is missing.
- If a tool returns an error, decide whether to retry with corrected arguments or report the problem.
- For product management, use the appropriate CRUD tool (create, read, update, delete).
`

// BuildSystemPrompt returns the built-in order-processing prompt with the
// tool catalogue filled in.
func BuildSystemPrompt(specs []tools.Spec) string {
	return renderPrompt(orderProcessingPrompt, specs)
}

// LoadSystemPrompt reads a prompt template from path, substituting
// {{TOOLS}}. Falls back to the built-in prompt if the file cannot be read.
func LoadSystemPrompt(path string, specs []tools.Spec) (string, error) {
	if path == "" {
		return BuildSystemPrompt(specs), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return BuildSystemPrompt(specs), fmt.Errorf("read prompt template: %w", err)
	}
	return renderPrompt(string(raw), specs), nil
}

func renderPrompt(template string, specs []tools.Spec) string {
	return strings.ReplaceAll(template, toolsPlaceholder, buildToolList(specs))
}

// buildToolList formats one line per tool with its first description line.
func buildToolList(specs []tools.Spec) string {
	if len(specs) == 0 {
		return "   - (no tools available)\n"
	}

	var sb strings.Builder
	for _, s := range specs {
		desc := s.Description
		if i := strings.IndexByte(desc, '\n'); i >= 0 {
			desc = desc[:i]
		}
		sb.WriteString(fmt.Sprintf("   - %s: %s\n", s.Name, desc))
	}
	return sb.String()
}
