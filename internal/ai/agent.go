// Package ai is a Gemini function-calling assistant over the ledger.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sales-ledger/internal/database"
	"sales-ledger/internal/ledger"
	"sales-ledger/internal/models"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// maxToolRounds bounds the call/response loop for one question.
const maxToolRounds = 5

type Agent struct {
	Ledger *ledger.Service
	APIKey string
	Model  string
	Log    *zap.Logger
	Now    func() time.Time
}

func NewAgent(l *ledger.Service, apiKey, model string, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{Ledger: l, APIKey: apiKey, Model: model, Log: log, Now: time.Now}
}

// --- DEFINE TOOLS ---
var tools = []*genai.Tool{{
	FunctionDeclarations: []*genai.FunctionDeclaration{
		{
			Name:        "check_inventory",
			Description: "Get the full product list. Use this to find ANY product details like ID, code, name, price or stock count.",
		},
		{
			Name:        "get_order_statistics",
			Description: "Count orders and sum their totals, broken down by status and city. Year and month are optional.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"year":   {Type: genai.TypeInteger, Description: "Calendar year, e.g. 2024"},
					"month":  {Type: genai.TypeInteger, Description: "Month 1-12, needs year"},
					"status": {Type: genai.TypeString, Description: "pending, accept, refuse or delay"},
				},
			},
		},
		{
			Name:        "get_supplier_statement",
			Description: "Supplier account statement: invoices, payments and running balance. Dates are optional.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"supplier_id": {Type: genai.TypeInteger, Description: "ID of the supplier"},
					"from":        {Type: genai.TypeString, Description: "Start date (YYYY-MM-DD)"},
					"to":          {Type: genai.TypeString, Description: "End date (YYYY-MM-DD), inclusive"},
				},
				Required: []string{"supplier_id"},
			},
		},
		{
			Name:        "adjust_stock",
			Description: "Add to (positive delta) or remove from (negative delta) a product's stock count.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"product_id": {Type: genai.TypeInteger, Description: "ID of the product"},
					"delta":      {Type: genai.TypeInteger, Description: "Signed change in units"},
					"note":       {Type: genai.TypeString, Description: "Reason for the correction"},
				},
				Required: []string{"product_id", "delta"},
			},
		},
	},
}}

func (a *Agent) systemPrompt() string {
	return fmt.Sprintf(`Today is %s. You are the assistant of a sales and inventory back office.

RULES:
1. If the user names a product instead of giving an ID, call 'check_inventory' first to find the ID. Never ask them for it.
2. For price, stock or product details, call 'check_inventory' and read the result.
3. For sales, order counts or revenue, use 'get_order_statistics'.
4. For what we owe a supplier, use 'get_supplier_statement'. A positive balance is owed to the supplier.
5. Only call 'adjust_stock' when the user clearly asks to change stock. Report the count before and after.`,
		a.Now().Format(time.DateOnly))
}

// Ask runs one question to completion. Stock changes are attributed to actor.
func (a *Agent) Ask(ctx context.Context, message string, actor ledger.Actor) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(a.APIKey))
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel(a.Model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(a.systemPrompt()))
	model.Tools = tools

	session := model.StartChat()
	resp, err := session.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", err
	}

	// --- HANDLE TOOL CALLS ---
	for round := 0; round < maxToolRounds; round++ {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			return replyText(resp), nil
		}
		parts := make([]genai.Part, 0, len(calls))
		for _, fc := range calls {
			a.Log.Info("assistant tool call", zap.String("tool", fc.Name), zap.String("actor", actor.Name))
			parts = append(parts, genai.FunctionResponse{Name: fc.Name, Response: a.call(ctx, fc, actor)})
		}
		if resp, err = session.SendMessage(ctx, parts...); err != nil {
			return "", err
		}
	}
	return "", errors.New("assistant exceeded the tool call limit")
}

// call executes one tool. Failures go back to the model as {"error": ...}
// so it can explain them.
func (a *Agent) call(ctx context.Context, fc genai.FunctionCall, actor ledger.Actor) map[string]any {
	out, err := a.dispatch(ctx, fc, actor)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}

func (a *Agent) dispatch(ctx context.Context, fc genai.FunctionCall, actor ledger.Actor) (map[string]any, error) {
	args := fc.Args
	switch fc.Name {
	case "check_inventory":
		products, err := a.Ledger.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		type simpleProduct struct {
			ID    uint   `json:"id"`
			Code  string `json:"code"`
			Name  string `json:"name"`
			Stock int    `json:"stock"`
			Price string `json:"price"`
		}
		list := make([]simpleProduct, 0, len(products))
		for _, p := range products {
			list = append(list, simpleProduct{ID: p.ID, Code: p.Code, Name: p.Name, Stock: p.Count, Price: p.Price.StringFixed(2)})
		}
		return map[string]any{"inventory": list}, nil

	case "get_order_statistics":
		f := database.OrderFilter{Year: intArg(args, "year"), Month: intArg(args, "month")}
		if s, _ := args["status"].(string); s != "" {
			f.Status = models.OrderStatus(s)
		}
		stats, err := a.Ledger.GetStatistics(ctx, f)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"orders":       stats.Total,
			"total_amount": stats.TotalAmount.StringFixed(2),
			"by_status":    stats.ByStatus,
			"by_city":      stats.ByCity,
		}, nil

	case "get_supplier_statement":
		id := intArg(args, "supplier_id")
		if id <= 0 {
			return nil, errors.New("supplier_id is required")
		}
		from, err := dateArg(args, "from", false)
		if err != nil {
			return nil, err
		}
		to, err := dateArg(args, "to", true)
		if err != nil {
			return nil, err
		}
		st, err := a.Ledger.GetStatement(ctx, uint(id), from, to)
		if err != nil {
			return nil, err
		}
		entries := make([]map[string]any, 0, len(st.Entries))
		for _, e := range st.Entries {
			entries = append(entries, map[string]any{
				"date":        e.DateTime.Format(time.DateOnly),
				"description": e.Description,
				"debit":       e.Debit.StringFixed(2),
				"credit":      e.Credit.StringFixed(2),
				"balance":     e.Balance.StringFixed(2),
			})
		}
		return map[string]any{
			"supplier":        st.Supplier.Name,
			"opening_balance": st.OpeningBalance.StringFixed(2),
			"closing_balance": st.ClosingBalance.StringFixed(2),
			"entries":         entries,
		}, nil

	case "adjust_stock":
		id, delta := intArg(args, "product_id"), intArg(args, "delta")
		if id <= 0 {
			return nil, errors.New("product_id is required")
		}
		note, _ := args["note"].(string)
		if note == "" {
			note = "assistant"
		}
		mv, err := a.Ledger.SetStockDelta(ctx, uint(id), delta, note, actor)
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": "updated", "product": mv.Product.Name, "before": mv.Before, "after": mv.After}, nil
	}
	return nil, fmt.Errorf("unknown tool %q", fc.Name)
}

// intArg reads a JSON number; the model sends integers as float64.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func dateArg(args map[string]any, key string, endOfDay bool) (*time.Time, error) {
	raw, _ := args[key].(string)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD", key)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var calls []genai.FunctionCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if fc, ok := part.(genai.FunctionCall); ok {
			calls = append(calls, fc)
		}
	}
	return calls
}

func replyText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "I completed the action."
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "I completed the action."
	}
	return b.String()
}
