package extract

// BuildInvoiceJSONSchema returns the parameter schema of the
// extract_invoice_data function as a generic map. We pass this to the
// provider as the tool definition and also use it locally to validate the
// returned arguments before trusting them.
func BuildInvoiceJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"company_name": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Name of the company issuing the invoice",
			},
			"invoice_reference": map[string]any{
				"type":        "object",
				"description": "Invoice reference as written on the document",
				"properties": map[string]any{
					"invoice_number": map[string]any{
						"type":        "string",
						"description": "Invoice identifier extracted from the invoice header",
					},
					"invoice_date_raw": map[string]any{
						"type":        "string",
						"description": "Invoice date exactly as written on the invoice (any format)",
					},
				},
				"required": []string{"invoice_number", "invoice_date_raw"},
			},
			"articles": map[string]any{
				"type":        "array",
				"description": "List of items listed on the invoice",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"reference": map[string]any{
							"type":        []string{"string", "null"},
							"description": "Item reference or SKU, null when the invoice shows none",
						},
						"designation": map[string]any{
							"type":        "string",
							"description": "Item name or description",
						},
						"quantity": map[string]any{
							"type":        "number",
							"description": "Quantity of the item",
						},
						"unit_price": map[string]any{
							"type":        "number",
							"description": "Unit price before tax",
						},
						"total_price": map[string]any{
							"type":        "number",
							"description": "Total price for this item",
						},
					},
					"required": []string{"reference", "designation", "quantity", "unit_price", "total_price"},
				},
			},
		},
		"required": []string{"company_name", "invoice_reference", "articles"},
	}
}
