package extract

// workLogSchema describes the structured record the model must return for
// each work log entry pulled out of free-form text.
var workLogSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"entries": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"client":      map[string]interface{}{"type": "string"},
					"project":     map[string]interface{}{"type": "string"},
					"work_date":   map[string]interface{}{"type": "string", "format": "date"},
					"hours":       map[string]interface{}{"type": "number"},
					"description": map[string]interface{}{"type": "string"},
					"category":    map[string]interface{}{"type": "string"},
					"billable":    map[string]interface{}{"type": "boolean"},
					"tags": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
				},
				"required": []string{"client", "project", "work_date", "hours", "description"},
			},
		},
	},
	"required": []string{"entries"},
}

// invoiceItemSchema describes the line-item array returned when the model
// rewrites work logs into invoice items.
var invoiceItemSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"items": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"description": map[string]interface{}{"type": "string"},
					"quantity":    map[string]interface{}{"type": "number"},
					"unit":        map[string]interface{}{"type": "string"},
					"rate":        map[string]interface{}{"type": "number"},
					"amount":      map[string]interface{}{"type": "number"},
					"category":    map[string]interface{}{"type": "string"},
				},
				"required": []string{"description", "quantity"},
			},
		},
	},
	"required": []string{"items"},
}
