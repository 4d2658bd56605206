package mcp

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func object(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

// ToolDefinitions contains all available MCP tools
var ToolDefinitions = []Tool{
	{
		Name:        "detect_duplicates",
		Description: "Find offers that are re-posts of one another and record duplicate links. Re-running never creates the same link twice.",
		InputSchema: object(map[string]interface{}{
			"threshold": prop("number", "Minimum similarity (0-1) for a pair to be linked (default: dedupe.threshold)"),
			"by_url":    prop("boolean", "Also link offers that share the same URL"),
		}),
	},
	{
		Name:        "list_duplicates",
		Description: "List recorded duplicate links, most similar first.",
		InputSchema: object(map[string]interface{}{
			"offer_id": prop("integer", "Only links involving this offer"),
		}),
	},
	{
		Name:        "merge_offers",
		Description: "Merge a duplicate offer into the original in one transaction. The duplicate is deleted and its applications, transport info and board cards move to the original.",
		InputSchema: object(map[string]interface{}{
			"original_id":  prop("integer", "Offer that is kept"),
			"duplicate_id": prop("integer", "Offer that is merged and deleted"),
		}, "original_id", "duplicate_id"),
	},
	{
		Name:        "ignore_duplicate",
		Description: "Dismiss a duplicate link without merging the offers.",
		InputSchema: object(map[string]interface{}{
			"link_id": prop("integer", "Duplicate link ID"),
		}, "link_id"),
	},
	{
		Name:        "analyze_feedback",
		Description: "Mine keywords from the offers sorted into weighted board columns.",
		InputSchema: object(map[string]interface{}{}),
	},
	{
		Name:        "feedback_keywords",
		Description: "List mined feedback keywords, strongest first.",
		InputSchema: object(map[string]interface{}{
			"type": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"positive", "negative", "all"},
				"description": "Only keywords of this polarity. Use 'all' or omit for no filter.",
			},
			"limit": prop("integer", "Maximum number of keywords (default: 30)"),
		}),
	},
	{
		Name:        "suggest_keywords",
		Description: "Suggest search keywords to use and to avoid, based on board feedback.",
		InputSchema: object(map[string]interface{}{
			"apply": prop("boolean", "Store the suggestions as search keywords for the scraper"),
		}),
	},
	{
		Name:        "score_offer",
		Description: "Score one offer against the user profile and board feedback and store the final score.",
		InputSchema: object(map[string]interface{}{
			"offer_id":  prop("integer", "Offer to score"),
			"recompute": prop("boolean", "Recompute the profile match even when a score is stored"),
		}, "offer_id"),
	},
	{
		Name:        "run_pipeline",
		Description: "Run duplicate detection, optional auto-merge, feedback analysis and scoring as one recorded run.",
		InputSchema: object(map[string]interface{}{
			"auto_merge": prop("boolean", "Merge duplicates above dedupe.auto_merge_threshold"),
			"recompute":  prop("boolean", "Recompute profile matches even when scores are stored"),
			"limit":      prop("integer", "Maximum offers to score (default: pipeline.batch_limit)"),
		}),
	},
	{
		Name:        "list_runs",
		Description: "List recent pipeline runs with their outcome.",
		InputSchema: object(map[string]interface{}{
			"limit": prop("integer", "Maximum number of runs (default: 10)"),
		}),
	},
}
