package semantic

import "github.com/skinclarityclub/insight-engine/pkg/models"

// categoryVocab maps business categories to their signal keywords.
// Matching is done on normalized (lowercased) query text.
var categoryVocab = map[models.BusinessCategory][]string{
	models.CategoryAnalytics: {
		"analytics", "dashboard", "trend", "trends", "metric", "metrics",
		"kpi", "report", "reports", "performance", "conversion", "funnel",
		"statistics", "data",
	},
	models.CategoryFinance: {
		"revenue", "profit", "margin", "cost", "costs", "budget", "cash",
		"invoice", "financial", "finance", "forecast", "mrr", "arr",
		"expenses", "pricing",
	},
	models.CategoryMarketing: {
		"campaign", "campaigns", "marketing", "audience", "engagement",
		"social", "email", "seo", "content", "brand", "reach", "impressions",
		"leads", "ctr",
	},
	models.CategoryOperations: {
		"inventory", "fulfillment", "shipping", "supply", "workflow",
		"process", "operations", "logistics", "capacity", "backlog",
	},
	models.CategoryCustomerService: {
		"customer", "customers", "support", "ticket", "tickets", "complaint",
		"complaints", "satisfaction", "churn", "retention", "nps", "feedback",
	},
	models.CategoryStrategic: {
		"strategy", "strategic", "roadmap", "goal", "goals", "growth",
		"expansion", "market", "competitor", "competitors", "positioning",
		"quarter", "annual",
	},
	models.CategoryTechnical: {
		"api", "integration", "export", "import", "sync", "configuration",
		"webhook", "database", "error", "bug", "latency",
	},
}

// categoryOrder fixes the tie-break order for category scoring.
var categoryOrder = []models.BusinessCategory{
	models.CategoryFinance,
	models.CategoryAnalytics,
	models.CategoryMarketing,
	models.CategoryCustomerService,
	models.CategoryOperations,
	models.CategoryStrategic,
	models.CategoryTechnical,
}

// coreTerms are unambiguous category signals and count double.
var coreTerms = map[string]bool{
	"revenue": true, "profit": true, "margin": true, "budget": true,
	"invoice": true, "kpi": true, "dashboard": true, "funnel": true,
	"campaign": true, "campaigns": true, "seo": true, "churn": true,
	"nps": true, "ticket": true, "tickets": true, "inventory": true,
	"fulfillment": true, "roadmap": true, "competitor": true,
	"competitors": true, "api": true, "webhook": true,
}

// entityVocab is the fixed business vocabulary for entity extraction.
// Each keyword carries a type and a base relevance before role rescaling.
var entityVocab = []struct {
	Keyword   string
	Type      models.EntityType
	Relevance float64
}{
	{"revenue", models.EntityMetric, 0.9},
	{"profit", models.EntityMetric, 0.85},
	{"margin", models.EntityMetric, 0.8},
	{"conversion", models.EntityMetric, 0.8},
	{"churn", models.EntityMetric, 0.8},
	{"engagement", models.EntityMetric, 0.75},
	{"traffic", models.EntityMetric, 0.7},
	{"kpi", models.EntityKPI, 0.85},
	{"nps", models.EntityKPI, 0.8},
	{"mrr", models.EntityKPI, 0.85},
	{"arr", models.EntityKPI, 0.85},
	{"ctr", models.EntityKPI, 0.75},
	{"product", models.EntityProduct, 0.8},
	{"products", models.EntityProduct, 0.8},
	{"sku", models.EntityProduct, 0.75},
	{"catalog", models.EntityProduct, 0.65},
	{"campaign", models.EntityCampaign, 0.85},
	{"campaigns", models.EntityCampaign, 0.85},
	{"promotion", models.EntityCampaign, 0.7},
	{"segment", models.EntityCustomerSegment, 0.8},
	{"cohort", models.EntityCustomerSegment, 0.75},
	{"audience", models.EntityCustomerSegment, 0.7},
	{"customers", models.EntityCustomerSegment, 0.7},
	{"email", models.EntityChannel, 0.65},
	{"social", models.EntityChannel, 0.65},
	{"organic", models.EntityChannel, 0.6},
	{"paid", models.EntityChannel, 0.6},
	{"course", models.EntityCourse, 0.85},
	{"courses", models.EntityCourse, 0.85},
	{"lesson", models.EntityCourse, 0.7},
	{"enrollment", models.EntityCourse, 0.75},
	{"blog", models.EntityContent, 0.6},
	{"video", models.EntityContent, 0.6},
	{"post", models.EntityContent, 0.55},
	{"team", models.EntityTeam, 0.6},
	{"department", models.EntityTeam, 0.6},
	{"quarter", models.EntityDateRange, 0.7},
	{"month", models.EntityDateRange, 0.65},
	{"week", models.EntityDateRange, 0.6},
	{"yesterday", models.EntityDateRange, 0.6},
	{"today", models.EntityDateRange, 0.6},
	{"year", models.EntityDateRange, 0.6},
}

// technicalTerms feed the complexity score: the denser a query is in domain
// jargon, the more expertise answering it takes.
var technicalTerms = map[string]bool{
	"cohort": true, "attribution": true, "regression": true, "segmentation": true,
	"correlation": true, "conversion": true, "churn": true, "ltv": true,
	"cac": true, "mrr": true, "arr": true, "roi": true, "roas": true,
	"percentile": true, "variance": true, "seasonality": true, "forecast": true,
	"anomaly": true, "funnel": true, "retention": true, "normalization": true,
	"aggregation": true, "yoy": true, "qoq": true, "ebitda": true,
}

// urgencyCues map phrases to urgency levels; the strongest match wins.
var urgencyCues = []struct {
	Phrase  string
	Urgency models.Urgency
}{
	{"emergency", models.UrgencyCritical},
	{"critical", models.UrgencyCritical},
	{"outage", models.UrgencyCritical},
	{"asap", models.UrgencyHigh},
	{"urgent", models.UrgencyHigh},
	{"immediately", models.UrgencyHigh},
	{"right now", models.UrgencyHigh},
	{"today", models.UrgencyHigh},
	{"whenever", models.UrgencyLow},
	{"no rush", models.UrgencyLow},
	{"eventually", models.UrgencyLow},
}

// intentCues map leading phrases to a primary intent label.
var intentCues = []struct {
	Phrase string
	Intent string
}{
	{"compare", "comparison"},
	{"versus", "comparison"},
	{" vs ", "comparison"},
	{"why", "explanation"},
	{"explain", "explanation"},
	{"predict", "forecasting"},
	{"forecast", "forecasting"},
	{"project", "forecasting"},
	{"how do i", "guidance"},
	{"how can i", "guidance"},
	{"recommend", "recommendation"},
	{"suggest", "recommendation"},
	{"should i", "recommendation"},
	{"show", "data retrieval"},
	{"display", "data retrieval"},
	{"list", "data retrieval"},
	{"give me", "data retrieval"},
	{"what is", "data retrieval"},
	{"analyze", "analysis"},
	{"breakdown", "analysis"},
	{"break down", "analysis"},
	{"trend", "analysis"},
}
