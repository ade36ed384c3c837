package classifier

// ReferenceTexts is a small set of short phrases representing agricultural
// topics. They anchor the embedding-based semantic check; extend via config
// if the supported domain grows.
var ReferenceTexts = []string{
	"farming and agriculture",
	"crop production and crop management",
	"soil health and soil nutrients",
	"fertilizer recommendation and nutrient management",
	"plant diseases, pests and pest control",
	"irrigation, rainfall and water management",
	"livestock health and veterinary care",
	"harvest techniques and post-harvest management",
	"greenhouse cultivation and protected farming",
	"organic farming and composting",
}

// DefaultKeywords are instant-positive terms for the keyword stage.
var DefaultKeywords = []string{
	"crop", "soil", "fertilizer", "pest", "disease", "harvest", "irrigation", "yield",
	"plant", "seed", "farm", "farming", "livestock", "manure", "mulch", "greenhouse",
	"weather", "rainfall", "organic", "ph", "nitrogen", "phosphorus", "potassium",
}
