package mission

// ModelRate is the USD cost per 1000 input and output tokens for one
// model. Rates are looked up by exact model ID; an unrecognized ID falls
// back to unknownRate.
type ModelRate struct {
	InputPer1K  float64
	OutputPer1K float64
}

var modelRates = map[string]ModelRate{
	"gpt-4o":                   {InputPer1K: 0.005, OutputPer1K: 0.015},
	"gpt-4o-mini":               {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"claude-3-5-sonnet":        {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-opus":            {InputPer1K: 0.015, OutputPer1K: 0.075},
	"gemini-1.5-pro":           {InputPer1K: 0.00125, OutputPer1K: 0.00375},
	"gemini-1.5-flash":         {InputPer1K: 0.000075, OutputPer1K: 0.0003},
	"llama-3.3-70b-versatile":  {InputPer1K: 0.00059, OutputPer1K: 0.00079},
	"mixtral-8x7b-32768":       {InputPer1K: 0.00027, OutputPer1K: 0.00027},
}

// unknownRate is charged for any model ID not in modelRates, so a typo'd
// or newly released model still contributes to budget accounting instead
// of costing nothing.
var unknownRate = ModelRate{InputPer1K: 0.002, OutputPer1K: 0.006}

// CalculateCost returns the USD cost of one generation call given its
// input and output token counts.
func CalculateCost(modelID string, inputTokens, outputTokens int) float64 {
	rate, ok := modelRates[modelID]
	if !ok {
		rate = unknownRate
	}
	return float64(inputTokens)/1000*rate.InputPer1K + float64(outputTokens)/1000*rate.OutputPer1K
}
