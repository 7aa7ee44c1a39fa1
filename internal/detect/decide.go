package detect

import "math"

const (
	LabelAI    = "AI"
	LabelHuman = "Human"

	// Threshold is exclusive: a probability of exactly 0.5 is Human.
	Threshold = 0.5

	// ShortTextWords is the word count below which results are less reliable.
	ShortTextWords = 300
)

// Stats describes how the input was seen by the model.
type Stats struct {
	WordCount     int  `json:"word_count"`
	ShortText     bool `json:"short_text"`
	Tokens        int  `json:"tokens"`
	UnknownTokens int  `json:"unknown_tokens"`
	Truncated     bool `json:"truncated"`
}

// Prediction is the user-facing classification result.
type Prediction struct {
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	Probability float64 `json:"probability"`
	Stats       Stats   `json:"stats"`
}

// IsAI reports whether the prediction is labelled AI.
func (p Prediction) IsAI() bool { return p.Label == LabelAI }

// Decide maps a probability to a label and a confidence percentage rounded
// to two decimals.
func Decide(p float64) Prediction {
	if p > Threshold {
		return Prediction{Label: LabelAI, Confidence: round2(p * 100), Probability: p}
	}

	return Prediction{Label: LabelHuman, Confidence: round2((1 - p) * 100), Probability: p}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
