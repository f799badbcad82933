package model

// PredictionStage names the escalation stage that produced an article number.
type PredictionStage string

// Prediction stage constants.
const (
	StagePrimary     PredictionStage = "PRIMARY"
	StageFallback    PredictionStage = "FALLBACK"
	StageSynthesized PredictionStage = "SYNTHESIZED"
)

// Prediction is the outcome of the escalation chain for one description.
type Prediction struct {
	Description   string
	ArticleNumber string
	Stage         PredictionStage
	Confidence    float64
}

// Source is the corpus source recorded when an operator accepts the
// prediction as proposed.
func (p Prediction) Source() MappingSource {
	if p.Stage == StageSynthesized {
		return SourceSynthesized
	}
	return SourceApproved
}
