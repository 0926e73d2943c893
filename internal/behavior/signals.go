package behavior

import (
	"strings"

	"github.com/skinclarityclub/insight-engine/pkg/models"
)

// preferenceNudge bounds how far one turn can move a preference slider.
const preferenceNudge = 0.05

// Signal is one observed preference cue with the slider it moves.
type Signal struct {
	Slider string
	Delta  float64
	Reason string
}

// Slider names accepted by applySignal.
const (
	SliderConciseness      = "conciseness"
	SliderTechnicalDepth   = "technical_depth"
	SliderVisualPreference = "visual_preference"
	SliderAnalysisDepth    = "analysis_depth"
	SliderSpeedBias        = "speed_bias"
	SliderProactivity      = "proactivity"
)

// SignalExtractor derives preference signals from one conversation turn.
// The default implementation is keyword-driven; deployments can plug in
// richer extractors (feedback forms, click telemetry).
type SignalExtractor interface {
	Extract(entry *models.ConversationEntry, analysis *models.SemanticAnalysis) []Signal
}

// KeywordExtractor is the default SignalExtractor.
type KeywordExtractor struct{}

var keywordSignals = []struct {
	Phrase string
	Slider string
	Delta  float64
	Reason string
}{
	{"brief", SliderConciseness, preferenceNudge, "asked for brevity"},
	{"in short", SliderConciseness, preferenceNudge, "asked for brevity"},
	{"quick summary", SliderConciseness, preferenceNudge, "asked for brevity"},
	{"tl;dr", SliderConciseness, preferenceNudge, "asked for brevity"},
	{"in detail", SliderConciseness, -preferenceNudge, "asked for detail"},
	{"elaborate", SliderConciseness, -preferenceNudge, "asked for detail"},
	{"walk me through", SliderConciseness, -preferenceNudge, "asked for detail"},
	{"in detail", SliderAnalysisDepth, preferenceNudge, "asked for deeper analysis"},
	{"deep dive", SliderAnalysisDepth, preferenceNudge, "asked for deeper analysis"},
	{"drill down", SliderAnalysisDepth, preferenceNudge, "asked for deeper analysis"},
	{"just the numbers", SliderAnalysisDepth, -preferenceNudge, "asked for raw figures"},
	{"chart", SliderVisualPreference, preferenceNudge, "asked for a chart"},
	{"graph", SliderVisualPreference, preferenceNudge, "asked for a graph"},
	{"visualize", SliderVisualPreference, preferenceNudge, "asked for a visualization"},
	{"plot", SliderVisualPreference, preferenceNudge, "asked for a plot"},
	{"table", SliderVisualPreference, preferenceNudge / 2, "asked for a table"},
	{"technical", SliderTechnicalDepth, preferenceNudge, "asked for technical depth"},
	{"methodology", SliderTechnicalDepth, preferenceNudge, "asked about methodology"},
	{"simple terms", SliderTechnicalDepth, -preferenceNudge, "asked for plain language"},
	{"explain like", SliderTechnicalDepth, -preferenceNudge, "asked for plain language"},
	{"asap", SliderSpeedBias, preferenceNudge, "time pressure"},
	{"quickly", SliderSpeedBias, preferenceNudge, "time pressure"},
	{"what else", SliderProactivity, preferenceNudge, "invited suggestions"},
	{"anything else", SliderProactivity, preferenceNudge, "invited suggestions"},
	{"recommend", SliderProactivity, preferenceNudge, "asked for recommendations"},
}

// Extract implements SignalExtractor.
func (KeywordExtractor) Extract(entry *models.ConversationEntry, analysis *models.SemanticAnalysis) []Signal {
	query := strings.ToLower(entry.UserQuery)
	var signals []Signal
	for _, ks := range keywordSignals {
		if strings.Contains(query, ks.Phrase) {
			signals = append(signals, Signal{Slider: ks.Slider, Delta: ks.Delta, Reason: ks.Reason})
		}
	}
	// urgency implies a bias toward fast answers even without a keyword
	if analysis != nil && analysis.Intent.Urgency.Rank() >= models.UrgencyHigh.Rank() {
		signals = append(signals, Signal{Slider: SliderSpeedBias, Delta: preferenceNudge, Reason: "urgent query"})
	}
	return signals
}

// applySignal moves one slider; PreferenceWeights.Clamp runs afterwards.
func applySignal(w *models.PreferenceWeights, sig Signal) {
	switch sig.Slider {
	case SliderConciseness:
		w.Conciseness += sig.Delta
	case SliderTechnicalDepth:
		w.TechnicalDepth += sig.Delta
	case SliderVisualPreference:
		w.VisualPreference += sig.Delta
	case SliderAnalysisDepth:
		w.AnalysisDepth += sig.Delta
	case SliderSpeedBias:
		w.SpeedBias += sig.Delta
	case SliderProactivity:
		w.Proactivity += sig.Delta
	}
}

// toneSignals nudges formality and directness from phrasing.
func toneSignals(tone *models.CommunicationTone, query string) {
	q := strings.ToLower(query)
	if strings.Contains(q, "please") || strings.Contains(q, "could you") || strings.Contains(q, "would you") {
		tone.Formality = models.Clamp01(tone.Formality + 0.02)
	}
	if strings.Contains(q, "hey") || strings.Contains(q, "thx") || strings.Contains(q, "thanks!") {
		tone.Formality = models.Clamp01(tone.Formality - 0.02)
	}
	words := strings.Fields(q)
	if len(words) > 0 && len(words) <= 4 {
		tone.Directness = models.Clamp01(tone.Directness + 0.02)
	}
	if strings.Contains(q, "i was wondering") || strings.Contains(q, "maybe") {
		tone.Directness = models.Clamp01(tone.Directness - 0.02)
	}
}

var _ SignalExtractor = KeywordExtractor{}
