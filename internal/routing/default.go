package routing

import "github.com/MrWong99/surveyscribe/internal/transcript"

// Built-in section names fed by the default topics.
const (
	SectionBoiler       = "Boiler"
	SectionFlue         = "Flue"
	SectionPipework     = "Pipe work"
	SectionControls     = "Controls"
	SectionDisruption   = "Disruption"
	SectionHeights      = "Working at heights"
	SectionRestrictions = "Restrictions to work"
	SectionAssistance   = "Assistance"
	SectionOffice       = "Office notes"
	SectionFuturePlans  = "Future plans"
)

// Default returns the built-in routing configuration. Every call returns a
// fresh value that the caller may modify.
func Default() *Config {
	return &Config{
		ASRNormalise: transcript.DefaultRewrites(),
		PhraseOverrides: map[string]string{
			"two man lift":        SectionAssistance,
			"call before arrival": SectionOffice,
			"no parking":          SectionRestrictions,
			"loft ladder":         SectionHeights,
		},
		Intents: map[string][]string{
			TopicControls: {
				`\b(?:room\s+)?thermostats?\b`,
				`\b(?:hive|nest|tado|drayton|honeywell)\b`,
				`\b(?:programmer|timer|smart controls?|controls?)\b`,
				`\b(?:trvs?|thermostatic radiator valves?)\b`,
				`\bwireless stat\b`,
			},
			TopicPipework: {
				`\bpipe\s*works?\b`,
				`\b(?:pipes?|pipe run|gas run|gas pipe)\b`,
				`\bcondensate\b`,
				`\b(?:15|22|28)\s*mm\b`,
				`\b(?:re-?route|reroute|upsiz\w*)\b`,
			},
			TopicFlue: {
				`\bflues?\b`,
				`\bplume (?:kit|management)\b`,
				`\bterminal\b`,
			},
			TopicHeights: {
				`\b(?:ladders?|scaffold\w*|tower)\b`,
				`\b(?:at height|working at heights?|cherry picker)\b`,
				`\b(?:roof|loft access)\b`,
			},
			TopicOffice: {
				`\boffice\b`,
				`\b(?:book(?:ing)?|arrange|invoice|deposit|finance)\b`,
				`\bparking permit\b`,
				`\bcustomer to (?:confirm|send|call|email)\b`,
			},
			TopicAccess: {
				`\b(?:access|narrow|restricted|permit)\b`,
				`\b(?:parking|stairs|steps|gate)\b`,
				`\b(?:dogs?|pets?|asbestos)\b`,
			},
			TopicAssistance: {
				`\b(?:two|2)[- ](?:man|person|people)\b`,
				`\bsecond (?:engineer|person|pair of hands)\b`,
				`\b(?:assistance|labourer|heavy lift)\b`,
			},
			TopicDisruption: {
				`\bpower\s*flush\w*\b`,
				`\b(?:chemical|system) flush\b`,
				`\bflush(?:ing)? (?:out )?the system\b`,
			},
			TopicFuture: {
				`\b(?:future|later on|next year|eventually)\b`,
				`\b(?:plans? to|thinking about|considering)\b`,
				`\b(?:solar|heat pump|extension)\b`,
			},
			TopicReplacement: {
				`\b(?:boiler|combi|cylinder)\b`,
				`\b(?:replace\w*|swap\w*|install\w*|remov\w*)\b`,
				`\b\d+kw\b`,
				`\b(?:worcester|vaillant|viessmann|baxi|ideal)\b`,
			},
		},
		TopicSections: map[string]string{
			TopicControls:    SectionControls,
			TopicPipework:    SectionPipework,
			TopicFlue:        SectionFlue,
			TopicHeights:     SectionHeights,
			TopicOffice:      SectionOffice,
			TopicAccess:      SectionRestrictions,
			TopicAssistance:  SectionAssistance,
			TopicDisruption:  SectionDisruption,
			TopicFuture:      SectionFuturePlans,
			TopicReplacement: SectionBoiler,
		},
	}
}

// rerouteSource is the topic whose patterns are broad enough to drag in
// unrelated sub-clauses; rerouteTargets are the stricter topics those
// clauses are moved to.
var (
	rerouteSource  = TopicFlue
	rerouteTargets = []string{TopicHeights, TopicOffice, TopicAccess}
)
