package policy

import (
	"fmt"
	"strings"

	"github.com/Adityashandilya555/personifi-aria-sub001/internal/intent"
)

// SocialContext carries optional friend-graph enrichment: display names
// of friends who recently showed interest in the topic's category.
type SocialContext struct {
	Friends []string
}

// StrategyFor renders the directive consumed by the prompt composer. It
// branches on phase only, so the confidence state machine stays
// testable without string matching. Terminal topics yield no directive.
func StrategyFor(topic intent.TopicIntent, social *SocialContext) string {
	switch topic.Phase {
	case intent.PhaseNoticed:
		directive := fmt.Sprintf("Observe only. The user mentioned %q but interest is not established. React naturally if it comes up again and do not offer to plan or act.", topic.Topic)
		if summary := summarizeSignals(topic.Signals); summary != "" {
			directive += " Recent signals: " + summary + "."
		}
		return directive
	case intent.PhaseProbing:
		return fmt.Sprintf("Ask exactly one pointed question about %q, aimed at timing or specifics. Do not offer to act yet.", topic.Topic)
	case intent.PhaseShifting:
		directive := fmt.Sprintf("Make exactly one concrete offer to move %q forward, for example by proposing a timeframe.", topic.Topic)
		if social != nil && len(social.Friends) > 0 {
			directive += fmt.Sprintf(" Suggest including %s, who recently showed interest in the same kind of plan.", joinNames(social.Friends))
		}
		return directive
	case intent.PhaseExecuting:
		return fmt.Sprintf("Take action on %q now through the available tools. No more probing questions.", topic.Topic)
	default:
		return ""
	}
}

// summarizeSignals lists the kinds of up to the 3 most recent signals,
// newest first.
func summarizeSignals(log intent.SignalLog) string {
	recent := log.Recent(3)
	if len(recent) == 0 {
		return ""
	}
	kinds := make([]string, 0, len(recent))
	for _, sig := range recent {
		kinds = append(kinds, string(sig.Kind))
	}
	return strings.Join(kinds, ", ") + " (newest first)"
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
