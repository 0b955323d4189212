package plan

import (
	"fmt"
	"strings"

	"github.com/fitstack/fitplanner/internal/profile"
	"github.com/fitstack/fitplanner/internal/vecstore"
)

// systemPrompt is the fixed instruction set for plan generation. The
// rules pin the model to the retrieved context and define the citation
// contract that parseCitations enforces.
const systemPrompt = `You are a fitness and nutrition planning assistant.

CRITICAL RULES:
1. Use ONLY the information in the CONTEXT section. Never invent
   exercises, foods, or recommendations that are not grounded in it.
2. If the context does not contain enough information to answer, say so
   and ask a clarifying question instead of guessing.
3. Never give medical advice. If the request touches injury, illness,
   or medication, tell the user to consult a healthcare professional.
4. Respect the user's dietary type and training location without
   exception.

CITATION CONTRACT:
End your response with exactly one line of the form
  CITED_CHUNKS: <id>, <id>, ...
listing the IDs of every context chunk you used. If you used none,
write exactly:
  CITED_CHUNKS: none`

// promptSections are the four parts of every generation prompt, always
// in the same order: user profile, progress, context, task.
type promptSections struct {
	Profile  string
	Progress string
	Context  string
	Task     string
}

// BuildPrompt assembles the user prompt for a plan request. Chunks are
// rendered with their IDs so the model can fulfil the citation
// contract.
func BuildPrompt(req *Request, prof *profile.Profile, chunks []vecstore.ScoredChunk) string {
	sections := promptSections{
		Profile:  renderProfile(prof),
		Progress: renderProgress(req.ProgressNote),
		Context:  renderContext(chunks),
		Task:     renderTask(req),
	}

	var sb strings.Builder
	sb.WriteString("USER PROFILE:\n")
	sb.WriteString(sections.Profile)
	sb.WriteString("\n\nPROGRESS:\n")
	sb.WriteString(sections.Progress)
	sb.WriteString("\n\nCONTEXT:\n")
	sb.WriteString(sections.Context)
	sb.WriteString("\n\nTASK:\n")
	sb.WriteString(sections.Task)
	return sb.String()
}

func renderProfile(prof *profile.Profile) string {
	if prof == nil {
		return "(no profile on record)"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "- Goal: %s\n", prof.Goal)
	fmt.Fprintf(&sb, "- Experience level: %s\n", prof.Level)
	fmt.Fprintf(&sb, "- Dietary type: %s\n", prof.DietaryType)
	fmt.Fprintf(&sb, "- Training location: %s", prof.Location)
	if prof.WeightKg > 0 {
		fmt.Fprintf(&sb, "\n- Current weight: %.1f kg", prof.WeightKg)
	}
	if prof.Age > 0 {
		fmt.Fprintf(&sb, "\n- Age: %d", prof.Age)
	}
	return sb.String()
}

func renderProgress(note string) string {
	if strings.TrimSpace(note) == "" {
		return "(no progress data yet)"
	}
	return note
}

func renderContext(chunks []vecstore.ScoredChunk) string {
	if len(chunks) == 0 {
		return "(no relevant knowledge found)"
	}
	var sb strings.Builder
	for i, ch := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s]\n%s", ch.ChunkID, ch.Text)
	}
	return sb.String()
}

func renderTask(req *Request) string {
	switch req.PlanType {
	case TypeDiet:
		return "Create a weekly diet plan for this user. Structure it by day " +
			"with meals and approximate portions, grounded in the context."
	default:
		return "Create a weekly workout plan for this user. Structure it by day " +
			"with exercises, sets, and reps, grounded in the context."
	}
}

// DefaultQuery synthesizes a retrieval query from the profile when a
// request does not carry one.
func DefaultQuery(planType Type, prof *profile.Profile) string {
	goal := "general fitness"
	if prof != nil {
		goal = strings.ReplaceAll(string(prof.Goal), "_", " ")
	}
	switch planType {
	case TypeDiet:
		return fmt.Sprintf("weekly meal plan for %s", goal)
	default:
		return fmt.Sprintf("weekly training program for %s", goal)
	}
}
