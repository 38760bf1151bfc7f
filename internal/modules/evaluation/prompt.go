package evaluation

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const systemPrompt = `You evaluate human dreams and aspirations for feasibility and innovation potential using a fixed four-factor rubric.

Score each dimension from 0 to 100:

1. COMPREHENSION: how clearly the dream is defined and articulated.
   90-100 specific goals and outcomes; 50-69 generally clear but lacking specifics; 0-29 incoherent.
2. QUALITY: how valuable and meaningful the dream is to the individual or society.
   90-100 transformative; 50-69 useful but not groundbreaking; 0-29 little meaningful value.
3. INNOVATION: how novel the idea or approach is.
   90-100 never attempted before; 50-69 creative improvements; 0-29 purely derivative.
4. FEASIBILITY: how achievable the dream is with current technology and resources.
   90-100 achievable today; 50-69 possible with significant effort; 0-29 nearly impossible.

Impossibility score = 100 - (average of the four scores).

Confidence (0-100) reflects how much information the description gives you.

Respond with a single JSON object and nothing else:

{
  "comprehensionScore": number,
  "qualityScore": number,
  "innovationScore": number,
  "feasibilityScore": number,
  "overallScore": number,
  "impossibilityScore": number,
  "confidence": number,
  "reasoning": "string"
}

Judge against the rubric only. Consider realistic future progress and alternative pathways, and keep personal taste out of the scores.`

const userPromptTemplate = `<dream_evaluation>
<dream_title>{title}</dream_title>
<dream_description>{description}</dream_description>
<dream_category>{category}</dream_category>
<original_prompt>{original_prompt}</original_prompt>

Evaluate this dream with the four-factor rubric and answer in the required JSON format.
</dream_evaluation>`

// SystemPrompt returns the scoring rubric sent as the system message
func SystemPrompt() string {
	return systemPrompt
}

// BuildUserPrompt renders the per-dream prompt. The original prompt falls
// back to the description when empty.
func BuildUserPrompt(req Request) string {
	original := req.OriginalPrompt
	if original == "" {
		original = req.Description
	}
	return strings.NewReplacer(
		"{title}", req.Title,
		"{description}", req.Description,
		"{category}", req.Category,
		"{original_prompt}", original,
	).Replace(userPromptTemplate)
}

// PromptHash fingerprints the exact prompt pair sent to providers
func PromptHash(system, user string) string {
	sum := sha256.Sum256([]byte(system + user))
	return hex.EncodeToString(sum[:8])
}
