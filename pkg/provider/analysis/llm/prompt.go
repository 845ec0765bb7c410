package llm

import (
	"fmt"
	"strings"

	"github.com/ce-ky/AudioKeywordsEvaluator-demo/pkg/provider/analysis"
)

// systemPrompt instructs the model to act as the semantic keyword-matching
// service. The response shape mirrors analysis.Result exactly.
const systemPrompt = `You are a keyword occurrence analyser for spoken-audio transcripts.

For every keyword in the provided list, examine the transcript and report:
- "absolute_pair": the number of exact, case-insensitive occurrences of the keyword text in the transcript.
- "blur_pair": the number of transcript passages that are semantically related to the keyword without containing it verbatim (synonyms, paraphrases, descriptions of the concept).
- "fuzzy_segments": the literal transcript substrings counted in blur_pair, copied character-for-character from the transcript, in the order they appear.

Also return "marked_transcript": one copy of the entire transcript in which every exact occurrence of any keyword is wrapped in « and », and every fuzzy segment is wrapped in ‹ and ›. Do not alter, reorder, or drop any other character of the transcript. Spans must not overlap; when an exact and a fuzzy span would overlap, keep only the exact span.

Rules:
- Only report keywords from the provided list, spelled exactly as given.
- fuzzy_segments must be verbatim substrings of the transcript.
- Be conservative with fuzzy matches — prefer missing a borderline case over inventing one.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "analysis": [
    {"object": "<keyword>", "absolute_pair": <int>, "blur_pair": <int>, "fuzzy_segments": ["<substring>"]}
  ],
  "marked_transcript": "<annotated transcript>"
}`

// buildUserMessage renders the transcript and keyword batch for one request.
func buildUserMessage(req analysis.Request) string {
	var b strings.Builder
	b.WriteString("Keywords:\n")
	for _, k := range req.Keywords {
		fmt.Fprintf(&b, "- %s\n", k)
	}
	b.WriteString("\nTranscript:\n")
	b.WriteString(req.Transcript)
	return b.String()
}
