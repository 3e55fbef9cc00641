package extraction

import "time"

const outputStampLayout = "20060102_150405"

// OutputFilename names a results file after the local time it was generated.
func OutputFilename(generatedAt time.Time) string {
	return "llm_responses_" + generatedAt.Format(outputStampLayout) + ".json"
}
