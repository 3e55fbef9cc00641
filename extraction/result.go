package extraction

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/theimaginaryfoundation/session-extract/extraction/fileutils"
)

// ResultRecord is the output row for one session. InputText and LLMResponse are index-aligned;
// Error is set only when the session stopped early.
type ResultRecord struct {
	SessionIndex     int      `json:"session_index"`
	QuestionCategory string   `json:"question_category"`
	Question         string   `json:"question"`
	QuestionDate     string   `json:"question_date"`
	Answer           string   `json:"answer"`
	SessionDate      string   `json:"session_date"`
	InputText        []string `json:"input_text"`
	LLMResponse      []string `json:"llm_response"`
	Error            string   `json:"error,omitempty"`
}

// Summary counts a run's results. A session that failed after some messages completed counts as
// both successful and failed.
type Summary struct {
	Processed  int
	Successful int
	Failed     int
}

func Summarize(results []ResultRecord) Summary {
	s := Summary{Processed: len(results)}
	for _, r := range results {
		if len(r.LLMResponse) > 0 {
			s.Successful++
		}
		if r.Error != "" {
			s.Failed++
		}
	}
	return s
}

// WriteResults writes results as one JSON array to <outDir>/llm_responses_<stamp>.json.
func WriteResults(outDir string, generatedAt time.Time, results []ResultRecord) (string, error) {
	if outDir == "" {
		return "", errors.New("WriteResults: outDir is empty")
	}
	if results == nil {
		results = []ResultRecord{}
	}
	path := filepath.Join(outDir, OutputFilename(generatedAt))
	if err := fileutils.WriteJSONFileAtomic(path, results, true); err != nil {
		return "", fmt.Errorf("WriteResults: %w", err)
	}
	return path, nil
}
