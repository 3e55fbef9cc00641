package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/theimaginaryfoundation/session-extract/extraction"
)

const extractionSystemPrompt = `You extract structured information from a single conversation message and express it as a graph of entities, events and relationships.

Global rules:
- Extract only facts stated explicitly in the message. Do not infer or assume.
- The first-person speaker ("I", "me", "my", "we", "our") is always the entity named USER with type user.
- Reason internally; never include your reasoning in the output.
- Output only valid JSON.

Entity types: user, person, pet, playlist, object, location, organization, platform, degree.
Event types: request, action, creation, purchase, attendance, meeting, upgrade, utility.
Relationship types: OWNS, CREATED, PURCHASED, HAS, MET, PREFERS, ATTENDED, MENTIONS, REFERS_TO,
RELATED_TO, BEFORE, AFTER, PERFORMS, HAS_INTEREST_IN, REQUESTS, TARGETS, HELPS_IMPROVE,
HAS_RESULTED_IN, PROVIDES_UTILITY_FOR, CONCERNS, INCLUDES.
Use PERFORMS only when the user performs an action without a direct object.`

const extractionPromptHeader = `Extract entities, events and relationships from the message below.

Work through it in order:
1. Identify every explicitly mentioned entity and assign its type.
2. Identify every event and assign its type.
3. Connect entities and events with relationships from the allowed list.
4. Drop anything that is not stated in the message.

Return a single JSON object with the keys "entities", "events" and "relationships".

MESSAGE:
`

func buildExtractionPrompt(message string) string {
	return extractionPromptHeader + message
}

// promptBuilder decides what is sent for each message.
//   - extraction on:  user = extraction template around the message, system = custom or built-in extraction prompt
//   - extraction off: user = raw message, system = custom prompt or none
type promptBuilder struct {
	extraction   bool
	customSystem string
}

func (b promptBuilder) Build(message string) extraction.Prompt {
	if b.extraction {
		system := b.customSystem
		if system == "" {
			system = extractionSystemPrompt
		}
		return extraction.Prompt{System: system, User: buildExtractionPrompt(message)}
	}
	return extraction.Prompt{System: b.customSystem, User: message}
}

func (b promptBuilder) mode() string {
	switch {
	case b.extraction && b.customSystem != "":
		return "extraction+custom-system"
	case b.extraction:
		return "extraction"
	case b.customSystem != "":
		return "raw+custom-system"
	default:
		return "raw"
	}
}

func newPromptBuilder(cfg Config) (promptBuilder, error) {
	b := promptBuilder{extraction: cfg.ExtractionPrompt}
	if cfg.SystemPromptFile != "" {
		s, err := loadPromptFromFile(cfg.SystemPromptFile)
		if err != nil {
			return promptBuilder{}, err
		}
		b.customSystem = s
	}
	return b, nil
}

func loadPromptFromFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("system-prompt-file is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system-prompt-file: %w", err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", errors.New("system-prompt-file is empty after trimming whitespace")
	}
	return s, nil
}
