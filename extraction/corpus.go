package extraction

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Corpus is the decoded input collection. Categories keep the order in which they appear in the file.
type Corpus struct {
	Categories []Category
}

// Category is one top-level key of the corpus file and its question entries.
type Category struct {
	Name    string
	Entries []QuestionEntry
}

// QuestionEntry is a single question record as it appears in the corpus.
type QuestionEntry struct {
	Question     Text          `json:"question"`
	QuestionDate Text          `json:"question_date"`
	Answer       Text          `json:"answer"`
	Sessions     SessionsBlock `json:"sessions"`
}

// SessionsBlock holds the correlated session body and session date fields of an entry.
type SessionsBlock struct {
	AnswerSessions     SessionBody `json:"answer_sessions"`
	AnswerSessionDates DateField   `json:"answer_session_dates"`
}

// Text is a string field that also accepts non-string JSON scalars (kept as their JSON text).
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	*t = Text(rawText(b))
	return nil
}

// BodyShape tags which of the two answer_sessions layouts an entry uses.
type BodyShape int

const (
	BodyEmpty BodyShape = iota
	BodyFlat
	BodyNested
)

func (s BodyShape) String() string {
	switch s {
	case BodyFlat:
		return "flat"
	case BodyNested:
		return "nested"
	default:
		return "empty"
	}
}

// SessionBody is answer_sessions decoded into one of its two layouts:
//   - Flat:   ["msg", "msg", ...]
//   - Nested: [["msg", ...], ["msg", ...], ...]
//
// The layout is decided by the first element. In a nested body, a stray string element becomes a
// one-message sub-session; in a flat body, a stray list element is spliced into the message list.
type SessionBody struct {
	Shape  BodyShape
	Flat   []string
	Nested [][]string
}

// FlatBody builds a flat SessionBody.
func FlatBody(messages ...string) SessionBody {
	if len(messages) == 0 {
		return SessionBody{}
	}
	return SessionBody{Shape: BodyFlat, Flat: messages}
}

// NestedBody builds a nested SessionBody.
func NestedBody(subSessions ...[]string) SessionBody {
	if len(subSessions) == 0 {
		return SessionBody{}
	}
	return SessionBody{Shape: BodyNested, Nested: subSessions}
}

func (b *SessionBody) UnmarshalJSON(data []byte) error {
	*b = SessionBody{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || isNull(data) {
		return nil
	}

	switch data[0] {
	case '"':
		// A bare string body is a single message.
		if s := rawText(data); s != "" {
			*b = FlatBody(s)
		}
		return nil
	case '[':
	default:
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("answer_sessions: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	if isArray(items[0]) {
		nested := make([][]string, 0, len(items))
		for _, it := range items {
			if isArray(it) {
				sub, err := decodeTexts(it)
				if err != nil {
					return fmt.Errorf("answer_sessions: %w", err)
				}
				nested = append(nested, sub)
				continue
			}
			nested = append(nested, []string{rawText(it)})
		}
		*b = SessionBody{Shape: BodyNested, Nested: nested}
		return nil
	}

	flat := make([]string, 0, len(items))
	for _, it := range items {
		if isArray(it) {
			sub, err := decodeTexts(it)
			if err != nil {
				return fmt.Errorf("answer_sessions: %w", err)
			}
			flat = append(flat, sub...)
			continue
		}
		flat = append(flat, rawText(it))
	}
	*b = SessionBody{Shape: BodyFlat, Flat: flat}
	return nil
}

// DateKind tags which layout answer_session_dates uses.
type DateKind int

const (
	DateAbsent DateKind = iota
	DateScalar
	DateList
)

// DateField is answer_session_dates decoded into absent, a single date, or one date per sub-session.
type DateField struct {
	Kind  DateKind
	Value string
	List  []string
}

// ScalarDate builds a scalar DateField.
func ScalarDate(v string) DateField {
	return DateField{Kind: DateScalar, Value: v}
}

// ListDates builds a list DateField. A nil list is still a list (empty, not absent).
func ListDates(v ...string) DateField {
	if v == nil {
		v = []string{}
	}
	return DateField{Kind: DateList, List: v}
}

func (d *DateField) UnmarshalJSON(data []byte) error {
	*d = DateField{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || isNull(data) {
		return nil
	}
	if isArray(data) {
		list, err := decodeTexts(data)
		if err != nil {
			return fmt.Errorf("answer_session_dates: %w", err)
		}
		*d = ListDates(list...)
		return nil
	}
	*d = ScalarDate(rawText(data))
	return nil
}

// At returns the date aligned with sub-session i: element i if present, else element 0, else "".
// Scalar and absent dates are broadcast to every index.
func (d DateField) At(i int) string {
	switch d.Kind {
	case DateList:
		if i >= 0 && i < len(d.List) {
			return d.List[i]
		}
		return d.First()
	case DateScalar:
		return d.Value
	default:
		return ""
	}
}

// First collapses the field to a scalar: the first list element, the scalar itself, or "".
func (d DateField) First() string {
	switch d.Kind {
	case DateList:
		if len(d.List) == 0 {
			return ""
		}
		return d.List[0]
	case DateScalar:
		return d.Value
	default:
		return ""
	}
}

// ResolveCorpusPath returns path when it exists, otherwise data/<path> when that exists.
func ResolveCorpusPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("ResolveCorpusPath: path is empty")
	}
	if fileExists(path) {
		return path, nil
	}
	alt := filepath.Join("data", path)
	if fileExists(alt) {
		return alt, nil
	}
	return "", fmt.Errorf("corpus file not found: %s: %w", path, fs.ErrNotExist)
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// LoadCorpus reads a corpus file: a top-level JSON object mapping category name to an array of
// question entries.
func LoadCorpus(ctx context.Context, path string) (Corpus, error) {
	if ctx == nil {
		return Corpus{}, errors.New("LoadCorpus: ctx is nil")
	}
	if path == "" {
		return Corpus{}, errors.New("LoadCorpus: path is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return Corpus{}, fmt.Errorf("LoadCorpus: open corpus: %w", err)
	}
	defer f.Close()

	return DecodeCorpus(ctx, bufio.NewReaderSize(f, 1<<20))
}

// DecodeCorpus streams the corpus object token by token so category order matches the input.
// When a category key repeats, its last array wins.
func DecodeCorpus(ctx context.Context, r io.Reader) (Corpus, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return Corpus{}, fmt.Errorf("DecodeCorpus: read first token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Corpus{}, fmt.Errorf("DecodeCorpus: expected top-level JSON object, got %v", tok)
	}

	var corpus Corpus
	seen := make(map[string]int)
	for dec.More() {
		select {
		case <-ctx.Done():
			return Corpus{}, ctx.Err()
		default:
		}

		keyTok, err := dec.Token()
		if err != nil {
			return Corpus{}, fmt.Errorf("DecodeCorpus: read category key: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return Corpus{}, fmt.Errorf("DecodeCorpus: expected string key, got %T", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return Corpus{}, fmt.Errorf("DecodeCorpus: read value for category %q: %w", name, err)
		}
		if d, ok := valTok.(json.Delim); !ok || d != '[' {
			// Not a list of questions; nothing to extract from it.
			if err := skipValue(dec, valTok); err != nil {
				return Corpus{}, fmt.Errorf("DecodeCorpus: skip category %q: %w", name, err)
			}
			continue
		}

		cat := Category{Name: name}
		for dec.More() {
			var entry QuestionEntry
			if err := dec.Decode(&entry); err != nil {
				return Corpus{}, fmt.Errorf("DecodeCorpus: decode entry %d of %q: %w", len(cat.Entries), name, err)
			}
			cat.Entries = append(cat.Entries, entry)
		}
		if tok, err := dec.Token(); err != nil {
			return Corpus{}, fmt.Errorf("DecodeCorpus: read closing array token: %w", err)
		} else if d, ok := tok.(json.Delim); !ok || d != ']' {
			return Corpus{}, fmt.Errorf("DecodeCorpus: expected closing ']', got %v", tok)
		}
		// A repeated key replaces the earlier value but keeps its position.
		if pos, ok := seen[name]; ok {
			corpus.Categories[pos] = cat
			continue
		}
		seen[name] = len(corpus.Categories)
		corpus.Categories = append(corpus.Categories, cat)
	}

	if tok, err := dec.Token(); err != nil {
		return Corpus{}, fmt.Errorf("DecodeCorpus: read closing object token: %w", err)
	} else if d, ok := tok.(json.Delim); !ok || d != '}' {
		return Corpus{}, fmt.Errorf("DecodeCorpus: expected closing '}', got %v", tok)
	}
	return corpus, nil
}

func skipValue(dec *json.Decoder, first json.Token) error {
	d, ok := first.(json.Delim)
	if !ok {
		return nil
	}
	if d != '{' && d != '[' {
		return fmt.Errorf("skipValue: unexpected delimiter %q", d)
	}

	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if dd, ok := tok.(json.Delim); ok {
			switch dd {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

func decodeTexts(data []byte) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, rawText(it))
	}
	return out, nil
}

// rawText renders a JSON value as text: strings are unquoted, null is "", anything else keeps its
// JSON encoding.
func rawText(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || isNull(data) {
		return ""
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			return s
		}
	}
	return string(data)
}

func isArray(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '['
}

func isNull(data []byte) bool {
	return bytes.Equal(data, []byte("null"))
}
