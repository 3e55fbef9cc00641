package extraction

// SessionRecord is one normalized session: a flat message list sharing a question context and a date.
type SessionRecord struct {
	QuestionCategory string
	Question         string
	QuestionDate     string
	Answer           string
	Messages         []string
	SessionDate      string
}

// draftSession is a session before its date has been collapsed to a scalar.
type draftSession struct {
	messages []string
	date     DateField
}

// NormalizeCorpus flattens every entry of every category, in corpus order, into session records.
func NormalizeCorpus(c Corpus) []SessionRecord {
	out := make([]SessionRecord, 0, len(c.Categories))
	for _, cat := range c.Categories {
		for _, entry := range cat.Entries {
			out = append(out, NormalizeEntry(cat.Name, entry)...)
		}
	}
	return out
}

// NormalizeEntry builds the session records of a single question entry.
// An empty body yields no records, a flat body exactly one, and a nested body one per sub-session.
func NormalizeEntry(category string, entry QuestionEntry) []SessionRecord {
	body := entry.Sessions.AnswerSessions
	dates := entry.Sessions.AnswerSessionDates

	var drafts []draftSession
	switch body.Shape {
	case BodyFlat:
		drafts = normalizeFlat(body.Flat, dates)
	case BodyNested:
		drafts = normalizeNested(body.Nested, dates)
	default:
		return nil
	}

	records := make([]SessionRecord, 0, len(drafts))
	for _, d := range drafts {
		records = append(records, SessionRecord{
			QuestionCategory: category,
			Question:         string(entry.Question),
			QuestionDate:     string(entry.QuestionDate),
			Answer:           string(entry.Answer),
			Messages:         d.messages,
			SessionDate:      collapseDate(d.date),
		})
	}
	return records
}

// normalizeFlat keeps the dates field as-is; a list is only collapsed afterwards.
func normalizeFlat(messages []string, dates DateField) []draftSession {
	return []draftSession{{
		messages: append([]string{}, messages...),
		date:     dates,
	}}
}

func normalizeNested(subSessions [][]string, dates DateField) []draftSession {
	out := make([]draftSession, 0, len(subSessions))
	for i, sub := range subSessions {
		date := dates
		if dates.Kind == DateList {
			date = ScalarDate(dates.At(i))
		}
		out = append(out, draftSession{
			messages: append([]string{}, sub...),
			date:     date,
		})
	}
	return out
}

func collapseDate(d DateField) string {
	return d.First()
}

// LimitSessions returns the first max sessions. max <= 0 keeps everything.
func LimitSessions(sessions []SessionRecord, max int) []SessionRecord {
	if max <= 0 || len(sessions) <= max {
		return sessions
	}
	return sessions[:max]
}
