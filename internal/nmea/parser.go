package nmea

import "fmt"

// Parser aggregates sentences into records keyed by UTC time-of-day.
//
// Keys carry no date: two fixes exactly 24h apart share a key, and the
// later sentences merge into the earlier record. Callers that need to tell
// days apart must key externally on Record.Date.
type Parser struct {
	records map[string]*Record
	order   []string
	cursor  string
}

func NewParser() *Parser {
	return &Parser{records: make(map[string]*Record)}
}

// ParseLine classifies, decodes and merges one sentence. Unrecognized
// sentences are ignored and return a nil error. On error nothing is stored
// and the cursor does not move.
func (p *Parser) ParseLine(line string) (SentenceType, error) {
	t, err := Classify(line)
	if err != nil {
		return TypeUnrecognized, err
	}
	if t == TypeUnrecognized {
		return t, nil
	}

	d, err := decode(t, splitFields(line))
	if err != nil {
		return t, err
	}

	if t.establishesCursor() {
		if err := p.Apply(d.utc, t, d.fields); err != nil {
			return t, err
		}
		p.cursor = d.utc
		return t, nil
	}
	return t, p.ApplyAtCursor(t, d.fields)
}

// Apply merges fields into the record for key, creating it if needed, and
// marks t as a contributor. It does not move the cursor.
func (p *Parser) Apply(key string, t SentenceType, fields Record) error {
	k, err := NormalizeUTC(key)
	if err != nil {
		return err
	}
	rec, ok := p.records[k]
	if !ok {
		rec = &Record{UTC: k}
		p.records[k] = rec
		p.order = append(p.order, k)
	}
	fields.Unix = nil
	rec.merge(&fields)
	rec.Types.Add(t)
	rec.deriveEpoch()
	return nil
}

// ApplyAtCursor merges fields into the record the cursor names. It fails
// with ErrNoCursor before the first timestamped sentence.
func (p *Parser) ApplyAtCursor(t SentenceType, fields Record) error {
	if p.cursor == "" {
		return fmt.Errorf("%w: %s before any timestamped sentence", ErrNoCursor, t)
	}
	return p.Apply(p.cursor, t, fields)
}

// Cursor returns the key of the record currently being built.
func (p *Parser) Cursor() (string, bool) {
	return p.cursor, p.cursor != ""
}

// Current returns a copy of the record the cursor names.
func (p *Parser) Current() (Record, bool) {
	if p.cursor == "" {
		return Record{}, false
	}
	return p.Record(p.cursor)
}

// CurrentComplete reports whether the record under the cursor is complete.
func (p *Parser) CurrentComplete() bool {
	if p.cursor == "" {
		return false
	}
	return p.records[p.cursor].IsComplete()
}

// Record returns a copy of the record stored under key.
func (p *Parser) Record(key string) (Record, bool) {
	rec, ok := p.records[key]
	if !ok {
		return Record{}, false
	}
	return rec.Clone(), true
}

func (p *Parser) Len() int {
	return len(p.records)
}

// Keys returns the record keys in creation order.
func (p *Parser) Keys() []string {
	return append([]string(nil), p.order...)
}

// Snapshot returns copies of all records in creation order.
func (p *Parser) Snapshot() []Record {
	out := make([]Record, 0, len(p.order))
	for _, k := range p.order {
		out = append(out, p.records[k].Clone())
	}
	return out
}

// Remove deletes the record stored under key. The record under the cursor
// cannot be removed.
func (p *Parser) Remove(key string) bool {
	if key == p.cursor {
		return false
	}
	if _, ok := p.records[key]; !ok {
		return false
	}
	delete(p.records, key)
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}
