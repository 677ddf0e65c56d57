package bot

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Store persists the records of the saved bots.
type Store interface {
	// Load returns the persisted records. It returns no records and no error
	// if nothing was persisted yet.
	Load() ([]Record, error)
	// Save replaces the persisted records.
	Save(records []Record) error
}

// Files reads and writes JSON files. *plugin.API implements it on top of the
// plugin data directory.
type Files interface {
	LoadJSON(name string, v any) (bool, error)
	SaveJSON(name string, v any) error
}

// FileName is the name of the file the saved bots are stored in.
const FileName = "botList.json"

// Document is the persisted document holding the saved bots.
type Document struct {
	BotList []Record `json:"botList"`
}

//go:embed schema.json
var documentSchemaJSON string

var documentSchema = jsonschema.MustCompileString("botList.schema.json", documentSchemaJSON)

// JSONStore is a Store keeping the saved bots in one JSON file. The whole
// document is rewritten on every save.
type JSONStore struct {
	files Files
	name  string
}

// NewJSONStore returns a JSONStore keeping the document in the file name,
// or FileName if name is empty.
func NewJSONStore(files Files, name string) *JSONStore {
	if name == "" {
		name = FileName
	}
	return &JSONStore{files: files, name: name}
}

// Load reads and validates the document. Optional fields missing from a
// record keep their zero value, and a missing location defaults to the
// origin of the overworld.
func (s *JSONStore) Load() ([]Record, error) {
	var raw json.RawMessage
	ok, err := s.files.LoadJSON(s.name, &raw)
	if err != nil || !ok {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.name, err)
	}
	if err := documentSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("validate %s: %w", s.name, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.name, err)
	}
	for i := range doc.BotList {
		doc.BotList[i].Actions = nonNil(doc.BotList[i].Actions)
		doc.BotList[i].Tags = nonNil(doc.BotList[i].Tags)
	}
	return doc.BotList, nil
}

// Save writes records as the document.
func (s *JSONStore) Save(records []Record) error {
	return s.files.SaveJSON(s.name, Document{BotList: nonNilRecords(records)})
}

func nonNilRecords(records []Record) []Record {
	if records == nil {
		return []Record{}
	}
	return records
}
