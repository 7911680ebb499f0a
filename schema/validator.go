// Package eventschema validates announcement-created events before they reach
// the matching pipeline.
package eventschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed announcement_event.schema.json
var announcementEventSchemaJSON string

// AnnouncementEvent is the part of an event the pipeline acts on. Producers
// may send the whole announcement; other fields are ignored.
type AnnouncementEvent struct {
	AnnouncementID string `json:"announcementId"`
	Type           string `json:"type,omitempty"`
	UserID         string `json:"userId,omitempty"`
}

type rawEvent struct {
	AnnouncementID string `json:"announcementId"`
	MongoID        string `json:"_id"`
	ID             string `json:"id"`
	Type           string `json:"type"`
	UserID         string `json:"userId"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateAnnouncementEvent checks payload against the embedded schema and
// resolves the announcement id from announcementId, _id or id, in that order.
func ValidateAnnouncementEvent(payload []byte) (*AnnouncementEvent, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode event JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var raw rawEvent
	if err := json.Unmarshal(bytes.TrimSpace(payload), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	ev := &AnnouncementEvent{
		AnnouncementID: firstNonBlank(raw.AnnouncementID, raw.MongoID, raw.ID),
		Type:           strings.ToLower(strings.TrimSpace(raw.Type)),
		UserID:         strings.TrimSpace(raw.UserID),
	}
	if ev.AnnouncementID == "" {
		return nil, fmt.Errorf("announcement id must not be blank")
	}
	return ev, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("announcement_event.schema.json", strings.NewReader(announcementEventSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("announcement_event.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
