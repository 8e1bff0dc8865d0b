package document

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ParseJSON validates the payload and exposes it as a structured root for
// path rules. The text view is the raw JSON, which lets regex rules pick at
// payloads whose shape the template author does not fully control.
func ParseJSON(name string, data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("document: parse json %s: invalid JSON", name)
	}
	return &Document{
		Kind: KindJSON,
		Name: name,
		Text: string(data),
		Root: gjson.ParseBytes(data),
	}, nil
}
