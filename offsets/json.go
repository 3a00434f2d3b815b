package offsets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/jsonc"

	"github.com/meigma/rangefetch/internal/fragtype"
)

// ParseJSON parses a JSON offset table. Comments and trailing commas are
// allowed. Object member order is preserved.
func ParseJSON(data []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	b := newTableBuilder()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	for dec.More() {
		id, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		if err := b.startArchive(id); err != nil {
			return nil, err
		}
		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("archive %s: %w", id, err)
		}
		for dec.More() {
			name, err := readKey(dec)
			if err != nil {
				return nil, err
			}
			var entry offsetEntry
			if err := dec.Decode(&entry); err != nil {
				return nil, fmt.Errorf("%w: %s/%s: %v", fragtype.ErrConfig, id, name, err)
			}
			if err := b.addFragment(name, entry); err != nil {
				return nil, err
			}
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after offset table", fragtype.ErrConfig)
	}
	return b.finish()
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: parse offset table: %v", fragtype.ErrConfig, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: parse offset table: expected %q, got %v", fragtype.ErrConfig, want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: parse offset table: %v", fragtype.ErrConfig, err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: parse offset table: expected key, got %v", fragtype.ErrConfig, tok)
	}
	return key, nil
}
