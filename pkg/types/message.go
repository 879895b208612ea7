package types

import (
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"
)

// TokenType discriminates the tokens embedded in a Message.
type TokenType string

const (
	TokenTypeTime TokenType = "time"
	TokenTypeLink TokenType = "link"
)

// Token is a placeholder inside Message.Text that the UI renders specially.
// The set of implementations is closed: TimeToken and LinkToken.
type Token interface {
	Type() TokenType
}

// TimeToken renders a timestamp either relative to now or as a date.
type TimeToken struct {
	StartToken string
	IsRelative bool
	IsAbsolute bool
	Timestamp  int64
}

// Type implements Token.
func (TimeToken) Type() TokenType { return TokenTypeTime }

// MarshalJSON emits the UI token shape.
func (t TimeToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		StartToken string    `json:"startToken"`
		Type       TokenType `json:"type"`
		IsRelative bool      `json:"isRelative"`
		IsAbsolute bool      `json:"isAbsolute"`
		Timestamp  int64     `json:"timestamp"`
	}{t.StartToken, TokenTypeTime, t.IsRelative, t.IsAbsolute, t.Timestamp})
}

// LinkToken wraps the text between StartToken and EndToken in a link.
type LinkToken struct {
	StartToken string
	EndToken   string
	URL        string
}

// Type implements Token.
func (LinkToken) Type() TokenType { return TokenTypeLink }

// MarshalJSON emits the UI token shape.
func (t LinkToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		StartToken string    `json:"startToken"`
		EndToken   string    `json:"endToken"`
		Type       TokenType `json:"type"`
		URL        string    `json:"url"`
	}{t.StartToken, t.EndToken, TokenTypeLink, t.URL})
}

// Message is the text shown for an alert in the UI.
// A resolved alert carries plain text; a firing alert carries tokens.
type Message struct {
	Text   string  `json:"text"`
	Tokens []Token `json:"tokens,omitempty"`
}

// UnmarshalJSON restores the concrete token types from their "type" field.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text   string            `json:"text"`
		Tokens []json.RawMessage `json:"tokens"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Text = raw.Text
	m.Tokens = nil
	for i, rt := range raw.Tokens {
		typ, err := jsonparser.GetString(rt, "type")
		if err != nil {
			return fmt.Errorf("message token %d: missing type: %w", i, err)
		}
		switch TokenType(typ) {
		case TokenTypeTime:
			var t struct {
				StartToken string `json:"startToken"`
				IsRelative bool   `json:"isRelative"`
				IsAbsolute bool   `json:"isAbsolute"`
				Timestamp  int64  `json:"timestamp"`
			}
			if err := json.Unmarshal(rt, &t); err != nil {
				return fmt.Errorf("message token %d: %w", i, err)
			}
			m.Tokens = append(m.Tokens, TimeToken(t))
		case TokenTypeLink:
			var t struct {
				StartToken string `json:"startToken"`
				EndToken   string `json:"endToken"`
				URL        string `json:"url"`
			}
			if err := json.Unmarshal(rt, &t); err != nil {
				return fmt.Errorf("message token %d: %w", i, err)
			}
			m.Tokens = append(m.Tokens, LinkToken(t))
		default:
			return fmt.Errorf("message token %d: unknown type %q", i, typ)
		}
	}
	return nil
}
