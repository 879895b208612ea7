package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMessage_MarshalFiringShape(t *testing.T) {
	m := Message{
		Text: "expires in #relative. #start_linkupdate#end_link",
		Tokens: []Token{
			TimeToken{StartToken: "#relative", IsRelative: true, Timestamp: 1},
			LinkToken{StartToken: "#start_link", EndToken: "#end_link", URL: "license"},
		},
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got := string(b)
	for _, want := range []string{
		`"startToken":"#relative","type":"time","isRelative":true,"isAbsolute":false,"timestamp":1`,
		`"startToken":"#start_link","endToken":"#end_link","type":"link","url":"license"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("marshalled message %s\nmissing %s", got, want)
		}
	}
}

func TestMessage_PlainTextOmitsTokens(t *testing.T) {
	b, err := json.Marshal(Message{Text: "The license for this cluster is active."})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got, want := string(b), `{"text":"The license for this cluster is active."}`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMessage_RoundTrip(t *testing.T) {
	in := Message{
		Text: "#absolute #start_linkx#end_link",
		Tokens: []Token{
			TimeToken{StartToken: "#absolute", IsAbsolute: true, Timestamp: 42},
			LinkToken{StartToken: "#start_link", EndToken: "#end_link", URL: "license"},
		},
	}
	b, _ := json.Marshal(in)

	var out Message
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Text != in.Text {
		t.Errorf("Text: got %q, want %q", out.Text, in.Text)
	}
	if len(out.Tokens) != 2 {
		t.Fatalf("Tokens: got %d, want 2", len(out.Tokens))
	}
	tt, ok := out.Tokens[0].(TimeToken)
	if !ok || tt.Timestamp != 42 || !tt.IsAbsolute {
		t.Errorf("Tokens[0]: got %#v", out.Tokens[0])
	}
	lt, ok := out.Tokens[1].(LinkToken)
	if !ok || lt.URL != "license" {
		t.Errorf("Tokens[1]: got %#v", out.Tokens[1])
	}
}

func TestMessage_UnknownTokenType(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"text":"x","tokens":[{"type":"emoji"}]}`), &m)
	if err == nil {
		t.Fatal("expected error for unknown token type, got nil")
	}
}

func TestLegacyAlert_Resolved(t *testing.T) {
	top, meta := int64(5), int64(9)

	if _, ok := (LegacyAlert{}).Resolved(); ok {
		t.Error("record without timestamps reported resolved")
	}
	if ts, ok := (LegacyAlert{ResolvedTimestamp: &top}).Resolved(); !ok || ts != 5 {
		t.Errorf("top-level: got (%d, %v), want (5, true)", ts, ok)
	}
	a := LegacyAlert{ResolvedTimestamp: &top, Metadata: LegacyMetadata{ResolvedTimestamp: &meta}}
	if ts, ok := a.Resolved(); !ok || ts != 9 {
		t.Errorf("metadata precedence: got (%d, %v), want (9, true)", ts, ok)
	}
}
