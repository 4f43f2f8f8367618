package hub

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMessage_JSONUsesTypeNames(t *testing.T) {
	data, err := json.Marshal(Message{Text: "hi", Type: TypeInformation})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"hi","type":"Information"}`, string(data))

	var decoded Message
	require.NoError(t, json.Unmarshal([]byte(`{"text":"bye","type":"Leave"}`), &decoded))
	assert.Equal(t, Message{Text: "bye", Type: TypeLeave}, decoded)
}

func TestMessageType_Invalid(t *testing.T) {
	assert.False(t, MessageType(0).Valid())
	assert.Equal(t, "MessageType(42)", MessageType(42).String())

	_, err := json.Marshal(Message{Text: "x", Type: MessageType(42)})
	assert.Error(t, err)

	var decoded Message
	assert.Error(t, json.Unmarshal([]byte(`{"text":"x","type":"Shout"}`), &decoded))
}

func TestParseMessageType_AllNames(t *testing.T) {
	for typ, name := range messageTypeNames {
		parsed, err := ParseMessageType(name)
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}
}

func TestErrorMessage(t *testing.T) {
	msg := ErrorMessage(errors.New("room not found"))
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, "room not found", msg.Text)
}

func TestSessionID_Short(t *testing.T) {
	assert.Equal(t, "abc", SessionID("abc").Short())
	assert.Equal(t, "12345678", SessionID("1234567890").Short())
	assert.Len(t, NewSessionID().Short(), 8)
}

func TestGenerateCode(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		length := rapid.IntRange(1, 12).Draw(t, "length")
		code, err := GenerateCode(length)
		if err != nil {
			t.Fatalf("GenerateCode(%d): %v", length, err)
		}
		if len(code) != length {
			t.Fatalf("expected length %d, got %q", length, code)
		}
		for _, c := range code {
			if !strings.ContainsRune(codeAlphabet, c) {
				t.Fatalf("code %q contains %q outside the alphabet", code, c)
			}
		}
	})
}

func TestGenerateCode_InvalidLength(t *testing.T) {
	_, err := GenerateCode(0)
	assert.Error(t, err)
}

func TestNormalizeCode(t *testing.T) {
	for in, want := range map[string]string{
		"  ab3k\n": "AB3K",
		"ab 3k":    "AB3K",
		"A B\t3 K": "AB3K",
		"   ":      "",
		"AB3K":     "AB3K",
	} {
		assert.Equal(t, want, NormalizeCode(in), "input %q", in)
	}
}
