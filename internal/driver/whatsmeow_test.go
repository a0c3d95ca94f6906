package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestParseJID(t *testing.T) {
	jid, err := parseJID("628123456")
	require.NoError(t, err)
	assert.Equal(t, "628123456", jid.User)
	assert.Equal(t, waTypes.DefaultUserServer, jid.Server)

	jid, err = parseJID("628123456@s.whatsapp.net")
	require.NoError(t, err)
	assert.Equal(t, "628123456", jid.User)
}

func TestExtractMessageConversation(t *testing.T) {
	ev := &events.Message{
		Info: waTypes.MessageInfo{
			MessageSource: waTypes.MessageSource{
				Sender: waTypes.NewJID("628999", waTypes.DefaultUserServer),
			},
		},
		Message: &waE2E.Message{Conversation: proto.String("hello")},
	}
	from, body := extractMessage(ev)
	assert.Equal(t, "628999", from)
	assert.Equal(t, "hello", body)
}

func TestExtractMessageExtendedText(t *testing.T) {
	ev := &events.Message{
		Info: waTypes.MessageInfo{
			MessageSource: waTypes.MessageSource{
				Sender: waTypes.NewJID("628999", waTypes.DefaultUserServer),
			},
		},
		Message: &waE2E.Message{
			ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("quoted reply")},
		},
	}
	_, body := extractMessage(ev)
	assert.Equal(t, "quoted reply", body)
}

func TestExtractMessageEmpty(t *testing.T) {
	ev := &events.Message{
		Info: waTypes.MessageInfo{
			MessageSource: waTypes.MessageSource{
				Sender: waTypes.NewJID("628999", waTypes.DefaultUserServer),
			},
		},
	}
	_, body := extractMessage(ev)
	assert.Empty(t, body)
}
