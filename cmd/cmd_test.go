package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/signup-notifier/internal/build"
	"github.com/shaharia-lab/signup-notifier/internal/config"
	"github.com/shaharia-lab/signup-notifier/internal/notification"
)

func testConfig(mode string) *config.AppConfig {
	return &config.AppConfig{
		SMTPHost:    "127.0.0.1",
		SMTPPort:    1,
		SMTPTimeout: time.Second,
		FromEmail:   "noreply@example.com",
		FromName:    "Notifications",
		ToAdmin:     "admin@example.com",
		Subject:     "New user registered",
		SendMode:    mode,
	}
}

func TestRunSend_Console(t *testing.T) {
	var out, logs bytes.Buffer
	err := runSend(context.Background(), testConfig(config.SendModeConsole),
		notification.Payload{Name: "Ana", Email: "ana@x.com", Phone: "123"}, &out, &logs)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "sent to admin@example.com via console")
	assert.Contains(t, logs.String(), "console mode: email not sent")
}

func TestRunSend_TransportFailureIsReturned(t *testing.T) {
	var out, logs bytes.Buffer
	err := runSend(context.Background(), testConfig(config.SendModeLive),
		notification.Payload{Name: "Ana", Email: "ana@x.com"}, &out, &logs)

	var terr *notification.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, notification.StageConnect, terr.Stage)
	assert.Empty(t, out.String())
}

func TestRunSend_ValidationError(t *testing.T) {
	var out, logs bytes.Buffer
	err := runSend(context.Background(), testConfig(config.SendModeConsole),
		notification.Payload{Name: "Ana"}, &out, &logs)

	var verr *notification.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)
}

func TestVersionCmd_SkipsConfig(t *testing.T) {
	t.Setenv("SEND_MODE", "carrier-pigeon")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), build.Version)
}

func TestSendCmd_ConfigErrorAborts(t *testing.T) {
	t.Setenv("SEND_MODE", "carrier-pigeon")

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"send", "--name", "Ana", "--email", "ana@x.com"})

	err := root.Execute()
	var cerr *config.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "SEND_MODE", cerr.Field)
}
