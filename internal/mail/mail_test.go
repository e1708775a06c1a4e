// AngelaMos | 2026
// mail_test.go

package mail

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/tfg-registry/internal/config"
)

func TestBuildMessage(t *testing.T) {
	cfg := config.MailConfig{From: "noreply@example.com", FromName: "TFG Registry"}
	now := time.Date(2026, time.October, 1, 12, 0, 0, 0, time.UTC)

	raw := string(BuildMessage(cfg, ValidationCode("ana.lopez@example.com", "Ana", "123456"), now))

	assert.Contains(t, raw, "To: ana.lopez@example.com\r\n")
	assert.Contains(t, raw, "<noreply@example.com>")
	assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.Contains(t, raw, "123456")
	assert.NotContains(t, strings.ReplaceAll(raw, "\r\n", ""), "\n")
}

func TestNewPicksLogSenderWhenDisabled(t *testing.T) {
	s := New(config.MailConfig{Enabled: false}, nil, nil)
	_, ok := s.(*LogSender)
	require.True(t, ok)
	assert.NoError(t, s.Send(context.Background(), RecoveryCode("a@b.c", "A", "999999")))
}

type countingRecorder struct {
	sent   int
	failed int
}

func (r *countingRecorder) MailSent(_ string, err error) {
	if err != nil {
		r.failed++
		return
	}
	r.sent++
}

// fakeSMTP speaks just enough SMTP to accept one message.
func fakeSMTP(t *testing.T) (string, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		w := bufio.NewWriter(conn)
		reply := func(s string) {
			_, _ = w.WriteString(s + "\r\n")
			_ = w.Flush()
		}

		reply("220 localhost ESMTP")
		var data strings.Builder
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if inData {
				if line == ".\r\n" {
					inData = false
					got <- data.String()
					reply("250 OK")
					continue
				}
				data.WriteString(line)
				continue
			}

			switch cmd := strings.ToUpper(strings.TrimSpace(line)); {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 localhost")
			case strings.HasPrefix(cmd, "DATA"):
				inData = true
				reply("354 go ahead")
			case strings.HasPrefix(cmd, "QUIT"):
				reply("221 bye")
				return
			default:
				reply("250 OK")
			}
		}
	}()

	return ln.Addr().String(), got
}

func TestSMTPSenderDelivers(t *testing.T) {
	addr, got := fakeSMTP(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	p, err := net.LookupPort("tcp", port)
	require.NoError(t, err)

	rec := &countingRecorder{}
	s := NewSMTPSender(config.MailConfig{
		Enabled: true,
		Host:    host,
		Port:    p,
		From:    "noreply@example.com",
		Timeout: 5 * time.Second,
	}, nil, rec)

	require.NoError(t, s.Send(context.Background(), ValidationCode("ana@example.com", "Ana", "654321")))

	select {
	case body := <-got:
		assert.Contains(t, body, "654321")
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
	assert.Equal(t, 1, rec.sent)
}

func TestSMTPSenderReportsConnectFailure(t *testing.T) {
	rec := &countingRecorder{}
	s := NewSMTPSender(config.MailConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    1,
		From:    "noreply@example.com",
		Timeout: time.Second,
	}, nil, rec)

	assert.Error(t, s.Send(context.Background(), RecoveryCode("a@b.c", "A", "1")))
	assert.Equal(t, 1, rec.failed)
}
