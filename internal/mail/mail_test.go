package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/leapstack-labs/leapreport/internal/testutil"
	"github.com/leapstack-labs/leapreport/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent   []*gomail.Message
	err    error
	closed bool
}

type nopSendCloser struct{ closed *bool }

func (n nopSendCloser) Send(string, []string, io.WriterTo) error { return nil }

func (n nopSendCloser) Close() error {
	*n.closed = true
	return nil
}

func (f *fakeDialer) Dial() (gomail.SendCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nopSendCloser{closed: &f.closed}, nil
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func newTestMailer(t *testing.T, d *fakeDialer) *SMTPMailer {
	t.Helper()
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Username: "bot@example.com"}, testutil.NewTestLogger(t))
	m.dialer = d
	return m
}

func TestSMTPMailer_Send(t *testing.T) {
	tests := []struct {
		name         string
		msg          Message
		wantContains []string
	}{
		{
			name: "html with text alternative",
			msg: Message{
				To:      []string{"a@example.com", "b@example.com"},
				Subject: "Auto-email: Data update completed 2024-03-05 07:15:00",
				HTML:    "<p>Hi team,</p>",
				Text:    "Hi team,",
			},
			wantContains: []string{"text/plain", "text/html", "multipart/alternative"},
		},
		{
			name: "plaintext only",
			msg: Message{
				To:      []string{"a@example.com"},
				Subject: "Auto-email: Data update FAILED 2024-03-05 07:15:00",
				Text:    "Script failed with error:\nboom",
			},
			wantContains: []string{"text/plain", "Script failed with error:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDialer{}
			require.NoError(t, newTestMailer(t, d).Send(context.Background(), tt.msg))
			require.Len(t, d.sent, 1)

			gm := d.sent[0]
			assert.Equal(t, tt.msg.To, gm.GetHeader("To"))
			assert.Equal(t, []string{tt.msg.Subject}, gm.GetHeader("Subject"))
			assert.Equal(t, []string{"bot@example.com"}, gm.GetHeader("From"))

			var buf bytes.Buffer
			_, err := gm.WriteTo(&buf)
			require.NoError(t, err)
			for _, s := range tt.wantContains {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestSMTPMailer_Errors(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		msg     Message
		dialErr error
		wantErr string
	}{
		{
			name:    "transport failure",
			ctx:     context.Background(),
			msg:     Message{To: []string{"a@example.com"}, Subject: "s", Text: "t"},
			dialErr: errors.New("535 authentication failed"),
			wantErr: "535 authentication failed",
		},
		{
			name:    "no recipients",
			ctx:     context.Background(),
			msg:     Message{Subject: "s", Text: "t"},
			wantErr: "no recipients",
		},
		{
			name:    "empty body",
			ctx:     context.Background(),
			msg:     Message{To: []string{"a@example.com"}, Subject: "s"},
			wantErr: "empty body",
		},
		{
			name:    "cancelled",
			ctx:     cancelled,
			msg:     Message{To: []string{"a@example.com"}, Subject: "s", Text: "t"},
			wantErr: "context canceled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestMailer(t, &fakeDialer{err: tt.dialErr}).Send(tt.ctx, tt.msg)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)

			var mErr *core.MailError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, "s", mErr.Subject)
		})
	}
}

func TestSMTPMailer_Check(t *testing.T) {
	d := &fakeDialer{}
	require.NoError(t, newTestMailer(t, d).Check(context.Background()))
	assert.True(t, d.closed)

	err := newTestMailer(t, &fakeDialer{err: errors.New("auth failed")}).Check(context.Background())
	assert.ErrorContains(t, err, "auth failed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, newTestMailer(t, &fakeDialer{}).Check(ctx), context.Canceled)
}
