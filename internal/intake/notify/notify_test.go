package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	awsclient "lead-intake/internal/common/aws"
	"lead-intake/internal/common/config"
	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/common/logger"
	"lead-intake/internal/diagnosis/coder"
	"lead-intake/internal/models"
)

func baseEvent() Event {
	return Event{
		ConsultationNumber: "상담1001",
		Name:               "홍길동",
		Phone:              "01012345678",
		Residence:          "서울",
		ConsultationType:   "개인회생",
		Source:             models.SourceConverted,
		SubmittedAt:        time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC),
	}
}

func TestRender_Golden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))

	created := baseEvent()
	created.Summary = &coder.Summary{
		MaritalStatus: "미혼",
		Children:      "없음",
		Income:        "소득 없음",
		Debt:          "1천만~5천만원",
	}

	direct := baseEvent()
	direct.ConsultationNumber = "상담1002"
	direct.Name = "김영희"
	direct.Phone = "01098765432"
	direct.Residence = ""
	direct.Source = models.ChannelFooterBar.Source()

	duplicate := baseEvent()
	duplicate.PriorOwner = "박상담"
	duplicate.DuplicateCount = 2

	syncFailed := baseEvent()
	syncFailed.ErrorType = apperrors.SyncAuth
	syncFailed.Attempts = 3
	syncFailed.Err = "unexpected status 401: unauthorized"

	mirror := baseEvent()
	mirror.Source = models.SourceTest
	mirror.Operation = "insert"
	mirror.Attempts = 3
	mirror.Err = "connection refused"

	cases := []struct {
		golden string
		kind   Kind
		event  Event
	}{
		{"case_created", KindCaseCreated, created},
		{"case_created_direct", KindCaseCreated, direct},
		{"duplicate_detected", KindDuplicate, duplicate},
		{"sync_failed", KindSyncFailed, syncFailed},
		{"mirror_exhausted", KindMirrorExhausted, mirror},
	}

	for _, tc := range cases {
		t.Run(tc.golden, func(t *testing.T) {
			msg, err := Render(tc.kind, tc.event)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, msg.Kind)
			g.Assert(t, tc.golden, []byte(msg.Text))
		})
	}
}

func TestRender_Subject(t *testing.T) {
	msg, err := Render(KindDuplicate, baseEvent())
	require.NoError(t, err)
	assert.Equal(t, "중복 상담 신청 상담1001", msg.Subject)

	msg, err = Render(KindSyncFailed, Event{})
	require.NoError(t, err)
	assert.Equal(t, "CRM 등록 실패", msg.Subject)
}

func TestRender_DuplicateWithoutOwner(t *testing.T) {
	msg, err := Render(KindDuplicate, Event{DuplicateCount: 3})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "기존 담당자: 미배정")
	assert.Contains(t, msg.Text, "누적 신청: 3회")
}

func TestRender_UnknownKind(t *testing.T) {
	_, err := Render(Kind("other"), Event{})
	assert.Error(t, err)
}

func TestWebhookTransport(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		var body, contentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			body = string(raw)
			contentType = r.Header.Get("Content-Type")
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		tr := NewWebhookTransport(srv.URL, time.Second, false)
		require.NoError(t, tr.Send(context.Background(), Message{Text: "hello"}))
		assert.Equal(t, "hello", body)
		assert.Contains(t, contentType, "text/plain")
	})

	t.Run("envelope", func(t *testing.T) {
		var payload map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&payload)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		tr := NewWebhookTransport(srv.URL, time.Second, true)
		require.NoError(t, tr.Send(context.Background(), Message{Text: "hello"}))
		assert.Equal(t, map[string]string{"text": "hello"}, payload)
	})

	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		tr := NewWebhookTransport(srv.URL, time.Second, false)
		assert.Error(t, tr.Send(context.Background(), Message{Text: "hello"}))
	})
}

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

type fakeSES struct {
	input *ses.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	return &ses.SendEmailOutput{MessageId: aws.String("mail-1")}, nil
}

func TestSNSTransport(t *testing.T) {
	api := &fakeSNS{}
	tr := NewSNSTransport(awsclient.NewSNSClientWith(api), "arn:aws:sns:ap-northeast-2:123:ops")

	require.NoError(t, tr.Send(context.Background(), Message{Subject: "DB 저장 실패", Text: "body"}))
	assert.Equal(t, "arn:aws:sns:ap-northeast-2:123:ops", aws.ToString(api.input.TopicArn))
	assert.Equal(t, "DB 저장 실패", aws.ToString(api.input.Subject))
	assert.Equal(t, "body", aws.ToString(api.input.Message))
}

func TestSESTransport(t *testing.T) {
	api := &fakeSES{}
	tr := NewSESTransport(awsclient.NewSESClientWith(api), "ops@example.com", []string{"team@example.com"})

	require.NoError(t, tr.Send(context.Background(), Message{Subject: "신규 상담 접수", Text: "body"}))
	assert.Equal(t, "ops@example.com", aws.ToString(api.input.Source))
	assert.Equal(t, []string{"team@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "body", aws.ToString(api.input.Message.Body.Text.Data))
}

type recordingTransport struct {
	sent []Message
	err  error
}

func (r *recordingTransport) Send(_ context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestMulti_SendsToAllAndJoinsErrors(t *testing.T) {
	ok := &recordingTransport{}
	broken := &recordingTransport{err: errors.New("down")}

	err := Multi{broken, ok}.Send(context.Background(), Message{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Len(t, ok.sent, 1)
	assert.Len(t, broken.sent, 1)
}

func TestNotifier_SwallowsTransportErrors(t *testing.T) {
	tr := &recordingTransport{err: errors.New("down")}
	n := New(tr, logger.NewTestLogger(t))

	assert.NotPanics(t, func() {
		n.SyncFailed(context.Background(), Event{ErrorType: apperrors.SyncNetwork, Attempts: 3})
	})
	require.Len(t, tr.sent, 1)
	assert.Equal(t, KindSyncFailed, tr.sent[0].Kind)
	assert.Contains(t, tr.sent[0].Text, "NETWORK (HIGH)")
}

func TestNewTransport_DefaultsToLog(t *testing.T) {
	tr, err := NewTransport(context.Background(), configWithWebhook("", false), logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.IsType(t, &LogTransport{}, tr)
}

func TestNewTransport_WebhookRequiresURL(t *testing.T) {
	_, err := NewTransport(context.Background(), configWithWebhook("", true), logger.NewNoOpLogger())
	assert.Error(t, err)

	tr, err := NewTransport(context.Background(), configWithWebhook("http://ops.local/hook", true), logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.IsType(t, &WebhookTransport{}, tr)
}

func configWithWebhook(url string, enabled bool) config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.Webhook.Enabled = enabled
	cfg.Webhook.URL = url
	cfg.Webhook.Timeout = 1000
	return cfg
}
