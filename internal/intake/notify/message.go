// Package notify formats pipeline events for the operations channel and
// delivers them over the configured transports.
package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"lead-intake/internal/common/crm"
	apperrors "lead-intake/internal/common/errors"
	"lead-intake/internal/diagnosis/coder"
	"lead-intake/internal/models"
)

type Kind string

const (
	KindCaseCreated     Kind = "case_created"
	KindDuplicate       Kind = "duplicate_detected"
	KindSyncFailed      Kind = "sync_failed"
	KindMirrorExhausted Kind = "mirror_exhausted"
)

// Message is one rendered notification.
type Message struct {
	Kind    Kind
	Subject string
	Text    string
}

// Event carries the fields the templates draw from. Only the fields relevant
// to a given Kind need to be set.
type Event struct {
	ConsultationNumber string
	Name               string
	Phone              string
	Residence          string
	ConsultationType   string
	Source             models.AcquisitionSource
	SubmittedAt        time.Time
	Summary            *coder.Summary

	DuplicateCount int
	PriorOwner     string

	ErrorType apperrors.SyncErrorType
	Attempts  int
	Operation string
	Err       string
}

var funcs = template.FuncMap{
	"kst": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.In(crm.Seoul()).Format("2006-01-02 15:04")
	},
	"dash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
	"severity": func(t apperrors.SyncErrorType) string { return string(t.Severity()) },
	"hint":     func(t apperrors.SyncErrorType) string { return t.Hint() },
}

var templates = map[Kind]*template.Template{
	KindCaseCreated: template.Must(template.New(string(KindCaseCreated)).Funcs(funcs).Parse(
		`[신규 상담 접수]
상담번호: {{dash .ConsultationNumber}}
접수일시: {{kst .SubmittedAt}}
이름: {{dash .Name}}
연락처: {{dash .Phone}}
거주지: {{dash .Residence}}
상담유형: {{dash .ConsultationType}}
유입경로: {{dash (print .Source)}}
{{- with .Summary}}
진단 요약: 혼인 {{.MaritalStatus}} / 자녀 {{.Children}} / 소득 {{.Income}} / 재산 {{dash .Assets}} / 채무 {{.Debt}}
{{- end}}
`)),
	KindDuplicate: template.Must(template.New(string(KindDuplicate)).Funcs(funcs).Parse(
		`[중복 상담 신청]
상담번호: {{dash .ConsultationNumber}}
이름: {{dash .Name}}
연락처: {{dash .Phone}}
기존 담당자: {{if .PriorOwner}}{{.PriorOwner}}{{else}}미배정{{end}}
누적 신청: {{.DuplicateCount}}회
`)),
	KindSyncFailed: template.Must(template.New(string(KindSyncFailed)).Funcs(funcs).Parse(
		`[CRM 등록 실패]
상담번호: {{dash .ConsultationNumber}}
이름: {{dash .Name}}
연락처: {{dash .Phone}}
오류 유형: {{.ErrorType}} ({{severity .ErrorType}})
시도 횟수: {{.Attempts}}
오류: {{dash .Err}}
조치: {{hint .ErrorType}}
`)),
	KindMirrorExhausted: template.Must(template.New(string(KindMirrorExhausted)).Funcs(funcs).Parse(
		`[DB 저장 실패]
상담번호: {{dash .ConsultationNumber}}
연락처: {{dash .Phone}}
유입경로: {{dash (print .Source)}}
작업: {{dash .Operation}}
시도 횟수: {{.Attempts}}
오류: {{dash .Err}}
로컬 저장은 완료되었습니다. error_logs 기록을 확인해 주세요.
`)),
}

var subjects = map[Kind]string{
	KindCaseCreated:     "신규 상담 접수",
	KindDuplicate:       "중복 상담 신청",
	KindSyncFailed:      "CRM 등록 실패",
	KindMirrorExhausted: "DB 저장 실패",
}

// Render builds the message for kind from e.
func Render(kind Kind, e Event) (Message, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown notification kind %q", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, e); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", kind, err)
	}

	subject := subjects[kind]
	if e.ConsultationNumber != "" {
		subject += " " + e.ConsultationNumber
	}
	return Message{Kind: kind, Subject: subject, Text: buf.String()}, nil
}
