package errors

// SyncErrorType classifies a failed CRM call.
type SyncErrorType string

const (
	SyncAuth       SyncErrorType = "AUTH"
	SyncNetwork    SyncErrorType = "NETWORK"
	SyncServer     SyncErrorType = "SERVER"
	SyncValidation SyncErrorType = "VALIDATION"
	SyncTimeout    SyncErrorType = "TIMEOUT"
	SyncUnknown    SyncErrorType = "UNKNOWN"
)

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

var syncSeverity = map[SyncErrorType]Severity{
	SyncAuth:       SeverityCritical,
	SyncNetwork:    SeverityHigh,
	SyncServer:     SeverityHigh,
	SyncTimeout:    SeverityMedium,
	SyncValidation: SeverityMedium,
	SyncUnknown:    SeverityLow,
}

var syncHint = map[SyncErrorType]string{
	SyncAuth:       "CRM API 토큰이 만료되었거나 잘못되었습니다. 토큰을 재발급해 설정을 갱신하세요.",
	SyncNetwork:    "CRM 서버에 연결할 수 없습니다. 네트워크 상태와 CRM 서비스 상태를 확인하세요.",
	SyncServer:     "CRM 서버 내부 오류입니다. 잠시 후 수동으로 케이스를 등록하세요.",
	SyncValidation: "요청 데이터가 CRM 규칙에 맞지 않습니다. 전화번호와 거주지 값을 확인하세요.",
	SyncTimeout:    "CRM 응답 시간이 초과되었습니다. CRM에 케이스가 생성되었는지 확인 후 수동 등록하세요.",
	SyncUnknown:    "알 수 없는 오류입니다. 로그를 확인하고 수동으로 케이스를 등록하세요.",
}

func (t SyncErrorType) Severity() Severity {
	if s, ok := syncSeverity[t]; ok {
		return s
	}
	return SeverityLow
}

// Hint is the remediation text shown to operators.
func (t SyncErrorType) Hint() string {
	if h, ok := syncHint[t]; ok {
		return h
	}
	return syncHint[SyncUnknown]
}
