package crmsync

import "strings"

// regions maps every accepted spelling prefix to the CRM's region label.
var regions = []struct {
	label   string
	aliases []string
}{
	{"서울", []string{"서울"}},
	{"부산", []string{"부산"}},
	{"대구", []string{"대구"}},
	{"인천", []string{"인천"}},
	{"광주", []string{"광주"}},
	{"대전", []string{"대전"}},
	{"울산", []string{"울산"}},
	{"세종", []string{"세종"}},
	{"경기", []string{"경기"}},
	{"강원", []string{"강원"}},
	{"충북", []string{"충북", "충청북도"}},
	{"충남", []string{"충남", "충청남도"}},
	{"전북", []string{"전북", "전라북도"}},
	{"전남", []string{"전남", "전라남도"}},
	{"경북", []string{"경북", "경상북도"}},
	{"경남", []string{"경남", "경상남도"}},
	{"제주", []string{"제주"}},
}

// NormalizeResidence reduces a free-text residence to its region label,
// e.g. "서울특별시 강남구" to "서울". Unrecognized input is returned trimmed.
func NormalizeResidence(s string) string {
	s = strings.TrimSpace(s)
	for _, r := range regions {
		for _, alias := range r.aliases {
			if strings.HasPrefix(s, alias) {
				return r.label
			}
		}
	}
	return s
}
