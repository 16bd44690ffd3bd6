package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquisitionSource_Convert(t *testing.T) {
	next, ok := SourceTest.Convert()
	assert.True(t, ok)
	assert.Equal(t, SourceConverted, next)

	for _, s := range []AcquisitionSource{SourceConverted, ChannelFooterBar.Source(), ChannelHeaderButton.Source()} {
		next, ok := s.Convert()
		assert.False(t, ok, "source %s", s)
		assert.Equal(t, s, next, "terminal state must not change")
		assert.True(t, s.IsTerminal())
	}
}

func TestParseSource(t *testing.T) {
	for _, s := range []string{"test", "converted", "header_button", "footer_bar", "result_upsell", "floating_button"} {
		got, err := ParseSource(s)
		require.NoError(t, err)
		assert.Equal(t, AcquisitionSource(s), got)
	}

	_, err := ParseSource("banner")
	assert.Error(t, err)

	_, err = ParseChannel("test")
	assert.Error(t, err, "test is not a channel")
}

func TestAnswerValue_JSON(t *testing.T) {
	raw := `{"1":"미혼","5":["부동산","자동차"],"6":"1천만~5천만원"}`

	var answers Answers
	require.NoError(t, json.Unmarshal([]byte(raw), &answers))

	assert.Equal(t, "미혼", answers.Text("1"))
	assert.Equal(t, []string{"부동산", "자동차"}, answers.List("5"))
	assert.Empty(t, answers.Text("4"))

	out, err := json.Marshal(answers)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestAnswerValue_EmptyList(t *testing.T) {
	out, err := json.Marshal(Answers{"5": List()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"5":[]}`, string(out))
}

func TestAssetSet_JSON(t *testing.T) {
	set := AssetRealEstate | AssetInsurance

	out, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `["realEstate","insurance"]`, string(out))

	var back AssetSet
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, set, back)
}
