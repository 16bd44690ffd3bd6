// internal/models/source.go
package models

import "fmt"

// AcquisitionSource records how a record became a lead. It is the state of the
// conversion machine: SourceTest is the only non-terminal state.
type AcquisitionSource string

const (
	SourceTest      AcquisitionSource = "test"
	SourceConverted AcquisitionSource = "converted"
)

// Channel identifies the UI surface that produced a direct lead. Direct
// submissions can only name a Channel, so they always start terminal.
type Channel string

const (
	ChannelHeaderButton   Channel = "header_button"
	ChannelFooterBar      Channel = "footer_bar"
	ChannelResultUpsell   Channel = "result_upsell"
	ChannelFloatingButton Channel = "floating_button"
)

var knownChannels = map[Channel]struct{}{
	ChannelHeaderButton:   {},
	ChannelFooterBar:      {},
	ChannelResultUpsell:   {},
	ChannelFloatingButton: {},
}

// Channels returns every known channel tag.
func Channels() []Channel {
	return []Channel{ChannelHeaderButton, ChannelFooterBar, ChannelResultUpsell, ChannelFloatingButton}
}

func (c Channel) Valid() bool {
	_, ok := knownChannels[c]
	return ok
}

// Source is the terminal state a direct lead from this channel starts in.
func (c Channel) Source() AcquisitionSource {
	return AcquisitionSource(c)
}

func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown channel %q", s)
	}
	return c, nil
}

func ParseSource(s string) (AcquisitionSource, error) {
	switch AcquisitionSource(s) {
	case SourceTest, SourceConverted:
		return AcquisitionSource(s), nil
	}
	if Channel(s).Valid() {
		return AcquisitionSource(s), nil
	}
	return "", fmt.Errorf("unknown acquisition source %q", s)
}

func (s AcquisitionSource) IsTest() bool {
	return s == SourceTest
}

func (s AcquisitionSource) IsTerminal() bool {
	return s != SourceTest
}

// Channel reports the channel tag behind s, if any.
func (s AcquisitionSource) Channel() (Channel, bool) {
	c := Channel(s)
	return c, c.Valid()
}

// Convert is the single transition of the machine. ok is false when s is
// already terminal; the caller treats that as a successful no-op.
func (s AcquisitionSource) Convert() (next AcquisitionSource, ok bool) {
	if s != SourceTest {
		return s, false
	}
	return SourceConverted, true
}

// RecordStatus tracks CRM registration of a record.
type RecordStatus string

const (
	StatusPending    RecordStatus = "pending"
	StatusRegistered RecordStatus = "registered"
	StatusSyncFailed RecordStatus = "sync_failed"
)
