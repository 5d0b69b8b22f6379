package voice

import (
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

type recordingEvents struct {
	mu      sync.Mutex
	started []string
	left    []string
}

func (r *recordingEvents) SpeakerStarted(_, speakerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, speakerID)
}

func (r *recordingEvents) SpeakerLeft(_, speakerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.left = append(r.left, speakerID)
}

func TestSubscribeIsIdempotent(t *testing.T) {
	src := NewDiscordSource("g1", 8, nil)
	a, err := src.Subscribe("g1", "u1")
	require.NoError(t, err)
	b, err := src.Subscribe("g1", "u1")
	require.NoError(t, err)
	require.Same(t, a, b, "live subscription must be returned as-is")

	require.NoError(t, a.Close())
	c, err := src.Subscribe("g1", "u1")
	require.NoError(t, err)
	require.NotSame(t, a, c, "closed subscription must be replaced")
}

func TestSubscribeRequiresIdentifiers(t *testing.T) {
	src := NewDiscordSource("g1", 8, nil)
	_, err := src.Subscribe("", "u1")
	require.Error(t, err)
	_, err = src.Subscribe("g1", "")
	require.Error(t, err)
}

func TestSpeakingUpdateMapsSSRCAndSignalsOnset(t *testing.T) {
	events := &recordingEvents{}
	src := NewDiscordSource("g1", 8, nil)
	src.SetEvents(events)

	src.HandleSpeakingUpdate(nil, &discordgo.VoiceSpeakingUpdate{UserID: "u1", SSRC: 42, Speaking: true})
	events.mu.Lock()
	require.Equal(t, []string{"u1"}, events.started)
	events.mu.Unlock()

	// Frames for a mapped SSRC reach the speaker's subscription.
	st, err := src.Subscribe("g1", "u1")
	require.NoError(t, err)
	src.route(42, []byte{0x01, 0x02})
	select {
	case fr := <-st.Frames():
		require.Equal(t, []byte{0x01, 0x02}, fr.Data)
	case <-time.After(time.Second):
		t.Fatal("routed frame never arrived")
	}
}

func TestSpeakingUpdateWithoutSpeakingDoesNotSignal(t *testing.T) {
	events := &recordingEvents{}
	src := NewDiscordSource("g1", 8, nil)
	src.SetEvents(events)

	src.HandleSpeakingUpdate(nil, &discordgo.VoiceSpeakingUpdate{UserID: "u1", SSRC: 42, Speaking: false})
	events.mu.Lock()
	require.Empty(t, events.started)
	events.mu.Unlock()
}

func TestRouteDropsFramesForUnmappedSSRC(t *testing.T) {
	src := NewDiscordSource("g1", 8, nil)
	st, err := src.Subscribe("g1", "u1")
	require.NoError(t, err)

	src.route(99, []byte{0xff})
	select {
	case <-st.Frames():
		t.Fatal("unmapped SSRC must not be routed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestVoiceLeaveClosesStreamAndSignals(t *testing.T) {
	events := &recordingEvents{}
	src := NewDiscordSource("g1", 8, nil)
	src.SetEvents(events)

	st, err := src.Subscribe("g1", "u1")
	require.NoError(t, err)

	src.HandleVoiceState(nil, &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{UserID: "u1", ChannelID: ""},
	})
	select {
	case <-st.Done():
	case <-time.After(time.Second):
		t.Fatal("stream not closed on leave")
	}
	events.mu.Lock()
	require.Equal(t, []string{"u1"}, events.left)
	events.mu.Unlock()
	require.False(t, src.Subscribed("g1", "u1"))
}

func TestVoiceStateChannelSwitchIsIgnored(t *testing.T) {
	events := &recordingEvents{}
	src := NewDiscordSource("g1", 8, nil)
	src.SetEvents(events)

	st, err := src.Subscribe("g1", "u1")
	require.NoError(t, err)
	src.HandleVoiceState(nil, &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{UserID: "u1", ChannelID: "other"},
	})
	select {
	case <-st.Done():
		t.Fatal("moving channels must not close the stream")
	default:
	}
	events.mu.Lock()
	require.Empty(t, events.left)
	events.mu.Unlock()
}
